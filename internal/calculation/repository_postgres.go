package calculation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"specsharp/internal/apperr"
)

type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// --------------------------------------------------
// SAVE
// --------------------------------------------------
func (r *PostgresRepository) Save(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	request, err := json.Marshal(run.Request)
	if err != nil {
		return err
	}
	totals, err := json.Marshal(run.Totals)
	if err != nil {
		return err
	}
	result, err := json.Marshal(run.Result)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO calculation_runs (
			id, org_id, email, building_type, subtype, decision_status,
			taxonomy_version, request, totals, result
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`,
		run.ID, run.OrgID, run.Email, run.BuildingType, run.Subtype, run.DecisionStatus,
		run.TaxonomyVersion, request, totals, result,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("save calculation: %w", err)
	}
	return nil
}

// --------------------------------------------------
// FIND BY ID (scoped to the caller's organization)
// --------------------------------------------------
func (r *PostgresRepository) FindByID(ctx context.Context, orgID, id string) (*Run, error) {
	run := &Run{}
	var request, totals, result []byte

	err := r.db.QueryRow(ctx, `
		SELECT id, org_id, email, building_type, subtype, decision_status,
		       taxonomy_version, request, totals, result, created_at
		FROM calculation_runs
		WHERE id = $1 AND org_id = $2
	`, id, orgID).Scan(
		&run.ID, &run.OrgID, &run.Email, &run.BuildingType, &run.Subtype, &run.DecisionStatus,
		&run.TaxonomyVersion, &request, &totals, &result, &run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "calculation %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load calculation: %w", err)
	}

	if err := json.Unmarshal(request, &run.Request); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(totals, &run.Totals); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(result, &run.Result); err != nil {
		return nil, err
	}
	return run, nil
}
