package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"specsharp/internal/apperr"
)

type PostgresRepository struct {
	db              *pgxpool.Pool
	defaultIncluded int
}

func NewPostgresRepository(db *pgxpool.Pool, defaultIncluded int) *PostgresRepository {
	return &PostgresRepository{db: db, defaultIncluded: defaultIncluded}
}

// --------------------------------------------------
// CHECK AND CONSUME (row lock on org_run_limits)
// --------------------------------------------------
func (r *PostgresRepository) CheckAndConsume(ctx context.Context, orgID, email string) (Snapshot, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin quota tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.ensureRow(ctx, tx, orgID); err != nil {
		return Snapshot{}, err
	}

	snap, err := lockedSnapshot(ctx, tx, orgID)
	if err != nil {
		return Snapshot{}, err
	}
	if snap.Exhausted() {
		return snap, apperr.New(apperr.CodeQuotaExceeded, "run quota exhausted")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE org_run_limits
		SET used = used + 1,
		    updated_at = now()
		WHERE org_id = $1
	`, orgID); err != nil {
		return Snapshot{}, fmt.Errorf("increment usage: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO run_usage_events (id, org_id, email)
		VALUES ($1, $2, $3)
	`, uuid.New(), orgID, email); err != nil {
		return Snapshot{}, fmt.Errorf("record usage event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("commit quota tx: %w", err)
	}

	snap.Used++
	return newSnapshot(snap.Included, snap.Bonus, snap.Used, snap.Unlimited), nil
}

func (r *PostgresRepository) Get(ctx context.Context, orgID string) (Snapshot, error) {
	var included, bonus, used int
	var unlimited bool
	err := r.db.QueryRow(ctx, `
		SELECT included, bonus, used, unlimited
		FROM org_run_limits
		WHERE org_id = $1
	`, orgID).Scan(&included, &bonus, &used, &unlimited)
	if errors.Is(err, pgx.ErrNoRows) {
		return newSnapshot(r.defaultIncluded, 0, 0, false), nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read quota: %w", err)
	}
	return newSnapshot(included, bonus, used, unlimited), nil
}

func (r *PostgresRepository) ensureRow(ctx context.Context, tx pgx.Tx, orgID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO org_run_limits (org_id, included)
		VALUES ($1, $2)
		ON CONFLICT (org_id) DO NOTHING
	`, orgID, r.defaultIncluded)
	if err != nil {
		return fmt.Errorf("seed quota row: %w", err)
	}
	return nil
}

func lockedSnapshot(ctx context.Context, tx pgx.Tx, orgID string) (Snapshot, error) {
	var included, bonus, used int
	var unlimited bool
	err := tx.QueryRow(ctx, `
		SELECT included, bonus, used, unlimited
		FROM org_run_limits
		WHERE org_id = $1
		FOR UPDATE
	`, orgID).Scan(&included, &bonus, &used, &unlimited)
	if err != nil {
		return Snapshot{}, fmt.Errorf("lock quota row: %w", err)
	}
	return newSnapshot(included, bonus, used, unlimited), nil
}
