package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"specsharp/internal/apperr"
)

type PostgresKeyRepository struct {
	db *pgxpool.Pool
}

func NewPostgresKeyRepository(db *pgxpool.Pool) *PostgresKeyRepository {
	return &PostgresKeyRepository{db: db}
}

func (r *PostgresKeyRepository) Save(ctx context.Context, key *APIKey) error {
	// Generate UUID if not already set
	if key.ID == "" {
		key.ID = uuid.New().String()
	}

	query := `
		INSERT INTO api_keys (id, org_id, email, role, key_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		key.ID, key.OrgID, key.Email, key.Role, key.KeyHash,
	).Scan(&key.CreatedAt)
	if err != nil {
		return fmt.Errorf("save api key: %w", err)
	}
	return nil
}

func (r *PostgresKeyRepository) FindActive(ctx context.Context, orgID, email string) ([]*APIKey, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, org_id, email, role, key_hash, created_at
		FROM api_keys
		WHERE org_id = $1 AND email = $2 AND revoked_at IS NULL
		ORDER BY created_at DESC
	`, orgID, email)
	if err != nil {
		return nil, fmt.Errorf("find api keys: %w", err)
	}
	defer rows.Close()

	var out []*APIKey
	for rows.Next() {
		k := &APIKey{}
		if err := rows.Scan(&k.ID, &k.OrgID, &k.Email, &k.Role, &k.KeyHash, &k.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *PostgresKeyRepository) Revoke(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE api_keys
		SET revoked_at = now()
		WHERE id = $1 AND revoked_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.New(apperr.CodeNotFound, "api key %s not found", id)
	}
	return nil
}
