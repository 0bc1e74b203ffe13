package auth

import "context"

// KeyRepository defines the data-access contract.
// Service depends ONLY on this interface.
type KeyRepository interface {
	Save(ctx context.Context, key *APIKey) error
	FindActive(ctx context.Context, orgID, email string) ([]*APIKey, error)
	Revoke(ctx context.Context, id string) error
}
