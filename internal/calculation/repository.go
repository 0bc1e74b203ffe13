package calculation

import "context"

// Repository defines the data-access contract.
// Service depends ONLY on this interface.
type Repository interface {
	Save(ctx context.Context, run *Run) error
	FindByID(ctx context.Context, orgID, id string) (*Run, error)
}
