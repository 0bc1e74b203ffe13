package quota

import "context"

// Snapshot is an organization's run allowance after a check.
type Snapshot struct {
	Included  int  `json:"included"`
	Bonus     int  `json:"bonus"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited"`
}

func newSnapshot(included, bonus, used int, unlimited bool) Snapshot {
	return Snapshot{
		Included:  included,
		Bonus:     bonus,
		Used:      used,
		Remaining: max(included+bonus-used, 0),
		Unlimited: unlimited,
	}
}

// Exhausted reports whether another run would exceed the allowance.
func (s Snapshot) Exhausted() bool {
	return !s.Unlimited && s.Remaining <= 0
}

// Repository is the atomic store behind the quota. CheckAndConsume must
// serialize per organization: lock, read, reject when exhausted, else
// increment used and record the event.
type Repository interface {
	CheckAndConsume(ctx context.Context, orgID, email string) (Snapshot, error)
	Get(ctx context.Context, orgID string) (Snapshot, error)
}
