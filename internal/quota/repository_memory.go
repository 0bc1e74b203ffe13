package quota

import (
	"context"
	"sync"
	"time"

	"specsharp/internal/apperr"
)

// Event is one consumed run.
type Event struct {
	OrgID string
	Email string
	At    time.Time
}

type account struct {
	// lock is a one-slot semaphore so waiters can give up on ctx.
	lock      chan struct{}
	included  int
	bonus     int
	used      int
	unlimited bool
	events    []Event
}

// MemoryRepository keeps allowances in process. Each organization has its
// own lock; organizations never contend with each other.
type MemoryRepository struct {
	mu              sync.Mutex
	defaultIncluded int
	accounts        map[string]*account
	now             func() time.Time
}

func NewMemoryRepository(defaultIncluded int) *MemoryRepository {
	return &MemoryRepository{
		defaultIncluded: defaultIncluded,
		accounts:        make(map[string]*account),
		now:             time.Now,
	}
}

func (r *MemoryRepository) account(orgID string) *account {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[orgID]
	if !ok {
		a = &account{lock: make(chan struct{}, 1), included: r.defaultIncluded}
		r.accounts[orgID] = a
	}
	return a
}

func (a *account) acquire(ctx context.Context) error {
	select {
	case a.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *account) release() { <-a.lock }

func (a *account) snapshot() Snapshot {
	return newSnapshot(a.included, a.bonus, a.used, a.unlimited)
}

// SetAllowance replaces an organization's plan.
func (r *MemoryRepository) SetAllowance(ctx context.Context, orgID string, included, bonus int, unlimited bool) error {
	a := r.account(orgID)
	if err := a.acquire(ctx); err != nil {
		return err
	}
	defer a.release()
	a.included, a.bonus, a.unlimited = included, bonus, unlimited
	return nil
}

func (r *MemoryRepository) CheckAndConsume(ctx context.Context, orgID, email string) (Snapshot, error) {
	a := r.account(orgID)
	if err := a.acquire(ctx); err != nil {
		return Snapshot{}, err
	}
	defer a.release()

	snap := a.snapshot()
	if snap.Exhausted() {
		return snap, apperr.New(apperr.CodeQuotaExceeded, "run quota exhausted")
	}
	a.used++
	a.events = append(a.events, Event{OrgID: orgID, Email: email, At: r.now()})
	return a.snapshot(), nil
}

func (r *MemoryRepository) Get(ctx context.Context, orgID string) (Snapshot, error) {
	a := r.account(orgID)
	if err := a.acquire(ctx); err != nil {
		return Snapshot{}, err
	}
	defer a.release()
	return a.snapshot(), nil
}

// Events returns a copy of the usage log for orgID.
func (r *MemoryRepository) Events(orgID string) []Event {
	a := r.account(orgID)
	a.lock <- struct{}{}
	defer a.release()
	return append([]Event(nil), a.events...)
}
