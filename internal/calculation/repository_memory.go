package calculation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"specsharp/internal/apperr"
)

type InMemoryRepository struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{runs: make(map[string]*Run)}
}

func (r *InMemoryRepository) Save(_ context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	stored := *run
	r.runs[run.ID] = &stored
	return nil
}

func (r *InMemoryRepository) FindByID(_ context.Context, orgID, id string) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok || run.OrgID != orgID {
		return nil, apperr.New(apperr.CodeNotFound, "calculation %s not found", id)
	}
	cp := *run
	return &cp, nil
}

// update lets tests simulate edits made to a stored run.
func (r *InMemoryRepository) update(id string, fn func(*Run)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[id]; ok {
		fn(run)
	}
}
