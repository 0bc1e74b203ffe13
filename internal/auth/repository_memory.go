package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"specsharp/internal/apperr"
)

type InMemoryKeyRepository struct {
	mu   sync.RWMutex
	keys map[string]*APIKey
}

func NewInMemoryKeyRepository() *InMemoryKeyRepository {
	return &InMemoryKeyRepository{
		keys: make(map[string]*APIKey),
	}
}

func (r *InMemoryKeyRepository) Save(_ context.Context, key *APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Generate UUID if not already set
	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}
	stored := *key
	r.keys[key.ID] = &stored
	return nil
}

func (r *InMemoryKeyRepository) FindActive(_ context.Context, orgID, email string) ([]*APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*APIKey
	for _, k := range r.keys {
		if k.OrgID == orgID && k.Email == email && k.RevokedAt == nil {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *InMemoryKeyRepository) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "api key %s not found", id)
	}
	now := time.Now()
	k.RevokedAt = &now
	return nil
}
