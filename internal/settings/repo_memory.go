package settings

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository useful for tests and local runs.
// It enforces the same inbound-number uniqueness as the Postgres index.
type MemoryRepo struct {
	mu      sync.Mutex
	byOwner map[string]Configuration
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byOwner: map[string]Configuration{}}
}

func (r *MemoryRepo) GetByOwner(ctx context.Context, ownerID string) (Configuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byOwner[ownerID]
	if !ok {
		return Configuration{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetByInboundNumber(ctx context.Context, number string) (Configuration, error) {
	if number == "" {
		return Configuration{}, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byOwner {
		if c.InboundNumber == number {
			return c, nil
		}
	}
	return Configuration{}, ErrNotFound
}

func (r *MemoryRepo) Upsert(ctx context.Context, c Configuration) (Configuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upsertLocked(c)
}

// Modify holds the repo lock across fn.
func (r *MemoryRepo) Modify(ctx context.Context, ownerID string, fn ModifyFunc) (Configuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var current *Configuration
	if prev, ok := r.byOwner[ownerID]; ok {
		current = &prev
	}
	next, err := fn(current)
	if err != nil {
		return Configuration{}, err
	}
	return r.upsertLocked(next)
}

func (r *MemoryRepo) upsertLocked(c Configuration) (Configuration, error) {
	if c.InboundNumber != "" {
		for owner, other := range r.byOwner {
			if owner != c.OwnerID && other.InboundNumber == c.InboundNumber {
				return Configuration{}, ErrNumberTaken
			}
		}
	}
	if prev, ok := r.byOwner[c.OwnerID]; ok {
		c.ID = prev.ID
		c.CreatedAt = prev.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = c.UpdatedAt
	}
	r.byOwner[c.OwnerID] = c
	return c, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byOwner[ownerID]; !ok {
		return ErrNotFound
	}
	delete(r.byOwner, ownerID)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]Configuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Configuration, 0, len(r.byOwner))
	for _, c := range r.byOwner {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out, nil
}

func (r *MemoryRepo) DeleteAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.byOwner))
	r.byOwner = map[string]Configuration{}
	return n, nil
}
