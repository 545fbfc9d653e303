package contacts

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu   sync.Mutex
	byID map[string]Contact
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{byID: map[string]Contact{}} }

func (r *MemoryRepo) Create(ctx context.Context, c Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = clone(c)
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, ownerID, id string) (Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.OwnerID != ownerID {
		return Contact{}, ErrNotFound
	}
	return clone(c), nil
}

func (r *MemoryRepo) Update(ctx context.Context, c Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.byID[c.ID]
	if !ok || prev.OwnerID != c.OwnerID {
		return ErrNotFound
	}
	r.byID[c.ID] = clone(c)
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *MemoryRepo) ToggleFavorite(ctx context.Context, ownerID, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.OwnerID != ownerID {
		return false, ErrNotFound
	}
	c.IsFavorite = !c.IsFavorite
	c.UpdatedAt = at
	r.byID[id] = c
	return c.IsFavorite, nil
}

func (r *MemoryRepo) List(ctx context.Context, ownerID string, f ListFilter) ([]Contact, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	search := strings.ToLower(f.Search)
	var matched []Contact
	for _, c := range r.byID {
		if c.OwnerID != ownerID {
			continue
		}
		if f.FavoritesOnly && !c.IsFavorite {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.Contains(strings.ToLower(c.PhoneNumber), search) &&
			!strings.Contains(strings.ToLower(c.Email), search) {
			continue
		}
		matched = append(matched, clone(c))
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := strings.ToLower(matched[i].Name), strings.ToLower(matched[j].Name)
		if a != b {
			return a < b
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	start := (f.Page - 1) * f.PerPage
	if start < 0 {
		start = 0
	}
	if start >= len(matched) {
		return []Contact{}, total, nil
	}
	end := min(start+f.PerPage, len(matched))
	return matched[start:end], total, nil
}

func clone(c Contact) Contact {
	if c.Tags != nil {
		c.Tags = append([]string(nil), c.Tags...)
	}
	return c
}
