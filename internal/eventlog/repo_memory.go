package eventlog

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Insert(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepo) TransitionReceived(ctx context.Context, ownerID, correlationID string, status Status, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.events {
		e := &r.events[i]
		if e.OwnerID != ownerID || e.Status != StatusReceived {
			continue
		}
		if e.CallSID != correlationID && e.MessageSID != correlationID {
			continue
		}
		e.Status = status
		e.UpdatedAt = at
		n++
	}
	return n, nil
}

func (r *MemoryRepo) List(ctx context.Context, ownerID string, f Filter) ([]Event, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	search := strings.ToLower(f.Search)
	var matched []Event
	for _, e := range r.events {
		if e.OwnerID != ownerID {
			continue
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.From), search) &&
			!strings.Contains(strings.ToLower(e.To), search) &&
			!strings.Contains(strings.ToLower(e.Content), search) {
			continue
		}
		matched = append(matched, e)
	}
	// Newest first; later inserts win ties.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	page, per := f.Page, f.PerPage
	if page < 1 {
		page = 1
	}
	if per <= 0 {
		per = DefaultPerPage
	}
	start := (page - 1) * per
	if start >= len(matched) {
		return []Event{}, total, nil
	}
	end := start + per
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]Event, end-start)
	copy(out, matched[start:end])
	return out, total, nil
}

func (r *MemoryRepo) Count(ctx context.Context, ownerID string, f CountFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.events {
		if e.OwnerID != ownerID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if len(f.Types) > 0 && !containsType(f.Types, e.Type) {
			continue
		}
		n++
	}
	return n, nil
}

func (r *MemoryRepo) PurgeBefore(ctx context.Context, t time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.events[:0]
	var n int64
	for _, e := range r.events {
		if e.CreatedAt.Before(t) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return n, nil
}

// Events returns a copy of every stored event in insertion order.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func containsType(types []Type, t Type) bool {
	return slices.Contains(types, t)
}
