package eventlog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for the event ledger.
type Repository interface {
	Insert(ctx context.Context, e Event) error
	// TransitionReceived moves rows of ownerID whose call_sid or message_sid equals
	// correlationID from received to status. It returns the number of rows changed.
	TransitionReceived(ctx context.Context, ownerID, correlationID string, status Status, at time.Time) (int64, error)
	List(ctx context.Context, ownerID string, f Filter) ([]Event, int64, error)
	Count(ctx context.Context, ownerID string, f CountFilter) (int64, error)
	PurgeBefore(ctx context.Context, t time.Time) (int64, error)
}

var ErrInvalidEvent = errors.New("eventlog: invalid event")

// Service writes and reads the ledger.
// Writers on the inbound path treat failures as recoverable; see the webhook handler.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Record inserts an inbound event in StatusReceived.
func (s *Service) Record(ctx context.Context, d Draft) (string, error) {
	d.Status = StatusReceived
	return s.Append(ctx, d)
}

// Append inserts an event with the draft's own status.
func (s *Service) Append(ctx context.Context, d Draft) (string, error) {
	if s.repo == nil {
		return "", errors.New("eventlog: repository not configured")
	}
	if d.OwnerID == "" || !d.Type.Valid() || !d.Status.Valid() {
		return "", ErrInvalidEvent
	}
	now := s.clock().UTC()
	e := Event{
		ID:         uuid.NewString(),
		OwnerID:    d.OwnerID,
		Type:       d.Type,
		From:       d.From,
		To:         d.To,
		Content:    d.Content,
		CallSID:    d.CallSID,
		MessageSID: d.MessageSID,
		Status:     d.Status,
		Payload:    d.Payload,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		return "", err
	}
	return e.ID, nil
}

// Transition moves the owner's received rows for correlationID to status.
// No matching row, or an empty correlationID, is a no-op. Repeating it is harmless.
func (s *Service) Transition(ctx context.Context, correlationID, ownerID string, status Status) error {
	if correlationID == "" {
		return nil
	}
	if ownerID == "" || !status.Valid() {
		return ErrInvalidEvent
	}
	_, err := s.repo.TransitionReceived(ctx, ownerID, correlationID, status, s.clock().UTC())
	return err
}

func (s *Service) List(ctx context.Context, ownerID string, f Filter) (Page, error) {
	f = f.normalized()
	events, total, err := s.repo.List(ctx, ownerID, f)
	if err != nil {
		return Page{}, err
	}
	return newPage(events, f, total), nil
}

func (s *Service) Count(ctx context.Context, ownerID string, f CountFilter) (int64, error) {
	return s.repo.Count(ctx, ownerID, f)
}

// Recent returns the owner's n newest events.
func (s *Service) Recent(ctx context.Context, ownerID string, n int) ([]Event, error) {
	if n <= 0 {
		return []Event{}, nil
	}
	events, _, err := s.repo.List(ctx, ownerID, Filter{Page: 1, PerPage: n})
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}

// PurgeBefore deletes events created before t.
func (s *Service) PurgeBefore(ctx context.Context, t time.Time) (int64, error) {
	return s.repo.PurgeBefore(ctx, t.UTC())
}
