package contacts

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for contacts. Every call is owner-scoped.
type Repository interface {
	Create(ctx context.Context, c Contact) error
	Get(ctx context.Context, ownerID, id string) (Contact, error)
	Update(ctx context.Context, c Contact) error
	Delete(ctx context.Context, ownerID, id string) error
	// List returns contacts ordered by name, plus the unpaged total.
	List(ctx context.Context, ownerID string, f ListFilter) ([]Contact, int64, error)
	// ToggleFavorite flips is_favorite and returns the new value.
	ToggleFavorite(ctx context.Context, ownerID, id string, at time.Time) (bool, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Create(ctx context.Context, ownerID string, in Input) (Contact, error) {
	if ownerID == "" {
		return Contact{}, ErrInvalidArgument
	}
	in, err := normalize(in)
	if err != nil {
		return Contact{}, err
	}
	now := s.clock().UTC()
	c := Contact{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        in.Name,
		PhoneNumber: in.PhoneNumber,
		Email:       in.Email,
		Notes:       in.Notes,
		IsFavorite:  in.IsFavorite,
		Tags:        in.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Contact{}, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (Contact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Contact{}, ErrNotFound
	}
	return s.repo.Get(ctx, ownerID, id)
}

func (s *Service) Update(ctx context.Context, ownerID, id string, in Input) (Contact, error) {
	c, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return Contact{}, err
	}
	in, err = normalize(in)
	if err != nil {
		return Contact{}, err
	}
	c.Name = in.Name
	c.PhoneNumber = in.PhoneNumber
	c.Email = in.Email
	c.Notes = in.Notes
	c.IsFavorite = in.IsFavorite
	c.Tags = in.Tags
	c.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, c); err != nil {
		return Contact{}, err
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, ownerID, id)
}

func (s *Service) ToggleFavorite(ctx context.Context, ownerID, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, ErrNotFound
	}
	return s.repo.ToggleFavorite(ctx, ownerID, id, s.clock().UTC())
}

func (s *Service) List(ctx context.Context, ownerID string, f ListFilter) (Page, error) {
	f = f.normalized()
	items, total, err := s.repo.List(ctx, ownerID, f)
	if err != nil {
		return Page{}, err
	}
	views := make([]View, 0, len(items))
	for _, c := range items {
		views = append(views, c.View())
	}
	last := int((total + int64(f.PerPage) - 1) / int64(f.PerPage))
	if last < 1 {
		last = 1
	}
	return Page{Contacts: views, CurrentPage: f.Page, PerPage: f.PerPage, Total: total, LastPage: last}, nil
}
