package settings

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service owns validation and persistence of per-owner configurations.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Get(ctx context.Context, ownerID string) (Configuration, error) {
	return s.repo.GetByOwner(ctx, ownerID)
}

// GetByInboundNumber finds the configuration routed to number, exact match.
func (s *Service) GetByInboundNumber(ctx context.Context, number string) (Configuration, error) {
	return s.repo.GetByInboundNumber(ctx, number)
}

// Save validates in and stores it as the owner's configuration.
// A nil SIP password keeps the stored one when the SIP username is unchanged.
// Nothing is persisted when validation fails.
func (s *Service) Save(ctx context.Context, ownerID string, in Input) (Configuration, error) {
	return s.repo.Modify(ctx, ownerID, func(current *Configuration) (Configuration, error) {
		if current != nil {
			in = keepStoredPassword(in, *current)
		}
		c, err := NewConfiguration(ownerID, in)
		if err != nil {
			return Configuration{}, err
		}
		c.ID = uuid.NewString()
		c.UpdatedAt = s.clock().UTC()
		return c, nil
	})
}

// keepStoredPassword fills a nil SIP password from current when the trimmed username matches.
func keepStoredPassword(in Input, current Configuration) Input {
	if in.SIPPassword != nil || CallAction(strings.TrimSpace(in.CallAction)) != CallActionDialSIP {
		return in
	}
	username := strings.TrimSpace(in.SIPUsername)
	if prev, ok := current.SIP(); ok && username != "" && prev.Username == username && prev.Password != "" {
		pw := prev.Password
		in.SIPPassword = &pw
	}
	return in
}

func (s *Service) Delete(ctx context.Context, ownerID string) error {
	return s.repo.Delete(ctx, ownerID)
}

func (s *Service) List(ctx context.Context) ([]Configuration, error) {
	return s.repo.List(ctx)
}

func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	return s.repo.DeleteAll(ctx)
}
