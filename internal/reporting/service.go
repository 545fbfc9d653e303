package reporting

import (
	"context"
	"errors"
	"fmt"

	"telephony-relay/internal/eventlog"
	"telephony-relay/internal/settings"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// EventSource is the read side of the event ledger.
type EventSource interface {
	Count(ctx context.Context, ownerID string, f eventlog.CountFilter) (int64, error)
	Recent(ctx context.Context, ownerID string, n int) ([]eventlog.Event, error)
}

// SettingsSource reports the owner's telephony configuration.
type SettingsSource interface {
	Get(ctx context.Context, ownerID string) (settings.Configuration, error)
}

type Service struct {
	events   EventSource
	settings SettingsSource
}

func NewService(events EventSource, settings SettingsSource) *Service {
	return &Service{events: events, settings: settings}
}

// Dashboard aggregates the owner's ledger. Inbound calls count as calls;
// inbound and forwarded SMS count as SMS. Errors span every type.
func (s *Service) Dashboard(ctx context.Context, ownerID string) (Dashboard, error) {
	if ownerID == "" {
		return Dashboard{}, ErrInvalidRequest
	}
	if s.events == nil {
		return Dashboard{}, errors.New("reporting: event source not configured")
	}

	var (
		out Dashboard
		err error
	)
	out.TotalCalls, err = s.events.Count(ctx, ownerID, eventlog.CountFilter{Types: []eventlog.Type{eventlog.TypeVoice}})
	if err != nil {
		return Dashboard{}, fmt.Errorf("reporting: count calls: %w", err)
	}
	out.TotalSMS, err = s.events.Count(ctx, ownerID, eventlog.CountFilter{Types: []eventlog.Type{eventlog.TypeSMS, eventlog.TypeSMSForward}})
	if err != nil {
		return Dashboard{}, fmt.Errorf("reporting: count sms: %w", err)
	}
	out.TotalErrors, err = s.events.Count(ctx, ownerID, eventlog.CountFilter{Status: eventlog.StatusError})
	if err != nil {
		return Dashboard{}, fmt.Errorf("reporting: count errors: %w", err)
	}
	out.RecentActivity, err = s.events.Recent(ctx, ownerID, RecentActivityLimit)
	if err != nil {
		return Dashboard{}, fmt.Errorf("reporting: recent activity: %w", err)
	}

	if s.settings != nil {
		cfg, err := s.settings.Get(ctx, ownerID)
		switch {
		case err == nil:
			out.TelephonyConfigured = cfg.InboundNumber != ""
		case errors.Is(err, settings.ErrNotFound):
		default:
			return Dashboard{}, fmt.Errorf("reporting: load settings: %w", err)
		}
	}
	return out, nil
}
