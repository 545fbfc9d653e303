package routing

import (
	"context"
	"errors"

	"telephony-relay/internal/settings"
)

// Directory maps an inbound provider number to the owning configuration.
//
// Lookup is an exact match on the stored inbound number; no normalization is applied,
// so "+15550001111" and "15550001111" are different keys.
// A miss is not an error. Only storage failures are.
type Directory struct {
	Store Store
}

// Store is the lookup slice of settings.Repository the directory needs.
type Store interface {
	GetByInboundNumber(ctx context.Context, number string) (settings.Configuration, error)
}

func NewDirectory(store Store) *Directory {
	return &Directory{Store: store}
}

// Resolve returns (cfg, true, nil) when number is routed to an owner.
// Returns (settings.Configuration{}, false, nil) when nobody owns it.
func (d *Directory) Resolve(ctx context.Context, inboundNumber string) (settings.Configuration, bool, error) {
	if inboundNumber == "" || d.Store == nil {
		return settings.Configuration{}, false, nil
	}
	cfg, err := d.Store.GetByInboundNumber(ctx, inboundNumber)
	if err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			return settings.Configuration{}, false, nil
		}
		return settings.Configuration{}, false, err
	}
	return cfg, true, nil
}
