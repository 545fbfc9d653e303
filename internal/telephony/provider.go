package telephony

import (
	"context"
	"errors"
)

// Provider is the outbound REST surface of the telephony provider.
// It is constructed once and injected; tests substitute a fake.
type Provider interface {
	// PlaceCall starts a call from -> to that runs the given TwiML. Returns the call SID.
	PlaceCall(ctx context.Context, to, from, twiml string) (string, error)
	// SendMessage sends an SMS. Returns the message SID.
	SendMessage(ctx context.Context, to, from, body string) (string, error)
}

var ErrProviderNotConfigured = errors.New("telephony: provider credentials not configured")
