package dispatch

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind selects the intent handler.
type Kind string

const (
	KindCall Kind = "call"
	KindSMS  Kind = "sms"
)

var ErrInvalidIntent = errors.New("dispatch: invalid intent")

// ContactRef is the slice of a contact an intent carries, so workers need no contact lookup.
type ContactRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// Intent is a request to place a call or send an SMS to a contact on an owner's behalf.
// ID is the idempotency key: a redelivered intent is dispatched at most once.
type Intent struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	OwnerID     string     `json:"owner_id"`
	Contact     ContactRef `json:"contact"`
	Body        string     `json:"body,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
}

func NewCallIntent(ownerID string, contact ContactRef, now time.Time) Intent {
	return Intent{ID: uuid.NewString(), Kind: KindCall, OwnerID: ownerID, Contact: contact, RequestedAt: now.UTC()}
}

func NewSMSIntent(ownerID string, contact ContactRef, body string, now time.Time) Intent {
	return Intent{ID: uuid.NewString(), Kind: KindSMS, OwnerID: ownerID, Contact: contact, Body: body, RequestedAt: now.UTC()}
}

func (i Intent) Validate() error {
	if i.ID == "" || i.OwnerID == "" || i.Contact.PhoneNumber == "" {
		return ErrInvalidIntent
	}
	switch i.Kind {
	case KindCall:
		return nil
	case KindSMS:
		if i.Body == "" {
			return ErrInvalidIntent
		}
		return nil
	default:
		return ErrInvalidIntent
	}
}
