package eventlog

import (
	"encoding/json"
	"time"
)

// Event is one row of the webhook/dispatch ledger.
//
// Invariants:
// - Inbound rows are created in StatusReceived and only ever leave it once.
// - CallSID/MessageSID carry the provider correlation id for the row.
// - Payload is the provider's fields, stored verbatim.
type Event struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	Type       Type            `json:"type"`
	From       string          `json:"from_number"`
	To         string          `json:"to_number"`
	Content    string          `json:"content"`
	CallSID    string          `json:"call_sid,omitempty"`
	MessageSID string          `json:"message_sid,omitempty"`
	Status     Status          `json:"status"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type Type string

const (
	TypeVoice         Type = "voice"
	TypeSMS           Type = "sms"
	TypeSMSForward    Type = "sms_forward"
	TypeVoiceOutbound Type = "voice_outbound"
	TypeSMSOutbound   Type = "sms_outbound"
)

func (t Type) Valid() bool {
	switch t {
	case TypeVoice, TypeSMS, TypeSMSForward, TypeVoiceOutbound, TypeSMSOutbound:
		return true
	}
	return false
}

type Status string

const (
	StatusReceived  Status = "received"
	StatusProcessed Status = "processed"
	StatusForwarded Status = "forwarded"
	StatusSent      Status = "sent"
	StatusError     Status = "error"
)

func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusProcessed, StatusForwarded, StatusSent, StatusError:
		return true
	}
	return false
}

// Draft is the caller-supplied part of an Event.
type Draft struct {
	OwnerID    string
	Type       Type
	From       string
	To         string
	Content    string
	CallSID    string
	MessageSID string
	Status     Status
	Payload    json.RawMessage
}

// Filter narrows List. Zero values mean "any".
type Filter struct {
	Type    Type
	Status  Status
	Search  string
	Page    int
	PerPage int
}

// CountFilter narrows Count. Types is an OR set.
type CountFilter struct {
	Types  []Type
	Status Status
}

// Page is one page of List results, newest first.
type Page struct {
	Events      []Event `json:"data"`
	CurrentPage int     `json:"current_page"`
	PerPage     int     `json:"per_page"`
	Total       int64   `json:"total"`
	LastPage    int     `json:"last_page"`
}

const DefaultPerPage = 20

func (f Filter) normalized() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage <= 0 || f.PerPage > 100 {
		f.PerPage = DefaultPerPage
	}
	return f
}

func newPage(events []Event, f Filter, total int64) Page {
	last := int((total + int64(f.PerPage) - 1) / int64(f.PerPage))
	if last < 1 {
		last = 1
	}
	if events == nil {
		events = []Event{}
	}
	return Page{Events: events, CurrentPage: f.Page, PerPage: f.PerPage, Total: total, LastPage: last}
}
