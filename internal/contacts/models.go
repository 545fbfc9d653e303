package contacts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
)

var (
	ErrNotFound        = errors.New("contacts: not found")
	ErrInvalidArgument = errors.New("contacts: invalid argument")
)

// Contact is an entry in an owner's address book.
type Contact struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number"`
	Email       string    `json:"email,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	IsFavorite  bool      `json:"is_favorite"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FormattedPhone renders North American numbers for display:
// 11 digits with a leading 1 as "+1 (xxx) xxx-xxxx", 10 digits as "(xxx) xxx-xxxx".
// Anything else is returned as stored.
func (c Contact) FormattedPhone() string {
	var b strings.Builder
	for _, r := range c.PhoneNumber {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	switch {
	case len(d) == 11 && d[0] == '1':
		return fmt.Sprintf("+1 (%s) %s-%s", d[1:4], d[4:7], d[7:11])
	case len(d) == 10:
		return fmt.Sprintf("(%s) %s-%s", d[0:3], d[3:6], d[6:10])
	default:
		return c.PhoneNumber
	}
}

// Initials is the upper-cased first letter of up to the first two words of the name.
func (c Contact) Initials() string {
	var out []rune
	for _, w := range strings.Split(c.Name, " ") {
		if w == "" {
			continue
		}
		first := []rune(w)[0]
		out = append(out, unicode.ToUpper(first))
		if len(out) == 2 {
			break
		}
	}
	return string(out)
}

// View adds the display fields to a Contact.
type View struct {
	Contact
	FormattedPhone string `json:"formatted_phone"`
	Initials       string `json:"initials"`
}

func (c Contact) View() View {
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return View{Contact: c, FormattedPhone: c.FormattedPhone(), Initials: c.Initials()}
}

// Input is the writable part of a Contact.
type Input struct {
	Name        string   `json:"name" binding:"required,max=255"`
	PhoneNumber string   `json:"phone_number" binding:"required,max=20"`
	Email       string   `json:"email" binding:"omitempty,max=255,email"`
	Notes       string   `json:"notes" binding:"max=1000"`
	IsFavorite  bool     `json:"is_favorite"`
	Tags        []string `json:"tags" binding:"dive,max=50"`
}

// ListFilter narrows List. Search matches name, phone or email.
type ListFilter struct {
	Search        string
	FavoritesOnly bool
	Page          int
	PerPage       int
}

const DefaultPerPage = 20

func (f ListFilter) normalized() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage <= 0 || f.PerPage > 100 {
		f.PerPage = DefaultPerPage
	}
	return f
}

type Page struct {
	Contacts    []View `json:"data"`
	CurrentPage int    `json:"current_page"`
	PerPage     int    `json:"per_page"`
	Total       int64  `json:"total"`
	LastPage    int    `json:"last_page"`
}

// ValidationError maps field names to messages. It matches ErrInvalidArgument.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "contacts: invalid contact (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }
