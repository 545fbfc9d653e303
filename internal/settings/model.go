package settings

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("settings: not found")
	ErrNumberTaken = errors.New("settings: inbound number already assigned")
)

// CallAction names the branch of the call target union.
type CallAction string

const (
	CallActionDialPhone CallAction = "dial_phone"
	CallActionDialSIP   CallAction = "dial_sip"
)

// Target is where inbound calls are sent: a PhoneTarget or a SIPTarget.
type Target interface {
	Action() CallAction
	isTarget()
}

type PhoneTarget struct {
	Number string
}

func (PhoneTarget) Action() CallAction { return CallActionDialPhone }
func (PhoneTarget) isTarget()          {}

// SIPTarget carries optional digest credentials. They are either both set or both empty.
type SIPTarget struct {
	Endpoint string
	Username string
	Password string
}

func (SIPTarget) Action() CallAction { return CallActionDialSIP }
func (SIPTarget) isTarget()          {}

// HasCredentials reports whether both username and password are present.
func (t SIPTarget) HasCredentials() bool {
	return t.Username != "" && t.Password != ""
}

// Configuration is one owner's routing setup. Build it with NewConfiguration.
type Configuration struct {
	ID            string
	OwnerID       string
	InboundNumber string
	Target        Target

	SMSForwardingEnabled bool
	SMSForwardTo         string
	Greeting             string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CallAction returns the active branch, or "" when no target is set.
func (c Configuration) CallAction() CallAction {
	if c.Target == nil {
		return ""
	}
	return c.Target.Action()
}

// Phone returns the phone target, if that is the active branch.
func (c Configuration) Phone() (PhoneTarget, bool) {
	t, ok := c.Target.(PhoneTarget)
	return t, ok
}

// SIP returns the SIP target, if that is the active branch.
func (c Configuration) SIP() (SIPTarget, bool) {
	t, ok := c.Target.(SIPTarget)
	return t, ok
}

// SMSDestination is where inbound SMS are forwarded: SMSForwardTo, else the phone target.
func (c Configuration) SMSDestination() string {
	if c.SMSForwardTo != "" {
		return c.SMSForwardTo
	}
	if p, ok := c.Phone(); ok {
		return p.Number
	}
	return ""
}

// ShouldForwardSMS reports whether inbound SMS have somewhere to go.
func (c Configuration) ShouldForwardSMS() bool {
	return c.SMSForwardingEnabled && c.SMSDestination() != ""
}

// Input is the user-supplied form of a Configuration.
type Input struct {
	InboundNumber string `json:"inbound_number"`
	CallAction    string `json:"call_action"`
	PhoneNumber   string `json:"phone_number"`
	SIPEndpoint   string `json:"sip_endpoint"`
	SIPUsername   string `json:"sip_username"`
	// SIPPassword nil keeps the stored password on update.
	SIPPassword          *string `json:"sip_password"`
	SMSForwardingEnabled bool    `json:"sms_forwarding_enabled"`
	SMSForwardTo         string  `json:"sms_forward_to"`
	Greeting             string  `json:"greeting"`
}

const (
	maxPhoneLen       = 20
	maxSIPEndpointLen = 255
	maxSIPUsernameLen = 100
	maxSIPPasswordLen = 255
	maxGreetingLen    = 500

	msgSIPPair = "Both username and password are required for SIP authentication."
)

// ValidationError maps field names to messages.
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
	return "settings: invalid configuration (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

// NewConfiguration validates in and builds the owner's Configuration.
// It is the only way to produce a Target, so a half-configured SIP login never exists.
func NewConfiguration(ownerID string, in Input) (Configuration, error) {
	verr := &ValidationError{}

	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		verr.add("owner_id", "The owner is required.")
	}

	inbound := strings.TrimSpace(in.InboundNumber)
	phone := strings.TrimSpace(in.PhoneNumber)
	endpoint := strings.TrimSpace(in.SIPEndpoint)
	username := strings.TrimSpace(in.SIPUsername)
	password := ""
	if in.SIPPassword != nil {
		password = *in.SIPPassword
	}
	forwardTo := strings.TrimSpace(in.SMSForwardTo)
	greeting := strings.TrimSpace(in.Greeting)

	maxLen(verr, "inbound_number", inbound, maxPhoneLen)
	maxLen(verr, "phone_number", phone, maxPhoneLen)
	maxLen(verr, "sip_endpoint", endpoint, maxSIPEndpointLen)
	maxLen(verr, "sip_username", username, maxSIPUsernameLen)
	maxLen(verr, "sip_password", password, maxSIPPasswordLen)
	maxLen(verr, "sms_forward_to", forwardTo, maxPhoneLen)
	maxLen(verr, "greeting", greeting, maxGreetingLen)

	var target Target
	switch CallAction(strings.TrimSpace(in.CallAction)) {
	case CallActionDialPhone:
		target = PhoneTarget{Number: phone}
	case CallActionDialSIP:
		if (username == "") != (password == "") {
			verr.add("sip_username", msgSIPPair)
			verr.add("sip_password", msgSIPPair)
		}
		target = SIPTarget{Endpoint: endpoint, Username: username, Password: password}
	case "":
		verr.add("call_action", "The call action field is required.")
	default:
		verr.add("call_action", "The call action must be dial_phone or dial_sip.")
	}

	if len(verr.Fields) > 0 {
		return Configuration{}, verr
	}
	return Configuration{
		OwnerID:              ownerID,
		InboundNumber:        inbound,
		Target:               target,
		SMSForwardingEnabled: in.SMSForwardingEnabled,
		SMSForwardTo:         forwardTo,
		Greeting:             greeting,
	}, nil
}

func maxLen(verr *ValidationError, field, v string, n int) {
	if len([]rune(v)) > n {
		verr.add(field, "The "+strings.ReplaceAll(field, "_", " ")+" may not be greater than "+strconv.Itoa(n)+" characters.")
	}
}

// View is the API/CLI representation. The SIP password is reduced to a flag.
type View struct {
	OwnerID              string     `json:"owner_id"`
	InboundNumber        string     `json:"inbound_number"`
	CallAction           CallAction `json:"call_action"`
	PhoneNumber          string     `json:"phone_number,omitempty"`
	SIPEndpoint          string     `json:"sip_endpoint,omitempty"`
	SIPUsername          string     `json:"sip_username,omitempty"`
	HasSIPPassword       bool       `json:"has_sip_password"`
	SMSForwardingEnabled bool       `json:"sms_forwarding_enabled"`
	SMSForwardTo         string     `json:"sms_forward_to,omitempty"`
	Greeting             string     `json:"greeting,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (c Configuration) View() View {
	v := View{
		OwnerID:              c.OwnerID,
		InboundNumber:        c.InboundNumber,
		CallAction:           c.CallAction(),
		SMSForwardingEnabled: c.SMSForwardingEnabled,
		SMSForwardTo:         c.SMSForwardTo,
		Greeting:             c.Greeting,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
	switch t := c.Target.(type) {
	case PhoneTarget:
		v.PhoneNumber = t.Number
	case SIPTarget:
		v.SIPEndpoint = t.Endpoint
		v.SIPUsername = t.Username
		v.HasSIPPassword = t.Password != ""
	}
	return v
}
