package telephony

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// VoiceWebhook is the subset of Twilio voice webhook fields the relay reads.
// Twilio posts application/x-www-form-urlencoded.
type VoiceWebhook struct {
	CallSid    string
	AccountSid string
	From       string
	To         string
	Direction  string
	CallStatus string

	// Payload is every posted field, kept verbatim for the ledger.
	Payload json.RawMessage
}

// SMSWebhook is the subset of Twilio messaging webhook fields the relay reads.
type SMSWebhook struct {
	MessageSid string
	AccountSid string
	From       string
	To         string
	Body       string
	NumMedia   string

	Payload json.RawMessage
}

func ParseVoiceWebhook(r *http.Request) (VoiceWebhook, error) {
	if err := r.ParseForm(); err != nil {
		return VoiceWebhook{}, err
	}
	return VoiceWebhook{
		CallSid:    r.PostFormValue("CallSid"),
		AccountSid: r.PostFormValue("AccountSid"),
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		Direction:  r.PostFormValue("Direction"),
		CallStatus: r.PostFormValue("CallStatus"),
		Payload:    formPayload(r.PostForm),
	}, nil
}

func ParseSMSWebhook(r *http.Request) (SMSWebhook, error) {
	if err := r.ParseForm(); err != nil {
		return SMSWebhook{}, err
	}
	return SMSWebhook{
		MessageSid: r.PostFormValue("MessageSid"),
		AccountSid: r.PostFormValue("AccountSid"),
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		Body:       r.PostFormValue("Body"),
		NumMedia:   r.PostFormValue("NumMedia"),
		Payload:    formPayload(r.PostForm),
	}, nil
}

// formPayload encodes posted fields as a JSON object. Repeated keys become arrays.
func formPayload(form url.Values) json.RawMessage {
	m := make(map[string]any, len(form))
	for k, vs := range form {
		if len(vs) == 1 {
			m[k] = vs[0]
			continue
		}
		m[k] = vs
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return raw
}
