package telephony

import (
	"fmt"

	"telephony-relay/internal/settings"
)

// BuildVoiceResponse turns an owner's configuration into the voice document.
// A nil cfg means the dialled number is not routed to anyone.
// Panics while building are returned as errors so callers can fall back.
func BuildVoiceResponse(cfg *settings.Configuration) (doc VoiceDocument, err error) {
	defer func() {
		if p := recover(); p != nil {
			doc = VoiceDocument{}
			err = fmt.Errorf("telephony: voice response panic: %v", p)
		}
	}()

	if cfg == nil {
		doc.Say(MsgNotConfigured)
		return doc, nil
	}
	if cfg.Greeting != "" {
		doc.Say(cfg.Greeting)
	}
	if !appendDial(&doc, *cfg) {
		doc.Say(MsgNoForwarding)
	}
	return doc, nil
}

// BuildOutboundCallDocument is the document attached to an outbound call:
// dial the configured target, no greeting. ok is false when there is no target.
func BuildOutboundCallDocument(cfg settings.Configuration) (doc VoiceDocument, ok bool) {
	ok = appendDial(&doc, cfg)
	return doc, ok
}

func appendDial(doc *VoiceDocument, cfg settings.Configuration) bool {
	switch t := cfg.Target.(type) {
	case settings.PhoneTarget:
		if t.Number == "" {
			return false
		}
		doc.DialNumber(t.Number)
		return true
	case settings.SIPTarget:
		if t.Endpoint == "" {
			return false
		}
		doc.DialSIP(SIPURIWithCredentials(t.Endpoint, t.Username, t.Password))
		return true
	default:
		return false
	}
}

// BuildSMSResponse is always the empty acknowledgment.
func BuildSMSResponse() MessagingDocument {
	return MessagingDocument{}
}
