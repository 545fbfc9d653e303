package telephony

import (
	"strconv"

	"github.com/twilio/twilio-go/twiml"
)

const (
	MsgNotConfigured = "This number is not configured. Please contact support."
	MsgNoForwarding  = "No forwarding configured. Please contact support."
	MsgError         = "An error occurred. Please try again later."

	// DialTimeoutSeconds is how long a forwarded call rings before giving up.
	DialTimeoutSeconds = 30

	ContentTypeXML = "text/xml"
)

// VoiceDocument is an ordered list of voice verbs.
type VoiceDocument struct {
	verbs []twiml.Element
}

func (d *VoiceDocument) Say(text string) {
	d.verbs = append(d.verbs, twiml.VoiceSay{Message: text})
}

func (d *VoiceDocument) DialNumber(number string) {
	d.dial(twiml.VoiceNumber{PhoneNumber: number})
}

func (d *VoiceDocument) DialSIP(uri string) {
	d.dial(twiml.VoiceSip{SipUrl: uri})
}

func (d *VoiceDocument) dial(noun twiml.Element) {
	d.verbs = append(d.verbs, twiml.VoiceDial{
		Timeout:       strconv.Itoa(DialTimeoutSeconds),
		InnerElements: []twiml.Element{noun},
	})
}

// Len is the number of verbs.
func (d VoiceDocument) Len() int { return len(d.verbs) }

func (d VoiceDocument) Render() (string, error) {
	return twiml.Voice(d.verbs)
}

// MessagingDocument is the empty SMS acknowledgment: no reply is sent.
type MessagingDocument struct{}

func (MessagingDocument) Render() (string, error) {
	return twiml.Messages(nil)
}

// FallbackVoiceDocument is the apology played when anything goes wrong.
func FallbackVoiceDocument() VoiceDocument {
	var d VoiceDocument
	d.Say(MsgError)
	return d
}
