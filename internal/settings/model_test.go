package settings

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestNewConfiguration_PhoneTarget(t *testing.T) {
	c, err := NewConfiguration("u1", Input{
		InboundNumber: " +15550001111 ",
		CallAction:    "dial_phone",
		PhoneNumber:   "+15552223333",
		SIPEndpoint:   "sip:ignored@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "+15550001111", c.InboundNumber)
	assert.Equal(t, CallActionDialPhone, c.CallAction())
	p, ok := c.Phone()
	require.True(t, ok)
	assert.Equal(t, "+15552223333", p.Number)
	_, isSIP := c.SIP()
	assert.False(t, isSIP)
}

func TestNewConfiguration_RejectsPartialSIPCredentials(t *testing.T) {
	cases := []Input{
		{CallAction: "dial_sip", SIPEndpoint: "sip:a@b.com", SIPUsername: "alice"},
		{CallAction: "dial_sip", SIPEndpoint: "sip:a@b.com", SIPPassword: strp("secret")},
	}
	for _, in := range cases {
		_, err := NewConfiguration("u1", in)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
		assert.Contains(t, verr.Fields, "sip_username")
		assert.Contains(t, verr.Fields, "sip_password")
	}
}

func TestNewConfiguration_SIPWithCredentials(t *testing.T) {
	c, err := NewConfiguration("u1", Input{
		CallAction:  "dial_sip",
		SIPEndpoint: "sip:desk@pbx.example.com",
		SIPUsername: "alice",
		SIPPassword: strp("secret"),
	})
	require.NoError(t, err)
	sip, ok := c.SIP()
	require.True(t, ok)
	assert.True(t, sip.HasCredentials())
}

func TestNewConfiguration_CallActionRequired(t *testing.T) {
	_, err := NewConfiguration("u1", Input{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "call_action")

	_, err = NewConfiguration("u1", Input{CallAction: "voicemail"})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "call_action")
}

func TestNewConfiguration_FieldLimits(t *testing.T) {
	_, err := NewConfiguration("u1", Input{
		CallAction:  "dial_phone",
		PhoneNumber: strings.Repeat("1", 21),
		Greeting:    strings.Repeat("g", 501),
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "phone_number")
	assert.Contains(t, verr.Fields, "greeting")
}

func TestSMSDestination(t *testing.T) {
	c := Configuration{Target: PhoneTarget{Number: "+1555"}, SMSForwardingEnabled: true}
	assert.Equal(t, "+1555", c.SMSDestination())
	assert.True(t, c.ShouldForwardSMS())

	c.SMSForwardTo = "+1666"
	assert.Equal(t, "+1666", c.SMSDestination())

	sip := Configuration{Target: SIPTarget{Endpoint: "sip:x@y"}, SMSForwardingEnabled: true}
	assert.False(t, sip.ShouldForwardSMS())
}

func TestView_HidesPassword(t *testing.T) {
	c := Configuration{OwnerID: "u1", Target: SIPTarget{Endpoint: "sip:x@y", Username: "alice", Password: "secret"}}
	v := c.View()
	assert.True(t, v.HasSIPPassword)
	assert.Equal(t, "alice", v.SIPUsername)
	assert.NotContains(t, strings.ToLower(v.SIPEndpoint+v.SIPUsername), "secret")
}
