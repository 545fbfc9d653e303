package telephony_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telephony-relay/internal/dispatch"
	"telephony-relay/internal/eventlog"
	"telephony-relay/internal/routing"
	"telephony-relay/internal/settings"
	"telephony-relay/internal/telephony"
)

type smsProvider struct {
	mu   sync.Mutex
	sent []string
}

func (p *smsProvider) PlaceCall(ctx context.Context, to, from, twiml string) (string, error) {
	return "CA1", nil
}

func (p *smsProvider) SendMessage(ctx context.Context, to, from, body string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, to+"|"+from+"|"+body)
	return "SM-fwd", nil
}

func TestInboundSMS_ForwardedEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	settingsRepo := settings.NewMemoryRepo()
	settingsSvc := settings.NewService(settingsRepo)
	_, err := settingsSvc.Save(ctx, "U", settings.Input{
		InboundNumber:        "+15550001111",
		CallAction:           "dial_phone",
		PhoneNumber:          "+15559876543",
		SMSForwardingEnabled: true,
	})
	require.NoError(t, err)

	evRepo := eventlog.NewMemoryRepo()
	events := eventlog.NewService(evRepo)
	provider := &smsProvider{}
	d := dispatch.New(dispatch.NewMemoryQueue(1), provider, settingsSvc, events, dispatch.Options{FromNumber: "+15550000000"})

	h := telephony.InboundHandler{
		Directory: routing.NewDirectory(settingsRepo),
		Events:    events,
		Forwarder: d,
	}
	r := gin.New()
	r.POST("/webhooks/sms", h.HandleSMS)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/sms",
		strings.NewReader("MessageSid=SM1&From=%2B15551234567&To=%2B15550001111&Body=hello"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<Response/>")

	rows := evRepo.Events()
	require.Len(t, rows, 2)

	inbound, forward := rows[0], rows[1]
	assert.Equal(t, eventlog.TypeSMS, inbound.Type)
	assert.Equal(t, eventlog.StatusProcessed, inbound.Status)
	assert.Equal(t, "hello", inbound.Content)

	assert.Equal(t, eventlog.TypeSMSForward, forward.Type)
	assert.Equal(t, eventlog.StatusSent, forward.Status)
	assert.Equal(t, "Forwarded from +15551234567: hello", forward.Content)
	assert.Equal(t, "+15559876543", forward.To)
	assert.Equal(t, "+15550000000", forward.From)

	require.Len(t, provider.sent, 1)
	assert.Equal(t, "+15559876543|+15550000000|Forwarded from +15551234567: hello", provider.sent[0])
}
