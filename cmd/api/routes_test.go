package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"telephony-relay/internal/auth"
	"telephony-relay/internal/config"
	"telephony-relay/internal/eventlog"
	"telephony-relay/internal/httpapi"
	"telephony-relay/internal/routing"
	"telephony-relay/internal/settings"
	"telephony-relay/internal/telephony"
)

func newRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mgr, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret"})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	st := settings.NewService(settings.NewMemoryRepo())
	r := gin.New()
	registerRoutes(r, cfg, routeDeps{
		inbound: telephony.InboundHandler{
			Directory: routing.NewDirectory(st),
			Events:    eventlog.NewService(eventlog.NewMemoryRepo()),
		},
		api:    httpapi.Handlers{Auth: mgr, Settings: st},
		authMW: auth.RequireAccessToken(mgr),
	})
	return r
}

func postForm(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookAliases(t *testing.T) {
	r := newRouter(t, config.Config{})
	form := url.Values{"To": {"+15550000000"}, "From": {"+15551111111"}, "CallSid": {"CA1"}}
	for _, path := range []string{"/webhooks/voice", "/webhooks/twilio/voice"} {
		w := postForm(r, path, form)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), telephony.MsgNotConfigured) {
			t.Fatalf("%s: unexpected body %s", path, w.Body.String())
		}
	}
}

func TestWebhookSignatureEnforced(t *testing.T) {
	cfg := config.Config{Twilio: config.TwilioConfig{
		AuthToken:         "tok",
		ValidateSignature: true,
		PublicBaseURL:     "https://relay.example.com",
	}}
	r := newRouter(t, cfg)
	w := postForm(r, "/webhooks/sms", url.Values{"To": {"+1"}, "From": {"+2"}, "Body": {"hi"}})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without signature, got %d", w.Code)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	r := newRouter(t, config.Config{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/settings", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
