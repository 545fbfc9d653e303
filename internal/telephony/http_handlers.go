package telephony

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"telephony-relay/internal/eventlog"
	"telephony-relay/internal/settings"
	"telephony-relay/pkg/logger"
)

// Resolver finds the configuration that owns an inbound number.
type Resolver interface {
	Resolve(ctx context.Context, inboundNumber string) (settings.Configuration, bool, error)
}

// EventLog is the ledger surface the webhook path writes to.
type EventLog interface {
	Record(ctx context.Context, d eventlog.Draft) (string, error)
	Append(ctx context.Context, d eventlog.Draft) (string, error)
	Transition(ctx context.Context, correlationID, ownerID string, status eventlog.Status) error
}

// SMSForwarder relays an inbound SMS to the owner's forwarding destination.
// It records its own sms_forward row; a returned error is informational only.
type SMSForwarder interface {
	ForwardSMS(ctx context.Context, cfg settings.Configuration, from, body string) error
}

// InboundHandler answers Twilio voice and SMS webhooks.
//
// Every response is 200 text/xml. Once an owner is resolved exactly one received row
// is written before the reply is built; later failures add an error row and degrade
// the reply instead of surfacing to the provider.
type InboundHandler struct {
	Directory Resolver
	Events    EventLog
	Forwarder SMSForwarder
}

func (h InboundHandler) HandleVoice(c *gin.Context) {
	log := logger.FromGin(c)
	ctx := c.Request.Context()

	written := false
	defer func() {
		if p := recover(); p != nil {
			log.Error("voice webhook panic", zap.Any("panic", p))
			if !written {
				writeVoice(c, log, FallbackVoiceDocument())
			}
		}
	}()
	respond := func(doc VoiceDocument) {
		written = true
		writeVoice(c, log, doc)
	}

	hook, err := ParseVoiceWebhook(c.Request)
	if err != nil {
		log.Warn("voice webhook parse failed", zap.Error(err))
		respond(FallbackVoiceDocument())
		return
	}
	log = log.With(zap.String("call_sid", hook.CallSid), zap.String("to", hook.To))

	cfg, ok, err := h.Directory.Resolve(ctx, hook.To)
	if err != nil {
		log.Error("inbound number lookup failed", zap.Error(err))
		respond(FallbackVoiceDocument())
		return
	}
	if !ok {
		log.Info("voice call to unconfigured number")
		doc, _ := BuildVoiceResponse(nil)
		respond(doc)
		return
	}

	draft := eventlog.Draft{
		OwnerID: cfg.OwnerID,
		Type:    eventlog.TypeVoice,
		From:    hook.From,
		To:      hook.To,
		CallSID: hook.CallSid,
		Payload: hook.Payload,
	}
	if _, err := h.Events.Record(ctx, draft); err != nil {
		h.recordFailure(ctx, log, draft, fmt.Errorf("record voice event: %w", err))
		respond(FallbackVoiceDocument())
		return
	}

	doc, err := BuildVoiceResponse(&cfg)
	if err != nil {
		h.recordFailure(ctx, log, draft, err)
		respond(FallbackVoiceDocument())
		return
	}

	if err := h.Events.Transition(ctx, hook.CallSid, cfg.OwnerID, eventlog.StatusProcessed); err != nil {
		h.recordFailure(ctx, log, draft, fmt.Errorf("mark voice event processed: %w", err))
		respond(FallbackVoiceDocument())
		return
	}
	respond(doc)
}

func (h InboundHandler) HandleSMS(c *gin.Context) {
	log := logger.FromGin(c)
	ctx := c.Request.Context()

	defer func() {
		if p := recover(); p != nil {
			log.Error("sms webhook panic", zap.Any("panic", p))
		}
		// The provider always gets the empty acknowledgment.
		writeAck(c, log)
	}()

	hook, err := ParseSMSWebhook(c.Request)
	if err != nil {
		log.Warn("sms webhook parse failed", zap.Error(err))
		return
	}
	log = log.With(zap.String("message_sid", hook.MessageSid), zap.String("to", hook.To))

	cfg, ok, err := h.Directory.Resolve(ctx, hook.To)
	if err != nil {
		log.Error("inbound number lookup failed", zap.Error(err))
		return
	}
	if !ok {
		log.Info("sms to unconfigured number")
		return
	}

	draft := eventlog.Draft{
		OwnerID:    cfg.OwnerID,
		Type:       eventlog.TypeSMS,
		From:       hook.From,
		To:         hook.To,
		Content:    hook.Body,
		MessageSID: hook.MessageSid,
		Payload:    hook.Payload,
	}
	if _, err := h.Events.Record(ctx, draft); err != nil {
		h.recordFailure(ctx, log, draft, fmt.Errorf("record sms event: %w", err))
		return
	}

	if cfg.ShouldForwardSMS() && h.Forwarder != nil {
		if err := h.Forwarder.ForwardSMS(ctx, cfg, hook.From, hook.Body); err != nil {
			log.Warn("sms forward failed", zap.Error(err))
		}
	}

	if err := h.Events.Transition(ctx, hook.MessageSid, cfg.OwnerID, eventlog.StatusProcessed); err != nil {
		h.recordFailure(ctx, log, draft, fmt.Errorf("mark sms event processed: %w", err))
	}
}

// recordFailure writes an error row for the inbound leg. Its own failure is only logged.
func (h InboundHandler) recordFailure(ctx context.Context, log *zap.Logger, draft eventlog.Draft, cause error) {
	log.Error("inbound webhook failed", zap.Error(cause))
	draft.Status = eventlog.StatusError
	draft.Content = cause.Error()
	if _, err := h.Events.Append(ctx, draft); err != nil {
		log.Error("error event write failed", zap.Error(err))
	}
}

func writeVoice(c *gin.Context, log *zap.Logger, doc VoiceDocument) {
	body, err := doc.Render()
	if err != nil {
		log.Error("twiml render failed", zap.Error(err))
		body, _ = FallbackVoiceDocument().Render()
	}
	c.Header("Content-Type", ContentTypeXML)
	c.String(http.StatusOK, body)
}

func writeAck(c *gin.Context, log *zap.Logger) {
	body, err := BuildSMSResponse().Render()
	if err != nil {
		log.Error("twiml render failed", zap.Error(err))
	}
	c.Header("Content-Type", ContentTypeXML)
	c.String(http.StatusOK, body)
}
