package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"telephony-relay/internal/eventlog"
	"telephony-relay/internal/settings"
	"telephony-relay/internal/telephony"
)

// SettingsSource loads an owner's configuration.
type SettingsSource interface {
	Get(ctx context.Context, ownerID string) (settings.Configuration, error)
}

// EventAppender writes outbound ledger rows.
type EventAppender interface {
	Append(ctx context.Context, d eventlog.Draft) (string, error)
}

type Options struct {
	Workers int
	// RatePerSec caps queued provider calls across all workers.
	RatePerSec float64
	// FromNumber is the system sender for forwarded SMS.
	FromNumber string
	Claims     Claimer
	Logger     *zap.Logger
}

// Dispatcher executes call and SMS intents against the provider.
//
// Provider failures are logged and written to the ledger, never returned to the
// requester. An intent id is claimed only after its handler has finished, so a
// delivery lost mid-dispatch is sent again on redelivery and a completed one is
// skipped within the claim window.
type Dispatcher struct {
	queue    Queue
	provider telephony.Provider
	settings SettingsSource
	events   EventAppender
	claims   Claimer
	limiter  *rate.Limiter
	workers  int
	from     string
	log      *zap.Logger
}

func New(q Queue, p telephony.Provider, s SettingsSource, ev EventAppender, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 5
	}
	if opts.Claims == nil {
		opts.Claims = NewMemoryClaimer(0)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	burst := int(opts.RatePerSec)
	if burst < 1 {
		burst = 1
	}
	return &Dispatcher{
		queue:    q,
		provider: p,
		settings: s,
		events:   ev,
		claims:   opts.Claims,
		limiter:  rate.NewLimiter(rate.Limit(opts.RatePerSec), burst),
		workers:  opts.Workers,
		from:     opts.FromNumber,
		log:      opts.Logger,
	}
}

// Enqueue validates and publishes an intent. The caller does not wait for dispatch.
func (d *Dispatcher) Enqueue(ctx context.Context, in Intent) error {
	if err := in.Validate(); err != nil {
		return err
	}
	return d.queue.Publish(ctx, in)
}

// Run consumes intents with the configured number of workers until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	deliveries, err := d.queue.Consume(ctx)
	if err != nil {
		return err
	}
	d.log.Info("dispatcher started", zap.Int("workers", d.workers))

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			log := d.log.With(zap.Int("worker", worker))
			for del := range deliveries {
				d.process(ctx, log, del)
			}
		}(i)
	}
	wg.Wait()
	d.log.Info("dispatcher stopped")
	return nil
}

func (d *Dispatcher) process(ctx context.Context, log *zap.Logger, del Delivery) {
	in := del.Intent
	log = log.With(
		zap.String("intent_id", in.ID),
		zap.String("kind", string(in.Kind)),
		zap.String("owner_id", in.OwnerID),
		zap.String("contact_id", in.Contact.ID),
	)
	defer func() {
		if p := recover(); p != nil {
			log.Error("intent handler panic", zap.Any("panic", p))
			_ = del.Ack()
		}
	}()

	if err := in.Validate(); err != nil {
		log.Warn("dropping invalid intent", zap.Error(err))
		_ = del.Ack()
		return
	}

	claimed, err := d.claims.Claimed(ctx, in.ID)
	if err != nil {
		// Claim store down: dispatch anyway.
		log.Warn("intent claim lookup failed", zap.Error(err))
		claimed = false
	}
	if claimed {
		log.Info("skipping completed intent")
		_ = del.Ack()
		return
	}

	if err := d.limiter.Wait(ctx); err != nil {
		// Shutting down before the provider was touched; let another consumer take it.
		_ = del.Nack(true)
		return
	}

	// In-flight dispatches are not cancelled by shutdown.
	callCtx := context.WithoutCancel(ctx)
	switch in.Kind {
	case KindCall:
		d.handleCall(callCtx, log, in)
	case KindSMS:
		d.handleSMS(callCtx, log, in)
	}
	if _, err := d.claims.Claim(callCtx, in.ID); err != nil {
		log.Warn("intent claim failed", zap.Error(err))
	}
	if err := del.Ack(); err != nil {
		log.Warn("intent ack failed", zap.Error(err))
	}
}

// ownerLine loads the configuration and its inbound number, which is the caller id
// for every outbound leg.
func (d *Dispatcher) ownerLine(ctx context.Context, log *zap.Logger, ownerID string) (settings.Configuration, bool) {
	cfg, err := d.settings.Get(ctx, ownerID)
	if err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			log.Warn("owner has no telephony configuration")
		} else {
			log.Error("load configuration failed", zap.Error(err))
		}
		return settings.Configuration{}, false
	}
	if cfg.InboundNumber == "" {
		log.Warn("owner has no inbound number")
		return settings.Configuration{}, false
	}
	return cfg, true
}

func (d *Dispatcher) handleCall(ctx context.Context, log *zap.Logger, in Intent) {
	cfg, ok := d.ownerLine(ctx, log, in.OwnerID)
	if !ok {
		return
	}
	doc, ok := telephony.BuildOutboundCallDocument(cfg)
	if !ok {
		log.Warn("owner has no forwarding target")
		return
	}
	twiml, err := doc.Render()
	if err != nil {
		log.Error("render outbound twiml failed", zap.Error(err))
		return
	}

	draft := eventlog.Draft{
		OwnerID: in.OwnerID,
		Type:    eventlog.TypeVoiceOutbound,
		From:    cfg.InboundNumber,
		To:      in.Contact.PhoneNumber,
		Content: in.Contact.Name,
	}
	sid, err := d.placeCall(ctx, in.Contact.PhoneNumber, cfg.InboundNumber, twiml)
	if err != nil {
		log.Error("outbound call failed",
			zap.String("direction", "outbound"),
			zap.String("to", in.Contact.PhoneNumber),
			zap.Error(err))
		draft.Status = eventlog.StatusError
		draft.Payload = errorPayload(err)
	} else {
		log.Info("outbound call placed", zap.String("call_sid", sid))
		draft.Status = eventlog.StatusSent
		draft.CallSID = sid
	}
	d.appendEvent(ctx, log, draft)
}

func (d *Dispatcher) handleSMS(ctx context.Context, log *zap.Logger, in Intent) {
	cfg, ok := d.ownerLine(ctx, log, in.OwnerID)
	if !ok {
		return
	}

	draft := eventlog.Draft{
		OwnerID: in.OwnerID,
		Type:    eventlog.TypeSMSOutbound,
		From:    cfg.InboundNumber,
		To:      in.Contact.PhoneNumber,
		Content: in.Body,
	}
	sid, err := d.sendMessage(ctx, in.Contact.PhoneNumber, cfg.InboundNumber, in.Body)
	if err != nil {
		log.Error("outbound sms failed",
			zap.String("direction", "outbound"),
			zap.String("to", in.Contact.PhoneNumber),
			zap.Error(err))
		draft.Status = eventlog.StatusError
		draft.Payload = errorPayload(err)
	} else {
		log.Info("outbound sms sent", zap.String("message_sid", sid))
		draft.Status = eventlog.StatusSent
		draft.MessageSID = sid
	}
	d.appendEvent(ctx, log, draft)
}

// ForwardText is the body of a forwarded SMS.
func ForwardText(from, body string) string {
	return fmt.Sprintf("Forwarded from %s: %s", from, body)
}

// ForwardSMS relays an inbound SMS to cfg's forwarding destination from the system
// sender number. It runs inline with the webhook and always writes one sms_forward row.
func (d *Dispatcher) ForwardSMS(ctx context.Context, cfg settings.Configuration, from, body string) error {
	log := d.log.With(zap.String("owner_id", cfg.OwnerID), zap.String("direction", "forward"))
	to := cfg.SMSDestination()
	text := ForwardText(from, body)

	draft := eventlog.Draft{
		OwnerID: cfg.OwnerID,
		Type:    eventlog.TypeSMSForward,
		From:    d.from,
		To:      to,
		Content: text,
	}

	var (
		sid string
		err error
	)
	switch {
	case to == "":
		err = errors.New("dispatch: no forwarding destination")
	case d.from == "":
		err = telephony.ErrProviderNotConfigured
	default:
		sid, err = d.sendMessage(ctx, to, d.from, text)
	}

	if err != nil {
		log.Error("sms forward failed", zap.String("to", to), zap.Error(err))
		draft.Status = eventlog.StatusError
		draft.Payload = errorPayload(err)
	} else {
		draft.Status = eventlog.StatusSent
		draft.MessageSID = sid
	}
	d.appendEvent(ctx, log, draft)
	return err
}

func (d *Dispatcher) placeCall(ctx context.Context, to, from, twiml string) (string, error) {
	if d.provider == nil {
		return "", telephony.ErrProviderNotConfigured
	}
	return d.provider.PlaceCall(ctx, to, from, twiml)
}

func (d *Dispatcher) sendMessage(ctx context.Context, to, from, body string) (string, error) {
	if d.provider == nil {
		return "", telephony.ErrProviderNotConfigured
	}
	return d.provider.SendMessage(ctx, to, from, body)
}

func (d *Dispatcher) appendEvent(ctx context.Context, log *zap.Logger, draft eventlog.Draft) {
	if _, err := d.events.Append(ctx, draft); err != nil {
		log.Error("outbound event write failed", zap.Error(err))
	}
}

func errorPayload(err error) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"error": err.Error()})
	return raw
}
