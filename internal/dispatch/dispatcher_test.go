package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telephony-relay/internal/eventlog"
	"telephony-relay/internal/settings"
	"telephony-relay/internal/telephony"
)

type sentMessage struct{ to, from, body string }
type placedCall struct{ to, from, twiml string }

type fakeProvider struct {
	mu       sync.Mutex
	calls    []placedCall
	messages []sentMessage
	err      error
	// gate, when set, holds SendMessage until it is closed.
	gate chan struct{}
}

func (p *fakeProvider) PlaceCall(ctx context.Context, to, from, twiml string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, placedCall{to, from, twiml})
	if p.err != nil {
		return "", p.err
	}
	return "CA-out", nil
}

func (p *fakeProvider) SendMessage(ctx context.Context, to, from, body string) (string, error) {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, sentMessage{to, from, body})
	if p.err != nil {
		return "", p.err
	}
	return "SM-out", nil
}

func (p *fakeProvider) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls), len(p.messages)
}

type fixture struct {
	d        *Dispatcher
	queue    *MemoryQueue
	provider *fakeProvider
	events   *eventlog.MemoryRepo
	settings *settings.Service
}

func newFixture(t *testing.T, from string) fixture {
	t.Helper()
	return newFixtureWithClaims(t, from, NewMemoryClaimer(0))
}

func newFixtureWithClaims(t *testing.T, from string, claims Claimer) fixture {
	t.Helper()
	q := NewMemoryQueue(16)
	p := &fakeProvider{}
	evRepo := eventlog.NewMemoryRepo()
	svc := settings.NewService(settings.NewMemoryRepo())
	d := New(q, p, svc, eventlog.NewService(evRepo), Options{Workers: 2, RatePerSec: 1000, FromNumber: from, Claims: claims})
	return fixture{d: d, queue: q, provider: p, events: evRepo, settings: svc}
}

func (f fixture) run(t *testing.T) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = f.d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func (f fixture) configure(t *testing.T, owner string, in settings.Input) {
	t.Helper()
	_, err := f.settings.Save(context.Background(), owner, in)
	require.NoError(t, err)
}

var alice = ContactRef{ID: "c1", Name: "Alice", PhoneNumber: "+15550009999"}

func TestCallIntent_PlacesCallFromInboundNumber(t *testing.T) {
	f := newFixture(t, "+15550000000")
	f.configure(t, "u1", settings.Input{InboundNumber: "+15551110000", CallAction: "dial_phone", PhoneNumber: "+15552220000", Greeting: "hi"})
	f.run(t)

	require.NoError(t, f.d.Enqueue(context.Background(), NewCallIntent("u1", alice, time.Now())))
	require.Eventually(t, func() bool { return len(f.events.Events()) == 1 }, time.Second, 5*time.Millisecond)

	f.provider.mu.Lock()
	call := f.provider.calls[0]
	f.provider.mu.Unlock()
	assert.Equal(t, "+15550009999", call.to)
	assert.Equal(t, "+15551110000", call.from)
	assert.Contains(t, call.twiml, "<Number>+15552220000</Number>")
	assert.NotContains(t, call.twiml, "hi</Say>")

	ev := f.events.Events()[0]
	assert.Equal(t, eventlog.TypeVoiceOutbound, ev.Type)
	assert.Equal(t, eventlog.StatusSent, ev.Status)
	assert.Equal(t, "CA-out", ev.CallSID)
}

func TestCallIntent_MissingConfigurationStops(t *testing.T) {
	f := newFixture(t, "+15550000000")
	f.configure(t, "u2", settings.Input{CallAction: "dial_phone", PhoneNumber: "+1555"})
	f.run(t)

	require.NoError(t, f.d.Enqueue(context.Background(), NewCallIntent("u1", alice, time.Now())))
	require.NoError(t, f.d.Enqueue(context.Background(), NewCallIntent("u2", alice, time.Now())))
	require.Eventually(t, func() bool { return f.queue.Len() == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	calls, _ := f.provider.counts()
	assert.Zero(t, calls)
	assert.Empty(t, f.events.Events())
}

func TestSMSIntent_FailureIsRecordedNotReturned(t *testing.T) {
	f := newFixture(t, "+15550000000")
	f.provider.err = errors.New("provider down")
	f.configure(t, "u1", settings.Input{InboundNumber: "+15551110000", CallAction: "dial_phone", PhoneNumber: "+1555"})
	f.run(t)

	require.NoError(t, f.d.Enqueue(context.Background(), NewSMSIntent("u1", alice, "see you", time.Now())))
	require.Eventually(t, func() bool { return len(f.events.Events()) == 1 }, time.Second, 5*time.Millisecond)

	ev := f.events.Events()[0]
	assert.Equal(t, eventlog.TypeSMSOutbound, ev.Type)
	assert.Equal(t, eventlog.StatusError, ev.Status)
	assert.Equal(t, "see you", ev.Content)
	assert.JSONEq(t, `{"error":"provider down"}`, string(ev.Payload))
}

func TestCallIntent_FailureKeepsContactName(t *testing.T) {
	f := newFixture(t, "+15550000000")
	f.provider.err = errors.New("provider down")
	f.configure(t, "u1", settings.Input{InboundNumber: "+15551110000", CallAction: "dial_phone", PhoneNumber: "+15552220000"})
	f.run(t)

	require.NoError(t, f.d.Enqueue(context.Background(), NewCallIntent("u1", alice, time.Now())))
	require.Eventually(t, func() bool { return len(f.events.Events()) == 1 }, time.Second, 5*time.Millisecond)

	ev := f.events.Events()[0]
	assert.Equal(t, eventlog.TypeVoiceOutbound, ev.Type)
	assert.Equal(t, eventlog.StatusError, ev.Status)
	assert.Equal(t, "Alice", ev.Content)
	assert.JSONEq(t, `{"error":"provider down"}`, string(ev.Payload))
}

func TestCompletedIntentNotDispatchedAgain(t *testing.T) {
	f := newFixture(t, "+15550000000")
	f.configure(t, "u1", settings.Input{InboundNumber: "+15551110000", CallAction: "dial_phone", PhoneNumber: "+1555"})
	f.run(t)

	in := NewSMSIntent("u1", alice, "once", time.Now())
	require.NoError(t, f.d.Enqueue(context.Background(), in))
	require.Eventually(t, func() bool { return len(f.events.Events()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.d.Enqueue(context.Background(), in))
	require.Eventually(t, func() bool { return f.queue.Len() == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, msgs := f.provider.counts()
	assert.Equal(t, 1, msgs)
	assert.Len(t, f.events.Events(), 1)
}

func TestRedeliveredInFlightIntentIsDispatched(t *testing.T) {
	claims := NewMemoryClaimer(0)
	in := NewSMSIntent("u1", alice, "again", time.Now())
	cfg := settings.Input{InboundNumber: "+15551110000", CallAction: "dial_phone", PhoneNumber: "+1555"}

	// The first worker takes the intent and never returns from the provider.
	stuck := newFixtureWithClaims(t, "+15550000000", claims)
	stuck.provider.gate = make(chan struct{})
	stuck.configure(t, "u1", cfg)
	stuck.run(t)
	t.Cleanup(func() { close(stuck.provider.gate) })
	require.NoError(t, stuck.d.Enqueue(context.Background(), in))
	require.Eventually(t, func() bool { return stuck.queue.Len() == 0 }, time.Second, 5*time.Millisecond)

	// The broker hands the unacked intent to another consumer sharing the claim store.
	next := newFixtureWithClaims(t, "+15550000000", claims)
	next.configure(t, "u1", cfg)
	next.run(t)
	require.NoError(t, next.d.Enqueue(context.Background(), in))
	require.Eventually(t, func() bool { return len(next.events.Events()) == 1 }, time.Second, 5*time.Millisecond)

	_, msgs := next.provider.counts()
	assert.Equal(t, 1, msgs)
	assert.Equal(t, eventlog.StatusSent, next.events.Events()[0].Status)
	taken, err := claims.Claimed(context.Background(), in.ID)
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestEnqueue_RejectsInvalidIntent(t *testing.T) {
	f := newFixture(t, "")
	err := f.d.Enqueue(context.Background(), NewSMSIntent("u1", alice, "", time.Now()))
	assert.ErrorIs(t, err, ErrInvalidIntent)
	assert.Zero(t, f.queue.Len())
}

func TestForwardSMS_Sent(t *testing.T) {
	f := newFixture(t, "+15550000000")
	cfg := settings.Configuration{OwnerID: "u1", Target: settings.PhoneTarget{Number: "+15559876543"}, SMSForwardingEnabled: true}

	require.NoError(t, f.d.ForwardSMS(context.Background(), cfg, "+15551234567", "hello"))

	_, msgs := f.provider.counts()
	require.Equal(t, 1, msgs)
	assert.Equal(t, sentMessage{"+15559876543", "+15550000000", "Forwarded from +15551234567: hello"}, f.provider.messages[0])

	ev := f.events.Events()[0]
	assert.Equal(t, eventlog.TypeSMSForward, ev.Type)
	assert.Equal(t, eventlog.StatusSent, ev.Status)
	assert.Equal(t, "Forwarded from +15551234567: hello", ev.Content)
}

func TestForwardSMS_NoSenderFailsBeforeProvider(t *testing.T) {
	f := newFixture(t, "")
	cfg := settings.Configuration{OwnerID: "u1", Target: settings.PhoneTarget{Number: "+15559876543"}, SMSForwardingEnabled: true}

	err := f.d.ForwardSMS(context.Background(), cfg, "+15551234567", "hello")
	assert.ErrorIs(t, err, telephony.ErrProviderNotConfigured)

	_, msgs := f.provider.counts()
	assert.Zero(t, msgs)
	ev := f.events.Events()[0]
	assert.Equal(t, eventlog.StatusError, ev.Status)
	assert.Equal(t, "Forwarded from +15551234567: hello", ev.Content)
}

func TestForwardSMS_UnconfiguredTwilioClient(t *testing.T) {
	evRepo := eventlog.NewMemoryRepo()
	d := New(NewMemoryQueue(1), telephony.NewTwilioClient("", ""), nil, eventlog.NewService(evRepo), Options{FromNumber: "+1555"})
	cfg := settings.Configuration{OwnerID: "u1", SMSForwardTo: "+1666", SMSForwardingEnabled: true}

	err := d.ForwardSMS(context.Background(), cfg, "+1777", "x")
	assert.ErrorIs(t, err, telephony.ErrProviderNotConfigured)
	require.Len(t, evRepo.Events(), 1)
	assert.Equal(t, eventlog.StatusError, evRepo.Events()[0].Status)
}
