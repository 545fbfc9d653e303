package eventlog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *MemoryRepo, *time.Time) {
	t.Helper()
	repo := NewMemoryRepo()
	svc := NewService(repo)
	now := time.Unix(1700000000, 0).UTC()
	svc.clock = func() time.Time { return now }
	return svc, repo, &now
}

func TestRecord_StoresReceivedWithVerbatimPayload(t *testing.T) {
	svc, repo, _ := newTestService(t)
	payload := json.RawMessage(`{"To":"+1555","CallSid":"CA1","Extra":"x"}`)

	id, err := svc.Record(context.Background(), Draft{
		OwnerID: "u1", Type: TypeVoice, From: "+1999", To: "+1555", CallSID: "CA1",
		Status: StatusError, Payload: payload,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	events := repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, StatusReceived, events[0].Status)
	assert.JSONEq(t, string(payload), string(events[0].Payload))
}

func TestAppend_RejectsInvalid(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Append(context.Background(), Draft{Type: TypeSMS, Status: StatusSent})
	assert.ErrorIs(t, err, ErrInvalidEvent)
	_, err = svc.Append(context.Background(), Draft{OwnerID: "u1", Type: "fax", Status: StatusSent})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestTransition_Idempotent(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, Draft{OwnerID: "u1", Type: TypeSMS, MessageSID: "SM1"})
	require.NoError(t, err)
	_, err = svc.Record(ctx, Draft{OwnerID: "u2", Type: TypeSMS, MessageSID: "SM1"})
	require.NoError(t, err)

	require.NoError(t, svc.Transition(ctx, "SM1", "u1", StatusProcessed))
	first := repo.Events()
	require.NoError(t, svc.Transition(ctx, "SM1", "u1", StatusProcessed))
	second := repo.Events()

	assert.Equal(t, first, second)
	assert.Equal(t, StatusProcessed, second[0].Status)
	assert.Equal(t, StatusReceived, second[1].Status, "other owner's row must not move")

	// A later transition does not overwrite a non-received row.
	require.NoError(t, svc.Transition(ctx, "SM1", "u1", StatusError))
	assert.Equal(t, StatusProcessed, repo.Events()[0].Status)
}

func TestTransition_NoMatchOrEmptyIDIsNoop(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Record(ctx, Draft{OwnerID: "u1", Type: TypeVoice, CallSID: "CA1"})
	require.NoError(t, err)

	require.NoError(t, svc.Transition(ctx, "", "u1", StatusProcessed))
	require.NoError(t, svc.Transition(ctx, "CA-missing", "u1", StatusProcessed))
	assert.Equal(t, StatusReceived, repo.Events()[0].Status)
}

func TestList_FiltersAndPaginates(t *testing.T) {
	svc, _, now := newTestService(t)
	ctx := context.Background()
	base := *now
	for i := 0; i < 25; i++ {
		*now = base.Add(time.Duration(i) * time.Second)
		_, err := svc.Append(ctx, Draft{OwnerID: "u1", Type: TypeSMS, From: "+1999", Content: "hello", Status: StatusProcessed})
		require.NoError(t, err)
	}
	*now = base.Add(time.Minute)
	_, err := svc.Append(ctx, Draft{OwnerID: "u1", Type: TypeVoice, From: "+1777", Status: StatusError})
	require.NoError(t, err)

	page, err := svc.List(ctx, "u1", Filter{})
	require.NoError(t, err)
	assert.Len(t, page.Events, 20)
	assert.Equal(t, int64(26), page.Total)
	assert.Equal(t, 2, page.LastPage)
	assert.Equal(t, TypeVoice, page.Events[0].Type, "newest first")

	page, err = svc.List(ctx, "u1", Filter{Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Events, 6)

	page, err = svc.List(ctx, "u1", Filter{Search: "HELLO", Type: TypeSMS})
	require.NoError(t, err)
	assert.Equal(t, int64(25), page.Total)

	page, err = svc.List(ctx, "u1", Filter{Search: "777"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	page, err = svc.List(ctx, "u1", Filter{Status: StatusError})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	n, err := svc.Count(ctx, "u1", CountFilter{Types: []Type{TypeSMS, TypeSMSForward}})
	require.NoError(t, err)
	assert.Equal(t, int64(25), n)

	recent, err := svc.Recent(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, recent, 10)
}

func TestPurgeBefore(t *testing.T) {
	svc, repo, now := newTestService(t)
	ctx := context.Background()
	old := *now
	_, err := svc.Append(ctx, Draft{OwnerID: "u1", Type: TypeSMS, Status: StatusSent})
	require.NoError(t, err)
	*now = old.Add(48 * time.Hour)
	_, err = svc.Append(ctx, Draft{OwnerID: "u1", Type: TypeSMS, Status: StatusSent})
	require.NoError(t, err)

	n, err := svc.PurgeBefore(ctx, old.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, repo.Events(), 1)
}
