package routing

import (
	"context"
	"errors"
	"testing"

	"telephony-relay/internal/settings"
)

type failingStore struct{ err error }

func (s failingStore) GetByInboundNumber(ctx context.Context, number string) (settings.Configuration, error) {
	return settings.Configuration{}, s.err
}

func TestResolve_ExactMatch(t *testing.T) {
	repo := settings.NewMemoryRepo()
	_, err := repo.Upsert(context.Background(), settings.Configuration{
		OwnerID:       "u1",
		InboundNumber: "+15550001111",
		Target:        settings.PhoneTarget{Number: "+15552223333"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	d := NewDirectory(repo)

	cfg, ok, err := d.Resolve(context.Background(), "+15550001111")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if cfg.OwnerID != "u1" {
		t.Fatalf("unexpected owner %q", cfg.OwnerID)
	}

	for _, miss := range []string{"15550001111", "+1 555 000 1111", ""} {
		_, ok, err := d.Resolve(context.Background(), miss)
		if err != nil || ok {
			t.Fatalf("expected miss for %q, got ok=%v err=%v", miss, ok, err)
		}
	}
}

func TestResolve_StorageFailure(t *testing.T) {
	boom := errors.New("db down")
	d := NewDirectory(failingStore{err: boom})
	_, ok, err := d.Resolve(context.Background(), "+1555")
	if !errors.Is(err, boom) || ok {
		t.Fatalf("expected storage error, got ok=%v err=%v", ok, err)
	}

	d = NewDirectory(failingStore{err: settings.ErrNotFound})
	if _, ok, err := d.Resolve(context.Background(), "+1555"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}
