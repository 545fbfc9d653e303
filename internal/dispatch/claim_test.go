package dispatch

import (
	"context"
	"testing"
	"time"
)

func TestMemoryClaimer(t *testing.T) {
	c := NewMemoryClaimer(time.Minute)
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if taken, _ := c.Claimed(ctx, "a"); taken {
		t.Fatalf("unclaimed id reported as claimed")
	}
	if ok, _ := c.Claim(ctx, "a"); !ok {
		t.Fatalf("first claim should succeed")
	}
	if ok, _ := c.Claim(ctx, "a"); ok {
		t.Fatalf("second claim should fail")
	}
	if taken, _ := c.Claimed(ctx, "a"); !taken {
		t.Fatalf("claimed id not reported")
	}
	now = now.Add(2 * time.Minute)
	if taken, _ := c.Claimed(ctx, "a"); taken {
		t.Fatalf("claim should expire")
	}
	if ok, _ := c.Claim(ctx, "a"); !ok {
		t.Fatalf("claim after expiry should succeed")
	}
}
