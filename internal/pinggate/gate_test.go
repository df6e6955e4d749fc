package pinggate

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestGate(t *testing.T, cooldown time.Duration) (*Gate, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cooldown), mr
}

func TestAllowOncePerWindow(t *testing.T) {
	g, mr := newTestGate(t, 30*time.Minute)
	ctx := context.Background()

	r, _, err := g.Allow(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("first Allow: %v", err)
	}
	if r == nil {
		t.Fatal("expected a receipt")
	}

	_, remaining, err := g.Allow(ctx, "s1", "u1")
	if !errors.Is(err, ErrCooldown) {
		t.Fatalf("second Allow: err = %v, want ErrCooldown", err)
	}
	if remaining <= 0 || remaining > 30*time.Minute {
		t.Fatalf("remaining = %v", remaining)
	}

	// Other senders and other sessions have their own windows.
	if _, _, err := g.Allow(ctx, "s1", "u2"); err != nil {
		t.Fatalf("other sender: %v", err)
	}
	if _, _, err := g.Allow(ctx, "s2", "u1"); err != nil {
		t.Fatalf("other session: %v", err)
	}

	mr.FastForward(31 * time.Minute)
	if _, _, err := g.Allow(ctx, "s1", "u1"); err != nil {
		t.Fatalf("after window: %v", err)
	}
}

func TestRollbackReopensWindow(t *testing.T) {
	g, _ := newTestGate(t, 30*time.Minute)
	ctx := context.Background()

	r, _, err := g.Allow(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if err := g.Rollback(ctx, r); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	// Delivery failed, so the next attempt must go through immediately.
	if _, _, err := g.Allow(ctx, "s1", "u1"); err != nil {
		t.Fatalf("Allow after rollback: %v", err)
	}

	if err := g.Rollback(ctx, nil); err != nil {
		t.Fatalf("nil receipt rollback: %v", err)
	}
}
