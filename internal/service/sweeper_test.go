package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/iliyamo/event-capacity-reservation/internal/model"
	"github.com/iliyamo/event-capacity-reservation/internal/queue"
)

func TestExpireStaleHoldsIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, 10)
	first := env.request(t, ev, "guest-1", 1)
	second := env.request(t, ev, "guest-2", 1)
	env.clock.Advance(20 * time.Minute)
	fresh := env.request(t, ev, "guest-3", 1)
	env.clock.Advance(10 * time.Minute)
	env.notes.reset()

	n, err := env.sweeper.ExpireStaleHolds(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 2 {
		t.Fatalf("expired = %d, want 2", n)
	}
	n, err = env.sweeper.ExpireStaleHolds(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep expired = %d, want 0", n)
	}

	for _, id := range []string{first.ID, second.ID} {
		if env.status(t, id) != model.StatusExpired {
			t.Fatalf("request %s not expired", id)
		}
	}
	if env.status(t, fresh.ID) != model.StatusPending {
		t.Fatal("live hold was expired")
	}
	kinds := env.notes.kinds()
	if len(kinds) != 2 || kinds[0] != queue.KindRequestExpired || kinds[1] != queue.KindRequestExpired {
		t.Fatalf("notifications = %v", kinds)
	}
}

func TestExpireSkipsDecidedRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, 10)
	req := env.request(t, ev, "guest-1", 1)
	env.clock.Advance(45 * time.Minute)
	// A lapsed hold can still be approved by the host before the sweep runs.
	if _, err := env.svc.Approve(ctx, env.host, ev, req.ID, model.StatusPending); err != nil {
		t.Fatalf("approve: %v", err)
	}

	n, err := env.sweeper.ExpireStaleHolds(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("expired = %d, want 0", n)
	}
	if env.status(t, req.ID) != model.StatusApproved {
		t.Fatal("approved request was expired")
	}
}

func TestWarnExpiringHoldsOncePerHold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, 10)
	req := env.request(t, ev, "guest-1", 1)
	env.notes.reset()

	env.clock.Advance(15 * time.Minute)
	if n, err := env.sweeper.WarnExpiringHolds(ctx); err != nil || n != 0 {
		t.Fatalf("early warn = %d, %v; want 0", n, err)
	}

	env.clock.Advance(6 * time.Minute)
	if n, err := env.sweeper.WarnExpiringHolds(ctx); err != nil || n != 1 {
		t.Fatalf("warn = %d, %v; want 1", n, err)
	}
	env.clock.Advance(time.Minute)
	if n, err := env.sweeper.WarnExpiringHolds(ctx); err != nil || n != 0 {
		t.Fatalf("repeat warn = %d, %v; want 0", n, err)
	}
	if env.status(t, req.ID) != model.StatusPending {
		t.Fatal("warning changed the request")
	}

	if _, err := env.svc.ExtendHold(ctx, env.host, ev, req.ID, 0); err != nil {
		t.Fatalf("extend: %v", err)
	}
	env.clock.Advance(28 * time.Minute)
	if n, err := env.sweeper.WarnExpiringHolds(ctx); err != nil || n != 1 {
		t.Fatalf("warn after extension = %d, %v; want 1", n, err)
	}

	var warnings int
	for _, k := range env.notes.kinds() {
		if k == queue.KindHoldExpiringSoon {
			warnings++
		}
	}
	if warnings != 2 {
		t.Fatalf("hold.expiring_soon sent %d times, want 2", warnings)
	}
}

func TestSweeperStartStop(t *testing.T) {
	env := newTestEnv(t)
	if err := env.sweeper.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := env.sweeper.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestSweepCoversMoreHoldsThanOneBatch(t *testing.T) {
	env := newTestEnv(t)
	env.sweeper.batch = 2
	ctx := context.Background()
	ev := env.event(t, 20)
	var stale []*model.JoinRequest
	for i := 0; i < 5; i++ {
		stale = append(stale, env.request(t, ev, fmt.Sprintf("guest-%d", i), 1))
	}
	env.clock.Advance(25 * time.Minute)
	for i := 5; i < 8; i++ {
		env.request(t, ev, fmt.Sprintf("guest-%d", i), 1)
	}
	env.clock.Advance(10 * time.Minute)

	n, err := env.sweeper.ExpireStaleHolds(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != len(stale) {
		t.Fatalf("expired = %d, want %d", n, len(stale))
	}
	for _, r := range stale {
		if env.status(t, r.ID) != model.StatusExpired {
			t.Fatalf("request %s still %s", r.ID, env.status(t, r.ID))
		}
	}

	// The remaining three holds end in 20 minutes; move inside the lead.
	env.clock.Advance(12 * time.Minute)
	warned, err := env.sweeper.WarnExpiringHolds(ctx)
	if err != nil {
		t.Fatalf("warn: %v", err)
	}
	if warned != 3 {
		t.Fatalf("warned = %d, want 3", warned)
	}
}
