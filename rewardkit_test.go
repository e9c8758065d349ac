package rewardkit

import (
	"context"
	"testing"

	mem "rewardkit/adapters/memory"
	"rewardkit/core"
	"rewardkit/engine"
	"rewardkit/realtime"
)

func TestNewDefaultsAndOptions(t *testing.T) {
	hub := realtime.NewHub()
	svc := New(
		WithRealtime(hub),
		WithStorage(mem.New()),
		WithDispatchMode(engine.DispatchSync),
	)
	defer svc.Close()

	ctx := context.Background()
	if err := svc.CreateUser(ctx, "alice"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	_, ch := hub.Subscribe(4)

	res, err := svc.Grant(ctx, "alice", 5, "welcome")
	if err != nil || res.XP != 5 {
		t.Fatalf("grant xp=%d err=%v", res.XP, err)
	}

	// realtime bridge should receive the grant event
	ev := <-ch
	if ev.UserID != "alice" || ev.Type != core.EventXPGranted {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestNewInMemoryDefault(t *testing.T) {
	svc := New(WithDispatchMode(engine.DispatchSync))
	defer svc.Close()

	ctx := context.Background()
	if err := svc.CreateUser(ctx, "bob"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := svc.GrantForAction(ctx, "bob", core.ActionDailyLogin); err != nil {
		t.Fatalf("grant for action: %v", err)
	}
	p, err := svc.Progress(ctx, "bob")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.XP != 10 {
		t.Fatalf("expected 10 xp, got %d", p.XP)
	}
}

func TestNewCustomCatalog(t *testing.T) {
	cat, err := core.NewCatalog(map[core.ActionID]int64{"beta_signup": 42})
	if err != nil {
		t.Fatal(err)
	}
	svc := New(WithStorage(mem.New()), WithCatalog(cat), WithDispatchMode(engine.DispatchSync))
	defer svc.Close()

	ctx := context.Background()
	if err := svc.CreateUser(ctx, "carol"); err != nil {
		t.Fatal(err)
	}
	res, err := svc.GrantForAction(ctx, "carol", "beta_signup")
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if res.Amount != 42 {
		t.Fatalf("expected 42, got %d", res.Amount)
	}
	if _, err := svc.GrantForAction(ctx, "carol", core.ActionDailyLogin); err == nil {
		t.Fatal("built-in action should be unknown under a custom catalog")
	}
}
