package sdk

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"rewardkit/adapters/memory"
	"rewardkit/api/httpapi"
	"rewardkit/core"
	"rewardkit/engine"
	"rewardkit/realtime"
)

// newTestServer runs the real API surface on an in-memory backend.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	hub := realtime.NewHub()
	bus := engine.NewEventBus(engine.DispatchSync)
	svc := engine.NewRewardService(memory.New(), core.DefaultCatalog(), bus, engine.NewCooldown(), nil)
	svc.SubscribeAll(func(ctx context.Context, e core.Event) { hub.Broadcast(ctx, e) })
	t.Cleanup(svc.Close)

	handler := httpapi.NewMux(svc, hub, httpapi.Options{PathPrefix: "/api"})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_GrantLifecycle(t *testing.T) {
	srv := newTestServer(t)

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx := context.Background()

	if err := client.CreateUser(ctx, "alice"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	g, err := client.Grant(ctx, "alice", 50, "backfill")
	if err != nil || g.XP != 50 {
		t.Fatalf("grant got %+v err=%v", g, err)
	}

	g, err = client.GrantForAction(ctx, "alice", "answer_accepted")
	if err != nil {
		t.Fatalf("grant for action: %v", err)
	}
	if g.XPAwarded != 50 || g.XP != 100 || g.Level != 2 || !g.LeveledUp {
		t.Fatalf("unexpected grant: %+v", g)
	}

	p, err := client.Progress(ctx, "alice")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.UserID != "alice" || p.XP != 100 || p.Level != 2 || p.NextLevelXP != 250 {
		t.Fatalf("unexpected progress: %+v", p)
	}

	health, err := client.Health(ctx)
	if err != nil || health.Status != "healthy" {
		t.Fatalf("health: %+v err=%v", health, err)
	}
}

func TestClient_GrantOnceSuppressesDuplicate(t *testing.T) {
	srv := newTestServer(t)

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := client.CreateUser(ctx, "bob"); err != nil {
		t.Fatal(err)
	}

	first, err := client.GrantOnce(ctx, "bob", "community_comment", "post", "p1")
	if err != nil || !first.Granted || first.XPAwarded != 5 {
		t.Fatalf("first grant: %+v err=%v", first, err)
	}

	second, err := client.GrantOnce(ctx, "bob", "community_comment", "post", "p1")
	if err != nil {
		t.Fatalf("duplicate should not error: %v", err)
	}
	if second.Granted || second.XPAwarded != 0 || second.XP != 5 {
		t.Fatalf("duplicate grant: %+v", second)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	_, err = client.Grant(ctx, "ghost", 10, "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 || apiErr.Code != "user_not_found" {
		t.Fatalf("expected user_not_found, got %v", err)
	}

	if err := client.CreateUser(ctx, "carol"); err != nil {
		t.Fatal(err)
	}
	_, err = client.GrantForAction(ctx, "carol", "mystery_action")
	if !errors.As(err, &apiErr) || apiErr.Code != "unknown_action" {
		t.Fatalf("expected unknown_action, got %v", err)
	}
}

func TestClient_SubscribeEvents(t *testing.T) {
	srv := newTestServer(t)

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.CreateUser(ctx, "dora"); err != nil {
		t.Fatal(err)
	}

	events, err := client.SubscribeEvents(ctx, "dora")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if _, err := client.GrantForAction(ctx, "dora", "video_upload"); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-events:
		if evt.Type != core.EventXPGranted || evt.UserID != "dora" {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}
