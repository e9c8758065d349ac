package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	mem "rewardkit/adapters/memory"
	"rewardkit/api/httpapi"
	"rewardkit/core"
	"rewardkit/engine"
	"rewardkit/realtime"
)

// A minimal server for local experimentation: in-memory storage, no auth,
// text logging, full API surface on :8080.
func main() {
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))

	store := mem.New()
	bus := engine.NewEventBus(engine.DispatchAsync)
	cooldown := engine.NewCooldown()
	svc := engine.NewRewardService(store, core.DefaultCatalog(), bus, cooldown, nil)
	defer svc.Close()

	hub := realtime.NewHub()
	svc.SubscribeAll(func(ctx context.Context, e core.Event) { hub.Broadcast(ctx, e) })

	handler := httpapi.NewMux(svc, hub, httpapi.Options{PathPrefix: "/api"})

	slog.Info("starting demo server on :8080")

	if err := http.ListenAndServe(":8080", handler); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}
