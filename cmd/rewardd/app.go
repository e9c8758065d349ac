package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"rewardkit"
	jsonfileAdapter "rewardkit/adapters/jsonfile"
	mem "rewardkit/adapters/memory"
	redisAdapter "rewardkit/adapters/redis"
	sqlxAdapter "rewardkit/adapters/sqlx"
	"rewardkit/api/httpapi"
	"rewardkit/config"
	"rewardkit/core"
	"rewardkit/engine"
	"rewardkit/integrations/webhook"
	"rewardkit/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Hub     *realtime.Hub
	Service *engine.RewardService
	Handler http.Handler
	Server  *http.Server
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideStorage(ctx context.Context, cfg *config.Config) (engine.Storage, error) {
	return setupStorage(ctx, cfg)
}

func provideService(cfg *config.Config, hub *realtime.Hub, storage engine.Storage, logger *slog.Logger) (*engine.RewardService, error) {
	catalog := core.DefaultCatalog()
	if len(cfg.Rewards.CatalogOverrides) > 0 {
		overrides := make(map[core.ActionID]int64, len(cfg.Rewards.CatalogOverrides))
		for id, xp := range cfg.Rewards.CatalogOverrides {
			overrides[core.ActionID(id)] = xp
		}
		merged, err := catalog.Merge(overrides)
		if err != nil {
			return nil, fmt.Errorf("invalid catalog overrides: %w", err)
		}
		catalog = merged
	}

	svc := rewardkit.New(
		rewardkit.WithRealtime(hub),
		rewardkit.WithStorage(storage),
		rewardkit.WithCatalog(catalog),
		rewardkit.WithLogger(logger),
		rewardkit.WithDispatchMode(engine.DispatchAsync),
		rewardkit.WithCooldownOptions(engine.WithCapacity(cfg.Rewards.CooldownCapacity)),
	)

	if len(cfg.Rewards.WebhookEndpoints) > 0 {
		sink := webhook.New(cfg.Rewards.WebhookEndpoints)
		svc.SubscribeAll(func(_ context.Context, e core.Event) { sink.OnEvent(e) })
	}

	return svc, nil
}

func provideHandler(svc *engine.RewardService, hub *realtime.Hub, cfg *config.Config) http.Handler {
	return httpapi.NewMux(svc, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		DefaultCooldown:  cfg.Rewards.CooldownWindow,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	out := os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupStorage creates the appropriate storage adapter based on configuration.
func setupStorage(_ context.Context, cfg *config.Config) (engine.Storage, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil
	case "redis":
		return redisAdapter.New(cfg.Storage.Redis)
	case "sql":
		return sqlxAdapter.New(cfg.Storage.SQL)
	case "file":
		return jsonfileAdapter.New(cfg.Storage.File.Path)
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
