package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"ratekit/adapters/jsonfile"
	mem "ratekit/adapters/memory"
	redisAdapter "ratekit/adapters/redis"
	sqlxAdapter "ratekit/adapters/sqlx"
	"ratekit/analytics"
	"ratekit/api/httpapi"
	"ratekit/config"
	"ratekit/engine"
	"ratekit/integrations/storelink"
	"ratekit/integrations/webhook"
	"ratekit/ratekit"
	"ratekit/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Hub      *realtime.Hub
	Funnel   *analytics.Funnel
	Registry *engine.Registry
	Handler  http.Handler
	Server   *http.Server
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := os.Getenv("RATEKIT_CONFIG_FILE"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if cfg.Environment == config.EnvProduction {
		if err := cfg.LoadSecretsFromEnv(ctx); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

// provideFunnel returns nil when analytics are disabled.
func provideFunnel(cfg *config.Config) *analytics.Funnel {
	if !cfg.Analytics.Enabled {
		return nil
	}
	return analytics.NewFunnel()
}

func provideStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (engine.Store, func(), error) {
	store, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if c, ok := store.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Warn("closing store failed", "error", err)
			}
		}
	}
	return store, cleanup, nil
}

func provideBus(cfg *config.Config, hub *realtime.Hub, funnel *analytics.Funnel, logger *slog.Logger) (*engine.EventBus, func()) {
	bus := engine.NewEventBus(engine.DispatchAsync)
	var hooks []analytics.Hook
	if funnel != nil {
		hooks = append(hooks, funnel)
	}
	if len(cfg.Analytics.Webhooks) > 0 {
		hooks = append(hooks, webhook.New(cfg.Analytics.Webhooks, webhook.WithLogger(logger)))
	}
	ratekit.Bridge(bus, hub, hooks...)
	return bus, func() {
		bus.Close()
		if n := bus.Dropped(); n > 0 {
			logger.Warn("events dropped", "count", n)
		}
	}
}

func provideRegistry(cfg *config.Config, store engine.Store, bus *engine.EventBus, logger *slog.Logger) (*engine.Registry, error) {
	launcher, err := storelink.NewLauncher(storelink.Store(cfg.Prompt.Store), nil, logger)
	if err != nil {
		return nil, err
	}
	criteria := cfg.Prompt.Criteria()
	return engine.NewRegistry(store, bus, engine.Options{
		AppID:     cfg.Prompt.AppID,
		Namespace: cfg.Prompt.Namespace,
		Config:    &criteria,
		Launcher:  launcher,
		Logger:    logger,
	}), nil
}

func provideHandler(cfg *config.Config, reg *engine.Registry, hub *realtime.Hub, funnel *analytics.Funnel, logger *slog.Logger) http.Handler {
	return httpapi.NewMux(reg, hub, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		AppID:            cfg.Prompt.AppID,
		Store:            storelink.Store(cfg.Prompt.Store),
		Funnel:           funnel,
		Logger:           logger,
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

	var out io.Writer = os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	case "json":
		handler = slog.NewJSONHandler(out, opts)
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
func setupStorage(_ context.Context, cfg *config.Config) (engine.Store, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil
	case "redis":
		return redisAdapter.New(cfg.Storage.Redis)
	case "sql":
		return sqlxAdapter.New(cfg.Storage.SQL)
	case "file":
		return jsonfile.New(cfg.Storage.File.Path)
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
