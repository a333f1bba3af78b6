// Package ratekit assembles a ready-to-use rating prompt engine.
package ratekit

import (
	"context"
	"log/slog"
	"time"

	mem "ratekit/adapters/memory"
	"ratekit/analytics"
	"ratekit/core"
	"ratekit/engine"
	"ratekit/realtime"
)

// Option configures the engine builder.
type Option func(*config)

type config struct {
	store   engine.Store
	mode    engine.DispatchMode
	opts    engine.Options
	handler engine.Handler
	hub     *realtime.Hub
	hooks   []analytics.Hook
}

// WithStore sets the persistence adapter.
func WithStore(s engine.Store) Option { return func(c *config) { c.store = s } }

// WithAppID sets the identifier handed to the store-listing launcher.
func WithAppID(id string) Option { return func(c *config) { c.opts.AppID = id } }

// WithNamespace overrides the key namespace.
func WithNamespace(ns string) Option { return func(c *config) { c.opts.Namespace = ns } }

// WithPromptConfig sets the initial thresholds and labels.
func WithPromptConfig(p core.PromptConfig) Option {
	return func(c *config) { c.opts.Config = &p }
}

// WithCriteria is shorthand for thresholds with default labels.
func WithCriteria(installDays, launches int) Option {
	return func(c *config) {
		p := core.PromptConfig{MinInstallDays: installDays, MinLaunches: launches}
		if c.opts.Config != nil {
			p = *c.opts.Config
			p.MinInstallDays, p.MinLaunches = installDays, launches
		}
		c.opts.Config = &p
	}
}

// WithLauncher sets the store-listing launcher.
func WithLauncher(l engine.Launcher) Option { return func(c *config) { c.opts.Launcher = l } }

// WithCallback registers the answer listener.
func WithCallback(h engine.Handler) Option { return func(c *config) { c.handler = h } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.opts.Logger = l } }

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option { return func(c *config) { c.opts.Now = now } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithHook forwards all engine events to an analytics hook or webhook sink.
func WithHook(h analytics.Hook) Option {
	return func(c *config) {
		if h != nil {
			c.hooks = append(c.hooks, h)
		}
	}
}

// New builds a configured Engine. If not provided, defaults are used:
//   - store: in-memory
//   - criteria: 7 days / 10 launches
//   - dispatch: sync
func New(opts ...Option) *engine.Engine {
	cfg := &config{mode: engine.DispatchSync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.store == nil {
		cfg.store = mem.New()
	}
	bus := engine.NewEventBus(cfg.mode)
	Bridge(bus, cfg.hub, cfg.hooks...)
	e := engine.NewEngine(cfg.store, bus, cfg.opts)
	if cfg.handler != nil {
		e.RegisterCallback(cfg.handler)
	}
	return e
}

// Bridge forwards every engine event on bus to hub and hooks.
func Bridge(bus *engine.EventBus, hub *realtime.Hub, hooks ...analytics.Hook) {
	if hub != nil {
		bus.SubscribeAll(func(ctx context.Context, e core.Event) { hub.Broadcast(ctx, e) })
	}
	if len(hooks) > 0 {
		bridge := analytics.NewBridge(hooks...)
		bus.SubscribeAll(func(_ context.Context, e core.Event) { bridge.OnEvent(e) })
	}
}
