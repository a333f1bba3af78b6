package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ratekit/core"
)

// DefaultNamespace scopes the persisted keys of a single-app engine.
const DefaultNamespace = "RateThisApp"

// Persisted key suffixes.
const (
	KeyInstallDate = "rta_install_date"
	KeyLaunchTimes = "rta_launch_times"
	KeyOptOut      = "rta_opt_out"
)

// Options configures an Engine.
type Options struct {
	// AppID is handed to the Launcher when the user accepts.
	AppID string
	// Namespace prefixes every persisted key. Defaults to DefaultNamespace.
	Namespace string
	// InstallID tags published events; optional for single-app hosts.
	InstallID core.InstallID
	// Config is the initial prompt configuration. Zero value means defaults.
	Config *core.PromptConfig
	// Launcher opens the store listing on accept. Optional.
	Launcher Launcher
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine decides when to prompt for a rating and records the user's answer.
// It caches the persisted state so ShouldPrompt never touches the store.
type Engine struct {
	store    Store
	bus      *EventBus
	launcher Launcher
	log      *slog.Logger
	now      func() time.Time
	appID    string
	install  core.InstallID

	keyInstall string
	keyLaunch  string
	keyOptOut  string

	mu      sync.Mutex
	cfg     core.PromptConfig
	handler Handler
	state   core.UsageState
}

// NewEngine wires a store and event bus into a decision engine.
func NewEngine(store Store, bus *EventBus, opts Options) *Engine {
	if store == nil || bus == nil {
		panic("NewEngine requires non-nil store and bus")
	}
	ns := opts.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	cfg := core.DefaultPromptConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	e := &Engine{
		store:      store,
		bus:        bus,
		launcher:   opts.Launcher,
		now:        now,
		appID:      opts.AppID,
		install:    opts.InstallID,
		keyInstall: ns + ":" + KeyInstallDate,
		keyLaunch:  ns + ":" + KeyLaunchTimes,
		keyOptOut:  ns + ":" + KeyOptOut,
		cfg:        cfg,
	}
	e.log = logger.With("component", "ratekit", "namespace", ns)
	if opts.InstallID != "" {
		e.log = e.log.With("install_id", string(opts.InstallID))
	}
	e.state.InstallID = opts.InstallID
	return e
}

// Configure replaces the active configuration. Last call wins.
func (e *Engine) Configure(cfg core.PromptConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
}

// Config returns the active configuration.
func (e *Engine) Config() core.PromptConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// RegisterCallback sets the single answer listener; nil clears it.
func (e *Engine) RegisterCallback(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

// Subscribe registers handler for events of typ on the engine's bus and
// returns a func that removes it.
func (e *Engine) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return e.bus.Subscribe(typ, handler)
}

// State returns the cached usage state.
func (e *Engine) State() core.UsageState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// OnSessionStart records one launch: the install date is set when missing and
// the launch counter is incremented. The resulting state is cached and returned.
// Store failures are logged. A failed read skips the write, so the launch is
// undercounted rather than the install date reset.
func (e *Engine) OnSessionStart(ctx context.Context) core.UsageState {
	now := e.now()
	if rec, ok := e.store.(SessionRecorder); ok {
		if err := rec.RecordSession(ctx, e.keyInstall, e.keyLaunch, now.UnixMilli()); err != nil {
			e.log.Warn("record session failed", "error", err)
		}
	} else {
		e.recordSession(ctx, now)
	}

	st := e.Load(ctx)
	e.log.Debug("session started",
		"install_date", st.InstallDate,
		"launch_count", st.LaunchCount,
		"opted_out", st.OptedOut)
	e.bus.Publish(ctx, core.NewEvent(core.EventSessionStarted, now, st))
	return st
}

// recordSession is the read-modify-write fallback for stores without a
// SessionRecorder. Nothing is written unless both counters were read.
func (e *Engine) recordSession(ctx context.Context, now time.Time) {
	installed, ok, err := e.store.GetInt64(ctx, e.keyInstall)
	if err != nil {
		e.log.Warn("session not recorded: read install date failed", "error", err)
		return
	}
	launches, _, err := e.store.GetInt64(ctx, e.keyLaunch)
	if err != nil {
		e.log.Warn("session not recorded: read launch count failed", "error", err)
		return
	}

	batch := core.NewBatch()
	if !ok || installed == 0 {
		batch.PutInt64(e.keyInstall, now.UnixMilli())
		e.log.Debug("first install", "install_date", now)
	}
	next, err := core.NextLaunch(launches)
	if err != nil {
		e.log.Warn("launch count not incremented", "error", err)
		next = launches
	}
	batch.PutInt64(e.keyLaunch, next)
	if err := e.store.Commit(ctx, batch); err != nil {
		e.log.Warn("commit session failed", "error", err)
	}
}

// Load refreshes the cache from the store without counting a launch.
// A value that cannot be read keeps its cached value.
func (e *Engine) Load(ctx context.Context) core.UsageState {
	e.mu.Lock()
	st := e.state
	e.mu.Unlock()
	st.InstallID = e.install

	if ms, ok, err := e.store.GetInt64(ctx, e.keyInstall); err != nil {
		e.log.Warn("read install date failed", "error", err)
	} else if ok {
		st.InstallDate = core.FromUnixMillis(ms)
	} else {
		st.InstallDate = time.Time{}
	}
	if n, ok, err := e.store.GetInt64(ctx, e.keyLaunch); err != nil {
		e.log.Warn("read launch count failed", "error", err)
	} else if ok && n > 0 {
		st.LaunchCount = n
	} else {
		st.LaunchCount = 0
	}
	if v, ok, err := e.store.GetBool(ctx, e.keyOptOut); err != nil {
		e.log.Warn("read opt-out failed", "error", err)
	} else {
		st.OptedOut = ok && v
	}

	e.mu.Lock()
	e.state = st
	e.mu.Unlock()
	return st
}

// persisted reports whether any key of this engine's namespace is stored.
func (e *Engine) persisted(ctx context.Context) (bool, error) {
	for _, key := range []string{e.keyInstall, e.keyLaunch} {
		if _, ok, err := e.store.GetInt64(ctx, key); err != nil || ok {
			return ok, err
		}
	}
	_, ok, err := e.store.GetBool(ctx, e.keyOptOut)
	return ok, err
}

// ShouldPrompt reports whether the rating prompt is due, from cached state.
func (e *Engine) ShouldPrompt() bool {
	e.mu.Lock()
	st, cfg := e.state, e.cfg
	e.mu.Unlock()
	return core.ShouldPrompt(st, cfg, e.now())
}

// PresentIfNeeded presents the prompt on d when it is due and reports whether
// it did.
func (e *Engine) PresentIfNeeded(ctx context.Context, d Dialog) bool {
	if !e.ShouldPrompt() {
		return false
	}
	if err := e.Present(ctx, d); err != nil {
		e.log.Warn("present prompt failed", "error", err)
		return false
	}
	return true
}

// Present hands the prompt to d regardless of the criteria.
func (e *Engine) Present(ctx context.Context, d Dialog) error {
	p := Prompt{
		Text:       e.Config().Text(),
		OnRate:     e.Accept,
		OnLater:    e.Defer,
		OnNoThanks: e.Decline,
		OnCancel:   e.Dismiss,
	}
	if err := d.Present(ctx, p); err != nil {
		return err
	}
	e.bus.Publish(ctx, core.NewEvent(core.EventPromptShown, e.now(), e.State()))
	return nil
}

// Accept handles the "rate" choice: notify, open the listing, opt out.
func (e *Engine) Accept(ctx context.Context) {
	if h := e.currentHandler(); h != nil {
		h.OnAccept(ctx)
	}
	if e.launcher != nil {
		if err := e.launcher.OpenListing(ctx, e.appID); err != nil {
			e.log.Warn("open store listing failed", "app_id", e.appID, "error", err)
		}
	} else {
		e.log.Debug("no launcher configured", "app_id", e.appID)
	}
	e.setOptOut(ctx, true)
	e.bus.Publish(ctx, core.NewEvent(core.EventPromptAccepted, e.now(), e.State()))
}

// Decline handles the "no thanks" choice: notify and opt out.
func (e *Engine) Decline(ctx context.Context) {
	if h := e.currentHandler(); h != nil {
		h.OnDecline(ctx)
	}
	e.setOptOut(ctx, true)
	e.bus.Publish(ctx, core.NewEvent(core.EventPromptDeclined, e.now(), e.State()))
}

// Defer handles the "later" choice: notify and restart accrual.
func (e *Engine) Defer(ctx context.Context) {
	if h := e.currentHandler(); h != nil {
		h.OnDefer(ctx)
	}
	e.clear(ctx)
	e.bus.Publish(ctx, core.NewEvent(core.EventPromptDeferred, e.now(), e.State()))
}

// Dismiss handles a dialog closed without a choice: restart accrual silently.
func (e *Engine) Dismiss(ctx context.Context) {
	e.clear(ctx)
	e.bus.Publish(ctx, core.NewEvent(core.EventPromptDismissed, e.now(), e.State()))
}

func (e *Engine) currentHandler() Handler {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handler
}

// setOptOut persists the flag; the cache follows even when the write fails.
func (e *Engine) setOptOut(ctx context.Context, v bool) {
	if err := e.store.Commit(ctx, core.NewBatch().PutBool(e.keyOptOut, v)); err != nil {
		e.log.Warn("persist opt-out failed", "error", err)
	}
	e.mu.Lock()
	e.state.OptedOut = v
	e.mu.Unlock()
}

// clear removes the counters so the next session start begins a new window.
func (e *Engine) clear(ctx context.Context) {
	batch := core.NewBatch().Remove(e.keyInstall).Remove(e.keyLaunch)
	if err := e.store.Commit(ctx, batch); err != nil {
		e.log.Warn("clear counters failed", "error", err)
	}
	e.mu.Lock()
	e.state.InstallDate = time.Time{}
	e.state.LaunchCount = 0
	e.mu.Unlock()
}
