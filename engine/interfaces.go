package engine

import (
	"context"

	"ratekit/core"
)

// Store abstracts the per-app key-value storage backing the engine.
// Absent keys report ok=false with a nil error.
type Store interface {
	GetInt64(ctx context.Context, key string) (v int64, ok bool, err error)
	GetBool(ctx context.Context, key string) (v bool, ok bool, err error)
	// Commit applies every mutation of the batch together.
	Commit(ctx context.Context, batch *core.Batch) error
}

// SessionRecorder is implemented by stores that can record a session start
// atomically: set installKey to nowMillis when unset and increment launchKey.
type SessionRecorder interface {
	RecordSession(ctx context.Context, installKey, launchKey string, nowMillis int64) error
}

// Dialog renders a prompt and later invokes exactly one of its bindings once.
type Dialog interface {
	Present(ctx context.Context, p Prompt) error
}

// Launcher opens the store listing for an application.
type Launcher interface {
	OpenListing(ctx context.Context, appID string) error
}

// Handler receives the user's answer to a prompt.
type Handler interface {
	OnAccept(ctx context.Context)
	OnDecline(ctx context.Context)
	OnDefer(ctx context.Context)
}

// Prompt is what a Dialog needs to render and report the user's choice.
type Prompt struct {
	Text       core.DialogText
	OnRate     func(context.Context)
	OnLater    func(context.Context)
	OnNoThanks func(context.Context)
	OnCancel   func(context.Context)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Accept  func(context.Context)
	Decline func(context.Context)
	Defer   func(context.Context)
}

func (h HandlerFuncs) OnAccept(ctx context.Context) {
	if h.Accept != nil {
		h.Accept(ctx)
	}
}

func (h HandlerFuncs) OnDecline(ctx context.Context) {
	if h.Decline != nil {
		h.Decline(ctx)
	}
}

func (h HandlerFuncs) OnDefer(ctx context.Context) {
	if h.Defer != nil {
		h.Defer(ctx)
	}
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, appID string) error

func (f LauncherFunc) OpenListing(ctx context.Context, appID string) error { return f(ctx, appID) }

// DialogFunc adapts a function to Dialog.
type DialogFunc func(ctx context.Context, p Prompt) error

func (f DialogFunc) Present(ctx context.Context, p Prompt) error { return f(ctx, p) }
