package engine

import (
	"context"
	"errors"
	"testing"

	mem "ratekit/adapters/memory"
	"ratekit/core"
)

func TestRegistryIsolatesInstallations(t *testing.T) {
	clock := &fakeClock{t: t0}
	store := mem.New()
	cfg := core.PromptConfig{MinInstallDays: 7, MinLaunches: 2}
	reg := NewRegistry(store, NewEventBus(DispatchSync), Options{AppID: "com.example", Config: &cfg, Now: clock.Now})
	ctx := context.Background()

	a, err := reg.Get(ctx, " Phone-A ")
	if err != nil {
		t.Fatal(err)
	}
	again, _ := reg.Get(ctx, "phone-a")
	if a != again {
		t.Fatal("ids should normalize to the same engine")
	}
	b, _ := reg.Get(ctx, "phone-b")

	a.OnSessionStart(ctx)
	a.OnSessionStart(ctx)
	b.OnSessionStart(ctx)

	if !a.ShouldPrompt() || b.ShouldPrompt() {
		t.Fatal("installations must not share counters")
	}
	if n, ok, _ := store.GetInt64(ctx, DefaultNamespace+":phone-a:"+KeyLaunchTimes); !ok || n != 2 {
		t.Fatalf("unexpected persisted count %d ok=%v", n, ok)
	}
	if reg.Len() != 2 {
		t.Fatalf("want 2 engines, got %d", reg.Len())
	}
	if _, err := reg.Get(ctx, ""); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestRegistryConfigurePropagates(t *testing.T) {
	clock := &fakeClock{t: t0}
	reg := NewRegistry(mem.New(), NewEventBus(DispatchSync), Options{Now: clock.Now})
	ctx := context.Background()

	existing, _ := reg.Get(ctx, "x")
	reg.Configure(core.PromptConfig{MinInstallDays: 1, MinLaunches: 1})
	fresh, _ := reg.Get(ctx, "y")

	for _, e := range []*Engine{existing, fresh} {
		if got := e.Config().MinLaunches; got != 1 {
			t.Fatalf("want 1 got %d", got)
		}
	}
}

func TestRegistryLoadsPersistedState(t *testing.T) {
	clock := &fakeClock{t: t0}
	store := mem.New()
	ctx := context.Background()
	_ = store.Commit(ctx, core.NewBatch().PutBool(DefaultNamespace+":z:"+KeyOptOut, true))

	reg := NewRegistry(store, NewEventBus(DispatchSync), Options{Now: clock.Now})
	e, _ := reg.Get(ctx, "z")
	if !e.State().OptedOut || e.State().InstallID != "z" {
		t.Fatalf("unexpected state %+v", e.State())
	}
}

func TestRegistryLookupRequiresKnownInstall(t *testing.T) {
	clock := &fakeClock{t: t0}
	store := mem.New()
	ctx := context.Background()
	_ = store.Commit(ctx, core.NewBatch().PutInt64(DefaultNamespace+":known:"+KeyLaunchTimes, 4))

	reg := NewRegistry(store, NewEventBus(DispatchSync), Options{Now: clock.Now})
	if _, err := reg.Lookup(ctx, "ghost"); !errors.Is(err, ErrUnknownInstall) {
		t.Fatalf("expected ErrUnknownInstall, got %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("unknown id was cached: %d", reg.Len())
	}
	if _, err := reg.Lookup(ctx, "bad id!"); !errors.Is(err, core.ErrInvalidInstallID) {
		t.Fatalf("expected ErrInvalidInstallID, got %v", err)
	}

	e, err := reg.Lookup(ctx, "known")
	if err != nil {
		t.Fatal(err)
	}
	if e.State().LaunchCount != 4 {
		t.Fatalf("unexpected state %+v", e.State())
	}

	created, _ := reg.Get(ctx, "fresh")
	again, err := reg.Lookup(ctx, "fresh")
	if err != nil || again != created {
		t.Fatalf("cached engine should be found: %v", err)
	}
}

func TestRegistryEvictsLeastRecentlyUsed(t *testing.T) {
	clock := &fakeClock{t: t0}
	store := mem.New()
	reg := NewRegistry(store, NewEventBus(DispatchSync), Options{Now: clock.Now}, WithCapacity(2))
	ctx := context.Background()

	a, _ := reg.Get(ctx, "a")
	a.OnSessionStart(ctx)
	reg.Get(ctx, "b")
	reg.Get(ctx, "a")
	reg.Get(ctx, "c")

	if reg.Len() != 2 {
		t.Fatalf("cache should hold 2 engines, got %d", reg.Len())
	}
	if again, _ := reg.Get(ctx, "a"); again != a {
		t.Fatal("recently used engine should survive eviction")
	}
	if _, err := reg.Lookup(ctx, "b"); !errors.Is(err, ErrUnknownInstall) {
		t.Fatalf("evicted engine without persisted state should be unknown, got %v", err)
	}

	reg.Get(ctx, "d")
	reg.Get(ctx, "e")
	reloaded, err := reg.Lookup(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded == a || reloaded.State().LaunchCount != 1 || !reloaded.State().InstallDate.Equal(t0) {
		t.Fatalf("evicted engine should reload from the store: %+v", reloaded.State())
	}
}

func TestSubscribeReturnsUnsubscribe(t *testing.T) {
	clock := &fakeClock{t: t0}
	reg := NewRegistry(mem.New(), NewEventBus(DispatchSync), Options{Now: clock.Now})
	ctx := context.Background()
	e, _ := reg.Get(ctx, "dev-1")

	var viaRegistry, viaEngine int
	stopRegistry := reg.Subscribe(core.EventSessionStarted, func(context.Context, core.Event) { viaRegistry++ })
	stopEngine := e.Subscribe(core.EventSessionStarted, func(context.Context, core.Event) { viaEngine++ })

	e.OnSessionStart(ctx)
	stopRegistry()
	stopEngine()
	e.OnSessionStart(ctx)

	if viaRegistry != 1 || viaEngine != 1 {
		t.Fatalf("handlers should stop after unsubscribe: registry=%d engine=%d", viaRegistry, viaEngine)
	}
}
