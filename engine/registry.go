package engine

import (
	"container/list"
	"context"
	"errors"
	"sync"

	"ratekit/core"
)

// DefaultRegistryCapacity bounds how many engines a Registry keeps in memory.
const DefaultRegistryCapacity = 10000

// ErrUnknownInstall is returned by Lookup for an id with no cached engine and no
// persisted state.
var ErrUnknownInstall = errors.New("unknown install")

// Registry keeps one Engine per installation over a shared store and bus.
// Each installation persists under "<namespace>:<install id>". At most
// capacity engines stay cached; the least recently used is evicted and
// reloaded from the store on its next use.
type Registry struct {
	store    Store
	bus      *EventBus
	base     Options
	capacity int

	mu      sync.Mutex
	engines map[core.InstallID]*list.Element
	order   *list.List // front is most recently used
}

type registryEntry struct {
	id     core.InstallID
	engine *Engine
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithCapacity sets the engine cache size. Values below 1 are ignored.
func WithCapacity(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// NewRegistry creates a registry; base supplies the options every engine
// shares. base.InstallID is ignored.
func NewRegistry(store Store, bus *EventBus, base Options, opts ...RegistryOption) *Registry {
	if store == nil || bus == nil {
		panic("NewRegistry requires non-nil store and bus")
	}
	if base.Namespace == "" {
		base.Namespace = DefaultNamespace
	}
	r := &Registry{
		store:    store,
		bus:      bus,
		base:     base,
		capacity: DefaultRegistryCapacity,
		engines:  make(map[core.InstallID]*list.Element),
		order:    list.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the engine for id, creating it and loading its state on first use.
func (r *Registry) Get(ctx context.Context, id core.InstallID) (*Engine, error) {
	return r.get(ctx, id, false)
}

// Lookup is Get for ids that must already exist: an id that is neither cached
// nor persisted yields ErrUnknownInstall and is not cached.
func (r *Registry) Lookup(ctx context.Context, id core.InstallID) (*Engine, error) {
	return r.get(ctx, id, true)
}

func (r *Registry) get(ctx context.Context, id core.InstallID, mustExist bool) (*Engine, error) {
	normalized, err := core.NormalizeInstallID(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	if el, ok := r.engines[normalized]; ok {
		r.order.MoveToFront(el)
		r.mu.Unlock()
		return el.Value.(*registryEntry).engine, nil
	}
	opts := r.base
	r.mu.Unlock()

	opts.InstallID = normalized
	opts.Namespace = opts.Namespace + ":" + string(normalized)
	if opts.Config != nil {
		cfg := *opts.Config
		opts.Config = &cfg
	}
	e := NewEngine(r.store, r.bus, opts)
	if mustExist {
		known, err := e.persisted(ctx)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, ErrUnknownInstall
		}
	}
	e.Load(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.engines[normalized]; ok {
		r.order.MoveToFront(el)
		return el.Value.(*registryEntry).engine, nil
	}
	r.engines[normalized] = r.order.PushFront(&registryEntry{id: normalized, engine: e})
	for r.order.Len() > r.capacity {
		oldest := r.order.Back()
		r.order.Remove(oldest)
		delete(r.engines, oldest.Value.(*registryEntry).id)
	}
	return e, nil
}

// Configure replaces the configuration of every current and future engine.
func (r *Registry) Configure(cfg core.PromptConfig) {
	r.mu.Lock()
	c := cfg
	r.base.Config = &c
	engines := make([]*Engine, 0, len(r.engines))
	for el := r.order.Front(); el != nil; el = el.Next() {
		engines = append(engines, el.Value.(*registryEntry).engine)
	}
	r.mu.Unlock()
	for _, e := range engines {
		e.Configure(cfg)
	}
}

// Len reports how many installations are cached.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// Store exposes the shared store, e.g. for health checks.
func (r *Registry) Store() Store { return r.store }

// Subscribe registers handler for events of typ on the shared bus and returns
// a func that removes it.
func (r *Registry) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return r.bus.Subscribe(typ, handler)
}

// Close stops the shared bus.
func (r *Registry) Close() { r.bus.Close() }
