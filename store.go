package strata

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/quarryhq/strata/aggregate"
)

// Store orchestrates backend wiring and hands out collection handles. It owns
// the shared logger, configuration, hooks and normalizer options, and closes
// whatever backends expose the Closer capability, in reverse registration
// order.
type Store struct {
	mu          sync.RWMutex
	logger      Logger
	config      *Config
	hooks       *Hooks
	namer       Namer
	normOpts    aggregate.Options
	backend     Backend
	overrides   map[string]Backend
	collections map[string]*Collection
	closers     []Closer
}

// New builds a Store, applying the provided options sequentially. A default
// backend (or at least one collection override) must be configured before
// the first collection handle is requested.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		logger:      NewNoopLogger(),
		hooks:       NewHooks(),
		namer:       DefaultNamer,
		normOpts:    aggregate.DefaultOptions(),
		overrides:   make(map[string]Backend),
		collections: make(map[string]*Collection),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("strata: applying option: %w", err)
		}
	}
	return s, nil
}

// Collection returns the handle for the named collection, building and
// caching it on first use.
func (s *Store) Collection(name string) (*Collection, error) {
	s.mu.RLock()
	if c, ok := s.collections[name]; ok {
		s.mu.RUnlock()
		return c, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	backend := s.backend
	if override, ok := s.overrides[name]; ok {
		backend = override
	}
	if backend == nil {
		return nil, fmt.Errorf("strata: no backend configured for collection %q", name)
	}
	c, err := newCollection(name, backend, s.hooks, s.logger, s.normOpts)
	if err != nil {
		return nil, err
	}
	s.collections[name] = c
	return c, nil
}

// CollectionFor returns the handle for a model name, mapped through the
// configured namer ("OrderLine" -> "order_lines" by default).
func (s *Store) CollectionFor(model string) (*Collection, error) {
	return s.Collection(s.namer(model))
}

// Logger exposes the shared logger.
func (s *Store) Logger() Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}

// Config exposes the wired configuration, which may be nil.
func (s *Store) Config() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Ping probes every backend exposing the Pinger capability; failures are
// joined.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	backends := make([]Backend, 0, 1+len(s.overrides))
	if s.backend != nil {
		backends = append(backends, s.backend)
	}
	for _, b := range s.overrides {
		backends = append(backends, b)
	}
	s.mu.RUnlock()

	var aggErr error
	for _, b := range backends {
		if pinger, ok := b.(Pinger); ok {
			if err := pinger.Ping(ctx); err != nil {
				aggErr = errors.Join(aggErr, fmt.Errorf("ping %s: %w", b.Name(), err))
			}
		}
	}
	return aggErr
}

// Close tears down registered backends in reverse registration order;
// failures are joined.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var aggErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(ctx); err != nil {
			aggErr = errors.Join(aggErr, fmt.Errorf("close backend: %w", err))
		}
	}
	return aggErr
}

// trackCloser registers the backend for teardown. Caller holds the lock.
func (s *Store) trackCloser(backend Backend) {
	closer, ok := backend.(Closer)
	if !ok {
		return
	}
	for _, existing := range s.closers {
		if existing == closer {
			return
		}
	}
	s.closers = append(s.closers, closer)
}

// BackendFactory constructs a backend of one kind from configuration.
type BackendFactory func(ctx context.Context, cfg *Config, logger Logger) (Backend, error)

var (
	factoryMu sync.RWMutex
	factories = map[string]BackendFactory{
		"memory": func(context.Context, *Config, Logger) (Backend, error) {
			return NewMemoryBackend(), nil
		},
		"mongo": func(ctx context.Context, cfg *Config, logger Logger) (Backend, error) {
			client, err := NewMongoClient(ctx, MongoConfig{
				URI:            cfg.GetStringOrDef("backend.mongo.uri", ""),
				Database:       cfg.GetStringOrDef("backend.mongo.database", ""),
				ConnectTimeout: cfg.GetDurationOrDef("backend.mongo.timeout", 0),
			})
			if err != nil {
				return nil, err
			}
			return NewMongoBackend(client, logger), nil
		},
	}
)

// RegisterBackend installs a factory for a backend kind, so packages
// providing backends outside this one (embedded stores, remote APIs) can make
// themselves reachable from configuration.
func RegisterBackend(kind string, factory BackendFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[kind] = factory
}

// OpenFromConfig builds a Store whose default backend is selected by the
// `backend.kind` property (memory, mongo, or any registered kind). Normalizer
// toggles are read from the `normalizer.*` properties. Extra options are
// applied after the config-derived ones and may override them.
func OpenFromConfig(ctx context.Context, cfg *Config, opts ...Option) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("strata: nil config")
	}
	logger := NewLogger(cfg.GetStringOrDef("log.level", "info"))

	kind := cfg.GetStringOrDef("backend.kind", "memory")
	factoryMu.RLock()
	factory, ok := factories[kind]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("strata: unknown backend kind %q", kind)
	}
	backend, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("strata: open %s backend: %w", kind, err)
	}

	normOpts := aggregate.Options{
		AllowUnknownStats: cfg.GetBoolOrTrue("normalizer.allowunknownstats"),
		StrictFieldPaths:  cfg.GetBoolOrTrue("normalizer.strictfieldpaths"),
		AllowUnknownKeys:  cfg.GetBoolOrFalse("normalizer.allowunknownkeys"),
	}

	all := append([]Option{
		WithLogger(logger),
		WithConfig(cfg),
		WithBackend(backend),
		WithNormalizerOptions(normOpts),
	}, opts...)
	return New(all...)
}
