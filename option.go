package strata

import (
	"errors"

	"github.com/quarryhq/strata/aggregate"
)

// Option mutates the Store instance during construction.
type Option func(*Store) error

// WithLogger installs the shared logger instance.
func WithLogger(logger Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			return errors.New("nil logger provided")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.logger = logger
		return nil
	}
}

// WithConfig wires a property-based configuration provider.
func WithConfig(cfg *Config) Option {
	return func(s *Store) error {
		if cfg == nil {
			return errors.New("nil config provided")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.config = cfg
		return nil
	}
}

// WithBackend installs the default backend serving every collection without
// an explicit override.
func WithBackend(backend Backend) Option {
	return func(s *Store) error {
		if backend == nil {
			return errors.New("nil backend provided")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.backend = backend
		s.trackCloser(backend)
		return nil
	}
}

// WithCollectionBackend routes one collection to a dedicated backend,
// overriding the default.
func WithCollectionBackend(collection string, backend Backend) Option {
	return func(s *Store) error {
		if collection == "" {
			return errors.New("collection name required")
		}
		if backend == nil {
			return errors.New("nil backend provided")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.overrides[collection] = backend
		s.trackCloser(backend)
		return nil
	}
}

// WithHooks installs the shared lifecycle listener lists applied to every
// collection handle.
func WithHooks(hooks *Hooks) Option {
	return func(s *Store) error {
		if hooks == nil {
			return errors.New("nil hooks provided")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.hooks = hooks
		return nil
	}
}

// WithNormalizerOptions overrides the aggregate normalizer configuration.
func WithNormalizerOptions(opts aggregate.Options) Option {
	return func(s *Store) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.normOpts = opts
		return nil
	}
}

// WithNamer overrides the model-to-collection naming scheme.
func WithNamer(namer Namer) Option {
	return func(s *Store) error {
		if namer == nil {
			return errors.New("nil namer provided")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.namer = namer
		return nil
	}
}
