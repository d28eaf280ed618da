package strata

import (
	"context"
	"errors"
	"fmt"

	"github.com/quarryhq/strata/aggregate"
)

// Collection is the handle for operations across many records of one logical
// collection. Read delegation is decided once at construction: a backend
// providing only bulk reads gets streaming derived by wrapping the slice, a
// backend providing only streaming gets bulk derived by draining the stream.
type Collection struct {
	name     string
	backend  Backend
	hooks    *Hooks
	logger   Logger
	normOpts aggregate.Options

	find   func(ctx context.Context, filter Filter) ([]Record, error)
	stream func(ctx context.Context, filter Filter) (RecordSource, error)

	counter Counter
	native  NativeAggregator
}

// newCollection scans the backend's capabilities once and wires the handle.
func newCollection(name string, backend Backend, hooks *Hooks, logger Logger, normOpts aggregate.Options) (*Collection, error) {
	if name == "" {
		return nil, errors.New("strata: collection name is required")
	}
	if backend == nil {
		return nil, errors.New("strata: collection backend is required")
	}
	c := &Collection{
		name:     name,
		backend:  backend,
		hooks:    hooks,
		logger:   logger,
		normOpts: normOpts,
	}
	if c.hooks == nil {
		c.hooks = NewHooks()
	}
	if c.logger == nil {
		c.logger = NewNoopLogger()
	}

	finder, hasFind := backend.(Finder)
	streamer, hasStream := backend.(StreamFinder)
	switch {
	case hasFind && hasStream:
		c.find = func(ctx context.Context, f Filter) ([]Record, error) { return finder.Find(ctx, name, f) }
		c.stream = func(ctx context.Context, f Filter) (RecordSource, error) { return streamer.FindStream(ctx, name, f) }
	case hasFind:
		c.find = func(ctx context.Context, f Filter) ([]Record, error) { return finder.Find(ctx, name, f) }
		c.stream = func(ctx context.Context, f Filter) (RecordSource, error) {
			records, err := finder.Find(ctx, name, f)
			if err != nil {
				return nil, err
			}
			return NewSliceSource(records), nil
		}
	case hasStream:
		c.stream = func(ctx context.Context, f Filter) (RecordSource, error) { return streamer.FindStream(ctx, name, f) }
		c.find = func(ctx context.Context, f Filter) ([]Record, error) {
			src, err := streamer.FindStream(ctx, name, f)
			if err != nil {
				return nil, err
			}
			return Collect(ctx, src)
		}
	default:
		return nil, fmt.Errorf("strata: backend %q provides neither Find nor FindStream", backend.Name())
	}

	c.counter, _ = backend.(Counter)
	c.native, _ = backend.(NativeAggregator)
	return c, nil
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Find returns all records matching the filter.
func (c *Collection) Find(ctx context.Context, filter Filter) ([]Record, error) {
	if err := c.hooks.runFilter(ctx, c.hooks.beforeQuery, c.name, filter); err != nil {
		return nil, err
	}
	return c.find(ctx, filter)
}

// FindOne returns the single record matching the filter, or ErrNotFound.
func (c *Collection) FindOne(ctx context.Context, filter Filter) (Record, error) {
	records, err := c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// FindByID returns the record with the given identity, or ErrNotFound.
func (c *Collection) FindByID(ctx context.Context, id string) (Record, error) {
	return c.FindOne(ctx, Filter{IDField: id})
}

// FindStream returns a lazily-produced sequence of matching records. The
// caller owns the source and must close it.
func (c *Collection) FindStream(ctx context.Context, filter Filter) (RecordSource, error) {
	if err := c.hooks.runFilter(ctx, c.hooks.beforeQuery, c.name, filter); err != nil {
		return nil, err
	}
	return c.stream(ctx, filter)
}

// Count returns the matched record count, using the backend's Counter
// capability when present.
func (c *Collection) Count(ctx context.Context, filter Filter) (int64, error) {
	if err := c.hooks.runFilter(ctx, c.hooks.beforeQuery, c.name, filter); err != nil {
		return 0, err
	}
	if c.counter != nil {
		return c.counter.Count(ctx, c.name, filter)
	}
	records, err := c.find(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}

// Insert stores the given records, assigning identities where absent.
func (c *Collection) Insert(ctx context.Context, records ...Record) error {
	for _, rec := range records {
		rec.EnsureID()
		if err := c.hooks.runRecord(ctx, c.hooks.beforeSave, c.name, rec); err != nil {
			return err
		}
	}
	if err := c.backend.Insert(ctx, c.name, records...); err != nil {
		return err
	}
	for _, rec := range records {
		if err := c.hooks.runRecord(ctx, c.hooks.afterSave, c.name, rec); err != nil {
			return err
		}
	}
	return nil
}

// Update applies the given field changes to every matching record and returns
// the modified count.
func (c *Collection) Update(ctx context.Context, filter Filter, changes Record) (int64, error) {
	if err := c.hooks.runRecord(ctx, c.hooks.beforeSave, c.name, changes); err != nil {
		return 0, err
	}
	n, err := c.backend.Update(ctx, c.name, filter, changes)
	if err != nil {
		return 0, err
	}
	if err := c.hooks.runRecord(ctx, c.hooks.afterSave, c.name, changes); err != nil {
		return n, err
	}
	return n, nil
}

// Remove deletes every matching record and returns the removed count.
func (c *Collection) Remove(ctx context.Context, filter Filter) (int64, error) {
	if err := c.hooks.runFilter(ctx, c.hooks.beforeRemove, c.name, filter); err != nil {
		return 0, err
	}
	n, err := c.backend.Remove(ctx, c.name, filter)
	if err != nil {
		return 0, err
	}
	if err := c.hooks.runFilter(ctx, c.hooks.afterRemove, c.name, filter); err != nil {
		return n, err
	}
	return n, nil
}

// Item wraps one record as a single-record handle bound to this collection.
func (c *Collection) Item(record Record) *Item {
	return &Item{collection: c, record: record}
}

// Aggregate runs an aggregate request over the records matching the filter.
// The raw spec (wire map or typed *aggregate.Spec) is normalized first, so a
// malformed spec fails before any record is touched. A backend with native
// aggregation is preferred; it may decline with UnsupportedOperationError,
// which is surfaced as-is. Otherwise the matched records are streamed once
// through the in-process engine.
func (c *Collection) Aggregate(ctx context.Context, filter Filter, rawSpec any, opts aggregate.RunOptions) (*aggregate.Result, error) {
	spec, err := aggregate.Normalize(rawSpec, c.normOpts)
	if err != nil {
		return nil, err
	}
	if err := c.hooks.runFilter(ctx, c.hooks.beforeQuery, c.name, filter); err != nil {
		return nil, err
	}
	if c.native != nil {
		return c.native.Aggregate(ctx, c.name, filter, spec, opts)
	}
	src, err := c.stream(ctx, filter)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("running streaming aggregate", "collection", c.name, "kind", string(spec.Kind))
	return aggregate.Run(ctx, spec, sourceAdapter{src}, opts)
}

// sourceAdapter bridges RecordSource into the engine's Source.
type sourceAdapter struct {
	src RecordSource
}

func (a sourceAdapter) Next(ctx context.Context) (map[string]any, error) {
	rec, err := a.src.Next(ctx)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (a sourceAdapter) Close(ctx context.Context) error {
	return a.src.Close(ctx)
}
