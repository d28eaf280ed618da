package strata

import (
	"context"

	"github.com/quarryhq/strata/aggregate"
)

// Filter is a flat mapping of dot-separated field paths to required values.
// A record matches when every addressed field equals the given value.
// Backend-specific query translation stays behind the Backend boundary; the
// in-memory reference semantics live in Matches.
type Filter map[string]any

// Matches reports whether the record satisfies every filter entry.
func (f Filter) Matches(r Record) bool {
	for path, want := range f {
		got, ok := r.Lookup(path)
		if !ok || !looseEqual(got, want) {
			return false
		}
	}
	return true
}

// looseEqual compares filter values the way a JSON round-trip would: numbers
// compare across numeric types.
func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := numericFilterValue(a)
	bf, bok := numericFilterValue(b)
	return aok && bok && af == bf
}

func numericFilterValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Backend is the minimum contract a storage implementation provides: mutation
// of many records at once. Read access comes through the optional Finder and
// StreamFinder capabilities; a backend must implement at least one of the two
// and NewCollection composes the missing method from the present one.
type Backend interface {
	Name() string
	Insert(ctx context.Context, collection string, records ...Record) error
	Update(ctx context.Context, collection string, filter Filter, changes Record) (int64, error)
	Remove(ctx context.Context, collection string, filter Filter) (int64, error)
}

// Finder is the bulk-read capability.
type Finder interface {
	Find(ctx context.Context, collection string, filter Filter) ([]Record, error)
}

// StreamFinder is the streaming-read capability.
type StreamFinder interface {
	FindStream(ctx context.Context, collection string, filter Filter) (RecordSource, error)
}

// Counter is the capability of backends that can count matches without
// materializing them.
type Counter interface {
	Count(ctx context.Context, collection string, filter Filter) (int64, error)
}

// Upserter is the capability of backends that can replace-or-insert a record
// by identity in one operation.
type Upserter interface {
	Upsert(ctx context.Context, collection string, record Record) error
}

// NativeAggregator is the capability of backends that execute aggregate specs
// themselves (a document database translating the spec to its own pipeline).
// An implementation may decline a spec with UnsupportedOperationError, which
// is surfaced to the caller, not retried against the streaming engine.
type NativeAggregator interface {
	Aggregate(ctx context.Context, collection string, filter Filter, spec *aggregate.Spec, opts aggregate.RunOptions) (*aggregate.Result, error)
}

// Pinger is the liveness capability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Closer is the teardown capability. The Store closes Closers in reverse
// registration order.
type Closer interface {
	Close(ctx context.Context) error
}
