// Package strata is a uniform data-access contract: collection and record
// handles that heterogeneous backends (document databases, embedded key-value
// stores, external APIs, in-memory stores) implement interchangeably, plus a
// declarative aggregate sublanguage evaluated by a streaming engine when a
// backend has no native aggregation.
package strata

import (
	"errors"

	"github.com/quarryhq/strata/aggregate"
)

// ErrNotFound reports an operation addressed at a record that does not exist.
var ErrNotFound = errors.New("strata: record not found")

// ErrEndOfStream is returned by RecordSource.Next when the sequence is
// exhausted.
var ErrEndOfStream = aggregate.ErrEndOfStream

// ErrAborted marks an aggregate run terminated before its source ended.
var ErrAborted = aggregate.ErrAborted

// The aggregate error taxonomy, re-exported at the contract surface so
// callers depend on one package. Every error carries the offending field path
// and, where applicable, the clause index.
type (
	// ValidationError reports a malformed aggregate spec, surfaced before
	// any record is touched.
	ValidationError = aggregate.ValidationError
	// TypeMismatchError reports a record value that cannot be bucketed or
	// compared under a clause's assumed type; fatal to the in-flight run.
	TypeMismatchError = aggregate.TypeMismatchError
	// UnsupportedOperationError reports a stat type or grouping mode the
	// executing backend declines to support.
	UnsupportedOperationError = aggregate.UnsupportedOperationError
)
