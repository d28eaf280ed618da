package aggregate

import (
	"errors"
	"fmt"
)

var (
	// ErrEndOfStream is returned by a Source when the sequence is exhausted.
	ErrEndOfStream = errors.New("aggregate: end of stream")

	// ErrAborted marks an aggregate run that terminated before its source was
	// fully consumed. The wrapped cause carries the reason.
	ErrAborted = errors.New("aggregate: run aborted before end of stream")
)

// ValidationError reports a malformed or self-inconsistent aggregate spec.
// It is always surfaced before any record is touched. Clause is the zero-based
// index of the offending groupBy clause, or -1 when the error is not
// clause-scoped.
type ValidationError struct {
	Path   string
	Clause int
	Reason string
}

func (e *ValidationError) Error() string {
	msg := "aggregate: invalid spec: " + e.Reason
	if e.Path != "" {
		msg += fmt.Sprintf(" (field %q)", e.Path)
	}
	if e.Clause >= 0 {
		msg += fmt.Sprintf(" (clause %d)", e.Clause)
	}
	return msg
}

func validationErr(path string, clause int, format string, args ...any) *ValidationError {
	return &ValidationError{Path: path, Clause: clause, Reason: fmt.Sprintf(format, args...)}
}

// TypeMismatchError reports a record field value that cannot be compared or
// bucketed under the type a clause or stat assumes. It is fatal to the
// in-flight aggregate run; skipping the record would corrupt totals silently.
type TypeMismatchError struct {
	Path   string
	Clause int
	Value  any
	Want   string
}

func (e *TypeMismatchError) Error() string {
	msg := fmt.Sprintf("aggregate: field %q: cannot use %T as %s", e.Path, e.Value, e.Want)
	if e.Clause >= 0 {
		msg += fmt.Sprintf(" (clause %d)", e.Clause)
	}
	return msg
}

func mismatchErr(path string, clause int, value any, want string) *TypeMismatchError {
	return &TypeMismatchError{Path: path, Clause: clause, Value: value, Want: want}
}

// UnsupportedOperationError reports a stat type or grouping mode the executing
// engine or backend declines to handle. Callers are expected to catch it and
// degrade.
type UnsupportedOperationError struct {
	Op   string
	Path string
}

func (e *UnsupportedOperationError) Error() string {
	msg := fmt.Sprintf("aggregate: unsupported operation %q", e.Op)
	if e.Path != "" {
		msg += fmt.Sprintf(" (field %q)", e.Path)
	}
	return msg
}
