package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Source is one lazily-produced sequence of matched records. Next returns
// ErrEndOfStream when the sequence is exhausted. The engine always calls
// Close, including on failure, so cursor-backed sources release their
// resources on every path.
type Source interface {
	Next(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// RunOptions are the caller-level knobs applied around one run. Sort and
// Limit shape the rendered group list after accumulation; they are not part
// of the spec itself.
type RunOptions struct {
	Sort  Sort
	Limit int
	// AllowPartial returns the accumulation gathered so far (marked Partial)
	// when the source stops before its natural end. When unset, early
	// termination is a hard error wrapping ErrAborted.
	AllowPartial bool
}

// Sort orders the rendered group list.
type Sort string

const (
	SortNone      Sort = ""
	SortKey       Sort = "key"
	SortKeyDesc   Sort = "-key"
	SortTotal     Sort = "total"
	SortTotalDesc Sort = "-total"
)

// groupState is the per-group accumulation: one total counter and one
// accumulator per stats field.
type groupState struct {
	key   []any
	total int64
	accs  map[string]*accumulator
}

// keySeparator joins the canonical encodings of composite key parts. 0x1f
// (ASCII unit separator) cannot appear inside a JSON encoding.
const keySeparator = "\x1f"

// Run executes one aggregate spec over one streaming pass of the source.
// Records are consumed strictly in delivery order, one at a time; each run
// owns its group map, so concurrent runs over the same collection are
// independent. The spec must already be normalized (see Normalize).
func Run(ctx context.Context, spec *Spec, src Source, opts RunOptions) (result *Result, err error) {
	defer func() {
		if cerr := src.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = fmt.Errorf("aggregate: close source: %w", cerr)
		}
	}()

	if spec == nil {
		return nil, validationErr("", -1, "nil spec")
	}
	// The in-process engine computes count/avg/min/max only; pass-through
	// extension stats need a backend with native aggregation.
	for field, req := range spec.Stats {
		for op := range req.Extra {
			return nil, &UnsupportedOperationError{Op: op, Path: field}
		}
	}

	run := &runState{spec: spec}
	if spec.Kind == KindStats {
		run.flat = newGroupState(nil, spec)
	} else {
		run.groups = make(map[string]*groupState)
	}

	for {
		if err := ctx.Err(); err != nil {
			return run.finish(opts, err)
		}
		rec, err := src.Next(ctx)
		if errors.Is(err, ErrEndOfStream) {
			break
		}
		if err != nil {
			return run.finish(opts, err)
		}
		if err := run.ingest(rec); err != nil {
			return nil, err
		}
	}

	return run.render(opts, false), nil
}

type runState struct {
	spec   *Spec
	flat   *groupState            // stats mode
	groups map[string]*groupState // group mode
	order  []*groupState
}

func newGroupState(key []any, spec *Spec) *groupState {
	g := &groupState{key: key, accs: make(map[string]*accumulator, len(spec.Stats))}
	for field, req := range spec.Stats {
		g.accs[field] = newAccumulator(req)
	}
	return g
}

func (r *runState) ingest(rec map[string]any) error {
	if r.spec.Kind == KindStats {
		return r.feed(r.flat, rec)
	}

	key := make([]any, len(r.spec.GroupBy))
	for i, clause := range r.spec.GroupBy {
		value, _ := LookupPath(rec, clause.Field)
		part, ok, err := resolveKey(clause, i, value)
		if err != nil {
			return err
		}
		if !ok {
			// One unresolvable clause drops the record from every group.
			return nil
		}
		key[i] = part
	}

	id, err := keyID(key)
	if err != nil {
		return err
	}
	group, ok := r.groups[id]
	if !ok {
		group = newGroupState(key, r.spec)
		r.groups[id] = group
		r.order = append(r.order, group)
	}
	return r.feed(group, rec)
}

func (r *runState) feed(g *groupState, rec map[string]any) error {
	g.total++
	for field, acc := range g.accs {
		value, _ := LookupPath(rec, field)
		if err := acc.ingest(field, value); err != nil {
			return err
		}
	}
	return nil
}

// finish handles a run cut short by cancellation or a source failure.
func (r *runState) finish(opts RunOptions, cause error) (*Result, error) {
	if opts.AllowPartial {
		return r.render(opts, true), nil
	}
	return nil, fmt.Errorf("%w: %w", ErrAborted, cause)
}

func (r *runState) render(opts RunOptions, partial bool) *Result {
	res := &Result{Kind: r.spec.Kind, Partial: partial}
	if r.spec.Kind == KindStats {
		res.Stats = make(map[string]map[string]any, len(r.flat.accs))
		for field, acc := range r.flat.accs {
			res.Stats[field] = acc.render()
		}
		if r.spec.Total {
			res.Total = r.flat.total
			res.HasTotal = true
		}
		return res
	}

	res.Groups = make([]GroupResult, 0, len(r.order))
	for _, g := range r.order {
		entry := GroupResult{Key: g.key}
		if len(g.accs) > 0 {
			entry.Stats = make(map[string]map[string]any, len(g.accs))
			for field, acc := range g.accs {
				entry.Stats[field] = acc.render()
			}
		}
		if r.spec.Total {
			entry.Total = g.total
			entry.HasTotal = true
		}
		res.Groups = append(res.Groups, entry)
	}
	sortGroups(res.Groups, opts.Sort)
	if opts.Limit > 0 && len(res.Groups) > opts.Limit {
		res.Groups = res.Groups[:opts.Limit]
	}
	return res
}

// keyID canonically encodes a composite key for group-map identity. JSON
// encoding sorts map keys, so structurally equal values encode identically;
// the rendered key keeps the resolved native values.
func keyID(key []any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, part := range key {
		if i > 0 {
			buf.WriteString(keySeparator)
		}
		if err := enc.Encode(part); err != nil {
			return "", fmt.Errorf("aggregate: encode group key: %w", err)
		}
	}
	return buf.String(), nil
}
