package aggregate

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Request is one independent aggregate invocation for the runner: the
// normalized spec, a factory opening a fresh source (each run owns its own
// stream), and the per-run options.
type Request struct {
	Spec    *Spec
	Open    func(ctx context.Context) (Source, error)
	Options RunOptions
}

// Runner executes independent aggregate requests concurrently over a bounded
// worker pool. Runs share no mutable state, so no coordination beyond the
// pool is needed.
type Runner struct {
	pool *ants.Pool
}

// NewRunner builds a runner with the given pool size. Sizes below one default
// to half the CPUs, minimum one.
func NewRunner(size int) (*Runner, error) {
	if size < 1 {
		size = runtime.NumCPU() / 2
		if size < 1 {
			size = 1
		}
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("aggregate: runner pool: %w", err)
	}
	return &Runner{pool: pool}, nil
}

// Release tears down the worker pool.
func (r *Runner) Release() {
	r.pool.Release()
}

// RunAll executes every request and returns the results in request order.
// All requests run to completion even when some fail; the returned error
// joins every per-request failure, and the result slice holds nil at failed
// positions.
func (r *Runner) RunAll(ctx context.Context, reqs []Request) ([]*Result, error) {
	results := make([]*Result, len(reqs))
	errs := make([]error, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		submitErr := r.pool.Submit(func() {
			defer wg.Done()
			results[i], errs[i] = r.runOne(ctx, req)
		})
		if submitErr != nil {
			errs[i] = fmt.Errorf("aggregate: submit request %d: %w", i, submitErr)
			wg.Done()
		}
	}
	wg.Wait()

	return results, errors.Join(errs...)
}

func (r *Runner) runOne(ctx context.Context, req Request) (*Result, error) {
	if req.Spec == nil {
		return nil, validationErr("", -1, "nil spec")
	}
	if req.Open == nil {
		return nil, errors.New("aggregate: request has no source")
	}
	src, err := req.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate: open source: %w", err)
	}
	return Run(ctx, req.Spec, src, req.Options)
}
