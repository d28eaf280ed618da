package strata

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// RecordSource is one lazily-produced sequence of records. Next returns
// ErrEndOfStream once the sequence is exhausted; Close releases whatever the
// source holds (a database cursor, a goroutine, an open response) and is safe
// to call more than once.
type RecordSource interface {
	Next(ctx context.Context) (Record, error)
	Close(ctx context.Context) error
}

// TotalCounter is the optional capability of sources that know the total
// matched count independent of how far the stream has been consumed.
type TotalCounter interface {
	TotalCount(ctx context.Context) (int64, error)
}

// Collect drains a source into a slice and closes it.
func Collect(ctx context.Context, src RecordSource) ([]Record, error) {
	defer src.Close(context.WithoutCancel(ctx))
	var out []Record
	for {
		rec, err := src.Next(ctx)
		if errors.Is(err, ErrEndOfStream) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// SliceSource serves records from memory. It also reports TotalCount, since
// the whole set is known up front.
type SliceSource struct {
	records []Record
	pos     int
}

// NewSliceSource wraps an in-memory record set as a RecordSource.
func NewSliceSource(records []Record) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.records) {
		return nil, ErrEndOfStream
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

func (s *SliceSource) Close(context.Context) error {
	s.pos = len(s.records)
	return nil
}

func (s *SliceSource) TotalCount(context.Context) (int64, error) {
	return int64(len(s.records)), nil
}

// ChannelSource adapts a producer function into a RecordSource. The producer
// runs in its own goroutine and sends records into the channel it is given;
// closing the source cancels the producer and waits for it to finish, so no
// goroutine outlives the stream.
type ChannelSource struct {
	ch     chan Record
	group  *errgroup.Group
	cancel context.CancelFunc
	done   bool
	err    error
}

// NewChannelSource starts produce and returns the source fed by it. The
// producer must return once its context is cancelled.
func NewChannelSource(ctx context.Context, produce func(ctx context.Context, out chan<- Record) error) *ChannelSource {
	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	src := &ChannelSource{
		ch:     make(chan Record),
		group:  group,
		cancel: cancel,
	}
	group.Go(func() error {
		defer close(src.ch)
		return produce(gctx, src.ch)
	})
	return src
}

func (s *ChannelSource) Next(ctx context.Context) (Record, error) {
	if s.done {
		if s.err != nil {
			return nil, s.err
		}
		return nil, ErrEndOfStream
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case rec, ok := <-s.ch:
		if !ok {
			s.done = true
			if err := s.group.Wait(); err != nil {
				s.err = err
				return nil, err
			}
			return nil, ErrEndOfStream
		}
		return rec, nil
	}
}

func (s *ChannelSource) Close(context.Context) error {
	s.cancel()
	for range s.ch {
		// drain so the producer can finish
	}
	s.done = true
	err := s.group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// CountedSource attaches a known total to a source that cannot compute one
// itself, satisfying TotalCounter by composition instead of mutating the
// stream object.
type CountedSource struct {
	RecordSource
	total int64
}

// NewCountedSource wraps src with a pre-computed total matched count.
func NewCountedSource(src RecordSource, total int64) *CountedSource {
	return &CountedSource{RecordSource: src, total: total}
}

func (s *CountedSource) TotalCount(context.Context) (int64, error) {
	return s.total, nil
}
