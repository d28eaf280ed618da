package strata

import (
	"context"
	"sync"
)

// MemoryBackend is the in-memory reference implementation of the backend
// contract: a mutex-guarded map of collections to record slices. It provides
// bulk reads and counting; streaming is derived by the collection handle.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string][]Record
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string][]Record)}
}

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) Insert(_ context.Context, collection string, records ...Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rec := range records {
		rec.EnsureID()
		b.collections[collection] = append(b.collections[collection], rec.Clone())
	}
	return nil
}

func (b *MemoryBackend) Update(_ context.Context, collection string, filter Filter, changes Record) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for _, rec := range b.collections[collection] {
		if !filter.Matches(rec) {
			continue
		}
		for path, value := range changes {
			rec.Set(path, value)
		}
		n++
	}
	return n, nil
}

func (b *MemoryBackend) Remove(_ context.Context, collection string, filter Filter) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.collections[collection][:0]
	var n int64
	for _, rec := range b.collections[collection] {
		if filter.Matches(rec) {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	b.collections[collection] = kept
	return n, nil
}

func (b *MemoryBackend) Find(_ context.Context, collection string, filter Filter) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Record
	for _, rec := range b.collections[collection] {
		if filter.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (b *MemoryBackend) Count(_ context.Context, collection string, filter Filter) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var n int64
	for _, rec := range b.collections[collection] {
		if filter.Matches(rec) {
			n++
		}
	}
	return n, nil
}

func (b *MemoryBackend) Upsert(_ context.Context, collection string, record Record) error {
	id := record.EnsureID()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, rec := range b.collections[collection] {
		if existing, ok := rec.ID(); ok && existing == id {
			b.collections[collection][i] = record.Clone()
			return nil
		}
	}
	b.collections[collection] = append(b.collections[collection], record.Clone())
	return nil
}

func (b *MemoryBackend) Ping(context.Context) error { return nil }
