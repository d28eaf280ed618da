package strata

import (
	"context"
	"errors"
	"testing"

	"github.com/quarryhq/strata/aggregate"
)

// findOnlyBackend exposes bulk reads only; streaming must be derived.
type findOnlyBackend struct {
	*MemoryBackend
}

// streamOnlyBackend exposes streaming reads only; bulk must be derived. It
// hides the memory backend's Find and Count capabilities.
type streamOnlyBackend struct {
	mem *MemoryBackend
}

func (b *streamOnlyBackend) Name() string { return "stream-only" }

func (b *streamOnlyBackend) Insert(ctx context.Context, collection string, records ...Record) error {
	return b.mem.Insert(ctx, collection, records...)
}

func (b *streamOnlyBackend) Update(ctx context.Context, collection string, filter Filter, changes Record) (int64, error) {
	return b.mem.Update(ctx, collection, filter, changes)
}

func (b *streamOnlyBackend) Remove(ctx context.Context, collection string, filter Filter) (int64, error) {
	return b.mem.Remove(ctx, collection, filter)
}

func (b *streamOnlyBackend) FindStream(ctx context.Context, collection string, filter Filter) (RecordSource, error) {
	records, err := b.mem.Find(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	return NewSliceSource(records), nil
}

// mutateOnlyBackend has no read capability at all.
type mutateOnlyBackend struct{}

func (mutateOnlyBackend) Name() string { return "mutate-only" }
func (mutateOnlyBackend) Insert(context.Context, string, ...Record) error {
	return nil
}
func (mutateOnlyBackend) Update(context.Context, string, Filter, Record) (int64, error) {
	return 0, nil
}
func (mutateOnlyBackend) Remove(context.Context, string, Filter) (int64, error) {
	return 0, nil
}

func seedAnimals(t *testing.T, c *Collection) {
	t.Helper()
	err := c.Insert(context.Background(),
		Record{"animalType": "dog", "age": 2},
		Record{"animalType": "dog", "age": 5},
		Record{"animalType": "cat", "age": 1},
	)
	if err != nil {
		t.Fatalf("Insert error: %v", err)
	}
}

func newTestCollection(t *testing.T, backend Backend) *Collection {
	t.Helper()
	c, err := newCollection("animals", backend, nil, nil, aggregate.DefaultOptions())
	if err != nil {
		t.Fatalf("newCollection error: %v", err)
	}
	return c
}

func TestCollectionDerivesStreamFromFind(t *testing.T) {
	c := newTestCollection(t, &findOnlyBackend{NewMemoryBackend()})
	seedAnimals(t, c)

	src, err := c.FindStream(context.Background(), Filter{"animalType": "dog"})
	if err != nil {
		t.Fatalf("FindStream error: %v", err)
	}
	records, err := Collect(context.Background(), src)
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("streamed %d records, want 2", len(records))
	}
}

func TestCollectionDerivesFindFromStream(t *testing.T) {
	c := newTestCollection(t, &streamOnlyBackend{mem: NewMemoryBackend()})
	seedAnimals(t, c)

	records, err := c.Find(context.Background(), Filter{"animalType": "dog"})
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("found %d records, want 2", len(records))
	}

	// Counting falls back to draining the derived bulk read.
	n, err := c.Count(context.Background(), Filter{})
	if err != nil || n != 3 {
		t.Errorf("Count = (%d, %v), want 3", n, err)
	}
}

func TestCollectionRejectsReadlessBackend(t *testing.T) {
	_, err := newCollection("animals", mutateOnlyBackend{}, nil, nil, aggregate.DefaultOptions())
	if err == nil {
		t.Fatal("expected error for a backend with no read capability")
	}
}

func TestCollectionFindOne(t *testing.T) {
	c := newTestCollection(t, NewMemoryBackend())
	seedAnimals(t, c)

	rec, err := c.FindOne(context.Background(), Filter{"animalType": "cat"})
	if err != nil {
		t.Fatalf("FindOne error: %v", err)
	}
	if rec["age"] != 1 {
		t.Errorf("record = %v", rec)
	}

	if _, err := c.FindOne(context.Background(), Filter{"animalType": "ferret"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing record error = %v, want ErrNotFound", err)
	}
}

func TestCollectionFindByID(t *testing.T) {
	c := newTestCollection(t, NewMemoryBackend())
	rec := Record{"animalType": "dog"}
	if err := c.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	id, _ := rec.ID()

	found, err := c.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if found["animalType"] != "dog" {
		t.Errorf("record = %v", found)
	}

	if _, err := c.FindByID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id error = %v, want ErrNotFound", err)
	}
}

func TestCollectionUpdateRemove(t *testing.T) {
	c := newTestCollection(t, NewMemoryBackend())
	seedAnimals(t, c)

	n, err := c.Update(context.Background(), Filter{"animalType": "dog"}, Record{"status": "adopted"})
	if err != nil || n != 2 {
		t.Fatalf("Update = (%d, %v), want 2", n, err)
	}
	adopted, err := c.Count(context.Background(), Filter{"status": "adopted"})
	if err != nil || adopted != 2 {
		t.Errorf("adopted count = (%d, %v), want 2", adopted, err)
	}

	n, err = c.Remove(context.Background(), Filter{"animalType": "cat"})
	if err != nil || n != 1 {
		t.Fatalf("Remove = (%d, %v), want 1", n, err)
	}
	left, err := c.Count(context.Background(), Filter{})
	if err != nil || left != 2 {
		t.Errorf("remaining count = (%d, %v), want 2", left, err)
	}
}

func TestCollectionInsertAssignsIDs(t *testing.T) {
	c := newTestCollection(t, NewMemoryBackend())
	rec := Record{"animalType": "dog"}
	if err := c.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if _, ok := rec.ID(); !ok {
		t.Error("inserted record has no identity")
	}
}

func TestCollectionHooks(t *testing.T) {
	var order []string
	hooks := NewHooks().
		OnBeforeSave(func(ctx context.Context, collection string, rec Record) error {
			order = append(order, "before-save")
			rec["audited"] = true
			return nil
		}).
		OnAfterSave(func(ctx context.Context, collection string, rec Record) error {
			order = append(order, "after-save")
			return nil
		}).
		OnBeforeRemove(func(ctx context.Context, collection string, f Filter) error {
			order = append(order, "before-remove")
			return nil
		}).
		OnAfterRemove(func(ctx context.Context, collection string, f Filter) error {
			order = append(order, "after-remove")
			return nil
		}).
		OnBeforeQuery(func(ctx context.Context, collection string, f Filter) error {
			order = append(order, "before-query")
			return nil
		})

	c, err := newCollection("animals", NewMemoryBackend(), hooks, nil, aggregate.DefaultOptions())
	if err != nil {
		t.Fatalf("newCollection error: %v", err)
	}

	rec := Record{"animalType": "dog"}
	if err := c.Insert(context.Background(), rec); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if rec["audited"] != true {
		t.Error("before-save mutation not visible on the stored record")
	}
	if _, err := c.Find(context.Background(), Filter{}); err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if _, err := c.Remove(context.Background(), Filter{"animalType": "dog"}); err != nil {
		t.Fatalf("Remove error: %v", err)
	}

	want := []string{"before-save", "after-save", "before-query", "before-remove", "after-remove"}
	if len(order) != len(want) {
		t.Fatalf("hook order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("hook order = %v, want %v", order, want)
		}
	}
}

func TestCollectionHookVeto(t *testing.T) {
	veto := errors.New("not allowed")
	hooks := NewHooks().OnBeforeSave(func(context.Context, string, Record) error {
		return veto
	})
	mem := NewMemoryBackend()
	c, err := newCollection("animals", mem, hooks, nil, aggregate.DefaultOptions())
	if err != nil {
		t.Fatalf("newCollection error: %v", err)
	}

	if err := c.Insert(context.Background(), Record{"animalType": "dog"}); !errors.Is(err, veto) {
		t.Fatalf("Insert error = %v, want veto", err)
	}
	n, err := mem.Count(context.Background(), "animals", Filter{})
	if err != nil || n != 0 {
		t.Errorf("backend count = (%d, %v), want 0 after veto", n, err)
	}
}

func TestCollectionAggregateStreaming(t *testing.T) {
	c := newTestCollection(t, NewMemoryBackend())
	seedAnimals(t, c)

	res, err := c.Aggregate(context.Background(), Filter{}, map[string]any{
		"groupBy": "animalType",
		"total":   true,
	}, aggregate.RunOptions{})
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if len(res.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(res.Groups))
	}
	if res.Groups[0].Key[0] != "dog" || res.Groups[0].Total != 2 {
		t.Errorf("group[0] = %+v", res.Groups[0])
	}
}

func TestCollectionAggregateFilterApplied(t *testing.T) {
	c := newTestCollection(t, NewMemoryBackend())
	seedAnimals(t, c)

	res, err := c.Aggregate(context.Background(), Filter{"animalType": "dog"}, map[string]any{
		"stats": map[string]any{"age": map[string]any{"avg": true}},
	}, aggregate.RunOptions{})
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if avg := res.Stats["age"]["avg"].(float64); avg != 3.5 {
		t.Errorf("avg = %v, want 3.5 over the two dogs", avg)
	}
}

func TestCollectionAggregateRejectsBadSpec(t *testing.T) {
	c := newTestCollection(t, NewMemoryBackend())
	seedAnimals(t, c)

	_, err := c.Aggregate(context.Background(), Filter{}, map[string]any{}, aggregate.RunOptions{})
	var verr *aggregate.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %T (%v), want *ValidationError", err, err)
	}
}

// nativeBackend records whether native aggregation was used.
type nativeBackend struct {
	*MemoryBackend
	nativeCalled bool
	declineWith  error
}

func (b *nativeBackend) Aggregate(ctx context.Context, collection string, filter Filter, spec *aggregate.Spec, opts aggregate.RunOptions) (*aggregate.Result, error) {
	b.nativeCalled = true
	if b.declineWith != nil {
		return nil, b.declineWith
	}
	return &aggregate.Result{Kind: spec.Kind}, nil
}

func TestCollectionAggregatePrefersNative(t *testing.T) {
	backend := &nativeBackend{MemoryBackend: NewMemoryBackend()}
	c := newTestCollection(t, backend)
	seedAnimals(t, c)

	res, err := c.Aggregate(context.Background(), Filter{}, map[string]any{"stats": "age"}, aggregate.RunOptions{})
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if !backend.nativeCalled {
		t.Error("native aggregation not used")
	}
	if res.Kind != aggregate.KindStats {
		t.Errorf("Kind = %s", res.Kind)
	}
}

func TestCollectionAggregateNativeDeclineSurfaces(t *testing.T) {
	decline := &aggregate.UnsupportedOperationError{Op: "median", Path: "age"}
	backend := &nativeBackend{MemoryBackend: NewMemoryBackend(), declineWith: decline}
	c := newTestCollection(t, backend)
	seedAnimals(t, c)

	_, err := c.Aggregate(context.Background(), Filter{}, map[string]any{"stats": "age"}, aggregate.RunOptions{})
	var uerr *aggregate.UnsupportedOperationError
	if !errors.As(err, &uerr) {
		t.Fatalf("error = %T (%v), want the backend's decline surfaced", err, err)
	}
}
