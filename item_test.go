package strata

import (
	"context"
	"errors"
	"testing"

	"github.com/quarryhq/strata/aggregate"
)

func TestItemSaveInsertsNewRecord(t *testing.T) {
	c := newTestCollection(t, NewMemoryBackend())
	item := c.Item(Record{"animalType": "dog"})

	if err := item.Save(context.Background()); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	id := item.ID()
	if id == "" {
		t.Fatal("saved item has no identity")
	}
	if _, err := c.FindByID(context.Background(), id); err != nil {
		t.Errorf("saved record not findable: %v", err)
	}
}

func TestItemSaveReplacesExisting(t *testing.T) {
	c := newTestCollection(t, NewMemoryBackend())
	rec := Record{"animalType": "dog", "age": 2}
	item := c.Item(rec)
	if err := item.Save(context.Background()); err != nil {
		t.Fatalf("first Save error: %v", err)
	}

	rec["age"] = 3
	if err := item.Save(context.Background()); err != nil {
		t.Fatalf("second Save error: %v", err)
	}

	n, err := c.Count(context.Background(), Filter{})
	if err != nil || n != 1 {
		t.Fatalf("count = (%d, %v), want 1 after replace", n, err)
	}
	stored, err := c.FindByID(context.Background(), item.ID())
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if stored["age"] != 3 {
		t.Errorf("age = %v, want 3", stored["age"])
	}
}

// plainBackend hides the memory backend's Upsert so Save has to take the
// update-then-insert path.
type plainBackend struct {
	mem *MemoryBackend
}

func (b *plainBackend) Name() string { return "plain" }

func (b *plainBackend) Insert(ctx context.Context, collection string, records ...Record) error {
	return b.mem.Insert(ctx, collection, records...)
}

func (b *plainBackend) Update(ctx context.Context, collection string, filter Filter, changes Record) (int64, error) {
	return b.mem.Update(ctx, collection, filter, changes)
}

func (b *plainBackend) Remove(ctx context.Context, collection string, filter Filter) (int64, error) {
	return b.mem.Remove(ctx, collection, filter)
}

func (b *plainBackend) Find(ctx context.Context, collection string, filter Filter) ([]Record, error) {
	return b.mem.Find(ctx, collection, filter)
}

func TestItemSaveWithoutUpserter(t *testing.T) {
	c := newTestCollection(t, &plainBackend{mem: NewMemoryBackend()})

	rec := Record{"animalType": "dog", "age": 2}
	item := c.Item(rec)
	if err := item.Save(context.Background()); err != nil {
		t.Fatalf("insert-path Save error: %v", err)
	}

	rec["age"] = 3
	if err := item.Save(context.Background()); err != nil {
		t.Fatalf("update-path Save error: %v", err)
	}
	n, err := c.Count(context.Background(), Filter{})
	if err != nil || n != 1 {
		t.Fatalf("count = (%d, %v), want 1", n, err)
	}
	stored, err := c.FindByID(context.Background(), item.ID())
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if stored["age"] != 3 {
		t.Errorf("age = %v, want 3", stored["age"])
	}
}

func TestItemRemove(t *testing.T) {
	c := newTestCollection(t, NewMemoryBackend())
	item := c.Item(Record{"animalType": "dog"})
	if err := item.Save(context.Background()); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	if err := item.Remove(context.Background()); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if err := item.Remove(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove = %v, want ErrNotFound", err)
	}

	unsaved := c.Item(Record{"animalType": "cat"})
	if err := unsaved.Remove(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove without identity = %v, want ErrNotFound", err)
	}
}

func TestItemSaveRunsHooks(t *testing.T) {
	var calls []string
	hooks := NewHooks().
		OnBeforeSave(func(context.Context, string, Record) error {
			calls = append(calls, "before")
			return nil
		}).
		OnAfterSave(func(context.Context, string, Record) error {
			calls = append(calls, "after")
			return nil
		})
	c, err := newCollection("animals", NewMemoryBackend(), hooks, nil, aggregate.DefaultOptions())
	if err != nil {
		t.Fatalf("newCollection error: %v", err)
	}

	if err := c.Item(Record{"animalType": "dog"}).Save(context.Background()); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if len(calls) != 2 || calls[0] != "before" || calls[1] != "after" {
		t.Errorf("hook calls = %v, want [before after]", calls)
	}
}
