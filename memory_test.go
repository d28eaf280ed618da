package strata

import (
	"context"
	"sync"
	"testing"
)

func TestMemoryBackendIsolatesStoredRecords(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	rec := Record{"animalType": "dog", "owner": map[string]any{"city": "lisbon"}}
	if err := b.Insert(ctx, "animals", rec); err != nil {
		t.Fatalf("Insert error: %v", err)
	}

	// Mutating the caller's record after insert must not reach the store.
	rec.Set("owner.city", "porto")
	found, err := b.Find(ctx, "animals", Filter{})
	if err != nil || len(found) != 1 {
		t.Fatalf("Find = (%v, %v)", found, err)
	}
	if got, _ := found[0].Lookup("owner.city"); got != "lisbon" {
		t.Errorf("stored city = %v, want lisbon", got)
	}

	// Mutating a found record must not reach the store either.
	found[0].Set("owner.city", "faro")
	again, _ := b.Find(ctx, "animals", Filter{})
	if got, _ := again[0].Lookup("owner.city"); got != "lisbon" {
		t.Errorf("stored city = %v after reader mutation, want lisbon", got)
	}
}

func TestMemoryBackendUpsert(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	rec := Record{IDField: "a1", "age": 1}
	if err := b.Upsert(ctx, "animals", rec); err != nil {
		t.Fatalf("insert Upsert error: %v", err)
	}
	if err := b.Upsert(ctx, "animals", Record{IDField: "a1", "age": 2}); err != nil {
		t.Fatalf("replace Upsert error: %v", err)
	}

	n, err := b.Count(ctx, "animals", Filter{})
	if err != nil || n != 1 {
		t.Fatalf("count = (%d, %v), want 1", n, err)
	}
	found, _ := b.Find(ctx, "animals", Filter{IDField: "a1"})
	if found[0]["age"] != 2 {
		t.Errorf("age = %v, want 2", found[0]["age"])
	}
}

func TestMemoryBackendConcurrentAccess(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = b.Insert(ctx, "animals", Record{"n": j})
				_, _ = b.Find(ctx, "animals", Filter{})
				_, _ = b.Count(ctx, "animals", Filter{})
			}
		}()
	}
	wg.Wait()

	n, err := b.Count(ctx, "animals", Filter{})
	if err != nil || n != 8*50 {
		t.Errorf("count = (%d, %v), want %d", n, err, 8*50)
	}
}
