package strata

import (
	"reflect"
	"testing"
)

func TestRecordLookup(t *testing.T) {
	rec := Record{
		"name": "rex",
		"owner": map[string]any{
			"address": map[string]any{"city": "lisbon"},
		},
	}
	tests := []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"name", "rex", true},
		{"owner.address.city", "lisbon", true},
		{"owner.phone", nil, false},
		{"", nil, false},
	}
	for _, tt := range tests {
		got, ok := rec.Lookup(tt.path)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("Lookup(%q) = (%v, %v), want (%v, %v)", tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRecordSet(t *testing.T) {
	rec := Record{}
	rec.Set("owner.address.city", "lisbon")
	rec.Set("owner.name", "ana")
	rec.Set("name", "rex")

	if got, _ := rec.Lookup("owner.address.city"); got != "lisbon" {
		t.Errorf("nested set: got %v", got)
	}
	if got, _ := rec.Lookup("owner.name"); got != "ana" {
		t.Errorf("sibling set: got %v", got)
	}
	if got, _ := rec.Lookup("name"); got != "rex" {
		t.Errorf("top-level set: got %v", got)
	}

	// Overwriting a scalar intermediate replaces it with a map.
	rec.Set("name.first", "r")
	if got, _ := rec.Lookup("name.first"); got != "r" {
		t.Errorf("scalar replacement: got %v", got)
	}
}

func TestRecordID(t *testing.T) {
	rec := Record{}
	if _, ok := rec.ID(); ok {
		t.Error("empty record reports an identity")
	}

	id := rec.EnsureID()
	if id == "" {
		t.Fatal("EnsureID returned empty identity")
	}
	if again := rec.EnsureID(); again != id {
		t.Errorf("EnsureID not stable: %q then %q", id, again)
	}
	got, ok := rec.ID()
	if !ok || got != id {
		t.Errorf("ID = (%q, %v), want (%q, true)", got, ok, id)
	}

	rec = Record{IDField: 42}
	if _, ok := rec.ID(); ok {
		t.Error("non-string identity reported as set")
	}
}

func TestRecordClone(t *testing.T) {
	rec := Record{
		"name":  "rex",
		"owner": map[string]any{"city": "lisbon"},
	}
	clone := rec.Clone()
	if !reflect.DeepEqual(rec, clone) {
		t.Fatalf("clone differs: %v vs %v", rec, clone)
	}
	clone.Set("owner.city", "porto")
	if got, _ := rec.Lookup("owner.city"); got != "lisbon" {
		t.Error("clone shares nested maps with the original")
	}

	if Record(nil).Clone() != nil {
		t.Error("nil record clone must stay nil")
	}
}
