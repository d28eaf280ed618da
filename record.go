package strata

import (
	"github.com/google/uuid"

	"github.com/quarryhq/strata/aggregate"
)

// IDField is the document key carrying record identity.
const IDField = "_id"

// Record is one addressable document: a plain nested key/value structure
// exposing field values by dot-separated path lookup.
type Record map[string]any

// Lookup resolves a dot-separated field path ("foo.bar" addresses nested
// field bar of foo). Missing intermediate segments resolve to absent.
func (r Record) Lookup(path string) (any, bool) {
	return aggregate.LookupPath(r, path)
}

// Set assigns a value under a dot-separated path, creating intermediate maps
// as needed.
func (r Record) Set(path string, value any) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return
	}
	current := map[string]any(r)
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}

// ID returns the record's identity, if set.
func (r Record) ID() (string, bool) {
	raw, ok := r[IDField]
	if !ok {
		return "", false
	}
	id, ok := raw.(string)
	return id, ok && id != ""
}

// EnsureID returns the record's identity, generating and assigning one when
// absent.
func (r Record) EnsureID() string {
	if id, ok := r.ID(); ok {
		return id
	}
	id := uuid.NewString()
	r[IDField] = id
	return id
}

// Clone returns a deep copy of the record's map structure. Leaf values are
// shared.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(cloneMap(r))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	var segments []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			if i > start {
				segments = append(segments, path[start:i])
			}
			start = i + 1
		}
	}
	return segments
}
