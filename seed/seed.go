// Package seed applies versioned, idempotent fixture mutations exactly once
// per environment, tracking executions through any strata backend.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quarryhq/strata"
)

// Seed represents a versioned, idempotent mutation that should run once per
// environment.
type Seed struct {
	ID          string
	Description string
	Run         func(ctx context.Context) error
}

// Entry tracks the execution metadata for a seed.
type Entry struct {
	ID          string
	Application string
	Description string
	AppliedAt   time.Time
}

// Tracker persists which seeds have executed.
type Tracker interface {
	HasRun(ctx context.Context, id string) (bool, error)
	MarkRun(ctx context.Context, entry Entry) error
}

// Apply executes the provided seeds exactly once per tracker.
func Apply(ctx context.Context, tracker Tracker, seeds []Seed, application string) error {
	if tracker == nil {
		return errors.New("seed tracker is required")
	}

	for i, s := range seeds {
		if s.ID == "" {
			return fmt.Errorf("seed at index %d missing ID", i)
		}
		if s.Run == nil {
			return fmt.Errorf("seed %s missing Run function", s.ID)
		}

		ran, err := tracker.HasRun(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("check seed %s status: %w", s.ID, err)
		}
		if ran {
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.Run(ctx); err != nil {
			return fmt.Errorf("seed %s failed: %w", s.ID, err)
		}

		entry := Entry{
			ID:          s.ID,
			Application: application,
			Description: s.Description,
			AppliedAt:   time.Now().UTC(),
		}
		if err := tracker.MarkRun(ctx, entry); err != nil {
			return fmt.Errorf("mark seed %s as complete: %w", s.ID, err)
		}
	}

	return nil
}

const defaultCollectionName = "_seeds"

// StoreTracker records seed executions inside a strata collection, so any
// backend implementing the contract can carry them.
type StoreTracker struct {
	collection *strata.Collection
}

// StoreTrackerOption configures a StoreTracker.
type StoreTrackerOption func(*storeTrackerConfig)

type storeTrackerConfig struct {
	collectionName string
}

// WithCollectionName overrides the default collection name used by StoreTracker.
func WithCollectionName(name string) StoreTrackerOption {
	return func(cfg *storeTrackerConfig) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cfg.collectionName = trimmed
		}
	}
}

// NewStoreTracker creates a tracker persisted through the given store.
func NewStoreTracker(store *strata.Store, opts ...StoreTrackerOption) (*StoreTracker, error) {
	if store == nil {
		return nil, errors.New("seed store is required")
	}
	cfg := storeTrackerConfig{collectionName: defaultCollectionName}
	for _, opt := range opts {
		opt(&cfg)
	}

	collection, err := store.Collection(cfg.collectionName)
	if err != nil {
		return nil, fmt.Errorf("seed tracker collection: %w", err)
	}
	return &StoreTracker{collection: collection}, nil
}

// HasRun reports whether a seed with the provided ID is already recorded.
func (t *StoreTracker) HasRun(ctx context.Context, id string) (bool, error) {
	if t == nil || t.collection == nil {
		return false, errors.New("seed tracker is not initialized")
	}

	_, err := t.collection.FindByID(ctx, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, strata.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("query seed %s: %w", id, err)
}

// MarkRun inserts the provided entry into the backing collection.
func (t *StoreTracker) MarkRun(ctx context.Context, entry Entry) error {
	if t == nil || t.collection == nil {
		return errors.New("seed tracker is not initialized")
	}
	if entry.ID == "" {
		return errors.New("seed entry ID is required")
	}

	record := strata.Record{
		"_id":         entry.ID,
		"application": entry.Application,
		"description": entry.Description,
		"applied_at":  entry.AppliedAt.Format(time.RFC3339Nano),
	}
	if err := t.collection.Insert(ctx, record); err != nil {
		return fmt.Errorf("insert seed entry %s: %w", entry.ID, err)
	}
	return nil
}

// InsertOnce ensures a record exists by identity, inserting it exactly once.
func InsertOnce(ctx context.Context, collection *strata.Collection, record strata.Record) error {
	if collection == nil {
		return errors.New("collection is required")
	}
	if record == nil {
		return errors.New("record is required")
	}
	id := record.EnsureID()
	_, err := collection.FindByID(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, strata.ErrNotFound) {
		return fmt.Errorf("check record %s: %w", id, err)
	}
	if err := collection.Insert(ctx, record); err != nil {
		return fmt.Errorf("insert record %s: %w", id, err)
	}
	return nil
}
