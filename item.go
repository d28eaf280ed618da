package strata

import (
	"context"
	"errors"
)

// Item is the handle for operations on one record.
type Item struct {
	collection *Collection
	record     Record
}

// Record exposes the underlying document.
func (i *Item) Record() Record { return i.record }

// ID returns the record's identity, generating one when absent.
func (i *Item) ID() string { return i.record.EnsureID() }

// Save persists the record: a new record is inserted with a generated
// identity, an existing one is replaced by identity. Backends exposing the
// Upserter capability do both in one operation.
func (i *Item) Save(ctx context.Context) error {
	if i.record == nil {
		return errors.New("strata: cannot save a nil record")
	}
	c := i.collection
	id := i.record.EnsureID()

	if err := c.hooks.runRecord(ctx, c.hooks.beforeSave, c.name, i.record); err != nil {
		return err
	}
	if up, ok := c.backend.(Upserter); ok {
		if err := up.Upsert(ctx, c.name, i.record); err != nil {
			return err
		}
		return c.hooks.runRecord(ctx, c.hooks.afterSave, c.name, i.record)
	}

	n, err := c.backend.Update(ctx, c.name, Filter{IDField: id}, i.record)
	if err != nil {
		return err
	}
	if n == 0 {
		if err := c.backend.Insert(ctx, c.name, i.record); err != nil {
			return err
		}
	}
	return c.hooks.runRecord(ctx, c.hooks.afterSave, c.name, i.record)
}

// Remove deletes the record by identity, returning ErrNotFound when it does
// not exist.
func (i *Item) Remove(ctx context.Context) error {
	if i.record == nil {
		return errors.New("strata: cannot remove a nil record")
	}
	id, ok := i.record.ID()
	if !ok {
		return ErrNotFound
	}
	c := i.collection
	filter := Filter{IDField: id}
	if err := c.hooks.runFilter(ctx, c.hooks.beforeRemove, c.name, filter); err != nil {
		return err
	}
	n, err := c.backend.Remove(ctx, c.name, filter)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return c.hooks.runFilter(ctx, c.hooks.afterRemove, c.name, filter)
}
