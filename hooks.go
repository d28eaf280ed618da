package strata

import "context"

// RecordHook observes or vetoes one record-level lifecycle point.
type RecordHook func(ctx context.Context, collection string, record Record) error

// FilterHook observes or vetoes one filter-level lifecycle point.
type FilterHook func(ctx context.Context, collection string, filter Filter) error

// Hooks holds ordered listener lists per lifecycle point. Listeners run
// sequentially in registration order; the first error aborts the operation
// (and, for before-hooks, prevents it entirely).
type Hooks struct {
	beforeSave   []RecordHook
	afterSave    []RecordHook
	beforeRemove []FilterHook
	afterRemove  []FilterHook
	beforeQuery  []FilterHook
}

func NewHooks() *Hooks {
	return &Hooks{}
}

func (h *Hooks) OnBeforeSave(fn RecordHook) *Hooks {
	h.beforeSave = append(h.beforeSave, fn)
	return h
}

func (h *Hooks) OnAfterSave(fn RecordHook) *Hooks {
	h.afterSave = append(h.afterSave, fn)
	return h
}

func (h *Hooks) OnBeforeRemove(fn FilterHook) *Hooks {
	h.beforeRemove = append(h.beforeRemove, fn)
	return h
}

func (h *Hooks) OnAfterRemove(fn FilterHook) *Hooks {
	h.afterRemove = append(h.afterRemove, fn)
	return h
}

func (h *Hooks) OnBeforeQuery(fn FilterHook) *Hooks {
	h.beforeQuery = append(h.beforeQuery, fn)
	return h
}

func (h *Hooks) runRecord(ctx context.Context, hooks []RecordHook, collection string, record Record) error {
	for _, fn := range hooks {
		if err := fn(ctx, collection, record); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hooks) runFilter(ctx context.Context, hooks []FilterHook, collection string, filter Filter) error {
	for _, fn := range hooks {
		if err := fn(ctx, collection, filter); err != nil {
			return err
		}
	}
	return nil
}
