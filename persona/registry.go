package persona

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
)

// snapshot is an immutable view of one loaded document set. Readers follow a
// single pointer; Reload builds a new snapshot and swaps the pointer whole.
type snapshot struct {
	byID  map[string]Record
	order []Record
}

// Registry indexes persona records by id and serves read-only views.
// Get and List are safe for concurrent use without coordination once a Load
// or Reload has completed. Reload is serialized against other reloads and
// atomic with respect to readers.
type Registry struct {
	reloadMu sync.Mutex
	snap     atomic.Pointer[snapshot]
}

// Load builds a registry from a source. The load is all-or-nothing: a
// malformed document or duplicate id fails the whole call and no registry is
// returned.
func Load(ctx context.Context, src Source) (*Registry, error) {
	snap, err := buildSnapshot(ctx, src)
	if err != nil {
		return nil, err
	}
	r := &Registry{}
	r.snap.Store(snap)
	return r, nil
}

// Reload replaces the registry contents wholesale. Concurrent readers
// observe either the fully-old or fully-new set, never a mix. On error the
// prior contents stay in place.
func (r *Registry) Reload(ctx context.Context, src Source) error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()
	snap, err := buildSnapshot(ctx, src)
	if err != nil {
		return err
	}
	r.snap.Store(snap)
	return nil
}

// Get returns the record for id.
func (r *Registry) Get(id string) (Record, error) {
	if rec, ok := r.snap.Load().byID[id]; ok {
		return rec, nil
	}
	return Record{}, ErrNotFound
}

// List returns all records in load order. The order is stable but carries no
// meaning beyond tie-breaking in selectors.
func (r *Registry) List() []Record {
	snap := r.snap.Load()
	out := make([]Record, len(snap.order))
	copy(out, snap.order)
	return out
}

// Len reports the number of loaded records.
func (r *Registry) Len() int {
	return len(r.snap.Load().order)
}

func buildSnapshot(ctx context.Context, src Source) (*snapshot, error) {
	if src == nil {
		return nil, errors.New("persona: source is nil")
	}
	records, err := src.List(ctx)
	if err != nil {
		return nil, err
	}
	snap := &snapshot{
		byID:  make(map[string]Record, len(records)),
		order: make([]Record, 0, len(records)),
	}
	for _, rec := range records {
		if err := validate(rec); err != nil {
			return nil, err
		}
		if _, exists := snap.byID[rec.ID]; exists {
			return nil, &DuplicateIDError{ID: rec.ID, Source: rec.Source}
		}
		snap.byID[rec.ID] = rec
		snap.order = append(snap.order, rec)
	}
	return snap, nil
}

func validate(rec Record) error {
	switch {
	case strings.TrimSpace(rec.ID) == "":
		return &MalformedRecordError{Source: rec.Source, Reason: "missing id"}
	case strings.TrimSpace(rec.TriggerDescription) == "":
		return &MalformedRecordError{Source: rec.Source, Reason: "missing trigger description"}
	case strings.TrimSpace(rec.Instructions) == "":
		return &MalformedRecordError{Source: rec.Source, Reason: "missing instructions"}
	}
	return nil
}
