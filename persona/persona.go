package persona

import "context"

// Record is a single persona definition: identity metadata plus the
// instruction body handed to a model backend verbatim. Records are immutable
// once loaded; a changed persona is a new record replacing the old one by ID.
type Record struct {
	ID                 string
	Name               string
	TriggerDescription string
	Instructions       string
	ModelHint          string
	Source             string
}

// Source loads persona records from a backing store (filesystem, Redis, static).
type Source interface {
	List(ctx context.Context) ([]Record, error)
}

// StaticSource serves a fixed set of records.
type StaticSource []Record

func (s StaticSource) List(ctx context.Context) ([]Record, error) {
	out := make([]Record, len(s))
	copy(out, s)
	return out, nil
}

// FuncSource loads records via an injected function or adapter.
type FuncSource struct {
	ListFunc func(ctx context.Context) ([]Record, error)
}

func (f FuncSource) List(ctx context.Context) ([]Record, error) {
	if f.ListFunc == nil {
		return nil, nil
	}
	return f.ListFunc(ctx)
}
