// Package selector matches free-text user intent against persona trigger
// descriptions.
package selector

import (
	"context"

	"github.com/mpoloni/persona-deck/persona"
)

// Match is a scored selection result.
type Match struct {
	Record persona.Record
	Score  float64
}

// Selector picks the best persona for an intent, or reports no match. A
// selection is a pure function of the intent and the registry snapshot it
// reads; implementations must not mutate registry state.
type Selector interface {
	Select(ctx context.Context, intent string, reg *persona.Registry) (Match, bool, error)
}
