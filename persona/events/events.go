package events

import (
	"context"

	"github.com/mpoloni/persona-deck/persona"
)

const (
	ReloadStart  = "registry_reload_start"
	ReloadEnd    = "registry_reload_end"
	SelectHit    = "persona_selected"
	SelectMiss   = "persona_select_miss"
	FallbackUsed = "persona_fallback"
	InvokeStart  = "invoke_start"
	InvokeEnd    = "invoke_end"
)

// Event captures a dispatch lifecycle update.
type Event struct {
	Type      string
	RequestID string
	PersonaID string
	Intent    string
	Score     float64
	Err       error
	Record    *persona.Record
}

// Sink consumes events (logging, metrics, UI).
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Reload swaps the registry contents, bracketing the swap with ReloadStart
// and ReloadEnd events. The registry itself stays observation-free; callers
// that want reload visibility go through here. ReloadEnd carries the error
// when the swap was rejected.
func Reload(ctx context.Context, reg *persona.Registry, src persona.Source, sink Sink) error {
	if sink != nil {
		sink.Emit(Event{Type: ReloadStart})
	}
	err := reg.Reload(ctx, src)
	if sink != nil {
		sink.Emit(Event{Type: ReloadEnd, Err: err})
	}
	return err
}
