// Package dispatch wires a persona registry, a selector, and a model
// invoker into a single entry point: free-text intent in, model reply out.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mpoloni/persona-deck/persona"
	"github.com/mpoloni/persona-deck/persona/events"
	"github.com/mpoloni/persona-deck/selector"
)

// ErrNoMatch reports that no persona cleared the selector threshold and no
// fallback persona was configured. Recoverable by the caller.
var ErrNoMatch = errors.New("dispatch: no persona matched")

// Invocation is the payload handed to a model backend. Instructions pass
// through unmodified as the system-level directive; ModelHint is advisory
// and backends are free to ignore it.
type Invocation struct {
	RequestID    string
	Instructions string
	ModelHint    string
	UserMessage  string
}

// Reply is the model backend output.
type Reply struct {
	Text       string
	StopReason string
	Usage      Usage
}

// Invoker calls a model backend.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (Reply, error)
}

// InvokerFunc adapts a function to an Invoker.
type InvokerFunc func(ctx context.Context, inv Invocation) (Reply, error)

func (f InvokerFunc) Invoke(ctx context.Context, inv Invocation) (Reply, error) {
	return f(ctx, inv)
}

// Config controls a Dispatcher.
type Config struct {
	Registry   *persona.Registry
	Selector   selector.Selector
	Invoker    Invoker
	FallbackID string       // persona used when no record clears the threshold
	Logger     *slog.Logger // defaults to slog.Default()
	Sink       events.Sink  // optional lifecycle sink
}

// Dispatcher selects a persona for free-text intent and invokes the backend
// with the persona's instructions.
type Dispatcher struct {
	registry   *persona.Registry
	selector   selector.Selector
	invoker    Invoker
	fallbackID string
	logger     *slog.Logger
	sink       events.Sink
}

// Result is one dispatched request.
type Result struct {
	RequestID string
	Persona   persona.Record
	Score     float64
	Fallback  bool
	Reply     Reply
}

// New constructs a Dispatcher from config.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, errors.New("dispatch: registry is required")
	}
	if cfg.Selector == nil {
		return nil, errors.New("dispatch: selector is required")
	}
	if cfg.Invoker == nil {
		return nil, errors.New("dispatch: invoker is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:   cfg.Registry,
		selector:   cfg.Selector,
		invoker:    cfg.Invoker,
		fallbackID: cfg.FallbackID,
		logger:     logger,
		sink:       cfg.Sink,
	}, nil
}

// Select runs selection only, without invoking the backend.
func (d *Dispatcher) Select(ctx context.Context, intent string) (selector.Match, bool, error) {
	return d.selector.Select(ctx, intent, d.registry)
}

// Dispatch selects a persona for the intent and invokes the backend with the
// persona's instructions and the intent as the user message.
func (d *Dispatcher) Dispatch(ctx context.Context, intent string) (Result, error) {
	requestID := uuid.NewString()

	match, ok, err := d.selector.Select(ctx, intent, d.registry)
	if err != nil {
		return Result{}, fmt.Errorf("dispatch: select: %w", err)
	}

	result := Result{RequestID: requestID}
	switch {
	case ok:
		result.Persona = match.Record
		result.Score = match.Score
		d.emit(events.Event{Type: events.SelectHit, RequestID: requestID, PersonaID: match.Record.ID, Intent: intent, Score: match.Score})
	case d.fallbackID != "":
		rec, err := d.registry.Get(d.fallbackID)
		if err != nil {
			return Result{}, fmt.Errorf("dispatch: fallback persona %q: %w", d.fallbackID, err)
		}
		result.Persona = rec
		result.Fallback = true
		d.emit(events.Event{Type: events.FallbackUsed, RequestID: requestID, PersonaID: rec.ID, Intent: intent})
	default:
		d.emit(events.Event{Type: events.SelectMiss, RequestID: requestID, Intent: intent})
		return Result{}, ErrNoMatch
	}

	d.logger.InfoContext(ctx, "dispatching persona",
		"request_id", requestID,
		"persona_id", result.Persona.ID,
		"model_hint", result.Persona.ModelHint,
		"fallback", result.Fallback,
		"score", result.Score)

	d.emit(events.Event{Type: events.InvokeStart, RequestID: requestID, PersonaID: result.Persona.ID})
	reply, err := d.invoker.Invoke(ctx, Invocation{
		RequestID:    requestID,
		Instructions: result.Persona.Instructions,
		ModelHint:    result.Persona.ModelHint,
		UserMessage:  intent,
	})
	d.emit(events.Event{Type: events.InvokeEnd, RequestID: requestID, PersonaID: result.Persona.ID, Err: err})
	if err != nil {
		d.logger.ErrorContext(ctx, "invocation failed",
			"request_id", requestID,
			"persona_id", result.Persona.ID,
			"error", err)
		return Result{}, fmt.Errorf("dispatch: invoke: %w", err)
	}

	d.logger.InfoContext(ctx, "invocation complete",
		"request_id", requestID,
		"persona_id", result.Persona.ID,
		"stop_reason", reply.StopReason,
		"tokens_total", reply.Usage.Total)

	result.Reply = reply
	return result, nil
}

func (d *Dispatcher) emit(e events.Event) {
	if d.sink != nil {
		d.sink.Emit(e)
	}
}
