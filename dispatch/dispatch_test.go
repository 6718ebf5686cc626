package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/mpoloni/persona-deck/persona"
	"github.com/mpoloni/persona-deck/persona/events"
	"github.com/mpoloni/persona-deck/selector"
)

func testRegistry(t *testing.T) *persona.Registry {
	t.Helper()
	reg, err := persona.Load(context.Background(), persona.StaticSource{
		{
			ID:                 "analytics-insights",
			TriggerDescription: "tracking plans, funnel analysis, checkout funnels, dashboards",
			Instructions:       "You are an analytics insights advisor.",
			ModelHint:          "opus",
		},
		{
			ID:                 "generalist",
			TriggerDescription: "general assistant",
			Instructions:       "You are a helpful generalist.",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return reg
}

func TestDispatchPassesInstructionsThrough(t *testing.T) {
	var seen Invocation
	invoker := InvokerFunc(func(ctx context.Context, inv Invocation) (Reply, error) {
		seen = inv
		return Reply{Text: "done", StopReason: "stop", Usage: Usage{Input: 10, Output: 5, Total: 15}}, nil
	})

	d, err := New(Config{Registry: testRegistry(t), Selector: selector.Keyword{}, Invoker: invoker})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := d.Dispatch(context.Background(), "help me with funnel tracking for checkout")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Persona.ID != "analytics-insights" {
		t.Fatalf("expected analytics persona, got %q", result.Persona.ID)
	}
	if seen.Instructions != "You are an analytics insights advisor." {
		t.Fatalf("expected instructions passed through unmodified, got %q", seen.Instructions)
	}
	if seen.ModelHint != "opus" {
		t.Fatalf("expected model hint forwarded, got %q", seen.ModelHint)
	}
	if seen.RequestID == "" || seen.RequestID != result.RequestID {
		t.Fatalf("expected matching request ids, got %q vs %q", seen.RequestID, result.RequestID)
	}
	if result.Reply.Text != "done" || result.Reply.Usage.Total != 15 {
		t.Fatalf("unexpected reply: %+v", result.Reply)
	}
}

func TestDispatchNoMatch(t *testing.T) {
	invoker := InvokerFunc(func(ctx context.Context, inv Invocation) (Reply, error) {
		t.Fatal("invoker must not be called on a selection miss")
		return Reply{}, nil
	})
	d, err := New(Config{Registry: testRegistry(t), Selector: selector.Keyword{MinScore: 0.9}, Invoker: invoker})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = d.Dispatch(context.Background(), "completely unrelated weather question")
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestDispatchFallback(t *testing.T) {
	invoker := InvokerFunc(func(ctx context.Context, inv Invocation) (Reply, error) {
		return Reply{Text: "ok"}, nil
	})
	d, err := New(Config{
		Registry:   testRegistry(t),
		Selector:   selector.Keyword{MinScore: 0.9},
		Invoker:    invoker,
		FallbackID: "generalist",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := d.Dispatch(context.Background(), "completely unrelated weather question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Fallback || result.Persona.ID != "generalist" {
		t.Fatalf("expected fallback to generalist, got %+v", result)
	}
}

func TestDispatchInvokerError(t *testing.T) {
	boom := errors.New("backend unavailable")
	invoker := InvokerFunc(func(ctx context.Context, inv Invocation) (Reply, error) {
		return Reply{}, boom
	})
	d, err := New(Config{Registry: testRegistry(t), Selector: selector.Keyword{}, Invoker: invoker})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := d.Dispatch(context.Background(), "funnel tracking checkout"); !errors.Is(err, boom) {
		t.Fatalf("expected invoker error, got %v", err)
	}
}

func TestDispatchEmitsEvents(t *testing.T) {
	var types []string
	sink := events.SinkFunc(func(e events.Event) { types = append(types, e.Type) })
	invoker := InvokerFunc(func(ctx context.Context, inv Invocation) (Reply, error) {
		return Reply{Text: "ok"}, nil
	})
	d, err := New(Config{Registry: testRegistry(t), Selector: selector.Keyword{}, Invoker: invoker, Sink: sink})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := d.Dispatch(context.Background(), "funnel tracking checkout"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{events.SelectHit, events.InvokeStart, events.InvokeEnd}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, types)
		}
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for missing registry")
	}
	if _, err := New(Config{Registry: testRegistry(t)}); err == nil {
		t.Fatalf("expected error for missing selector")
	}
	if _, err := New(Config{Registry: testRegistry(t), Selector: selector.Keyword{}}); err == nil {
		t.Fatalf("expected error for missing invoker")
	}
}

func TestNormalizeUsage(t *testing.T) {
	u := NormalizeUsage(Usage{Input: 3, Output: 4})
	if u.Total != 7 {
		t.Fatalf("expected total 7, got %d", u.Total)
	}
	u = NormalizeUsage(Usage{Input: 3, Output: 4, Total: 9})
	if u.Total != 9 {
		t.Fatalf("expected explicit total preserved, got %d", u.Total)
	}
}
