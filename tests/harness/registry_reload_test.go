package harness

import (
	"context"
	"errors"
	"testing"

	"github.com/mpoloni/persona-deck/persona"
	"github.com/mpoloni/persona-deck/persona/events"
)

func TestReloadEmitsLifecycleEvents(t *testing.T) {
	reg, err := persona.Load(context.Background(), persona.StaticSource{
		{ID: "first", TriggerDescription: "billing invoices", Instructions: "first"},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	sink := &recordingSink{}
	err = events.Reload(context.Background(), reg, persona.StaticSource{
		{ID: "second", TriggerDescription: "shipping labels", Instructions: "second"},
	}, sink)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	got := sink.types()
	if len(got) != 2 || got[0] != events.ReloadStart || got[1] != events.ReloadEnd {
		t.Fatalf("expected reload start/end events, got %v", got)
	}
	if _, err := reg.Get("second"); err != nil {
		t.Fatalf("expected reloaded record, got %v", err)
	}
	if _, err := reg.Get("first"); !errors.Is(err, persona.ErrNotFound) {
		t.Fatalf("expected old record gone, got %v", err)
	}
}

func TestReloadFailureKeepsSnapshotAndReportsError(t *testing.T) {
	reg, err := persona.Load(context.Background(), persona.StaticSource{
		{ID: "keep", TriggerDescription: "billing invoices", Instructions: "keep"},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	sink := &recordingSink{}
	err = events.Reload(context.Background(), reg, persona.StaticSource{
		{ID: "broken", TriggerDescription: "", Instructions: "broken"},
	}, sink)
	if err == nil {
		t.Fatalf("expected reload to fail on malformed record")
	}

	sink.mu.Lock()
	last := sink.events[len(sink.events)-1]
	sink.mu.Unlock()
	if last.Type != events.ReloadEnd || last.Err == nil {
		t.Fatalf("expected ReloadEnd carrying the error, got %+v", last)
	}

	if _, err := reg.Get("keep"); err != nil {
		t.Fatalf("expected prior snapshot to keep serving, got %v", err)
	}
}
