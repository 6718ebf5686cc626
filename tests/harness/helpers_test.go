package harness

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mpoloni/persona-deck/dispatch"
	"github.com/mpoloni/persona-deck/persona"
	"github.com/mpoloni/persona-deck/persona/events"
)

// shippedRegistry loads the persona documents committed in personas/.
func shippedRegistry(t *testing.T) *persona.Registry {
	t.Helper()
	reg, err := persona.Load(context.Background(), persona.FileSource{
		Root: filepath.Join("..", "..", "personas"),
	})
	if err != nil {
		t.Fatalf("failed to load shipped personas: %v", err)
	}
	return reg
}

// recordingInvoker captures invocations and returns a canned reply.
type recordingInvoker struct {
	mu    sync.Mutex
	calls []dispatch.Invocation
	reply dispatch.Reply
	err   error
}

func (r *recordingInvoker) Invoke(_ context.Context, inv dispatch.Invocation) (dispatch.Reply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, inv)
	if r.err != nil {
		return dispatch.Reply{}, r.err
	}
	return r.reply, nil
}

func (r *recordingInvoker) lastCall(t *testing.T) dispatch.Invocation {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		t.Fatalf("expected at least one invocation")
	}
	return r.calls[len(r.calls)-1]
}

// recordingSink collects emitted event types in order.
type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Emit(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}
