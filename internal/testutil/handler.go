package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/journeysim/internal/engine"
	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/timeline"
)

// Call records one handler invocation.
type Call struct {
	EntityID  string
	EventID   string
	Product   string
	EventType string
	Date      string
}

// RecordingHandler is an engine.Handler that records every call and
// returns canned results. Events without a canned result or failure echo
// their parameters back as the result.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingHandler struct {
	mu       sync.Mutex
	calls    []Call
	results  map[string]ir.IRObject
	failures map[string]string
}

// NewRecordingHandler creates an empty recording handler.
func NewRecordingHandler() *RecordingHandler {
	return &RecordingHandler{
		results:  make(map[string]ir.IRObject),
		failures: make(map[string]string),
	}
}

func key(product, eventType string) string {
	return product + "/" + eventType
}

// SetResult makes events of (product, eventType) return result.
func (h *RecordingHandler) SetResult(product, eventType string, result ir.IRObject) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results[key(product, eventType)] = result
}

// SetFailure makes events of (product, eventType) fail with msg.
func (h *RecordingHandler) SetFailure(product, eventType, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures[key(product, eventType)] = msg
}

// Execute implements engine.Handler.
func (h *RecordingHandler) Execute(_ context.Context, entity engine.Entity, ev *timeline.TimelineEvent, _ ir.IRObject) (ir.IRObject, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, Call{
		EntityID:  entity.ID,
		EventID:   ev.ID,
		Product:   ev.Product,
		EventType: ev.EventType,
		Date:      timeline.FormatDate(ev.ScheduledDate),
	})

	k := key(ev.Product, ev.EventType)
	if msg, ok := h.failures[k]; ok {
		return nil, errors.New(msg)
	}
	if result, ok := h.results[k]; ok {
		return result.Clone(), nil
	}
	return ev.Parameters.Clone(), nil
}

// Calls returns a copy of the recorded calls in invocation order.
func (h *RecordingHandler) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Call, len(h.calls))
	copy(out, h.calls)
	return out
}

// Reset clears recorded calls but keeps canned results.
func (h *RecordingHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
}

// Register installs h on e for every (product, eventType) pair.
func (h *RecordingHandler) Register(e *engine.Engine, pairs ...[2]string) {
	for _, p := range pairs {
		e.RegisterHandler(p[0], p[1], h)
	}
}
