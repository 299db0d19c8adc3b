package harness

import (
	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/trigger"
)

// TraceEvent is one timeline event as observed after the run.
type TraceEvent struct {
	Seq        int         `json:"seq"`
	Entity     string      `json:"entity"`
	Date       string      `json:"date"`
	Product    string      `json:"product"`
	EventType  string      `json:"event_type"`
	Status     string      `json:"status"`
	Journey    string      `json:"journey,omitempty"`
	Event      string      `json:"event,omitempty"`
	Trigger    string      `json:"trigger,omitempty"`
	Parameters ir.IRObject `json:"parameters,omitempty"`
	Result     ir.IRObject `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	SkipReason string      `json:"skip_reason,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace lists events entity by entity, each timeline in date order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`

	// Instructions lists the applied trigger instructions per entity.
	Instructions map[string][]trigger.Instruction `json:"instructions"`

	// Links maps entity id to its per-product ids.
	Links map[string]map[string]string `json:"links"`

	// CyclesBlocked counts trigger firings suppressed by cycle detection.
	CyclesBlocked int `json:"cycles_blocked"`

	// QuotaExceeded lists entities whose trigger quota ran out.
	QuotaExceeded []string `json:"quota_exceeded,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:         true,
		Trace:        []TraceEvent{},
		Errors:       []string{},
		Instructions: make(map[string][]trigger.Instruction),
		Links:        make(map[string]map[string]string),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
