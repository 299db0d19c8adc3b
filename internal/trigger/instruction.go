package trigger

import (
	"time"

	"github.com/roach88/journeysim/internal/ir"
)

// Instruction asks the caller to schedule a new event in a target
// product. It is pure data; applying it is the caller's decision.
type Instruction struct {
	// ID is content-addressed from (trigger, source event), so the same
	// trigger fires at most one distinct instruction per source event.
	ID              string      `json:"id"`
	TriggerID       string      `json:"trigger_id"`
	SourceEventID   string      `json:"source_event_id"`
	SourceProduct   string      `json:"source_product"`
	SourceEventType string      `json:"source_event_type"`
	TargetProduct   string      `json:"target_product"`
	TargetEventType string      `json:"target_event_type"`
	TargetDate      time.Time   `json:"target_date"`
	Parameters      ir.IRObject `json:"parameters"`
}
