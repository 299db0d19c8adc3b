package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/journeysim/internal/engine"
	"github.com/roach88/journeysim/internal/timeline"
	"github.com/roach88/journeysim/internal/trigger"
)

// DefaultWorkers is the default cohort concurrency.
const DefaultWorkers = 4

// Runner executes timelines and applies trigger cascades.
//
// Thread-safety: Run may be called concurrently for distinct timelines.
type Runner struct {
	engine   *engine.Engine
	coord    *trigger.Coordinator
	maxSteps int
	workers  int
	logger   *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxSteps sets the per-timeline trigger quota.
// Default: DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(r *Runner) { r.maxSteps = n }
}

// WithWorkers sets cohort concurrency. Values below 1 mean 1.
// Default: DefaultWorkers.
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner. A nil coordinator disables triggers.
func NewRunner(e *engine.Engine, c *trigger.Coordinator, opts ...Option) *Runner {
	r := &Runner{
		engine:   e,
		coord:    c,
		maxSteps: DefaultMaxSteps,
		workers:  DefaultWorkers,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = 1
	}
	return r
}

// Engine returns the runner's engine.
func (r *Runner) Engine() *engine.Engine {
	return r.engine
}

// Result describes one timeline run.
type Result struct {
	EntityID string         `json:"entity_id"`
	Summary  engine.Summary `json:"summary"`

	// Instructions lists applied instructions in application order.
	Instructions []trigger.Instruction `json:"instructions"`

	// CyclesBlocked counts trigger firings suppressed by cycle detection.
	CyclesBlocked int `json:"cycles_blocked"`

	// QuotaErr is set when the trigger quota was exceeded.
	QuotaErr error `json:"-"`
}

// Run executes tl's pending events up to upTo in date order. After each
// successfully executed event its triggers fire, and every resulting
// instruction is applied to tl. Instructions dated on or before upTo are
// executed within the same run.
//
// Per-event failures are recorded on the timeline, never returned. The
// only error is ctx's.
func (r *Runner) Run(ctx context.Context, tl *timeline.Timeline, entity engine.Entity, upTo time.Time) (*Result, error) {
	res := &Result{EntityID: tl.EntityID, Instructions: []trigger.Instruction{}}
	quota := NewQuotaEnforcer(r.maxSteps)
	cycles := NewCycleDetector()
	roots := make(map[string]string)

	for {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("run %s: %w", tl.EntityID, err)
		}
		pending := tl.PendingEventsUpTo(upTo)
		if len(pending) == 0 {
			break
		}

		ev := pending[0]
		result := r.engine.ExecuteEvent(ctx, tl, ev, entity, nil)
		res.Summary.Add(engine.Tally(ev))

		if ev.Status != timeline.StatusExecuted || r.coord == nil || res.QuotaErr != nil {
			continue
		}

		root := ev.ID
		if ev.Source != nil {
			if rt, ok := roots[ev.Source.SourceEventID]; ok {
				root = rt
			}
		}
		roots[ev.ID] = root

		evctx := r.engine.BuildContext(entity, tl.EntityType, ev.JourneyID)
		for _, instr := range r.coord.FireTriggers(ev, result, evctx) {
			if cycles.WouldCycle(root, instr.TriggerID) {
				res.CyclesBlocked++
				r.logger.Warn("trigger cycle blocked",
					"entity_id", tl.EntityID,
					"trigger_id", instr.TriggerID,
					"source_event_id", ev.ID,
					"root_event_id", root,
				)
				continue
			}
			if err := quota.Check(tl.EntityID); err != nil {
				res.QuotaErr = err
				r.logger.Error("trigger quota exceeded",
					"entity_id", tl.EntityID,
					"steps", quota.Current(),
					"limit", quota.MaxSteps(),
				)
				break
			}

			_, applied, err := r.coord.ApplyInstruction(tl, instr)
			if err != nil {
				r.logger.Warn("instruction not applied", "instruction_id", instr.ID, "error", err)
				continue
			}
			cycles.Record(root, instr.TriggerID)
			if applied {
				res.Instructions = append(res.Instructions, instr)
			}
		}
	}

	r.logger.Debug("timeline run complete",
		"entity_id", tl.EntityID,
		"executed", res.Summary.Executed,
		"failed", res.Summary.Failed,
		"instructions", len(res.Instructions),
	)
	return res, nil
}
