package engine

import (
	"fmt"
	"time"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/journey"
	"github.com/roach88/journeysim/internal/seed"
	"github.com/roach88/journeysim/internal/timeline"
)

// Skip reasons recorded on placeholder events.
const (
	SkipReasonCondition   = "condition_not_met"
	SkipReasonProbability = "probability"
)

// CreateTimeline builds a new timeline for entity from journey j.
//
// entityType overrides entity.Type when non-empty. The journey is
// validated first; an invalid journey returns a *journey.SpecificationError
// and no timeline.
func (e *Engine) CreateTimeline(entity Entity, entityType string, j *journey.JourneySpecification, start time.Time) (*timeline.Timeline, error) {
	if entityType == "" {
		entityType = entity.Type
	}
	tl := timeline.New(entity.ID, entityType, start)
	if err := e.ScheduleJourney(tl, entity, j, start); err != nil {
		return nil, err
	}
	return tl, nil
}

// ScheduleJourney adds the events of j to an existing timeline, anchored
// at start. A timeline can carry several journeys; scheduling the same
// journey twice returns ErrJourneyScheduled.
//
// Scheduling is one forward pass in declaration order:
//  1. all conditions must hold against BuildContext
//  2. a seeded probability roll must succeed
//  3. the date is anchor + delay, where anchor is the depends_on event's
//     date when that event was scheduled, and start otherwise
//
// Either every event is added or, on error, none is.
func (e *Engine) ScheduleJourney(tl *timeline.Timeline, entity Entity, j *journey.JourneySpecification, start time.Time) error {
	if err := j.Validate(); err != nil {
		return err
	}
	if tl.HasJourney(j.ID) {
		return fmt.Errorf("%w: %s on %s", ErrJourneyScheduled, j.ID, tl.EntityID)
	}

	start = timeline.DateOf(start)
	ctx := e.BuildContext(entity, tl.EntityType, j.ID)
	dates := make(map[string]time.Time, len(j.Events))
	batch := make([]*timeline.TimelineEvent, 0, len(j.Events))

	for _, def := range j.Events {
		id, err := ir.TimelineEventID(entity.ID, j.ID, def.ID)
		if err != nil {
			return fmt.Errorf("event %s: %w", def.ID, err)
		}

		anchor := start
		if dep, ok := dates[def.DependsOn]; ok && def.DependsOn != "" {
			anchor = dep
		}

		if reason := e.exclusion(def, ctx, entity.ID, j.ID); reason != "" {
			e.logger.Debug("event excluded",
				"entity_id", entity.ID,
				"journey_id", j.ID,
				"event_id", def.ID,
				"reason", reason,
			)
			if e.placeholders {
				ev := e.newEvent(id, j.ID, def, anchor, entity.ID)
				ev.Status = timeline.StatusSkipped
				ev.SkipReason = reason
				batch = append(batch, ev)
			}
			continue
		}

		ev := e.newEvent(id, j.ID, def, anchor, entity.ID)
		dates[def.ID] = ev.ScheduledDate
		batch = append(batch, ev)
	}

	for _, ev := range batch {
		if tl.Event(ev.ID) != nil {
			return fmt.Errorf("event %s: %w", ev.ID, timeline.ErrDuplicateEvent)
		}
	}
	for _, ev := range batch {
		if err := tl.AddEvent(ev); err != nil {
			return err
		}
	}
	tl.AddJourney(j.ID)

	e.logger.Debug("journey scheduled",
		"entity_id", entity.ID,
		"journey_id", j.ID,
		"events", len(batch),
	)
	return nil
}

// exclusion returns the reason def is excluded, or "".
func (e *Engine) exclusion(def journey.EventDefinition, ctx ir.IRObject, entityID, journeyID string) string {
	if !journey.AllHold(def.Conditions, ctx) {
		return SkipReasonCondition
	}
	if !seed.Roll(e.seeds.InclusionSeed(entityID, journeyID, def.ID), def.InclusionProbability()) {
		return SkipReasonProbability
	}
	return ""
}

func (e *Engine) newEvent(id, journeyID string, def journey.EventDefinition, anchor time.Time, entityID string) *timeline.TimelineEvent {
	return &timeline.TimelineEvent{
		ID:                id,
		JourneyID:         journeyID,
		EventDefinitionID: def.ID,
		ScheduledDate:     def.Delay.Apply(anchor, e.seeds.DelaySeed(entityID, journeyID, def.ID)),
		EventType:         def.EventType,
		Product:           def.Product,
		Name:              def.Name,
		Status:            timeline.StatusPending,
		Condition:         def.Condition,
		Parameters:        def.Parameters.Clone(),
	}
}
