package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/timeline"
	"github.com/roach88/journeysim/internal/trigger"
)

// ReadRun retrieves a single run by ID.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, master_seed, start_date, up_to, journey_ids, engine_version, format_version
		FROM runs
		WHERE id = ?
	`, id)

	var (
		run             Run
		start, upTo, js string
	)
	if err := row.Scan(&run.ID, &run.MasterSeed, &start, &upTo, &js, &run.EngineVersion, &run.FormatVersion); err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}

	var err error
	if run.StartDate, err = parseDate("start date", start); err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	if run.UpTo, err = parseDate("up to", upTo); err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	if run.JourneyIDs, err = unmarshalStrings("journey ids", js); err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns all run IDs ordered by id COLLATE BINARY.
func (s *Store) ListRuns(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "list runs", `
		SELECT id FROM runs ORDER BY id COLLATE BINARY ASC
	`)
}

// ListEntities returns the entity IDs stored for a run, ordered by
// entity_id COLLATE BINARY.
func (s *Store) ListEntities(ctx context.Context, runID string) ([]string, error) {
	return s.queryStrings(ctx, "list entities", `
		SELECT entity_id FROM timelines
		WHERE run_id = ?
		ORDER BY entity_id COLLATE BINARY ASC
	`, runID)
}

func (s *Store) queryStrings(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// ReadTimeline reconstructs an entity's timeline and its attributes.
// Events are returned ordered by seq ASC, id ASC, which is the order
// they were held in when written.
// Returns an error wrapping sql.ErrNoRows if the timeline does not exist.
func (s *Store) ReadTimeline(ctx context.Context, runID, entityID string) (*timeline.Timeline, ir.IRObject, error) {
	var entityType, start, js, attrText string
	err := s.db.QueryRowContext(ctx, `
		SELECT entity_type, start_date, journey_ids, attributes
		FROM timelines
		WHERE run_id = ? AND entity_id = ?
	`, runID, entityID).Scan(&entityType, &start, &js, &attrText)
	if err != nil {
		return nil, nil, fmt.Errorf("read timeline %s: %w", entityID, err)
	}

	startDate, err := parseDate("start date", start)
	if err != nil {
		return nil, nil, fmt.Errorf("read timeline %s: %w", entityID, err)
	}
	journeys, err := unmarshalStrings("journey ids", js)
	if err != nil {
		return nil, nil, fmt.Errorf("read timeline %s: %w", entityID, err)
	}
	attrs, err := unmarshalObject("attributes", attrText)
	if err != nil {
		return nil, nil, fmt.Errorf("read timeline %s: %w", entityID, err)
	}

	tl := timeline.New(entityID, entityType, startDate)
	tl.JourneyIDs = journeys

	events, err := s.readEvents(ctx, runID, entityID)
	if err != nil {
		return nil, nil, fmt.Errorf("read timeline %s: %w", entityID, err)
	}
	// Rows are already in timeline order.
	tl.Events = events
	return tl, attrs, nil
}

func (s *Store) readEvents(ctx context.Context, runID, entityID string) ([]*timeline.TimelineEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, journey_id, event_definition_id, scheduled_date, event_type, product, name,
		       status, result, error, condition, parameters, skip_reason,
		       trigger_id, instruction_id, source_event_id, source_product
		FROM timeline_events
		WHERE run_id = ? AND entity_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID, entityID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []*timeline.TimelineEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (*timeline.TimelineEvent, error) {
	var (
		ev                                 timeline.TimelineEvent
		date, status, params               string
		result                             sql.NullString
		triggerID, instrID, srcID, srcProd sql.NullString
	)
	err := rows.Scan(
		&ev.ID,
		&ev.JourneyID,
		&ev.EventDefinitionID,
		&date,
		&ev.EventType,
		&ev.Product,
		&ev.Name,
		&status,
		&result,
		&ev.Error,
		&ev.Condition,
		&params,
		&ev.SkipReason,
		&triggerID,
		&instrID,
		&srcID,
		&srcProd,
	)
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}

	ev.Status = timeline.Status(status)
	if ev.ScheduledDate, err = parseDate("scheduled date", date); err != nil {
		return nil, fmt.Errorf("event %s: %w", ev.ID, err)
	}
	if ev.Parameters, err = unmarshalObject("parameters", params); err != nil {
		return nil, fmt.Errorf("event %s: %w", ev.ID, err)
	}
	if result.Valid {
		if ev.Result, err = unmarshalObject("result", result.String); err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.ID, err)
		}
	}
	if triggerID.Valid {
		ev.Source = &timeline.Source{
			TriggerID:     triggerID.String,
			InstructionID: instrID.String,
			SourceEventID: srcID.String,
			SourceProduct: srcProd.String,
		}
	}
	return &ev, nil
}

// ReadFirings returns the trigger instructions applied for an entity,
// ordered by seq ASC, instruction_id ASC.
func (s *Store) ReadFirings(ctx context.Context, runID, entityID string) ([]trigger.Instruction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instruction_id, trigger_id, source_event_id, source_product, source_event_type,
		       target_product, target_event_type, target_date, parameters
		FROM trigger_firings
		WHERE run_id = ? AND entity_id = ?
		ORDER BY seq ASC, instruction_id COLLATE BINARY ASC
	`, runID, entityID)
	if err != nil {
		return nil, fmt.Errorf("read firings: %w", err)
	}
	defer rows.Close()

	out := []trigger.Instruction{}
	for rows.Next() {
		var (
			in           trigger.Instruction
			date, params string
		)
		err := rows.Scan(
			&in.ID,
			&in.TriggerID,
			&in.SourceEventID,
			&in.SourceProduct,
			&in.SourceEventType,
			&in.TargetProduct,
			&in.TargetEventType,
			&date,
			&params,
		)
		if err != nil {
			return nil, fmt.Errorf("read firings: scan: %w", err)
		}
		if in.TargetDate, err = parseDate("target date", date); err != nil {
			return nil, fmt.Errorf("read firings: %s: %w", in.ID, err)
		}
		if in.Parameters, err = unmarshalObject("parameters", params); err != nil {
			return nil, fmt.Errorf("read firings: %s: %w", in.ID, err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read firings: %w", err)
	}
	return out, nil
}

// ReadLinks returns the linked entities of a run ordered by core id.
func (s *Store) ReadLinks(ctx context.Context, runID string) ([]trigger.LinkedEntity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT core_id, product, product_id
		FROM linked_entities
		WHERE run_id = ?
		ORDER BY core_id COLLATE BINARY ASC, product COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read links: %w", err)
	}
	defer rows.Close()

	out := []trigger.LinkedEntity{}
	for rows.Next() {
		var core, product, id string
		if err := rows.Scan(&core, &product, &id); err != nil {
			return nil, fmt.Errorf("read links: scan: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].CoreID != core {
			out = append(out, trigger.LinkedEntity{CoreID: core, ProductIDs: map[string]string{}})
		}
		out[len(out)-1].ProductIDs[product] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read links: %w", err)
	}
	return out, nil
}
