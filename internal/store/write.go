package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/timeline"
	"github.com/roach88/journeysim/internal/trigger"
)

// WriteRun records a simulation run.
// Idempotent: writing the same run ID twice keeps the first row.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	journeys, err := marshalStrings("journey ids", run.JourneyIDs)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	engineVersion := run.EngineVersion
	if engineVersion == "" {
		engineVersion = ir.EngineVersion
	}
	formatVersion := run.FormatVersion
	if formatVersion == "" {
		formatVersion = ir.FormatVersion
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, master_seed, start_date, up_to, journey_ids, engine_version, format_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.MasterSeed,
		timeline.FormatDate(run.StartDate),
		timeline.FormatDate(run.UpTo),
		journeys,
		engineVersion,
		formatVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteTimeline upserts an entity's timeline and all of its events in one
// transaction. Rewriting a timeline replaces event status, result and
// ordering; events are never deleted.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteTimeline(ctx context.Context, runID string, tl *timeline.Timeline, attrs ir.IRObject) error {
	journeys, err := marshalStrings("journey ids", tl.JourneyIDs)
	if err != nil {
		return fmt.Errorf("write timeline %s: %w", tl.EntityID, err)
	}
	attributes, err := marshalObject("attributes", attrs)
	if err != nil {
		return fmt.Errorf("write timeline %s: %w", tl.EntityID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write timeline %s: begin tx: %w", tl.EntityID, err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO timelines
		(run_id, entity_id, entity_type, start_date, journey_ids, attributes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, entity_id) DO UPDATE SET
			entity_type = excluded.entity_type,
			start_date = excluded.start_date,
			journey_ids = excluded.journey_ids,
			attributes = excluded.attributes
	`,
		runID,
		tl.EntityID,
		tl.EntityType,
		timeline.FormatDate(tl.StartDate),
		journeys,
		attributes,
	)
	if err != nil {
		return fmt.Errorf("write timeline %s: %w", tl.EntityID, err)
	}

	for seq, ev := range tl.Events {
		if err := writeEvent(ctx, tx, runID, tl.EntityID, int64(seq), ev); err != nil {
			return fmt.Errorf("write timeline %s: %w", tl.EntityID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write timeline %s: commit: %w", tl.EntityID, err)
	}
	return nil
}

func writeEvent(ctx context.Context, tx *sql.Tx, runID, entityID string, seq int64, ev *timeline.TimelineEvent) error {
	params, err := marshalObject("parameters", ev.Parameters)
	if err != nil {
		return fmt.Errorf("event %s: %w", ev.ID, err)
	}
	result, err := marshalResult(ev.Result)
	if err != nil {
		return fmt.Errorf("event %s: %w", ev.ID, err)
	}

	var triggerID, instructionID, sourceEventID, sourceProduct *string
	if ev.Source != nil {
		triggerID = &ev.Source.TriggerID
		instructionID = &ev.Source.InstructionID
		sourceEventID = &ev.Source.SourceEventID
		sourceProduct = &ev.Source.SourceProduct
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO timeline_events
		(run_id, entity_id, id, seq, journey_id, event_definition_id, scheduled_date,
		 event_type, product, name, status, result, error, condition, parameters,
		 skip_reason, trigger_id, instruction_id, source_event_id, source_product)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, entity_id, id) DO UPDATE SET
			seq = excluded.seq,
			scheduled_date = excluded.scheduled_date,
			status = excluded.status,
			result = excluded.result,
			error = excluded.error,
			parameters = excluded.parameters,
			skip_reason = excluded.skip_reason
	`,
		runID,
		entityID,
		ev.ID,
		seq,
		ev.JourneyID,
		ev.EventDefinitionID,
		timeline.FormatDate(ev.ScheduledDate),
		ev.EventType,
		ev.Product,
		ev.Name,
		string(ev.Status),
		result,
		ev.Error,
		ev.Condition,
		params,
		ev.SkipReason,
		triggerID,
		instructionID,
		sourceEventID,
		sourceProduct,
	)
	if err != nil {
		return fmt.Errorf("event %s: %w", ev.ID, err)
	}
	return nil
}

// WriteFirings records applied trigger instructions for an entity.
// Uses ON CONFLICT DO NOTHING on instruction_id, so replaying the same
// cascade is a no-op. Returns the number of newly inserted rows.
//
// Note: The timeline for (runID, entityID) must exist (foreign key constraint).
func (s *Store) WriteFirings(ctx context.Context, runID, entityID string, instrs []trigger.Instruction) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write firings: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq) + 1, 0) FROM trigger_firings WHERE run_id = ?
	`, runID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("write firings: next seq: %w", err)
	}

	inserted := 0
	for _, in := range instrs {
		params, err := marshalObject("parameters", in.Parameters)
		if err != nil {
			return 0, fmt.Errorf("write firings: instruction %s: %w", in.ID, err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO trigger_firings
			(run_id, entity_id, instruction_id, seq, trigger_id, source_event_id, source_product,
			 source_event_type, target_product, target_event_type, target_date, parameters)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, instruction_id) DO NOTHING
		`,
			runID,
			entityID,
			in.ID,
			seq,
			in.TriggerID,
			in.SourceEventID,
			in.SourceProduct,
			in.SourceEventType,
			in.TargetProduct,
			in.TargetEventType,
			timeline.FormatDate(in.TargetDate),
			params,
		)
		if err != nil {
			return 0, fmt.Errorf("write firings: instruction %s: %w", in.ID, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("write firings: rows affected: %w", err)
		}
		if n > 0 {
			inserted++
			seq++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write firings: commit: %w", err)
	}
	return inserted, nil
}

// WriteLinks records the product ids of linked entities for a run.
// Existing (core, product) rows are left untouched: a product id, once
// assigned, never changes.
func (s *Store) WriteLinks(ctx context.Context, runID string, links []trigger.LinkedEntity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write links: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, l := range links {
		for product, id := range l.ProductIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO linked_entities (run_id, core_id, product, product_id)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(run_id, core_id, product) DO NOTHING
			`, runID, l.CoreID, product, id)
			if err != nil {
				return fmt.Errorf("write links: %s/%s: %w", l.CoreID, product, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write links: commit: %w", err)
	}
	return nil
}
