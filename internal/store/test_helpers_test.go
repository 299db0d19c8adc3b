package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/timeline"
	"github.com/roach88/journeysim/internal/trigger"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string) Run {
	return Run{
		ID:         id,
		MasterSeed: 42,
		StartDate:  timeline.Date(2025, time.January, 1),
		UpTo:       timeline.Date(2025, time.December, 31),
		JourneyIDs: []string{"diabetes-onset"},
	}
}

// createTestRun writes a run so foreign keys are satisfied.
func createTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.WriteRun(context.Background(), testRun(id)))
}

// createTestTimeline builds a timeline with one executed journey event and
// one pending trigger-created event.
func createTestTimeline(entityID string) *timeline.Timeline {
	tl := timeline.New(entityID, "patient", timeline.Date(2025, time.January, 1))
	tl.AddJourney("diabetes-onset")

	dx := &timeline.TimelineEvent{
		ID:                ir.MustTimelineEventID(entityID, "diabetes-onset", "dx"),
		JourneyID:         "diabetes-onset",
		EventDefinitionID: "dx",
		ScheduledDate:     timeline.Date(2025, time.January, 1),
		EventType:         "diagnosis",
		Product:           trigger.ProductPatient,
		Name:              "Diagnosis",
		Status:            timeline.StatusExecuted,
		Result:            ir.IRObject{"icd10": ir.IRString("E11.9")},
		Parameters:        ir.IRObject{"icd10": ir.IRString("E11.9"), "a1c": ir.NewIRDecimal("8.5")},
	}
	claim := &timeline.TimelineEvent{
		ID:            "claim-1",
		ScheduledDate: timeline.Date(2025, time.January, 4),
		EventType:     "claim_professional",
		Product:       trigger.ProductMember,
		Name:          "claim_professional",
		Status:        timeline.StatusPending,
		Parameters:    ir.IRObject{"diagnosis_code": ir.IRString("E11.9")},
		Source: &timeline.Source{
			TriggerID:     "patientsim.diagnosis->membersim.claim_professional",
			InstructionID: "instr-1",
			SourceEventID: dx.ID,
			SourceProduct: trigger.ProductPatient,
		},
	}
	if err := tl.AddEvent(dx); err != nil {
		panic(err)
	}
	if err := tl.AddEvent(claim); err != nil {
		panic(err)
	}
	return tl
}

func createTestInstruction(id, sourceEventID string) trigger.Instruction {
	return trigger.Instruction{
		ID:              id,
		TriggerID:       "patientsim.diagnosis->membersim.claim_professional",
		SourceEventID:   sourceEventID,
		SourceProduct:   trigger.ProductPatient,
		SourceEventType: "diagnosis",
		TargetProduct:   trigger.ProductMember,
		TargetEventType: "claim_professional",
		TargetDate:      timeline.Date(2025, time.January, 4),
		Parameters:      ir.IRObject{"diagnosis_code": ir.IRString("E11.9")},
	}
}
