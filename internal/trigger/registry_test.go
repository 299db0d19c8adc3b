package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/journey"
	"github.com/roach88/journeysim/internal/timeline"
)

func sourceEvent(product, eventType string) *timeline.TimelineEvent {
	return &timeline.TimelineEvent{
		ID:            "src-1",
		ScheduledDate: timeline.Date(2025, 1, 1),
		EventType:     eventType,
		Product:       product,
		Name:          eventType,
		Status:        timeline.StatusExecuted,
		Parameters:    ir.IRObject{"icd10": ir.IRString("E11.9")},
	}
}

// TestFireTriggers_DiagnosisToClaim fires a fixed-delay trigger.
func TestFireTriggers_DiagnosisToClaim(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("patientsim", "diagnosis", "membersim", "claim_professional", WithDelay(journey.Fixed(3)))

	instrs := r.FireTriggers(sourceEvent("patientsim", "diagnosis"), ir.IRObject{}, nil)
	require.Len(t, instrs, 1)

	in := instrs[0]
	assert.Equal(t, timeline.Date(2025, 1, 4), in.TargetDate)
	assert.Equal(t, "membersim", in.TargetProduct)
	assert.Equal(t, "claim_professional", in.TargetEventType)
	assert.Equal(t, "src-1", in.SourceEventID)
	assert.Equal(t, "patientsim.diagnosis->membersim.claim_professional", in.TriggerID)
	assert.Equal(t, ir.MustInstructionID(in.TriggerID, "src-1"), in.ID)
}

func TestFireTriggers_NoDelayUsesSourceDate(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("trialsim", "adverse_event", "patientsim", "encounter")
	instrs := r.FireTriggers(sourceEvent("trialsim", "adverse_event"), nil, nil)
	require.Len(t, instrs, 1)
	assert.Equal(t, timeline.Date(2025, 1, 1), instrs[0].TargetDate)
}

func TestFireTriggers_Condition(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("patientsim", "lab_order", "membersim", "claim_lab",
		WithCondition(journey.EventCondition{Field: "result.abnormal", Operator: journey.OpEq, Value: ir.IRBool(true)}))
	r.MustRegister("patientsim", "lab_order", "patientsim", "encounter",
		WithCondition(journey.EventCondition{Field: "entity.age", Operator: journey.OpGte, Value: ir.IRInt(65)}))

	src := sourceEvent("patientsim", "lab_order")
	ctx := ir.IRObject{"entity": ir.IRObject{"age": ir.IRInt(40)}}

	assert.Empty(t, r.FireTriggers(src, ir.IRObject{"abnormal": ir.IRBool(false)}, ctx))

	instrs := r.FireTriggers(src, ir.IRObject{"abnormal": ir.IRBool(true)}, ctx)
	require.Len(t, instrs, 1)
	assert.Equal(t, "claim_lab", instrs[0].TargetEventType)

	ctx = ir.IRObject{"entity": ir.IRObject{"age": ir.IRInt(70)}}
	instrs = r.FireTriggers(src, ir.IRObject{"abnormal": ir.IRBool(true)}, ctx)
	require.Len(t, instrs, 2)
	assert.Equal(t, "claim_lab", instrs[0].TargetEventType)
	assert.Equal(t, "encounter", instrs[1].TargetEventType)
}

func TestFireTriggers_SourceContext(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("patientsim", "diagnosis", "membersim", "claim_professional",
		WithCondition(journey.EventCondition{Field: "source.parameters.icd10", Operator: journey.OpIn, Value: ir.NewIRArray(ir.IRString("E11.9"))}))
	assert.Len(t, r.FireTriggers(sourceEvent("patientsim", "diagnosis"), nil, nil), 1)
}

func TestFireTriggers_ParameterMap(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("patientsim", "medication_order", "rxmembersim", "fill",
		WithParameterMap(map[string]string{
			"drug.ndc":    "ndc",
			"drug.name":   "drug_name",
			"days_supply": "supply.days",
			"missing":     "never",
		}))

	result := ir.IRObject{
		"drug":        ir.IRObject{"ndc": ir.IRString("00093-1048"), "name": ir.IRString("metformin")},
		"days_supply": ir.IRInt(30),
	}
	instrs := r.FireTriggers(sourceEvent("patientsim", "medication_order"), result, nil)
	require.Len(t, instrs, 1)
	assert.Equal(t, ir.IRObject{
		"ndc":       ir.IRString("00093-1048"),
		"drug_name": ir.IRString("metformin"),
		"supply":    ir.IRObject{"days": ir.IRInt(30)},
	}, instrs[0].Parameters)

	// Parameters are copies.
	result["drug"].(ir.IRObject)["ndc"] = ir.IRString("changed")
	assert.Equal(t, ir.IRString("00093-1048"), instrs[0].Parameters["ndc"])
}

func TestFireTriggers_UnregisteredKey(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("patientsim", "diagnosis", "membersim", "claim_professional")
	assert.Empty(t, r.FireTriggers(sourceEvent("patientsim", "lab_order"), nil, nil))
	assert.Empty(t, r.FireTriggers(sourceEvent("membersim", "diagnosis"), nil, nil))
}

func TestFireTriggers_UniformDelaySeeded(t *testing.T) {
	a := NewRegistry(WithSeed(11))
	a.MustRegister("patientsim", "diagnosis", "membersim", "claim_professional", WithDelay(journey.Uniform(2, 30)))
	b := NewRegistry(WithSeed(11))
	b.MustRegister("patientsim", "diagnosis", "membersim", "claim_professional", WithDelay(journey.Uniform(2, 30)))

	src := sourceEvent("patientsim", "diagnosis")
	da := a.FireTriggers(src, nil, nil)[0].TargetDate
	db := b.FireTriggers(src, nil, nil)[0].TargetDate
	assert.Equal(t, da, db)

	days := int(da.Sub(src.ScheduledDate) / journey.Day)
	assert.GreaterOrEqual(t, days, 2)
	assert.LessOrEqual(t, days, 30)
}

func TestRegistry_MultipleTriggersOrdered(t *testing.T) {
	r := NewRegistry()
	first := r.MustRegister("patientsim", "diagnosis", "membersim", "claim_professional")
	second := r.MustRegister("patientsim", "diagnosis", "membersim", "claim_professional")
	third := r.MustRegister("patientsim", "diagnosis", "trialsim", "screening", WithID("screen"))

	assert.Equal(t, "patientsim.diagnosis->membersim.claim_professional#2", second.ID)
	assert.Equal(t, "screen", third.ID)

	got := r.GetTriggers("patientsim", "diagnosis")
	require.Len(t, got, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Len(t, r.FireTriggers(sourceEvent("patientsim", "diagnosis"), nil, nil), 3)
	assert.Equal(t, 3, r.Len())
	assert.Len(t, r.All(), 3)
	assert.Empty(t, r.GetTriggers("patientsim", "lab_order"))
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	r := NewRegistry()

	_, err := r.Register("", "diagnosis", "membersim", "claim")
	assert.ErrorIs(t, err, journey.ErrInvalidSpec)

	_, err = r.Register("patientsim", "diagnosis", "membersim", "claim", WithDelay(journey.DelaySpec{Days: -1}))
	assert.ErrorIs(t, err, journey.ErrInvalidSpec)

	_, err = r.Register("patientsim", "diagnosis", "membersim", "claim",
		WithCondition(journey.EventCondition{Field: "x", Operator: "approx"}))
	assert.ErrorIs(t, err, journey.ErrInvalidSpec)

	_, err = r.Register("patientsim", "diagnosis", "membersim", "claim", WithID("dup"))
	require.NoError(t, err)
	_, err = r.Register("patientsim", "lab_order", "membersim", "claim", WithID("dup"))
	assert.ErrorIs(t, err, journey.ErrInvalidSpec)

	assert.Equal(t, 1, r.Len())
}
