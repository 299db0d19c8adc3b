package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/journey"
	"github.com/roach88/journeysim/internal/timeline"
)

func threeStep() *journey.JourneySpecification {
	return &journey.JourneySpecification{
		ID:       "three-step",
		Name:     "Three step",
		Products: []string{"patientsim"},
		Events: []journey.EventDefinition{
			{ID: "dx", Name: "Dx", EventType: "diagnosis", Product: "patientsim", Delay: journey.Fixed(0),
				Parameters: ir.IRObject{"icd10": ir.IRString("E11.9")}},
			{ID: "rx", Name: "Rx", EventType: "medication_order", Product: "patientsim", Delay: journey.Fixed(5), DependsOn: "dx"},
			{ID: "lab", Name: "Lab", EventType: "lab_order", Product: "patientsim", Delay: journey.Fixed(10), DependsOn: "dx"},
		},
	}
}

func okHandler(status string) HandlerFunc {
	return func(_ context.Context, _ Entity, ev *timeline.TimelineEvent, _ ir.IRObject) (ir.IRObject, error) {
		return ir.IRObject{"status": ir.IRString(status), "event": ir.IRString(ev.EventDefinitionID)}, nil
	}
}

func newTimeline(t *testing.T, e *Engine, ent Entity, j *journey.JourneySpecification) *timeline.Timeline {
	t.Helper()
	tl, err := e.CreateTimeline(ent, "", j, timeline.Date(2025, 1, 1))
	require.NoError(t, err)
	return tl
}

func TestExecuteEvent_HandlerResult(t *testing.T) {
	e := New(1)
	var seen ir.IRObject
	e.RegisterHandler("patientsim", "diagnosis", HandlerFunc(func(_ context.Context, ent Entity, ev *timeline.TimelineEvent, evctx ir.IRObject) (ir.IRObject, error) {
		seen = evctx
		return ir.IRObject{"code": ev.Parameters["icd10"]}, nil
	}))

	ent := patient("P-1", 50)
	tl := newTimeline(t, e, ent, threeStep())
	ev := tl.Events[0]

	result := e.ExecuteEvent(context.Background(), tl, ev, ent, ir.IRObject{"run": ir.IRString("r1")})
	assert.Equal(t, ir.IRObject{"code": ir.IRString("E11.9")}, result)
	assert.Equal(t, timeline.StatusExecuted, ev.Status)
	assert.Equal(t, result, ev.Result)

	got, ok := ir.Lookup(seen, "event.scheduled_date")
	require.True(t, ok)
	assert.Equal(t, ir.IRString("2025-01-01"), got)
	got, ok = ir.Lookup(seen, "entity.age")
	require.True(t, ok)
	assert.Equal(t, ir.IRInt(50), got)
	assert.Equal(t, ir.IRString("r1"), seen["run"])
}

func TestExecuteEvent_UnknownHandler(t *testing.T) {
	e := New(1)
	ent := patient("P-1", 50)
	tl := newTimeline(t, e, ent, threeStep())
	ev := tl.Events[0]

	result := e.ExecuteEvent(context.Background(), tl, ev, ent, nil)
	assert.Equal(t, timeline.StatusExecuted, ev.Status)
	assert.True(t, IsUnknownResult(result))
	assert.Equal(t, ir.IRString("diagnosis"), result["event_type"])
}

func TestExecuteEvent_HandlerError(t *testing.T) {
	e := New(1)
	e.RegisterHandler("patientsim", "diagnosis", HandlerFunc(func(context.Context, Entity, *timeline.TimelineEvent, ir.IRObject) (ir.IRObject, error) {
		return nil, errors.New("coding service down")
	}))
	ent := patient("P-1", 50)
	tl := newTimeline(t, e, ent, threeStep())
	ev := tl.Events[0]

	var result ir.IRObject
	assert.NotPanics(t, func() {
		result = e.ExecuteEvent(context.Background(), tl, ev, ent, nil)
	})
	assert.Nil(t, result)
	assert.Equal(t, timeline.StatusFailed, ev.Status)
	assert.Contains(t, ev.Error, string(ErrCodeHandlerFailed))
	assert.Contains(t, ev.Error, "coding service down")
}

func TestExecuteEvent_HandlerPanic(t *testing.T) {
	e := New(1)
	e.RegisterHandler("patientsim", "diagnosis", HandlerFunc(func(context.Context, Entity, *timeline.TimelineEvent, ir.IRObject) (ir.IRObject, error) {
		panic("nil map")
	}))
	ent := patient("P-1", 50)
	tl := newTimeline(t, e, ent, threeStep())
	ev := tl.Events[0]

	assert.NotPanics(t, func() {
		e.ExecuteEvent(context.Background(), tl, ev, ent, nil)
	})
	assert.Equal(t, timeline.StatusFailed, ev.Status)
	assert.Contains(t, ev.Error, string(ErrCodeHandlerPanic))
	assert.Contains(t, ev.Error, "nil map")
}

func TestExecuteEvent_NotReExecuted(t *testing.T) {
	e := New(1)
	calls := 0
	e.RegisterHandler("patientsim", "diagnosis", HandlerFunc(func(context.Context, Entity, *timeline.TimelineEvent, ir.IRObject) (ir.IRObject, error) {
		calls++
		return ir.IRObject{"n": ir.IRInt(int64(calls))}, nil
	}))
	ent := patient("P-1", 50)
	tl := newTimeline(t, e, ent, threeStep())
	ev := tl.Events[0]

	first := e.ExecuteEvent(context.Background(), tl, ev, ent, nil)
	second := e.ExecuteEvent(context.Background(), tl, ev, ent, nil)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

// TestExecuteTimeline_PartialFailure checks a failing handler does not
// stop later events.
func TestExecuteTimeline_PartialFailure(t *testing.T) {
	e := New(1)
	e.RegisterHandler("patientsim", "diagnosis", okHandler("coded"))
	e.RegisterHandler("patientsim", "medication_order", HandlerFunc(func(context.Context, Entity, *timeline.TimelineEvent, ir.IRObject) (ir.IRObject, error) {
		return nil, errors.New("formulary lookup failed")
	}))
	e.RegisterHandler("patientsim", "lab_order", okHandler("resulted"))

	ent := patient("P-1", 50)
	tl := newTimeline(t, e, ent, threeStep())

	sum, err := e.ExecuteTimeline(context.Background(), tl, ent, timeline.Date(2025, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, Summary{Executed: 2, Failed: 1}, sum)

	assert.Equal(t, timeline.StatusExecuted, tl.EventsByType("diagnosis")[0].Status)
	assert.Equal(t, timeline.StatusFailed, tl.EventsByType("medication_order")[0].Status)
	assert.Equal(t, timeline.StatusExecuted, tl.EventsByType("lab_order")[0].Status)
	assert.Empty(t, tl.PendingEvents())
}

func TestExecuteTimeline_UpToDate(t *testing.T) {
	e := New(1)
	ent := patient("P-1", 50)
	tl := newTimeline(t, e, ent, threeStep())

	sum, err := e.ExecuteTimeline(context.Background(), tl, ent, timeline.Date(2025, 1, 6))
	require.NoError(t, err)
	assert.Equal(t, Summary{Executed: 2, Unknown: 2}, sum)

	pending := tl.PendingEvents()
	require.Len(t, pending, 1)
	assert.Equal(t, "lab_order", pending[0].EventType)

	sum, err = e.ExecuteTimeline(context.Background(), tl, ent, timeline.Date(2025, 1, 11))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Executed)
}

func TestExecuteTimeline_Cancelled(t *testing.T) {
	e := New(1)
	ent := patient("P-1", 50)
	tl := newTimeline(t, e, ent, threeStep())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.ExecuteTimeline(ctx, tl, ent, timeline.Date(2025, 12, 31))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, tl.PendingEvents(), 3)
}

func autoResolved(params ir.IRObject) *timeline.TimelineEvent {
	return &timeline.TimelineEvent{
		ID:            "ev",
		EventType:     "medication_order",
		Product:       "patientsim",
		Status:        timeline.StatusPending,
		ScheduledDate: timeline.Date(2025, 1, 1),
		Condition:     "metformin_start",
		Parameters:    params,
	}
}

func TestResolveParameters(t *testing.T) {
	resolver := SkillResolverFunc(func(_ context.Context, eventType, condition string, _ Entity, product string) (ir.IRObject, error) {
		switch condition {
		case "metformin_start":
			return ir.IRObject{
				"drug":  ir.IRString("metformin"),
				"dose":  ir.IRString("500mg"),
				"route": ir.IRString(product + ":" + eventType),
			}, nil
		case "broken":
			return nil, errors.New("skill file corrupt")
		}
		return nil, ErrUnknownCondition
	})
	ent := patient("P-1", 50)
	ctx := context.Background()

	t.Run("resolved base, literal overrides", func(t *testing.T) {
		e := New(1, WithSkillResolver(resolver))
		got := e.ResolveParameters(ctx, autoResolved(ir.IRObject{"dose": ir.IRString("1000mg")}), ent)
		assert.Equal(t, ir.IRObject{
			"drug":  ir.IRString("metformin"),
			"dose":  ir.IRString("1000mg"),
			"route": ir.IRString("patientsim:medication_order"),
		}, got)
	})

	t.Run("skill_ref wins over condition", func(t *testing.T) {
		e := New(1, WithSkillResolver(resolver))
		params := ir.IRObject{journey.SkillRefParam: ir.IRString("skills/custom")}
		got := e.ResolveParameters(ctx, autoResolved(params), ent)
		assert.Equal(t, params, got)
	})

	t.Run("unknown condition falls back", func(t *testing.T) {
		e := New(1, WithSkillResolver(resolver))
		ev := autoResolved(ir.IRObject{"dose": ir.IRString("250mg")})
		ev.Condition = "mystery"
		assert.Equal(t, ir.IRObject{"dose": ir.IRString("250mg")}, e.ResolveParameters(ctx, ev, ent))
	})

	t.Run("resolver error falls back", func(t *testing.T) {
		e := New(1, WithSkillResolver(resolver))
		ev := autoResolved(nil)
		ev.Condition = "broken"
		assert.Equal(t, ir.IRObject{}, e.ResolveParameters(ctx, ev, ent))
	})

	t.Run("no resolver", func(t *testing.T) {
		got := New(1).ResolveParameters(ctx, autoResolved(ir.IRObject{"x": ir.IRInt(1)}), ent)
		assert.Equal(t, ir.IRObject{"x": ir.IRInt(1)}, got)
	})

	t.Run("applied during execution", func(t *testing.T) {
		e := New(1, WithSkillResolver(resolver))
		ev := autoResolved(nil)
		e.ExecuteEvent(ctx, nil, ev, ent, nil)
		assert.Equal(t, ir.IRString("metformin"), ev.Parameters["drug"])
		assert.Equal(t, timeline.StatusExecuted, ev.Status)
	})
}

func TestExecutionError(t *testing.T) {
	cause := errors.New("boom")
	err := &ExecutionError{Code: ErrCodeHandlerFailed, Product: "p", EventType: "t", Message: "handler returned error", Err: cause}
	assert.Equal(t, "HANDLER_FAILED: p/t: handler returned error: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsHandlerPanic(err))
	assert.True(t, IsHandlerPanic(&ExecutionError{Code: ErrCodeHandlerPanic}))
}
