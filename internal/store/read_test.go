package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/trigger"
)

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReadTimeline_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, _, err := s.ReadTimeline(context.Background(), "run-1", "p1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReadTimeline_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	want := createTestTimeline("p1")
	attrs := ir.IRObject{"age": ir.IRInt(54), "gender": ir.IRString("F")}
	require.NoError(t, s.WriteTimeline(ctx, "run-1", want, attrs))

	got, gotAttrs, err := s.ReadTimeline(ctx, "run-1", "p1")
	require.NoError(t, err)

	assert.True(t, ir.Equal(attrs, gotAttrs))
	assert.Equal(t, want.EntityID, got.EntityID)
	assert.Equal(t, want.EntityType, got.EntityType)
	assert.Equal(t, want.StartDate, got.StartDate)
	assert.Equal(t, want.JourneyIDs, got.JourneyIDs)
	require.Len(t, got.Events, len(want.Events))
	assert.True(t, got.IsSorted())

	for i, w := range want.Events {
		g := got.Events[i]
		assert.Equal(t, w.ID, g.ID)
		assert.Equal(t, w.JourneyID, g.JourneyID)
		assert.Equal(t, w.EventDefinitionID, g.EventDefinitionID)
		assert.Equal(t, w.ScheduledDate, g.ScheduledDate)
		assert.Equal(t, w.EventType, g.EventType)
		assert.Equal(t, w.Product, g.Product)
		assert.Equal(t, w.Status, g.Status)
		assert.True(t, ir.Equal(w.Parameters, g.Parameters), "parameters of %s", w.ID)
		assert.Equal(t, w.Source, g.Source)
		if w.Result == nil {
			assert.Nil(t, g.Result)
		} else {
			assert.True(t, ir.Equal(w.Result, g.Result), "result of %s", w.ID)
		}
	}
}

// Bytes written by two identical runs must be identical when read back.
func TestReadTimeline_Deterministic(t *testing.T) {
	ctx := context.Background()

	read := func() []byte {
		s := createTestStore(t)
		createTestRun(t, s, "run-1")
		require.NoError(t, s.WriteTimeline(ctx, "run-1", createTestTimeline("p1"), nil))
		tl, _, err := s.ReadTimeline(ctx, "run-1", "p1")
		require.NoError(t, err)

		var out []byte
		for _, ev := range tl.Events {
			b, err := ir.MarshalCanonical(ev.Parameters)
			require.NoError(t, err)
			out = append(out, ev.ID...)
			out = append(out, b...)
		}
		return out
	}

	assert.Equal(t, read(), read())
}

func TestListRunsAndEntities_Sorted(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, runs, "empty result is an empty slice")
	assert.Empty(t, runs)

	createTestRun(t, s, "run-b")
	createTestRun(t, s, "run-a")
	for _, id := range []string{"p2", "P1", "p1"} {
		require.NoError(t, s.WriteTimeline(ctx, "run-a", createTestTimeline(id), nil))
	}

	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b"}, runs)

	entities, err := s.ListEntities(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "p1", "p2"}, entities, "binary collation puts uppercase first")
}

func TestReadFirings_Order(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")
	require.NoError(t, s.WriteTimeline(ctx, "run-1", createTestTimeline("p1"), nil))

	_, err := s.WriteFirings(ctx, "run-1", "p1", []trigger.Instruction{createTestInstruction("zzz", "e1")})
	require.NoError(t, err)
	_, err = s.WriteFirings(ctx, "run-1", "p1", []trigger.Instruction{createTestInstruction("aaa", "e2")})
	require.NoError(t, err)

	got, err := s.ReadFirings(ctx, "run-1", "p1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "zzz", got[0].ID, "application order, not id order")
	assert.Equal(t, "aaa", got[1].ID)
	assert.Equal(t, ir.IRString("E11.9"), got[0].Parameters["diagnosis_code"])
}

func TestReadLinks_Empty(t *testing.T) {
	s := createTestStore(t)

	links, err := s.ReadLinks(context.Background(), "run-1")
	require.NoError(t, err)
	assert.NotNil(t, links)
	assert.Empty(t, links)
}
