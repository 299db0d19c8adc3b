package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/journeysim/internal/trigger"
)

func link(id, srcProduct, srcType, dstProduct, dstType string) trigger.RegisteredTrigger {
	return trigger.RegisteredTrigger{
		ID:              id,
		SourceProduct:   srcProduct,
		SourceEventType: srcType,
		TargetProduct:   dstProduct,
		TargetEventType: dstType,
	}
}

func TestAnalyzeCycles_Empty(t *testing.T) {
	warnings := AnalyzeCycles(nil)
	assert.NotNil(t, warnings)
	assert.Empty(t, warnings)
}

func TestAnalyzeCycles_DefaultTriggersAreAcyclic(t *testing.T) {
	var triggers []trigger.RegisteredTrigger
	for _, tr := range trigger.NewCoordinator().Registry().All() {
		triggers = append(triggers, *tr)
	}
	require.Len(t, triggers, 5)
	assert.Empty(t, AnalyzeCycles(triggers))
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	triggers := []trigger.RegisteredTrigger{
		link("a", "p", "x", "m", "y"),
		link("b", "m", "y", "r", "z"),
	}
	assert.Empty(t, AnalyzeCycles(triggers))
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	warnings := AnalyzeCycles([]trigger.RegisteredTrigger{
		link("echo", "p", "x", "p", "x"),
	})
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"echo", "echo"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "self-triggering")
}

func TestAnalyzeCycles_TwoNodeCycle(t *testing.T) {
	warnings := AnalyzeCycles([]trigger.RegisteredTrigger{
		link("b", "m", "claim", "p", "encounter"),
		link("a", "p", "encounter", "m", "claim"),
		link("c", "r", "fill", "m", "claim"),
	})
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path, "path starts at the smallest id")
	assert.Equal(t, "potential trigger cycle: a -> b -> a", warnings[0].Message)
}

func TestAnalyzeCycles_ThreeNodeCycle(t *testing.T) {
	warnings := AnalyzeCycles([]trigger.RegisteredTrigger{
		link("t1", "p", "x", "m", "y"),
		link("t2", "m", "y", "r", "z"),
		link("t3", "r", "z", "p", "x"),
	})
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"t1", "t2", "t3", "t1"}, warnings[0].Path)
}

func TestAnalyzeCycles_MultipleIndependentCycles(t *testing.T) {
	warnings := AnalyzeCycles([]trigger.RegisteredTrigger{
		link("z-self", "q", "q", "q", "q"),
		link("a1", "p", "x", "m", "y"),
		link("a2", "m", "y", "p", "x"),
	})
	require.Len(t, warnings, 2)
	assert.Equal(t, "a1", warnings[0].Path[0])
	assert.Equal(t, "z-self", warnings[1].Path[0])
}

func TestBuildDependencyGraph(t *testing.T) {
	graph := buildDependencyGraph([]trigger.RegisteredTrigger{
		link("dx", "patientsim", "diagnosis", "membersim", "claim"),
		link("claim-b", "membersim", "claim", "rxmembersim", "fill"),
		link("claim-a", "membersim", "claim", "trialsim", "visit"),
	})

	assert.Equal(t, []string{"claim-a", "claim-b"}, graph["dx"])
	assert.Empty(t, graph["claim-a"])
	assert.Contains(t, graph, "claim-b")
}

func TestHasSelfLoop(t *testing.T) {
	graph := dependencyGraph{"a": {"a"}, "b": {"a"}}
	assert.True(t, hasSelfLoop("a", graph))
	assert.False(t, hasSelfLoop("b", graph))
}

func TestReconstructCyclePath_Empty(t *testing.T) {
	assert.Equal(t, []string{}, reconstructCyclePath(nil, dependencyGraph{}))
}
