package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntitySeedOrderIndependent(t *testing.T) {
	forward := NewManager(42)
	var want [10]int64
	for i := range want {
		want[i] = forward.EntitySeed(i)
	}

	backward := NewManager(42)
	for i := len(want) - 1; i >= 0; i-- {
		assert.Equal(t, want[i], backward.EntitySeed(i), "index %d", i)
	}

	direct := NewManager(42)
	assert.Equal(t, want[5], direct.EntitySeed(5), "seed(5) must not need seeds 0-4")
}

func TestEntitySeedDependsOnMaster(t *testing.T) {
	assert.NotEqual(t, NewManager(1).EntitySeed(0), NewManager(2).EntitySeed(0))
	assert.NotEqual(t, NewManager(1).EntitySeed(0), NewManager(1).EntitySeed(1))
}

func TestResetMatchesFreshManager(t *testing.T) {
	m := NewManager(7)
	before := m.EntitySeed(3)
	m.EntitySeed(4)
	assert.Equal(t, 2, m.CachedCount())

	m.Reset()
	assert.Equal(t, 0, m.CachedCount())
	assert.Equal(t, NewManager(7).EntitySeed(3), m.EntitySeed(3))
	assert.Equal(t, before, m.EntitySeed(3))
}

func TestEntityRandIsolated(t *testing.T) {
	m := NewManager(42)

	r1 := m.EntityRand(0)
	first := r1.Int64()
	_ = r1.Int64()

	// A new RNG for the same entity starts from the beginning again.
	r2 := m.EntityRand(0)
	assert.Equal(t, first, r2.Int64())
}

func TestDelayAndInclusionSeedsIndependent(t *testing.T) {
	m := NewManager(42)
	assert.NotEqual(t,
		m.DelaySeed("p-1", "diabetes", "a1c"),
		m.InclusionSeed("p-1", "diabetes", "a1c"))
}

func TestRoll(t *testing.T) {
	assert.True(t, Roll(1, 1.0))
	assert.True(t, Roll(1, 1.5))
	assert.False(t, Roll(1, 0))
	assert.False(t, Roll(1, -0.1))

	for s := int64(0); s < 50; s++ {
		assert.Equal(t, Roll(s, 0.5), Roll(s, 0.5), "seed %d", s)
	}
}

func TestRollRoughlyMatchesProbability(t *testing.T) {
	m := NewManager(99)
	hits := 0
	for i := 0; i < 2000; i++ {
		if Roll(m.EntitySeed(i), 0.3) {
			hits++
		}
	}
	assert.InDelta(t, 600, hits, 120)
}
