// Package seed derives reproducible, order-independent seeds.
//
// Every seed is a pure function of the master seed and a key. Nothing
// advances a shared PRNG stream, so the seed for entity 5 is identical
// whether or not entities 0-4 were seeded first, and cohort workers can
// run in any order.
//
// Callers that need randomness get a fresh *rand.Rand per call from
// NewRand; a single Rand must never be shared across entities.
package seed

import (
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/roach88/journeysim/internal/ir"
)

// Purpose labels keep derived seed streams independent of each other.
const (
	PurposeEntity    = "entity"
	PurposeDelay     = "delay"
	PurposeInclusion = "inclusion"
	PurposeTrigger   = "trigger"
)

// Manager hands out per-entity and per-event seeds for one master seed.
//
// Entity seeds are memoised; Reset drops the memo so that the manager
// behaves exactly like a freshly constructed one. Because derivation is
// pure, memoisation never changes results, only cost.
//
// Thread-safety: all methods are safe for concurrent use.
type Manager struct {
	master int64

	mu    sync.Mutex
	cache map[int]int64
}

// NewManager creates a manager for the given master seed.
func NewManager(master int64) *Manager {
	return &Manager{
		master: master,
		cache:  make(map[int]int64),
	}
}

// Master returns the master seed.
func (m *Manager) Master() int64 {
	return m.master
}

// EntitySeed returns the seed for the entity at index.
func (m *Manager) EntitySeed(index int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.cache[index]; ok {
		return s
	}
	s := ir.DeriveSeed(m.master, PurposeEntity, strconv.Itoa(index))
	m.cache[index] = s
	return s
}

// EntityRand returns a new RNG seeded from EntitySeed(index).
func (m *Manager) EntityRand(index int) *rand.Rand {
	return NewRand(m.EntitySeed(index))
}

// Derive returns a seed for an arbitrary purpose and key.
func (m *Manager) Derive(purpose string, parts ...string) int64 {
	return ir.DeriveSeed(m.master, purpose, parts...)
}

// DelaySeed is the seed for sampling an event's delay.
func (m *Manager) DelaySeed(entityID, journeyID, eventID string) int64 {
	return m.Derive(PurposeDelay, entityID, journeyID, eventID)
}

// InclusionSeed is the seed for an event's probability roll. It is a
// separate stream from DelaySeed so that changing an event's probability
// never shifts its sampled delay.
func (m *Manager) InclusionSeed(entityID, journeyID, eventID string) int64 {
	return m.Derive(PurposeInclusion, entityID, journeyID, eventID)
}

// Reset clears memoised state.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[int]int64)
}

// CachedCount returns the number of memoised entity seeds.
// Used for testing.
func (m *Manager) CachedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}

// NewRand returns a new PCG-backed RNG for seed.
func NewRand(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(u, u^0x9e3779b97f4a7c15))
}

// Roll reports whether a Bernoulli trial with probability p succeeds for
// the given seed. p <= 0 never succeeds and p >= 1 always does, without
// consuming randomness.
func Roll(seed int64, p float64) bool {
	switch {
	case p >= 1:
		return true
	case p <= 0:
		return false
	}
	return NewRand(seed).Float64() < p
}
