package trigger

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/seed"
)

const purposeLinkedID = "linked_id"

// IDGenerator assigns product-specific identifiers to a core entity.
// Implemented by UUIDv7Generator, SeededGenerator and FixedGenerator.
type IDGenerator interface {
	Generate(coreID, product string) string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7. The arguments are ignored.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate(string, string) string {
	return uuid.Must(uuid.NewV7()).String()
}

// SeededGenerator derives a random (version 4) UUID from the master seed,
// the core id and the product. The same inputs always give the same id,
// in any order, so cohort runs are reproducible.
//
// Thread-safety: stateless and safe for concurrent use.
type SeededGenerator struct {
	Master int64
}

// Generate returns the UUID for (coreID, product).
func (g SeededGenerator) Generate(coreID, product string) string {
	rng := seed.NewRand(ir.DeriveSeed(g.Master, purposeLinkedID, coreID, product))
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], rng.Uint64())
	binary.BigEndian.PutUint64(buf[8:], rng.Uint64())
	return uuid.Must(uuid.NewRandomFromReader(bytes.NewReader(buf[:]))).String()
}

// FixedGenerator returns predetermined ids for testing.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, to catch test misconfiguration.
func (g *FixedGenerator) Generate(string, string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
