package simulation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/journeysim/internal/engine"
	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/journey"
	"github.com/roach88/journeysim/internal/seed"
	"github.com/roach88/journeysim/internal/timeline"
)

// Subject is one entity and the journeys attached to it.
type Subject struct {
	Entity   engine.Entity
	Journeys []*journey.JourneySpecification
	Start    time.Time
}

// Outcome is the product of running one subject.
type Outcome struct {
	Index    int
	Timeline *timeline.Timeline
	Result   *Result
}

// RunSubject schedules every journey of s on a fresh timeline and runs it
// up to upTo. Linked product ids are ensured for each journey product.
func (r *Runner) RunSubject(ctx context.Context, s Subject, upTo time.Time) (*timeline.Timeline, *Result, error) {
	if len(s.Journeys) == 0 {
		return nil, nil, fmt.Errorf("subject %s has no journeys", s.Entity.ID)
	}

	tl := timeline.New(s.Entity.ID, s.Entity.Type, s.Start)
	for _, j := range s.Journeys {
		if err := r.engine.ScheduleJourney(tl, s.Entity, j, s.Start); err != nil {
			return nil, nil, fmt.Errorf("schedule %s: %w", j.ID, err)
		}
		if r.coord != nil {
			r.coord.EnsureLinked(s.Entity.ID, j.Products...)
		}
	}

	res, err := r.Run(ctx, tl, s.Entity, upTo)
	return tl, res, err
}

// RunCohort runs every subject with at most the configured number of
// workers. Outcomes are returned in subject order. A scheduling error or
// cancellation aborts the cohort.
func (r *Runner) RunCohort(ctx context.Context, subjects []Subject, upTo time.Time) ([]Outcome, error) {
	out := make([]Outcome, len(subjects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, s := range subjects {
		g.Go(func() error {
			tl, res, err := r.RunSubject(gctx, s, upTo)
			if err != nil {
				return fmt.Errorf("subject %d (%s): %w", i, s.Entity.ID, err)
			}
			out[i] = Outcome{Index: i, Timeline: tl, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Info("cohort complete", "subjects", len(subjects), "workers", r.workers)
	return out, nil
}

// AttributeFunc produces an entity's attributes from its own RNG.
type AttributeFunc func(index int, rng *rand.Rand) ir.IRObject

// GenerateEntities builds count entities. Each entity's id and attributes
// come from EntitySeed(index), so entity i is identical no matter how
// many entities are generated or in which order.
func GenerateEntities(seeds *seed.Manager, count int, entityType string, attrs AttributeFunc) []engine.Entity {
	if attrs == nil {
		attrs = DefaultAttributes
	}
	out := make([]engine.Entity, count)
	for i := range out {
		s := seeds.EntitySeed(i)
		out[i] = engine.Entity{
			ID:         fmt.Sprintf("%s-%012x", entityType, uint64(s)&0xffffffffffff),
			Type:       entityType,
			Attributes: attrs(i, seed.NewRand(s)),
		}
	}
	return out
}

// DefaultAttributes draws a minimal demographic profile.
func DefaultAttributes(_ int, rng *rand.Rand) ir.IRObject {
	genders := []string{"F", "M"}
	return ir.IRObject{
		"age":                ir.IRInt(18 + rng.IntN(73)),
		"gender":             ir.IRString(genders[rng.IntN(len(genders))]),
		"chronic_conditions": ir.IRInt(rng.IntN(4)),
	}
}

// Subjects pairs each entity with the same journeys and start date.
func Subjects(entities []engine.Entity, journeys []*journey.JourneySpecification, start time.Time) []Subject {
	out := make([]Subject, len(entities))
	for i, e := range entities {
		out[i] = Subject{Entity: e, Journeys: journeys, Start: start}
	}
	return out
}
