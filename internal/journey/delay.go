package journey

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/roach88/journeysim/internal/seed"
)

// Distribution selects how a DelaySpec is sampled.
type Distribution string

const (
	// DistributionFixed always yields Days.
	DistributionFixed Distribution = "fixed"

	// DistributionUniform yields an integer in [DaysMin, DaysMax].
	DistributionUniform Distribution = "uniform"
)

// Day is one calendar day.
const Day = 24 * time.Hour

// DelaySpec is a fixed or bounded-random delay in whole days.
//
// For uniform delays a missing bound defaults to Days; DaysMin == DaysMax
// degenerates to a fixed delay.
type DelaySpec struct {
	Days         int          `json:"days" yaml:"days"`
	DaysMin      *int         `json:"days_min,omitempty" yaml:"days_min,omitempty"`
	DaysMax      *int         `json:"days_max,omitempty" yaml:"days_max,omitempty"`
	Distribution Distribution `json:"distribution,omitempty" yaml:"distribution,omitempty"`
}

// Fixed returns a fixed delay of days.
func Fixed(days int) DelaySpec {
	return DelaySpec{Days: days, Distribution: DistributionFixed}
}

// Uniform returns a uniform delay in [minDays, maxDays]. Days is set to
// the lower bound so that the spec stays meaningful if read as fixed.
func Uniform(minDays, maxDays int) DelaySpec {
	return DelaySpec{
		Days:         minDays,
		DaysMin:      &minDays,
		DaysMax:      &maxDays,
		Distribution: DistributionUniform,
	}
}

// NewDelay validates and returns a delay spec.
func NewDelay(d DelaySpec) (DelaySpec, error) {
	if err := d.Validate(); err != nil {
		return DelaySpec{}, err
	}
	return d, nil
}

// Validate checks the bounds invariants. Explicit bounds are checked for
// every distribution, even though fixed delays never sample them.
func (d DelaySpec) Validate() error {
	if d.Days < 0 {
		return &SpecificationError{Field: "delay.days", Message: fmt.Sprintf("negative delay %d", d.Days)}
	}
	if d.DaysMin != nil && *d.DaysMin < 0 {
		return &SpecificationError{Field: "delay.days_min", Message: fmt.Sprintf("negative bound %d", *d.DaysMin)}
	}
	if d.DaysMax != nil && *d.DaysMax < 0 {
		return &SpecificationError{Field: "delay.days_max", Message: fmt.Sprintf("negative bound %d", *d.DaysMax)}
	}

	switch d.distribution() {
	case DistributionFixed:
		if d.DaysMin != nil && d.DaysMax != nil && *d.DaysMin > *d.DaysMax {
			return boundsError(*d.DaysMin, *d.DaysMax)
		}
		return nil
	case DistributionUniform:
		if lo, hi := d.bounds(); lo > hi {
			return boundsError(lo, hi)
		}
		return nil
	default:
		return &SpecificationError{
			Field:   "delay.distribution",
			Message: fmt.Sprintf("unknown distribution %q, must be %q or %q", d.Distribution, DistributionFixed, DistributionUniform),
		}
	}
}

func boundsError(lo, hi int) error {
	return &SpecificationError{Field: "delay.days_min", Message: fmt.Sprintf("days_min %d > days_max %d", lo, hi)}
}

// DaysFor samples the delay in days, reproducibly from seed.
func (d DelaySpec) DaysFor(seed int64) int {
	return d.sample(func() *rand.Rand { return seedRand(seed) })
}

// RandomDays samples the delay using process entropy.
func (d DelaySpec) RandomDays() int {
	return d.sample(func() *rand.Rand { return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) })
}

// Duration returns the sampled delay as a time.Duration of whole days.
func (d DelaySpec) Duration(seed int64) time.Duration {
	return time.Duration(d.DaysFor(seed)) * Day
}

// Apply adds the sampled delay to anchor as calendar days.
func (d DelaySpec) Apply(anchor time.Time, seed int64) time.Time {
	return anchor.AddDate(0, 0, d.DaysFor(seed))
}

// IsRandom reports whether sampling depends on the seed.
func (d DelaySpec) IsRandom() bool {
	if d.distribution() != DistributionUniform {
		return false
	}
	lo, hi := d.bounds()
	return lo != hi
}

func (d DelaySpec) sample(newRand func() *rand.Rand) int {
	if !d.IsRandom() {
		if d.distribution() == DistributionUniform {
			lo, _ := d.bounds()
			return lo
		}
		return d.Days
	}
	lo, hi := d.bounds()
	return lo + newRand().IntN(hi-lo+1)
}

func (d DelaySpec) distribution() Distribution {
	if d.Distribution == "" {
		return DistributionFixed
	}
	return d.Distribution
}

func (d DelaySpec) bounds() (lo, hi int) {
	lo, hi = d.Days, d.Days
	if d.DaysMin != nil {
		lo = *d.DaysMin
	}
	if d.DaysMax != nil {
		hi = *d.DaysMax
	}
	return lo, hi
}

func seedRand(s int64) *rand.Rand {
	return seed.NewRand(s)
}
