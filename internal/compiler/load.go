package compiler

import (
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/journeysim/internal/journey"
	"github.com/roach88/journeysim/internal/trigger"
)

// Bundle is everything compiled from one CUE source: journeys keyed by
// the top-level "journey" struct and triggers keyed by "trigger".
type Bundle struct {
	Journeys []*journey.JourneySpecification
	Triggers []trigger.RegisteredTrigger
}

// CompileFile reads and compiles a CUE file.
func CompileFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return CompileBytes(path, data)
}

// CompileBytes compiles CUE source. filename is used in error positions.
// Journeys are returned sorted by id; triggers keep declaration order.
func CompileBytes(filename string, src []byte) (*Bundle, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := checkFields(v, "", "journey", "trigger"); err != nil {
		return nil, err
	}

	b := &Bundle{
		Journeys: []*journey.JourneySpecification{},
		Triggers: []trigger.RegisteredTrigger{},
	}

	if journeysVal, ok := lookup(v, "journey"); ok {
		iter, err := journeysVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			spec, err := CompileJourney(iter.Value())
			if err != nil {
				return nil, err
			}
			b.Journeys = append(b.Journeys, spec)
		}
	}
	sort.Slice(b.Journeys, func(i, j int) bool {
		return b.Journeys[i].ID < b.Journeys[j].ID
	})

	if triggersVal, ok := lookup(v, "trigger"); ok {
		iter, err := triggersVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			t, err := CompileTrigger(iter.Value())
			if err != nil {
				return nil, err
			}
			b.Triggers = append(b.Triggers, *t)
		}
	}

	return b, nil
}
