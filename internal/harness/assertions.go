package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/journeysim/internal/trigger"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s.%s %s\n", ev.Seq, ev.Entity, ev.Date, ev.Product, ev.EventType, ev.Status)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns
// one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertEventScheduled:
		return assertEventScheduled(result.Trace, a)
	case AssertEventStatus:
		return assertEventStatus(result.Trace, a)
	case AssertEventAbsent:
		return assertEventAbsent(result.Trace, a)
	case AssertEventCount:
		return assertEventCount(result.Trace, a)
	case AssertEventOrder:
		return assertEventOrder(result.Trace, a)
	case AssertInstructionCount:
		return assertInstructionCount(result.Instructions, a)
	case AssertEntityLinked:
		return assertEntityLinked(result.Links, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// matches reports whether ev passes every non-empty filter of a.
func matches(ev TraceEvent, a Assertion) bool {
	switch {
	case a.Entity != "" && ev.Entity != a.Entity,
		a.Product != "" && ev.Product != a.Product,
		a.EventType != "" && ev.EventType != a.EventType,
		a.Event != "" && ev.Event != a.Event,
		a.Journey != "" && ev.Journey != a.Journey,
		a.Trigger != "" && ev.Trigger != a.Trigger,
		a.Date != "" && ev.Date != a.Date,
		a.Status != "" && ev.Status != a.Status:
		return false
	}
	return true
}

func matching(trace []TraceEvent, a Assertion) []TraceEvent {
	var out []TraceEvent
	for _, ev := range trace {
		if matches(ev, a) {
			out = append(out, ev)
		}
	}
	return out
}

// describe renders the non-empty filters of a.
func describe(a Assertion) string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("entity", a.Entity)
	add("product", a.Product)
	add("event_type", a.EventType)
	add("event", a.Event)
	add("journey", a.Journey)
	add("trigger", a.Trigger)
	add("date", a.Date)
	add("status", a.Status)
	if len(parts) == 0 {
		return "any event"
	}
	return strings.Join(parts, " ")
}

func assertEventScheduled(trace []TraceEvent, a Assertion) error {
	if len(matching(trace, a)) > 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventScheduled,
		Expected: describe(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertEventStatus requires at least one event matching the non-status
// filters, and all of them to have the expected status.
func assertEventStatus(trace []TraceEvent, a Assertion) error {
	want := a.Status
	a.Status = ""
	found := matching(trace, a)
	if len(found) == 0 {
		return &AssertionError{
			Type:     AssertEventStatus,
			Expected: describe(a) + " with status " + want,
			Actual:   "not found in trace",
			Trace:    trace,
		}
	}
	for _, ev := range found {
		if ev.Status != want {
			actual := fmt.Sprintf("event %d has status %s", ev.Seq, ev.Status)
			if ev.Error != "" {
				actual += " (" + ev.Error + ")"
			}
			return &AssertionError{
				Type:     AssertEventStatus,
				Expected: describe(a) + " with status " + want,
				Actual:   actual,
				Trace:    trace,
			}
		}
	}
	return nil
}

func assertEventAbsent(trace []TraceEvent, a Assertion) error {
	found := matching(trace, a)
	if len(found) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventAbsent,
		Expected: "no " + describe(a),
		Actual:   fmt.Sprintf("%d matching events, first on %s", len(found), found[0].Date),
		Trace:    trace,
	}
}

func assertEventCount(trace []TraceEvent, a Assertion) error {
	count := len(matching(trace, a))
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *a.Count, describe(a)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertEventOrder checks that the first occurrence of each event type
// comes in the given order. Intervening events are allowed.
func assertEventOrder(trace []TraceEvent, a Assertion) error {
	filter := a
	filter.EventType = ""
	scoped := matching(trace, filter)

	positions := make(map[string]int)
	for i, ev := range scoped {
		if _, ok := positions[ev.EventType]; !ok {
			positions[ev.EventType] = i + 1 // 1-indexed so zero means missing
		}
	}

	for _, et := range a.EventTypes {
		if positions[et] == 0 {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("all event types present: %v", a.EventTypes),
				Actual:   fmt.Sprintf("missing event type: %s", et),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.EventTypes); i++ {
		prev, curr := a.EventTypes[i-1], a.EventTypes[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("event types in order: %v", a.EventTypes),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertInstructionCount counts applied instructions. Product and
// EventType filter on the instruction's target.
func assertInstructionCount(instrs map[string][]trigger.Instruction, a Assertion) error {
	count := 0
	for entity, list := range instrs {
		if a.Entity != "" && entity != a.Entity {
			continue
		}
		for _, in := range list {
			switch {
			case a.Product != "" && in.TargetProduct != a.Product,
				a.EventType != "" && in.TargetEventType != a.EventType,
				a.Trigger != "" && in.TriggerID != a.Trigger:
				continue
			}
			count++
		}
	}

	if count != *a.Count {
		return &AssertionError{
			Type:     AssertInstructionCount,
			Expected: fmt.Sprintf("%d instructions for %s", *a.Count, describe(a)),
			Actual:   fmt.Sprintf("%d instructions", count),
		}
	}
	return nil
}

func assertEntityLinked(links map[string]map[string]string, a Assertion) error {
	id, ok := links[a.Entity][a.Product]
	if !ok {
		return &AssertionError{
			Type:     AssertEntityLinked,
			Expected: fmt.Sprintf("%s linked in %s", a.Entity, a.Product),
			Actual:   "no link",
		}
	}
	if a.ProductID != "" && id != a.ProductID {
		return &AssertionError{
			Type:     AssertEntityLinked,
			Expected: fmt.Sprintf("%s linked in %s as %s", a.Entity, a.Product, a.ProductID),
			Actual:   "linked as " + id,
		}
	}
	return nil
}
