package timeline

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrDuplicateEvent is returned by AddEvent when the id is already present.
var ErrDuplicateEvent = errors.New("duplicate timeline event")

// Timeline is the dated sequence of events produced for one entity.
// Events is kept sorted ascending by ScheduledDate; ties keep insertion
// order.
type Timeline struct {
	EntityID   string           `json:"entity_id"`
	EntityType string           `json:"entity_type"`
	StartDate  time.Time        `json:"start_date"`
	JourneyIDs []string         `json:"journey_ids"`
	Events     []*TimelineEvent `json:"events"`
}

// New creates an empty timeline.
func New(entityID, entityType string, start time.Time) *Timeline {
	return &Timeline{
		EntityID:   entityID,
		EntityType: entityType,
		StartDate:  DateOf(start),
		JourneyIDs: []string{},
		Events:     []*TimelineEvent{},
	}
}

// AddJourney records a journey id once.
func (t *Timeline) AddJourney(id string) {
	for _, existing := range t.JourneyIDs {
		if existing == id {
			return
		}
	}
	t.JourneyIDs = append(t.JourneyIDs, id)
}

// HasJourney reports whether journey id was scheduled on this timeline.
func (t *Timeline) HasJourney(id string) bool {
	for _, existing := range t.JourneyIDs {
		if existing == id {
			return true
		}
	}
	return false
}

// AddEvent inserts ev and restores date order with a stable sort, so an
// event inserted earlier keeps precedence over a later one on the same date.
func (t *Timeline) AddEvent(ev *TimelineEvent) error {
	if ev.ID != "" && t.Event(ev.ID) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateEvent, ev.ID)
	}
	ev.ScheduledDate = DateOf(ev.ScheduledDate)
	t.Events = append(t.Events, ev)
	sort.SliceStable(t.Events, func(i, j int) bool {
		return t.Events[i].ScheduledDate.Before(t.Events[j].ScheduledDate)
	})
	return nil
}

// Event returns the event with id, or nil.
func (t *Timeline) Event(id string) *TimelineEvent {
	for _, ev := range t.Events {
		if ev.ID == id {
			return ev
		}
	}
	return nil
}

// PendingEvents returns every pending event in chronological order.
func (t *Timeline) PendingEvents() []*TimelineEvent {
	return t.filter(func(ev *TimelineEvent) bool { return ev.IsPending() })
}

// PendingEventsUpTo returns pending events scheduled on or before d.
func (t *Timeline) PendingEventsUpTo(d time.Time) []*TimelineEvent {
	d = DateOf(d)
	return t.filter(func(ev *TimelineEvent) bool {
		return ev.IsPending() && !ev.ScheduledDate.After(d)
	})
}

// EventsByType returns events of the given event type.
func (t *Timeline) EventsByType(eventType string) []*TimelineEvent {
	return t.filter(func(ev *TimelineEvent) bool { return ev.EventType == eventType })
}

// EventsByProduct returns events owned by product.
func (t *Timeline) EventsByProduct(product string) []*TimelineEvent {
	return t.filter(func(ev *TimelineEvent) bool { return ev.Product == product })
}

// EventsByStatus returns events in the given status.
func (t *Timeline) EventsByStatus(status Status) []*TimelineEvent {
	return t.filter(func(ev *TimelineEvent) bool { return ev.Status == status })
}

// EventsUpTo returns events scheduled on or before d.
func (t *Timeline) EventsUpTo(d time.Time) []*TimelineEvent {
	d = DateOf(d)
	return t.filter(func(ev *TimelineEvent) bool { return !ev.ScheduledDate.After(d) })
}

// EventsOnDate returns events scheduled on exactly the calendar date of d.
func (t *Timeline) EventsOnDate(d time.Time) []*TimelineEvent {
	d = DateOf(d)
	return t.filter(func(ev *TimelineEvent) bool { return ev.ScheduledDate.Equal(d) })
}

// Counts tallies events per status.
func (t *Timeline) Counts() map[Status]int {
	out := make(map[Status]int)
	for _, ev := range t.Events {
		out[ev.Status]++
	}
	return out
}

// IsSorted reports whether Events is ordered by date.
func (t *Timeline) IsSorted() bool {
	return sort.SliceIsSorted(t.Events, func(i, j int) bool {
		return t.Events[i].ScheduledDate.Before(t.Events[j].ScheduledDate)
	})
}

func (t *Timeline) filter(keep func(*TimelineEvent) bool) []*TimelineEvent {
	out := []*TimelineEvent{}
	for _, ev := range t.Events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}
