package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/roach88/journeysim/internal/compiler"
	"github.com/roach88/journeysim/internal/engine"
	"github.com/roach88/journeysim/internal/journey"
	"github.com/roach88/journeysim/internal/simulation"
	"github.com/roach88/journeysim/internal/store"
	"github.com/roach88/journeysim/internal/testutil"
	"github.com/roach88/journeysim/internal/timeline"
	"github.com/roach88/journeysim/internal/trigger"
)

// DefaultHorizonDays is the horizon used when a scenario sets none.
const DefaultHorizonDays = 365

// DefaultEntityType is the entity type used when a fixture sets none.
const DefaultEntityType = "patient"

// runID keys the scenario's rows in its private store.
const runID = "scenario"

// Harness is the scenario execution engine.
type Harness struct {
	store    *store.Store
	engine   *engine.Engine
	coord    *trigger.Coordinator
	runner   *simulation.Runner
	handler  *testutil.RecordingHandler
	journeys map[string]*journey.JourneySpecification
	order    []string
	logger   *slog.Logger
}

// Run executes a scenario and evaluates its assertions.
//
// Each scenario runs in a fresh in-memory database. The returned error
// covers setup problems (unreadable specs, unknown journeys, store
// failures); assertion failures are reported on the Result.
//
// Execution flow:
//  1. Load journey and trigger specs
//  2. Build registry, coordinator, engine and runner
//  3. Run every entity and persist its timeline, firings and links
//  4. Read the trace back from the store
//  5. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	journeys, triggers, err := loadSpecs(scenario.Specs)
	if err != nil {
		return nil, err
	}

	h, err := newHarness(st, scenario, journeys, triggers)
	if err != nil {
		return nil, err
	}

	start, upTo := window(scenario)
	result := NewResult()
	if err := h.execute(ctx, scenario, start, upTo, result); err != nil {
		return nil, fmt.Errorf("failed to execute scenario: %w", err)
	}
	if err := h.collect(ctx, scenario, result); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// RunFile loads a scenario file and runs it.
func RunFile(ctx context.Context, path string) (*Scenario, *Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := Run(ctx, scenario)
	if err != nil {
		return scenario, nil, fmt.Errorf("%s: %w", scenario.Name, err)
	}
	return scenario, result, nil
}

// loadSpecs compiles every spec file and validates the combined set.
func loadSpecs(paths []string) ([]*journey.JourneySpecification, []trigger.RegisteredTrigger, error) {
	var journeys []*journey.JourneySpecification
	var triggers []trigger.RegisteredTrigger

	for _, path := range paths {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".cue":
			bundle, err := compiler.CompileFile(path)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to compile %s: %w", path, err)
			}
			journeys = append(journeys, bundle.Journeys...)
			triggers = append(triggers, bundle.Triggers...)
		default:
			spec, err := journey.LoadFile(path)
			if err != nil {
				return nil, nil, err
			}
			journeys = append(journeys, spec)
		}
	}

	if errs := compiler.Validate(journeys, triggers); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, nil, fmt.Errorf("invalid specs:\n  %s", strings.Join(msgs, "\n  "))
	}
	return journeys, triggers, nil
}

func newHarness(st *store.Store, sc *Scenario, journeys []*journey.JourneySpecification, triggers []trigger.RegisteredTrigger) (*Harness, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := trigger.NewRegistry(trigger.WithSeed(sc.Seed))
	if sc.DefaultTriggers == nil || *sc.DefaultTriggers {
		for _, t := range trigger.DefaultTriggers() {
			if _, err := reg.RegisterSpec(t); err != nil {
				return nil, fmt.Errorf("register default trigger: %w", err)
			}
		}
	}
	for _, t := range triggers {
		if _, err := reg.RegisterSpec(t); err != nil {
			return nil, fmt.Errorf("register trigger %s: %w", t.ID, err)
		}
	}

	coord := trigger.NewCoordinator(
		trigger.WithRegistry(reg),
		trigger.WithIDGenerator(testutil.NamedIDs{}),
		trigger.WithCoordinatorLogger(logger),
	)

	opts := []engine.Option{engine.WithLogger(logger)}
	if sc.SkippedPlaceholders {
		opts = append(opts, engine.WithSkippedPlaceholders())
	}
	eng := engine.New(sc.Seed, opts...)

	handler := testutil.NewRecordingHandler()
	for _, stub := range sc.Handlers {
		if stub.Fail != "" {
			handler.SetFailure(stub.Product, stub.EventType, stub.Fail)
		} else if stub.Result != nil {
			handler.SetResult(stub.Product, stub.EventType, stub.Result)
		}
	}
	handler.Register(eng, handlerPairs(journeys, reg, sc.Handlers)...)

	runnerOpts := []simulation.Option{
		simulation.WithWorkers(1),
		simulation.WithLogger(logger),
	}
	if sc.MaxSteps > 0 {
		runnerOpts = append(runnerOpts, simulation.WithMaxSteps(sc.MaxSteps))
	}

	byID := make(map[string]*journey.JourneySpecification, len(journeys))
	order := make([]string, 0, len(journeys))
	for _, j := range journeys {
		if _, dup := byID[j.ID]; dup {
			return nil, fmt.Errorf("journey %q loaded twice", j.ID)
		}
		byID[j.ID] = j
		order = append(order, j.ID)
	}
	sort.Strings(order)

	return &Harness{
		store:    st,
		engine:   eng,
		coord:    coord,
		runner:   simulation.NewRunner(eng, coord, runnerOpts...),
		handler:  handler,
		journeys: byID,
		order:    order,
		logger:   logger,
	}, nil
}

// handlerPairs lists every (product, event_type) a scenario can produce,
// sorted. reg may be nil.
func handlerPairs(journeys []*journey.JourneySpecification, reg *trigger.Registry, stubs []HandlerStub) [][2]string {
	seen := make(map[[2]string]bool)
	for _, j := range journeys {
		for _, def := range j.Events {
			seen[[2]string{def.Product, def.EventType}] = true
		}
	}
	if reg != nil {
		for _, t := range reg.All() {
			seen[[2]string{t.TargetProduct, t.TargetEventType}] = true
		}
	}
	for _, s := range stubs {
		seen[[2]string{s.Product, s.EventType}] = true
	}

	pairs := make([][2]string, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, k int) bool {
		if pairs[i][0] != pairs[k][0] {
			return pairs[i][0] < pairs[k][0]
		}
		return pairs[i][1] < pairs[k][1]
	})
	return pairs
}

func window(sc *Scenario) (start, upTo time.Time) {
	start = testutil.Start
	if sc.StartDate != "" {
		// validateScenario already parsed it.
		start, _ = timeline.ParseDate(sc.StartDate)
	}
	horizon := sc.HorizonDays
	if horizon == 0 {
		horizon = DefaultHorizonDays
	}
	return start, start.AddDate(0, 0, horizon)
}

// execute runs every entity in scenario order and persists the outcome.
func (h *Harness) execute(ctx context.Context, sc *Scenario, start, upTo time.Time, result *Result) error {
	if err := h.store.WriteRun(ctx, store.Run{
		ID:         runID,
		MasterSeed: sc.Seed,
		StartDate:  start,
		UpTo:       upTo,
		JourneyIDs: h.order,
	}); err != nil {
		return err
	}

	for _, fx := range sc.Entities {
		subject, err := h.subject(fx, start)
		if err != nil {
			return err
		}

		tl, res, err := h.runner.RunSubject(ctx, subject, upTo)
		if err != nil {
			return err
		}
		result.CyclesBlocked += res.CyclesBlocked
		if res.QuotaErr != nil {
			result.QuotaExceeded = append(result.QuotaExceeded, fx.ID)
		}

		if err := h.store.WriteTimeline(ctx, runID, tl, subject.Entity.Attributes); err != nil {
			return err
		}
		if _, err := h.store.WriteFirings(ctx, runID, fx.ID, res.Instructions); err != nil {
			return err
		}
	}

	return h.store.WriteLinks(ctx, runID, h.coord.LinkedEntities())
}

func (h *Harness) subject(fx EntityFixture, start time.Time) (simulation.Subject, error) {
	entityType := fx.Type
	if entityType == "" {
		entityType = DefaultEntityType
	}

	ids := fx.Journeys
	if len(ids) == 0 {
		ids = h.order
	}
	journeys := make([]*journey.JourneySpecification, 0, len(ids))
	for _, id := range ids {
		j, ok := h.journeys[id]
		if !ok {
			return simulation.Subject{}, fmt.Errorf("entity %s: unknown journey %q", fx.ID, id)
		}
		journeys = append(journeys, j)
	}

	entity := testutil.Patient(fx.ID, fx.Attributes.Clone())
	entity.Type = entityType
	return simulation.Subject{Entity: entity, Journeys: journeys, Start: start}, nil
}

// collect reads timelines, firings and links back from the store.
func (h *Harness) collect(ctx context.Context, sc *Scenario, result *Result) error {
	seq := 0
	for _, fx := range sc.Entities {
		tl, _, err := h.store.ReadTimeline(ctx, runID, fx.ID)
		if err != nil {
			return err
		}
		for _, ev := range tl.Events {
			seq++
			result.Trace = append(result.Trace, traceEvent(seq, fx.ID, ev))
		}

		instrs, err := h.store.ReadFirings(ctx, runID, fx.ID)
		if err != nil {
			return err
		}
		result.Instructions[fx.ID] = instrs
	}

	links, err := h.store.ReadLinks(ctx, runID)
	if err != nil {
		return err
	}
	for _, l := range links {
		result.Links[l.CoreID] = l.ProductIDs
	}
	return nil
}

func traceEvent(seq int, entityID string, ev *timeline.TimelineEvent) TraceEvent {
	te := TraceEvent{
		Seq:        seq,
		Entity:     entityID,
		Date:       timeline.FormatDate(ev.ScheduledDate),
		Product:    ev.Product,
		EventType:  ev.EventType,
		Status:     string(ev.Status),
		Journey:    ev.JourneyID,
		Event:      ev.EventDefinitionID,
		Parameters: ev.Parameters,
		Result:     ev.Result,
		Error:      ev.Error,
		SkipReason: ev.SkipReason,
	}
	if ev.Source != nil {
		te.Trigger = ev.Source.TriggerID
	}
	return te
}
