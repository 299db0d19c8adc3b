package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/journeysim/internal/config"
	"github.com/roach88/journeysim/internal/engine"
	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/journey"
	"github.com/roach88/journeysim/internal/simulation"
	"github.com/roach88/journeysim/internal/store"
	"github.com/roach88/journeysim/internal/timeline"
	"github.com/roach88/journeysim/internal/trigger"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Count      int
	Days       int // overrides simulation.horizon_days when >= 0
	Workers    int // overrides simulation.workers when > 0
	EntityType string
	Journeys   []string
	DBPath     string // overrides database.path when set
	RunID      string
}

// SimulationSummary is the outcome of one simulate run.
type SimulationSummary struct {
	RunID         string         `json:"run_id"`
	Seed          int64          `json:"seed"`
	StartDate     string         `json:"start_date"`
	UpTo          string         `json:"up_to"`
	Entities      int            `json:"entities"`
	Journeys      []string       `json:"journeys"`
	Events        int            `json:"events"`
	Summary       engine.Summary `json:"summary"`
	Instructions  int            `json:"instructions"`
	CyclesBlocked int            `json:"cycles_blocked"`
	QuotaExceeded []string       `json:"quota_exceeded,omitempty"`
	Database      string         `json:"database,omitempty"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <spec-path>...",
		Short: "Run journeys over a generated cohort",
		Long: `Generate a cohort of entities, attach the journeys to each of them and
execute every timeline up to the horizon, firing cross-product triggers.

Every event is handled by an echo handler that returns the event's
parameters. With a database path the run is persisted and can be
inspected with "journeysim show".

Exit codes:
  0 - Simulation completed
  2 - Command error (invalid specs, database error, etc.)

Examples:
  journeysim simulate ./journeys --count 100
  journeysim simulate ./journeys --days 90 --db sim.db
  journeysim simulate ./journeys --journey diabetes --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.setup(cmd.ErrOrStderr()); err != nil {
				return err
			}
			return runSimulate(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 10, "number of entities to generate")
	cmd.Flags().IntVar(&opts.Days, "days", -1, "horizon in days (default from config)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent timelines (default from config)")
	cmd.Flags().StringVar(&opts.EntityType, "type", "patient", "entity type")
	cmd.Flags().StringSliceVar(&opts.Journeys, "journey", nil, "journey id to attach (repeatable, default all)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database path (default from config)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id (default: random UUID)")

	return cmd
}

func runSimulate(ctx context.Context, opts *SimulateOptions, paths []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)
	cfg := opts.Config

	if opts.Count < 1 {
		return formatter.CommandError(ErrCodeInvalidArg, "--count must be at least 1", nil)
	}

	set, err := loadForRun(cfg, paths)
	if err != nil {
		return loadFailure(formatter, err)
	}
	journeys, err := selectJourneys(set.Journeys, opts.Journeys)
	if err != nil {
		return formatter.CommandError(ErrCodeNotFound, err.Error(), nil)
	}
	reg, err := buildRegistry(cfg, set)
	if err != nil {
		return formatter.CommandError(ErrCodeLoadFailed, err.Error(), err)
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	start := cfg.Start()
	upTo := cfg.Horizon()
	if opts.Days >= 0 {
		upTo = start.AddDate(0, 0, opts.Days)
	}
	workers := cfg.Sim.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}

	eng := newEngine(cfg, opts.Logger)
	registerEchoHandlers(eng, journeys, reg)
	coord := trigger.NewCoordinator(
		trigger.WithRegistry(reg),
		trigger.WithIDGenerator(trigger.SeededGenerator{Master: cfg.Seed}),
		trigger.WithCoordinatorLogger(opts.Logger),
	)
	runner := simulation.NewRunner(eng, coord,
		simulation.WithMaxSteps(cfg.Sim.MaxSteps),
		simulation.WithWorkers(workers),
		simulation.WithLogger(opts.Logger),
	)

	entities := simulation.GenerateEntities(eng.Seeds(), opts.Count, opts.EntityType, nil)
	formatter.VerboseLog("Simulating %d entities with %d journey(s) from %s to %s",
		len(entities), len(journeys), timeline.FormatDate(start), timeline.FormatDate(upTo))

	outcomes, err := runner.RunCohort(ctx, simulation.Subjects(entities, journeys, start), upTo)
	if err != nil {
		return formatter.CommandError(ErrCodeGeneric, "simulation failed", err)
	}

	summary := summarize(runID, cfg, start, upTo, journeys, outcomes)

	dbPath := cfg.Database.Path
	if opts.DBPath != "" {
		dbPath = opts.DBPath
	}
	if dbPath != "" {
		run := store.Run{ID: runID, MasterSeed: cfg.Seed, StartDate: start, UpTo: upTo, JourneyIDs: summary.Journeys}
		if err := persist(ctx, dbPath, run, entities, outcomes, coord.LinkedEntities()); err != nil {
			return formatter.CommandError(ErrCodeDatabase, "failed to persist run", err)
		}
		summary.Database = dbPath
	}

	if formatter.IsJSON() {
		return formatter.Success(summary)
	}
	printSummary(formatter, summary)
	return nil
}

// registerEchoHandlers installs a handler returning the event parameters
// for every (product, event_type) a journey or trigger can produce.
func registerEchoHandlers(eng *engine.Engine, journeys []*journey.JourneySpecification, reg *trigger.Registry) {
	echo := engine.HandlerFunc(func(_ context.Context, _ engine.Entity, ev *timeline.TimelineEvent, _ ir.IRObject) (ir.IRObject, error) {
		if ev.Parameters == nil {
			return ir.IRObject{}, nil
		}
		return ev.Parameters.Clone(), nil
	})

	seen := make(map[[2]string]bool)
	add := func(product, eventType string) {
		key := [2]string{product, eventType}
		if !seen[key] {
			seen[key] = true
			eng.RegisterHandler(product, eventType, echo)
		}
	}
	for _, j := range journeys {
		for _, def := range j.Events {
			add(def.Product, def.EventType)
		}
	}
	for _, t := range reg.All() {
		add(t.TargetProduct, t.TargetEventType)
	}
}

func summarize(runID string, cfg *config.Config, start, upTo time.Time, journeys []*journey.JourneySpecification, outcomes []simulation.Outcome) SimulationSummary {
	s := SimulationSummary{
		RunID:     runID,
		Seed:      cfg.Seed,
		StartDate: timeline.FormatDate(start),
		UpTo:      timeline.FormatDate(upTo),
		Entities:  len(outcomes),
		Journeys:  make([]string, len(journeys)),
	}
	for i, j := range journeys {
		s.Journeys[i] = j.ID
	}
	sort.Strings(s.Journeys)

	for _, o := range outcomes {
		s.Events += len(o.Timeline.Events)
		s.Summary.Add(o.Result.Summary)
		s.Instructions += len(o.Result.Instructions)
		s.CyclesBlocked += o.Result.CyclesBlocked
		if o.Result.QuotaErr != nil {
			s.QuotaExceeded = append(s.QuotaExceeded, o.Timeline.EntityID)
		}
	}
	return s
}

// persist writes a finished run in one pass: run row, then per entity its
// timeline and firings, then the link table.
func persist(ctx context.Context, path string, run store.Run, entities []engine.Entity, outcomes []simulation.Outcome, links []trigger.LinkedEntity) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.WriteRun(ctx, run); err != nil {
		return err
	}
	for _, o := range outcomes {
		if err := st.WriteTimeline(ctx, run.ID, o.Timeline, entities[o.Index].Attributes); err != nil {
			return err
		}
		if _, err := st.WriteFirings(ctx, run.ID, o.Timeline.EntityID, o.Result.Instructions); err != nil {
			return err
		}
	}
	return st.WriteLinks(ctx, run.ID, links)
}

func printSummary(formatter *OutputFormatter, s SimulationSummary) {
	w := formatter.Writer
	fmt.Fprintf(w, "Run %s (seed %d)\n", s.RunID, s.Seed)
	fmt.Fprintf(w, "  window:        %s .. %s\n", s.StartDate, s.UpTo)
	fmt.Fprintf(w, "  entities:      %d\n", s.Entities)
	fmt.Fprintf(w, "  events:        %d\n", s.Events)
	fmt.Fprintf(w, "  executed:      %d (unknown %d)\n", s.Summary.Executed, s.Summary.Unknown)
	fmt.Fprintf(w, "  failed:        %d\n", s.Summary.Failed)
	fmt.Fprintf(w, "  instructions:  %d\n", s.Instructions)
	if s.CyclesBlocked > 0 {
		fmt.Fprintf(w, "  cycles blocked: %d\n", s.CyclesBlocked)
	}
	if len(s.QuotaExceeded) > 0 {
		fmt.Fprintf(w, "  quota exceeded: %v\n", s.QuotaExceeded)
	}
	if s.Database != "" {
		fmt.Fprintf(w, "  saved to %s\n", s.Database)
	}
}
