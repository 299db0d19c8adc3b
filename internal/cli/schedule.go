package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/journeysim/internal/config"
	"github.com/roach88/journeysim/internal/engine"
	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/journey"
	"github.com/roach88/journeysim/internal/timeline"
)

// ScheduleOptions holds flags for the schedule command.
type ScheduleOptions struct {
	*RootOptions
	EntityID   string
	EntityType string
	Attrs      []string // key=value, value parsed as YAML
	Start      string   // YYYY-MM-DD, defaults to config start_date
	Journeys   []string // journey ids to schedule, all when empty
}

// NewScheduleCommand creates the schedule command.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScheduleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schedule <spec-path>...",
		Short: "Print the timeline journeys produce for one entity",
		Long: `Schedule journeys for a single entity and print the resulting
timeline without executing any event or firing triggers.

Attributes are given as dotted key=value pairs; values are parsed as
YAML so numbers and booleans keep their type.

Examples:
  journeysim schedule ./journeys --attr age=54 --attr gender=F
  journeysim schedule diabetes.yaml --entity patient-007 --start 2025-03-01
  journeysim schedule ./journeys --journey diabetes --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.setup(cmd.ErrOrStderr()); err != nil {
				return err
			}
			return runSchedule(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.EntityID, "entity", "entity-001", "entity id")
	cmd.Flags().StringVar(&opts.EntityType, "type", "patient", "entity type")
	cmd.Flags().StringArrayVar(&opts.Attrs, "attr", nil, "entity attribute as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&opts.Journeys, "journey", nil, "journey id to schedule (repeatable, default all)")

	return cmd
}

func runSchedule(opts *ScheduleOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	attrs, err := parseAttrs(opts.Attrs)
	if err != nil {
		return formatter.CommandError(ErrCodeInvalidArg, err.Error(), nil)
	}
	start, err := startDate(opts.Config, opts.Start)
	if err != nil {
		return formatter.CommandError(ErrCodeInvalidArg, err.Error(), nil)
	}

	set, errs := LoadSpecs(LoadModeFailFast, paths...)
	if len(errs) > 0 {
		return loadFailure(formatter, errs[0])
	}
	journeys, err := selectJourneys(set.Journeys, opts.Journeys)
	if err != nil {
		return formatter.CommandError(ErrCodeNotFound, err.Error(), nil)
	}

	eng := newEngine(opts.Config, opts.Logger)
	entity := engine.Entity{ID: opts.EntityID, Type: opts.EntityType, Attributes: attrs}
	tl := timeline.New(entity.ID, entity.Type, start)
	for _, j := range journeys {
		if err := eng.ScheduleJourney(tl, entity, j, start); err != nil {
			return formatter.Failure(ErrCodeGeneric, fmt.Sprintf("schedule %s: %v", j.ID, err), nil)
		}
	}

	if formatter.IsJSON() {
		return formatter.Success(tl)
	}
	printTimeline(formatter, tl)
	return nil
}

// parseAttrs turns key=value pairs into an attribute object. Keys may be
// dotted paths.
func parseAttrs(pairs []string) (ir.IRObject, error) {
	attrs := ir.IRObject{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --attr %q (want key=value)", pair)
		}

		var decoded any
		if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil {
			return nil, fmt.Errorf("invalid --attr %q: %w", pair, err)
		}
		value, err := ir.FromAny(decoded)
		if err != nil {
			value = ir.IRString(raw)
		}
		ir.SetPath(attrs, key, value)
	}
	return attrs, nil
}

func startDate(cfg *config.Config, flag string) (time.Time, error) {
	if flag == "" {
		return cfg.Start(), nil
	}
	d, err := timeline.ParseDate(flag)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --start %q (want YYYY-MM-DD)", flag)
	}
	return d, nil
}

// selectJourneys returns the journeys named by ids in id order, or all of
// them when ids is empty.
func selectJourneys(all []*journey.JourneySpecification, ids []string) ([]*journey.JourneySpecification, error) {
	if len(ids) == 0 {
		return all, nil
	}
	byID := make(map[string]*journey.JourneySpecification, len(all))
	for _, j := range all {
		byID[j.ID] = j
	}
	var out []*journey.JourneySpecification
	for _, id := range ids {
		j, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown journey %q", id)
		}
		out = append(out, j)
	}
	return out, nil
}

func newEngine(cfg *config.Config, logger *slog.Logger) *engine.Engine {
	opts := []engine.Option{engine.WithLogger(logger)}
	if cfg.Sim.SkippedPlaceholders {
		opts = append(opts, engine.WithSkippedPlaceholders())
	}
	return engine.New(cfg.Seed, opts...)
}

// loadFailure maps a spec loading error to a command error.
func loadFailure(formatter *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return formatter.CommandError(le.Code, le.Error(), le.Err)
	}
	return formatter.CommandError(ErrCodeLoadFailed, err.Error(), nil)
}

// printTimeline writes one row per event.
func printTimeline(formatter *OutputFormatter, tl *timeline.Timeline) {
	fmt.Fprintf(formatter.Writer, "%s (%s) from %s: %d events\n",
		tl.EntityID, tl.EntityType, timeline.FormatDate(tl.StartDate), len(tl.Events))

	w := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tPRODUCT\tEVENT\tSTATUS\tNAME")
	for _, ev := range tl.Events {
		status := string(ev.Status)
		if ev.SkipReason != "" {
			status += " (" + ev.SkipReason + ")"
		}
		if ev.Error != "" {
			status += " (" + ev.Error + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			timeline.FormatDate(ev.ScheduledDate), ev.Product, ev.EventType, status, ev.Name)
	}
	w.Flush()
}
