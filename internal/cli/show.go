package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/store"
	"github.com/roach88/journeysim/internal/timeline"
	"github.com/roach88/journeysim/internal/trigger"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	DBPath string
}

// RunDetail is a stored run with its entity ids.
type RunDetail struct {
	Run      store.Run `json:"run"`
	Entities []string  `json:"entities"`
}

// EntityDetail is one stored timeline with its firings and links.
type EntityDetail struct {
	RunID      string                `json:"run_id"`
	Attributes ir.IRObject           `json:"attributes"`
	Timeline   *timeline.Timeline    `json:"timeline"`
	Firings    []trigger.Instruction `json:"firings"`
	ProductIDs map[string]string     `json:"product_ids,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [run-id [entity-id]]",
		Short: "Inspect persisted simulation runs",
		Long: `Inspect runs written by "journeysim simulate --db".

Without arguments all run ids are listed. With a run id the run and its
entities are shown. With a run id and an entity id the entity's timeline,
trigger firings and linked product ids are shown.

Examples:
  journeysim show --db sim.db
  journeysim show --db sim.db 0b7f...
  journeysim show --db sim.db 0b7f... patient-3fa2c41b09de`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.setup(cmd.ErrOrStderr()); err != nil {
				return err
			}
			return runShow(cmd.Context(), opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database path (default from config)")

	return cmd
}

func runShow(ctx context.Context, opts *ShowOptions, args []string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = opts.Config.Database.Path
	}
	if dbPath == "" {
		return formatter.CommandError(ErrCodeInvalidArg, "no database: pass --db or set database.path", nil)
	}
	// Open would create a missing file.
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		return formatter.CommandError(ErrCodeNotFound, fmt.Sprintf("database not found: %s", dbPath), err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return formatter.CommandError(ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	switch len(args) {
	case 0:
		return showRuns(ctx, st, formatter)
	case 1:
		return showRun(ctx, st, formatter, args[0])
	default:
		return showEntity(ctx, st, formatter, args[0], args[1])
	}
}

func showRuns(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	ids, err := st.ListRuns(ctx)
	if err != nil {
		return formatter.CommandError(ErrCodeDatabase, "failed to list runs", err)
	}
	runs := make([]store.Run, 0, len(ids))
	for _, id := range ids {
		run, err := st.ReadRun(ctx, id)
		if err != nil {
			return formatter.CommandError(ErrCodeDatabase, "failed to read run", err)
		}
		runs = append(runs, run)
	}

	if formatter.IsJSON() {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs found.")
		return nil
	}
	w := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSEED\tSTART\tUP TO\tJOURNEYS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", r.ID, r.MasterSeed,
			timeline.FormatDate(r.StartDate), timeline.FormatDate(r.UpTo), strings.Join(r.JourneyIDs, ","))
	}
	return w.Flush()
}

func showRun(ctx context.Context, st *store.Store, formatter *OutputFormatter, runID string) error {
	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return formatter.CommandError(ErrCodeNotFound, fmt.Sprintf("run not found: %s", runID), err)
	}
	if err != nil {
		return formatter.CommandError(ErrCodeDatabase, "failed to read run", err)
	}
	entities, err := st.ListEntities(ctx, runID)
	if err != nil {
		return formatter.CommandError(ErrCodeDatabase, "failed to list entities", err)
	}

	detail := RunDetail{Run: run, Entities: entities}
	if formatter.IsJSON() {
		return formatter.Success(detail)
	}
	fmt.Fprintf(formatter.Writer, "Run %s\n", run.ID)
	fmt.Fprintf(formatter.Writer, "  seed:     %d\n", run.MasterSeed)
	fmt.Fprintf(formatter.Writer, "  window:   %s .. %s\n", timeline.FormatDate(run.StartDate), timeline.FormatDate(run.UpTo))
	fmt.Fprintf(formatter.Writer, "  journeys: %s\n", strings.Join(run.JourneyIDs, ", "))
	fmt.Fprintf(formatter.Writer, "  engine:   %s (format %s)\n", run.EngineVersion, run.FormatVersion)
	fmt.Fprintf(formatter.Writer, "  entities: %d\n", len(entities))
	for _, id := range entities {
		fmt.Fprintf(formatter.Writer, "    %s\n", id)
	}
	return nil
}

func showEntity(ctx context.Context, st *store.Store, formatter *OutputFormatter, runID, entityID string) error {
	tl, attrs, err := st.ReadTimeline(ctx, runID, entityID)
	if errors.Is(err, sql.ErrNoRows) {
		return formatter.CommandError(ErrCodeNotFound, fmt.Sprintf("entity %s not found in run %s", entityID, runID), err)
	}
	if err != nil {
		return formatter.CommandError(ErrCodeDatabase, "failed to read timeline", err)
	}
	firings, err := st.ReadFirings(ctx, runID, entityID)
	if err != nil {
		return formatter.CommandError(ErrCodeDatabase, "failed to read firings", err)
	}
	links, err := st.ReadLinks(ctx, runID)
	if err != nil {
		return formatter.CommandError(ErrCodeDatabase, "failed to read links", err)
	}

	detail := EntityDetail{RunID: runID, Attributes: attrs, Timeline: tl, Firings: firings}
	for _, l := range links {
		if l.CoreID == entityID {
			detail.ProductIDs = l.ProductIDs
		}
	}

	if formatter.IsJSON() {
		return formatter.Success(detail)
	}
	printTimeline(formatter, tl)
	if len(firings) > 0 {
		fmt.Fprintf(formatter.Writer, "\nTrigger firings: %d\n", len(firings))
		for _, f := range firings {
			fmt.Fprintf(formatter.Writer, "  %s  %s -> %s.%s\n",
				timeline.FormatDate(f.TargetDate), f.TriggerID, f.TargetProduct, f.TargetEventType)
		}
	}
	if len(detail.ProductIDs) > 0 {
		fmt.Fprintln(formatter.Writer, "\nLinked ids:")
		for _, product := range sortedKeys(detail.ProductIDs) {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", product, detail.ProductIDs[product])
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
