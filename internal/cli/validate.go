package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/journeysim/internal/compiler"
	"github.com/roach88/journeysim/internal/trigger"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Journeys int                        `json:"journeys"`
	Triggers int                        `json:"triggers"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <spec-path>...",
		Short: "Validate journeys and triggers",
		Long: `Validate journey specifications (YAML, JSON or CUE) and trigger
definitions without running anything.

Every file is loaded and every error is reported. Trigger cycles are
reported as warnings and do not fail validation.

Exit codes:
  0 - All specs valid
  1 - One or more validation errors
  2 - Command error (path not found, no spec files)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.setup(cmd.ErrOrStderr()); err != nil {
				return err
			}
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	set, loadErrs := LoadSpecs(LoadModeCollectAll, paths...)
	if set == nil {
		return loadFailure(formatter, loadErrs[0])
	}
	formatter.VerboseLog("Found %d spec file(s)", len(set.Files))

	result := ValidationResult{
		Journeys: len(set.Journeys),
		Triggers: len(set.Triggers),
		Errors:   []compiler.ValidationError{},
	}
	for _, err := range loadErrs {
		ve := compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeLoadFailed}
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			ve = compiler.ValidationError{Field: loadErr.Path, Message: loadErr.Message, Code: loadErr.Code}
		}
		result.Errors = append(result.Errors, ve)
	}
	result.Errors = append(result.Errors, compiler.Validate(set.Journeys, set.Triggers)...)

	// Cycle analysis covers the registry the simulator would actually use.
	if len(result.Errors) == 0 {
		reg, err := buildRegistry(opts.Config, set)
		if err != nil {
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field: "triggers", Message: err.Error(), Code: compiler.ErrTriggerInvalid,
			})
		} else {
			registered := make([]trigger.RegisteredTrigger, 0, reg.Len())
			for _, t := range reg.All() {
				registered = append(registered, *t)
			}
			result.Warnings = compiler.AnalyzeCycles(registered)
		}
	}

	result.Valid = len(result.Errors) == 0
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "! %s: %s\n", w.Level, w.Message)
	}
	fmt.Fprintf(formatter.Writer, "\u2713 All specs valid (%d journeys, %d triggers)\n", result.Journeys, result.Triggers)
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	msg := fmt.Sprintf("validation failed with %d error(s)", len(result.Errors))
	if formatter.IsJSON() {
		return formatter.Failure(result.Errors[0].Code, msg, result)
	}

	fmt.Fprintln(formatter.Writer, "\u2717 Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range result.Errors {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", e.Code, e.Field, e.Message)
	}
	return NewExitError(ExitFailure, msg)
}
