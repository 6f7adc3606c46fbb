package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sketchsync/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Filter string // glob on the scenario file name, without extension
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Pass    bool     `json:"pass"`
	Steps   int      `json:"steps"`
	Version int64    `json:"version"`
	Errors  []string `json:"errors,omitempty"`
}

// ScenarioRunResult holds the overall result.
type ScenarioRunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file|dir>...",
		Short: "Run YAML scenarios against the replica",
		Long: `Run scenario files against a fresh reference backend, replica and
undo tracker.

Each scenario drives commands, intents and injected events on a fake
clock, checks every step's expectations, and evaluates its final
assertions. Directories are searched for .yaml and .yml files.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing path, bad filter)

Examples:
  sketchsync scenario ./testdata/scenarios
  sketchsync scenario ./testdata/scenarios --filter "undo_*"
  sketchsync scenario ./testdata/scenarios/create_regulate_remove.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runScenarios(opts *ScenarioOptions, args []string, cmd *cobra.Command) error {
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return WrapExitError(ExitCommandError, "invalid filter pattern", err)
		}
	}

	var paths []string
	for _, arg := range args {
		found, err := collectScenarioFiles(arg, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to find scenarios in %s", arg), err)
		}
		paths = append(paths, found...)
	}

	result := ScenarioRunResult{
		Scenarios: make([]ScenarioResult, 0, len(paths)),
		Total:     len(paths),
	}

	if len(paths) == 0 {
		if opts.Format == "json" {
			return respond(cmd.OutOrStdout(), result, "", "")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	for _, path := range paths {
		res := runScenarioFile(path)
		result.Scenarios = append(result.Scenarios, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		failure := ""
		if result.Failed > 0 {
			failure = fmt.Sprintf("%d scenario(s) failed", result.Failed)
		}
		return respond(cmd.OutOrStdout(), result, CodeScenarioFailed, failure)
	}

	return outputScenarioText(cmd, result, opts.Verbose)
}

// collectScenarioFiles expands path into scenario files. A file argument is
// taken as is; the filter applies to directory contents only.
func collectScenarioFiles(path, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	all, err := harness.FindScenarios(path)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		return all, nil
	}

	var matched []string
	for _, p := range all {
		base := filepath.Base(p)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		if ok, _ := filepath.Match(filter, name); ok {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// runScenarioFile loads and runs one scenario. Load and execution failures
// are reported as a failed result, never as a command error.
func runScenarioFile(path string) ScenarioResult {
	res := ScenarioResult{Name: filepath.Base(path), Path: path}

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return res
	}
	res.Name = scenario.Name
	res.Steps = len(scenario.Steps)

	run, err := harness.Run(scenario)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return res
	}

	res.Pass = run.Pass
	res.Version = run.Version
	res.Errors = run.Errors
	return res
}

// outputScenarioText outputs the run result as text.
func outputScenarioText(cmd *cobra.Command, result ScenarioRunResult, verbose bool) error {
	w := cmd.OutOrStdout()

	for _, s := range result.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
			if verbose {
				fmt.Fprintf(w, "  %s: %d steps, replica version %d\n", s.Path, s.Steps, s.Version)
			}
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Scenario Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
