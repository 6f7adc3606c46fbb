package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sketchsync/internal/schema"
)

// FileValidation holds the validation result of one sketch document.
type FileValidation struct {
	Path      string                   `json:"path"`
	Valid     bool                     `json:"valid"`
	Variables int                      `json:"variables,omitempty"`
	Errors    []schema.ValidationError `json:"errors,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <sketch.json>...",
		Short: "Validate sketch documents",
		Long: `Validate sketch JSON documents against the sketch schema.

Checks field types and enum values, then cross references: regulation
endpoints, layout nodes and property targets must name existing
variables.

Exit codes:
  0 - All documents are valid
  1 - One or more documents are invalid
  2 - Command error (file not found)

Examples:
  sketchsync validate ./sketch.json
  sketchsync validate ./a.json ./b.json --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("cannot read %s", path), err)
		}
	}

	validator, err := schema.New()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile schema", err)
	}

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(paths))}
	for _, path := range paths {
		formatter.VerboseLog("Validating %s", path)
		fv := validateFile(validator, path)
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	failure := ""
	if !result.Valid {
		failure = "sketch validation failed"
	}
	if opts.Format == "json" {
		return respond(cmd.OutOrStdout(), result, CodeInvalidSketch, failure)
	}
	return outputValidateText(formatter, result, failure)
}

func validateFile(v *schema.Validator, path string) FileValidation {
	fv := FileValidation{Path: path}

	sketch, err := v.LoadFile(path)
	if err != nil {
		var errs schema.Errors
		if errors.As(err, &errs) {
			fv.Errors = errs
		} else {
			fv.Errors = []schema.ValidationError{{Field: "sketch", Message: err.Error(), Code: schema.ErrSyntax}}
		}
		return fv
	}

	fv.Valid = true
	fv.Variables = len(sketch.Model.Variables)
	return fv
}

func outputValidateText(f *OutputFormatter, result ValidationResult, failure string) error {
	for _, fv := range result.Files {
		if fv.Valid {
			fmt.Fprintf(f.Writer, "✓ %s (%d variables)\n", fv.Path, fv.Variables)
			continue
		}
		fmt.Fprintf(f.Writer, "✗ %s\n", fv.Path)
		for _, e := range fv.Errors {
			fmt.Fprintf(f.Writer, "  %s\n", e.Error())
		}
	}

	if failure != "" {
		return NewExitError(ExitFailure, failure)
	}
	return f.Success("All sketches valid")
}
