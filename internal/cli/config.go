package cli

import (
	"github.com/spf13/cobra"
)

// ConfigResult is the effective configuration.
type ConfigResult struct {
	Path         string `json:"path,omitempty"`
	RefreshDelay string `json:"refresh_delay"`
	EventLimit   int    `json:"event_limit"`
	PayloadLimit int    `json:"payload_limit"`
	JournalPath  string `json:"journal_path,omitempty"`
	LogLevel     string `json:"log_level"`
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after layering --config over the defaults.

Text output is TOML and can be saved as a starting config file.

Examples:
  sketchsync config > sketchsync.toml
  sketchsync config --config ./sketchsync.toml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(rootOpts, cmd)
		},
	}

	return cmd
}

func runConfig(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	if opts.Format == "json" {
		return respond(cmd.OutOrStdout(), ConfigResult{
			Path:         opts.ConfigPath,
			RefreshDelay: cfg.Replica.RefreshDelay,
			EventLimit:   cfg.Undo.EventLimit,
			PayloadLimit: cfg.Undo.PayloadLimit,
			JournalPath:  cfg.Journal.Path,
			LogLevel:     cfg.Logging.Level,
		}, "", "")
	}

	data, err := cfg.Marshal()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to render config", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
