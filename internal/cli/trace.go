package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/sketchsync/internal/ir"
	"github.com/roach88/sketchsync/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	After    int64  // only events with a greater seq
	Event    string // optional - filter to one event name
}

// TraceCommand is one journaled command.
type TraceCommand struct {
	Seq     int64           `json:"seq"`
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TraceEvent is one journaled event.
type TraceEvent struct {
	Seq     int64           `json:"seq"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TraceStats holds summary statistics for the journal.
type TraceStats struct {
	Commands    int            `json:"commands"`
	Events      int            `json:"events"`
	ByEvent     map[string]int `json:"by_event"`
	SnapshotSeq int64          `json:"snapshot_seq,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Commands []TraceCommand `json:"commands"`
	Events   []TraceEvent   `json:"events"`
	Stats    TraceStats     `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the command and event journal",
		Long: `Print the journaled commands and events in seq order.

Commands are listed with their correlation ids; events with their
names. --verbose and --format json include payloads.

Examples:
  sketchsync trace --db ./sketch.db
  sketchsync trace --db ./sketch.db --event variableCreated
  sketchsync trace --db ./sketch.db --after 120 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default: journal.path from config)")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only show events after this seq")
	cmd.Flags().StringVar(&opts.Event, "event", "", "filter to one event name")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Event != "" && !knownEvent(opts.Event) {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown event %q", opts.Event))
	}

	st, err := openJournal(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := buildTrace(ctx, st, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	if opts.Format == "json" {
		return respond(cmd.OutOrStdout(), result, "", "")
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

func buildTrace(ctx context.Context, st *store.Store, opts *TraceOptions) (TraceResult, error) {
	result := TraceResult{
		Commands: []TraceCommand{},
		Events:   []TraceEvent{},
		Stats:    TraceStats{ByEvent: map[string]int{}},
	}

	commands, err := st.ReadCommands(ctx)
	if err != nil {
		return TraceResult{}, err
	}
	for _, rec := range commands {
		entry := TraceCommand{Seq: rec.Seq, ID: rec.ID, Name: string(rec.Command.CommandName())}
		if opts.Verbose || opts.Format == "json" {
			env, err := ir.EncodeCommand(rec.Command)
			if err != nil {
				return TraceResult{}, err
			}
			entry.Payload = env.Payload
		}
		result.Commands = append(result.Commands, entry)
	}

	events, err := st.ReadEvents(ctx, opts.After)
	if err != nil {
		return TraceResult{}, err
	}
	for _, rec := range events {
		name := string(rec.Event.EventName())
		if opts.Event != "" && name != opts.Event {
			continue
		}
		entry := TraceEvent{Seq: rec.Seq, Name: name}
		if opts.Verbose || opts.Format == "json" {
			env, err := ir.EncodeEvent(rec.Event)
			if err != nil {
				return TraceResult{}, err
			}
			entry.Payload = env.Payload
		}
		result.Events = append(result.Events, entry)
		result.Stats.ByEvent[name]++
	}

	result.Stats.Commands = len(result.Commands)
	result.Stats.Events = len(result.Events)

	snap, ok, err := st.LatestSnapshot(ctx)
	if err != nil {
		return TraceResult{}, err
	}
	if ok {
		result.Stats.SnapshotSeq = snap.EventSeq
	}
	return result, nil
}

func knownEvent(name string) bool {
	for _, n := range ir.AllEventNames() {
		if string(n) == name {
			return true
		}
	}
	return false
}

// outputTraceText outputs the trace as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if len(result.Commands) == 0 && len(result.Events) == 0 {
		fmt.Fprintln(w, "Journal is empty.")
		return nil
	}

	fmt.Fprintf(w, "Commands (%d):\n", len(result.Commands))
	for _, c := range result.Commands {
		fmt.Fprintf(w, "  [%d] %s %s\n", c.Seq, c.Name, c.ID)
		if verbose && len(c.Payload) > 0 {
			fmt.Fprintf(w, "      %s\n", c.Payload)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Events (%d):\n", len(result.Events))
	for _, e := range result.Events {
		marker := ""
		if e.Seq == result.Stats.SnapshotSeq {
			marker = " (snapshot)"
		}
		fmt.Fprintf(w, "  [%d] %s%s\n", e.Seq, e.Name, marker)
		if verbose && len(e.Payload) > 0 {
			fmt.Fprintf(w, "      %s\n", e.Payload)
		}
	}

	if verbose && len(result.Stats.ByEvent) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Event counts:")
		names := make([]string, 0, len(result.Stats.ByEvent))
		for name := range result.Stats.ByEvent {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d\n", name, result.Stats.ByEvent[name])
		}
	}
	return nil
}
