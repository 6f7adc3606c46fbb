package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sketchsync/internal/ir"
	"github.com/roach88/sketchsync/internal/replica"
	"github.com/roach88/sketchsync/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// Divergence is a full refresh whose sketch differs from the state the
// preceding events had built.
type Divergence struct {
	EventSeq int64  `json:"event_seq"`
	Event    string `json:"event"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// ReplayResult holds the replay result.
type ReplayResult struct {
	Events        int          `json:"events"`
	Applied       int          `json:"applied"`
	Skipped       int          `json:"skipped"`
	Stale         int          `json:"stale"`
	Rejected      int          `json:"rejected"`
	Version       int64        `json:"version"`
	Fingerprint   string       `json:"fingerprint"`
	Deterministic bool         `json:"deterministic"`
	Checkpoints   int          `json:"checkpoints"`
	Divergences   []Divergence `json:"divergences"`
	SnapshotSeq   int64        `json:"snapshot_seq,omitempty"`
	SnapshotMatch *bool        `json:"snapshot_match,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the event journal and verify determinism",
		Long: `Rebuild the replica from the event journal and verify determinism.

Every journaled event is folded through the replica's reducers, twice,
and the resulting sketch fingerprints are compared. Each full refresh
after the first event is a checkpoint: the sketch built from the
preceding granular events must match the refreshed sketch. Finally the
rebuilt state is compared with the newest stored snapshot.

Exit codes:
  0 - Replay is deterministic and every checkpoint matches
  1 - Determinism or checkpoint verification failed
  2 - Command error (database not found, unreadable journal)

Examples:
  sketchsync replay --db ./sketch.db
  sketchsync replay --db ./sketch.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (default: journal.path from config)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openJournal(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	last, err := st.LastEventSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	if last == 0 {
		if opts.Format == "json" {
			return respond(cmd.OutOrStdout(), ReplayResult{Deterministic: true, Divergences: []Divergence{}}, "", "")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No events found in journal.")
		return nil
	}

	first, err := rebuild(ctx, st)
	if err != nil {
		return WrapExitError(ExitCommandError, "first replay failed", err)
	}
	second, err := rebuild(ctx, st)
	if err != nil {
		return WrapExitError(ExitCommandError, "second replay failed", err)
	}

	result := first.result
	result.Deterministic = first.result.Fingerprint == second.result.Fingerprint &&
		first.result.Version == second.result.Version

	snap, ok, err := st.LatestSnapshot(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read snapshots", err)
	}
	if ok {
		match := first.fingerprints[snap.EventSeq] == snap.Fingerprint
		result.SnapshotSeq = snap.Seq
		result.SnapshotMatch = &match
	}

	failure := replayFailure(result)
	if opts.Format == "json" {
		code := CodeDiverged
		if !result.Deterministic {
			code = CodeDeterminism
		}
		return respond(cmd.OutOrStdout(), result, code, failure)
	}

	return outputReplayText(cmd, result, failure, opts.Verbose)
}

// openJournal opens the journal named by flag, falling back to the
// configured journal path.
func openJournal(opts *RootOptions, flag string) (*store.Store, error) {
	path := flag
	if path == "" {
		cfg, err := opts.Config()
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		path = cfg.Journal.Path
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no journal: pass --db or set journal.path")
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

type rebuildResult struct {
	result ReplayResult
	// fingerprints holds the state fingerprint after each snapshotted event.
	fingerprints map[int64]string
}

// rebuild folds the whole journal through the reducers from an empty
// sketch, the way a freshly connected replica would receive it. Events the
// policy ignores or escalates do not change the replica and are skipped.
func rebuild(ctx context.Context, st *store.Store) (rebuildResult, error) {
	policy := replica.DefaultPolicy()
	out := rebuildResult{
		result:       ReplayResult{Divergences: []Divergence{}},
		fingerprints: make(map[int64]string),
	}
	sketch := ir.NewSketch()

	err := st.Replay(ctx, 0, func(rec store.EventRecord) error {
		res := &out.result
		res.Events++

		switch policy.Decide(rec.Event).Strategy {
		case replica.StrategyIgnore, replica.StrategyEscalate:
			res.Skipped++
			return nil
		}

		full := fullSketch(rec.Event)
		if full != nil && res.Applied > 0 {
			if err := checkpoint(res, rec, sketch, *full); err != nil {
				return err
			}
		}

		next, err := replica.Reduce(sketch, rec.Event)
		if err != nil {
			if replica.IsStale(err) {
				res.Stale++
			} else {
				res.Rejected++
			}
			return nil
		}
		sketch = next
		res.Applied++
		res.Version++

		if snapshotted(rec.Event) {
			fp, err := ir.Fingerprint(sketch)
			if err != nil {
				return err
			}
			out.fingerprints[rec.Seq] = fp
		}
		return nil
	})
	if err != nil {
		return rebuildResult{}, err
	}

	fp, err := ir.Fingerprint(sketch)
	if err != nil {
		return rebuildResult{}, err
	}
	out.result.Fingerprint = fp
	return out, nil
}

// fullSketch returns the sketch carried by a refresh event. A replacement
// is a new document, not a checkpoint, and returns nil.
func fullSketch(ev ir.Event) *ir.Sketch {
	if e, ok := ev.(ir.SketchRefreshed); ok {
		return &e.Sketch
	}
	return nil
}

// snapshotted reports whether the journal stores a snapshot for ev.
func snapshotted(ev ir.Event) bool {
	switch ev.(type) {
	case ir.SketchRefreshed, ir.SketchReplaced:
		return true
	}
	return false
}

func checkpoint(res *ReplayResult, rec store.EventRecord, built, refreshed ir.Sketch) error {
	actual, err := ir.Fingerprint(built)
	if err != nil {
		return err
	}
	expected, err := ir.Fingerprint(refreshed)
	if err != nil {
		return err
	}
	res.Checkpoints++
	if actual != expected {
		res.Divergences = append(res.Divergences, Divergence{
			EventSeq: rec.Seq,
			Event:    string(rec.Event.EventName()),
			Expected: expected,
			Actual:   actual,
		})
	}
	return nil
}

func replayFailure(r ReplayResult) string {
	switch {
	case !r.Deterministic:
		return "determinism verification failed"
	case len(r.Divergences) > 0:
		return fmt.Sprintf("%d checkpoint(s) diverged", len(r.Divergences))
	case r.SnapshotMatch != nil && !*r.SnapshotMatch:
		return "latest snapshot does not match the replayed state"
	}
	return ""
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, r ReplayResult, failure string, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d event(s)\n", r.Events)
	fmt.Fprintf(w, "  Applied: %d, skipped: %d, stale: %d, rejected: %d\n", r.Applied, r.Skipped, r.Stale, r.Rejected)
	if verbose {
		fmt.Fprintf(w, "  Version: %d\n", r.Version)
		fmt.Fprintf(w, "  Fingerprint: %s\n", r.Fingerprint)
	}
	fmt.Fprintf(w, "  Checkpoints: %d\n", r.Checkpoints)
	for _, d := range r.Divergences {
		fmt.Fprintf(w, "  ✗ %s at seq %d: expected %s, got %s\n", d.Event, d.EventSeq, d.Expected, d.Actual)
	}
	if r.SnapshotMatch != nil {
		status := "✓"
		if !*r.SnapshotMatch {
			status = "✗"
		}
		fmt.Fprintf(w, "  %s Snapshot %d\n", status, r.SnapshotSeq)
	}
	fmt.Fprintln(w)

	if failure == "" {
		fmt.Fprintln(w, "✓ Replay verified deterministic")
		return nil
	}

	fmt.Fprintf(w, "✗ %s\n", failure)
	return NewExitError(ExitFailure, failure)
}
