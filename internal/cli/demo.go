package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/sketchsync/internal/backend"
	"github.com/roach88/sketchsync/internal/channel"
	"github.com/roach88/sketchsync/internal/intent"
	"github.com/roach88/sketchsync/internal/ir"
	"github.com/roach88/sketchsync/internal/replica"
	"github.com/roach88/sketchsync/internal/schema"
	"github.com/roach88/sketchsync/internal/store"
	"github.com/roach88/sketchsync/internal/undo"
)

// DemoOptions holds flags for the demo command.
type DemoOptions struct {
	*RootOptions
	Database string
	Sketch   string
	Timeout  time.Duration

	// IDGenerator overrides the session's correlation ids (for testing).
	IDGenerator channel.IDGenerator
}

// DemoResult summarizes a demo session.
type DemoResult struct {
	Phases      []string   `json:"phases"`
	Journal     string     `json:"journal,omitempty"`
	Version     int64      `json:"version"`
	Variables   []string   `json:"variables"`
	Regulations []string   `json:"regulations"`
	Undo        undo.State `json:"undo"`
	Fingerprint string     `json:"fingerprint"`
	Converged   bool       `json:"converged"`
	Notices     []string   `json:"notices,omitempty"`
	Metrics     []Metric   `json:"metrics,omitempty"`
}

// Metric is one gathered sample.
type Metric struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

// errNotConverged is returned when the replica does not catch up with the
// backend before the timeout.
var errNotConverged = errors.New("replica did not converge")

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Drive a canned editing session through a live session",
		Long: `Run a canned editing session against the reference backend.

The demo wires a live session, replica, undo tracker and journal
recorder, then creates and names variables, connects them, toggles a
regulation, renames and moves a node, removes a regulation and walks
the undo history. After every phase it waits until the replica matches
the backend.

Record the journal with --db and inspect it with trace and replay.

Exit codes:
  0 - The replica converged with the backend
  1 - The replica did not converge before the timeout
  2 - Command error (bad config, unreadable sketch, journal error)

Examples:
  sketchsync demo
  sketchsync demo --db ./sketch.db && sketchsync replay --db ./sketch.db
  sketchsync demo --sketch ./testdata/scenarios/two_nodes.json --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the journal to this SQLite file (default: journal.path from config, else in memory)")
	cmd.Flags().StringVar(&opts.Sketch, "sketch", "", "initial sketch document")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "how long to wait for the replica to converge per phase")

	return cmd
}

func runDemo(opts *DemoOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := opts.Config()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	policy, err := cfg.Policy()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	validator, err := schema.New()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile schema", err)
	}
	backendOpts := append(cfg.BackendOptions(), backend.WithValidator(validator))
	if opts.Sketch != "" {
		initial, err := validator.LoadFile(opts.Sketch)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid initial sketch", err)
		}
		backendOpts = append(backendOpts, backend.WithSketch(initial))
	}

	journal := opts.Database
	if journal == "" {
		journal = cfg.Journal.Path
	}
	path := journal
	if path == "" {
		path = store.MemoryPath
	}
	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	d := &demo{
		backend: backend.New(backendOpts...),
		store:   st,
		policy:  policy,
		timeout: opts.Timeout,
		ids:     opts.IDGenerator,
		reg:     prometheus.NewRegistry(),
	}

	result, err := d.run(ctx)
	if err != nil && !errors.Is(err, errNotConverged) {
		return WrapExitError(ExitCommandError, "demo failed", err)
	}
	result.Journal = journal
	if !opts.Verbose {
		result.Metrics = nil
	}

	failure := ""
	if !result.Converged {
		failure = "replica did not converge with the backend"
	}
	if opts.Format == "json" {
		return respond(cmd.OutOrStdout(), result, CodeNotConverged, failure)
	}
	return outputDemoText(cmd, result, failure)
}

// demo owns one live session and its subscribers.
type demo struct {
	backend *backend.Backend
	store   *store.Store
	policy  replica.Policy
	timeout time.Duration
	ids     channel.IDGenerator
	reg     *prometheus.Registry

	session *channel.Session
	replica *replica.Replica
	tracker *undo.Tracker
	intents *intent.Intents

	mu      sync.Mutex
	notices []string
}

// Notify collects backend error notices.
func (d *demo) Notify(_ context.Context, message string) error {
	slog.Warn("backend rejected command", "message", message)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, message)
	return nil
}

// Confirm approves every destructive intent.
func (d *demo) Confirm(_ context.Context, prompt string) (bool, error) {
	slog.Info("confirming", "prompt", prompt)
	return true, nil
}

func (d *demo) run(ctx context.Context) (DemoResult, error) {
	sessOpts := []channel.Option{channel.WithJournal(d.store)}
	if d.ids != nil {
		sessOpts = append(sessOpts, channel.WithIDGenerator(d.ids))
	}
	d.session = channel.NewSession(d.backend, sessOpts...)

	// Subscribers stop when the session shuts down; cancel covers the
	// error paths.
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := d.session.Events.Subscribe(subCtx, nil)
	if err != nil {
		return DemoResult{}, err
	}
	recorder := store.NewRecorder(d.store)

	d.tracker, err = undo.Connect(subCtx, d.session, undo.WithMetrics(undo.NewMetrics(d.reg)))
	if err != nil {
		return DemoResult{}, err
	}
	d.replica, err = replica.Connect(subCtx, d.session,
		replica.WithPolicy(d.policy),
		replica.WithMetrics(replica.NewMetrics(d.reg)),
	)
	if err != nil {
		return DemoResult{}, err
	}
	d.intents = intent.New(d.session, d)

	g, gctx := errgroup.WithContext(subCtx)
	g.Go(func() error { return d.session.Run(gctx) })
	g.Go(func() error { return recorder.Run(gctx, events) })
	g.Go(func() error { return d.replica.Run(gctx) })
	g.Go(func() error { return d.tracker.Run(gctx) })
	g.Go(func() error { return channel.PresentErrors(gctx, d.session, d) })

	phases, scriptErr := d.script(gctx)

	d.session.Shutdown()
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, channel.ErrStreamClosed) {
		return DemoResult{}, err
	}

	result, err := d.summarize()
	if err != nil {
		return DemoResult{}, err
	}
	result.Phases = phases
	if scriptErr != nil {
		result.Converged = false
	}
	return result, scriptErr
}

// script performs the editing session phase by phase and returns the
// completed phases.
func (d *demo) script(ctx context.Context) ([]string, error) {
	var done []string
	phase := func(name string, fn func() error) error {
		slog.Debug("demo phase", "phase", name)
		if err := fn(); err != nil {
			return fmt.Errorf("phase %s: %w", name, err)
		}
		if err := d.settle(ctx); err != nil {
			return fmt.Errorf("phase %s: %w", name, err)
		}
		done = append(done, name)
		return nil
	}

	if err := phase("connect", func() error { return nil }); err != nil {
		return done, err
	}

	existing := d.variableIDs()
	if err := phase("create variables", func() error {
		d.intents.AddVariable(ir.Position{X: 0, Y: 0})
		d.intents.AddVariable(ir.Position{X: 160, Y: 0})
		d.intents.AddVariable(ir.Position{X: 80, Y: 120})
		return nil
	}); err != nil {
		return done, err
	}
	created := slices.DeleteFunc(d.variableIDs(), func(id string) bool {
		return slices.Contains(existing, id)
	})
	if len(created) != 3 {
		return done, fmt.Errorf("expected 3 new variables, got %v", created)
	}
	a, b, c := created[0], created[1], created[2]

	steps := []struct {
		name string
		fn   func() error
	}{
		{"name variables", func() error {
			d.intents.SetVariableData(a, "CtrA", "master cell cycle regulator")
			d.intents.SetVariableData(b, "GcrA", "")
			d.intents.SetVariableData(c, "DnaA", "")
			return nil
		}},
		{"connect variables", func() error {
			d.intents.AddRegulation(a, b)
			d.intents.AddRegulation(b, c)
			d.intents.AddRegulation(c, a)
			return nil
		}},
		{"toggle regulation", func() error {
			reg, ok := d.replica.Current().Regulation(c, a)
			if !ok {
				return fmt.Errorf("regulation %s -> %s not in replica", c, a)
			}
			d.intents.ToggleMonotonicity(reg)
			d.intents.ToggleEssentiality(reg)
			return nil
		}},
		{"update function", func() error {
			d.intents.SetUpdateFn(b, fmt.Sprintf("%s & !%s", a, c))
			return nil
		}},
		{"move node", func() error {
			d.intents.MoveNode(c, ir.Position{X: 80, Y: 160})
			return nil
		}},
		{"rename variable", func() error {
			d.intents.RenameVariable(a, "CtrA")
			return nil
		}},
		{"remove regulation", func() error {
			_, err := d.intents.RemoveRegulation(ctx, b, c)
			return err
		}},
		{"undo twice", func() error {
			d.tracker.Undo()
			d.tracker.Undo()
			return nil
		}},
		{"redo", func() error {
			d.tracker.Redo()
			return nil
		}},
		{"refresh", func() error {
			d.intents.RefreshSketch()
			return nil
		}},
	}
	for _, s := range steps {
		if err := phase(s.name, s.fn); err != nil {
			return done, err
		}
	}
	return done, nil
}

// settle waits until the session queue is empty and the replica matches the
// backend on two polls spaced past the refresh delay, so deferred follow-ups
// have been sent and applied.
func (d *demo) settle(ctx context.Context) error {
	interval := d.policy.RefreshDelay + 10*time.Millisecond
	deadline := time.NewTimer(d.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	stable := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errNotConverged
		case <-ticker.C:
		}

		converged, err := d.converged()
		if err != nil {
			return err
		}
		if !converged || d.session.Pending() > 0 {
			stable = 0
			continue
		}
		if stable++; stable >= 2 {
			return nil
		}
	}
}

func (d *demo) converged() (bool, error) {
	want, err := ir.Fingerprint(d.backend.Sketch())
	if err != nil {
		return false, err
	}
	got, err := ir.Fingerprint(d.replica.Current().Sketch)
	if err != nil {
		return false, err
	}
	return want == got, nil
}

func (d *demo) variableIDs() []string {
	vars := d.replica.Current().Sketch.Model.Variables
	ids := make([]string, 0, len(vars))
	for _, v := range vars {
		ids = append(ids, v.ID)
	}
	slices.Sort(ids)
	return ids
}

func (d *demo) summarize() (DemoResult, error) {
	snap := d.replica.Current()
	converged, err := d.converged()
	if err != nil {
		return DemoResult{}, err
	}
	fp, err := ir.Fingerprint(snap.Sketch)
	if err != nil {
		return DemoResult{}, err
	}

	result := DemoResult{
		Version:     snap.Version,
		Variables:   d.variableIDs(),
		Regulations: []string{},
		Undo:        d.tracker.State(),
		Fingerprint: fp,
		Converged:   converged,
	}
	for _, r := range snap.Sketch.Model.Regulations {
		result.Regulations = append(result.Regulations, r.Key().String())
	}

	d.mu.Lock()
	result.Notices = slices.Clone(d.notices)
	d.mu.Unlock()

	result.Metrics, err = gatherMetrics(d.reg)
	if err != nil {
		return DemoResult{}, err
	}
	return result, nil
}

// gatherMetrics flattens counters and gauges. Histograms report their
// sample count.
func gatherMetrics(reg prometheus.Gatherer) ([]Metric, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var out []Metric
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			sample := Metric{Name: mf.GetName()}
			if len(m.GetLabel()) > 0 {
				sample.Labels = make(map[string]string, len(m.GetLabel()))
				for _, lp := range m.GetLabel() {
					sample.Labels[lp.GetName()] = lp.GetValue()
				}
			}
			switch {
			case m.GetCounter() != nil:
				sample.Value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				sample.Value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				sample.Value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			out = append(out, sample)
		}
	}
	return out, nil
}

// outputDemoText outputs the demo result as text.
func outputDemoText(cmd *cobra.Command, r DemoResult, failure string) error {
	w := cmd.OutOrStdout()

	for _, p := range r.Phases {
		fmt.Fprintf(w, "✓ %s\n", p)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Replica version: %d\n", r.Version)
	fmt.Fprintf(w, "Variables: %v\n", r.Variables)
	fmt.Fprintf(w, "Regulations: %v\n", r.Regulations)
	fmt.Fprintf(w, "Undo: can_undo=%v can_redo=%v\n", r.Undo.CanUndo, r.Undo.CanRedo)
	if r.Journal != "" {
		fmt.Fprintf(w, "Journal: %s\n", r.Journal)
	}
	for _, n := range r.Notices {
		fmt.Fprintf(w, "Notice: %s\n", n)
	}
	for _, m := range r.Metrics {
		fmt.Fprintf(w, "  %s%s %g\n", m.Name, labelString(m.Labels), m.Value)
	}
	fmt.Fprintln(w)

	if failure != "" {
		fmt.Fprintf(w, "✗ %s\n", failure)
		return NewExitError(ExitFailure, failure)
	}
	fmt.Fprintln(w, "✓ Replica converged with the backend")
	return nil
}

func labelString(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	s := "{"
	for i, k := range keys {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%s=%q", k, labels[k])
	}
	return s + "}"
}
