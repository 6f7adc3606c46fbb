package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/sketchsync/internal/backend"
	"github.com/roach88/sketchsync/internal/channel"
	"github.com/roach88/sketchsync/internal/clock"
	"github.com/roach88/sketchsync/internal/config"
	"github.com/roach88/sketchsync/internal/intent"
	"github.com/roach88/sketchsync/internal/ir"
	"github.com/roach88/sketchsync/internal/replica"
	"github.com/roach88/sketchsync/internal/schema"
	"github.com/roach88/sketchsync/internal/store"
	"github.com/roach88/sketchsync/internal/testutil"
	"github.com/roach88/sketchsync/internal/undo"
)

// epoch is the fake clock's start time, fixed so traces are reproducible.
var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness plays a scenario on one goroutine. It stands in for the session:
// commands sent by the replica, the tracker and the intents are queued and
// dispatched to the backend in order, and every published event is
// journaled, then applied to the replica and the undo tracker.
type Harness struct {
	ctx      context.Context
	store    *store.Store
	recorder *store.Recorder
	backend  *backend.Backend
	replica  *replica.Replica
	tracker  *undo.Tracker
	intents  *intent.Intents
	clock    *clock.FakeClock
	ids      *testutil.SequenceGenerator
	confirm  *scriptedConfirmer
	logger   *slog.Logger
	result   *Result

	mu      sync.Mutex
	pending []ir.Command

	// per-step observations
	sent   []string
	events []string
	errors []string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh backend and an in-memory journal.
// The fake clock and sequential command ids make traces reproducible.
//
// Execution flow:
// 1. Create the journal, backend, replica, tracker and intents
// 2. Request the initial sketch and dispatch until quiescent
// 3. Execute steps, checking each step's expect clause
// 4. Evaluate assertions against the final state
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(context.Background(), scenario, st)
	if err != nil {
		return nil, err
	}

	// Initial sketch, as a freshly connected replica would request it
	h.Send(ir.RefreshSketch{})
	if err := h.drain(); err != nil {
		return nil, fmt.Errorf("failed to load initial sketch: %w", err)
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(i, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Label(), err)
		}
	}

	result := h.result
	snap := h.replica.Current()
	result.Sketch = snap.Sketch
	result.Version = snap.Version
	result.Undo = h.tracker.State()

	actx := &AssertionContext{
		Ctx:     h.ctx,
		Store:   st,
		Backend: h.backend,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func newHarness(ctx context.Context, scenario *Scenario, st *store.Store) (*Harness, error) {
	cfg := config.Default()
	if v := scenario.Settings.RefreshDelay; v != "" {
		cfg.Replica.RefreshDelay = v
	}
	if v := scenario.Settings.EventLimit; v != 0 {
		cfg.Undo.EventLimit = v
	}
	if v := scenario.Settings.PayloadLimit; v != 0 {
		cfg.Undo.PayloadLimit = v
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	validator, err := schema.New()
	if err != nil {
		return nil, err
	}
	backendOpts := append(cfg.BackendOptions(), backend.WithValidator(validator))
	if scenario.Sketch != "" {
		initial, err := validator.LoadFile(scenario.Sketch)
		if err != nil {
			return nil, fmt.Errorf("failed to load sketch: %w", err)
		}
		backendOpts = append(backendOpts, backend.WithSketch(initial))
	}

	h := &Harness{
		ctx:      ctx,
		store:    st,
		recorder: store.NewRecorder(st),
		backend:  backend.New(backendOpts...),
		clock:    clock.Fake(epoch),
		ids:      testutil.NewSequenceGenerator(""),
		confirm:  &scriptedConfirmer{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		result:   NewResult(),
	}
	h.replica = replica.New(h, replica.WithClock(h.clock), replica.WithPolicy(policy))
	h.tracker = undo.New(h)
	h.intents = intent.New(h, h.confirm)
	return h, nil
}

// Send queues cmd for dispatch. It implements channel.Sender.
func (h *Harness) Send(cmd ir.Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = append(h.pending, cmd)
}

func (h *Harness) next() (ir.Command, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.pending) == 0 {
		return nil, false
	}
	cmd := h.pending[0]
	h.pending = h.pending[1:]
	return cmd, true
}

// drain dispatches queued commands, including the ones they cause, until
// the queue is empty.
func (h *Harness) drain() error {
	for {
		cmd, ok := h.next()
		if !ok {
			return nil
		}
		if err := h.dispatch(cmd); err != nil {
			return err
		}
	}
}

// dispatch journals cmd, hands it to the backend and delivers the events.
// Rejections are part of the trace, not failures of the run.
func (h *Harness) dispatch(cmd ir.Command) error {
	name := string(cmd.CommandName())
	if err := h.store.RecordCommand(h.ctx, h.ids.Generate(), cmd); err != nil {
		return fmt.Errorf("journal command %s: %w", name, err)
	}
	payload, err := payloadOf(cmd)
	if err != nil {
		return err
	}
	h.result.addTrace(TraceEvent{Type: TypeCommand, Name: name, Payload: payload})
	h.sent = append(h.sent, name)

	out := &testutil.EventRecorder{}
	handleErr := h.backend.Handle(h.ctx, cmd, out)

	// A rejection may still publish events, such as lost undo availability.
	for _, ev := range out.Events() {
		if err := h.deliver(ev, TypeEvent); err != nil {
			return err
		}
		h.events = append(h.events, string(ev.EventName()))
	}

	if handleErr != nil {
		code := string(backend.CodeOf(handleErr))
		if code == "" {
			code = "ERROR"
		}
		h.logger.Info("command rejected", "command", name, "code", code, "error", handleErr)
		h.result.addTrace(TraceEvent{Type: TypeError, Name: name, Code: code, Message: handleErr.Error()})
		h.errors = append(h.errors, code)
	}
	return nil
}

func (h *Harness) deliver(ev ir.Event, traceType string) error {
	if err := h.recorder.Record(h.ctx, ev); err != nil {
		return fmt.Errorf("journal event %s: %w", ev.EventName(), err)
	}
	payload, err := payloadOf(ev)
	if err != nil {
		return err
	}
	h.result.addTrace(TraceEvent{Type: traceType, Name: string(ev.EventName()), Payload: payload})
	h.replica.Apply(ev)
	h.tracker.Observe(ev)
	return nil
}

// executeStep performs one step, dispatches until quiescent and checks the
// step's expect clause.
func (h *Harness) executeStep(i int, step Step) error {
	h.sent, h.events, h.errors = nil, nil, nil
	before := h.replica.Current()

	switch step.Kind() {
	case "command":
		cmd, err := decodeArgs(step.Command, step.Args, ir.DecodeCommand)
		if err != nil {
			return err
		}
		h.Send(cmd)
	case "intent":
		if err := h.performIntent(step); err != nil {
			return err
		}
	case "event":
		ev, err := decodeArgs(step.Event, step.Args, ir.DecodeEvent)
		if err != nil {
			return err
		}
		if err := h.deliver(ev, TypeInjected); err != nil {
			return err
		}
	case "advance":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return err
		}
		h.clock.Advance(d)
	}

	if err := h.drain(); err != nil {
		return err
	}

	h.checkExpect(i, step, before)
	h.logger.Info("step completed",
		"step", i,
		"kind", step.Kind(),
		"sent", h.sent,
		"events", h.events,
	)
	return nil
}

func (h *Harness) checkExpect(i int, step Step, before *replica.Snapshot) {
	fail := func(format string, args ...any) {
		h.result.AddError(fmt.Sprintf("step %d (%s): ", i, step.Label()) + fmt.Sprintf(format, args...))
	}

	exp := step.Expect
	if exp == nil {
		exp = &Expect{}
	}

	switch {
	case exp.Error == "" && len(h.errors) > 0:
		fail("unexpected rejection %v", h.errors)
	case exp.Error != "" && !slices.Contains(h.errors, exp.Error):
		fail("expected rejection %s, got %v", exp.Error, h.errors)
	}
	if exp.Sent != nil && !slices.Equal(exp.Sent, h.sent) {
		fail("sent %v, expected %v", h.sent, exp.Sent)
	}
	if exp.Events != nil && !slices.Equal(exp.Events, h.events) {
		fail("events %v, expected %v", h.events, exp.Events)
	}
	if exp.Unchanged && h.replica.Current() != before {
		fail("replica changed from version %d to %d", before.Version, h.replica.Current().Version)
	}
}

// intentArgs is the union of every intent's arguments.
type intentArgs struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Name       string  `json:"name"`
	Annotation string  `json:"annotation"`
	Expression string  `json:"expression"`
	Old        string  `json:"old"`
	New        string  `json:"new"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

// performIntent drives the editor gesture. Toggles read the regulation
// from the replica, as the editor would.
func (h *Harness) performIntent(step Step) error {
	var a intentArgs
	if err := remarshal(step.Args, &a); err != nil {
		return fmt.Errorf("intent %s args: %w", step.Intent, err)
	}
	h.confirm.answer = step.Confirm == nil || *step.Confirm

	switch step.Intent {
	case IntentAddVariable:
		h.intents.AddVariable(ir.Position{X: a.X, Y: a.Y})
	case IntentRemoveVariable:
		_, err := h.intents.RemoveVariable(h.ctx, a.ID)
		return err
	case IntentAddRegulation:
		h.intents.AddRegulation(a.Source, a.Target)
	case IntentRemoveRegulation:
		_, err := h.intents.RemoveRegulation(h.ctx, a.Source, a.Target)
		return err
	case IntentToggleEssentiality, IntentToggleSign:
		r, ok := h.replica.Current().Regulation(a.Source, a.Target)
		if !ok {
			return fmt.Errorf("regulation %s not in replica", ir.RegulationKey{Source: a.Source, Target: a.Target})
		}
		if step.Intent == IntentToggleEssentiality {
			h.intents.ToggleEssentiality(r)
		} else {
			h.intents.ToggleMonotonicity(r)
		}
	case IntentSetVariableData:
		h.intents.SetVariableData(a.ID, a.Name, a.Annotation)
	case IntentSetUpdateFn:
		h.intents.SetUpdateFn(a.ID, a.Expression)
	case IntentRenameVariable:
		h.intents.RenameVariable(a.Old, a.New)
	case IntentMoveNode:
		h.intents.MoveNode(a.ID, ir.Position{X: a.X, Y: a.Y})
	case IntentRefresh:
		h.intents.RefreshSketch()
	case IntentUndo:
		h.tracker.Undo()
	case IntentRedo:
		h.tracker.Redo()
	default:
		return fmt.Errorf("unknown intent %q", step.Intent)
	}
	return nil
}

// scriptedConfirmer answers every confirmation with the step's choice.
type scriptedConfirmer struct {
	answer bool
}

func (c *scriptedConfirmer) Confirm(context.Context, string) (bool, error) {
	return c.answer, nil
}

var _ channel.Confirmer = (*scriptedConfirmer)(nil)
var _ channel.Sender = (*Harness)(nil)

// decodeArgs builds a command or event from a YAML step.
func decodeArgs[T any](name string, args map[string]any, decode func(ir.Envelope) (T, error)) (T, error) {
	payload := []byte("{}")
	if len(args) > 0 {
		var err error
		if payload, err = json.Marshal(args); err != nil {
			var zero T
			return zero, fmt.Errorf("%s args: %w", name, err)
		}
	}
	return decode(ir.Envelope{Name: name, Payload: payload})
}

// payloadOf renders a command or event payload as a generic JSON object.
func payloadOf(v any) (map[string]any, error) {
	var out map[string]any
	if err := remarshal(v, &out); err != nil {
		return nil, fmt.Errorf("trace payload: %w", err)
	}
	return out, nil
}

// remarshal converts between shapes through JSON. YAML numbers become
// float64, matching decoded payloads.
func remarshal(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
