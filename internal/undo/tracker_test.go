package undo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sketchsync/internal/channel"
	"github.com/roach88/sketchsync/internal/ir"
	"github.com/roach88/sketchsync/internal/replica"
	"github.com/roach88/sketchsync/internal/testutil"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.Run()
}

func TestTracker_StartsUnavailable(t *testing.T) {
	tr := New(&testutil.CommandRecorder{})
	assert.Equal(t, State{}, tr.State())
}

func TestTracker_Observe(t *testing.T) {
	tr := New(&testutil.CommandRecorder{})

	tests := []struct {
		name    string
		ev      ir.Event
		changed bool
		want    State
	}{
		{"undo becomes available", ir.CanUndoChanged{Value: true}, true, State{CanUndo: true}},
		{"repeated value", ir.CanUndoChanged{Value: true}, false, State{CanUndo: true}},
		{"redo becomes available", ir.CanRedoChanged{Value: true}, true, State{CanUndo: true, CanRedo: true}},
		{"unrelated event", ir.VariableCreated{Variable: testutil.Var("A")}, false, State{CanUndo: true, CanRedo: true}},
		{"undo exhausted", ir.CanUndoChanged{Value: false}, true, State{CanRedo: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.changed, tr.Observe(tt.ev))
			assert.Equal(t, tt.want, tr.State())
		})
	}
}

func TestTracker_UndoRedoAlwaysSend(t *testing.T) {
	rec := &testutil.CommandRecorder{}
	tr := New(rec)

	tr.Undo()
	tr.Redo()
	tr.Observe(ir.CanUndoChanged{Value: true})
	tr.Undo()

	assert.Equal(t, []ir.CommandName{ir.CommandUndo, ir.CommandRedo, ir.CommandUndo}, rec.Names())
}

func TestTracker_Updates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := New(&testutil.CommandRecorder{})
	updates, err := tr.Updates(ctx)
	require.NoError(t, err)

	tr.Observe(ir.CanUndoChanged{Value: true})
	tr.Observe(ir.CanUndoChanged{Value: true})
	tr.Observe(ir.CanRedoChanged{Value: true})

	for _, want := range []State{{CanUndo: true}, {CanUndo: true, CanRedo: true}} {
		select {
		case st := <-updates:
			assert.Equal(t, want, st)
		case <-time.After(2 * time.Second):
			t.Fatal("no availability update")
		}
	}
	select {
	case st := <-updates:
		t.Fatalf("unexpected update %+v", st)
	default:
	}
}

func TestTracker_Metrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	tr := New(&testutil.CommandRecorder{}, WithMetrics(m))

	tr.Observe(ir.CanUndoChanged{Value: true})
	tr.Undo()
	tr.Undo()
	tr.Redo()

	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.available.WithLabelValues("undo")))
	assert.Equal(t, 0.0, promtestutil.ToFloat64(m.available.WithLabelValues("redo")))
	assert.Equal(t, 2.0, promtestutil.ToFloat64(m.requests.WithLabelValues("undo")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.requests.WithLabelValues("redo")))
}

func TestTracker_RunNotConnected(t *testing.T) {
	assert.ErrorIs(t, New(nil).Run(context.Background()), ErrNotConnected)
}

func TestInterested(t *testing.T) {
	assert.True(t, Interested(ir.CanUndoChanged{}))
	assert.True(t, Interested(ir.CanRedoChanged{}))
	assert.False(t, Interested(ir.SketchRefreshed{}))
}

// emptyHistoryBackend serves a fixed sketch and has nothing to undo.
type emptyHistoryBackend struct {
	sketch ir.Sketch
}

func (b emptyHistoryBackend) Handle(_ context.Context, cmd ir.Command, out channel.Publisher) error {
	switch cmd.(type) {
	case ir.RefreshSketch:
		out.Publish(ir.SketchRefreshed{Sketch: b.sketch}, ir.CanUndoChanged{Value: false}, ir.CanRedoChanged{Value: false})
		return nil
	case ir.Undo:
		return errors.New("nothing to undo")
	}
	return nil
}

func TestTracker_UndoWithoutHistoryLeavesReplicaAlone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := channel.NewSession(emptyHistoryBackend{sketch: testutil.Sketch([]string{"A", "B"}, testutil.Reg("A", "B"))},
		channel.WithIDGenerator(testutil.NewSequenceGenerator("")))
	errs, err := sess.Errors.Subscribe(ctx, nil)
	require.NoError(t, err)

	rep, err := replica.Connect(ctx, sess)
	require.NoError(t, err)
	tr, err := Connect(ctx, sess)
	require.NoError(t, err)

	go func() { _ = rep.Run(ctx) }()
	go func() { _ = tr.Run(ctx) }()
	go func() { _ = sess.Run(ctx) }()

	require.Eventually(t, func() bool { return rep.Current().Version == 1 }, 2*time.Second, 5*time.Millisecond)
	before := rep.Current()
	require.False(t, tr.State().CanUndo)

	tr.Undo()

	select {
	case n := <-errs:
		assert.Equal(t, ir.CommandUndo, n.Command)
		assert.Equal(t, "nothing to undo", n.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("undo was not rejected")
	}
	assert.Same(t, before, rep.Current())
	assert.Equal(t, State{}, tr.State())
}
