// Package undo tracks whether the backend can undo or redo.
//
// The tracker holds two booleans fed by canUndoChanged and canRedoChanged
// events. It never inspects the sketch and never guards commands: Undo and
// Redo are always sent, and the backend rejects the ones it cannot honour.
package undo

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/sketchsync/internal/channel"
	"github.com/roach88/sketchsync/internal/ir"
)

// ErrNotConnected is returned by Run on a tracker built with New.
var ErrNotConnected = errors.New("undo: not connected to a session")

// State is a point-in-time view of undo/redo availability.
type State struct {
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
}

// Tracker mirrors the backend's undo/redo availability.
//
// Thread-safety model:
//   - State(), Undo(), Redo(), Updates(): safe from any goroutine
//   - Run() / Observe(): must be called from exactly one goroutine
type Tracker struct {
	sender  channel.Sender
	metrics *Metrics

	canUndo atomic.Bool
	canRedo atomic.Bool

	events  <-chan ir.Event
	updates *channel.Stream[State]
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMetrics instruments the tracker.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// New creates a detached tracker with both actions unavailable.
func New(sender channel.Sender, opts ...Option) *Tracker {
	t := &Tracker{
		sender:  sender,
		updates: channel.NewStream[State](),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.metrics.setAvailable("undo", false)
	t.metrics.setAvailable("redo", false)
	return t
}

// Connect creates a tracker subscribed to the session's availability events
// for the lifetime of ctx.
func Connect(ctx context.Context, sess *channel.Session, opts ...Option) (*Tracker, error) {
	t := New(sess, opts...)
	events, err := sess.Events.Subscribe(ctx, Interested)
	if err != nil {
		return nil, err
	}
	t.events = events
	return t, nil
}

// Interested is the subscription filter for availability events.
func Interested(ev ir.Event) bool {
	switch ev.(type) {
	case ir.CanUndoChanged, ir.CanRedoChanged:
		return true
	}
	return false
}

// State returns the current availability.
func (t *Tracker) State() State {
	return State{CanUndo: t.canUndo.Load(), CanRedo: t.canRedo.Load()}
}

// Updates subscribes to availability changes for the lifetime of ctx.
func (t *Tracker) Updates(ctx context.Context) (<-chan State, error) {
	return t.updates.Subscribe(ctx, nil)
}

// Undo sends an undo request. It is sent even when State reports that
// nothing can be undone.
func (t *Tracker) Undo() {
	t.metrics.requested(ir.CommandUndo)
	t.sender.Send(ir.Undo{})
}

// Redo sends a redo request.
func (t *Tracker) Redo() {
	t.metrics.requested(ir.CommandRedo)
	t.sender.Send(ir.Redo{})
}

// Observe folds one event into the tracker and reports whether the
// availability changed. Other events are ignored.
func (t *Tracker) Observe(ev ir.Event) bool {
	var changed bool
	switch e := ev.(type) {
	case ir.CanUndoChanged:
		changed = t.canUndo.Swap(e.Value) != e.Value
		t.metrics.setAvailable("undo", e.Value)
	case ir.CanRedoChanged:
		changed = t.canRedo.Swap(e.Value) != e.Value
		t.metrics.setAvailable("redo", e.Value)
	default:
		return false
	}
	if changed {
		st := t.State()
		slog.Debug("undo availability changed", "can_undo", st.CanUndo, "can_redo", st.CanRedo)
		t.updates.Publish(st)
	}
	return changed
}

// Run observes events until ctx is cancelled or the event stream closes.
func (t *Tracker) Run(ctx context.Context) error {
	if t.events == nil {
		return ErrNotConnected
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-t.events:
			if !ok {
				return nil
			}
			t.Observe(ev)
		}
	}
}
