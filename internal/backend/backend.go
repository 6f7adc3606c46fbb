// Package backend is an in-process authoritative sketch store.
//
// Backend implements channel.Backend: it validates each command against the
// current sketch, applies it, records a perform/reverse pair in a bounded
// History and publishes the granular events describing the change. It is the
// reference counterpart used by the scenario harness, the demo command and
// tests; a remote backend speaks the same commands and events.
package backend

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/sketchsync/internal/channel"
	"github.com/roach88/sketchsync/internal/ir"
)

// Validator checks a whole sketch before it replaces the current one.
type Validator interface {
	ValidateSketch(s ir.Sketch) error
}

// Backend owns the authoritative sketch.
//
// Thread-safety: Handle serializes commands via an internal mutex, so a
// Backend may be shared by several sessions.
type Backend struct {
	mu        sync.Mutex
	sketch    ir.Sketch
	history   *History
	validator Validator

	// Last availability published, so changes are announced once.
	canUndo bool
	canRedo bool
}

// Option configures a Backend.
type Option func(*Backend)

// WithHistoryLimits bounds the undo history.
// Default: DefaultEventLimit entries and DefaultPayloadLimit bytes.
func WithHistoryLimits(eventLimit, payloadLimit int) Option {
	return func(b *Backend) { b.history = NewHistory(eventLimit, payloadLimit) }
}

// WithValidator checks replacement sketches before they are accepted.
func WithValidator(v Validator) Option {
	return func(b *Backend) { b.validator = v }
}

// WithSketch sets the initial sketch. Default: an empty sketch.
func WithSketch(s ir.Sketch) Option {
	return func(b *Backend) { b.sketch = ir.Normalize(s) }
}

// New creates a backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		sketch:  ir.NewSketch(),
		history: NewHistory(DefaultEventLimit, DefaultPayloadLimit),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Sketch returns the authoritative sketch. The result must not be modified.
func (b *Backend) Sketch() ir.Sketch {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sketch
}

// HistoryLen returns the number of undoable and redoable entries.
func (b *Backend) HistoryLen() (undo, redo int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history.UndoLen(), b.history.RedoLen()
}

// Handle applies cmd and publishes the resulting events. A rejected command
// leaves the sketch unchanged and publishes nothing, except that an undo or
// redo that fails to replay clears the history and announces the lost
// availability.
func (b *Backend) Handle(ctx context.Context, cmd ir.Command, out channel.Publisher) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var events []ir.Event
	switch c := cmd.(type) {
	case ir.RefreshSketch:
		b.canUndo, b.canRedo = b.history.CanUndo(), b.history.CanRedo()
		events = []ir.Event{
			ir.SketchRefreshed{Sketch: b.sketch},
			ir.CanUndoChanged{Value: b.canUndo},
			ir.CanRedoChanged{Value: b.canRedo},
		}
	case ir.RefreshModel:
		events = []ir.Event{ir.ModelRefreshed{Model: b.sketch.Model}}
	case ir.RefreshStaticProperties:
		events = []ir.Event{ir.StaticPropertiesRefreshed{Properties: b.sketch.StaticProperties}}
	case ir.Undo:
		entry, ok := b.history.Undo()
		if !ok {
			return rejectf(c, ErrCodeNothingToUndo, "history is empty")
		}
		evs, err := b.replay(entry.Reverse)
		if err != nil {
			b.publishAvailability(out)
			return err
		}
		events = evs
	case ir.Redo:
		entry, ok := b.history.Redo()
		if !ok {
			return rejectf(c, ErrCodeNothingToRedo, "nothing has been undone")
		}
		evs, err := b.replay(entry.Perform)
		if err != nil {
			b.publishAvailability(out)
			return err
		}
		events = evs
	default:
		ch, err := apply(b.sketch, cmd, b.validator)
		if err != nil {
			return err
		}
		b.sketch = ch.sketch
		events = ch.events
		if !b.history.Record(Entry{Perform: ch.perform, Reverse: ch.reverse}) {
			slog.Warn("change applied but not recorded in history", "command", cmd.CommandName())
		}
	}

	events = append(events, b.availabilityChanges()...)
	out.Publish(events...)
	return nil
}

// replay applies a recorded command sequence atomically. History entries
// were valid when recorded, so a failure means the history no longer fits
// the sketch; it is cleared rather than left to fail again.
func (b *Backend) replay(cmds []ir.Command) ([]ir.Event, error) {
	s := b.sketch
	var events []ir.Event
	for _, cmd := range cmds {
		ch, err := apply(s, cmd, b.validator)
		if err != nil {
			slog.Error("history replay failed, clearing history",
				"command", cmd.CommandName(),
				"error", err,
			)
			b.history.Clear()
			return nil, err
		}
		s = ch.sketch
		events = append(events, ch.events...)
	}
	b.sketch = s
	return events, nil
}

func (b *Backend) publishAvailability(out channel.Publisher) {
	if events := b.availabilityChanges(); len(events) > 0 {
		out.Publish(events...)
	}
}

func (b *Backend) availabilityChanges() []ir.Event {
	var events []ir.Event
	if u := b.history.CanUndo(); u != b.canUndo {
		b.canUndo = u
		events = append(events, ir.CanUndoChanged{Value: u})
	}
	if r := b.history.CanRedo(); r != b.canRedo {
		b.canRedo = r
		events = append(events, ir.CanRedoChanged{Value: r})
	}
	return events
}
