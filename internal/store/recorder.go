package store

import (
	"context"
	"log/slog"

	"github.com/roach88/sketchsync/internal/ir"
)

// Recorder journals a stream of events. Full-sketch events are also stored
// as snapshots, which replay uses as checkpoints.
type Recorder struct {
	store *Store
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

// Record journals one event.
func (r *Recorder) Record(ctx context.Context, ev ir.Event) error {
	seq, err := r.store.AppendEvent(ctx, ev)
	if err != nil {
		return err
	}
	switch e := ev.(type) {
	case ir.SketchRefreshed:
		return r.store.WriteSnapshot(ctx, seq, e.Sketch)
	case ir.SketchReplaced:
		return r.store.WriteSnapshot(ctx, seq, e.Sketch)
	}
	return nil
}

// Run journals events until ctx is cancelled or the channel closes.
// Write failures are logged and skipped.
func (r *Recorder) Run(ctx context.Context, events <-chan ir.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := r.Record(ctx, ev); err != nil {
				slog.Warn("failed to journal event",
					"event", ev.EventName(),
					"error", err,
				)
			}
		}
	}
}
