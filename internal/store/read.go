package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/sketchsync/internal/ir"
)

// ErrDigestMismatch is returned when a journaled command no longer matches
// its recorded digest.
var ErrDigestMismatch = errors.New("command digest mismatch")

// CommandRecord is one journaled command.
type CommandRecord struct {
	Seq     int64
	ID      string
	Command ir.Command
	Digest  string
}

// EventRecord is one journaled event.
type EventRecord struct {
	Seq   int64
	Event ir.Event
}

// SnapshotRecord is one journaled full sketch.
type SnapshotRecord struct {
	Seq         int64
	EventSeq    int64
	Fingerprint string
	Sketch      ir.Sketch
}

// ReadCommands returns every journaled command ordered by seq.
// Returns empty slice (not nil) for an empty journal.
func (s *Store) ReadCommands(ctx context.Context) ([]CommandRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, name, payload, digest
		FROM commands
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	records := []CommandRecord{}
	for rows.Next() {
		var (
			rec     CommandRecord
			name    string
			payload string
		)
		if err := rows.Scan(&rec.Seq, &rec.ID, &name, &payload, &rec.Digest); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		rec.Command, err = ir.DecodeCommand(ir.Envelope{Name: name, Payload: json.RawMessage(payload)})
		if err != nil {
			return nil, fmt.Errorf("command seq=%d: %w", rec.Seq, err)
		}
		digest, err := ir.CommandDigest(rec.Command)
		if err != nil {
			return nil, fmt.Errorf("command seq=%d: %w", rec.Seq, err)
		}
		if digest != rec.Digest {
			return nil, fmt.Errorf("command seq=%d: %w", rec.Seq, ErrDigestMismatch)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return records, nil
}

// ReadEvents returns journaled events with seq greater than after, ordered
// by seq. Pass 0 to read the whole journal.
func (s *Store) ReadEvents(ctx context.Context, after int64) ([]EventRecord, error) {
	records := []EventRecord{}
	err := s.Replay(ctx, after, func(rec EventRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Replay streams journaled events with seq greater than after to fn in seq
// order. Iteration stops at the first error from fn. fn must not call back
// into the Store: the single connection is busy until Replay returns.
func (s *Store) Replay(ctx context.Context, after int64, fn func(EventRecord) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, name, payload
		FROM events
		WHERE seq > ?
		ORDER BY seq ASC
	`, after)
	if err != nil {
		return fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec     EventRecord
			name    string
			payload string
		)
		if err := rows.Scan(&rec.Seq, &name, &payload); err != nil {
			return fmt.Errorf("scan event: %w", err)
		}
		rec.Event, err = ir.DecodeEvent(ir.Envelope{Name: name, Payload: json.RawMessage(payload)})
		if err != nil {
			return fmt.Errorf("event seq=%d: %w", rec.Seq, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate events: %w", err)
	}
	return nil
}

// LastEventSeq returns the highest event seq, or 0 for an empty journal.
func (s *Store) LastEventSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last event seq: %w", err)
	}
	return seq.Int64, nil
}

// LatestSnapshot returns the newest readable snapshot. Snapshots whose blob
// fails to decode or no longer matches its fingerprint are skipped with a
// warning. Returns false when no readable snapshot exists.
func (s *Store) LatestSnapshot(ctx context.Context) (SnapshotRecord, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, event_seq, fingerprint, sketch
		FROM snapshots
		ORDER BY seq DESC
	`)
	if err != nil {
		return SnapshotRecord{}, false, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec  SnapshotRecord
			blob []byte
		)
		if err := rows.Scan(&rec.Seq, &rec.EventSeq, &rec.Fingerprint, &blob); err != nil {
			return SnapshotRecord{}, false, fmt.Errorf("scan snapshot: %w", err)
		}
		sk, err := decodeSketch(blob)
		if err != nil {
			slog.Warn("skipping unreadable snapshot", "seq", rec.Seq, "error", err)
			continue
		}
		fp, err := ir.Fingerprint(sk)
		if err != nil || fp != rec.Fingerprint {
			slog.Warn("skipping snapshot with mismatched fingerprint", "seq", rec.Seq)
			continue
		}
		rec.Sketch = sk
		return rec, true, nil
	}
	if err := rows.Err(); err != nil {
		return SnapshotRecord{}, false, fmt.Errorf("iterate snapshots: %w", err)
	}
	return SnapshotRecord{}, false, nil
}
