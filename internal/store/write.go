package store

import (
	"context"
	"fmt"

	"github.com/roach88/sketchsync/internal/ir"
)

// RecordCommand appends a command to the journal under its correlation id.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a command recorded twice
// keeps its first position.
//
// RecordCommand implements channel.CommandJournal.
func (s *Store) RecordCommand(ctx context.Context, id string, cmd ir.Command) error {
	env, err := ir.EncodeCommand(cmd)
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	payload, err := marshalPayload(env.Payload)
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	digest, err := ir.CommandDigest(cmd)
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO commands (id, name, payload, digest, wire_version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		id,
		env.Name,
		payload,
		digest,
		ir.WireVersion,
	)
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	return nil
}

// AppendEvent appends an event to the journal and returns its sequence
// number.
func (s *Store) AppendEvent(ctx context.Context, ev ir.Event) (int64, error) {
	env, err := ir.EncodeEvent(ev)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	payload, err := marshalPayload(env.Payload)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (name, payload) VALUES (?, ?)
	`, env.Name, payload)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	return seq, nil
}

// WriteSnapshot records the full sketch as of event eventSeq.
func (s *Store) WriteSnapshot(ctx context.Context, eventSeq int64, sk ir.Sketch) error {
	blob, err := encodeSketch(sk)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	fingerprint, err := ir.Fingerprint(sk)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (event_seq, fingerprint, sketch) VALUES (?, ?, ?)
	`, eventSeq, fingerprint, blob)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
