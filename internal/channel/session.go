package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/sketchsync/internal/ir"
)

// Sender accepts commands for the backend. Send never blocks and has no
// return value: success is observed as events, failure as an ErrorNotice.
type Sender interface {
	Send(cmd ir.Command)
}

// Publisher receives events emitted by a backend while it handles a command.
type Publisher interface {
	Publish(events ...ir.Event)
}

// Backend is the authoritative side of the connection. Handle is called
// serially, one command at a time, in send order. A returned error is
// reported on the session's Errors stream; events already published stay
// published.
type Backend interface {
	Handle(ctx context.Context, cmd ir.Command, out Publisher) error
}

// CommandJournal records outgoing commands before they are dispatched.
type CommandJournal interface {
	RecordCommand(ctx context.Context, id string, cmd ir.Command) error
}

// ErrorNotice is a command failure reported by the backend.
type ErrorNotice struct {
	CommandID string         `json:"command_id"`
	Command   ir.CommandName `json:"command"`
	Message   string         `json:"message"`
}

// ErrSessionRunning is returned when Run is called twice concurrently.
var ErrSessionRunning = errors.New("channel: session already running")

type outgoing struct {
	id  string
	cmd ir.Command
}

// Session is the process-scoped backend connection. Create it once at
// startup, inject it into every component, and start Run in its own
// goroutine.
type Session struct {
	// Events carries backend change notifications.
	Events *Stream[ir.Event]
	// Errors carries command failures.
	Errors *Stream[ErrorNotice]

	backend  Backend
	ids      IDGenerator
	journal  CommandJournal
	commands *queue[outgoing]
	running  atomic.Bool
}

// Option configures a Session.
type Option func(*Session)

// WithIDGenerator sets the correlation id generator.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Session) { s.ids = g }
}

// WithJournal records every dispatched command.
func WithJournal(j CommandJournal) Option {
	return func(s *Session) { s.journal = j }
}

// NewSession creates a session bound to backend.
func NewSession(backend Backend, opts ...Option) *Session {
	s := &Session{
		Events:   NewStream[ir.Event](),
		Errors:   NewStream[ErrorNotice](),
		backend:  backend,
		ids:      UUIDv7Generator{},
		commands: newQueue[outgoing](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send queues cmd for the backend.
func (s *Session) Send(cmd ir.Command) {
	id := s.ids.Generate()
	if !s.commands.Enqueue(outgoing{id: id, cmd: cmd}) {
		slog.Warn("command dropped, session closed",
			"command", cmd.CommandName(),
			"id", id,
		)
		return
	}
	slog.Debug("command queued", "command", cmd.CommandName(), "id", id)
}

// Pending returns the number of commands not yet dispatched.
func (s *Session) Pending() int {
	return s.commands.Len()
}

// Run dispatches queued commands to the backend until ctx is cancelled or
// the session is closed and drained.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSessionRunning
	}
	defer s.running.Store(false)

	for {
		if out, ok := s.commands.TryDequeue(); ok {
			s.dispatch(ctx, out)
			continue
		}
		if s.commands.Drained() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.commands.Wait():
		}
	}
}

func (s *Session) dispatch(ctx context.Context, out outgoing) {
	name := out.cmd.CommandName()

	if s.journal != nil {
		if err := s.journal.RecordCommand(ctx, out.id, out.cmd); err != nil {
			// Log and continue: the journal is diagnostic only
			slog.Warn("failed to journal command",
				"command", name,
				"id", out.id,
				"error", err,
			)
		}
	}

	if err := s.backend.Handle(ctx, out.cmd, s.Events); err != nil {
		slog.Debug("command rejected",
			"command", name,
			"id", out.id,
			"error", err,
		)
		s.Errors.Publish(ErrorNotice{CommandID: out.id, Command: name, Message: err.Error()})
	}
}

// Close stops accepting commands. Run returns once the queue is drained.
func (s *Session) Close() {
	s.commands.Close()
}

// Shutdown closes the session and both streams.
func (s *Session) Shutdown() {
	s.Close()
	s.Events.Shutdown()
	s.Errors.Shutdown()
}
