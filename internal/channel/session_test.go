package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sketchsync/internal/ir"
	"github.com/roach88/sketchsync/internal/testutil"
)

// echoBackend answers removeVariable with variableRemoved and rejects
// everything else.
type echoBackend struct {
	mu   sync.Mutex
	seen []ir.CommandName
}

func (b *echoBackend) Handle(_ context.Context, cmd ir.Command, out Publisher) error {
	b.mu.Lock()
	b.seen = append(b.seen, cmd.CommandName())
	b.mu.Unlock()

	if c, ok := cmd.(ir.RemoveVariable); ok {
		out.Publish(ir.VariableRemoved{ID: c.ID})
		return nil
	}
	return errors.New("not supported")
}

type journalStub struct {
	mu  sync.Mutex
	ids []string
}

func (j *journalStub) RecordCommand(_ context.Context, id string, _ ir.Command) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ids = append(j.ids, id)
	return nil
}

func TestSession_CommandsProduceEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := &echoBackend{}
	journal := &journalStub{}
	sess := NewSession(backend,
		WithIDGenerator(testutil.NewFixedGenerator("c1", "c2")),
		WithJournal(journal),
	)
	events, err := sess.Events.Subscribe(ctx, nil)
	require.NoError(t, err)
	go func() { _ = sess.Run(ctx) }()

	sess.Send(ir.RemoveVariable{ID: "A"})
	sess.Send(ir.RemoveVariable{ID: "B"})

	got := receive(t, events, 2)
	assert.Equal(t, []ir.Event{ir.VariableRemoved{ID: "A"}, ir.VariableRemoved{ID: "B"}}, got)

	journal.mu.Lock()
	defer journal.mu.Unlock()
	assert.Equal(t, []string{"c1", "c2"}, journal.ids)
}

func TestSession_FailuresGoToErrorStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := NewSession(&echoBackend{}, WithIDGenerator(testutil.NewFixedGenerator("c1")))
	notices, err := sess.Errors.Subscribe(ctx, nil)
	require.NoError(t, err)
	go func() { _ = sess.Run(ctx) }()

	sess.Send(ir.Undo{})

	got := receive(t, notices, 1)
	assert.Equal(t, ErrorNotice{CommandID: "c1", Command: ir.CommandUndo, Message: "not supported"}, got[0])
}

func TestSession_SerialDispatchInSendOrder(t *testing.T) {
	backend := &echoBackend{}
	sess := NewSession(backend, WithIDGenerator(testutil.NewSequenceGenerator("")))

	// Queue before Run starts; nothing is lost
	sess.Send(ir.RemoveVariable{ID: "A"})
	sess.Send(ir.Undo{})
	sess.Send(ir.Redo{})
	assert.Equal(t, 3, sess.Pending())

	sess.Close()
	require.NoError(t, sess.Run(context.Background()))

	assert.Equal(t, []ir.CommandName{ir.CommandRemoveVariable, ir.CommandUndo, ir.CommandRedo}, backend.seen)
	assert.Equal(t, 0, sess.Pending())
}

func TestSession_SendAfterCloseIsDropped(t *testing.T) {
	backend := &echoBackend{}
	sess := NewSession(backend, WithIDGenerator(testutil.NewSequenceGenerator("")))
	sess.Close()

	sess.Send(ir.Undo{})

	require.NoError(t, sess.Run(context.Background()))
	assert.Empty(t, backend.seen)
}

func TestSession_RunTwice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := NewSession(&echoBackend{})
	go func() { _ = sess.Run(ctx) }()

	require.Eventually(t, sess.running.Load, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, sess.Run(ctx), ErrSessionRunning)
}

type notifierStub struct {
	mu       sync.Mutex
	messages []string
}

func (n *notifierStub) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *notifierStub) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func TestPresentErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := NewSession(&echoBackend{})
	n := &notifierStub{}
	done := make(chan error, 1)
	go func() { done <- PresentErrors(ctx, sess, n) }()

	require.Eventually(t, func() bool { return sess.Errors.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	sess.Errors.Publish(ErrorNotice{Message: "duplicate id"})

	require.Eventually(t, func() bool { return n.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
