package replica

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/sketchsync/internal/channel"
	"github.com/roach88/sketchsync/internal/clock"
	"github.com/roach88/sketchsync/internal/ir"
)

// ErrNotConnected is returned by Run on a replica built with New instead of
// Connect.
var ErrNotConnected = errors.New("replica: not connected to a session")

// Replica is the single-writer local read model.
//
// Thread-safety model:
//   - Current(), Updates(): safe from any goroutine
//   - Run() / Apply(): must be called from exactly one goroutine
//
// Deferred follow-up commands fire on the injected clock's goroutine and
// only call Send, which is safe for concurrent use.
type Replica struct {
	sender   channel.Sender
	policy   Policy
	timers   clock.Clock
	metrics  *Metrics
	versions *Clock

	current atomic.Pointer[Snapshot]
	updates *channel.Stream[*Snapshot]
	events  <-chan ir.Event

	mu       sync.Mutex
	deferred map[ir.CommandName]*clock.Timer
}

// Option configures a Replica.
type Option func(*Replica)

// WithPolicy overrides DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(r *Replica) { r.policy = p }
}

// WithClock sets the clock used for deferred commands.
// Default: clock.Real().
func WithClock(c clock.Clock) Option {
	return func(r *Replica) { r.timers = c }
}

// WithMetrics instruments the replica.
func WithMetrics(m *Metrics) Option {
	return func(r *Replica) { r.metrics = m }
}

// New creates a detached replica holding an empty sketch at version 0.
// Events are fed with Apply; requests go to sender.
func New(sender channel.Sender, opts ...Option) *Replica {
	r := &Replica{
		sender:   sender,
		policy:   DefaultPolicy(),
		timers:   clock.Real(),
		versions: NewClock(),
		updates:  channel.NewStream[*Snapshot](),
		deferred: make(map[ir.CommandName]*clock.Timer),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(&Snapshot{Sketch: ir.NewSketch()})
	return r
}

// Connect creates a replica subscribed to the session's events for the
// lifetime of ctx and requests the initial full sketch. Start Run to begin
// applying events; nothing published after Connect returns is missed.
func Connect(ctx context.Context, sess *channel.Session, opts ...Option) (*Replica, error) {
	r := New(sess, opts...)
	events, err := sess.Events.Subscribe(ctx, Interested)
	if err != nil {
		return nil, err
	}
	r.events = events
	sess.Send(ir.RefreshSketch{})
	return r, nil
}

// Interested is the subscription filter for replica events.
func Interested(ev ir.Event) bool {
	return DefaultPolicy().Decide(ev).Strategy != StrategyIgnore
}

// Current returns the latest snapshot. The result is immutable.
func (r *Replica) Current() *Snapshot {
	return r.current.Load()
}

// Updates subscribes to every new snapshot for the lifetime of ctx.
func (r *Replica) Updates(ctx context.Context) (<-chan *Snapshot, error) {
	return r.updates.Subscribe(ctx, nil)
}

// Run applies events until ctx is cancelled or the event stream closes.
func (r *Replica) Run(ctx context.Context) error {
	if r.events == nil {
		return ErrNotConnected
	}
	slog.Info("replica starting")

	for {
		select {
		case <-ctx.Done():
			slog.Info("replica stopping: context cancelled")
			r.stopDeferred()
			return ctx.Err()
		case ev, ok := <-r.events:
			if !ok {
				slog.Info("replica stopping: event stream closed")
				r.stopDeferred()
				return nil
			}
			r.Apply(ev)
		}
	}
}

// Apply folds one event into the replica and returns the resulting
// snapshot, which is the previous one when the event changed nothing.
func (r *Replica) Apply(ev ir.Event) *Snapshot {
	cur := r.current.Load()
	name := ev.EventName()
	d := r.policy.Decide(ev)

	switch d.Strategy {
	case StrategyIgnore:
		r.metrics.observe(name, OutcomeIgnored)
		return cur
	case StrategyEscalate:
		slog.Debug("escalating to refresh", "event", name, "request", d.Request.CommandName())
		r.metrics.observe(name, OutcomeEscalated)
		r.sender.Send(d.Request)
		return cur
	}

	timer := r.metrics.reduceTimer(d.Strategy)
	next, err := Reduce(cur.Sketch, ev)
	timer.ObserveDuration()
	if err != nil {
		logReduceError(ev, err)
		if IsStale(err) {
			r.metrics.observe(name, OutcomeStale)
		} else {
			r.metrics.observe(name, OutcomeRejected)
		}
		return cur
	}

	snap := &Snapshot{Version: r.versions.Next(), Cause: name, Sketch: next}
	r.current.Store(snap)
	r.metrics.observe(name, OutcomeApplied)
	r.metrics.setVersion(snap.Version)
	r.updates.Publish(snap)

	if d.Deferred != nil {
		r.schedule(d.Deferred)
	}
	return snap
}

// schedule sends cmd after the policy delay. While a send of the same
// command is pending, further requests join it without moving its deadline,
// so a steady stream of triggers cannot hold the command back.
func (r *Replica) schedule(cmd ir.Command) {
	name := cmd.CommandName()

	r.mu.Lock()
	if _, ok := r.deferred[name]; ok {
		r.mu.Unlock()
		slog.Debug("deferred command already pending", "command", name)
		return
	}
	r.deferred[name] = nil
	r.mu.Unlock()

	t := r.timers.AfterFunc(r.policy.RefreshDelay, func() {
		r.mu.Lock()
		delete(r.deferred, name)
		r.mu.Unlock()

		slog.Debug("sending deferred command", "command", name)
		r.metrics.deferredSent(name)
		r.sender.Send(cmd)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	// The callback may already have run
	if _, ok := r.deferred[name]; ok {
		r.deferred[name] = t
	}
}

func (r *Replica) stopDeferred() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, t := range r.deferred {
		if t != nil {
			t.Stop()
		}
		delete(r.deferred, name)
	}
}

// logReduceError logs and continues. Stale references are expected under
// reordering and stay at debug level.
func logReduceError(ev ir.Event, err error) {
	attrs := []any{
		"event", ev.EventName(),
		"code", codeOf(err),
		"error", err,
	}
	if IsStale(err) {
		slog.Debug("stale event ignored", attrs...)
		return
	}
	slog.Warn("event rejected", attrs...)
}
