package testutil

import (
	"sync"

	"github.com/roach88/sketchsync/internal/ir"
)

// CommandRecorder is a Sender that keeps every command it receives.
type CommandRecorder struct {
	mu       sync.Mutex
	commands []ir.Command
}

// Send records cmd.
func (r *CommandRecorder) Send(cmd ir.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
}

// Commands returns a copy of the recorded commands.
func (r *CommandRecorder) Commands() []ir.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.Command(nil), r.commands...)
}

// Names returns the names of the recorded commands.
func (r *CommandRecorder) Names() []ir.CommandName {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]ir.CommandName, len(r.commands))
	for i, c := range r.commands {
		names[i] = c.CommandName()
	}
	return names
}

// EventRecorder is a Publisher that keeps every event it receives.
type EventRecorder struct {
	mu     sync.Mutex
	events []ir.Event
}

// Publish records events.
func (r *EventRecorder) Publish(events ...ir.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []ir.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ir.Event(nil), r.events...)
}

// Names returns the names of the recorded events.
func (r *EventRecorder) Names() []ir.EventName {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]ir.EventName, len(r.events))
	for i, e := range r.events {
		names[i] = e.EventName()
	}
	return names
}

// Reset forgets all recorded events.
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
