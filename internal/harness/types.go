package harness

import (
	"fmt"

	"github.com/roach88/sketchsync/internal/ir"
	"github.com/roach88/sketchsync/internal/undo"
)

// Trace entry types.
const (
	TypeCommand  = "command"  // command dispatched to the backend
	TypeEvent    = "event"    // event published by the backend
	TypeError    = "error"    // command rejected by the backend
	TypeInjected = "injected" // event delivered by the scenario itself
)

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	Seq     int64          `json:"seq"`
	Type    string         `json:"type"`
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload,omitempty"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Line renders the entry for golden snapshots: "type name" or
// "error name CODE".
func (e TraceEvent) Line() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s %s", e.Type, e.Name, e.Code)
	}
	return e.Type + " " + e.Name
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds commands, events and errors in dispatch order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Sketch is the replica's final sketch.
	Sketch ir.Sketch `json:"sketch"`

	// Version is the replica's final snapshot version.
	Version int64 `json:"version"`

	// Undo is the tracker's final availability.
	Undo undo.State `json:"undo"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addTrace(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}
