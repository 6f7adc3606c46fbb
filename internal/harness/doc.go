// Package harness plays scripted editing sessions against the reference
// backend and checks the replica, the undo tracker and the journal they
// leave behind.
//
// A scenario runs on one goroutine with a fake clock, sequential command
// ids and an in-memory journal, so the same scenario always produces the
// same trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	sketch: start.json            # optional, relative to this file
//	settings:                     # optional overrides of config defaults
//	  refresh_delay: 50ms
//	  event_limit: 16
//	steps:
//	  - command: addVariable      # raw command, args are its payload
//	    args: { variable: { id: A }, position: { x: 0, y: 0 } }
//	    expect:
//	      sent: [addVariable]
//	      events: [variableCreated, canUndoChanged]
//	  - intent: remove_variable   # editor gesture
//	    args: { id: A }
//	    confirm: false
//	    expect: { sent: [], unchanged: true }
//	  - event: variableRemoved    # delivered to the replica only
//	    args: { id: Ghost }
//	  - advance: 50ms             # fires deferred requests
//	assertions:
//	  - type: variables
//	    ids: [A]
//	  - type: journal
//	    table: events
//	    where: { name: variableCreated }
//	    count: 1
//
// # Step Kinds
//
// A step is exactly one of:
//   - command: a command name sent to the backend as is
//   - intent: an editor gesture (add_variable, remove_variable, undo, ...)
//   - event: an event applied to the replica and the tracker without the
//     backend, for stale or reordered delivery
//   - advance: a fake clock advance
//
// Every step is dispatched until no command is pending, follow-up requests
// included. Its expect clause then checks the commands sent, the events
// published, the rejection code and whether the replica changed. A rejection
// that the step does not expect fails the scenario.
//
// # Assertion Types
//
//   - trace_contains: a command or event with matching payload (subset)
//   - trace_order: names first appear in the given order
//   - trace_count: a name appears exactly count times
//   - variables, regulations: the replica's ids and "source -> target" pairs
//   - variable: fields of one variable, plus x and y of its node
//   - undo_state: the tracker's can_undo and can_redo
//   - converged: the replica equals the backend's sketch
//   - replays: folding the journaled events yields the replica's sketch
//   - journal: rows of a journal table (count, or one row with expect)
//
// # Golden Files
//
// RunWithGolden compares a compact snapshot of the run (trace lines,
// final ids, undo state and replica version) against
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
