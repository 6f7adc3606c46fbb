// Package replica maintains the client's read model of the sketch.
//
// The Replica folds backend events into immutable Snapshots. Exactly one
// goroutine (Run) applies events; readers load the current snapshot through
// an atomic pointer and never observe a partially applied event.
//
// Each event kind has one pure reducer (see Reduce). The Policy decides per
// kind whether an event is a keyed patch, a whole-collection replacement, or
// an escalation to a refresh request, and which follow-up commands must be
// scheduled.
//
// Stale events, whose keys no longer exist in the snapshot, are no-ops that
// are logged and counted but never surfaced to the user.
package replica
