// Package ir provides the shared data model for sketchsync.
//
// It defines the Sketch (variables, regulations, uninterpreted functions,
// layout, datasets and properties), the closed unions of Commands sent to the
// backend and Events received from it, their wire envelopes, and the canonical
// JSON used to fingerprint sketches.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key constraints:
//   - Commands and Events are sealed interfaces; the set of kinds is closed
//     and enumerated by AllCommandNames and AllEventNames
//   - All JSON tags use snake_case
//   - Collections in a normalized Sketch are never nil
package ir
