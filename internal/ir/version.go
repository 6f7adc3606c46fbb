package ir

// Version constants for the wire format and the module.
const (
	// WireVersion is the command/event envelope format version.
	WireVersion = "1"

	// Version is the sketchsync release.
	Version = "0.1.0"
)
