package replica

import (
	"errors"
	"fmt"

	"github.com/roach88/sketchsync/internal/ir"
)

// ReduceError is returned by Reduce when an event cannot be folded into the
// snapshot. The snapshot is left untouched.
type ReduceError struct {
	// Code identifies the error category.
	Code ReduceErrorCode

	// Event is the kind of the rejected event.
	Event ir.EventName

	// Key identifies the entity the event referred to, if any.
	Key string

	// Message is a human-readable description.
	Message string
}

// ReduceErrorCode categorizes reduce errors.
type ReduceErrorCode string

const (
	// ErrCodeStaleReference indicates the event names an entity that no
	// longer exists, usually because a later event already removed it.
	ErrCodeStaleReference ReduceErrorCode = "STALE_REFERENCE"

	// ErrCodeRefreshRequired indicates a rename event without the post-rename
	// model; only a refresh can reconcile it.
	ErrCodeRefreshRequired ReduceErrorCode = "REFRESH_REQUIRED"

	// ErrCodeMalformedPayload indicates a payload that violates the model,
	// such as an empty id or an unknown enum value.
	ErrCodeMalformedPayload ReduceErrorCode = "MALFORMED_PAYLOAD"

	// ErrCodeUnknownEvent indicates an event kind with no reducer.
	ErrCodeUnknownEvent ReduceErrorCode = "UNKNOWN_EVENT"
)

// Error implements the error interface.
func (e *ReduceError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s: %s (key=%s)", e.Code, e.Event, e.Message, e.Key)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Event, e.Message)
}

func stale(ev ir.Event, key, msg string) error {
	return &ReduceError{Code: ErrCodeStaleReference, Event: ev.EventName(), Key: key, Message: msg}
}

func malformed(ev ir.Event, key, msg string) error {
	return &ReduceError{Code: ErrCodeMalformedPayload, Event: ev.EventName(), Key: key, Message: msg}
}

// IsStale reports whether err is a stale reference.
// Uses errors.As to handle wrapped errors.
func IsStale(err error) bool {
	return hasCode(err, ErrCodeStaleReference)
}

// IsRefreshRequired reports whether err asks for a model refresh.
func IsRefreshRequired(err error) bool {
	return hasCode(err, ErrCodeRefreshRequired)
}

// IsMalformed reports whether err is a malformed payload.
func IsMalformed(err error) bool {
	return hasCode(err, ErrCodeMalformedPayload)
}

func hasCode(err error, code ReduceErrorCode) bool {
	var re *ReduceError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// codeOf returns the error code, or "" for foreign errors.
func codeOf(err error) ReduceErrorCode {
	var re *ReduceError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
