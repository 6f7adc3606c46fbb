package backend

import (
	"errors"
	"fmt"

	"github.com/roach88/sketchsync/internal/ir"
)

// CommandError is a rejected command. The backend state is unchanged when a
// command fails.
type CommandError struct {
	// Code identifies the error category.
	Code CommandErrorCode

	// Command is the rejected command's name.
	Command ir.CommandName

	// Message is a human-readable description.
	Message string
}

// CommandErrorCode categorizes command failures.
type CommandErrorCode string

const (
	// ErrCodeDuplicateID indicates an id or regulation key already in use.
	ErrCodeDuplicateID CommandErrorCode = "DUPLICATE_ID"

	// ErrCodeNotFound indicates a referenced entity does not exist.
	ErrCodeNotFound CommandErrorCode = "NOT_FOUND"

	// ErrCodeInvalidArgument indicates a malformed or disallowed argument.
	ErrCodeInvalidArgument CommandErrorCode = "INVALID_ARGUMENT"

	// ErrCodeNothingToUndo indicates an undo with an empty history.
	ErrCodeNothingToUndo CommandErrorCode = "NOTHING_TO_UNDO"

	// ErrCodeNothingToRedo indicates a redo with nothing undone.
	ErrCodeNothingToRedo CommandErrorCode = "NOTHING_TO_REDO"
)

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Command, e.Code, e.Message)
}

func rejectf(cmd ir.Command, code CommandErrorCode, format string, args ...any) error {
	return &CommandError{Code: code, Command: cmd.CommandName(), Message: fmt.Sprintf(format, args...)}
}

// IsNotFound returns true if err is a NOT_FOUND command error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsDuplicate returns true if err is a DUPLICATE_ID command error.
func IsDuplicate(err error) bool {
	return hasCode(err, ErrCodeDuplicateID)
}

// IsInvalidArgument returns true if err is an INVALID_ARGUMENT command error.
func IsInvalidArgument(err error) bool {
	return hasCode(err, ErrCodeInvalidArgument)
}

// CodeOf returns the command error code of err, or "" if err is not a
// CommandError.
func CodeOf(err error) CommandErrorCode {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func hasCode(err error, code CommandErrorCode) bool {
	return CodeOf(err) == code
}
