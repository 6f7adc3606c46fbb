package backend

import (
	"log/slog"

	"github.com/roach88/sketchsync/internal/ir"
)

// Default history limits.
const (
	DefaultEventLimit   = 1 << 16
	DefaultPayloadLimit = 1 << 28
)

// Entry pairs the commands that perform a change with the commands that
// reverse it.
type Entry struct {
	Perform []ir.Command
	Reverse []ir.Command

	size int
}

// History is a bounded undo/redo stack.
//
// The undo side holds fewer than eventLimit entries whose encoded payloads
// sum to less than payloadLimit; the oldest entries are dropped to make
// room. The redo side is not counted: entries only reach it from the undo
// side and it is cleared whenever a new entry is recorded.
//
// History is not safe for concurrent use; Backend serializes access.
type History struct {
	eventLimit   int
	payloadLimit int
	payloadSize  int

	undo []Entry
	redo []Entry
}

// NewHistory creates an empty history with the given limits.
func NewHistory(eventLimit, payloadLimit int) *History {
	return &History{eventLimit: eventLimit, payloadLimit: payloadLimit}
}

// Record pushes a new entry and clears the redo side. Returns false when the
// entry cannot be stored at all, either because the event limit is zero or
// because the entry alone exceeds the payload limit.
func (h *History) Record(e Entry) bool {
	h.redo = nil

	for len(h.undo) > 0 && len(h.undo) >= h.eventLimit {
		dropped := h.dropOldest()
		slog.Debug("history event limit reached, dropping entry", "command", firstName(dropped.Perform))
	}

	e.size = entrySize(e)
	for len(h.undo) > 0 && h.payloadSize+e.size >= h.payloadLimit {
		dropped := h.dropOldest()
		slog.Debug("history payload limit reached, dropping entry", "command", firstName(dropped.Perform))
	}

	if len(h.undo) >= h.eventLimit {
		slog.Debug("cannot record history entry, event limit is zero")
		return false
	}
	if h.payloadSize+e.size >= h.payloadLimit {
		slog.Debug("cannot record history entry, payload too large",
			"size", e.size,
			"limit", h.payloadLimit,
		)
		return false
	}

	h.undo = append(h.undo, e)
	h.payloadSize += e.size
	return true
}

// Undo moves the newest entry to the redo side and returns it.
func (h *History) Undo() (Entry, bool) {
	if len(h.undo) == 0 {
		return Entry{}, false
	}
	e := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.payloadSize -= e.size
	h.redo = append(h.redo, e)
	return e, true
}

// Redo moves the newest undone entry back to the undo side and returns it.
func (h *History) Redo() (Entry, bool) {
	if len(h.redo) == 0 {
		return Entry{}, false
	}
	e := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.payloadSize += e.size
	h.undo = append(h.undo, e)
	return e, true
}

// CanUndo reports whether Undo would return an entry.
func (h *History) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether Redo would return an entry.
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// UndoLen returns the number of entries that can be undone.
func (h *History) UndoLen() int { return len(h.undo) }

// RedoLen returns the number of entries that can be redone.
func (h *History) RedoLen() int { return len(h.redo) }

// PayloadSize returns the summed payload size of the undo side.
func (h *History) PayloadSize() int { return h.payloadSize }

// Clear drops every entry.
func (h *History) Clear() {
	h.undo, h.redo, h.payloadSize = nil, nil, 0
}

func (h *History) dropOldest() Entry {
	e := h.undo[0]
	h.undo[0] = Entry{}
	h.undo = h.undo[1:]
	h.payloadSize -= e.size
	return e
}

// entrySize is the encoded envelope length of every command in e.
func entrySize(e Entry) int {
	n := 0
	for _, cmds := range [][]ir.Command{e.Perform, e.Reverse} {
		for _, cmd := range cmds {
			n += commandSize(cmd)
		}
	}
	return n
}

func commandSize(cmd ir.Command) int {
	env, err := ir.EncodeCommand(cmd)
	if err != nil {
		return 0
	}
	data, err := ir.MarshalEnvelope(env)
	if err != nil {
		return 0
	}
	return len(data)
}

func firstName(cmds []ir.Command) ir.CommandName {
	if len(cmds) == 0 {
		return ""
	}
	return cmds[0].CommandName()
}
