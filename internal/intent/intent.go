// Package intent turns editor gestures into backend commands.
//
// Intents never touch the replica. Destructive gestures ask a Confirmer
// first; the wait suspends only the calling goroutine.
package intent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/sketchsync/internal/channel"
	"github.com/roach88/sketchsync/internal/ir"
)

// Intents maps user gestures onto commands.
type Intents struct {
	sender  channel.Sender
	confirm channel.Confirmer
	layout  string
}

// New creates Intents sending through sender. A nil confirmer approves every
// destructive action.
func New(sender channel.Sender, confirm channel.Confirmer) *Intents {
	return &Intents{sender: sender, confirm: confirm, layout: ir.DefaultLayoutID}
}

// AddVariable creates a variable at pos; the backend chooses the id.
func (i *Intents) AddVariable(pos ir.Position) {
	i.sender.Send(ir.AddVariable{Position: pos})
}

// RemoveVariable asks for confirmation, then removes the variable.
// Returns whether the command was sent.
func (i *Intents) RemoveVariable(ctx context.Context, id string) (bool, error) {
	ok, err := i.approve(ctx, fmt.Sprintf("Remove variable %s and all of its regulations?", id))
	if !ok || err != nil {
		return false, err
	}
	i.sender.Send(ir.RemoveVariable{ID: id})
	return true, nil
}

// AddRegulation creates source -> target with unknown essentiality and
// unspecified sign.
func (i *Intents) AddRegulation(source, target string) {
	i.sender.Send(ir.AddRegulation{Regulation: ir.Regulation{
		Source:       source,
		Target:       target,
		Essential:    ir.EssentialUnknown,
		Monotonicity: ir.MonotonicityUnspecified,
	}})
}

// RemoveRegulation asks for confirmation, then removes source -> target.
func (i *Intents) RemoveRegulation(ctx context.Context, source, target string) (bool, error) {
	key := ir.RegulationKey{Source: source, Target: target}
	ok, err := i.approve(ctx, fmt.Sprintf("Remove regulation %s?", key))
	if !ok || err != nil {
		return false, err
	}
	i.sender.Send(ir.RemoveRegulation{Source: source, Target: target})
	return true, nil
}

// ToggleEssentiality advances the regulation's essentiality to the next value.
func (i *Intents) ToggleEssentiality(r ir.Regulation) {
	i.sender.Send(ir.SetRegulationEssentiality{Source: r.Source, Target: r.Target, Essential: r.Essential.Next()})
}

// ToggleMonotonicity advances the regulation's sign to the next value.
func (i *Intents) ToggleMonotonicity(r ir.Regulation) {
	i.sender.Send(ir.SetRegulationSign{Source: r.Source, Target: r.Target, Monotonicity: r.Monotonicity.Next()})
}

// SetVariableData edits a variable's name and annotation.
func (i *Intents) SetVariableData(id, name, annotation string) {
	i.sender.Send(ir.SetVariableData{ID: id, Name: name, Annotation: annotation})
}

// SetUpdateFn edits a variable's update function.
func (i *Intents) SetUpdateFn(id, expression string) {
	i.sender.Send(ir.SetVariableUpdateFn{ID: id, Expression: expression})
}

// RenameVariable changes a variable's id. Unchanged ids are not sent.
func (i *Intents) RenameVariable(oldID, newID string) {
	if oldID == newID {
		return
	}
	i.sender.Send(ir.SetVariableID{OldID: oldID, NewID: newID})
}

// MoveNode records a node drag.
func (i *Intents) MoveNode(id string, pos ir.Position) {
	i.sender.Send(ir.ChangeNodePosition{Layout: i.layout, Variable: id, X: pos.X, Y: pos.Y})
}

// RefreshSketch asks the backend for the full sketch.
func (i *Intents) RefreshSketch() {
	i.sender.Send(ir.RefreshSketch{})
}

func (i *Intents) approve(ctx context.Context, prompt string) (bool, error) {
	if i.confirm == nil {
		return true, nil
	}
	ok, err := i.confirm.Confirm(ctx, prompt)
	if err != nil {
		return false, fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		slog.Debug("destructive intent declined", "prompt", prompt)
	}
	return ok, nil
}
