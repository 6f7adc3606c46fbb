package replica

import (
	"time"

	"github.com/roach88/sketchsync/internal/ir"
)

// DefaultRefreshDelay is how long the replica waits after a regulation
// removal before asking for the static properties again.
const DefaultRefreshDelay = 50 * time.Millisecond

// Strategy is how an event kind is reconciled.
type Strategy int

const (
	// StrategyPatch applies a keyed update to one entity.
	StrategyPatch Strategy = iota
	// StrategyReplace swaps a whole collection, the model, or the sketch.
	StrategyReplace
	// StrategyEscalate leaves the snapshot alone and requests a refresh.
	StrategyEscalate
	// StrategyIgnore drops events that do not concern the sketch.
	StrategyIgnore
)

func (s Strategy) String() string {
	switch s {
	case StrategyPatch:
		return "patch"
	case StrategyReplace:
		return "replace"
	case StrategyEscalate:
		return "escalate"
	case StrategyIgnore:
		return "ignore"
	}
	return "unknown"
}

// Decision is the policy's verdict for one event.
type Decision struct {
	Strategy Strategy

	// Request is sent immediately instead of reducing (escalation only).
	Request ir.Command

	// Deferred is sent RefreshDelay after the event was applied.
	// Repeated deferrals of the same command coalesce into one send.
	Deferred ir.Command
}

// Policy maps event kinds to reconciliation strategies.
type Policy struct {
	// RefreshDelay delays the static property refresh that follows a
	// regulation removal. Properties may depend on regulations in ways the
	// replica cannot see, so it re-reads them once the backend has settled.
	// Zero disables the follow-up.
	RefreshDelay time.Duration
}

// DefaultPolicy returns the policy used in production.
func DefaultPolicy() Policy {
	return Policy{RefreshDelay: DefaultRefreshDelay}
}

// Decide classifies ev.
func (p Policy) Decide(ev ir.Event) Decision {
	switch e := ev.(type) {
	case ir.VariableIDChanged:
		return renameDecision(e.Model)
	case ir.UninterpretedFnIDChanged:
		return renameDecision(e.Model)
	case ir.SketchRefreshed, ir.SketchReplaced, ir.ModelRefreshed,
		ir.VariablesRefreshed, ir.RegulationsRefreshed, ir.LayoutNodesRefreshed,
		ir.FunctionsRefreshed, ir.DatasetsRefreshed,
		ir.StaticPropertiesRefreshed, ir.DynamicPropertiesRefreshed:
		return Decision{Strategy: StrategyReplace}
	case ir.RegulationRemoved:
		d := Decision{Strategy: StrategyPatch}
		if p.RefreshDelay > 0 {
			d.Deferred = ir.RefreshStaticProperties{}
		}
		return d
	case ir.CanUndoChanged, ir.CanRedoChanged:
		return Decision{Strategy: StrategyIgnore}
	default:
		return Decision{Strategy: StrategyPatch}
	}
}

// renameDecision accepts a carried post-rename model, or escalates to a
// model refresh when the backend did not send one.
func renameDecision(model *ir.Model) Decision {
	if model == nil {
		return Decision{Strategy: StrategyEscalate, Request: ir.RefreshModel{}}
	}
	return Decision{Strategy: StrategyReplace}
}
