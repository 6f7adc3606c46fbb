package ir

// CommandName is the wire name of a command kind.
type CommandName string

// Command names. The set is closed; AllCommandNames lists every member.
const (
	CommandAddVariable               CommandName = "addVariable"
	CommandRemoveVariable            CommandName = "removeVariable"
	CommandSetVariableData           CommandName = "setVariableData"
	CommandSetVariableUpdateFn       CommandName = "setVariableUpdateFn"
	CommandSetVariableID             CommandName = "setVariableId"
	CommandAddRegulation             CommandName = "addRegulation"
	CommandRemoveRegulation          CommandName = "removeRegulation"
	CommandSetRegulationEssentiality CommandName = "setRegulationEssentiality"
	CommandSetRegulationSign         CommandName = "setRegulationSign"
	CommandChangeNodePosition        CommandName = "changeNodePosition"
	CommandAddUninterpretedFn        CommandName = "addUninterpretedFn"
	CommandRemoveUninterpretedFn     CommandName = "removeUninterpretedFn"
	CommandSetUninterpretedFnID      CommandName = "setUninterpretedFnId"
	CommandSetDatasets               CommandName = "setDatasets"
	CommandSetStaticProperties       CommandName = "setStaticProperties"
	CommandSetDynamicProperties      CommandName = "setDynamicProperties"
	CommandRefreshSketch             CommandName = "refreshSketch"
	CommandRefreshModel              CommandName = "refreshModel"
	CommandRefreshStaticProperties   CommandName = "refreshStaticProperties"
	CommandReplaceSketch             CommandName = "replaceSketch"
	CommandUndo                      CommandName = "undo"
	CommandRedo                      CommandName = "redo"
)

// AllCommandNames returns every command kind in declaration order.
func AllCommandNames() []CommandName {
	return []CommandName{
		CommandAddVariable,
		CommandRemoveVariable,
		CommandSetVariableData,
		CommandSetVariableUpdateFn,
		CommandSetVariableID,
		CommandAddRegulation,
		CommandRemoveRegulation,
		CommandSetRegulationEssentiality,
		CommandSetRegulationSign,
		CommandChangeNodePosition,
		CommandAddUninterpretedFn,
		CommandRemoveUninterpretedFn,
		CommandSetUninterpretedFnID,
		CommandSetDatasets,
		CommandSetStaticProperties,
		CommandSetDynamicProperties,
		CommandRefreshSketch,
		CommandRefreshModel,
		CommandRefreshStaticProperties,
		CommandReplaceSketch,
		CommandUndo,
		CommandRedo,
	}
}

// Command is a request sent to the backend. Commands have no reply; their
// effect is observed as events, their failure on the error channel.
//
// Sealed: only types in this package implement it.
type Command interface {
	CommandName() CommandName
	sealedCommand()
}

// AddVariable creates a variable at a layout position. An empty Variable.ID
// lets the backend pick one; an empty Name defaults to the id.
type AddVariable struct {
	Variable Variable `json:"variable"`
	Position Position `json:"position"`
}

// RemoveVariable removes a variable, its layout node and incident regulations.
type RemoveVariable struct {
	ID string `json:"id"`
}

// SetVariableData sets a variable's name and annotation.
type SetVariableData struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Annotation string `json:"annotation"`
}

// SetVariableUpdateFn sets a variable's update function expression.
type SetVariableUpdateFn struct {
	ID         string `json:"id"`
	Expression string `json:"expression"`
}

// SetVariableID renames a variable.
type SetVariableID struct {
	OldID string `json:"old_id"`
	NewID string `json:"new_id"`
}

// AddRegulation creates the regulation Source -> Target.
type AddRegulation struct {
	Regulation Regulation `json:"regulation"`
}

// RemoveRegulation removes the regulation Source -> Target.
type RemoveRegulation struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// SetRegulationEssentiality sets a regulation's essentiality.
type SetRegulationEssentiality struct {
	Source    string       `json:"source"`
	Target    string       `json:"target"`
	Essential Essentiality `json:"essential"`
}

// SetRegulationSign sets a regulation's monotonicity.
type SetRegulationSign struct {
	Source       string       `json:"source"`
	Target       string       `json:"target"`
	Monotonicity Monotonicity `json:"monotonicity"`
}

// ChangeNodePosition moves a layout node.
type ChangeNodePosition struct {
	Layout   string  `json:"layout"`
	Variable string  `json:"variable"`
	X        float64 `json:"px"`
	Y        float64 `json:"py"`
}

// AddUninterpretedFn adds a function symbol.
type AddUninterpretedFn struct {
	Function UninterpretedFn `json:"function"`
}

// RemoveUninterpretedFn removes a function symbol.
type RemoveUninterpretedFn struct {
	ID string `json:"id"`
}

// SetUninterpretedFnID renames a function symbol.
type SetUninterpretedFnID struct {
	OldID string `json:"old_id"`
	NewID string `json:"new_id"`
}

// SetDatasets replaces the dataset collection.
type SetDatasets struct {
	Datasets []Dataset `json:"datasets"`
}

// SetStaticProperties replaces the static property collection.
type SetStaticProperties struct {
	Properties []Property `json:"properties"`
}

// SetDynamicProperties replaces the dynamic property collection.
type SetDynamicProperties struct {
	Properties []Property `json:"properties"`
}

// RefreshSketch asks for a SketchRefreshed event.
type RefreshSketch struct{}

// RefreshModel asks for a ModelRefreshed event.
type RefreshModel struct{}

// RefreshStaticProperties asks for a StaticPropertiesRefreshed event.
type RefreshStaticProperties struct{}

// ReplaceSketch replaces the whole sketch.
type ReplaceSketch struct {
	Sketch Sketch `json:"sketch"`
}

// Undo reverts the most recent recorded change.
type Undo struct{}

// Redo reapplies the most recently undone change.
type Redo struct{}

func (AddVariable) CommandName() CommandName               { return CommandAddVariable }
func (RemoveVariable) CommandName() CommandName            { return CommandRemoveVariable }
func (SetVariableData) CommandName() CommandName           { return CommandSetVariableData }
func (SetVariableUpdateFn) CommandName() CommandName       { return CommandSetVariableUpdateFn }
func (SetVariableID) CommandName() CommandName             { return CommandSetVariableID }
func (AddRegulation) CommandName() CommandName             { return CommandAddRegulation }
func (RemoveRegulation) CommandName() CommandName          { return CommandRemoveRegulation }
func (SetRegulationEssentiality) CommandName() CommandName { return CommandSetRegulationEssentiality }
func (SetRegulationSign) CommandName() CommandName         { return CommandSetRegulationSign }
func (ChangeNodePosition) CommandName() CommandName        { return CommandChangeNodePosition }
func (AddUninterpretedFn) CommandName() CommandName        { return CommandAddUninterpretedFn }
func (RemoveUninterpretedFn) CommandName() CommandName     { return CommandRemoveUninterpretedFn }
func (SetUninterpretedFnID) CommandName() CommandName      { return CommandSetUninterpretedFnID }
func (SetDatasets) CommandName() CommandName               { return CommandSetDatasets }
func (SetStaticProperties) CommandName() CommandName       { return CommandSetStaticProperties }
func (SetDynamicProperties) CommandName() CommandName      { return CommandSetDynamicProperties }
func (RefreshSketch) CommandName() CommandName             { return CommandRefreshSketch }
func (RefreshModel) CommandName() CommandName              { return CommandRefreshModel }
func (RefreshStaticProperties) CommandName() CommandName   { return CommandRefreshStaticProperties }
func (ReplaceSketch) CommandName() CommandName             { return CommandReplaceSketch }
func (Undo) CommandName() CommandName                      { return CommandUndo }
func (Redo) CommandName() CommandName                      { return CommandRedo }

func (AddVariable) sealedCommand()               {}
func (RemoveVariable) sealedCommand()            {}
func (SetVariableData) sealedCommand()           {}
func (SetVariableUpdateFn) sealedCommand()       {}
func (SetVariableID) sealedCommand()             {}
func (AddRegulation) sealedCommand()             {}
func (RemoveRegulation) sealedCommand()          {}
func (SetRegulationEssentiality) sealedCommand() {}
func (SetRegulationSign) sealedCommand()         {}
func (ChangeNodePosition) sealedCommand()        {}
func (AddUninterpretedFn) sealedCommand()        {}
func (RemoveUninterpretedFn) sealedCommand()     {}
func (SetUninterpretedFnID) sealedCommand()      {}
func (SetDatasets) sealedCommand()               {}
func (SetStaticProperties) sealedCommand()       {}
func (SetDynamicProperties) sealedCommand()      {}
func (RefreshSketch) sealedCommand()             {}
func (RefreshModel) sealedCommand()              {}
func (RefreshStaticProperties) sealedCommand()   {}
func (ReplaceSketch) sealedCommand()             {}
func (Undo) sealedCommand()                      {}
func (Redo) sealedCommand()                      {}

// newCommand returns a pointer to a zero command of the named kind, for decoding.
func newCommand(name CommandName) (any, bool) {
	switch name {
	case CommandAddVariable:
		return &AddVariable{}, true
	case CommandRemoveVariable:
		return &RemoveVariable{}, true
	case CommandSetVariableData:
		return &SetVariableData{}, true
	case CommandSetVariableUpdateFn:
		return &SetVariableUpdateFn{}, true
	case CommandSetVariableID:
		return &SetVariableID{}, true
	case CommandAddRegulation:
		return &AddRegulation{}, true
	case CommandRemoveRegulation:
		return &RemoveRegulation{}, true
	case CommandSetRegulationEssentiality:
		return &SetRegulationEssentiality{}, true
	case CommandSetRegulationSign:
		return &SetRegulationSign{}, true
	case CommandChangeNodePosition:
		return &ChangeNodePosition{}, true
	case CommandAddUninterpretedFn:
		return &AddUninterpretedFn{}, true
	case CommandRemoveUninterpretedFn:
		return &RemoveUninterpretedFn{}, true
	case CommandSetUninterpretedFnID:
		return &SetUninterpretedFnID{}, true
	case CommandSetDatasets:
		return &SetDatasets{}, true
	case CommandSetStaticProperties:
		return &SetStaticProperties{}, true
	case CommandSetDynamicProperties:
		return &SetDynamicProperties{}, true
	case CommandRefreshSketch:
		return &RefreshSketch{}, true
	case CommandRefreshModel:
		return &RefreshModel{}, true
	case CommandRefreshStaticProperties:
		return &RefreshStaticProperties{}, true
	case CommandReplaceSketch:
		return &ReplaceSketch{}, true
	case CommandUndo:
		return &Undo{}, true
	case CommandRedo:
		return &Redo{}, true
	}
	return nil, false
}
