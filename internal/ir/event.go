package ir

// EventName is the wire name of an event kind.
type EventName string

// Event names. The set is closed; AllEventNames lists every member.
const (
	EventVariableCreated               EventName = "variableCreated"
	EventVariableRemoved               EventName = "variableRemoved"
	EventVariableDataChanged           EventName = "variableDataChanged"
	EventVariableUpdateFnChanged       EventName = "variableUpdateFnChanged"
	EventVariableIDChanged             EventName = "variableIdChanged"
	EventRegulationCreated             EventName = "regulationCreated"
	EventRegulationRemoved             EventName = "regulationRemoved"
	EventRegulationEssentialityChanged EventName = "regulationEssentialityChanged"
	EventRegulationSignChanged         EventName = "regulationSignChanged"
	EventNodePositionChanged           EventName = "nodePositionChanged"
	EventUninterpretedFnIDChanged      EventName = "uninterpretedFnIdChanged"
	EventSketchRefreshed               EventName = "sketchRefreshed"
	EventSketchReplaced                EventName = "sketchReplaced"
	EventModelRefreshed                EventName = "modelRefreshed"
	EventVariablesRefreshed            EventName = "variablesRefreshed"
	EventRegulationsRefreshed          EventName = "regulationsRefreshed"
	EventLayoutNodesRefreshed          EventName = "layoutNodesRefreshed"
	EventFunctionsRefreshed            EventName = "functionsRefreshed"
	EventDatasetsRefreshed             EventName = "datasetsRefreshed"
	EventStaticPropertiesRefreshed     EventName = "staticPropertiesRefreshed"
	EventDynamicPropertiesRefreshed    EventName = "dynamicPropertiesRefreshed"
	EventCanUndoChanged                EventName = "canUndoChanged"
	EventCanRedoChanged                EventName = "canRedoChanged"
)

// AllEventNames returns every event kind in declaration order.
func AllEventNames() []EventName {
	return []EventName{
		EventVariableCreated,
		EventVariableRemoved,
		EventVariableDataChanged,
		EventVariableUpdateFnChanged,
		EventVariableIDChanged,
		EventRegulationCreated,
		EventRegulationRemoved,
		EventRegulationEssentialityChanged,
		EventRegulationSignChanged,
		EventNodePositionChanged,
		EventUninterpretedFnIDChanged,
		EventSketchRefreshed,
		EventSketchReplaced,
		EventModelRefreshed,
		EventVariablesRefreshed,
		EventRegulationsRefreshed,
		EventLayoutNodesRefreshed,
		EventFunctionsRefreshed,
		EventDatasetsRefreshed,
		EventStaticPropertiesRefreshed,
		EventDynamicPropertiesRefreshed,
		EventCanUndoChanged,
		EventCanRedoChanged,
	}
}

// Event is a change notification emitted by the backend.
//
// Sealed: only types in this package implement it.
type Event interface {
	EventName() EventName
	sealedEvent()
}

// VariableCreated announces a new variable together with its layout node.
type VariableCreated struct {
	Variable Variable `json:"variable"`
	Position Position `json:"position"`
}

// VariableRemoved announces removal of a variable and its layout node.
// Incident regulations are removed by preceding RegulationRemoved events.
type VariableRemoved struct {
	ID string `json:"id"`
}

// VariableDataChanged patches a variable's name and annotation.
type VariableDataChanged struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Annotation string `json:"annotation"`
}

// VariableUpdateFnChanged patches a variable's update function.
type VariableUpdateFnChanged struct {
	ID       string `json:"id"`
	UpdateFn string `json:"update_fn"`
}

// VariableIDChanged announces a rename. The rename cascades through
// regulations, layout and update functions, so Model carries the whole
// post-rename model when the backend supplies it.
type VariableIDChanged struct {
	OldID string `json:"old_id"`
	NewID string `json:"new_id"`
	Model *Model `json:"model,omitempty"`
}

// RegulationCreated announces a new regulation.
type RegulationCreated struct {
	Regulation Regulation `json:"regulation"`
}

// RegulationRemoved announces removal of the regulation Source -> Target.
type RegulationRemoved struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// RegulationEssentialityChanged patches a regulation's essentiality.
type RegulationEssentialityChanged struct {
	Source    string       `json:"source"`
	Target    string       `json:"target"`
	Essential Essentiality `json:"essential"`
}

// RegulationSignChanged patches a regulation's monotonicity.
type RegulationSignChanged struct {
	Source       string       `json:"source"`
	Target       string       `json:"target"`
	Monotonicity Monotonicity `json:"monotonicity"`
}

// NodePositionChanged moves one layout node.
type NodePositionChanged struct {
	Layout   string  `json:"layout"`
	Variable string  `json:"variable"`
	X        float64 `json:"px"`
	Y        float64 `json:"py"`
}

// UninterpretedFnIDChanged announces a function rename; see VariableIDChanged.
type UninterpretedFnIDChanged struct {
	OldID string `json:"old_id"`
	NewID string `json:"new_id"`
	Model *Model `json:"model,omitempty"`
}

// SketchRefreshed carries the full authoritative sketch on request.
type SketchRefreshed struct {
	Sketch Sketch `json:"sketch"`
}

// SketchReplaced carries a full sketch after an import or replacement.
type SketchReplaced struct {
	Sketch Sketch `json:"sketch"`
}

// ModelRefreshed carries the full model part.
type ModelRefreshed struct {
	Model Model `json:"model"`
}

// VariablesRefreshed replaces the variable collection.
type VariablesRefreshed struct {
	Variables []Variable `json:"variables"`
}

// RegulationsRefreshed replaces the regulation collection.
type RegulationsRefreshed struct {
	Regulations []Regulation `json:"regulations"`
}

// LayoutNodesRefreshed replaces the layout.
type LayoutNodesRefreshed struct {
	Layout Layout `json:"layout"`
}

// FunctionsRefreshed replaces the uninterpreted function collection.
type FunctionsRefreshed struct {
	Functions []UninterpretedFn `json:"uninterpreted_fns"`
}

// DatasetsRefreshed replaces the dataset collection.
type DatasetsRefreshed struct {
	Datasets []Dataset `json:"datasets"`
}

// StaticPropertiesRefreshed replaces the static property collection.
type StaticPropertiesRefreshed struct {
	Properties []Property `json:"properties"`
}

// DynamicPropertiesRefreshed replaces the dynamic property collection.
type DynamicPropertiesRefreshed struct {
	Properties []Property `json:"properties"`
}

// CanUndoChanged reports whether the backend history can be undone.
type CanUndoChanged struct {
	Value bool `json:"value"`
}

// CanRedoChanged reports whether the backend history can be redone.
type CanRedoChanged struct {
	Value bool `json:"value"`
}

func (VariableCreated) EventName() EventName               { return EventVariableCreated }
func (VariableRemoved) EventName() EventName               { return EventVariableRemoved }
func (VariableDataChanged) EventName() EventName           { return EventVariableDataChanged }
func (VariableUpdateFnChanged) EventName() EventName       { return EventVariableUpdateFnChanged }
func (VariableIDChanged) EventName() EventName             { return EventVariableIDChanged }
func (RegulationCreated) EventName() EventName             { return EventRegulationCreated }
func (RegulationRemoved) EventName() EventName             { return EventRegulationRemoved }
func (RegulationEssentialityChanged) EventName() EventName { return EventRegulationEssentialityChanged }
func (RegulationSignChanged) EventName() EventName         { return EventRegulationSignChanged }
func (NodePositionChanged) EventName() EventName           { return EventNodePositionChanged }
func (UninterpretedFnIDChanged) EventName() EventName      { return EventUninterpretedFnIDChanged }
func (SketchRefreshed) EventName() EventName               { return EventSketchRefreshed }
func (SketchReplaced) EventName() EventName                { return EventSketchReplaced }
func (ModelRefreshed) EventName() EventName                { return EventModelRefreshed }
func (VariablesRefreshed) EventName() EventName            { return EventVariablesRefreshed }
func (RegulationsRefreshed) EventName() EventName          { return EventRegulationsRefreshed }
func (LayoutNodesRefreshed) EventName() EventName          { return EventLayoutNodesRefreshed }
func (FunctionsRefreshed) EventName() EventName            { return EventFunctionsRefreshed }
func (DatasetsRefreshed) EventName() EventName             { return EventDatasetsRefreshed }
func (StaticPropertiesRefreshed) EventName() EventName     { return EventStaticPropertiesRefreshed }
func (DynamicPropertiesRefreshed) EventName() EventName    { return EventDynamicPropertiesRefreshed }
func (CanUndoChanged) EventName() EventName                { return EventCanUndoChanged }
func (CanRedoChanged) EventName() EventName                { return EventCanRedoChanged }

func (VariableCreated) sealedEvent()               {}
func (VariableRemoved) sealedEvent()               {}
func (VariableDataChanged) sealedEvent()           {}
func (VariableUpdateFnChanged) sealedEvent()       {}
func (VariableIDChanged) sealedEvent()             {}
func (RegulationCreated) sealedEvent()             {}
func (RegulationRemoved) sealedEvent()             {}
func (RegulationEssentialityChanged) sealedEvent() {}
func (RegulationSignChanged) sealedEvent()         {}
func (NodePositionChanged) sealedEvent()           {}
func (UninterpretedFnIDChanged) sealedEvent()      {}
func (SketchRefreshed) sealedEvent()               {}
func (SketchReplaced) sealedEvent()                {}
func (ModelRefreshed) sealedEvent()                {}
func (VariablesRefreshed) sealedEvent()            {}
func (RegulationsRefreshed) sealedEvent()          {}
func (LayoutNodesRefreshed) sealedEvent()          {}
func (FunctionsRefreshed) sealedEvent()            {}
func (DatasetsRefreshed) sealedEvent()             {}
func (StaticPropertiesRefreshed) sealedEvent()     {}
func (DynamicPropertiesRefreshed) sealedEvent()    {}
func (CanUndoChanged) sealedEvent()                {}
func (CanRedoChanged) sealedEvent()                {}

// newEvent returns a pointer to a zero event of the named kind, for decoding.
func newEvent(name EventName) (any, bool) {
	switch name {
	case EventVariableCreated:
		return &VariableCreated{}, true
	case EventVariableRemoved:
		return &VariableRemoved{}, true
	case EventVariableDataChanged:
		return &VariableDataChanged{}, true
	case EventVariableUpdateFnChanged:
		return &VariableUpdateFnChanged{}, true
	case EventVariableIDChanged:
		return &VariableIDChanged{}, true
	case EventRegulationCreated:
		return &RegulationCreated{}, true
	case EventRegulationRemoved:
		return &RegulationRemoved{}, true
	case EventRegulationEssentialityChanged:
		return &RegulationEssentialityChanged{}, true
	case EventRegulationSignChanged:
		return &RegulationSignChanged{}, true
	case EventNodePositionChanged:
		return &NodePositionChanged{}, true
	case EventUninterpretedFnIDChanged:
		return &UninterpretedFnIDChanged{}, true
	case EventSketchRefreshed:
		return &SketchRefreshed{}, true
	case EventSketchReplaced:
		return &SketchReplaced{}, true
	case EventModelRefreshed:
		return &ModelRefreshed{}, true
	case EventVariablesRefreshed:
		return &VariablesRefreshed{}, true
	case EventRegulationsRefreshed:
		return &RegulationsRefreshed{}, true
	case EventLayoutNodesRefreshed:
		return &LayoutNodesRefreshed{}, true
	case EventFunctionsRefreshed:
		return &FunctionsRefreshed{}, true
	case EventDatasetsRefreshed:
		return &DatasetsRefreshed{}, true
	case EventStaticPropertiesRefreshed:
		return &StaticPropertiesRefreshed{}, true
	case EventDynamicPropertiesRefreshed:
		return &DynamicPropertiesRefreshed{}, true
	case EventCanUndoChanged:
		return &CanUndoChanged{}, true
	case EventCanRedoChanged:
		return &CanRedoChanged{}, true
	}
	return nil, false
}
