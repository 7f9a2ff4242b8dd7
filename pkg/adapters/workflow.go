package adapters

import (
	"github.com/XiaoConstantine/mnemo-go/pkg/memory"
	"github.com/XiaoConstantine/mnemo-go/pkg/memory/fsm"
)

// WorkflowAdapter wraps the state machine engine.
type WorkflowAdapter struct {
	core *memory.Core
}

// NewWorkflowAdapter creates an adapter over the core's workflow engine.
func NewWorkflowAdapter(core *memory.Core) *WorkflowAdapter {
	return &WorkflowAdapter{core: core}
}

// StartRequest creates an instance of a registered definition.
type StartRequest struct {
	SessionID    string         `json:"session_id"`
	DefinitionID string         `json:"definition_id"`
	Context      map[string]any `json:"context,omitempty"`
}

// StateResponse reports the instance's current state.
type StateResponse struct {
	State string `json:"state"`
}

// Start creates an instance in the definition's initial state.
func (a *WorkflowAdapter) Start(req StartRequest) (StateResponse, error) {
	inst, err := a.core.Workflows.Start(req.SessionID, req.DefinitionID, req.Context)
	if err != nil {
		return StateResponse{}, err
	}
	return StateResponse{State: inst.CurrentState}, nil
}

// FireRequest applies one event to a running instance.
type FireRequest struct {
	SessionID    string         `json:"session_id"`
	DefinitionID string         `json:"definition_id"`
	Event        string         `json:"event"`
	Context      map[string]any `json:"context,omitempty"`
}

// Fire applies the event and returns the resulting state.
func (a *WorkflowAdapter) Fire(req FireRequest) (StateResponse, error) {
	state, err := a.core.Workflows.Fire(req.SessionID, req.DefinitionID, req.Event, req.Context)
	if err != nil {
		return StateResponse{}, err
	}
	return StateResponse{State: state}, nil
}

// ResetRequest discards an instance.
type ResetRequest struct {
	SessionID    string `json:"session_id"`
	DefinitionID string `json:"definition_id"`
}

// Reset discards the session's instance, terminal or not.
func (a *WorkflowAdapter) Reset(req ResetRequest) error {
	return a.core.Workflows.Reset(req.SessionID, req.DefinitionID)
}

// StateRequest queries an instance's current state.
type StateRequest struct {
	SessionID    string `json:"session_id"`
	DefinitionID string `json:"definition_id"`
}

// CurrentState returns the instance's current state.
func (a *WorkflowAdapter) CurrentState(req StateRequest) (StateResponse, error) {
	state, err := a.core.Workflows.CurrentState(req.SessionID, req.DefinitionID)
	if err != nil {
		return StateResponse{}, err
	}
	return StateResponse{State: state}, nil
}

// InstanceResponse carries the full instance view.
type InstanceResponse struct {
	Instance fsm.Instance `json:"instance"`
}

// Instance returns the full instance, history and context included.
func (a *WorkflowAdapter) Instance(req StateRequest) (InstanceResponse, error) {
	inst, err := a.core.Workflows.Instance(req.SessionID, req.DefinitionID)
	if err != nil {
		return InstanceResponse{}, err
	}
	return InstanceResponse{Instance: inst}, nil
}
