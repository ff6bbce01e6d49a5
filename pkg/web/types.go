package web

import (
	"github.com/dukex/ledgerflow/pkg/changefeed"
	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/protocol"
)

// WorkflowRequest is the request body for creating or replacing a workflow.
type WorkflowRequest struct {
	Name        string                 `json:"name"                  validate:"required,min=3"`
	Description string                 `json:"description,omitempty"`
	Status      models.WorkflowStatus  `json:"status,omitempty"      validate:"omitempty,oneof=active inactive draft"`
	Nodes       []*models.WorkflowNode `json:"nodes"`
	Edges       []*models.Edge         `json:"edges"`
}

// Workflow converts the request into a workflow definition.
func (r WorkflowRequest) Workflow() *models.Workflow {
	nodes := r.Nodes
	if nodes == nil {
		nodes = []*models.WorkflowNode{}
	}

	edges := r.Edges
	if edges == nil {
		edges = []*models.Edge{}
	}

	return &models.Workflow{
		Name:        r.Name,
		Description: r.Description,
		Status:      r.Status,
		Nodes:       nodes,
		Edges:       edges,
	}
}

// StatusRequest is the request body for changing the status of a workflow.
type StatusRequest struct {
	Status models.WorkflowStatus `json:"status" validate:"required,oneof=active inactive draft"`
}

// RunRequest is the request body for a manual execution.
type RunRequest struct {
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

// NodeTypeResponse describes a registered node type.
type NodeTypeResponse struct {
	Type        models.NodeType     `json:"type"`
	Category    models.CategoryType `json:"category"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Schema      map[string]any      `json:"schema"`
}

// TransformNodeType builds the response for a node factory.
func TransformNodeType(factory protocol.NodeFactory) NodeTypeResponse {
	return NodeTypeResponse{
		Type:        factory.ID(),
		Category:    factory.ID().Category(),
		Name:        factory.Name(),
		Description: factory.Description(),
		Schema:      factory.Schema(),
	}
}

// ChangeRequest is a record change reported by the host application.
type ChangeRequest struct {
	ID        string               `json:"id,omitempty"`
	Source    string               `json:"source"        validate:"required"`
	Operation changefeed.Operation `json:"operation"     validate:"required,oneof=insert update delete"`
	Old       map[string]any       `json:"old,omitempty"`
	New       map[string]any       `json:"new,omitempty"`
}

func (r ChangeRequest) Change() changefeed.Change {
	return changefeed.Change{
		ID:        r.ID,
		Source:    r.Source,
		Operation: r.Operation,
		Old:       r.Old,
		New:       r.New,
	}
}
