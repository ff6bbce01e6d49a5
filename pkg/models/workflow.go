// Package models defines the core domain models for node-based workflow automation
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"   // Triggers are monitored
	WorkflowStatusInactive WorkflowStatus = "inactive" // Kept, but not monitored
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Being edited
)

// Valid reports whether s is a known workflow status.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowStatusActive, WorkflowStatusInactive, WorkflowStatusDraft:
		return true
	default:
		return false
	}
}

// Workflow is a user-authored automation definition. It never carries execution state.
type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"                  validate:"required,min=3"`
	Description string          `json:"description,omitempty"`
	Status      WorkflowStatus  `json:"status"                validate:"required,oneof=active inactive draft"`
	Nodes       []*WorkflowNode `json:"nodes"                 validate:"dive"`
	Edges       []*Edge         `json:"edges"                 validate:"dive"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Edge says the target may start only after the source completed successfully.
type Edge struct {
	ID     string `json:"id"     validate:"required"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// NodeByID returns the node with the given id, or nil.
func (w *Workflow) NodeByID(id string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// TriggerNodes returns the trigger nodes in node order.
func (w *Workflow) TriggerNodes() []*WorkflowNode {
	var triggers []*WorkflowNode

	for _, node := range w.Nodes {
		if node.IsTriggerNode() {
			triggers = append(triggers, node)
		}
	}

	return triggers
}

// IsActive reports whether the workflow's triggers should be monitored.
func (w *Workflow) IsActive() bool {
	return w.Status == WorkflowStatusActive
}

// OutgoingEdges returns the edges leaving nodeID, in edge order.
func OutgoingEdges(edges []*Edge, nodeID string) []*Edge {
	var out []*Edge

	for _, edge := range edges {
		if edge.Source == nodeID {
			out = append(out, edge)
		}
	}

	return out
}
