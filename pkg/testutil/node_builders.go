// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates a test WorkflowNode with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.WorkflowNode)) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:   uuid.New().String(),
		Type: models.NodeTypeActionLog,
		Name: "Test Node",
		Parameters: map[string]models.Parameter{
			"message": models.Fixed("test"),
			"level":   models.Fixed("info"),
		},
		PositionX: 100,
		PositionY: 200,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithID sets the node id.
func WithID(id string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.ID = id
	}
}

// WithType sets the node type and clears parameters that belonged to the previous type.
func WithType(nodeType models.NodeType) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = nodeType
		n.Parameters = map[string]models.Parameter{}
	}
}

// WithParameter sets one parameter.
func WithParameter(name string, param models.Parameter) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		if n.Parameters == nil {
			n.Parameters = map[string]models.Parameter{}
		}

		n.Parameters[name] = param
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Name = name
	}
}

// TriggerNode creates a trigger node with fixed parameters.
func TriggerNode(id string, nodeType models.NodeType, params map[string]any) *models.WorkflowNode {
	node := CreateTestNode(WithID(id), WithType(nodeType), WithName(string(nodeType)))

	for name, value := range params {
		node.Parameters[name] = models.Fixed(value)
	}

	return node
}

// ActionNode creates an action node with fixed parameters.
func ActionNode(id string, nodeType models.NodeType, params map[string]any) *models.WorkflowNode {
	return TriggerNode(id, nodeType, params)
}

// Edge creates an edge named "<source>-<target>".
func Edge(source, target string) *models.Edge {
	return &models.Edge{ID: source + "-" + target, Source: source, Target: target}
}

// CreateTestWorkflow creates an active workflow with a manual trigger feeding a log node.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	now := time.Now().UTC().Truncate(time.Millisecond)

	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		Name:        "Test Workflow",
		Description: "Workflow used in tests",
		Status:      models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			TriggerNode("trigger", models.NodeTypeTriggerManual, nil),
			CreateTestNode(WithID("log"), WithParameter("message", models.Expression("{{ execution.id }}"))),
		},
		Edges:     []*models.Edge{Edge("trigger", "log")},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithStatus sets the workflow status.
func WithStatus(status models.WorkflowStatus) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Status = status
	}
}

// WithGraph replaces the nodes and edges of the workflow.
func WithGraph(nodes []*models.WorkflowNode, edges []*models.Edge) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Nodes = nodes
		w.Edges = edges
	}
}

// CreateTestExecutionRecord creates a completed execution record for a workflow.
func CreateTestExecutionRecord(workflowID string, startedAt time.Time) *models.ExecutionRecord {
	completedAt := startedAt.Add(25 * time.Millisecond)

	return &models.ExecutionRecord{
		ExecutionID: uuid.New().String(),
		WorkflowID:  workflowID,
		Status:      models.ExecutionStatusCompleted,
		TriggerType: models.NodeTypeTriggerManual,
		StartedAt:   startedAt.UTC(),
		CompletedAt: &completedAt,
		DurationMs:  25,
		NodeStates: map[string]*models.NodeExecutionState{
			"trigger": {NodeID: "trigger", Status: models.NodeStatusSuccess, Runs: 1},
		},
		EdgeStates: map[string]*models.EdgeExecutionState{},
		Logs:       []models.LogEntry{},
	}
}
