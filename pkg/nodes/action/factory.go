// Package action adapts injected action collaborators into node executors.
package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/protocol"
)

var ErrNilCollaborator = errors.New("action collaborator is nil")

type metadata struct {
	name        string
	description string
	schema      map[string]any
}

var collaboratorTypes = map[models.NodeType]metadata{
	models.NodeTypeActionCreateTask: {
		name:        "Create Task",
		description: "Creates a task through the task collaborator",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":      map[string]any{"type": "string", "minLength": 1},
				"project_id": map[string]any{"type": "string"},
				"assignee":   map[string]any{"type": "string"},
				"due_date":   map[string]any{"type": "string"},
			},
			"required": []string{"title"},
		},
	},
	models.NodeTypeActionCreateFinancialEntry: {
		name:        "Create Financial Entry",
		description: "Records an income or expense through the finance collaborator",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"description": map[string]any{"type": "string", "minLength": 1},
				"amount":      map[string]any{"type": "number", "minimum": 0},
				"kind":        map[string]any{"type": "string", "enum": []string{"income", "expense"}},
				"due_date":    map[string]any{"type": "string"},
			},
			"required": []string{"description", "amount", "kind"},
		},
	},
	models.NodeTypeActionSendMessage: {
		name:        "Send Message",
		description: "Sends a message through the messaging collaborator",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to":      map[string]any{"type": "string", "minLength": 1},
				"subject": map[string]any{"type": "string"},
				"body":    map[string]any{"type": "string", "minLength": 1},
			},
			"required": []string{"to", "body"},
		},
	},
}

// CollaboratorTypes returns the action node types backed by an injected collaborator.
func CollaboratorTypes() []models.NodeType {
	return []models.NodeType{
		models.NodeTypeActionCreateTask,
		models.NodeTypeActionCreateFinancialEntry,
		models.NodeTypeActionSendMessage,
	}
}

// ActionNodeFactory exposes an ActionFunc as a node type.
type ActionNodeFactory struct {
	nodeType models.NodeType
	fn       protocol.ActionFunc
	meta     metadata
}

// NewActionNodeFactory wraps fn as the executor for nodeType.
func NewActionNodeFactory(nodeType models.NodeType, fn protocol.ActionFunc) (*ActionNodeFactory, error) {
	if fn == nil {
		return nil, fmt.Errorf("%s: %w", nodeType, ErrNilCollaborator)
	}

	meta, ok := collaboratorTypes[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type %q is not a collaborator action", nodeType)
	}

	return &ActionNodeFactory{nodeType: nodeType, fn: fn, meta: meta}, nil
}

// Create returns the collaborator itself.
func (f *ActionNodeFactory) Create(_ context.Context) (protocol.NodeExecutor, error) {
	return f.fn, nil
}

// ID returns the factory ID.
func (f *ActionNodeFactory) ID() models.NodeType {
	return f.nodeType
}

// Name returns the factory name.
func (f *ActionNodeFactory) Name() string {
	return f.meta.name
}

// Description returns the factory description.
func (f *ActionNodeFactory) Description() string {
	return f.meta.description
}

// Schema returns the JSON schema of the action parameters.
func (f *ActionNodeFactory) Schema() map[string]any {
	return f.meta.schema
}
