package action

import (
	"context"
	"testing"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewActionNodeFactory(t *testing.T) {
	fn := protocol.ActionFunc(func(_ context.Context, params map[string]any, _ *models.ExecutionContext) protocol.Result {
		return protocol.Succeeded(map[string]any{"task_id": "t-1", "title": params["title"]})
	})

	tests := []struct {
		name      string
		nodeType  models.NodeType
		fn        protocol.ActionFunc
		expectErr bool
	}{
		{name: "create task", nodeType: models.NodeTypeActionCreateTask, fn: fn},
		{name: "financial entry", nodeType: models.NodeTypeActionCreateFinancialEntry, fn: fn},
		{name: "send message", nodeType: models.NodeTypeActionSendMessage, fn: fn},
		{name: "nil collaborator", nodeType: models.NodeTypeActionCreateTask, expectErr: true},
		{name: "not a collaborator type", nodeType: models.NodeTypeActionLog, fn: fn, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, err := NewActionNodeFactory(tt.nodeType, tt.fn)
			if tt.expectErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.nodeType, factory.ID())
			assert.NotEmpty(t, factory.Name())
			assert.NotEmpty(t, factory.Schema()["required"])

			executor, err := factory.Create(context.Background())
			require.NoError(t, err)

			result := executor.Execute(context.Background(), &models.WorkflowNode{ID: "a"},
				map[string]any{"title": "Call client"}, models.NewExecutionContext("e", "w", nil))
			assert.True(t, result.Success)
			assert.Equal(t, "Call client", result.Output.(map[string]any)["title"])
		})
	}
}

func TestCollaboratorTypes(t *testing.T) {
	for _, nodeType := range CollaboratorTypes() {
		_, ok := collaboratorTypes[nodeType]
		assert.True(t, ok, nodeType)
	}
}
