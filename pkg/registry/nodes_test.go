package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopDeals struct{}

func (nopDeals) ClientExists(context.Context, string) (bool, error) { return true, nil }
func (nopDeals) DefaultStage(context.Context) (string, error) { return "stage", nil }

func TestRegisterDefaultNodes(t *testing.T) {
	tests := []struct {
		name          string
		collaborators Collaborators
		registered    []models.NodeType
		missing       []models.NodeType
	}{
		{
			name:       "no collaborators",
			registered: []models.NodeType{models.NodeTypeTriggerManual, models.NodeTypeTriggerDueSoon, models.NodeTypeActionLog},
			missing: []models.NodeType{
				models.NodeTypeActionCreateDeal,
				models.NodeTypeActionCreateTask,
				models.NodeTypeActionSendMessage,
			},
		},
		{
			name: "task collaborator only",
			collaborators: Collaborators{
				Actions: map[models.NodeType]protocol.ActionFunc{
					models.NodeTypeActionCreateTask: func(context.Context, map[string]any, *models.ExecutionContext) protocol.Result {
						return protocol.Succeeded(nil)
					},
				},
			},
			registered: []models.NodeType{models.NodeTypeActionCreateTask},
			missing:    []models.NodeType{models.NodeTypeActionCreateFinancialEntry, models.NodeTypeActionCreateDeal},
		},
		{
			name: "partial deal collaborators",
			collaborators: Collaborators{
				Entities: nopDeals{},
				Stages:   nopDeals{},
			},
			missing: []models.NodeType{models.NodeTypeActionCreateDeal},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(slog.Default())
			require.NoError(t, r.RegisterDefaultNodes(tt.collaborators))

			for _, nodeType := range tt.registered {
				assert.True(t, r.IsRegistered(nodeType), nodeType)
			}

			for _, nodeType := range tt.missing {
				assert.False(t, r.IsRegistered(nodeType), nodeType)
			}

			for _, nodeType := range models.NodeTypes() {
				if nodeType.IsTrigger() {
					assert.True(t, r.IsRegistered(nodeType), nodeType)
				}
			}
		})
	}
}
