package createdeal

import (
	"context"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/protocol"
)

// CreateDealNodeFactory creates CreateDealNode instances.
type CreateDealNodeFactory struct {
	entities EntityLookup
	stages   StageLookup
	writer   RecordWriter
}

// NewCreateDealNodeFactory creates a new factory instance.
func NewCreateDealNodeFactory(entities EntityLookup, stages StageLookup, writer RecordWriter) protocol.NodeFactory {
	return &CreateDealNodeFactory{entities: entities, stages: stages, writer: writer}
}

// Create creates a new CreateDealNode instance.
func (f *CreateDealNodeFactory) Create(_ context.Context) (protocol.NodeExecutor, error) {
	return NewCreateDealNode(f.entities, f.stages, f.writer), nil
}

// ID returns the factory ID.
func (f *CreateDealNodeFactory) ID() models.NodeType {
	return models.NodeTypeActionCreateDeal
}

// Name returns the factory name.
func (f *CreateDealNodeFactory) Name() string {
	return "Create Deal"
}

// Description returns the factory description.
func (f *CreateDealNodeFactory) Description() string {
	return "Creates a deal for a client in the default pipeline stage"
}

// Schema returns the JSON schema for the deal parameters. Fields are also checked at run time,
// after expressions are resolved.
func (f *CreateDealNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":      "string",
				"minLength": 1,
				"examples":  []string{"Website redesign"},
			},
			"client_id": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"value": map[string]any{
				"type":        "number",
				"minimum":     0,
				"description": "Deal value",
			},
			"expected_close_date": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Expected close date, e.g. 2025-03-31",
			},
			"stage_id": map[string]any{
				"type":        "string",
				"description": "Pipeline stage; defaults to the first stage",
			},
			"description": map[string]any{
				"type": "string",
			},
		},
		"required": []string{"title", "client_id", "value", "expected_close_date"},
	}
}
