// Package persistence provides the storage abstraction for workflow definitions and execution history.
package persistence

import (
	"context"

	"github.com/dukex/ledgerflow/pkg/models"
)

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
	ActiveWorkflows(ctx context.Context) ([]*models.Workflow, error)
}

// ExecutionRepository is the append-only store of execution records.
type ExecutionRepository interface {
	Append(ctx context.Context, record *models.ExecutionRecord) error
	GetByID(ctx context.Context, executionID string) (*models.ExecutionRecord, error)
	// ListByWorkflow returns the most recent records first; limit <= 0 means no limit.
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionRecord, error)
}

type Persistence interface {
	Workflows() WorkflowRepository
	Executions() ExecutionRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
