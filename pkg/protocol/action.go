package protocol

import (
	"context"

	"github.com/dukex/ledgerflow/pkg/models"
)

// ActionFunc is the call contract of an injected action collaborator, one per action node type.
type ActionFunc func(ctx context.Context, params map[string]any, execCtx *models.ExecutionContext) Result

// Execute implements NodeExecutor.
func (f ActionFunc) Execute(
	ctx context.Context,
	_ *models.WorkflowNode,
	params map[string]any,
	execCtx *models.ExecutionContext,
) Result {
	return f(ctx, params, execCtx)
}
