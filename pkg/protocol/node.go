// Package protocol defines the interfaces and contracts for pluggable nodes.
package protocol

import (
	"context"

	"github.com/dukex/ledgerflow/pkg/models"
)

// Result is the structured outcome of running a node. A failed node is a value, not an error.
type Result struct {
	Success bool
	Error   string
	Output  any
	Logs    []LogRecord
}

// LogRecord is a log line a node wants added to the execution log.
type LogRecord struct {
	Level   models.LogLevel
	Message string
	Data    map[string]any
}

// Succeeded builds a successful result.
func Succeeded(output any) Result {
	return Result{Success: true, Output: output}
}

// Failed builds a failed result.
func Failed(message string) Result {
	return Result{Success: false, Error: message}
}

// NodeExecutor runs one node. params holds the node's parameters with expressions already resolved.
type NodeExecutor interface {
	Execute(ctx context.Context, node *models.WorkflowNode, params map[string]any, execCtx *models.ExecutionContext) Result
}

// NodeFactory creates node executors and provides metadata about the node type.
type NodeFactory interface {
	// Create creates the executor for this node type
	Create(ctx context.Context) (NodeExecutor, error)

	// ID returns the node type handled by this factory
	ID() models.NodeType

	// Name returns the human-readable name for this node type
	Name() string

	// Description returns a description of what this node does
	Description() string

	// Schema returns the JSON schema for the node's fixed parameters
	Schema() map[string]any
}
