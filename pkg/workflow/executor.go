// Package workflow executes workflow graphs and records what happened while they ran.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/ledgerflow/pkg/expression"
	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/otelhelper"
	"github.com/dukex/ledgerflow/pkg/protocol"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NoTriggerError is the only error of an execution that has no usable entry node.
const NoTriggerError = "no trigger found"

// VisitPolicy decides how often a node reached through several completed edges runs.
type VisitPolicy string

const (
	// VisitPerPath runs a node once per incoming completed edge.
	VisitPerPath VisitPolicy = "per_path"
	// VisitOnce runs every node at most once per execution.
	VisitOnce VisitPolicy = "once"
)

// NodeRunner invokes the executor registered for a node. It must not panic.
type NodeRunner interface {
	Execute(ctx context.Context, node *models.WorkflowNode, params map[string]any, execCtx *models.ExecutionContext) protocol.Result
}

type ExecutorConfig struct {
	VisitPolicy VisitPolicy
	// StepDelay paces the traversal between a completed node and its outgoing edges. Zero disables it.
	StepDelay time.Duration
	Clock     clockwork.Clock
	Tracer    trace.Tracer
}

func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		VisitPolicy: VisitPerPath,
		Clock:       clockwork.NewRealClock(),
		Tracer:      otelhelper.NoopTracer(),
	}
}

// ExecuteOptions identifies one execution and the trigger that started it.
type ExecuteOptions struct {
	ExecutionID string
	WorkflowID  string
	// EntryNodeID is the trigger node that fired. It wins over TriggerType when it names a
	// trigger node of the graph.
	EntryNodeID string
	// TriggerType selects the entry node. Empty means a manual run.
	TriggerType    models.NodeType
	TriggerContext map[string]any
}

type ExecutionResult struct {
	Success bool           `json:"success"`
	Errors  []string       `json:"errors"`
	Output  map[string]any `json:"output"`
}

type Executor struct {
	nodes  NodeRunner
	config ExecutorConfig
	logger *slog.Logger
}

func NewExecutor(logger *slog.Logger, nodes NodeRunner, config ExecutorConfig) *Executor {
	defaults := DefaultExecutorConfig()

	if config.VisitPolicy == "" {
		config.VisitPolicy = defaults.VisitPolicy
	}

	if config.Clock == nil {
		config.Clock = defaults.Clock
	}

	if config.Tracer == nil {
		config.Tracer = defaults.Tracer
	}

	return &Executor{
		nodes:  nodes,
		config: config,
		logger: logger.With("module", "workflow_executor"),
	}
}

// EntryNode picks the node an execution starts from: the trigger node named by entryNodeID, else
// the first node of the requested trigger type, else the manual trigger, else the first trigger
// node. It returns nil when there is none.
func EntryNode(nodes []*models.WorkflowNode, entryNodeID string, triggerType models.NodeType) *models.WorkflowNode {
	if entryNodeID != "" {
		for _, node := range nodes {
			if node.ID == entryNodeID && node.IsTriggerNode() {
				return node
			}
		}
	}

	if triggerType != "" {
		for _, node := range nodes {
			if node.Type == triggerType {
				return node
			}
		}
	}

	for _, node := range nodes {
		if node.Type == models.NodeTypeTriggerManual {
			return node
		}
	}

	for _, node := range nodes {
		if node.IsTriggerNode() {
			return node
		}
	}

	return nil
}

// ExecuteWorkflow runs the graph depth-first from its entry node. Outgoing edges of a node are
// followed one at a time, in edge order, and only after the node succeeded. A failed node stops
// its own branch; branches already dispatched by an ancestor carry on.
func (e *Executor) ExecuteWorkflow(
	ctx context.Context,
	nodes []*models.WorkflowNode,
	edges []*models.Edge,
	callbacks protocol.Callbacks,
	opts ExecuteOptions,
) ExecutionResult {
	logger := e.logger.With("workflow_id", opts.WorkflowID, "execution_id", opts.ExecutionID)

	ctx, span := otelhelper.StartSpan(ctx, e.config.Tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, opts.WorkflowID),
		attribute.String(otelhelper.ExecutionIDKey, opts.ExecutionID),
		attribute.String(otelhelper.TriggerTypeKey, string(opts.TriggerType)),
	)
	defer span.End()

	entry := EntryNode(nodes, opts.EntryNodeID, opts.TriggerType)
	if entry == nil {
		logger.WarnContext(ctx, "No trigger node found, aborting execution")
		otelhelper.SetFailure(span, NoTriggerError)

		return ExecutionResult{Success: false, Errors: []string{NoTriggerError}, Output: map[string]any{}}
	}

	logger.InfoContext(ctx, "Starting workflow execution", "entry_node_id", entry.ID)

	byID := make(map[string]*models.WorkflowNode, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
	}

	r := &run{
		executor:  e,
		logger:    logger,
		nodes:     byID,
		edges:     edges,
		callbacks: callbacks,
		execCtx:   models.NewExecutionContext(opts.ExecutionID, opts.WorkflowID, opts.TriggerContext),
		visited:   make(map[string]bool),
		path:      make(map[string]bool),
	}

	r.visit(ctx, entry.ID)

	errs := r.execCtx.ErrorList()
	result := ExecutionResult{
		Success: len(errs) == 0,
		Errors:  errs,
		Output:  r.execCtx.NodeOutputs(),
	}

	if result.Success {
		logger.InfoContext(ctx, "Workflow execution completed")
	} else {
		logger.WarnContext(ctx, "Workflow execution finished with errors", "errors", errs)
		otelhelper.SetFailure(span, fmt.Sprintf("%d node(s) failed", len(errs)))
	}

	return result
}

// run is the state of one traversal.
type run struct {
	executor  *Executor
	logger    *slog.Logger
	nodes     map[string]*models.WorkflowNode
	edges     []*models.Edge
	callbacks protocol.Callbacks
	execCtx   *models.ExecutionContext
	visited   map[string]bool
	path      map[string]bool
}

func (r *run) visit(ctx context.Context, nodeID string) {
	node, ok := r.nodes[nodeID]
	if !ok {
		r.fail(ctx, nodeID, fmt.Sprintf("node %s not found", nodeID))

		return
	}

	if r.path[nodeID] {
		r.fail(ctx, nodeID, "cycle detected at node "+nodeID)

		return
	}

	if r.executor.config.VisitPolicy == VisitOnce && r.visited[nodeID] {
		r.logger.DebugContext(ctx, "Node already executed, skipping", "node_id", nodeID)

		return
	}

	r.visited[nodeID] = true
	r.path[nodeID] = true

	defer delete(r.path, nodeID)

	r.callbacks.NodeStart(nodeID)

	result := r.execute(ctx, node)

	for _, record := range result.Logs {
		r.callbacks.Log(nodeID, record.Level, record.Message, record.Data)
	}

	if !result.Success {
		r.fail(ctx, nodeID, result.Error)

		return
	}

	r.execCtx.SetOutput(nodeID, result.Output)
	r.callbacks.NodeComplete(nodeID, result.Output)
	r.callbacks.Log(nodeID, models.LogLevelSuccess, fmt.Sprintf("Node %s completed", nodeID), nil)

	for _, edge := range models.OutgoingEdges(r.edges, nodeID) {
		r.pace(ctx)
		r.callbacks.EdgeActivate(edge.ID, edge.Source, edge.Target)
		r.visit(ctx, edge.Target)
	}
}

// execute resolves the node parameters and runs the node. Panics become failed results.
func (r *run) execute(ctx context.Context, node *models.WorkflowNode) (result protocol.Result) {
	ctx, span := otelhelper.StartSpan(ctx, r.executor.config.Tracer, "workflow.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
	)
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "Node panicked", "node_id", node.ID, "panic", rec)
			result = protocol.Failed(fmt.Sprintf("node %s failed unexpectedly: %v", node.ID, rec))
		}

		if !result.Success {
			otelhelper.SetFailure(span, result.Error, attribute.String(otelhelper.NodeIDKey, node.ID))
		}
	}()

	params, err := expression.ResolveParameters(node.Parameters, r.execCtx)
	if err != nil {
		return protocol.Failed(err.Error())
	}

	return r.executor.nodes.Execute(ctx, node, params, r.execCtx)
}

func (r *run) fail(ctx context.Context, nodeID, message string) {
	r.logger.WarnContext(ctx, "Node failed", "node_id", nodeID, "error", message)

	r.execCtx.AddError(nodeID + ": " + message)
	r.callbacks.NodeError(nodeID, message)
	r.callbacks.Log(nodeID, models.LogLevelError, message, nil)
}

func (r *run) pace(ctx context.Context) {
	delay := r.executor.config.StepDelay
	if delay <= 0 {
		return
	}

	select {
	case <-ctx.Done():
	case <-r.executor.config.Clock.After(delay):
	}
}
