// Package registry maps node types to their executors.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrUnknownNodeType = errors.New("unknown node type")
	ErrInvalidParams   = errors.New("invalid node parameters")
)

type Registry struct {
	logger    *slog.Logger
	mu        sync.RWMutex
	factories map[models.NodeType]protocol.NodeFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log.With("module", "registry"),
		factories: make(map[models.NodeType]protocol.NodeFactory),
	}
}

// RegisterNode registers a node factory. Only enumerated node types can be registered.
func (r *Registry) RegisterNode(factory protocol.NodeFactory) error {
	if !factory.ID().Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownNodeType, factory.ID())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[factory.ID()] = factory

	return nil
}

// IsRegistered reports whether an executor exists for the node type.
func (r *Registry) IsRegistered(nodeType models.NodeType) bool {
	_, ok := r.factory(nodeType)

	return ok
}

// Unregistered returns the known node types that have no executor, sorted.
func (r *Registry) Unregistered() []models.NodeType {
	var missing []models.NodeType

	for _, nodeType := range models.NodeTypes() {
		if !r.IsRegistered(nodeType) {
			missing = append(missing, nodeType)
		}
	}

	slices.Sort(missing)

	return missing
}

// HealthCheck reports whether any node executor is registered.
func (r *Registry) HealthCheck() (string, bool) {
	r.mu.RLock()
	count := len(r.factories)
	r.mu.RUnlock()

	if count == 0 {
		return "No node executors registered", false
	}

	return fmt.Sprintf("%d node executors registered", count), true
}

// GetAvailableNodes returns the registered factories ordered by node type.
func (r *Registry) GetAvailableNodes() []protocol.NodeFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factories := make([]protocol.NodeFactory, 0, len(r.factories))
	for _, factory := range r.factories {
		factories = append(factories, factory)
	}

	slices.SortFunc(factories, func(a, b protocol.NodeFactory) int {
		return strings.Compare(string(a.ID()), string(b.ID()))
	})

	return factories
}

// Execute runs the executor registered for node.Type. It never panics: a panicking executor
// becomes a failed result. A type with no executor passes through, returning success with
// whatever output already exists in the context for this node.
func (r *Registry) Execute(
	ctx context.Context,
	node *models.WorkflowNode,
	params map[string]any,
	execCtx *models.ExecutionContext,
) (result protocol.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "node executor panicked", "node_id", node.ID, "node_type", node.Type, "panic", rec)
			result = protocol.Failed(fmt.Sprintf("node %s failed unexpectedly: %v", node.ID, rec))
		}
	}()

	factory, ok := r.factory(node.Type)
	if !ok {
		r.logger.WarnContext(ctx, "no executor registered, passing through", "node_id", node.ID, "node_type", node.Type)

		existing, _ := execCtx.Output(node.ID)

		return protocol.Succeeded(existing)
	}

	executor, err := factory.Create(ctx)
	if err != nil {
		return protocol.Failed(fmt.Sprintf("failed to create executor for %s: %v", node.Type, err))
	}

	return executor.Execute(ctx, node, params, execCtx)
}

// ValidateParameters checks the fixed-mode parameters of a node against the JSON schema of its
// type. Parameters in expression mode are resolved at run time, so they only need to be present.
func (r *Registry) ValidateParameters(nodeType models.NodeType, params map[string]models.Parameter) error {
	factory, ok := r.factory(nodeType)
	if !ok {
		return nil
	}

	schema := factory.Schema()
	if schema == nil {
		return nil
	}

	fixed := make(map[string]any, len(params))
	expressions := make(map[string]bool)

	for name, param := range params {
		if param.Mode == models.ParameterModeExpression {
			expressions[name] = true

			continue
		}

		fixed[name] = param.Value
	}

	schemaLoader := gojsonschema.NewGoLoader(withoutRequired(schema, expressions))
	dataLoader := gojsonschema.NewGoLoader(fixed)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate parameters of %s: %w", nodeType, err)
	}

	if !result.Valid() {
		var errs []string
		for _, resultErr := range result.Errors() {
			errs = append(errs, resultErr.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidParams, strings.Join(errs, "; "))
	}

	return nil
}

func (r *Registry) factory(nodeType models.NodeType) (protocol.NodeFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[nodeType]

	return factory, ok
}

func withoutRequired(schema map[string]any, skip map[string]bool) map[string]any {
	if len(skip) == 0 {
		return schema
	}

	var required []string

	switch list := schema["required"].(type) {
	case []string:
		required = list
	case []any:
		for _, v := range list {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
	default:
		return schema
	}

	kept := make([]string, 0, len(required))

	for _, name := range required {
		if !skip[name] {
			kept = append(kept, name)
		}
	}

	copied := make(map[string]any, len(schema))
	for k, v := range schema {
		copied[k] = v
	}

	if len(kept) == 0 {
		delete(copied, "required")
	} else {
		copied["required"] = kept
	}

	return copied
}
