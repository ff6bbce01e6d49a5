package models

import "sync"

// TriggerVariableKey is the reserved variables key holding the trigger payload.
const TriggerVariableKey = "$trigger"

// ExecutionContext is the mutable per-run state shared by the nodes of one execution.
type ExecutionContext struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	Variables   map[string]any `json:"variables"`
	Errors      []string       `json:"errors"`

	mu sync.RWMutex
}

// NewExecutionContext creates a context seeded with the trigger payload, when there is one.
func NewExecutionContext(id, workflowID string, triggerData map[string]any) *ExecutionContext {
	execCtx := &ExecutionContext{
		ID:          id,
		WorkflowID:  workflowID,
		TriggerData: triggerData,
		Variables:   make(map[string]any),
		Errors:      make([]string, 0),
	}

	if triggerData != nil {
		execCtx.Variables[TriggerVariableKey] = triggerData
	}

	return execCtx
}

// Output returns the stored output of a node.
func (c *ExecutionContext) Output(nodeID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.Variables[nodeID]

	return v, ok
}

// SetOutput stores the output of a node.
func (c *ExecutionContext) SetOutput(nodeID string, output any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Variables[nodeID] = output
}

// AddError appends an error message.
func (c *ExecutionContext) AddError(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Errors = append(c.Errors, message)
}

// ErrorList returns a copy of the accumulated errors.
func (c *ExecutionContext) ErrorList() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]string{}, c.Errors...)
}

// NodeOutputs returns a copy of the node outputs without the reserved trigger entry.
func (c *ExecutionContext) NodeOutputs() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	outputs := make(map[string]any, len(c.Variables))

	for k, v := range c.Variables {
		if k == TriggerVariableKey {
			continue
		}

		outputs[k] = v
	}

	return outputs
}
