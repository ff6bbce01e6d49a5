// Package models defines core node-based workflow models for graph execution
package models

import "strings"

// CategoryType represents the category of node.
type CategoryType string

const (
	CategoryTypeAction  CategoryType = "action"  // Nodes that do work (create records, send messages, log)
	CategoryTypeTrigger CategoryType = "trigger" // Nodes that can start an execution
)

// NodeType identifies what a node does. The set of node types is closed: anything not listed
// here is rejected when a workflow is saved.
type NodeType string

// Trigger node types.
const (
	NodeTypeTriggerManual           NodeType = "trigger:manual"
	NodeTypeTriggerRecordCreated    NodeType = "trigger:record_created"
	NodeTypeTriggerFieldChanged     NodeType = "trigger:field_changed"
	NodeTypeTriggerScheduleOnce     NodeType = "trigger:schedule_once"
	NodeTypeTriggerScheduleMonthly  NodeType = "trigger:schedule_monthly"
	NodeTypeTriggerScheduleCron     NodeType = "trigger:schedule_cron"
	NodeTypeTriggerDueSoon          NodeType = "trigger:due_soon"
	NodeTypeTriggerMonthlyThreshold NodeType = "trigger:monthly_threshold"
)

// Action node types.
const (
	NodeTypeActionCreateDeal           NodeType = "action:create_deal"
	NodeTypeActionCreateTask           NodeType = "action:create_task"
	NodeTypeActionCreateFinancialEntry NodeType = "action:create_financial_entry"
	NodeTypeActionSendMessage          NodeType = "action:send_message"
	NodeTypeActionLog                  NodeType = "action:log"
)

// TriggerKind is the monitoring mechanism a trigger node needs.
type TriggerKind string

const (
	TriggerKindNone     TriggerKind = ""
	TriggerKindManual   TriggerKind = "manual"
	TriggerKindEvent    TriggerKind = "event"
	TriggerKindSchedule TriggerKind = "schedule"
	TriggerKindPolling  TriggerKind = "polling"
)

var nodeTypeKinds = map[NodeType]TriggerKind{
	NodeTypeTriggerManual:              TriggerKindManual,
	NodeTypeTriggerRecordCreated:       TriggerKindEvent,
	NodeTypeTriggerFieldChanged:        TriggerKindEvent,
	NodeTypeTriggerScheduleOnce:        TriggerKindSchedule,
	NodeTypeTriggerScheduleMonthly:     TriggerKindSchedule,
	NodeTypeTriggerScheduleCron:        TriggerKindSchedule,
	NodeTypeTriggerDueSoon:             TriggerKindPolling,
	NodeTypeTriggerMonthlyThreshold:    TriggerKindPolling,
	NodeTypeActionCreateDeal:           TriggerKindNone,
	NodeTypeActionCreateTask:           TriggerKindNone,
	NodeTypeActionCreateFinancialEntry: TriggerKindNone,
	NodeTypeActionSendMessage:          TriggerKindNone,
	NodeTypeActionLog:                  TriggerKindNone,
}

// NodeTypes returns every known node type.
func NodeTypes() []NodeType {
	types := make([]NodeType, 0, len(nodeTypeKinds))
	for t := range nodeTypeKinds {
		types = append(types, t)
	}

	return types
}

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	_, ok := nodeTypeKinds[t]

	return ok
}

// IsTrigger reports whether nodes of this type can start an execution.
func (t NodeType) IsTrigger() bool {
	return strings.HasPrefix(string(t), string(CategoryTypeTrigger)+":")
}

// Category returns the node category derived from the type prefix.
func (t NodeType) Category() CategoryType {
	if t.IsTrigger() {
		return CategoryTypeTrigger
	}

	return CategoryTypeAction
}

// TriggerKind returns the monitoring mechanism for trigger types, or TriggerKindNone.
func (t NodeType) TriggerKind() TriggerKind {
	return nodeTypeKinds[t]
}

// ParameterMode says how a parameter value is interpreted.
type ParameterMode string

const (
	ParameterModeFixed      ParameterMode = "fixed"      // Value is used as-is
	ParameterModeExpression ParameterMode = "expression" // Value is resolved against the execution context
)

// Parameter is a single node parameter value.
type Parameter struct {
	Mode  ParameterMode `json:"mode"  validate:"required,oneof=fixed expression"`
	Value any           `json:"value"`
}

// Fixed builds a fixed-mode parameter.
func Fixed(value any) Parameter {
	return Parameter{Mode: ParameterModeFixed, Value: value}
}

// Expression builds an expression-mode parameter.
func Expression(expr string) Parameter {
	return Parameter{Mode: ParameterModeExpression, Value: expr}
}

// WorkflowNode represents a node instance in a workflow.
type WorkflowNode struct {
	ID         string               `json:"id"                   validate:"required"`
	Type       NodeType             `json:"type"                 validate:"required"`
	Name       string               `json:"name"`
	Parameters map[string]Parameter `json:"parameters,omitempty" validate:"dive"`
	PositionX  int                  `json:"position_x"`
	PositionY  int                  `json:"position_y"`
}

// IsTriggerNode reports whether the node is a trigger.
func (n *WorkflowNode) IsTriggerNode() bool {
	return n.Type.IsTrigger()
}

// FixedParameters returns the fixed-mode parameter values, keyed by name.
func (n *WorkflowNode) FixedParameters() map[string]any {
	values := make(map[string]any, len(n.Parameters))

	for name, param := range n.Parameters {
		if param.Mode == ParameterModeFixed || param.Mode == "" {
			values[name] = param.Value
		}
	}

	return values
}

// StringParameter returns a fixed parameter as a string, or "" when absent or not a string.
func (n *WorkflowNode) StringParameter(name string) string {
	param, ok := n.Parameters[name]
	if !ok {
		return ""
	}

	s, _ := param.Value.(string)

	return s
}
