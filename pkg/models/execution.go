package models

import "time"

// ExecutionStatus is the overall state of one workflow run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusPaused    ExecutionStatus = "paused" // Reserved; nothing pauses a run today
)

// NodeStatus defines the possible states of a node execution.
type NodeStatus string

const (
	NodeStatusIdle    NodeStatus = "idle"
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusError   NodeStatus = "error"
	NodeStatusWaiting NodeStatus = "waiting" // Reserved for an approval step; unreachable
)

// LogLevel is the severity of an execution log entry.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
	LogLevelSuccess LogLevel = "success"
)

// NodeExecutionState is the per-run state of one node.
type NodeExecutionState struct {
	NodeID      string     `json:"node_id"`
	Status      NodeStatus `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Output      any        `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	Runs        int        `json:"runs"`
}

// EdgeExecutionState is the per-run state of one edge. IsActive is a transient visual pulse.
type EdgeExecutionState struct {
	EdgeID      string     `json:"edge_id"`
	IsActive    bool       `json:"is_active"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

// LogEntry is one line of an execution log.
type LogEntry struct {
	ID        string         `json:"id"`
	NodeID    string         `json:"node_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// ExecutionRecord is the persisted history of one workflow run.
type ExecutionRecord struct {
	ExecutionID string                         `json:"execution_id"`
	WorkflowID  string                         `json:"workflow_id"`
	Status      ExecutionStatus                `json:"status"`
	TriggerType NodeType                       `json:"trigger_type,omitempty"`
	StartedAt   time.Time                      `json:"started_at"`
	CompletedAt *time.Time                     `json:"completed_at,omitempty"`
	DurationMs  int64                          `json:"duration_ms"`
	NodeStates  map[string]*NodeExecutionState `json:"node_states"`
	EdgeStates  map[string]*EdgeExecutionState `json:"edge_states"`
	Logs        []LogEntry                     `json:"logs"`
	Errors      []string                       `json:"errors,omitempty"`
}
