// Package events defines the timestamped events emitted while workflows execute.
package events

import (
	"time"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every execution and trigger event.
const Topic = "ledgerflow.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionLogEvent       EventType = "execution.log"

	NodeStartedEvent   EventType = "node.started"
	NodeCompletedEvent EventType = "node.completed"
	NodeFailedEvent    EventType = "node.failed"
	EdgeActivatedEvent EventType = "edge.activated"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Base returns the common fields of any event embedding BaseEvent.
func (e BaseEvent) Base() BaseEvent {
	return e
}

// Types returns every event type published on Topic.
func Types() []EventType {
	return []EventType{
		ExecutionStartedEvent,
		ExecutionCompletedEvent,
		ExecutionFailedEvent,
		ExecutionLogEvent,
		NodeStartedEvent,
		NodeCompletedEvent,
		NodeFailedEvent,
		EdgeActivatedEvent,
		TriggerFiredEvent,
		TriggerSkippedEvent,
	}
}

func NewBaseEvent(eventType EventType, workflowID, executionID string, at time.Time) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   at.UTC(),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
	}
}

type ExecutionStarted struct {
	BaseEvent

	TriggerType models.NodeType `json:"trigger_type,omitempty"`
	TriggerData map[string]any  `json:"trigger_data,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	DurationMs    int64          `json:"duration_ms"`
	NodesExecuted int            `json:"nodes_executed"`
	Output        map[string]any `json:"output,omitempty"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	DurationMs    int64    `json:"duration_ms"`
	NodesExecuted int      `json:"nodes_executed"`
	Errors        []string `json:"errors"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionLog struct {
	BaseEvent

	NodeID  string          `json:"node_id,omitempty"`
	Level   models.LogLevel `json:"level"`
	Message string          `json:"message"`
	Data    map[string]any  `json:"data,omitempty"`
}

func (e ExecutionLog) GetType() EventType {
	return ExecutionLogEvent
}

type NodeStarted struct {
	BaseEvent

	NodeID string `json:"node_id"`
}

func (e NodeStarted) GetType() EventType {
	return NodeStartedEvent
}

type NodeCompleted struct {
	BaseEvent

	NodeID string `json:"node_id"`
	Output any    `json:"output,omitempty"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

type NodeFailed struct {
	BaseEvent

	NodeID string `json:"node_id"`
	Error  string `json:"error"`
}

func (e NodeFailed) GetType() EventType {
	return NodeFailedEvent
}

type EdgeActivated struct {
	BaseEvent

	EdgeID string `json:"edge_id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

func (e EdgeActivated) GetType() EventType {
	return EdgeActivatedEvent
}
