package events

import "github.com/dukex/ledgerflow/pkg/models"

const (
	// TriggerFiredEvent is published when a trigger mechanism starts an execution
	TriggerFiredEvent EventType = "trigger.fired"
	// TriggerSkippedEvent is published when a fired trigger no longer matches the saved workflow
	TriggerSkippedEvent EventType = "trigger.skipped"
)

type TriggerFired struct {
	BaseEvent

	NodeID   string          `json:"node_id"`
	NodeType models.NodeType `json:"node_type"`
	EventID  string          `json:"event_id"`
}

func (t TriggerFired) GetType() EventType {
	return TriggerFiredEvent
}

type TriggerSkipped struct {
	BaseEvent

	NodeID   string          `json:"node_id"`
	NodeType models.NodeType `json:"node_type"`
	Reason   string          `json:"reason"`
}

func (t TriggerSkipped) GetType() EventType {
	return TriggerSkippedEvent
}
