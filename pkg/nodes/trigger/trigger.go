// Package trigger provides the executors for trigger nodes. A trigger node does no work of its
// own: when it is the entry of an execution it hands the trigger payload to its descendants.
package trigger

import (
	"context"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/protocol"
)

// TriggerNode passes the trigger payload through as its output.
type TriggerNode struct {
	nodeType models.NodeType
}

// Execute returns the seeded trigger payload, or a payload naming the trigger type when the
// execution was started without one.
func (n *TriggerNode) Execute(
	_ context.Context,
	_ *models.WorkflowNode,
	_ map[string]any,
	execCtx *models.ExecutionContext,
) protocol.Result {
	if execCtx.TriggerData != nil {
		return protocol.Succeeded(execCtx.TriggerData)
	}

	return protocol.Succeeded(map[string]any{"trigger_type": string(n.nodeType)})
}

// TriggerNodeFactory creates TriggerNode instances for one trigger type.
type TriggerNodeFactory struct {
	nodeType    models.NodeType
	name        string
	description string
	schema      map[string]any
}

// Create creates the pass-through executor.
func (f *TriggerNodeFactory) Create(_ context.Context) (protocol.NodeExecutor, error) {
	return &TriggerNode{nodeType: f.nodeType}, nil
}

// ID returns the trigger node type.
func (f *TriggerNodeFactory) ID() models.NodeType {
	return f.nodeType
}

// Name returns the factory name.
func (f *TriggerNodeFactory) Name() string {
	return f.name
}

// Description returns the factory description.
func (f *TriggerNodeFactory) Description() string {
	return f.description
}

// Schema returns the JSON schema for the trigger parameters.
func (f *TriggerNodeFactory) Schema() map[string]any {
	return f.schema
}

// NewTriggerNodeFactories returns one factory per trigger node type.
func NewTriggerNodeFactories() []protocol.NodeFactory {
	return []protocol.NodeFactory{
		&TriggerNodeFactory{
			nodeType:    models.NodeTypeTriggerManual,
			name:        "Manual Trigger",
			description: "Starts the workflow on demand",
			schema:      objectSchema(map[string]any{}),
		},
		&TriggerNodeFactory{
			nodeType:    models.NodeTypeTriggerRecordCreated,
			name:        "Record Created",
			description: "Starts the workflow when a record is inserted into a source",
			schema: objectSchema(map[string]any{
				"source": sourceProperty,
			}, "source"),
		},
		&TriggerNodeFactory{
			nodeType:    models.NodeTypeTriggerFieldChanged,
			name:        "Field Changed",
			description: "Starts the workflow when a field of a record transitions to a given value",
			schema: objectSchema(map[string]any{
				"source": sourceProperty,
				"field": map[string]any{
					"type":        "string",
					"minLength":   1,
					"description": "Field to watch",
					"examples":    []string{"status", "stage_id"},
				},
				"value": map[string]any{
					"description": "Value the field must change to",
					"examples":    []any{"won", "paid"},
				},
			}, "source", "field", "value"),
		},
		&TriggerNodeFactory{
			nodeType:    models.NodeTypeTriggerScheduleOnce,
			name:        "Run Once",
			description: "Starts the workflow once at an absolute point in time",
			schema: objectSchema(map[string]any{
				"at": map[string]any{
					"type":        "string",
					"format":      "date-time",
					"description": "RFC 3339 timestamp",
					"examples":    []string{"2025-12-01T09:00:00Z"},
				},
			}, "at"),
		},
		&TriggerNodeFactory{
			nodeType:    models.NodeTypeTriggerScheduleMonthly,
			name:        "Monthly Schedule",
			description: "Starts the workflow every month on a given day and time",
			schema: objectSchema(map[string]any{
				"day": map[string]any{
					"type":        "integer",
					"minimum":     1,
					"maximum":     31,
					"description": "Day of the month; clamped to the last day of shorter months",
				},
				"time": map[string]any{
					"type":        "string",
					"pattern":     `^([01][0-9]|2[0-3]):[0-5][0-9]$`,
					"description": "Time of day as HH:MM",
					"default":     "09:00",
				},
				"timezone": timezoneProperty,
			}, "day"),
		},
		&TriggerNodeFactory{
			nodeType:    models.NodeTypeTriggerScheduleCron,
			name:        "Cron Schedule",
			description: "Starts the workflow on a cron schedule",
			schema: objectSchema(map[string]any{
				"cron": map[string]any{
					"type":        "string",
					"minLength":   1,
					"description": "Five field cron expression",
					"examples": []string{
						"0 9 * * MON-FRI",
						"0 0 1 * *",
						"*/15 * * * *",
					},
				},
				"timezone": timezoneProperty,
			}, "cron"),
		},
		&TriggerNodeFactory{
			nodeType:    models.NodeTypeTriggerDueSoon,
			name:        "Due Soon",
			description: "Polls a source and starts the workflow while items are due within a number of days",
			schema: objectSchema(map[string]any{
				"source": sourceProperty,
				"days": map[string]any{
					"type":        "integer",
					"minimum":     0,
					"description": "Look-ahead window in days",
				},
				"interval": intervalProperty,
			}, "source", "days"),
		},
		&TriggerNodeFactory{
			nodeType:    models.NodeTypeTriggerMonthlyThreshold,
			name:        "Monthly Threshold",
			description: "Polls a monthly aggregate and starts the workflow when it crosses a threshold",
			schema: objectSchema(map[string]any{
				"metric": map[string]any{
					"type":        "string",
					"minLength":   1,
					"description": "Aggregate to observe",
					"examples":    []string{"expenses", "revenue"},
				},
				"threshold": map[string]any{
					"type":        "number",
					"description": "Threshold the metric is compared with",
				},
				"comparison": map[string]any{
					"type":    "string",
					"enum":    []string{"above", "below"},
					"default": "above",
				},
				"interval": intervalProperty,
				"fire_mode": map[string]any{
					"type":        "string",
					"enum":        []string{"transition", "every_interval"},
					"default":     "transition",
					"description": "transition fires when the condition starts holding; every_interval fires on each poll while it holds",
				},
			}, "metric", "threshold"),
		},
	}
}

var (
	sourceProperty = map[string]any{
		"type":        "string",
		"minLength":   1,
		"description": "Record source to observe",
		"examples":    []string{"deals", "tasks", "clients", "financial_entries"},
	}

	timezoneProperty = map[string]any{
		"type":        "string",
		"description": "IANA timezone",
		"default":     "UTC",
		"examples":    []string{"UTC", "America/Sao_Paulo"},
	}

	intervalProperty = map[string]any{
		"type":        "string",
		"description": "Polling interval as a Go duration",
		"examples":    []string{"5m", "1h"},
	}
)

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}
