package log

import (
	"context"
	"log/slog"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/protocol"
)

// LogNodeFactory creates LogNode instances.
type LogNodeFactory struct {
	logger *slog.Logger
}

// NewLogNodeFactory creates a new factory instance.
func NewLogNodeFactory(logger *slog.Logger) protocol.NodeFactory {
	return &LogNodeFactory{logger: logger.With("module", "log_node")}
}

// Create creates a new LogNode instance.
func (f *LogNodeFactory) Create(_ context.Context) (protocol.NodeExecutor, error) {
	return NewLogNode(f.logger), nil
}

// ID returns the factory ID.
func (f *LogNodeFactory) ID() models.NodeType {
	return models.NodeTypeActionLog
}

// Name returns the factory name.
func (f *LogNodeFactory) Name() string {
	return "Log"
}

// Description returns the factory description.
func (f *LogNodeFactory) Description() string {
	return "Adds a message to the execution log"
}

// Schema returns the JSON schema for Log node configuration.
func (f *LogNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Message to log. Use expression mode to reference trigger or node data.",
				"examples": []string{
					"Deal {{ trigger.new.title }} was won",
					"Created task {{ nodes.create_task.task_id }}",
				},
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level for the message",
				"enum":        []string{"info", "warning", "error", "success"},
				"default":     "info",
			},
			"data": map[string]any{
				"type":        "object",
				"description": "Structured data attached to the log entry",
			},
		},
		"required": []string{"message"},
	}
}
