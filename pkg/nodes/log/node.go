// Package log provides the logging node, which writes a message to the execution log.
package log

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/protocol"
)

var levels = map[models.LogLevel]slog.Level{
	models.LogLevelInfo:    slog.LevelInfo,
	models.LogLevelSuccess: slog.LevelInfo,
	models.LogLevelWarning: slog.LevelWarn,
	models.LogLevelError:   slog.LevelError,
}

// LogNode writes its message to the execution log and to the process logger.
type LogNode struct {
	logger *slog.Logger
}

// NewLogNode creates a new logging node.
func NewLogNode(logger *slog.Logger) *LogNode {
	return &LogNode{logger: logger}
}

// Execute performs the logging operation.
func (n *LogNode) Execute(
	ctx context.Context,
	node *models.WorkflowNode,
	params map[string]any,
	execCtx *models.ExecutionContext,
) protocol.Result {
	raw, ok := params["message"]
	if !ok || raw == nil {
		return protocol.Failed("message is required")
	}

	message := fmt.Sprintf("%v", raw)

	level := models.LogLevelInfo
	if lvl, ok := params["level"].(string); ok && lvl != "" {
		level = models.LogLevel(lvl)
	}

	slogLevel, ok := levels[level]
	if !ok {
		return protocol.Failed(fmt.Sprintf("level %q is not one of info, warning, error or success", level))
	}

	n.logger.Log(ctx, slogLevel, message,
		"node_id", node.ID,
		"execution_id", execCtx.ID,
		"workflow_id", execCtx.WorkflowID,
	)

	data, _ := params["data"].(map[string]any)

	return protocol.Result{
		Success: true,
		Output: map[string]any{
			"message": message,
			"level":   string(level),
			"logged":  true,
		},
		Logs: []protocol.LogRecord{{Level: level, Message: message, Data: data}},
	}
}
