package log

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/dukex/ledgerflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNode_Execute(t *testing.T) {
	tests := []struct {
		name          string
		params        map[string]any
		expectSuccess bool
		expectLevel   models.LogLevel
		expectError   string
	}{
		{
			name:          "default level",
			params:        map[string]any{"message": "Processing deal"},
			expectSuccess: true,
			expectLevel:   models.LogLevelInfo,
		},
		{
			name:          "explicit warning",
			params:        map[string]any{"message": "Budget low", "level": "warning"},
			expectSuccess: true,
			expectLevel:   models.LogLevelWarning,
		},
		{
			name:          "non string message is formatted",
			params:        map[string]any{"message": 42.5, "level": "success"},
			expectSuccess: true,
			expectLevel:   models.LogLevelSuccess,
		},
		{
			name:        "missing message",
			params:      map[string]any{"level": "info"},
			expectError: "message is required",
		},
		{
			name:        "invalid level",
			params:      map[string]any{"message": "x", "level": "debug"},
			expectError: `level "debug" is not one of info, warning, error or success`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewLogNodeFactory(slog.Default())

			executor, err := factory.Create(context.Background())
			require.NoError(t, err)

			result := executor.Execute(
				context.Background(),
				&models.WorkflowNode{ID: "log-1", Type: models.NodeTypeActionLog},
				tt.params,
				models.NewExecutionContext("exec", "wf", nil),
			)

			assert.Equal(t, tt.expectSuccess, result.Success)

			if !tt.expectSuccess {
				assert.Equal(t, tt.expectError, result.Error)
				assert.Empty(t, result.Logs)

				return
			}

			require.Len(t, result.Logs, 1)
			assert.Equal(t, tt.expectLevel, result.Logs[0].Level)

			output, ok := result.Output.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, true, output["logged"])
			assert.Equal(t, string(tt.expectLevel), output["level"])
			assert.Equal(t, result.Logs[0].Message, output["message"])
		})
	}
}

func TestLogNodeFactory_Metadata(t *testing.T) {
	var factory protocol.NodeFactory = NewLogNodeFactory(slog.Default())

	assert.Equal(t, models.NodeTypeActionLog, factory.ID())
	assert.Equal(t, "Log", factory.Name())
	assert.Equal(t, []string{"message"}, factory.Schema()["required"])
}
