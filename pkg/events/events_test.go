package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/ledgerflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("BRT", -3*3600))

	base := NewBaseEvent(NodeStartedEvent, "wf-1", "exec-1", at)

	assert.NotEmpty(t, base.ID)
	assert.Equal(t, NodeStartedEvent, base.Type)
	assert.Equal(t, "wf-1", base.WorkflowID)
	assert.Equal(t, "exec-1", base.ExecutionID)
	assert.Equal(t, time.UTC, base.Timestamp.Location())
	assert.True(t, at.Equal(base.Timestamp))
}

func TestEvents_Types(t *testing.T) {
	tests := []struct {
		event    interface{ GetType() EventType }
		expected EventType
	}{
		{ExecutionStarted{}, ExecutionStartedEvent},
		{ExecutionCompleted{}, ExecutionCompletedEvent},
		{ExecutionFailed{}, ExecutionFailedEvent},
		{ExecutionLog{}, ExecutionLogEvent},
		{NodeStarted{}, NodeStartedEvent},
		{NodeCompleted{}, NodeCompletedEvent},
		{NodeFailed{}, NodeFailedEvent},
		{EdgeActivated{}, EdgeActivatedEvent},
		{TriggerFired{}, TriggerFiredEvent},
		{TriggerSkipped{}, TriggerSkippedEvent},
	}

	for _, tt := range tests {
		t.Run(string(tt.expected), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.event.GetType())
		})
	}
}

func TestExecutionLog_JSON(t *testing.T) {
	event := ExecutionLog{
		BaseEvent: NewBaseEvent(ExecutionLogEvent, "wf-1", "exec-1", time.Now()),
		NodeID:    "log",
		Level:     models.LogLevelWarning,
		Message:   "budget low",
	}

	payload, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"type":"execution.log"`)
	assert.Contains(t, string(payload), `"level":"warning"`)
	assert.NotContains(t, string(payload), `"data"`)
}
