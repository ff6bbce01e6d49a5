package activity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/ledgerflow/pkg/channels/gochannel"
	"github.com/dukex/ledgerflow/pkg/eventbus"
	"github.com/dukex/ledgerflow/pkg/events"
	"github.com/dukex/ledgerflow/pkg/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nodeStarted(workflowID, nodeID string) *events.NodeStarted {
	return &events.NodeStarted{
		BaseEvent: events.NewBaseEvent(events.NodeStartedEvent, workflowID, "exec-1", time.Now()),
		NodeID:    nodeID,
	}
}

func TestLog_Recent(t *testing.T) {
	ctx := context.Background()

	log, err := NewLog(discardLogger(), 3)
	require.NoError(t, err)
	require.NoError(t, log.Record(ctx, nodeStarted("wf-1", "a")))
	require.NoError(t, log.Record(ctx, nodeStarted("wf-2", "b")))
	require.NoError(t, log.Record(ctx, nodeStarted("wf-1", "c")))
	require.NoError(t, log.Record(ctx, nodeStarted("wf-1", "d")))

	nodeIDs := func(entries []Entry) []string {
		ids := make([]string, 0, len(entries))
		for _, entry := range entries {
			ids = append(ids, entry.Event.(*events.NodeStarted).NodeID)
		}

		return ids
	}

	tests := []struct {
		name       string
		workflowID string
		limit      int
		expected   []string
	}{
		{name: "newest first, oldest dropped", expected: []string{"d", "c", "b"}},
		{name: "limit", limit: 2, expected: []string{"d", "c"}},
		{name: "by workflow", workflowID: "wf-1", expected: []string{"d", "c"}},
		{name: "unknown workflow", workflowID: "wf-3", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, nodeIDs(log.Recent(tt.workflowID, tt.limit)))
		})
	}
}

func TestLog_RedeliveredEventReplacesEntry(t *testing.T) {
	ctx := context.Background()

	log, err := NewLog(discardLogger(), 3)
	require.NoError(t, err)

	event := nodeStarted("wf-1", "a")
	require.NoError(t, log.Record(ctx, event))
	require.NoError(t, log.Record(ctx, nodeStarted("wf-1", "b")))
	require.NoError(t, log.Record(ctx, event))

	recent := log.Recent("", 0)
	require.Len(t, recent, 2)
	assert.Equal(t, event.ID, recent[0].ID)
}

func TestLog_RecordRejectsForeignEvents(t *testing.T) {
	log, err := NewLog(discardLogger(), 0)
	require.NoError(t, err)

	err = log.Record(context.Background(), "not an event")
	require.ErrorIs(t, err, ErrUnexpectedEvent)
	assert.Empty(t, log.Recent("", 0))
}

func TestLog_AttachReplaysBusEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	defer func() { _ = bus.Close() }()

	log, err := NewLog(discardLogger(), 10)
	require.NoError(t, err)
	require.NoError(t, log.Attach(ctx, bus))

	require.NoError(t, bus.Publish(ctx, "wf-1", events.TriggerFired{
		BaseEvent: events.NewBaseEvent(events.TriggerFiredEvent, "wf-1", "", time.Now()),
		NodeID:    "created",
		EventID:   "deal-1",
	}))

	assert.Eventually(t, func() bool {
		return len(log.Recent("wf-1", 0)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	entry := log.Recent("wf-1", 0)[0]
	assert.Equal(t, events.TriggerFiredEvent, entry.Type)

	fired, ok := entry.Event.(*events.TriggerFired)
	require.True(t, ok)
	assert.Equal(t, "deal-1", fired.EventID)
}

func TestLog_AttachFailures(t *testing.T) {
	ctx := context.Background()

	handleFails := &mocks.MockEventBus{}
	handleFails.On("Handle", events.ExecutionStartedEvent, mock.Anything).Return(errors.New("closed"))

	log, err := NewLog(discardLogger(), 1)
	require.NoError(t, err)

	err = log.Attach(ctx, handleFails)
	require.ErrorContains(t, err, "failed to handle execution.started")

	subscribeFails := &mocks.MockEventBus{}
	subscribeFails.On("Handle", mock.Anything, mock.Anything).Return(nil)
	subscribeFails.On("Subscribe", ctx).Return(errors.New("closed"))

	err = log.Attach(ctx, subscribeFails)
	require.ErrorContains(t, err, "failed to subscribe to events")
	subscribeFails.AssertNumberOfCalls(t, "Handle", len(events.Types()))
}
