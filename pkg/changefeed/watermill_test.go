package changefeed_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/ledgerflow/pkg/changefeed"
	"github.com/dukex/ledgerflow/pkg/channels/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFeed(t *testing.T) *changefeed.WatermillFeed {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = pub.Close()
	})

	return changefeed.NewWatermillFeed(slog.New(slog.NewTextHandler(io.Discard, nil)), pub, sub)
}

func receive(t *testing.T, sub changefeed.Subscription) changefeed.Change {
	t.Helper()

	select {
	case change, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")

		return change
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}

	return changefeed.Change{}
}

func assertNothing(t *testing.T, sub changefeed.Subscription) {
	t.Helper()

	select {
	case change := <-sub.Events():
		t.Fatalf("unexpected change %+v", change)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFilter_Matches(t *testing.T) {
	tests := []struct {
		name     string
		filter   changefeed.Filter
		change   changefeed.Change
		expected bool
	}{
		{"same source, any operation", changefeed.Filter{Source: "deals"}, changefeed.Change{Source: "deals", Operation: changefeed.OperationDelete}, true},
		{"other source", changefeed.Filter{Source: "deals"}, changefeed.Change{Source: "tasks", Operation: changefeed.OperationInsert}, false},
		{
			"operation listed",
			changefeed.Filter{Source: "deals", Operations: []changefeed.Operation{changefeed.OperationInsert, changefeed.OperationUpdate}},
			changefeed.Change{Source: "deals", Operation: changefeed.OperationUpdate},
			true,
		},
		{
			"operation not listed",
			changefeed.Filter{Source: "deals", Operations: []changefeed.Operation{changefeed.OperationInsert}},
			changefeed.Change{Source: "deals", Operation: changefeed.OperationUpdate},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.filter.Matches(tt.change))
		})
	}
}

func TestWatermillFeed_DeliversMatchingChanges(t *testing.T) {
	ctx := context.Background()
	feed := newTestFeed(t)

	sub, err := feed.Subscribe(ctx, changefeed.Filter{
		Source:     "deals",
		Operations: []changefeed.Operation{changefeed.OperationInsert},
	}, nil)
	require.NoError(t, err)

	defer sub.Close()

	require.NoError(t, feed.Publish(ctx, changefeed.Change{Source: "deals", Operation: changefeed.OperationUpdate}))
	require.NoError(t, feed.Publish(ctx, changefeed.Change{
		Source:    "deals",
		Operation: changefeed.OperationInsert,
		New:       map[string]any{"id": "deal-1", "title": "Renewal"},
	}))

	change := receive(t, sub)
	assert.Equal(t, changefeed.OperationInsert, change.Operation)
	assert.Equal(t, "deal-1", change.New["id"])
	assert.NotEmpty(t, change.ID)
	assert.False(t, change.OccurredAt.IsZero())

	assertNothing(t, sub)
}

func TestWatermillFeed_Predicate(t *testing.T) {
	ctx := context.Background()
	feed := newTestFeed(t)

	won := func(change changefeed.Change) bool {
		return change.Old["stage"] != "won" && change.New["stage"] == "won"
	}

	sub, err := feed.Subscribe(ctx, changefeed.Filter{Source: "deals"}, won)
	require.NoError(t, err)

	defer sub.Close()

	require.NoError(t, feed.Publish(ctx, changefeed.Change{
		Source: "deals", Operation: changefeed.OperationUpdate,
		Old: map[string]any{"stage": "lead"}, New: map[string]any{"stage": "proposal"},
	}))
	require.NoError(t, feed.Publish(ctx, changefeed.Change{
		Source: "deals", Operation: changefeed.OperationUpdate,
		Old: map[string]any{"stage": "proposal"}, New: map[string]any{"stage": "won"},
	}))

	change := receive(t, sub)
	assert.Equal(t, "won", change.New["stage"])
	assertNothing(t, sub)
}

func TestWatermillFeed_FanOutAndClose(t *testing.T) {
	ctx := context.Background()
	feed := newTestFeed(t)

	first, err := feed.Subscribe(ctx, changefeed.Filter{Source: "tasks"}, nil)
	require.NoError(t, err)

	second, err := feed.Subscribe(ctx, changefeed.Filter{Source: "tasks"}, nil)
	require.NoError(t, err)

	require.NoError(t, feed.Publish(ctx, changefeed.Change{Source: "tasks", Operation: changefeed.OperationInsert}))

	receive(t, first)
	receive(t, second)

	require.NoError(t, first.Close())
	require.NoError(t, first.Close())

	_, open := <-first.Events()
	assert.False(t, open)

	require.NoError(t, feed.Publish(ctx, changefeed.Change{Source: "tasks", Operation: changefeed.OperationInsert}))
	receive(t, second)

	require.NoError(t, second.Close())
}

func TestWatermillFeed_ContextEndsSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	feed := newTestFeed(t)

	sub, err := feed.Subscribe(ctx, changefeed.Filter{Source: "clients"}, nil)
	require.NoError(t, err)

	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, open := <-sub.Events():
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestWatermillFeed_RequiresSource(t *testing.T) {
	feed := newTestFeed(t)

	_, err := feed.Subscribe(context.Background(), changefeed.Filter{}, nil)
	require.ErrorIs(t, err, changefeed.ErrSourceRequired)

	err = feed.Publish(context.Background(), changefeed.Change{Operation: changefeed.OperationInsert})
	require.ErrorIs(t, err, changefeed.ErrSourceRequired)
}
