package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/ledgerflow/pkg/changefeed"
	"github.com/dukex/ledgerflow/pkg/protocol"
)

// changeTrigger fires for every change-feed event that passes its filter and predicate.
type changeTrigger struct {
	feed      changefeed.Feed
	filter    changefeed.Filter
	predicate changefeed.Predicate
	logger    *slog.Logger

	mu   sync.Mutex
	sub  changefeed.Subscription
	done chan struct{}
}

func newChangeTrigger(feed changefeed.Feed, filter changefeed.Filter, predicate changefeed.Predicate, logger *slog.Logger) *changeTrigger {
	return &changeTrigger{
		feed:      feed,
		filter:    filter,
		predicate: predicate,
		logger:    logger.With("source", filter.Source),
	}
}

func (t *changeTrigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	sub, err := t.feed.Subscribe(ctx, t.filter, t.predicate)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", t.filter.Source, err)
	}

	done := make(chan struct{})

	t.mu.Lock()
	t.sub = sub
	t.done = done
	t.mu.Unlock()

	go func() {
		defer close(done)

		for change := range sub.Events() {
			err := callback(ctx, change.ID, changePayload(change))
			if err != nil {
				t.logger.ErrorContext(ctx, "Failed to handle change", "change_id", change.ID, "error", err)
			}
		}
	}()

	return nil
}

// Stop closes the subscription and waits for the event in progress, if any.
func (t *changeTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	sub, done := t.sub, t.done
	t.sub = nil
	t.mu.Unlock()

	if sub == nil {
		return nil
	}

	err := sub.Close()
	if err != nil {
		return fmt.Errorf("failed to close subscription to %s: %w", t.filter.Source, err)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func changePayload(change changefeed.Change) map[string]any {
	payload := map[string]any{
		"change_id":   change.ID,
		"source":      change.Source,
		"operation":   string(change.Operation),
		"occurred_at": change.OccurredAt,
	}

	if change.New != nil {
		payload["record"] = change.New
	}

	if change.Old != nil {
		payload["previous"] = change.Old
	}

	return payload
}
