// Package activity keeps the most recent events of the event bus in memory so they can be
// replayed to API clients.
package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dukex/ledgerflow/pkg/eventbus"
	"github.com/dukex/ledgerflow/pkg/events"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCapacity = 500

var ErrUnexpectedEvent = errors.New("unexpected event")

type based interface {
	Base() events.BaseEvent
}

// Entry is one recorded event.
type Entry struct {
	events.BaseEvent

	Event any `json:"event"`
}

// Log is a bounded, in-memory log of bus events keyed by event id. Once full, the oldest entries
// are evicted; a redelivered event replaces its earlier entry.
type Log struct {
	capacity int
	logger   *slog.Logger
	entries  *lru.Cache[string, Entry]
}

func NewLog(logger *slog.Logger, capacity int) (*Log, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	entries, err := lru.New[string, Entry](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create activity log: %w", err)
	}

	return &Log{
		capacity: capacity,
		logger:   logger.With("module", "activity_log"),
		entries:  entries,
	}, nil
}

// Attach registers the log as the handler of every event type and starts consuming the bus.
func (l *Log) Attach(ctx context.Context, subscriber eventbus.EventSubscriber) error {
	for _, eventType := range events.Types() {
		err := subscriber.Handle(eventType, l.Record)
		if err != nil {
			return fmt.Errorf("failed to handle %s: %w", eventType, err)
		}
	}

	err := subscriber.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	l.logger.InfoContext(ctx, "Recording bus activity", "capacity", l.capacity)

	return nil
}

// Record stores one event. It is an eventbus.EventHandler.
func (l *Log) Record(ctx context.Context, event any) error {
	b, ok := event.(based)
	if !ok {
		l.logger.WarnContext(ctx, "Dropping event without base fields", "event", fmt.Sprintf("%T", event))

		return fmt.Errorf("%w: %T", ErrUnexpectedEvent, event)
	}

	base := b.Base()
	l.entries.Add(base.ID, Entry{BaseEvent: base, Event: event})

	return nil
}

// Recent returns up to limit entries, newest first. An empty workflowID matches every workflow;
// a limit of zero or less returns everything retained.
func (l *Log) Recent(workflowID string, limit int) []Entry {
	values := l.entries.Values()
	result := make([]Entry, 0, len(values))

	for _, entry := range slices.Backward(values) {
		if workflowID != "" && entry.WorkflowID != workflowID {
			continue
		}

		result = append(result, entry)

		if limit > 0 && len(result) == limit {
			break
		}
	}

	return result
}
