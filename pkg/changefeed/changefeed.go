// Package changefeed is the live stream of record changes in the host application that event
// triggers listen to.
package changefeed

import (
	"context"
	"errors"
	"slices"
	"time"
)

var ErrSourceRequired = errors.New("change-feed source is required")

// Operation is the kind of change made to a record.
type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Change is one record change. Old is empty for inserts and New is empty for deletes.
type Change struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Operation  Operation      `json:"operation"`
	Old        map[string]any `json:"old,omitempty"`
	New        map[string]any `json:"new,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Filter selects changes by source and, optionally, by operation.
type Filter struct {
	Source     string
	Operations []Operation
}

// Matches reports whether the change passes the filter.
func (f Filter) Matches(change Change) bool {
	if change.Source != f.Source {
		return false
	}

	return len(f.Operations) == 0 || slices.Contains(f.Operations, change.Operation)
}

// Predicate is an extra condition a change must satisfy to be delivered. Nil accepts everything.
type Predicate func(change Change) bool

// Subscription delivers matching changes until closed.
type Subscription interface {
	// Events is closed once the subscription ends.
	Events() <-chan Change
	// Close ends the subscription. Closing twice is a no-op.
	Close() error
}

type Feed interface {
	Subscribe(ctx context.Context, filter Filter, predicate Predicate) (Subscription, error)
}

type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Topic is the message topic carrying the changes of one source.
func Topic(source string) string {
	return "changes." + source
}
