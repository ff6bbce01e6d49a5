package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/ledgerflow/pkg/protocol"
	"github.com/jonboulle/clockwork"
)

// DataSource answers the queries of polling triggers.
type DataSource interface {
	// DueItems returns the records of source whose due date falls between from and to.
	DueItems(ctx context.Context, source string, from, to time.Time) ([]map[string]any, error)
	// MonthlyAggregate returns the value of metric for the month containing at.
	MonthlyAggregate(ctx context.Context, metric string, at time.Time) (float64, error)
}

// pollCheck evaluates a polling condition. A nil payload means the trigger does not fire. A
// non-nil commit must run once the payload has been handled; until then the check keeps
// reporting the same firing.
type pollCheck func(ctx context.Context, now time.Time) (payload map[string]any, commit func(), err error)

type pollingTrigger struct {
	clock    clockwork.Clock
	interval time.Duration
	check    pollCheck
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newPollingTrigger(clock clockwork.Clock, interval time.Duration, check pollCheck, logger *slog.Logger) *pollingTrigger {
	return &pollingTrigger{
		clock:    clock,
		interval: interval,
		check:    check,
		logger:   logger.With("interval", interval),
	}
}

func (t *pollingTrigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := t.clock.NewTicker(t.interval)

	t.mu.Lock()
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return
			case now := <-ticker.Chan():
				t.poll(pollCtx, now, callback)
			}
		}
	}()

	return nil
}

func (t *pollingTrigger) poll(ctx context.Context, now time.Time, callback protocol.TriggerCallback) {
	payload, commit, err := t.check(ctx, now)
	if err != nil {
		t.logger.ErrorContext(ctx, "Polling query failed", "error", err)

		return
	}

	if payload == nil {
		return
	}

	payload["checked_at"] = now.UTC().Format(time.RFC3339)

	err = callback(ctx, now.UTC().Format(time.RFC3339Nano), payload)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to handle polling result", "error", err)

		return
	}

	if commit != nil {
		commit()
	}
}

func (t *pollingTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel = nil
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dueSoonCheck fires on every poll while items are due within "days" days.
func dueSoonCheck(source DataSource, params map[string]any) (pollCheck, error) {
	name, err := stringParam(params, "source")
	if err != nil {
		return nil, err
	}

	days, err := intParam(params, "days")
	if err != nil {
		return nil, err
	}

	if days < 0 {
		return nil, fmt.Errorf("%w: days must not be negative", ErrInvalidParameter)
	}

	return func(ctx context.Context, now time.Time) (map[string]any, func(), error) {
		items, err := source.DueItems(ctx, name, now, now.AddDate(0, 0, days))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to query due items of %s: %w", name, err)
		}

		if len(items) == 0 {
			return nil, nil, nil
		}

		return map[string]any{
			"source": name,
			"days":   days,
			"count":  len(items),
			"items":  items,
		}, nil, nil
	}, nil
}

const (
	FireModeTransition    = "transition"
	FireModeEveryInterval = "every_interval"
)

// thresholdCheck compares a monthly aggregate with a threshold. In transition mode it fires only
// when the condition starts holding; in every_interval mode it fires on each poll while it holds.
func thresholdCheck(source DataSource, params map[string]any) (pollCheck, error) {
	metric, err := stringParam(params, "metric")
	if err != nil {
		return nil, err
	}

	threshold, ok := toFloat(params["threshold"])
	if !ok {
		return nil, fmt.Errorf("%w: threshold must be a number", ErrInvalidParameter)
	}

	comparison := optionalStringParam(params, "comparison", "above")
	if comparison != "above" && comparison != "below" {
		return nil, fmt.Errorf("%w: comparison must be above or below", ErrInvalidParameter)
	}

	mode := optionalStringParam(params, "fire_mode", FireModeTransition)
	if mode != FireModeTransition && mode != FireModeEveryInterval {
		return nil, fmt.Errorf("%w: fire_mode must be %s or %s", ErrInvalidParameter, FireModeTransition, FireModeEveryInterval)
	}

	var (
		mu      sync.Mutex
		holding bool
	)

	return func(ctx context.Context, now time.Time) (map[string]any, func(), error) {
		value, err := source.MonthlyAggregate(ctx, metric, now)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to query %s: %w", metric, err)
		}

		holds := value > threshold
		if comparison == "below" {
			holds = value < threshold
		}

		mu.Lock()
		crossed := holds && !holding

		// A crossing is only remembered once it has been handled.
		if !holds || mode == FireModeEveryInterval {
			holding = holds
		}
		mu.Unlock()

		if !holds || (mode == FireModeTransition && !crossed) {
			return nil, nil, nil
		}

		payload := map[string]any{
			"metric":     metric,
			"value":      value,
			"threshold":  threshold,
			"comparison": comparison,
			"month":      now.Format("2006-01"),
		}

		if mode == FireModeEveryInterval {
			return payload, nil, nil
		}

		return payload, func() {
			mu.Lock()
			holding = true
			mu.Unlock()
		}, nil
	}, nil
}
