package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/ledgerflow/pkg/protocol"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

// nextFunc returns the first occurrence strictly after the given time, or false when there is
// none left.
type nextFunc func(after time.Time) (time.Time, bool)

// timerTrigger arms one timer at a time and re-arms it after each firing.
type timerTrigger struct {
	clock  clockwork.Clock
	next   nextFunc
	logger *slog.Logger

	mu      sync.Mutex
	timer   clockwork.Timer
	stopped bool
}

func newTimerTrigger(clock clockwork.Clock, next nextFunc, logger *slog.Logger) *timerTrigger {
	return &timerTrigger{clock: clock, next: next, logger: logger}
}

func (t *timerTrigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = false
	t.arm(ctx, t.clock.Now(), callback)

	return nil
}

// arm must be called with t.mu held.
func (t *timerTrigger) arm(ctx context.Context, after time.Time, callback protocol.TriggerCallback) {
	at, ok := t.next(after)
	if !ok {
		t.timer = nil
		t.logger.InfoContext(ctx, "No upcoming occurrence, schedule finished")

		return
	}

	delay := at.Sub(t.clock.Now())
	if delay < 0 {
		delay = 0
	}

	t.logger.DebugContext(ctx, "Scheduled next occurrence", "at", at)

	t.timer = t.clock.AfterFunc(delay, func() {
		t.fire(ctx, at, callback)
	})
}

func (t *timerTrigger) fire(ctx context.Context, at time.Time, callback protocol.TriggerCallback) {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()

	if stopped {
		return
	}

	payload := map[string]any{
		"scheduled_at": at.UTC().Format(time.RFC3339),
		"fired_at":     t.clock.Now().UTC().Format(time.RFC3339),
	}

	err := callback(ctx, at.UTC().Format(time.RFC3339), payload)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to handle scheduled occurrence", "at", at, "error", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.stopped {
		t.arm(ctx, at, callback)
	}
}

func (t *timerTrigger) Stop(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}

	return nil
}

// onceSchedule fires at the "at" timestamp. A timestamp already in the past never fires, so a
// restart does not repeat it.
func onceSchedule(params map[string]any) (nextFunc, error) {
	raw, err := stringParam(params, "at")
	if err != nil {
		return nil, err
	}

	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: at: %w", ErrInvalidParameter, err)
	}

	return func(after time.Time) (time.Time, bool) {
		return at, at.After(after)
	}, nil
}

// monthlySchedule fires on "day" at "time" every month. Days past the end of a shorter month run
// on its last day.
func monthlySchedule(params map[string]any) (nextFunc, error) {
	day, err := intParam(params, "day")
	if err != nil {
		return nil, err
	}

	if day < 1 || day > 31 {
		return nil, fmt.Errorf("%w: day must be between 1 and 31", ErrInvalidParameter)
	}

	clock, err := time.Parse("15:04", optionalStringParam(params, "time", "09:00"))
	if err != nil {
		return nil, fmt.Errorf("%w: time: %w", ErrInvalidParameter, err)
	}

	loc, err := locationParam(params)
	if err != nil {
		return nil, err
	}

	return func(after time.Time) (time.Time, bool) {
		return NextMonthly(after, day, clock.Hour(), clock.Minute(), loc), true
	}, nil
}

// NextMonthly returns the first "day N at hour:minute" in loc strictly after the given time,
// rolling to the next month when this month's occurrence has passed.
func NextMonthly(after time.Time, day, hour, minute int, loc *time.Location) time.Time {
	local := after.In(loc)

	candidate := monthlyOccurrence(local.Year(), local.Month(), day, hour, minute, loc)
	if candidate.After(after) {
		return candidate
	}

	return monthlyOccurrence(local.Year(), local.Month()+1, day, hour, minute, loc)
}

func monthlyOccurrence(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)

	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}

	return time.Date(first.Year(), first.Month(), day, hour, minute, 0, 0, loc)
}

func cronSchedule(params map[string]any) (nextFunc, error) {
	expr, err := stringParam(params, "cron")
	if err != nil {
		return nil, err
	}

	if tz := optionalStringParam(params, "timezone", ""); tz != "" {
		expr = "CRON_TZ=" + tz + " " + expr
	}

	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cron expression: %w", ErrInvalidParameter, err)
	}

	return func(after time.Time) (time.Time, bool) {
		next := schedule.Next(after)

		return next, !next.IsZero()
	}, nil
}
