package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const subscriptionBuffer = 64

// WatermillFeed carries changes over a watermill pub/sub. Each source is consumed by a single
// underlying subscription that fans out to the local subscribers of that source.
type WatermillFeed struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger

	mu      sync.Mutex
	sources map[string]*sourceHub
}

func NewWatermillFeed(logger *slog.Logger, publisher message.Publisher, subscriber message.Subscriber) *WatermillFeed {
	return &WatermillFeed{
		publisher:  publisher,
		subscriber: subscriber,
		logger:     logger.With("module", "changefeed"),
		sources:    make(map[string]*sourceHub),
	}
}

// Publish sends a change to the subscribers of its source. Missing id and time are filled in.
func (f *WatermillFeed) Publish(ctx context.Context, change Change) error {
	if change.Source == "" {
		return ErrSourceRequired
	}

	if change.ID == "" {
		change.ID = uuid.NewString()
	}

	if change.OccurredAt.IsZero() {
		change.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	err = f.publisher.Publish(Topic(change.Source), msg)
	if err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}

	return nil
}

// Subscribe starts delivering changes that match filter and predicate. The subscription ends
// when ctx is done or Close is called.
func (f *WatermillFeed) Subscribe(ctx context.Context, filter Filter, predicate Predicate) (Subscription, error) {
	if filter.Source == "" {
		return nil, ErrSourceRequired
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	hub, ok := f.sources[filter.Source]
	if !ok {
		var err error

		hub, err = f.startHub(filter.Source)
		if err != nil {
			return nil, err
		}

		f.sources[filter.Source] = hub
	}

	sub := &subscription{
		filter:    filter,
		predicate: predicate,
		events:    make(chan Change, subscriptionBuffer),
		done:      make(chan struct{}),
	}
	sub.release = func() { f.remove(hub, sub) }

	hub.add(sub)

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

func (f *WatermillFeed) startHub(source string) (*sourceHub, error) {
	ctx, cancel := context.WithCancel(context.Background())

	messages, err := f.subscriber.Subscribe(ctx, Topic(source))
	if err != nil {
		cancel()

		return nil, fmt.Errorf("failed to subscribe to %s: %w", Topic(source), err)
	}

	hub := &sourceHub{
		source: source,
		cancel: cancel,
		subs:   make(map[*subscription]struct{}),
		logger: f.logger.With("source", source),
	}

	go hub.dispatch(messages)

	f.logger.Info("Change-feed source opened", "source", source)

	return hub, nil
}

func (f *WatermillFeed) remove(hub *sourceHub, sub *subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if hub.remove(sub) > 0 {
		return
	}

	if f.sources[hub.source] == hub {
		delete(f.sources, hub.source)
	}

	hub.cancel()

	f.logger.Info("Change-feed source closed", "source", hub.source)
}

type sourceHub struct {
	source string
	cancel context.CancelFunc
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

func (h *sourceHub) add(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subs[sub] = struct{}{}
}

func (h *sourceHub) remove(sub *subscription) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs, sub)

	return len(h.subs)
}

func (h *sourceHub) snapshot() []*subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make([]*subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}

	return subs
}

func (h *sourceHub) dispatch(messages <-chan *message.Message) {
	for msg := range messages {
		var change Change

		err := json.Unmarshal(msg.Payload, &change)
		if err != nil {
			h.logger.Error("Dropping malformed change", "message_id", msg.UUID, "error", err)
			msg.Ack()

			continue
		}

		for _, sub := range h.snapshot() {
			sub.deliver(change)
		}

		msg.Ack()
	}
}

type subscription struct {
	filter    Filter
	predicate Predicate
	events    chan Change
	done      chan struct{}
	release   func()

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func (s *subscription) Events() <-chan Change {
	return s.events
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)

		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()

		s.release()
	})

	return nil
}

func (s *subscription) deliver(change Change) {
	if !s.filter.Matches(change) {
		return
	}

	if s.predicate != nil && !s.predicate(change) {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}

	select {
	case s.events <- change:
	case <-s.done:
	}
}
