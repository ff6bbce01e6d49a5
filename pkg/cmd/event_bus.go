package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/ledgerflow/pkg/changefeed"
	"github.com/dukex/ledgerflow/pkg/channels/gochannel"
	"github.com/dukex/ledgerflow/pkg/channels/kafka"
	"github.com/dukex/ledgerflow/pkg/eventbus"
)

var ErrUnsupportedTransport = errors.New("unsupported transport")

// TransportConfig selects the message transport shared by execution events and the change-feed.
type TransportConfig struct {
	// Provider is "gochannel" (in-process) or "kafka".
	Provider    string
	Brokers     string
	ServiceName string
	OTELEnabled bool
}

// Transport is one publisher/subscriber pair.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes both sides. The in-process channel is a single instance and is closed once.
func (t *Transport) Close() error {
	err := t.Publisher.Close()

	if any(t.Subscriber) != any(t.Publisher) {
		err = errors.Join(err, t.Subscriber.Close())
	}

	return err
}

func NewTransport(config TransportConfig, logger *slog.Logger) (*Transport, error) {
	wlogger := watermill.NewSlogLogger(logger)

	switch config.Provider {
	case "", "gochannel":
		pub, sub, err := gochannel.CreateChannel(wlogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-process pub/sub: %w", err)
		}

		return &Transport{Publisher: pub, Subscriber: sub}, nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wlogger, kafka.ParseBrokers(config.Brokers), config.ServiceName, config.OTELEnabled)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return &Transport{Publisher: pub, Subscriber: sub}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTransport, config.Provider)
	}
}

// NewEventBus carries execution and trigger events over the transport.
func NewEventBus(transport *Transport) eventbus.EventBus {
	return eventbus.NewWatermillEventBus(transport.Publisher, transport.Subscriber)
}

// NewChangeFeed carries record changes over the transport.
func NewChangeFeed(transport *Transport, logger *slog.Logger) *changefeed.WatermillFeed {
	return changefeed.NewWatermillFeed(logger, transport.Publisher, transport.Subscriber)
}
