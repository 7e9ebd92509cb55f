// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	goccyjson "github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/waymark/internal/config"
	"github.com/tomtom215/waymark/internal/database"
	"github.com/tomtom215/waymark/internal/logging"
	"github.com/tomtom215/waymark/internal/metrics"
)

const publishTimeout = 5 * time.Second

// NATSBus carries change events over NATS JetStream via Watermill. Publishes
// run behind a circuit breaker so a broker outage sheds load instead of
// piling up blocked mutation paths.
type NATSBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	breaker    *gobreaker.CircuitBreaker[any]

	mu     sync.Mutex
	closed bool
}

// NewNATSBus connects a Watermill publisher and subscriber to the given NATS
// URL, provisioning the stream on first use.
func NewNATSBus(cfg *config.FeedConfig, url string) (*NATSBus, error) {
	logger := newWatermillLogger()

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create feed publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:            url,
		NatsOptions:    natsOpts,
		Unmarshaler:    &wmNats.NATSMarshaler{},
		AckWaitTimeout: 30 * time.Second,
		CloseTimeout:   10 * time.Second,
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.DeliverNew(),
			},
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create feed subscriber: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "feed-publish",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &NATSBus{
		publisher:  pub,
		subscriber: sub,
		breaker:    breaker,
	}, nil
}

// Publish sends one change event. Failures are logged and counted; the
// caller's mutation has already committed, so the fallback poll covers any
// consumer that misses this cue.
func (b *NATSBus) Publish(ctx context.Context, event database.ChangeEvent) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("feed bus is closed")
	}
	b.mu.Unlock()

	payload, err := goccyjson.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", event.Type)

	_, err = b.breaker.Execute(func() (any, error) {
		return nil, b.publisher.Publish(Topic, msg)
	})
	metrics.RecordFeedPublish(event.Type, err)
	if err != nil {
		logging.Warn().Err(err).Str("event_type", event.Type).Msg("Failed to publish change event")
		return fmt.Errorf("publish change event: %w", err)
	}

	return nil
}

// Subscribe returns decoded change events until ctx is canceled. Messages
// that fail to decode are acked and dropped; a malformed cue is still a cue,
// but carrying no event type it cannot be routed.
func (b *NATSBus) Subscribe(ctx context.Context) (<-chan database.ChangeEvent, error) {
	messages, err := b.subscriber.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to change feed: %w", err)
	}

	events := make(chan database.ChangeEvent)
	go forwardEvents(ctx, messages, events)
	return events, nil
}

// Close shuts down the publisher and subscriber.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	pubErr := b.publisher.Close()
	subErr := b.subscriber.Close()
	if pubErr != nil {
		return pubErr
	}
	return subErr
}

// forwardEvents decodes Watermill messages into change events.
func forwardEvents(ctx context.Context, messages <-chan *message.Message, events chan<- database.ChangeEvent) {
	defer close(events)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event database.ChangeEvent
			if err := goccyjson.Unmarshal(msg.Payload, &event); err != nil {
				logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable change event")
				msg.Ack()
				continue
			}
			msg.Ack()

			metrics.FeedNotificationsReceived.WithLabelValues(event.Type).Inc()

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
