// Package notify delivers best-effort notifications about marketplace events
// over a watermill pub/sub.
package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const EventOrderCreated = "order.created"

// OrderCreated is emitted once per successfully reserved order
type OrderCreated struct {
	OrderID       uuid.UUID `json:"order_id"`
	BuyerUsername string    `json:"buyer_username"`
	ItemTitle     string    `json:"item_title"`
}

// Sink accepts notifications. Implementations must not block the caller and
// never report delivery failures back.
type Sink interface {
	NotifyOrderCreated(ctx context.Context, event OrderCreated)
}

// Publisher is a Sink that publishes events to a watermill topic
type Publisher struct {
	publisher message.Publisher
	topic     string
	logger    *zap.Logger
	inflight  sync.WaitGroup
}

// NewPublisher creates a Publisher writing to topic
func NewPublisher(publisher message.Publisher, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

// NotifyOrderCreated publishes the event on its own goroutine
func (p *Publisher) NotifyOrderCreated(_ context.Context, event OrderCreated) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to encode notification", zap.Error(err))
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event_type", EventOrderCreated)
	msg.Metadata.Set("order_id", event.OrderID.String())

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		if err := p.publisher.Publish(p.topic, msg); err != nil {
			p.logger.Warn("Failed to publish notification",
				zap.Error(err),
				zap.String("order_id", event.OrderID.String()),
			)
		}
	}()
}

// Wait blocks until every publish started so far has returned
func (p *Publisher) Wait() {
	p.inflight.Wait()
}

// Discard is a Sink that drops every event
type Discard struct{}

func (Discard) NotifyOrderCreated(context.Context, OrderCreated) {}
