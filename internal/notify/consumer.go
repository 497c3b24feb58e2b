package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Consumer receives published notifications and hands them to the user-facing
// channel. Delivery is a structured log line for now.
type Consumer struct {
	subscriber message.Subscriber
	topic      string
	logger     *zap.Logger
}

// NewConsumer creates a Consumer reading topic
func NewConsumer(subscriber message.Subscriber, topic string, logger *zap.Logger) *Consumer {
	return &Consumer{
		subscriber: subscriber,
		topic:      topic,
		logger:     logger,
	}
}

// Run consumes until ctx is cancelled or the subscription closes
func (c *Consumer) Run(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			c.deliver(msg)
		}
	}
}

func (c *Consumer) deliver(msg *message.Message) {
	// malformed payloads are acked too, redelivery would not fix them
	defer msg.Ack()

	if msg.Metadata.Get("event_type") != EventOrderCreated {
		c.logger.Debug("Ignoring notification", zap.String("event_type", msg.Metadata.Get("event_type")))
		return
	}

	var event OrderCreated
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		c.logger.Error("Failed to decode notification", zap.Error(err), zap.String("message_id", msg.UUID))
		return
	}

	c.logger.Info("Order created notification",
		zap.String("order_id", event.OrderID.String()),
		zap.String("buyer", event.BuyerUsername),
		zap.String("item", event.ItemTitle),
	)
}
