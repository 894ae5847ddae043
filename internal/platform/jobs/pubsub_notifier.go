package jobs

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/easyorder/quickorder/internal/domain"
)

// PubSubOrderNotifier publishes order-placed events to a Pub/Sub topic.
type PubSubOrderNotifier struct {
	topic *pubsub.Topic
	newID func() string
}

// NewPubSubOrderNotifier constructs a Pub/Sub backed order notifier.
func NewPubSubOrderNotifier(topic *pubsub.Topic) (*PubSubOrderNotifier, error) {
	if topic == nil {
		return nil, errors.New("pubsub order notifier: topic is required")
	}
	topic.EnableMessageOrdering = true
	return &PubSubOrderNotifier{topic: topic, newID: defaultEventID}, nil
}

// NotifyOrderPlaced publishes the event and waits for the server acknowledgement.
// Messages of one store share an ordering key.
func (p *PubSubOrderNotifier) NotifyOrderPlaced(ctx context.Context, event domain.OrderPlacedEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order notifier: not initialised")
	}
	data, attrs, err := encodeMessage(newOrderPlacedMessage(p.newID, event))
	if err != nil {
		return fmt.Errorf("marshal order placed event: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  attrs,
		OrderingKey: event.StoreID,
	})
	if _, err := result.Get(ctx); err != nil {
		p.topic.ResumePublish(event.StoreID)
		return fmt.Errorf("publish order placed event: %w", err)
	}
	return nil
}
