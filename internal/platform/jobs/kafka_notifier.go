package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/easyorder/quickorder/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaOrderNotifier writes order-placed events to a Kafka topic keyed by order id.
type KafkaOrderNotifier struct {
	writer messageWriter
	newID  func() string
}

// NewKafkaOrderNotifier constructs a notifier writing to topic on the given brokers.
func NewKafkaOrderNotifier(brokers []string, topic string) (*KafkaOrderNotifier, error) {
	addrs := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			addrs = append(addrs, broker)
		}
	}
	if len(addrs) == 0 {
		return nil, errors.New("kafka order notifier: at least one broker is required")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("kafka order notifier: topic is required")
	}
	return &KafkaOrderNotifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(addrs...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		newID: defaultEventID,
	}, nil
}

// NotifyOrderPlaced writes the event synchronously.
func (k *KafkaOrderNotifier) NotifyOrderPlaced(ctx context.Context, event domain.OrderPlacedEvent) error {
	if k == nil || k.writer == nil {
		return errors.New("kafka order notifier: not initialised")
	}
	data, attrs, err := encodeMessage(newOrderPlacedMessage(k.newID, event))
	if err != nil {
		return fmt.Errorf("marshal order placed event: %w", err)
	}
	headers := make([]kafka.Header, 0, len(attrs))
	for _, key := range []string{"eventId", "eventType", "storeId"} {
		if value, ok := attrs[key]; ok {
			headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
		}
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(event.OrderID),
		Value:   data,
		Headers: headers,
	}); err != nil {
		return fmt.Errorf("write order placed event: %w", err)
	}
	return nil
}

// Close flushes pending writes and releases the broker connections.
func (k *KafkaOrderNotifier) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
