package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/shopkit/order-fulfillment/internal/messaging"
)

// Broker publishes and consumes events on Kafka. Writers are created lazily
// per topic and reused until Close.
type Broker struct {
	brokers []string

	mu      sync.Mutex
	writers map[string]*kafkaGo.Writer
}

var (
	_ messaging.Publisher  = (*Broker)(nil)
	_ messaging.Subscriber = (*Broker)(nil)
)

// NewKafkaBroker creates a Kafka publisher and subscriber.
func NewKafkaBroker(brokers []string) *Broker {
	return &Broker{
		brokers: brokers,
		writers: make(map[string]*kafkaGo.Writer),
	}
}

func (k *Broker) writer(topic string) *kafkaGo.Writer {
	k.mu.Lock()
	defer k.mu.Unlock()

	w, ok := k.writers[topic]
	if !ok {
		w = &kafkaGo.Writer{
			Addr:     kafkaGo.TCP(k.brokers...),
			Topic:    topic,
			Balancer: &kafkaGo.LeastBytes{},
		}
		k.writers[topic] = w
	}
	return w
}

func (k *Broker) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return k.writer(topic).WriteMessages(ctx, kafkaGo.Message{
		Key:   []byte(key),
		Value: payload,
	})
}

func (k *Broker) Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error) {
	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers: k.brokers,
		Topic:   topic,
		GroupID: groupID,
	})
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Consumer shutting down", "topic", topic)
				return
			}
			slog.Error("Error reading message", "topic", topic, "err", err)
			continue
		}

		if err := handler(ctx, msg.Value); err != nil {
			slog.Error("Error handling message", "topic", topic, "err", err)
		}
	}
}

// Close flushes and closes every topic writer. Safe to call once at
// shutdown; the broker must not be used afterwards.
func (k *Broker) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var firstErr error
	for topic, w := range k.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close writer for topic %s: %w", topic, err)
		}
	}
	k.writers = make(map[string]*kafkaGo.Writer)
	return firstErr
}
