package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/autoride/internal/models"
)

const (
	writeTimeout = 2 * time.Second
	// kafka-go waits up to BatchTimeout (1s by default) for a batch to fill
	// before a synchronous WriteMessages returns.
	batchTimeout = 10 * time.Millisecond
)

// KafkaProducer writes driver locations and ride events to two topics. The
// location topic feeds cmd/consumer, which keeps the Redis index current.
type KafkaProducer struct {
	locations *kafka.Writer
	rides     *kafka.Writer
}

func NewKafkaProducer(brokers []string, locationTopic, rideTopic string) *KafkaProducer {
	k := &KafkaProducer{}
	if locationTopic != "" {
		k.locations = newWriter(brokers, locationTopic)
	}
	if rideTopic != "" {
		k.rides = newWriter(brokers, rideTopic)
	}
	return k
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
	}
}

// PublishLocation is keyed by driver id so a driver's reports stay ordered.
func (k *KafkaProducer) PublishLocation(ctx context.Context, loc models.DriverLocation) error {
	if k.locations == nil {
		return nil
	}
	return write(ctx, k.locations, loc.DriverID, loc)
}

// PublishRideEvent is keyed by ride id.
func (k *KafkaProducer) PublishRideEvent(ctx context.Context, ev models.RideEvent) error {
	if k.rides == nil {
		return nil
	}
	return write(ctx, k.rides, ev.RideID, ev)
}

func write(ctx context.Context, w *kafka.Writer, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", w.Topic, err)
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b})
}

func (k *KafkaProducer) Close() error {
	var errs []error
	for _, w := range []*kafka.Writer{k.locations, k.rides} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
