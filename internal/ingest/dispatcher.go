package ingest

import (
	"errors"
	"log/slog"

	"github.com/example/autoride/internal/models"
)

// Dispatcher decouples ride operations from broker latency. Notify never
// blocks: events are queued for a single worker and dropped when the queue
// is full.
type Dispatcher struct {
	pub EventPublisher
	log *slog.Logger
	q   *queue[models.RideEvent]
}

// NewDispatcher starts the worker. broker labels the metrics.
func NewDispatcher(pub EventPublisher, broker string, size int, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{pub: pub, log: log}
	d.q = newQueue(broker, "rides", size, pub.PublishRideEvent, func(ev models.RideEvent, err error) {
		log.Error("publish ride event failed", "broker", broker, "ride_id", ev.RideID, "type", ev.Type, "error", err)
	})
	return d
}

func (d *Dispatcher) Notify(ev models.RideEvent) {
	if err := d.q.push(ev); errors.Is(err, ErrQueueFull) {
		d.log.Warn("event queue full, dropping", "ride_id", ev.RideID, "type", ev.Type)
	}
}

// Close drains the queue, stops the worker and closes the publisher.
func (d *Dispatcher) Close() error {
	if !d.q.close() {
		return nil
	}
	return d.pub.Close()
}
