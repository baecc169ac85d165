package ingest

import (
	"context"
	"log/slog"

	"github.com/example/autoride/internal/models"
)

// LocationPublisher writes one driver position to the location stream.
type LocationPublisher interface {
	PublishLocation(ctx context.Context, loc models.DriverLocation) error
}

// LocationForwarder queues driver positions for the location stream so a
// slow broker never holds up the report path.
type LocationForwarder struct {
	q *queue[models.DriverLocation]
}

// NewLocationForwarder starts the worker. The publisher is shared with other
// users and is not closed by Close.
func NewLocationForwarder(pub LocationPublisher, broker string, size int, log *slog.Logger) *LocationForwarder {
	if log == nil {
		log = slog.Default()
	}
	return &LocationForwarder{q: newQueue(broker, "locations", size, pub.PublishLocation, func(loc models.DriverLocation, err error) {
		log.Warn("publish location failed", "broker", broker, "driver_id", loc.DriverID, "error", err)
	})}
}

// PublishLocation enqueues loc and returns immediately. Delivery runs under
// its own timeout, detached from ctx.
func (f *LocationForwarder) PublishLocation(_ context.Context, loc models.DriverLocation) error {
	return f.q.push(loc)
}

// Close flushes queued positions.
func (f *LocationForwarder) Close() error {
	f.q.close()
	return nil
}
