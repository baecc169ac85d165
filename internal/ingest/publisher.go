// Package ingest moves ride events and driver locations onto message brokers.
package ingest

import (
	"context"

	"github.com/example/autoride/internal/models"
)

// EventPublisher delivers ride events to a broker.
type EventPublisher interface {
	PublishRideEvent(ctx context.Context, ev models.RideEvent) error
	Close() error
}
