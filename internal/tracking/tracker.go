// Package tracking is the single entry point for driver position reports,
// whether they arrive over REST or the realtime socket.
package tracking

import (
	"context"
	"log/slog"

	"github.com/example/autoride/internal/models"
)

type Directory interface {
	ReportLocation(ctx context.Context, id string, lat, lng float64, rideID string) (models.DriverLocation, error)
}

type Rides interface {
	AssignedTo(ctx context.Context, rideID, driverID string) error
}

type Broadcaster interface {
	PublishLocation(driverID string, lat, lng float64, rideID string) int
}

// Forwarder hands accepted reports to the location stream. Failures are
// logged and never reject the report.
type Forwarder interface {
	PublishLocation(ctx context.Context, loc models.DriverLocation) error
}

type Tracker struct {
	Directory Directory
	Rides     Rides
	Gateway   Broadcaster
	Forward   Forwarder // optional
	Log       *slog.Logger
}

// Report records a driver position. A non-empty rideID must name a ride
// assigned to driverID.
func (t *Tracker) Report(ctx context.Context, driverID string, lat, lng float64, rideID string) (models.DriverLocation, error) {
	if rideID != "" {
		if err := t.Rides.AssignedTo(ctx, rideID, driverID); err != nil {
			return models.DriverLocation{}, err
		}
	}
	loc, err := t.Directory.ReportLocation(ctx, driverID, lat, lng, rideID)
	if err != nil {
		return models.DriverLocation{}, err
	}
	if t.Gateway != nil {
		t.Gateway.PublishLocation(driverID, lat, lng, rideID)
	}
	if t.Forward != nil {
		if err := t.Forward.PublishLocation(ctx, loc); err != nil {
			t.logger().Warn("forward location failed", "driver_id", driverID, "error", err)
		}
	}
	return loc, nil
}

func (t *Tracker) logger() *slog.Logger {
	if t.Log != nil {
		return t.Log
	}
	return slog.Default()
}
