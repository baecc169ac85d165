package matcher

import (
	"context"
	"fmt"
	"sort"

	"github.com/example/autoride/internal/models"
)

type Rides interface {
	ListByStatus(ctx context.Context, status models.RideStatus) ([]models.Ride, error)
}

type Drivers interface {
	Get(ctx context.Context, id string) (models.Driver, error)
	Locations(ctx context.Context) ([]models.DriverLocation, error)
}

const defaultDriverLimit = 5

// Service answers eligibility questions from the current state of the ride
// ledger and driver directory. Nothing is cached between calls.
type Service struct {
	Rides       Rides
	Drivers     Drivers
	DriverLimit int // used when the caller passes limit <= 0
}

// PendingRidesFor returns the pending rides a driver may accept: those picked
// up in the driver's zone, or every pending ride for a wildcard driver.
func (s *Service) PendingRidesFor(ctx context.Context, driverID string) ([]models.Ride, error) {
	drv, err := s.Drivers.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}
	pending, err := s.Rides.ListByStatus(ctx, models.RidePending)
	if err != nil {
		return nil, fmt.Errorf("list pending rides: %w", err)
	}
	out := make([]models.Ride, 0, len(pending))
	for _, r := range pending {
		if drv.ServesZone(r.Pickup.ZoneID) {
			out = append(out, r)
		}
	}
	return out, nil
}

// PendingRidesInZone returns pending rides picked up in zoneID, or all of them
// for the wildcard.
func (s *Service) PendingRidesInZone(ctx context.Context, zoneID string) ([]models.Ride, error) {
	pending, err := s.Rides.ListByStatus(ctx, models.RidePending)
	if err != nil {
		return nil, fmt.Errorf("list pending rides: %w", err)
	}
	if zoneID == "" || zoneID == models.AllZones {
		return pending, nil
	}
	out := pending[:0]
	for _, r := range pending {
		if r.Pickup.ZoneID == zoneID {
			out = append(out, r)
		}
	}
	return out, nil
}

// AvailableDriversFor lists available drivers whose zone is exactly zoneID
// (every driver for the wildcard), ordered by driver id and capped at limit.
func (s *Service) AvailableDriversFor(ctx context.Context, zoneID string, limit int) ([]models.DriverLocation, error) {
	if limit <= 0 {
		limit = s.DriverLimit
	}
	if limit <= 0 {
		limit = defaultDriverLimit
	}
	locs, err := s.Drivers.Locations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list driver locations: %w", err)
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i].DriverID < locs[j].DriverID })
	out := make([]models.DriverLocation, 0, limit)
	for _, l := range locs {
		if l.Status != models.DriverAvailable {
			continue
		}
		if zoneID != models.AllZones && l.ZoneID != zoneID {
			continue
		}
		out = append(out, l)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
