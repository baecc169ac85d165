package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/example/autoride/internal/models"
)

type fakeRides struct{ rides []models.Ride }

func (f *fakeRides) ListByStatus(_ context.Context, status models.RideStatus) ([]models.Ride, error) {
	var out []models.Ride
	for _, r := range f.rides {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeDrivers struct {
	drivers map[string]models.Driver
	locs    []models.DriverLocation
}

func (f *fakeDrivers) Get(_ context.Context, id string) (models.Driver, error) {
	d, ok := f.drivers[id]
	if !ok {
		return models.Driver{}, models.ErrNotFound
	}
	return d, nil
}

func (f *fakeDrivers) Locations(context.Context) ([]models.DriverLocation, error) {
	return append([]models.DriverLocation(nil), f.locs...), nil
}

func ride(id, zone string, status models.RideStatus) models.Ride {
	return models.Ride{ID: id, Pickup: models.Location{ZoneID: zone}, Status: status}
}

func TestPendingRidesRespectZoneAffinity(t *testing.T) {
	s := &Service{
		Rides: &fakeRides{rides: []models.Ride{
			ride("r1", "mahalaxmi", models.RidePending),
			ride("r2", "rankala", models.RidePending),
			ride("r3", "mahalaxmi", models.RideDriverAssigned),
		}},
		Drivers: &fakeDrivers{drivers: map[string]models.Driver{
			"any":  {ID: "any", ZoneID: models.AllZones},
			"maha": {ID: "maha", ZoneID: "mahalaxmi"},
		}},
	}
	ctx := context.Background()

	all, err := s.PendingRidesFor(ctx, "any")
	if err != nil {
		t.Fatalf("wildcard: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("wildcard driver should see both pending rides, got %d", len(all))
	}

	maha, err := s.PendingRidesFor(ctx, "maha")
	if err != nil {
		t.Fatalf("mahalaxmi: %v", err)
	}
	if len(maha) != 1 || maha[0].ID != "r1" {
		t.Fatalf("mahalaxmi driver should see only r1, got %+v", maha)
	}

	if _, err := s.PendingRidesFor(ctx, "ghost"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPendingRidesInZone(t *testing.T) {
	s := &Service{Rides: &fakeRides{rides: []models.Ride{
		ride("r1", "mahalaxmi", models.RidePending),
		ride("r2", "rankala", models.RidePending),
	}}}
	got, _ := s.PendingRidesInZone(context.Background(), "rankala")
	if len(got) != 1 || got[0].ID != "r2" {
		t.Fatalf("expected r2, got %+v", got)
	}
	got, _ = s.PendingRidesInZone(context.Background(), "")
	if len(got) != 2 {
		t.Fatalf("expected every pending ride, got %d", len(got))
	}
}

func TestAvailableDriversFor(t *testing.T) {
	var locs []models.DriverLocation
	for _, id := range []string{"h", "g", "f", "e", "d", "c", "b"} {
		locs = append(locs, models.DriverLocation{DriverID: id, ZoneID: "sykes", Status: models.DriverAvailable})
	}
	locs = append(locs,
		models.DriverLocation{DriverID: "a", ZoneID: "sykes", Status: models.DriverBusy},
		models.DriverLocation{DriverID: "x", ZoneID: "rankala", Status: models.DriverAvailable},
		models.DriverLocation{DriverID: "w", ZoneID: models.AllZones, Status: models.DriverAvailable},
	)
	s := &Service{Drivers: &fakeDrivers{locs: locs}}
	ctx := context.Background()

	got, err := s.AvailableDriversFor(ctx, "sykes", 0)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(got) != defaultDriverLimit {
		t.Fatalf("expected default cap %d, got %d", defaultDriverLimit, len(got))
	}
	if got[0].DriverID != "b" || got[4].DriverID != "f" {
		t.Fatalf("expected id order b..f, got %+v", got)
	}

	got, _ = s.AvailableDriversFor(ctx, "rankala", 10)
	if len(got) != 1 || got[0].DriverID != "x" {
		t.Fatalf("expected only x in rankala, got %+v", got)
	}

	got, _ = s.AvailableDriversFor(ctx, models.AllZones, 100)
	if len(got) != 9 {
		t.Fatalf("expected every available driver, got %d", len(got))
	}

	s.DriverLimit = 2
	got, _ = s.AvailableDriversFor(ctx, models.AllZones, 0)
	if len(got) != 2 {
		t.Fatalf("expected configured limit 2, got %d", len(got))
	}
}
