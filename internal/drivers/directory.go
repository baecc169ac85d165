package drivers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/autoride/internal/geo"
	"github.com/example/autoride/internal/models"
	"github.com/example/autoride/internal/observability"
	"github.com/example/autoride/internal/storage"
)

// Zones is the catalog lookup used to validate zone affinity.
type Zones interface {
	Get(id string) (models.Zone, error)
}

// Directory owns driver records and their last known positions. Driver
// records change only through UpdateStatus and RecordCompletion; Register
// exists for onboarding and seeding.
type Directory struct {
	mu    sync.Mutex // serializes read-modify-write on driver records
	store storage.DriverStore
	locs  geo.LocationIndex
	zones Zones
	log   *slog.Logger
	now   func() time.Time
}

func New(store storage.DriverStore, locs geo.LocationIndex, zones Zones, log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{store: store, locs: locs, zones: zones, log: log, now: time.Now}
}

// Register inserts or replaces a driver and refreshes its location snapshot.
func (d *Directory) Register(ctx context.Context, drv models.Driver) (models.Driver, error) {
	if drv.ID == "" {
		drv.ID = uuid.NewString()
	}
	if drv.Status == "" {
		drv.Status = models.DriverAvailable
	}
	if !drv.Status.Valid() {
		return models.Driver{}, fmt.Errorf("%w: driver status %q", models.ErrInvalidInput, drv.Status)
	}
	if err := d.checkZone(drv.ZoneID); err != nil {
		return models.Driver{}, err
	}
	if drv.AutoNumber == "" {
		drv.AutoNumber = drv.VehicleNumber
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if drv.CreatedAt.IsZero() {
		drv.CreatedAt = now
	}
	drv.UpdatedAt = now
	if err := d.store.Put(ctx, drv.ID, drv); err != nil {
		return models.Driver{}, fmt.Errorf("store driver %s: %w", drv.ID, err)
	}
	if err := d.refreshLocation(ctx, drv); err != nil {
		return models.Driver{}, err
	}
	d.updateGauge(ctx)
	return drv, nil
}

func (d *Directory) Get(ctx context.Context, id string) (models.Driver, error) {
	drv, err := d.store.Get(ctx, id)
	if err != nil {
		return models.Driver{}, fmt.Errorf("driver: %w", err)
	}
	return drv, nil
}

// List returns every driver ordered by id.
func (d *Directory) List(ctx context.Context) ([]models.Driver, error) {
	all, err := d.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

// UpdateStatus sets the driver's availability and, when zoneID is non-empty,
// its zone affinity.
func (d *Directory) UpdateStatus(ctx context.Context, id string, status models.DriverStatus, zoneID string) (models.Driver, error) {
	if !status.Valid() {
		return models.Driver{}, fmt.Errorf("%w: driver status %q", models.ErrInvalidInput, status)
	}
	if zoneID != "" {
		if err := d.checkZone(zoneID); err != nil {
			return models.Driver{}, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	drv, err := d.store.Get(ctx, id)
	if err != nil {
		return models.Driver{}, fmt.Errorf("driver: %w", err)
	}
	drv.Status = status
	if zoneID != "" {
		drv.ZoneID = zoneID
	}
	drv.UpdatedAt = d.now()
	if err := d.store.Put(ctx, drv.ID, drv); err != nil {
		return models.Driver{}, fmt.Errorf("store driver %s: %w", drv.ID, err)
	}
	if err := d.refreshLocation(ctx, drv); err != nil {
		return models.Driver{}, err
	}
	d.updateGauge(ctx)
	d.log.Info("driver status updated", "driver_id", drv.ID, "status", drv.Status, "zone_id", drv.ZoneID)
	return drv, nil
}

// ReportLocation overwrites the driver's position. The zone and status are
// snapshotted from the driver record under d.mu, so a concurrent
// UpdateStatus cannot be undone by a stale snapshot. Callers are responsible
// for checking that rideID, if set, is assigned to this driver.
func (d *Directory) ReportLocation(ctx context.Context, id string, lat, lng float64, rideID string) (models.DriverLocation, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return models.DriverLocation{}, fmt.Errorf("%w: coordinate %f,%f out of range", models.ErrInvalidInput, lat, lng)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	drv, err := d.store.Get(ctx, id)
	if err != nil {
		return models.DriverLocation{}, fmt.Errorf("driver: %w", err)
	}
	loc := models.DriverLocation{
		DriverID:  drv.ID,
		Lat:       lat,
		Lng:       lng,
		ZoneID:    drv.ZoneID,
		Status:    drv.Status,
		RideID:    rideID,
		UpdatedAt: d.now(),
	}
	if err := d.locs.Upsert(ctx, loc); err != nil {
		return models.DriverLocation{}, err
	}
	observability.LocationUpdates.Inc()
	return loc, nil
}

// RecordCompletion increments the driver's completed ride counter.
func (d *Directory) RecordCompletion(ctx context.Context, id string) (models.Driver, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	drv, err := d.store.Get(ctx, id)
	if err != nil {
		return models.Driver{}, fmt.Errorf("driver: %w", err)
	}
	drv.TotalRides++
	drv.UpdatedAt = d.now()
	if err := d.store.Put(ctx, drv.ID, drv); err != nil {
		return models.Driver{}, fmt.Errorf("store driver %s: %w", drv.ID, err)
	}
	return drv, nil
}

func (d *Directory) Location(ctx context.Context, id string) (models.DriverLocation, error) {
	loc, ok, err := d.locs.Get(ctx, id)
	if err != nil {
		return models.DriverLocation{}, err
	}
	if !ok {
		return models.DriverLocation{}, fmt.Errorf("location of driver %q: %w", id, models.ErrNotFound)
	}
	return loc, nil
}

func (d *Directory) Locations(ctx context.Context) ([]models.DriverLocation, error) {
	return d.locs.All(ctx)
}

func (d *Directory) checkZone(zoneID string) error {
	if zoneID == models.AllZones {
		return nil
	}
	if _, err := d.zones.Get(zoneID); err != nil {
		return fmt.Errorf("%w: %q", models.ErrInvalidZone, zoneID)
	}
	return nil
}

// refreshLocation rewrites the location snapshot after a record change,
// keeping the last reported position. Drivers that never reported start at
// their zone center.
func (d *Directory) refreshLocation(ctx context.Context, drv models.Driver) error {
	loc, ok, err := d.locs.Get(ctx, drv.ID)
	if err != nil {
		return err
	}
	if !ok {
		loc = models.DriverLocation{DriverID: drv.ID}
		if z, err := d.zones.Get(drv.ZoneID); err == nil {
			loc.Lat, loc.Lng = z.Center.Lat, z.Center.Lng
		}
	}
	loc.ZoneID = drv.ZoneID
	loc.Status = drv.Status
	loc.UpdatedAt = d.now()
	return d.locs.Upsert(ctx, loc)
}

func (d *Directory) updateGauge(ctx context.Context) {
	all, err := d.store.List(ctx)
	if err != nil {
		return
	}
	n := 0
	for _, drv := range all {
		if drv.Status == models.DriverAvailable {
			n++
		}
	}
	observability.DriversAvailable.Set(float64(n))
}
