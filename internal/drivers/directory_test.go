package drivers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/autoride/internal/geo"
	"github.com/example/autoride/internal/models"
	"github.com/example/autoride/internal/storage"
	"github.com/example/autoride/internal/zones"
)

func newDirectory() *Directory {
	return New(storage.NewTable[models.Driver](), geo.NewIndex(), zones.Default(), nil)
}

func TestRegisterPlacesDriverAtZoneCenter(t *testing.T) {
	ctx := context.Background()
	d := newDirectory()
	drv, err := d.Register(ctx, models.Driver{ID: "d1", Name: "Santosh", VehicleNumber: "MH 09 AB 1234", ZoneID: "railway-station"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if drv.Status != models.DriverAvailable || drv.AutoNumber != "MH 09 AB 1234" {
		t.Fatalf("unexpected defaults %+v", drv)
	}
	loc, err := d.Location(ctx, "d1")
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.Lat != 16.7050 || loc.ZoneID != "railway-station" || loc.Status != models.DriverAvailable {
		t.Fatalf("unexpected snapshot %+v", loc)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	d := newDirectory()
	if _, err := d.Register(ctx, models.Driver{ZoneID: "atlantis"}); !errors.Is(err, models.ErrInvalidZone) {
		t.Fatalf("expected ErrInvalidZone, got %v", err)
	}
	if _, err := d.Register(ctx, models.Driver{ZoneID: "sykes", Status: "napping"}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	drv, err := d.Register(ctx, models.Driver{ZoneID: models.AllZones})
	if err != nil || drv.ID == "" {
		t.Fatalf("wildcard registration failed: %+v %v", drv, err)
	}
}

func TestUpdateStatusKeepsPosition(t *testing.T) {
	ctx := context.Background()
	d := newDirectory()
	_, _ = d.Register(ctx, models.Driver{ID: "d1", ZoneID: "bus-stand"})
	if _, err := d.ReportLocation(ctx, "d1", 16.69, 74.23, ""); err != nil {
		t.Fatalf("report: %v", err)
	}
	drv, err := d.UpdateStatus(ctx, "d1", models.DriverOffline, "mahalaxmi")
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if drv.Status != models.DriverOffline || drv.ZoneID != "mahalaxmi" {
		t.Fatalf("unexpected driver %+v", drv)
	}
	loc, _ := d.Location(ctx, "d1")
	if loc.Lat != 16.69 || loc.Lng != 74.23 || loc.Status != models.DriverOffline || loc.ZoneID != "mahalaxmi" {
		t.Fatalf("expected snapshot refresh at last position, got %+v", loc)
	}

	if _, err := d.UpdateStatus(ctx, "d1", "flying", ""); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := d.UpdateStatus(ctx, "d1", models.DriverAvailable, "atlantis"); !errors.Is(err, models.ErrInvalidZone) {
		t.Fatalf("expected ErrInvalidZone, got %v", err)
	}
	if _, err := d.UpdateStatus(ctx, "ghost", models.DriverAvailable, ""); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReportLocationOverwrites(t *testing.T) {
	ctx := context.Background()
	d := newDirectory()
	_, _ = d.Register(ctx, models.Driver{ID: "d1", ZoneID: "bus-stand"})
	_, _ = d.ReportLocation(ctx, "d1", 16.1, 74.1, "r1")
	_, _ = d.ReportLocation(ctx, "d1", 16.2, 74.2, "r1")
	locs, _ := d.Locations(ctx)
	if len(locs) != 1 || locs[0].Lat != 16.2 || locs[0].RideID != "r1" {
		t.Fatalf("expected one overwritten entry, got %+v", locs)
	}
	if _, err := d.ReportLocation(ctx, "d1", 91, 0, ""); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad latitude, got %v", err)
	}
	if _, err := d.ReportLocation(ctx, "ghost", 1, 1, ""); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordCompletion(t *testing.T) {
	ctx := context.Background()
	d := newDirectory()
	_, _ = d.Register(ctx, models.Driver{ID: "d1", ZoneID: "bus-stand", TotalRides: 10})
	drv, err := d.RecordCompletion(ctx, "d1")
	if err != nil {
		t.Fatalf("record completion: %v", err)
	}
	if drv.TotalRides != 11 {
		t.Fatalf("expected 11 rides, got %d", drv.TotalRides)
	}
	if _, err := d.RecordCompletion(ctx, "ghost"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	d := newDirectory()
	seeded, err := d.Seed(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(seeded) != len(TestDrivers) {
		t.Fatalf("expected %d drivers, got %d", len(TestDrivers), len(seeded))
	}
	all, _ := d.List(ctx)
	wildcard := 0
	for _, drv := range all {
		if drv.ZoneID == models.AllZones {
			wildcard++
		}
	}
	if wildcard != 1 {
		t.Fatalf("expected one wildcard driver, got %d", wildcard)
	}
}

// gatedIndex parks the first Upsert after arm() until release is closed.
type gatedIndex struct {
	*geo.Index
	mu      sync.Mutex
	armed   bool
	reached chan struct{}
	release chan struct{}
}

func (g *gatedIndex) arm() {
	g.mu.Lock()
	g.armed = true
	g.mu.Unlock()
}

func (g *gatedIndex) Upsert(ctx context.Context, loc models.DriverLocation) error {
	g.mu.Lock()
	hold := g.armed
	g.armed = false
	g.mu.Unlock()
	if hold {
		close(g.reached)
		<-g.release
	}
	return g.Index.Upsert(ctx, loc)
}

func TestReportLocationCannotResurrectStatus(t *testing.T) {
	ctx := context.Background()
	idx := &gatedIndex{Index: geo.NewIndex(), reached: make(chan struct{}), release: make(chan struct{})}
	d := New(storage.NewTable[models.Driver](), idx, zones.Default(), nil)
	if _, err := d.Register(ctx, models.Driver{ID: "d1", ZoneID: "railway-station"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	idx.arm()
	reported := make(chan error, 1)
	go func() {
		_, err := d.ReportLocation(ctx, "d1", 16.70, 74.24, "")
		reported <- err
	}()
	<-idx.reached

	updated := make(chan error, 1)
	go func() {
		_, err := d.UpdateStatus(ctx, "d1", models.DriverOffline, "")
		updated <- err
	}()
	select {
	case err := <-updated:
		t.Fatalf("status update overtook an in-flight location report (err=%v)", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(idx.release)

	if err := <-reported; err != nil {
		t.Fatalf("report: %v", err)
	}
	if err := <-updated; err != nil {
		t.Fatalf("update status: %v", err)
	}
	drv, _ := d.Get(ctx, "d1")
	loc, err := d.Location(ctx, "d1")
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if drv.Status != models.DriverOffline || loc.Status != models.DriverOffline {
		t.Fatalf("driver record status=%s, location snapshot status=%s", drv.Status, loc.Status)
	}
	if loc.Lat != 16.70 {
		t.Fatalf("reported position lost: %+v", loc)
	}
}
