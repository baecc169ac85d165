package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/autoride/internal/drivers"
	"github.com/example/autoride/internal/fare"
	"github.com/example/autoride/internal/geo"
	"github.com/example/autoride/internal/models"
	"github.com/example/autoride/internal/storage"
	"github.com/example/autoride/internal/zones"
)

type recorder struct {
	mu     sync.Mutex
	events []models.RideEvent
}

func (r *recorder) Notify(ev models.RideEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	ledger  *Ledger
	drivers *drivers.Directory
	events  *recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cat := zones.Default()
	dir := drivers.New(storage.NewTable[models.Driver](), geo.NewIndex(), cat, nil)
	for _, d := range []models.Driver{
		{ID: "d1", Name: "Santosh Patil", Phone: "+919876543210", VehicleNumber: "MH 09 AB 1234", ZoneID: "railway-station"},
		{ID: "d2", Name: "Ramesh Jadhav", Phone: "+919876543211", VehicleNumber: "MH 09 CD 5678", ZoneID: "bus-stand"},
	} {
		if _, err := dir.Register(context.Background(), d); err != nil {
			t.Fatalf("register %s: %v", d.ID, err)
		}
	}
	rec := &recorder{}
	l := New(storage.NewTable[models.Ride](), fare.NewEngine(cat), cat, dir,
		WithNotifier(rec),
		WithOTPGenerator(func() string { return "4321" }),
	)
	return fixture{ledger: l, drivers: dir, events: rec}
}

func (f fixture) create(t *testing.T) models.Ride {
	t.Helper()
	r, err := f.ledger.Create(context.Background(), CreateRequest{UserID: "u1", PickupZoneID: "railway-station", DropZoneID: "bus-stand"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return r
}

func TestCreateQuotesFare(t *testing.T) {
	f := newFixture(t)
	r := f.create(t)
	if r.Status != models.RidePending || r.Fare != 35 || r.EstimatedFare != 35 {
		t.Fatalf("unexpected ride %+v", r)
	}
	if r.DistanceKm != 2 || r.DurationMin != 6 {
		t.Fatalf("expected 2km/6min, got %v/%d", r.DistanceKm, r.DurationMin)
	}
	if r.OTP != "4321" || r.PaymentMethod != models.PaymentCash || r.PaymentStatus != models.PaymentPending {
		t.Fatalf("unexpected otp/payment %+v", r)
	}
	if r.Pickup.ZoneID != "railway-station" || r.Pickup.Address != "Railway Station" || r.Pickup.Lat != 16.7050 {
		t.Fatalf("unexpected pickup %+v", r.Pickup)
	}
	if r.StartedAt != nil || r.CompletedAt != nil {
		t.Fatal("timestamps must be unset on a new ride")
	}
	got, err := f.ledger.Get(context.Background(), r.ID)
	if err != nil || got.ID != r.ID {
		t.Fatalf("get: %+v %v", got, err)
	}
}

func TestCreateRejectsUnknownZone(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Create(context.Background(), CreateRequest{PickupZoneID: "atlantis", DropZoneID: "bus-stand"})
	if !errors.Is(err, models.ErrInvalidZone) {
		t.Fatalf("expected ErrInvalidZone, got %v", err)
	}
	all, _ := f.ledger.List(context.Background())
	if len(all) != 0 {
		t.Fatalf("rejected create must not store a ride, got %d", len(all))
	}
}

func TestCreateDefaultsUser(t *testing.T) {
	f := newFixture(t)
	r, err := f.ledger.Create(context.Background(), CreateRequest{PickupZoneID: "sykes", DropZoneID: "panhala"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.UserID != guestUserID || r.Fare != 61 {
		t.Fatalf("unexpected ride %+v", r)
	}
}

func TestFullLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.create(t)

	r, err := f.ledger.Accept(ctx, r.ID, Assignment{DriverID: "d1"})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if r.Status != models.RideDriverAssigned || r.DriverName != "Santosh Patil" || r.AutoNumber != "MH 09 AB 1234" {
		t.Fatalf("unexpected accepted ride %+v", r)
	}
	if r, err = f.ledger.DriverArrived(ctx, r.ID); err != nil || r.ArrivedAt == nil {
		t.Fatalf("arrived: %+v %v", r, err)
	}
	if r, err = f.ledger.Start(ctx, r.ID, "4321"); err != nil || r.StartedAt == nil {
		t.Fatalf("start: %+v %v", r, err)
	}
	if r.Status != models.RideInProgress {
		t.Fatalf("expected in_progress, got %s", r.Status)
	}
	if r, err = f.ledger.Complete(ctx, r.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if r.Status != models.RideCompleted || r.PaymentStatus != models.PaymentSettled || r.CompletedAt == nil {
		t.Fatalf("unexpected completed ride %+v", r)
	}
	drv, _ := f.drivers.Get(ctx, "d1")
	if drv.TotalRides != 1 {
		t.Fatalf("expected driver total rides 1, got %d", drv.TotalRides)
	}
	if r, err = f.ledger.Rate(ctx, r.ID, 5, " great "); err != nil || r.Rating != 5 || r.Feedback != "great" {
		t.Fatalf("rate: %+v %v", r, err)
	}

	want := []string{
		models.EventRideCreated, models.EventRideAccepted, models.EventRideDriverArrived,
		models.EventRideStarted, models.EventRideCompleted, models.EventRideRated,
	}
	got := f.events.types()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestAcceptValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.create(t)
	if _, err := f.ledger.Accept(ctx, r.ID, Assignment{}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.ledger.Accept(ctx, r.ID, Assignment{DriverID: "ghost"}); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown driver, got %v", err)
	}
	if _, err := f.ledger.Accept(ctx, "missing", Assignment{DriverID: "d1"}); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown ride, got %v", err)
	}
	r, err := f.ledger.Accept(ctx, r.ID, Assignment{DriverID: "d2", DriverName: "Ramesh J", AutoNumber: "MH 09 ZZ 0000"})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if r.DriverName != "Ramesh J" || r.AutoNumber != "MH 09 ZZ 0000" || r.DriverPhone != "+919876543211" {
		t.Fatalf("expected request details with directory fallback, got %+v", r)
	}
}

func TestConcurrentAcceptHasOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.create(t)

	var wg sync.WaitGroup
	results := make(chan error, 20)
	for i := 0; i < 20; i++ {
		id := "d1"
		if i%2 == 1 {
			id = "d2"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Accept(ctx, r.ID, Assignment{DriverID: id})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, models.ErrInvalidState):
			t.Fatalf("loser must see ErrInvalidState, got %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestStartChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.create(t)

	if _, err := f.ledger.Start(ctx, r.ID, "4321"); !errors.Is(err, models.ErrNoDriverAssigned) {
		t.Fatalf("pending start: expected ErrNoDriverAssigned, got %v", err)
	}
	_, _ = f.ledger.Accept(ctx, r.ID, Assignment{DriverID: "d1"})
	if _, err := f.ledger.Start(ctx, r.ID, "4321"); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("start before arrival: expected ErrInvalidState, got %v", err)
	}
	_, _ = f.ledger.DriverArrived(ctx, r.ID)
	if _, err := f.ledger.Start(ctx, r.ID, "0000"); !errors.Is(err, models.ErrInvalidOTP) {
		t.Fatalf("wrong otp: expected ErrInvalidOTP, got %v", err)
	}
	got, _ := f.ledger.Get(ctx, r.ID)
	if got.Status != models.RideDriverArrived {
		t.Fatalf("wrong otp must not change status, got %s", got.Status)
	}
	if _, err := f.ledger.Start(ctx, r.ID, "4321"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.ledger.Start(ctx, r.ID, "4321"); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("repeated start: expected ErrInvalidState, got %v", err)
	}
}

func TestDriverArrivedChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.create(t)
	if _, err := f.ledger.DriverArrived(ctx, r.ID); !errors.Is(err, models.ErrNoDriverAssigned) {
		t.Fatalf("expected ErrNoDriverAssigned, got %v", err)
	}
	_, _ = f.ledger.Accept(ctx, r.ID, Assignment{DriverID: "d1"})
	_, _ = f.ledger.DriverArrived(ctx, r.ID)
	if _, err := f.ledger.DriverArrived(ctx, r.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second arrival, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pending := f.create(t)
	r, err := f.ledger.Cancel(ctx, pending.ID, "changed plans")
	if err != nil || r.Status != models.RideCancelled || r.CancelReason != "changed plans" || r.CancelledAt == nil {
		t.Fatalf("cancel pending: %+v %v", r, err)
	}
	if _, err := f.ledger.Cancel(ctx, pending.ID, ""); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("cancel twice: expected ErrInvalidState, got %v", err)
	}

	assigned := f.create(t)
	_, _ = f.ledger.Accept(ctx, assigned.ID, Assignment{DriverID: "d1"})
	if _, err := f.ledger.Cancel(ctx, assigned.ID, ""); err != nil {
		t.Fatalf("cancel assigned: %v", err)
	}

	arrived := f.create(t)
	_, _ = f.ledger.Accept(ctx, arrived.ID, Assignment{DriverID: "d1"})
	_, _ = f.ledger.DriverArrived(ctx, arrived.ID)
	if _, err := f.ledger.Cancel(ctx, arrived.ID, ""); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("cancel after arrival: expected ErrInvalidState, got %v", err)
	}
}

func TestCompleteRequiresInProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.create(t)
	if _, err := f.ledger.Complete(ctx, r.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	drv, _ := f.drivers.Get(ctx, "d1")
	if drv.TotalRides != 0 {
		t.Fatalf("rejected completion must not count, got %d", drv.TotalRides)
	}
}

func TestRate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.create(t)
	if _, err := f.ledger.Rate(ctx, r.ID, 4, ""); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("rate pending: expected ErrInvalidState, got %v", err)
	}
	if _, err := f.ledger.Rate(ctx, r.ID, 6, ""); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("rate 6: expected ErrInvalidInput, got %v", err)
	}
}

func TestDeclineLeavesRidePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.create(t)
	got, err := f.ledger.Decline(ctx, r.ID, "d2")
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if got.Status != models.RidePending || got.DriverID != "" {
		t.Fatalf("decline must not assign, got %+v", got)
	}
	if _, err := f.ledger.Accept(ctx, r.ID, Assignment{DriverID: "d1"}); err != nil {
		t.Fatalf("accept after decline: %v", err)
	}
	if _, err := f.ledger.Decline(ctx, r.ID, "d2"); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("decline assigned: expected ErrInvalidState, got %v", err)
	}
}

func TestAssignedTo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r := f.create(t)
	if err := f.ledger.AssignedTo(ctx, r.ID, "d1"); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("unassigned ride: expected ErrInvalidState, got %v", err)
	}
	_, _ = f.ledger.Accept(ctx, r.ID, Assignment{DriverID: "d1"})
	if err := f.ledger.AssignedTo(ctx, r.ID, "d1"); err != nil {
		t.Fatalf("assigned ride: %v", err)
	}
	if err := f.ledger.AssignedTo(ctx, r.ID, "d2"); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("other driver: expected ErrInvalidState, got %v", err)
	}
	if err := f.ledger.AssignedTo(ctx, "missing", "d1"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("missing ride: expected ErrNotFound, got %v", err)
	}
}

func TestListByStatusAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f.ledger.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	for i := 0; i < 2; i++ {
		r := f.create(t)
		_, _ = f.ledger.Accept(ctx, r.ID, Assignment{DriverID: "d1"})
		_, _ = f.ledger.DriverArrived(ctx, r.ID)
		_, _ = f.ledger.Start(ctx, r.ID, "4321")
		if _, err := f.ledger.Complete(ctx, r.ID); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}
	pending := f.create(t)

	list, _ := f.ledger.ListByStatus(ctx, models.RidePending)
	if len(list) != 1 || list[0].ID != pending.ID {
		t.Fatalf("expected the single pending ride, got %+v", list)
	}
	all, _ := f.ledger.List(ctx)
	if len(all) != 3 || all[2].ID != pending.ID {
		t.Fatalf("expected rides oldest first, got %d", len(all))
	}

	st, err := f.ledger.DriverStats(ctx, "d1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.CompletedRides != 2 || st.TotalEarnings != 70 || st.TodayEarnings != 70 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st, _ := f.ledger.DriverStats(ctx, "d2"); st.CompletedRides != 0 {
		t.Fatalf("expected no rides for d2, got %+v", st)
	}
}

func TestRandomOTPShape(t *testing.T) {
	for i := 0; i < 200; i++ {
		otp := randomOTP()
		if len(otp) != 4 || otp[0] == '0' {
			t.Fatalf("unexpected otp %q", otp)
		}
	}
}
