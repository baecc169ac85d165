// Package ledger owns ride records and every transition of the ride
// lifecycle:
//
//	pending -> driver_assigned -> driver_arrived -> in_progress -> completed
//	pending | driver_assigned -> cancelled
//
// Writes to one ride are serialized by a per-ride mutex so concurrent
// operations on the same ride never interleave. Notifications are sent after
// the lock is released.
package ledger

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/autoride/internal/fare"
	"github.com/example/autoride/internal/models"
	"github.com/example/autoride/internal/observability"
	"github.com/example/autoride/internal/storage"
)

type Quoter interface {
	Quote(pickupZoneID, dropZoneID string) (fare.Quote, error)
}

type Zones interface {
	Get(id string) (models.Zone, error)
}

// Drivers is the part of the driver directory the ledger touches: lookups at
// acceptance and the ride counter at completion.
type Drivers interface {
	Get(ctx context.Context, id string) (models.Driver, error)
	RecordCompletion(ctx context.Context, id string) (models.Driver, error)
}

// Notifier receives an event after each successful operation. Implementations
// must not block.
type Notifier interface {
	Notify(ev models.RideEvent)
}

// Notifiers fans one event out to several notifiers.
type Notifiers []Notifier

func (ns Notifiers) Notify(ev models.RideEvent) {
	for _, n := range ns {
		n.Notify(ev)
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(models.RideEvent) {}

const guestUserID = "guest"

type Ledger struct {
	store   storage.RideStore
	fares   Quoter
	zones   Zones
	drivers Drivers
	notify  Notifier
	log     *slog.Logger
	now     func() time.Time
	newID   func() string
	newOTP  func() string

	locks sync.Map // ride id -> *sync.Mutex
}

type Option func(*Ledger)

func WithNotifier(n Notifier) Option     { return func(l *Ledger) { l.notify = n } }
func WithLogger(log *slog.Logger) Option { return func(l *Ledger) { l.log = log } }
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithOTPGenerator replaces the random 4-digit code generator.
func WithOTPGenerator(gen func() string) Option { return func(l *Ledger) { l.newOTP = gen } }

func New(store storage.RideStore, fares Quoter, zones Zones, drivers Drivers, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		fares:   fares,
		zones:   zones,
		drivers: drivers,
		notify:  nopNotifier{},
		log:     slog.Default(),
		now:     time.Now,
		newID:   uuid.NewString,
		newOTP:  randomOTP,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

type CreateRequest struct {
	UserID       string `json:"userId"`
	PickupZoneID string `json:"pickupZoneId"`
	DropZoneID   string `json:"dropZoneId"`
}

// Create books a new pending ride. The fare quote and otp are fixed here and
// never recomputed.
func (l *Ledger) Create(ctx context.Context, req CreateRequest) (models.Ride, error) {
	q, err := l.fares.Quote(req.PickupZoneID, req.DropZoneID)
	if err != nil {
		return l.reject("create", err)
	}
	pickup, err := l.zones.Get(req.PickupZoneID)
	if err != nil {
		return l.reject("create", fmt.Errorf("%w: pickup %q", models.ErrInvalidZone, req.PickupZoneID))
	}
	drop, err := l.zones.Get(req.DropZoneID)
	if err != nil {
		return l.reject("create", fmt.Errorf("%w: drop %q", models.ErrInvalidZone, req.DropZoneID))
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = guestUserID
	}

	now := l.now()
	r := models.Ride{
		ID:            l.newID(),
		UserID:        userID,
		Pickup:        zoneLocation(pickup),
		Drop:          zoneLocation(drop),
		Status:        models.RidePending,
		Fare:          q.Fare,
		EstimatedFare: q.Fare,
		DistanceKm:    q.DistanceKm,
		DurationMin:   q.DurationMinutes,
		OTP:           l.newOTP(),
		PaymentMethod: models.PaymentCash,
		PaymentStatus: models.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := l.store.Put(ctx, r.ID, r); err != nil {
		return models.Ride{}, fmt.Errorf("store ride %s: %w", r.ID, err)
	}
	observability.RidesCreated.Inc()
	l.log.Info("ride created", "ride_id", r.ID, "user_id", r.UserID, "pickup", pickup.ID, "drop", drop.ID, "fare", r.Fare)
	l.notify.Notify(models.NewRideEvent(models.EventRideCreated, r))
	return r, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (models.Ride, error) {
	r, err := l.store.Get(ctx, id)
	if err != nil {
		return models.Ride{}, fmt.Errorf("ride: %w", err)
	}
	return r, nil
}

// List returns every ride, oldest first.
func (l *Ledger) List(ctx context.Context) ([]models.Ride, error) {
	all, err := l.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sortRides(all)
	return all, nil
}

// ListByStatus returns the rides currently in status, oldest first.
func (l *Ledger) ListByStatus(ctx context.Context, status models.RideStatus) ([]models.Ride, error) {
	all, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

// Assignment carries the driver details recorded on acceptance. Empty fields
// are filled from the driver directory.
type Assignment struct {
	DriverID    string `json:"driverId"`
	DriverName  string `json:"driverName"`
	DriverPhone string `json:"driverPhone"`
	AutoNumber  string `json:"autoNumber"`
}

// Accept assigns a driver to a pending ride. When several drivers race for
// the same ride exactly one wins; the others get ErrInvalidState.
func (l *Ledger) Accept(ctx context.Context, id string, a Assignment) (models.Ride, error) {
	if strings.TrimSpace(a.DriverID) == "" {
		return l.reject("accept", fmt.Errorf("%w: driverId required", models.ErrInvalidInput))
	}
	drv, err := l.drivers.Get(ctx, a.DriverID)
	if err != nil {
		return l.reject("accept", err)
	}
	return l.mutate(ctx, "accept", id, models.EventRideAccepted, func(r *models.Ride, _ time.Time) error {
		if r.Status != models.RidePending {
			return stateError(r, "accept")
		}
		r.DriverID = drv.ID
		r.DriverName = firstNonEmpty(a.DriverName, drv.Name)
		r.DriverPhone = firstNonEmpty(a.DriverPhone, drv.Phone)
		r.AutoNumber = firstNonEmpty(a.AutoNumber, drv.AutoNumber, drv.VehicleNumber)
		r.Status = models.RideDriverAssigned
		return nil
	})
}

// Decline records nothing: the ride stays pending and visible to every
// other matching driver. It still fails for rides that are no longer pending
// so the caller learns the offer is stale.
func (l *Ledger) Decline(ctx context.Context, id, driverID string) (models.Ride, error) {
	if _, err := l.store.Get(ctx, id); err != nil {
		return l.reject("decline", fmt.Errorf("ride: %w", err))
	}
	unlock := l.lock(id)
	r, err := l.store.Get(ctx, id)
	unlock()
	if err != nil {
		return l.reject("decline", fmt.Errorf("ride: %w", err))
	}
	if r.Status != models.RidePending {
		return l.reject("decline", stateError(&r, "decline"))
	}
	l.log.Info("ride declined", "ride_id", id, "driver_id", driverID)
	ev := models.NewRideEvent(models.EventRideDeclined, r)
	ev.DriverID = driverID
	l.notify.Notify(ev)
	return r, nil
}

func (l *Ledger) DriverArrived(ctx context.Context, id string) (models.Ride, error) {
	return l.mutate(ctx, "driver_arrived", id, models.EventRideDriverArrived, func(r *models.Ride, now time.Time) error {
		switch {
		case r.Status == models.RidePending || !r.HasDriver():
			return fmt.Errorf("ride %s: %w", r.ID, models.ErrNoDriverAssigned)
		case r.Status != models.RideDriverAssigned:
			return stateError(r, "mark arrival for")
		}
		r.Status = models.RideDriverArrived
		r.ArrivedAt = &now
		return nil
	})
}

// Start begins the trip once the rider hands the driver the ride's otp.
func (l *Ledger) Start(ctx context.Context, id, otp string) (models.Ride, error) {
	return l.mutate(ctx, "start", id, models.EventRideStarted, func(r *models.Ride, now time.Time) error {
		switch r.Status {
		case models.RidePending:
			return fmt.Errorf("ride %s: %w", r.ID, models.ErrNoDriverAssigned)
		case models.RideDriverArrived:
		default:
			return stateError(r, "start")
		}
		if r.OTP != "" && subtle.ConstantTimeCompare([]byte(strings.TrimSpace(otp)), []byte(r.OTP)) != 1 {
			return fmt.Errorf("ride %s: %w", r.ID, models.ErrInvalidOTP)
		}
		r.Status = models.RideInProgress
		r.StartedAt = &now
		return nil
	})
}

// Complete ends an in-progress trip, settles the (cash) payment and bumps the
// driver's ride counter.
func (l *Ledger) Complete(ctx context.Context, id string) (models.Ride, error) {
	r, err := l.mutate(ctx, "complete", id, models.EventRideCompleted, func(r *models.Ride, now time.Time) error {
		if r.Status != models.RideInProgress {
			return stateError(r, "complete")
		}
		r.Status = models.RideCompleted
		r.CompletedAt = &now
		r.PaymentStatus = models.PaymentSettled
		return nil
	})
	if err != nil {
		return r, err
	}
	// Only the single successful transition reaches here, so the counter
	// moves exactly once per ride.
	if _, err := l.drivers.RecordCompletion(ctx, r.DriverID); err != nil {
		l.log.Warn("driver stats not updated", "ride_id", r.ID, "driver_id", r.DriverID, "error", err)
	}
	return r, nil
}

func (l *Ledger) Cancel(ctx context.Context, id, reason string) (models.Ride, error) {
	return l.mutate(ctx, "cancel", id, models.EventRideCancelled, func(r *models.Ride, now time.Time) error {
		if !r.Status.Cancellable() {
			return stateError(r, "cancel")
		}
		r.Status = models.RideCancelled
		r.CancelledAt = &now
		r.CancelReason = strings.TrimSpace(reason)
		return nil
	})
}

// Rate stores the rider's score for a completed ride. Repeated calls
// overwrite the previous rating.
func (l *Ledger) Rate(ctx context.Context, id string, rating int, feedback string) (models.Ride, error) {
	if rating < 1 || rating > 5 {
		return l.reject("rate", fmt.Errorf("%w: rating %d not in 1..5", models.ErrInvalidInput, rating))
	}
	return l.mutate(ctx, "rate", id, models.EventRideRated, func(r *models.Ride, _ time.Time) error {
		if r.Status != models.RideCompleted {
			return stateError(r, "rate")
		}
		r.Rating = rating
		r.Feedback = strings.TrimSpace(feedback)
		return nil
	})
}

// AssignedTo checks that rideID exists and belongs to driverID.
func (l *Ledger) AssignedTo(ctx context.Context, rideID, driverID string) error {
	r, err := l.Get(ctx, rideID)
	if err != nil {
		return err
	}
	if r.DriverID != driverID {
		return fmt.Errorf("ride %s is not assigned to driver %s: %w", rideID, driverID, models.ErrInvalidState)
	}
	return nil
}

type DriverStats struct {
	CompletedRides int `json:"completedRides"`
	TotalEarnings  int `json:"totalEarnings"`
	TodayEarnings  int `json:"todayEarnings"`
}

// DriverStats sums the fares of the driver's completed rides.
func (l *Ledger) DriverStats(ctx context.Context, driverID string) (DriverStats, error) {
	done, err := l.ListByStatus(ctx, models.RideCompleted)
	if err != nil {
		return DriverStats{}, err
	}
	y, m, d := l.now().Date()
	var st DriverStats
	for _, r := range done {
		if r.DriverID != driverID {
			continue
		}
		st.CompletedRides++
		st.TotalEarnings += r.Fare
		if r.CompletedAt != nil {
			cy, cm, cd := r.CompletedAt.Date()
			if cy == y && cm == m && cd == d {
				st.TodayEarnings += r.Fare
			}
		}
	}
	return st, nil
}

// mutate runs fn on the current record under the ride's lock and persists
// the result. fn returns an error to reject the operation without writing.
func (l *Ledger) mutate(ctx context.Context, op, id, event string, fn func(r *models.Ride, now time.Time) error) (models.Ride, error) {
	// Unknown ids are rejected before a lock is allocated for them.
	if _, err := l.store.Get(ctx, id); err != nil {
		return l.reject(op, fmt.Errorf("ride: %w", err))
	}

	unlock := l.lock(id)
	r, err := l.store.Get(ctx, id)
	if err != nil {
		unlock()
		return l.reject(op, fmt.Errorf("ride: %w", err))
	}
	now := l.now()
	if err := fn(&r, now); err != nil {
		unlock()
		return l.reject(op, err)
	}
	r.UpdatedAt = now
	if err := l.store.Put(ctx, id, r); err != nil {
		unlock()
		return models.Ride{}, fmt.Errorf("store ride %s: %w", id, err)
	}
	unlock()

	observability.RideTransitions.WithLabelValues(op, string(r.Status)).Inc()
	l.log.Info("ride updated", "ride_id", r.ID, "op", op, "status", r.Status, "driver_id", r.DriverID)
	l.notify.Notify(models.NewRideEvent(event, r))
	return r, nil
}

func (l *Ledger) lock(id string) func() {
	v, _ := l.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (l *Ledger) reject(op string, err error) (models.Ride, error) {
	observability.RideRejections.WithLabelValues(op, models.ErrorCode(err)).Inc()
	l.log.Debug("ride operation rejected", "op", op, "error", err)
	return models.Ride{}, err
}

func stateError(r *models.Ride, verb string) error {
	return fmt.Errorf("cannot %s ride %s in status %s: %w", verb, r.ID, r.Status, models.ErrInvalidState)
}

func zoneLocation(z models.Zone) models.Location {
	return models.Location{Address: z.Name, ZoneID: z.ID, Lat: z.Center.Lat, Lng: z.Center.Lng}
}

func sortRides(rs []models.Ride) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func randomOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return strconv.FormatInt(1000+n.Int64(), 10)
}
