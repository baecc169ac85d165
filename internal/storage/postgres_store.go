package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/example/autoride/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRideStore keeps rides in the rides table. It satisfies RideStore.
type PostgresRideStore struct {
	db *sql.DB
}

var _ RideStore = (*PostgresRideStore)(nil)

func NewPostgresRideStore(ctx context.Context, dsn string) (*PostgresRideStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &PostgresRideStore{db: db}, nil
}

// Migrate applies the embedded schema migrations. ErrNoChange is not an error.
func (p *PostgresRideStore) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	drv, err := migratepg.WithInstance(p.db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		return fmt.Errorf("migrations init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations up: %w", err)
	}
	return nil
}

func (p *PostgresRideStore) Close() error { return p.db.Close() }

const rideColumns = `id, user_id, driver_id, driver_name, driver_phone, auto_number, pickup, drop_location,
	status, fare, estimated_fare, distance_km, duration_min, otp, payment_method, payment_status,
	rating, feedback, cancel_reason, created_at, updated_at, arrived_at, started_at, completed_at, cancelled_at`

// upsertRideSQL binds rideArgs; placeholders follow rideColumns.
const upsertRideSQL = `INSERT INTO rides(` + rideColumns + `)
	VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
	ON CONFLICT (id) DO UPDATE SET
		driver_id=EXCLUDED.driver_id, driver_name=EXCLUDED.driver_name, driver_phone=EXCLUDED.driver_phone,
		auto_number=EXCLUDED.auto_number, status=EXCLUDED.status, fare=EXCLUDED.fare,
		payment_status=EXCLUDED.payment_status, rating=EXCLUDED.rating, feedback=EXCLUDED.feedback,
		cancel_reason=EXCLUDED.cancel_reason, updated_at=EXCLUDED.updated_at, arrived_at=EXCLUDED.arrived_at,
		started_at=EXCLUDED.started_at, completed_at=EXCLUDED.completed_at, cancelled_at=EXCLUDED.cancelled_at`

func (p *PostgresRideStore) Put(ctx context.Context, id string, r models.Ride) error {
	args, err := rideArgs(id, r)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, upsertRideSQL, args...)
	return err
}

// rideArgs lists r's values in rideColumns order, the order scanRide reads.
func rideArgs(id string, r models.Ride) ([]any, error) {
	pickup, err := json.Marshal(r.Pickup)
	if err != nil {
		return nil, fmt.Errorf("encode pickup: %w", err)
	}
	drop, err := json.Marshal(r.Drop)
	if err != nil {
		return nil, fmt.Errorf("encode drop: %w", err)
	}
	return []any{
		id, r.UserID, r.DriverID, r.DriverName, r.DriverPhone, r.AutoNumber, string(pickup), string(drop),
		string(r.Status), r.Fare, r.EstimatedFare, r.DistanceKm, r.DurationMin, r.OTP, r.PaymentMethod, string(r.PaymentStatus),
		r.Rating, r.Feedback, r.CancelReason, r.CreatedAt, r.UpdatedAt,
		nullTime(r.ArrivedAt), nullTime(r.StartedAt), nullTime(r.CompletedAt), nullTime(r.CancelledAt),
	}, nil
}

func (p *PostgresRideStore) Get(ctx context.Context, id string) (models.Ride, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
	r, err := scanRide(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ride{}, fmt.Errorf("ride %q: %w", id, models.ErrNotFound)
	}
	return r, err
}

func (p *PostgresRideStore) Delete(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM rides WHERE id = $1`, id)
	return err
}

func (p *PostgresRideStore) List(ctx context.Context) ([]models.Ride, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+rideColumns+` FROM rides ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRide(s scanner) (models.Ride, error) {
	var (
		r                                      models.Ride
		pickup, drop                           []byte
		status, payStatus                      string
		arrived, started, completed, cancelled sql.NullTime
	)
	err := s.Scan(&r.ID, &r.UserID, &r.DriverID, &r.DriverName, &r.DriverPhone, &r.AutoNumber, &pickup, &drop,
		&status, &r.Fare, &r.EstimatedFare, &r.DistanceKm, &r.DurationMin, &r.OTP, &r.PaymentMethod, &payStatus,
		&r.Rating, &r.Feedback, &r.CancelReason, &r.CreatedAt, &r.UpdatedAt, &arrived, &started, &completed, &cancelled)
	if err != nil {
		return models.Ride{}, err
	}
	if err := json.Unmarshal(pickup, &r.Pickup); err != nil {
		return models.Ride{}, fmt.Errorf("decode pickup: %w", err)
	}
	if err := json.Unmarshal(drop, &r.Drop); err != nil {
		return models.Ride{}, fmt.Errorf("decode drop: %w", err)
	}
	r.Status = models.RideStatus(status)
	r.PaymentStatus = models.PaymentStatus(payStatus)
	r.ArrivedAt = timePtr(arrived)
	r.StartedAt = timePtr(started)
	r.CompletedAt = timePtr(completed)
	r.CancelledAt = timePtr(cancelled)
	return r, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
