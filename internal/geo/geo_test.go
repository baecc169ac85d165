package geo

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/example/autoride/internal/models"
)

func TestIndexLastWriteWins(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex()
	_ = idx.Upsert(ctx, models.DriverLocation{DriverID: "d2", Lat: 1, Lng: 1})
	_ = idx.Upsert(ctx, models.DriverLocation{DriverID: "d1", Lat: 1, Lng: 1})
	_ = idx.Upsert(ctx, models.DriverLocation{DriverID: "d1", Lat: 2, Lng: 3, RideID: "r1"})

	got, ok, _ := idx.Get(ctx, "d1")
	if !ok || got.Lat != 2 || got.Lng != 3 || got.RideID != "r1" {
		t.Fatalf("expected overwritten entry, got %+v ok=%v", got, ok)
	}
	all, _ := idx.All(ctx)
	if len(all) != 2 || all[0].DriverID != "d1" || all[1].DriverID != "d2" {
		t.Fatalf("expected two entries ordered by id, got %+v", all)
	}
	if _, ok, _ := idx.Get(ctx, "nope"); ok {
		t.Fatal("unexpected entry for unknown driver")
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisIndexRoundTrip(t *testing.T) {
	ctx := context.Background()
	idx := NewRedisIndex(newTestRedis(t), "")
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	in := models.DriverLocation{DriverID: "d1", Lat: 16.7050, Lng: 74.2439, ZoneID: "railway-station", Status: models.DriverAvailable, RideID: "r9", UpdatedAt: at}
	if err := idx.Upsert(ctx, in); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, ok, err := idx.Get(ctx, "d1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if math.Abs(got.Lat-in.Lat) > 1e-4 || math.Abs(got.Lng-in.Lng) > 1e-4 {
		t.Fatalf("position drifted: %+v", got)
	}
	if got.ZoneID != in.ZoneID || got.Status != in.Status || got.RideID != "r9" || !got.UpdatedAt.Equal(at) {
		t.Fatalf("metadata mismatch: %+v", got)
	}

	if _, ok, err := idx.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
}

func TestRedisIndexAllOverwrites(t *testing.T) {
	ctx := context.Background()
	idx := NewRedisIndex(newTestRedis(t), "test_geo")
	for _, l := range []models.DriverLocation{
		{DriverID: "b", Lat: 16.70, Lng: 74.24, ZoneID: "bus-stand", Status: models.DriverBusy},
		{DriverID: "a", Lat: 16.71, Lng: 74.23, ZoneID: "mahalaxmi", Status: models.DriverAvailable},
		{DriverID: "b", Lat: 16.69, Lng: 74.22, ZoneID: "bus-stand", Status: models.DriverAvailable},
	} {
		if err := idx.Upsert(ctx, l); err != nil {
			t.Fatalf("upsert %s: %v", l.DriverID, err)
		}
	}
	all, err := idx.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 || all[0].DriverID != "a" || all[1].DriverID != "b" {
		t.Fatalf("unexpected entries %+v", all)
	}
	if all[1].Status != models.DriverAvailable || math.Abs(all[1].Lat-16.69) > 1e-4 {
		t.Fatalf("expected latest report for b, got %+v", all[1])
	}
}

func TestRedisIndexUpsertIfNewerKeepsLatest(t *testing.T) {
	ctx := context.Background()
	idx := NewRedisIndex(newTestRedis(t), "")
	t1 := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	t2, t3 := t1.Add(time.Second), t1.Add(2*time.Second)

	// directory write: driver went offline at t2
	if err := idx.Upsert(ctx, models.DriverLocation{DriverID: "d1", Lat: 16.70, Lng: 74.24, ZoneID: "sykes", Status: models.DriverOffline, UpdatedAt: t2}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// a report from t1 arrives late from the stream
	written, err := idx.UpsertIfNewer(ctx, models.DriverLocation{DriverID: "d1", Lat: 16.60, Lng: 74.10, ZoneID: "sykes", Status: models.DriverAvailable, UpdatedAt: t1})
	if err != nil || written {
		t.Fatalf("stale write: written=%v err=%v", written, err)
	}
	got, _, _ := idx.Get(ctx, "d1")
	if got.Status != models.DriverOffline || math.Abs(got.Lat-16.70) > 1e-4 || !got.UpdatedAt.Equal(t2) {
		t.Fatalf("stale message rolled back the index: %+v", got)
	}

	// same timestamp as stored counts as already applied
	if written, _ := idx.UpsertIfNewer(ctx, models.DriverLocation{DriverID: "d1", Lat: 1, Lng: 1, UpdatedAt: t2}); written {
		t.Fatal("duplicate message must be skipped")
	}

	written, err = idx.UpsertIfNewer(ctx, models.DriverLocation{DriverID: "d1", Lat: 16.72, Lng: 74.25, ZoneID: "sykes", Status: models.DriverOffline, UpdatedAt: t3})
	if err != nil || !written {
		t.Fatalf("newer write: written=%v err=%v", written, err)
	}
	got, _, _ = idx.Get(ctx, "d1")
	if math.Abs(got.Lat-16.72) > 1e-4 || !got.UpdatedAt.Equal(t3) {
		t.Fatalf("newer message not applied: %+v", got)
	}

	// unknown drivers are always written
	if written, err := idx.UpsertIfNewer(ctx, models.DriverLocation{DriverID: "d2", Lat: 16.7, Lng: 74.2}); err != nil || !written {
		t.Fatalf("first write: written=%v err=%v", written, err)
	}
}
