package geo

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/autoride/internal/models"
)

// RedisIndex implements LocationIndex with a GEO set for positions and one
// hash per driver for the zone/status/ride snapshot.
type RedisIndex struct {
	client *redis.Client
	key    string
}

var _ LocationIndex = (*RedisIndex)(nil)

func NewRedisIndex(client *redis.Client, key string) *RedisIndex {
	if key == "" {
		key = "drivers_geo"
	}
	return &RedisIndex{client: client, key: key}
}

// Upsert writes loc unconditionally. It is the directory's path and always
// carries the current status.
func (r *RedisIndex) Upsert(ctx context.Context, loc models.DriverLocation) error {
	pipe := r.client.TxPipeline()
	pipe.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: loc.Lng, Latitude: loc.Lat, Name: loc.DriverID})
	pipe.HSet(ctx, metaKey(loc.DriverID), map[string]interface{}{
		"at":      stamp(loc.UpdatedAt),
		"zone":    loc.ZoneID,
		"status":  string(loc.Status),
		"ride":    loc.RideID,
		"updated": loc.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis upsert %s: %w", loc.DriverID, err)
	}
	return nil
}

// KEYS: geo set, meta hash. ARGV: at, lng, lat, id, zone, status, ride, updated.
var upsertNewer = redis.NewScript(`
local prev = tonumber(redis.call('HGET', KEYS[2], 'at') or '-1')
if prev >= tonumber(ARGV[1]) then
	return 0
end
redis.call('GEOADD', KEYS[1], ARGV[2], ARGV[3], ARGV[4])
redis.call('HSET', KEYS[2], 'at', ARGV[1], 'zone', ARGV[5], 'status', ARGV[6], 'ride', ARGV[7], 'updated', ARGV[8])
return 1
`)

// UpsertIfNewer writes loc only when its UpdatedAt is later than what the
// index holds, so replayed or reordered stream messages never roll back a
// newer position or status. It reports whether loc was written.
func (r *RedisIndex) UpsertIfNewer(ctx context.Context, loc models.DriverLocation) (bool, error) {
	n, err := upsertNewer.Run(ctx, r.client,
		[]string{r.key, metaKey(loc.DriverID)},
		stamp(loc.UpdatedAt), loc.Lng, loc.Lat, loc.DriverID,
		loc.ZoneID, string(loc.Status), loc.RideID, loc.UpdatedAt.UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis conditional upsert %s: %w", loc.DriverID, err)
	}
	return n == 1, nil
}

func (r *RedisIndex) Get(ctx context.Context, driverID string) (models.DriverLocation, bool, error) {
	locs, err := r.load(ctx, []string{driverID})
	if err != nil {
		return models.DriverLocation{}, false, err
	}
	if len(locs) == 0 {
		return models.DriverLocation{}, false, nil
	}
	return locs[0], true, nil
}

func (r *RedisIndex) All(ctx context.Context) ([]models.DriverLocation, error) {
	names, err := r.client.ZRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list drivers: %w", err)
	}
	if len(names) == 0 {
		return nil, nil
	}
	locs, err := r.load(ctx, names)
	if err != nil {
		return nil, err
	}
	sortByDriver(locs)
	return locs, nil
}

func (r *RedisIndex) load(ctx context.Context, ids []string) ([]models.DriverLocation, error) {
	pos, err := r.client.GeoPos(ctx, r.key, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis geopos: %w", err)
	}
	pipe := r.client.Pipeline()
	metas := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		metas[i] = pipe.HGetAll(ctx, metaKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis driver meta: %w", err)
	}
	out := make([]models.DriverLocation, 0, len(ids))
	for i, id := range ids {
		if i >= len(pos) || pos[i] == nil {
			continue
		}
		loc := models.DriverLocation{DriverID: id, Lat: pos[i].Latitude, Lng: pos[i].Longitude}
		m := metas[i].Val()
		loc.ZoneID = m["zone"]
		loc.Status = models.DriverStatus(m["status"])
		loc.RideID = m["ride"]
		if t, err := time.Parse(time.RFC3339Nano, m["updated"]); err == nil {
			loc.UpdatedAt = t
		}
		out = append(out, loc)
	}
	return out, nil
}

func metaKey(id string) string { return "driver:meta:" + id }

// stamp orders writes in microseconds; an unset time sorts before any real
// one but after a missing entry.
func stamp(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}
