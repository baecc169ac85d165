package geo

import (
	"context"
	"sort"
	"sync"

	"github.com/example/autoride/internal/models"
)

// LocationIndex stores the single most recent position of each driver.
type LocationIndex interface {
	Upsert(ctx context.Context, loc models.DriverLocation) error
	Get(ctx context.Context, driverID string) (models.DriverLocation, bool, error)
	All(ctx context.Context) ([]models.DriverLocation, error)
}

// Index is the in-process LocationIndex.
type Index struct {
	mu   sync.RWMutex
	locs map[string]models.DriverLocation
}

var _ LocationIndex = (*Index)(nil)

func NewIndex() *Index {
	return &Index{locs: make(map[string]models.DriverLocation)}
}

func (g *Index) Upsert(_ context.Context, loc models.DriverLocation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.locs[loc.DriverID] = loc
	return nil
}

func (g *Index) Get(_ context.Context, driverID string) (models.DriverLocation, bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	loc, ok := g.locs[driverID]
	return loc, ok, nil
}

// All returns every entry ordered by driver id.
func (g *Index) All(_ context.Context) ([]models.DriverLocation, error) {
	g.mu.RLock()
	out := make([]models.DriverLocation, 0, len(g.locs))
	for _, l := range g.locs {
		out = append(out, l)
	}
	g.mu.RUnlock()
	sortByDriver(out)
	return out, nil
}

func sortByDriver(locs []models.DriverLocation) {
	sort.Slice(locs, func(i, j int) bool { return locs[i].DriverID < locs[j].DriverID })
}
