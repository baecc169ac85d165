package fare

import (
	"fmt"
	"math"

	"github.com/example/autoride/internal/models"
)

// Catalog is the subset of the zone catalog the engine reads.
type Catalog interface {
	Get(id string) (models.Zone, error)
	Hint(a, b string) (models.RouteHint, bool)
}

// Quote is the frozen price estimate for a zone pair.
type Quote struct {
	DistanceKm      float64 `json:"distanceKm"`
	DurationMinutes int     `json:"durationMinutes"`
	Fare            int     `json:"fare"`
	FromRouteHint   bool    `json:"fromRouteHint"`
}

const (
	DefaultDistanceKm = 3.0
	DefaultMinutesKm  = 3.0 // ~20 km/h city auto speed
)

type Engine struct {
	Catalog Catalog
	// DefaultDistanceKm is used when no route hint covers the pair.
	DefaultDistanceKm float64
	// MinutesPerKm converts distance to a duration estimate.
	MinutesPerKm float64
}

func NewEngine(c Catalog) *Engine {
	return &Engine{Catalog: c, DefaultDistanceKm: DefaultDistanceKm, MinutesPerKm: DefaultMinutesKm}
}

// Quote prices a trip between two zones. Known corridors use their
// precomputed fare; everything else falls back to the pickup zone's tariff
// over a flat distance. There is no randomness here: identical inputs give
// identical quotes.
func (e *Engine) Quote(pickupZoneID, dropZoneID string) (Quote, error) {
	pickup, err := e.Catalog.Get(pickupZoneID)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: pickup %q", models.ErrInvalidZone, pickupZoneID)
	}
	if _, err := e.Catalog.Get(dropZoneID); err != nil {
		return Quote{}, fmt.Errorf("%w: drop %q", models.ErrInvalidZone, dropZoneID)
	}

	if h, ok := e.Catalog.Hint(pickupZoneID, dropZoneID); ok {
		return Quote{
			DistanceKm:      h.DistanceKm,
			DurationMinutes: e.duration(h.DistanceKm),
			Fare:            h.Fare,
			FromRouteHint:   true,
		}, nil
	}

	dist := e.DefaultDistanceKm
	if dist <= 0 {
		dist = DefaultDistanceKm
	}
	return Quote{
		DistanceKm:      dist,
		DurationMinutes: e.duration(dist),
		Fare:            TariffFare(pickup, dist),
	}, nil
}

func (e *Engine) duration(km float64) int {
	perKm := e.MinutesPerKm
	if perKm <= 0 {
		perKm = DefaultMinutesKm
	}
	return int(math.Round(km * perKm))
}

// TariffFare applies a zone tariff to a distance, honouring the minimum fare.
func TariffFare(z models.Zone, distanceKm float64) int {
	return int(math.Round(math.Max(z.BaseFare+distanceKm*z.PerKmRate, z.MinimumFare)))
}
