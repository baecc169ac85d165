package zones

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/autoride/internal/models"
)

// Catalog is the immutable registry of service zones and known corridor
// fares. It is safe for concurrent use because nothing mutates it after New.
type Catalog struct {
	order []string
	zones map[string]models.Zone
	hints []models.RouteHint
}

// New validates zones and hints and builds a catalog. Zone ids must be
// unique and every hint must reference two distinct known zones.
func New(zs []models.Zone, hints []models.RouteHint) (*Catalog, error) {
	c := &Catalog{zones: make(map[string]models.Zone, len(zs))}
	for _, z := range zs {
		if z.ID == "" {
			return nil, fmt.Errorf("%w: zone with empty id", models.ErrInvalidZone)
		}
		if z.ID == models.AllZones {
			return nil, fmt.Errorf("%w: %q is reserved", models.ErrInvalidZone, z.ID)
		}
		if _, dup := c.zones[z.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate zone %q", models.ErrInvalidZone, z.ID)
		}
		c.zones[z.ID] = z
		c.order = append(c.order, z.ID)
	}
	for _, h := range hints {
		if h.From == h.To {
			return nil, fmt.Errorf("%w: route hint %q to itself", models.ErrInvalidZone, h.From)
		}
		if !c.Has(h.From) || !c.Has(h.To) {
			return nil, fmt.Errorf("%w: route hint %s<->%s references unknown zone", models.ErrInvalidZone, h.From, h.To)
		}
		if h.DistanceKm <= 0 || h.Fare <= 0 {
			return nil, fmt.Errorf("%w: route hint %s<->%s needs positive fare and distance", models.ErrInvalidZone, h.From, h.To)
		}
	}
	c.hints = append([]models.RouteHint(nil), hints...)
	return c, nil
}

type fileFormat struct {
	Zones  []models.Zone      `yaml:"zones"`
	Routes []models.RouteHint `yaml:"routes"`
}

// LoadFile reads a YAML catalog with top-level "zones" and "routes" lists.
func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zones file: %w", err)
	}
	return Parse(b)
}

// Parse builds a catalog from YAML bytes.
func Parse(b []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse zones file: %w", err)
	}
	if len(f.Zones) == 0 {
		return nil, fmt.Errorf("%w: zones file defines no zones", models.ErrInvalidZone)
	}
	return New(f.Zones, f.Routes)
}

func (c *Catalog) Get(id string) (models.Zone, error) {
	z, ok := c.zones[id]
	if !ok {
		return models.Zone{}, fmt.Errorf("zone %q: %w", id, models.ErrNotFound)
	}
	return z, nil
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.zones[id]
	return ok
}

// List returns zones in load order.
func (c *Catalog) List() []models.Zone {
	out := make([]models.Zone, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.zones[id])
	}
	return out
}

// Hint returns the route hint for the unordered pair, if one exists.
func (c *Catalog) Hint(a, b string) (models.RouteHint, bool) {
	for _, h := range c.hints {
		if h.Matches(a, b) {
			return h, true
		}
	}
	return models.RouteHint{}, false
}

func (c *Catalog) Hints() []models.RouteHint {
	return append([]models.RouteHint(nil), c.hints...)
}
