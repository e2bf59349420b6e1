package host

import (
	"errors"
	"fmt"

	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/fishing"
)

var ErrUnknownLocation = errors.New("unknown location")

// DefaultMaxRings bounds the land search around a water tile.
const DefaultMaxRings = 10

// Geometry reads water tiles from location maps.
type Geometry struct {
	cat      *catalogs.Catalogs
	MaxRings int
}

func NewGeometry(c *catalogs.Catalogs) *Geometry {
	return &Geometry{cat: c, MaxRings: DefaultMaxRings}
}

// WaterTiles lists the visible water tiles of a location with their
// distance to land. Invisible water counts as water, never as land.
func (g *Geometry) WaterTiles(location string) ([]fishing.WaterTile, error) {
	def, ok := g.cat.Location(location)
	if !ok {
		return nil, fmt.Errorf("location %q: %w", location, ErrUnknownLocation)
	}
	w, h := def.Size()
	var out []fishing.WaterTile
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !def.IsWater(x, y) {
				continue
			}
			out = append(out, fishing.WaterTile{X: x, Y: y, Distance: DistanceToLand(def, x, y, g.MaxRings)})
		}
	}
	return out, nil
}

// DistanceToLand searches square rings around (x, y) and returns one less
// than the radius of the first ring holding a non-water tile. Tiles off the
// map are land. The result is capped at maxRings.
func DistanceToLand(def catalogs.LocationDef, x, y, maxRings int) int {
	for r := 1; r <= maxRings; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if dx != -r && dx != r && dy != -r && dy != r {
					continue
				}
				if !def.HasWater(x+dx, y+dy) {
					return r - 1
				}
			}
		}
	}
	return maxRings
}
