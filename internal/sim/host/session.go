package host

import (
	"log"

	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/fishing"
	"catchodds.dev/internal/sim/tuning"
)

// NewSession wires an engine session to the catalog-backed collaborators.
func NewSession(c *catalogs.Catalogs, t tuning.Tuning, logger *log.Logger, seed int64) *fishing.Session {
	req := Requirements{}
	return fishing.NewSession(fishing.Config{
		Tuning:       t,
		Items:        c,
		Geometry:     NewGeometry(c),
		Requirements: req,
		Caster:       NewCaster(c, req, seed+1),
		Logger:       logger,
		Seed:         seed,
	})
}
