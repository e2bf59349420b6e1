package host

import (
	"strconv"

	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/conditions"
	"catchodds.dev/internal/sim/fishing"
)

// Checker answers player verbs the condition interpreter has no resolver
// for. Only the current player is known; other targets are reported unknown.
type Checker struct {
	Player fishing.Player
}

func (c Checker) CheckCondition(q conditions.Query, _ conditions.Context) (ok bool, known bool) {
	args := q.Args()
	if len(args) == 0 || (args[0] != "Current" && args[0] != "Any") {
		return false, false
	}
	switch q.VerbName() {
	case "PLAYER_FISHING_LEVEL":
		// PLAYER_FISHING_LEVEL <who> <min> [max]
		if len(args) < 2 {
			return false, false
		}
		lo, err := strconv.Atoi(args[1])
		if err != nil {
			return false, false
		}
		hi := int(^uint(0) >> 1)
		if len(args) > 2 {
			if hi, err = strconv.Atoi(args[2]); err != nil {
				return false, false
			}
		}
		return c.Player.FishingLevel >= lo && c.Player.FishingLevel <= hi, true
	case "PLAYER_HAS_CAUGHT_FISH":
		// PLAYER_HAS_CAUGHT_FISH <who> <item id>
		if len(args) < 2 {
			return false, false
		}
		return c.Player.FishCaught[catalogs.Qualify(args[1])] > 0, true
	}
	return false, false
}
