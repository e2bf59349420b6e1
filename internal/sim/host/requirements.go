package host

import (
	"strings"

	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/conditions"
	"catchodds.dev/internal/sim/fishing"
	"catchodds.dev/internal/sim/logic/mathx"
)

const (
	TrainingRod = "training"
	// TrainingRodMaxDifficulty is the first difficulty a training rod cannot hook.
	TrainingRodMaxDifficulty = 50
	// TargetedBaitPrefix marks bait aimed at one fish, e.g. "targeted:(O)145".
	TargetedBaitPrefix = "targeted:"

	maxSpawnChance = 0.9
)

// Requirements implements the host's per-fish checks.
type Requirements struct{}

func (Requirements) CheckGenericRequirements(req fishing.GenericRequest) fishing.GenericResult {
	f := req.Item.Fish
	if f == nil {
		return fishing.GenericResult{}
	}
	var res fishing.GenericResult
	block := func(r fishing.BlockReason) { res.Blocked = append(res.Blocked, r) }

	if req.Rod == TrainingRod && f.Difficulty >= TrainingRodMaxDifficulty {
		block(fishing.PlayerRodTooWeak)
	}
	if req.Tutorial && !f.TutorialCatch {
		block(fishing.TutorialCatch)
	}
	if req.FishingLevel < f.MinLevel {
		block(fishing.PlayerLevelTooLow)
	}
	// Magic bait ignores time and weather as well as season.
	if !req.MagicBait {
		if !inTimeRanges(f.TimeRanges, req.Conditions.TimeOfDay) {
			block(fishing.WrongTime)
		}
		wet := conditions.IsWet(req.Conditions.Weather)
		switch strings.ToLower(f.Weather) {
		case "rainy":
			if !wet {
				block(fishing.RequiresRain)
			}
		case "sunny":
			if wet {
				block(fishing.RequiresSun)
			}
		}
	}

	res.SpawnProbability = SpawnChance(*f, req)
	res.HasProbability = true
	return res
}

func inTimeRanges(ranges [][2]int, t int) bool {
	if len(ranges) == 0 {
		return true
	}
	for _, r := range ranges {
		if t >= r[0] && t < r[1] {
			return true
		}
	}
	return false
}

// SpawnChance is the chance a fish bites once its rule is picked. It falls
// off in water shallower than the fish's max depth and grows with fishing
// level.
func SpawnChance(f catalogs.FishDef, req fishing.GenericRequest) float64 {
	chance := f.SpawnMultiplier
	dropOff := f.DepthMultiplier * chance
	chance -= float64(max(0, f.MaxDepth-req.Depth)) * dropOff
	chance += float64(req.FishingLevel) / 50
	if req.Rod == TrainingRod {
		chance *= 1.1
	}
	chance = min(chance, maxSpawnChance)
	if chance < 0.25 && req.CuriosityLure {
		chance += (0.25 - chance) / 2
	}
	if req.Bait == TargetedBaitPrefix+req.Item.ID {
		chance *= 1.66
	}
	return mathx.Clamp01(chance)
}
