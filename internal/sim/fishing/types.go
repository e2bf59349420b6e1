package fishing

import (
	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/conditions"
)

// BlockReason explains why an entry cannot be caught on the current cast.
type BlockReason uint8

const (
	WrongFishingArea BlockReason = iota
	WrongPlayerPos
	WrongBobberPos
	WrongGameState
	OverCatchLimit
	WrongSeason
	WrongDay
	WrongTime
	RequiresRain
	RequiresSun
	PlayerLevelTooLow
	PlayerRodTooWeak
	WaterTooShallow
	WaterTooDeep
	RequiresMagicBait
	InvalidFormat
	TutorialCatch
	ReachedGuaranteedItem
	Unknown
)

var reasonNames = [...]string{
	WrongFishingArea:      "wrong_fishing_area",
	WrongPlayerPos:        "wrong_player_pos",
	WrongBobberPos:        "wrong_bobber_pos",
	WrongGameState:        "wrong_game_state",
	OverCatchLimit:        "over_catch_limit",
	WrongSeason:           "wrong_season",
	WrongDay:              "wrong_day",
	WrongTime:             "wrong_time",
	RequiresRain:          "requires_rain",
	RequiresSun:           "requires_sun",
	PlayerLevelTooLow:     "player_level_too_low",
	PlayerRodTooWeak:      "player_rod_too_weak",
	WaterTooShallow:       "water_too_shallow",
	WaterTooDeep:          "water_too_deep",
	RequiresMagicBait:     "requires_magic_bait",
	InvalidFormat:         "invalid_format",
	TutorialCatch:         "tutorial_catch",
	ReachedGuaranteedItem: "reached_guaranteed_item",
	Unknown:               "unknown",
}

func (r BlockReason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// Point is a tile coordinate.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// WaterTile is a fishable tile with its distance to the nearest land tile.
type WaterTile struct {
	X        int `json:"x"`
	Y        int `json:"y"`
	Distance int `json:"distance"`
}

func (w WaterTile) Point() Point { return Point{X: w.X, Y: w.Y} }

// Player is the per-player state a cast depends on.
type Player struct {
	Name          string
	Tile          Point
	FishingLevel  int
	Rod           string
	Bait          string
	MagicBait     bool
	CuriosityLure bool
	Tutorial      bool
	FishCaught    map[string]int
}

// Snapshot is the game state a batch of simulated casts runs against.
// Conditions.LocationSeason must hold the season in effect at Location.
type Snapshot struct {
	Location   string
	Player     Player
	Conditions conditions.Context
}

// ItemSource resolves item references. Lookup is a direct read; ResolveQuery
// may scan the whole catalog.
type ItemSource interface {
	Lookup(id string) (catalogs.ItemDef, error)
	ResolveQuery(query string) ([]catalogs.ItemDef, error)
}

// WaterGeometry enumerates the water tiles of a location.
type WaterGeometry interface {
	WaterTiles(location string) ([]WaterTile, error)
}

// GenericRequest is the argument of one generic requirement check. A fresh
// value is built for every call.
type GenericRequest struct {
	Item          catalogs.ItemDef
	Rule          catalogs.SpawnRule
	Location      string
	Depth         int
	Rod           string
	Bait          string
	MagicBait     bool
	CuriosityLure bool
	Tutorial      bool
	FishingLevel  int
	Conditions    conditions.Context
}

// GenericResult carries the blocks found by the host and, when HasProbability
// is set, the spawn probability the host would roll against.
type GenericResult struct {
	Blocked          []BlockReason
	SpawnProbability float64
	HasProbability   bool
}

// RequirementChecker runs host-specific checks: time, weather, rod, tutorial,
// and the depth-scaled spawn probability.
type RequirementChecker interface {
	CheckGenericRequirements(req GenericRequest) GenericResult
}

// TableRule is one spawn rule as presented to a cast. Inherited is set for
// rules borrowed from another location's table.
type TableRule struct {
	catalogs.SpawnRule
	Inherited bool
}

// SpawnTable is the list of rules a host cast walks at one location.
type SpawnTable struct {
	Location string
	AreaID   string
	Rules    []TableRule
}

// CastRequest asks the host to select a catch for one cast.
type CastRequest struct {
	Location   string
	Player     Player
	Bobber     WaterTile
	Conditions conditions.Context
}

// CastHooks is how the host selection routine reports back to the engine.
type CastHooks interface {
	// EvaluateSpawnTable updates every entry of the table and returns the
	// ids of the rules that may spawn on this cast.
	EvaluateSpawnTable(table SpawnTable) map[string]bool
	// EntryPicked records the chance the host rolled for a rule.
	EntryPicked(ruleID string, chance float64)
}

// Caster runs the host selection routine for one cast and returns the id
// of the caught item, or "" when nothing was caught.
type Caster interface {
	SimulateCast(req CastRequest, hooks CastHooks) (string, error)
}
