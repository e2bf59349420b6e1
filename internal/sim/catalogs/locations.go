package catalogs

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func (r Rect) Contains(x, y int) bool {
	return x >= r.X && y >= r.Y && x < r.X+r.W && y < r.Y+r.H
}

type FishArea struct {
	ID   string `json:"id"`
	Rect Rect   `json:"rect"`
}

// LocationDef describes one fishable location. Water rows use 'W' for
// visible water, 'I' for invisible water and anything else for land.
// InheritFrom borrows another location's spawn table instead of Spawns.
type LocationDef struct {
	ID             string      `json:"id"`
	Outdoors       bool        `json:"outdoors"`
	Season         string      `json:"season,omitempty"`
	InheritDefault bool        `json:"inherit_default"`
	InheritFrom    string      `json:"inherit_from,omitempty"`
	Areas          []FishArea  `json:"areas,omitempty"`
	Water          []string    `json:"water"`
	Spawns         []SpawnRule `json:"spawns"`
}

// DefaultLocationID names the location whose spawns every other location can inherit.
const DefaultLocationID = "Default"

func (l LocationDef) check() error {
	seen := map[string]bool{}
	for _, r := range l.Spawns {
		if seen[r.ID] {
			return fmt.Errorf("duplicate spawn id %q", r.ID)
		}
		seen[r.ID] = true
		if r.ItemID == "" && len(r.RandomItemIDs) == 0 {
			return fmt.Errorf("spawn %s: needs item_id or random_item_ids", r.ID)
		}
	}
	return nil
}

// AreaAt returns the fishing area containing the tile, or "" if none does.
func (l LocationDef) AreaAt(x, y int) string {
	for _, a := range l.Areas {
		if a.Rect.Contains(x, y) {
			return a.ID
		}
	}
	return ""
}

// IsWater reports whether the tile holds visible water.
func (l LocationDef) IsWater(x, y int) bool {
	if y < 0 || y >= len(l.Water) {
		return false
	}
	row := l.Water[y]
	if x < 0 || x >= len(row) {
		return false
	}
	return row[x] == 'W'
}

// HasWater reports whether the tile holds any water, visible or not.
func (l LocationDef) HasWater(x, y int) bool {
	if y < 0 || y >= len(l.Water) {
		return false
	}
	row := l.Water[y]
	if x < 0 || x >= len(row) {
		return false
	}
	return row[x] == 'W' || row[x] == 'I'
}

func (l LocationDef) Size() (w, h int) {
	for _, row := range l.Water {
		if len(row) > w {
			w = len(row)
		}
	}
	return w, len(l.Water)
}

// SpawnRule is one entry of a location's spawn table.
type SpawnRule struct {
	ID                   string   `json:"id"`
	ItemID               string   `json:"item_id,omitempty"`
	RandomItemIDs        []string `json:"random_item_ids,omitempty"`
	Season               string   `json:"season,omitempty"`
	FishAreaID           string   `json:"fish_area_id,omitempty"`
	CanBeInherited       bool     `json:"can_be_inherited"`
	MinDistanceFromShore int      `json:"min_distance_from_shore"`
	MaxDistanceFromShore int      `json:"max_distance_from_shore"`
	MinFishingLevel      int      `json:"min_fishing_level"`
	CatchLimit           int      `json:"catch_limit"`
	RequireMagicBait     bool     `json:"require_magic_bait"`
	Condition            string   `json:"condition,omitempty"`
	Chance               float64  `json:"chance"`
	Precedence           int      `json:"precedence"`
	PlayerTileRect       *Rect    `json:"player_tile_rect,omitempty"`
	BobberTileRect       *Rect    `json:"bobber_tile_rect,omitempty"`
}

// UnmarshalJSON fills the defaults for fields a spawn table usually omits:
// unbounded shore distance and catch limit, inheritable, certain chance.
func (r *SpawnRule) UnmarshalJSON(b []byte) error {
	type plain SpawnRule
	p := plain{
		CanBeInherited:       true,
		MaxDistanceFromShore: -1,
		CatchLimit:           -1,
		Chance:               1,
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = SpawnRule(p)
	return nil
}

// NewSpawnRule returns a rule with the same defaults as a decoded one.
func NewSpawnRule(id, itemID string) SpawnRule {
	return SpawnRule{
		ID:                   id,
		ItemID:               itemID,
		CanBeInherited:       true,
		MaxDistanceFromShore: -1,
		CatchLimit:           -1,
		Chance:               1,
	}
}

// ItemRef returns the query the rule resolves when it has no random list.
func (r SpawnRule) ItemRef() string {
	if r.ItemID != "" {
		return r.ItemID
	}
	return r.ID
}

func (r SpawnRule) HasCondition() bool {
	switch strings.TrimSpace(r.Condition) {
	case "", "TRUE":
		return false
	}
	return true
}
