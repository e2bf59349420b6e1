package host

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/fishing"
)

// Caster is a reference fish-selection routine driven by the catalogs. It
// asks the engine to evaluate the spawn table, then walks eligible rules in
// precedence order, rolling each rule's chance and the fish's bite chance.
type Caster struct {
	cat *catalogs.Catalogs
	req fishing.RequirementChecker
	rng *rand.Rand
}

func NewCaster(c *catalogs.Catalogs, req fishing.RequirementChecker, seed int64) *Caster {
	if req == nil {
		req = Requirements{}
	}
	return &Caster{cat: c, req: req, rng: rand.New(rand.NewSource(seed))}
}

// Table assembles the rules a cast at location walks: the location's own
// spawns (or those of the location it borrows from), then the default
// location's spawns when it inherits them.
func (c *Caster) Table(location string, bobber fishing.WaterTile) (fishing.SpawnTable, error) {
	def, ok := c.cat.Location(location)
	if !ok {
		return fishing.SpawnTable{}, fmt.Errorf("location %q: %w", location, ErrUnknownLocation)
	}
	t := fishing.SpawnTable{Location: location, AreaID: def.AreaAt(bobber.X, bobber.Y)}

	own, inherited := def.Spawns, false
	if def.InheritFrom != "" {
		src, ok := c.cat.Location(def.InheritFrom)
		if !ok {
			return t, fmt.Errorf("location %q inherits from %q: %w", location, def.InheritFrom, ErrUnknownLocation)
		}
		own, inherited = src.Spawns, true
	}
	for _, r := range own {
		t.Rules = append(t.Rules, fishing.TableRule{SpawnRule: r, Inherited: inherited})
	}
	if def.InheritDefault && location != catalogs.DefaultLocationID {
		if d, ok := c.cat.Location(catalogs.DefaultLocationID); ok {
			for _, r := range d.Spawns {
				t.Rules = append(t.Rules, fishing.TableRule{SpawnRule: r, Inherited: true})
			}
		}
	}
	return t, nil
}

func (c *Caster) SimulateCast(req fishing.CastRequest, hooks fishing.CastHooks) (string, error) {
	table, err := c.Table(req.Location, req.Bobber)
	if err != nil {
		return "", err
	}
	eligible := hooks.EvaluateSpawnTable(table)

	rules := make([]fishing.TableRule, len(table.Rules))
	copy(rules, table.Rules)
	c.rng.Shuffle(len(rules), func(i, j int) { rules[i], rules[j] = rules[j], rules[i] })
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Precedence < rules[j].Precedence })

	for _, r := range rules {
		if !eligible[r.ID] {
			continue
		}
		hooks.EntryPicked(r.ID, r.Chance)
		if c.rng.Float64() >= r.Chance {
			continue
		}
		items := c.items(r.SpawnRule, req.Bobber)
		if len(items) == 0 {
			continue
		}
		item := items[c.rng.Intn(len(items))]
		if item.IsFish() && !c.bites(item, r.SpawnRule, req) {
			continue
		}
		return item.ID, nil
	}
	return "", nil
}

func (c *Caster) bites(item catalogs.ItemDef, rule catalogs.SpawnRule, req fishing.CastRequest) bool {
	res := c.req.CheckGenericRequirements(fishing.GenericRequest{
		Item:          item,
		Rule:          rule,
		Location:      req.Location,
		Depth:         req.Bobber.Distance,
		Rod:           req.Player.Rod,
		Bait:          req.Player.Bait,
		MagicBait:     req.Player.MagicBait,
		CuriosityLure: req.Player.CuriosityLure,
		Tutorial:      req.Player.Tutorial,
		FishingLevel:  req.Player.FishingLevel,
		Conditions:    req.Conditions,
	})
	if len(res.Blocked) > 0 {
		return false
	}
	return !res.HasProbability || c.rng.Float64() < res.SpawnProbability
}

func (c *Caster) items(rule catalogs.SpawnRule, tile fishing.WaterTile) []catalogs.ItemDef {
	if len(rule.RandomItemIDs) > 0 {
		var out []catalogs.ItemDef
		for _, id := range rule.RandomItemIDs {
			if d, err := c.cat.Lookup(id); err == nil {
				out = append(out, d)
			}
		}
		return out
	}
	query := strings.NewReplacer(
		"BOBBER_X", strconv.Itoa(tile.X),
		"BOBBER_Y", strconv.Itoa(tile.Y),
		"WATER_DEPTH", strconv.Itoa(tile.Distance),
	).Replace(rule.ItemRef())
	out, _ := c.cat.ResolveQuery(query)
	return out
}
