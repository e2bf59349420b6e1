package fishing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/logic/mathx"
	"catchodds.dev/internal/sim/stats"
)

// Placeholders substituted into item queries before the expensive resolve.
const (
	placeholderBobberX    = "BOBBER_X"
	placeholderBobberY    = "BOBBER_Y"
	placeholderWaterDepth = "WATER_DEPTH"
)

// Entry is one catchable candidate at a location: a spawn rule, or a fixed
// item. Its blocked set starts as {Unknown}; an empty set means eligible.
type Entry struct {
	ID         string
	Precedence int

	rule  *catalogs.SpawnRule
	fixed *catalogs.ItemDef

	blocked map[BlockReason]struct{}

	items       []catalogs.ItemDef
	itemsLoaded bool
	reload      bool
	itemsTile   WaterTile

	SpawnProbability  stats.Online
	EntryPickedChance stats.Online
	ActualHookChance  stats.Online
}

func NewRuleEntry(rule catalogs.SpawnRule) *Entry {
	r := rule
	e := &Entry{ID: rule.ID, Precedence: rule.Precedence, rule: &r}
	e.ResetBlockChecks()
	return e
}

// newItemEntry builds an entry for an explicit item outside any spawn table.
func newItemEntry(item catalogs.ItemDef, precedence int) *Entry {
	it := item
	e := &Entry{ID: item.ID, Precedence: precedence, fixed: &it}
	e.items = []catalogs.ItemDef{it}
	e.itemsLoaded = true
	e.ResetBlockChecks()
	return e
}

// Rule returns the spawn rule behind the entry, or nil for item entries.
func (e *Entry) Rule() *catalogs.SpawnRule { return e.rule }

func (e *Entry) ResetBlockChecks() {
	e.blocked = map[BlockReason]struct{}{Unknown: {}}
}

// AddBlockedReason inserts r. Any concrete reason displaces Unknown.
func (e *Entry) AddBlockedReason(r BlockReason) {
	if e.blocked == nil {
		e.blocked = map[BlockReason]struct{}{}
	}
	e.blocked[r] = struct{}{}
	if r != Unknown {
		delete(e.blocked, Unknown)
	}
}

func (e *Entry) SetSpawnAllowed() {
	e.blocked = map[BlockReason]struct{}{}
}

func (e *Entry) CouldSpawn() bool { return len(e.blocked) == 0 }

func (e *Entry) IsBlockedBy(r BlockReason) bool {
	_, ok := e.blocked[r]
	return ok
}

// IsOnlyUnknown reports whether no concrete reason was found.
func (e *Entry) IsOnlyUnknown() bool {
	_, ok := e.blocked[Unknown]
	return ok && len(e.blocked) == 1
}

func (e *Entry) BlockReasons() []BlockReason {
	out := make([]BlockReason, 0, len(e.blocked))
	for r := range e.blocked {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InvalidateItems forces the next ResolveItems to reload.
func (e *Entry) InvalidateItems() { e.reload = true }

func (e *Entry) Items() []catalogs.ItemDef { return e.items }

func (e *Entry) DisplayName() string {
	if len(e.items) == 0 {
		return e.ID
	}
	names := make([]string, 0, len(e.items))
	for _, it := range e.items {
		names = append(names, it.Name)
	}
	return strings.Join(names, ", ")
}

// OnlyNonFish reports whether every resolved item lacks fish data.
func (e *Entry) OnlyNonFish() bool {
	if len(e.items) == 0 {
		return false
	}
	for _, it := range e.items {
		if it.IsFish() {
			return false
		}
	}
	return true
}

// ChanceToSpawn is the chance the entry yields its catch when reached.
// Non-fish items have no spawn roll, so only the pick chance counts.
func (e *Entry) ChanceToSpawn() float64 {
	if e.OnlyNonFish() {
		return e.EntryPickedChance.Mean()
	}
	return e.SpawnProbability.Mean() * e.EntryPickedChance.Mean()
}

// ChanceToNotSpawn is (1-spawn)*picked + (1-picked), which reduces to
// 1 - ChanceToSpawn.
func (e *Entry) ChanceToNotSpawn() float64 {
	return mathx.Clamp01(1 - e.ChanceToSpawn())
}

func (e *Entry) ResetStatistics() {
	e.SpawnProbability.Reset()
	e.EntryPickedChance.Reset()
	e.ActualHookChance.Reset()
}

func (e *Entry) tileDependent() bool {
	if e.rule == nil || len(e.rule.RandomItemIDs) > 0 {
		return false
	}
	ref := e.rule.ItemRef()
	return strings.Contains(ref, placeholderBobberX) ||
		strings.Contains(ref, placeholderBobberY) ||
		strings.Contains(ref, placeholderWaterDepth)
}

// ResolveItems fills the entry's items for a bobber tile. It is a no-op
// when items are loaded, unless forced, invalidated, or the rule's query
// depends on a tile other than the one it was resolved for.
//
// Cheap paths run first: the random item list and qualified item ids go
// through the item cache. Only a rule that matches neither falls through
// to ResolveQuery.
func (e *Entry) ResolveItems(src ItemSource, cache *ItemCache, tile WaterTile, force bool) error {
	if e.fixed != nil {
		return nil
	}
	if e.itemsLoaded && !force && !e.reload && (!e.tileDependent() || tile == e.itemsTile) {
		return nil
	}
	e.reload = false
	e.itemsTile = tile
	e.items = nil
	// A failed lookup is retried on the next call.
	defer func() { e.itemsLoaded = len(e.items) > 0 }()

	r := e.rule
	if len(r.RandomItemIDs) > 0 {
		var missing []string
		for _, id := range r.RandomItemIDs {
			d, err := cache.Lookup(src, id)
			if err != nil {
				missing = append(missing, id)
				continue
			}
			e.items = append(e.items, d)
		}
		if len(e.items) == 0 {
			return fmt.Errorf("spawn %s: none of %v resolved: %w", e.ID, missing, catalogs.ErrUnknownItem)
		}
		return nil
	}

	ref := r.ItemRef()
	if catalogs.IsQualified(ref) && catalogs.IsQualified(r.ID) {
		if d, err := cache.Lookup(src, ref); err == nil {
			e.items = []catalogs.ItemDef{d}
			return nil
		}
	}

	query := strings.NewReplacer(
		placeholderBobberX, strconv.Itoa(tile.X),
		placeholderBobberY, strconv.Itoa(tile.Y),
		placeholderWaterDepth, strconv.Itoa(tile.Distance),
	).Replace(ref)
	defs, err := src.ResolveQuery(query)
	if err != nil {
		return fmt.Errorf("spawn %s: resolve %q: %w", e.ID, query, err)
	}
	e.items = defs
	return nil
}

// ItemCache memoizes direct lookups for one session.
type ItemCache struct {
	defs   map[string]catalogs.ItemDef
	misses map[string]error
}

func NewItemCache() *ItemCache {
	return &ItemCache{defs: map[string]catalogs.ItemDef{}, misses: map[string]error{}}
}

func (c *ItemCache) Lookup(src ItemSource, id string) (catalogs.ItemDef, error) {
	if d, ok := c.defs[id]; ok {
		return d, nil
	}
	if err, ok := c.misses[id]; ok {
		return catalogs.ItemDef{}, err
	}
	d, err := src.Lookup(id)
	if err != nil {
		c.misses[id] = err
		return catalogs.ItemDef{}, err
	}
	c.defs[id] = d
	return d, nil
}

func (c *ItemCache) Len() int { return len(c.defs) }

func (c *ItemCache) Clear() {
	c.defs = map[string]catalogs.ItemDef{}
	c.misses = map[string]error{}
}
