package fishing

import (
	"math/rand"
	"sort"

	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/stats"
)

// LocationCache holds the entries and convergence state of one location.
type LocationCache struct {
	ID string

	water      []WaterTile
	waterReady bool

	entries map[string]*Entry

	// variance tracks the hook-chance variance of entries across passes.
	variance       stats.Online
	lastCatchable  int
	queued         int
	lastCumulative float64
	hasCumulative  bool
}

func NewLocationCache(id string) *LocationCache {
	return &LocationCache{ID: id, entries: map[string]*Entry{}}
}

// GetOrCreate returns the entry for rule, creating it on first sight. The
// entry always carries the latest rule; a changed item reference
// invalidates its items.
func (l *LocationCache) GetOrCreate(rule catalogs.SpawnRule) *Entry {
	e, ok := l.entries[rule.ID]
	if !ok {
		e = NewRuleEntry(rule)
		l.entries[rule.ID] = e
		return e
	}
	if e.rule != nil {
		if !sameItems(*e.rule, rule) {
			e.InvalidateItems()
		}
		r := rule
		e.rule = &r
		e.Precedence = rule.Precedence
	}
	return e
}

func sameItems(a, b catalogs.SpawnRule) bool {
	if a.ItemID != b.ItemID || len(a.RandomItemIDs) != len(b.RandomItemIDs) {
		return false
	}
	for i := range a.RandomItemIDs {
		if a.RandomItemIDs[i] != b.RandomItemIDs[i] {
			return false
		}
	}
	return true
}

// put adds or replaces an entry.
func (l *LocationCache) put(e *Entry) { l.entries[e.ID] = e }

func (l *LocationCache) Entry(id string) (*Entry, bool) {
	e, ok := l.entries[id]
	return e, ok
}

func (l *LocationCache) Entries() []*Entry {
	out := make([]*Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (l *LocationCache) ResetSpawnChecks() {
	for _, e := range l.entries {
		e.ResetBlockChecks()
	}
}

func (l *LocationCache) Catchable() []*Entry {
	var out []*Entry
	for _, e := range l.entries {
		if e.CouldSpawn() {
			out = append(out, e)
		}
	}
	return out
}

// DisplayOrder returns the catchable entries by precedence, then name.
func (l *LocationCache) DisplayOrder() []*Entry {
	out := l.Catchable()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Precedence != out[j].Precedence {
			return out[i].Precedence < out[j].Precedence
		}
		ni, nj := out[i].DisplayName(), out[j].DisplayName()
		if ni != nj {
			return ni < nj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// eligible returns the entries that passed the last cast, including those
// only displaced by a guaranteed entry during the last aggregation.
func (l *LocationCache) eligible() []*Entry {
	var out []*Entry
	for _, e := range l.entries {
		if e.CouldSpawn() || (len(e.blocked) == 1 && e.IsBlockedBy(ReachedGuaranteedItem)) {
			out = append(out, e)
		}
	}
	return out
}

// RandomOrder returns the eligible entries by precedence, shuffling ties
// the way the host does when it casts.
func (l *LocationCache) RandomOrder(rng *rand.Rand) []*Entry {
	out := l.eligible()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	keys := make(map[*Entry]float64, len(out))
	for _, e := range out {
		keys[e] = rng.Float64()
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Precedence != out[j].Precedence {
			return out[i].Precedence < out[j].Precedence
		}
		return keys[out[i]] < keys[out[j]]
	})
	return out
}

// CountChanged reports whether the number of eligible entries moved since
// the last UpdateCatchableCount.
func (l *LocationCache) CountChanged() bool { return len(l.eligible()) != l.lastCatchable }

func (l *LocationCache) UpdateCatchableCount() { l.lastCatchable = len(l.eligible()) }

func (l *LocationCache) AddVarianceData(v float64) { l.variance.Add(v) }

func (l *LocationCache) Variance() *stats.Online { return &l.variance }

// Converged reports whether more than minSamples variance samples were
// seen and their variance is below maxVariance.
func (l *LocationCache) Converged(minSamples int, maxVariance float64) bool {
	return l.variance.Count() > minSamples && l.variance.Variance() < maxVariance
}

func (l *LocationCache) ResetVariance() { l.variance.Reset() }

// Queue forces the next Recompute to aggregate even when converged.
func (l *LocationCache) Queue() { l.queued++ }

func (l *LocationCache) Queued() int { return l.queued }

func (l *LocationCache) dequeue() {
	if l.queued > 0 {
		l.queued--
	}
}

func (l *LocationCache) LastCumulative() (float64, bool) { return l.lastCumulative, l.hasCumulative }

func (l *LocationCache) WaterTiles() []WaterTile { return l.water }

func (l *LocationCache) setWater(tiles []WaterTile) {
	l.water = tiles
	l.waterReady = true
}

// SampleWater picks n distinct water tiles. n <= 0 or n >= len returns all.
func (l *LocationCache) SampleWater(rng *rand.Rand, n int) []WaterTile {
	if n <= 0 || n >= len(l.water) {
		out := make([]WaterTile, len(l.water))
		copy(out, l.water)
		return out
	}
	out := make([]WaterTile, 0, n)
	for _, i := range rng.Perm(len(l.water))[:n] {
		out = append(out, l.water[i])
	}
	return out
}

func (l *LocationCache) resetStatistics() {
	for _, e := range l.entries {
		e.ResetStatistics()
	}
	l.variance.Reset()
	l.hasCumulative = false
	l.lastCumulative = 0
}
