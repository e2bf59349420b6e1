package fishing

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"

	"catchodds.dev/internal/sim/conditions"
	"catchodds.dev/internal/sim/logic/mathx"
	"catchodds.dev/internal/sim/stats"
	"catchodds.dev/internal/sim/tuning"
)

var (
	ErrNoGeometry = errors.New("no water geometry configured")
	ErrNoCaster   = errors.New("no caster configured")
)

type Config struct {
	Tuning       tuning.Tuning
	Items        ItemSource
	Geometry     WaterGeometry
	Requirements RequirementChecker
	Caster       Caster

	Logger *log.Logger
	Seed   int64
}

// Session owns every cache of one player scope. It is not safe for
// concurrent use; the runtime loop drives it from a single goroutine.
type Session struct {
	cfg    Config
	rng    *rand.Rand
	interp *conditions.Interpreter
	items  *ItemCache
	eval   *Evaluator

	locations map[string]*LocationCache
	lastCtx   conditions.Context
	logged    map[string]bool
}

func NewSession(cfg Config) *Session {
	if cfg.Tuning == (tuning.Tuning{}) {
		cfg.Tuning = tuning.Defaults()
	}
	interp := conditions.NewInterpreter(cfg.Logger)
	items := NewItemCache()
	return &Session{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		interp:    interp,
		items:     items,
		eval:      NewEvaluator(interp, cfg.Items, items, cfg.Requirements, cfg.Logger),
		locations: map[string]*LocationCache{},
		logged:    map[string]bool{},
	}
}

func (s *Session) printf(format string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Printf(format, args...)
	}
}

func (s *Session) logOnce(key, msg string) {
	if s.logged[key] {
		return
	}
	s.logged[key] = true
	s.printf("%s", msg)
}

func (s *Session) Interpreter() *conditions.Interpreter { return s.interp }

func (s *Session) Tuning() tuning.Tuning { return s.cfg.Tuning }

// Location returns the cache for id, creating it on first use.
func (s *Session) Location(id string) *LocationCache {
	loc, ok := s.locations[id]
	if !ok {
		loc = NewLocationCache(id)
		s.locations[id] = loc
	}
	return loc
}

func (s *Session) LocationIDs() []string {
	out := make([]string, 0, len(s.locations))
	for id := range s.locations {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// BatchResult summarises one SimulateCasts call.
type BatchResult struct {
	Location     string
	Casts        int
	Failures     int
	Caught       map[string]int
	CountChanged bool
}

// SimulateCasts runs a batch of casts over sampled water tiles of the
// snapshot's location. Caster failures are logged and counted; they never
// abort the batch.
func (s *Session) SimulateCasts(snap Snapshot) (BatchResult, error) {
	res := BatchResult{Location: snap.Location, Caught: map[string]int{}}
	if s.cfg.Caster == nil {
		return res, ErrNoCaster
	}
	loc := s.Location(snap.Location)
	if err := s.ensureWater(loc); err != nil {
		return res, err
	}

	ctx := s.conditionsContext(snap.Conditions)
	s.lastCtx = ctx
	iterations := s.cfg.Tuning.Simulation.IterationsPerTile
	if iterations <= 0 {
		iterations = 1
	}

	for _, tile := range loc.SampleWater(s.rng, s.cfg.Tuning.Simulation.TilesPerTick) {
		for i := 0; i < iterations; i++ {
			hooks := &castHooks{s: s, loc: loc, cs: CastState{
				Location:   snap.Location,
				Player:     snap.Player,
				Bobber:     tile,
				Season:     ctx.LocationSeason,
				Conditions: ctx,
			}}
			req := CastRequest{Location: snap.Location, Player: snap.Player, Bobber: tile, Conditions: ctx}
			id, err := s.cast(req, hooks)
			res.Casts++
			if err != nil {
				res.Failures++
				s.logOnce("cast:"+err.Error(), fmt.Sprintf("cast at %s failed: %v", snap.Location, err))
				continue
			}
			if id != "" {
				res.Caught[id]++
			}
		}
	}

	// The player does not move during a batch, but the last cast may have
	// evaluated rules against a stale position.
	for _, e := range loc.entries {
		if r := e.rule; r != nil && r.PlayerTileRect != nil && !r.PlayerTileRect.Contains(snap.Player.Tile.X, snap.Player.Tile.Y) {
			e.AddBlockedReason(WrongPlayerPos)
		}
	}
	if loc.CountChanged() {
		loc.ResetVariance()
		loc.UpdateCatchableCount()
		res.CountChanged = true
	}
	return res, nil
}

func (s *Session) cast(req CastRequest, hooks CastHooks) (id string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			id, err = "", fmt.Errorf("caster panicked at (%d,%d): %v", req.Bobber.X, req.Bobber.Y, rec)
		}
	}()
	return s.cfg.Caster.SimulateCast(req, hooks)
}

func (s *Session) conditionsContext(ctx conditions.Context) conditions.Context {
	if ctx.Roll == nil {
		ctx.Roll = s.rng
	}
	if ctx.LookaheadYears <= 0 {
		ctx.LookaheadYears = s.cfg.Tuning.LookaheadYears
	}
	return ctx
}

func (s *Session) ensureWater(loc *LocationCache) error {
	if loc.waterReady {
		return nil
	}
	if s.cfg.Geometry == nil {
		return ErrNoGeometry
	}
	tiles, err := s.cfg.Geometry.WaterTiles(loc.ID)
	if err != nil {
		return fmt.Errorf("water tiles for %s: %w", loc.ID, err)
	}
	limit := s.cfg.Tuning.Water.MaxShoreDistance
	kept := make([]WaterTile, 0, len(tiles))
	for _, t := range tiles {
		if limit > 0 && t.Distance > limit {
			continue
		}
		kept = append(kept, t)
	}
	loc.setWater(kept)
	s.printf("cached %d water tiles for %s (%d beyond shore distance %d)", len(kept), loc.ID, len(tiles)-len(kept), limit)
	return nil
}

// Recompute aggregates the hook chances of the location's eligible entries
// and returns the cumulative catch chance. Once converged, with an unchanged
// eligible set and nothing queued, it returns the previous result without
// touching any statistic.
func (s *Session) Recompute(locationID string) float64 {
	loc, ok := s.locations[locationID]
	if !ok {
		return 0
	}
	c := s.cfg.Tuning.Convergence
	changed := loc.CountChanged()
	if loc.hasCumulative && loc.queued == 0 && !changed && loc.Converged(c.MinSamples, c.MaxVariance) {
		return loc.lastCumulative
	}
	loc.dequeue()
	if changed {
		loc.ResetVariance()
		loc.UpdateCatchableCount()
	}

	ordered := loc.RandomOrder(s.rng)
	for _, e := range ordered {
		if !e.CouldSpawn() {
			e.SetSpawnAllowed()
		}
	}
	cumulative := Aggregate(ordered, &loc.variance, s.cfg.Tuning.GuaranteedEpsilon)
	loc.lastCumulative = cumulative
	loc.hasCumulative = true
	return cumulative
}

// Aggregate walks ordered entries, giving each the chance that it is the
// one caught given every earlier entry missed. An only-non-fish entry with
// a certain spawn absorbs the remaining probability; entries after it are
// blocked with ReachedGuaranteedItem.
func Aggregate(ordered []*Entry, tracker *stats.Online, epsilon float64) float64 {
	notCaught := 1.0
	cumulative := 0.0
	reachedGuaranteed := false
	for _, e := range ordered {
		if reachedGuaranteed {
			e.AddBlockedReason(ReachedGuaranteedItem)
			continue
		}
		var chance float64
		if e.OnlyNonFish() && mathx.AlmostEqual(e.ChanceToSpawn(), 1, epsilon) {
			chance = 1 - cumulative
			reachedGuaranteed = true
		} else {
			chance = e.ChanceToSpawn() * notCaught
		}
		e.ActualHookChance.Add(chance)
		cumulative += chance
		notCaught *= e.ChanceToNotSpawn()
		if tracker != nil {
			tracker.Add(e.ActualHookChance.Variance())
		}
	}
	return cumulative
}

// Converged reports whether the location's next Recompute would be skipped.
func (s *Session) Converged(locationID string) bool {
	loc, ok := s.locations[locationID]
	if !ok {
		return false
	}
	c := s.cfg.Tuning.Convergence
	return loc.hasCumulative && loc.queued == 0 && !loc.CountChanged() && loc.Converged(c.MinSamples, c.MaxVariance)
}

// QueueRecompute forces the next Recompute of the location to aggregate.
func (s *Session) QueueRecompute(locationID string) {
	s.Location(locationID).Queue()
}

// ResetStatistics drops every gathered statistic, as when the player
// equips or unequips a rod.
func (s *Session) ResetStatistics() {
	for _, loc := range s.locations {
		loc.resetStatistics()
		loc.Queue()
	}
}

// InvalidateWater forgets the location's water tiles and the statistics
// gathered over them.
func (s *Session) InvalidateWater(locationID string) {
	loc, ok := s.locations[locationID]
	if !ok {
		return
	}
	loc.waterReady = false
	loc.water = nil
	loc.resetStatistics()
	for _, e := range loc.entries {
		e.InvalidateItems()
	}
}

// Teardown clears every cache, as on return to the title screen.
func (s *Session) Teardown() {
	s.locations = map[string]*LocationCache{}
	s.interp.Caches().Clear()
	s.items.Clear()
	s.logged = map[string]bool{}
}

type OddsRow struct {
	ID                string  `json:"id"`
	DisplayName       string  `json:"display_name"`
	HookChancePercent float64 `json:"hook_chance_percent"`
	OnlyNonFish       bool    `json:"only_non_fish"`
	Precedence        int     `json:"precedence"`
	Samples           int     `json:"samples"`
	// LastDayThisSeason is the latest day of the current season on which the
	// rule's condition holds; empty for unconditional rules.
	LastDayThisSeason string  `json:"last_day_this_season,omitempty"`
}

// Odds lists the catchable entries of a location in display order.
func (s *Session) Odds(locationID string) []OddsRow {
	loc, ok := s.locations[locationID]
	if !ok {
		return nil
	}
	entries := loc.DisplayOrder()
	out := make([]OddsRow, 0, len(entries))
	for _, e := range entries {
		out = append(out, OddsRow{
			ID:                e.ID,
			DisplayName:       e.DisplayName(),
			HookChancePercent: e.ActualHookChance.Mean() * 100,
			OnlyNonFish:       e.OnlyNonFish(),
			Precedence:        e.Precedence,
			Samples:           e.ActualHookChance.Count(),
			LastDayThisSeason: s.lastDayThisSeason(e),
		})
	}
	return out
}

func (s *Session) lastDayThisSeason(e *Entry) string {
	r := e.rule
	if r == nil || !r.HasCondition() {
		return ""
	}
	fr := s.interp.ResolveFuture(r.Condition, s.lastCtx)
	if !fr.HasDate(s.lastCtx.Today) {
		return ""
	}
	last, ok := fr.LastDateInSeason(s.lastCtx.Today, true)
	if !ok {
		return ""
	}
	return last.String()
}

type BlockedRow struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Reasons     []string `json:"reasons"`
	Requirement string   `json:"requirement,omitempty"`
	NextDate    string   `json:"next_date,omitempty"`
}

// Blocked lists the entries that cannot be caught right now with their
// reasons and, for conditional rules, the next date the condition holds.
func (s *Session) Blocked(locationID string) []BlockedRow {
	loc, ok := s.locations[locationID]
	if !ok {
		return nil
	}
	var out []BlockedRow
	for _, e := range loc.Entries() {
		if e.CouldSpawn() {
			continue
		}
		row := BlockedRow{ID: e.ID, DisplayName: e.DisplayName()}
		for _, r := range e.BlockReasons() {
			row.Reasons = append(row.Reasons, r.String())
		}
		if r := e.rule; r != nil && r.HasCondition() {
			row.Requirement = s.interp.Describe(r.Condition)
			if next, ok := s.interp.ResolveFuture(r.Condition, s.lastCtx).NextDate(s.lastCtx.Today, false); ok {
				row.NextDate = next.String()
			}
		}
		out = append(out, row)
	}
	return out
}

type castHooks struct {
	s   *Session
	loc *LocationCache
	cs  CastState
}

func (h *castHooks) EvaluateSpawnTable(table SpawnTable) map[string]bool {
	cs := h.cs
	if table.Location != "" {
		cs.Location = table.Location
	}
	return h.s.eval.EvaluateArea(h.loc, table, cs)
}

func (h *castHooks) EntryPicked(ruleID string, chance float64) {
	if e, ok := h.loc.Entry(ruleID); ok {
		e.EntryPickedChance.Add(mathx.Clamp01(chance))
	}
}
