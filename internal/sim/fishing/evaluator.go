package fishing

import (
	"fmt"
	"log"

	"catchodds.dev/internal/sim/calendar"
	"catchodds.dev/internal/sim/conditions"
)

// CastState is the part of a cast the evaluator checks rules against.
type CastState struct {
	Location   string
	Player     Player
	Bobber     WaterTile
	Season     calendar.Season
	Conditions conditions.Context
}

// Evaluator updates spawn entries for one cast. All checks run; a rule may
// collect several block reasons.
type Evaluator struct {
	interp *conditions.Interpreter
	items  ItemSource
	cache  *ItemCache
	req    RequirementChecker
	log    *log.Logger
	logged map[string]bool
}

func NewEvaluator(interp *conditions.Interpreter, items ItemSource, cache *ItemCache, req RequirementChecker, logger *log.Logger) *Evaluator {
	return &Evaluator{interp: interp, items: items, cache: cache, req: req, log: logger, logged: map[string]bool{}}
}

func (ev *Evaluator) printf(format string, args ...any) {
	if ev.log != nil {
		ev.log.Printf(format, args...)
	}
}

func (ev *Evaluator) logOnce(key, msg string) {
	if ev.logged[key] {
		return
	}
	ev.logged[key] = true
	ev.printf("%s", msg)
}

// EvaluateArea resets every entry of loc, then checks each rule of table
// against cs. It returns the ids of the rules left eligible.
func (ev *Evaluator) EvaluateArea(loc *LocationCache, table SpawnTable, cs CastState) map[string]bool {
	loc.ResetSpawnChecks()
	eligible := make(map[string]bool, len(table.Rules))
	for _, tr := range table.Rules {
		e := loc.GetOrCreate(tr.SpawnRule)
		ev.evaluateRule(e, tr, table.AreaID, cs)
		if e.CouldSpawn() {
			eligible[e.ID] = true
		}
	}
	return eligible
}

func (ev *Evaluator) evaluateRule(e *Entry, tr TableRule, areaID string, cs CastState) {
	rule := tr.SpawnRule
	if err := e.ResolveItems(ev.items, ev.cache, cs.Bobber, false); err != nil {
		ev.logOnce("items:"+e.ID+":"+err.Error(), fmt.Sprintf("item lookup failed: %v", err))
	}
	// Without items there is nothing to catch.
	if len(e.Items()) == 0 {
		e.AddBlockedReason(InvalidFormat)
	}

	if tr.Inherited && !rule.CanBeInherited {
		e.AddBlockedReason(WrongFishingArea)
	}
	if rule.FishAreaID != "" && rule.FishAreaID != areaID {
		e.AddBlockedReason(WrongFishingArea)
	}
	if rule.Season != "" && !cs.Player.MagicBait {
		s, ok := calendar.ParseSeason(rule.Season)
		if !ok {
			e.AddBlockedReason(InvalidFormat)
		} else if s != cs.Season {
			e.AddBlockedReason(WrongSeason)
		}
	}
	if rule.PlayerTileRect != nil && !rule.PlayerTileRect.Contains(cs.Player.Tile.X, cs.Player.Tile.Y) {
		e.AddBlockedReason(WrongPlayerPos)
	}
	if rule.BobberTileRect != nil && !rule.BobberTileRect.Contains(cs.Bobber.X, cs.Bobber.Y) {
		e.AddBlockedReason(WrongBobberPos)
	}
	if cs.Player.FishingLevel < rule.MinFishingLevel {
		e.AddBlockedReason(PlayerLevelTooLow)
	}
	if cs.Bobber.Distance < rule.MinDistanceFromShore {
		e.AddBlockedReason(WaterTooShallow)
	}
	if rule.MaxDistanceFromShore > -1 && cs.Bobber.Distance > rule.MaxDistanceFromShore {
		e.AddBlockedReason(WaterTooDeep)
	}
	if rule.RequireMagicBait && !cs.Player.MagicBait {
		e.AddBlockedReason(RequiresMagicBait)
	}

	for _, item := range e.Items() {
		if rule.CatchLimit > -1 && cs.Player.FishCaught[item.ID] >= rule.CatchLimit {
			e.AddBlockedReason(OverCatchLimit)
		}
		res, ok := ev.checkGeneric(GenericRequest{
			Item:          item,
			Rule:          rule,
			Location:      cs.Location,
			Depth:         cs.Bobber.Distance,
			Rod:           cs.Player.Rod,
			Bait:          cs.Player.Bait,
			MagicBait:     cs.Player.MagicBait,
			CuriosityLure: cs.Player.CuriosityLure,
			Tutorial:      cs.Player.Tutorial,
			FishingLevel:  cs.Player.FishingLevel,
			Conditions:    cs.Conditions,
		})
		if !ok {
			continue
		}
		for _, r := range res.Blocked {
			e.AddBlockedReason(r)
		}
		if res.HasProbability {
			e.SpawnProbability.Add(res.SpawnProbability)
		}
	}

	if rule.HasCondition() {
		ev.applyCondition(e, rule.Condition, cs.Conditions)
	}

	if e.IsOnlyUnknown() {
		e.SetSpawnAllowed()
	}
}

// checkGeneric calls the host. A panicking host yields no information.
func (ev *Evaluator) checkGeneric(req GenericRequest) (res GenericResult, ok bool) {
	if ev.req == nil {
		return GenericResult{}, false
	}
	defer func() {
		if rec := recover(); rec != nil {
			ev.logOnce("generic:"+req.Rule.ID, fmt.Sprintf("generic requirement check for %s panicked: %v", req.Rule.ID, rec))
			res, ok = GenericResult{}, false
		}
	}()
	return ev.req.CheckGenericRequirements(req), true
}

func (ev *Evaluator) applyCondition(e *Entry, raw string, ctx conditions.Context) {
	res := ev.interp.Check(raw, ctx)
	for _, q := range res.Failed {
		e.AddBlockedReason(reasonForVerb(q, conditions.FailureVerb(q), WrongGameState))
	}
	for _, q := range res.Malformed {
		e.AddBlockedReason(reasonForVerb(q, q.VerbName(), InvalidFormat))
	}
	for range res.Unsupported {
		e.AddBlockedReason(WrongGameState)
	}
}

// reasonForVerb maps a failing clause to the block reason of its verb family.
func reasonForVerb(q conditions.Query, verb string, fallback BlockReason) BlockReason {
	switch conditions.LookupVerb(verb) {
	case conditions.VerbSeason, conditions.VerbLocationSeason:
		return WrongSeason
	case conditions.VerbSeasonDay, conditions.VerbDayOfWeek, conditions.VerbDayOfMonth:
		return WrongDay
	case conditions.VerbTime:
		return WrongTime
	case conditions.VerbWeather:
		if len(q.Args()) < 2 {
			return fallback
		}
		if conditions.RequiresRain(q) {
			return RequiresRain
		}
		return RequiresSun
	}
	return fallback
}
