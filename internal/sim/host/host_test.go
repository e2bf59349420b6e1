package host

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"catchodds.dev/internal/sim/calendar"
	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/conditions"
	"catchodds.dev/internal/sim/fishing"
	"catchodds.dev/internal/sim/tuning"
)

func repoCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	c, err := catalogs.Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return c
}

func repoScenario(t *testing.T) Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("..", "..", "..", "configs", "scenario.yaml"))
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	return s
}

func TestLoadRepoScenario(t *testing.T) {
	s := repoScenario(t)
	if s.WorldID != 184467 || s.Player.Location != "Town" || s.Player.FishCaught["(O)145"] != 2 {
		t.Fatalf("scenario=%+v", s)
	}
	if got, want := s.Today(), calendar.New(1, calendar.Spring, 1); got != want {
		t.Fatalf("today=%v want %v", got, want)
	}
	if s.FishingPlayer().Tutorial {
		t.Fatalf("player with catches is not in the tutorial")
	}
}

func TestScenarioValidation(t *testing.T) {
	p := filepath.Join(t.TempDir(), "scenario.yaml")
	for _, body := range []string{
		"date: {year: 1, season: monsoon, day: 1}\n",
		"time_of_day: 2575\n",
		"date: {year: 1, season: fall, day: 29}\n",
		"player: {location: \"\"}\n",
	} {
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadScenario(p); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
	s, err := LoadScenario("")
	if err != nil || s.Player.Location != "Town" || !s.FishingPlayer().Tutorial {
		t.Fatalf("defaults=%+v err=%v", s, err)
	}
}

func TestAdvanceDays(t *testing.T) {
	s := Scenario{Date: DateSpec{Year: 1, Season: "winter", Day: 28}, DaysPlayed: 112}
	s.AdvanceDays(1)
	if s.Today() != calendar.New(2, calendar.Spring, 1) || s.DaysPlayed != 113 {
		t.Fatalf("date=%v played=%d", s.Today(), s.DaysPlayed)
	}
}

func TestDistanceToLand(t *testing.T) {
	def := catalogs.LocationDef{Water: []string{
		".......",
		".WWWWW.",
		".WWWWW.",
		".WWIWW.",
		".WWWWW.",
		".WWWWW.",
		".......",
	}}
	cases := []struct {
		x, y, want int
	}{
		{1, 1, 0},
		{2, 2, 1},
		{3, 2, 1},
		{2, 3, 1},
	}
	for _, tc := range cases {
		if got := DistanceToLand(def, tc.x, tc.y, DefaultMaxRings); got != tc.want {
			t.Fatalf("distance(%d,%d)=%d want %d", tc.x, tc.y, got, tc.want)
		}
	}

	open := catalogs.LocationDef{Water: []string{"WWWWWWW", "WWWWWWW", "WWWWWWW", "WWWWWWW", "WWWWWWW", "WWWWWWW", "WWWWWWW"}}
	if got := DistanceToLand(open, 3, 3, DefaultMaxRings); got != 3 {
		t.Fatalf("map edge counts as land: got=%d want 3", got)
	}
	if got := DistanceToLand(open, 3, 3, 2); got != 2 {
		t.Fatalf("capped distance=%d want 2", got)
	}
}

func TestGeometryTown(t *testing.T) {
	g := NewGeometry(repoCatalogs(t))
	tiles, err := g.WaterTiles("Town")
	if err != nil || len(tiles) == 0 {
		t.Fatalf("tiles=%d err=%v", len(tiles), err)
	}
	for _, w := range tiles {
		if (w.X == 6 || w.X == 7) && w.Y == 4 {
			t.Fatalf("invisible water listed as fishable: %+v", w)
		}
	}
	if _, err := g.WaterTiles("Nowhere"); !errors.Is(err, ErrUnknownLocation) {
		t.Fatalf("err=%v want ErrUnknownLocation", err)
	}
}

func fish(c *catalogs.Catalogs, t *testing.T, id string) catalogs.ItemDef {
	t.Helper()
	d, err := c.Lookup(id)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func hasReason(rs []fishing.BlockReason, want fishing.BlockReason) bool {
	for _, r := range rs {
		if r == want {
			return true
		}
	}
	return false
}

func TestRequirements(t *testing.T) {
	c := repoCatalogs(t)
	at := func(id string, time int, weather string) fishing.GenericRequest {
		return fishing.GenericRequest{
			Item:       fish(c, t, id),
			Rod:        "bamboo",
			Depth:      4,
			Conditions: conditions.Context{TimeOfDay: time, Weather: weather},
		}
	}
	cases := []struct {
		name string
		req  func() fishing.GenericRequest
		want fishing.BlockReason
		none bool
	}{
		{"rainy fish in sun", func() fishing.GenericRequest { return at("(O)143", 900, "sun") }, fishing.RequiresRain, false},
		{"sunny fish in storm", func() fishing.GenericRequest { return at("(O)145", 900, "storm") }, fishing.RequiresSun, false},
		{"too late", func() fishing.GenericRequest { return at("(O)145", 2000, "sun") }, fishing.WrongTime, false},
		{"level", func() fishing.GenericRequest { return at("(O)160", 900, "sun") }, fishing.PlayerLevelTooLow, false},
		{"training rod", func() fishing.GenericRequest {
			r := at("(O)143", 900, "rain")
			r.Rod = TrainingRod
			return r
		}, fishing.PlayerRodTooWeak, false},
		{"tutorial", func() fishing.GenericRequest {
			r := at("(O)129", 900, "sun")
			r.Tutorial = true
			return r
		}, fishing.TutorialCatch, false},
		{"magic bait ignores time and weather", func() fishing.GenericRequest {
			r := at("(O)143", 2500, "sun")
			r.MagicBait = true
			r.FishingLevel = 5
			return r
		}, 0, true},
	}
	for _, tc := range cases {
		res := Requirements{}.CheckGenericRequirements(tc.req())
		if tc.none {
			if len(res.Blocked) != 0 {
				t.Fatalf("%s: blocked=%v", tc.name, res.Blocked)
			}
			continue
		}
		if !hasReason(res.Blocked, tc.want) {
			t.Fatalf("%s: blocked=%v want %s", tc.name, res.Blocked, tc.want)
		}
		if !res.HasProbability {
			t.Fatalf("%s: fish must report a spawn probability", tc.name)
		}
	}

	res := Requirements{}.CheckGenericRequirements(fishing.GenericRequest{Item: fish(c, t, "(O)168")})
	if res.HasProbability || len(res.Blocked) != 0 {
		t.Fatalf("trash result=%+v", res)
	}
}

func TestSpawnChance(t *testing.T) {
	c := repoCatalogs(t)
	anchovy, angler := fish(c, t, "(O)129"), fish(c, t, "(O)160")
	near := func(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

	req := fishing.GenericRequest{Item: anchovy, Depth: 2}
	if got := SpawnChance(*anchovy.Fish, req); !near(got, 0.28) {
		t.Fatalf("shallow=%v want 0.28", got)
	}
	req.FishingLevel = 10
	if got := SpawnChance(*anchovy.Fish, req); !near(got, 0.48) {
		t.Fatalf("level 10=%v want 0.48", got)
	}
	req.FishingLevel = 50
	if got := SpawnChance(*anchovy.Fish, req); got != maxSpawnChance {
		t.Fatalf("capped=%v want %v", got, maxSpawnChance)
	}

	lure := fishing.GenericRequest{Item: angler, Depth: 4, CuriosityLure: true}
	if got := SpawnChance(*angler.Fish, lure); !near(got, 0.15) {
		t.Fatalf("curiosity=%v want 0.15", got)
	}
	bait := fishing.GenericRequest{Item: anchovy, Depth: 4, Bait: TargetedBaitPrefix + "(O)129"}
	if got := SpawnChance(*anchovy.Fish, bait); !near(got, 0.35*1.66) {
		t.Fatalf("targeted=%v", got)
	}
}

func TestCasterTables(t *testing.T) {
	cs := NewCaster(repoCatalogs(t), nil, 1)
	town, err := cs.Table("Town", fishing.WaterTile{X: 3, Y: 3})
	if err != nil {
		t.Fatal(err)
	}
	if town.AreaID != "River" {
		t.Fatalf("area=%q want River", town.AreaID)
	}
	var own, inherited int
	for _, r := range town.Rules {
		if r.Inherited {
			inherited++
		} else {
			own++
		}
	}
	if own != 7 || inherited != 2 {
		t.Fatalf("own=%d inherited=%d", own, inherited)
	}

	sewer, err := cs.Table("Sewer", fishing.WaterTile{X: 2, Y: 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range sewer.Rules {
		if !r.Inherited || strings.HasPrefix(r.ID, "Default_") {
			t.Fatalf("sewer rule %s inherited=%v", r.ID, r.Inherited)
		}
	}
	if _, err := cs.Table("Nowhere", fishing.WaterTile{}); !errors.Is(err, ErrUnknownLocation) {
		t.Fatalf("err=%v", err)
	}
}

func TestChecker(t *testing.T) {
	c := Checker{Player: fishing.Player{FishingLevel: 4, FishCaught: map[string]int{"(O)145": 1}}}
	cases := []struct {
		query     string
		ok, known bool
	}{
		{"PLAYER_FISHING_LEVEL Current 3", true, true},
		{"PLAYER_FISHING_LEVEL Current 5", false, true},
		{"PLAYER_FISHING_LEVEL Current 1 3", false, true},
		{"PLAYER_HAS_CAUGHT_FISH Current 145", true, true},
		{"PLAYER_HAS_CAUGHT_FISH Current (O)160", false, true},
		{"PLAYER_HAS_CAUGHT_FISH Host 145", false, false},
		{"PLAYER_HAS_MAIL Current ccDone", false, false},
	}
	for _, tc := range cases {
		ok, known := c.CheckCondition(conditions.ParseQuery(tc.query), conditions.Context{})
		if ok != tc.ok || known != tc.known {
			t.Fatalf("%s: got=%v,%v want %v,%v", tc.query, ok, known, tc.ok, tc.known)
		}
	}
}

func TestTownEndToEnd(t *testing.T) {
	c := repoCatalogs(t)
	sc := repoScenario(t)
	s := NewSession(c, tuning.Defaults(), nil, 42)
	snap, err := sc.Snapshot(c)
	if err != nil {
		t.Fatal(err)
	}

	var cumulative float64
	for i := 0; i < 20; i++ {
		if _, err := s.SimulateCasts(snap); err != nil {
			t.Fatalf("batch %d: %v", i, err)
		}
		cumulative = s.Recompute("Town")
	}
	if math.Abs(cumulative-1) > 1e-9 {
		t.Fatalf("cumulative=%v want 1 (trash absorbs the rest)", cumulative)
	}

	var sawTrash bool
	for _, row := range s.Odds("Town") {
		if row.ID == "(O)160" {
			t.Fatalf("angler catchable in spring at level 0")
		}
		if row.ID == "Default_Trash" {
			sawTrash = row.OnlyNonFish
		}
	}
	if !sawTrash {
		t.Fatalf("odds missing non-fish trash: %+v", s.Odds("Town"))
	}

	catfish, ok := s.Location("Town").Entry("(O)143")
	if !ok || !catfish.IsBlockedBy(fishing.RequiresRain) || !catfish.IsBlockedBy(fishing.PlayerLevelTooLow) {
		t.Fatalf("catfish reasons=%v", catfish.BlockReasons())
	}
}

func TestGreenRainAlgaeOnGreenRainDay(t *testing.T) {
	c := repoCatalogs(t)
	sc := repoScenario(t)
	gr := conditions.GreenRainDate(sc.WorldID, 1)
	sc.Date = DateSpec{Year: 1, Season: "summer", Day: gr.Day}
	sc.DaysPlayed = gr.TotalDays() + 1

	s := NewSession(c, tuning.Defaults(), nil, 3)
	snap, err := sc.Snapshot(c)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SimulateCasts(snap); err != nil {
		t.Fatal(err)
	}
	e, ok := s.Location("Town").Entry("Town_GreenRainAlgae")
	if !ok || !e.CouldSpawn() {
		t.Fatalf("green rain algae reasons=%v", e.BlockReasons())
	}

	sc.AdvanceDays(1)
	snap, _ = sc.Snapshot(c)
	_, _ = s.SimulateCasts(snap)
	if e.CouldSpawn() || !e.IsBlockedBy(fishing.WrongGameState) {
		t.Fatalf("day after green rain reasons=%v", e.BlockReasons())
	}
}
