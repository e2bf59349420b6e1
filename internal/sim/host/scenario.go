package host

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"catchodds.dev/internal/sim/calendar"
	"catchodds.dev/internal/sim/catalogs"
	"catchodds.dev/internal/sim/conditions"
	"catchodds.dev/internal/sim/fishing"
)

// Scenario is the game state the reference host runs the engine against.
type Scenario struct {
	WorldID    int64      `yaml:"world_id"`
	Date       DateSpec   `yaml:"date"`
	DaysPlayed int        `yaml:"days_played"`
	TimeOfDay  int        `yaml:"time_of_day"`
	Weather    string     `yaml:"weather"`
	Player     PlayerSpec `yaml:"player"`
}

type DateSpec struct {
	Year   int    `yaml:"year"`
	Season string `yaml:"season"`
	Day    int    `yaml:"day"`
}

type PlayerSpec struct {
	Name          string         `yaml:"name"`
	Location      string         `yaml:"location"`
	Tile          fishing.Point  `yaml:"tile"`
	FishingLevel  int            `yaml:"fishing_level"`
	Rod           string         `yaml:"rod"`
	Bait          string         `yaml:"bait"`
	MagicBait     bool           `yaml:"magic_bait"`
	CuriosityLure bool           `yaml:"curiosity_lure"`
	FishCaught    map[string]int `yaml:"fish_caught"`
}

func LoadScenario(path string) (Scenario, error) {
	s := defaultScenario()
	if strings.TrimSpace(path) == "" {
		s.Normalize()
		return s, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("scenario.yaml: %w", err)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("scenario.yaml: %w", err)
	}
	return s, nil
}

func defaultScenario() Scenario {
	return Scenario{
		Date:       DateSpec{Year: 1, Season: "spring", Day: 1},
		DaysPlayed: 1,
		TimeOfDay:  600,
		Weather:    "sun",
		Player: PlayerSpec{
			Name:     "farmer",
			Location: "Town",
			Rod:      "bamboo",
		},
	}
}

func (s *Scenario) Normalize() {
	s.Date.Season = strings.ToLower(strings.TrimSpace(s.Date.Season))
	s.Weather = strings.ToLower(strings.TrimSpace(s.Weather))
	s.Player.Rod = strings.ToLower(strings.TrimSpace(s.Player.Rod))
	if s.Date.Year <= 0 {
		s.Date.Year = 1
	}
	if s.DaysPlayed <= 0 {
		s.DaysPlayed = s.Today().TotalDays() + 1
	}
	if s.Player.FishCaught == nil {
		s.Player.FishCaught = map[string]int{}
	}
	caught := make(map[string]int, len(s.Player.FishCaught))
	for id, n := range s.Player.FishCaught {
		caught[catalogs.Qualify(id)] += n
	}
	s.Player.FishCaught = caught
}

func (s Scenario) Validate() error {
	if _, ok := calendar.ParseSeason(s.Date.Season); !ok {
		return fmt.Errorf("date.season %q is not a season", s.Date.Season)
	}
	if s.Date.Day < 1 || s.Date.Day > calendar.DaysPerMonth {
		return fmt.Errorf("date.day %d out of range", s.Date.Day)
	}
	if s.TimeOfDay < 600 || s.TimeOfDay > 2600 || s.TimeOfDay%100 >= 60 {
		return fmt.Errorf("time_of_day %d is not a clock time between 600 and 2600", s.TimeOfDay)
	}
	if s.Player.Location == "" {
		return fmt.Errorf("player.location is required")
	}
	if s.Player.FishingLevel < 0 {
		return fmt.Errorf("player.fishing_level must be >= 0")
	}
	return nil
}

func (s Scenario) Today() calendar.Date {
	season, _ := calendar.ParseSeason(s.Date.Season)
	return calendar.New(s.Date.Year, season, s.Date.Day)
}

// FishingPlayer converts the scenario player. A player who has caught nothing is still
// in the fishing tutorial.
func (s Scenario) FishingPlayer() fishing.Player {
	caught := make(map[string]int, len(s.Player.FishCaught))
	total := 0
	for id, n := range s.Player.FishCaught {
		caught[id] = n
		total += n
	}
	return fishing.Player{
		Name:          s.Player.Name,
		Tile:          s.Player.Tile,
		FishingLevel:  s.Player.FishingLevel,
		Rod:           s.Player.Rod,
		Bait:          s.Player.Bait,
		MagicBait:     s.Player.MagicBait,
		CuriosityLure: s.Player.CuriosityLure,
		Tutorial:      total == 0,
		FishCaught:    caught,
	}
}

// Snapshot builds the engine input for the player's current location. A
// location with a fixed season overrides the calendar season.
func (s Scenario) Snapshot(c *catalogs.Catalogs) (fishing.Snapshot, error) {
	def, ok := c.Location(s.Player.Location)
	if !ok {
		return fishing.Snapshot{}, fmt.Errorf("location %q: %w", s.Player.Location, ErrUnknownLocation)
	}
	today := s.Today()
	locSeason := today.Season
	if def.Season != "" {
		if ls, ok := calendar.ParseSeason(def.Season); ok {
			locSeason = ls
		}
	}
	p := s.FishingPlayer()
	return fishing.Snapshot{
		Location: s.Player.Location,
		Player:   p,
		Conditions: conditions.Context{
			Today:          today,
			DaysPlayed:     s.DaysPlayed,
			WorldID:        s.WorldID,
			TimeOfDay:      s.TimeOfDay,
			Weather:        s.Weather,
			LocationSeason: locSeason,
			Host:           Checker{Player: p},
		},
	}, nil
}

// AdvanceDays moves the calendar forward, keeping days_played in step.
func (s *Scenario) AdvanceDays(n int) {
	if n <= 0 {
		return
	}
	d := s.Today().AddDays(n)
	s.Date = DateSpec{Year: d.Year, Season: d.Season.String(), Day: d.Day}
	s.DaysPlayed += n
}
