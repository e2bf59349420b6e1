package conditions

import (
	"errors"
	"fmt"

	"catchodds.dev/internal/sim/calendar"
)

const DefaultLookaheadYears = 6

var (
	ErrMalformedQuery  = errors.New("malformed condition query")
	ErrUnsupportedVerb = errors.New("unsupported condition verb")
)

// Roller supplies uniform samples in [0,1) for RANDOM clauses.
type Roller interface {
	Float64() float64
}

// HostChecker evaluates verbs the interpreter has no resolver for.
// known=false means the host does not recognise the verb either.
type HostChecker interface {
	CheckCondition(q Query, ctx Context) (ok bool, known bool)
}

// Context is the per-call game state a query is evaluated against.
// It is passed by value and never mutated by resolvers.
type Context struct {
	Today          calendar.Date
	DaysPlayed     int
	WorldID        int64
	TimeOfDay      int
	Weather        string
	LocationSeason calendar.Season
	Roll           Roller
	Host           HostChecker
	LookaheadYears int
}

func (c Context) lookahead() int {
	if c.LookaheadYears <= 0 {
		return DefaultLookaheadYears
	}
	return c.LookaheadYears
}

// Resolver evaluates one verb. Project is only meaningful when CanProjectDates is true.
type Resolver interface {
	Verb() Verb
	CanProjectDates() bool
	Evaluate(q Query, ctx Context) (bool, error)
	Project(q Query, ctx Context, lookaheadYears int) DateSet
	Describe(q Query) string
}

func malformed(q Query, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", q.Text, fmt.Sprintf(format, args...), ErrMalformedQuery)
}

func negate(q Query, ok bool) bool {
	if q.Negated {
		return !ok
	}
	return ok
}

// windowEnd is the last ordinal inside the projection window.
func windowEnd(today calendar.Date, lookaheadYears int) int {
	return calendar.StartOfYear(today.Year+lookaheadYears).TotalDays() - 1
}

// complementIfNegated flips a projection inside [today, windowEnd] for negated clauses.
func complementIfNegated(q Query, today calendar.Date, lookaheadYears int, set DateSet) DateSet {
	if !q.Negated {
		return set
	}
	out := DateSet{}
	for n := today.TotalDays(); n <= windowEnd(today, lookaheadYears); n++ {
		if _, ok := set[n]; !ok {
			out[n] = struct{}{}
		}
	}
	return out
}

var resolvers = [verbCount]Resolver{
	VerbUnsupported:    unsupportedResolver{},
	VerbSeason:         seasonResolver{},
	VerbSeasonDay:      seasonDayResolver{},
	VerbDayOfMonth:     dayOfMonthResolver{},
	VerbDayOfWeek:      dayOfWeekResolver{},
	VerbYear:           yearResolver{},
	VerbDaysPlayed:     daysPlayedResolver{},
	VerbIsGreenRainDay: greenRainResolver{},
	VerbLocationSeason: locationSeasonResolver{},
	VerbTime:           timeResolver{},
	VerbWeather:        weatherResolver{},
	VerbRandom:         randomResolver{},
	VerbTrue:           literalResolver{value: true},
	VerbFalse:          literalResolver{value: false},
}

func resolverFor(q Query) Resolver {
	if q.Err != nil || q.Verb <= VerbUnsupported || q.Verb >= verbCount {
		return resolvers[VerbUnsupported]
	}
	return resolvers[q.Verb]
}
