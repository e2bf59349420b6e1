package conditions

import (
	"fmt"
	"strconv"
	"strings"
)

// Same-tick verbs. They depend on state that has no calendar projection.

type locationSeasonResolver struct{}

func (locationSeasonResolver) Verb() Verb                          { return VerbLocationSeason }
func (locationSeasonResolver) CanProjectDates() bool               { return false }
func (locationSeasonResolver) Project(Query, Context, int) DateSet { return DateSet{} }

func (locationSeasonResolver) Evaluate(q Query, ctx Context) (bool, error) {
	if len(q.Args()) == 0 {
		return false, malformed(q, "expected at least one season")
	}
	return negate(q, seasonIn(parseSeasons(q.Args()), ctx.LocationSeason)), nil
}

func (locationSeasonResolver) Describe(q Query) string {
	return describeNegated(q, "Local season: "+strings.Join(lowerAll(q.Args()), ", "))
}

// TIME min [max], both in 24h clock form such as 600 or 2600.

type timeResolver struct{}

const lastTimeOfDay = 2600

func (timeResolver) Verb() Verb                          { return VerbTime }
func (timeResolver) CanProjectDates() bool               { return false }
func (timeResolver) Project(Query, Context, int) DateSet { return DateSet{} }

func (timeResolver) Evaluate(q Query, ctx Context) (bool, error) {
	lo, hi, hasMax, err := parseRange(q)
	if err != nil {
		return false, err
	}
	if !hasMax {
		hi = lastTimeOfDay
	}
	return negate(q, ctx.TimeOfDay >= lo && ctx.TimeOfDay <= hi), nil
}

func (timeResolver) Describe(q Query) string {
	lo, hi, hasMax, err := parseRange(q)
	if err != nil {
		return "Unreadable condition: " + q.Text
	}
	if !hasMax {
		hi = lastTimeOfDay
	}
	return describeNegated(q, fmt.Sprintf("Time %s-%s", clock(lo), clock(hi)))
}

func clock(t int) string {
	return fmt.Sprintf("%02d:%02d", (t/100)%24, t%100)
}

// WEATHER <location> <weather>...; the location token is accepted but the
// context's weather is used.

type weatherResolver struct{}

func (weatherResolver) Verb() Verb                          { return VerbWeather }
func (weatherResolver) CanProjectDates() bool               { return false }
func (weatherResolver) Project(Query, Context, int) DateSet { return DateSet{} }

func (weatherResolver) Evaluate(q Query, ctx Context) (bool, error) {
	args := q.Args()
	if len(args) < 2 {
		return false, malformed(q, "expected a location and at least one weather")
	}
	for _, w := range args[1:] {
		if strings.EqualFold(w, ctx.Weather) {
			return negate(q, true), nil
		}
	}
	return negate(q, false), nil
}

func (weatherResolver) Describe(q Query) string {
	args := q.Args()
	if len(args) < 2 {
		return "Unreadable condition: " + q.Text
	}
	return describeNegated(q, "Weather: "+strings.Join(args[1:], ", "))
}

// RequiresRain reports whether a WEATHER clause only passes in wet weather.
func RequiresRain(q Query) bool {
	if q.Verb != VerbWeather || len(q.Args()) < 2 {
		return false
	}
	wet := true
	for _, w := range q.Args()[1:] {
		if !IsWet(w) {
			wet = false
		}
	}
	return wet != q.Negated
}

// IsWet covers rain, storms and green rain.
func IsWet(weather string) bool {
	switch strings.ToLower(weather) {
	case "rain", "storm", "greenrain":
		return true
	}
	return false
}

// RANDOM p

type randomResolver struct{}

func (randomResolver) Verb() Verb                          { return VerbRandom }
func (randomResolver) CanProjectDates() bool               { return false }
func (randomResolver) Project(Query, Context, int) DateSet { return DateSet{} }

func (randomResolver) Evaluate(q Query, ctx Context) (bool, error) {
	args := q.Args()
	if len(args) == 0 {
		return false, malformed(q, "expected a probability")
	}
	p, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return false, malformed(q, "probability %q is not a number", args[0])
	}
	if ctx.Roll == nil {
		return false, fmt.Errorf("%s: no random source: %w", q.Text, ErrUnsupportedVerb)
	}
	return negate(q, ctx.Roll.Float64() < p), nil
}

func (randomResolver) Describe(q Query) string {
	args := q.Args()
	if len(args) == 0 {
		return "Unreadable condition: " + q.Text
	}
	p, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return "Unreadable condition: " + q.Text
	}
	return describeNegated(q, fmt.Sprintf("%.0f%% chance", p*100))
}

// TRUE / FALSE as clauses of a list. A clause that holds projects the whole
// window so it leaves the other clauses' dates alone; one that fails projects
// nothing and empties the intersection.

type literalResolver struct{ value bool }

func (r literalResolver) Verb() Verb {
	if r.value {
		return VerbTrue
	}
	return VerbFalse
}

func (literalResolver) CanProjectDates() bool { return true }

func (r literalResolver) Project(q Query, ctx Context, years int) DateSet {
	if !negate(q, r.value) {
		return DateSet{}
	}
	return complementIfNegated(Query{Negated: true}, ctx.Today, years, DateSet{})
}

func (r literalResolver) Evaluate(q Query, _ Context) (bool, error) {
	return negate(q, r.value), nil
}

func (r literalResolver) Describe(q Query) string {
	if negate(q, r.value) {
		return "Always"
	}
	return "Never"
}

// unsupportedResolver handles unknown or unparseable verbs. It defers to the
// host checker when one is configured.

type unsupportedResolver struct{}

func (unsupportedResolver) Verb() Verb                          { return VerbUnsupported }
func (unsupportedResolver) CanProjectDates() bool               { return false }
func (unsupportedResolver) Project(Query, Context, int) DateSet { return DateSet{} }

func (unsupportedResolver) Evaluate(q Query, ctx Context) (bool, error) {
	if q.Err != nil {
		return false, q.Err
	}
	if ctx.Host != nil {
		if ok, known := ctx.Host.CheckCondition(q, ctx); known {
			return negate(q, ok), nil
		}
	}
	return false, fmt.Errorf("%s: %w", q.VerbName(), ErrUnsupportedVerb)
}

func (unsupportedResolver) Describe(q Query) string {
	return fmt.Sprintf("Unsupported condition %q (%s)", q.Text, q.VerbName())
}
