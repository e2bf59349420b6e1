package conditions

import (
	"sort"

	"github.com/agnivade/levenshtein"
)

type Verb int

const (
	VerbUnsupported Verb = iota
	VerbSeason
	VerbSeasonDay
	VerbDayOfMonth
	VerbDayOfWeek
	VerbYear
	VerbDaysPlayed
	VerbIsGreenRainDay
	VerbLocationSeason
	VerbTime
	VerbWeather
	VerbRandom
	VerbTrue
	VerbFalse

	verbCount
)

var verbNames = [verbCount]string{
	VerbUnsupported:    "",
	VerbSeason:         "SEASON",
	VerbSeasonDay:      "SEASON_DAY",
	VerbDayOfMonth:     "DAY_OF_MONTH",
	VerbDayOfWeek:      "DAY_OF_WEEK",
	VerbYear:           "YEAR",
	VerbDaysPlayed:     "DAYS_PLAYED",
	VerbIsGreenRainDay: "IS_GREEN_RAIN_DAY",
	VerbLocationSeason: "LOCATION_SEASON",
	VerbTime:           "TIME",
	VerbWeather:        "WEATHER",
	VerbRandom:         "RANDOM",
	VerbTrue:           "TRUE",
	VerbFalse:          "FALSE",
}

var verbByName = func() map[string]Verb {
	m := make(map[string]Verb, verbCount)
	for v := VerbSeason; v < verbCount; v++ {
		m[verbNames[v]] = v
	}
	return m
}()

func (v Verb) String() string {
	if v <= VerbUnsupported || v >= verbCount {
		return "UNSUPPORTED"
	}
	return verbNames[v]
}

// LookupVerb expects an upper-cased name.
func LookupVerb(name string) Verb {
	if v, ok := verbByName[name]; ok {
		return v
	}
	return VerbUnsupported
}

// KnownVerbs lists the verbs with a built-in resolver, sorted by name.
func KnownVerbs() []string {
	out := make([]string, 0, verbCount-1)
	for v := VerbSeason; v < verbCount; v++ {
		out = append(out, verbNames[v])
	}
	sort.Strings(out)
	return out
}

// SuggestVerb returns the closest known verb, or "" when nothing is near enough.
func SuggestVerb(name string) string {
	if len(name) < 3 {
		return ""
	}
	best := ""
	bestDist := -1
	for _, cand := range KnownVerbs() {
		dist := levenshtein.ComputeDistance(name, cand)
		if dist > levenshteinLimit(len(cand)) {
			continue
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = cand, dist
		}
	}
	return best
}

func levenshteinLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
