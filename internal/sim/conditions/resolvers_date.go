package conditions

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"catchodds.dev/internal/sim/calendar"
	"catchodds.dev/internal/sim/logic/mathx"
)

// GreenRainDays are the summer days a green rain can fall on.
var GreenRainDays = [...]int{5, 6, 7, 14, 15, 16, 18, 23}

func describeNegated(q Query, s string) string {
	if q.Negated {
		return "Not " + s
	}
	return s
}

// SEASON s...

type seasonResolver struct{}

func (seasonResolver) Verb() Verb            { return VerbSeason }
func (seasonResolver) CanProjectDates() bool { return true }

func parseSeasons(args []string) []calendar.Season {
	var out []calendar.Season
	for _, a := range args {
		if s, ok := calendar.ParseSeason(a); ok {
			out = append(out, s)
		}
	}
	return out
}

func (seasonResolver) Evaluate(q Query, ctx Context) (bool, error) {
	if len(q.Args()) == 0 {
		return false, malformed(q, "expected at least one season")
	}
	return negate(q, seasonIn(parseSeasons(q.Args()), ctx.Today.Season)), nil
}

func seasonIn(seasons []calendar.Season, s calendar.Season) bool {
	for _, x := range seasons {
		if x == s {
			return true
		}
	}
	return false
}

func (seasonResolver) Project(q Query, ctx Context, years int) DateSet {
	set := DateSet{}
	if len(q.Args()) == 0 {
		return set
	}
	today := ctx.Today.TotalDays()
	for _, s := range parseSeasons(q.Args()) {
		for y := 0; y < years; y++ {
			start := calendar.New(ctx.Today.Year+y, s, 1).TotalDays()
			from := start
			if from < today {
				from = today
			}
			set.addRange(from, start+calendar.DaysPerMonth-1)
		}
	}
	return complementIfNegated(q, ctx.Today, years, set)
}

func (seasonResolver) Describe(q Query) string {
	if len(q.Args()) == 0 {
		return "Unreadable condition: " + q.Text
	}
	return describeNegated(q, "Season: "+strings.Join(lowerAll(q.Args()), ", "))
}

// SEASON_DAY (s d)...

type seasonDayResolver struct{}

type seasonDay struct {
	season calendar.Season
	day    int
}

func (seasonDayResolver) Verb() Verb            { return VerbSeasonDay }
func (seasonDayResolver) CanProjectDates() bool { return true }

func parseSeasonDays(args []string) []seasonDay {
	var out []seasonDay
	for i := 0; i+1 < len(args); i += 2 {
		s, ok := calendar.ParseSeason(args[i])
		if !ok {
			continue
		}
		d, err := strconv.Atoi(args[i+1])
		if err != nil || d < 1 || d > calendar.DaysPerMonth {
			continue
		}
		out = append(out, seasonDay{season: s, day: d})
	}
	return out
}

func (seasonDayResolver) Evaluate(q Query, ctx Context) (bool, error) {
	args := q.Args()
	if len(args) < 2 || len(args)%2 != 0 {
		return false, malformed(q, "expected season/day pairs")
	}
	for _, p := range parseSeasonDays(args) {
		if p.season == ctx.Today.Season && p.day == ctx.Today.Day {
			return negate(q, true), nil
		}
	}
	return negate(q, false), nil
}

func (seasonDayResolver) Project(q Query, ctx Context, years int) DateSet {
	set := DateSet{}
	for _, p := range parseSeasonDays(q.Args()) {
		for y := 0; y < years; y++ {
			d := calendar.New(ctx.Today.Year+y, p.season, p.day)
			if d.Before(ctx.Today) {
				continue
			}
			set.Add(d)
		}
	}
	return complementIfNegated(q, ctx.Today, years, set)
}

func (seasonDayResolver) Describe(q Query) string {
	pairs := parseSeasonDays(q.Args())
	if len(pairs) == 0 {
		return q.Text
	}
	bySeason := map[calendar.Season][]int{}
	for _, p := range pairs {
		bySeason[p.season] = append(bySeason[p.season], p.day)
	}
	var parts []string
	for s := calendar.Spring; s <= calendar.Winter; s++ {
		days := bySeason[s]
		if len(days) == 0 {
			continue
		}
		sort.Ints(days)
		parts = append(parts, s.String()+" "+joinInts(days))
	}
	return describeNegated(q, strings.Join(parts, "\n"))
}

// DAY_OF_MONTH (d|even|odd)...
// Negation is folded into the parsed day set, so Evaluate and Project
// never apply it a second time.

type dayOfMonthResolver struct{}

func (dayOfMonthResolver) Verb() Verb            { return VerbDayOfMonth }
func (dayOfMonthResolver) CanProjectDates() bool { return true }

func parseMonthDays(q Query) map[int]bool {
	days := map[int]bool{}
	if q.Negated {
		for d := 1; d <= calendar.DaysPerMonth; d++ {
			days[d] = true
		}
	}
	set := func(d int) {
		if d < 1 || d > calendar.DaysPerMonth {
			return
		}
		if q.Negated {
			delete(days, d)
		} else {
			days[d] = true
		}
	}
	for _, a := range q.Args() {
		switch {
		case strings.EqualFold(a, "even"):
			for d := 2; d <= calendar.DaysPerMonth; d += 2 {
				set(d)
			}
		case strings.EqualFold(a, "odd"):
			for d := 1; d <= calendar.DaysPerMonth; d += 2 {
				set(d)
			}
		default:
			if n, err := strconv.Atoi(a); err == nil {
				set(n)
			}
		}
	}
	return days
}

// MonthDays returns the sorted day-of-month set a DAY_OF_MONTH clause matches.
func MonthDays(q Query) []int {
	days := parseMonthDays(q)
	out := make([]int, 0, len(days))
	for d := range days {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

func (dayOfMonthResolver) Evaluate(q Query, ctx Context) (bool, error) {
	if len(q.Args()) == 0 {
		return false, malformed(q, "expected at least one day")
	}
	return parseMonthDays(q)[ctx.Today.Day], nil
}

func (dayOfMonthResolver) Project(q Query, ctx Context, years int) DateSet {
	set := DateSet{}
	if len(q.Args()) == 0 {
		return set
	}
	days := parseMonthDays(q)
	months := calendar.MonthsPerYear * years
	for m := 0; m < months; m++ {
		offset := calendar.DaysPerMonth * m
		for d := range days {
			date := calendar.New(ctx.Today.Year, ctx.Today.Season, d).AddDays(offset)
			if date.Before(ctx.Today) {
				continue
			}
			set.Add(date)
		}
	}
	return set
}

func (dayOfMonthResolver) Describe(q Query) string {
	days := MonthDays(q)
	if len(days) == 0 {
		return "Days ???"
	}
	return "Days " + joinInts(days)
}

// DAY_OF_WEEK name...

type dayOfWeekResolver struct{}

func (dayOfWeekResolver) Verb() Verb            { return VerbDayOfWeek }
func (dayOfWeekResolver) CanProjectDates() bool { return true }

func parseWeekdays(args []string) []calendar.Weekday {
	seen := map[calendar.Weekday]bool{}
	var out []calendar.Weekday
	for _, a := range args {
		wd, ok := calendar.ParseWeekday(a)
		if !ok || seen[wd] {
			continue
		}
		seen[wd] = true
		out = append(out, wd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (dayOfWeekResolver) Evaluate(q Query, ctx Context) (bool, error) {
	if len(q.Args()) == 0 {
		return false, malformed(q, "expected at least one weekday")
	}
	wd := ctx.Today.Weekday()
	for _, x := range parseWeekdays(q.Args()) {
		if x == wd {
			return negate(q, true), nil
		}
	}
	return negate(q, false), nil
}

func (dayOfWeekResolver) Project(q Query, ctx Context, years int) DateSet {
	set := DateSet{}
	if len(q.Args()) == 0 {
		return set
	}
	weeks := calendar.DaysPerMonth / calendar.DaysPerWeek * calendar.MonthsPerYear * years
	todayWd := int(ctx.Today.Weekday())
	for _, wd := range parseWeekdays(q.Args()) {
		delta := mathx.Mod(int(wd)-todayWd, calendar.DaysPerWeek)
		for w := 0; w < weeks; w++ {
			set.Add(ctx.Today.AddDays(delta + calendar.DaysPerWeek*w))
		}
	}
	return complementIfNegated(q, ctx.Today, years, set)
}

func (dayOfWeekResolver) Describe(q Query) string {
	wds := parseWeekdays(q.Args())
	if len(wds) == 0 {
		return "Days ???"
	}
	names := make([]string, len(wds))
	for i, wd := range wds {
		names[i] = wd.Short()
	}
	return describeNegated(q, "Days "+strings.Join(names, ", "))
}

// YEAR start [end]

type yearResolver struct{}

func (yearResolver) Verb() Verb            { return VerbYear }
func (yearResolver) CanProjectDates() bool { return true }

func parseRange(q Query) (min int, max int, hasMax bool, err error) {
	args := q.Args()
	if len(args) == 0 {
		return 0, 0, false, malformed(q, "expected a minimum")
	}
	min, err = strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, false, malformed(q, "minimum %q is not a number", args[0])
	}
	if len(args) < 2 {
		return min, 0, false, nil
	}
	max, err = strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, false, malformed(q, "maximum %q is not a number", args[1])
	}
	return min, max, true, nil
}

func (yearResolver) Evaluate(q Query, ctx Context) (bool, error) {
	min, max, hasMax, err := parseRange(q)
	if err != nil {
		return false, err
	}
	ok := ctx.Today.Year >= min && (!hasMax || ctx.Today.Year <= max)
	return negate(q, ok), nil
}

func (yearResolver) Project(q Query, ctx Context, years int) DateSet {
	set := DateSet{}
	start, end, hasMax, err := parseRange(q)
	if err != nil {
		return set
	}
	limit := ctx.Today.Year + years
	if !hasMax || end > limit {
		end = limit
	}
	if end < start {
		return set
	}
	from := calendar.StartOfYear(start).TotalDays()
	if t := ctx.Today.TotalDays(); from < t {
		from = t
	}
	set.addRange(from, calendar.StartOfYear(end+1).TotalDays()-1)
	return complementIfNegated(q, ctx.Today, years, set)
}

func (yearResolver) Describe(q Query) string {
	min, max, hasMax, err := parseRange(q)
	if err != nil {
		return "Unreadable condition: " + q.Text
	}
	if !hasMax {
		return describeNegated(q, fmt.Sprintf("Year %d or later", min))
	}
	return describeNegated(q, fmt.Sprintf("Years %d-%d", min, max))
}

// DAYS_PLAYED min [max]

type daysPlayedResolver struct{}

func (daysPlayedResolver) Verb() Verb            { return VerbDaysPlayed }
func (daysPlayedResolver) CanProjectDates() bool { return true }

func (daysPlayedResolver) Evaluate(q Query, ctx Context) (bool, error) {
	min, max, hasMax, err := parseRange(q)
	if err != nil {
		return false, err
	}
	ok := ctx.DaysPlayed >= min && (!hasMax || ctx.DaysPlayed <= max)
	return negate(q, ok), nil
}

func (daysPlayedResolver) Project(q Query, ctx Context, years int) DateSet {
	set := DateSet{}
	min, max, hasMax, err := parseRange(q)
	if err != nil {
		return set
	}
	limit := ctx.DaysPlayed + years*calendar.DaysPerYear
	if !hasMax || max > limit {
		max = limit
	}
	from := min
	if from < ctx.DaysPlayed {
		from = ctx.DaysPlayed
	}
	base := ctx.Today.TotalDays() - ctx.DaysPlayed
	if from > max {
		return complementIfNegated(q, ctx.Today, years, set)
	}
	set.addRange(base+from, base+max)
	return complementIfNegated(q, ctx.Today, years, set)
}

func (daysPlayedResolver) Describe(q Query) string {
	min, max, hasMax, err := parseRange(q)
	if err != nil {
		return "Unreadable condition: " + q.Text
	}
	if !hasMax {
		return describeNegated(q, fmt.Sprintf("%d or more days played", min))
	}
	return describeNegated(q, fmt.Sprintf("%d-%d days played", min, max))
}

// IS_GREEN_RAIN_DAY

type greenRainResolver struct{}

func (greenRainResolver) Verb() Verb            { return VerbIsGreenRainDay }
func (greenRainResolver) CanProjectDates() bool { return true }

// GreenRainDate returns the green rain day for a year of the given world.
func GreenRainDate(worldID int64, year int) calendar.Date {
	i := mathx.ChooseIndex(worldID, year*777, 0, len(GreenRainDays))
	return calendar.New(year, calendar.Summer, GreenRainDays[i])
}

func (greenRainResolver) Evaluate(q Query, ctx Context) (bool, error) {
	return negate(q, GreenRainDate(ctx.WorldID, ctx.Today.Year).Equal(ctx.Today)), nil
}

func (greenRainResolver) Project(q Query, ctx Context, years int) DateSet {
	set := DateSet{}
	for y := 0; y < years; y++ {
		d := GreenRainDate(ctx.WorldID, ctx.Today.Year+y)
		if d.Before(ctx.Today) {
			continue
		}
		set.Add(d)
	}
	return complementIfNegated(q, ctx.Today, years, set)
}

func (greenRainResolver) Describe(q Query) string {
	return describeNegated(q, "Green rain")
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}

func lowerAll(xs []string) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = strings.ToLower(x)
	}
	return out
}
