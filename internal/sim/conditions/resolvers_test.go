package conditions

import (
	"errors"
	"testing"

	"catchodds.dev/internal/sim/calendar"
)

func ctxAt(year int, s calendar.Season, day int) Context {
	today := calendar.New(year, s, day)
	return Context{
		Today:          today,
		DaysPlayed:     today.TotalDays() + 1,
		WorldID:        12345,
		TimeOfDay:      900,
		Weather:        "Sun",
		LocationSeason: s,
		LookaheadYears: 1,
	}
}

func project(t *testing.T, raw string, ctx Context, years int) DateSet {
	t.Helper()
	q := ParseQuery(raw)
	r := resolverFor(q)
	if !r.CanProjectDates() {
		t.Fatalf("%s: resolver %v cannot project", raw, r.Verb())
	}
	return r.Project(q, ctx, years)
}

func TestDayOfMonthNegationIsComplement(t *testing.T) {
	plain := MonthDays(ParseQuery("DAY_OF_MONTH 1 2"))
	if len(plain) != 2 || plain[0] != 1 || plain[1] != 2 {
		t.Fatalf("plain=%v want [1 2]", plain)
	}
	neg := MonthDays(ParseQuery("!DAY_OF_MONTH 1 2"))
	if len(neg) != 26 || neg[0] != 3 || neg[len(neg)-1] != 28 {
		t.Fatalf("negated=%v want 3..28", neg)
	}
	seen := map[int]bool{}
	for _, d := range append(plain, neg...) {
		if seen[d] {
			t.Fatalf("day %d in both sets", d)
		}
		seen[d] = true
	}
	if len(seen) != 28 {
		t.Fatalf("union covers %d days, want 28", len(seen))
	}
}

func TestDayOfMonthEvenOdd(t *testing.T) {
	even := MonthDays(ParseQuery("DAY_OF_MONTH even"))
	if len(even) != 14 || even[0] != 2 {
		t.Fatalf("even=%v", even)
	}
	odd := MonthDays(ParseQuery("!DAY_OF_MONTH even"))
	if len(odd) != 14 || odd[0] != 1 {
		t.Fatalf("!even=%v", odd)
	}
}

func TestDayOfMonthNegatedProjectionNotFlippedTwice(t *testing.T) {
	ctx := ctxAt(1, calendar.Spring, 1)
	set := project(t, "!DAY_OF_MONTH 1 2", ctx, 1)
	if set.Has(calendar.New(1, calendar.Spring, 1)) || !set.Has(calendar.New(1, calendar.Spring, 3)) {
		t.Fatalf("negated projection wrong: %v", set.Sorted()[:3])
	}
	if set.Len() != 26*4 {
		t.Fatalf("len=%d want %d", set.Len(), 26*4)
	}
}

func TestSeasonProjectionCount(t *testing.T) {
	ctx := ctxAt(1, calendar.Spring, 1)
	set := project(t, "SEASON spring summer", ctx, 1)
	if set.Len() != 56 {
		t.Fatalf("len=%d want 56", set.Len())
	}
	later := ctxAt(1, calendar.Spring, 11)
	set = project(t, "SEASON spring summer", later, 1)
	if set.Len() != 46 {
		t.Fatalf("from spring 11: len=%d want 46", set.Len())
	}
}

func TestSeasonNegatedIsWindowComplement(t *testing.T) {
	ctx := ctxAt(1, calendar.Spring, 1)
	set := project(t, "!SEASON spring", ctx, 1)
	if set.Len() != 84 || set.Has(ctx.Today) {
		t.Fatalf("len=%d hasToday=%v", set.Len(), set.Has(ctx.Today))
	}
}

func TestSeasonDayProjection(t *testing.T) {
	ctx := ctxAt(1, calendar.Summer, 10)
	set := project(t, "SEASON_DAY spring 5 summer 12 fall x", ctx, 2)
	got := set.Sorted()
	want := []calendar.Date{
		calendar.New(1, calendar.Summer, 12),
		calendar.New(2, calendar.Spring, 5),
		calendar.New(2, calendar.Summer, 12),
	}
	if len(got) != len(want) {
		t.Fatalf("got=%v want %v", got, want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("got=%v want %v", got, want)
		}
	}
}

func TestDayOfWeekNeverSkipsEarlierWeekdays(t *testing.T) {
	// Spring 3 is a Wednesday; Monday must still be projected starting next week.
	ctx := ctxAt(1, calendar.Spring, 3)
	set := project(t, "DAY_OF_WEEK Monday Wed", ctx, 1)
	if !set.Has(ctx.Today) {
		t.Fatalf("today (Wednesday) missing")
	}
	if !set.Has(calendar.New(1, calendar.Spring, 8)) {
		t.Fatalf("next Monday missing")
	}
	for _, d := range set.Sorted() {
		if d.Before(ctx.Today) {
			t.Fatalf("date %v before today", d)
		}
		if wd := d.Weekday(); wd != calendar.Monday && wd != calendar.Wednesday {
			t.Fatalf("date %v has weekday %v", d, wd)
		}
	}
	if set.Len() != 32 {
		t.Fatalf("len=%d want 32", set.Len())
	}
}

func TestYearProjection(t *testing.T) {
	ctx := ctxAt(2, calendar.Fall, 1)
	set := project(t, "YEAR 2 2", ctx, 6)
	if set.Len() != 56 {
		t.Fatalf("len=%d want 56", set.Len())
	}
	set = project(t, "YEAR 1", ctx, 1)
	// Default end is current year + lookahead: rest of year 2 and all of year 3.
	if set.Len() != 56+112 {
		t.Fatalf("open-ended len=%d want %d", set.Len(), 56+112)
	}
}

func TestDaysPlayedProjection(t *testing.T) {
	ctx := ctxAt(1, calendar.Spring, 10)
	ctx.DaysPlayed = 10
	set := project(t, "DAYS_PLAYED 15 20", ctx, 1)
	got := set.Sorted()
	if len(got) != 6 || !got[0].Equal(calendar.New(1, calendar.Spring, 15)) {
		t.Fatalf("got=%v", got)
	}
	set = project(t, "DAYS_PLAYED 1", ctx, 1)
	if set.Len() != 113 || !set.Has(ctx.Today) {
		t.Fatalf("open-ended len=%d", set.Len())
	}
}

func TestGreenRainOnePerYear(t *testing.T) {
	ctx := ctxAt(1, calendar.Spring, 1)
	set := project(t, "IS_GREEN_RAIN_DAY", ctx, 6)
	if set.Len() != 6 {
		t.Fatalf("len=%d want 6", set.Len())
	}
	perYear := map[int]int{}
	for _, d := range set.Sorted() {
		if d.Season != calendar.Summer {
			t.Fatalf("green rain outside summer: %v", d)
		}
		ok := false
		for _, g := range GreenRainDays {
			ok = ok || g == d.Day
		}
		if !ok {
			t.Fatalf("unexpected green rain day %v", d)
		}
		perYear[d.Year]++
	}
	for y, n := range perYear {
		if n != 1 {
			t.Fatalf("year %d has %d green rain days", y, n)
		}
	}
	again := project(t, "IS_GREEN_RAIN_DAY", ctx, 6)
	for k := range set {
		if _, ok := again[k]; !ok {
			t.Fatalf("projection not deterministic")
		}
	}
}

func TestSameTickResolvers(t *testing.T) {
	ctx := ctxAt(1, calendar.Summer, 4)
	ctx.Weather = "Rain"
	ctx.TimeOfDay = 1900
	cases := []struct {
		raw  string
		want bool
	}{
		{"TIME 600 2000", true},
		{"TIME 2000", false},
		{"!TIME 2000", true},
		{"WEATHER Here Rain Storm", true},
		{"WEATHER Here Sun", false},
		{"LOCATION_SEASON summer", true},
		{"SEASON spring", false},
		{"!SEASON spring", true},
		{"DAY_OF_WEEK Thursday", true},
		{"YEAR 2", false},
	}
	for _, tc := range cases {
		q := ParseQuery(tc.raw)
		got, err := resolverFor(q).Evaluate(q, ctx)
		if err != nil {
			t.Fatalf("%s: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got=%v want %v", tc.raw, got, tc.want)
		}
	}
}

func TestMalformedClauses(t *testing.T) {
	ctx := ctxAt(1, calendar.Spring, 1)
	for _, raw := range []string{"SEASON", "YEAR abc", "TIME", "WEATHER Here", "RANDOM x", "SEASON_DAY spring"} {
		q := ParseQuery(raw)
		_, err := resolverFor(q).Evaluate(q, ctx)
		if !errors.Is(err, ErrMalformedQuery) {
			t.Fatalf("%s: err=%v want ErrMalformedQuery", raw, err)
		}
	}
}

func TestRequiresRain(t *testing.T) {
	if !RequiresRain(ParseQuery("WEATHER Here Rain Storm")) {
		t.Fatalf("rain clause not detected")
	}
	if RequiresRain(ParseQuery("WEATHER Here Rain Sun")) {
		t.Fatalf("mixed clause should not require rain")
	}
	if !RequiresRain(ParseQuery("!WEATHER Here Sun")) {
		t.Fatalf("negated sun should require rain")
	}
}
