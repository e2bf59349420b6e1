package conditions

import (
	"sort"

	"catchodds.dev/internal/sim/calendar"
)

// FutureResult collects the dates on which a composite expression holds,
// plus which clauses passed, failed or could not be evaluated.
//
// The first projected result merged in seeds the date set; every later merge
// intersects it. Merging a result that carries no projection only unions.
type FutureResult struct {
	dates     DateSet
	intersect bool

	succeeded map[string]struct{}
	failed    map[string]struct{}
	errored   map[string]struct{}
}

func NewFutureResult() *FutureResult {
	return &FutureResult{
		dates:     DateSet{},
		succeeded: map[string]struct{}{},
		failed:    map[string]struct{}{},
		errored:   map[string]struct{}{},
	}
}

// FromDates builds a projected result; merging it into another flips that
// result into intersect mode.
func FromDates(dates DateSet) *FutureResult {
	r := NewFutureResult()
	if dates != nil {
		r.dates = dates.Clone()
	}
	r.intersect = true
	return r
}

func TodayAndTomorrow(today calendar.Date) *FutureResult {
	return FromDates(NewDateSet(today, today.AddDays(1)))
}

func EmptyFuture() *FutureResult { return FromDates(nil) }

func (r *FutureResult) Merge(other *FutureResult) {
	if other == nil {
		return
	}
	unionInto(r.succeeded, other.succeeded)
	unionInto(r.failed, other.failed)
	unionInto(r.errored, other.errored)

	if r.intersect {
		r.dates.IntersectWith(other.dates)
		return
	}
	r.dates.UnionWith(other.dates)
	if other.intersect {
		r.intersect = true
	}
}

func (r *FutureResult) AddErrored(text string)   { r.errored[text] = struct{}{} }
func (r *FutureResult) AddSucceeded(text string) { r.succeeded[text] = struct{}{} }
func (r *FutureResult) AddFailed(text string)    { r.failed[text] = struct{}{} }

func (r *FutureResult) AddStatus(text string, ok bool) {
	if ok {
		r.AddSucceeded(text)
		return
	}
	r.AddFailed(text)
}

// HasResolvedDate requires dates plus at least one failed and one errored clause.
// Callers that only want "any date" should use NextDate.
func (r *FutureResult) HasResolvedDate() bool {
	return len(r.dates) > 0 && len(r.failed) > 0 && len(r.errored) > 0
}

func (r *FutureResult) HasDate(d calendar.Date) bool { return r.dates.Has(d) }

func (r *FutureResult) Dates() []calendar.Date { return r.dates.Sorted() }

func (r *FutureResult) DateCount() int { return len(r.dates) }

func (r *FutureResult) Intersecting() bool { return r.intersect }

// NextDate returns the earliest date, optionally skipping today.
func (r *FutureResult) NextDate(today calendar.Date, includeToday bool) (calendar.Date, bool) {
	skip := today.TotalDays()
	best := -1
	for k := range r.dates {
		if !includeToday && k == skip {
			continue
		}
		if best < 0 || k < best {
			best = k
		}
	}
	if best < 0 {
		return calendar.Date{}, false
	}
	return calendar.FromTotalDays(best), true
}

// LastDateInSeason returns the latest date in today's year and season.
func (r *FutureResult) LastDateInSeason(today calendar.Date, includeToday bool) (calendar.Date, bool) {
	skip := today.TotalDays()
	best := -1
	for k := range r.dates {
		if !includeToday && k == skip {
			continue
		}
		d := calendar.FromTotalDays(k)
		if d.Year != today.Year || d.Season != today.Season {
			continue
		}
		if k > best {
			best = k
		}
	}
	if best < 0 {
		return calendar.Date{}, false
	}
	return calendar.FromTotalDays(best), true
}

func (r *FutureResult) Succeeded() []string { return sortedKeys(r.succeeded) }
func (r *FutureResult) Failed() []string    { return sortedKeys(r.failed) }
func (r *FutureResult) Errored() []string   { return sortedKeys(r.errored) }

func unionInto(dst, src map[string]struct{}) {
	for k := range src {
		dst[k] = struct{}{}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
