package conditions

import (
	"testing"

	"catchodds.dev/internal/sim/calendar"
)

func days(ds ...int) DateSet {
	s := DateSet{}
	for _, d := range ds {
		s.Add(calendar.New(1, calendar.Spring, d))
	}
	return s
}

func TestMergeFirstSeedsThenNarrows(t *testing.T) {
	r := NewFutureResult()
	r.Merge(FromDates(days(1, 2, 3)))
	if r.DateCount() != 3 || !r.Intersecting() {
		t.Fatalf("after seed: count=%d intersect=%v", r.DateCount(), r.Intersecting())
	}
	r.Merge(FromDates(days(2, 3, 4)))
	if got := r.DateCount(); got != 2 {
		t.Fatalf("after narrow: count=%d want 2", got)
	}
	if !r.HasDate(calendar.New(1, calendar.Spring, 2)) || r.HasDate(calendar.New(1, calendar.Spring, 1)) {
		t.Fatalf("unexpected dates %v", r.Dates())
	}
}

func TestMergeEmptyBeforeSeedUnions(t *testing.T) {
	r := NewFutureResult()
	r.Merge(NewFutureResult())
	if r.Intersecting() {
		t.Fatalf("merging a status-only result must not switch to intersect mode")
	}
	r.Merge(FromDates(days(5, 6)))
	if r.DateCount() != 2 || !r.Intersecting() {
		t.Fatalf("first projected merge should seed: count=%d intersect=%v", r.DateCount(), r.Intersecting())
	}
	r.Merge(FromDates(days(6, 7)))
	if r.DateCount() != 1 {
		t.Fatalf("second projected merge should narrow: count=%d", r.DateCount())
	}
}

func TestIntersectionCommutesOnceSeeded(t *testing.T) {
	a, b, c := days(1, 2, 3, 4), days(2, 3, 4, 5), days(3, 4, 9)
	order1 := NewFutureResult()
	for _, s := range []DateSet{a, b, c} {
		order1.Merge(FromDates(s))
	}
	order2 := NewFutureResult()
	for _, s := range []DateSet{c, a, b} {
		order2.Merge(FromDates(s))
	}
	d1, d2 := order1.Dates(), order2.Dates()
	if len(d1) != 2 || len(d2) != 2 {
		t.Fatalf("got %v and %v, want two dates each", d1, d2)
	}
	for i := range d1 {
		if !d1[i].Equal(d2[i]) {
			t.Fatalf("order changed result: %v vs %v", d1, d2)
		}
	}
}

func TestMergeUnionsStatusSets(t *testing.T) {
	a := NewFutureResult()
	a.AddSucceeded("SEASON spring")
	b := NewFutureResult()
	b.AddFailed("TIME 600 800")
	b.AddErrored("FOO")
	a.Merge(b)
	if len(a.Succeeded()) != 1 || len(a.Failed()) != 1 || len(a.Errored()) != 1 {
		t.Fatalf("status sets not unioned: %v %v %v", a.Succeeded(), a.Failed(), a.Errored())
	}
}

func TestHasResolvedDateLiteralRule(t *testing.T) {
	r := FromDates(days(1))
	r.AddSucceeded("SEASON spring")
	if r.HasResolvedDate() {
		t.Fatalf("dates alone must not count as resolved")
	}
	r.AddFailed("TIME 600 800")
	if r.HasResolvedDate() {
		t.Fatalf("needs an errored clause as well")
	}
	r.AddErrored("FOO")
	if !r.HasResolvedDate() {
		t.Fatalf("expected resolved with dates, failed and errored")
	}
}

func TestNextAndLastDate(t *testing.T) {
	today := calendar.New(1, calendar.Spring, 3)
	r := FromDates(NewDateSet(today, calendar.New(1, calendar.Spring, 10), calendar.New(1, calendar.Summer, 2)))
	if d, ok := r.NextDate(today, true); !ok || !d.Equal(today) {
		t.Fatalf("NextDate(include)=%v,%v", d, ok)
	}
	if d, ok := r.NextDate(today, false); !ok || d.Day != 10 {
		t.Fatalf("NextDate(exclude)=%v,%v", d, ok)
	}
	if d, ok := r.LastDateInSeason(today, true); !ok || d.Day != 10 || d.Season != calendar.Spring {
		t.Fatalf("LastDateInSeason=%v,%v", d, ok)
	}
	if _, ok := EmptyFuture().NextDate(today, true); ok {
		t.Fatalf("empty result should have no next date")
	}
}
