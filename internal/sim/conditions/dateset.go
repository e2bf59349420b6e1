package conditions

import (
	"sort"

	"catchodds.dev/internal/sim/calendar"
)

// DateSet is a set of calendar dates keyed by ordinal.
type DateSet map[int]struct{}

func NewDateSet(dates ...calendar.Date) DateSet {
	s := make(DateSet, len(dates))
	for _, d := range dates {
		s.Add(d)
	}
	return s
}

func (s DateSet) Add(d calendar.Date) { s[d.TotalDays()] = struct{}{} }

func (s DateSet) Has(d calendar.Date) bool {
	_, ok := s[d.TotalDays()]
	return ok
}

func (s DateSet) Len() int { return len(s) }

func (s DateSet) Clone() DateSet {
	out := make(DateSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

func (s DateSet) UnionWith(o DateSet) {
	for k := range o {
		s[k] = struct{}{}
	}
}

func (s DateSet) IntersectWith(o DateSet) {
	for k := range s {
		if _, ok := o[k]; !ok {
			delete(s, k)
		}
	}
}

// Sorted returns the dates in ascending order.
func (s DateSet) Sorted() []calendar.Date {
	keys := make([]int, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]calendar.Date, len(keys))
	for i, k := range keys {
		out[i] = calendar.FromTotalDays(k)
	}
	return out
}

// addRange adds every date with ordinal in [from, to].
func (s DateSet) addRange(from, to int) {
	for n := from; n <= to; n++ {
		s[n] = struct{}{}
	}
}
