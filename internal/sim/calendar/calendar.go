package calendar

import (
	"fmt"
	"strings"
)

const (
	DaysPerMonth  = 28
	MonthsPerYear = 4
	DaysPerYear   = DaysPerMonth * MonthsPerYear
	DaysPerWeek   = 7
)

type Season int

const (
	Spring Season = iota
	Summer
	Fall
	Winter
)

var seasonNames = [...]string{"spring", "summer", "fall", "winter"}

func (s Season) String() string {
	if s < Spring || s > Winter {
		return fmt.Sprintf("season(%d)", int(s))
	}
	return seasonNames[s]
}

func (s Season) Valid() bool { return s >= Spring && s <= Winter }

// ParseSeason accepts season names case-insensitively, plus the numeric form 0-3.
func ParseSeason(s string) (Season, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range seasonNames {
		if s == name {
			return Season(i), true
		}
	}
	switch s {
	case "0", "1", "2", "3":
		return Season(s[0] - '0'), true
	}
	return 0, false
}

type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func (d Weekday) String() string {
	if d < Monday || d > Sunday {
		return fmt.Sprintf("weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

func (d Weekday) Short() string { return d.String()[:3] }

// ParseWeekday accepts full or three-letter names, case-insensitively.
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return 0, false
	}
	for i, name := range weekdayNames {
		lower := strings.ToLower(name)
		if s == lower || s == lower[:3] {
			return Weekday(i), true
		}
	}
	return 0, false
}

// Date is a day on the in-game calendar. Year starts at 1 and Day at 1.
type Date struct {
	Year   int
	Season Season
	Day    int
}

func New(year int, season Season, day int) Date {
	return Date{Year: year, Season: season, Day: day}
}

// FromTotalDays is the inverse of TotalDays.
func FromTotalDays(n int) Date {
	if n < 0 {
		n = 0
	}
	return Date{
		Year:   n/DaysPerYear + 1,
		Season: Season((n % DaysPerYear) / DaysPerMonth),
		Day:    n%DaysPerMonth + 1,
	}
}

// TotalDays is the number of days elapsed since year 1, spring 1.
func (d Date) TotalDays() int {
	return (d.Year-1)*DaysPerYear + int(d.Season)*DaysPerMonth + d.Day - 1
}

func (d Date) AddDays(n int) Date { return FromTotalDays(d.TotalDays() + n) }

func (d Date) Weekday() Weekday { return Weekday((d.Day - 1) % DaysPerWeek) }

func (d Date) Before(o Date) bool { return d.TotalDays() < o.TotalDays() }

func (d Date) After(o Date) bool { return d.TotalDays() > o.TotalDays() }

func (d Date) Equal(o Date) bool { return d.TotalDays() == o.TotalDays() }

func (d Date) Valid() bool {
	return d.Year >= 1 && d.Season.Valid() && d.Day >= 1 && d.Day <= DaysPerMonth
}

func (d Date) String() string {
	return fmt.Sprintf("Y%d %s %d", d.Year, d.Season, d.Day)
}

// StartOfYear returns spring 1 of the given year.
func StartOfYear(year int) Date { return Date{Year: year, Season: Spring, Day: 1} }
