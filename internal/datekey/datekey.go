// Package datekey provides the canonical date representation used across the
// scheduling and booking core. A Key is a civil calendar date ("YYYY-MM-DD")
// with no time-of-day or timezone offset attached; all arithmetic happens on
// date components, so DST transitions can never shift a date.
package datekey

import (
	"fmt"
	"time"
)

const Layout = "2006-01-02"

// Key is a calendar date in canonical "YYYY-MM-DD" form. Keys compare
// chronologically with plain string comparison.
type Key string

func Parse(s string) (Key, error) {
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return "", fmt.Errorf("invalid date key %q: %w", s, err)
	}
	// Round-trip to reject non-canonical forms like 2025-1-05.
	if t.Format(Layout) != s {
		return "", fmt.Errorf("invalid date key %q: not canonical", s)
	}
	return Key(s), nil
}

// MustParse is for constants and tests.
func MustParse(s string) Key {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

func FromTime(t time.Time) Key {
	return Key(t.Format(Layout))
}

// Today returns the current date key in the given civil calendar.
func Today(loc *time.Location) Key {
	if loc == nil {
		loc = time.UTC
	}
	return FromTime(time.Now().In(loc))
}

// Time returns midnight UTC of the date. It exists only for component
// arithmetic; the time value must never cross a package boundary.
func (k Key) Time() time.Time {
	t, _ := time.ParseInLocation(Layout, string(k), time.UTC)
	return t
}

func (k Key) IsZero() bool { return k == "" }

func (k Key) AddDays(n int) Key {
	return FromTime(k.Time().AddDate(0, 0, n))
}

func (k Key) Weekday() time.Weekday {
	return k.Time().Weekday()
}

func (k Key) Year() int         { return k.Time().Year() }
func (k Key) Month() time.Month { return k.Time().Month() }

func (k Key) Before(other Key) bool { return k < other }
func (k Key) After(other Key) bool  { return k > other }

// In reports whether k falls within the inclusive [start, end] window.
func (k Key) In(start, end Key) bool {
	return k >= start && k <= end
}

// NextWeekday returns the first date on or after k that falls on wd.
func (k Key) NextWeekday(wd time.Weekday) Key {
	delta := (int(wd) - int(k.Weekday()) + 7) % 7
	return k.AddDays(delta)
}

// NthWeekdayOfMonth returns the nth occurrence of wd in the given month.
// n is 1..5, or -1 for the last occurrence. The second return is false when
// the month has no nth occurrence (e.g. a 5th Monday in a four-Monday month).
func NthWeekdayOfMonth(year int, month time.Month, wd time.Weekday, n int) (Key, bool) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()

	if n == -1 {
		last := time.Date(year, month, daysInMonth, 0, 0, 0, 0, time.UTC)
		delta := (int(last.Weekday()) - int(wd) + 7) % 7
		return FromTime(last.AddDate(0, 0, -delta)), true
	}
	if n < 1 || n > 5 {
		return "", false
	}

	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	day := 1 + offset + (n-1)*7
	if day > daysInMonth {
		return "", false
	}
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC)), true
}

// ParseWeekday maps a weekday name ("Thursday", "thu") to time.Weekday.
func ParseWeekday(name string) (time.Weekday, bool) {
	switch normalizeWeekday(name) {
	case "sunday", "sun":
		return time.Sunday, true
	case "monday", "mon":
		return time.Monday, true
	case "tuesday", "tue", "tues":
		return time.Tuesday, true
	case "wednesday", "wed":
		return time.Wednesday, true
	case "thursday", "thu", "thur", "thurs":
		return time.Thursday, true
	case "friday", "fri":
		return time.Friday, true
	case "saturday", "sat":
		return time.Saturday, true
	}
	return 0, false
}

func normalizeWeekday(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c == ' ' || c == '\t' {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}
