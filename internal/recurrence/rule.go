// Package recurrence turns an event's schedule descriptor into concrete dated
// occurrences. Several legacy rule dialects survive in production data; all of
// them are parsed into one normalized Rule before expansion, so the expansion
// algorithm never looks at raw rule strings.
package recurrence

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/communitycal/bookingcore/internal/datekey"
)

var ErrInvalidSchedule = errors.New("invalid schedule")

type Kind int

const (
	KindNone Kind = iota
	KindSingle
	KindWeekly
	KindBiweekly
	KindMonthlyOrdinal
	KindRFC
	KindCustom
	KindUnknown
)

// Rule is the normalized recurrence form.
type Rule struct {
	Kind    Kind
	Weekday time.Weekday
	// HasWeekday distinguishes an explicit weekday from the zero value Sunday.
	HasWeekday bool
	Anchor     datekey.Key
	// Ordinals holds 1..5 or -1 (last) for monthly rules; two entries for the
	// "1st & 3rd" dialect.
	Ordinals []int
	RRule    *rrule.RRule
	Custom   []datekey.Key
	// Confident is false when the rule was inferred rather than explicit.
	Confident bool
}

// Descriptor is the raw schedule input as persisted on an event.
type Descriptor struct {
	AnchorDate  string
	WeekdayName string
	RuleText    string
	CustomDates []string
}

var (
	ordinalWords = map[string]int{
		"1st": 1, "first": 1,
		"2nd": 2, "second": 2,
		"3rd": 3, "third": 3,
		"4th": 4, "fourth": 4,
		"5th": 5, "fifth": 5,
		"last": -1,
	}
	// e.g. "3rd thursday", "1st & 3rd friday", "2nd and 4th", "last monday"
	ordinalRe = regexp.MustCompile(
		`^(1st|first|2nd|second|3rd|third|4th|fourth|5th|fifth|last)` +
			`(?:\s*(?:&|and|\+)\s*(1st|first|2nd|second|3rd|third|4th|fourth|5th|fifth|last))?` +
			`(?:\s+([a-z]+?)s?)?(?:\s+of\s+the\s+month)?$`)
	everyRe = regexp.MustCompile(`^every\s+(other\s+)?([a-z]+?)s?$`)
)

// ParseRule normalizes a schedule descriptor. A nil error with Kind ==
// KindUnknown means the rule text was unrecognized; expansion then falls back
// to the weekday field when present.
func ParseRule(d Descriptor) (Rule, error) {
	var r Rule

	if wd, ok := datekey.ParseWeekday(d.WeekdayName); ok {
		r.Weekday = wd
		r.HasWeekday = true
	}
	if d.AnchorDate != "" {
		anchor, err := datekey.Parse(d.AnchorDate)
		if err != nil {
			return Rule{}, fmt.Errorf("%w: anchor: %v", ErrInvalidSchedule, err)
		}
		r.Anchor = anchor
	}

	text := strings.ToLower(strings.TrimSpace(d.RuleText))

	// Custom dates are the sole source of truth when present.
	if text == "custom" || len(d.CustomDates) > 0 {
		if len(d.CustomDates) == 0 {
			return Rule{}, fmt.Errorf("%w: custom recurrence requires an explicit date list", ErrInvalidSchedule)
		}
		dates := make([]datekey.Key, 0, len(d.CustomDates))
		seen := make(map[datekey.Key]bool, len(d.CustomDates))
		for _, s := range d.CustomDates {
			k, err := datekey.Parse(s)
			if err != nil {
				return Rule{}, fmt.Errorf("%w: custom date: %v", ErrInvalidSchedule, err)
			}
			if !seen[k] {
				seen[k] = true
				dates = append(dates, k)
			}
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
		r.Kind = KindCustom
		r.Custom = dates
		r.Confident = true
		return r, nil
	}

	switch text {
	case "", "none":
		if !r.Anchor.IsZero() {
			r.Kind = KindSingle
			r.Confident = true
			return r, nil
		}
		if r.HasWeekday {
			// Legacy rows where the weekday field alone described the night.
			r.Kind = KindWeekly
			r.Confident = false
			return r, nil
		}
		r.Kind = KindNone
		return r, nil
	case "weekly", "every week":
		return weeklyRule(r, KindWeekly)
	case "biweekly", "fortnightly", "every other week", "every 2 weeks":
		return weeklyRule(r, KindBiweekly)
	}

	if m := everyRe.FindStringSubmatch(text); m != nil {
		if wd, ok := datekey.ParseWeekday(m[2]); ok {
			r.Weekday = wd
			r.HasWeekday = true
			kind := KindWeekly
			if m[1] != "" {
				kind = KindBiweekly
			}
			return weeklyRule(r, kind)
		}
	}

	if m := ordinalRe.FindStringSubmatch(text); m != nil {
		ords := []int{ordinalWords[m[1]]}
		if m[2] != "" {
			second := ordinalWords[m[2]]
			if second != ords[0] {
				ords = append(ords, second)
			}
		}
		if m[3] != "" {
			wd, ok := datekey.ParseWeekday(m[3])
			if !ok {
				return unknownRule(r), nil
			}
			r.Weekday = wd
			r.HasWeekday = true
		}
		if !r.HasWeekday {
			return unknownRule(r), nil
		}
		sort.Ints(ords)
		r.Kind = KindMonthlyOrdinal
		r.Ordinals = ords
		r.Confident = true
		return r, nil
	}

	if strings.HasPrefix(strings.ToUpper(text), "FREQ=") {
		parsed, err := rrule.StrToRRule(strings.ToUpper(text))
		if err != nil {
			return unknownRule(r), nil
		}
		r.Kind = KindRFC
		r.RRule = parsed
		r.Confident = true
		return r, nil
	}

	return unknownRule(r), nil
}

func weeklyRule(r Rule, kind Kind) (Rule, error) {
	if !r.HasWeekday {
		if r.Anchor.IsZero() {
			return Rule{}, fmt.Errorf("%w: weekly recurrence requires a weekday or anchor date", ErrInvalidSchedule)
		}
		r.Weekday = r.Anchor.Weekday()
		r.HasWeekday = true
	}
	r.Kind = kind
	r.Confident = true
	return r, nil
}

func unknownRule(r Rule) Rule {
	r.Kind = KindUnknown
	r.Confident = false
	return r
}
