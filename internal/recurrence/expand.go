package recurrence

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/communitycal/bookingcore/internal/datekey"
)

const (
	defaultMaxPerEvent   = 40
	defaultMaxBatchTotal = 500
	defaultMaxEvents     = 200
)

// ExpandConfig controls one expansion pass. The caps bound response size and
// always truncate, never error.
type ExpandConfig struct {
	Start datekey.Key
	End   datekey.Key

	// MaxPerEvent caps occurrences for a single event; zero means the default.
	MaxPerEvent int
	// MaxTotal and MaxEvents apply to batch expansion across many events.
	MaxTotal  int
	MaxEvents int
}

func (c ExpandConfig) maxPerEvent() int {
	if c.MaxPerEvent > 0 {
		return c.MaxPerEvent
	}
	return defaultMaxPerEvent
}

// Occurrence is one concrete dated instance of an event. Occurrences are
// always derived, never stored.
type Occurrence struct {
	EventID uint
	Date    datekey.Key
	// Confident is false when the date came from an inferred fallback rather
	// than an explicit rule; callers use it only for display.
	Confident bool
}

// Result wraps one event's expansion.
type Result struct {
	Occurrences []Occurrence
	// Truncated is set when a cap cut the sequence short.
	Truncated bool
	// ScheduleUnknown signals that the rule was unrecognized and no fallback
	// was possible; the event's schedule cannot be derived.
	ScheduleUnknown bool
}

// Schedule pairs an event id with its parsed rule and optional occurrence cap
// for batch expansion.
type Schedule struct {
	EventID        uint
	Rule           Rule
	MaxOccurrences *int
}

// Expand produces the ordered occurrence dates for one event within the
// inclusive [cfg.Start, cfg.End] window. It is pure and deterministic: the
// same schedule and window always yield byte-identical output.
func Expand(eventID uint, r Rule, maxOccurrences *int, cfg ExpandConfig) Result {
	var res Result
	if cfg.End.Before(cfg.Start) {
		return res
	}

	limit := cfg.maxPerEvent()
	if maxOccurrences != nil && *maxOccurrences > 0 && *maxOccurrences < limit {
		limit = *maxOccurrences
	}

	var dates []datekey.Key
	confident := r.Confident

	switch r.Kind {
	case KindCustom:
		for _, d := range r.Custom {
			if d.In(cfg.Start, cfg.End) {
				dates = append(dates, d)
			}
		}

	case KindSingle:
		if r.Anchor.In(cfg.Start, cfg.End) {
			dates = append(dates, r.Anchor)
		}

	case KindWeekly, KindBiweekly:
		step := 7
		if r.Kind == KindBiweekly {
			step = 14
		}
		for d := cfg.Start.NextWeekday(r.Weekday); !d.After(cfg.End); d = d.AddDays(step) {
			dates = append(dates, d)
		}

	case KindMonthlyOrdinal:
		dates = expandOrdinals(r, cfg.Start, cfg.End)

	case KindRFC:
		dates = expandRFC(r, cfg.Start, cfg.End)

	case KindUnknown:
		if r.HasWeekday {
			for d := cfg.Start.NextWeekday(r.Weekday); !d.After(cfg.End); d = d.AddDays(7) {
				dates = append(dates, d)
			}
			confident = false
		} else {
			res.ScheduleUnknown = true
		}

	case KindNone:
		// No rule, no weekday, no anchor: nothing to derive.
		res.ScheduleUnknown = true
	}

	if len(dates) > limit {
		dates = dates[:limit]
		res.Truncated = true
	}

	res.Occurrences = make([]Occurrence, len(dates))
	for i, d := range dates {
		res.Occurrences[i] = Occurrence{EventID: eventID, Date: d, Confident: confident}
	}
	return res
}

// BatchResult carries a multi-event expansion with the global caps applied.
type BatchResult struct {
	Occurrences []Occurrence
	Truncated   bool
	// UnknownEvents lists event ids whose schedule could not be derived.
	UnknownEvents []uint
}

// ExpandBatch expands many events in one pass, bounding the combined result
// by cfg.MaxTotal occurrences and cfg.MaxEvents events. Events are processed
// in input order, so truncation is deterministic.
func ExpandBatch(schedules []Schedule, cfg ExpandConfig) BatchResult {
	var out BatchResult

	maxTotal := cfg.MaxTotal
	if maxTotal <= 0 {
		maxTotal = defaultMaxBatchTotal
	}
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}

	if len(schedules) > maxEvents {
		schedules = schedules[:maxEvents]
		out.Truncated = true
	}

	for _, s := range schedules {
		res := Expand(s.EventID, s.Rule, s.MaxOccurrences, cfg)
		if res.Truncated {
			out.Truncated = true
		}
		if res.ScheduleUnknown {
			out.UnknownEvents = append(out.UnknownEvents, s.EventID)
		}
		remaining := maxTotal - len(out.Occurrences)
		if remaining <= 0 {
			out.Truncated = true
			break
		}
		if len(res.Occurrences) > remaining {
			res.Occurrences = res.Occurrences[:remaining]
			out.Truncated = true
		}
		out.Occurrences = append(out.Occurrences, res.Occurrences...)
	}
	return out
}

func expandOrdinals(r Rule, start, end datekey.Key) []datekey.Key {
	var dates []datekey.Key

	year, month := start.Year(), start.Month()
	endYear, endMonth := end.Year(), end.Month()

	for {
		for _, n := range r.Ordinals {
			d, ok := datekey.NthWeekdayOfMonth(year, month, r.Weekday, n)
			if !ok {
				// A 5th X in a month without one yields nothing, not an error.
				continue
			}
			if d.In(start, end) {
				dates = append(dates, d)
			}
		}
		if year == endYear && month == endMonth {
			break
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}

	// "last" can land before an earlier ordinal's date in the same month.
	sortKeys(dates)
	return dates
}

func expandRFC(r Rule, start, end datekey.Key) []datekey.Key {
	// Anchor the rule at the window start so expansion stays deterministic and
	// date-only; RFC-subset rules in legacy data carry no DTSTART of their own.
	// Rebuilt from the parsed options per call: the shared rule value is never
	// mutated, so concurrent expansions of one parsed rule are safe.
	opts := r.RRule.OrigOptions
	opts.Dtstart = start.Time()
	anchored, err := rrule.NewRRule(opts)
	if err != nil {
		return nil
	}

	times := anchored.Between(start.Time(), end.Time().Add(24*time.Hour-time.Second), true)

	dates := make([]datekey.Key, 0, len(times))
	var prev datekey.Key
	for _, t := range times {
		d := datekey.FromTime(t.In(time.UTC))
		if d == prev {
			continue
		}
		if d.In(start, end) {
			dates = append(dates, d)
			prev = d
		}
	}
	return dates
}

func sortKeys(dates []datekey.Key) {
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
}
