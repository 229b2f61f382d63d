package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/communitycal/bookingcore/internal/datekey"
)

func window(start, end string) ExpandConfig {
	return ExpandConfig{
		Start: datekey.MustParse(start),
		End:   datekey.MustParse(end),
	}
}

func dates(res Result) []datekey.Key {
	out := make([]datekey.Key, len(res.Occurrences))
	for i, occ := range res.Occurrences {
		out[i] = occ.Date
	}
	return out
}

func TestExpand_WeeklyFourWednesdaysIn28Days(t *testing.T) {
	r := Rule{Kind: KindWeekly, Weekday: time.Wednesday, HasWeekday: true, Confident: true}
	res := Expand(1, r, nil, window("2026-09-01", "2026-09-28"))

	assert.Equal(t, []datekey.Key{
		"2026-09-02", "2026-09-09", "2026-09-16", "2026-09-23",
	}, dates(res))
	assert.False(t, res.Truncated)
	for _, occ := range res.Occurrences {
		assert.True(t, occ.Confident)
		assert.Equal(t, uint(1), occ.EventID)
	}
}

func TestExpand_Deterministic(t *testing.T) {
	r := Rule{Kind: KindWeekly, Weekday: time.Friday, HasWeekday: true, Confident: true}
	cfg := window("2026-09-01", "2026-12-31")

	first := Expand(1, r, nil, cfg)
	second := Expand(1, r, nil, cfg)
	assert.Equal(t, first, second)
}

func TestExpand_BiweeklySteps14Days(t *testing.T) {
	r := Rule{Kind: KindBiweekly, Weekday: time.Thursday, HasWeekday: true, Confident: true}
	res := Expand(1, r, nil, window("2026-09-01", "2026-09-30"))

	assert.Equal(t, []datekey.Key{"2026-09-03", "2026-09-17"}, dates(res))
}

func TestExpand_ThirdThursdayAcrossMonths(t *testing.T) {
	r := Rule{Kind: KindMonthlyOrdinal, Weekday: time.Thursday, HasWeekday: true, Ordinals: []int{3}, Confident: true}
	res := Expand(1, r, nil, window("2026-09-01", "2026-11-30"))

	assert.Equal(t, []datekey.Key{
		"2026-09-17", "2026-10-15", "2026-11-19",
	}, dates(res))
}

func TestExpand_FifthWeekdaySkipsShortMonths(t *testing.T) {
	// September 2026 has a fifth Tuesday, October does not.
	r := Rule{Kind: KindMonthlyOrdinal, Weekday: time.Tuesday, HasWeekday: true, Ordinals: []int{5}, Confident: true}
	res := Expand(1, r, nil, window("2026-09-01", "2026-10-31"))

	assert.Equal(t, []datekey.Key{"2026-09-29"}, dates(res))
}

func TestExpand_LastFriday(t *testing.T) {
	r := Rule{Kind: KindMonthlyOrdinal, Weekday: time.Friday, HasWeekday: true, Ordinals: []int{-1}, Confident: true}
	res := Expand(1, r, nil, window("2026-09-01", "2026-10-31"))

	assert.Equal(t, []datekey.Key{"2026-09-25", "2026-10-30"}, dates(res))
}

func TestExpand_FirstAndThirdOrdering(t *testing.T) {
	r := Rule{Kind: KindMonthlyOrdinal, Weekday: time.Monday, HasWeekday: true, Ordinals: []int{1, 3}, Confident: true}
	res := Expand(1, r, nil, window("2026-09-01", "2026-10-31"))

	assert.Equal(t, []datekey.Key{
		"2026-09-07", "2026-09-21", "2026-10-05", "2026-10-19",
	}, dates(res))
}

func TestExpand_SingleAnchor(t *testing.T) {
	r := Rule{Kind: KindSingle, Anchor: "2026-09-12", Confident: true}

	res := Expand(1, r, nil, window("2026-09-01", "2026-09-30"))
	assert.Equal(t, []datekey.Key{"2026-09-12"}, dates(res))

	res = Expand(1, r, nil, window("2026-10-01", "2026-10-31"))
	assert.Empty(t, res.Occurrences)
}

func TestExpand_CustomFiltersToWindow(t *testing.T) {
	r := Rule{
		Kind:      KindCustom,
		Custom:    []datekey.Key{"2026-08-30", "2026-09-12", "2026-10-05"},
		Confident: true,
	}
	res := Expand(1, r, nil, window("2026-09-01", "2026-09-30"))

	assert.Equal(t, []datekey.Key{"2026-09-12"}, dates(res))
}

func TestExpand_RFCWeekly(t *testing.T) {
	r, err := ParseRule(Descriptor{RuleText: "FREQ=WEEKLY;BYDAY=WE"})
	assert.NoError(t, err)

	res := Expand(1, r, nil, window("2026-09-01", "2026-09-28"))
	assert.Equal(t, []datekey.Key{
		"2026-09-02", "2026-09-09", "2026-09-16", "2026-09-23",
	}, dates(res))
}

func TestExpand_RFCSharedRuleStaysImmutable(t *testing.T) {
	r, err := ParseRule(Descriptor{RuleText: "FREQ=WEEKLY;BYDAY=WE"})
	assert.NoError(t, err)

	before := r.RRule.OrigOptions.Dtstart

	sept := Expand(1, r, nil, window("2026-09-01", "2026-09-28"))
	oct := Expand(1, r, nil, window("2026-10-01", "2026-10-31"))

	assert.Equal(t, before, r.RRule.OrigOptions.Dtstart)
	assert.Equal(t, []datekey.Key{
		"2026-09-02", "2026-09-09", "2026-09-16", "2026-09-23",
	}, dates(sept))
	assert.Equal(t, []datekey.Key{
		"2026-10-07", "2026-10-14", "2026-10-21", "2026-10-28",
	}, dates(oct))
}

func TestExpand_UnknownRuleFallsBackToWeekday(t *testing.T) {
	r := Rule{Kind: KindUnknown, Weekday: time.Wednesday, HasWeekday: true}
	res := Expand(1, r, nil, window("2026-09-01", "2026-09-14"))

	assert.Equal(t, []datekey.Key{"2026-09-02", "2026-09-09"}, dates(res))
	assert.False(t, res.ScheduleUnknown)
	for _, occ := range res.Occurrences {
		assert.False(t, occ.Confident)
	}
}

func TestExpand_UnknownRuleWithoutWeekday(t *testing.T) {
	res := Expand(1, Rule{Kind: KindUnknown}, nil, window("2026-09-01", "2026-09-30"))
	assert.True(t, res.ScheduleUnknown)
	assert.Empty(t, res.Occurrences)
}

func TestExpand_EmptyWindow(t *testing.T) {
	r := Rule{Kind: KindWeekly, Weekday: time.Monday, HasWeekday: true, Confident: true}
	res := Expand(1, r, nil, window("2026-09-30", "2026-09-01"))
	assert.Empty(t, res.Occurrences)
}

func TestExpand_CapTruncates(t *testing.T) {
	r := Rule{Kind: KindWeekly, Weekday: time.Monday, HasWeekday: true, Confident: true}
	cfg := window("2026-09-01", "2026-12-31")
	cfg.MaxPerEvent = 3

	res := Expand(1, r, nil, cfg)
	assert.Len(t, res.Occurrences, 3)
	assert.True(t, res.Truncated)
	assert.Equal(t, []datekey.Key{"2026-09-07", "2026-09-14", "2026-09-21"}, dates(res))
}

func TestExpand_PerEventMaxOccurrences(t *testing.T) {
	max := 2
	r := Rule{Kind: KindWeekly, Weekday: time.Monday, HasWeekday: true, Confident: true}
	res := Expand(1, r, &max, window("2026-09-01", "2026-12-31"))

	assert.Len(t, res.Occurrences, 2)
	assert.True(t, res.Truncated)
}

func TestExpandBatch_GlobalCap(t *testing.T) {
	weekly := Rule{Kind: KindWeekly, Weekday: time.Monday, HasWeekday: true, Confident: true}
	schedules := []Schedule{
		{EventID: 1, Rule: weekly},
		{EventID: 2, Rule: weekly},
	}
	cfg := window("2026-09-01", "2026-12-31")
	cfg.MaxTotal = 5

	res := ExpandBatch(schedules, cfg)
	assert.Len(t, res.Occurrences, 5)
	assert.True(t, res.Truncated)
}

func TestExpandBatch_ReportsUnknownEvents(t *testing.T) {
	schedules := []Schedule{
		{EventID: 1, Rule: Rule{Kind: KindWeekly, Weekday: time.Monday, HasWeekday: true, Confident: true}},
		{EventID: 2, Rule: Rule{Kind: KindUnknown}},
		{EventID: 3, Rule: Rule{Kind: KindNone}},
	}

	res := ExpandBatch(schedules, window("2026-09-01", "2026-09-14"))
	assert.Equal(t, []uint{2, 3}, res.UnknownEvents)
	assert.False(t, res.Truncated)
}

func TestExpandBatch_MaxEvents(t *testing.T) {
	weekly := Rule{Kind: KindWeekly, Weekday: time.Monday, HasWeekday: true, Confident: true}
	schedules := []Schedule{
		{EventID: 1, Rule: weekly},
		{EventID: 2, Rule: weekly},
		{EventID: 3, Rule: weekly},
	}
	cfg := window("2026-09-01", "2026-09-14")
	cfg.MaxEvents = 2

	res := ExpandBatch(schedules, cfg)
	assert.True(t, res.Truncated)
	for _, occ := range res.Occurrences {
		assert.NotEqual(t, uint(3), occ.EventID)
	}
}
