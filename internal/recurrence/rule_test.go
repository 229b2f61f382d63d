package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/communitycal/bookingcore/internal/datekey"
)

func TestParseRule_Weekly(t *testing.T) {
	r, err := ParseRule(Descriptor{WeekdayName: "Wednesday", RuleText: "weekly"})
	assert.NoError(t, err)
	assert.Equal(t, KindWeekly, r.Kind)
	assert.Equal(t, time.Wednesday, r.Weekday)
	assert.True(t, r.Confident)
}

func TestParseRule_WeeklyFromAnchorWeekday(t *testing.T) {
	// 2026-09-03 is a Thursday; with no weekday field the anchor supplies it.
	r, err := ParseRule(Descriptor{AnchorDate: "2026-09-03", RuleText: "weekly"})
	assert.NoError(t, err)
	assert.Equal(t, KindWeekly, r.Kind)
	assert.Equal(t, time.Thursday, r.Weekday)
}

func TestParseRule_WeeklyWithoutWeekdayOrAnchor(t *testing.T) {
	_, err := ParseRule(Descriptor{RuleText: "weekly"})
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestParseRule_EveryOtherDialect(t *testing.T) {
	r, err := ParseRule(Descriptor{RuleText: "every other thursday"})
	assert.NoError(t, err)
	assert.Equal(t, KindBiweekly, r.Kind)
	assert.Equal(t, time.Thursday, r.Weekday)
	assert.True(t, r.Confident)

	r, err = ParseRule(Descriptor{RuleText: "every tuesday"})
	assert.NoError(t, err)
	assert.Equal(t, KindWeekly, r.Kind)
	assert.Equal(t, time.Tuesday, r.Weekday)
}

func TestParseRule_MonthlyOrdinal(t *testing.T) {
	r, err := ParseRule(Descriptor{RuleText: "3rd thursday of the month"})
	assert.NoError(t, err)
	assert.Equal(t, KindMonthlyOrdinal, r.Kind)
	assert.Equal(t, []int{3}, r.Ordinals)
	assert.Equal(t, time.Thursday, r.Weekday)
}

func TestParseRule_DoubleOrdinal(t *testing.T) {
	r, err := ParseRule(Descriptor{RuleText: "1st & 3rd fridays"})
	assert.NoError(t, err)
	assert.Equal(t, KindMonthlyOrdinal, r.Kind)
	assert.Equal(t, []int{1, 3}, r.Ordinals)
	assert.Equal(t, time.Friday, r.Weekday)

	r, err = ParseRule(Descriptor{RuleText: "2nd and 4th", WeekdayName: "monday"})
	assert.NoError(t, err)
	assert.Equal(t, KindMonthlyOrdinal, r.Kind)
	assert.Equal(t, []int{2, 4}, r.Ordinals)
}

func TestParseRule_LastOrdinal(t *testing.T) {
	r, err := ParseRule(Descriptor{RuleText: "last monday"})
	assert.NoError(t, err)
	assert.Equal(t, KindMonthlyOrdinal, r.Kind)
	assert.Equal(t, []int{-1}, r.Ordinals)
}

func TestParseRule_OrdinalWithoutWeekdayAnywhere(t *testing.T) {
	r, err := ParseRule(Descriptor{RuleText: "3rd"})
	assert.NoError(t, err)
	assert.Equal(t, KindUnknown, r.Kind)
}

func TestParseRule_CustomDates(t *testing.T) {
	r, err := ParseRule(Descriptor{
		RuleText:    "custom",
		CustomDates: []string{"2026-10-05", "2026-09-12", "2026-10-05"},
	})
	assert.NoError(t, err)
	assert.Equal(t, KindCustom, r.Kind)
	assert.Equal(t, []datekey.Key{"2026-09-12", "2026-10-05"}, r.Custom)
}

func TestParseRule_CustomDatesWinOverRuleText(t *testing.T) {
	r, err := ParseRule(Descriptor{
		RuleText:    "weekly",
		WeekdayName: "monday",
		CustomDates: []string{"2026-09-12"},
	})
	assert.NoError(t, err)
	assert.Equal(t, KindCustom, r.Kind)
}

func TestParseRule_CustomWithoutDates(t *testing.T) {
	_, err := ParseRule(Descriptor{RuleText: "custom"})
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestParseRule_CustomWithBadDate(t *testing.T) {
	_, err := ParseRule(Descriptor{CustomDates: []string{"2026-9-12"}})
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestParseRule_EmptyWithAnchorIsSingle(t *testing.T) {
	r, err := ParseRule(Descriptor{AnchorDate: "2026-09-03"})
	assert.NoError(t, err)
	assert.Equal(t, KindSingle, r.Kind)
	assert.Equal(t, datekey.Key("2026-09-03"), r.Anchor)
	assert.True(t, r.Confident)
}

func TestParseRule_EmptyWithWeekdayIsInferredWeekly(t *testing.T) {
	r, err := ParseRule(Descriptor{WeekdayName: "friday"})
	assert.NoError(t, err)
	assert.Equal(t, KindWeekly, r.Kind)
	assert.False(t, r.Confident)
}

func TestParseRule_EmptyIsNone(t *testing.T) {
	r, err := ParseRule(Descriptor{})
	assert.NoError(t, err)
	assert.Equal(t, KindNone, r.Kind)
}

func TestParseRule_RFCSubset(t *testing.T) {
	r, err := ParseRule(Descriptor{RuleText: "FREQ=WEEKLY;BYDAY=WE"})
	assert.NoError(t, err)
	assert.Equal(t, KindRFC, r.Kind)
	assert.NotNil(t, r.RRule)
	assert.True(t, r.Confident)
}

func TestParseRule_MalformedRFCFallsBackToUnknown(t *testing.T) {
	r, err := ParseRule(Descriptor{RuleText: "FREQ=SOMETIMES", WeekdayName: "wednesday"})
	assert.NoError(t, err)
	assert.Equal(t, KindUnknown, r.Kind)
	assert.True(t, r.HasWeekday)
}

func TestParseRule_GibberishIsUnknown(t *testing.T) {
	r, err := ParseRule(Descriptor{RuleText: "whenever the mood strikes"})
	assert.NoError(t, err)
	assert.Equal(t, KindUnknown, r.Kind)
	assert.False(t, r.Confident)
}

func TestParseRule_BadAnchor(t *testing.T) {
	_, err := ParseRule(Descriptor{AnchorDate: "03/08/2026"})
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}
