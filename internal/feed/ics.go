// Package feed renders an event's merged occurrences as an iCalendar feed so
// members can subscribe from their own calendar apps.
package feed

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/communitycal/bookingcore/internal/models"
	"github.com/communitycal/bookingcore/internal/recurrence"
)

const prodID = "-//communitycal//bookingcore//EN"

// BuildCalendar emits one all-day VEVENT per live occurrence. Cancelled
// occurrences are included with STATUS:CANCELLED when present in the merge
// result, matching how subscribed calendars expect cancellations to arrive.
func BuildCalendar(event *models.Event, merged recurrence.MergeResult) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(prodID)
	cal.SetXWRCalName(event.Name)

	for _, occ := range merged.Normal {
		addOccurrence(cal, event, occ, false)
	}
	for _, occ := range merged.Cancelled {
		addOccurrence(cal, event, occ, true)
	}

	return cal.Serialize()
}

func addOccurrence(cal *ics.Calendar, event *models.Event, occ recurrence.Merged, cancelled bool) {
	uid := fmt.Sprintf("event-%d-%s@communitycal", event.ID, occ.Date)
	ve := cal.AddEvent(uid)

	start := occ.Date.Time()
	ve.SetAllDayStartAt(start)
	ve.SetAllDayEndAt(start.AddDate(0, 0, 1))
	ve.SetDtStampTime(time.Now().UTC())

	summary := event.Name
	if occ.StartTime != nil {
		summary = fmt.Sprintf("%s (%s)", event.Name, *occ.StartTime)
	}
	ve.SetSummary(summary)
	if event.Venue != "" {
		ve.SetLocation(event.Venue)
	}
	if occ.Notes != nil {
		ve.SetDescription(*occ.Notes)
	}
	if occ.FlyerURL != nil {
		ve.SetURL(*occ.FlyerURL)
	}
	if cancelled {
		ve.SetStatus(ics.ObjectStatusCancelled)
	}
}
