package recurrence

import "github.com/communitycal/bookingcore/internal/datekey"

// Override carries the per-date adjustments stored against an event. An
// override on a date the expander did not produce is inert.
type Override struct {
	Date      datekey.Key
	Cancelled bool
	StartTime *string
	FlyerURL  *string
	Notes     *string
}

// Merged is an occurrence with its override applied.
type Merged struct {
	Occurrence
	Cancelled bool
	StartTime *string
	FlyerURL  *string
	Notes     *string
}

// MergeResult separates live occurrences from cancelled ones so callers can
// render cancellations with reduced prominence. Cancelled is only populated
// when the merge was asked to include them.
type MergeResult struct {
	Normal    []Merged
	Cancelled []Merged
}

// MergeOverrides applies date-keyed overrides to an expander's output.
// Ordering of the input is preserved; overrides never add occurrences.
func MergeOverrides(occurrences []Occurrence, overrides []Override, includeCancelled bool) MergeResult {
	byDate := make(map[datekey.Key]Override, len(overrides))
	for _, ov := range overrides {
		byDate[ov.Date] = ov
	}

	var res MergeResult
	for _, occ := range occurrences {
		m := Merged{Occurrence: occ}
		if ov, ok := byDate[occ.Date]; ok {
			m.Cancelled = ov.Cancelled
			m.StartTime = ov.StartTime
			m.FlyerURL = ov.FlyerURL
			m.Notes = ov.Notes
		}
		if m.Cancelled {
			if includeCancelled {
				res.Cancelled = append(res.Cancelled, m)
			}
			continue
		}
		res.Normal = append(res.Normal, m)
	}
	return res
}
