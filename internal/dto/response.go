package dto

import (
	"time"

	"github.com/communitycal/bookingcore/internal/models"
	"github.com/communitycal/bookingcore/internal/recurrence"
)

type ClaimResponse struct {
	ID             uint               `json:"id"`
	UnitID         uint               `json:"unit_id"`
	EventID        uint               `json:"event_id"`
	DateKey        string             `json:"date_key"`
	HolderKind     models.HolderKind  `json:"holder_kind"`
	HolderID       string             `json:"holder_id"`
	Status         models.ClaimStatus `json:"status"`
	WaitlistPos    *int               `json:"waitlist_pos,omitempty"`
	OfferExpiresAt *time.Time         `json:"offer_expires_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

func ToClaimResponse(c *models.Claim) ClaimResponse {
	return ClaimResponse{
		ID:             c.ID,
		UnitID:         c.UnitID,
		EventID:        c.EventID,
		DateKey:        c.DateKey,
		HolderKind:     c.HolderKind,
		HolderID:       c.HolderID,
		Status:         c.Status,
		WaitlistPos:    c.WaitlistPos,
		OfferExpiresAt: c.OfferExpiresAt,
		CreatedAt:      c.CreatedAt,
	}
}

type OccurrenceResponse struct {
	EventID   uint    `json:"event_id"`
	Date      string  `json:"date"`
	Confident bool    `json:"confident"`
	Cancelled bool    `json:"cancelled,omitempty"`
	StartTime *string `json:"start_time,omitempty"`
	FlyerURL  *string `json:"flyer_url,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// OccurrenceListResponse groups cancelled dates apart from live ones so the
// UI can render them with reduced prominence.
type OccurrenceListResponse struct {
	Occurrences []OccurrenceResponse `json:"occurrences"`
	Cancelled   []OccurrenceResponse `json:"cancelled,omitempty"`
}

func ToOccurrenceResponse(m recurrence.Merged) OccurrenceResponse {
	return OccurrenceResponse{
		EventID:   m.EventID,
		Date:      string(m.Date),
		Confident: m.Confident,
		Cancelled: m.Cancelled,
		StartTime: m.StartTime,
		FlyerURL:  m.FlyerURL,
		Notes:     m.Notes,
	}
}

func ToOccurrenceListResponse(res recurrence.MergeResult) OccurrenceListResponse {
	out := OccurrenceListResponse{
		Occurrences: make([]OccurrenceResponse, len(res.Normal)),
	}
	for i, m := range res.Normal {
		out.Occurrences[i] = ToOccurrenceResponse(m)
	}
	for _, m := range res.Cancelled {
		out.Cancelled = append(out.Cancelled, ToOccurrenceResponse(m))
	}
	return out
}

type BatchOccurrenceResponse struct {
	Occurrences []BatchOccurrence `json:"occurrences"`
	Truncated   bool              `json:"truncated,omitempty"`
	// UnknownEvents lists events whose schedule could not be derived.
	UnknownEvents []uint `json:"unknown_events,omitempty"`
}

type BatchOccurrence struct {
	EventID   uint   `json:"event_id"`
	Date      string `json:"date"`
	Confident bool   `json:"confident"`
}

func ToBatchOccurrenceResponse(res recurrence.BatchResult) BatchOccurrenceResponse {
	out := BatchOccurrenceResponse{
		Occurrences:   make([]BatchOccurrence, len(res.Occurrences)),
		Truncated:     res.Truncated,
		UnknownEvents: res.UnknownEvents,
	}
	for i, occ := range res.Occurrences {
		out.Occurrences[i] = BatchOccurrence{
			EventID:   occ.EventID,
			Date:      string(occ.Date),
			Confident: occ.Confident,
		}
	}
	return out
}

type SweepResponse struct {
	PromotedClaimIDs []uint `json:"promoted_claim_ids"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}
