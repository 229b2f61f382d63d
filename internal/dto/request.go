package dto

type EventRequest struct {
	Name     string `json:"name"`
	Venue    string `json:"venue"`
	Timezone string `json:"timezone"`

	AnchorDate     *string  `json:"anchor_date,omitempty"`
	Weekday        *string  `json:"weekday,omitempty"`
	RecurrenceRule string   `json:"recurrence_rule"`
	CustomDates    []string `json:"custom_dates,omitempty"`
	MaxOccurrences *int     `json:"max_occurrences,omitempty"`

	SlotCount   int `json:"slot_count"`
	SlotMinutes int `json:"slot_minutes"`

	HasRSVP      bool `json:"has_rsvp"`
	RSVPCapacity *int `json:"rsvp_capacity,omitempty"`

	SlotOfferMinutes int `json:"slot_offer_minutes"`
	RSVPOfferMinutes int `json:"rsvp_offer_minutes"`
}

type OverrideRequest struct {
	Status    string  `json:"status"`
	StartTime *string `json:"start_time,omitempty"`
	FlyerURL  *string `json:"flyer_url,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// ClaimRequest identifies the holder. MemberID and GuestName are mutually
// exclusive; guests receive a generated holder token in the response.
type ClaimRequest struct {
	MemberID  string `json:"member_id,omitempty"`
	GuestName string `json:"guest_name,omitempty"`
}

type SettleRequest struct {
	Outcome string `json:"outcome"`
}

type SweepRequest struct {
	UnitID *uint `json:"unit_id,omitempty"`
}
