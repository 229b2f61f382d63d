package models

import (
	"time"

	"github.com/lib/pq"
)

// Event is the schedule descriptor plus the booking configuration for one
// community event. The recurrence fields are interpreted by the recurrence
// package; when CustomDates is non-empty it is the sole source of truth and
// overrides Weekday/AnchorDate.
type Event struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	Venue    string `json:"venue"`
	Timezone string `gorm:"not null;default:'UTC'" json:"timezone"`

	AnchorDate     *string        `json:"anchor_date,omitempty"`
	Weekday        *string        `json:"weekday,omitempty"`
	RecurrenceRule string         `json:"recurrence_rule"`
	CustomDates    pq.StringArray `gorm:"type:text[]" json:"custom_dates,omitempty"`
	MaxOccurrences *int           `json:"max_occurrences,omitempty"`

	// Slot configuration: SlotCount performance slots of SlotMinutes each are
	// generated per occurrence date. Zero means no slots.
	SlotCount   int `gorm:"not null;default:0" json:"slot_count"`
	SlotMinutes int `gorm:"not null;default:10" json:"slot_minutes"`

	// RSVP pool: HasRSVP enables one pool per occurrence date. A nil capacity
	// means unbounded.
	HasRSVP      bool `gorm:"not null;default:false" json:"has_rsvp"`
	RSVPCapacity *int `json:"rsvp_capacity,omitempty"`

	// Offer windows for waitlist promotion, per event rather than hardcoded.
	SlotOfferMinutes int `gorm:"not null;default:120" json:"slot_offer_minutes"`
	RSVPOfferMinutes int `gorm:"not null;default:1440" json:"rsvp_offer_minutes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
