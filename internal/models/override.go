package models

import "time"

type OverrideStatus string

const (
	OverrideNormal    OverrideStatus = "normal"
	OverrideCancelled OverrideStatus = "cancelled"
)

// OccurrenceOverride adjusts a single expanded date of an event: a
// cancellation, a different start time, or replacement display fields.
// One override per (event, date).
type OccurrenceOverride struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	EventID uint   `gorm:"not null;uniqueIndex:idx_override_event_date" json:"event_id"`
	DateKey string `gorm:"not null;uniqueIndex:idx_override_event_date" json:"date_key"`

	Status    OverrideStatus `gorm:"type:varchar(20);not null;default:'normal'" json:"status"`
	StartTime *string        `json:"start_time,omitempty"`
	FlyerURL  *string        `json:"flyer_url,omitempty"`
	Notes     *string        `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
