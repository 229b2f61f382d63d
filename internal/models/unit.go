package models

import "time"

type UnitKind string

const (
	UnitSlot UnitKind = "slot"
	UnitPool UnitKind = "pool"
)

// BookableUnit is either one performance timeslot (Kind=slot, SlotIndex>=1,
// Capacity=1) or an occurrence's RSVP pool (Kind=pool, SlotIndex=0, Capacity
// nil for unbounded). Units are scoped to a single occurrence date; schedule
// edits only ever regenerate future-dated units.
type BookableUnit struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	EventID uint   `gorm:"not null;uniqueIndex:idx_unit_event_date_slot" json:"event_id"`
	DateKey string `gorm:"not null;uniqueIndex:idx_unit_event_date_slot" json:"date_key"`
	// SlotIndex is 1-based for slots, 0 for the pool.
	SlotIndex int      `gorm:"not null;default:0;uniqueIndex:idx_unit_event_date_slot" json:"slot_index"`
	Kind      UnitKind `gorm:"type:varchar(10);not null" json:"kind"`

	DurationMin int  `gorm:"not null;default:0" json:"duration_min"`
	Capacity    *int `json:"capacity,omitempty"`

	// LastWaitlistPos is the monotonically increasing waitlist counter for
	// this unit. It is read and incremented inside the same locked
	// transaction as the booking, and never reset, so positions are unique
	// even across cancellations.
	LastWaitlistPos int `gorm:"not null;default:0" json:"last_waitlist_pos"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Event *Event `gorm:"foreignKey:EventID" json:"event,omitempty"`
}

// OfferWindow returns the promotion offer duration for this unit's kind.
func (u *BookableUnit) OfferWindow(e *Event) time.Duration {
	if u.Kind == UnitSlot {
		return time.Duration(e.SlotOfferMinutes) * time.Minute
	}
	return time.Duration(e.RSVPOfferMinutes) * time.Minute
}

// EffectiveCapacity returns the confirmed-claim capacity and whether it is
// bounded.
func (u *BookableUnit) EffectiveCapacity() (int, bool) {
	if u.Capacity == nil {
		return 0, false
	}
	return *u.Capacity, true
}
