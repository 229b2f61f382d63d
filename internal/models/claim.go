package models

import "time"

type ClaimStatus string

const (
	StatusConfirmed  ClaimStatus = "confirmed"
	StatusWaitlisted ClaimStatus = "waitlist"
	StatusOffered    ClaimStatus = "offered"
	StatusCancelled  ClaimStatus = "cancelled"
	StatusPerformed  ClaimStatus = "performed"
	StatusNoShow     ClaimStatus = "no_show"
)

// Active reports whether the status still occupies capacity or a waitlist
// position. Cancelled, performed and no_show are terminal.
func (s ClaimStatus) Active() bool {
	switch s {
	case StatusConfirmed, StatusWaitlisted, StatusOffered:
		return true
	}
	return false
}

func (s ClaimStatus) Terminal() bool { return !s.Active() }

type HolderKind string

const (
	HolderMember HolderKind = "member"
	HolderGuest  HolderKind = "guest"
)

// Claim is one holder's stake in a bookable unit: a confirmed slot or RSVP,
// a waitlist entry, or a time-boxed promotion offer. A claim never spans
// occurrence dates.
type Claim struct {
	ID      uint     `gorm:"primaryKey" json:"id"`
	UnitID  uint     `gorm:"not null;index" json:"unit_id"`
	EventID uint     `gorm:"not null;index" json:"event_id"`
	DateKey string   `gorm:"not null" json:"date_key"`
	Kind    UnitKind `gorm:"type:varchar(10);not null" json:"kind"`

	HolderKind HolderKind `gorm:"type:varchar(10);not null" json:"holder_kind"`
	HolderID   string     `gorm:"not null" json:"holder_id"`

	Status ClaimStatus `gorm:"type:varchar(20);not null;default:'confirmed'" json:"status"`
	// WaitlistPos is set iff Status is waitlist.
	WaitlistPos *int `json:"waitlist_pos,omitempty"`
	// OfferExpiresAt is set iff Status is offered.
	OfferExpiresAt *time.Time `json:"offer_expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Unit *BookableUnit `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
}
