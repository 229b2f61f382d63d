package service

import (
	"context"
	"errors"
	"time"

	"github.com/communitycal/bookingcore/internal/models"
	"github.com/communitycal/bookingcore/internal/repository"
	"github.com/communitycal/bookingcore/pkg/rabbitmq"
	"gorm.io/gorm"
)

// Holder identifies who is claiming: a member id or a generated guest token.
type Holder struct {
	Kind models.HolderKind
	ID   string
}

type BookingService interface {
	// ClaimUnit is the strict claim: it confirms immediately or fails with
	// ErrConflict. It never waitlists.
	ClaimUnit(ctx context.Context, unitID uint, holder Holder) (*models.Claim, error)
	// BookCapacity confirms while capacity remains, then waitlists with a
	// monotonically assigned position. A timeslot behaves as a capacity-1 pool.
	BookCapacity(ctx context.Context, unitID uint, holder Holder) (*models.Claim, error)
	CancelClaim(ctx context.Context, claimID uint) (*models.Claim, error)
	// SettleClaim records the terminal outcome of a past occurrence:
	// performed or no_show.
	SettleClaim(ctx context.Context, claimID uint, outcome models.ClaimStatus) (*models.Claim, error)
	GetClaim(ctx context.Context, id uint) (*models.Claim, error)
	ListClaims(ctx context.Context, unitID uint, status *models.ClaimStatus) ([]models.Claim, error)
	UnitAvailability(ctx context.Context, eventID uint, dateKey string) ([]UnitStatus, error)
}

// UnitStatus is the advisory availability view of one unit. It is read
// without the pool lock, so it may lag concurrent writes; a claim attempt is
// the only authoritative check.
type UnitStatus struct {
	Unit       models.BookableUnit `json:"unit"`
	Confirmed  int64               `json:"confirmed"`
	Offered    int64               `json:"offered"`
	Waitlisted int64               `json:"waitlisted"`
	// Available is nil for unbounded pools.
	Available *int64 `json:"available,omitempty"`
}

type bookingService struct {
	claimRepo repository.ClaimRepository
	unitRepo  repository.UnitRepository
	eventRepo repository.EventRepository
	publisher *rabbitmq.Publisher
	now       func() time.Time
}

func NewBookingService(claimRepo repository.ClaimRepository, unitRepo repository.UnitRepository, eventRepo repository.EventRepository, publisher *rabbitmq.Publisher) BookingService {
	return &bookingService{
		claimRepo: claimRepo,
		unitRepo:  unitRepo,
		eventRepo: eventRepo,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *bookingService) ClaimUnit(ctx context.Context, unitID uint, holder Holder) (*models.Claim, error) {
	claim, err := s.book(ctx, unitID, holder, false)
	if err != nil {
		return nil, err
	}
	s.publish("claim.confirmed", claim)
	return claim, nil
}

func (s *bookingService) BookCapacity(ctx context.Context, unitID uint, holder Holder) (*models.Claim, error) {
	claim, err := s.book(ctx, unitID, holder, true)
	if err != nil {
		return nil, err
	}
	if claim.Status == models.StatusWaitlisted {
		s.publish("claim.waitlisted", claim)
	} else {
		s.publish("claim.confirmed", claim)
	}
	return claim, nil
}

// book runs the claim state machine under the event-row lock. With
// allowWaitlist false a full unit is a Conflict; with it true the holder
// joins the waitlist at the next counter position.
func (s *bookingService) book(ctx context.Context, unitID uint, holder Holder, allowWaitlist bool) (*models.Claim, error) {
	unit, err := s.unitRepo.FindByID(ctx, unitID)
	if err != nil {
		return nil, ErrUnitNotFound
	}

	var result *models.Claim

	err = s.claimRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Single lock per operation, keyed by the unit's parent event. This
		// serializes every claim/cancel/promote touching the event and makes
		// the one-claim-per-holder-per-event check race-free.
		if _, err := s.eventRepo.FindByIDForUpdate(ctx, tx, unit.EventID); err != nil {
			return ErrEventNotFound
		}

		// Scope check: one active claim per holder across the whole event.
		_, err = s.claimRepo.FindActiveByHolderAndEvent(ctx, tx, holder.ID, unit.EventID)
		if err == nil {
			return ErrConflict
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		occupied, err := s.claimRepo.CountActiveByUnit(ctx, tx, unitID)
		if err != nil {
			return err
		}

		capacity, bounded := unit.EffectiveCapacity()
		if !bounded || occupied < int64(capacity) {
			claim := &models.Claim{
				UnitID:     unitID,
				EventID:    unit.EventID,
				DateKey:    unit.DateKey,
				Kind:       unit.Kind,
				HolderKind: holder.Kind,
				HolderID:   holder.ID,
				Status:     models.StatusConfirmed,
			}
			if err := s.claimRepo.Create(ctx, tx, claim); err != nil {
				if isUniqueViolation(err) {
					return ErrConflict
				}
				return err
			}
			result = claim
			return nil
		}

		if !allowWaitlist {
			return ErrConflict
		}

		pos, err := s.unitRepo.NextWaitlistPos(ctx, tx, unitID)
		if err != nil {
			return err
		}
		claim := &models.Claim{
			UnitID:      unitID,
			EventID:     unit.EventID,
			DateKey:     unit.DateKey,
			Kind:        unit.Kind,
			HolderKind:  holder.Kind,
			HolderID:    holder.ID,
			Status:      models.StatusWaitlisted,
			WaitlistPos: &pos,
		}
		if err := s.claimRepo.Create(ctx, tx, claim); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return err
		}
		result = claim
		return nil
	})

	return result, err
}

func (s *bookingService) CancelClaim(ctx context.Context, claimID uint) (*models.Claim, error) {
	claim, err := s.claimRepo.FindByID(ctx, claimID)
	if err != nil {
		return nil, ErrClaimNotFound
	}

	var result *models.Claim
	var promoted *models.Claim

	err = s.claimRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := s.eventRepo.FindByIDForUpdate(ctx, tx, claim.EventID)
		if err != nil {
			return err
		}

		// Re-read under the lock; the pre-lock copy may be stale.
		claim, err = s.claimRepo.FindByIDTx(ctx, tx, claimID)
		if err != nil {
			return ErrClaimNotFound
		}
		if claim.Status.Terminal() {
			return invalidState("cancel", claim.Status)
		}

		freedCapacity := claim.Status == models.StatusConfirmed || claim.Status == models.StatusOffered

		if err := s.claimRepo.MarkCancelled(ctx, tx, claimID); err != nil {
			return err
		}
		claim.Status = models.StatusCancelled
		claim.WaitlistPos = nil
		claim.OfferExpiresAt = nil
		result = claim

		// Cancelling a waitlist entry frees no capacity, so no promotion.
		if freedCapacity {
			promoted, err = promoteNext(ctx, tx, s.claimRepo, event, claim.UnitID, s.now())
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish("claim.cancelled", result)
	if promoted != nil {
		s.publish("claim.offered", promoted)
	}
	return result, nil
}

func (s *bookingService) SettleClaim(ctx context.Context, claimID uint, outcome models.ClaimStatus) (*models.Claim, error) {
	if outcome != models.StatusPerformed && outcome != models.StatusNoShow {
		return nil, invalidState("settle to "+string(outcome), outcome)
	}

	claim, err := s.claimRepo.FindByID(ctx, claimID)
	if err != nil {
		return nil, ErrClaimNotFound
	}

	err = s.claimRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.eventRepo.FindByIDForUpdate(ctx, tx, claim.EventID); err != nil {
			return err
		}
		claim, err = s.claimRepo.FindByIDTx(ctx, tx, claimID)
		if err != nil {
			return ErrClaimNotFound
		}
		if claim.Status != models.StatusConfirmed {
			return invalidState("settle", claim.Status)
		}
		if err := s.claimRepo.UpdateStatus(ctx, tx, claimID, outcome); err != nil {
			return err
		}
		claim.Status = outcome
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

func (s *bookingService) GetClaim(ctx context.Context, id uint) (*models.Claim, error) {
	return s.claimRepo.FindByID(ctx, id)
}

func (s *bookingService) ListClaims(ctx context.Context, unitID uint, status *models.ClaimStatus) ([]models.Claim, error) {
	return s.claimRepo.ListByUnit(ctx, unitID, status)
}

func (s *bookingService) UnitAvailability(ctx context.Context, eventID uint, dateKey string) ([]UnitStatus, error) {
	units, err := s.unitRepo.ListByEventAndDate(ctx, eventID, dateKey)
	if err != nil {
		return nil, err
	}

	db := s.claimRepo.GetDB()
	statuses := make([]UnitStatus, len(units))
	for i, u := range units {
		confirmed, err := s.claimRepo.CountByUnitAndStatus(ctx, db, u.ID, models.StatusConfirmed)
		if err != nil {
			return nil, err
		}
		offered, err := s.claimRepo.CountByUnitAndStatus(ctx, db, u.ID, models.StatusOffered)
		if err != nil {
			return nil, err
		}
		waitlisted, err := s.claimRepo.CountByUnitAndStatus(ctx, db, u.ID, models.StatusWaitlisted)
		if err != nil {
			return nil, err
		}
		st := UnitStatus{Unit: u, Confirmed: confirmed, Offered: offered, Waitlisted: waitlisted}
		if capacity, bounded := u.EffectiveCapacity(); bounded {
			avail := int64(capacity) - confirmed - offered
			if avail < 0 {
				avail = 0
			}
			st.Available = &avail
		}
		statuses[i] = st
	}
	return statuses, nil
}

func (s *bookingService) publish(routingKey string, claim *models.Claim) {
	if s.publisher == nil || claim == nil {
		return
	}
	_ = s.publisher.Publish(routingKey, claim)
}
