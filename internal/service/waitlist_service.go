package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/communitycal/bookingcore/internal/models"
	"github.com/communitycal/bookingcore/internal/repository"
	"github.com/communitycal/bookingcore/pkg/rabbitmq"
	"gorm.io/gorm"
)

type WaitlistService interface {
	// ConfirmOffer accepts an outstanding offer. After the expiry it fails
	// with ErrOfferExpired and changes nothing; re-promotion is the sweep's
	// job, not ConfirmOffer's.
	ConfirmOffer(ctx context.Context, claimID uint) (*models.Claim, error)
	// DeclineOffer cancels an outstanding offer and promotes the next
	// waitlist entry immediately.
	DeclineOffer(ctx context.Context, claimID uint) (*models.Claim, error)
	// SweepExpiredOffers cancels lapsed offers and promotes the next entry
	// per unit, in position order. Safe to run concurrently with itself and
	// with user actions; already-settled claims are skipped. Returns the ids
	// of newly promoted claims.
	SweepExpiredOffers(ctx context.Context, unitID *uint) ([]uint, error)
}

type waitlistService struct {
	claimRepo repository.ClaimRepository
	unitRepo  repository.UnitRepository
	eventRepo repository.EventRepository
	publisher *rabbitmq.Publisher
	now       func() time.Time
}

func NewWaitlistService(claimRepo repository.ClaimRepository, unitRepo repository.UnitRepository, eventRepo repository.EventRepository, publisher *rabbitmq.Publisher) WaitlistService {
	return &waitlistService{
		claimRepo: claimRepo,
		unitRepo:  unitRepo,
		eventRepo: eventRepo,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *waitlistService) ConfirmOffer(ctx context.Context, claimID uint) (*models.Claim, error) {
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
		if claim.Status != models.StatusOffered {
			return invalidState("confirm", claim.Status)
		}
		if claim.OfferExpiresAt == nil || !s.now().Before(*claim.OfferExpiresAt) {
			// Leave the claim untouched; the sweep is the sole demoter.
			return ErrOfferExpired
		}
		if err := s.claimRepo.MarkConfirmed(ctx, tx, claimID); err != nil {
			return err
		}
		claim.Status = models.StatusConfirmed
		claim.OfferExpiresAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish("claim.confirmed", claim)
	return claim, nil
}

func (s *waitlistService) DeclineOffer(ctx context.Context, claimID uint) (*models.Claim, error) {
	claim, err := s.claimRepo.FindByID(ctx, claimID)
	if err != nil {
		return nil, ErrClaimNotFound
	}

	var promoted *models.Claim

	err = s.claimRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := s.eventRepo.FindByIDForUpdate(ctx, tx, claim.EventID)
		if err != nil {
			return err
		}
		claim, err = s.claimRepo.FindByIDTx(ctx, tx, claimID)
		if err != nil {
			return ErrClaimNotFound
		}
		if claim.Status != models.StatusOffered {
			return invalidState("decline", claim.Status)
		}
		if err := s.claimRepo.MarkCancelled(ctx, tx, claimID); err != nil {
			return err
		}
		claim.Status = models.StatusCancelled
		claim.OfferExpiresAt = nil

		promoted, err = promoteNext(ctx, tx, s.claimRepo, event, claim.UnitID, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish("claim.cancelled", claim)
	if promoted != nil {
		s.publish("claim.offered", promoted)
	}
	return claim, nil
}

func (s *waitlistService) SweepExpiredOffers(ctx context.Context, unitID *uint) ([]uint, error) {
	// The candidate list is an unlocked snapshot; every candidate is
	// re-checked under the event lock before being touched, which is what
	// makes concurrent sweeps idempotent.
	expired, err := s.claimRepo.ListExpiredOffers(ctx, s.now(), unitID)
	if err != nil {
		return nil, err
	}

	var promotedIDs []uint
	for i := range expired {
		stale := expired[i]

		var lapsed, promoted *models.Claim
		err := s.claimRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			event, err := s.eventRepo.FindByIDForUpdate(ctx, tx, stale.EventID)
			if err != nil {
				return err
			}
			claim, err := s.claimRepo.FindByIDTx(ctx, tx, stale.ID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			// Someone confirmed, declined or swept it since the snapshot.
			if claim.Status != models.StatusOffered ||
				claim.OfferExpiresAt == nil || s.now().Before(*claim.OfferExpiresAt) {
				return nil
			}
			if err := s.claimRepo.MarkCancelled(ctx, tx, claim.ID); err != nil {
				return err
			}
			claim.Status = models.StatusCancelled
			lapsed = claim

			promoted, err = promoteNext(ctx, tx, s.claimRepo, event, claim.UnitID, s.now())
			return err
		})
		if err != nil {
			log.Printf("[Sweep] unit %d claim %d: %v", stale.UnitID, stale.ID, err)
			continue
		}
		if lapsed != nil {
			s.publish("claim.offer_expired", lapsed)
		}
		if promoted != nil {
			s.publish("claim.offered", promoted)
			promotedIDs = append(promotedIDs, promoted.ID)
		}
	}
	return promotedIDs, nil
}

func (s *waitlistService) publish(routingKey string, claim *models.Claim) {
	if s.publisher == nil || claim == nil {
		return
	}
	_ = s.publisher.Publish(routingKey, claim)
}

// promoteNext advances the lowest-position waitlist entry of the unit into a
// time-boxed offer expiring at now plus the unit's offer window. Must run
// inside the event-row lock; exactly one promotion happens per freed unit of
// capacity. Returns nil when the waitlist is empty.
func promoteNext(ctx context.Context, tx *gorm.DB, claimRepo repository.ClaimRepository, event *models.Event, unitID uint, now time.Time) (*models.Claim, error) {
	next, err := claimRepo.FindFirstWaitlisted(ctx, tx, unitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var unit models.BookableUnit
	if err := tx.WithContext(ctx).First(&unit, unitID).Error; err != nil {
		return nil, err
	}

	expiresAt := now.Add(unit.OfferWindow(event))
	if err := claimRepo.MarkOffered(ctx, tx, next.ID, expiresAt); err != nil {
		return nil, err
	}
	next.Status = models.StatusOffered
	next.WaitlistPos = nil
	next.OfferExpiresAt = &expiresAt
	return next, nil
}
