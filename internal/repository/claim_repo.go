package repository

import (
	"context"
	"time"

	"github.com/communitycal/bookingcore/internal/models"
	"gorm.io/gorm"
)

type ClaimRepository interface {
	Create(ctx context.Context, tx *gorm.DB, claim *models.Claim) error
	FindByID(ctx context.Context, id uint) (*models.Claim, error)
	FindByIDTx(ctx context.Context, tx *gorm.DB, id uint) (*models.Claim, error)
	ListByUnit(ctx context.Context, unitID uint, status *models.ClaimStatus) ([]models.Claim, error)
	CountActiveByUnit(ctx context.Context, tx *gorm.DB, unitID uint) (int64, error)
	CountByUnitAndStatus(ctx context.Context, tx *gorm.DB, unitID uint, status models.ClaimStatus) (int64, error)
	FindActiveByHolderAndEvent(ctx context.Context, tx *gorm.DB, holderID string, eventID uint) (*models.Claim, error)
	FindFirstWaitlisted(ctx context.Context, tx *gorm.DB, unitID uint) (*models.Claim, error)
	HasActiveByUnit(ctx context.Context, tx *gorm.DB, unitID uint) (bool, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, claimID uint, status models.ClaimStatus) error
	MarkCancelled(ctx context.Context, tx *gorm.DB, claimID uint) error
	MarkOffered(ctx context.Context, tx *gorm.DB, claimID uint, expiresAt time.Time) error
	MarkConfirmed(ctx context.Context, tx *gorm.DB, claimID uint) error
	ListExpiredOffers(ctx context.Context, now time.Time, unitID *uint) ([]models.Claim, error)
	GetDB() *gorm.DB
}

type claimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(db *gorm.DB) ClaimRepository {
	return &claimRepository{db: db}
}

func (r *claimRepository) GetDB() *gorm.DB {
	return r.db
}

func (r *claimRepository) Create(ctx context.Context, tx *gorm.DB, claim *models.Claim) error {
	return tx.WithContext(ctx).Create(claim).Error
}

func (r *claimRepository) FindByID(ctx context.Context, id uint) (*models.Claim, error) {
	var claim models.Claim
	if err := r.db.WithContext(ctx).First(&claim, id).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *claimRepository) FindByIDTx(ctx context.Context, tx *gorm.DB, id uint) (*models.Claim, error) {
	var claim models.Claim
	if err := tx.WithContext(ctx).First(&claim, id).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *claimRepository) ListByUnit(ctx context.Context, unitID uint, status *models.ClaimStatus) ([]models.Claim, error) {
	var claims []models.Claim
	q := r.db.WithContext(ctx).Where("unit_id = ?", unitID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if err := q.Order("id ASC").Find(&claims).Error; err != nil {
		return nil, err
	}
	return claims, nil
}

// CountActiveByUnit counts claims that occupy capacity (confirmed or offered;
// an outstanding offer reserves the freed seat until it lapses).
func (r *claimRepository) CountActiveByUnit(ctx context.Context, tx *gorm.DB, unitID uint) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Claim{}).
		Where("unit_id = ? AND status IN ?", unitID,
			[]models.ClaimStatus{models.StatusConfirmed, models.StatusOffered}).
		Count(&count).Error
	return count, err
}

func (r *claimRepository) CountByUnitAndStatus(ctx context.Context, tx *gorm.DB, unitID uint, status models.ClaimStatus) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Claim{}).
		Where("unit_id = ? AND status = ?", unitID, status).
		Count(&count).Error
	return count, err
}

func (r *claimRepository) FindActiveByHolderAndEvent(ctx context.Context, tx *gorm.DB, holderID string, eventID uint) (*models.Claim, error) {
	var claim models.Claim
	err := tx.WithContext(ctx).
		Where("holder_id = ? AND event_id = ? AND status IN ?", holderID, eventID,
			[]models.ClaimStatus{models.StatusConfirmed, models.StatusOffered, models.StatusWaitlisted}).
		First(&claim).Error
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// FindFirstWaitlisted returns the lowest-position waitlist entry for promotion.
func (r *claimRepository) FindFirstWaitlisted(ctx context.Context, tx *gorm.DB, unitID uint) (*models.Claim, error) {
	var claim models.Claim
	err := tx.WithContext(ctx).
		Where("unit_id = ? AND status = ?", unitID, models.StatusWaitlisted).
		Order("waitlist_pos ASC, id ASC").
		First(&claim).Error
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *claimRepository) HasActiveByUnit(ctx context.Context, tx *gorm.DB, unitID uint) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Claim{}).
		Where("unit_id = ? AND status IN ?", unitID,
			[]models.ClaimStatus{models.StatusConfirmed, models.StatusOffered, models.StatusWaitlisted}).
		Count(&count).Error
	return count > 0, err
}

func (r *claimRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, claimID uint, status models.ClaimStatus) error {
	return tx.WithContext(ctx).
		Model(&models.Claim{}).
		Where("id = ?", claimID).
		Update("status", status).Error
}

// MarkCancelled terminates a claim, clearing its waitlist position and offer
// expiry so only live statuses carry them.
func (r *claimRepository) MarkCancelled(ctx context.Context, tx *gorm.DB, claimID uint) error {
	return tx.WithContext(ctx).
		Model(&models.Claim{}).
		Where("id = ?", claimID).
		Updates(map[string]any{
			"status":           models.StatusCancelled,
			"waitlist_pos":     nil,
			"offer_expires_at": nil,
		}).Error
}

// MarkOffered transitions a claim to offered with an absolute expiry, clearing
// its waitlist position.
func (r *claimRepository) MarkOffered(ctx context.Context, tx *gorm.DB, claimID uint, expiresAt time.Time) error {
	return tx.WithContext(ctx).
		Model(&models.Claim{}).
		Where("id = ?", claimID).
		Updates(map[string]any{
			"status":           models.StatusOffered,
			"waitlist_pos":     nil,
			"offer_expires_at": expiresAt,
		}).Error
}

// MarkConfirmed transitions an offered claim to confirmed and clears the expiry.
func (r *claimRepository) MarkConfirmed(ctx context.Context, tx *gorm.DB, claimID uint) error {
	return tx.WithContext(ctx).
		Model(&models.Claim{}).
		Where("id = ?", claimID).
		Updates(map[string]any{
			"status":           models.StatusConfirmed,
			"offer_expires_at": nil,
		}).Error
}

func (r *claimRepository) ListExpiredOffers(ctx context.Context, now time.Time, unitID *uint) ([]models.Claim, error) {
	var claims []models.Claim
	q := r.db.WithContext(ctx).
		Where("status = ? AND offer_expires_at < ?", models.StatusOffered, now)
	if unitID != nil {
		q = q.Where("unit_id = ?", *unitID)
	}
	err := q.Order("unit_id ASC, id ASC").Find(&claims).Error
	return claims, err
}
