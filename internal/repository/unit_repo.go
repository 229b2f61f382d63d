package repository

import (
	"context"

	"github.com/communitycal/bookingcore/internal/models"
	"gorm.io/gorm"
)

type UnitRepository interface {
	Create(ctx context.Context, tx *gorm.DB, unit *models.BookableUnit) error
	FindByID(ctx context.Context, id uint) (*models.BookableUnit, error)
	ListByEventAndDate(ctx context.Context, eventID uint, dateKey string) ([]models.BookableUnit, error)
	ListByEventFrom(ctx context.Context, tx *gorm.DB, eventID uint, fromDate string) ([]models.BookableUnit, error)
	Delete(ctx context.Context, tx *gorm.DB, unitID uint) error
	// NextWaitlistPos atomically advances and returns the unit's waitlist
	// counter. Must be called inside the event-row lock.
	NextWaitlistPos(ctx context.Context, tx *gorm.DB, unitID uint) (int, error)
}

type unitRepository struct {
	db *gorm.DB
}

func NewUnitRepository(db *gorm.DB) UnitRepository {
	return &unitRepository{db: db}
}

func (r *unitRepository) Create(ctx context.Context, tx *gorm.DB, unit *models.BookableUnit) error {
	return tx.WithContext(ctx).Create(unit).Error
}

func (r *unitRepository) FindByID(ctx context.Context, id uint) (*models.BookableUnit, error) {
	var unit models.BookableUnit
	if err := r.db.WithContext(ctx).First(&unit, id).Error; err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *unitRepository) ListByEventAndDate(ctx context.Context, eventID uint, dateKey string) ([]models.BookableUnit, error) {
	var units []models.BookableUnit
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND date_key = ?", eventID, dateKey).
		Order("slot_index ASC").
		Find(&units).Error
	return units, err
}

// ListByEventFrom returns units dated on or after fromDate. Past-dated units
// are deliberately unreachable from here; regeneration never sees them.
func (r *unitRepository) ListByEventFrom(ctx context.Context, tx *gorm.DB, eventID uint, fromDate string) ([]models.BookableUnit, error) {
	var units []models.BookableUnit
	err := tx.WithContext(ctx).
		Where("event_id = ? AND date_key >= ?", eventID, fromDate).
		Order("date_key ASC, slot_index ASC").
		Find(&units).Error
	return units, err
}

func (r *unitRepository) Delete(ctx context.Context, tx *gorm.DB, unitID uint) error {
	return tx.WithContext(ctx).Delete(&models.BookableUnit{}, unitID).Error
}

func (r *unitRepository) NextWaitlistPos(ctx context.Context, tx *gorm.DB, unitID uint) (int, error) {
	var pos int
	err := tx.WithContext(ctx).
		Raw(`UPDATE bookable_units
		     SET last_waitlist_pos = last_waitlist_pos + 1, updated_at = NOW()
		     WHERE id = ?
		     RETURNING last_waitlist_pos`, unitID).
		Scan(&pos).Error
	return pos, err
}
