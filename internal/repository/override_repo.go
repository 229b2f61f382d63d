package repository

import (
	"context"

	"github.com/communitycal/bookingcore/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OverrideRepository interface {
	Upsert(ctx context.Context, override *models.OccurrenceOverride) error
	Delete(ctx context.Context, eventID uint, dateKey string) error
	ListByEvent(ctx context.Context, eventID uint) ([]models.OccurrenceOverride, error)
	ListByEvents(ctx context.Context, eventIDs []uint) ([]models.OccurrenceOverride, error)
}

type overrideRepository struct {
	db *gorm.DB
}

func NewOverrideRepository(db *gorm.DB) OverrideRepository {
	return &overrideRepository{db: db}
}

// Upsert inserts or replaces the override for (event, date).
func (r *overrideRepository) Upsert(ctx context.Context, override *models.OccurrenceOverride) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}, {Name: "date_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "start_time", "flyer_url", "notes", "updated_at"}),
	}).Create(override).Error
}

func (r *overrideRepository) Delete(ctx context.Context, eventID uint, dateKey string) error {
	return r.db.WithContext(ctx).
		Where("event_id = ? AND date_key = ?", eventID, dateKey).
		Delete(&models.OccurrenceOverride{}).Error
}

func (r *overrideRepository) ListByEvent(ctx context.Context, eventID uint) ([]models.OccurrenceOverride, error) {
	var overrides []models.OccurrenceOverride
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("date_key ASC").
		Find(&overrides).Error
	return overrides, err
}

func (r *overrideRepository) ListByEvents(ctx context.Context, eventIDs []uint) ([]models.OccurrenceOverride, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	var overrides []models.OccurrenceOverride
	err := r.db.WithContext(ctx).
		Where("event_id IN ?", eventIDs).
		Order("event_id ASC, date_key ASC").
		Find(&overrides).Error
	return overrides, err
}
