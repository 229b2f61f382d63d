package database

import (
	"log"

	"github.com/communitycal/bookingcore/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewPostgresDB(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Event{},
		&models.OccurrenceOverride{},
		&models.BookableUnit{},
		&models.Claim{},
	); err != nil {
		log.Fatalf("failed to auto-migrate: %v", err)
	}

	// Storage-level last line of defense against double booking: at most one
	// capacity-holding claim per timeslot, regardless of application bugs.
	db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_claim_active_slot
		ON claims (unit_id)
		WHERE kind = 'slot' AND status IN ('confirmed', 'offered')
	`)

	// One active claim per holder across a whole event.
	db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_claim_active_holder
		ON claims (event_id, holder_id)
		WHERE status IN ('confirmed', 'offered', 'waitlist')
	`)

	return db
}
