package service

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/communitycal/bookingcore/internal/models"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrUnitNotFound  = errors.New("bookable unit not found")
	ErrClaimNotFound = errors.New("claim not found")

	// ErrValidation covers malformed schedule input; it is surfaced before
	// anything is written.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is the expected outcome of losing a race for a unit, or of
	// already holding a claim in the event. Callers retry with another unit.
	ErrConflict = errors.New("conflict")

	// ErrInvalidState means the requested action does not match the claim's
	// current status; the message carries the status so clients can resync.
	ErrInvalidState = errors.New("invalid state")

	// ErrOfferExpired is a normal terminal outcome of a lapsed promotion
	// offer, not an error condition worth logging.
	ErrOfferExpired = errors.New("offer expired")
)

func invalidState(action string, current models.ClaimStatus) error {
	return fmt.Errorf("%w: cannot %s a claim with status %q", ErrInvalidState, action, current)
}

// isUniqueViolation detects a Postgres unique-constraint violation so the
// storage-level double-booking defense surfaces as an ordinary Conflict.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
