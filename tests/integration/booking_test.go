//go:build integration

package integration

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/communitycal/bookingcore/internal/datekey"
	"github.com/communitycal/bookingcore/internal/models"
	"github.com/communitycal/bookingcore/internal/repository"
	"github.com/communitycal/bookingcore/internal/service"
)

func createTestEvent(t *testing.T, name string, rsvpCapacity *int) *models.Event {
	t.Helper()
	weekday := "wednesday"
	event := &models.Event{
		Name:             name,
		Timezone:         "UTC",
		Weekday:          &weekday,
		RecurrenceRule:   "weekly",
		SlotCount:        2,
		SlotMinutes:      10,
		HasRSVP:          true,
		RSVPCapacity:     rsvpCapacity,
		SlotOfferMinutes: 120,
		RSVPOfferMinutes: 1440,
	}
	require.NoError(t, testDB.Create(event).Error)
	return event
}

func createPoolUnit(t *testing.T, eventID uint, dateKey string, capacity *int) *models.BookableUnit {
	t.Helper()
	unit := &models.BookableUnit{
		EventID:  eventID,
		DateKey:  dateKey,
		Kind:     models.UnitPool,
		Capacity: capacity,
	}
	require.NoError(t, testDB.Create(unit).Error)
	return unit
}

func createSlotUnit(t *testing.T, eventID uint, dateKey string, index int) *models.BookableUnit {
	t.Helper()
	one := 1
	unit := &models.BookableUnit{
		EventID:     eventID,
		DateKey:     dateKey,
		SlotIndex:   index,
		Kind:        models.UnitSlot,
		DurationMin: 10,
		Capacity:    &one,
	}
	require.NoError(t, testDB.Create(unit).Error)
	return unit
}

func newServices() (service.BookingService, service.WaitlistService) {
	eventRepo := repository.NewEventRepository(testDB)
	unitRepo := repository.NewUnitRepository(testDB)
	claimRepo := repository.NewClaimRepository(testDB)
	return service.NewBookingService(claimRepo, unitRepo, eventRepo, nil),
		service.NewWaitlistService(claimRepo, unitRepo, eventRepo, nil)
}

func newScheduleService() service.ScheduleService {
	eventRepo := repository.NewEventRepository(testDB)
	overrideRepo := repository.NewOverrideRepository(testDB)
	unitRepo := repository.NewUnitRepository(testDB)
	claimRepo := repository.NewClaimRepository(testDB)
	return service.NewScheduleService(eventRepo, overrideRepo, unitRepo, claimRepo)
}

func member(i int) service.Holder {
	return service.Holder{Kind: models.HolderMember, ID: fmt.Sprintf("member-%03d", i)}
}

// 5 holders race for a capacity-2 pool: exactly 2 confirmed, 3 waitlisted
// with distinct positions.
func TestConcurrentPoolBooking(t *testing.T) {
	cleanTables()
	capacity := 2
	event := createTestEvent(t, "Open Mic Night", &capacity)
	unit := createPoolUnit(t, event.ID, "2026-09-02", &capacity)
	bookingSvc, _ := newServices()

	total := 5
	var wg sync.WaitGroup
	results := make(chan *models.Claim, total)

	wg.Add(total)
	for i := 0; i < total; i++ {
		go func(idx int) {
			defer wg.Done()
			claim, err := bookingSvc.BookCapacity(t.Context(), unit.ID, member(idx))
			if err == nil {
				results <- claim
			}
		}(i)
	}
	wg.Wait()
	close(results)

	var confirmed int
	positions := map[int]bool{}
	for c := range results {
		switch c.Status {
		case models.StatusConfirmed:
			confirmed++
		case models.StatusWaitlisted:
			require.NotNil(t, c.WaitlistPos)
			assert.False(t, positions[*c.WaitlistPos], "waitlist positions must be unique")
			positions[*c.WaitlistPos] = true
		}
	}

	assert.Equal(t, 2, confirmed, "capacity-2 pool should confirm exactly 2")
	assert.Len(t, positions, 3, "remaining 3 should be waitlisted")

	var dbConfirmed int64
	testDB.Model(&models.Claim{}).Where("unit_id = ? AND status = ?", unit.ID, models.StatusConfirmed).Count(&dbConfirmed)
	assert.Equal(t, int64(2), dbConfirmed)
}

// 10 holders race for one timeslot with the strict claim: exactly one wins,
// the rest get ErrConflict.
func TestConcurrentSlotClaim(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Open Mic Night", nil)
	unit := createSlotUnit(t, event.ID, "2026-09-02", 1)
	bookingSvc, _ := newServices()

	attempts := 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, conflicts := 0, 0

	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(idx int) {
			defer wg.Done()
			_, err := bookingSvc.ClaimUnit(t.Context(), unit.ID, member(idx))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if assert.ErrorIs(t, err, service.ErrConflict) {
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "exactly one strict claim should win the slot")
	assert.Equal(t, attempts-1, conflicts)
}

// Cancelling a confirmed claim promotes the lowest waitlist position into a
// time-boxed offer; later positions stay waitlisted.
func TestCancelPromotesLowestPosition(t *testing.T) {
	cleanTables()
	capacity := 1
	event := createTestEvent(t, "Open Mic Night", &capacity)
	unit := createPoolUnit(t, event.ID, "2026-09-02", &capacity)
	bookingSvc, _ := newServices()

	holderA, err := bookingSvc.BookCapacity(t.Context(), unit.ID, member(0))
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, holderA.Status)

	holderB, err := bookingSvc.BookCapacity(t.Context(), unit.ID, member(1))
	require.NoError(t, err)
	require.Equal(t, models.StatusWaitlisted, holderB.Status)

	holderC, err := bookingSvc.BookCapacity(t.Context(), unit.ID, member(2))
	require.NoError(t, err)
	require.Equal(t, models.StatusWaitlisted, holderC.Status)
	require.Greater(t, *holderC.WaitlistPos, *holderB.WaitlistPos)

	_, err = bookingSvc.CancelClaim(t.Context(), holderA.ID)
	require.NoError(t, err)

	var promoted models.Claim
	require.NoError(t, testDB.First(&promoted, holderB.ID).Error)
	assert.Equal(t, models.StatusOffered, promoted.Status)
	require.NotNil(t, promoted.OfferExpiresAt)
	// RSVPOfferMinutes is 1440, so the offer runs for 24h from promotion.
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *promoted.OfferExpiresAt, time.Minute)

	var waiting models.Claim
	require.NoError(t, testDB.First(&waiting, holderC.ID).Error)
	assert.Equal(t, models.StatusWaitlisted, waiting.Status, "later position must not be promoted")
}

// Confirming after the offer lapsed fails and leaves the claim untouched;
// only the sweep demotes it.
func TestConfirmExpiredOffer(t *testing.T) {
	cleanTables()
	capacity := 1
	event := createTestEvent(t, "Open Mic Night", &capacity)
	unit := createPoolUnit(t, event.ID, "2026-09-02", &capacity)
	_, waitlistSvc := newServices()

	expired := time.Now().Add(-time.Minute)
	claim := &models.Claim{
		UnitID:         unit.ID,
		EventID:        event.ID,
		DateKey:        unit.DateKey,
		Kind:           unit.Kind,
		HolderKind:     models.HolderMember,
		HolderID:       "member-000",
		Status:         models.StatusOffered,
		OfferExpiresAt: &expired,
	}
	require.NoError(t, testDB.Create(claim).Error)

	_, err := waitlistSvc.ConfirmOffer(t.Context(), claim.ID)
	assert.ErrorIs(t, err, service.ErrOfferExpired)

	var after models.Claim
	require.NoError(t, testDB.First(&after, claim.ID).Error)
	assert.Equal(t, models.StatusOffered, after.Status, "expired confirm must not mutate the claim")
	require.NotNil(t, after.OfferExpiresAt)
}

// Two sweeps over the same expired offer cancel it once and promote exactly
// one successor.
func TestSweepIdempotent(t *testing.T) {
	cleanTables()
	capacity := 1
	event := createTestEvent(t, "Open Mic Night", &capacity)
	unit := createPoolUnit(t, event.ID, "2026-09-02", &capacity)
	bookingSvc, waitlistSvc := newServices()

	// member-000 confirmed, member-001 and member-002 waitlisted.
	confirmedClaim, err := bookingSvc.BookCapacity(t.Context(), unit.ID, member(0))
	require.NoError(t, err)
	waitB, err := bookingSvc.BookCapacity(t.Context(), unit.ID, member(1))
	require.NoError(t, err)
	_, err = bookingSvc.BookCapacity(t.Context(), unit.ID, member(2))
	require.NoError(t, err)

	// Cancel promotes member-001, then force that offer to lapse.
	_, err = bookingSvc.CancelClaim(t.Context(), confirmedClaim.ID)
	require.NoError(t, err)
	expired := time.Now().Add(-time.Minute)
	require.NoError(t, testDB.Model(&models.Claim{}).
		Where("id = ?", waitB.ID).
		Update("offer_expires_at", expired).Error)

	first, err := waitlistSvc.SweepExpiredOffers(t.Context(), nil)
	require.NoError(t, err)
	assert.Len(t, first, 1, "first sweep promotes the next entry")

	second, err := waitlistSvc.SweepExpiredOffers(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, second, "second sweep must be a no-op")

	var lapsed models.Claim
	require.NoError(t, testDB.First(&lapsed, waitB.ID).Error)
	assert.Equal(t, models.StatusCancelled, lapsed.Status)

	var offered int64
	testDB.Model(&models.Claim{}).Where("unit_id = ? AND status = ?", unit.ID, models.StatusOffered).Count(&offered)
	assert.Equal(t, int64(1), offered, "exactly one outstanding offer after both sweeps")
}

// One active claim per holder across the whole event, even on different
// units; settling to performed frees the holder again.
func TestHolderScopeAcrossUnits(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Open Mic Night", nil)
	slotA := createSlotUnit(t, event.ID, "2026-09-02", 1)
	slotB := createSlotUnit(t, event.ID, "2026-09-09", 1)
	bookingSvc, _ := newServices()

	claim, err := bookingSvc.ClaimUnit(t.Context(), slotA.ID, member(0))
	require.NoError(t, err)

	_, err = bookingSvc.ClaimUnit(t.Context(), slotB.ID, member(0))
	assert.ErrorIs(t, err, service.ErrConflict, "second active claim in the same event must conflict")

	// Other holders are unaffected.
	_, err = bookingSvc.ClaimUnit(t.Context(), slotB.ID, member(1))
	require.NoError(t, err)

	// performed is terminal, so the holder may claim a future date again.
	_, err = bookingSvc.SettleClaim(t.Context(), claim.ID, models.StatusPerformed)
	require.NoError(t, err)

	slotC := createSlotUnit(t, event.ID, "2026-09-16", 1)
	_, err = bookingSvc.ClaimUnit(t.Context(), slotC.ID, member(0))
	assert.NoError(t, err)
}

// Reducing slot_count and re-running EnsureUnits must drop only unclaimed
// future slots past the new count. Past-dated units and claimed units survive.
func TestEnsureUnitsPreservesPastAndClaimedUnits(t *testing.T) {
	cleanTables()
	weekday := "wednesday"
	event := &models.Event{
		Name:             "Open Mic Night",
		Timezone:         "UTC",
		Weekday:          &weekday,
		RecurrenceRule:   "weekly",
		SlotCount:        2,
		SlotMinutes:      10,
		SlotOfferMinutes: 120,
		RSVPOfferMinutes: 1440,
	}
	require.NoError(t, testDB.Create(event).Error)

	today := datekey.Today(time.UTC)
	pastDate := today.AddDays(-14).NextWeekday(time.Wednesday)
	firstFuture := today.AddDays(1).NextWeekday(time.Wednesday)
	secondFuture := firstFuture.AddDays(7)

	pastStale := createSlotUnit(t, event.ID, string(pastDate), 2)
	claimedStale := createSlotUnit(t, event.ID, string(firstFuture), 2)
	freeStale := createSlotUnit(t, event.ID, string(secondFuture), 2)

	bookingSvc, _ := newServices()
	_, err := bookingSvc.ClaimUnit(t.Context(), claimedStale.ID, member(0))
	require.NoError(t, err)

	// Shrink the configuration, then regenerate over a window that reaches
	// back before today.
	require.NoError(t, testDB.Model(event).Update("slot_count", 1).Error)
	units, err := newScheduleService().EnsureUnits(t.Context(), event.ID, pastDate, secondFuture)
	require.NoError(t, err)

	for _, u := range units {
		assert.GreaterOrEqual(t, u.DateKey, string(today), "regeneration must not emit past-dated units")
	}

	var survivor models.BookableUnit
	require.NoError(t, testDB.First(&survivor, pastStale.ID).Error,
		"past-dated unit must survive regeneration")
	assert.Equal(t, 2, survivor.SlotIndex)

	require.NoError(t, testDB.First(&survivor, claimedStale.ID).Error,
		"claimed unit must survive a slot-count reduction")

	err = testDB.First(&survivor, freeStale.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "unclaimed stale slot must be dropped")

	var pastCount int64
	testDB.Model(&models.BookableUnit{}).
		Where("event_id = ? AND date_key < ?", event.ID, string(today)).
		Count(&pastCount)
	assert.Equal(t, int64(1), pastCount, "no units created or removed before today")
}

// Settle is only valid from confirmed.
func TestSettleStateMachine(t *testing.T) {
	cleanTables()
	event := createTestEvent(t, "Open Mic Night", nil)
	unit := createSlotUnit(t, event.ID, "2026-09-02", 1)
	bookingSvc, _ := newServices()

	claim, err := bookingSvc.ClaimUnit(t.Context(), unit.ID, member(0))
	require.NoError(t, err)

	_, err = bookingSvc.SettleClaim(t.Context(), claim.ID, models.StatusCancelled)
	assert.ErrorIs(t, err, service.ErrInvalidState, "settle accepts only performed or no_show")

	settled, err := bookingSvc.SettleClaim(t.Context(), claim.ID, models.StatusNoShow)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShow, settled.Status)

	_, err = bookingSvc.CancelClaim(t.Context(), claim.ID)
	assert.ErrorIs(t, err, service.ErrInvalidState, "terminal claims cannot be cancelled")
}
