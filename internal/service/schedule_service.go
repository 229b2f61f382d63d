package service

import (
	"context"
	"fmt"
	"time"

	"github.com/communitycal/bookingcore/internal/datekey"
	"github.com/communitycal/bookingcore/internal/models"
	"github.com/communitycal/bookingcore/internal/recurrence"
	"github.com/communitycal/bookingcore/internal/repository"
	"gorm.io/gorm"
)

type ScheduleService interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	UpdateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id uint) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)

	// ExpandOccurrences derives the event's dated occurrences in the window
	// and merges its overrides. Pure read; never writes.
	ExpandOccurrences(ctx context.Context, eventID uint, start, end datekey.Key, includeCancelled bool) (recurrence.MergeResult, error)
	// ExpandWindow expands every event in one pass under the global batch
	// caps. Dates cancelled by override are excluded, matching the per-event
	// default view.
	ExpandWindow(ctx context.Context, start, end datekey.Key) (recurrence.BatchResult, error)

	PutOverride(ctx context.Context, override *models.OccurrenceOverride) error
	DeleteOverride(ctx context.Context, eventID uint, dateKey string) error
	ListOverrides(ctx context.Context, eventID uint) ([]models.OccurrenceOverride, error)

	// EnsureUnits materializes bookable units (slots and the RSVP pool) for
	// every occurrence date in the window that is today or later. Past-dated
	// units are never created, altered or deleted, and claimed units survive
	// slot-count reductions.
	EnsureUnits(ctx context.Context, eventID uint, start, end datekey.Key) ([]models.BookableUnit, error)
}

type scheduleService struct {
	eventRepo    repository.EventRepository
	overrideRepo repository.OverrideRepository
	unitRepo     repository.UnitRepository
	claimRepo    repository.ClaimRepository
}

func NewScheduleService(eventRepo repository.EventRepository, overrideRepo repository.OverrideRepository, unitRepo repository.UnitRepository, claimRepo repository.ClaimRepository) ScheduleService {
	return &scheduleService{
		eventRepo:    eventRepo,
		overrideRepo: overrideRepo,
		unitRepo:     unitRepo,
		claimRepo:    claimRepo,
	}
}

func descriptorOf(e *models.Event) recurrence.Descriptor {
	d := recurrence.Descriptor{
		RuleText:    e.RecurrenceRule,
		CustomDates: e.CustomDates,
	}
	if e.AnchorDate != nil {
		d.AnchorDate = *e.AnchorDate
	}
	if e.Weekday != nil {
		d.WeekdayName = *e.Weekday
	}
	return d
}

// validateSchedule parses the descriptor and checks the non-recurrence
// fields; nothing is persisted on failure.
func validateSchedule(e *models.Event) error {
	if e.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if e.SlotCount < 0 {
		return fmt.Errorf("%w: slot_count must not be negative", ErrValidation)
	}
	if e.RSVPCapacity != nil && *e.RSVPCapacity < 1 {
		return fmt.Errorf("%w: rsvp_capacity must be positive or absent", ErrValidation)
	}
	if e.Timezone != "" {
		if _, err := time.LoadLocation(e.Timezone); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrValidation, e.Timezone)
		}
	}
	if _, err := recurrence.ParseRule(descriptorOf(e)); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func (s *scheduleService) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.SlotOfferMinutes <= 0 {
		event.SlotOfferMinutes = 120
	}
	if event.RSVPOfferMinutes <= 0 {
		event.RSVPOfferMinutes = 1440
	}
	if event.Timezone == "" {
		event.Timezone = "UTC"
	}
	if err := validateSchedule(event); err != nil {
		return err
	}
	return s.eventRepo.Create(ctx, event)
}

func (s *scheduleService) UpdateEvent(ctx context.Context, event *models.Event) error {
	if err := validateSchedule(event); err != nil {
		return err
	}
	return s.eventRepo.Save(ctx, event)
}

func (s *scheduleService) GetEvent(ctx context.Context, id uint) (*models.Event, error) {
	event, err := s.eventRepo.FindByID(ctx, id)
	if err != nil {
		return nil, ErrEventNotFound
	}
	return event, nil
}

func (s *scheduleService) ListEvents(ctx context.Context) ([]models.Event, error) {
	return s.eventRepo.FindAll(ctx)
}

func (s *scheduleService) ExpandOccurrences(ctx context.Context, eventID uint, start, end datekey.Key, includeCancelled bool) (recurrence.MergeResult, error) {
	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		return recurrence.MergeResult{}, ErrEventNotFound
	}

	rule, err := recurrence.ParseRule(descriptorOf(event))
	if err != nil {
		return recurrence.MergeResult{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	expanded := recurrence.Expand(event.ID, rule, event.MaxOccurrences, recurrence.ExpandConfig{Start: start, End: end})

	stored, err := s.overrideRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return recurrence.MergeResult{}, err
	}

	return recurrence.MergeOverrides(expanded.Occurrences, toOverrides(stored), includeCancelled), nil
}

func (s *scheduleService) ExpandWindow(ctx context.Context, start, end datekey.Key) (recurrence.BatchResult, error) {
	events, err := s.eventRepo.FindAll(ctx)
	if err != nil {
		return recurrence.BatchResult{}, err
	}

	schedules := make([]recurrence.Schedule, 0, len(events))
	for i := range events {
		rule, err := recurrence.ParseRule(descriptorOf(&events[i]))
		if err != nil {
			// A single malformed schedule must not poison the batch.
			continue
		}
		schedules = append(schedules, recurrence.Schedule{
			EventID:        events[i].ID,
			Rule:           rule,
			MaxOccurrences: events[i].MaxOccurrences,
		})
	}

	res := recurrence.ExpandBatch(schedules, recurrence.ExpandConfig{Start: start, End: end})

	ids := make([]uint, len(schedules))
	for i := range schedules {
		ids[i] = schedules[i].EventID
	}
	stored, err := s.overrideRepo.ListByEvents(ctx, ids)
	if err != nil {
		return recurrence.BatchResult{}, err
	}

	type eventDate struct {
		eventID uint
		date    string
	}
	cancelled := make(map[eventDate]bool)
	for _, ov := range stored {
		if ov.Status == models.OverrideCancelled {
			cancelled[eventDate{ov.EventID, ov.DateKey}] = true
		}
	}
	if len(cancelled) > 0 {
		kept := res.Occurrences[:0]
		for _, occ := range res.Occurrences {
			if cancelled[eventDate{occ.EventID, string(occ.Date)}] {
				continue
			}
			kept = append(kept, occ)
		}
		res.Occurrences = kept
	}
	return res, nil
}

func (s *scheduleService) PutOverride(ctx context.Context, override *models.OccurrenceOverride) error {
	if _, err := datekey.Parse(override.DateKey); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if override.Status == "" {
		override.Status = models.OverrideNormal
	}
	if override.Status != models.OverrideNormal && override.Status != models.OverrideCancelled {
		return fmt.Errorf("%w: unknown override status %q", ErrValidation, override.Status)
	}
	if _, err := s.eventRepo.FindByID(ctx, override.EventID); err != nil {
		return ErrEventNotFound
	}
	return s.overrideRepo.Upsert(ctx, override)
}

func (s *scheduleService) DeleteOverride(ctx context.Context, eventID uint, dateKey string) error {
	return s.overrideRepo.Delete(ctx, eventID, dateKey)
}

func (s *scheduleService) ListOverrides(ctx context.Context, eventID uint) ([]models.OccurrenceOverride, error) {
	return s.overrideRepo.ListByEvent(ctx, eventID)
}

func (s *scheduleService) EnsureUnits(ctx context.Context, eventID uint, start, end datekey.Key) ([]models.BookableUnit, error) {
	merged, err := s.ExpandOccurrences(ctx, eventID, start, end, false)
	if err != nil {
		return nil, err
	}

	var out []models.BookableUnit

	err = s.eventRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := s.eventRepo.FindByIDForUpdate(ctx, tx, eventID)
		if err != nil {
			return ErrEventNotFound
		}

		loc := time.UTC
		if l, err := time.LoadLocation(event.Timezone); err == nil {
			loc = l
		}
		today := datekey.Today(loc)

		wanted := make(map[string]bool, len(merged.Normal))
		for _, occ := range merged.Normal {
			if occ.Date.Before(today) {
				continue
			}
			wanted[string(occ.Date)] = true
		}

		from := string(today)
		if start.After(today) {
			from = string(start)
		}
		existing, err := s.unitRepo.ListByEventFrom(ctx, tx, eventID, from)
		if err != nil {
			return err
		}

		type slotKey struct {
			date  string
			index int
		}
		have := make(map[slotKey]*models.BookableUnit, len(existing))
		for i := range existing {
			u := &existing[i]
			have[slotKey{u.DateKey, u.SlotIndex}] = u
		}

		// Drop future units that fell out of the configuration: slots past
		// the new count, pools after RSVP was turned off, units on dates the
		// schedule no longer produces. Units with live claims stay.
		for i := range existing {
			u := &existing[i]
			if u.DateKey > string(end) {
				continue
			}
			obsolete := !wanted[u.DateKey] ||
				(u.Kind == models.UnitSlot && u.SlotIndex > event.SlotCount) ||
				(u.Kind == models.UnitPool && !event.HasRSVP)
			if !obsolete {
				continue
			}
			active, err := s.claimRepo.HasActiveByUnit(ctx, tx, u.ID)
			if err != nil {
				return err
			}
			if active {
				continue
			}
			if err := s.unitRepo.Delete(ctx, tx, u.ID); err != nil {
				return err
			}
			delete(have, slotKey{u.DateKey, u.SlotIndex})
		}

		one := 1
		for _, occ := range merged.Normal {
			date := string(occ.Date)
			if !wanted[date] {
				continue
			}
			for i := 1; i <= event.SlotCount; i++ {
				if u, ok := have[slotKey{date, i}]; ok {
					out = append(out, *u)
					continue
				}
				unit := models.BookableUnit{
					EventID:     eventID,
					DateKey:     date,
					SlotIndex:   i,
					Kind:        models.UnitSlot,
					DurationMin: event.SlotMinutes,
					Capacity:    &one,
				}
				if err := s.unitRepo.Create(ctx, tx, &unit); err != nil {
					return err
				}
				out = append(out, unit)
			}
			if event.HasRSVP {
				if u, ok := have[slotKey{date, 0}]; ok {
					// Keep the pool but track capacity edits.
					if !sameCapacity(u.Capacity, event.RSVPCapacity) {
						u.Capacity = event.RSVPCapacity
						if err := tx.WithContext(ctx).Save(u).Error; err != nil {
							return err
						}
					}
					out = append(out, *u)
					continue
				}
				pool := models.BookableUnit{
					EventID:  eventID,
					DateKey:  date,
					Kind:     models.UnitPool,
					Capacity: event.RSVPCapacity,
				}
				if err := s.unitRepo.Create(ctx, tx, &pool); err != nil {
					return err
				}
				out = append(out, pool)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sameCapacity(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func toOverrides(stored []models.OccurrenceOverride) []recurrence.Override {
	out := make([]recurrence.Override, 0, len(stored))
	for _, ov := range stored {
		key, err := datekey.Parse(ov.DateKey)
		if err != nil {
			continue
		}
		out = append(out, recurrence.Override{
			Date:      key,
			Cancelled: ov.Status == models.OverrideCancelled,
			StartTime: ov.StartTime,
			FlyerURL:  ov.FlyerURL,
			Notes:     ov.Notes,
		})
	}
	return out
}
