/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package calendar implements the bulk week operations: replicating a
// week's lesson pattern forward and bulk-cancelling date ranges.
package calendar

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/elpalenque/rienda/internal/clock"
	"github.com/elpalenque/rienda/internal/errs"
	"github.com/elpalenque/rienda/internal/events"
	"github.com/elpalenque/rienda/internal/models"
	"github.com/elpalenque/rienda/internal/telemetry"
)

// Operator performs bulk calendar mutations over the session store.
type Operator struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

func NewOperator(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Operator {
	return &Operator{db: db, bus: bus, logger: logger.With().Str("service", "calendar").Logger()}
}

// CopyClasses replicates weeksCount weeks of sessions starting at
// originStart into the weeks starting at destStart. Each week is one
// transaction; a failure in week i leaves earlier weeks committed.
func (o *Operator) CopyClasses(ctx context.Context, originStart, destStart time.Time, weeksCount int) error {
	if weeksCount <= 0 {
		return errs.Validationf("weeks count must be positive")
	}
	originStart = clock.DayOf(originStart)
	destStart = clock.DayOf(destStart)

	var copied int
	for i := 0; i < weeksCount; i++ {
		originWeek := originStart.AddDate(0, 0, 7*i)
		destWeek := destStart.AddDate(0, 0, 7*i)
		n, err := o.copyWeek(ctx, originWeek, destWeek)
		if err != nil {
			o.logger.Error().Err(err).
				Int("week", i).
				Str("origin", originWeek.Format(clock.DayFormat)).
				Str("dest", destWeek.Format(clock.DayFormat)).
				Msg("week copy failed, earlier weeks remain committed")
			return err
		}
		copied += n
	}

	o.logger.Info().
		Int("weeks", weeksCount).
		Int("sessions", copied).
		Str("origin", originStart.Format(clock.DayFormat)).
		Str("dest", destStart.Format(clock.DayFormat)).
		Msg("calendar copied")
	o.bus.Publish(events.EventCalendarCopied, events.Payload{
		"origin":   originStart.Format(clock.DayFormat),
		"dest":     destStart.Format(clock.DayFormat),
		"weeks":    weeksCount,
		"sessions": copied,
	})
	return nil
}

// copyWeek clones one origin week into one destination week inside a
// single transaction and returns the number of sessions created.
func (o *Operator) copyWeek(ctx context.Context, originWeekStart, destWeekStart time.Time) (int, error) {
	originEnd := clock.WeekEnd(originWeekStart)
	destEnd := clock.WeekEnd(destWeekStart)
	shift := int(destWeekStart.Sub(originWeekStart).Hours() / 24)

	var created int
	err := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Clear the destination's still-scheduled sessions; started,
		// completed and cancelled ones are never overwritten.
		if err := tx.Where("day BETWEEN ? AND ? AND state = ?", destWeekStart, destEnd, models.StateScheduled).
			Delete(&models.Session{}).Error; err != nil {
			return err
		}

		var origin []models.Session
		if err := tx.Where("day BETWEEN ? AND ?", originWeekStart, originEnd).
			Order("day, starts_at").
			Find(&origin).Error; err != nil {
			return err
		}

		var survivors []models.Session
		if err := tx.Where("day BETWEEN ? AND ?", destWeekStart, destEnd).
			Find(&survivors).Error; err != nil {
			return err
		}

		var clones []models.Session
		for _, src := range origin {
			shifted := src.Day.AddDate(0, 0, shift)
			if slotTaken(survivors, shifted, src.StartsAt, src.StudentID) {
				continue
			}
			clone := src
			clone.ID = uuid.New().String()
			clone.Day = shifted
			clone.State = models.StateScheduled
			clone.Notes = ""
			clone.CreatedAt = time.Time{}
			clone.UpdatedAt = time.Time{}
			clones = append(clones, clone)
		}
		if len(clones) == 0 {
			return nil
		}
		if err := tx.Create(&clones).Error; err != nil {
			return err
		}
		created = len(clones)
		return nil
	})
	if err != nil {
		return 0, err
	}
	telemetry.CalendarCopiedSessionsTotal.Add(float64(created))
	return created, nil
}

// slotTaken is the duplicate guard: a surviving destination session at
// the same (day, time) for the same student suppresses the clone.
// Survivors without a student reference never match.
func slotTaken(survivors []models.Session, day time.Time, startsAt string, studentID *string) bool {
	if studentID == nil {
		return false
	}
	for _, s := range survivors {
		if s.StudentID == nil {
			continue
		}
		if s.Day.Equal(day) && s.StartsAt == startsAt && *s.StudentID == *studentID {
			return true
		}
	}
	return false
}

// DeleteClasses removes every still-scheduled session in the inclusive
// range. Sessions in any other state are left untouched. The whole
// range is one atomic delete.
func (o *Operator) DeleteClasses(ctx context.Context, rangeStart, rangeEnd time.Time) (int64, error) {
	if rangeStart.IsZero() || rangeEnd.IsZero() {
		return 0, errs.Validationf("both range bounds are required")
	}
	rangeStart = clock.DayOf(rangeStart)
	rangeEnd = clock.DayOf(rangeEnd)
	if rangeStart.After(rangeEnd) {
		return 0, errs.Validationf("range start %s is after range end %s",
			rangeStart.Format(clock.DayFormat), rangeEnd.Format(clock.DayFormat))
	}

	res := o.db.WithContext(ctx).
		Where("day BETWEEN ? AND ? AND state = ?", rangeStart, rangeEnd, models.StateScheduled).
		Delete(&models.Session{})
	if res.Error != nil {
		return 0, res.Error
	}

	telemetry.CalendarDeletedSessionsTotal.Add(float64(res.RowsAffected))
	o.logger.Info().
		Int64("deleted", res.RowsAffected).
		Str("from", rangeStart.Format(clock.DayFormat)).
		Str("to", rangeEnd.Format(clock.DayFormat)).
		Msg("scheduled sessions deleted in range")
	o.bus.Publish(events.EventCalendarDeleted, events.Payload{
		"from":    rangeStart.Format(clock.DayFormat),
		"to":      rangeEnd.Format(clock.DayFormat),
		"deleted": res.RowsAffected,
	})
	return res.RowsAffected, nil
}
