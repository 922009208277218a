/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"time"

	"github.com/elpalenque/rienda/internal/clock"
	"github.com/elpalenque/rienda/internal/errs"
)

const (
	// LeadTimeMinutes is the minimum notice for same-day bookings.
	LeadTimeMinutes = 60
)

// ClosingTime is the facility's closing boundary. No session may end
// after it.
var ClosingTime = clock.MustTimeOfDay("18:30")

// Policy enforces the temporal booking rules: no elapsed dates, minimum
// same-day lead time, and sessions ending by closing.
type Policy struct {
	cal *clock.Calendar
}

func NewPolicy(cal *clock.Calendar) *Policy {
	return &Policy{cal: cal}
}

// ValidateSlot checks that day is not elapsed and, for same-day
// bookings, that start leaves at least LeadTimeMinutes of notice.
func (p *Policy) ValidateSlot(day time.Time, start clock.TimeOfDay) error {
	today := p.cal.Today()
	if day.Before(today) {
		return errs.BusinessRulef("cannot schedule a session on elapsed date %s", day.Format(clock.DayFormat))
	}
	if day.Equal(today) {
		earliest := p.cal.TimeOfDayNow().Add(LeadTimeMinutes)
		if start.Before(earliest) {
			return errs.BusinessRulef("same-day sessions need %d minutes notice, earliest slot is %s", LeadTimeMinutes, earliest)
		}
	}
	return nil
}

// ValidateEnd checks that start plus duration does not run past closing.
func (p *Policy) ValidateEnd(start clock.TimeOfDay, durationMin int) error {
	if end := start.Add(durationMin); end.After(ClosingTime) {
		return errs.BusinessRulef("session ending %s runs past closing time %s", end, ClosingTime)
	}
	return nil
}

// Validate applies the full rule set for a new booking.
func (p *Policy) Validate(day time.Time, start clock.TimeOfDay, durationMin int) error {
	if err := p.ValidateSlot(day, start); err != nil {
		return err
	}
	return p.ValidateEnd(start, durationMin)
}
