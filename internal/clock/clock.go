/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package clock implements the school's operational calendar: calendar
// days stored as UTC midnights, times of day as minutes since midnight,
// and "now"/"today" resolved in the configured operating timezone.
package clock

import (
	"fmt"
	"time"

	"github.com/elpalenque/rienda/internal/errs"
)

// DefaultTimezone is the school's operating timezone.
const DefaultTimezone = "America/Argentina/Buenos_Aires"

// DayFormat is the wire format for calendar days.
const DayFormat = "2006-01-02"

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "15:04" into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, errs.Validationf("invalid time of day %q, expected HH:MM", s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// MustTimeOfDay is ParseTimeOfDay for trusted literals.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Add returns the time of day shifted by minutes. Results past midnight
// are not wrapped; callers compare against closing boundaries instead.
func (t TimeOfDay) Add(minutes int) TimeOfDay { return t + TimeOfDay(minutes) }

func (t TimeOfDay) After(other TimeOfDay) bool  { return t > other }
func (t TimeOfDay) Before(other TimeOfDay) bool { return t < other }

// TimeOfDayFrom extracts the time of day from a wall-clock instant.
func TimeOfDayFrom(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// ParseDay parses "2006-01-02" into a UTC-midnight day value.
func ParseDay(s string) (time.Time, error) {
	d, err := time.Parse(DayFormat, s)
	if err != nil {
		return time.Time{}, errs.Validationf("invalid day %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// DayOf truncates an instant to the UTC-midnight day value of its
// calendar date in its own location.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekEnd returns the last day of the week starting at start (start+6d).
func WeekEnd(start time.Time) time.Time {
	return start.AddDate(0, 0, 6)
}

// Calendar resolves the current instant and day in the operating
// timezone. The now func is injectable so time-sensitive logic stays
// testable without sleeping.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar loads the named timezone and uses the system clock.
func NewCalendar(timezone string) (*Calendar, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Calendar{loc: loc, now: time.Now}, nil
}

// NewCalendarAt builds a calendar with a fixed now func, for tests.
func NewCalendarAt(timezone string, now func() time.Time) (*Calendar, error) {
	cal, err := NewCalendar(timezone)
	if err != nil {
		return nil, err
	}
	cal.now = now
	return cal, nil
}

// Now returns the current instant in the operating timezone.
func (c *Calendar) Now() time.Time { return c.now().In(c.loc) }

// Today returns the UTC-midnight day value of the current date in the
// operating timezone.
func (c *Calendar) Today() time.Time { return DayOf(c.Now()) }

// TimeOfDayNow returns the current wall-clock time of day.
func (c *Calendar) TimeOfDayNow() TimeOfDay { return TimeOfDayFrom(c.Now()) }

// Location exposes the operating timezone.
func (c *Calendar) Location() *time.Location { return c.loc }
