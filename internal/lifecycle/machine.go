/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package lifecycle advances sessions through their lesson states as
// wall-clock time passes. PROGRAMADA sessions start once their slot
// arrives; INICIADA sessions complete after a fixed window. CANCELADA
// and ACA are only ever entered through the manual state-change call.
package lifecycle

import (
	"github.com/elpalenque/rienda/internal/clock"
	"github.com/elpalenque/rienda/internal/models"
)

// CompletionWindowMinutes is how long after its start time a started
// session is marked completed. The window is fixed and ignores the
// session's own duration field; the school closes out every lesson on
// the hour regardless of booked length.
const CompletionWindowMinutes = 60

// NextAuto returns the automatic transition due for a session given its
// start time and the current time of day, or ok=false when none is due.
func NextAuto(state models.SessionState, start, now clock.TimeOfDay) (models.SessionState, bool) {
	switch state {
	case models.StateScheduled:
		if !start.After(now) {
			return models.StateStarted, true
		}
	case models.StateStarted:
		if !start.Add(CompletionWindowMinutes).After(now) {
			return models.StateCompleted, true
		}
	}
	return "", false
}
