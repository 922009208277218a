/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/elpalenque/rienda/internal/clock"
	"github.com/elpalenque/rienda/internal/events"
	"github.com/elpalenque/rienda/internal/models"
	"github.com/elpalenque/rienda/internal/telemetry"
)

// LeaderGate lets the ticker defer to leader election when several
// instances share one database. A nil gate means always run.
type LeaderGate interface {
	IsLeader() bool
}

// Config bounds when ticker passes actually run.
type Config struct {
	// Cadence between passes.
	Cadence time.Duration

	// WindowStart/WindowEnd restrict passes to the school's operating
	// hours.
	WindowStart clock.TimeOfDay
	WindowEnd   clock.TimeOfDay

	// Days are the operating weekdays.
	Days map[time.Weekday]bool
}

// Service is the periodic task that applies automatic state
// transitions to today's sessions.
type Service struct {
	db     *gorm.DB
	cal    *clock.Calendar
	bus    *events.Bus
	cfg    Config
	gate   LeaderGate
	logger zerolog.Logger
}

func NewService(db *gorm.DB, cal *clock.Calendar, bus *events.Bus, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		cal:    cal,
		bus:    bus,
		cfg:    cfg,
		logger: logger.With().Str("service", "lifecycle").Logger(),
	}
}

// SetLeaderGate installs a leader election gate. Must be called before
// Run.
func (s *Service) SetLeaderGate(gate LeaderGate) { s.gate = gate }

// Run drives ticker passes until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info().
		Dur("cadence", s.cfg.Cadence).
		Str("window_start", s.cfg.WindowStart.String()).
		Str("window_end", s.cfg.WindowEnd.String()).
		Msg("lifecycle ticker started")

	ticker := time.NewTicker(s.cfg.Cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("lifecycle ticker stopped")
			return
		case <-ticker.C:
			if s.gate != nil && !s.gate.IsLeader() {
				continue
			}
			now := s.cal.Now()
			if !s.inWindow(now) {
				continue
			}
			if err := s.Tick(ctx, now); err != nil {
				telemetry.TickerErrorsTotal.Inc()
				s.logger.Error().Err(err).Msg("ticker pass failed")
			}
		}
	}
}

// inWindow reports whether now falls on an operating day inside the
// operating hours.
func (s *Service) inWindow(now time.Time) bool {
	if len(s.cfg.Days) > 0 && !s.cfg.Days[now.Weekday()] {
		return false
	}
	tod := clock.TimeOfDayFrom(now)
	return !tod.Before(s.cfg.WindowStart) && !tod.After(s.cfg.WindowEnd)
}

// Tick runs one pass over today's sessions at the given instant. It is
// exported so tests can drive passes directly without a timer.
func (s *Service) Tick(ctx context.Context, now time.Time) error {
	telemetry.TickerPassesTotal.Inc()

	today := clock.DayOf(now)
	tod := clock.TimeOfDayFrom(now)

	var candidates []models.Session
	if err := s.db.WithContext(ctx).
		Where("day = ? AND state IN ?", today, []models.SessionState{models.StateScheduled, models.StateStarted}).
		Find(&candidates).Error; err != nil {
		return err
	}

	var started, completed int
	for i := range candidates {
		session := &candidates[i]
		start, err := clock.ParseTimeOfDay(session.StartsAt)
		if err != nil {
			s.logger.Warn().Str("session_id", session.ID).Str("starts_at", session.StartsAt).Msg("unparseable start time, skipping")
			continue
		}
		// A stale PROGRAMADA whose window already elapsed steps through
		// INICIADA to COMPLETADA within the same pass.
		for {
			next, ok := NextAuto(session.State, start, tod)
			if !ok {
				break
			}
			if err := s.transition(ctx, session, next); err != nil {
				return err
			}
			switch next {
			case models.StateStarted:
				started++
			case models.StateCompleted:
				completed++
			}
		}
	}

	if started > 0 || completed > 0 {
		s.logger.Info().
			Int("started", started).
			Int("completed", completed).
			Str("at", tod.String()).
			Msg("ticker pass applied transitions")
	}
	return nil
}

func (s *Service) transition(ctx context.Context, session *models.Session, next models.SessionState) error {
	from := session.State
	session.State = next
	if err := s.db.WithContext(ctx).Model(session).Update("state", next).Error; err != nil {
		return err
	}

	telemetry.SessionTransitionsTotal.WithLabelValues(string(from), string(next), "ticker").Inc()
	s.bus.Publish(events.EventSessionStateChanged, events.Payload{
		"id":      session.ID,
		"from":    string(from),
		"to":      string(next),
		"trigger": "ticker",
	})
	return nil
}
