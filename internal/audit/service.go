/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/elpalenque/rienda/internal/events"
	"github.com/elpalenque/rienda/internal/models"
)

// Service records an audit trail by subscribing to domain events.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Start subscribes to relevant events and logs them as audit entries.
// It blocks until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Msg("audit service starting")

	created := s.bus.Subscribe(events.EventSessionCreated)
	updated := s.bus.Subscribe(events.EventSessionUpdated)
	deleted := s.bus.Subscribe(events.EventSessionDeleted)
	stateChanged := s.bus.Subscribe(events.EventSessionStateChanged)
	calendarCopied := s.bus.Subscribe(events.EventCalendarCopied)
	calendarDeleted := s.bus.Subscribe(events.EventCalendarDeleted)

	defer func() {
		s.bus.Unsubscribe(events.EventSessionCreated, created)
		s.bus.Unsubscribe(events.EventSessionUpdated, updated)
		s.bus.Unsubscribe(events.EventSessionDeleted, deleted)
		s.bus.Unsubscribe(events.EventSessionStateChanged, stateChanged)
		s.bus.Unsubscribe(events.EventCalendarCopied, calendarCopied)
		s.bus.Unsubscribe(events.EventCalendarDeleted, calendarDeleted)
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopped")
			return
		case payload := <-created:
			s.record(ctx, "session.created", "session", payload)
		case payload := <-updated:
			s.record(ctx, "session.updated", "session", payload)
		case payload := <-deleted:
			s.record(ctx, "session.deleted", "session", payload)
		case payload := <-stateChanged:
			s.record(ctx, "session.state_changed", "session", payload)
		case payload := <-calendarCopied:
			s.record(ctx, "calendar.copied", "calendar", payload)
		case payload := <-calendarDeleted:
			s.record(ctx, "calendar.deleted", "calendar", payload)
		}
	}
}

func (s *Service) record(ctx context.Context, action, resourceType string, payload events.Payload) {
	resourceID, _ := payload["id"].(string)

	entry := models.AuditLog{
		ID:           uuid.New().String(),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      payload,
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to persist audit entry")
	}
}

// Recent returns the latest audit entries, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.AuditLog
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
