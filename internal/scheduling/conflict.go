/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/elpalenque/rienda/internal/models"
)

// ConflictChecker reports whether a (day, time) slot is already taken
// for a given student or horse. It is a fast-fail pre-check; the
// composite unique indexes on the session table remain authoritative
// when two requests race past it.
type ConflictChecker struct {
	db *gorm.DB
}

func NewConflictChecker(db *gorm.DB) *ConflictChecker {
	return &ConflictChecker{db: db}
}

// Check returns the first colliding resource ("student" or "horse"), or
// "" when the slot is free. excludeID skips the session being updated
// so it does not conflict with itself; pass "" on create. Instructor
// collisions are deliberately not checked.
func (c *ConflictChecker) Check(ctx context.Context, excludeID string, day time.Time, startsAt string, studentID *string, horseID string) (string, error) {
	base := c.db.WithContext(ctx).Model(&models.Session{}).
		Where("day = ? AND starts_at = ?", day, startsAt)
	if excludeID != "" {
		base = base.Where("id <> ?", excludeID)
	}

	if studentID != nil {
		var count int64
		if err := base.Session(&gorm.Session{}).Where("student_id = ?", *studentID).Count(&count).Error; err != nil {
			return "", err
		}
		if count > 0 {
			return "student", nil
		}
	}

	var count int64
	if err := base.Session(&gorm.Session{}).Where("horse_id = ?", horseID).Count(&count).Error; err != nil {
		return "", err
	}
	if count > 0 {
		return "horse", nil
	}
	return "", nil
}

// HasConflict is Check reduced to a boolean.
func (c *ConflictChecker) HasConflict(ctx context.Context, excludeID string, day time.Time, startsAt string, studentID *string, horseID string) (bool, error) {
	resource, err := c.Check(ctx, excludeID, day, startsAt, studentID, horseID)
	if err != nil {
		return false, err
	}
	return resource != "", nil
}
