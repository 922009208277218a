/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"github.com/elpalenque/rienda/internal/models"
	"gorm.io/gorm"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	return database.AutoMigrate(
		// Directories
		&models.Student{},
		&models.Instructor{},
		&models.Horse{},
		&models.TrialPerson{},

		// Scheduling
		&models.Session{},

		// Audit trail
		&models.AuditLog{},
	)
}
