/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package directory provides lookups over the people and horses the
// school keeps on file. Scheduling resolves every participant of a
// session through these services so availability rules are enforced in
// one place.
package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/elpalenque/rienda/internal/errs"
	"github.com/elpalenque/rienda/internal/models"
)

// Students manages student records.
type Students struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewStudents(db *gorm.DB, logger zerolog.Logger) *Students {
	return &Students{db: db, logger: logger.With().Str("service", "students").Logger()}
}

// Get returns a student by id regardless of enrollment status.
func (s *Students) Get(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	if err := s.db.WithContext(ctx).First(&student, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("student", id)
		}
		return nil, err
	}
	return &student, nil
}

// GetActive returns a student by id, rejecting students whose
// enrollment has lapsed.
func (s *Students) GetActive(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !student.Active {
		return nil, errs.BusinessRulef("student %s is not actively enrolled", id)
	}
	return student, nil
}

// Create registers a new student. A zero ID is assigned.
func (s *Students) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(student).Error; err != nil {
		return err
	}
	s.logger.Info().Str("student_id", student.ID).Str("name", models.FullName(student.PersonRecord)).Msg("student registered")
	return nil
}

// List returns all students, optionally restricted to active ones.
func (s *Students) List(ctx context.Context, activeOnly bool) ([]models.Student, error) {
	var students []models.Student
	q := s.db.WithContext(ctx).Order("last_name, first_name")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

// Instructors manages instructor records.
type Instructors struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewInstructors(db *gorm.DB, logger zerolog.Logger) *Instructors {
	return &Instructors{db: db, logger: logger.With().Str("service", "instructors").Logger()}
}

func (s *Instructors) Get(ctx context.Context, id string) (*models.Instructor, error) {
	var instructor models.Instructor
	if err := s.db.WithContext(ctx).First(&instructor, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("instructor", id)
		}
		return nil, err
	}
	return &instructor, nil
}

// GetActive returns an instructor by id, rejecting those off the roster.
func (s *Instructors) GetActive(ctx context.Context, id string) (*models.Instructor, error) {
	instructor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !instructor.Active {
		return nil, errs.BusinessRulef("instructor %s is not on the active roster", id)
	}
	return instructor, nil
}

func (s *Instructors) Create(ctx context.Context, instructor *models.Instructor) error {
	if instructor.ID == "" {
		instructor.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(instructor).Error; err != nil {
		return err
	}
	s.logger.Info().Str("instructor_id", instructor.ID).Str("name", models.FullName(instructor.PersonRecord)).Msg("instructor registered")
	return nil
}

func (s *Instructors) List(ctx context.Context, activeOnly bool) ([]models.Instructor, error) {
	var instructors []models.Instructor
	q := s.db.WithContext(ctx).Order("last_name, first_name")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Find(&instructors).Error; err != nil {
		return nil, err
	}
	return instructors, nil
}

// Horses manages the stable roster.
type Horses struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewHorses(db *gorm.DB, logger zerolog.Logger) *Horses {
	return &Horses{db: db, logger: logger.With().Str("service", "horses").Logger()}
}

func (s *Horses) Get(ctx context.Context, id string) (*models.Horse, error) {
	var horse models.Horse
	if err := s.db.WithContext(ctx).First(&horse, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("horse", id)
		}
		return nil, err
	}
	return &horse, nil
}

// GetAvailable returns a horse by id, rejecting horses withdrawn from
// lesson duty.
func (s *Horses) GetAvailable(ctx context.Context, id string) (*models.Horse, error) {
	horse, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !horse.Available {
		return nil, errs.BusinessRulef("horse %s is not available for lessons", id)
	}
	return horse, nil
}

func (s *Horses) Create(ctx context.Context, horse *models.Horse) error {
	if horse.ID == "" {
		horse.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(horse).Error; err != nil {
		return err
	}
	s.logger.Info().Str("horse_id", horse.ID).Str("name", horse.Name).Msg("horse registered")
	return nil
}

func (s *Horses) List(ctx context.Context, availableOnly bool) ([]models.Horse, error) {
	var horses []models.Horse
	q := s.db.WithContext(ctx).Order("name")
	if availableOnly {
		q = q.Where("available = ?", true)
	}
	if err := q.Find(&horses).Error; err != nil {
		return nil, err
	}
	return horses, nil
}

// TrialPersons manages prospects who book trial classes before
// enrolling as students.
type TrialPersons struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewTrialPersons(db *gorm.DB, logger zerolog.Logger) *TrialPersons {
	return &TrialPersons{db: db, logger: logger.With().Str("service", "trial_persons").Logger()}
}

func (s *TrialPersons) Get(ctx context.Context, id string) (*models.TrialPerson, error) {
	var person models.TrialPerson
	if err := s.db.WithContext(ctx).First(&person, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("trial person", id)
		}
		return nil, err
	}
	return &person, nil
}

func (s *TrialPersons) Create(ctx context.Context, person *models.TrialPerson) error {
	if person.ID == "" {
		person.ID = uuid.New().String()
	}
	if err := s.db.WithContext(ctx).Create(person).Error; err != nil {
		return err
	}
	s.logger.Info().Str("trial_person_id", person.ID).Str("name", person.FirstName+" "+person.LastName).Msg("trial person registered")
	return nil
}

func (s *TrialPersons) List(ctx context.Context) ([]models.TrialPerson, error) {
	var persons []models.TrialPerson
	if err := s.db.WithContext(ctx).Order("last_name, first_name").Find(&persons).Error; err != nil {
		return nil, err
	}
	return persons, nil
}
