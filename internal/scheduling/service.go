/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduling books riding lessons: it resolves every
// participant through the directories, enforces the lead-time and
// closing-time policy, rejects double-booked slots, and owns session
// reads and writes.
package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/elpalenque/rienda/internal/clock"
	"github.com/elpalenque/rienda/internal/directory"
	"github.com/elpalenque/rienda/internal/errs"
	"github.com/elpalenque/rienda/internal/events"
	"github.com/elpalenque/rienda/internal/models"
	"github.com/elpalenque/rienda/internal/telemetry"
)

// Directories bundles the lookup services a booking depends on.
type Directories struct {
	Students     *directory.Students
	Instructors  *directory.Instructors
	Horses       *directory.Horses
	TrialPersons *directory.TrialPersons
}

// Service implements the scheduling API over the session store.
type Service struct {
	db        *gorm.DB
	dirs      Directories
	policy    *Policy
	conflicts *ConflictChecker
	cal       *clock.Calendar
	bus       *events.Bus
	logger    zerolog.Logger
}

func NewService(db *gorm.DB, dirs Directories, cal *clock.Calendar, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:        db,
		dirs:      dirs,
		policy:    NewPolicy(cal),
		conflicts: NewConflictChecker(db),
		cal:       cal,
		bus:       bus,
		logger:    logger.With().Str("service", "scheduling").Logger(),
	}
}

// CreateSessionInput is a booking request. DurationMin zero means the
// default duration. State is normally left empty (PROGRAMADA); terminal
// states are accepted so historical records can be imported, skipping
// the lead-time rules.
type CreateSessionInput struct {
	Specialty     models.Specialty
	Day           time.Time
	StartsAt      clock.TimeOfDay
	DurationMin   int
	State         models.SessionState
	Notes         string
	Trial         bool
	StudentID     *string
	TrialPersonID *string
	InstructorID  string
	HorseID       string
}

// CreateSession books a new session, PROGRAMADA unless the input asks
// otherwise. Directory lookups, policy checks, the conflict pre-check
// and the insert run as one unit of work.
func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (*models.Session, error) {
	if !models.KnownSpecialty(in.Specialty) {
		return nil, errs.Validationf("unknown specialty %q", in.Specialty)
	}
	if in.State == "" {
		in.State = models.StateScheduled
	}
	if !models.KnownState(in.State) {
		return nil, errs.Validationf("unknown session state %q", in.State)
	}
	in.Day = clock.DayOf(in.Day)
	if in.DurationMin == 0 {
		in.DurationMin = models.DefaultDurationMinutes
	}
	if in.DurationMin < 0 {
		return nil, errs.Validationf("duration must be positive")
	}

	if err := s.resolveRider(ctx, in.Trial, in.StudentID, in.TrialPersonID); err != nil {
		return nil, err
	}
	if in.Trial {
		dup, err := s.HasTrialForSpecialty(ctx, in.Specialty, in.StudentID, in.TrialPersonID)
		if err != nil {
			return nil, err
		}
		if dup {
			return nil, errs.BusinessRulef("rider already has a %s trial session", in.Specialty)
		}
	}
	if _, err := s.dirs.Instructors.GetActive(ctx, in.InstructorID); err != nil {
		return nil, err
	}
	if _, err := s.dirs.Horses.GetAvailable(ctx, in.HorseID); err != nil {
		return nil, err
	}

	// Lead-time rules apply to live bookings only; importing a record
	// that already ran in a terminal state skips them.
	if !in.State.Terminal() {
		if err := s.policy.ValidateSlot(in.Day, in.StartsAt); err != nil {
			return nil, err
		}
	}
	if err := s.policy.ValidateEnd(in.StartsAt, in.DurationMin); err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:            uuid.New().String(),
		Specialty:     in.Specialty,
		Day:           in.Day,
		StartsAt:      in.StartsAt.String(),
		DurationMin:   in.DurationMin,
		State:         in.State,
		Notes:         in.Notes,
		Trial:         in.Trial,
		StudentID:     in.StudentID,
		TrialPersonID: in.TrialPersonID,
		InstructorID:  in.InstructorID,
		HorseID:       in.HorseID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resource, err := NewConflictChecker(tx).Check(ctx, "", session.Day, session.StartsAt, session.StudentID, session.HorseID)
		if err != nil {
			return err
		}
		if resource != "" {
			telemetry.ConflictRejectionsTotal.WithLabelValues(resource).Inc()
			return errs.Conflictf("%s already booked at %s %s", resource, session.Day.Format(clock.DayFormat), session.StartsAt)
		}
		return tx.Create(session).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("session_id", session.ID).
		Str("day", session.Day.Format(clock.DayFormat)).
		Str("starts_at", session.StartsAt).
		Bool("trial", session.Trial).
		Msg("session booked")
	s.bus.Publish(events.EventSessionCreated, events.Payload{
		"id":        session.ID,
		"day":       session.Day.Format(clock.DayFormat),
		"starts_at": session.StartsAt,
		"state":     string(session.State),
		"trial":     session.Trial,
	})
	return session, nil
}

// resolveRider enforces the exactly-one-rider rule and the per-kind
// lookup semantics: regular sessions require an actively enrolled
// student; trial sessions take either a trial person or an existing
// student trying a new discipline (enrollment status not enforced).
func (s *Service) resolveRider(ctx context.Context, trial bool, studentID, trialPersonID *string) error {
	if studentID != nil && trialPersonID != nil {
		return errs.Validationf("session cannot reference both a student and a trial person")
	}
	if !trial {
		if trialPersonID != nil {
			return errs.Validationf("only trial sessions may reference a trial person")
		}
		if studentID == nil {
			return errs.Validationf("session requires a student")
		}
		_, err := s.dirs.Students.GetActive(ctx, *studentID)
		return err
	}
	switch {
	case trialPersonID != nil:
		_, err := s.dirs.TrialPersons.Get(ctx, *trialPersonID)
		return err
	case studentID != nil:
		_, err := s.dirs.Students.Get(ctx, *studentID)
		return err
	default:
		return errs.Validationf("trial session requires a student or a trial person")
	}
}

// HasTrialForSpecialty reports whether the rider already has a trial
// session in the given discipline.
func (s *Service) HasTrialForSpecialty(ctx context.Context, specialty models.Specialty, studentID, trialPersonID *string) (bool, error) {
	q := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("trial = ? AND specialty = ?", true, specialty)
	switch {
	case studentID != nil:
		q = q.Where("student_id = ?", *studentID)
	case trialPersonID != nil:
		q = q.Where("trial_person_id = ?", *trialPersonID)
	default:
		return false, nil
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateSessionInput carries the fields an update may change. Nil
// pointers leave the stored value untouched. The trial flag and the
// rider reference are fixed at booking time.
type UpdateSessionInput struct {
	Specialty    *models.Specialty
	Day          *time.Time
	StartsAt     *clock.TimeOfDay
	DurationMin  *int
	Notes        *string
	InstructorID *string
	HorseID      *string
}

// UpdateSession applies a partial update. Lead-time rules re-apply only
// while the stored date is still in the future, so historical records
// stay editable (adding notes to a completed lesson, for example).
func (s *Service) UpdateSession(ctx context.Context, id string, in UpdateSessionInput) (*models.Session, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Specialty != nil {
		if !models.KnownSpecialty(*in.Specialty) {
			return nil, errs.Validationf("unknown specialty %q", *in.Specialty)
		}
		session.Specialty = *in.Specialty
	}
	if in.InstructorID != nil && *in.InstructorID != session.InstructorID {
		if _, err := s.dirs.Instructors.GetActive(ctx, *in.InstructorID); err != nil {
			return nil, err
		}
		session.InstructorID = *in.InstructorID
	}
	if in.HorseID != nil && *in.HorseID != session.HorseID {
		if _, err := s.dirs.Horses.GetAvailable(ctx, *in.HorseID); err != nil {
			return nil, err
		}
		session.HorseID = *in.HorseID
	}
	if in.Notes != nil {
		session.Notes = *in.Notes
	}

	storedDayFuture := session.Day.After(s.cal.Today())

	slotChanged := in.Day != nil || in.StartsAt != nil || in.DurationMin != nil
	if in.Day != nil {
		session.Day = clock.DayOf(*in.Day)
	}
	start, err := clock.ParseTimeOfDay(session.StartsAt)
	if err != nil {
		return nil, err
	}
	if in.StartsAt != nil {
		start = *in.StartsAt
		session.StartsAt = start.String()
	}
	if in.DurationMin != nil {
		if *in.DurationMin <= 0 {
			return nil, errs.Validationf("duration must be positive")
		}
		session.DurationMin = *in.DurationMin
	}
	if slotChanged {
		if storedDayFuture {
			if err := s.policy.ValidateSlot(session.Day, start); err != nil {
				return nil, err
			}
		}
		if err := s.policy.ValidateEnd(start, session.DurationMin); err != nil {
			return nil, err
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resource, err := NewConflictChecker(tx).Check(ctx, session.ID, session.Day, session.StartsAt, session.StudentID, session.HorseID)
		if err != nil {
			return err
		}
		if resource != "" {
			telemetry.ConflictRejectionsTotal.WithLabelValues(resource).Inc()
			return errs.Conflictf("%s already booked at %s %s", resource, session.Day.Format(clock.DayFormat), session.StartsAt)
		}
		return tx.Save(session).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("session_id", session.ID).Msg("session updated")
	s.bus.Publish(events.EventSessionUpdated, events.Payload{
		"id":        session.ID,
		"day":       session.Day.Format(clock.DayFormat),
		"starts_at": session.StartsAt,
	})
	return session, nil
}

// ChangeState overwrites a session's lifecycle state unconditionally.
// No policy or conflict checks apply; this is how the school cancels a
// lesson or records an absence with notice.
func (s *Service) ChangeState(ctx context.Context, id string, newState models.SessionState) (*models.Session, error) {
	if !models.KnownState(newState) {
		return nil, errs.Validationf("unknown session state %q", newState)
	}
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := session.State
	session.State = newState
	if err := s.db.WithContext(ctx).Save(session).Error; err != nil {
		return nil, err
	}

	telemetry.SessionTransitionsTotal.WithLabelValues(string(from), string(newState), "manual").Inc()
	s.logger.Info().
		Str("session_id", session.ID).
		Str("from", string(from)).
		Str("to", string(newState)).
		Msg("session state changed")
	s.bus.Publish(events.EventSessionStateChanged, events.Payload{
		"id":      session.ID,
		"from":    string(from),
		"to":      string(newState),
		"trigger": "manual",
	})
	return session, nil
}

// Get returns a session by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("session", id)
		}
		return nil, err
	}
	return &session, nil
}

// ListFilter narrows a session listing. Zero values are ignored.
type ListFilter struct {
	From         *time.Time
	To           *time.Time
	State        models.SessionState
	Specialty    models.Specialty
	StudentID    string
	InstructorID string
	HorseID      string
	Trial        *bool
}

// List returns sessions matching the filter, ordered by slot.
func (s *Service) List(ctx context.Context, f ListFilter) ([]models.Session, error) {
	q := s.db.WithContext(ctx).Model(&models.Session{}).Order("day, starts_at")
	if f.From != nil {
		q = q.Where("day >= ?", clock.DayOf(*f.From))
	}
	if f.To != nil {
		q = q.Where("day <= ?", clock.DayOf(*f.To))
	}
	if f.State != "" {
		q = q.Where("state = ?", f.State)
	}
	if f.Specialty != "" {
		q = q.Where("specialty = ?", f.Specialty)
	}
	if f.StudentID != "" {
		q = q.Where("student_id = ?", f.StudentID)
	}
	if f.InstructorID != "" {
		q = q.Where("instructor_id = ?", f.InstructorID)
	}
	if f.HorseID != "" {
		q = q.Where("horse_id = ?", f.HorseID)
	}
	if f.Trial != nil {
		q = q.Where("trial = ?", *f.Trial)
	}
	var sessions []models.Session
	if err := q.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// Delete removes a single session.
func (s *Service) Delete(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(session).Error; err != nil {
		return err
	}
	s.logger.Info().Str("session_id", id).Msg("session deleted")
	s.bus.Publish(events.EventSessionDeleted, events.Payload{"id": id})
	return nil
}

// SessionCounts groups session totals by lifecycle state.
type SessionCounts struct {
	Scheduled int64 `json:"scheduled"`
	Started   int64 `json:"started"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	Absent    int64 `json:"absent"`
	Total     int64 `json:"total"`
}

// CountByState tallies sessions matching the filter per lifecycle
// state. The filter's own State field is ignored.
func (s *Service) CountByState(ctx context.Context, f ListFilter) (*SessionCounts, error) {
	f.State = ""
	q := s.db.WithContext(ctx).Model(&models.Session{})
	if f.From != nil {
		q = q.Where("day >= ?", clock.DayOf(*f.From))
	}
	if f.To != nil {
		q = q.Where("day <= ?", clock.DayOf(*f.To))
	}
	if f.Specialty != "" {
		q = q.Where("specialty = ?", f.Specialty)
	}
	if f.StudentID != "" {
		q = q.Where("student_id = ?", f.StudentID)
	}
	if f.InstructorID != "" {
		q = q.Where("instructor_id = ?", f.InstructorID)
	}
	if f.HorseID != "" {
		q = q.Where("horse_id = ?", f.HorseID)
	}
	if f.Trial != nil {
		q = q.Where("trial = ?", *f.Trial)
	}

	var rows []struct {
		State models.SessionState
		N     int64
	}
	if err := q.Select("state, count(*) as n").Group("state").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := &SessionCounts{}
	for _, row := range rows {
		switch row.State {
		case models.StateScheduled:
			counts.Scheduled = row.N
		case models.StateStarted:
			counts.Started = row.N
		case models.StateCompleted:
			counts.Completed = row.N
		case models.StateCancelled:
			counts.Cancelled = row.N
		case models.StateAbsent:
			counts.Absent = row.N
		}
		counts.Total += row.N
	}
	return counts, nil
}

// StudentStats summarises a student's sessions by outcome.
type StudentStats struct {
	StudentID string `json:"student_id"`
	Scheduled int64  `json:"scheduled"`
	Completed int64  `json:"completed"`
	Cancelled int64  `json:"cancelled"`
	Absent    int64  `json:"absent"`
}

// StatsForStudent counts the student's sessions per lifecycle outcome.
func (s *Service) StatsForStudent(ctx context.Context, studentID string) (*StudentStats, error) {
	if _, err := s.dirs.Students.Get(ctx, studentID); err != nil {
		return nil, err
	}
	stats := &StudentStats{StudentID: studentID}
	for state, dest := range map[models.SessionState]*int64{
		models.StateScheduled: &stats.Scheduled,
		models.StateCompleted: &stats.Completed,
		models.StateCancelled: &stats.Cancelled,
		models.StateAbsent:    &stats.Absent,
	} {
		if err := s.db.WithContext(ctx).Model(&models.Session{}).
			Where("student_id = ? AND state = ?", studentID, state).
			Count(dest).Error; err != nil {
			return nil, err
		}
	}
	return stats, nil
}
