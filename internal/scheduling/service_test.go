package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/elpalenque/rienda/internal/clock"
	"github.com/elpalenque/rienda/internal/directory"
	"github.com/elpalenque/rienda/internal/errs"
	"github.com/elpalenque/rienda/internal/events"
	"github.com/elpalenque/rienda/internal/models"
)

type fixture struct {
	svc        *Service
	db         *gorm.DB
	student    *models.Student
	instructor *models.Instructor
	horse      *models.Horse
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Student{}, &models.Instructor{}, &models.Horse{}, &models.TrialPerson{}, &models.Session{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cal, err := clock.NewCalendarAt("UTC", func() time.Time { return now })
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}

	dirs := Directories{
		Students:     directory.NewStudents(db, zerolog.Nop()),
		Instructors:  directory.NewInstructors(db, zerolog.Nop()),
		Horses:       directory.NewHorses(db, zerolog.Nop()),
		TrialPersons: directory.NewTrialPersons(db, zerolog.Nop()),
	}
	ctx := context.Background()

	f := &fixture{
		svc:        NewService(db, dirs, cal, events.NewBus(), zerolog.Nop()),
		db:         db,
		student:    &models.Student{PersonRecord: models.PersonRecord{FirstName: "Ana", LastName: "Paz"}, Active: true},
		instructor: &models.Instructor{PersonRecord: models.PersonRecord{FirstName: "Diego", LastName: "Leiva"}, Active: true},
		horse:      &models.Horse{Name: "Luna", Kind: models.HorseSchool, Available: true},
	}
	if err := dirs.Students.Create(ctx, f.student); err != nil {
		t.Fatalf("seed student: %v", err)
	}
	if err := dirs.Instructors.Create(ctx, f.instructor); err != nil {
		t.Fatalf("seed instructor: %v", err)
	}
	if err := dirs.Horses.Create(ctx, f.horse); err != nil {
		t.Fatalf("seed horse: %v", err)
	}
	return f
}

func (f *fixture) input(day time.Time, startsAt string) CreateSessionInput {
	sid := f.student.ID
	return CreateSessionInput{
		Specialty:    models.SpecialtyEquitation,
		Day:          day,
		StartsAt:     clock.MustTimeOfDay(startsAt),
		StudentID:    &sid,
		InstructorID: f.instructor.ID,
		HorseID:      f.horse.ID,
	}
}

func TestCreateSessionDefaults(t *testing.T) {
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	tomorrow := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)
	session, err := f.svc.CreateSession(context.Background(), f.input(tomorrow, "10:00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if session.State != models.StateScheduled {
		t.Fatalf("expected PROGRAMADA, got %s", session.State)
	}
	if session.DurationMin != models.DefaultDurationMinutes {
		t.Fatalf("expected default duration, got %d", session.DurationMin)
	}
	if session.ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestSameDayLeadTime(t *testing.T) {
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	today := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// 30 minutes of notice is not enough.
	if _, err := f.svc.CreateSession(ctx, f.input(today, "10:30")); !errs.IsBusinessRule(err) {
		t.Fatalf("expected business rule error for 30min notice, got %v", err)
	}
	// 61 minutes is.
	if _, err := f.svc.CreateSession(ctx, f.input(today, "11:01")); err != nil {
		t.Fatalf("61min notice should be accepted: %v", err)
	}
}

func TestElapsedDateRejected(t *testing.T) {
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, now)

	yesterday := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.CreateSession(context.Background(), f.input(yesterday, "15:00")); !errs.IsBusinessRule(err) {
		t.Fatalf("expected business rule error for elapsed date, got %v", err)
	}
}

func TestHistoricalImport(t *testing.T) {
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	yesterday := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// A record that already ran skips the lead-time rules.
	in := f.input(yesterday, "15:00")
	in.State = models.StateCompleted
	session, err := f.svc.CreateSession(ctx, in)
	if err != nil {
		t.Fatalf("import completed session: %v", err)
	}
	if session.State != models.StateCompleted {
		t.Fatalf("expected COMPLETADA, got %s", session.State)
	}

	// Closing time still binds imports.
	in = f.input(yesterday, "18:15")
	in.State = models.StateCancelled
	in.DurationMin = 30
	if _, err := f.svc.CreateSession(ctx, in); !errs.IsBusinessRule(err) {
		t.Fatalf("expected business rule error past closing, got %v", err)
	}

	// Live states on elapsed dates remain rejected.
	in = f.input(yesterday, "16:00")
	in.State = models.StateStarted
	if _, err := f.svc.CreateSession(ctx, in); !errs.IsBusinessRule(err) {
		t.Fatalf("expected business rule error for elapsed date, got %v", err)
	}

	if _, err := f.svc.CreateSession(ctx, f.input(yesterday, "17:00")); !errs.IsBusinessRule(err) {
		t.Fatalf("expected business rule error for elapsed PROGRAMADA, got %v", err)
	}

	in = f.input(yesterday, "14:00")
	in.State = "ARCHIVADA"
	if _, err := f.svc.CreateSession(ctx, in); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for unknown state, got %v", err)
	}
}

func TestCountByState(t *testing.T) {
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	yesterday := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	if _, err := f.svc.CreateSession(ctx, f.input(tomorrow, "10:00")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.CreateSession(ctx, f.input(tomorrow, "11:00")); err != nil {
		t.Fatalf("create: %v", err)
	}
	in := f.input(yesterday, "15:00")
	in.State = models.StateCompleted
	if _, err := f.svc.CreateSession(ctx, in); err != nil {
		t.Fatalf("import: %v", err)
	}

	counts, err := f.svc.CountByState(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts.Scheduled != 2 || counts.Completed != 1 || counts.Total != 3 {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	from := tomorrow
	counts, err = f.svc.CountByState(ctx, ListFilter{From: &from})
	if err != nil {
		t.Fatalf("count from: %v", err)
	}
	if counts.Scheduled != 2 || counts.Completed != 0 || counts.Total != 2 {
		t.Fatalf("unexpected filtered counts: %+v", counts)
	}
}

func TestClosingBoundary(t *testing.T) {
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	tomorrow := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// 18:00 + 30min ends exactly at closing, accepted.
	in := f.input(tomorrow, "18:00")
	in.DurationMin = 30
	if _, err := f.svc.CreateSession(ctx, in); err != nil {
		t.Fatalf("session ending at closing should be accepted: %v", err)
	}

	// 18:00 + 60min runs past closing.
	in = f.input(tomorrow, "18:00")
	in.DurationMin = 60
	in.HorseID = f.horse.ID
	if _, err := f.svc.CreateSession(ctx, in); !errs.IsBusinessRule(err) {
		t.Fatalf("expected business rule error past closing, got %v", err)
	}
}

func TestSlotConflicts(t *testing.T) {
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	tomorrow := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	first, err := f.svc.CreateSession(ctx, f.input(tomorrow, "10:00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Same student, same slot, different horse.
	otherHorse := &models.Horse{Name: "Tornado", Kind: models.HorseSchool, Available: true}
	if err := f.svc.dirs.Horses.Create(ctx, otherHorse); err != nil {
		t.Fatalf("seed horse: %v", err)
	}
	in := f.input(tomorrow, "10:00")
	in.HorseID = otherHorse.ID
	if _, err := f.svc.CreateSession(ctx, in); !errs.IsConflict(err) {
		t.Fatalf("expected student conflict, got %v", err)
	}

	// Same horse, same slot, different student.
	otherStudent := &models.Student{PersonRecord: models.PersonRecord{FirstName: "Bruno", LastName: "Sosa"}, Active: true}
	if err := f.svc.dirs.Students.Create(ctx, otherStudent); err != nil {
		t.Fatalf("seed student: %v", err)
	}
	in = f.input(tomorrow, "10:00")
	in.StudentID = &otherStudent.ID
	if _, err := f.svc.CreateSession(ctx, in); !errs.IsConflict(err) {
		t.Fatalf("expected horse conflict, got %v", err)
	}

	// A session does not conflict with itself on update.
	notes := "bring own helmet"
	if _, err := f.svc.UpdateSession(ctx, first.ID, UpdateSessionInput{Notes: &notes}); err != nil {
		t.Fatalf("self-update should not conflict: %v", err)
	}

	// Different slot is free.
	in = f.input(tomorrow, "11:00")
	if _, err := f.svc.CreateSession(ctx, in); err != nil {
		t.Fatalf("free slot rejected: %v", err)
	}

	// Distinct rider on a distinct horse shares the slot. Exercises the
	// store's unique indexes too, not just the pre-check.
	in = f.input(tomorrow, "10:00")
	in.StudentID = &otherStudent.ID
	in.HorseID = otherHorse.ID
	if _, err := f.svc.CreateSession(ctx, in); err != nil {
		t.Fatalf("distinct rider and horse should share the slot: %v", err)
	}
}

func TestInactiveParticipantsRejected(t *testing.T) {
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	tomorrow := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	lapsed := &models.Student{PersonRecord: models.PersonRecord{FirstName: "Carla", LastName: "Ruiz"}, Active: false}
	if err := f.svc.dirs.Students.Create(ctx, lapsed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	in := f.input(tomorrow, "10:00")
	in.StudentID = &lapsed.ID
	if _, err := f.svc.CreateSession(ctx, in); !errs.IsBusinessRule(err) {
		t.Fatalf("expected business rule for lapsed student, got %v", err)
	}

	in = f.input(tomorrow, "10:00")
	in.InstructorID = "no-such-instructor"
	if _, err := f.svc.CreateSession(ctx, in); !errs.IsNotFound(err) {
		t.Fatalf("expected not found for missing instructor, got %v", err)
	}
}

func TestTrialRiderRules(t *testing.T) {
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	tomorrow := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	prospect := &models.TrialPerson{FirstName: "Eva", LastName: "Mena"}
	if err := f.svc.dirs.TrialPersons.Create(ctx, prospect); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Both rider references set.
	in := f.input(tomorrow, "10:00")
	in.Trial = true
	in.TrialPersonID = &prospect.ID
	if _, err := f.svc.CreateSession(ctx, in); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for double rider, got %v", err)
	}

	// Neither rider reference set.
	in = f.input(tomorrow, "10:00")
	in.Trial = true
	in.StudentID = nil
	if _, err := f.svc.CreateSession(ctx, in); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for missing rider, got %v", err)
	}

	// Trial person alone is fine.
	in = f.input(tomorrow, "10:00")
	in.Trial = true
	in.StudentID = nil
	in.TrialPersonID = &prospect.ID
	if _, err := f.svc.CreateSession(ctx, in); err != nil {
		t.Fatalf("trial with prospect: %v", err)
	}

	// A second trial in the same discipline for the same prospect.
	in = f.input(tomorrow, "11:00")
	in.Trial = true
	in.StudentID = nil
	in.TrialPersonID = &prospect.ID
	if _, err := f.svc.CreateSession(ctx, in); !errs.IsBusinessRule(err) {
		t.Fatalf("expected duplicate trial rejection, got %v", err)
	}

	// A different discipline is allowed.
	in = f.input(tomorrow, "11:00")
	in.Specialty = models.SpecialtyJumping
	in.Trial = true
	in.StudentID = nil
	in.TrialPersonID = &prospect.ID
	if _, err := f.svc.CreateSession(ctx, in); err != nil {
		t.Fatalf("trial in second discipline: %v", err)
	}

	// Regular sessions may not reference a trial person.
	in = f.input(tomorrow, "12:00")
	in.StudentID = nil
	in.TrialPersonID = &prospect.ID
	if _, err := f.svc.CreateSession(ctx, in); !errs.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateElapsedSessionKeepsNotesEditable(t *testing.T) {
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ctx := context.Background()

	// Seed a completed session dated yesterday directly; the booking
	// path refuses elapsed dates.
	sid := f.student.ID
	past := &models.Session{
		ID:           "past-session",
		Specialty:    models.SpecialtyEquitation,
		Day:          time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC),
		StartsAt:     "09:00",
		DurationMin:  30,
		State:        models.StateCompleted,
		StudentID:    &sid,
		InstructorID: f.instructor.ID,
		HorseID:      f.horse.ID,
	}
	if err := f.db.Create(past).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	notes := "great progress on posting trot"
	got, err := f.svc.UpdateSession(ctx, past.ID, UpdateSessionInput{Notes: &notes})
	if err != nil {
		t.Fatalf("update elapsed session: %v", err)
	}
	if got.Notes != notes {
		t.Fatalf("notes not applied: %q", got.Notes)
	}

	// Moving the elapsed session's time skips lead-time rules but still
	// honors the closing boundary.
	late := clock.MustTimeOfDay("18:15")
	if _, err := f.svc.UpdateSession(ctx, past.ID, UpdateSessionInput{StartsAt: &late}); !errs.IsBusinessRule(err) {
		t.Fatalf("expected closing violation, got %v", err)
	}
	early := clock.MustTimeOfDay("08:00")
	if _, err := f.svc.UpdateSession(ctx, past.ID, UpdateSessionInput{StartsAt: &early}); err != nil {
		t.Fatalf("elapsed-date reschedule should skip lead time: %v", err)
	}
}

func TestChangeStateUnconditional(t *testing.T) {
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	tomorrow := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, f.input(tomorrow, "10:00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := f.svc.ChangeState(ctx, session.ID, models.StateCancelled)
	if err != nil {
		t.Fatalf("change state: %v", err)
	}
	if got.State != models.StateCancelled {
		t.Fatalf("expected CANCELADA, got %s", got.State)
	}

	// Terminal states can still be overwritten manually.
	if _, err := f.svc.ChangeState(ctx, session.ID, models.StateAbsent); err != nil {
		t.Fatalf("overwrite terminal state: %v", err)
	}

	if _, err := f.svc.ChangeState(ctx, session.ID, "NOPE"); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for bad state, got %v", err)
	}
	if _, err := f.svc.ChangeState(ctx, "missing", models.StateCancelled); !errs.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ctx := context.Background()

	d1 := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.CreateSession(ctx, f.input(d1, "10:00")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.CreateSession(ctx, f.input(d2, "11:00")); err != nil {
		t.Fatalf("create: %v", err)
	}

	all, err := f.svc.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(all))
	}

	justD2, err := f.svc.List(ctx, ListFilter{From: &d2})
	if err != nil {
		t.Fatalf("list from: %v", err)
	}
	if len(justD2) != 1 || justD2[0].StartsAt != "11:00" {
		t.Fatalf("expected only the 11:00 session, got %+v", justD2)
	}

	byStudent, err := f.svc.List(ctx, ListFilter{StudentID: f.student.ID, State: models.StateScheduled})
	if err != nil {
		t.Fatalf("list by student: %v", err)
	}
	if len(byStudent) != 2 {
		t.Fatalf("expected 2 sessions for student, got %d", len(byStudent))
	}
}

func TestStatsForStudent(t *testing.T) {
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ctx := context.Background()

	d := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)
	one, err := f.svc.CreateSession(ctx, f.input(d, "10:00"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.CreateSession(ctx, f.input(d, "11:00")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.ChangeState(ctx, one.ID, models.StateCompleted); err != nil {
		t.Fatalf("change state: %v", err)
	}

	stats, err := f.svc.StatsForStudent(ctx, f.student.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Completed != 1 || stats.Scheduled != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if _, err := f.svc.StatsForStudent(ctx, "missing"); !errs.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
