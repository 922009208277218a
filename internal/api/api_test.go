package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/elpalenque/rienda/internal/audit"
	"github.com/elpalenque/rienda/internal/calendar"
	"github.com/elpalenque/rienda/internal/clock"
	"github.com/elpalenque/rienda/internal/directory"
	"github.com/elpalenque/rienda/internal/events"
	"github.com/elpalenque/rienda/internal/models"
	"github.com/elpalenque/rienda/internal/scheduling"
)

type apiFixture struct {
	router     chi.Router
	student    *models.Student
	instructor *models.Instructor
	horse      *models.Horse
}

func newAPIFixture(t *testing.T, now time.Time) *apiFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Student{}, &models.Instructor{}, &models.Horse{}, &models.TrialPerson{}, &models.Session{}, &models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cal, err := clock.NewCalendarAt("UTC", func() time.Time { return now })
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}

	bus := events.NewBus()
	dirs := scheduling.Directories{
		Students:     directory.NewStudents(db, zerolog.Nop()),
		Instructors:  directory.NewInstructors(db, zerolog.Nop()),
		Horses:       directory.NewHorses(db, zerolog.Nop()),
		TrialPersons: directory.NewTrialPersons(db, zerolog.Nop()),
	}
	scheduler := scheduling.NewService(db, dirs, cal, bus, zerolog.Nop())
	operator := calendar.NewOperator(db, bus, zerolog.Nop())
	auditSvc := audit.NewService(db, bus, zerolog.Nop())

	a := New(scheduler, operator, dirs, auditSvc, zerolog.Nop())
	r := chi.NewRouter()
	a.Routes(r)

	ctx := context.Background()
	f := &apiFixture{
		router:     r,
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

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) createSession(t *testing.T, day, startsAt string) models.Session {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/sessions/", map[string]any{
		"specialty":     "EQUITACION",
		"day":           day,
		"starts_at":     startsAt,
		"student_id":    f.student.ID,
		"instructor_id": f.instructor.ID,
		"horse_id":      f.horse.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d body %s", rec.Code, rec.Body.String())
	}
	var s models.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return s
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t, time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC))
	rec := f.do(t, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestSessionCreateAndFetch(t *testing.T) {
	f := newAPIFixture(t, time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC))
	s := f.createSession(t, "2025-03-06", "10:00")

	if s.State != models.StateScheduled || s.DurationMin != models.DefaultDurationMinutes {
		t.Fatalf("unexpected session: %+v", s)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/sessions/"+s.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/sessions/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSessionConflictMapsTo409(t *testing.T) {
	f := newAPIFixture(t, time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC))
	f.createSession(t, "2025-03-06", "10:00")

	rec := f.do(t, http.MethodPost, "/api/v1/sessions/", map[string]any{
		"specialty":     "EQUITACION",
		"day":           "2025-03-06",
		"starts_at":     "10:00",
		"student_id":    f.student.ID,
		"instructor_id": f.instructor.ID,
		"horse_id":      f.horse.ID,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestLeadTimeViolationMapsTo422(t *testing.T) {
	f := newAPIFixture(t, time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC))

	rec := f.do(t, http.MethodPost, "/api/v1/sessions/", map[string]any{
		"specialty":     "EQUITACION",
		"day":           "2025-03-05",
		"starts_at":     "10:30",
		"student_id":    f.student.ID,
		"instructor_id": f.instructor.ID,
		"horse_id":      f.horse.ID,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestSessionStateChange(t *testing.T) {
	f := newAPIFixture(t, time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC))
	s := f.createSession(t, "2025-03-06", "10:00")

	rec := f.do(t, http.MethodPost, "/api/v1/sessions/"+s.ID+"/state", map[string]string{"state": "CANCELADA"})
	if rec.Code != http.StatusOK {
		t.Fatalf("change state: status %d body %s", rec.Code, rec.Body.String())
	}
	var got models.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.State != models.StateCancelled {
		t.Fatalf("expected CANCELADA, got %s", got.State)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/sessions/"+s.ID+"/state", map[string]string{"state": "BOGUS"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad state, got %d", rec.Code)
	}
}

func TestSessionListFilters(t *testing.T) {
	f := newAPIFixture(t, time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC))
	f.createSession(t, "2025-03-06", "10:00")
	f.createSession(t, "2025-03-07", "11:00")

	rec := f.do(t, http.MethodGet, "/api/v1/sessions/?from=2025-03-07", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var sessions []models.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sessions) != 1 || sessions[0].StartsAt != "11:00" {
		t.Fatalf("expected only the 11:00 session, got %+v", sessions)
	}
}

func TestSessionStats(t *testing.T) {
	f := newAPIFixture(t, time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC))
	f.createSession(t, "2025-03-06", "10:00")
	f.createSession(t, "2025-03-07", "11:00")

	rec := f.do(t, http.MethodPost, "/api/v1/sessions/", map[string]any{
		"specialty":     "EQUITACION",
		"day":           "2025-03-01",
		"starts_at":     "15:00",
		"student_id":    f.student.ID,
		"instructor_id": f.instructor.ID,
		"horse_id":      f.horse.ID,
		"state":         "COMPLETADA",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("import: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/v1/sessions/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: status %d body %s", rec.Code, rec.Body.String())
	}
	var counts scheduling.SessionCounts
	if err := json.Unmarshal(rec.Body.Bytes(), &counts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if counts.Scheduled != 2 || counts.Completed != 1 || counts.Total != 3 {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/sessions/stats?from=2025-03-06", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &counts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if counts.Total != 2 || counts.Completed != 0 {
		t.Fatalf("unexpected filtered counts: %+v", counts)
	}
}

func TestCalendarEndpoints(t *testing.T) {
	f := newAPIFixture(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	f.createSession(t, "2025-03-05", "10:00")

	rec := f.do(t, http.MethodPost, "/api/v1/calendar/copy", map[string]any{
		"origin_start": "2025-03-03",
		"dest_start":   "2025-03-10",
		"weeks":        1,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("copy: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/v1/sessions/?from=2025-03-12&to=2025-03-12", nil)
	var sessions []models.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected the copied session, got %+v", sessions)
	}

	// Inverted range is rejected before anything is deleted.
	rec = f.do(t, http.MethodDelete, "/api/v1/calendar/sessions?from=2025-03-12&to=2025-03-11", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/api/v1/calendar/sessions?from=2025-03-10&to=2025-03-16", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d body %s", rec.Code, rec.Body.String())
	}
	var result map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result["count"].(float64) != 1 {
		t.Fatalf("expected 1 deleted, got %v", result["count"])
	}
}

func TestDirectoryEndpoints(t *testing.T) {
	f := newAPIFixture(t, time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC))

	rec := f.do(t, http.MethodPost, "/api/v1/horses/", map[string]any{
		"name": "Tornado", "kind": "PRIVADO", "available": true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create horse: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/v1/horses/", map[string]any{"kind": "ESCUELA"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unnamed horse, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/horses/?available=true", nil)
	var horses []models.Horse
	if err := json.Unmarshal(rec.Body.Bytes(), &horses); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(horses) != 2 {
		t.Fatalf("expected 2 horses, got %d", len(horses))
	}

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/students/%s/stats", f.student.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: status %d", rec.Code)
	}
}
