/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/elpalenque/rienda/internal/clock"
	"github.com/elpalenque/rienda/internal/models"
	"github.com/elpalenque/rienda/internal/scheduling"
)

type createSessionRequest struct {
	Specialty     string  `json:"specialty"`
	Day           string  `json:"day"`
	StartsAt      string  `json:"starts_at"`
	DurationMin   int     `json:"duration_min"`
	Notes         string  `json:"notes"`
	Trial         bool    `json:"trial"`
	StudentID     *string `json:"student_id"`
	TrialPersonID *string `json:"trial_person_id"`
	InstructorID  string  `json:"instructor_id"`
	HorseID       string  `json:"horse_id"`
	State         string  `json:"state"`
}

func (a *API) handleSessionsCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	day, err := clock.ParseDay(req.Day)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	startsAt, err := clock.ParseTimeOfDay(req.StartsAt)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	session, err := a.scheduler.CreateSession(r.Context(), scheduling.CreateSessionInput{
		Specialty:     models.Specialty(req.Specialty),
		Day:           day,
		StartsAt:      startsAt,
		DurationMin:   req.DurationMin,
		Notes:         req.Notes,
		Trial:         req.Trial,
		StudentID:     req.StudentID,
		TrialPersonID: req.TrialPersonID,
		InstructorID:  req.InstructorID,
		HorseID:       req.HorseID,
		State:         models.SessionState(req.State),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

type updateSessionRequest struct {
	Specialty    *string `json:"specialty"`
	Day          *string `json:"day"`
	StartsAt     *string `json:"starts_at"`
	DurationMin  *int    `json:"duration_min"`
	Notes        *string `json:"notes"`
	InstructorID *string `json:"instructor_id"`
	HorseID      *string `json:"horse_id"`
}

func (a *API) handleSessionsUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	in := scheduling.UpdateSessionInput{
		Notes:        req.Notes,
		DurationMin:  req.DurationMin,
		InstructorID: req.InstructorID,
		HorseID:      req.HorseID,
	}
	if req.Specialty != nil {
		s := models.Specialty(*req.Specialty)
		in.Specialty = &s
	}
	if req.Day != nil {
		day, err := clock.ParseDay(*req.Day)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		in.Day = &day
	}
	if req.StartsAt != nil {
		t, err := clock.ParseTimeOfDay(*req.StartsAt)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		in.StartsAt = &t
	}

	session, err := a.scheduler.UpdateSession(r.Context(), id, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type changeStateRequest struct {
	State string `json:"state"`
}

func (a *API) handleSessionsChangeState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var req changeStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	session, err := a.scheduler.ChangeState(r.Context(), id, models.SessionState(req.State))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleSessionsGet(w http.ResponseWriter, r *http.Request) {
	session, err := a.scheduler.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleSessionsDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.scheduler.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) handleSessionsList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	sessions, err := a.scheduler.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (a *API) handleSessionsStats(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	counts, err := a.scheduler.CountByState(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func parseListFilter(r *http.Request) (scheduling.ListFilter, error) {
	q := r.URL.Query()
	filter := scheduling.ListFilter{
		State:        models.SessionState(q.Get("state")),
		Specialty:    models.Specialty(q.Get("specialty")),
		StudentID:    q.Get("student_id"),
		InstructorID: q.Get("instructor_id"),
		HorseID:      q.Get("horse_id"),
	}
	var err error
	if filter.From, err = optionalDay(q.Get("from")); err != nil {
		return filter, err
	}
	if filter.To, err = optionalDay(q.Get("to")); err != nil {
		return filter, err
	}
	if v := q.Get("trial"); v != "" {
		trial := v == "true" || v == "1"
		filter.Trial = &trial
	}
	return filter, nil
}

func optionalDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := clock.ParseDay(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
