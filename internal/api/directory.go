/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/elpalenque/rienda/internal/models"
)

func (a *API) handleStudentsList(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	students, err := a.dirs.Students.List(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (a *API) handleStudentsCreate(w http.ResponseWriter, r *http.Request) {
	var student models.Student
	if err := json.NewDecoder(r.Body).Decode(&student); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if student.FirstName == "" || student.LastName == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	if err := a.dirs.Students.Create(r.Context(), &student); err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusCreated, student)
}

func (a *API) handleStudentsGet(w http.ResponseWriter, r *http.Request) {
	student, err := a.dirs.Students.Get(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (a *API) handleStudentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.scheduler.StatsForStudent(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleInstructorsList(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	instructors, err := a.dirs.Instructors.List(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, instructors)
}

func (a *API) handleInstructorsCreate(w http.ResponseWriter, r *http.Request) {
	var instructor models.Instructor
	if err := json.NewDecoder(r.Body).Decode(&instructor); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if instructor.FirstName == "" || instructor.LastName == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	if err := a.dirs.Instructors.Create(r.Context(), &instructor); err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusCreated, instructor)
}

func (a *API) handleHorsesList(w http.ResponseWriter, r *http.Request) {
	availableOnly := r.URL.Query().Get("available") == "true"
	horses, err := a.dirs.Horses.List(r.Context(), availableOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, horses)
}

func (a *API) handleHorsesCreate(w http.ResponseWriter, r *http.Request) {
	var horse models.Horse
	if err := json.NewDecoder(r.Body).Decode(&horse); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if horse.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	if err := a.dirs.Horses.Create(r.Context(), &horse); err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusCreated, horse)
}

func (a *API) handleTrialPersonsList(w http.ResponseWriter, r *http.Request) {
	persons, err := a.dirs.TrialPersons.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, persons)
}

func (a *API) handleTrialPersonsCreate(w http.ResponseWriter, r *http.Request) {
	var person models.TrialPerson
	if err := json.NewDecoder(r.Body).Decode(&person); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if person.FirstName == "" || person.LastName == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	if err := a.dirs.TrialPersons.Create(r.Context(), &person); err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusCreated, person)
}

func (a *API) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := a.auditSvc.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
