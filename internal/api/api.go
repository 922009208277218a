/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the scheduling subsystem over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/elpalenque/rienda/internal/audit"
	"github.com/elpalenque/rienda/internal/calendar"
	"github.com/elpalenque/rienda/internal/errs"
	"github.com/elpalenque/rienda/internal/scheduling"
	"github.com/elpalenque/rienda/internal/version"
)

// API exposes HTTP handlers.
type API struct {
	scheduler *scheduling.Service
	calendar  *calendar.Operator
	dirs      scheduling.Directories
	auditSvc  *audit.Service
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(scheduler *scheduling.Service, cal *calendar.Operator, dirs scheduling.Directories, auditSvc *audit.Service, logger zerolog.Logger) *API {
	return &API{
		scheduler: scheduler,
		calendar:  cal,
		dirs:      dirs,
		auditSvc:  auditSvc,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts all API routes on the router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", a.handleSessionsList)
			r.Post("/", a.handleSessionsCreate)
			r.Get("/stats", a.handleSessionsStats)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", a.handleSessionsGet)
				r.Patch("/", a.handleSessionsUpdate)
				r.Delete("/", a.handleSessionsDelete)
				r.Post("/state", a.handleSessionsChangeState)
			})
		})

		r.Route("/calendar", func(r chi.Router) {
			r.Post("/copy", a.handleCalendarCopy)
			r.Delete("/sessions", a.handleCalendarDelete)
		})

		r.Route("/students", func(r chi.Router) {
			r.Get("/", a.handleStudentsList)
			r.Post("/", a.handleStudentsCreate)
			r.Get("/{studentID}", a.handleStudentsGet)
			r.Get("/{studentID}/stats", a.handleStudentStats)
		})

		r.Route("/instructors", func(r chi.Router) {
			r.Get("/", a.handleInstructorsList)
			r.Post("/", a.handleInstructorsCreate)
		})

		r.Route("/horses", func(r chi.Router) {
			r.Get("/", a.handleHorsesList)
			r.Post("/", a.handleHorsesCreate)
		})

		r.Route("/trial-persons", func(r chi.Router) {
			r.Get("/", a.handleTrialPersonsList)
			r.Post("/", a.handleTrialPersonsCreate)
		})

		r.Get("/audit", a.handleAuditRecent)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var status int
	var code string
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		status, code = http.StatusNotFound, "not_found"
	case errs.KindConflict:
		status, code = http.StatusConflict, "conflict"
	case errs.KindBusinessRule:
		status, code = http.StatusUnprocessableEntity, "business_rule_violation"
	case errs.KindValidation:
		status, code = http.StatusBadRequest, "validation_error"
	default:
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, status, map[string]string{"error": code, "message": err.Error()})
}
