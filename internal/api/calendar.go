/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"

	"github.com/elpalenque/rienda/internal/clock"
	"github.com/elpalenque/rienda/internal/errs"
)

type calendarCopyRequest struct {
	OriginStart string `json:"origin_start"`
	DestStart   string `json:"dest_start"`
	Weeks       int    `json:"weeks"`
}

func (a *API) handleCalendarCopy(w http.ResponseWriter, r *http.Request) {
	var req calendarCopyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	origin, err := clock.ParseDay(req.OriginStart)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dest, err := clock.ParseDay(req.DestStart)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := a.calendar.CopyClasses(r.Context(), origin, dest, req.Weeks); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "copied"})
}

func (a *API) handleCalendarDelete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("from") == "" || q.Get("to") == "" {
		writeDomainError(w, errs.Validationf("both from and to are required"))
		return
	}
	from, err := clock.ParseDay(q.Get("from"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	to, err := clock.ParseDay(q.Get("to"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	deleted, err := a.calendar.DeleteClasses(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "count": deleted})
}
