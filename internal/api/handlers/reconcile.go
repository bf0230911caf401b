// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/sweeparr/sweeparr/internal/models"
	"github.com/sweeparr/sweeparr/internal/services/reconcile"
)

const defaultRunHistoryLimit = 20

type ReconcileHandler struct {
	service  *reconcile.Service
	runStore *models.ReconcileRunStore
}

func NewReconcileHandler(service *reconcile.Service, runStore *models.ReconcileRunStore) *ReconcileHandler {
	return &ReconcileHandler{
		service:  service,
		runStore: runStore,
	}
}

func (h *ReconcileHandler) Routes(r chi.Router) {
	r.Post("/run", h.TriggerRun)
	r.Get("/runs", h.ListRuns)
}

type triggerRunRequest struct {
	DryRun bool `json:"dry_run"`
}

// TriggerRun starts a reconciliation pass and waits for its result.
// Manual triggers are synchronous so the caller sees what happened;
// a run already in progress comes back immediately as an empty result.
// Dry run is requested via the dryRun query parameter or the JSON body.
func (h *ReconcileHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerRunRequest
	if r.ContentLength > 0 && !DecodeJSON(w, r, &req) {
		return
	}

	if v := r.URL.Query().Get("dryRun"); v != "" {
		dryRun, err := strconv.ParseBool(v)
		if err != nil {
			RespondError(w, http.StatusBadRequest, "Invalid dryRun query parameter")
			return
		}
		req.DryRun = req.DryRun || dryRun
	}

	result, err := h.service.Run(r.Context(), req.DryRun, "api")
	if err != nil {
		log.Error().Err(err).Bool("dryRun", req.DryRun).Msg("Manual reconciliation run failed")
		RespondError(w, http.StatusInternalServerError, "Reconciliation run failed: "+err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

func (h *ReconcileHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			RespondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	runs, err := h.runStore.ListRecent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list reconciliation runs")
		RespondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	RespondJSON(w, http.StatusOK, runs)
}
