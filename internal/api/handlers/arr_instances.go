// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/sweeparr/sweeparr/internal/arr"
	"github.com/sweeparr/sweeparr/internal/models"
)

type ArrInstancesHandler struct {
	instanceStore *models.ArrInstanceStore
	manager       *arr.Manager
}

func NewArrInstancesHandler(instanceStore *models.ArrInstanceStore, manager *arr.Manager) *ArrInstancesHandler {
	return &ArrInstancesHandler{
		instanceStore: instanceStore,
		manager:       manager,
	}
}

func (h *ArrInstancesHandler) Routes(r chi.Router) {
	r.Get("/", h.ListInstances)
	r.Post("/", h.CreateInstance)
	r.Route("/{instanceID}", func(r chi.Router) {
		r.Get("/", h.GetInstance)
		r.Put("/", h.UpdateInstance)
		r.Delete("/", h.DeleteInstance)
		r.Post("/test", h.TestInstance)
	})
}

type createInstanceRequest struct {
	Type           string `json:"type"`
	Name           string `json:"name"`
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type updateInstanceRequest struct {
	Name           *string `json:"name"`
	BaseURL        *string `json:"base_url"`
	APIKey         *string `json:"api_key"`
	Enabled        *bool   `json:"enabled"`
	TimeoutSeconds *int    `json:"timeout_seconds"`
}

func (h *ArrInstancesHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := h.instanceStore.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list arr instances")
		RespondError(w, http.StatusInternalServerError, "Failed to list instances")
		return
	}

	RespondJSON(w, http.StatusOK, instances)
}

func (h *ArrInstancesHandler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	instanceType, err := models.ParseArrInstanceType(req.Type)
	if err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Name == "" || req.BaseURL == "" || req.APIKey == "" {
		RespondError(w, http.StatusBadRequest, "name, base_url and api_key are required")
		return
	}

	instance, err := h.instanceStore.Create(r.Context(), instanceType, req.Name, req.BaseURL, req.APIKey, req.TimeoutSeconds)
	if err != nil {
		log.Error().Err(err).Str("name", req.Name).Msg("Failed to create arr instance")
		RespondError(w, http.StatusInternalServerError, "Failed to create instance")
		return
	}

	RespondJSON(w, http.StatusCreated, instance)
}

func (h *ArrInstancesHandler) GetInstance(w http.ResponseWriter, r *http.Request) {
	instanceID, ok := ParseIntParam(w, r, "instanceID")
	if !ok {
		return
	}

	instance, err := h.instanceStore.Get(r.Context(), instanceID)
	if err != nil {
		if errors.Is(err, models.ErrArrInstanceNotFound) {
			RespondError(w, http.StatusNotFound, "Instance not found")
			return
		}
		log.Error().Err(err).Int("instanceID", instanceID).Msg("Failed to get arr instance")
		RespondError(w, http.StatusInternalServerError, "Failed to get instance")
		return
	}

	RespondJSON(w, http.StatusOK, instance)
}

func (h *ArrInstancesHandler) UpdateInstance(w http.ResponseWriter, r *http.Request) {
	instanceID, ok := ParseIntParam(w, r, "instanceID")
	if !ok {
		return
	}

	var req updateInstanceRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	instance, err := h.instanceStore.Update(r.Context(), instanceID, models.ArrInstanceUpdateParams{
		Name:           req.Name,
		BaseURL:        req.BaseURL,
		APIKey:         req.APIKey,
		Enabled:        req.Enabled,
		TimeoutSeconds: req.TimeoutSeconds,
	})
	if err != nil {
		if errors.Is(err, models.ErrArrInstanceNotFound) {
			RespondError(w, http.StatusNotFound, "Instance not found")
			return
		}
		log.Error().Err(err).Int("instanceID", instanceID).Msg("Failed to update arr instance")
		RespondError(w, http.StatusInternalServerError, "Failed to update instance")
		return
	}

	// Cached clients hold the old base URL and credentials.
	h.manager.Invalidate(instanceID)

	RespondJSON(w, http.StatusOK, instance)
}

func (h *ArrInstancesHandler) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	instanceID, ok := ParseIntParam(w, r, "instanceID")
	if !ok {
		return
	}

	if err := h.instanceStore.Delete(r.Context(), instanceID); err != nil {
		if errors.Is(err, models.ErrArrInstanceNotFound) {
			RespondError(w, http.StatusNotFound, "Instance not found")
			return
		}
		log.Error().Err(err).Int("instanceID", instanceID).Msg("Failed to delete arr instance")
		RespondError(w, http.StatusInternalServerError, "Failed to delete instance")
		return
	}

	h.manager.Invalidate(instanceID)

	RespondJSON(w, http.StatusOK, map[string]string{"message": "Instance deleted"})
}

func (h *ArrInstancesHandler) TestInstance(w http.ResponseWriter, r *http.Request) {
	instanceID, ok := ParseIntParam(w, r, "instanceID")
	if !ok {
		return
	}

	svc, err := h.manager.ServiceFor(r.Context(), instanceID)
	if err != nil {
		if errors.Is(err, models.ErrArrInstanceNotFound) {
			RespondError(w, http.StatusNotFound, "Instance not found")
			return
		}
		log.Error().Err(err).Int("instanceID", instanceID).Msg("Failed to resolve arr instance client")
		RespondError(w, http.StatusInternalServerError, "Failed to resolve instance client")
		return
	}

	if err := svc.Client().Ping(r.Context()); err != nil {
		RespondJSON(w, http.StatusOK, map[string]any{
			"connected": false,
			"error":     err.Error(),
		})
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{"connected": true})
}
