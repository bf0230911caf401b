// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/sweeparr/sweeparr/internal/models"
	"github.com/sweeparr/sweeparr/internal/services/notifications"
)

type NotificationsHandler struct {
	targetStore *models.NotificationTargetStore
	service     *notifications.Service
}

func NewNotificationsHandler(targetStore *models.NotificationTargetStore, service *notifications.Service) *NotificationsHandler {
	return &NotificationsHandler{
		targetStore: targetStore,
		service:     service,
	}
}

func (h *NotificationsHandler) Routes(r chi.Router) {
	r.Get("/", h.ListTargets)
	r.Post("/", h.CreateTarget)
	r.Get("/events", h.ListEventTypes)
	r.Route("/{targetID}", func(r chi.Router) {
		r.Delete("/", h.DeleteTarget)
		r.Post("/test", h.TestTarget)
	})
}

type createTargetRequest struct {
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	EventTypes []string `json:"event_types"`
}

func (h *NotificationsHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := h.targetStore.ListEnabled(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list notification targets")
		RespondError(w, http.StatusInternalServerError, "Failed to list notification targets")
		return
	}

	RespondJSON(w, http.StatusOK, targets)
}

func (h *NotificationsHandler) ListEventTypes(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, notifications.EventDefinitions())
}

func (h *NotificationsHandler) CreateTarget(w http.ResponseWriter, r *http.Request) {
	var req createTargetRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if req.Name == "" || req.URL == "" {
		RespondError(w, http.StatusBadRequest, "name and url are required")
		return
	}

	if err := notifications.ValidateURL(req.URL); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid notification URL: "+err.Error())
		return
	}

	target, err := h.targetStore.Create(r.Context(), req.Name, req.URL, req.EventTypes)
	if err != nil {
		log.Error().Err(err).Str("name", req.Name).Msg("Failed to create notification target")
		RespondError(w, http.StatusInternalServerError, "Failed to create notification target")
		return
	}

	RespondJSON(w, http.StatusCreated, target)
}

func (h *NotificationsHandler) DeleteTarget(w http.ResponseWriter, r *http.Request) {
	targetID, ok := ParseIntParam(w, r, "targetID")
	if !ok {
		return
	}

	if err := h.targetStore.Delete(r.Context(), targetID); err != nil {
		if errors.Is(err, models.ErrNotificationTargetNotFound) {
			RespondError(w, http.StatusNotFound, "Notification target not found")
			return
		}
		log.Error().Err(err).Int("targetID", targetID).Msg("Failed to delete notification target")
		RespondError(w, http.StatusInternalServerError, "Failed to delete notification target")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"message": "Notification target deleted"})
}

func (h *NotificationsHandler) TestTarget(w http.ResponseWriter, r *http.Request) {
	targetID, ok := ParseIntParam(w, r, "targetID")
	if !ok {
		return
	}

	target, err := h.targetStore.Get(r.Context(), targetID)
	if err != nil {
		if errors.Is(err, models.ErrNotificationTargetNotFound) {
			RespondError(w, http.StatusNotFound, "Notification target not found")
			return
		}
		log.Error().Err(err).Int("targetID", targetID).Msg("Failed to get notification target")
		RespondError(w, http.StatusInternalServerError, "Failed to get notification target")
		return
	}

	if err := h.service.SendTest(r.Context(), target, "sweeparr test", "Test notification from sweeparr."); err != nil {
		RespondError(w, http.StatusBadGateway, "Test notification failed: "+err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"message": "Test notification sent"})
}
