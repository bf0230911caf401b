// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/sweeparr/sweeparr/internal/models"
)

type UsersHandler struct {
	userStore *models.UserStore
}

func NewUsersHandler(userStore *models.UserStore) *UsersHandler {
	return &UsersHandler{userStore: userStore}
}

func (h *UsersHandler) Routes(r chi.Router) {
	r.Get("/", h.ListUsers)
	r.Post("/", h.CreateUser)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", h.GetUser)
		r.Patch("/sync", h.SetSyncEnabled)
	})
}

type createUserRequest struct {
	Name        string `json:"name"`
	PlexToken   string `json:"plex_token"`
	SyncEnabled bool   `json:"sync_enabled"`
}

type setSyncEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *UsersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userStore.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users")
		RespondError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	RespondJSON(w, http.StatusOK, users)
}

func (h *UsersHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if req.Name == "" {
		RespondError(w, http.StatusBadRequest, "name is required")
		return
	}

	user, err := h.userStore.Create(r.Context(), req.Name, req.PlexToken, req.SyncEnabled)
	if err != nil {
		log.Error().Err(err).Str("name", req.Name).Msg("Failed to create user")
		RespondError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	RespondJSON(w, http.StatusCreated, user)
}

func (h *UsersHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := ParseIntParam(w, r, "userID")
	if !ok {
		return
	}

	user, err := h.userStore.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			RespondError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Error().Err(err).Int("userID", userID).Msg("Failed to get user")
		RespondError(w, http.StatusInternalServerError, "Failed to get user")
		return
	}

	RespondJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) SetSyncEnabled(w http.ResponseWriter, r *http.Request) {
	userID, ok := ParseIntParam(w, r, "userID")
	if !ok {
		return
	}

	var req setSyncEnabledRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := h.userStore.SetSyncEnabled(r.Context(), userID, req.Enabled); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			RespondError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Error().Err(err).Int("userID", userID).Msg("Failed to update user sync flag")
		RespondError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}
