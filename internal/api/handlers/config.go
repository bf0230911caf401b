// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sweeparr/sweeparr/internal/domain"
)

type ConfigHandler struct {
	getConfig func() *domain.Config
	version   string
}

func NewConfigHandler(getConfig func() *domain.Config, version string) *ConfigHandler {
	return &ConfigHandler{
		getConfig: getConfig,
		version:   version,
	}
}

func (h *ConfigHandler) Routes(r chi.Router) {
	r.Get("/", h.GetConfig)
}

type configResponse struct {
	Version                string  `json:"version"`
	DeletionMode           string  `json:"deletion_mode"`
	DeleteMovie            bool    `json:"delete_movie"`
	DeleteEndedShow        bool    `json:"delete_ended_show"`
	DeleteContinuingShow   bool    `json:"delete_continuing_show"`
	DeleteFiles            bool    `json:"delete_files"`
	MaxDeletionPrevention  float64 `json:"max_deletion_prevention"`
	RemovalTagPrefix       string  `json:"removal_tag_prefix"`
	RespectUserSyncFlag    bool    `json:"respect_user_sync_flag"`
	PlaylistProtection     bool    `json:"playlist_protection"`
	ProtectionPlaylistName string  `json:"protection_playlist_name"`
	NotifyPolicy           string  `json:"notify_policy"`
	ReconcileIntervalHours int     `json:"reconcile_interval_hours"`
}

// GetConfig exposes the effective deletion policy. Secrets never
// appear here; instance API keys and Plex tokens live in their stores.
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.getConfig()
	policy := cfg.Deletion

	RespondJSON(w, http.StatusOK, configResponse{
		Version:                h.version,
		DeletionMode:           string(policy.Mode()),
		DeleteMovie:            policy.DeleteMovie,
		DeleteEndedShow:        policy.DeleteEndedShow,
		DeleteContinuingShow:   policy.DeleteContinuingShow,
		DeleteFiles:            policy.DeleteFiles,
		MaxDeletionPrevention:  policy.MaxDeletionPrevention,
		RemovalTagPrefix:       policy.RemovalTagPrefix,
		RespectUserSyncFlag:    policy.RespectUserSyncFlag,
		PlaylistProtection:     policy.PlaylistProtection,
		ProtectionPlaylistName: policy.ProtectionPlaylistName,
		NotifyPolicy:           policy.NotifyPolicy,
		ReconcileIntervalHours: cfg.ReconcileIntervalHours,
	})
}
