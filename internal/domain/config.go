// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DeletionMode selects which reconciliation strategy decides whether a
// tracked item is a deletion candidate.
type DeletionMode string

const (
	// DeletionModeWatchlist deletes items no active watchlist references.
	DeletionModeWatchlist DeletionMode = "watchlist"
	// DeletionModeTagBased deletes items carrying a removal tag.
	DeletionModeTagBased DeletionMode = "tag-based"
)

// ParseDeletionMode validates and normalizes a deletion mode string.
// An empty value defaults to watchlist mode.
func ParseDeletionMode(value string) (DeletionMode, error) {
	switch DeletionMode(strings.ToLower(strings.TrimSpace(value))) {
	case DeletionModeWatchlist, "":
		return DeletionModeWatchlist, nil
	case DeletionModeTagBased:
		return DeletionModeTagBased, nil
	default:
		return "", fmt.Errorf("invalid deletion mode: %s (must be 'watchlist' or 'tag-based')", value)
	}
}

// NotifyPolicy controls when a reconciliation run dispatches a result
// notification.
type NotifyPolicy string

const (
	NotifyAlways   NotifyPolicy = "always"
	NotifyOnAction NotifyPolicy = "on-action"
	NotifyNever    NotifyPolicy = "never"
)

// ParseNotifyPolicy validates and normalizes a notify policy string.
func ParseNotifyPolicy(value string) (NotifyPolicy, error) {
	switch NotifyPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case NotifyAlways, "":
		return NotifyAlways, nil
	case NotifyOnAction:
		return NotifyOnAction, nil
	case NotifyNever:
		return NotifyNever, nil
	default:
		return "", fmt.Errorf("invalid notify policy: %s (must be 'always', 'on-action' or 'never')", value)
	}
}

// DeletionPolicy holds the reconciliation engine settings. It is loaded
// from the config file and validated on startup; an invalid safety
// threshold is a fatal configuration error, never silently defaulted.
type DeletionPolicy struct {
	DeleteMovie           bool    `toml:"deleteMovie" mapstructure:"deleteMovie"`
	DeleteEndedShow       bool    `toml:"deleteEndedShow" mapstructure:"deleteEndedShow"`
	DeleteContinuingShow  bool    `toml:"deleteContinuingShow" mapstructure:"deleteContinuingShow"`
	DeleteFiles           bool    `toml:"deleteFiles" mapstructure:"deleteFiles"`
	DeletionMode          string  `toml:"deletionMode" mapstructure:"deletionMode"`
	MaxDeletionPrevention float64 `toml:"maxDeletionPrevention" mapstructure:"maxDeletionPrevention"`
	RemovalTagPrefix      string  `toml:"removalTagPrefix" mapstructure:"removalTagPrefix"`
	RespectUserSyncFlag   bool    `toml:"respectUserSyncFlag" mapstructure:"respectUserSyncFlag"`

	PlaylistProtection     bool   `toml:"playlistProtection" mapstructure:"playlistProtection"`
	ProtectionPlaylistName string `toml:"protectionPlaylistName" mapstructure:"protectionPlaylistName"`

	NotifyPolicy string `toml:"notifyPolicy" mapstructure:"notifyPolicy"`
}

// ErrInvalidSafetyThreshold indicates a maxDeletionPrevention value that
// cannot be used to guard deletions. Running with a broken threshold
// risks mass deletion, so this is always fatal.
var ErrInvalidSafetyThreshold = errors.New("maxDeletionPrevention must be a number greater than 0")

// AnyDeletionEnabled reports whether at least one content-type deletion
// flag is set. When false, a reconciliation run is a no-op.
func (p *DeletionPolicy) AnyDeletionEnabled() bool {
	return p.DeleteMovie || p.DeleteEndedShow || p.DeleteContinuingShow
}

// Mode resolves the configured deletion mode, defaulting to watchlist.
func (p *DeletionPolicy) Mode() DeletionMode {
	mode, err := ParseDeletionMode(p.DeletionMode)
	if err != nil {
		return DeletionModeWatchlist
	}
	return mode
}

// Validate checks policy settings that must fail fast.
func (p *DeletionPolicy) Validate() error {
	if math.IsNaN(p.MaxDeletionPrevention) || math.IsInf(p.MaxDeletionPrevention, 0) || p.MaxDeletionPrevention <= 0 {
		return ErrInvalidSafetyThreshold
	}
	if _, err := ParseDeletionMode(p.DeletionMode); err != nil {
		return err
	}
	if _, err := ParseNotifyPolicy(p.NotifyPolicy); err != nil {
		return err
	}
	if p.PlaylistProtection && strings.TrimSpace(p.ProtectionPlaylistName) == "" {
		return errors.New("protectionPlaylistName is required when playlistProtection is enabled")
	}
	if p.Mode() == DeletionModeTagBased && strings.TrimSpace(p.RemovalTagPrefix) == "" {
		return errors.New("removalTagPrefix is required in tag-based mode")
	}
	return nil
}

// Config represents the application configuration
type Config struct {
	Version       string
	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	BaseURL       string `toml:"baseUrl" mapstructure:"baseUrl"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`
	DatabasePath  string `toml:"databasePath" mapstructure:"databasePath"`
	SessionSecret string `toml:"sessionSecret" mapstructure:"sessionSecret"`

	MetricsEnabled bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost    string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort    int    `toml:"metricsPort" mapstructure:"metricsPort"`

	// PlexHost is the media server used for protection playlists.
	// Per-user tokens live in the users table, not here.
	PlexHost string `toml:"plexHost" mapstructure:"plexHost"`

	// ReconcileIntervalHours is how often the scheduler triggers a run.
	// Zero disables scheduled runs; manual triggers still work.
	ReconcileIntervalHours int `toml:"reconcileIntervalHours" mapstructure:"reconcileIntervalHours"`

	Deletion DeletionPolicy `toml:"deletion" mapstructure:"deletion"`
}

// ReconcileInterval returns the scheduler interval, or zero when
// scheduled reconciliation is disabled.
func (c *Config) ReconcileInterval() time.Duration {
	if c.ReconcileIntervalHours <= 0 {
		return 0
	}
	return time.Duration(c.ReconcileIntervalHours) * time.Hour
}

// Validate checks settings that must fail fast on startup.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if err := c.Deletion.Validate(); err != nil {
		return err
	}
	return nil
}
