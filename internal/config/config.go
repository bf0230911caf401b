// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads the application configuration from a TOML file
// with environment variable overrides (SWEEPARR__* keys).
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/sweeparr/sweeparr/internal/domain"
)

const (
	envPrefix      = "SWEEPARR"
	configFileName = "config"
	configFileType = "toml"
)

// AppConfig wraps the parsed configuration and the viper instance that
// produced it, so callers can react to config file changes.
type AppConfig struct {
	Config *domain.Config

	viper *viper.Viper
	mu    sync.RWMutex

	onReload []func(*domain.Config)
}

// New loads configuration from configDir (or default locations when
// empty). A missing config file is created with defaults.
func New(configDir string, version string) (*AppConfig, error) {
	c := &AppConfig{
		viper: viper.New(),
	}

	c.setDefaults()

	c.viper.SetConfigName(configFileName)
	c.viper.SetConfigType(configFileType)

	if configDir != "" {
		c.viper.AddConfigPath(configDir)
	} else {
		c.viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			c.viper.AddConfigPath(filepath.Join(home, ".config", "sweeparr"))
		}
	}

	bindEnvKeys(c.viper)

	if err := c.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if configDir != "" {
			if writeErr := c.writeDefaultConfig(configDir); writeErr != nil {
				return nil, writeErr
			}
			if readErr := c.viper.ReadInConfig(); readErr != nil {
				return nil, fmt.Errorf("read generated config: %w", readErr)
			}
		}
	}

	cfg := &domain.Config{}
	if err := c.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Version = version

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = c.defaultDatabasePath(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c.Config = cfg
	return c, nil
}

// Get returns the current configuration snapshot.
func (c *AppConfig) Get() *domain.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Config
}

// OnReload registers a callback invoked after a successful config file
// reload. Callbacks run on viper's watch goroutine.
func (c *AppConfig) OnReload(fn func(*domain.Config)) {
	c.mu.Lock()
	c.onReload = append(c.onReload, fn)
	c.mu.Unlock()
}

// Watch starts watching the config file for changes. Reload failures
// keep the previous configuration.
func (c *AppConfig) Watch() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		cfg := &domain.Config{}
		if err := c.viper.Unmarshal(cfg); err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("config: reload failed, keeping previous configuration")
			return
		}
		cfg.Version = c.Config.Version
		if cfg.DatabasePath == "" {
			cfg.DatabasePath = c.defaultDatabasePath(cfg)
		}
		if err := cfg.Validate(); err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("config: reloaded configuration invalid, keeping previous")
			return
		}

		c.mu.Lock()
		c.Config = cfg
		callbacks := append(([]func(*domain.Config))(nil), c.onReload...)
		c.mu.Unlock()

		log.Info().Str("file", e.Name).Msg("config: reloaded")
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	c.viper.WatchConfig()
}

func (c *AppConfig) setDefaults() {
	c.viper.SetDefault("host", "127.0.0.1")
	c.viper.SetDefault("port", 8078)
	c.viper.SetDefault("baseUrl", "/")
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("sessionSecret", generateSecureToken(24))
	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("metricsHost", "127.0.0.1")
	c.viper.SetDefault("metricsPort", 9078)
	c.viper.SetDefault("reconcileIntervalHours", 24)

	c.viper.SetDefault("deletion.deleteMovie", false)
	c.viper.SetDefault("deletion.deleteEndedShow", false)
	c.viper.SetDefault("deletion.deleteContinuingShow", false)
	c.viper.SetDefault("deletion.deleteFiles", false)
	c.viper.SetDefault("deletion.deletionMode", string(domain.DeletionModeWatchlist))
	c.viper.SetDefault("deletion.maxDeletionPrevention", 10.0)
	c.viper.SetDefault("deletion.removalTagPrefix", "sweeparr:remove")
	c.viper.SetDefault("deletion.respectUserSyncFlag", false)
	c.viper.SetDefault("deletion.playlistProtection", false)
	c.viper.SetDefault("deletion.protectionPlaylistName", "Do Not Delete")
	c.viper.SetDefault("deletion.notifyPolicy", string(domain.NotifyAlways))
}

// generateSecureToken produces the default session secret written to a
// fresh config file, so encrypted store columns work out of the box.
func generateSecureToken(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		log.Fatal().Err(err).Msg("config: failed to generate secure token")
	}
	return hex.EncodeToString(b)
}

// envKeyMap binds each config key to its SWEEPARR__* environment
// variable. Explicit bindings are required: AutomaticEnv does not
// discover nested keys absent from the config file.
var envKeyMap = map[string]string{
	"host":                   "HOST",
	"port":                   "PORT",
	"baseUrl":                "BASE_URL",
	"logLevel":               "LOG_LEVEL",
	"logPath":                "LOG_PATH",
	"logMaxSize":             "LOG_MAX_SIZE",
	"logMaxBackups":          "LOG_MAX_BACKUPS",
	"dataDir":                "DATA_DIR",
	"databasePath":           "DATABASE_PATH",
	"sessionSecret":          "SESSION_SECRET",
	"metricsEnabled":         "METRICS_ENABLED",
	"metricsHost":            "METRICS_HOST",
	"metricsPort":            "METRICS_PORT",
	"plexHost":               "PLEX_HOST",
	"reconcileIntervalHours": "RECONCILE_INTERVAL_HOURS",

	"deletion.deleteMovie":            "DELETION_DELETE_MOVIE",
	"deletion.deleteEndedShow":        "DELETION_DELETE_ENDED_SHOW",
	"deletion.deleteContinuingShow":   "DELETION_DELETE_CONTINUING_SHOW",
	"deletion.deleteFiles":            "DELETION_DELETE_FILES",
	"deletion.deletionMode":           "DELETION_MODE",
	"deletion.maxDeletionPrevention":  "DELETION_MAX_DELETION_PREVENTION",
	"deletion.removalTagPrefix":       "DELETION_REMOVAL_TAG_PREFIX",
	"deletion.respectUserSyncFlag":    "DELETION_RESPECT_USER_SYNC_FLAG",
	"deletion.playlistProtection":     "DELETION_PLAYLIST_PROTECTION",
	"deletion.protectionPlaylistName": "DELETION_PROTECTION_PLAYLIST_NAME",
	"deletion.notifyPolicy":           "DELETION_NOTIFY_POLICY",
}

func bindEnvKeys(v *viper.Viper) {
	for key, env := range envKeyMap {
		_ = v.BindEnv(key, envPrefix+"__"+env)
	}
}

func (c *AppConfig) defaultDatabasePath(cfg *domain.Config) string {
	if cfg.DataDir != "" {
		return filepath.Join(cfg.DataDir, "sweeparr.db")
	}
	if used := c.viper.ConfigFileUsed(); used != "" {
		return filepath.Join(filepath.Dir(used), "sweeparr.db")
	}
	return "sweeparr.db"
}

func (c *AppConfig) writeDefaultConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	path := filepath.Join(configDir, configFileName+"."+configFileType)
	if err := c.viper.SafeWriteConfigAs(path); err != nil {
		var exists viper.ConfigFileAlreadyExistsError
		if errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("write default config: %w", err)
	}

	log.Info().Str("path", path).Msg("config: wrote default config file")
	return nil
}
