// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sweeparr/sweeparr/internal/arr"
	"github.com/sweeparr/sweeparr/internal/buildinfo"
	"github.com/sweeparr/sweeparr/internal/config"
	"github.com/sweeparr/sweeparr/internal/crypto"
	"github.com/sweeparr/sweeparr/internal/database"
	"github.com/sweeparr/sweeparr/internal/domain"
	"github.com/sweeparr/sweeparr/internal/metrics"
	"github.com/sweeparr/sweeparr/internal/models"
	"github.com/sweeparr/sweeparr/internal/plex"
	"github.com/sweeparr/sweeparr/internal/services/notifications"
	"github.com/sweeparr/sweeparr/internal/services/reconcile"
	"github.com/sweeparr/sweeparr/internal/services/tagging"
	"github.com/sweeparr/sweeparr/internal/watchlist"
)

// application bundles every wired component so commands can pick what
// they need.
type application struct {
	cfg *config.AppConfig
	db  *database.DB

	instanceStore *models.ArrInstanceStore
	userStore     *models.UserStore
	itemStore     *models.WatchlistItemStore
	targetStore   *models.NotificationTargetStore
	runStore      *models.ReconcileRunStore

	manager       *arr.Manager
	watchlists    *watchlist.Service
	protection    *plex.ProtectionService
	tagging       *tagging.Service
	notifications *notifications.Service
	reconcile     *reconcile.Service

	metricsManager *metrics.Manager
}

// buildApplication wires stores and services from configuration. The
// caller owns db shutdown.
func buildApplication(configDir string) (*application, error) {
	appCfg, err := config.New(configDir, buildinfo.Version)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	config.SetupLogger(appCfg.Get())

	cfg := appCfg.Get()

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	encryptionKey := crypto.DeriveEncryptionKey(cfg.SessionSecret)

	instanceStore, err := models.NewArrInstanceStore(db.Conn(), encryptionKey)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize instance store: %w", err)
	}

	userStore, err := models.NewUserStore(db.Conn(), encryptionKey)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize user store: %w", err)
	}

	itemStore := models.NewWatchlistItemStore(db.Conn())
	targetStore := models.NewNotificationTargetStore(db.Conn())
	runStore := models.NewReconcileRunStore(db.Conn())

	manager := arr.NewManager(instanceStore)
	watchlists := watchlist.NewService(userStore, itemStore)
	protection := plex.NewProtectionService(
		func() string { return appCfg.Get().PlexHost },
		func() string { return appCfg.Get().Deletion.ProtectionPlaylistName },
		userStore,
	)
	taggingSvc := tagging.NewService(manager, func() string { return appCfg.Get().Deletion.RemovalTagPrefix })
	notificationSvc := notifications.NewService(targetStore, log.Logger)

	metricsManager := metrics.NewManager()
	reconcileMetrics := reconcile.NewMetrics(metricsManager.GetRegistry())

	reconcileSvc := reconcile.NewService(
		appCfg.Get,
		manager,
		watchlists,
		protection,
		taggingSvc,
		notificationSvc,
		runStore,
		reconcileMetrics,
	)

	appCfg.OnReload(func(next *domain.Config) {
		config.SetLogLevel(next.LogLevel)
		log.Info().Msg("configuration reloaded")
	})

	return &application{
		cfg:            appCfg,
		db:             db,
		instanceStore:  instanceStore,
		userStore:      userStore,
		itemStore:      itemStore,
		targetStore:    targetStore,
		runStore:       runStore,
		manager:        manager,
		watchlists:     watchlists,
		protection:     protection,
		tagging:        taggingSvc,
		notifications:  notificationSvc,
		reconcile:      reconcileSvc,
		metricsManager: metricsManager,
	}, nil
}

func (a *application) close() {
	if err := a.db.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
	}
}

func (a *application) startBackground(ctx context.Context) {
	a.cfg.Watch()
	a.notifications.Start(ctx)
	a.reconcile.Start(ctx)
}
