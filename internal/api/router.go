// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/sweeparr/sweeparr/internal/api/handlers"
	"github.com/sweeparr/sweeparr/internal/arr"
	"github.com/sweeparr/sweeparr/internal/domain"
	"github.com/sweeparr/sweeparr/internal/models"
	"github.com/sweeparr/sweeparr/internal/services/notifications"
	"github.com/sweeparr/sweeparr/internal/services/reconcile"
)

// Dependencies collects everything the router wires into handlers.
type Dependencies struct {
	Version   string
	GetConfig func() *domain.Config

	InstanceStore *models.ArrInstanceStore
	UserStore     *models.UserStore
	TargetStore   *models.NotificationTargetStore
	RunStore      *models.ReconcileRunStore

	Manager       *arr.Manager
	Notifications *notifications.Service
	Reconcile     *reconcile.Service
}

// NewRouter builds the API router.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	corsMiddleware := cors.New(cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(corsMiddleware.Handler)

	healthHandler := handlers.NewHealthHandler()
	r.Route("/health", healthHandler.Routes)

	r.Route("/api", func(r chi.Router) {
		r.Route("/instances", handlers.NewArrInstancesHandler(deps.InstanceStore, deps.Manager).Routes)
		r.Route("/users", handlers.NewUsersHandler(deps.UserStore).Routes)
		r.Route("/notifications", handlers.NewNotificationsHandler(deps.TargetStore, deps.Notifications).Routes)
		r.Route("/reconcile", handlers.NewReconcileHandler(deps.Reconcile, deps.RunStore).Routes)
		r.Route("/config", handlers.NewConfigHandler(deps.GetConfig, deps.Version).Routes)
	})

	return r
}
