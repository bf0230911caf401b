// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sweeparr/sweeparr/internal/api"
	"github.com/sweeparr/sweeparr/internal/buildinfo"
	"github.com/sweeparr/sweeparr/internal/metrics"
)

func RunServeCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sweeparr server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := buildApplication(configDir)
			if err != nil {
				return err
			}
			defer app.close()

			app.startBackground(ctx)

			cfg := app.cfg.Get()

			router := api.NewRouter(api.Dependencies{
				Version:       buildinfo.Version,
				GetConfig:     app.cfg.Get,
				InstanceStore: app.instanceStore,
				UserStore:     app.userStore,
				TargetStore:   app.targetStore,
				RunStore:      app.runStore,
				Manager:       app.manager,
				Notifications: app.notifications,
				Reconcile:     app.reconcile,
			})

			g, gctx := errgroup.WithContext(ctx)

			apiServer := api.NewServer(cfg.Host, cfg.Port, router)
			g.Go(func() error {
				return apiServer.Start(gctx)
			})

			if cfg.MetricsEnabled {
				metricsServer := metrics.NewServer(app.metricsManager, cfg.MetricsHost, cfg.MetricsPort)
				g.Go(func() error {
					return metricsServer.Start(gctx)
				})
			}

			log.Info().Str("version", buildinfo.Version).Msg("sweeparr started")

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "directory containing config.toml (created when missing)")

	return cmd
}

func RunReconcileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconciliation operations",
	}

	cmd.AddCommand(runReconcileRunCommand())
	return cmd
}

func runReconcileRunCommand() *cobra.Command {
	var (
		configDir string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a single reconciliation pass and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := buildApplication(configDir)
			if err != nil {
				return err
			}
			defer app.close()

			// Notifications need workers even for a one-shot run.
			notifyCtx, cancelNotify := context.WithCancel(ctx)
			defer cancelNotify()
			app.notifications.Start(notifyCtx)

			result, err := app.reconcile.Run(ctx, dryRun, "cli")
			if err != nil {
				return err
			}

			if result.Message != "" {
				cmd.Println(result.Message)
			}
			if result.SafetyTriggered {
				cmd.Printf("Safety triggered: %s\n", result.SafetyMessage)
			}
			cmd.Printf("Movies: %d deleted, %d skipped, %d protected\n",
				result.Movies.Deleted, result.Movies.Skipped, result.Movies.Protected)
			cmd.Printf("Shows:  %d deleted, %d skipped, %d protected\n",
				result.Shows.Deleted, result.Shows.Skipped, result.Shows.Protected)
			cmd.Printf("Processed: %d\n", result.Total.Processed)

			return nil
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "directory containing config.toml (created when missing)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "evaluate the full run without deleting anything")

	return cmd
}
