// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package reconcile implements the deletion reconciliation engine: it
// decides which tracked arr items should be removed because no
// watchlist references them (watchlist mode) or because they carry a
// removal tag (tag-based mode), under protection playlists and a
// statistical safety threshold.
package reconcile

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sweeparr/sweeparr/internal/arr"
	"github.com/sweeparr/sweeparr/internal/domain"
	"github.com/sweeparr/sweeparr/internal/models"
	"github.com/sweeparr/sweeparr/internal/plex"
	"github.com/sweeparr/sweeparr/internal/services/notifications"
	"github.com/sweeparr/sweeparr/internal/services/tagging"
	"github.com/sweeparr/sweeparr/internal/watchlist"
)

// maxSchedulerJitter spreads scheduled runs so multiple deployments do
// not hammer shared upstreams at the same instant.
const maxSchedulerJitter = 30 * time.Second

// configProvider returns the current configuration. Indirected so the
// engine picks up config file reloads between runs.
type configProvider func() *domain.Config

// Service is the reconciliation orchestrator. It owns the run
// lifecycle, the single-flight guard, mode selection, and notification
// dispatch.
type Service struct {
	cfg        configProvider
	manager    *arr.Manager
	watchlists *watchlist.Service
	protection *plex.ProtectionService
	tagging    *tagging.Service
	notifier   notifications.Notifier
	runStore   *models.ReconcileRunStore
	metrics    *Metrics

	// running is the mutual-exclusion guard: exactly one run per
	// process. A concurrent caller gets an empty result immediately.
	running atomic.Bool

	// Providers for testing (nil = use the real collaborator).
	fetchSeriesProvider     func(ctx context.Context) ([]*arr.TrackedItem, error)
	fetchMoviesProvider     func(ctx context.Context) ([]*arr.TrackedItem, error)
	serviceForProvider      serviceForFn
	refreshProvider         func(ctx context.Context) error
	inclusionProvider       func(ctx context.Context) (map[string]struct{}, error)
	protectedGuidsProvider  func(ctx context.Context) (map[string]struct{}, error)
	clearProtectionProvider func()
	tagSyncProvider         func(ctx context.Context, items []*arr.TrackedItem) error
}

// NewService creates the reconciliation orchestrator.
func NewService(
	cfg configProvider,
	manager *arr.Manager,
	watchlists *watchlist.Service,
	protection *plex.ProtectionService,
	taggingSvc *tagging.Service,
	notifier notifications.Notifier,
	runStore *models.ReconcileRunStore,
	metrics *Metrics,
) *Service {
	return &Service{
		cfg:        cfg,
		manager:    manager,
		watchlists: watchlists,
		protection: protection,
		tagging:    taggingSvc,
		notifier:   notifier,
		runStore:   runStore,
		metrics:    metrics,
	}
}

func (s *Service) fetchSeries(ctx context.Context) ([]*arr.TrackedItem, error) {
	if s.fetchSeriesProvider != nil {
		return s.fetchSeriesProvider(ctx)
	}
	return s.manager.FetchAllSeries(ctx)
}

func (s *Service) fetchMovies(ctx context.Context) ([]*arr.TrackedItem, error) {
	if s.fetchMoviesProvider != nil {
		return s.fetchMoviesProvider(ctx)
	}
	return s.manager.FetchAllMovies(ctx)
}

func (s *Service) serviceFor(ctx context.Context, instanceID int) (itemService, error) {
	if s.serviceForProvider != nil {
		return s.serviceForProvider(ctx, instanceID)
	}
	svc, err := s.manager.ServiceFor(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) refreshWatchlists(ctx context.Context) error {
	if s.refreshProvider != nil {
		return s.refreshProvider(ctx)
	}
	if err := s.watchlists.RefreshSelfWatchlist(ctx); err != nil {
		return err
	}
	return s.watchlists.RefreshOthersWatchlists(ctx)
}

// inclusionSet builds the set of GUIDs backed by at least one active
// watchlist entry, optionally restricted to sync-enabled users.
func (s *Service) inclusionSet(ctx context.Context, policy *domain.DeletionPolicy) (map[string]struct{}, error) {
	if s.inclusionProvider != nil {
		return s.inclusionProvider(ctx)
	}

	var userIDs []int
	if policy.RespectUserSyncFlag {
		users, err := s.watchlists.GetAllUsers(ctx, true)
		if err != nil {
			return nil, err
		}
		userIDs = make([]int, 0, len(users))
		for _, user := range users {
			userIDs = append(userIDs, user.ID)
		}
	}

	return s.watchlists.GUIDsForUsers(ctx, userIDs)
}

func (s *Service) protectedGuids(ctx context.Context) (map[string]struct{}, error) {
	if s.protectedGuidsProvider != nil {
		return s.protectedGuidsProvider(ctx)
	}
	if _, err := s.protection.GetOrCreateProtectionPlaylists(ctx); err != nil {
		return nil, err
	}
	return s.protection.GetProtectedItemGUIDs(ctx)
}

func (s *Service) clearProtectionCaches() {
	if s.clearProtectionProvider != nil {
		s.clearProtectionProvider()
		return
	}
	if s.protection != nil {
		s.protection.ClearCaches()
	}
}

func (s *Service) syncTags(ctx context.Context, rc *runContext, items []*arr.TrackedItem) error {
	if s.tagSyncProvider != nil {
		return s.tagSyncProvider(ctx, items)
	}

	guids, err := s.watchlists.GUIDsForUsers(ctx, nil)
	if err != nil {
		return err
	}
	res, err := s.tagging.TagContentWithCurrentWatchlistData(ctx, items, guids)
	if err != nil {
		return err
	}
	s.notifyTagSync(rc, res)
	return nil
}

// notifyTagSync reports a finished tag synchronization pass, honoring
// the same notify policy as run results. On-action means at least one
// tag changed.
func (s *Service) notifyTagSync(rc *runContext, res *tagging.Result) {
	if s.notifier == nil {
		return
	}

	policy, err := domain.ParseNotifyPolicy(rc.policy.NotifyPolicy)
	if err != nil || policy == domain.NotifyNever {
		return
	}
	if policy == domain.NotifyOnAction && res.Tagged == 0 && res.Untagged == 0 {
		return
	}

	s.notifier.Notify(notifications.Event{
		Type:     notifications.EventTagSyncCompleted,
		DryRun:   rc.dryRun,
		Mode:     string(rc.mode),
		Tagged:   res.Tagged,
		Untagged: res.Untagged,
	})
}

// Run executes one reconciliation pass. A run already in progress
// returns an empty result immediately, without blocking and without an
// error: queueing destructive work behind a slow run invites
// duplicates. The single-flight guard is released on every exit path.
func (s *Service) Run(ctx context.Context, dryRun bool, triggeredBy string) (*RunResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		log.Info().Msg("reconcile: run already in progress, skipping duplicate trigger")
		result := NewRunResult(dryRun)
		result.Message = "reconciliation already in progress, duplicate run skipped"
		return result, nil
	}
	defer s.running.Store(false)

	cfg := s.cfg()
	policy := cfg.Deletion

	// A broken safety threshold can never be defaulted around.
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	mode := policy.Mode()
	result := NewRunResult(dryRun)

	if !policy.AnyDeletionEnabled() {
		log.Info().Msg("reconcile: no deletion flags enabled, nothing to do")
		result.Message = "no deletion flags enabled"
		return result, nil
	}

	started := time.Now()
	log.Info().
		Str("mode", string(mode)).
		Bool("dryRun", dryRun).
		Str("triggeredBy", triggeredBy).
		Msg("reconcile: starting run")

	runID := s.recordRunStart(ctx, dryRun, mode, triggeredBy)

	// Run-scoped caches start and end empty.
	s.clearProtectionCaches()
	defer s.clearProtectionCaches()

	rc := newRunContext(policy, dryRun, s.serviceFor)
	rc.result = result

	err := s.execute(ctx, rc)

	s.recordRunEnd(ctx, runID, rc.result)
	s.observeRun(rc, time.Since(started), err)

	if err != nil {
		s.notify(rc, err)
		return nil, err
	}

	log.Info().
		Int("deleted", result.Total.Deleted).
		Int("skipped", result.Total.Skipped).
		Int("protected", result.Total.Protected).
		Int("processed", result.Total.Processed).
		Bool("safetyTriggered", result.SafetyTriggered).
		Dur("elapsed", time.Since(started)).
		Msg("reconcile: run finished")

	s.notify(rc, nil)
	return result, nil
}

// execute is the run body: inventory fetch, mode preparation, safety
// evaluation, strategy execution.
func (s *Service) execute(ctx context.Context, rc *runContext) error {
	// Full inventories from every instance, fetched concurrently.
	// Routing exclusions never apply here: deletion must see
	// everything, not just routable content.
	var series, movies []*arr.TrackedItem
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		series, err = s.fetchSeries(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		movies, err = s.fetchMovies(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetch inventories: %w", err)
	}

	items := make([]*arr.TrackedItem, 0, len(movies)+len(series))
	items = append(items, movies...)
	items = append(items, series...)

	if rc.mode == domain.DeletionModeTagBased {
		// Removal tags must reflect the latest watchlist state before
		// they are trusted for deletion.
		if err := s.syncTags(ctx, rc, items); err != nil {
			return fmt.Errorf("synchronize removal tags: %w", err)
		}
	}

	// Unknown watchlist state is always unsafe, never a hard error.
	if err := s.refreshWatchlists(ctx); err != nil {
		log.Error().Err(err).Msg("reconcile: watchlist refresh failed, treating as unsafe")
		rc.result.markSafetyTriggered(fmt.Sprintf("watchlist refresh failed: %v", err))
		return nil
	}

	if rc.mode == domain.DeletionModeWatchlist {
		inclusion, err := s.inclusionSet(ctx, &rc.policy)
		if err != nil {
			log.Error().Err(err).Msg("reconcile: building inclusion set failed, treating as unsafe")
			rc.result.markSafetyTriggered(fmt.Sprintf("building inclusion set failed: %v", err))
			return nil
		}
		if len(inclusion) == 0 {
			log.Warn().Msg("reconcile: inclusion set is empty, refusing to treat every item as deletable")
			rc.result.markSafetyTriggered("no active watchlist items found; an empty watchlist would mark the entire library for deletion")
			return nil
		}
		rc.inclusion = inclusion
	}

	// Protection resolves before any candidate math so a protection
	// failure can never be narrowed into a partial run. Fails closed.
	if rc.policy.PlaylistProtection {
		protected, err := s.protectedGuids(ctx)
		if err != nil {
			log.Error().Err(err).Msg("reconcile: protection playlist resolution failed, aborting run")
			rc.result.markSafetyTriggered(fmt.Sprintf("protection playlist resolution failed: %v", err))
			return nil
		}
		rc.protected = protected
	}

	switch rc.mode {
	case domain.DeletionModeWatchlist:
		return s.runWatchlistMode(ctx, rc, items)
	case domain.DeletionModeTagBased:
		return s.runTagBasedMode(ctx, rc, items)
	default:
		return fmt.Errorf("unknown deletion mode: %s", rc.mode)
	}
}

// runWatchlistMode evaluates safety over the pre-protection candidate
// count, then executes the shared strategy with the inclusion-set
// predicate.
func (s *Service) runWatchlistMode(ctx context.Context, rc *runContext, items []*arr.TrackedItem) error {
	candidates := 0
	for _, item := range items {
		if !guidIntersects(item, rc.inclusion) {
			candidates++
		}
	}

	safety, err := evaluateSafety(len(items), candidates, rc.policy.MaxDeletionPrevention, rc.mode)
	if err != nil {
		return err
	}
	if !safety.Safe {
		log.Warn().Str("reason", safety.Message).Msg("reconcile: safety check failed, aborting run")
		rc.result.markSafetyTriggered(safety.Message)
		return nil
	}

	s.executeStrategy(ctx, rc, items, watchlistPredicate(rc))
	return nil
}

// runTagBasedMode performs the independent tagged-count pre-check
// before executing the shared strategy with the tag predicate.
func (s *Service) runTagBasedMode(ctx context.Context, rc *runContext, items []*arr.TrackedItem) error {
	tagged, err := s.countTaggedItems(ctx, rc, items)
	if err != nil {
		return fmt.Errorf("tag-based safety pre-check: %w", err)
	}

	safety, err := evaluateSafety(len(items), tagged, rc.policy.MaxDeletionPrevention, rc.mode)
	if err != nil {
		return err
	}
	if !safety.Safe {
		log.Warn().Str("reason", safety.Message).Msg("reconcile: tag-based safety pre-check failed, aborting run")
		rc.result.markSafetyTriggered(safety.Message)
		return nil
	}

	s.executeStrategy(ctx, rc, items, s.tagPredicate(rc))
	return nil
}

func (s *Service) recordRunStart(ctx context.Context, dryRun bool, mode domain.DeletionMode, triggeredBy string) int64 {
	if s.runStore == nil {
		return 0
	}
	runID, err := s.runStore.Create(ctx, dryRun, string(mode), triggeredBy)
	if err != nil {
		log.Error().Err(err).Msg("reconcile: failed to record run start")
		return 0
	}
	return runID
}

func (s *Service) recordRunEnd(ctx context.Context, runID int64, result *RunResult) {
	if s.runStore == nil || runID == 0 {
		return
	}

	message := result.Message
	if result.SafetyTriggered {
		message = result.SafetyMessage
	}

	err := s.runStore.Complete(ctx, runID, &models.ReconcileRun{
		MoviesDeleted:   result.Movies.Deleted,
		MoviesSkipped:   result.Movies.Skipped,
		MoviesProtected: result.Movies.Protected,
		ShowsDeleted:    result.Shows.Deleted,
		ShowsSkipped:    result.Shows.Skipped,
		ShowsProtected:  result.Shows.Protected,
		Processed:       result.Total.Processed,
		SafetyTriggered: result.SafetyTriggered,
		Message:         message,
	})
	if err != nil {
		log.Error().Err(err).Int64("runID", runID).Msg("reconcile: failed to record run end")
	}
}

// notify dispatches the run result, honoring the configured notify
// policy. Delivery is best effort; the notifier never sees an error
// returned to it and failures inside it are its own problem to log.
func (s *Service) notify(rc *runContext, runErr error) {
	if s.notifier == nil {
		return
	}

	policy, err := domain.ParseNotifyPolicy(rc.policy.NotifyPolicy)
	if err != nil || policy == domain.NotifyNever {
		return
	}

	result := rc.result
	event := notifications.Event{
		DryRun:          rc.dryRun,
		Mode:            string(rc.mode),
		MoviesDeleted:   result.Movies.Deleted,
		MoviesSkipped:   result.Movies.Skipped,
		MoviesProtected: result.Movies.Protected,
		ShowsDeleted:    result.Shows.Deleted,
		ShowsSkipped:    result.Shows.Skipped,
		ShowsProtected:  result.Shows.Protected,
		Processed:       result.Total.Processed,
	}

	switch {
	case runErr != nil:
		event.Type = notifications.EventReconcileFailed
		event.ErrorMessage = runErr.Error()
	case result.SafetyTriggered:
		event.Type = notifications.EventReconcileSafetyTriggered
		event.Message = result.SafetyMessage
	default:
		if policy == domain.NotifyOnAction && result.Total.Deleted == 0 && result.Total.Protected == 0 {
			return
		}
		event.Type = notifications.EventReconcileCompleted
	}

	s.notifier.Notify(event)
}

// Start launches the background scheduler when a reconcile interval is
// configured. The scheduler only triggers runs; it never overlaps them,
// because Run itself refuses duplicates.
func (s *Service) Start(ctx context.Context) {
	if s == nil {
		return
	}
	go s.loop(ctx)
}

func (s *Service) loop(ctx context.Context) {
	interval := s.cfg().ReconcileInterval()
	if interval <= 0 {
		log.Info().Msg("reconcile: scheduled runs disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jitter := time.Duration(rand.Int63n(int64(maxSchedulerJitter)))
			select {
			case <-time.After(jitter):
			case <-ctx.Done():
				return
			}

			if _, err := s.Run(ctx, false, "scheduled"); err != nil {
				log.Error().Err(err).Msg("reconcile: scheduled run failed")
			}

			// Pick up interval changes from config reloads.
			if next := s.cfg().ReconcileInterval(); next > 0 && next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}
