// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package watchlist exposes the synchronized watchlist state the
// reconciliation engine consumes. Item discovery and ingestion happen
// elsewhere; this service only serves what has already been synced.
package watchlist

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sweeparr/sweeparr/internal/models"
)

// Service caches watchlist items from the store. The engine refreshes
// the cache at run start so deletion decisions see current state.
type Service struct {
	userStore *models.UserStore
	itemStore *models.WatchlistItemStore

	mu     sync.RWMutex
	movies []*models.WatchlistItem
	shows  []*models.WatchlistItem
}

// NewService creates a watchlist Service over the given stores.
func NewService(userStore *models.UserStore, itemStore *models.WatchlistItemStore) *Service {
	return &Service{
		userStore: userStore,
		itemStore: itemStore,
	}
}

// RefreshSelfWatchlist reloads the primary account's watchlist items
// into the cache.
func (s *Service) RefreshSelfWatchlist(ctx context.Context) error {
	return s.refresh(ctx)
}

// RefreshOthersWatchlists reloads the remaining users' watchlist items
// into the cache.
func (s *Service) RefreshOthersWatchlists(ctx context.Context) error {
	return s.refresh(ctx)
}

// refresh replaces the cached snapshot with current store state. The
// two public refresh entry points exist for callers that track self and
// other watchlists separately; both converge here since the store holds
// all users' items.
func (s *Service) refresh(ctx context.Context) error {
	movies, err := s.itemStore.ListActiveByType(ctx, models.WatchlistItemTypeMovie, nil)
	if err != nil {
		return fmt.Errorf("refresh movie watchlist: %w", err)
	}
	shows, err := s.itemStore.ListActiveByType(ctx, models.WatchlistItemTypeShow, nil)
	if err != nil {
		return fmt.Errorf("refresh show watchlist: %w", err)
	}

	s.mu.Lock()
	s.movies = movies
	s.shows = shows
	s.mu.Unlock()

	log.Debug().Int("movies", len(movies)).Int("shows", len(shows)).Msg("watchlist: refreshed")
	return nil
}

// GetAllMovieItems returns the cached movie watchlist items.
func (s *Service) GetAllMovieItems(ctx context.Context) ([]*models.WatchlistItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.movies, nil
}

// GetAllShowItems returns the cached show watchlist items.
func (s *Service) GetAllShowItems(ctx context.Context) ([]*models.WatchlistItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shows, nil
}

// GetAllUsers returns all users, or only sync-enabled ones when
// syncOnly is set.
func (s *Service) GetAllUsers(ctx context.Context, syncOnly bool) ([]*models.User, error) {
	if syncOnly {
		return s.userStore.ListSyncEnabled(ctx)
	}
	return s.userStore.List(ctx)
}

// GUIDsForUsers returns the union of active watchlist GUIDs, optionally
// restricted to the given user ids (nil means all users). GUIDs are the
// inclusion set for watchlist-mode reconciliation.
func (s *Service) GUIDsForUsers(ctx context.Context, userIDs []int) (map[string]struct{}, error) {
	guids := make(map[string]struct{})

	for _, itemType := range []models.WatchlistItemType{models.WatchlistItemTypeMovie, models.WatchlistItemTypeShow} {
		items, err := s.itemStore.ListActiveByType(ctx, itemType, userIDs)
		if err != nil {
			return nil, fmt.Errorf("collect watchlist guids: %w", err)
		}
		for _, item := range items {
			for _, guid := range item.GUIDs {
				guids[guid] = struct{}{}
			}
		}
	}

	return guids, nil
}
