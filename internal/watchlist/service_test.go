// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package watchlist_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeparr/sweeparr/internal/database"
	"github.com/sweeparr/sweeparr/internal/models"
	"github.com/sweeparr/sweeparr/internal/watchlist"
)

var testEncryptionKey = []byte("01234567890123456789012345678901")

func newTestService(t *testing.T) (*watchlist.Service, *models.UserStore, *models.WatchlistItemStore) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "sweeparr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	userStore, err := models.NewUserStore(db.Conn(), testEncryptionKey)
	require.NoError(t, err)
	itemStore := models.NewWatchlistItemStore(db.Conn())

	return watchlist.NewService(userStore, itemStore), userStore, itemStore
}

func addItem(t *testing.T, store *models.WatchlistItemStore, userID int, title string, itemType models.WatchlistItemType, guids ...string) {
	t.Helper()

	err := store.Upsert(context.Background(), &models.WatchlistItem{
		UserID: userID,
		Title:  title,
		Type:   itemType,
		GUIDs:  guids,
	})
	require.NoError(t, err)
}

func TestRefreshSnapshotsStoreState(t *testing.T) {
	t.Parallel()

	svc, userStore, itemStore := newTestService(t)
	ctx := context.Background()

	user, err := userStore.Create(ctx, "alice", "", true)
	require.NoError(t, err)

	addItem(t, itemStore, user.ID, "The Matrix", models.WatchlistItemTypeMovie, "imdb:tt0133093", "tmdb:603")
	addItem(t, itemStore, user.ID, "Severance", models.WatchlistItemTypeShow, "tvdb:371980")

	// The cache starts empty; only a refresh pulls in store state.
	movies, err := svc.GetAllMovieItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, movies)

	require.NoError(t, svc.RefreshSelfWatchlist(ctx))

	movies, err = svc.GetAllMovieItems(ctx)
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "The Matrix", movies[0].Title)

	shows, err := svc.GetAllShowItems(ctx)
	require.NoError(t, err)
	require.Len(t, shows, 1)
	assert.Equal(t, "Severance", shows[0].Title)

	// New writes are invisible until the next refresh.
	addItem(t, itemStore, user.ID, "Heat", models.WatchlistItemTypeMovie, "imdb:tt0113277")

	movies, err = svc.GetAllMovieItems(ctx)
	require.NoError(t, err)
	assert.Len(t, movies, 1)

	require.NoError(t, svc.RefreshOthersWatchlists(ctx))

	movies, err = svc.GetAllMovieItems(ctx)
	require.NoError(t, err)
	assert.Len(t, movies, 2)
}

func TestGUIDsForUsers(t *testing.T) {
	t.Parallel()

	svc, userStore, itemStore := newTestService(t)
	ctx := context.Background()

	alice, err := userStore.Create(ctx, "alice", "", true)
	require.NoError(t, err)
	bob, err := userStore.Create(ctx, "bob", "", false)
	require.NoError(t, err)

	addItem(t, itemStore, alice.ID, "The Matrix", models.WatchlistItemTypeMovie, "imdb:tt0133093", "tmdb:603")
	addItem(t, itemStore, alice.ID, "Severance", models.WatchlistItemTypeShow, "tvdb:371980")
	addItem(t, itemStore, bob.ID, "Heat", models.WatchlistItemTypeMovie, "imdb:tt0113277")

	all, err := svc.GUIDsForUsers(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	aliceOnly, err := svc.GUIDsForUsers(ctx, []int{alice.ID})
	require.NoError(t, err)
	assert.Len(t, aliceOnly, 3)
	assert.NotContains(t, aliceOnly, "imdb:tt0113277")

	none, err := svc.GUIDsForUsers(ctx, []int{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetAllUsers(t *testing.T) {
	t.Parallel()

	svc, userStore, _ := newTestService(t)
	ctx := context.Background()

	_, err := userStore.Create(ctx, "alice", "", true)
	require.NoError(t, err)
	_, err = userStore.Create(ctx, "bob", "", false)
	require.NoError(t, err)

	all, err := svc.GetAllUsers(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	synced, err := svc.GetAllUsers(ctx, true)
	require.NoError(t, err)
	require.Len(t, synced, 1)
	assert.Equal(t, "alice", synced[0].Name)
}
