// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeparr/sweeparr/internal/models"
)

func TestUserStoreCreateAndToken(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	store, err := models.NewUserStore(db, testEncryptionKey)
	require.NoError(t, err)

	user, err := store.Create(ctx, "alice", "plex-token-123", true)
	require.NoError(t, err)
	require.NotZero(t, user.ID)

	token, err := store.GetPlexToken(user)
	require.NoError(t, err)
	assert.Equal(t, "plex-token-123", token)

	// Users without a token are valid; they sync through the primary
	// account.
	tokenless, err := store.Create(ctx, "bob", "", false)
	require.NoError(t, err)

	token, err = store.GetPlexToken(tokenless)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestUserStoreSyncFilter(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	store, err := models.NewUserStore(db, testEncryptionKey)
	require.NoError(t, err)

	alice, err := store.Create(ctx, "alice", "", true)
	require.NoError(t, err)
	_, err = store.Create(ctx, "bob", "", false)
	require.NoError(t, err)

	synced, err := store.ListSyncEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, synced, 1)
	assert.Equal(t, "alice", synced[0].Name)

	require.NoError(t, store.SetSyncEnabled(ctx, alice.ID, false))

	synced, err = store.ListSyncEnabled(ctx)
	require.NoError(t, err)
	assert.Empty(t, synced)

	require.ErrorIs(t, store.SetSyncEnabled(ctx, 9999, true), models.ErrUserNotFound)
}

func TestUserJSONNeverLeaksToken(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	store, err := models.NewUserStore(db, testEncryptionKey)
	require.NoError(t, err)

	user, err := store.Create(ctx, "alice", "plex-token-123", true)
	require.NoError(t, err)

	payload, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "plex-token-123")
	assert.NotContains(t, string(payload), "plex_token")
}
