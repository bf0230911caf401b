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

func TestArrInstanceStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	store, err := models.NewArrInstanceStore(db, testEncryptionKey)
	require.NoError(t, err)

	instance, err := store.Create(ctx, models.ArrInstanceTypeSonarr, "sonarr-main", "http://localhost:8989", "secret-key", 30)
	require.NoError(t, err)
	assert.NotZero(t, instance.ID)
	assert.True(t, instance.Enabled)

	got, err := store.Get(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, "sonarr-main", got.Name)
	assert.Equal(t, models.ArrInstanceTypeSonarr, got.Type)

	// The API key round-trips through encryption.
	apiKey, err := store.GetAPIKey(got)
	require.NoError(t, err)
	assert.Equal(t, "secret-key", apiKey)
	assert.NotEqual(t, "secret-key", got.APIKeyEncrypted)
}

func TestArrInstanceStoreRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	store, err := models.NewArrInstanceStore(db, testEncryptionKey)
	require.NoError(t, err)

	_, err = store.Create(ctx, models.ArrInstanceTypeRadarr, "radarr", "not-a-url", "key", 30)
	require.Error(t, err)

	_, err = store.Create(ctx, "lidarr", "lidarr", "http://localhost:8686", "key", 30)
	require.Error(t, err)
}

func TestArrInstanceStoreUpdate(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	store, err := models.NewArrInstanceStore(db, testEncryptionKey)
	require.NoError(t, err)

	instance, err := store.Create(ctx, models.ArrInstanceTypeRadarr, "radarr-main", "http://localhost:7878", "old-key", 30)
	require.NoError(t, err)

	name := "radarr-4k"
	apiKey := "new-key"
	enabled := false
	updated, err := store.Update(ctx, instance.ID, models.ArrInstanceUpdateParams{
		Name:    &name,
		APIKey:  &apiKey,
		Enabled: &enabled,
	})
	require.NoError(t, err)
	assert.Equal(t, "radarr-4k", updated.Name)
	assert.False(t, updated.Enabled)

	key, err := store.GetAPIKey(updated)
	require.NoError(t, err)
	assert.Equal(t, "new-key", key)

	// Disabled instances drop out of the enabled listing.
	enabledInstances, err := store.ListEnabled(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabledInstances)
}

func TestArrInstanceStoreDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	store, err := models.NewArrInstanceStore(db, testEncryptionKey)
	require.NoError(t, err)

	instance, err := store.Create(ctx, models.ArrInstanceTypeSonarr, "sonarr", "http://localhost:8989", "key", 30)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, instance.ID))

	_, err = store.Get(ctx, instance.ID)
	require.ErrorIs(t, err, models.ErrArrInstanceNotFound)
}

func TestArrInstanceJSONNeverLeaksAPIKey(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	store, err := models.NewArrInstanceStore(db, testEncryptionKey)
	require.NoError(t, err)

	instance, err := store.Create(ctx, models.ArrInstanceTypeSonarr, "sonarr", "http://localhost:8989", "very-secret", 30)
	require.NoError(t, err)

	payload, err := json.Marshal(instance)
	require.NoError(t, err)

	assert.NotContains(t, string(payload), "very-secret")
	assert.NotContains(t, string(payload), instance.APIKeyEncrypted)
}
