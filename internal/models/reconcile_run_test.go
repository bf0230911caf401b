// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeparr/sweeparr/internal/models"
)

func TestReconcileRunStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	store := models.NewReconcileRunStore(db)

	id, err := store.Create(ctx, true, "watchlist", "api")
	require.NoError(t, err)
	require.NotZero(t, id)

	err = store.Complete(ctx, id, &models.ReconcileRun{
		MoviesDeleted:   3,
		MoviesSkipped:   1,
		ShowsDeleted:    2,
		ShowsProtected:  1,
		Processed:       7,
		SafetyTriggered: false,
		Message:         "",
	})
	require.NoError(t, err)

	runs, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, id, run.ID)
	assert.True(t, run.DryRun)
	assert.Equal(t, "watchlist", run.Mode)
	assert.Equal(t, "api", run.TriggeredBy)
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, 3, run.MoviesDeleted)
	assert.Equal(t, 7, run.Processed)
}

func TestReconcileRunStoreListRecentOrder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	store := models.NewReconcileRunStore(db)

	first, err := store.Create(ctx, false, "watchlist", "scheduled")
	require.NoError(t, err)
	second, err := store.Create(ctx, false, "tag-based", "api")
	require.NoError(t, err)

	runs, err := store.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second, runs[0].ID)

	runs, err = store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, first, runs[1].ID)
}
