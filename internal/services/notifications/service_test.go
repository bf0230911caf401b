// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package notifications

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowsEvent(t *testing.T) {
	t.Parallel()

	// Empty filter subscribes to everything.
	assert.True(t, allowsEvent(nil, EventReconcileCompleted))
	assert.True(t, allowsEvent([]string{}, EventReconcileFailed))

	filter := []string{"reconcile_failed", "reconcile_safety_triggered"}
	assert.True(t, allowsEvent(filter, EventReconcileFailed))
	assert.True(t, allowsEvent(filter, EventReconcileSafetyTriggered))
	assert.False(t, allowsEvent(filter, EventReconcileCompleted))
	assert.False(t, allowsEvent(filter, EventTagSyncCompleted))
}

func TestFormatEventCompleted(t *testing.T) {
	t.Parallel()

	title, message := formatEvent(Event{
		Type:            EventReconcileCompleted,
		Mode:            "watchlist",
		MoviesDeleted:   3,
		MoviesSkipped:   1,
		MoviesProtected: 2,
		ShowsDeleted:    1,
		Processed:       7,
	})

	assert.Equal(t, "Reconciliation completed", title)
	assert.Contains(t, message, "Mode: watchlist")
	assert.Contains(t, message, "Movies: 3 deleted, 1 skipped, 2 protected")
	assert.Contains(t, message, "Shows: 1 deleted, 0 skipped, 0 protected")
	assert.Contains(t, message, "Processed: 7")
}

func TestFormatEventDryRunPrefix(t *testing.T) {
	t.Parallel()

	title, _ := formatEvent(Event{Type: EventReconcileCompleted, DryRun: true, Mode: "watchlist"})
	assert.Equal(t, "[dry run] Reconciliation completed", title)

	title, message := formatEvent(Event{Type: EventReconcileSafetyTriggered, DryRun: true, Mode: "tag-based", Message: "deletion ratio 15.0% exceeds 10.0%"})
	assert.Equal(t, "[dry run] Reconciliation aborted by safety check", title)
	assert.Contains(t, message, "Reason: deletion ratio 15.0% exceeds 10.0%")
}

func TestFormatEventFailed(t *testing.T) {
	t.Parallel()

	title, message := formatEvent(Event{Type: EventReconcileFailed, ErrorMessage: "plex unreachable"})
	assert.Equal(t, "Reconciliation failed", title)
	assert.Equal(t, "Error: plex unreachable", message)
}

func TestFormatEventUnknownTypeIsEmpty(t *testing.T) {
	t.Parallel()

	title, message := formatEvent(Event{Type: EventType("bogus")})
	assert.Empty(t, title)
	assert.Empty(t, message)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", truncate("short", maxTitleLength))

	long := strings.Repeat("a", maxMessageLength+100)
	got := truncate(long, maxMessageLength)
	assert.Len(t, got, maxMessageLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	t.Parallel()

	// Three-byte runes that never align with the cut point.
	long := strings.Repeat("日", maxMessageLength)
	got := truncate(long, maxMessageLength)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxMessageLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestValidateURL(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateURL("generic://example.com/webhook"))
	require.Error(t, ValidateURL("not a url"))
	require.Error(t, ValidateURL("bogusservice://whatever"))
}

func TestNilServiceIsSafe(t *testing.T) {
	t.Parallel()

	var svc *Service
	svc.Notify(Event{Type: EventReconcileCompleted})
	svc.Start(t.Context())
}

func TestEventDefinitionsCoverEveryType(t *testing.T) {
	t.Parallel()

	types := AllEventTypeStrings()
	assert.ElementsMatch(t, []string{
		"reconcile_completed",
		"reconcile_safety_triggered",
		"reconcile_failed",
		"tag_sync_completed",
	}, types)
}
