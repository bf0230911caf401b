// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeparr/sweeparr/internal/arr"
	"github.com/sweeparr/sweeparr/internal/domain"
	"github.com/sweeparr/sweeparr/internal/services/notifications"
	"github.com/sweeparr/sweeparr/internal/services/tagging"
)

// fakeArrService satisfies itemService and records every delete.
type fakeArrService struct {
	mu sync.Mutex

	tags        []arr.Tag
	itemTags    map[int64][]int
	itemTagsErr map[int64]error
	deleteErr   map[int64]error

	deleted []string
}

func (f *fakeArrService) GetTags(_ context.Context) ([]arr.Tag, error) {
	return f.tags, nil
}

func (f *fakeArrService) GetItemTags(_ context.Context, item *arr.TrackedItem) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.itemTagsErr[item.ArrID]; ok {
		return nil, err
	}
	return f.itemTags[item.ArrID], nil
}

func (f *fakeArrService) Delete(_ context.Context, item *arr.TrackedItem, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.deleteErr[item.ArrID]; ok {
		return err
	}
	f.deleted = append(f.deleted, item.Title)
	return nil
}

func (f *fakeArrService) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deleted)
}

func basePolicy() domain.DeletionPolicy {
	return domain.DeletionPolicy{
		DeleteMovie:           true,
		DeleteEndedShow:       true,
		DeleteContinuingShow:  true,
		DeletionMode:          string(domain.DeletionModeWatchlist),
		MaxDeletionPrevention: 10,
		RemovalTagPrefix:      "sweeparr:remove",
		NotifyPolicy:          string(domain.NotifyNever),
	}
}

// testHarness wires a Service entirely from providers.
type testHarness struct {
	service *Service
	arr     *fakeArrService

	movies    []*arr.TrackedItem
	shows     []*arr.TrackedItem
	inclusion map[string]struct{}
	protected map[string]struct{}

	refreshErr    error
	protectionErr error
}

func newHarness(policy domain.DeletionPolicy) *testHarness {
	h := &testHarness{
		arr:       &fakeArrService{},
		inclusion: map[string]struct{}{},
	}

	cfg := &domain.Config{Deletion: policy}

	h.service = &Service{
		cfg: func() *domain.Config { return cfg },
	}
	h.service.fetchSeriesProvider = func(_ context.Context) ([]*arr.TrackedItem, error) {
		return h.shows, nil
	}
	h.service.fetchMoviesProvider = func(_ context.Context) ([]*arr.TrackedItem, error) {
		return h.movies, nil
	}
	h.service.serviceForProvider = func(_ context.Context, _ int) (itemService, error) {
		return h.arr, nil
	}
	h.service.refreshProvider = func(_ context.Context) error {
		return h.refreshErr
	}
	h.service.inclusionProvider = func(_ context.Context) (map[string]struct{}, error) {
		return h.inclusion, nil
	}
	h.service.protectedGuidsProvider = func(_ context.Context) (map[string]struct{}, error) {
		if h.protectionErr != nil {
			return nil, h.protectionErr
		}
		return h.protected, nil
	}
	h.service.clearProtectionProvider = func() {}
	h.service.tagSyncProvider = func(_ context.Context, _ []*arr.TrackedItem) error {
		return nil
	}

	return h
}

func movie(id int64, title, guid string) *arr.TrackedItem {
	return &arr.TrackedItem{
		InstanceID:   1,
		InstanceName: "radarr-main",
		ArrID:        id,
		Title:        title,
		Kind:         arr.MediaKindMovie,
		GUIDs:        []string{guid},
	}
}

func show(id int64, title, guid string, ended bool) *arr.TrackedItem {
	return &arr.TrackedItem{
		InstanceID:   2,
		InstanceName: "sonarr-main",
		ArrID:        id,
		Title:        title,
		Kind:         arr.MediaKindSeries,
		GUIDs:        []string{guid},
		Ended:        ended,
	}
}

// fill populates n movies; the first covered are added to the
// inclusion set, the rest become deletion candidates.
func (h *testHarness) fill(n, covered int) {
	for i := range n {
		guid := fmt.Sprintf("tmdb:%d", i)
		h.movies = append(h.movies, movie(int64(i), fmt.Sprintf("Movie %d", i), guid))
		if i < covered {
			h.inclusion[guid] = struct{}{}
		}
	}
}

func TestRunNoDeletionFlags(t *testing.T) {
	t.Parallel()

	policy := basePolicy()
	policy.DeleteMovie = false
	policy.DeleteEndedShow = false
	policy.DeleteContinuingShow = false

	h := newHarness(policy)
	h.fill(10, 0)

	fetched := false
	h.service.fetchMoviesProvider = func(_ context.Context) ([]*arr.TrackedItem, error) {
		fetched = true
		return h.movies, nil
	}

	result, err := h.service.Run(context.Background(), false, "test")
	require.NoError(t, err)

	assert.False(t, fetched, "disabled run must not touch instances")
	assert.Zero(t, result.Total.Processed)
	assert.Zero(t, result.Total.Deleted)
	assert.NotEmpty(t, result.Message)
	assert.Zero(t, h.arr.deleteCount())
}

func TestRunWatchlistModeDeletesOnlyUncovered(t *testing.T) {
	t.Parallel()

	h := newHarness(basePolicy())
	h.fill(100, 92)

	result, err := h.service.Run(context.Background(), false, "test")
	require.NoError(t, err)

	assert.False(t, result.SafetyTriggered)
	assert.Equal(t, 8, result.Total.Deleted)
	assert.Equal(t, 8, result.Total.Processed)
	assert.Equal(t, 8, h.arr.deleteCount())

	// Covered items are not candidates at all.
	for _, title := range h.arr.deleted {
		assert.NotContains(t, []string{"Movie 0", "Movie 1"}, title)
	}
}

func TestRunSafetyThresholdAborts(t *testing.T) {
	t.Parallel()

	h := newHarness(basePolicy())
	h.fill(100, 85) // 15 candidates at a 10% threshold

	result, err := h.service.Run(context.Background(), false, "test")
	require.NoError(t, err)

	assert.True(t, result.SafetyTriggered)
	assert.Contains(t, result.SafetyMessage, "threshold")
	assert.Zero(t, result.Total.Deleted)
	assert.Zero(t, h.arr.deleteCount())
}

func TestRunAccountingIdentity(t *testing.T) {
	t.Parallel()

	policy := basePolicy()
	policy.MaxDeletionPrevention = 100
	policy.DeleteContinuingShow = false
	policy.PlaylistProtection = true
	policy.ProtectionPlaylistName = "Do Not Delete"

	h := newHarness(policy)
	h.movies = []*arr.TrackedItem{
		movie(1, "Keep", "tmdb:1"),
		movie(2, "Gone", "tmdb:2"),
		movie(3, "Guarded", "tmdb:3"),
	}
	h.shows = []*arr.TrackedItem{
		show(4, "Still Airing", "tvdb:4", false),
		show(5, "Finished", "tvdb:5", true),
	}
	h.inclusion = map[string]struct{}{"tmdb:1": {}}
	h.protected = map[string]struct{}{"tmdb:3": {}}

	result, err := h.service.Run(context.Background(), false, "test")
	require.NoError(t, err)

	inventory := len(h.movies) + len(h.shows)
	assert.Equal(t, result.Total.Processed, result.Total.Deleted+result.Total.Skipped+result.Total.Protected)
	assert.LessOrEqual(t, result.Total.Processed, inventory)

	assert.Equal(t, 2, result.Total.Deleted) // Gone + Finished
	assert.Equal(t, 1, result.Total.Protected)
	assert.Equal(t, 1, result.Total.Skipped) // continuing show flag off
	assert.Equal(t, 1, result.Movies.Protected)
	assert.Equal(t, 1, result.Shows.Skipped)
	assert.ElementsMatch(t, []string{"Gone", "Finished"}, h.arr.deleted)
}

func TestRunProtectionUsesPreProtectionCountForSafety(t *testing.T) {
	t.Parallel()

	policy := basePolicy()
	policy.PlaylistProtection = true
	policy.ProtectionPlaylistName = "Do Not Delete"

	h := newHarness(policy)
	h.fill(100, 85) // 15 candidates, 10% threshold

	// Protecting most candidates must not rescue the run: the ratio is
	// evaluated before protection filtering.
	h.protected = map[string]struct{}{}
	for i := 85; i < 97; i++ {
		h.protected[fmt.Sprintf("tmdb:%d", i)] = struct{}{}
	}

	result, err := h.service.Run(context.Background(), false, "test")
	require.NoError(t, err)

	assert.True(t, result.SafetyTriggered)
	assert.Zero(t, h.arr.deleteCount())
}

func TestRunProtectedItemsCountedProtected(t *testing.T) {
	t.Parallel()

	policy := basePolicy()
	policy.PlaylistProtection = true
	policy.ProtectionPlaylistName = "Do Not Delete"

	h := newHarness(policy)
	h.fill(100, 92) // 8 candidates, within threshold
	h.protected = map[string]struct{}{
		"tmdb:95": {},
		"tmdb:99": {},
	}

	result, err := h.service.Run(context.Background(), false, "test")
	require.NoError(t, err)

	assert.False(t, result.SafetyTriggered)
	assert.Equal(t, 6, result.Total.Deleted)
	assert.Equal(t, 2, result.Total.Protected)
	assert.Equal(t, 8, result.Total.Processed)
	assert.Equal(t, 6, h.arr.deleteCount())
}

func TestRunDryRunParity(t *testing.T) {
	t.Parallel()

	run := func(dryRun bool) (*RunResult, *fakeArrService) {
		policy := basePolicy()
		policy.PlaylistProtection = true
		policy.ProtectionPlaylistName = "Do Not Delete"

		h := newHarness(policy)
		h.fill(100, 92)
		h.protected = map[string]struct{}{"tmdb:95": {}}

		result, err := h.service.Run(context.Background(), dryRun, "test")
		require.NoError(t, err)
		return result, h.arr
	}

	wet, wetArr := run(false)
	dry, dryArr := run(true)

	assert.Equal(t, wet.Total.Deleted, dry.Total.Deleted)
	assert.Equal(t, wet.Total.Skipped, dry.Total.Skipped)
	assert.Equal(t, wet.Total.Protected, dry.Total.Protected)
	assert.Equal(t, wet.Total.Processed, dry.Total.Processed)

	assert.Equal(t, 7, wetArr.deleteCount())
	assert.Zero(t, dryArr.deleteCount(), "dry run must never call delete")
	assert.True(t, dry.DryRun)
}

func TestRunDuplicateTriggerReturnsEmpty(t *testing.T) {
	t.Parallel()

	h := newHarness(basePolicy())
	h.fill(10, 10)

	h.service.running.Store(true)

	result, err := h.service.Run(context.Background(), false, "test")
	require.NoError(t, err)

	assert.NotEmpty(t, result.Message)
	assert.Zero(t, result.Total.Processed)
	assert.False(t, h.service.running.CompareAndSwap(false, true),
		"duplicate trigger must not release the running run's guard")
}

func TestRunGuardReleasedAfterRun(t *testing.T) {
	t.Parallel()

	h := newHarness(basePolicy())
	h.fill(10, 10)

	_, err := h.service.Run(context.Background(), false, "test")
	require.NoError(t, err)

	assert.False(t, h.service.running.Load())
}

func TestRunWatchlistRefreshFailureIsUnsafe(t *testing.T) {
	t.Parallel()

	h := newHarness(basePolicy())
	h.fill(10, 5)
	h.refreshErr = errors.New("plex unavailable")

	result, err := h.service.Run(context.Background(), false, "test")
	require.NoError(t, err)

	assert.True(t, result.SafetyTriggered)
	assert.Zero(t, h.arr.deleteCount())
}

func TestRunEmptyInclusionSetIsUnsafe(t *testing.T) {
	t.Parallel()

	h := newHarness(basePolicy())
	h.fill(10, 0)
	h.inclusion = map[string]struct{}{}

	result, err := h.service.Run(context.Background(), false, "test")
	require.NoError(t, err)

	assert.True(t, result.SafetyTriggered)
	assert.Zero(t, h.arr.deleteCount())
}

func TestRunProtectionFailureFailsClosed(t *testing.T) {
	t.Parallel()

	policy := basePolicy()
	policy.PlaylistProtection = true
	policy.ProtectionPlaylistName = "Do Not Delete"

	h := newHarness(policy)
	h.fill(100, 95)
	h.protectionErr = errors.New("plex token expired")

	result, err := h.service.Run(context.Background(), false, "test")
	require.NoError(t, err)

	assert.True(t, result.SafetyTriggered)
	assert.Zero(t, result.Total.Deleted)
	assert.Zero(t, h.arr.deleteCount())
}

func TestRunInvalidThresholdIsFatal(t *testing.T) {
	t.Parallel()

	for _, max := range []float64{0, -1, math.NaN()} {
		policy := basePolicy()
		policy.MaxDeletionPrevention = max

		h := newHarness(policy)
		h.fill(10, 5)

		_, err := h.service.Run(context.Background(), false, "test")
		require.ErrorIs(t, err, domain.ErrInvalidSafetyThreshold)
		assert.Zero(t, h.arr.deleteCount())
		assert.False(t, h.service.running.Load())
	}
}

func TestRunPerItemDeleteFailureContinuesBatch(t *testing.T) {
	t.Parallel()

	h := newHarness(basePolicy())
	h.fill(100, 95)
	h.arr.deleteErr = map[int64]error{96: errors.New("instance returned 500")}

	result, err := h.service.Run(context.Background(), false, "test")
	require.NoError(t, err)

	assert.Equal(t, 4, result.Total.Deleted)
	assert.Equal(t, 1, result.Total.Skipped)
	assert.Equal(t, 5, result.Total.Processed)
}

func TestRunTagBasedModeDeletesOnlyTagged(t *testing.T) {
	t.Parallel()

	policy := basePolicy()
	policy.DeletionMode = string(domain.DeletionModeTagBased)

	h := newHarness(policy)
	h.fill(100, 0)
	h.arr.tags = []arr.Tag{{ID: 7, Label: "sweeparr:remove"}}
	h.arr.itemTags = map[int64][]int{
		3:  {7},
		42: {7, 9},
		55: {9},
	}

	result, err := h.service.Run(context.Background(), false, "test")
	require.NoError(t, err)

	assert.False(t, result.SafetyTriggered)
	assert.Equal(t, 2, result.Total.Deleted)
	assert.Equal(t, 2, result.Total.Processed, "untagged items must not be counted")
	assert.ElementsMatch(t, []string{"Movie 3", "Movie 42"}, h.arr.deleted)
}

func TestRunTagBasedSafetyPreCheckAborts(t *testing.T) {
	t.Parallel()

	policy := basePolicy()
	policy.DeletionMode = string(domain.DeletionModeTagBased)

	h := newHarness(policy)
	h.fill(100, 0)
	h.arr.tags = []arr.Tag{{ID: 7, Label: "sweeparr:remove"}}
	h.arr.itemTags = map[int64][]int{}
	for i := range 15 {
		h.arr.itemTags[int64(i)] = []int{7}
	}

	result, err := h.service.Run(context.Background(), false, "test")
	require.NoError(t, err)

	assert.True(t, result.SafetyTriggered)
	assert.Zero(t, h.arr.deleteCount())
}

func TestRunTagBasedPreCheckFailureIsError(t *testing.T) {
	t.Parallel()

	policy := basePolicy()
	policy.DeletionMode = string(domain.DeletionModeTagBased)

	h := newHarness(policy)
	h.fill(10, 0)
	h.arr.tags = []arr.Tag{{ID: 7, Label: "sweeparr:remove"}}
	h.arr.itemTags = map[int64][]int{1: {7}}
	h.arr.itemTagsErr = map[int64]error{5: errors.New("instance timeout")}

	_, err := h.service.Run(context.Background(), false, "test")
	require.Error(t, err)
	assert.Zero(t, h.arr.deleteCount())
	assert.False(t, h.service.running.Load())
}

// fakeNotifier records every dispatched event.
type fakeNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (f *fakeNotifier) Notify(event notifications.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeNotifier) all() []notifications.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifications.Event(nil), f.events...)
}

func TestTagSyncNotification(t *testing.T) {
	t.Parallel()

	policy := basePolicy()
	policy.DeletionMode = string(domain.DeletionModeTagBased)
	policy.NotifyPolicy = string(domain.NotifyAlways)

	notifier := &fakeNotifier{}
	svc := &Service{notifier: notifier}

	rc := newRunContext(policy, true, nil)
	svc.notifyTagSync(rc, &tagging.Result{Tagged: 3, Untagged: 1})

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, notifications.EventTagSyncCompleted, events[0].Type)
	assert.Equal(t, 3, events[0].Tagged)
	assert.Equal(t, 1, events[0].Untagged)
	assert.True(t, events[0].DryRun)
	assert.Equal(t, string(domain.DeletionModeTagBased), events[0].Mode)
}

func TestTagSyncNotificationHonorsPolicy(t *testing.T) {
	t.Parallel()

	policy := basePolicy()
	policy.DeletionMode = string(domain.DeletionModeTagBased)

	policy.NotifyPolicy = string(domain.NotifyNever)
	notifier := &fakeNotifier{}
	svc := &Service{notifier: notifier}
	svc.notifyTagSync(newRunContext(policy, false, nil), &tagging.Result{Tagged: 2})
	assert.Empty(t, notifier.all())

	policy.NotifyPolicy = string(domain.NotifyOnAction)
	svc.notifyTagSync(newRunContext(policy, false, nil), &tagging.Result{})
	assert.Empty(t, notifier.all())

	svc.notifyTagSync(newRunContext(policy, false, nil), &tagging.Result{Untagged: 1})
	require.Len(t, notifier.all(), 1)
}
