// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reconcile

import (
	"context"
	"strings"
	"sync"

	"github.com/sweeparr/sweeparr/internal/arr"
	"github.com/sweeparr/sweeparr/internal/domain"
)

// itemService is the per-instance arr surface the engine touches.
// *arr.Service satisfies it; tests supply fakes.
type itemService interface {
	GetTags(ctx context.Context) ([]arr.Tag, error)
	GetItemTags(ctx context.Context, item *arr.TrackedItem) ([]int, error)
	Delete(ctx context.Context, item *arr.TrackedItem, deleteFiles bool) error
}

// runContext carries all run-scoped state. It is constructed at run
// start and dropped at run end; nothing in it outlives the run, which
// is what keeps caches from leaking across runs.
type runContext struct {
	policy domain.DeletionPolicy
	mode   domain.DeletionMode
	dryRun bool

	// inclusion is the set of GUIDs covered by at least one active
	// watchlist entry. Only populated in watchlist mode.
	inclusion map[string]struct{}

	// protected is the union of protection playlist GUIDs. Nil when
	// playlist protection is disabled.
	protected map[string]struct{}

	tags *tagCache

	result *RunResult
}

func newRunContext(policy domain.DeletionPolicy, dryRun bool, serviceFor serviceForFn) *runContext {
	return &runContext{
		policy: policy,
		mode:   policy.Mode(),
		dryRun: dryRun,
		tags: &tagCache{
			serviceFor: serviceFor,
			prefix:     strings.ToLower(policy.RemovalTagPrefix),
		},
		result: NewRunResult(dryRun),
	}
}

// guidIntersects reports whether any of the item's GUIDs is in set.
func guidIntersects(item *arr.TrackedItem, set map[string]struct{}) bool {
	for _, guid := range item.GUIDs {
		if _, ok := set[guid]; ok {
			return true
		}
	}
	return false
}

// isProtected applies the protection check when enabled.
func (rc *runContext) isProtected(item *arr.TrackedItem) bool {
	if rc.protected == nil {
		return false
	}
	return guidIntersects(item, rc.protected)
}

// deletionFlagEnabled resolves the content-type-specific policy flag:
// movies use deleteMovie, shows split by lifecycle state.
func (rc *runContext) deletionFlagEnabled(item *arr.TrackedItem) bool {
	if item.Kind == arr.MediaKindMovie {
		return rc.policy.DeleteMovie
	}
	if item.Ended {
		return rc.policy.DeleteEndedShow
	}
	return rc.policy.DeleteContinuingShow
}

type serviceForFn func(ctx context.Context, instanceID int) (itemService, error)

// tagCache lazily loads and memoizes each instance's tag id to label
// map for the duration of one run.
type tagCache struct {
	serviceFor serviceForFn
	prefix     string

	mu         sync.Mutex
	byInstance map[int]map[int]string
}

// forInstance returns the instance's tag map, fetching it on first use.
func (c *tagCache) forInstance(ctx context.Context, instanceID int) (map[int]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.byInstance == nil {
		c.byInstance = make(map[int]map[int]string)
	}
	if tags, ok := c.byInstance[instanceID]; ok {
		return tags, nil
	}

	svc, err := c.serviceFor(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	tags, err := svc.GetTags(ctx)
	if err != nil {
		return nil, err
	}

	labels := make(map[int]string, len(tags))
	for _, tag := range tags {
		labels[tag.ID] = strings.ToLower(tag.Label)
	}
	c.byInstance[instanceID] = labels
	return labels, nil
}

// HasRemovalTag reports whether any of the item's tag ids maps to a
// label starting with the removal-tag prefix (case-insensitive).
func (c *tagCache) HasRemovalTag(ctx context.Context, instanceID int, tagIDs []int) (bool, error) {
	if len(tagIDs) == 0 || c.prefix == "" {
		return false, nil
	}

	labels, err := c.forInstance(ctx, instanceID)
	if err != nil {
		return false, err
	}

	for _, id := range tagIDs {
		if label, ok := labels[id]; ok && strings.HasPrefix(label, c.prefix) {
			return true, nil
		}
	}
	return false, nil
}
