// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reconcile

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sweeparr/sweeparr/internal/arr"
)

// tagCheckConcurrency bounds concurrent per-item detail fetches during
// the tag-based safety pre-check. Detail fetches are cheap but
// numerous; a small window keeps instances responsive.
const tagCheckConcurrency = 10

// shouldDeleteFn decides whether an item is a deletion candidate. The
// two deletion modes differ only in this predicate; everything else
// (policy flags, protection, execution, accounting) is shared.
//
// A false return with nil error means the item is simply not a
// candidate (watchlist-covered, or untagged) and is not counted in any
// tally. An error marks the item skipped and the batch continues.
type shouldDeleteFn func(ctx context.Context, item *arr.TrackedItem) (bool, error)

// executeStrategy runs the shared per-item deletion pipeline over items.
// Per-item failures never abort the batch: they are logged with item
// context and counted as skipped. Deletes within the loop are issued
// serially to bound instance load and keep failure attribution precise.
func (s *Service) executeStrategy(ctx context.Context, rc *runContext, items []*arr.TrackedItem, shouldDelete shouldDeleteFn) {
	for _, item := range items {
		candidate, err := shouldDelete(ctx, item)
		if err != nil {
			log.Warn().Err(err).
				Str("title", item.Title).
				Str("instance", item.InstanceName).
				Msg("reconcile: candidate check failed, skipping item")
			rc.result.recordSkipped(item.Kind)
			continue
		}
		if !candidate {
			continue
		}

		if !rc.deletionFlagEnabled(item) {
			rc.result.recordSkipped(item.Kind)
			continue
		}

		if rc.isProtected(item) {
			log.Debug().
				Str("title", item.Title).
				Str("instance", item.InstanceName).
				Msg("reconcile: item is on a protection playlist, keeping")
			rc.result.recordProtected(item.Kind)
			continue
		}

		if err := s.deleteItem(ctx, rc, item); err != nil {
			log.Error().Err(err).
				Str("title", item.Title).
				Str("instance", item.InstanceName).
				Msg("reconcile: delete failed, continuing batch")
			rc.result.recordSkipped(item.Kind)
			continue
		}

		rc.result.recordDeleted(item)
	}
}

// deleteItem executes (or, in dry-run, simulates) one deletion.
func (s *Service) deleteItem(ctx context.Context, rc *runContext, item *arr.TrackedItem) error {
	if rc.dryRun {
		log.Info().
			Str("title", item.Title).
			Str("guid", item.GUID()).
			Str("instance", item.InstanceName).
			Bool("deleteFiles", rc.policy.DeleteFiles).
			Msg("reconcile: dry run, would delete")
		return nil
	}

	svc, err := s.serviceFor(ctx, item.InstanceID)
	if err != nil {
		return fmt.Errorf("resolve instance service: %w", err)
	}

	if err := svc.Delete(ctx, item, rc.policy.DeleteFiles); err != nil {
		return err
	}

	log.Info().
		Str("title", item.Title).
		Str("guid", item.GUID()).
		Str("instance", item.InstanceName).
		Bool("deleteFiles", rc.policy.DeleteFiles).
		Msg("reconcile: deleted")
	return nil
}

// watchlistPredicate marks items whose GUIDs miss the inclusion set.
func watchlistPredicate(rc *runContext) shouldDeleteFn {
	return func(_ context.Context, item *arr.TrackedItem) (bool, error) {
		return !guidIntersects(item, rc.inclusion), nil
	}
}

// tagPredicate fetches the item's detail record (bulk listings carry no
// tags) and checks it against the removal-tag prefix.
func (s *Service) tagPredicate(rc *runContext) shouldDeleteFn {
	return func(ctx context.Context, item *arr.TrackedItem) (bool, error) {
		svc, err := s.serviceFor(ctx, item.InstanceID)
		if err != nil {
			return false, err
		}

		tagIDs, err := svc.GetItemTags(ctx, item)
		if err != nil {
			return false, fmt.Errorf("fetch item detail: %w", err)
		}

		return rc.tags.HasRemovalTag(ctx, item.InstanceID, tagIDs)
	}
}

// countTaggedItems is the tag-based safety pre-check: it counts how
// many items carry a removal tag before any deletion happens, fanning
// detail fetches out in a bounded window. The main pass re-fetches the
// same details; that duplication is accepted so the pre-check sees the
// exact state the deletion pass will act on.
func (s *Service) countTaggedItems(ctx context.Context, rc *runContext, items []*arr.TrackedItem) (int, error) {
	var tagged atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tagCheckConcurrency)

	for _, item := range items {
		g.Go(func() error {
			svc, err := s.serviceFor(gctx, item.InstanceID)
			if err != nil {
				return err
			}
			tagIDs, err := svc.GetItemTags(gctx, item)
			if err != nil {
				return fmt.Errorf("pre-check detail for %q: %w", item.Title, err)
			}
			has, err := rc.tags.HasRemovalTag(gctx, item.InstanceID, tagIDs)
			if err != nil {
				return err
			}
			if has {
				tagged.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return int(tagged.Load()), nil
}
