// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package tagging keeps removal tags on arr items in step with current
// watchlist state. Tag-based reconciliation reads these tags to decide
// deletion candidates.
package tagging

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sweeparr/sweeparr/internal/arr"
)

// Inventory is the subset of the arr manager the tagging service needs.
type Inventory interface {
	FetchAllSeries(ctx context.Context) ([]*arr.TrackedItem, error)
	FetchAllMovies(ctx context.Context) ([]*arr.TrackedItem, error)
	ServiceFor(ctx context.Context, instanceID int) (*arr.Service, error)
}

// Service applies and removes the configured removal tag.
type Service struct {
	inventory Inventory
	tagLabel  func() string
}

// NewService creates a tagging Service. The removal tag label is read
// through the provider on every pass so config reloads take effect
// without a restart.
func NewService(inventory Inventory, tagLabel func() string) *Service {
	return &Service{
		inventory: inventory,
		tagLabel:  tagLabel,
	}
}

func (s *Service) label() string {
	return strings.ToLower(strings.TrimSpace(s.tagLabel()))
}

// Result summarizes one tag synchronization pass.
type Result struct {
	Tagged   int `json:"tagged"`
	Untagged int `json:"untagged"`
}

// TagContentWithCurrentWatchlistData tags every tracked item no
// watchlist GUID covers and untags covered items that still carry the
// removal tag. Items and inclusion GUIDs are the caller's current view;
// passing fresh data is what makes subsequent tag-based deletion
// trustworthy.
func (s *Service) TagContentWithCurrentWatchlistData(ctx context.Context, items []*arr.TrackedItem, inclusionGUIDs map[string]struct{}) (*Result, error) {
	// One label per pass; a reload mid-pass applies on the next one.
	label := s.label()
	if label == "" {
		return nil, fmt.Errorf("removal tag label is not configured")
	}

	// Partition per instance: tag ids are instance-scoped.
	byInstance := make(map[int][]*arr.TrackedItem)
	for _, item := range items {
		byInstance[item.InstanceID] = append(byInstance[item.InstanceID], item)
	}

	result := &Result{}
	for instanceID, instanceItems := range byInstance {
		svc, err := s.inventory.ServiceFor(ctx, instanceID)
		if err != nil {
			return nil, fmt.Errorf("tagging instance %d: %w", instanceID, err)
		}

		tagged, untagged, err := s.syncInstance(ctx, svc, label, instanceItems, inclusionGUIDs)
		if err != nil {
			return nil, fmt.Errorf("tagging instance %s: %w", svc.InstanceName(), err)
		}
		result.Tagged += tagged
		result.Untagged += untagged
	}

	log.Info().Int("tagged", result.Tagged).Int("untagged", result.Untagged).Str("tag", label).Msg("tagging: synchronized removal tags")
	return result, nil
}

func (s *Service) syncInstance(ctx context.Context, svc *arr.Service, label string, items []*arr.TrackedItem, inclusionGUIDs map[string]struct{}) (tagged, untagged int, err error) {
	tag, err := s.ensureTag(ctx, svc, label)
	if err != nil {
		return 0, 0, err
	}

	var toTag, toUntag []int64
	for _, item := range items {
		covered := false
		for _, guid := range item.GUIDs {
			if _, ok := inclusionGUIDs[guid]; ok {
				covered = true
				break
			}
		}

		// Tag presence requires a detail fetch; bulk listings carry no tags.
		itemTags, err := svc.GetItemTags(ctx, item)
		if err != nil {
			log.Warn().Err(err).Str("title", item.Title).Str("instance", item.InstanceName).Msg("tagging: failed to read item tags, skipping")
			continue
		}
		hasTag := containsTag(itemTags, tag.ID)

		switch {
		case !covered && !hasTag:
			toTag = append(toTag, item.ArrID)
		case covered && hasTag:
			toUntag = append(toUntag, item.ArrID)
		}
	}

	kind := items[0].Kind
	if len(toTag) > 0 {
		if err := s.editTags(ctx, svc, kind, toTag, tag.ID, "add"); err != nil {
			return 0, 0, err
		}
	}
	if len(toUntag) > 0 {
		if err := s.editTags(ctx, svc, kind, toUntag, tag.ID, "remove"); err != nil {
			return 0, 0, err
		}
	}

	return len(toTag), len(toUntag), nil
}

func (s *Service) ensureTag(ctx context.Context, svc *arr.Service, label string) (*arr.Tag, error) {
	tags, err := svc.GetTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("get tags: %w", err)
	}
	for i := range tags {
		if strings.EqualFold(tags[i].Label, label) {
			return &tags[i], nil
		}
	}

	tag, err := svc.Client().CreateTag(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("create removal tag: %w", err)
	}
	return tag, nil
}

func (s *Service) editTags(ctx context.Context, svc *arr.Service, kind arr.MediaKind, ids []int64, tagID int, apply string) error {
	switch kind {
	case arr.MediaKindSeries:
		return svc.Client().EditSeriesTags(ctx, ids, []int{tagID}, apply)
	case arr.MediaKindMovie:
		return svc.Client().EditMovieTags(ctx, ids, []int{tagID}, apply)
	default:
		return fmt.Errorf("unknown media kind: %s", kind)
	}
}

func containsTag(tags []int, id int) bool {
	for _, t := range tags {
		if t == id {
			return true
		}
	}
	return false
}
