// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package arr provides HTTP clients for Sonarr and Radarr plus a
// manager that fans inventory fetches out across configured instances.
package arr

import (
	"fmt"
	"strings"
)

// MediaKind distinguishes tracked movies from tracked series.
type MediaKind string

const (
	MediaKindMovie  MediaKind = "movie"
	MediaKindSeries MediaKind = "series"
)

// Tag is an arr-side label. Matching against removal-tag prefixes is
// always done on the lowercased label.
type Tag struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// Series is the Sonarr series resource subset sweeparr consumes.
// Tags are only populated on detail fetches, not bulk listings.
type Series struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	ImdbID    string `json:"imdbId"`
	TvdbID    int64  `json:"tvdbId"`
	TmdbID    int64  `json:"tmdbId"`
	Tags      []int  `json:"tags"`
	Monitored bool   `json:"monitored"`
}

// Ended reports whether the series has finished airing.
func (s *Series) Ended() bool {
	return strings.EqualFold(s.Status, "ended")
}

// Movie is the Radarr movie resource subset sweeparr consumes.
type Movie struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	ImdbID    string `json:"imdbId"`
	TmdbID    int64  `json:"tmdbId"`
	Tags      []int  `json:"tags"`
	Monitored bool   `json:"monitored"`
}

// TrackedItem is the normalized view of a series or movie the
// reconciliation engine operates on.
type TrackedItem struct {
	InstanceID   int
	InstanceName string
	ArrID        int64
	Title        string
	Kind         MediaKind
	GUIDs        []string
	// Ended is meaningful for series only.
	Ended bool
}

// GUID returns the item's primary identifier for audit listings, or an
// empty string when the item carries none.
func (t *TrackedItem) GUID() string {
	if len(t.GUIDs) == 0 {
		return ""
	}
	return t.GUIDs[0]
}

// buildGUIDs assembles namespaced lowercase identifiers. Zero or empty
// upstream ids are omitted.
func buildGUIDs(imdbID string, tvdbID, tmdbID int64) []string {
	guids := make([]string, 0, 3)
	if trimmed := strings.TrimSpace(imdbID); trimmed != "" {
		guids = append(guids, "imdb:"+strings.ToLower(trimmed))
	}
	if tvdbID > 0 {
		guids = append(guids, fmt.Sprintf("tvdb:%d", tvdbID))
	}
	if tmdbID > 0 {
		guids = append(guids, fmt.Sprintf("tmdb:%d", tmdbID))
	}
	return guids
}

// TrackedItemFromSeries normalizes a Sonarr series.
func TrackedItemFromSeries(instanceID int, instanceName string, s *Series) *TrackedItem {
	return &TrackedItem{
		InstanceID:   instanceID,
		InstanceName: instanceName,
		ArrID:        s.ID,
		Title:        s.Title,
		Kind:         MediaKindSeries,
		GUIDs:        buildGUIDs(s.ImdbID, s.TvdbID, s.TmdbID),
		Ended:        s.Ended(),
	}
}

// TrackedItemFromMovie normalizes a Radarr movie.
func TrackedItemFromMovie(instanceID int, instanceName string, m *Movie) *TrackedItem {
	return &TrackedItem{
		InstanceID:   instanceID,
		InstanceName: instanceName,
		ArrID:        m.ID,
		Title:        m.Title,
		Kind:         MediaKindMovie,
		GUIDs:        buildGUIDs(m.ImdbID, 0, m.TmdbID),
	}
}
