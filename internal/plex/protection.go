// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package plex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sweeparr/sweeparr/internal/models"
)

// ProtectionService resolves the union of GUIDs on every user's
// protection playlist. Any failure to reach the media server or to
// create/read a single playlist fails the whole resolution: unknown
// protection state must never allow a deletion through.
type ProtectionService struct {
	host         func() string
	playlistName func() string
	userStore    *models.UserStore
	httpClient   *http.Client

	mu     sync.Mutex
	cached map[string]struct{}

	// clientFactory is replaceable for tests.
	clientFactory func(token string) *Client
}

// NewProtectionService creates a ProtectionService. Host and playlist
// name are read through the providers on every resolution so config
// reloads take effect without a restart.
func NewProtectionService(host, playlistName func() string, userStore *models.UserStore) *ProtectionService {
	s := &ProtectionService{
		host:         host,
		playlistName: playlistName,
		userStore:    userStore,
	}
	s.clientFactory = func(token string) *Client {
		return NewClient(Config{Host: s.host(), Token: token, HTTPClient: s.httpClient})
	}
	return s
}

// GetOrCreateProtectionPlaylists ensures every user with a token has a
// protection playlist, creating missing ones. Returns the number of
// playlists resolved.
func (s *ProtectionService) GetOrCreateProtectionPlaylists(ctx context.Context) (int, error) {
	playlists, err := s.resolvePlaylists(ctx)
	if err != nil {
		return 0, err
	}
	return len(playlists), nil
}

type userPlaylist struct {
	userName string
	client   *Client
	playlist *Playlist
}

func (s *ProtectionService) resolvePlaylists(ctx context.Context) ([]userPlaylist, error) {
	if s.host() == "" {
		return nil, errors.New("plex host is not configured")
	}

	playlistName := s.playlistName()

	users, err := s.userStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	var playlists []userPlaylist
	for _, user := range users {
		token, err := s.userStore.GetPlexToken(user)
		if err != nil {
			return nil, err
		}
		if token == "" {
			continue
		}

		client := s.clientFactory(token)

		playlist, err := client.FindPlaylist(ctx, playlistName)
		if errors.Is(err, ErrPlaylistNotFound) {
			playlist, err = client.CreatePlaylist(ctx, playlistName)
			if err == nil {
				log.Info().Str("user", user.Name).Str("playlist", playlistName).Msg("plex: created protection playlist")
			}
		}
		if err != nil {
			return nil, fmt.Errorf("protection playlist for user %s: %w", user.Name, err)
		}

		playlists = append(playlists, userPlaylist{userName: user.Name, client: client, playlist: playlist})
	}

	return playlists, nil
}

// GetProtectedItemGUIDs returns the union of member GUIDs across all
// users' protection playlists. The result is cached until ClearCaches.
func (s *ProtectionService) GetProtectedItemGUIDs(ctx context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	if s.cached != nil {
		cached := s.cached
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	playlists, err := s.resolvePlaylists(ctx)
	if err != nil {
		return nil, err
	}

	protected := make(map[string]struct{})
	for _, up := range playlists {
		guids, err := up.client.PlaylistItemGUIDs(ctx, up.playlist.RatingKey)
		if err != nil {
			return nil, fmt.Errorf("protection playlist items for user %s: %w", up.userName, err)
		}
		for _, guid := range guids {
			protected[guid] = struct{}{}
		}
	}

	log.Debug().Int("guids", len(protected)).Msg("plex: resolved protected GUIDs")

	s.mu.Lock()
	s.cached = protected
	s.mu.Unlock()

	return protected, nil
}

// ClearCaches drops the cached protection set. Callers clear at both
// run start and run end so no state leaks across runs.
func (s *ProtectionService) ClearCaches() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
