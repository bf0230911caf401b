// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package plex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeGUID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{input: "imdb://tt0133093", want: "imdb:tt0133093"},
		{input: "IMDB://TT0133093", want: "imdb:tt0133093"},
		{input: "tmdb://603", want: "tmdb:603"},
		{input: "tvdb://332484", want: "tvdb:332484"},
		{input: "plex://movie/5d776834880197001ec967c6", want: ""},
		{input: "com.plexapp.agents.imdb://tt0133093?lang=en", want: ""},
		{input: "imdb://", want: ""},
		{input: "", want: ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeGUID(tc.input), "input %q", tc.input)
	}
}

func newPlexTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{Host: server.URL, Token: "plex-token", Timeout: 5})
}

func TestFindPlaylistSkipsSmartAndMatchesCaseInsensitive(t *testing.T) {
	t.Parallel()

	client := newPlexTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "plex-token", r.Header.Get("X-Plex-Token"))
		assert.Equal(t, "/playlists", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"MediaContainer":{"Metadata":[
			{"ratingKey":"1","title":"do not delete","smart":true},
			{"ratingKey":"2","title":"Do Not Delete","smart":false}
		]}}`))
	})

	playlist, err := client.FindPlaylist(context.Background(), "DO NOT DELETE")
	require.NoError(t, err)
	assert.Equal(t, "2", playlist.RatingKey)
}

func TestFindPlaylistNotFound(t *testing.T) {
	t.Parallel()

	client := newPlexTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"MediaContainer":{"Metadata":[]}}`))
	})

	_, err := client.FindPlaylist(context.Background(), "Do Not Delete")
	require.ErrorIs(t, err, ErrPlaylistNotFound)
}

func TestPlaylistItemGUIDs(t *testing.T) {
	t.Parallel()

	client := newPlexTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/playlists/7/items", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"MediaContainer":{"Metadata":[
			{"ratingKey":"10","Guid":[{"id":"imdb://tt0133093"},{"id":"tmdb://603"},{"id":"plex://movie/abc"}]},
			{"ratingKey":"11","guid":"tvdb://332484"}
		]}}`))
	})

	guids, err := client.PlaylistItemGUIDs(context.Background(), "7")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"imdb:tt0133093", "tmdb:603", "tvdb:332484"}, guids)
}

func TestCreatePlaylist(t *testing.T) {
	t.Parallel()

	client := newPlexTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/":
			w.Write([]byte(`{"MediaContainer":{"machineIdentifier":"machine-1"}}`))
		case "/playlists":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Do Not Delete", r.URL.Query().Get("title"))
			assert.Contains(t, r.URL.Query().Get("uri"), "machine-1")
			w.Write([]byte(`{"MediaContainer":{"Metadata":[{"ratingKey":"9","title":"Do Not Delete"}]}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	playlist, err := client.CreatePlaylist(context.Background(), "Do Not Delete")
	require.NoError(t, err)
	assert.Equal(t, "9", playlist.RatingKey)
}
