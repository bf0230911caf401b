// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package plex provides the minimal Plex Media Server API surface
// sweeparr needs: playlist lookup, creation, and member GUID listing.
package plex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrPlaylistNotFound indicates no playlist matched the requested title.
var ErrPlaylistNotFound = errors.New("plex playlist not found")

// Config holds the options for constructing a Client.
type Config struct {
	Host       string
	Token      string
	Timeout    int
	HTTPClient *http.Client
}

// Client is a per-token Plex API wrapper. Protection playlists are
// per-user, so each user's token gets its own Client.
type Client struct {
	host       string
	token      string
	httpClient *http.Client
}

// NewClient constructs a new Client using the provided configuration.
func NewClient(cfg Config) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &Client{
		host:       strings.TrimRight(cfg.Host, "/"),
		token:      cfg.Token,
		httpClient: client,
	}
}

// Playlist is the subset of the Plex playlist resource sweeparr uses.
type Playlist struct {
	RatingKey string `json:"ratingKey"`
	Title     string `json:"title"`
	Smart     bool   `json:"smart"`
}

type mediaContainer struct {
	MediaContainer struct {
		MachineIdentifier string     `json:"machineIdentifier"`
		Metadata          []metadata `json:"Metadata"`
	} `json:"MediaContainer"`
}

type metadata struct {
	RatingKey string `json:"ratingKey"`
	Title     string `json:"title"`
	Smart     bool   `json:"smart"`
	GUID      string `json:"guid"`
	GUIDs     []struct {
		ID string `json:"id"`
	} `json:"Guid"`
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out *mediaContainer) error {
	return c.request(ctx, http.MethodGet, endpoint, query, out)
}

func (c *Client) request(ctx context.Context, method, endpoint string, query url.Values, out *mediaContainer) error {
	u, err := url.JoinPath(c.host, endpoint)
	if err != nil {
		return fmt.Errorf("build plex endpoint: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("build plex request: %w", err)
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("plex request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("plex returned status %d for %s %s", resp.StatusCode, method, endpoint)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read plex response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode plex response: %w", err)
	}
	return nil
}

// MachineIdentifier returns the server's unique id, needed to build
// playlist creation URIs.
func (c *Client) MachineIdentifier(ctx context.Context) (string, error) {
	var container mediaContainer
	if err := c.get(ctx, "/", nil, &container); err != nil {
		return "", err
	}
	if container.MediaContainer.MachineIdentifier == "" {
		return "", errors.New("plex server returned no machine identifier")
	}
	return container.MediaContainer.MachineIdentifier, nil
}

// FindPlaylist returns the first non-smart playlist with the given
// title, or ErrPlaylistNotFound.
func (c *Client) FindPlaylist(ctx context.Context, title string) (*Playlist, error) {
	var container mediaContainer
	if err := c.get(ctx, "/playlists", nil, &container); err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}

	for _, meta := range container.MediaContainer.Metadata {
		if meta.Smart {
			continue
		}
		if strings.EqualFold(meta.Title, title) {
			return &Playlist{RatingKey: meta.RatingKey, Title: meta.Title}, nil
		}
	}
	return nil, ErrPlaylistNotFound
}

// CreatePlaylist creates an empty video playlist with the given title.
func (c *Client) CreatePlaylist(ctx context.Context, title string) (*Playlist, error) {
	machineID, err := c.MachineIdentifier(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("type", "video")
	query.Set("title", title)
	query.Set("smart", "0")
	query.Set("uri", fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/", machineID))

	var container mediaContainer
	if err := c.request(ctx, http.MethodPost, "/playlists", query, &container); err != nil {
		return nil, fmt.Errorf("create playlist %q: %w", title, err)
	}
	if len(container.MediaContainer.Metadata) == 0 {
		return nil, fmt.Errorf("create playlist %q: empty response", title)
	}

	meta := container.MediaContainer.Metadata[0]
	return &Playlist{RatingKey: meta.RatingKey, Title: meta.Title}, nil
}

// PlaylistItemGUIDs returns the normalized GUIDs of every item on a
// playlist. Plex reports GUIDs as "imdb://tt0133093"; sweeparr
// normalizes to "imdb:tt0133093" to match arr-side identifiers.
func (c *Client) PlaylistItemGUIDs(ctx context.Context, ratingKey string) ([]string, error) {
	var container mediaContainer
	if err := c.get(ctx, "/playlists/"+ratingKey+"/items", nil, &container); err != nil {
		return nil, fmt.Errorf("list playlist items: %w", err)
	}

	var guids []string
	for _, meta := range container.MediaContainer.Metadata {
		for _, g := range meta.GUIDs {
			if normalized := NormalizeGUID(g.ID); normalized != "" {
				guids = append(guids, normalized)
			}
		}
		if len(meta.GUIDs) == 0 && meta.GUID != "" {
			if normalized := NormalizeGUID(meta.GUID); normalized != "" {
				guids = append(guids, normalized)
			}
		}
	}
	return guids, nil
}

// NormalizeGUID converts a Plex GUID ("imdb://tt0133093") into the
// namespaced form used across sweeparr ("imdb:tt0133093"). Agent-style
// GUIDs that carry no recognizable namespace return an empty string.
func NormalizeGUID(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	scheme, rest, found := strings.Cut(raw, "://")
	if !found || rest == "" {
		return ""
	}
	switch scheme {
	case "imdb", "tmdb", "tvdb":
		return scheme + ":" + rest
	default:
		return ""
	}
}
