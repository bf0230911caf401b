// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"

	"github.com/sweeparr/sweeparr/internal/buildinfo"
)

// ErrNotFound indicates the arr instance does not know the resource,
// typically because it was removed between listing and acting on it.
var ErrNotFound = errors.New("arr resource not found")

// Config holds the options for constructing a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    int
	HTTPClient *http.Client
	UserAgent  string
}

// Client is a minimal Sonarr/Radarr v3 API wrapper. The same client
// serves both applications; callers pick the endpoints matching the
// instance type.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	userAgent  string
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

	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = buildinfo.UserAgent
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: client,
		userAgent:  ua,
	}
}

// retryAttempts bounds transient-failure retries on read requests.
// Mutating requests are never retried; a delete that timed out may have
// been applied.
const retryAttempts = 3

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	u, err := url.JoinPath(c.baseURL, "api", "v3", endpoint)
	if err != nil {
		return nil, fmt.Errorf("build arr endpoint: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build arr request: %w", err)
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("arr returned status %d for %s %s", resp.StatusCode, req.Method, req.URL.Path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read arr response: %w", err)
	}
	return body, nil
}

// getJSON issues a GET with retries on transient failures and decodes
// the response into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	return retry.Do(
		func() error {
			req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			body, err := c.do(req)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			if err := json.Unmarshal(body, out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode arr response: %w", err))
			}
			return nil
		},
		retry.Attempts(retryAttempts),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
}

// GetAllSeries returns the full Sonarr series inventory. List
// exclusions do not apply here: reconciliation must see everything the
// instance tracks, not just routable content.
func (c *Client) GetAllSeries(ctx context.Context) ([]Series, error) {
	var series []Series
	if err := c.getJSON(ctx, "series", nil, &series); err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	return series, nil
}

// GetSeriesByID returns the full detail record for one series,
// including its tag ids.
func (c *Client) GetSeriesByID(ctx context.Context, id int64) (*Series, error) {
	var series Series
	if err := c.getJSON(ctx, "series/"+strconv.FormatInt(id, 10), nil, &series); err != nil {
		return nil, fmt.Errorf("get series %d: %w", id, err)
	}
	return &series, nil
}

// GetAllMovies returns the full Radarr movie inventory.
func (c *Client) GetAllMovies(ctx context.Context) ([]Movie, error) {
	var movies []Movie
	if err := c.getJSON(ctx, "movie", nil, &movies); err != nil {
		return nil, fmt.Errorf("get movies: %w", err)
	}
	return movies, nil
}

// GetMovieByID returns the full detail record for one movie, including
// its tag ids.
func (c *Client) GetMovieByID(ctx context.Context, id int64) (*Movie, error) {
	var movie Movie
	if err := c.getJSON(ctx, "movie/"+strconv.FormatInt(id, 10), nil, &movie); err != nil {
		return nil, fmt.Errorf("get movie %d: %w", id, err)
	}
	return &movie, nil
}

// GetTags returns all tags defined on the instance.
func (c *Client) GetTags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if err := c.getJSON(ctx, "tag", nil, &tags); err != nil {
		return nil, fmt.Errorf("get tags: %w", err)
	}
	return tags, nil
}

// CreateTag creates a tag and returns it. Creating an existing label
// returns the existing tag on both Sonarr and Radarr.
func (c *Client) CreateTag(ctx context.Context, label string) (*Tag, error) {
	payload, err := json.Marshal(Tag{Label: strings.ToLower(label)})
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "tag", nil, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("create tag %q: %w", label, err)
	}

	var tag Tag
	if err := json.Unmarshal(body, &tag); err != nil {
		return nil, fmt.Errorf("decode created tag: %w", err)
	}
	return &tag, nil
}

// tagEditPayload matches the series/movie editor endpoints.
type tagEditPayload struct {
	SeriesIDs []int64 `json:"seriesIds,omitempty"`
	MovieIDs  []int64 `json:"movieIds,omitempty"`
	Tags      []int   `json:"tags"`
	ApplyTags string  `json:"applyTags"`
}

// EditSeriesTags adds or removes a set of tags on many series at once.
// applyTags is "add" or "remove".
func (c *Client) EditSeriesTags(ctx context.Context, seriesIDs []int64, tags []int, applyTags string) error {
	return c.editTags(ctx, "series/editor", tagEditPayload{SeriesIDs: seriesIDs, Tags: tags, ApplyTags: applyTags})
}

// EditMovieTags adds or removes a set of tags on many movies at once.
func (c *Client) EditMovieTags(ctx context.Context, movieIDs []int64, tags []int, applyTags string) error {
	return c.editTags(ctx, "movie/editor", tagEditPayload{MovieIDs: movieIDs, Tags: tags, ApplyTags: applyTags})
}

func (c *Client) editTags(ctx context.Context, endpoint string, payload tagEditPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPut, endpoint, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("edit tags: %w", err)
	}
	return nil
}

// DeleteSeries removes a series from Sonarr, optionally deleting its
// files on disk. The import list exclusion is never added: a deleted
// item may legitimately return via a future watchlist entry.
func (c *Client) DeleteSeries(ctx context.Context, id int64, deleteFiles bool) error {
	query := url.Values{}
	query.Set("deleteFiles", strconv.FormatBool(deleteFiles))
	query.Set("addImportListExclusion", "false")
	return c.delete(ctx, "series/"+strconv.FormatInt(id, 10), query)
}

// DeleteMovie removes a movie from Radarr, optionally deleting its
// files on disk.
func (c *Client) DeleteMovie(ctx context.Context, id int64, deleteFiles bool) error {
	query := url.Values{}
	query.Set("deleteFiles", strconv.FormatBool(deleteFiles))
	query.Set("addImportExclusion", "false")
	return c.delete(ctx, "movie/"+strconv.FormatInt(id, 10), query)
}

func (c *Client) delete(ctx context.Context, endpoint string, query url.Values) error {
	req, err := c.newRequest(ctx, http.MethodDelete, endpoint, query, nil)
	if err != nil {
		return err
	}
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("delete %s: %w", endpoint, err)
	}
	return nil
}

// Ping verifies connectivity and the API key.
func (c *Client) Ping(ctx context.Context) error {
	var status struct {
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, "system/status", nil, &status); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
