// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sweeparr/sweeparr/internal/dbinterface"
)

// WatchlistItemType distinguishes movie and show watchlist entries.
type WatchlistItemType string

const (
	WatchlistItemTypeMovie WatchlistItemType = "movie"
	WatchlistItemTypeShow  WatchlistItemType = "show"
)

// WatchlistItem is one entry on a user's watchlist. GUIDs are namespaced
// content identifiers ("imdb:tt0133093", "tmdb:603") correlating the
// entry with tracked arr items.
type WatchlistItem struct {
	ID        int               `json:"id"`
	UserID    int               `json:"user_id"`
	Title     string            `json:"title"`
	Type      WatchlistItemType `json:"type"`
	GUIDs     []string          `json:"guids"`
	Status    string            `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// WatchlistItemStore manages watchlist items in the database.
type WatchlistItemStore struct {
	db dbinterface.Querier
}

// NewWatchlistItemStore creates a new WatchlistItemStore.
func NewWatchlistItemStore(db dbinterface.Querier) *WatchlistItemStore {
	return &WatchlistItemStore{db: db}
}

// Upsert inserts or replaces a watchlist entry for a user.
func (s *WatchlistItemStore) Upsert(ctx context.Context, item *WatchlistItem) error {
	if item.UserID == 0 {
		return errors.New("watchlist item requires a user")
	}
	if strings.TrimSpace(item.Title) == "" {
		return errors.New("watchlist item requires a title")
	}
	if item.Type != WatchlistItemTypeMovie && item.Type != WatchlistItemTypeShow {
		return fmt.Errorf("invalid watchlist item type: %s", item.Type)
	}
	if item.Status == "" {
		item.Status = "active"
	}

	guids, err := json.Marshal(item.GUIDs)
	if err != nil {
		return fmt.Errorf("marshal guids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO watchlist_items (user_id, title, type, guids, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, type, title) DO UPDATE SET
			guids = excluded.guids,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP`,
		item.UserID, item.Title, string(item.Type), string(guids), item.Status,
	)
	if err != nil {
		return fmt.Errorf("upsert watchlist item: %w", err)
	}
	return nil
}

// ListActiveByType returns active items of a type across all users,
// optionally restricted to the given user ids (nil means all users).
func (s *WatchlistItemStore) ListActiveByType(ctx context.Context, itemType WatchlistItemType, userIDs []int) ([]*WatchlistItem, error) {
	query := "SELECT id, user_id, title, type, guids, status, created_at, updated_at FROM watchlist_items WHERE type = ? AND status = 'active'"
	args := []any{string(itemType)}

	if userIDs != nil {
		if len(userIDs) == 0 {
			return nil, nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(userIDs)), ",")
		query += " AND user_id IN (" + placeholders + ")"
		for _, id := range userIDs {
			args = append(args, id)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list watchlist items: %w", err)
	}
	defer rows.Close()

	var items []*WatchlistItem
	for rows.Next() {
		item := &WatchlistItem{}
		var itemType, guids string
		if err := rows.Scan(&item.ID, &item.UserID, &item.Title, &itemType, &guids, &item.Status, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		item.Type = WatchlistItemType(itemType)
		if err := json.Unmarshal([]byte(guids), &item.GUIDs); err != nil {
			return nil, fmt.Errorf("unmarshal guids for item %d: %w", item.ID, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteForUser removes all watchlist entries owned by a user.
func (s *WatchlistItemStore) DeleteForUser(ctx context.Context, userID int) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM watchlist_items WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("delete watchlist items: %w", err)
	}
	return nil
}
