// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sweeparr/sweeparr/internal/dbinterface"
)

var ErrNotificationTargetNotFound = errors.New("notification target not found")

// NotificationTarget is a shoutrrr destination URL with an event filter.
// An empty EventTypes list subscribes the target to every event.
type NotificationTarget struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	EventTypes []string  `json:"event_types"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NotificationTargetStore manages notification targets in the database.
type NotificationTargetStore struct {
	db dbinterface.Querier
}

// NewNotificationTargetStore creates a new NotificationTargetStore.
func NewNotificationTargetStore(db dbinterface.Querier) *NotificationTargetStore {
	return &NotificationTargetStore{db: db}
}

// Create stores a new notification target.
func (s *NotificationTargetStore) Create(ctx context.Context, name, targetURL string, eventTypes []string) (*NotificationTarget, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("notification target name is required")
	}
	if strings.TrimSpace(targetURL) == "" {
		return nil, errors.New("notification target URL is required")
	}

	events, err := json.Marshal(eventTypes)
	if err != nil {
		return nil, fmt.Errorf("marshal event types: %w", err)
	}

	var id int
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO notification_targets (name, url, event_types, enabled)
		VALUES (?, ?, ?, 1)
		RETURNING id`,
		name, targetURL, string(events),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert notification target: %w", err)
	}

	return s.Get(ctx, id)
}

const notificationTargetColumns = "id, name, url, event_types, enabled, created_at, updated_at"

// Get fetches a target by id.
func (s *NotificationTargetStore) Get(ctx context.Context, id int) (*NotificationTarget, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+notificationTargetColumns+" FROM notification_targets WHERE id = ?", id)

	target := &NotificationTarget{}
	var events string
	err := row.Scan(&target.ID, &target.Name, &target.URL, &events, &target.Enabled, &target.CreatedAt, &target.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotificationTargetNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(events), &target.EventTypes); err != nil {
		return nil, fmt.Errorf("unmarshal event types for target %d: %w", target.ID, err)
	}
	return target, nil
}

// ListEnabled returns all enabled targets.
func (s *NotificationTargetStore) ListEnabled(ctx context.Context) ([]*NotificationTarget, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+notificationTargetColumns+" FROM notification_targets WHERE enabled = 1 ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list notification targets: %w", err)
	}
	defer rows.Close()

	var targets []*NotificationTarget
	for rows.Next() {
		target := &NotificationTarget{}
		var events string
		if err := rows.Scan(&target.ID, &target.Name, &target.URL, &events, &target.Enabled, &target.CreatedAt, &target.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(events), &target.EventTypes); err != nil {
			return nil, fmt.Errorf("unmarshal event types for target %d: %w", target.ID, err)
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// Delete removes a target.
func (s *NotificationTargetStore) Delete(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM notification_targets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete notification target: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotificationTargetNotFound
	}
	return nil
}
