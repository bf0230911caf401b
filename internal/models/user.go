// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sweeparr/sweeparr/internal/crypto"
	"github.com/sweeparr/sweeparr/internal/dbinterface"
)

var ErrUserNotFound = errors.New("user not found")

// User is a watchlist owner. SyncEnabled controls whether the user's
// watchlist participates in watchlist-mode reconciliation when the
// respectUserSyncFlag policy option is set.
type User struct {
	ID                 int        `json:"id"`
	Name               string     `json:"name"`
	PlexTokenEncrypted *string    `json:"-"`
	SyncEnabled        bool       `json:"sync_enabled"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// UserStore manages users in the database.
type UserStore struct {
	db        dbinterface.Querier
	encryptor *crypto.AESEncryptor
}

// NewUserStore creates a new UserStore.
func NewUserStore(db dbinterface.Querier, encryptionKey []byte) (*UserStore, error) {
	encryptor, err := crypto.NewAESEncryptor(encryptionKey)
	if err != nil {
		return nil, err
	}
	return &UserStore{db: db, encryptor: encryptor}, nil
}

const userColumns = "id, name, plex_token_encrypted, sync_enabled, created_at, updated_at"

// Create stores a new user. plexToken may be empty for users whose
// watchlist is synced through the primary account.
func (s *UserStore) Create(ctx context.Context, name, plexToken string, syncEnabled bool) (*User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("user name is required")
	}

	var tokenEncrypted *string
	if plexToken != "" {
		encrypted, err := s.encryptor.Encrypt(plexToken)
		if err != nil {
			return nil, fmt.Errorf("encrypt plex token: %w", err)
		}
		tokenEncrypted = &encrypted
	}

	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (name, plex_token_encrypted, sync_enabled)
		VALUES (?, ?, ?)
		RETURNING id`,
		name, tokenEncrypted, syncEnabled,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.Get(ctx, id)
}

// Get fetches a user by id.
func (s *UserStore) Get(ctx context.Context, id int) (*User, error) {
	user := &User{}
	err := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id,
	).Scan(&user.ID, &user.Name, &user.PlexTokenEncrypted, &user.SyncEnabled, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// List returns all users ordered by name.
func (s *UserStore) List(ctx context.Context) ([]*User, error) {
	return s.list(ctx, "SELECT "+userColumns+" FROM users ORDER BY name")
}

// ListSyncEnabled returns users whose watchlists participate in sync.
func (s *UserStore) ListSyncEnabled(ctx context.Context) ([]*User, error) {
	return s.list(ctx, "SELECT "+userColumns+" FROM users WHERE sync_enabled = 1 ORDER BY name")
}

func (s *UserStore) list(ctx context.Context, query string) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user := &User{}
		if err := rows.Scan(&user.ID, &user.Name, &user.PlexTokenEncrypted, &user.SyncEnabled, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SetSyncEnabled toggles a user's sync participation.
func (s *UserStore) SetSyncEnabled(ctx context.Context, id int, enabled bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET sync_enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", enabled, id)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetPlexToken decrypts a user's Plex token. Returns an empty string
// when the user has none.
func (s *UserStore) GetPlexToken(user *User) (string, error) {
	if user.PlexTokenEncrypted == nil || *user.PlexTokenEncrypted == "" {
		return "", nil
	}
	token, err := s.encryptor.Decrypt(*user.PlexTokenEncrypted)
	if err != nil {
		return "", fmt.Errorf("decrypt plex token for user %d: %w", user.ID, err)
	}
	return token, nil
}
