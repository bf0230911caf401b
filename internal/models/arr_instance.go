// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sweeparr/sweeparr/internal/crypto"
	"github.com/sweeparr/sweeparr/internal/dbinterface"
	"github.com/sweeparr/sweeparr/internal/domain"
)

var ErrArrInstanceNotFound = errors.New("arr instance not found")

// ArrInstanceType represents the type of arr instance (sonarr or radarr)
type ArrInstanceType string

const (
	ArrInstanceTypeSonarr ArrInstanceType = "sonarr"
	ArrInstanceTypeRadarr ArrInstanceType = "radarr"
)

// ParseArrInstanceType validates and normalizes an arr instance type string.
func ParseArrInstanceType(value string) (ArrInstanceType, error) {
	switch ArrInstanceType(strings.ToLower(value)) {
	case ArrInstanceTypeSonarr:
		return ArrInstanceTypeSonarr, nil
	case ArrInstanceTypeRadarr:
		return ArrInstanceTypeRadarr, nil
	default:
		return "", fmt.Errorf("invalid arr instance type: %s (must be 'sonarr' or 'radarr')", value)
	}
}

// ArrInstance represents a Sonarr or Radarr instance tracked by sweeparr.
type ArrInstance struct {
	ID              int             `json:"id"`
	Type            ArrInstanceType `json:"type"`
	Name            string          `json:"name"`
	BaseURL         string          `json:"base_url"`
	APIKeyEncrypted string          `json:"-"`
	Enabled         bool            `json:"enabled"`
	TimeoutSeconds  int             `json:"timeout_seconds"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (i ArrInstance) MarshalJSON() ([]byte, error) {
	type alias ArrInstance
	return json.Marshal(&struct {
		alias
		APIKey string `json:"api_key,omitempty"`
	}{
		alias:  alias(i),
		APIKey: domain.RedactString(i.APIKeyEncrypted),
	})
}

// ArrInstanceUpdateParams captures optional fields for updating an instance.
type ArrInstanceUpdateParams struct {
	Name           *string
	BaseURL        *string
	APIKey         *string
	Enabled        *bool
	TimeoutSeconds *int
}

// ArrInstanceStore manages arr instances in the database.
type ArrInstanceStore struct {
	db        dbinterface.Querier
	encryptor *crypto.AESEncryptor
}

// NewArrInstanceStore creates a new ArrInstanceStore.
func NewArrInstanceStore(db dbinterface.Querier, encryptionKey []byte) (*ArrInstanceStore, error) {
	encryptor, err := crypto.NewAESEncryptor(encryptionKey)
	if err != nil {
		return nil, err
	}
	return &ArrInstanceStore{db: db, encryptor: encryptor}, nil
}

func validateArrBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base URL scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("base URL is missing a host")
	}
	return nil
}

// Create stores a new arr instance with an encrypted API key.
func (s *ArrInstanceStore) Create(ctx context.Context, instanceType ArrInstanceType, name, baseURL, apiKey string, timeoutSeconds int) (*ArrInstance, error) {
	if _, err := ParseArrInstanceType(string(instanceType)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("instance name is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("API key is required")
	}
	if err := validateArrBaseURL(baseURL); err != nil {
		return nil, err
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}

	encrypted, err := s.encryptor.Encrypt(apiKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt API key: %w", err)
	}

	var id int
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO arr_instances (type, name, base_url, api_key_encrypted, enabled, timeout_seconds)
		VALUES (?, ?, ?, ?, 1, ?)
		RETURNING id`,
		string(instanceType), name, strings.TrimRight(baseURL, "/"), encrypted, timeoutSeconds,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert arr instance: %w", err)
	}

	return s.Get(ctx, id)
}

func (s *ArrInstanceStore) scan(row *sql.Row) (*ArrInstance, error) {
	instance := &ArrInstance{}
	var instanceType string
	err := row.Scan(
		&instance.ID, &instanceType, &instance.Name, &instance.BaseURL,
		&instance.APIKeyEncrypted, &instance.Enabled, &instance.TimeoutSeconds,
		&instance.CreatedAt, &instance.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrArrInstanceNotFound
	}
	if err != nil {
		return nil, err
	}
	instance.Type = ArrInstanceType(instanceType)
	return instance, nil
}

const arrInstanceColumns = "id, type, name, base_url, api_key_encrypted, enabled, timeout_seconds, created_at, updated_at"

// Get fetches a single instance by id.
func (s *ArrInstanceStore) Get(ctx context.Context, id int) (*ArrInstance, error) {
	return s.scan(s.db.QueryRowContext(ctx,
		"SELECT "+arrInstanceColumns+" FROM arr_instances WHERE id = ?", id))
}

// List returns all instances ordered by name.
func (s *ArrInstanceStore) List(ctx context.Context) ([]*ArrInstance, error) {
	return s.list(ctx, "SELECT "+arrInstanceColumns+" FROM arr_instances ORDER BY name")
}

// ListEnabled returns enabled instances ordered by name.
func (s *ArrInstanceStore) ListEnabled(ctx context.Context) ([]*ArrInstance, error) {
	return s.list(ctx, "SELECT "+arrInstanceColumns+" FROM arr_instances WHERE enabled = 1 ORDER BY name")
}

func (s *ArrInstanceStore) list(ctx context.Context, query string) ([]*ArrInstance, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list arr instances: %w", err)
	}
	defer rows.Close()

	var instances []*ArrInstance
	for rows.Next() {
		instance := &ArrInstance{}
		var instanceType string
		if err := rows.Scan(
			&instance.ID, &instanceType, &instance.Name, &instance.BaseURL,
			&instance.APIKeyEncrypted, &instance.Enabled, &instance.TimeoutSeconds,
			&instance.CreatedAt, &instance.UpdatedAt,
		); err != nil {
			return nil, err
		}
		instance.Type = ArrInstanceType(instanceType)
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

// Update applies the provided params to an instance.
func (s *ArrInstanceStore) Update(ctx context.Context, id int, params ArrInstanceUpdateParams) (*ArrInstance, error) {
	instance, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		instance.Name = *params.Name
	}
	if params.BaseURL != nil {
		if err := validateArrBaseURL(*params.BaseURL); err != nil {
			return nil, err
		}
		instance.BaseURL = strings.TrimRight(*params.BaseURL, "/")
	}
	if params.APIKey != nil && !domain.IsRedactedString(*params.APIKey) {
		encrypted, err := s.encryptor.Encrypt(*params.APIKey)
		if err != nil {
			return nil, fmt.Errorf("encrypt API key: %w", err)
		}
		instance.APIKeyEncrypted = encrypted
	}
	if params.Enabled != nil {
		instance.Enabled = *params.Enabled
	}
	if params.TimeoutSeconds != nil && *params.TimeoutSeconds > 0 {
		instance.TimeoutSeconds = *params.TimeoutSeconds
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE arr_instances
		SET name = ?, base_url = ?, api_key_encrypted = ?, enabled = ?, timeout_seconds = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		instance.Name, instance.BaseURL, instance.APIKeyEncrypted, instance.Enabled, instance.TimeoutSeconds, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update arr instance: %w", err)
	}

	return s.Get(ctx, id)
}

// Delete removes an instance.
func (s *ArrInstanceStore) Delete(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM arr_instances WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete arr instance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrArrInstanceNotFound
	}
	return nil
}

// GetAPIKey decrypts and returns the API key for an instance.
func (s *ArrInstanceStore) GetAPIKey(instance *ArrInstance) (string, error) {
	key, err := s.encryptor.Decrypt(instance.APIKeyEncrypted)
	if err != nil {
		return "", fmt.Errorf("decrypt API key for instance %d: %w", instance.ID, err)
	}
	return key, nil
}
