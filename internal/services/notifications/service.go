// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package notifications delivers run results to shoutrrr targets.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/rs/zerolog"

	"github.com/sweeparr/sweeparr/internal/models"
)

const (
	defaultQueueSize = 100
	defaultWorkers   = 2

	maxTitleLength   = 250
	maxMessageLength = 4000
)

// Notifier is the interface the reconciliation engine dispatches
// through. Delivery is best effort: failures are logged, never
// returned to the engine.
type Notifier interface {
	Notify(event Event)
}

// Service queues events and delivers them to all enabled targets whose
// event filter matches.
type Service struct {
	store     *models.NotificationTargetStore
	logger    zerolog.Logger
	queue     chan Event
	startOnce sync.Once
}

// NewService creates a notification Service. A nil store yields a nil
// Service, which is safe to call Notify on.
func NewService(store *models.NotificationTargetStore, logger zerolog.Logger) *Service {
	if store == nil {
		return nil
	}

	return &Service{
		store:  store,
		logger: logger,
		queue:  make(chan Event, defaultQueueSize),
	}
}

// ValidateURL checks that a target URL is a valid shoutrrr URL.
func ValidateURL(rawURL string) error {
	_, err := router.New(nil, rawURL)
	return err
}

// Start launches the delivery workers.
func (s *Service) Start(ctx context.Context) {
	if s == nil {
		return
	}

	s.startOnce.Do(func() {
		for range defaultWorkers {
			go s.worker(ctx)
		}
	})
}

// Notify enqueues an event for delivery. A full queue drops the event
// rather than blocking the caller.
func (s *Service) Notify(event Event) {
	if s == nil || s.store == nil {
		return
	}

	select {
	case s.queue <- event:
	default:
		s.logger.Warn().Str("event", string(event.Type)).Msg("notifications: queue full, dropping event")
	}
}

// SendTest delivers a test message to a single target synchronously.
func (s *Service) SendTest(ctx context.Context, target *models.NotificationTarget, title, message string) error {
	if target == nil {
		return errors.New("notification target required")
	}
	return s.send(target, title, message)
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-s.queue:
			s.dispatch(ctx, event)
		}
	}
}

func (s *Service) dispatch(ctx context.Context, event Event) {
	targets, err := s.store.ListEnabled(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("notifications: failed to list targets")
		return
	}
	if len(targets) == 0 {
		return
	}

	title, message := formatEvent(event)
	if strings.TrimSpace(message) == "" {
		return
	}

	for _, target := range targets {
		if !allowsEvent(target.EventTypes, event.Type) {
			continue
		}

		if err := s.send(target, title, message); err != nil {
			s.logger.Error().Err(err).Str("target", target.Name).Str("event", string(event.Type)).Msg("notifications: send failed")
		}
	}
}

func (s *Service) send(target *models.NotificationTarget, title, message string) error {
	sender, err := router.New(nil, target.URL)
	if err != nil {
		return err
	}

	params := types.Params{}
	if trimmed := strings.TrimSpace(title); trimmed != "" {
		params.SetTitle(truncate(trimmed, maxTitleLength))
	}

	results := sender.Send(truncate(message, maxMessageLength), &params)
	var errs []error
	for _, sendErr := range results {
		if sendErr != nil {
			errs = append(errs, sendErr)
		}
	}
	return errors.Join(errs...)
}

// allowsEvent reports whether a target's event filter matches. An empty
// filter subscribes to everything.
func allowsEvent(eventTypes []string, eventType EventType) bool {
	if len(eventTypes) == 0 {
		return true
	}
	for _, t := range eventTypes {
		if t == string(eventType) {
			return true
		}
	}
	return false
}

func formatEvent(event Event) (string, string) {
	prefix := ""
	if event.DryRun {
		prefix = "[dry run] "
	}

	switch event.Type {
	case EventReconcileCompleted:
		title := prefix + "Reconciliation completed"
		lines := []string{
			formatLine("Mode", event.Mode),
			formatLine("Movies", fmt.Sprintf("%d deleted, %d skipped, %d protected", event.MoviesDeleted, event.MoviesSkipped, event.MoviesProtected)),
			formatLine("Shows", fmt.Sprintf("%d deleted, %d skipped, %d protected", event.ShowsDeleted, event.ShowsSkipped, event.ShowsProtected)),
			formatLine("Processed", fmt.Sprintf("%d", event.Processed)),
		}
		return title, strings.Join(lines, "\n")
	case EventReconcileSafetyTriggered:
		title := prefix + "Reconciliation aborted by safety check"
		lines := []string{
			formatLine("Mode", event.Mode),
			formatLine("Reason", event.Message),
		}
		return title, strings.Join(lines, "\n")
	case EventReconcileFailed:
		title := prefix + "Reconciliation failed"
		return title, formatLine("Error", event.ErrorMessage)
	case EventTagSyncCompleted:
		title := "Removal tag sync completed"
		lines := []string{
			formatLine("Tagged", fmt.Sprintf("%d", event.Tagged)),
			formatLine("Untagged", fmt.Sprintf("%d", event.Untagged)),
		}
		return title, strings.Join(lines, "\n")
	default:
		return "", ""
	}
}

func formatLine(label, value string) string {
	return label + ": " + value
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	// Never cut in the middle of a multi-byte rune.
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
