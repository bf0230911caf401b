// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package notifications

type EventType string

const (
	EventReconcileCompleted       EventType = "reconcile_completed"
	EventReconcileSafetyTriggered EventType = "reconcile_safety_triggered"
	EventReconcileFailed          EventType = "reconcile_failed"
	EventTagSyncCompleted         EventType = "tag_sync_completed"
)

type EventDefinition struct {
	Type        EventType `json:"type"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
}

var eventDefinitions = []EventDefinition{
	{Type: EventReconcileCompleted, Label: "Reconciliation completed", Description: "A reconciliation run completes (including runs with zero actions)."},
	{Type: EventReconcileSafetyTriggered, Label: "Reconciliation safety triggered", Description: "A reconciliation run aborts because the deletion ratio breached the safety threshold."},
	{Type: EventReconcileFailed, Label: "Reconciliation failed", Description: "A reconciliation run fails with a system error."},
	{Type: EventTagSyncCompleted, Label: "Tag sync completed", Description: "Removal tags were synchronized against current watchlist data."},
}

// EventDefinitions returns the catalogue of notifiable events.
func EventDefinitions() []EventDefinition {
	out := make([]EventDefinition, len(eventDefinitions))
	copy(out, eventDefinitions)
	return out
}

// AllEventTypeStrings returns every event type as a string slice.
func AllEventTypeStrings() []string {
	out := make([]string, 0, len(eventDefinitions))
	for _, def := range eventDefinitions {
		out = append(out, string(def.Type))
	}
	return out
}

// Event carries the data a notification is formatted from.
type Event struct {
	Type    EventType
	DryRun  bool
	Mode    string
	Message string

	MoviesDeleted   int
	MoviesSkipped   int
	MoviesProtected int
	ShowsDeleted    int
	ShowsSkipped    int
	ShowsProtected  int
	Processed       int

	Tagged   int
	Untagged int

	ErrorMessage string
}
