// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reconcile

import (
	"github.com/sweeparr/sweeparr/internal/arr"
)

// DeletedItem is one audit entry in a run result.
type DeletedItem struct {
	Title    string `json:"title"`
	GUID     string `json:"guid"`
	Instance string `json:"instance"`
}

// CategoryStats accumulates per-content-type counts and the itemized
// audit list of deletions.
type CategoryStats struct {
	Deleted   int           `json:"deleted"`
	Skipped   int           `json:"skipped"`
	Protected int           `json:"protected"`
	Items     []DeletedItem `json:"items"`
}

// Totals aggregates across content types. Every processed item lands in
// exactly one of deleted, skipped, or protected.
type Totals struct {
	Deleted   int `json:"deleted"`
	Skipped   int `json:"skipped"`
	Protected int `json:"protected"`
	Processed int `json:"processed"`
}

// RunResult is the outcome of one reconciliation run. It is built up
// during the run, returned and logged at run end, and never persisted
// in full (only summary counts go to the run history).
type RunResult struct {
	Movies CategoryStats `json:"movies"`
	Shows  CategoryStats `json:"shows"`
	Total  Totals        `json:"total"`

	SafetyTriggered bool   `json:"safetyTriggered,omitempty"`
	SafetyMessage   string `json:"safetyMessage,omitempty"`

	// Message carries non-safety status such as "run already in
	// progress" or "no deletion flags enabled".
	Message string `json:"message,omitempty"`

	DryRun bool `json:"dryRun"`
}

// NewRunResult creates an empty result.
func NewRunResult(dryRun bool) *RunResult {
	return &RunResult{DryRun: dryRun}
}

func (r *RunResult) category(kind arr.MediaKind) *CategoryStats {
	if kind == arr.MediaKindMovie {
		return &r.Movies
	}
	return &r.Shows
}

func (r *RunResult) recordDeleted(item *arr.TrackedItem) {
	stats := r.category(item.Kind)
	stats.Deleted++
	stats.Items = append(stats.Items, DeletedItem{
		Title:    item.Title,
		GUID:     item.GUID(),
		Instance: item.InstanceName,
	})
	r.Total.Deleted++
	r.Total.Processed++
}

func (r *RunResult) recordSkipped(kind arr.MediaKind) {
	r.category(kind).Skipped++
	r.Total.Skipped++
	r.Total.Processed++
}

func (r *RunResult) recordProtected(kind arr.MediaKind) {
	r.category(kind).Protected++
	r.Total.Protected++
	r.Total.Processed++
}

// markSafetyTriggered flags the result as a safety abort. Counts stay
// at whatever was accumulated before the abort (normally zero).
func (r *RunResult) markSafetyTriggered(message string) {
	r.SafetyTriggered = true
	r.SafetyMessage = message
}
