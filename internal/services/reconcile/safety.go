// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reconcile

import (
	"fmt"
	"math"

	"github.com/sweeparr/sweeparr/internal/domain"
)

// SafetyResult is the outcome of a blast-radius evaluation.
type SafetyResult struct {
	Safe    bool
	Message string
}

// evaluateSafety decides whether deleting candidateDeletes out of total
// tracked items is within the configured percentage threshold.
//
// An invalid threshold is a configuration error and is returned as an
// error, never defaulted: running with a broken threshold risks mass
// deletion. A zero total is always unsafe in watchlist mode, because an
// empty inventory combined with an inclusion test means upstream state
// is unknown.
func evaluateSafety(total, candidateDeletes int, maxPercentage float64, mode domain.DeletionMode) (SafetyResult, error) {
	if math.IsNaN(maxPercentage) || math.IsInf(maxPercentage, 0) || maxPercentage <= 0 {
		return SafetyResult{}, domain.ErrInvalidSafetyThreshold
	}

	if total == 0 {
		if mode == domain.DeletionModeWatchlist {
			return SafetyResult{
				Safe:    false,
				Message: "no tracked items found; refusing to reconcile against an empty inventory",
			}, nil
		}
		return SafetyResult{Safe: true}, nil
	}

	percentage := float64(candidateDeletes) / float64(total) * 100

	if percentage > maxPercentage {
		return SafetyResult{
			Safe: false,
			Message: fmt.Sprintf(
				"deletion candidates exceed safety threshold: %d of %d items (%.1f%% > %.1f%%)",
				candidateDeletes, total, percentage, maxPercentage,
			),
		}, nil
	}

	return SafetyResult{Safe: true}, nil
}
