// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package array

import (
	"math"

	"galaxy-control/pkg/speaker"
)

// UnitsPerMs is the device delay resolution: a 96 kHz sample clock.
const UnitsPerMs = 96

// Delays holds the alignment delay for each side of a mixed array.
type Delays struct {
	PrimaryMs   float64
	SecondaryMs float64
}

// ResolveDelay returns the compensation for a primary/secondary pairing.
// An exact compatibility entry wins; otherwise the legacy table, keyed by
// the secondary alone, delays the primary; otherwise nothing is applied.
func ResolveDelay(primary, secondary speaker.Key, compat speaker.CompatTable, legacy speaker.LegacyTable) Delays {
	if cp, ok := compat[primary]; ok && cp.Secondary == secondary {
		return Delays{PrimaryMs: cp.PrimaryDelayMs, SecondaryMs: cp.SecondaryDelayMs}
	}
	if ms, ok := legacy[secondary]; ok {
		return Delays{PrimaryMs: ms}
	}
	return Delays{}
}

// DelayUnits converts milliseconds to device delay samples.
func DelayUnits(ms float64) int {
	return int(math.Round(ms * UnitsPerMs))
}
