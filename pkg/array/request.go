// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package array plans and emits line-array configurations: which outputs
// an array occupies, which elements each output drives, the calibration
// each output receives and the delay that aligns two mixed models.
package array

import (
	"fmt"

	"galaxy-control/pkg/errors"
	"galaxy-control/pkg/speaker"
)

// MaxLinkGroup is the highest link group the processor provides.
const MaxLinkGroup = 8

// Selection picks a phase variant and a starting point for one model.
// Empty fields select the defaults.
type Selection struct {
	Phase         string `json:"phase,omitempty"`
	StartingPoint string `json:"starting_point,omitempty"`
}

// Request is one line-array configuration, built per invocation.
type Request struct {
	Primary           string    `json:"primary"`
	PrimaryElements   int       `json:"primary_elements"`
	PrimarySelection  Selection `json:"primary_selection"`
	ElementsPerOutput int       `json:"elements_per_output"`
	StartOutput       int       `json:"start_output"`

	Mixed              bool      `json:"mixed"`
	Secondary          string    `json:"secondary,omitempty"`
	SecondaryElements  int       `json:"secondary_elements,omitempty"`
	SecondarySelection Selection `json:"secondary_selection"`

	// LinkGroup 0 means "none".
	LinkGroup        int  `json:"link_group"`
	LinkGroupEnabled bool `json:"link_group_enabled"`
	FactoryReset     bool `json:"factory_reset"`
}

// ErrNoPrimary rejects a request without a primary speaker.
var ErrNoPrimary = errors.ArrayRequestError("primary", "no primary speaker selected")

// PrimaryKey is the canonical primary model.
func (r Request) PrimaryKey() speaker.Key {
	return speaker.Canonical(r.Primary)
}

// SecondaryKey is the canonical secondary model, or "" when the request is
// not effectively mixed.
func (r Request) SecondaryKey() speaker.Key {
	if !r.IsMixed() {
		return ""
	}
	return speaker.Canonical(r.Secondary)
}

// IsMixed reports whether a secondary model actually takes part: the flag
// is set, a secondary is named and it has elements.
func (r Request) IsMixed() bool {
	return r.Mixed && speaker.Canonical(r.Secondary) != "" && r.SecondaryElements > 0
}

// TotalElements counts every element in the array.
func (r Request) TotalElements() int {
	total := r.PrimaryElements
	if r.IsMixed() {
		total += r.SecondaryElements
	}
	return total
}

// OutputsNeeded is ceil(total elements / elements per output). Primary
// outputs come first; the secondary gets whatever outputs remain.
func (r Request) OutputsNeeded() int {
	return ceilDiv(r.TotalElements(), r.ElementsPerOutput)
}

// LastOutput is the highest output number the array occupies.
func (r Request) LastOutput() int {
	return r.StartOutput + r.OutputsNeeded() - 1
}

// Validate checks the structural requirements of a request.
func (r Request) Validate() error {
	switch {
	case r.PrimaryKey() == "":
		return ErrNoPrimary
	case r.PrimaryElements < 1:
		return errors.ArrayRequestError("primary_elements",
			fmt.Sprintf("primary element count must be at least 1, got %d", r.PrimaryElements))
	case r.ElementsPerOutput != 1 && r.ElementsPerOutput != 2:
		return errors.ArrayRequestError("elements_per_output",
			fmt.Sprintf("elements per output must be 1 or 2, got %d", r.ElementsPerOutput))
	case r.StartOutput < 1:
		return errors.ArrayRequestError("start_output",
			fmt.Sprintf("start output must be at least 1, got %d", r.StartOutput))
	case r.Mixed && r.SecondaryElements < 0:
		return errors.ArrayRequestError("secondary_elements", "secondary element count cannot be negative")
	case r.LinkGroup < 0 || r.LinkGroup > MaxLinkGroup:
		return errors.ArrayRequestError("link_group",
			fmt.Sprintf("link group must be none or 1-%d, got %d", MaxLinkGroup, r.LinkGroup))
	}
	return nil
}

// CapacityError rejects an array that does not fit on the device.
type CapacityError struct {
	Start     int
	Outputs   int
	Required  int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("array needs %d outputs starting at %d (last output %d) but the device has %d",
		e.Outputs, e.Start, e.Required, e.Available)
}

// Unwrap exposes the host error code so errors.IsGuard recognises it.
func (e *CapacityError) Unwrap() error {
	return errors.New(errors.ErrArrayCapacity, "insufficient outputs").
		SetSection("configure_array").
		SetContext("required", e.Required).
		SetContext("available", e.Available)
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
