// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package beam builds Low-Mid Beam Control (LMBC) command batches.
package beam

import (
	"fmt"
	"strings"

	"galaxy-control/pkg/errors"
	"galaxy-control/pkg/protocol"
	"galaxy-control/pkg/speaker"
	"galaxy-control/pkg/state"
)

const (
	MaxArrays = 4

	MinAngle = 10
	MaxAngle = 99

	MinStartingElement = 1
	MaxStartingElement = 32
)

// ControlType selects how the beam is shaped.
type ControlType int

const (
	Spread ControlType = iota
	SteerUp
)

func (c ControlType) String() string {
	if c == SteerUp {
		return "steer-up"
	}
	return "spread"
}

// ParseControlType accepts "spread", "steer-up" or "steer_up", or the
// numeric codes 0 and 1.
func ParseControlType(s string) (ControlType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spread", "0":
		return Spread, true
	case "steer-up", "steer_up", "steerup", "1":
		return SteerUp, true
	}
	return Spread, false
}

var productTypes = map[speaker.Key]int{
	"LEOPARD": 1,
	"LINA":    2,
	"LYON":    3,
	"LEO":     4,
	"PANTHER": 5,
}

// ProductTypeCode maps a model name to its LMBC product code; unknown
// models yield 0.
func ProductTypeCode(model string) int {
	return productTypes[speaker.Canonical(model)]
}

// Request configures one beam-control array.
type Request struct {
	Array             int         `json:"array"`
	BeamAngle         int         `json:"beam_angle"`
	Control           ControlType `json:"control_type"`
	ElementsPerOutput int         `json:"elements_per_output"`
	TotalElements     int         `json:"total_elements"`
	ProductType       int         `json:"product_type"`
	StartingOutput    int         `json:"starting_output"`
	StartingElement   int         `json:"starting_element"`
	Bypass            bool        `json:"bypass"`
}

// Validate rejects requests that cannot be corrected by clamping.
func (r Request) Validate() error {
	switch {
	case r.Array < 1 || r.Array > MaxArrays:
		return errors.BeamRequestError("array", fmt.Sprintf("array must be 1-%d, got %d", MaxArrays, r.Array))
	case r.ElementsPerOutput != 1 && r.ElementsPerOutput != 2:
		return errors.BeamRequestError("elements_per_output",
			fmt.Sprintf("elements per output must be 1 or 2, got %d", r.ElementsPerOutput))
	case r.TotalElements < 1:
		return errors.BeamRequestError("total_elements", "at least one element is required")
	case r.StartingOutput < 1:
		return errors.BeamRequestError("starting_output", "starting output must be at least 1")
	case r.Control != Spread && r.Control != SteerUp:
		return errors.BeamRequestError("control_type", fmt.Sprintf("unknown control type %d", r.Control))
	}
	return nil
}

// Clamped returns r with the beam angle and starting element forced into
// their valid ranges.
func (r Request) Clamped() Request {
	r.BeamAngle = clamp(r.BeamAngle, MinAngle, MaxAngle)
	r.StartingElement = clamp(r.StartingElement, MinStartingElement, MaxStartingElement)
	return r
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// BuildCommands returns the fixed eight-command batch for a request, in
// canonical order. Out-of-range angle and starting element are clamped.
func BuildCommands(req Request) []protocol.Command {
	r := req.Clamped()
	base := fmt.Sprintf("/processing/beam_control_array/%d/", r.Array)
	set := func(name, value string) protocol.Command {
		return protocol.Set(base+name, value)
	}
	return []protocol.Command{
		set("beam_angle", protocol.QuotedInt(r.BeamAngle)),
		set("bypass", protocol.Bool(r.Bypass)),
		set("control_type", protocol.QuotedInt(int(r.Control))),
		set("elements_per_output", protocol.QuotedInt(r.ElementsPerOutput)),
		set("total_elements", protocol.QuotedInt(r.TotalElements)),
		set("product_type", protocol.QuotedInt(r.ProductType)),
		set("starting_output", protocol.QuotedInt(r.StartingOutput)),
		set("starting_element", protocol.QuotedInt(r.StartingElement)),
	}
}

// TelemetrySource is the read path for reported beam-control status.
type TelemetrySource interface {
	BeamTelemetry(array int) (state.Telemetry, bool)
}

// StatusPreview renders the last reported status of an array for display
// before an action runs.
func StatusPreview(array int, src TelemetrySource) string {
	prefix := fmt.Sprintf("LMBC array %d", array)
	if src == nil {
		return prefix + ": no status reported"
	}
	t, ok := src.BeamTelemetry(array)
	if !ok {
		return prefix + ": no status reported"
	}
	if t.ErrorCode == 0 {
		return prefix + ": OK"
	}
	label := t.ErrorCodeLabel
	if label == "" {
		label = "error"
	}
	msg := fmt.Sprintf("%s: %s (code %d)", prefix, label, t.ErrorCode)
	if t.ErrorString != "" {
		msg += ": " + t.ErrorString
	}
	return msg
}
