// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package state caches the processor state the host needs: output count,
// channel names, meters, link-group membership and beam-control
// telemetry. It is fed by device feedback and by emitted commands.
//
// The mutex only keeps the maps memory-safe. Invocations are not
// serialized against each other: overlapping writers are last-writer-wins.
package state

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"galaxy-control/pkg/protocol"
)

// Telemetry is the last beam-control status reported for one array.
type Telemetry struct {
	ErrorCode      int    `json:"error_code"`
	ErrorCodeLabel string `json:"error_code_label"`
	ErrorString    string `json:"error_string"`
}

// MeterKind selects input or output meters.
type MeterKind string

const (
	InputMeter  MeterKind = "input"
	OutputMeter MeterKind = "output"
)

type meterKey struct {
	kind  MeterKind
	index int
}

// Store is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	outputCount int
	inputNames  map[int]string
	outputNames map[int]string
	meters      map[meterKey]float64
	linkGroups  map[int]int
	bypass      map[int]bool
	beam        map[int]Telemetry
	version     uint64
}

// New creates a store seeded with an output count, which device feedback
// may later replace.
func New(outputCount int) *Store {
	return &Store{
		outputCount: outputCount,
		inputNames:  make(map[int]string),
		outputNames: make(map[int]string),
		meters:      make(map[meterKey]float64),
		linkGroups:  make(map[int]int),
		bypass:      make(map[int]bool),
		beam:        make(map[int]Telemetry),
	}
}

func (s *Store) bump() {
	s.version++
}

// Version increases on every change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// OutputCount is the device's output capacity.
func (s *Store) OutputCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outputCount
}

func (s *Store) SetOutputCount(n int) {
	s.mu.Lock()
	s.outputCount = n
	s.bump()
	s.mu.Unlock()
}

// OutputName returns the device name of an output, or "Output N".
func (s *Store) OutputName(output int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.outputNames[output]; ok && n != "" {
		return n
	}
	return fmt.Sprintf("Output %d", output)
}

func (s *Store) SetOutputName(output int, name string) {
	s.mu.Lock()
	s.outputNames[output] = name
	s.bump()
	s.mu.Unlock()
}

// InputName returns the device name of an input, or "Input N".
func (s *Store) InputName(input int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.inputNames[input]; ok && n != "" {
		return n
	}
	return fmt.Sprintf("Input %d", input)
}

func (s *Store) SetInputName(input int, name string) {
	s.mu.Lock()
	s.inputNames[input] = name
	s.bump()
	s.mu.Unlock()
}

func (s *Store) Meter(kind MeterKind, index int) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.meters[meterKey{kind, index}]
	return v, ok
}

func (s *Store) SetMeter(kind MeterKind, index int, level float64) {
	s.mu.Lock()
	s.meters[meterKey{kind, index}] = level
	s.bump()
	s.mu.Unlock()
}

// LinkGroup returns the group an output was assigned to.
func (s *Store) LinkGroup(output int) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.linkGroups[output]
	return g, ok
}

// SetOutputLinkGroup records an output's link group; group 0 clears it.
func (s *Store) SetOutputLinkGroup(output, group int) {
	s.mu.Lock()
	if group == 0 {
		delete(s.linkGroups, output)
	} else {
		s.linkGroups[output] = group
	}
	s.bump()
	s.mu.Unlock()
}

// LinkGroups returns a copy of the output → group map.
func (s *Store) LinkGroups() map[int]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]int, len(s.linkGroups))
	for k, v := range s.linkGroups {
		out[k] = v
	}
	return out
}

func (s *Store) LinkGroupBypass(group int) (bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bypass[group]
	return b, ok
}

func (s *Store) SetLinkGroupBypass(group int, bypass bool) {
	s.mu.Lock()
	s.bypass[group] = bypass
	s.bump()
	s.mu.Unlock()
}

// BeamTelemetry returns the last status reported for a beam-control array.
func (s *Store) BeamTelemetry(array int) (Telemetry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.beam[array]
	return t, ok
}

func (s *Store) SetBeamTelemetry(array int, t Telemetry) {
	s.mu.Lock()
	s.beam[array] = t
	s.bump()
	s.mu.Unlock()
}

func (s *Store) updateBeam(array int, fn func(*Telemetry)) {
	s.mu.Lock()
	t := s.beam[array]
	fn(&t)
	s.beam[array] = t
	s.bump()
	s.mu.Unlock()
}

// Variables flattens the store into display variables.
func (s *Store) Variables() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vars := map[string]string{
		"output_count": strconv.Itoa(s.outputCount),
	}
	for n, name := range s.outputNames {
		vars[fmt.Sprintf("output_%d_name", n)] = name
	}
	for n, name := range s.inputNames {
		vars[fmt.Sprintf("input_%d_name", n)] = name
	}
	for k, v := range s.meters {
		vars[fmt.Sprintf("%s_%d_meter", k.kind, k.index)] = strconv.FormatFloat(v, 'f', 1, 64)
	}
	for out, g := range s.linkGroups {
		vars[fmt.Sprintf("output_%d_link_group", out)] = strconv.Itoa(g)
	}
	for g, b := range s.bypass {
		vars[fmt.Sprintf("link_group_%d_bypass", g)] = strconv.FormatBool(b)
	}
	for a, t := range s.beam {
		prefix := fmt.Sprintf("lmbc_%d_", a)
		vars[prefix+"error_code"] = strconv.Itoa(t.ErrorCode)
		vars[prefix+"error_code_label"] = t.ErrorCodeLabel
		vars[prefix+"error_string"] = t.ErrorString
	}
	return vars
}

// SortedNames returns the keys of a variable map in order.
func SortedNames(vars map[string]string) []string {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Apply records a command the device echoed back or accepted. It reports
// whether the path was one the store tracks.
func (s *Store) Apply(cmd protocol.Command) bool {
	parts := protocol.Segments(cmd.Path)
	value := protocol.Unquote(cmd.Value)

	switch {
	case match(parts, "device", "output_count"):
		if n, err := strconv.Atoi(value); err == nil {
			s.SetOutputCount(n)
			return true
		}
	case match(parts, "processing", "output", "#", "name"):
		s.SetOutputName(atoi(parts[2]), value)
		return true
	case match(parts, "processing", "input", "#", "name"):
		s.SetInputName(atoi(parts[2]), value)
		return true
	case match(parts, "processing", "output", "#", "link_group"):
		if g, err := strconv.Atoi(value); err == nil {
			s.SetOutputLinkGroup(atoi(parts[2]), g)
			return true
		}
	case match(parts, "processing", "link_group", "#", "bypass"):
		if b, err := strconv.ParseBool(value); err == nil {
			s.SetLinkGroupBypass(atoi(parts[2]), b)
			return true
		}
	case match(parts, "status", "meter", "*", "#", "level"):
		kind := MeterKind(parts[2])
		if kind != InputMeter && kind != OutputMeter {
			return false
		}
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			s.SetMeter(kind, atoi(parts[3]), v)
			return true
		}
	case match(parts, "status", "beam_control_array", "#", "*"):
		return s.applyBeam(atoi(parts[2]), parts[3], value)
	}
	return false
}

func (s *Store) applyBeam(array int, field, value string) bool {
	switch field {
	case "error_code":
		code, err := strconv.Atoi(value)
		if err != nil {
			return false
		}
		s.updateBeam(array, func(t *Telemetry) { t.ErrorCode = code })
	case "error_code_label":
		s.updateBeam(array, func(t *Telemetry) { t.ErrorCodeLabel = value })
	case "error_string":
		s.updateBeam(array, func(t *Telemetry) { t.ErrorString = value })
	default:
		return false
	}
	return true
}

// match compares path segments against a pattern where "#" matches a
// positive integer and "*" any segment.
func match(parts []string, pattern ...string) bool {
	if len(parts) != len(pattern) {
		return false
	}
	for i, p := range pattern {
		switch p {
		case "*":
		case "#":
			if atoi(parts[i]) < 1 {
				return false
			}
		default:
			if parts[i] != p {
				return false
			}
		}
	}
	return true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
