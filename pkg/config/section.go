// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Section is one [name] block. Option names are case-insensitive.
type Section struct {
	name    string
	options map[string]string

	mu       sync.RWMutex
	accessed map[string]struct{}
}

func newSection(name string, options map[string]string) *Section {
	opts := make(map[string]string, len(options))
	for k, v := range options {
		opts[strings.ToLower(k)] = v
	}
	return &Section{
		name:     name,
		options:  opts,
		accessed: make(map[string]struct{}),
	}
}

// GetName returns the full section name, e.g. "binding kick".
func (s *Section) GetName() string {
	return s.name
}

// Suffix returns the part of the name after the first space: "kick" for
// "binding kick", "" for "device".
func (s *Section) Suffix() string {
	_, after, _ := strings.Cut(s.name, " ")
	return strings.TrimSpace(after)
}

func (s *Section) markAccessed(option string) {
	s.mu.Lock()
	s.accessed[strings.ToLower(option)] = struct{}{}
	s.mu.Unlock()
}

// GetUnusedOptions returns the sorted option names that were never read.
func (s *Section) GetUnusedOptions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for opt := range s.options {
		if _, ok := s.accessed[opt]; !ok {
			out = append(out, opt)
		}
	}
	sortStrings(out)
	return out
}

// HasOption checks if an option exists in this section.
func (s *Section) HasOption(option string) bool {
	_, ok := s.options[strings.ToLower(option)]
	return ok
}

// lookup returns the raw value, marking the option read either way when a
// fallback is in play.
func (s *Section) lookup(option string, hasFallback bool) (string, bool, error) {
	if v, ok := s.options[strings.ToLower(option)]; ok {
		s.markAccessed(option)
		return v, true, nil
	}
	if hasFallback {
		s.markAccessed(option)
		return "", false, nil
	}
	return "", false, ErrMissingOption(s.name, option)
}

// Get returns a string option, or fallback[0] when absent.
func (s *Section) Get(option string, fallback ...string) (string, error) {
	v, found, err := s.lookup(option, len(fallback) > 0)
	if err != nil {
		return "", err
	}
	if !found {
		return fallback[0], nil
	}
	return v, nil
}

// GetInt returns an integer option.
func (s *Section) GetInt(option string, fallback ...int) (int, error) {
	v, found, err := s.lookup(option, len(fallback) > 0)
	if err != nil {
		return 0, err
	}
	if !found {
		return fallback[0], nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, ErrInvalidValue(s.name, option, v, "integer")
	}
	return i, nil
}

// GetIntRange returns an integer option constrained to [minVal, maxVal].
func (s *Section) GetIntRange(option string, minVal, maxVal int, fallback ...int) (int, error) {
	v, err := s.GetInt(option, fallback...)
	if err != nil {
		return 0, err
	}
	if v < minVal {
		return 0, ErrOutOfRange(s.name, option, float64(v), "must have minimum of "+strconv.Itoa(minVal))
	}
	if v > maxVal {
		return 0, ErrOutOfRange(s.name, option, float64(v), "must have maximum of "+strconv.Itoa(maxVal))
	}
	return v, nil
}

// GetFloat returns a float64 option.
func (s *Section) GetFloat(option string, fallback ...float64) (float64, error) {
	v, found, err := s.lookup(option, len(fallback) > 0)
	if err != nil {
		return 0, err
	}
	if !found {
		return fallback[0], nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, ErrInvalidValue(s.name, option, v, "float")
	}
	return f, nil
}

// GetDuration returns an option given in seconds (fractions allowed).
func (s *Section) GetDuration(option string, fallback ...time.Duration) (time.Duration, error) {
	v, found, err := s.lookup(option, len(fallback) > 0)
	if err != nil {
		return 0, err
	}
	if !found {
		return fallback[0], nil
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || secs < 0 {
		return 0, ErrInvalidValue(s.name, option, v, "non-negative number of seconds")
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// GetBool accepts 1/true/yes/on and 0/false/no/off.
func (s *Section) GetBool(option string, fallback ...bool) (bool, error) {
	v, found, err := s.lookup(option, len(fallback) > 0)
	if err != nil {
		return false, err
	}
	if !found {
		return fallback[0], nil
	}
	b, ok := ParseBool(v)
	if !ok {
		return false, ErrInvalidValue(s.name, option, v, "boolean (true/false/yes/no/on/off/1/0)")
	}
	return b, nil
}

// ParseBool is the boolean grammar shared with action parameters.
func ParseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// GetChoice returns a string option that must be one of choices.
func (s *Section) GetChoice(option string, choices []string, fallback ...string) (string, error) {
	v, err := s.Get(option, fallback...)
	if err != nil {
		return "", err
	}
	for _, c := range choices {
		if strings.EqualFold(v, c) {
			return c, nil
		}
	}
	return "", ErrInvalidChoice(s.name, option, v, choices)
}

// RawOptions returns a copy of every option and marks them all read.
func (s *Section) RawOptions() map[string]string {
	out := make(map[string]string, len(s.options))
	for k, v := range s.options {
		out[k] = v
		s.markAccessed(k)
	}
	return out
}
