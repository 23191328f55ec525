// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package array

import (
	"regexp"
	"strconv"
	"strings"

	"galaxy-control/pkg/speaker"
)

// Settings is what a model contributes to each of its outputs.
type Settings struct {
	Phase              string
	TypeID             string
	Calibration        []string
	StartingPointTitle string
}

// ResolveSettings looks up the phase and starting point for a model.
// Misses are not errors: an unknown phase falls back to the model's first
// phase, and an unknown starting point yields no calibration.
func ResolveSettings(key speaker.Key, phaseID, startingPointID string, cat *speaker.Catalog) Settings {
	var s Settings
	if cat == nil || key == "" {
		return s
	}

	if p, ok := resolvePhase(key, phaseID, cat); ok {
		s.Phase, s.TypeID = p.ID, p.TypeID
	}

	if startingPointID != "" {
		if sp, ok := cat.StartingPoint(string(key), startingPointID); ok {
			s.Calibration = append([]string(nil), sp.ControlPoints...)
			s.StartingPointTitle = sp.Title
		}
	}
	return s
}

func resolvePhase(key speaker.Key, phaseID string, cat *speaker.Catalog) (speaker.Phase, bool) {
	if phaseID != "" {
		if p, ok := cat.IndexedPhase(key, phaseID); ok {
			return p, true
		}
	}
	entry, ok := cat.Entry(string(key))
	if !ok {
		return speaker.Phase{}, false
	}
	if want := strings.TrimSpace(phaseID); want != "" {
		for _, p := range entry.Phases {
			if strings.EqualFold(p.ID, want) {
				return p, true
			}
		}
	}
	return entry.DefaultPhase()
}

var chPlaceholder = regexp.MustCompile(`(?i)\{ch\}`)

// RenderTemplate substitutes an output number into a command template.
// "{}" takes precedence; otherwise "{ch}" is matched in any case. A
// template without a placeholder is returned as is, and a blank template
// reports false.
func RenderTemplate(tpl string, output int) (string, bool) {
	if strings.TrimSpace(tpl) == "" {
		return "", false
	}
	n := strconv.Itoa(output)
	if strings.Contains(tpl, "{}") {
		return strings.ReplaceAll(tpl, "{}", n), true
	}
	return chPlaceholder.ReplaceAllLiteralString(tpl, n), true
}
