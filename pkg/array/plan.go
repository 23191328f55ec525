// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package array

import (
	"galaxy-control/pkg/speaker"
)

// Role tells which model of a mixed array an output drives.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

// Assignment is the plan for one output.
type Assignment struct {
	Output       int         `json:"output"`
	Role         Role        `json:"role"`
	Speaker      speaker.Key `json:"speaker"`
	FirstElement int         `json:"first_element"`
	LastElement  int         `json:"last_element"`
	// TypeID is "" when the model has no phase information.
	TypeID             string   `json:"type_id,omitempty"`
	Calibration        []string `json:"calibration,omitempty"`
	StartingPointTitle string   `json:"starting_point,omitempty"`
	DelayMs            float64  `json:"delay_ms"`
}

// Elements is the number of elements this output drives.
func (a Assignment) Elements() int {
	return a.LastElement - a.FirstElement + 1
}

// BuildPlan maps a request onto consecutive device outputs. It is a pure
// function of its arguments. A request that does not fit returns a
// *CapacityError and no assignments.
func BuildPlan(req Request, cat *speaker.Catalog, capacity int) ([]Assignment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	numOutputs := req.OutputsNeeded()
	if last := req.LastOutput(); last > capacity {
		return nil, &CapacityError{
			Start:     req.StartOutput,
			Outputs:   numOutputs,
			Required:  last,
			Available: capacity,
		}
	}

	epo := req.ElementsPerOutput
	primaryKey := req.PrimaryKey()
	secondaryKey := req.SecondaryKey()
	primaryOutputs := ceilDiv(req.PrimaryElements, epo)

	var delays Delays
	if req.IsMixed() && cat != nil {
		delays = ResolveDelay(primaryKey, secondaryKey, cat.Compat(), cat.Legacy())
	}

	primary := ResolveSettings(primaryKey, req.PrimarySelection.Phase, req.PrimarySelection.StartingPoint, cat)
	var secondary Settings
	if req.IsMixed() {
		secondary = ResolveSettings(secondaryKey, req.SecondarySelection.Phase, req.SecondarySelection.StartingPoint, cat)
	}

	plan := make([]Assignment, 0, numOutputs)
	for i := 0; i < numOutputs; i++ {
		output := req.StartOutput + i
		if output > capacity {
			break
		}
		a := Assignment{Output: output}
		var s Settings
		if i < primaryOutputs {
			a.Role, a.Speaker, s, a.DelayMs = RolePrimary, primaryKey, primary, delays.PrimaryMs
			a.FirstElement = i*epo + 1
			a.LastElement = min((i+1)*epo, req.PrimaryElements)
		} else {
			j := i - primaryOutputs
			a.Role, a.Speaker, s, a.DelayMs = RoleSecondary, secondaryKey, secondary, delays.SecondaryMs
			a.FirstElement = j*epo + 1
			a.LastElement = min((j+1)*epo, req.SecondaryElements)
		}
		a.TypeID = s.TypeID
		a.StartingPointTitle = s.StartingPointTitle
		if len(s.Calibration) > 0 {
			a.Calibration = append([]string(nil), s.Calibration...)
		}
		plan = append(plan, a)
	}
	return plan, nil
}
