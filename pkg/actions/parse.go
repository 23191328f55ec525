// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package actions

import (
	"fmt"
	"strconv"
	"strings"

	"galaxy-control/pkg/array"
	"galaxy-control/pkg/beam"
	"galaxy-control/pkg/config"
	"galaxy-control/pkg/errors"
	"galaxy-control/pkg/speaker"
)

// value returns the submitted value of an option or its default.
func (s *Schema) value(p Params, id string) string {
	if v := p.Get(id); v != "" {
		return v
	}
	if opt, ok := s.Option(id); ok {
		return opt.Default
	}
	return ""
}

func (s *Schema) guard(param, reason string) error {
	if s.Action == ActionBeamControl {
		return errors.BeamRequestError(param, reason)
	}
	return errors.ArrayRequestError(param, reason)
}

func (s *Schema) intValue(p Params, id string) (int, error) {
	v := s.value(p, id)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, s.guard(id, fmt.Sprintf("%q is not a whole number", v))
	}
	return n, nil
}

func (s *Schema) boolValue(p Params, id string) (bool, error) {
	v := s.value(p, id)
	if v == "" {
		return false, nil
	}
	b, ok := config.ParseBool(v)
	if !ok {
		return false, s.guard(id, fmt.Sprintf("%q is not a boolean", v))
	}
	return b, nil
}

// choiceValue checks a submitted value against the option's choices.
func (s *Schema) choiceValue(p Params, id string) (string, error) {
	v := s.value(p, id)
	opt, ok := s.Option(id)
	if !ok || v == "" || len(opt.Choices) == 0 {
		return v, nil
	}
	if s.isSpeakerField(id) {
		for _, c := range opt.Choices {
			if speaker.Canonical(c.Value) == speaker.Canonical(v) {
				return c.Value, nil
			}
		}
	} else if opt.hasChoice(v) {
		return v, nil
	}
	return "", s.guard(id, fmt.Sprintf("%q is not a valid choice", v))
}

// selection reads the per-model phase and starting point of one model.
func (s *Schema) selection(p Params, model string) array.Selection {
	var sel array.Selection
	if id, ok := s.PhaseOption(model); ok {
		sel.Phase = p.Get(id)
	}
	if id, ok := s.StartingPointOption(model); ok {
		if sp := p.Get(id); !strings.EqualFold(sp, noneChoice) {
			sel.StartingPoint = sp
		}
	}
	return sel
}

// ParseArrayRequest turns configure_array values into a planner request.
// A missing primary is not an error here; the planner rejects it.
func ParseArrayRequest(p Params, s *Schema) (array.Request, error) {
	var req array.Request
	primary, err := s.choiceValue(p, OptPrimary)
	if err != nil {
		return req, err
	}
	if !strings.EqualFold(primary, noneChoice) {
		req.Primary = primary
	}
	if req.PrimaryElements, err = s.intValue(p, OptPrimaryElements); err != nil {
		return req, err
	}
	if req.ElementsPerOutput, err = s.intValue(p, OptElementsPerOutput); err != nil {
		return req, err
	}
	if req.StartOutput, err = s.intValue(p, OptStartOutput); err != nil {
		return req, err
	}
	req.PrimarySelection = s.selection(p, req.Primary)

	form := s.Form(p)
	if form.Eval(MixedEnabled) {
		id, ok := s.SecondaryOption(req.Primary)
		if !ok {
			return req, s.guard(OptMixed, fmt.Sprintf("%s has no secondary option", req.Primary))
		}
		if req.Secondary, err = s.choiceValue(p, id); err != nil {
			return req, err
		}
		req.Mixed = true
		if req.SecondaryElements, err = s.intValue(p, OptSecondaryElements); err != nil {
			return req, err
		}
		req.SecondarySelection = s.selection(p, req.Secondary)
	}

	group, err := s.choiceValue(p, OptLinkGroup)
	if err != nil {
		return req, err
	}
	if group != "" && !strings.EqualFold(group, noneChoice) {
		if req.LinkGroup, err = strconv.Atoi(group); err != nil {
			return req, s.guard(OptLinkGroup, fmt.Sprintf("%q is not a link group number", group))
		}
		if req.LinkGroupEnabled, err = s.boolValue(p, OptLinkGroupEnabled); err != nil {
			return req, err
		}
	}
	if req.FactoryReset, err = s.boolValue(p, OptFactoryReset); err != nil {
		return req, err
	}
	return req, nil
}

// WantsBeamControl reports whether configure_array should also set up
// LMBC for the array.
func WantsBeamControl(p Params, s *Schema) (bool, error) {
	if !s.Form(p).Eval(Selected(OptPrimary)) {
		return false, nil
	}
	return s.boolValue(p, OptBeamControl)
}

// beamShape reads the options both actions share.
func (s *Schema) beamShape(p Params) (beam.Request, error) {
	var r beam.Request
	var err error
	if r.Array, err = s.intValue(p, OptBeamArray); err != nil {
		return r, err
	}
	if r.BeamAngle, err = s.intValue(p, OptBeamAngle); err != nil {
		return r, err
	}
	ct := s.value(p, OptControlType)
	c, ok := beam.ParseControlType(ct)
	if !ok {
		return r, errors.BeamRequestError(OptControlType, fmt.Sprintf("%q is not a control type", ct))
	}
	r.Control = c
	if r.StartingElement, err = s.intValue(p, OptStartingElement); err != nil {
		return r, err
	}
	return r, nil
}

// ArrayBeamRequest derives the LMBC request that accompanies an array
// configuration. Geometry comes from the array; bypass is always off.
func ArrayBeamRequest(p Params, s *Schema, req array.Request) (beam.Request, error) {
	r, err := s.beamShape(p)
	if err != nil {
		return r, err
	}
	r.ElementsPerOutput = req.ElementsPerOutput
	r.TotalElements = req.TotalElements()
	r.ProductType = beam.ProductTypeCode(req.Primary)
	r.StartingOutput = req.StartOutput
	r.Bypass = false
	return r, r.Validate()
}

// ParseBeamRequest turns beam_control values into a validated request.
func ParseBeamRequest(p Params, s *Schema) (beam.Request, error) {
	r, err := s.beamShape(p)
	if err != nil {
		return r, err
	}
	// unknown models map to product code 0
	r.ProductType = beam.ProductTypeCode(s.value(p, OptProduct))
	if r.ElementsPerOutput, err = s.intValue(p, OptElementsPerOutput); err != nil {
		return r, err
	}
	if r.TotalElements, err = s.intValue(p, OptTotalElements); err != nil {
		return r, err
	}
	if r.StartingOutput, err = s.intValue(p, OptStartingOutput); err != nil {
		return r, err
	}
	if r.Bypass, err = s.boolValue(p, OptBypass); err != nil {
		return r, err
	}
	return r, r.Validate()
}
