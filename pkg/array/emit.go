// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package array

import (
	"context"
	"fmt"
	"sort"

	"galaxy-control/pkg/errors"
	"galaxy-control/pkg/protocol"
	"galaxy-control/pkg/state"
)

// EffectKind names a state change tied to an emitted command.
type EffectKind int

const (
	EffectLinkGroup EffectKind = iota
	EffectGroupBypass
)

// Effect is recorded in the state store once the command at Index has been
// accepted by the sink.
type Effect struct {
	Index  int
	Kind   EffectKind
	Output int
	Group  int
	Bypass bool
}

func (e Effect) apply(st *state.Store) {
	switch e.Kind {
	case EffectLinkGroup:
		st.SetOutputLinkGroup(e.Output, e.Group)
	case EffectGroupBypass:
		st.SetLinkGroupBypass(e.Group, e.Bypass)
	}
}

// Emission is a rendered plan: the ordered command batch plus the state
// effects that follow from it.
type Emission struct {
	Commands []protocol.Command
	Effects  []Effect
	// Skipped holds calibration lines that were not valid commands.
	Skipped []string
}

func (em *Emission) push(c protocol.Command) int {
	em.Commands = append(em.Commands, c)
	return len(em.Commands) - 1
}

func (em *Emission) pushTemplate(tpl string, output int) {
	line, ok := RenderTemplate(tpl, output)
	if !ok {
		return
	}
	c, err := protocol.Parse(line)
	if err != nil {
		em.Skipped = append(em.Skipped, line)
		return
	}
	em.push(c)
}

// Apply records the effects of the first accepted commands in st.
func (em *Emission) Apply(st *state.Store, accepted int) {
	if st == nil {
		return
	}
	for _, e := range em.Effects {
		if e.Index < accepted {
			e.apply(st)
		}
	}
}

// Render turns assignments into the command batch, in ascending output
// order. Per output: factory reset, integration type, calibration, delay,
// link group. The group bypass command comes last.
func Render(assignments []Assignment, req Request) *Emission {
	em := &Emission{}

	ordered := append([]Assignment(nil), assignments...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Output < ordered[j].Output })

	var resetTemplates []string
	if req.FactoryReset {
		resetTemplates = factoryReset
	}

	for _, a := range ordered {
		n := a.Output
		for _, tpl := range resetTemplates {
			em.pushTemplate(tpl, n)
		}
		if a.TypeID != "" {
			em.push(protocol.Setf(a.TypeID, "/processing/output/%d/delay_integration/type", n))
		}
		for _, tpl := range a.Calibration {
			em.pushTemplate(tpl, n)
		}
		if a.DelayMs > 0 {
			em.push(protocol.Setf(protocol.Int(DelayUnits(a.DelayMs)),
				"/processing/output/%d/delay_integration/delay_samples", n))
		}
		if req.LinkGroup > 0 {
			idx := em.push(protocol.Setf(protocol.Int(req.LinkGroup), "/processing/output/%d/link_group", n))
			em.Effects = append(em.Effects, Effect{Index: idx, Kind: EffectLinkGroup, Output: n, Group: req.LinkGroup})
		}
	}

	if req.LinkGroup > 0 && len(ordered) > 0 {
		bypass := !req.LinkGroupEnabled
		idx := em.push(protocol.Setf(protocol.Bool(bypass), "/processing/link_group/%d/bypass", req.LinkGroup))
		em.Effects = append(em.Effects, Effect{Index: idx, Kind: EffectGroupBypass, Group: req.LinkGroup, Bypass: bypass})
	}
	return em
}

// EmitResult summarises one emission.
type EmitResult struct {
	Outputs  int `json:"outputs"`
	Commands int `json:"commands"`
	Sent     int `json:"sent"`
	Skipped  int `json:"skipped"`
}

func (r EmitResult) String() string {
	return fmt.Sprintf("%d outputs, %d/%d commands sent", r.Outputs, r.Sent, r.Commands)
}

// Emit renders the plan and hands it to the sink as a single awaited batch.
// State effects are recorded only for commands the sink accepted. A sink
// failure is returned as an errors.ErrSink error; commands already sent
// stay applied on the device.
func Emit(ctx context.Context, assignments []Assignment, req Request, sink protocol.Sink, store *state.Store) (EmitResult, error) {
	em := Render(assignments, req)
	res := EmitResult{Outputs: len(assignments), Commands: len(em.Commands), Skipped: len(em.Skipped)}
	if len(em.Commands) == 0 {
		return res, nil
	}

	err := sink.Send(ctx, em.Commands)
	res.Sent = protocol.Accepted(err, len(em.Commands))
	em.Apply(store, res.Sent)
	if err != nil {
		return res, errors.SinkError(err, res.Sent, len(em.Commands))
	}
	return res, nil
}
