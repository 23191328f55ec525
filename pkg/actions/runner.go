// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package actions turns operator intent into device command batches. An
// action takes a flat set of option values, validates them against its
// schema, plans and emits the commands and reports a Result.
package actions

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"galaxy-control/pkg/array"
	"galaxy-control/pkg/beam"
	"galaxy-control/pkg/errors"
	"galaxy-control/pkg/log"
	"galaxy-control/pkg/metrics"
	"galaxy-control/pkg/protocol"
	"galaxy-control/pkg/speaker"
	"galaxy-control/pkg/state"
)

// Status is the outcome of one invocation.
type Status string

const (
	StatusOK       Status = "ok"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
	StatusPreview  Status = "preview"
)

// Result reports one invocation.
type Result struct {
	ID         string             `json:"id"`
	Action     string             `json:"action"`
	Status     Status             `json:"status"`
	Message    string             `json:"message,omitempty"`
	BeamStatus string             `json:"beam_status,omitempty"`
	Outputs    int                `json:"outputs"`
	Commands   int                `json:"commands"`
	Sent       int                `json:"sent"`
	Skipped    []string           `json:"skipped,omitempty"`
	Plan       []array.Assignment `json:"plan,omitempty"`
	Lines      []string           `json:"lines,omitempty"`
}

func (r Result) String() string {
	s := fmt.Sprintf("%s %s: %s", r.Action, r.ID, r.Status)
	if r.Commands > 0 {
		s += fmt.Sprintf(" (%d outputs, %d/%d commands)", r.Outputs, r.Sent, r.Commands)
	}
	if r.Message != "" {
		s += ": " + r.Message
	}
	return s
}

// Info describes an action for listing.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Config wires a Runner to its collaborators. Only Sink is required.
type Config struct {
	Catalog *speaker.Catalog
	Sink    protocol.Sink
	Store   *state.Store
	Metrics *metrics.Metrics
	Presets map[string]Params
}

// Runner executes actions. Invocations are independent and may run
// concurrently; overlapping output ranges resolve last writer wins.
type Runner struct {
	cat     *speaker.Catalog
	sink    protocol.Sink
	store   *state.Store
	metrics *metrics.Metrics
	presets map[string]Params
	log     *log.Logger

	arraySchema *Schema
	beamSchema  *Schema
}

var errNoSink = errors.New(errors.ErrSink, "no command sink configured")

// NewRunner builds a runner. A nil catalog selects the built-in one.
func NewRunner(cfg Config) *Runner {
	cat := cfg.Catalog
	if cat == nil {
		cat = speaker.Builtin()
	}
	store := cfg.Store
	if store == nil {
		store = state.New(0)
	}
	sink := cfg.Sink
	if sink == nil {
		sink = protocol.SinkFunc(func(context.Context, []protocol.Command) error { return errNoSink })
	}
	return &Runner{
		cat:         cat,
		sink:        sink,
		store:       store,
		metrics:     cfg.Metrics,
		presets:     cfg.Presets,
		log:         log.GetLogger("actions"),
		arraySchema: NewSchema(cat),
		beamSchema:  NewBeamSchema(cat),
	}
}

// Actions lists the available actions.
func (r *Runner) Actions() []Info {
	return []Info{
		{Name: ActionConfigureArray, Description: "Configure a line array across consecutive outputs"},
		{Name: ActionBeamControl, Description: "Configure low-mid beam control for one array"},
	}
}

// Schema returns the option schema of an action.
func (r *Runner) Schema(action string) (*Schema, bool) {
	switch action {
	case ActionConfigureArray:
		return r.arraySchema, true
	case ActionBeamControl:
		return r.beamSchema, true
	}
	return nil, false
}

// Store returns the state store the runner records into.
func (r *Runner) Store() *state.Store {
	return r.store
}

// PresetNames returns the configured preset names sorted.
func (r *Runner) PresetNames() []string {
	names := make([]string, 0, len(r.presets))
	for n := range r.presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Run executes an action. Guard failures come back as a rejected Result
// with a nil error. Sink failures return a failed Result and the error.
func (r *Runner) Run(ctx context.Context, action string, p Params) (Result, error) {
	return r.invoke(ctx, action, p, false)
}

// Preview plans an action and renders its commands without sending them.
func (r *Runner) Preview(action string, p Params) (Result, error) {
	return r.invoke(context.Background(), action, p, true)
}

// RunPreset runs an action with a named preset, overlaid with extra.
func (r *Runner) RunPreset(ctx context.Context, action, preset string, extra Params) (Result, error) {
	p, ok := r.presets[preset]
	if !ok {
		return Result{Action: action}, errors.Newf(errors.ErrAction, "unknown preset %q", preset)
	}
	return r.Run(ctx, action, p.Merge(extra))
}

func (r *Runner) invoke(ctx context.Context, action string, p Params, dry bool) (res Result, err error) {
	res = Result{ID: uuid.NewString(), Action: action}
	entry := r.log.WithFields(log.Fields{"invocation": res.ID, "action": action})

	start := time.Now()
	defer func() {
		if !dry && res.Status != "" {
			r.metrics.ObserveInvocation(action, string(res.Status), res.Sent, time.Since(start))
		}
	}()

	switch action {
	case ActionConfigureArray:
		return r.configureArray(ctx, entry, res, p, dry)
	case ActionBeamControl:
		return r.beamControl(ctx, entry, res, p, dry)
	}
	return res, errors.Newf(errors.ErrAction, "unknown action %q", action)
}

func (r *Runner) configureArray(ctx context.Context, entry *log.Entry, res Result, p Params, dry bool) (Result, error) {
	req, err := ParseArrayRequest(p, r.arraySchema)
	if err != nil {
		return r.reject(entry, res, err)
	}
	withBeam, err := WantsBeamControl(p, r.arraySchema)
	if err != nil {
		return r.reject(entry, res, err)
	}
	var br beam.Request
	if withBeam {
		if br, err = ArrayBeamRequest(p, r.arraySchema, req); err != nil {
			return r.reject(entry, res, err)
		}
		res.BeamStatus = beam.StatusPreview(br.Array, r.store)
		entry.Info(res.BeamStatus)
	}

	plan, err := array.BuildPlan(req, r.cat, r.store.OutputCount())
	if err != nil {
		return r.reject(entry, res, err)
	}
	r.metrics.ObservePlan(len(plan))
	res.Outputs = len(plan)

	if dry {
		em := array.Render(plan, req)
		cmds := em.Commands
		if withBeam {
			cmds = append(cmds, beam.BuildCommands(br)...)
		}
		res.Plan = plan
		res.Lines = lineStrings(cmds)
		res.Skipped = em.Skipped
		res.Commands = len(cmds)
		res.Status = StatusPreview
		return res, nil
	}

	er, err := array.Emit(ctx, plan, req, r.sink, r.store)
	res.Commands, res.Sent = er.Commands, er.Sent
	if err != nil {
		return r.fail(entry, res, err)
	}
	if withBeam {
		if res, err = r.sendBeam(ctx, res, br); err != nil {
			return r.fail(entry, res, err)
		}
	}

	res.Status = StatusOK
	entry.WithFields(log.Fields{
		"primary":  string(req.PrimaryKey()),
		"outputs":  res.Outputs,
		"commands": res.Sent,
	}).Info("array configured")
	return res, nil
}

func (r *Runner) beamControl(ctx context.Context, entry *log.Entry, res Result, p Params, dry bool) (Result, error) {
	br, err := ParseBeamRequest(p, r.beamSchema)
	if err != nil {
		return r.reject(entry, res, err)
	}
	res.BeamStatus = beam.StatusPreview(br.Array, r.store)
	entry.Info(res.BeamStatus)

	if dry {
		res.Lines = lineStrings(beam.BuildCommands(br))
		res.Commands = len(res.Lines)
		res.Status = StatusPreview
		return res, nil
	}
	if res, err = r.sendBeam(ctx, res, br); err != nil {
		return r.fail(entry, res, err)
	}
	res.Status = StatusOK
	entry.WithField("array", br.Array).Info("beam control configured")
	return res, nil
}

func (r *Runner) sendBeam(ctx context.Context, res Result, br beam.Request) (Result, error) {
	cmds := beam.BuildCommands(br)
	err := r.sink.Send(ctx, cmds)
	sent := protocol.Accepted(err, len(cmds))
	res.Commands += len(cmds)
	res.Sent += sent
	if err != nil {
		return res, errors.SinkError(err, sent, len(cmds))
	}
	return res, nil
}

func (r *Runner) reject(entry *log.Entry, res Result, err error) (Result, error) {
	if !errors.IsGuard(err) {
		return r.fail(entry, res, err)
	}
	entry.WithError(err).Warn("request rejected")
	res.Status = StatusRejected
	res.Message = err.Error()
	return res, nil
}

func (r *Runner) fail(entry *log.Entry, res Result, err error) (Result, error) {
	entry.WithError(err).WithField("sent", res.Sent).Error("invocation failed")
	if errors.Is(err, errors.ErrSink) {
		r.metrics.ObserveSinkError(res.Action)
	}
	res.Status = StatusFailed
	res.Message = err.Error()
	return res, err
}

func lineStrings(cmds []protocol.Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Line()
	}
	return out
}
