// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package surface lets a MIDI control surface fire actions. Each binding
// maps a note-on or a controller press on one channel to an action run
// with a named preset.
package surface

import (
	"context"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"galaxy-control/pkg/actions"
	"galaxy-control/pkg/config"
	"galaxy-control/pkg/log"
	"galaxy-control/pkg/metrics"
)

// Runner is the part of actions.Runner a surface needs.
type Runner interface {
	RunPreset(ctx context.Context, action, preset string, extra actions.Params) (actions.Result, error)
}

// Surface dispatches incoming MIDI messages to bindings.
type Surface struct {
	bindings []config.Binding
	runner   Runner
	metrics  *metrics.Metrics
	log      *log.Logger
}

// New creates a surface for the given bindings. m may be nil.
func New(bindings []config.Binding, runner Runner, m *metrics.Metrics) *Surface {
	return &Surface{
		bindings: bindings,
		runner:   runner,
		metrics:  m,
		log:      log.GetLogger("surface"),
	}
}

// Match finds the binding a message triggers. Note-on with zero velocity
// and controller value zero are releases and never match.
func (s *Surface) Match(msg midi.Message) (config.Binding, bool) {
	var ch, key, val uint8
	switch {
	case msg.GetNoteOn(&ch, &key, &val):
		if val == 0 {
			return config.Binding{}, false
		}
		for _, b := range s.bindings {
			if b.Note == int(key) && b.Channel == int(ch)+1 {
				return b, true
			}
		}
	case msg.GetControlChange(&ch, &key, &val):
		if val == 0 {
			return config.Binding{}, false
		}
		for _, b := range s.bindings {
			if b.Control == int(key) && b.Channel == int(ch)+1 {
				return b, true
			}
		}
	}
	return config.Binding{}, false
}

// Handle runs the action bound to msg, if any. It reports whether a
// binding matched.
func (s *Surface) Handle(ctx context.Context, msg midi.Message) bool {
	b, ok := s.Match(msg)
	if !ok {
		return false
	}
	s.metrics.ObserveSurface(b.Name)
	entry := s.log.WithFields(log.Fields{"binding": b.Name, "action": b.Action, "preset": b.Preset})

	res, err := s.runner.RunPreset(ctx, b.Action, b.Preset, nil)
	if err != nil {
		entry.WithError(err).Error("bound action failed")
		return true
	}
	entry.Info(res.String())
	return true
}

// FindInPort returns the first MIDI input whose name contains name,
// ignoring case.
func FindInPort(name string) (drivers.In, error) {
	want := strings.ToLower(name)
	for _, in := range midi.GetInPorts() {
		if strings.Contains(strings.ToLower(in.String()), want) {
			return in, nil
		}
	}
	return nil, fmt.Errorf("MIDI input %q not found", name)
}

// Listen starts dispatching messages from in until ctx is done or the
// returned stop function is called. Actions run on their own goroutine so
// a slow device never stalls the MIDI driver.
func (s *Surface) Listen(ctx context.Context, in drivers.In) (stop func(), err error) {
	stopFn, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		if _, ok := s.Match(msg); ok {
			go s.Handle(ctx, msg)
		}
	}, midi.HandleError(func(listenErr error) {
		s.log.WithError(listenErr).WithField("port", in.String()).Warn("MIDI listener error")
	}))
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", in.String(), err)
	}
	s.log.Info("listening for %d bindings on %s", len(s.bindings), in.String())

	release := context.AfterFunc(ctx, stopFn)
	return func() {
		if release() {
			stopFn()
		}
	}, nil
}
