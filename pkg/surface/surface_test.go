// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package surface

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"galaxy-control/pkg/actions"
	"galaxy-control/pkg/config"
	"galaxy-control/pkg/metrics"
	"galaxy-control/pkg/protocol"
	"galaxy-control/pkg/state"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeRunner) RunPreset(ctx context.Context, action, preset string, extra actions.Params) (actions.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, action+"/"+preset)
	return actions.Result{Action: action, Status: actions.StatusOK}, f.err
}

var bindings = []config.Binding{
	{Name: "left", Channel: 1, Note: 36, Control: -1, Action: actions.ActionConfigureArray, Preset: "main_left"},
	{Name: "beam", Channel: 10, Note: -1, Control: 20, Action: actions.ActionBeamControl, Preset: "steer"},
}

func TestMatch(t *testing.T) {
	s := New(bindings, &fakeRunner{}, nil)

	tests := []struct {
		name string
		msg  midi.Message
		want string
	}{
		{"note on", midi.NoteOn(0, 36, 100), "left"},
		{"note on other channel", midi.NoteOn(1, 36, 100), ""},
		{"note off", midi.NoteOff(0, 36), ""},
		{"zero velocity", midi.NoteOn(0, 36, 0), ""},
		{"controller press", midi.ControlChange(9, 20, 127), "beam"},
		{"controller release", midi.ControlChange(9, 20, 0), ""},
		{"unbound controller", midi.ControlChange(9, 21, 127), ""},
		{"program change", midi.ProgramChange(0, 36), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := s.Match(tt.msg)
			assert.Equal(t, tt.want != "", ok)
			assert.Equal(t, tt.want, b.Name)
		})
	}
}

func TestHandleRunsPreset(t *testing.T) {
	r := &fakeRunner{}
	m := metrics.New()
	s := New(bindings, r, m)

	assert.True(t, s.Handle(context.Background(), midi.ControlChange(9, 20, 64)))
	assert.False(t, s.Handle(context.Background(), midi.NoteOn(0, 40, 64)))
	assert.Equal(t, []string{"beam_control/steer"}, r.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SurfaceEvents.WithLabelValues("beam")))

	r.err = stderrors.New("device gone")
	assert.True(t, s.Handle(context.Background(), midi.NoteOn(0, 36, 1)))
	assert.Len(t, r.calls, 2)
}

func TestHandleWithRealRunner(t *testing.T) {
	rec := protocol.NewRecorder()
	runner := actions.NewRunner(actions.Config{
		Sink:  rec,
		Store: state.New(16),
		Presets: map[string]actions.Params{
			"main_left": {actions.OptPrimary: "LEO", actions.OptPrimaryElements: "3"},
		},
	})
	s := New(bindings, runner, nil)

	require.True(t, s.Handle(context.Background(), midi.NoteOn(0, 36, 127)))
	assert.Equal(t, []string{
		"/processing/output/1/delay_integration/type=1",
		"/processing/output/2/delay_integration/type=1",
		"/processing/output/3/delay_integration/type=1",
	}, rec.Lines())

	// unknown preset is logged, nothing is sent
	require.True(t, s.Handle(context.Background(), midi.ControlChange(9, 20, 127)))
	assert.Len(t, rec.Lines(), 3)
}
