// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package actions

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galaxy-control/pkg/errors"
	"galaxy-control/pkg/metrics"
	"galaxy-control/pkg/protocol"
	"galaxy-control/pkg/speaker"
	"galaxy-control/pkg/state"
)

func isolatedCatalog(t *testing.T) *speaker.Catalog {
	t.Helper()
	c, err := speaker.NewCatalog(speaker.Tables{
		Speakers: []speaker.Entry{
			{Key: "LINA", Label: "LINA", Phases: []speaker.Phase{{ID: "linear", TypeID: "10"}}},
			{Key: "LEO", Label: "LEO-M", Phases: []speaker.Phase{{ID: "linear", TypeID: "1"}}},
		},
	})
	require.NoError(t, err)
	return c
}

func mixedParams() Params {
	return Params{
		OptPrimary:           "lina",
		OptPrimaryElements:   "8",
		OptElementsPerOutput: "1",
		OptStartOutput:       "1",
		OptMixed:             "true",
		"secondary_for_lina": "LEO",
		OptSecondaryElements: "4",
	}
}

func TestSchemaSecondaryOption(t *testing.T) {
	s := NewSchema(speaker.Builtin())

	id, ok := s.SecondaryOption("LINA")
	require.True(t, ok)
	assert.Equal(t, "secondary_for_lina", id)

	id, ok = s.SecondaryOption("1100 lfc")
	require.True(t, ok)
	assert.Equal(t, "secondary_for_1100lfc", id)

	opt, ok := s.Option("secondary_for_lina")
	require.True(t, ok)
	var values []string
	for _, c := range opt.Choices {
		values = append(values, c.Value)
	}
	assert.Contains(t, values, "LEO")
	assert.Contains(t, values, "1100_LFC")
	assert.NotContains(t, values, "LINA")

	_, ok = NewSchema(isolatedCatalog(t)).SecondaryOption("LINA")
	assert.False(t, ok)
}

func TestVisibility(t *testing.T) {
	s := NewSchema(speaker.Builtin())

	f := s.Form(Params{})
	assert.False(t, f.Visible(OptMixed), "no primary selected")
	assert.False(t, f.Visible(OptPrimaryElements))
	assert.True(t, f.Visible(OptPrimary))

	f = s.Form(Params{OptPrimary: "LINA"})
	assert.True(t, f.Visible(OptMixed))
	assert.False(t, f.Visible("secondary_for_lina"))
	assert.False(t, f.Visible(OptSecondaryElements))
	assert.True(t, f.Visible("phase_for_lina"))
	assert.False(t, f.Visible("phase_for_leo"))
	assert.False(t, f.Visible(OptLinkGroupEnabled))

	f = s.Form(mixedParams())
	assert.True(t, f.Visible("secondary_for_lina"))
	assert.False(t, f.Visible("secondary_for_leo"))
	assert.True(t, f.Visible(OptSecondaryElements))
	assert.True(t, f.Visible("phase_for_leo"), "secondary model options follow the chosen secondary")
	assert.False(t, f.Visible("phase_for_lyon"))

	f = s.Form(Params{OptPrimary: "none", OptMixed: "true"})
	assert.False(t, f.Visible(OptSecondaryElements))

	iso := NewSchema(isolatedCatalog(t))
	f = iso.Form(Params{OptPrimary: "LINA", OptMixed: "true"})
	assert.False(t, f.Visible(OptMixed), "no compatible secondary")
	assert.False(t, f.Eval(MixedEnabled))

	for _, opt := range f.VisibleOptions() {
		assert.NotEqual(t, OptSecondaryElements, opt.ID)
	}
	assert.False(t, f.Visible("no_such_option"))
}

func TestRuleInterpreter(t *testing.T) {
	s := NewSchema(speaker.Builtin())
	f := s.Form(Params{"a": "yes", "b": "", "c": "none", OptPrimary: "leo-m"})

	assert.True(t, f.Eval(Always))
	assert.True(t, f.Eval(Field("a")))
	assert.False(t, f.Eval(Field("b")))
	assert.False(t, f.Eval(Selected("c")))
	assert.True(t, f.Eval(Is(OptPrimary, "LEO")), "speaker fields compare canonically")
	assert.True(t, f.Eval(Not(Field("b"))))
	assert.True(t, f.Eval(Any(Field("b"), Field("a"))))
	assert.False(t, f.Eval(All(Field("a"), Field("b"))))
	assert.True(t, f.Eval(All()))
	assert.False(t, f.Eval(Any()))
	assert.False(t, f.Eval(Rule{Op: "bogus"}))

	data, err := json.Marshal(All(Field(OptMixed), Not(Selected(OptLinkGroup))))
	require.NoError(t, err)
	var back Rule
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, All(Field(OptMixed), Not(Selected(OptLinkGroup))), back)
}

func TestParseArrayRequest(t *testing.T) {
	s := NewSchema(speaker.Builtin())
	p := mixedParams()
	p["phase_for_lina"] = "minimum"
	p["starting_point_for_lina"] = "flown"
	p["phase_for_leo"] = "linear"
	p[OptLinkGroup] = "3"
	p[OptLinkGroupEnabled] = "false"
	p[OptFactoryReset] = "on"

	req, err := ParseArrayRequest(p, s)
	require.NoError(t, err)
	assert.Equal(t, "LINA", req.Primary)
	assert.Equal(t, 8, req.PrimaryElements)
	assert.Equal(t, "minimum", req.PrimarySelection.Phase)
	assert.Equal(t, "flown", req.PrimarySelection.StartingPoint)
	assert.True(t, req.Mixed)
	assert.Equal(t, "LEO", req.Secondary)
	assert.Equal(t, 4, req.SecondaryElements)
	assert.Equal(t, "linear", req.SecondarySelection.Phase)
	assert.Equal(t, 3, req.LinkGroup)
	assert.False(t, req.LinkGroupEnabled)
	assert.True(t, req.FactoryReset)
}

func TestParseArrayRequestDefaults(t *testing.T) {
	s := NewSchema(speaker.Builtin())
	req, err := ParseArrayRequest(Params{OptPrimary: "LEO"}, s)
	require.NoError(t, err)
	assert.Equal(t, 1, req.PrimaryElements)
	assert.Equal(t, 1, req.ElementsPerOutput)
	assert.Equal(t, 1, req.StartOutput)
	assert.False(t, req.Mixed)
	assert.Zero(t, req.LinkGroup)

	req, err = ParseArrayRequest(Params{OptPrimary: "LEO", OptLinkGroup: "2"}, s)
	require.NoError(t, err)
	assert.True(t, req.LinkGroupEnabled)

	req, err = ParseArrayRequest(Params{OptPrimary: "none"}, s)
	require.NoError(t, err)
	assert.Empty(t, req.Primary)

	req, err = ParseArrayRequest(Params{OptPrimary: "LINA", OptMixed: "true", OptSecondaryElements: "2"}, s)
	require.NoError(t, err)
	assert.True(t, req.Mixed)
	assert.NotEmpty(t, req.Secondary, "secondary falls back to the first compatible model")

	req, err = ParseArrayRequest(Params{OptPrimary: "LINA", OptMixed: "true", "secondary_for_lina": "LEO"}, NewSchema(isolatedCatalog(t)))
	require.NoError(t, err)
	assert.False(t, req.Mixed)
	assert.Empty(t, req.Secondary)
}

func TestParseArrayRequestErrors(t *testing.T) {
	s := NewSchema(speaker.Builtin())
	tests := []Params{
		{OptPrimary: "WOOFER9000"},
		{OptPrimary: "LEO", OptPrimaryElements: "many"},
		{OptPrimary: "LEO", OptLinkGroup: "9"},
		{OptPrimary: "LEO", OptLinkGroup: "1", OptLinkGroupEnabled: "maybe"},
		{OptPrimary: "LINA", OptMixed: "true", "secondary_for_lina": "LINA"},
	}
	for _, p := range tests {
		_, err := ParseArrayRequest(p, s)
		require.Error(t, err, "%v", p)
		assert.True(t, errors.Is(err, errors.ErrArrayRequest), "%v", p)
	}
}

func TestParseArrayRequestNonNumericLinkGroup(t *testing.T) {
	s := NewSchema(speaker.Builtin())
	i := s.index[OptLinkGroup]
	s.Options[i].Choices = append(s.Options[i].Choices, Choice{Value: "front", Label: "Front"})

	_, err := ParseArrayRequest(Params{OptPrimary: "LEO", OptPrimaryElements: "4", OptLinkGroup: "front"}, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrArrayRequest))
	assert.Contains(t, err.Error(), "front")
}

func TestParseBeamRequest(t *testing.T) {
	s := NewBeamSchema(speaker.Builtin())
	r, err := ParseBeamRequest(Params{
		OptBeamArray: "2", OptBeamAngle: "120", OptControlType: "steer-up",
		OptProduct: "Leopard", OptElementsPerOutput: "2", OptTotalElements: "12",
		OptStartingOutput: "5", OptStartingElement: "3", OptBypass: "true",
	}, s)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Array)
	assert.Equal(t, 120, r.BeamAngle, "clamping happens when commands are built")
	assert.Equal(t, 1, r.ProductType)
	assert.Equal(t, 12, r.TotalElements)
	assert.True(t, r.Bypass)

	r, err = ParseBeamRequest(Params{OptProduct: "mystery"}, s)
	require.NoError(t, err)
	assert.Equal(t, 0, r.ProductType)
	assert.Equal(t, 1, r.Array)

	_, err = ParseBeamRequest(Params{OptControlType: "sideways"}, s)
	assert.True(t, errors.Is(err, errors.ErrBeamRequest))
	_, err = ParseBeamRequest(Params{OptBeamArray: "5"}, s)
	assert.True(t, errors.Is(err, errors.ErrBeamRequest))
	_, err = ParseBeamRequest(Params{OptTotalElements: "x"}, s)
	assert.True(t, errors.Is(err, errors.ErrBeamRequest))
}

func newTestRunner(t *testing.T, outputs int) (*Runner, *protocol.Recorder, *metrics.Metrics) {
	t.Helper()
	rec := protocol.NewRecorder()
	m := metrics.New()
	r := NewRunner(Config{
		Catalog: speaker.Builtin(),
		Sink:    rec,
		Store:   state.New(outputs),
		Metrics: m,
		Presets: map[string]Params{"main_left": mixedParams()},
	})
	return r, rec, m
}

func TestRunConfigureArray(t *testing.T) {
	r, rec, m := newTestRunner(t, 16)

	res, err := r.Run(context.Background(), ActionConfigureArray, mixedParams())
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 12, res.Outputs)
	assert.Equal(t, 20, res.Commands)
	assert.Equal(t, 20, res.Sent)

	lines := rec.Lines()
	require.Len(t, lines, 20)
	assert.Equal(t, "/processing/output/1/delay_integration/type=10", lines[0])
	assert.Equal(t, "/processing/output/1/delay_integration/delay_samples=240", lines[1])
	assert.Equal(t, "/processing/output/9/delay_integration/type=1", lines[16])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invocations.WithLabelValues(ActionConfigureArray, "ok")))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.CommandsSent.WithLabelValues(ActionConfigureArray)))
}

func TestRunConfigureArrayWithBeam(t *testing.T) {
	r, rec, _ := newTestRunner(t, 16)
	p := mixedParams()
	p[OptBeamControl] = "true"
	p[OptBeamArray] = "2"
	p[OptBeamAngle] = "5"

	res, err := r.Run(context.Background(), ActionConfigureArray, p)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, 28, res.Sent)
	assert.Equal(t, "LMBC array 2: no status reported", res.BeamStatus)

	batches := rec.Batches()
	require.Len(t, batches, 2)
	beamLines := make([]string, len(batches[1]))
	for i, c := range batches[1] {
		beamLines[i] = c.Line()
	}
	assert.Equal(t, []string{
		"/processing/beam_control_array/2/beam_angle='10'",
		"/processing/beam_control_array/2/bypass='false'",
		"/processing/beam_control_array/2/control_type='0'",
		"/processing/beam_control_array/2/elements_per_output='1'",
		"/processing/beam_control_array/2/total_elements='12'",
		"/processing/beam_control_array/2/product_type='2'",
		"/processing/beam_control_array/2/starting_output='1'",
		"/processing/beam_control_array/2/starting_element='1'",
	}, beamLines)
}

func TestRunRejections(t *testing.T) {
	r, rec, m := newTestRunner(t, 10)

	p := Params{OptPrimary: "LINA", OptPrimaryElements: "16"}
	res, err := r.Run(context.Background(), ActionConfigureArray, p)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Contains(t, res.Message, "16")

	res, err = r.Run(context.Background(), ActionConfigureArray, Params{})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)

	res, err = r.Run(context.Background(), ActionBeamControl, Params{OptBeamArray: "0"})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)

	assert.Empty(t, rec.Batches(), "guards never reach the device")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Invocations.WithLabelValues(ActionConfigureArray, "rejected")))
}

func TestRunSinkFailure(t *testing.T) {
	rec := &protocol.Recorder{FailAfter: 3}
	m := metrics.New()
	st := state.New(16)
	r := NewRunner(Config{Sink: rec, Store: st, Metrics: m})

	p := Params{OptPrimary: "LEO", OptPrimaryElements: "4", OptLinkGroup: "1"}
	res, err := r.Run(context.Background(), ActionConfigureArray, p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSink))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 3, res.Sent)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkErrors.WithLabelValues(ActionConfigureArray)))

	// type, link group, type: only output 1's link group reached the device
	assert.Equal(t, map[int]int{1: 1}, st.LinkGroups())
}

func TestRunWithoutSink(t *testing.T) {
	r := NewRunner(Config{Store: state.New(8)})
	res, err := r.Run(context.Background(), ActionConfigureArray, Params{OptPrimary: "LEO"})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 0, res.Sent)
}

func TestRunBeamControl(t *testing.T) {
	r, rec, _ := newTestRunner(t, 16)
	r.Store().SetBeamTelemetry(3, state.Telemetry{ErrorCode: 0})

	res, err := r.Run(context.Background(), ActionBeamControl, Params{
		OptBeamArray: "3", OptProduct: "PANTHER", OptTotalElements: "8", OptBypass: "yes",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "LMBC array 3: OK", res.BeamStatus)
	assert.Equal(t, 8, res.Sent)

	lines := rec.Lines()
	require.Len(t, lines, 8)
	assert.Equal(t, "/processing/beam_control_array/3/bypass='true'", lines[1])
	assert.Equal(t, "/processing/beam_control_array/3/product_type='5'", lines[5])
}

func TestPreview(t *testing.T) {
	r, rec, m := newTestRunner(t, 16)
	p := mixedParams()
	p["starting_point_for_lina"] = "flown"

	res, err := r.Preview(ActionConfigureArray, p)
	require.NoError(t, err)
	assert.Equal(t, StatusPreview, res.Status)
	assert.Len(t, res.Plan, 12)
	assert.Equal(t, res.Commands, len(res.Lines))
	assert.Empty(t, rec.Batches())
	assert.Equal(t, 0, testutil.CollectAndCount(m.Invocations))

	run, err := r.Run(context.Background(), ActionConfigureArray, p)
	require.NoError(t, err)
	assert.Equal(t, res.Lines, rec.Lines(), "preview shows exactly what a run sends")
	assert.Equal(t, run.Commands, res.Commands)

	res, err = r.Preview(ActionBeamControl, Params{})
	require.NoError(t, err)
	assert.Len(t, res.Lines, 8)
	assert.True(t, strings.HasPrefix(res.Lines[0], "/processing/beam_control_array/1/"))
}

func TestUnknownActionAndPreset(t *testing.T) {
	r, _, _ := newTestRunner(t, 16)

	_, err := r.Run(context.Background(), "make_coffee", nil)
	assert.True(t, errors.Is(err, errors.ErrAction))

	_, err = r.RunPreset(context.Background(), ActionConfigureArray, "nope", nil)
	assert.True(t, errors.Is(err, errors.ErrAction))

	res, err := r.RunPreset(context.Background(), ActionConfigureArray, "main_left", Params{OptStartOutput: "3"})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, []string{"main_left"}, r.PresetNames())

	_, ok := r.Schema("make_coffee")
	assert.False(t, ok)
	assert.Len(t, r.Actions(), 2)
}

func TestParamsFromJSON(t *testing.T) {
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"primary":"LINA","primary_elements":12,"mixed":true,"gain":-2.5,"x":null}`), &raw))
	p := ParamsFromJSON(raw)
	assert.Equal(t, Params{"primary": "LINA", "primary_elements": "12", "mixed": "true", "gain": "-2.5"}, p)
	assert.Equal(t, []string{"gain", "mixed", "primary", "primary_elements"}, p.Keys())

	merged := p.Merge(Params{"primary": "LEO"})
	assert.Equal(t, "LEO", merged.Get("primary"))
	assert.Equal(t, "LINA", p.Get("primary"))
}
