// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galaxy-control/pkg/actions"
	"galaxy-control/pkg/state"
)

func TestParseArgs(t *testing.T) {
	p, err := parseArgs([]string{"primary=LINA", " start_output =5", "name=a=b"})
	require.NoError(t, err)
	assert.Equal(t, "LINA", p.Get("primary"))
	assert.Equal(t, "5", p.Get("start_output"))
	assert.Equal(t, "a=b", p.Get("name"))

	_, err = parseArgs([]string{"primary"})
	assert.Error(t, err)
	_, err = parseArgs([]string{"=x"})
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	runner := actions.NewRunner(actions.Config{Store: state.New(16)})
	res, err := runner.Preview(actions.ActionConfigureArray, actions.Params{
		"primary":             "LINA",
		"primary_elements":    "2",
		"elements_per_output": "1",
		"start_output":        "3",
	})
	require.NoError(t, err)
	require.Equal(t, actions.StatusPreview, res.Status)

	var buf bytes.Buffer
	printResult(&buf, res)
	out := buf.String()
	assert.Contains(t, out, "Speaker")
	assert.Contains(t, out, "LINA")
	assert.Contains(t, out, "/processing/output/3/delay_integration/type=")
	assert.Contains(t, out, "/processing/output/4/delay_integration/type=")
}

func TestRenderOptions(t *testing.T) {
	runner := actions.NewRunner(actions.Config{})
	schema, ok := runner.Schema(actions.ActionConfigureArray)
	require.True(t, ok)
	params := actions.Params{"primary": "LINA"}
	out := renderOptions(schema.Form(params).VisibleOptions(), params)
	assert.Contains(t, out, "primary_elements")
	assert.Contains(t, out, "phase_for_lina")
	assert.NotContains(t, out, "phase_for_leo")
}
