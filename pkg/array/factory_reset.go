// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package array

import (
	"fmt"
)

// MatrixInputs is the number of matrix inputs feeding each output.
const MatrixInputs = 12

var eqBandFrequencies = []string{"32", "63", "125", "250", "500", "1000", "2000", "4000", "8000", "16000"}

var uShapingFrequencies = []string{"80", "250", "1000", "4000", "12000"}

// factoryReset is built once; FactoryResetTemplates hands out copies.
var factoryReset = buildFactoryReset()

func buildFactoryReset() []string {
	var t []string
	add := func(format string, args ...interface{}) {
		t = append(t, "/processing/output/{ch}/"+fmt.Sprintf(format, args...))
	}

	add("gain='0'")
	add("mute='false'")
	add("polarity_reversal='false'")
	add("delay='0'")
	add("delay_integration/delay_samples=0")

	add("eq/bypass='false'")
	for i, freq := range eqBandFrequencies {
		band := i + 1
		add("eq/%d/type='parametric'", band)
		add("eq/%d/frequency='%s'", band, freq)
		add("eq/%d/gain='0'", band)
		add("eq/%d/bandwidth='1'", band)
		add("eq/%d/bypass='false'", band)
	}

	add("u_shaping/bypass='false'")
	for i, freq := range uShapingFrequencies {
		band := i + 1
		add("u_shaping/%d/frequency='%s'", band, freq)
		add("u_shaping/%d/gain='0'", band)
		add("u_shaping/%d/slope='1'", band)
		add("u_shaping/%d/bypass='false'", band)
	}

	for band := 1; band <= 4; band++ {
		add("all_pass/%d/frequency='1000'", band)
		add("all_pass/%d/q='1'", band)
		add("all_pass/%d/bypass='true'", band)
	}

	for _, f := range []struct{ name, freq string }{{"high_pass", "20"}, {"low_pass", "20000"}} {
		add("%s/type='butterworth'", f.name)
		add("%s/frequency='%s'", f.name, f.freq)
		add("%s/slope='24'", f.name)
		add("%s/bypass='true'", f.name)
	}

	add("atmospheric/enable='false'")
	add("atmospheric/distance='0'")
	add("atmospheric/temperature='20'")
	add("atmospheric/humidity='50'")

	for in := 1; in <= MatrixInputs; in++ {
		t = append(t,
			fmt.Sprintf("/processing/matrix/%d/{ch}/gain='0'", in),
			fmt.Sprintf("/processing/matrix/%d/{ch}/delay='0'", in),
			fmt.Sprintf("/processing/matrix/%d/{ch}/mute='true'", in),
		)
	}
	return t
}

// FactoryResetTemplates returns the command templates that restore one
// output to factory defaults. Every template uses the "{ch}" placeholder.
func FactoryResetTemplates() []string {
	return append([]string(nil), factoryReset...)
}
