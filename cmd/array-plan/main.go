// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// array-plan previews an action without a device: it prints the output
// plan and the command lines that would be sent.
//
// Usage:
//
//	array-plan [options] key=value ...
//
// Examples:
//
//	# Mixed LINA/LEO array on outputs 5-16
//	array-plan primary=LINA primary_elements=8 start_output=5 \
//	    mixed=true secondary_for_lina=LEO secondary_elements=4
//
//	# Show the form fields visible for a selection
//	array-plan -options primary=LINA mixed=true
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"galaxy-control/pkg/actions"
	"galaxy-control/pkg/speaker"
	"galaxy-control/pkg/state"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	action := flag.String("action", actions.ActionConfigureArray, "Action to preview")
	catalogFile := flag.String("catalog", "", "Speaker catalog YAML (default: built-in)")
	outputs := flag.Int("outputs", 64, "Device output count")
	options := flag.Bool("options", false, "List the visible form options instead of planning")
	asJSON := flag.Bool("json", false, "Print the result as JSON")
	flag.Parse()

	params, err := parseArgs(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(2)
	}

	cat, err := speaker.Load(*catalogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
	runner := actions.NewRunner(actions.Config{Catalog: cat, Store: state.New(*outputs)})

	if *options {
		schema, ok := runner.Schema(*action)
		if !ok {
			fmt.Fprintln(os.Stderr, errorStyle.Render("unknown action "+*action))
			os.Exit(2)
		}
		fmt.Println(renderOptions(schema.Form(params).VisibleOptions(), params))
		return
	}

	res, err := runner.Preview(*action, params)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
	} else {
		printResult(os.Stdout, res)
	}
	if err != nil || res.Status == actions.StatusRejected {
		os.Exit(1)
	}
}

// parseArgs turns key=value arguments into action parameters.
func parseArgs(args []string) (actions.Params, error) {
	p := make(actions.Params, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("argument %q is not key=value", arg)
		}
		p[strings.TrimSpace(k)] = v
	}
	return p, nil
}

func printResult(w io.Writer, res actions.Result) {
	fmt.Fprintln(w, titleStyle.Render(res.String()))
	if res.BeamStatus != "" {
		fmt.Fprintln(w, res.BeamStatus)
	}
	if len(res.Plan) > 0 {
		fmt.Fprintln(w, renderPlan(res))
	}
	for _, line := range res.Lines {
		fmt.Fprintln(w, line)
	}
	for _, s := range res.Skipped {
		fmt.Fprintln(w, errorStyle.Render("skipped: "+s))
	}
}

func renderPlan(res actions.Result) string {
	rows := make([][]string, 0, len(res.Plan))
	for _, a := range res.Plan {
		elements := strconv.Itoa(a.FirstElement)
		if a.LastElement != a.FirstElement {
			elements += "-" + strconv.Itoa(a.LastElement)
		}
		typeID := a.TypeID
		if typeID == "" {
			typeID = "-"
		}
		rows = append(rows, []string{
			strconv.Itoa(a.Output),
			string(a.Role),
			a.Speaker.String(),
			elements,
			typeID,
			a.StartingPointTitle,
			strconv.FormatFloat(a.DelayMs, 'f', -1, 64),
		})
	}
	return newTable("Output", "Role", "Speaker", "Elements", "Type", "Starting point", "Delay ms").
		Rows(rows...).
		Render()
}

func renderOptions(opts []actions.Option, values actions.Params) string {
	rows := make([][]string, 0, len(opts))
	for _, o := range opts {
		choices := make([]string, 0, len(o.Choices))
		for _, c := range o.Choices {
			choices = append(choices, c.Value)
		}
		rows = append(rows, []string{o.ID, string(o.Kind), values.Get(o.ID), o.Default, strings.Join(choices, ", ")})
	}
	return newTable("Option", "Kind", "Value", "Default", "Choices").Rows(rows...).Render()
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}
