// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package actions

import (
	"strings"

	"galaxy-control/pkg/config"
	"galaxy-control/pkg/speaker"
)

// RuleOp is the operator of a visibility rule node.
type RuleOp string

const (
	// OpField is true when the named field holds a truthy value.
	OpField RuleOp = "field"

	// OpSelected is true when the named field holds a choice other than
	// "" or "none".
	OpSelected RuleOp = "selected"

	// OpIs compares the named field with Value. Speaker fields compare by
	// canonical key.
	OpIs RuleOp = "is"

	// OpHasSecondary is true when the selected primary has at least one
	// compatible secondary model.
	OpHasSecondary RuleOp = "has_secondary"

	OpAll RuleOp = "all"
	OpAny RuleOp = "any"
	OpNot RuleOp = "not"
)

// Rule is a declarative visibility expression. Rules are plain data so
// they travel to API clients unchanged.
type Rule struct {
	Op    RuleOp `json:"op"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
	Rules []Rule `json:"rules,omitempty"`
}

func Field(name string) Rule { return Rule{Op: OpField, Name: name} }

func Selected(name string) Rule { return Rule{Op: OpSelected, Name: name} }

func Is(name, value string) Rule { return Rule{Op: OpIs, Name: name, Value: value} }

func HasSecondary() Rule { return Rule{Op: OpHasSecondary} }

func All(rules ...Rule) Rule { return Rule{Op: OpAll, Rules: rules} }

func Any(rules ...Rule) Rule { return Rule{Op: OpAny, Rules: rules} }

func Not(rule Rule) Rule { return Rule{Op: OpNot, Rules: []Rule{rule}} }

// Always is the zero rule.
var Always = Rule{}

// Form is a set of submitted option values evaluated against a schema.
type Form struct {
	schema *Schema
	values Params
}

// Eval runs the rule interpreter. The zero Rule is always true; unknown
// operators are false.
func (f Form) Eval(r Rule) bool {
	switch r.Op {
	case "":
		return true
	case OpField:
		v, _ := config.ParseBool(f.values.Get(r.Name))
		return v
	case OpSelected:
		v := strings.TrimSpace(f.values.Get(r.Name))
		return v != "" && !strings.EqualFold(v, "none")
	case OpIs:
		v := f.values.Get(r.Name)
		if f.schema != nil && f.schema.isSpeakerField(r.Name) {
			return speaker.Canonical(v) == speaker.Canonical(r.Value)
		}
		return strings.EqualFold(strings.TrimSpace(v), r.Value)
	case OpHasSecondary:
		if f.schema == nil {
			return false
		}
		_, ok := f.schema.SecondaryOption(f.values.Get(OptPrimary))
		return ok
	case OpAll:
		for _, sub := range r.Rules {
			if !f.Eval(sub) {
				return false
			}
		}
		return true
	case OpAny:
		for _, sub := range r.Rules {
			if f.Eval(sub) {
				return true
			}
		}
		return false
	case OpNot:
		return len(r.Rules) == 1 && !f.Eval(r.Rules[0])
	}
	return false
}

// Visible reports whether an option is shown for the current values.
func (f Form) Visible(id string) bool {
	if f.schema == nil {
		return false
	}
	opt, ok := f.schema.Option(id)
	if !ok {
		return false
	}
	return f.Eval(opt.Visible)
}

// VisibleOptions lists the options shown for the current values, in
// schema order.
func (f Form) VisibleOptions() []Option {
	if f.schema == nil {
		return nil
	}
	var out []Option
	for _, opt := range f.schema.Options {
		if f.Eval(opt.Visible) {
			out = append(out, opt)
		}
	}
	return out
}
