// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package actions

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Params are submitted option values keyed by option id. Every source
// (JSON-RPC, presets, MIDI bindings) reduces to this form.
type Params map[string]string

// Get returns the trimmed value of key, or "".
func (p Params) Get(key string) string {
	return strings.TrimSpace(p[key])
}

// Merge returns a copy of p overlaid with over.
func (p Params) Merge(over Params) Params {
	out := make(Params, len(p)+len(over))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names sorted.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParamsFromJSON flattens decoded JSON values. Numbers keep their shortest
// decimal form, so 12 stays "12".
func ParamsFromJSON(m map[string]interface{}) Params {
	out := make(Params, len(m))
	for k, v := range m {
		switch x := v.(type) {
		case nil:
		case string:
			out[k] = x
		case bool:
			out[k] = strconv.FormatBool(x)
		case float64:
			out[k] = strconv.FormatFloat(x, 'f', -1, 64)
		default:
			out[k] = fmt.Sprint(x)
		}
	}
	return out
}
