// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package speaker holds the loudspeaker catalog: model keys, phase
// variants, starting-point presets and the delay compensation tables used
// when two models share one array.
package speaker

import (
	"regexp"
	"strings"
)

// Key is a canonical speaker model identifier such as "LINA" or "1100_LFC".
type Key string

var (
	separatorRun = regexp.MustCompile(`[\s\-]+`)
	nonWord      = regexp.MustCompile(`[^A-Z0-9_]`)
	underscores  = regexp.MustCompile(`_+`)

	aliases = map[Key]Key{
		"LEO_M": "LEO",
		"LEOM":  "LEO",
	}
)

// Canonical normalizes a model name. It never fails; input without any
// word characters yields "".
func Canonical(s string) Key {
	k := strings.ToUpper(s)
	k = separatorRun.ReplaceAllString(k, "_")
	k = nonWord.ReplaceAllString(k, "")
	k = underscores.ReplaceAllString(k, "_")
	k = strings.Trim(k, "_")
	if a, ok := aliases[Key(k)]; ok {
		return a
	}
	return Key(k)
}

// Compact is the canonical key with every underscore removed. Starting
// point tables are keyed this way.
func Compact(s string) string {
	return strings.ReplaceAll(string(Canonical(s)), "_", "")
}

func (k Key) Compact() string {
	return Compact(string(k))
}

func (k Key) String() string {
	return string(k)
}
