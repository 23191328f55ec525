// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package speaker

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"galaxy-control/pkg/errors"
)

// Phase is one phase-response variant of a model. TypeID is the opaque
// value written to an output's delay integration type; "" means none.
type Phase struct {
	ID     string `yaml:"id" json:"id"`
	Label  string `yaml:"label" json:"label"`
	TypeID string `yaml:"type_id" json:"type_id"`
}

// Entry describes one model. Phases[0], when present, is the default.
type Entry struct {
	Key    Key     `yaml:"key" json:"key"`
	Label  string  `yaml:"label" json:"label"`
	Phases []Phase `yaml:"phases" json:"phases"`
}

// DefaultPhase returns the first phase, if any.
func (e Entry) DefaultPhase() (Phase, bool) {
	if len(e.Phases) == 0 {
		return Phase{}, false
	}
	return e.Phases[0], true
}

// StartingPoint is a named calibration preset. Control points are command
// templates with a "{}" or "{ch}" placeholder for the output number.
type StartingPoint struct {
	ID            string   `yaml:"id" json:"id"`
	Title         string   `yaml:"title" json:"title"`
	ControlPoints []string `yaml:"control_points" json:"control_points"`
}

// Compatibility is a supported primary/secondary pairing with the delay
// each side needs so the two models sum coherently.
type Compatibility struct {
	Primary          Key     `yaml:"primary" json:"primary"`
	Secondary        Key     `yaml:"secondary" json:"secondary"`
	PrimaryDelayMs   float64 `yaml:"primary_delay_ms" json:"primary_delay_ms"`
	SecondaryDelayMs float64 `yaml:"secondary_delay_ms" json:"secondary_delay_ms"`
}

// CompatTable holds at most one pairing per primary.
type CompatTable map[Key]Compatibility

// LegacyTable is the older single-sided compensation table, keyed by the
// secondary model only.
type LegacyTable map[Key]float64

type phaseKey struct {
	speaker Key
	phase   string
}

// Catalog is an immutable, load-once lookup structure. Build one with
// NewCatalog, Load or Builtin and pass it explicitly.
type Catalog struct {
	entries        map[Key]Entry
	order          []Key
	phaseIndex     map[phaseKey]Phase
	startingPoints map[string][]StartingPoint
	compat         CompatTable
	legacy         LegacyTable
}

// Tables is the raw content a catalog is built from.
type Tables struct {
	Speakers       []Entry                    `yaml:"speakers"`
	StartingPoints map[string][]StartingPoint `yaml:"starting_points"`
	Compatibility  []Compatibility            `yaml:"compatibility"`
	Legacy         map[string]float64         `yaml:"legacy_compensation"`
}

// NewCatalog validates t and builds the lookup indexes. Keys are
// canonicalized on the way in, so input may use any spelling.
func NewCatalog(t Tables) (*Catalog, error) {
	c := &Catalog{
		entries:        make(map[Key]Entry, len(t.Speakers)),
		phaseIndex:     make(map[phaseKey]Phase),
		startingPoints: make(map[string][]StartingPoint, len(t.StartingPoints)),
		compat:         make(CompatTable, len(t.Compatibility)),
		legacy:         make(LegacyTable, len(t.Legacy)),
	}

	for _, e := range t.Speakers {
		key := Canonical(string(e.Key))
		if key == "" {
			return nil, catalogError("speaker with empty key (%q)", e.Key)
		}
		if _, dup := c.entries[key]; dup {
			return nil, catalogError("duplicate speaker %s", key)
		}
		e.Key = key
		if e.Label == "" {
			e.Label = string(key)
		}
		e.Phases = append([]Phase(nil), e.Phases...)
		for _, p := range e.Phases {
			if p.ID == "" {
				return nil, catalogError("speaker %s has a phase without id", key)
			}
			pk := phaseKey{key, p.ID}
			if _, dup := c.phaseIndex[pk]; dup {
				return nil, catalogError("speaker %s has duplicate phase %q", key, p.ID)
			}
			c.phaseIndex[pk] = p
		}
		c.entries[key] = e
		c.order = append(c.order, key)
	}

	// Several spellings may share a compact key; ids must stay unique across
	// all of them and names are visited in sorted order.
	seen := make(map[string]map[string]string)
	for _, name := range sortedNames(t.StartingPoints) {
		compact := Compact(name)
		if compact == "" {
			return nil, catalogError("starting points with empty key (%q)", name)
		}
		ids := seen[compact]
		if ids == nil {
			ids = make(map[string]string)
			seen[compact] = ids
		}
		for _, sp := range t.StartingPoints[name] {
			if sp.ID == "" {
				return nil, catalogError("starting point for %s without id", compact)
			}
			if prev, dup := ids[sp.ID]; dup {
				return nil, catalogError("duplicate starting point %q for %s (%q and %q)", sp.ID, compact, prev, name)
			}
			ids[sp.ID] = name
			sp.ControlPoints = append([]string(nil), sp.ControlPoints...)
			c.startingPoints[compact] = append(c.startingPoints[compact], sp)
		}
	}

	for _, cp := range t.Compatibility {
		cp.Primary = Canonical(string(cp.Primary))
		cp.Secondary = Canonical(string(cp.Secondary))
		if cp.Primary == "" || cp.Secondary == "" {
			return nil, catalogError("compatibility entry with empty model (%q/%q)", cp.Primary, cp.Secondary)
		}
		if !validDelay(cp.PrimaryDelayMs) || !validDelay(cp.SecondaryDelayMs) {
			return nil, catalogError("compatibility %s/%s: delays must be finite and >= 0", cp.Primary, cp.Secondary)
		}
		if _, dup := c.compat[cp.Primary]; dup {
			return nil, catalogError("more than one compatibility entry for primary %s", cp.Primary)
		}
		c.compat[cp.Primary] = cp
	}

	legacyFrom := make(map[Key]string, len(t.Legacy))
	for _, name := range sortedNames(t.Legacy) {
		key := Canonical(name)
		if key == "" {
			continue
		}
		ms := t.Legacy[name]
		if !validDelay(ms) {
			return nil, catalogError("legacy compensation for %s must be finite and >= 0", key)
		}
		if prev, dup := legacyFrom[key]; dup {
			return nil, catalogError("legacy compensation for %s given twice (%q and %q)", key, prev, name)
		}
		legacyFrom[key] = name
		c.legacy[key] = ms
	}
	return c, nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validDelay(ms float64) bool {
	return ms >= 0 && !math.IsInf(ms, 0) && !math.IsNaN(ms)
}

func catalogError(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrCatalog, format, args...)
}

// Entry returns the catalog entry for any spelling of a model name.
func (c *Catalog) Entry(name string) (Entry, bool) {
	e, ok := c.entries[Canonical(name)]
	return e, ok
}

// Keys returns the model keys in catalog order.
func (c *Catalog) Keys() []Key {
	return append([]Key(nil), c.order...)
}

// Entries returns the entries in catalog order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.entries[k])
	}
	return out
}

// IndexedPhase is the exact (key, phase id) index lookup.
func (c *Catalog) IndexedPhase(key Key, phaseID string) (Phase, bool) {
	p, ok := c.phaseIndex[phaseKey{key, phaseID}]
	return p, ok
}

// StartingPoints returns the presets for a model, looked up by its
// compact form.
func (c *Catalog) StartingPoints(name string) []StartingPoint {
	return c.startingPoints[Compact(name)]
}

// StartingPoint finds one preset by id.
func (c *Catalog) StartingPoint(name, id string) (StartingPoint, bool) {
	for _, sp := range c.StartingPoints(name) {
		if sp.ID == id {
			return sp, true
		}
	}
	return StartingPoint{}, false
}

// Compat returns the compatibility table. Callers must not modify it.
func (c *Catalog) Compat() CompatTable {
	return c.compat
}

// Legacy returns the legacy compensation table. Callers must not modify it.
func (c *Catalog) Legacy() LegacyTable {
	return c.legacy
}

// CompatibleSecondaries returns the secondary models a primary may be
// mixed with, sorted.
func (c *Catalog) CompatibleSecondaries(primary Key) []Key {
	seen := make(map[Key]bool)
	var out []Key
	add := func(k Key) {
		if k != primary && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	if cp, ok := c.compat[primary]; ok {
		add(cp.Secondary)
	}
	for k := range c.legacy {
		add(k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Describe renders a short human-readable summary of a model.
func (c *Catalog) Describe(name string) string {
	e, ok := c.Entry(name)
	if !ok {
		return fmt.Sprintf("%s (unknown)", Canonical(name))
	}
	ids := make([]string, len(e.Phases))
	for i, p := range e.Phases {
		ids[i] = p.ID
	}
	return fmt.Sprintf("%s [%s] phases=%s starting_points=%d",
		e.Key, e.Label, strings.Join(ids, ","), len(c.StartingPoints(name)))
}
