// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package actions

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"galaxy-control/pkg/array"
	"galaxy-control/pkg/beam"
	"galaxy-control/pkg/speaker"
)

// Action names.
const (
	ActionConfigureArray = "configure_array"
	ActionBeamControl    = "beam_control"
)

// Option ids shared by both actions. Per-model options are built from the
// catalog, see PhaseOption, StartingPointOption and SecondaryOption.
const (
	OptPrimary                = "primary"
	OptPrimaryElements        = "primary_elements"
	OptElementsPerOutput      = "elements_per_output"
	OptStartOutput            = "start_output"
	OptMixed                  = "mixed"
	OptSecondaryElements      = "secondary_elements"
	OptLinkGroup              = "link_group"
	OptLinkGroupEnabled       = "link_group_enabled"
	OptFactoryReset           = "factory_reset"
	OptBeamControl            = "beam_control"
	OptBeamArray              = "lmbc_array"
	OptBeamAngle              = "beam_angle"
	OptControlType            = "control_type"
	OptStartingElement        = "starting_element"
	OptTotalElements          = "total_elements"
	OptProduct                = "product"
	OptStartingOutput         = "starting_output"
	OptBypass                 = "bypass"
	optPhasePrefix            = "phase_for_"
	optStartingPointPrefix    = "starting_point_for_"
	optSecondaryForPrefix     = "secondary_for_"
	noneChoice                = "none"
	defaultElementsUpperBound = 64
)

// OptionKind tells a client how to render an option.
type OptionKind string

const (
	KindChoice OptionKind = "choice"
	KindInt    OptionKind = "int"
	KindBool   OptionKind = "bool"
)

// Choice is one selectable value.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Option describes one form field.
type Option struct {
	ID      string     `json:"id"`
	Label   string     `json:"label"`
	Kind    OptionKind `json:"kind"`
	Choices []Choice   `json:"choices,omitempty"`
	Default string     `json:"default,omitempty"`
	Min     int        `json:"min,omitempty"`
	Max     int        `json:"max,omitempty"`
	Visible Rule       `json:"visible"`
}

func (o Option) hasChoice(v string) bool {
	for _, c := range o.Choices {
		if strings.EqualFold(c.Value, v) {
			return true
		}
	}
	return false
}

// Schema is the option list of one action plus the per-model lookups that
// replace string-built option ids at request time.
type Schema struct {
	Action  string   `json:"action"`
	Options []Option `json:"options"`

	index         map[string]int
	phaseFor      map[speaker.Key]string
	startFor      map[speaker.Key]string
	secondaryFor  map[speaker.Key]string
	speakerFields map[string]bool
}

func newSchema(action string) *Schema {
	return &Schema{
		Action:        action,
		index:         make(map[string]int),
		phaseFor:      make(map[speaker.Key]string),
		startFor:      make(map[speaker.Key]string),
		secondaryFor:  make(map[speaker.Key]string),
		speakerFields: make(map[string]bool),
	}
}

func (s *Schema) add(o Option) {
	s.index[o.ID] = len(s.Options)
	s.Options = append(s.Options, o)
}

// Option looks an option up by id.
func (s *Schema) Option(id string) (Option, bool) {
	i, ok := s.index[id]
	if !ok {
		return Option{}, false
	}
	return s.Options[i], true
}

// Form binds submitted values to the schema for rule evaluation.
func (s *Schema) Form(values Params) Form {
	return Form{schema: s, values: values}
}

// SecondaryOption returns the id of the secondary-model option declared
// for a primary. ok is false when the primary has no compatible secondary.
func (s *Schema) SecondaryOption(primary string) (string, bool) {
	id, ok := s.secondaryFor[speaker.Canonical(primary)]
	return id, ok
}

// PhaseOption returns the id of the phase option for a model.
func (s *Schema) PhaseOption(model string) (string, bool) {
	id, ok := s.phaseFor[speaker.Canonical(model)]
	return id, ok
}

// StartingPointOption returns the id of the starting-point option for a
// model.
func (s *Schema) StartingPointOption(model string) (string, bool) {
	id, ok := s.startFor[speaker.Canonical(model)]
	return id, ok
}

func (s *Schema) isSpeakerField(id string) bool {
	return s.speakerFields[id]
}

func modelOptionID(prefix string, k speaker.Key) string {
	return prefix + strings.ToLower(k.Compact())
}

// MixedEnabled mirrors the planner's mixed-array guard: the mixed flag is
// set, a primary is chosen and that primary has a compatible secondary.
var MixedEnabled = All(Field(OptMixed), Selected(OptPrimary), HasSecondary())

func speakerChoices(entries []speaker.Entry) []Choice {
	out := make([]Choice, len(entries))
	for i, e := range entries {
		out[i] = Choice{Value: string(e.Key), Label: e.Label}
	}
	return out
}

func intRange(lo, hi int) []Choice {
	out := make([]Choice, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		v := strconv.Itoa(i)
		out = append(out, Choice{Value: v, Label: v})
	}
	return out
}

// NewSchema builds the configure_array option list from a catalog.
func NewSchema(cat *speaker.Catalog) *Schema {
	s := newSchema(ActionConfigureArray)
	entries := cat.Entries()

	s.add(Option{ID: OptPrimary, Label: "Primary speaker", Kind: KindChoice,
		Choices: append([]Choice{{Value: noneChoice, Label: "None"}}, speakerChoices(entries)...),
		Default: noneChoice})
	s.speakerFields[OptPrimary] = true
	s.add(Option{ID: OptPrimaryElements, Label: "Primary elements", Kind: KindInt,
		Default: "1", Min: 1, Max: defaultElementsUpperBound, Visible: Selected(OptPrimary)})
	s.add(Option{ID: OptElementsPerOutput, Label: "Elements per output", Kind: KindChoice,
		Choices: intRange(1, 2), Default: "1", Visible: Selected(OptPrimary)})
	s.add(Option{ID: OptStartOutput, Label: "Starting output", Kind: KindInt,
		Default: "1", Min: 1, Max: 1024, Visible: Selected(OptPrimary)})
	s.add(Option{ID: OptMixed, Label: "Mixed array", Kind: KindBool,
		Default: "false", Visible: All(Selected(OptPrimary), HasSecondary())})

	// secondary_for_<primary>: one option per primary that can be mixed
	for _, e := range entries {
		secs := cat.CompatibleSecondaries(e.Key)
		if len(secs) == 0 {
			continue
		}
		id := modelOptionID(optSecondaryForPrefix, e.Key)
		choices := make([]Choice, len(secs))
		for i, k := range secs {
			label := string(k)
			if se, ok := cat.Entry(string(k)); ok {
				label = se.Label
			}
			choices[i] = Choice{Value: string(k), Label: label}
		}
		s.add(Option{ID: id, Label: "Secondary speaker", Kind: KindChoice, Choices: choices,
			Default: choices[0].Value, Visible: All(MixedEnabled, Is(OptPrimary, string(e.Key)))})
		s.secondaryFor[e.Key] = id
		s.speakerFields[id] = true
	}
	s.add(Option{ID: OptSecondaryElements, Label: "Secondary elements", Kind: KindInt,
		Default: "1", Min: 1, Max: defaultElementsUpperBound, Visible: MixedEnabled})

	// Per-model phase and starting point options, visible when the model
	// is the primary or the selected secondary.
	for _, e := range entries {
		shown := s.modelSelected(e.Key)
		if len(e.Phases) > 0 {
			id := modelOptionID(optPhasePrefix, e.Key)
			choices := make([]Choice, len(e.Phases))
			for i, p := range e.Phases {
				choices[i] = Choice{Value: p.ID, Label: p.Label}
			}
			s.add(Option{ID: id, Label: e.Label + " phase", Kind: KindChoice,
				Choices: choices, Default: choices[0].Value, Visible: shown})
			s.phaseFor[e.Key] = id
		}
		if sps := cat.StartingPoints(string(e.Key)); len(sps) > 0 {
			id := modelOptionID(optStartingPointPrefix, e.Key)
			choices := []Choice{{Value: noneChoice, Label: "None"}}
			for _, sp := range sps {
				choices = append(choices, Choice{Value: sp.ID, Label: sp.Title})
			}
			s.add(Option{ID: id, Label: e.Label + " starting point", Kind: KindChoice,
				Choices: choices, Default: noneChoice, Visible: shown})
			s.startFor[e.Key] = id
		}
	}

	s.add(Option{ID: OptLinkGroup, Label: "Link group", Kind: KindChoice,
		Choices: append([]Choice{{Value: noneChoice, Label: "None"}}, intRange(1, array.MaxLinkGroup)...),
		Default: noneChoice, Visible: Selected(OptPrimary)})
	s.add(Option{ID: OptLinkGroupEnabled, Label: "Link group enabled", Kind: KindBool,
		Default: "true", Visible: All(Selected(OptPrimary), Selected(OptLinkGroup))})
	s.add(Option{ID: OptFactoryReset, Label: "Factory reset outputs", Kind: KindBool,
		Default: "false", Visible: Selected(OptPrimary)})

	s.add(Option{ID: OptBeamControl, Label: "Configure LMBC", Kind: KindBool,
		Default: "false", Visible: Selected(OptPrimary)})
	beamShown := All(Selected(OptPrimary), Field(OptBeamControl))
	s.addBeamShape(beamShown)
	return s
}

// modelSelected is true when k is the primary, or the secondary chosen for
// the current primary in an enabled mixed array.
func (s *Schema) modelSelected(k speaker.Key) Rule {
	alts := []Rule{Is(OptPrimary, string(k))}
	for _, p := range sortedKeys(s.secondaryFor) {
		alts = append(alts, All(MixedEnabled, Is(OptPrimary, string(p)), Is(s.secondaryFor[p], string(k))))
	}
	return Any(alts...)
}

func (s *Schema) addBeamShape(shown Rule) {
	s.add(Option{ID: OptBeamArray, Label: "LMBC array", Kind: KindChoice,
		Choices: intRange(1, beam.MaxArrays), Default: "1", Visible: shown})
	s.add(Option{ID: OptBeamAngle, Label: "Beam angle", Kind: KindInt,
		Default: "45", Min: beam.MinAngle, Max: beam.MaxAngle, Visible: shown})
	s.add(Option{ID: OptControlType, Label: "Control type", Kind: KindChoice,
		Choices: []Choice{{Value: beam.Spread.String(), Label: "Spread"}, {Value: beam.SteerUp.String(), Label: "Steer up"}},
		Default: beam.Spread.String(), Visible: shown})
	s.add(Option{ID: OptStartingElement, Label: "Starting element", Kind: KindInt,
		Default: "1", Min: beam.MinStartingElement, Max: beam.MaxStartingElement, Visible: shown})
}

// NewBeamSchema builds the standalone beam_control option list.
func NewBeamSchema(cat *speaker.Catalog) *Schema {
	s := newSchema(ActionBeamControl)
	s.addBeamShape(Always)
	s.add(Option{ID: OptProduct, Label: "Product", Kind: KindChoice,
		Choices: speakerChoices(cat.Entries()), Visible: Always})
	s.speakerFields[OptProduct] = true
	s.add(Option{ID: OptElementsPerOutput, Label: "Elements per output", Kind: KindChoice,
		Choices: intRange(1, 2), Default: "1"})
	s.add(Option{ID: OptTotalElements, Label: "Total elements", Kind: KindInt,
		Default: "1", Min: 1, Max: defaultElementsUpperBound})
	s.add(Option{ID: OptStartingOutput, Label: "Starting output", Kind: KindInt,
		Default: "1", Min: 1, Max: 1024})
	s.add(Option{ID: OptBypass, Label: "Bypass", Kind: KindBool, Default: "false"})
	return s
}

func sortedKeys(m map[speaker.Key]string) []speaker.Key {
	keys := make([]speaker.Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (s *Schema) String() string {
	return fmt.Sprintf("%s (%d options)", s.Action, len(s.Options))
}
