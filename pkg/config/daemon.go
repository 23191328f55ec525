// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

import (
	"fmt"
	"time"
)

// DeviceConfig is the [device] section: where the processor listens.
type DeviceConfig struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	Keepalive      time.Duration
	// OutputCount seeds the capacity until the device reports its own.
	OutputCount int
}

// Address returns host:port.
func (d DeviceConfig) Address() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

type CatalogConfig struct {
	// Path of a YAML catalog; empty selects the built-in one.
	Path string
}

type APIConfig struct {
	Listen string
}

type MetricsConfig struct {
	Listen   string
	Username string
	Password string
}

// LogConfig is the [log] section.
type LogConfig struct {
	Level      string
	Format     string
	Caller     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type SurfaceConfig struct {
	// MIDIIn is matched as a substring against input port names.
	MIDIIn string
}

// Binding maps one MIDI note or controller to an action invocation.
// Exactly one of Note and Control is >= 0.
type Binding struct {
	Name    string
	Channel int
	Note    int
	Control int
	Action  string
	Preset  string
}

// Preset is a named parameter set for an action.
type Preset struct {
	Name   string
	Params map[string]string
}

// DaemonConfig is the typed view of galaxy-control's configuration file.
type DaemonConfig struct {
	Device   DeviceConfig
	Catalog  CatalogConfig
	API      APIConfig
	Metrics  MetricsConfig
	Log      LogConfig
	Surface  SurfaceConfig
	Bindings []Binding
	Presets  map[string]Preset
}

// ParseDaemonConfig loads path and builds a DaemonConfig.
func ParseDaemonConfig(path string) (*DaemonConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return BuildDaemonConfig(cfg)
}

// BuildDaemonConfig reads every known section from cfg. Unknown sections or
// options are reported as an error so typos do not pass silently.
func BuildDaemonConfig(cfg *Config) (*DaemonConfig, error) {
	dc := &DaemonConfig{Presets: make(map[string]Preset)}

	steps := []func(*Config, *DaemonConfig) error{
		parseDevice,
		parseCatalog,
		parseAPI,
		parseMetrics,
		parseLog,
		parseSurface,
		parsePresets,
		parseBindings,
	}
	for _, step := range steps {
		if err := step(cfg, dc); err != nil {
			return nil, err
		}
	}
	if err := cfg.CheckUnused(); err != nil {
		return nil, err
	}
	return dc, nil
}

func parseDevice(cfg *Config, dc *DaemonConfig) error {
	sec, err := cfg.GetSection("device")
	if err != nil {
		return err
	}
	d := &dc.Device
	if d.Host, err = sec.Get("host"); err != nil {
		return err
	}
	if d.Port, err = sec.GetIntRange("port", 1, 65535, 25003); err != nil {
		return err
	}
	if d.ConnectTimeout, err = sec.GetDuration("connect_timeout", 5*time.Second); err != nil {
		return err
	}
	if d.WriteTimeout, err = sec.GetDuration("write_timeout", 2*time.Second); err != nil {
		return err
	}
	if d.Keepalive, err = sec.GetDuration("keepalive", 30*time.Second); err != nil {
		return err
	}
	d.OutputCount, err = sec.GetIntRange("output_count", 0, 1024, 0)
	return err
}

func parseCatalog(cfg *Config, dc *DaemonConfig) error {
	sec := cfg.GetSectionOptional("catalog")
	if sec == nil {
		return nil
	}
	var err error
	dc.Catalog.Path, err = sec.Get("path", "")
	return err
}

func parseAPI(cfg *Config, dc *DaemonConfig) error {
	dc.API.Listen = ":8710"
	sec := cfg.GetSectionOptional("api")
	if sec == nil {
		return nil
	}
	var err error
	dc.API.Listen, err = sec.Get("listen", dc.API.Listen)
	return err
}

func parseMetrics(cfg *Config, dc *DaemonConfig) error {
	sec := cfg.GetSectionOptional("metrics")
	if sec == nil {
		return nil
	}
	m := &dc.Metrics
	var err error
	if m.Listen, err = sec.Get("listen", ":9110"); err != nil {
		return err
	}
	if m.Username, err = sec.Get("username", ""); err != nil {
		return err
	}
	if m.Password, err = sec.Get("password", ""); err != nil {
		return err
	}
	if (m.Username == "") != (m.Password == "") {
		return NewConfigError("metrics", "password", "username and password must be set together")
	}
	return nil
}

func parseLog(cfg *Config, dc *DaemonConfig) error {
	l := &dc.Log
	l.Level, l.Format, l.MaxSizeMB, l.MaxBackups = "info", "text", 10, 5
	sec := cfg.GetSectionOptional("log")
	if sec == nil {
		return nil
	}
	var err error
	if l.Level, err = sec.GetChoice("level", []string{"debug", "info", "warn", "error"}, l.Level); err != nil {
		return err
	}
	if l.Format, err = sec.GetChoice("format", []string{"text", "json"}, l.Format); err != nil {
		return err
	}
	if l.Caller, err = sec.GetBool("caller", false); err != nil {
		return err
	}
	if l.File, err = sec.Get("file", ""); err != nil {
		return err
	}
	if l.MaxSizeMB, err = sec.GetIntRange("max_size_mb", 1, 1024, l.MaxSizeMB); err != nil {
		return err
	}
	l.MaxBackups, err = sec.GetIntRange("max_backups", 0, 100, l.MaxBackups)
	return err
}

func parseSurface(cfg *Config, dc *DaemonConfig) error {
	sec := cfg.GetSectionOptional("surface")
	if sec == nil {
		return nil
	}
	var err error
	dc.Surface.MIDIIn, err = sec.Get("midi_in")
	return err
}

func parsePresets(cfg *Config, dc *DaemonConfig) error {
	for _, sec := range cfg.GetPrefixSections("preset") {
		name := sec.Suffix()
		if name == "" {
			return NewConfigError(sec.GetName(), "", "preset needs a name")
		}
		dc.Presets[name] = Preset{Name: name, Params: sec.RawOptions()}
	}
	return nil
}

func parseBindings(cfg *Config, dc *DaemonConfig) error {
	for _, sec := range cfg.GetPrefixSections("binding") {
		b := Binding{Name: sec.Suffix(), Note: -1, Control: -1}
		var err error
		if b.Channel, err = sec.GetIntRange("channel", 1, 16, 1); err != nil {
			return err
		}
		if sec.HasOption("note") {
			if b.Note, err = sec.GetIntRange("note", 0, 127); err != nil {
				return err
			}
		}
		if sec.HasOption("control") {
			if b.Control, err = sec.GetIntRange("control", 0, 127); err != nil {
				return err
			}
		}
		if (b.Note < 0) == (b.Control < 0) {
			return NewConfigError(sec.GetName(), "note", "exactly one of note or control must be set")
		}
		if b.Action, err = sec.GetChoice("action", []string{"configure_array", "beam_control"}); err != nil {
			return err
		}
		if b.Preset, err = sec.Get("preset"); err != nil {
			return err
		}
		if _, ok := dc.Presets[b.Preset]; !ok {
			return NewConfigError(sec.GetName(), "preset", fmt.Sprintf("unknown preset '%s'", b.Preset))
		}
		dc.Bindings = append(dc.Bindings, b)
	}
	if len(dc.Bindings) > 0 && dc.Surface.MIDIIn == "" {
		return NewConfigError("surface", "midi_in", "bindings require a MIDI input")
	}
	return nil
}
