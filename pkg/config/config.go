// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package config parses the host's INI-style configuration file with
// access tracking, so options nobody read can be reported at startup.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Config provides access to a configuration file with access tracking.
type Config struct {
	mu       sync.RWMutex
	sections map[string]*Section
	order    []string

	accessed map[string]struct{}
}

// New creates a new empty Config.
func New() *Config {
	return &Config{
		sections: make(map[string]*Section),
		accessed: make(map[string]struct{}),
	}
}

// Load reads a configuration file. [include glob] headers pull in other
// files relative to the including file's directory.
func Load(path string) (*Config, error) {
	c := New()
	if err := c.loadFile(path, make(map[string]bool)); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadString parses configuration text. Include headers are rejected.
func LoadString(data string) (*Config, error) {
	c := New()
	if err := c.parse(strings.NewReader(data), "<string>", nil); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string, visited map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: invalid path %s: %w", path, err)
	}
	if visited[abs] {
		return fmt.Errorf("config: recursive include: %s", path)
	}
	visited[abs] = true
	defer func() { visited[abs] = false }()

	f, err := os.Open(abs)
	if err != nil {
		return fmt.Errorf("config: unable to open %s: %w", path, err)
	}
	defer f.Close()

	dir := filepath.Dir(abs)
	return c.parse(f, path, func(spec string) error {
		pattern := filepath.Join(dir, spec)
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("config: invalid include pattern %q: %w", spec, err)
		}
		if len(matches) == 0 && !strings.ContainsAny(pattern, "*?[") {
			return fmt.Errorf("config: include file does not exist: %s", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if err := c.loadFile(m, visited); err != nil {
				return err
			}
		}
		return nil
	})
}

// parse reads sections and "key: value" / "key = value" options. A nil
// include callback makes [include ...] an error.
func (c *Config) parse(r io.Reader, name string, include func(spec string) error) error {
	var section string
	var options map[string]string
	flush := func() {
		if section != "" {
			c.addSection(section, options)
		}
	}

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			flush()
			header := strings.TrimSpace(line[1 : len(line)-1])
			if header == "" {
				return fmt.Errorf("config: empty section header at line %d in %s", lineNum, name)
			}
			if spec, ok := strings.CutPrefix(header, "include "); ok {
				if include == nil {
					return fmt.Errorf("config: include not supported at line %d in %s", lineNum, name)
				}
				if err := include(strings.TrimSpace(spec)); err != nil {
					return err
				}
				section, options = "", nil
				continue
			}
			section, options = header, make(map[string]string)
			continue
		}

		if section == "" {
			continue
		}
		key, value, ok := splitOption(line)
		if !ok {
			return fmt.Errorf("config: malformed option at line %d in %s: %q", lineNum, name, line)
		}
		options[key] = value
	}
	flush()

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("config: error reading %s: %w", name, err)
	}
	return nil
}

// stripComment trims whitespace and drops '#' or ';' comments.
func stripComment(raw string) string {
	line := strings.TrimSpace(raw)
	if strings.HasPrefix(line, ";") {
		return ""
	}
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	return line
}

// splitOption splits on whichever of ':' or '=' comes first, so values may
// contain either (device paths such as "/processing/output/1/mute='true'").
func splitOption(line string) (string, string, bool) {
	idx := strings.IndexAny(line, ":=")
	if idx <= 0 {
		return "", "", false
	}
	key := strings.TrimSpace(line[:idx])
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(line[idx+1:]), true
}

func (c *Config) addSection(name string, options map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.sections[name]; ok {
		for k, v := range options {
			existing.options[strings.ToLower(k)] = v
		}
		return
	}
	c.sections[name] = newSection(name, options)
	c.order = append(c.order, name)
}

func (c *Config) markAccessed(name string) {
	c.mu.Lock()
	c.accessed[name] = struct{}{}
	c.mu.Unlock()
}

// GetSection returns a Section by name, or an error if not found.
func (c *Config) GetSection(name string) (*Section, error) {
	c.mu.RLock()
	sec, ok := c.sections[name]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrMissingSection(name)
	}
	c.markAccessed(name)
	return sec, nil
}

// GetSectionOptional returns a Section if it exists, or nil if not.
func (c *Config) GetSectionOptional(name string) *Section {
	c.mu.RLock()
	sec, ok := c.sections[name]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	c.markAccessed(name)
	return sec
}

// HasSection checks if a section exists.
func (c *Config) HasSection(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sections[name]
	return ok
}

// GetSectionNames returns all section names in file order.
func (c *Config) GetSectionNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// GetPrefixSections returns, in file order, the sections named
// "<prefix> <name>" (e.g. "binding kick" for prefix "binding"). Each
// returned section is marked accessed.
func (c *Config) GetPrefixSections(prefix string) []*Section {
	c.mu.RLock()
	var names []string
	for _, name := range c.order {
		if strings.HasPrefix(name, prefix+" ") {
			names = append(names, name)
		}
	}
	c.mu.RUnlock()

	out := make([]*Section, 0, len(names))
	for _, name := range names {
		if sec := c.GetSectionOptional(name); sec != nil {
			out = append(out, sec)
		}
	}
	return out
}

// GetUnusedSections returns the sorted names of sections never accessed.
func (c *Config) GetUnusedSections() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for name := range c.sections {
		if _, ok := c.accessed[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// CheckUnused returns an error describing unused sections and options.
func (c *Config) CheckUnused() error {
	var problems []string
	if unused := c.GetUnusedSections(); len(unused) > 0 {
		problems = append(problems, fmt.Sprintf("unused sections %v", unused))
	}

	c.mu.RLock()
	for _, name := range c.order {
		if _, ok := c.accessed[name]; !ok {
			continue
		}
		if opts := c.sections[name].GetUnusedOptions(); len(opts) > 0 {
			problems = append(problems, fmt.Sprintf("[%s]: unused options %v", name, opts))
		}
	}
	c.mu.RUnlock()

	if len(problems) > 0 {
		return NewConfigError("", "", strings.Join(problems, "; "))
	}
	return nil
}
