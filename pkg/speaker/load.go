// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package speaker

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"galaxy-control/pkg/errors"
)

//go:embed catalog.yaml
var builtinYAML []byte

var (
	builtinOnce sync.Once
	builtin     *Catalog
)

// Builtin returns the catalog shipped with the binary.
func Builtin() *Catalog {
	builtinOnce.Do(func() {
		c, err := Parse(builtinYAML)
		if err != nil {
			panic("speaker: invalid built-in catalog: " + err.Error())
		}
		builtin = c
	})
	return builtin
}

// Parse decodes a YAML catalog. Unknown fields are rejected.
func Parse(data []byte) (*Catalog, error) {
	var t Tables
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.ErrCatalog, "invalid catalog YAML")
	}
	return NewCatalog(t)
}

// LoadFile reads a YAML catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCatalog, "unable to read catalog").SetSection(path)
	}
	c, err := Parse(data)
	if err != nil {
		if he, ok := err.(*errors.HostError); ok {
			he.SetSection(path)
		}
		return nil, err
	}
	return c, nil
}

// Load returns the catalog at path, or the built-in one when path is "".
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Builtin(), nil
	}
	return LoadFile(path)
}

// Marshal renders tables back to YAML, e.g. to seed a custom catalog file.
func Marshal(t Tables) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Tables returns the catalog's content in the shape NewCatalog accepts.
func (c *Catalog) Tables() Tables {
	t := Tables{
		Speakers:       c.Entries(),
		StartingPoints: make(map[string][]StartingPoint, len(c.startingPoints)),
		Legacy:         make(map[string]float64, len(c.legacy)),
	}
	for k, v := range c.startingPoints {
		t.StartingPoints[k] = append([]StartingPoint(nil), v...)
	}
	for _, cp := range c.compat {
		t.Compatibility = append(t.Compatibility, cp)
	}
	sort.Slice(t.Compatibility, func(i, j int) bool {
		return t.Compatibility[i].Primary < t.Compatibility[j].Primary
	})
	for k, v := range c.legacy {
		t.Legacy[string(k)] = v
	}
	return t
}
