// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package protocol implements the processor's text control protocol: one
// "<path>=<value>" set command per line, paths slash-delimited.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is wrapped by every Parse failure.
var ErrMalformed = errors.New("protocol: malformed command")

// Command is a single path-based set command. Value is kept in wire form,
// so quoted values carry their quotes.
type Command struct {
	Path  string
	Value string
}

// Set builds a command from a path and an already rendered value.
func Set(path, value string) Command {
	return Command{Path: path, Value: value}
}

// Setf builds a command whose path is a format string.
func Setf(value string, format string, args ...interface{}) Command {
	return Command{Path: fmt.Sprintf(format, args...), Value: value}
}

// Line returns the wire form without the trailing newline.
func (c Command) Line() string {
	return c.Path + "=" + c.Value
}

func (c Command) String() string {
	return c.Line()
}

// Parse splits "path=value" at the first '='. The path must be absolute and
// free of whitespace.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	path, value, ok := strings.Cut(line, "=")
	if !ok {
		return Command{}, fmt.Errorf("%w: missing '=' in %q", ErrMalformed, line)
	}
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") || len(path) < 2 {
		return Command{}, fmt.Errorf("%w: invalid path in %q", ErrMalformed, line)
	}
	if strings.ContainsAny(path, " \t") {
		return Command{}, fmt.Errorf("%w: whitespace in path %q", ErrMalformed, path)
	}
	return Command{Path: path, Value: strings.TrimSpace(value)}, nil
}

// MustParse is Parse for static tables; it panics on malformed input.
func MustParse(line string) Command {
	c, err := Parse(line)
	if err != nil {
		panic(err)
	}
	return c
}

// Quoted renders a string value: 'v'.
func Quoted(v string) string {
	return "'" + v + "'"
}

// QuotedInt renders an integer the way string-typed parameters expect it.
func QuotedInt(n int) string {
	return Quoted(strconv.Itoa(n))
}

// Bool renders a boolean as the quoted literal 'true' or 'false'.
func Bool(b bool) string {
	return Quoted(strconv.FormatBool(b))
}

// Int renders a bare integer.
func Int(n int) string {
	return strconv.Itoa(n)
}

// Unquote strips one pair of surrounding single quotes, if present.
func Unquote(v string) string {
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return v[1 : len(v)-1]
	}
	return v
}

// Segments splits a path into its non-empty components.
func Segments(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}
