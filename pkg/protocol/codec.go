// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package protocol

import (
	"bufio"
	"io"
	"strings"
)

// MaxLineLength bounds a single protocol line.
const MaxLineLength = 64 * 1024

// AppendLine appends the newline-terminated wire form of c to dst.
func AppendLine(dst []byte, c Command) []byte {
	dst = append(dst, c.Path...)
	dst = append(dst, '=')
	dst = append(dst, c.Value...)
	return append(dst, '\n')
}

// Encode renders a batch as one string.
func Encode(cmds []Command) string {
	var sb strings.Builder
	for _, c := range cmds {
		sb.WriteString(c.Line())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Decode parses newline separated commands, skipping blank lines.
func Decode(text string) ([]Command, error) {
	d := NewDecoder(strings.NewReader(text))
	var out []Command
	for {
		c, err := d.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
}

// Decoder reads commands from a stream.
type Decoder struct {
	sc   *bufio.Scanner
	line int
}

func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 4096), MaxLineLength)
	return &Decoder{sc: sc}
}

// Next returns the next command, or io.EOF at end of stream. A malformed
// line is returned as an error; the decoder stays usable afterwards.
func (d *Decoder) Next() (Command, error) {
	for d.sc.Scan() {
		d.line++
		text := strings.TrimSpace(d.sc.Text())
		if text == "" {
			continue
		}
		return Parse(text)
	}
	if err := d.sc.Err(); err != nil {
		return Command{}, err
	}
	return Command{}, io.EOF
}

// Line returns the number of lines consumed so far.
func (d *Decoder) Line() int {
	return d.line
}
