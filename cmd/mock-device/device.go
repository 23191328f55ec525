// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"sync"

	"galaxy-control/pkg/log"
	"galaxy-control/pkg/pool"
	"galaxy-control/pkg/protocol"
)

// Device is the simulated processor: a flat path to value table shared by
// every connection.
type Device struct {
	outputs int

	// failAfter closes a connection after that many commands; 0 disables
	failAfter int

	log *log.Logger

	mu     sync.Mutex
	values map[string]string
}

// NewDevice creates a device with the given number of outputs.
func NewDevice(outputs, failAfter int) *Device {
	d := &Device{
		outputs:   outputs,
		failAfter: failAfter,
		log:       log.GetLogger("mock-device"),
		values:    make(map[string]string),
	}
	for i := 1; i <= outputs; i++ {
		d.values[fmt.Sprintf("/processing/output/%d/name", i)] = protocol.Quoted(fmt.Sprintf("Out %d", i))
	}
	return d
}

// Value returns the stored value of path.
func (d *Device) Value(path string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.values[path]
	return v, ok
}

// Len returns the number of stored paths.
func (d *Device) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.values)
}

// Greeting is what a new connection receives before any command.
func (d *Device) Greeting() []protocol.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	cmds := []protocol.Command{protocol.Set("/device/output_count", protocol.Int(d.outputs))}
	paths := make([]string, 0, len(d.values))
	for p := range d.values {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		cmds = append(cmds, protocol.Set(p, d.values[p]))
	}
	return cmds
}

// Apply stores cmd and returns the feedback to send back: the echoed
// command, plus beam-control status once an array's last parameter lands.
func (d *Device) Apply(cmd protocol.Command) []protocol.Command {
	d.mu.Lock()
	d.values[cmd.Path] = cmd.Value
	d.mu.Unlock()

	out := []protocol.Command{cmd}
	parts := protocol.Segments(cmd.Path)
	if len(parts) == 4 && parts[0] == "processing" && parts[1] == "beam_control_array" && parts[3] == "starting_element" {
		out = append(out, d.beamStatus(parts[2])...)
	}
	return out
}

func (d *Device) beamStatus(array string) []protocol.Command {
	total, _ := d.Value("/processing/beam_control_array/" + array + "/total_elements")
	code, label, msg := 0, "None", ""
	if n, err := strconv.Atoi(protocol.Unquote(total)); err != nil || n < 2 {
		code, label, msg = 3, "Invalid geometry", "too few elements"
	}
	base := "/status/beam_control_array/" + array + "/"
	return []protocol.Command{
		protocol.Set(base+"error_code", protocol.Int(code)),
		protocol.Set(base+"error_code_label", protocol.Quoted(label)),
		protocol.Set(base+"error_string", protocol.Quoted(msg)),
	}
}

var errFaultInjected = errors.New("fault injected")

// Serve handles one client until it disconnects.
func (d *Device) Serve(conn net.Conn, trace bool) error {
	defer conn.Close()

	w := bufio.NewWriter(conn)
	if err := writeAll(w, d.Greeting()); err != nil {
		return err
	}

	dec := protocol.NewDecoder(conn)
	count := 0
	for {
		cmd, err := dec.Next()
		switch {
		case err == io.EOF:
			return nil
		case errors.Is(err, protocol.ErrMalformed):
			d.log.WithError(err).Warnf("line %d ignored", dec.Line())
			continue
		case err != nil:
			return err
		}

		count++
		if d.failAfter > 0 && count > d.failAfter {
			return errFaultInjected
		}
		if trace {
			d.log.Debug("<- %s", cmd)
		}
		if err := writeAll(w, d.Apply(cmd)); err != nil {
			return err
		}
	}
}

func writeAll(w *bufio.Writer, cmds []protocol.Command) error {
	buf := pool.GetByteBuffer()
	defer pool.PutByteBuffer(buf)
	for _, c := range cmds {
		buf.SetBytes(protocol.AppendLine(buf.Bytes()[:0], c))
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return w.Flush()
}
