// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package protocol

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
)

// Sink accepts an ordered batch of commands. Send returns once the whole
// batch was handed to the device or an error stopped it. Commands are
// written in order; on failure the error should be a *PartialError saying
// how many made it.
type Sink interface {
	Send(ctx context.Context, cmds []Command) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, cmds []Command) error

func (f SinkFunc) Send(ctx context.Context, cmds []Command) error {
	return f(ctx, cmds)
}

// PartialError reports a batch that stopped after Sent commands.
type PartialError struct {
	Sent int
	Err  error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("batch stopped after %d commands: %v", e.Sent, e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

// Accepted returns how many commands of a batch reached the device given
// the error Send returned. Errors without a count mean nothing was sent.
func Accepted(err error, total int) int {
	if err == nil {
		return total
	}
	var pe *PartialError
	if stderrors.As(err, &pe) {
		if pe.Sent > total {
			return total
		}
		return pe.Sent
	}
	return 0
}

// Recorder is an in-memory Sink that keeps every batch. FailAfter >= 0
// makes it accept that many commands in total and then fail with Err.
type Recorder struct {
	mu        sync.Mutex
	batches   [][]Command
	accepted  int
	FailAfter int
	Err       error
}

// NewRecorder returns a Recorder that never fails.
func NewRecorder() *Recorder {
	return &Recorder{FailAfter: -1}
}

func (r *Recorder) Send(ctx context.Context, cmds []Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(cmds)
	var failed bool
	if r.FailAfter >= 0 && r.accepted+n > r.FailAfter {
		n = r.FailAfter - r.accepted
		if n < 0 {
			n = 0
		}
		failed = true
	}
	batch := make([]Command, n)
	copy(batch, cmds[:n])
	r.batches = append(r.batches, batch)
	r.accepted += n

	if failed {
		err := r.Err
		if err == nil {
			err = stderrors.New("recorder: injected failure")
		}
		return &PartialError{Sent: n, Err: err}
	}
	return nil
}

// Batches returns a copy of the recorded batches.
func (r *Recorder) Batches() [][]Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]Command, len(r.batches))
	for i, b := range r.batches {
		out[i] = append([]Command(nil), b...)
	}
	return out
}

// Commands returns every accepted command in order.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Command
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

// Lines returns Commands in wire form.
func (r *Recorder) Lines() []string {
	cmds := r.Commands()
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Line()
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.batches = nil
	r.accepted = 0
	r.mu.Unlock()
}
