// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package protocol

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Command
		wantErr bool
	}{
		{"quoted", "/processing/output/3/mute='true'", Command{"/processing/output/3/mute", "'true'"}, false},
		{"bare int", " /processing/output/1/link_group=2 ", Command{"/processing/output/1/link_group", "2"}, false},
		{"value with equals", "/a/b='x=y'", Command{"/a/b", "'x=y'"}, false},
		{"empty value", "/a/b=", Command{"/a/b", ""}, false},
		{"no equals", "/a/b", Command{}, true},
		{"relative path", "a/b=1", Command{}, true},
		{"root only", "/=1", Command{}, true},
		{"space in path", "/a b/c=1", Command{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueRendering(t *testing.T) {
	assert.Equal(t, "'42'", QuotedInt(42))
	assert.Equal(t, "42", Int(42))
	assert.Equal(t, "'true'", Bool(true))
	assert.Equal(t, "'false'", Bool(false))
	assert.Equal(t, "abc", Unquote("'abc'"))
	assert.Equal(t, "'", Unquote("'"))
	assert.Equal(t, "/processing/beam_control_array/2/beam_angle='45'",
		Setf(QuotedInt(45), "/processing/beam_control_array/%d/beam_angle", 2).Line())
	assert.Equal(t, []string{"processing", "output", "7", "mute"}, Segments("/processing/output/7/mute"))
}

func TestEncodeDecode(t *testing.T) {
	cmds := []Command{
		Set("/processing/output/1/link_group", Int(1)),
		Set("/processing/link_group/1/bypass", Bool(false)),
	}
	text := Encode(cmds)
	assert.Equal(t, "/processing/output/1/link_group=1\n/processing/link_group/1/bypass='false'\n", text)

	back, err := Decode("\n" + text + "\n\n")
	require.NoError(t, err)
	assert.Equal(t, cmds, back)

	assert.Equal(t, []byte("/a=1\n"), AppendLine(nil, Set("/a", "1")))
}

func TestDecoderMalformedLine(t *testing.T) {
	d := NewDecoder(strings.NewReader("/ok=1\ngarbage\n/ok=2\n"))

	c, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, "1", c.Value)

	_, err = d.Next()
	assert.Error(t, err)
	assert.Equal(t, 2, d.Line())

	c, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, "2", c.Value)

	_, err = d.Next()
	assert.Equal(t, io.EOF, err)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	require.NoError(t, r.Send(ctx, []Command{Set("/a", "1"), Set("/b", "2")}))
	require.NoError(t, r.Send(ctx, []Command{Set("/c", "3")}))
	assert.Len(t, r.Batches(), 2)
	assert.Equal(t, []string{"/a=1", "/b=2", "/c=3"}, r.Lines())

	r.Reset()
	assert.Empty(t, r.Commands())
}

func TestRecorderFailAfter(t *testing.T) {
	boom := errors.New("link down")
	r := &Recorder{FailAfter: 2, Err: boom}
	cmds := []Command{Set("/a", "1"), Set("/b", "2"), Set("/c", "3")}

	err := r.Send(context.Background(), cmds)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, Accepted(err, len(cmds)))
	assert.Equal(t, []string{"/a=1", "/b=2"}, r.Lines())
}

func TestRecorderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRecorder()
	err := r.Send(ctx, []Command{Set("/a", "1")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, Accepted(err, 1))
	assert.Empty(t, r.Commands())
}

func TestAccepted(t *testing.T) {
	assert.Equal(t, 5, Accepted(nil, 5))
	assert.Equal(t, 0, Accepted(errors.New("x"), 5))
	assert.Equal(t, 3, Accepted(&PartialError{Sent: 3}, 5))
	assert.Equal(t, 5, Accepted(&PartialError{Sent: 9}, 5))
}

func TestSinkFunc(t *testing.T) {
	var got int
	var s Sink = SinkFunc(func(_ context.Context, cmds []Command) error {
		got = len(cmds)
		return nil
	})
	require.NoError(t, s.Send(context.Background(), make([]Command, 4)))
	assert.Equal(t, 4, got)
}
