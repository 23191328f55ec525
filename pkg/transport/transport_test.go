// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package transport

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galaxy-control/pkg/errors"
	"galaxy-control/pkg/protocol"
)

func readLines(t *testing.T, r io.Reader, n int) []string {
	t.Helper()
	sc := bufio.NewScanner(r)
	var out []string
	for len(out) < n && sc.Scan() {
		out = append(out, sc.Text())
	}
	return out
}

func TestClientSend(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := NewClient(local, Config{})
	defer c.Close()

	cmds := []protocol.Command{
		protocol.Set("/processing/output/1/link_group", "2"),
		protocol.Set("/processing/link_group/2/bypass", protocol.Bool(false)),
	}
	got := make(chan []string, 1)
	go func() { got <- readLines(t, remote, 2) }()

	require.NoError(t, c.Send(context.Background(), cmds))
	assert.Equal(t, []string{
		"/processing/output/1/link_group=2",
		"/processing/link_group/2/bypass='false'",
	}, <-got)
}

func TestClientSendAfterPeerClosed(t *testing.T) {
	local, remote := net.Pipe()
	remote.Close()
	c := NewClient(local, Config{WriteTimeout: time.Second})
	defer c.Close()

	err := c.Send(context.Background(), []protocol.Command{protocol.Set("/a", "1"), protocol.Set("/b", "2")})
	require.Error(t, err)
	var pe *protocol.PartialError
	require.True(t, stderrors.As(err, &pe))
	assert.Equal(t, 0, pe.Sent)
	assert.Equal(t, 0, protocol.Accepted(err, 2))
}

func TestClientSendClosed(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := NewClient(local, Config{})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Send(context.Background(), nil), ErrClosed)
}

func TestReadLoopSkipsMalformed(t *testing.T) {
	local, remote := net.Pipe()
	c := NewClient(local, Config{})
	defer c.Close()

	var got []string
	done := make(chan error, 1)
	go func() {
		done <- c.ReadLoop(context.Background(), func(cmd protocol.Command) {
			got = append(got, cmd.Line())
		})
	}()

	_, err := io.WriteString(remote, "/device/output_count=32\nnonsense\n\n/processing/output/3/name='Sub L'\n")
	require.NoError(t, err)
	remote.Close()

	err = <-done
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTransport))
	assert.Equal(t, []string{"/device/output_count=32", "/processing/output/3/name='Sub L'"}, got)
}

func TestReadLoopCancel(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := NewClient(local, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.ReadLoop(ctx, func(protocol.Command) {}) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not stop")
	}
}

func TestDialRequiresAddress(t *testing.T) {
	_, err := Dial(context.Background(), Config{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTransport))
}

func TestDialLoopback(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	got := make(chan []string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		got <- readLines(t, conn, 1)
	}()

	c, err := Dial(context.Background(), Config{Address: ln.Addr().String(), Keepalive: time.Second})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Send(context.Background(), []protocol.Command{protocol.Set("/processing/output/1/delay_integration/delay_samples", "240")}))
	assert.Equal(t, []string{"/processing/output/1/delay_integration/delay_samples=240"}, <-got)
}

func TestLinkSendDisconnected(t *testing.T) {
	l := NewLink(Config{Address: "127.0.0.1:1"}, nil)
	assert.False(t, l.Connected())
	err := l.Send(context.Background(), []protocol.Command{protocol.Set("/a", "1")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, 0, protocol.Accepted(err, 1))
}

func TestLinkRun(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		lines := readLines(t, conn, 1)
		if len(lines) == 1 {
			received <- lines[0]
		}
		io.WriteString(conn, "/processing/link_group/1/bypass='true'\n")
		time.Sleep(time.Second)
	}()

	feedback := make(chan protocol.Command, 1)
	l := NewLink(Config{Address: ln.Addr().String()}, func(c protocol.Command) { feedback <- c })
	states := make(chan bool, 4)
	l.OnState = func(up bool) { states <- up }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	wctx, wcancel := context.WithTimeout(ctx, 2*time.Second)
	defer wcancel()
	require.NoError(t, l.WaitConnected(wctx))
	assert.True(t, <-states)
	assert.True(t, l.Connected())

	require.NoError(t, l.Send(ctx, []protocol.Command{protocol.Set("/processing/output/2/link_group", "1")}))
	assert.Equal(t, "/processing/output/2/link_group=1", <-received)

	select {
	case c := <-feedback:
		assert.Equal(t, "/processing/link_group/1/bypass", c.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("no feedback")
	}

	cancel()
	assert.NoError(t, <-done)
	assert.False(t, l.Connected())
}

func TestLinkRetriesDial(t *testing.T) {
	l := NewLink(Config{Address: "unused"}, nil)
	attempts := 0
	ctx, cancel := context.WithCancel(context.Background())
	l.dial = func(ctx context.Context, cfg Config) (*Client, error) {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return nil, stderrors.New("refused")
	}
	assert.NoError(t, l.Run(ctx))
	assert.Equal(t, 2, attempts)
}
