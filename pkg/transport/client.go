// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package transport connects to the processor's TCP control port. Commands
// go out as protocol lines; feedback lines coming back are handed to a
// callback, normally the state store.
package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"galaxy-control/pkg/errors"
	"galaxy-control/pkg/log"
	"galaxy-control/pkg/pool"
	"galaxy-control/pkg/protocol"
)

// Common errors
var (
	ErrNotConnected = stderrors.New("transport: not connected")
	ErrClosed       = stderrors.New("transport: connection closed")
)

// Config holds connection settings.
type Config struct {
	// Address is host:port of the processor.
	Address string

	// ConnectTimeout bounds dialing including retries (default: 5 seconds)
	ConnectTimeout time.Duration

	// WriteTimeout bounds a single command write (default: 2 seconds)
	WriteTimeout time.Duration

	// Keepalive is the TCP keepalive period; 0 disables it
	Keepalive time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		WriteTimeout:   2 * time.Second,
		Keepalive:      30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	return c
}

// Client is one open connection. It implements protocol.Sink.
type Client struct {
	cfg  Config
	conn net.Conn
	log  *log.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// Dial connects to cfg.Address, retrying refused connections until the
// connect timeout or ctx expires.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Address == "" {
		return nil, errors.TransportError("dial", stderrors.New("address required"))
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	dialer := net.Dialer{KeepAlive: -1}
	var conn net.Conn
	var err error
	for {
		conn, err = dialer.DialContext(ctx, "tcp", cfg.Address)
		if err == nil {
			break
		}
		// Device might still be booting, wait and retry
		if stderrors.Is(err, syscall.ECONNREFUSED) && ctx.Err() == nil {
			select {
			case <-time.After(100 * time.Millisecond):
				continue
			case <-ctx.Done():
			}
		}
		return nil, errors.TransportError("dial "+cfg.Address, err)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tuneSocket(tcp, cfg); err != nil {
			conn.Close()
			return nil, errors.TransportError("configure socket", err)
		}
	}
	return newClient(conn, cfg), nil
}

// NewClient wraps an established connection, e.g. one side of net.Pipe.
func NewClient(conn net.Conn, cfg Config) *Client {
	return newClient(conn, cfg.withDefaults())
}

func newClient(conn net.Conn, cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		conn: conn,
		log:  log.GetLogger("transport"),
	}
}

// RemoteAddr returns the peer address.
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Send writes the batch in order, one line per command. The context is
// only consulted before the first write; once writing starts the batch
// runs to completion or fails. A failure is returned as a
// *protocol.PartialError carrying the number of commands written.
func (c *Client) Send(ctx context.Context, cmds []protocol.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	buf := pool.GetByteBuffer()
	defer pool.PutByteBuffer(buf)
	for i, cmd := range cmds {
		buf.SetBytes(protocol.AppendLine(buf.Bytes()[:0], cmd))
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			return &protocol.PartialError{Sent: i, Err: err}
		}
		if _, err := c.conn.Write(buf.Bytes()); err != nil {
			return &protocol.PartialError{Sent: i, Err: fmt.Errorf("write %s: %w", cmd.Path, err)}
		}
	}
	c.log.Debug("sent %d commands to %s", len(cmds), c.RemoteAddr())
	return nil
}

// ReadLoop decodes feedback lines and passes each command to handle until
// the connection closes or ctx is cancelled. Malformed lines are logged and
// skipped. It returns nil on a clean shutdown.
func (c *Client) ReadLoop(ctx context.Context, handle func(protocol.Command)) error {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	dec := protocol.NewDecoder(c.conn)
	for {
		cmd, err := dec.Next()
		switch {
		case err == nil:
			handle(cmd)
		case err == io.EOF:
			return c.readEnd(ctx, io.EOF)
		case stderrors.Is(err, protocol.ErrMalformed):
			c.log.WithError(err).Warnf("ignoring malformed feedback line %d", dec.Line())
		default:
			return c.readEnd(ctx, err)
		}
	}
}

func (c *Client) readEnd(ctx context.Context, err error) error {
	if ctx.Err() != nil || c.isClosed() {
		return nil
	}
	return errors.TransportError("read", err)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}
