// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package transport

import (
	"context"
	"sync"
	"time"

	"galaxy-control/pkg/errors"
	"galaxy-control/pkg/log"
	"galaxy-control/pkg/protocol"
)

const (
	minBackoff = 250 * time.Millisecond
	maxBackoff = 10 * time.Second
)

// Link keeps a connection to the processor open, reconnecting with
// exponential backoff. It implements protocol.Sink; sends while
// disconnected fail immediately.
type Link struct {
	cfg    Config
	handle func(protocol.Command)
	log    *log.Logger

	// dial is swapped out in tests
	dial func(ctx context.Context, cfg Config) (*Client, error)

	mu     sync.Mutex
	client *Client
	up     chan struct{}

	// OnState is called with true after connecting and false after the
	// connection drops. Optional.
	OnState func(connected bool)
}

// NewLink creates a link; handle receives every feedback command.
func NewLink(cfg Config, handle func(protocol.Command)) *Link {
	if handle == nil {
		handle = func(protocol.Command) {}
	}
	return &Link{
		cfg:    cfg,
		handle: handle,
		log:    log.GetLogger("link"),
		dial:   Dial,
		up:     make(chan struct{}),
	}
}

// Run connects and serves feedback until ctx is cancelled.
func (l *Link) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		c, err := l.dial(ctx, l.cfg)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.log.WithError(err).WithField("retry_in", backoff.String()).Warn("connect failed")
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		l.setClient(c)
		l.log.Info("connected to %s", c.RemoteAddr())
		err = c.ReadLoop(ctx, l.handle)
		l.setClient(nil)
		c.Close()

		if ctx.Err() != nil {
			return nil
		}
		l.log.WithError(err).Warn("connection lost")
	}
}

func (l *Link) setClient(c *Client) {
	l.mu.Lock()
	l.client = c
	if c != nil {
		close(l.up)
	} else {
		l.up = make(chan struct{})
	}
	l.mu.Unlock()
	if l.OnState != nil {
		l.OnState(c != nil)
	}
}

// Connected reports whether a connection is currently open.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.client != nil
}

// WaitConnected blocks until the link is up or ctx is done.
func (l *Link) WaitConnected(ctx context.Context) error {
	l.mu.Lock()
	up := l.up
	l.mu.Unlock()
	select {
	case <-up:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send forwards the batch to the current connection.
func (l *Link) Send(ctx context.Context, cmds []protocol.Command) error {
	l.mu.Lock()
	c := l.client
	l.mu.Unlock()
	if c == nil {
		return errors.TransportError("send", ErrNotConnected)
	}
	return c.Send(ctx, cmds)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
