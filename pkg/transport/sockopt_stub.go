// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

//go:build !unix

package transport

import "net"

func tuneSocket(conn *net.TCPConn, cfg Config) error {
	if err := conn.SetNoDelay(true); err != nil {
		return err
	}
	if cfg.Keepalive <= 0 {
		return conn.SetKeepAlive(false)
	}
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	return conn.SetKeepAlivePeriod(cfg.Keepalive)
}
