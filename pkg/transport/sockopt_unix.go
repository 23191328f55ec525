// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

//go:build unix

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneSocket disables Nagle so each command line leaves immediately and
// enables keepalive probing when configured.
func tuneSocket(conn *net.TCPConn, cfg Config) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	err = raw.Control(func(fd uintptr) {
		if opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); opErr != nil {
			return
		}
		keepalive := 0
		if cfg.Keepalive > 0 {
			keepalive = 1
		}
		if opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, keepalive); opErr != nil {
			return
		}
		opErr = platformSockopts(int(fd), cfg)
	})
	if err != nil {
		return err
	}
	return opErr
}
