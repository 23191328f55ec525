// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

//go:build linux

package transport

import (
	"golang.org/x/sys/unix"
)

// platformSockopts sets the keepalive idle time and bounds how long
// unacknowledged data may sit in the send queue.
func platformSockopts(fd int, cfg Config) error {
	if cfg.Keepalive > 0 {
		secs := int(cfg.Keepalive.Seconds())
		if secs < 1 {
			secs = 1
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, secs); err != nil {
			return err
		}
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, secs); err != nil {
			return err
		}
	}
	ms := int(cfg.WriteTimeout.Milliseconds())
	if ms <= 0 {
		return nil
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, ms)
}
