// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

//go:build unix && !linux

package transport

func platformSockopts(fd int, cfg Config) error {
	return nil
}
