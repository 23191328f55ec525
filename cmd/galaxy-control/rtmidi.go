// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

//go:build cgo

package main

// Registers the RtMidi driver; without cgo no MIDI ports are found and the
// surface stays disabled.
import _ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
