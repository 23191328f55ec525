// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// mock-device simulates a processor's TCP control port for development and
// integration tests. Every set command is stored and echoed back; the
// output count and output names are sent when a client connects.
//
// Usage:
//
//	mock-device -listen 127.0.0.1:25003 -outputs 16 [-fail-after N] [-trace]
package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"galaxy-control/pkg/log"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:25003", "TCP listen address")
	outputs := flag.Int("outputs", 16, "Number of outputs to report")
	failAfter := flag.Int("fail-after", 0, "Drop each connection after N commands (0 disables)")
	trace := flag.Bool("trace", false, "Log every received command")
	flag.Parse()

	logger := log.GetLogger("mock-device")
	if *trace {
		log.Default().SetLevel(log.DEBUG)
	}

	listener, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.WithError(err).Error("cannot listen")
		os.Exit(1)
	}
	defer listener.Close()

	dev := NewDevice(*outputs, *failAfter)
	logger.WithFields(log.Fields{"outputs": *outputs, "fail_after": *failAfter}).
		Infof("mock device listening on %s", listener.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	connCh := make(chan net.Conn, 1)
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			connCh <- conn
		}
	}()

	for {
		select {
		case <-sigCh:
			logger.Info("shutting down")
			return
		case conn := <-connCh:
			logger.Info("client connected from %s", conn.RemoteAddr())
			go func() {
				err := dev.Serve(conn, *trace)
				logger.WithError(err).WithField("paths", dev.Len()).Info("client disconnected")
			}()
		}
	}
}
