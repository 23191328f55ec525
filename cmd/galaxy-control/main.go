// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// galaxy-control drives a Galaxy-style loudspeaker processor over its TCP
// control port. It serves a JSON-RPC API for the configure_array and
// beam_control actions, mirrors device feedback into a state store, and
// optionally exposes Prometheus metrics and a MIDI control surface.
//
// Usage:
//
//	galaxy-control -config ~/galaxy.cfg [options]
//
// Options:
//
//	-config string    Configuration file (required)
//	-catalog string   Speaker catalog YAML, overrides [catalog] path
//	-api string       API listen address, overrides [api] listen
//	-log-level string Log level, overrides [log] level
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"galaxy-control/pkg/actions"
	"galaxy-control/pkg/api"
	"galaxy-control/pkg/config"
	"galaxy-control/pkg/log"
	"galaxy-control/pkg/metrics"
	"galaxy-control/pkg/protocol"
	"galaxy-control/pkg/speaker"
	"galaxy-control/pkg/state"
	"galaxy-control/pkg/surface"
	"galaxy-control/pkg/transport"
)

func main() {
	configFile := flag.String("config", "", "Configuration file (required)")
	catalogFile := flag.String("catalog", "", "Speaker catalog YAML (overrides [catalog] path)")
	apiAddr := flag.String("api", "", "API listen address (overrides [api] listen)")
	logLevel := flag.String("log-level", "", "Log level (overrides [log] level)")
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -config is required\n")
		flag.Usage()
		os.Exit(1)
	}

	dc, err := config.ParseDaemonConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing config: %v\n", err)
		os.Exit(1)
	}
	if *catalogFile != "" {
		dc.Catalog.Path = *catalogFile
	}
	if *apiAddr != "" {
		dc.API.Listen = *apiAddr
	}
	if *logLevel != "" {
		dc.Log.Level = *logLevel
	}

	closer, err := log.Setup(log.Options{
		Level:      log.ParseLevel(dc.Log.Level),
		Format:     log.ParseFormat(dc.Log.Format),
		Caller:     dc.Log.Caller,
		File:       dc.Log.File,
		MaxSizeMB:  dc.Log.MaxSizeMB,
		MaxBackups: dc.Log.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	log.ConfigureFromEnv(log.Default())

	logger := log.GetLogger("main")
	if err := run(dc, logger); err != nil {
		logger.WithError(err).Error("galaxy-control stopped")
		closer.Close()
		os.Exit(1)
	}
}

func run(dc *config.DaemonConfig, logger *log.Logger) error {
	cat, err := speaker.Load(dc.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	logger.WithFields(log.Fields{
		"device":  dc.Device.Address(),
		"models":  len(cat.Keys()),
		"presets": len(dc.Presets),
	}).Info("galaxy-control starting")

	store := state.New(dc.Device.OutputCount)
	m := metrics.New()

	link := transport.NewLink(transport.Config{
		Address:        dc.Device.Address(),
		ConnectTimeout: dc.Device.ConnectTimeout,
		WriteTimeout:   dc.Device.WriteTimeout,
		Keepalive:      dc.Device.Keepalive,
	}, func(cmd protocol.Command) {
		m.ObserveFeedback(store.Apply(cmd))
	})
	link.OnState = m.SetConnected

	runner := actions.NewRunner(actions.Config{
		Catalog: cat,
		Sink:    link,
		Store:   store,
		Metrics: m,
		Presets: presetParams(dc.Presets),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 3)

	linkDone := make(chan struct{})
	go func() {
		defer close(linkDone)
		if err := link.Run(ctx); err != nil {
			errCh <- fmt.Errorf("device link: %w", err)
		}
	}()

	apiServer := api.New(api.Config{
		Addr:      dc.API.Listen,
		Runner:    runner,
		Variables: store,
		Connected: link.Connected,
	})
	if err := apiServer.Listen(); err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	go func() {
		if err := apiServer.Serve(); err != nil {
			errCh <- fmt.Errorf("api: %w", err)
		}
	}()
	defer apiServer.Stop()

	if dc.Metrics.Listen != "" {
		ms := metrics.NewServer(m, metrics.ServerConfig{
			Address:  dc.Metrics.Listen,
			Username: dc.Metrics.Username,
			Password: dc.Metrics.Password,
		})
		if err := ms.Listen(); err != nil {
			return err
		}
		go func() {
			if err := ms.Serve(); err != nil {
				errCh <- err
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = ms.Shutdown(shutdownCtx)
		}()
	}

	if dc.Surface.MIDIIn != "" {
		stop, err := startSurface(ctx, dc, runner, m)
		if err != nil {
			// The daemon stays useful without the surface
			logger.WithError(err).Warn("MIDI surface disabled")
		} else {
			defer stop()
		}
	}

	logger.Info("API listening on %s", apiServer.Addr())

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("received %s, shutting down", sig)
	case runErr = <-errCh:
	}

	cancel()
	select {
	case <-linkDone:
	case <-time.After(5 * time.Second):
		logger.Warn("device link did not stop in time")
	}
	return runErr
}

func startSurface(ctx context.Context, dc *config.DaemonConfig, runner *actions.Runner, m *metrics.Metrics) (func(), error) {
	in, err := surface.FindInPort(dc.Surface.MIDIIn)
	if err != nil {
		return nil, err
	}
	return surface.New(dc.Bindings, runner, m).Listen(ctx, in)
}

func presetParams(presets map[string]config.Preset) map[string]actions.Params {
	out := make(map[string]actions.Params, len(presets))
	for name, p := range presets {
		out[name] = actions.Params(p.Params)
	}
	return out
}
