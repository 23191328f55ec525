// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package api exposes actions and device variables over JSON-RPC 2.0, both
// as plain HTTP POSTs to /jsonrpc and over a /websocket connection that can
// subscribe to variable updates.
package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"galaxy-control/pkg/actions"
	"galaxy-control/pkg/log"
)

// Version is reported by server.info.
const Version = "0.3.0"

// VariableSource is the read side of the device state store.
type VariableSource interface {
	Variables() map[string]string
	Version() uint64
}

// Config holds server configuration.
type Config struct {
	// Addr to listen on (e.g., ":8710")
	Addr string

	Runner *actions.Runner

	// Variables defaults to the runner's store.
	Variables VariableSource

	// Connected reports the device link state. Optional.
	Connected func() bool

	// BroadcastInterval is how often subscribers are checked for changed
	// variables (default 250ms).
	BroadcastInterval time.Duration
}

// Server is the JSON-RPC API server.
type Server struct {
	runner    *actions.Runner
	vars      VariableSource
	connected func() bool
	interval  time.Duration
	addr      string
	log       *log.Logger

	httpServer *http.Server
	listener   net.Listener

	wsUpgrader websocket.Upgrader
	wsClients  map[int64]*WSClient
	wsClientMu sync.RWMutex
	nextWSID   int64

	// clientID -> subscription
	subscriptions map[int64]*subscription
	subMu         sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	running   atomic.Bool
	startTime time.Time
}

type subscription struct {
	names       []string
	lastVersion uint64
}

// New creates a server.
func New(cfg Config) *Server {
	vars := cfg.Variables
	if vars == nil && cfg.Runner != nil {
		vars = cfg.Runner.Store()
	}
	interval := cfg.BroadcastInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		runner:        cfg.Runner,
		vars:          vars,
		connected:     cfg.Connected,
		interval:      interval,
		addr:          cfg.Addr,
		log:           log.GetLogger("api"),
		wsClients:     make(map[int64]*WSClient),
		subscriptions: make(map[int64]*subscription),
		ctx:           ctx,
		cancel:        cancel,
		startTime:     time.Now(),
	}
	s.wsUpgrader = websocket.Upgrader{
		// Allow all origins
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	s.httpServer = &http.Server{Handler: s.Handler()}
	return s
}

// Handler returns the HTTP handler with every endpoint registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/jsonrpc", s.handleJSONRPC)
	mux.HandleFunc("/websocket", s.handleWebSocket)
	mux.HandleFunc("/server/info", s.handleServerInfo)
	return corsMiddleware(mux)
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address once listening.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Serve runs the API until Stop. It listens first if Listen was not called.
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.running.Store(true)
	s.log.Info("API server listening on %s", s.listener.Addr())

	go s.broadcastLoop()

	err := s.httpServer.Serve(s.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop closes every websocket client and the HTTP server.
func (s *Server) Stop() error {
	s.running.Store(false)
	s.cancel()

	s.wsClientMu.Lock()
	for _, client := range s.wsClients {
		client.Close()
	}
	s.wsClients = make(map[int64]*WSClient)
	s.wsClientMu.Unlock()

	return s.httpServer.Close()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	info, _ := s.methodServerInfo()
	writeJSON(w, map[string]any{"result": info})
}
