// HTTP server for the Prometheus metrics endpoint
//
// Serves /metrics for scraping plus /health and /ready probes, with
// optional basic authentication on /metrics.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"galaxy-control/pkg/log"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	// Address to listen on (e.g., ":9110" or "127.0.0.1:9110")
	Address string

	// Optional basic auth credentials
	Username string
	Password string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      ":9110",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server serves the metrics registry over HTTP
type Server struct {
	cfg    ServerConfig
	server *http.Server
	log    *log.Logger

	mu        sync.RWMutex
	listener  net.Listener
	running   bool
	startTime time.Time
}

// NewServer creates a metrics server for m.
func NewServer(m *Metrics, cfg ServerConfig) *Server {
	def := DefaultServerConfig()
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	s := &Server{cfg: cfg, log: log.GetLogger("metrics")}
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.withAuth(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{
		Registry: m.Registry,
	})))
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the mux, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Listen binds the configured address without serving yet.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("metrics server listen: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Address
}

// Serve blocks until Shutdown. It calls Listen first if needed.
func (s *Server) Serve() error {
	s.mu.RLock()
	ln := s.listener
	s.mu.RUnlock()
	if ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		s.mu.RLock()
		ln = s.listener
		s.mu.RUnlock()
	}

	s.mu.Lock()
	s.running = true
	s.startTime = time.Now()
	s.mu.Unlock()
	s.log.Info("serving metrics on %s", ln.Addr())

	err := s.server.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return s.server.Shutdown(ctx)
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK\n"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if s.IsRunning() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready\n"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("Not Ready\n"))
}

// withAuth verifies basic auth if configured
func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.cfg.Username == "" && s.cfg.Password == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.Username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) == 1
		if !ok || !userMatch || !passMatch {
			w.Header().Set("WWW-Authenticate", `Basic realm="Galaxy Metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
