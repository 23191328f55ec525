// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient represents a WebSocket client connection.
type WSClient struct {
	id     int64
	conn   *websocket.Conn
	server *Server
	sendCh chan any
	done   chan struct{}
	mu     sync.Mutex
}

func (s *Server) newWSClient(conn *websocket.Conn) *WSClient {
	return &WSClient{
		id:     atomic.AddInt64(&s.nextWSID, 1),
		conn:   conn,
		server: s,
		sendCh: make(chan any, 64),
		done:   make(chan struct{}),
	}
}

// Send queues a message for the client; it is dropped when the queue is
// full.
func (c *WSClient) Send(msg any) {
	select {
	case c.sendCh <- msg:
	case <-c.done:
	default:
		c.server.log.WithField("client", c.id).Warn("dropping message, send queue full")
	}
}

// Close closes the client connection.
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.conn.Close()
}

func (c *WSClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.Close()
	}()

	c.conn.SetReadLimit(512 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.log.WithError(err).Warn("websocket read error")
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.log.WithError(err).Warn("websocket write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var req jsonRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.Send(jsonRPCResponse{JSONRPC: "2.0", Error: &jsonRPCError{Code: codeParseError, Message: "Parse error"}})
		return
	}

	result, err := c.server.dispatch(c.server.ctx, req.Method, req.Params, c)
	if err != nil {
		c.Send(jsonRPCResponse{JSONRPC: "2.0", Error: toRPCError(err), ID: req.ID})
		return
	}
	c.Send(jsonRPCResponse{JSONRPC: "2.0", Result: result, ID: req.ID})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := s.newWSClient(conn)
	s.wsClientMu.Lock()
	s.wsClients[client.id] = client
	s.wsClientMu.Unlock()
	s.log.WithField("client", client.id).Debug("websocket client connected")

	go client.writePump()
	client.readPump()
}

func (s *Server) removeClient(client *WSClient) {
	s.wsClientMu.Lock()
	delete(s.wsClients, client.id)
	s.wsClientMu.Unlock()

	s.subMu.Lock()
	delete(s.subscriptions, client.id)
	s.subMu.Unlock()

	s.log.WithField("client", client.id).Debug("websocket client disconnected")
}

func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.broadcastVariables()
		case <-s.ctx.Done():
			return
		}
	}
}

// broadcastVariables sends notify_variables to every subscriber whose view
// is older than the store.
func (s *Server) broadcastVariables() {
	if s.vars == nil {
		return
	}
	version := s.vars.Version()

	s.subMu.Lock()
	defer s.subMu.Unlock()

	for clientID, sub := range s.subscriptions {
		if sub.lastVersion == version {
			continue
		}
		s.wsClientMu.RLock()
		client, ok := s.wsClients[clientID]
		s.wsClientMu.RUnlock()
		if !ok {
			continue
		}

		vars, v := s.snapshot(sub.names)
		sub.lastVersion = v
		client.Send(map[string]any{
			"jsonrpc": "2.0",
			"method":  "notify_variables",
			"params":  []any{vars, v},
		})
	}
}
