// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"galaxy-control/pkg/actions"
	"galaxy-control/pkg/errors"
	"galaxy-control/pkg/state"
)

// JSON-RPC 2.0 structures

type jsonRPCRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
	ID      any            `json:"id,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonRPCError `json:"error,omitempty"`
	ID      any           `json:"id,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error codes
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
	codeDevice         = -32000
)

// rpcError carries a JSON-RPC error code through the dispatcher.
type rpcError struct {
	code int
	err  error
	data any
}

func (e *rpcError) Error() string { return e.err.Error() }

func (e *rpcError) Unwrap() error { return e.err }

func invalidParams(format string, args ...any) error {
	return &rpcError{code: codeInvalidParams, err: fmt.Errorf(format, args...)}
}

func toRPCError(err error) *jsonRPCError {
	if re, ok := err.(*rpcError); ok {
		return &jsonRPCError{Code: re.code, Message: re.err.Error(), Data: re.data}
	}
	code := codeDevice
	switch errors.Code(err) {
	case errors.ErrAction:
		code = codeInvalidParams
	case errors.ErrRuntime:
		code = codeInternal
	}
	return &jsonRPCError{Code: code, Message: err.Error()}
}

func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, jsonRPCResponse{JSONRPC: "2.0", Error: &jsonRPCError{Code: codeParseError, Message: "Parse error"}})
		return
	}

	result, err := s.dispatch(r.Context(), req.Method, req.Params, nil)
	if err != nil {
		writeJSON(w, jsonRPCResponse{JSONRPC: "2.0", Error: toRPCError(err), ID: req.ID})
		return
	}
	writeJSON(w, jsonRPCResponse{JSONRPC: "2.0", Result: result, ID: req.ID})
}

// dispatch routes a method call. A panic in a handler becomes an internal
// error response instead of taking the connection down.
func (s *Server) dispatch(ctx context.Context, method string, params map[string]any, client *WSClient) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			he := errors.FromPanic(r)
			s.log.WithError(he).WithField("method", method).Error("handler panic")
			result, err = nil, he
		}
	}()

	switch method {
	case "server.info":
		return s.methodServerInfo()
	case "actions.list":
		return s.methodActionsList()
	case "actions.schema":
		return s.methodActionsSchema(params)
	case "actions.run":
		return s.methodActionsRun(ctx, params)
	case "actions.preview":
		return s.methodActionsPreview(params)
	case "variables.query":
		return s.methodVariablesQuery(params)
	case "variables.subscribe":
		return s.methodVariablesSubscribe(params, client)
	}
	return nil, &rpcError{code: codeMethodNotFound, err: fmt.Errorf("method not found: %s", method)}
}

// Method implementations

func (s *Server) methodServerInfo() (any, error) {
	hostname, _ := os.Hostname()
	connected := false
	if s.connected != nil {
		connected = s.connected()
	}
	s.wsClientMu.RLock()
	wsCount := len(s.wsClients)
	s.wsClientMu.RUnlock()

	info := map[string]any{
		"version":          Version,
		"hostname":         hostname,
		"device_connected": connected,
		"websocket_count":  wsCount,
		"uptime":           time.Since(s.startTime).Seconds(),
	}
	if s.vars != nil {
		info["state_version"] = s.vars.Version()
	}
	return info, nil
}

func (s *Server) requireRunner() error {
	if s.runner == nil {
		return &rpcError{code: codeInternal, err: fmt.Errorf("no action runner configured")}
	}
	return nil
}

func (s *Server) methodActionsList() (any, error) {
	if err := s.requireRunner(); err != nil {
		return nil, err
	}
	return map[string]any{
		"actions": s.runner.Actions(),
		"presets": s.runner.PresetNames(),
	}, nil
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", invalidParams("missing '%s' parameter", key)
	}
	str, ok := v.(string)
	if !ok || str == "" {
		return "", invalidParams("'%s' must be a non-empty string", key)
	}
	return str, nil
}

func valuesParam(params map[string]any, key string) (actions.Params, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return actions.Params{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, invalidParams("'%s' must be an object", key)
	}
	return actions.ParamsFromJSON(m), nil
}

func (s *Server) methodActionsSchema(params map[string]any) (any, error) {
	if err := s.requireRunner(); err != nil {
		return nil, err
	}
	name, err := stringParam(params, "action")
	if err != nil {
		return nil, err
	}
	schema, ok := s.runner.Schema(name)
	if !ok {
		return nil, invalidParams("unknown action %q", name)
	}
	values, err := valuesParam(params, "values")
	if err != nil {
		return nil, err
	}
	visible := []string{}
	for _, opt := range schema.Form(values).VisibleOptions() {
		visible = append(visible, opt.ID)
	}
	return map[string]any{"schema": schema, "visible": visible}, nil
}

func (s *Server) methodActionsRun(ctx context.Context, params map[string]any) (any, error) {
	if err := s.requireRunner(); err != nil {
		return nil, err
	}
	name, err := stringParam(params, "action")
	if err != nil {
		return nil, err
	}
	values, err := valuesParam(params, "params")
	if err != nil {
		return nil, err
	}

	var res actions.Result
	if preset, ok := params["preset"].(string); ok && preset != "" {
		res, err = s.runner.RunPreset(ctx, name, preset, values)
	} else {
		res, err = s.runner.Run(ctx, name, values)
	}
	if err != nil {
		re := toRPCError(err)
		if res.ID != "" {
			return nil, &rpcError{code: re.Code, err: err, data: res}
		}
		return nil, err
	}
	return res, nil
}

func (s *Server) methodActionsPreview(params map[string]any) (any, error) {
	if err := s.requireRunner(); err != nil {
		return nil, err
	}
	name, err := stringParam(params, "action")
	if err != nil {
		return nil, err
	}
	values, err := valuesParam(params, "params")
	if err != nil {
		return nil, err
	}
	return s.runner.Preview(name, values)
}

// variableNames reads an optional list of variable names; nil means all.
func variableNames(params map[string]any) ([]string, error) {
	v, ok := params["variables"]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, invalidParams("'variables' must be a list of names")
	}
	names := make([]string, 0, len(list))
	for _, item := range list {
		name, ok := item.(string)
		if !ok {
			return nil, invalidParams("'variables' must be a list of names")
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *Server) snapshot(names []string) (map[string]string, uint64) {
	if s.vars == nil {
		return map[string]string{}, 0
	}
	version := s.vars.Version()
	all := s.vars.Variables()
	if names == nil {
		return all, version
	}
	out := make(map[string]string, len(names))
	for _, n := range names {
		if v, ok := all[n]; ok {
			out[n] = v
		}
	}
	return out, version
}

func (s *Server) methodVariablesQuery(params map[string]any) (any, error) {
	names, err := variableNames(params)
	if err != nil {
		return nil, err
	}
	vars, version := s.snapshot(names)
	return map[string]any{
		"version":   version,
		"variables": vars,
		"names":     state.SortedNames(vars),
	}, nil
}

func (s *Server) methodVariablesSubscribe(params map[string]any, client *WSClient) (any, error) {
	if client == nil {
		return nil, invalidParams("subscription requires WebSocket connection")
	}
	names, err := variableNames(params)
	if err != nil {
		return nil, err
	}
	vars, version := s.snapshot(names)

	s.subMu.Lock()
	s.subscriptions[client.id] = &subscription{names: names, lastVersion: version}
	s.subMu.Unlock()

	return map[string]any{
		"version":   version,
		"variables": vars,
		"names":     state.SortedNames(vars),
	}, nil
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}
