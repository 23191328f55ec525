// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"galaxy-control/pkg/actions"
	"galaxy-control/pkg/protocol"
	"galaxy-control/pkg/state"
)

type rpcReply struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"error"`
	ID any `json:"id"`
}

func newTestServer(t *testing.T, sink protocol.Sink) (*Server, *state.Store) {
	t.Helper()
	st := state.New(16)
	runner := actions.NewRunner(actions.Config{
		Sink:    sink,
		Store:   st,
		Presets: map[string]actions.Params{"stage_left": {"primary": "LEO", "primary_elements": "6"}},
	})
	s := New(Config{Runner: runner, Connected: func() bool { return true }})
	t.Cleanup(func() { s.Stop() })
	return s, st
}

func call(t *testing.T, h http.Handler, method string, params map[string]any) rpcReply {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "method": method, "params": params, "id": 7})
	req := httptest.NewRequest(http.MethodPost, "/jsonrpc", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var reply rpcReply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v (%s)", err, rec.Body.String())
	}
	return reply
}

func TestServerInfo(t *testing.T) {
	s, _ := newTestServer(t, protocol.NewRecorder())
	reply := call(t, s.Handler(), "server.info", nil)
	if reply.Error != nil {
		t.Fatalf("unexpected error: %s", reply.Error.Message)
	}
	var info map[string]any
	json.Unmarshal(reply.Result, &info)
	if info["version"] != Version {
		t.Errorf("version = %v", info["version"])
	}
	if info["device_connected"] != true {
		t.Error("expected device_connected true")
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/server/info", nil))
	if !strings.Contains(rec.Body.String(), `"version"`) {
		t.Errorf("REST server info missing version: %s", rec.Body.String())
	}
}

func TestActionsListAndSchema(t *testing.T) {
	s, _ := newTestServer(t, protocol.NewRecorder())

	reply := call(t, s.Handler(), "actions.list", nil)
	var list struct {
		Actions []actions.Info `json:"actions"`
		Presets []string       `json:"presets"`
	}
	json.Unmarshal(reply.Result, &list)
	if len(list.Actions) != 2 || len(list.Presets) != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}

	reply = call(t, s.Handler(), "actions.schema", map[string]any{
		"action": "configure_array",
		"values": map[string]any{"primary": "LINA", "mixed": true},
	})
	if reply.Error != nil {
		t.Fatalf("schema error: %s", reply.Error.Message)
	}
	var schema struct {
		Schema  actions.Schema `json:"schema"`
		Visible []string       `json:"visible"`
	}
	json.Unmarshal(reply.Result, &schema)
	if schema.Schema.Action != "configure_array" {
		t.Errorf("schema action = %q", schema.Schema.Action)
	}
	found := false
	for _, id := range schema.Visible {
		if id == "secondary_for_lina" {
			found = true
		}
	}
	if !found {
		t.Errorf("secondary_for_lina should be visible, got %v", schema.Visible)
	}

	reply = call(t, s.Handler(), "actions.schema", map[string]any{"action": "bogus"})
	if reply.Error == nil || reply.Error.Code != codeInvalidParams {
		t.Errorf("expected invalid params, got %+v", reply.Error)
	}
}

func TestActionsRun(t *testing.T) {
	rec := protocol.NewRecorder()
	s, st := newTestServer(t, rec)

	reply := call(t, s.Handler(), "actions.run", map[string]any{
		"action": "configure_array",
		"params": map[string]any{"primary": "LEO", "primary_elements": 4, "link_group": "2"},
	})
	if reply.Error != nil {
		t.Fatalf("run error: %s", reply.Error.Message)
	}
	var res actions.Result
	json.Unmarshal(reply.Result, &res)
	if res.Status != actions.StatusOK || res.Sent != 9 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(rec.Lines()) != 9 {
		t.Errorf("recorder got %d lines", len(rec.Lines()))
	}
	if g, ok := st.LinkGroup(4); !ok || g != 2 {
		t.Errorf("link group of output 4 = %d, %v", g, ok)
	}

	reply = call(t, s.Handler(), "actions.run", map[string]any{"action": "configure_array", "preset": "stage_left"})
	json.Unmarshal(reply.Result, &res)
	if res.Status != actions.StatusOK || res.Outputs != 6 {
		t.Errorf("preset run: %+v", res)
	}

	reply = call(t, s.Handler(), "actions.run", map[string]any{
		"action": "configure_array",
		"params": map[string]any{"primary": "LEO", "primary_elements": 40},
	})
	if reply.Error != nil {
		t.Fatalf("rejection should not be an RPC error: %s", reply.Error.Message)
	}
	json.Unmarshal(reply.Result, &res)
	if res.Status != actions.StatusRejected {
		t.Errorf("status = %s, want rejected", res.Status)
	}
}

func TestActionsRunSinkFailure(t *testing.T) {
	s, _ := newTestServer(t, &protocol.Recorder{FailAfter: 1})
	reply := call(t, s.Handler(), "actions.run", map[string]any{
		"action": "beam_control",
		"params": map[string]any{"array": 1},
	})
	if reply.Error == nil {
		t.Fatal("expected an error")
	}
	if reply.Error.Code != codeDevice {
		t.Errorf("code = %d, want %d", reply.Error.Code, codeDevice)
	}
	var res actions.Result
	json.Unmarshal(reply.Error.Data, &res)
	if res.Status != actions.StatusFailed || res.Sent != 1 {
		t.Errorf("error data = %+v", res)
	}
}

func TestActionsPreview(t *testing.T) {
	rec := protocol.NewRecorder()
	s, _ := newTestServer(t, rec)
	reply := call(t, s.Handler(), "actions.preview", map[string]any{
		"action": "configure_array",
		"params": map[string]any{"primary": "LINA", "primary_elements": 2},
	})
	var res actions.Result
	json.Unmarshal(reply.Result, &res)
	if res.Status != actions.StatusPreview || len(res.Lines) != 2 || len(res.Plan) != 2 {
		t.Errorf("preview = %+v", res)
	}
	if len(rec.Batches()) != 0 {
		t.Error("preview must not send")
	}
}

func TestProtocolErrors(t *testing.T) {
	s, _ := newTestServer(t, protocol.NewRecorder())
	h := s.Handler()

	reply := call(t, h, "device.reboot", nil)
	if reply.Error == nil || reply.Error.Code != codeMethodNotFound {
		t.Errorf("expected method not found, got %+v", reply.Error)
	}

	reply = call(t, h, "actions.run", map[string]any{"action": "configure_array", "params": "x"})
	if reply.Error == nil || reply.Error.Code != codeInvalidParams {
		t.Errorf("expected invalid params, got %+v", reply.Error)
	}

	reply = call(t, h, "variables.subscribe", nil)
	if reply.Error == nil || reply.Error.Code != codeInvalidParams {
		t.Errorf("subscribe over HTTP should fail, got %+v", reply.Error)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jsonrpc", strings.NewReader("{nope")))
	var bad rpcReply
	json.Unmarshal(rec.Body.Bytes(), &bad)
	if bad.Error == nil || bad.Error.Code != codeParseError {
		t.Errorf("expected parse error, got %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jsonrpc", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", rec.Code)
	}
}

type panickingVars struct{}

func (panickingVars) Variables() map[string]string { panic("store exploded") }
func (panickingVars) Version() uint64              { return 1 }

func TestHandlerPanicBecomesError(t *testing.T) {
	s := New(Config{Variables: panickingVars{}})
	defer s.Stop()
	reply := call(t, s.Handler(), "variables.query", nil)
	if reply.Error == nil || reply.Error.Code != codeInternal {
		t.Fatalf("expected internal error, got %+v", reply.Error)
	}
	if !strings.Contains(reply.Error.Message, "store exploded") {
		t.Errorf("message = %q", reply.Error.Message)
	}
}

func TestVariablesQuery(t *testing.T) {
	s, st := newTestServer(t, protocol.NewRecorder())
	st.SetOutputName(3, "Sub L")

	reply := call(t, s.Handler(), "variables.query", map[string]any{"variables": []string{"output_3_name", "missing"}})
	var q struct {
		Version   uint64            `json:"version"`
		Variables map[string]string `json:"variables"`
	}
	json.Unmarshal(reply.Result, &q)
	if q.Variables["output_3_name"] != "Sub L" || len(q.Variables) != 1 {
		t.Errorf("variables = %v", q.Variables)
	}
	if q.Version == 0 {
		t.Error("version should advance after a write")
	}
}

func TestWebSocketSubscribe(t *testing.T) {
	s, st := newTestServer(t, protocol.NewRecorder())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	if err := conn.WriteJSON(map[string]any{
		"jsonrpc": "2.0", "method": "variables.subscribe", "id": 1,
		"params": map[string]any{"variables": []string{"output_1_name"}},
	}); err != nil {
		t.Fatal(err)
	}
	var reply rpcReply
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatal(err)
	}
	if reply.Error != nil {
		t.Fatalf("subscribe error: %s", reply.Error.Message)
	}

	// unchanged store: nothing to send
	s.broadcastVariables()

	st.Apply(protocol.MustParse("/processing/output/1/name='Main L'"))
	s.broadcastVariables()

	var note struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := conn.ReadJSON(&note); err != nil {
		t.Fatal(err)
	}
	if note.Method != "notify_variables" || len(note.Params) != 2 {
		t.Fatalf("unexpected notification %+v", note)
	}
	var vars map[string]string
	json.Unmarshal(note.Params[0], &vars)
	if vars["output_1_name"] != "Main L" {
		t.Errorf("notified variables = %v", vars)
	}

	if err := conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "method": "actions.list", "id": 2}); err != nil {
		t.Fatal(err)
	}
	reply = rpcReply{}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatal(err)
	}
	if reply.Error != nil || len(reply.Result) == 0 {
		t.Errorf("actions.list over websocket failed: %+v", reply)
	}
}
