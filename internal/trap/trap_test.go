package trap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/sundew/internal/classify"
	"github.com/jmerrifield20/sundew/internal/event"
	"github.com/jmerrifield20/sundew/internal/pack"
	"github.com/jmerrifield20/sundew/internal/persona"
	"github.com/jmerrifield20/sundew/internal/session"
	"github.com/jmerrifield20/sundew/internal/storage"
	"github.com/jmerrifield20/sundew/pkg/mcpmanifest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	srv     *Server
	router  *gin.Engine
	engine  *persona.Engine
	tracker *session.Tracker
	store   *storage.MemoryStore
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	p := persona.Derive(20240611)
	engine := persona.NewEngine(p, persona.NewCache(pack.Build(p)), nil)

	c, err := classify.New(classify.DefaultConfig())
	if err != nil {
		t.Fatalf("classify.New: %v", err)
	}
	store := storage.NewMemoryStore()
	tr := session.New(session.Config{}, c, store, zap.NewNop())

	srv := New(engine, tr, cfg, zap.NewNop())
	return &fixture{srv: srv, router: srv.Router(), engine: engine, tracker: tr, store: store}
}

func (f *fixture) do(method, path, body string, h http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range h {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) rpc(t *testing.T, body string) (*httptest.ResponseRecorder, rpcResponse) {
	t.Helper()
	w := f.do(http.MethodPost, "/mcp", body, http.Header{"Content-Type": {"application/json"}})
	var resp rpcResponse
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode JSON-RPC response %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func (f *fixture) onlySession(t *testing.T) session.Snapshot {
	t.Helper()
	list := f.tracker.List()
	if len(list) != 1 {
		t.Fatalf("expected 1 session, got %d", len(list))
	}
	snap, err := f.tracker.Get(list[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return snap
}

func TestUnknownPath_servesNotFoundAndRecords(t *testing.T) {
	f := newFixture(t, Config{})
	w := f.do(http.MethodGet, "/definitely/not/here", "", nil)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	want := f.engine.NotFound()
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, want.ContentType) {
		t.Fatalf("expected content type %q, got %q", want.ContentType, ct)
	}
	if strings.Contains(w.Body.String(), "{{") {
		t.Fatalf("placeholders left in body: %s", w.Body.String())
	}
	if got := w.Header().Get("Server"); got != f.engine.Persona().ServerHeader {
		t.Fatalf("expected Server %q, got %q", f.engine.Persona().ServerHeader, got)
	}

	snap := f.onlySession(t)
	if len(snap.Events) != 1 || snap.Events[0].Path != "/definitely/not/here" {
		t.Fatalf("expected the request recorded, got %+v", snap.Events)
	}
	if snap.Events[0].Transport != event.TransportHTTP {
		t.Fatalf("expected HTTP transport, got %s", snap.Events[0].Transport)
	}
}

func TestDiscoveryArtifacts(t *testing.T) {
	f := newFixture(t, Config{})
	for _, path := range pack.DiscoveryPaths {
		w := f.do(http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
		if strings.Contains(w.Body.String(), "{{") {
			t.Errorf("%s: placeholders left in body", path)
		}
	}

	head := f.do(http.MethodHead, "/robots.txt", "", nil)
	if head.Code != http.StatusOK || head.Body.Len() != 0 {
		t.Fatalf("expected bodiless 200 for HEAD, got %d with %d bytes", head.Code, head.Body.Len())
	}
}

func TestPersonaHeaders(t *testing.T) {
	f := newFixture(t, Config{})
	w := f.do(http.MethodGet, "/robots.txt", "", nil)
	for k, v := range f.engine.Persona().ExtraHeaders {
		got := w.Header().Get(k)
		if got == "" || strings.Contains(got, "{{") {
			t.Errorf("header %s: expected %q rendered, got %q", k, v, got)
		}
	}
}

func TestDiscoveryProbe_classifiedAutomated(t *testing.T) {
	f := newFixture(t, Config{})
	h := http.Header{"User-Agent": {"curl/8.4.0"}}
	f.do(http.MethodGet, "/.well-known/ai-plugin.json", "", h)
	f.do(http.MethodGet, "/openapi.json", "", h)

	snap := f.onlySession(t)
	r, err := f.tracker.Estimate(snap.ID)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if r.Label != classify.Automated {
		t.Fatalf("expected automated, got %s (%+v)", r.Label, r.Scores)
	}
}

func TestMCP_initializeIsProtocolNative(t *testing.T) {
	f := newFixture(t, Config{})
	w, resp := f.rpc(t, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`)
	if w.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("expected result, got %d %+v", w.Code, resp.Error)
	}

	var res mcpmanifest.InitializeResult
	b, _ := json.Marshal(resp.Result)
	if err := json.Unmarshal(b, &res); err != nil {
		t.Fatalf("decode initialize result: %v", err)
	}
	if res.ProtocolVersion != mcpmanifest.ProtocolVersion || res.ServerInfo.Name != f.engine.Persona().MCPServerName {
		t.Fatalf("unexpected initialize result: %+v", res)
	}

	snap := f.onlySession(t)
	if w.Header().Get("Mcp-Session-Id") != snap.ID {
		t.Fatalf("expected Mcp-Session-Id %s, got %q", snap.ID, w.Header().Get("Mcp-Session-Id"))
	}
	if snap.Events[0].Transport != event.TransportProtocol || snap.Events[0].Path != "initialize" {
		t.Fatalf("expected protocol event for initialize, got %+v", snap.Events[0])
	}
	r, _ := f.tracker.Estimate(snap.ID)
	if r.Label != classify.AIAgent || r.Scores.ProtocolNative != 1 {
		t.Fatalf("expected ai_agent, got %+v", r)
	}
}

func TestMCP_toolsListAndCall(t *testing.T) {
	f := newFixture(t, Config{})
	_, resp := f.rpc(t, `{"jsonrpc":"2.0","id":"a","method":"tools/list"}`)
	if resp.Error != nil {
		t.Fatalf("tools/list: %+v", resp.Error)
	}
	var list mcpmanifest.ToolsListResult
	b, _ := json.Marshal(resp.Result)
	if err := json.Unmarshal(b, &list); err != nil || len(list.Tools) == 0 {
		t.Fatalf("expected tools, got %s (%v)", b, err)
	}
	prefix := f.engine.Persona().MCPToolPrefix
	for _, tool := range list.Tools {
		if !strings.HasPrefix(tool.Name, prefix) {
			t.Errorf("tool %s lacks prefix %s", tool.Name, prefix)
		}
	}

	call := `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"` + list.Tools[0].Name + `","arguments":{}}}`
	_, resp = f.rpc(t, call)
	var res mcpmanifest.CallToolResult
	b, _ = json.Marshal(resp.Result)
	if err := json.Unmarshal(b, &res); err != nil {
		t.Fatalf("decode tools/call: %v", err)
	}
	if res.IsError || len(res.Content) != 1 || !json.Valid([]byte(res.Content[0].Text)) {
		t.Fatalf("expected JSON tool output, got %+v", res)
	}

	_, resp = f.rpc(t, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"rm_rf"}}`)
	b, _ = json.Marshal(resp.Result)
	res = mcpmanifest.CallToolResult{}
	_ = json.Unmarshal(b, &res)
	if !res.IsError {
		t.Fatalf("expected isError for unknown tool, got %+v", res)
	}

	_, resp = f.rpc(t, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{}}`)
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %+v", resp.Error)
	}

	if snap := f.onlySession(t); len(snap.Events) != 4 {
		t.Fatalf("expected 4 recorded messages, got %d", len(snap.Events))
	}
}

func TestMCP_errorsAndNotifications(t *testing.T) {
	f := newFixture(t, Config{})

	w, _ := f.rpc(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for notification, got %d", w.Code)
	}

	_, resp := f.rpc(t, `{"jsonrpc":"2.0","id":9,"method":"resources/list"}`)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", resp)
	}

	_, resp = f.rpc(t, `{"jsonrpc":`)
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", resp)
	}

	_, resp = f.rpc(t, `{"id":1,"method":"initialize"}`)
	if resp.Error == nil || resp.Error.Code != codeInvalidRequest {
		t.Fatalf("expected invalid request, got %+v", resp)
	}

	snap := f.onlySession(t)
	if len(snap.Events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(snap.Events))
	}
	if snap.Events[2].Transport != event.TransportHTTP || snap.Events[2].Path != "/mcp" {
		t.Fatalf("unparseable body should be an HTTP event, got %+v", snap.Events[2])
	}
}

func TestMCP_oversizedBody(t *testing.T) {
	f := newFixture(t, Config{MaxBodyBytes: 32})
	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"pad":"` + strings.Repeat("x", 200) + `"}}`
	_, resp := f.rpc(t, body)
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("expected parse error for oversized body, got %+v", resp)
	}
	snap := f.onlySession(t)
	if len(snap.Events[0].Body) != 32 || snap.Events[0].Transport != event.TransportHTTP {
		t.Fatalf("expected truncated HTTP event, got %+v", snap.Events[0])
	}
}

func TestMCP_deleteClosesSession(t *testing.T) {
	f := newFixture(t, Config{})
	f.rpc(t, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	w := f.do(http.MethodDelete, "/mcp", "", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	vs := f.store.Verdicts()
	if len(vs) != 1 {
		t.Fatalf("expected one stored verdict, got %d", len(vs))
	}
	if vs[0].Label != classify.AIAgent || vs[0].Reason != session.ReasonClosed || vs[0].EventCount != 2 {
		t.Fatalf("unexpected verdict: %+v", vs[0])
	}

	// The next message starts a new session.
	f.rpc(t, `{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	if n := len(f.tracker.List()); n != 2 {
		t.Fatalf("expected a second session, got %d", n)
	}
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, Config{RateLimitRPS: 1, RateLimitBurst: 1})
	if w := f.do(http.MethodGet, "/robots.txt", "", nil); w.Code != http.StatusOK {
		t.Fatalf("expected first request through, got %d", w.Code)
	}
	w := f.do(http.MethodGet, "/robots.txt", "", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After, got %q", w.Header().Get("Retry-After"))
	}
	if w.Header().Get("Server") != f.engine.Persona().ServerHeader {
		t.Fatal("expected persona-styled 429")
	}
	if snap := f.onlySession(t); len(snap.Events) != 2 {
		t.Fatalf("throttled requests must still be recorded, got %d events", len(snap.Events))
	}
}

func TestVisitorKey(t *testing.T) {
	a := VisitorKey("203.0.113.5", "curl/8.4.0")
	if a != VisitorKey("203.0.113.5", "curl/8.4.0") {
		t.Fatal("key should be stable")
	}
	if a == VisitorKey("203.0.113.5", "python-requests/2.31") {
		t.Fatal("different user agents should get different keys")
	}
	if !strings.HasPrefix(a, "203.0.113.5|") || len(a) != len("203.0.113.5|")+8 {
		t.Fatalf("unexpected key shape %q", a)
	}
}

func TestWait(t *testing.T) {
	if err := wait(context.Background(), 0); err != nil {
		t.Fatalf("zero wait: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := wait(ctx, time.Hour); err == nil {
		t.Fatal("expected cancellation error")
	}
	if time.Since(start) > time.Second {
		t.Fatal("wait should return as soon as the context is done")
	}
}

func TestLatencyApplied(t *testing.T) {
	f := newFixture(t, Config{ApplyLatency: true})
	start := time.Now()
	w := f.do(http.MethodGet, "/robots.txt", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	min := time.Duration(f.engine.Persona().LatencyMinMS) * time.Millisecond
	if elapsed := time.Since(start); elapsed < min {
		t.Fatalf("expected at least %v delay, got %v", min, elapsed)
	}
}
