package monitor

import (
	"context"
	"encoding/json"
	"errors"
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
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "monitor-test-secret-0123456789"

// ── Stubs ────────────────────────────────────────────────────────────────────

type stubVerdicts struct {
	verdicts []session.Verdict
	err      error
	gotLimit int
	gotLabel string
}

func (s *stubVerdicts) Recent(_ context.Context, limit int, label string) ([]session.Verdict, error) {
	s.gotLimit, s.gotLabel = limit, label
	return s.verdicts, s.err
}

type failingSink struct{}

func (failingSink) Emit(context.Context, session.Verdict) error {
	return errors.New("sink down")
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func newEngine() *persona.Engine {
	p := persona.Derive(7)
	return persona.NewEngine(p, persona.NewCache(pack.Build(p)), nil)
}

func newTracker(t *testing.T, sink session.Sink) *session.Tracker {
	t.Helper()
	c, err := classify.New(classify.DefaultConfig())
	if err != nil {
		t.Fatalf("classify.New: %v", err)
	}
	return session.New(session.Config{Retention: time.Hour}, c, sink, zap.NewNop())
}

func record(t *testing.T, tr *session.Tracker, path string, h http.Header) string {
	t.Helper()
	id, err := tr.Record(event.Event{
		Key:       "198.51.100.7|0badf00d",
		Timestamp: time.Now(),
		Method:    http.MethodGet,
		Path:      path,
		Headers:   h,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	return id
}

func do(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	h := New(newTracker(t, storage.NewMemoryStore()), newEngine(), nil, nil, Config{}, zap.NewNop())
	w := do(h.Router(), http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := New(newTracker(t, storage.NewMemoryStore()), newEngine(), nil, nil, Config{}, zap.NewNop())
	w := do(h.Router(), http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "sundew_") {
		t.Fatalf("expected sundew_ metrics in exposition, got %q", w.Body.String())
	}
}

func TestListAndGetSession(t *testing.T) {
	tr := newTracker(t, storage.NewMemoryStore())
	id := record(t, tr, "/.well-known/mcp.json", http.Header{"User-Agent": {"python-requests/2.31"}})
	record(t, tr, "/openapi.json", http.Header{"User-Agent": {"python-requests/2.31"}})

	r := New(tr, newEngine(), nil, nil, Config{}, zap.NewNop()).Router()

	w := do(r, http.MethodGet, "/api/v1/sessions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list struct {
		Sessions []session.Summary `json:"sessions"`
		Count    int               `json:"count"`
	}
	decode(t, w, &list)
	if list.Count != 1 || list.Sessions[0].ID != id || list.Sessions[0].EventCount != 2 {
		t.Fatalf("expected one session %s with 2 events, got %+v", id, list)
	}

	w = do(r, http.MethodGet, "/api/v1/sessions/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var detail sessionDetail
	decode(t, w, &detail)
	if detail.Session.State != session.StateOpen {
		t.Fatalf("expected open session, got %v", detail.Session.State)
	}
	if len(detail.Session.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(detail.Session.Events))
	}
	if detail.Estimate.Label == "" {
		t.Fatal("expected an estimated label")
	}
	rules := map[string]int{}
	for _, f := range detail.Findings {
		rules[f.Rule]++
	}
	if rules["bot_user_agent"] != 1 {
		t.Fatalf("expected bot_user_agent reported once, got %+v", detail.Findings)
	}
}

func TestGetSession_notFound(t *testing.T) {
	r := New(newTracker(t, storage.NewMemoryStore()), newEngine(), nil, nil, Config{}, zap.NewNop()).Router()
	w := do(r, http.MethodGet, "/api/v1/sessions/does-not-exist", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCloseSession(t *testing.T) {
	store := storage.NewMemoryStore()
	tr := newTracker(t, store)
	id := record(t, tr, "/", http.Header{"User-Agent": {"curl/8.4.0"}})
	r := New(tr, newEngine(), nil, nil, Config{}, zap.NewNop()).Router()

	w := do(r, http.MethodPost, "/api/v1/sessions/"+id+"/close", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Verdict session.Verdict `json:"verdict"`
		Flushed bool            `json:"flushed"`
	}
	decode(t, w, &resp)
	if resp.Verdict.SessionID != id || resp.Verdict.Reason != session.ReasonClosed || !resp.Flushed {
		t.Fatalf("expected flushed closed verdict for %s, got %+v", id, resp)
	}
	if n := len(store.Verdicts()); n != 1 {
		t.Fatalf("expected 1 stored verdict, got %d", n)
	}

	// Closing again returns the same verdict without a second emit.
	w = do(r, http.MethodPost, "/api/v1/sessions/"+id+"/close", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat close, got %d", w.Code)
	}
	if n := len(store.Verdicts()); n != 1 {
		t.Fatalf("expected 1 stored verdict after repeat, got %d", n)
	}
}

func TestCloseSession_sinkFailure(t *testing.T) {
	tr := newTracker(t, failingSink{})
	id := record(t, tr, "/", nil)
	r := New(tr, newEngine(), nil, nil, Config{}, zap.NewNop()).Router()

	w := do(r, http.MethodPost, "/api/v1/sessions/"+id+"/close", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	snap, err := tr.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.State != session.StateFinalized || snap.Flushed {
		t.Fatalf("expected finalized unflushed session, got state=%v flushed=%v", snap.State, snap.Flushed)
	}
}

func TestCloseSession_notFound(t *testing.T) {
	r := New(newTracker(t, storage.NewMemoryStore()), newEngine(), nil, nil, Config{}, zap.NewNop()).Router()
	w := do(r, http.MethodPost, "/api/v1/sessions/nope/close", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetPersona(t *testing.T) {
	engine := newEngine()
	r := New(newTracker(t, storage.NewMemoryStore()), engine, nil, nil, Config{}, zap.NewNop()).Router()
	w := do(r, http.MethodGet, "/api/v1/persona", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Artifacts int `json:"artifacts"`
	}
	decode(t, w, &resp)
	if resp.Artifacts != engine.Cache().Len() {
		t.Fatalf("expected %d artifacts, got %d", engine.Cache().Len(), resp.Artifacts)
	}
}

func TestListVerdicts(t *testing.T) {
	tr := newTracker(t, storage.NewMemoryStore())

	r := New(tr, newEngine(), nil, nil, Config{}, zap.NewNop()).Router()
	if w := do(r, http.MethodGet, "/api/v1/verdicts", ""); w.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without a store, got %d", w.Code)
	}

	vs := &stubVerdicts{verdicts: []session.Verdict{{SessionID: "a", Label: classify.AIAgent}}}
	r = New(tr, newEngine(), vs, nil, Config{}, zap.NewNop()).Router()
	w := do(r, http.MethodGet, "/api/v1/verdicts?limit=5&label=ai_agent", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if vs.gotLimit != 5 || vs.gotLabel != "ai_agent" {
		t.Fatalf("expected limit=5 label=ai_agent, got limit=%d label=%q", vs.gotLimit, vs.gotLabel)
	}

	do(r, http.MethodGet, "/api/v1/verdicts?limit=-3", "")
	if vs.gotLimit != 50 {
		t.Fatalf("expected default limit 50, got %d", vs.gotLimit)
	}

	vs.err = errors.New("db down")
	w = do(r, http.MethodGet, "/api/v1/verdicts", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestAuth(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, "sundew", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	tr := newTracker(t, storage.NewMemoryStore())
	id := record(t, tr, "/", nil)
	r := New(tr, newEngine(), nil, issuer, Config{}, zap.NewNop()).Router()

	if w := do(r, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("expected /healthz open, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/sessions", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/sessions", "garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", w.Code)
	}

	readOnly, err := issuer.Issue("analyst", nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if w := do(r, http.MethodGet, "/api/v1/sessions", readOnly); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/v1/sessions/"+id+"/close", readOnly); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without close scope, got %d", w.Code)
	}

	operator, err := issuer.Issue("operator", []string{ScopeClose})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if w := do(r, http.MethodPost, "/api/v1/sessions/"+id+"/close", operator); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with close scope, got %d", w.Code)
	}
}

func TestTokenIssuer(t *testing.T) {
	if _, err := NewTokenIssuer("short", "sundew", 0); err == nil {
		t.Fatal("expected error for short secret")
	}

	issuer, _ := NewTokenIssuer(testSecret, "sundew", time.Hour)
	tok, err := issuer.Issue("op", []string{ScopeClose})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := issuer.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "op" || !claims.HasScope(ScopeClose) {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	other, _ := NewTokenIssuer(testSecret, "someone-else", time.Hour)
	if _, err := other.Verify(tok); err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}
	wrongKey, _ := NewTokenIssuer("a-completely-different-secret", "sundew", time.Hour)
	if _, err := wrongKey.Verify(tok); err == nil {
		t.Fatal("expected signature mismatch to fail")
	}

	expired, _ := NewTokenIssuer(testSecret, "sundew", -time.Minute)
	old, _ := expired.Issue("op", nil)
	if _, err := issuer.Verify(old); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestCORS(t *testing.T) {
	r := New(newTracker(t, storage.NewMemoryStore()), newEngine(), nil, nil,
		Config{CORSOrigins: []string{"https://ops.example.com"}}, zap.NewNop()).Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}
}
