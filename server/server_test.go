package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cobaltline/foreman/metrics"
	"github.com/cobaltline/foreman/payment"
	"github.com/cobaltline/foreman/provider/mock"
	"github.com/cobaltline/foreman/resolve"
	"github.com/cobaltline/foreman/session"
	"github.com/cobaltline/foreman/store"
	"github.com/cobaltline/foreman/tool"
)

func newTestServer(t *testing.T, steps ...mock.Step) *Server {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	registry, err := tool.DefaultRegistry(tool.Deps{
		Store:     s,
		Resolver:  resolve.New(s, s),
		Estimator: payment.New(payment.Config{Metrics: m}),
		Metrics:   m,
	})
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	sessions, err := session.NewManager(session.Config{
		Provider: mock.New(steps...),
		Registry: registry,
		Metrics:  m,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return New(":0", sessions, promReg, slog.Default())
}

func postTurn(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/turn", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestTurnEndpoint(t *testing.T) {
	srv := newTestServer(t, mock.Text("Hello there."))

	rec := postTurn(t, srv, `{"role":"manager","caller_id":"mgr-1","message":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reply != "Hello there." {
		t.Fatalf("reply = %q", resp.Reply)
	}
}

func TestTurnEndpointValidation(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		body string
		want int
	}{
		{`not json`, http.StatusBadRequest},
		{`{"role":"manager","message":"hi"}`, http.StatusBadRequest},             // no caller
		{`{"role":"wizard","caller_id":"x","message":"hi"}`, http.StatusBadRequest}, // bad role
		{`{"role":"manager","caller_id":"x","message":""}`, http.StatusBadRequest},  // empty message
	}
	for _, c := range cases {
		if rec := postTurn(t, srv, c.body); rec.Code != c.want {
			t.Errorf("body %q: status = %d, want %d", c.body, rec.Code, c.want)
		}
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	srv := newTestServer(t, mock.Text("ok"))

	// Drive one turn so counters exist.
	postTurn(t, srv, `{"role":"manager","caller_id":"mgr-1","message":"hi"}`)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "foreman_turns_total 1") {
		t.Errorf("metrics output missing turn counter:\n%s", rec.Body.String())
	}
}
