package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openanp/anp-wba-go/agent"
	"github.com/openanp/anp-wba-go/authhandler"
)

func newEchoServer(t *testing.T, router *agent.Router, registry *authhandler.Registry) http.Handler {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		did, _ := CallerDID(r.Context())
		w.Header().Set("X-Caller-DID", did)
		w.WriteHeader(http.StatusOK)
	})
	return New(Config{Registry: registry, Router: router})(next)
}

func TestNew_ExemptPathSkipsAuth(t *testing.T) {
	router := agent.NewRouter()
	registry := authhandler.NewRegistry()
	h := newEchoServer(t, router, registry)

	req := httptest.NewRequest(http.MethodGet, "/wba/user/aaaaaaaaaaaaaaaa/did.json", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestNew_CannotInferTarget(t *testing.T) {
	router := agent.NewRouter()
	registry := authhandler.NewRegistry()
	h := newEchoServer(t, router, registry)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestNew_HostedDIDRejectedBeforeAuthCheck(t *testing.T) {
	router := agent.NewRouter()
	registry := authhandler.NewRegistry()
	h := newEchoServer(t, router, registry)

	// No Authorization header at all -- a hosted DID must still be rejected
	// with 403, not 401, since hosted DIDs are never dispatched to a handler.
	req := httptest.NewRequest(http.MethodGet, "/agent/api/aaaaaaaaaaaaaaaa/echo", nil)
	req.URL.RawQuery = "resp_did=" + "did%3Awba%3Aexample.com%3Awba%3Ahostuser%3Aaaaaaaaaaaaaaaaa"
	req.Host = "example.com"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestNew_MissingAuthorizationHeader(t *testing.T) {
	router := agent.NewRouter()
	registry := authhandler.NewRegistry()
	a := agent.NewBaseAgent("did:wba:example.com:wba:user:aaaaaaaaaaaaaaaa", "demo", nil)
	router.Register(a)

	h := newEchoServer(t, router, registry)

	req := httptest.NewRequest(http.MethodGet, "/agent/api/aaaaaaaaaaaaaaaa/echo", nil)
	req.Host = "example.com"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestNew_AgentNotFound(t *testing.T) {
	router := agent.NewRouter()
	registry := authhandler.NewRegistry()
	h := newEchoServer(t, router, registry)

	req := httptest.NewRequest(http.MethodGet, "/agent/api/aaaaaaaaaaaaaaaa/echo", nil)
	req.Host = "example.com"
	req.Header.Set("Authorization", "Bearer sometoken")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestIsExempt(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/wba/user/abc/did.json", true},
		{"/wba/hostuser/abc/did.json", true},
		{"/publisher/agents", true},
		{"/docs", true},
		{"/agent/api/abc/echo", false},
	}
	for _, tt := range tests {
		if got := isExempt(tt.path, DefaultExemptPaths); got != tt.want {
			t.Errorf("isExempt(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestServiceHostname(t *testing.T) {
	tests := []struct{ host, want string }{
		{"example.com:8080", "example.com"},
		{"example.com", "example.com"},
	}
	for _, tt := range tests {
		if got := serviceHostname(tt.host); got != tt.want {
			t.Errorf("serviceHostname(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}
