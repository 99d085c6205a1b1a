package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/openanp/anp-wba-go/contact"
	"github.com/openanp/anp-wba-go/didwba"
	"github.com/openanp/anp-wba-go/tokenstore"
)

// newTestIdentity builds a ready-to-use DID document, private key, and
// Authenticator for hostname, with no file I/O.
func newTestIdentity(t *testing.T, hostname string) (*didwba.DIDWBADocument, *didwba.Authenticator) {
	t.Helper()
	doc, key, err := didwba.CreateDIDWBADocument(hostname, nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateDIDWBADocument() error = %v", err)
	}
	auth, err := didwba.NewAuthenticator(didwba.WithDIDMaterial(doc, key))
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}
	return doc, auth
}

func TestFetch_OneWay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			t.Error("server received a request with no Authorization header")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	_, auth := newTestIdentity(t, "caller.example")
	c := New(auth, "")

	resp, err := c.Fetch(context.Background(), http.MethodGet, server.URL+"/ping", nil, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Fetch() status = %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Fatalf("Fetch() body = %q", resp.Body)
	}
	if resp.PeerVerified {
		t.Fatal("Fetch() must not claim peer verification with no verifier configured")
	}
}

func TestFetchTwoWay_VerifiesReciprocalHeaderAndCachesToken(t *testing.T) {
	callerHost := "caller.example"
	callerDoc, callerAuth := newTestIdentity(t, callerHost)

	var serverAuth *didwba.Authenticator
	var serverDoc *didwba.DIDWBADocument
	var serverVerifier *didwba.DidWbaVerifier

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inboundAuth := r.Header.Get("Authorization")
		domain := hostOnly(t, r.Host)

		callerDID, err := serverVerifier.VerifyDIDSignatureOnly(r.Context(), inboundAuth, domain)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		reply, err := serverAuth.GenerateTwoWayHeader("https://"+domain, callerDID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Authorization", reply["Authorization"])
		w.Header().Set(accessTokenHeader, "server-issued-token")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	serverDoc, serverAuth = newTestIdentity(t, "server.example")

	var err error
	serverVerifier, err = didwba.NewDidWbaVerifier(didwba.DidWbaVerifierConfig{
		ResolveDIDDocumentFunc: func(_ context.Context, did string) (*didwba.DIDWBADocument, error) {
			if did == callerDoc.ID {
				return callerDoc, nil
			}
			return nil, didwba.ErrDIDResolution
		},
	})
	if err != nil {
		t.Fatalf("NewDidWbaVerifier() error = %v", err)
	}

	clientVerifier, err := didwba.NewDidWbaVerifier(didwba.DidWbaVerifierConfig{
		ResolveDIDDocumentFunc: func(_ context.Context, did string) (*didwba.DIDWBADocument, error) {
			if did == serverDoc.ID {
				return serverDoc, nil
			}
			return nil, didwba.ErrDIDResolution
		},
	})
	if err != nil {
		t.Fatalf("NewDidWbaVerifier() error = %v", err)
	}

	tokens := tokenstore.NewAgentTokens()
	contacts := contact.NewBook(callerDoc.ID)

	c := New(callerAuth, callerDoc.ID,
		WithPeerVerifier(clientVerifier),
		WithTokenStore(tokens),
		WithContactBook(contacts),
	)

	resp, err := c.FetchTwoWay(context.Background(), http.MethodGet, server.URL+"/agent", serverDoc.ID, nil, nil)
	if err != nil {
		t.Fatalf("FetchTwoWay() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("FetchTwoWay() status = %d", resp.StatusCode)
	}
	if !resp.PeerVerified {
		t.Fatal("FetchTwoWay() did not verify the server's reciprocal header")
	}
	if resp.PeerDID != serverDoc.ID {
		t.Fatalf("FetchTwoWay() PeerDID = %q, want %q", resp.PeerDID, serverDoc.ID)
	}

	rec, ok := tokens.ToRemote.GetToken(callerDoc.ID, serverDoc.ID)
	if !ok {
		t.Fatal("FetchTwoWay() did not store the server-issued token")
	}
	if rec.Token != "server-issued-token" {
		t.Fatalf("stored token = %q", rec.Token)
	}

	if _, ok := contacts.GetContact(serverDoc.ID); !ok {
		t.Fatal("FetchTwoWay() did not record the peer as a contact")
	}
}

func TestFetch_RetriesOnceOn401(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	_, auth := newTestIdentity(t, "caller.example")
	c := New(auth, "")

	resp, err := c.Fetch(context.Background(), http.MethodGet, server.URL+"/ping", nil, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Fetch() status = %d, want 200 after retry", resp.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("server received %d requests, want exactly 2 (one retry)", calls)
	}
}

func TestFetch_DoesNotRetryTwiceOnRepeated401(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, auth := newTestIdentity(t, "caller.example")
	c := New(auth, "")

	resp, err := c.Fetch(context.Background(), http.MethodGet, server.URL+"/ping", nil, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Fetch() status = %d, want 401", resp.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("server received %d requests, want exactly 2", calls)
	}
}

func TestBroadcastAPI_FansOutToAllTargets(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	_, auth := newTestIdentity(t, "caller.example")
	c := New(auth, "")

	targets := make([]BroadcastTarget, 0, 20)
	for i := 0; i < 20; i++ {
		targets = append(targets, BroadcastTarget{URL: server.URL + "/broadcast"})
	}

	results := c.BroadcastAPI(context.Background(), http.MethodGet, targets, nil, nil)
	if len(results) != len(targets) {
		t.Fatalf("BroadcastAPI() returned %d results, want %d", len(results), len(targets))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("BroadcastAPI() result[%d] error = %v", i, r.Err)
		}
		if r.Resp == nil || r.Resp.StatusCode != http.StatusOK {
			t.Fatalf("BroadcastAPI() result[%d] = %+v", i, r.Resp)
		}
	}
	if atomic.LoadInt32(&calls) != int32(len(targets)) {
		t.Fatalf("server saw %d calls, want %d", calls, len(targets))
	}
}

func TestBroadcastAPI_OneFailureDoesNotBlockOthers(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()

	_, auth := newTestIdentity(t, "caller.example")
	c := New(auth, "")

	targets := []BroadcastTarget{
		{URL: "http://127.0.0.1:1/unreachable"},
		{URL: good.URL + "/ok"},
	}

	results := c.BroadcastAPI(context.Background(), http.MethodGet, targets, nil, nil)
	if results[0].Err == nil {
		t.Fatal("BroadcastAPI() expected an error for the unreachable target")
	}
	if results[1].Err != nil || results[1].Resp.StatusCode != http.StatusOK {
		t.Fatalf("BroadcastAPI() reachable target result = %+v", results[1])
	}
}

func TestEncodeBody(t *testing.T) {
	t.Run("nil body", func(t *testing.T) {
		r, err := encodeBody(nil, map[string]string{})
		if err != nil || r != nil {
			t.Fatalf("encodeBody(nil) = %v, %v", r, err)
		}
	})

	t.Run("byte slice sets content type", func(t *testing.T) {
		headers := map[string]string{}
		r, err := encodeBody([]byte("raw"), headers)
		if err != nil {
			t.Fatalf("encodeBody() error = %v", err)
		}
		data, _ := io.ReadAll(r)
		if string(data) != "raw" {
			t.Fatalf("encodeBody() data = %q", data)
		}
		if headers["Content-Type"] != "application/json" {
			t.Fatalf("encodeBody() did not set default content type: %+v", headers)
		}
	})

	t.Run("io.Reader passed through untouched", func(t *testing.T) {
		headers := map[string]string{}
		src := bytes.NewBufferString("stream")
		r, err := encodeBody(src, headers)
		if err != nil {
			t.Fatalf("encodeBody() error = %v", err)
		}
		if r != src {
			t.Fatal("encodeBody() should pass an io.Reader through unchanged")
		}
		if _, ok := headers["Content-Type"]; ok {
			t.Fatal("encodeBody() must not set content type for a raw io.Reader")
		}
	})

	t.Run("struct is marshaled as JSON", func(t *testing.T) {
		headers := map[string]string{}
		type payload struct {
			Name string `json:"name"`
		}
		r, err := encodeBody(payload{Name: "ping"}, headers)
		if err != nil {
			t.Fatalf("encodeBody() error = %v", err)
		}
		data, _ := io.ReadAll(r)
		var got payload
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal encoded body: %v", err)
		}
		if got.Name != "ping" {
			t.Fatalf("encodeBody() round-trip = %+v", got)
		}
		if headers["Content-Type"] != "application/json" {
			t.Fatal("encodeBody() did not set default content type for a struct body")
		}
	})
}

func TestHostOf(t *testing.T) {
	cases := []struct {
		target string
		want   string
	}{
		{"https://example.com/path", "example.com"},
		{"https://example.com:9527/path", "example.com"},
		{"http://localhost:8080", "localhost"},
	}
	for _, tc := range cases {
		got, err := hostOf(tc.target)
		if err != nil {
			t.Fatalf("hostOf(%q) error = %v", tc.target, err)
		}
		if got != tc.want {
			t.Errorf("hostOf(%q) = %q, want %q", tc.target, got, tc.want)
		}
	}
}

// hostOnly strips the port from an r.Host-style host:port string, mirroring
// how middleware.serviceHostname derives the service domain the verifier
// checks a signature against.
func hostOnly(t *testing.T, hostport string) string {
	t.Helper()
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}
