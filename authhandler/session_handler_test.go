package authhandler

import (
	"context"
	"testing"
	"time"

	"github.com/openanp/anp-wba-go/session"
)

func TestSessionHandler_CanHandle(t *testing.T) {
	h := NewSessionHandler(session.NewManager(time.Hour))

	for _, header := range []string{"Session abc", "SessionID abc"} {
		if !h.CanHandle(header) {
			t.Errorf("CanHandle(%q) = false, want true", header)
		}
	}
	if h.CanHandle("Bearer abc") {
		t.Error("CanHandle() matched an unrelated scheme")
	}
}

func TestSessionHandler_VerifyValidSession(t *testing.T) {
	mgr := session.NewManager(time.Hour)
	id := mgr.Create("did:wba:example.com:wba:user:0000000000000001", "did:wba:server.com:wba:user:0000000000000002", "didwba")

	h := NewSessionHandler(mgr)

	result, err := h.Verify(context.Background(), "Session "+id, RequestContext{})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !result.Success || result.DID != "did:wba:example.com:wba:user:0000000000000001" {
		t.Fatalf("Verify() = %+v, want success with caller DID", result)
	}

	result, err = h.Verify(context.Background(), "SessionID "+id, RequestContext{})
	if err != nil || !result.Success {
		t.Fatalf("Verify() with SessionID prefix = %+v, %v", result, err)
	}
}

func TestSessionHandler_VerifyUnknownSession(t *testing.T) {
	h := NewSessionHandler(session.NewManager(time.Hour))
	result, err := h.Verify(context.Background(), "Session does-not-exist", RequestContext{})
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if result.Success {
		t.Fatal("Verify() succeeded for an unknown session id")
	}
}
