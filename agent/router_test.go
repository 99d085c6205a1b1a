package agent

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

type stubAPI struct {
	resp *APIResponse
	err  error
}

func (s stubAPI) HandleAPI(_ context.Context, _ string, _ map[string]any, _ *http.Request) (*APIResponse, error) {
	return s.resp, s.err
}

func TestRouter_RegisterDuplicate(t *testing.T) {
	r := NewRouter()
	a := NewBaseAgent("did:wba:example.com:wba:user:aaaaaaaaaaaaaaaa", "a", nil)
	if err := r.Register(a); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(a); !errors.Is(err, ErrAgentExists) {
		t.Fatalf("Register() duplicate error = %v, want ErrAgentExists", err)
	}
}

func TestRouter_GetUnregister(t *testing.T) {
	r := NewRouter()
	a := NewBaseAgent("did:wba:example.com:wba:user:aaaaaaaaaaaaaaaa", "a", nil)
	r.Register(a)

	if _, ok := r.Get(a.DID()); !ok {
		t.Fatal("Get() after Register() = not found")
	}
	r.Unregister(a.DID())
	if _, ok := r.Get(a.DID()); ok {
		t.Fatal("Get() after Unregister() = found")
	}
}

func TestRouter_RouteAPICall(t *testing.T) {
	r := NewRouter()
	a := NewBaseAgent("did:wba:example.com:wba:user:aaaaaaaaaaaaaaaa", "a", nil).
		WithAPI(stubAPI{resp: &APIResponse{Data: "ok"}})
	r.Register(a)

	result, err := r.Route(context.Background(), "caller", a.DID(), RequestData{Type: RequestTypeAPICall, Path: "/x"}, nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result.Status != http.StatusOK {
		t.Errorf("Route() status = %d, want %d", result.Status, http.StatusOK)
	}
	if result.Body != "ok" {
		t.Errorf("Route() body = %v, want %q", result.Body, "ok")
	}
}

func TestRouter_RouteNoHandler(t *testing.T) {
	r := NewRouter()
	a := NewBaseAgent("did:wba:example.com:wba:user:aaaaaaaaaaaaaaaa", "a", nil)
	r.Register(a)

	_, err := r.Route(context.Background(), "caller", a.DID(), RequestData{Type: RequestTypeAPICall, Path: "/x"}, nil)
	if !errors.Is(err, ErrNoHandler) {
		t.Fatalf("Route() error = %v, want ErrNoHandler", err)
	}
}

func TestRouter_RouteUnknownType(t *testing.T) {
	r := NewRouter()
	a := NewBaseAgent("did:wba:example.com:wba:user:aaaaaaaaaaaaaaaa", "a", nil)
	r.Register(a)

	_, err := r.Route(context.Background(), "caller", a.DID(), RequestData{Type: "bogus"}, nil)
	if !errors.Is(err, ErrUnknownReqType) {
		t.Fatalf("Route() error = %v, want ErrUnknownReqType", err)
	}
}

func TestRouter_RouteAgentNotFound(t *testing.T) {
	r := NewRouter()
	_, err := r.Route(context.Background(), "caller", "did:wba:example.com:wba:user:missing", RequestData{Type: RequestTypeAPICall}, nil)
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("Route() error = %v, want ErrAgentNotFound", err)
	}
}

func TestRouter_RouteMessageDefaultsWildcard(t *testing.T) {
	r := NewRouter()
	var gotType string
	a := NewBaseAgent("did:wba:example.com:wba:user:aaaaaaaaaaaaaaaa", "a", nil).
		WithMessages(messagerFunc(func(_ context.Context, msgType string, _ map[string]any) (any, error) {
			gotType = msgType
			return "handled", nil
		}))
	r.Register(a)

	result, err := r.Route(context.Background(), "caller", a.DID(), RequestData{Type: RequestTypeMessage}, nil)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if gotType != "*" {
		t.Errorf("message type = %q, want wildcard", gotType)
	}
	body, ok := result.Body.(map[string]any)
	if !ok || body["anp_result"] != "handled" {
		t.Errorf("Route() body = %v, want wrapped anp_result", result.Body)
	}
}

func TestRouter_RouteGroupOpSplit(t *testing.T) {
	r := NewRouter()
	var gotOp string
	a := NewBaseAgent("did:wba:example.com:wba:user:aaaaaaaaaaaaaaaa", "a", nil).
		WithGroups(groupFunc(func(_ context.Context, op, _ string, _ map[string]any) (any, error) {
			gotOp = op
			return nil, nil
		}))
	r.Register(a)

	if _, err := r.Route(context.Background(), "caller", a.DID(), RequestData{Type: RequestTypeGroupJoin, GroupID: "g1"}, nil); err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if gotOp != "join" {
		t.Errorf("group op = %q, want %q", gotOp, "join")
	}
}

type messagerFunc func(ctx context.Context, messageType string, data map[string]any) (any, error)

func (f messagerFunc) HandleMessage(ctx context.Context, messageType string, data map[string]any) (any, error) {
	return f(ctx, messageType, data)
}

type groupFunc func(ctx context.Context, op, groupID string, data map[string]any) (any, error)

func (f groupFunc) HandleGroup(ctx context.Context, op, groupID string, data map[string]any) (any, error) {
	return f(ctx, op, groupID, data)
}
