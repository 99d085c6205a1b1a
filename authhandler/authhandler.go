// Package authhandler implements the Authorization-header handler registry:
// dispatch by header prefix to a handler that verifies an inbound header
// value. Handlers do not build outbound headers. Built-in handlers cover
// DIDWba, Bearer, Token/CustomToken, and Session.
package authhandler

import (
	"context"
	"errors"
	"strings"
)

// ErrUnsupportedAuthMethod is returned when no registered handler can handle a header.
var ErrUnsupportedAuthMethod = errors.New("authhandler: unsupported authorization method")

// Result is the outcome of verifying an inbound Authorization header.
type Result struct {
	Success bool
	Message string
	DID     string
	Data    map[string]any
}

// RequestContext carries the request-scoped information a handler needs to
// verify a header: the service domain the request targets, and the caller's
// own request URL for host-based inference.
type RequestContext struct {
	ServiceDomain string
	RequestURL    string
}

// Handler is implemented by each Authorization scheme this registry knows
// about.
type Handler interface {
	// Prefix returns the header prefix this handler claims, e.g. "DIDWba ".
	Prefix() string
	// CanHandle reports whether header matches this handler's scheme.
	CanHandle(header string) bool
	// Verify validates an inbound header and returns the authenticated identity.
	Verify(ctx context.Context, header string, reqCtx RequestContext) (*Result, error)
}

// Registry dispatches Authorization headers to the first handler whose
// CanHandle returns true.
type Registry struct {
	handlers []Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a handler. Handlers are tried in registration order.
func (r *Registry) Register(h Handler) {
	r.handlers = append(r.handlers, h)
}

// Verify dispatches header to the first matching handler.
func (r *Registry) Verify(ctx context.Context, header string, reqCtx RequestContext) (*Result, error) {
	for _, h := range r.handlers {
		if h.CanHandle(header) {
			return h.Verify(ctx, header, reqCtx)
		}
	}
	return nil, ErrUnsupportedAuthMethod
}

// prefixHandler is a helper base for handlers that dispatch purely on a
// fixed string prefix.
type prefixHandler struct {
	prefix string
}

func (p prefixHandler) Prefix() string { return p.prefix }

func (p prefixHandler) CanHandle(header string) bool {
	return strings.HasPrefix(header, p.prefix)
}

// ReservedHandler answers any header under its prefix with Unsupported,
// covering DID methods this core declines to implement (DIDKey, DIDWeb).
type ReservedHandler struct {
	prefixHandler
}

// NewReservedHandler creates a handler that rejects every header under prefix.
func NewReservedHandler(prefix string) *ReservedHandler {
	return &ReservedHandler{prefixHandler{prefix: prefix}}
}

func (h *ReservedHandler) Verify(_ context.Context, _ string, _ RequestContext) (*Result, error) {
	return &Result{Success: false, Message: "unsupported auth method: " + strings.TrimSpace(h.prefix)}, nil
}
