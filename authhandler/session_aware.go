package authhandler

import (
	"context"

	"github.com/openanp/anp-wba-go/session"
)

// SessionAwareRegistry layers session issuance on top of a base Registry: a
// successful DID/Bearer/Token verification mints a session id, which the
// caller may present on later requests via the Session handler instead of
// repeating the full handshake.
type SessionAwareRegistry struct {
	base        *Registry
	sessions    *SessionHandler
	manager     *session.Manager
	serviceDID  string
}

// NewSessionAwareRegistry wraps base with session issuance backed by manager.
// serviceDID identifies this process's own DID, recorded as the session's
// target.
func NewSessionAwareRegistry(base *Registry, manager *session.Manager, serviceDID string) *SessionAwareRegistry {
	r := &SessionAwareRegistry{
		base:       base,
		sessions:   NewSessionHandler(manager),
		manager:    manager,
		serviceDID: serviceDID,
	}
	return r
}

// Verify dispatches a Session header directly to the session store; any other
// scheme is verified by the base registry, minting a session on success.
func (r *SessionAwareRegistry) Verify(ctx context.Context, header string, reqCtx RequestContext) (*Result, error) {
	if r.sessions.CanHandle(header) {
		return r.sessions.Verify(ctx, header, reqCtx)
	}

	result, err := r.base.Verify(ctx, header, reqCtx)
	if err != nil || result == nil || !result.Success {
		return result, err
	}

	sessionID := r.manager.Create(result.DID, r.serviceDID, "auto")
	if result.Data == nil {
		result.Data = make(map[string]any)
	}
	result.Data["session_id"] = sessionID
	return result, nil
}
