package authhandler

import (
	"context"
	"strings"

	"github.com/openanp/anp-wba-go/session"
)

// SessionHandler verifies "Session <id>" and "SessionID <id>" headers against
// a session.Manager.
type SessionHandler struct {
	manager *session.Manager
}

// NewSessionHandler wraps manager as a Session Authorization handler.
func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

func (h *SessionHandler) Prefix() string { return "Session " }

func (h *SessionHandler) CanHandle(header string) bool {
	return strings.HasPrefix(header, "Session ") || strings.HasPrefix(header, "SessionID ")
}

func (h *SessionHandler) Verify(_ context.Context, header string, _ RequestContext) (*Result, error) {
	var id string
	switch {
	case strings.HasPrefix(header, "SessionID "):
		id = strings.TrimSpace(strings.TrimPrefix(header, "SessionID "))
	case strings.HasPrefix(header, "Session "):
		id = strings.TrimSpace(strings.TrimPrefix(header, "Session "))
	default:
		return &Result{Success: false, Message: "not a session header"}, nil
	}

	rec, ok := h.manager.Validate(id)
	if !ok {
		return &Result{Success: false, Message: "invalid or expired session"}, nil
	}

	return &Result{
		Success: true,
		Message: "ok",
		DID:     rec.CallerDID,
		Data: map[string]any{
			"session_id": rec.SessionID,
			"target_did": rec.TargetDID,
		},
	}, nil
}
