package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// Sentinel routing errors.
var (
	ErrAgentExists    = errors.New("agent: DID already registered")
	ErrAgentNotFound  = errors.New("agent: no locally registered agent for DID")
	ErrNoHandler      = errors.New("agent: no handler for request type")
	ErrUnknownReqType = errors.New("agent: unrecognized request type")
)

// RequestData is the router's view of an inbound request body: which kind
// of operation it names and the fields that operation needs. Only the
// fields relevant to Type are populated by callers.
type RequestData struct {
	Type        string // "api_call", "message", "group_join", "group_leave", "group_message", "group_members", "group_connect"
	Path        string // api_call
	MessageType string // message; defaults to "*" when empty
	GroupID     string // group_*
	Data        map[string]any
}

const (
	RequestTypeAPICall      = "api_call"
	RequestTypeMessage      = "message"
	RequestTypeGroupJoin    = "group_join"
	RequestTypeGroupLeave   = "group_leave"
	RequestTypeGroupMessage = "group_message"
	RequestTypeGroupMembers = "group_members"
	RequestTypeGroupConnect = "group_connect"
)

// Result wraps whatever a capability handler returned. Message/group
// handlers are wrapped under "anp_result"; api_call responses carry their
// own status/body directly.
type Result struct {
	Status int
	Body   any
}

// Router is the in-process DID -> Agent registry. A single process hosts one
// Router and one or more locally registered Agents behind it.
type Router struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{agents: make(map[string]Agent)}
}

// Register adds agent to the registry. It fails if the DID is already taken.
func (r *Router) Register(a Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.DID()]; exists {
		return fmt.Errorf("%w: %s", ErrAgentExists, a.DID())
	}
	r.agents[a.DID()] = a
	return nil
}

// Unregister removes an agent. It is a no-op if the DID was never registered.
func (r *Router) Unregister(did string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, did)
}

// Get returns the locally registered agent for did, if any.
func (r *Router) Get(did string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[did]
	return a, ok
}

// List returns every locally registered agent. Order is unspecified.
func (r *Router) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// Route dispatches req to the agent registered under targetDID, then by
// req.Type to the matching capability handler. callerDID is passed through
// to handlers that want to know who is calling (message/group handlers);
// HTTP request is only meaningful for api_call.
func (r *Router) Route(ctx context.Context, callerDID, targetDID string, req RequestData, httpReq *http.Request) (*Result, error) {
	target, ok := r.Get(targetDID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, targetDID)
	}

	switch req.Type {
	case RequestTypeAPICall:
		handler := target.API()
		if handler == nil {
			return nil, fmt.Errorf("%w: api_call on %s", ErrNoHandler, targetDID)
		}
		resp, err := handler.HandleAPI(ctx, req.Path, req.Data, httpReq)
		if err != nil {
			return nil, err
		}
		status := resp.Status
		if status == 0 {
			status = http.StatusOK
		}
		return &Result{Status: status, Body: resp.Data}, nil

	case RequestTypeMessage:
		handler := target.Messages()
		if handler == nil {
			return nil, fmt.Errorf("%w: message on %s", ErrNoHandler, targetDID)
		}
		msgType := req.MessageType
		if msgType == "" {
			msgType = "*"
		}
		out, err := handler.HandleMessage(ctx, msgType, req.Data)
		if err != nil {
			return nil, err
		}
		return &Result{Status: http.StatusOK, Body: map[string]any{"anp_result": out}}, nil

	case RequestTypeGroupJoin, RequestTypeGroupLeave, RequestTypeGroupMessage, RequestTypeGroupMembers, RequestTypeGroupConnect:
		handler := target.Groups()
		if handler == nil {
			return nil, fmt.Errorf("%w: %s on %s", ErrNoHandler, req.Type, targetDID)
		}
		op := req.Type[len("group_"):]
		out, err := handler.HandleGroup(ctx, op, req.GroupID, req.Data)
		if err != nil {
			return nil, err
		}
		return &Result{Status: http.StatusOK, Body: map[string]any{"anp_result": out}}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownReqType, req.Type)
	}
}
