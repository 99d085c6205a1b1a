// Package agent defines the capability interfaces a locally hosted agent may
// implement and the in-process Router that dispatches inbound requests to the
// right agent by DID, then by request type.
package agent

import (
	"context"
	"net/http"

	"github.com/openanp/anp-wba-go/didwba"
)

// APIResponse is what an ApiHandler returns for an api_call request. Status
// defaults to 200 when zero.
type APIResponse struct {
	Status int
	Data   any
}

// ApiHandler is implemented by agents that expose REST-style API endpoints
// under /agent/api/{did}/{subpath}.
type ApiHandler interface {
	HandleAPI(ctx context.Context, path string, data map[string]any, r *http.Request) (*APIResponse, error)
}

// Messager is implemented by agents that accept point-to-point messages
// under /agent/message/{did}/post.
type Messager interface {
	HandleMessage(ctx context.Context, messageType string, data map[string]any) (any, error)
}

// GroupHandler is implemented by agents that participate in broadcast
// groups. Group chat semantics beyond this interface (membership storage,
// fan-out, SSE delivery) are an external collaborator per spec.md §1; the
// router only needs somewhere to dispatch group_* request types.
type GroupHandler interface {
	HandleGroup(ctx context.Context, op, groupID string, data map[string]any) (any, error)
}

// Discoverer is implemented by agents that publish a richer self-description
// than the default did.json/ad.json pair the didendpoints package already
// generates. The ad.json builder does not call Describe; it reads only the
// Describer interface.
type Discoverer interface {
	Describe(ctx context.Context) (map[string]any, error)
}

// RouteDescriptor names one HTTP-callable API route an agent exposes under
// /agent/api/{did}, surfaced as a structured interface entry in its agent
// description document.
type RouteDescriptor struct {
	Path        string
	Description string
}

// Description holds the metadata an agent description document reports
// about an agent beyond its DID and name.
type Description struct {
	OwnerName   string
	Summary     string
	Version     string
	CreatedAt   string
	Routes      []RouteDescriptor
}

// Describer is implemented by agents that carry agent-description metadata
// and static interface documents (nlp_interface.yaml, api_interface.yaml/
// .json, or any further named file) for the didendpoints package to serve.
type Describer interface {
	Description() Description
	// InterfaceFile returns the content and content-type of the named file
	// (e.g. "api_interface.yaml"), and false if the agent has none by that
	// name.
	InterfaceFile(name string) (content []byte, contentType string, ok bool)
}

// Agent is a locally hosted agent: an identity (DID + credentials for
// mutual authentication) plus whichever capabilities it composes at
// construction time. Capability accessors return nil when unsupported; the
// router treats a nil accessor as "no handler for this request type".
type Agent interface {
	DID() string
	Name() string
	// Authenticator builds this agent's own outbound/reply DIDWba headers,
	// used by the middleware to answer two-way requests as this agent.
	Authenticator() *didwba.Authenticator

	API() ApiHandler
	Messages() Messager
	Groups() GroupHandler
}

// BaseAgent is an embeddable Agent implementation covering identity and the
// capabilities composed at construction time; concrete agent types embed it
// and only need to provide behavior, not boilerplate accessors.
type BaseAgent struct {
	did           string
	name          string
	authenticator *didwba.Authenticator

	api      ApiHandler
	messages Messager
	groups   GroupHandler

	description    Description
	interfaceFiles map[string]interfaceFile
}

type interfaceFile struct {
	content     []byte
	contentType string
}

// NewBaseAgent constructs a BaseAgent with the given identity. Capabilities
// are attached afterward via With* to keep construction order explicit and
// avoid a combinatorial constructor.
func NewBaseAgent(did, name string, authenticator *didwba.Authenticator) *BaseAgent {
	return &BaseAgent{did: did, name: name, authenticator: authenticator}
}

// WithAPI attaches an ApiHandler capability and returns the same agent.
func (a *BaseAgent) WithAPI(h ApiHandler) *BaseAgent {
	a.api = h
	return a
}

// WithMessages attaches a Messager capability and returns the same agent.
func (a *BaseAgent) WithMessages(h Messager) *BaseAgent {
	a.messages = h
	return a
}

// WithGroups attaches a GroupHandler capability and returns the same agent.
func (a *BaseAgent) WithGroups(h GroupHandler) *BaseAgent {
	a.groups = h
	return a
}

// WithDescription sets the agent-description metadata returned by
// Description. Routes listed here each become a structured interface entry
// in the agent's ad.json.
func (a *BaseAgent) WithDescription(d Description) *BaseAgent {
	a.description = d
	return a
}

// WithInterfaceFile attaches a static interface document (e.g.
// "api_interface.yaml") served verbatim by didendpoints.
func (a *BaseAgent) WithInterfaceFile(name, contentType string, content []byte) *BaseAgent {
	if a.interfaceFiles == nil {
		a.interfaceFiles = make(map[string]interfaceFile)
	}
	a.interfaceFiles[name] = interfaceFile{content: content, contentType: contentType}
	return a
}

func (a *BaseAgent) DID() string                         { return a.did }
func (a *BaseAgent) Name() string                        { return a.name }
func (a *BaseAgent) Authenticator() *didwba.Authenticator { return a.authenticator }
func (a *BaseAgent) API() ApiHandler                      { return a.api }
func (a *BaseAgent) Messages() Messager                   { return a.messages }
func (a *BaseAgent) Groups() GroupHandler                 { return a.groups }
func (a *BaseAgent) Description() Description             { return a.description }

func (a *BaseAgent) InterfaceFile(name string) ([]byte, string, bool) {
	f, ok := a.interfaceFiles[name]
	if !ok {
		return nil, "", false
	}
	return f.content, f.contentType, true
}
