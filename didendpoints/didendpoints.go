// Package didendpoints serves the public, unauthenticated documents a
// DID-WBA deployment publishes about its locally hosted agents: the DID
// document, the agent description (ad.json), named interface files, and the
// publisher listing. Reworked from per-user filesystem lookups into
// Router-backed, in-process agent lookups.
package didendpoints

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/openanp/anp-wba-go/agent"
	"github.com/openanp/anp-wba-go/didwba"
	"github.com/openanp/anp-wba-go/middleware"
)

// Handlers serves the document endpoints for every agent registered in
// Router. Mount Register on a mux that also carries middleware.New for the
// authenticated /agent/... routes -- these endpoints are meant to be
// reachable without authentication.
type Handlers struct {
	Router *agent.Router
}

// New constructs Handlers backed by router.
func New(router *agent.Router) *Handlers {
	return &Handlers{Router: router}
}

// Register wires every endpoint onto mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /wba/user/{id}/did.json", h.serveDIDDocument(false))
	mux.HandleFunc("GET /wba/hostuser/{id}/did.json", h.serveDIDDocument(true))
	mux.HandleFunc("GET /wba/user/{id}/ad.json", h.serveAgentDescription)
	mux.HandleFunc("GET /wba/user/{id}/{file}", h.serveInterfaceFile)
	mux.HandleFunc("GET /publisher/agents", h.servePublisherAgents)
}

func (h *Handlers) serveDIDDocument(hosted bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := middleware.InferTargetDID("", r.URL.Path, r.Host)
		if !ok {
			writeError(w, http.StatusBadRequest, "cannot determine DID from path")
			return
		}
		if hosted != (target.IsHosted || didwba.IsHostedDID(target.DID)) {
			writeError(w, http.StatusNotFound, "no such DID")
			return
		}

		ag, ok := h.Router.Get(target.DID)
		if !ok {
			writeError(w, http.StatusNotFound, "no such DID")
			return
		}

		doc, err := ag.Authenticator().DIDDocument()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load DID document")
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func (h *Handlers) serveAgentDescription(w http.ResponseWriter, r *http.Request) {
	target, ok := middleware.InferTargetDID("", r.URL.Path, r.Host)
	if !ok {
		writeError(w, http.StatusBadRequest, "cannot determine DID from path")
		return
	}
	if target.IsHosted || didwba.IsHostedDID(target.DID) {
		writeError(w, http.StatusForbidden, "hosted DID has no agent description")
		return
	}

	ag, ok := h.Router.Get(target.DID)
	if !ok {
		writeError(w, http.StatusNotFound, "no such agent")
		return
	}

	var desc agent.Description
	if d, ok := ag.(agent.Describer); ok {
		desc = d.Description()
	}

	escapedDID := url.QueryEscape(target.DID)
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	base := scheme + "://" + r.Host + "/wba/user/" + escapedDID

	interfaces := []adInterface{
		{
			Type:        "ad:NaturalLanguageInterface",
			Protocol:    "YAML",
			URL:         base + "/nlp_interface.yaml",
			Description: "Natural-language interaction interface, described as an OpenAPI YAML document.",
		},
		{
			Type:        "ad:StructuredInterface",
			Protocol:    "YAML",
			URL:         base + "/api_interface.yaml",
			Description: "Structured API calling convention, described in YAML.",
		},
		{
			Type:        "ad:StructuredInterface",
			Protocol:    "JSON",
			URL:         base + "/api_interface.json",
			Description: "Structured API calling convention, described as JSON-RPC.",
		},
	}
	for _, route := range desc.Routes {
		name := strings.Trim(strings.ReplaceAll(route.Path, "/", "_"), "_")
		interfaces = append(interfaces, adInterface{
			Type:        "ad:StructuredInterface",
			Protocol:    "HTTP",
			Name:        name,
			URL:         "/agent/api/" + escapedDID + route.Path,
			Description: route.Description,
		})
	}

	ownerName := desc.OwnerName
	if ownerName == "" {
		ownerName = ag.Name() + "'s operator"
	}
	summary := desc.Summary
	if summary == "" {
		summary = "Agent " + ag.Name()
	}
	version := desc.Version
	if version == "" {
		version = "0.1.0"
	}

	doc := adDocument{
		Context: map[string]string{
			"@vocab": "https://schema.org/",
			"did":    "https://w3id.org/did#",
			"ad":     "https://agent-network-protocol.com/ad#",
		},
		Type:        "ad:AgentDescription",
		Name:        ag.Name(),
		Owner:       adOwner{Name: ownerName, ID: target.DID},
		Description: summary,
		Version:     version,
		CreatedAt:   desc.CreatedAt,
		Security: map[string]adSecurityScheme{
			"didwba_sc": {Scheme: "didwba", In: "header", Name: "Authorization"},
		},
		Interfaces: interfaces,
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *Handlers) serveInterfaceFile(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")

	var contentType string
	switch {
	case strings.HasSuffix(file, ".yaml"):
		contentType = "application/x-yaml"
	case strings.HasSuffix(file, ".json"):
		contentType = "application/json"
	default:
		writeError(w, http.StatusNotFound, "unsupported interface file type")
		return
	}

	target, ok := middleware.InferTargetDID("", r.URL.Path, r.Host)
	if !ok {
		writeError(w, http.StatusBadRequest, "cannot determine DID from path")
		return
	}
	if target.IsHosted || didwba.IsHostedDID(target.DID) {
		writeError(w, http.StatusForbidden, "hosted DID has no interface files")
		return
	}

	ag, ok := h.Router.Get(target.DID)
	if !ok {
		writeError(w, http.StatusNotFound, "no such agent")
		return
	}

	d, ok := ag.(agent.Describer)
	if !ok {
		writeError(w, http.StatusNotFound, "interface file not found")
		return
	}
	content, fileContentType, ok := d.InterfaceFile(file)
	if !ok {
		writeError(w, http.StatusNotFound, "interface file not found")
		return
	}
	if fileContentType != "" {
		contentType = fileContentType
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

func (h *Handlers) servePublisherAgents(w http.ResponseWriter, r *http.Request) {
	registered := h.Router.List()
	out := make([]publisherEntry, 0, len(registered))
	for _, ag := range registered {
		if didwba.IsHostedDID(ag.DID()) {
			continue
		}
		out = append(out, publisherEntry{DID: ag.DID(), Name: ag.Name()})
	}
	writeJSON(w, http.StatusOK, publisherList{Agents: out})
}

type adDocument struct {
	Context     map[string]string           `json:"@context"`
	Type        string                       `json:"@type"`
	Name        string                       `json:"name"`
	Owner       adOwner                      `json:"owner"`
	Description string                       `json:"description"`
	Version     string                       `json:"version"`
	CreatedAt   string                       `json:"created_at,omitempty"`
	Security    map[string]adSecurityScheme  `json:"security_definitions"`
	Interfaces  []adInterface                `json:"ad:interfaces"`
}

type adOwner struct {
	Name string `json:"name"`
	ID   string `json:"@id"`
}

type adSecurityScheme struct {
	Scheme string `json:"scheme"`
	In     string `json:"in"`
	Name   string `json:"name"`
}

type adInterface struct {
	Type        string `json:"@type"`
	Protocol    string `json:"protocol"`
	Name        string `json:"name,omitempty"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type publisherEntry struct {
	DID  string `json:"did"`
	Name string `json:"name"`
}

type publisherList struct {
	Agents []publisherEntry `json:"agents"`
}

type errorBody struct {
	Reason string `json:"reason"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	body, _ := sonic.Marshal(errorBody{Reason: reason})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
