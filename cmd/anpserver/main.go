// Command anpserver is a minimal DID-WBA agent host: it loads one agent's
// identity from a DID document and private key, registers it with a Router,
// and serves the authenticated /agent/... routes alongside the public
// did.json/ad.json/publisher documents. Generalized from a single static
// protected route to the full agent-routing and document-serving surface.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/bytedance/sonic"

	"github.com/openanp/anp-wba-go/agent"
	"github.com/openanp/anp-wba-go/authhandler"
	"github.com/openanp/anp-wba-go/client"
	"github.com/openanp/anp-wba-go/contact"
	"github.com/openanp/anp-wba-go/didendpoints"
	"github.com/openanp/anp-wba-go/didwba"
	"github.com/openanp/anp-wba-go/middleware"
	"github.com/openanp/anp-wba-go/session"
	"github.com/openanp/anp-wba-go/tokenstore"
)

func main() {
	var (
		addr    string
		docPath string
		keyPath string
		name    string
	)
	flag.StringVar(&addr, "addr", ":8080", "listen address")
	flag.StringVar(&docPath, "doc", "did-document.json", "path to this agent's DID document")
	flag.StringVar(&keyPath, "key", "private-key.pem", "path to this agent's PEM private key")
	flag.StringVar(&name, "name", "demo-agent", "human-readable agent name")
	flag.Parse()

	jwtPublicKeyPEM := os.Getenv("JWT_PUBLIC_KEY")
	jwtPrivateKeyPEM := os.Getenv("JWT_PRIVATE_KEY")
	if jwtPublicKeyPEM == "" || jwtPrivateKeyPEM == "" {
		log.Fatal("JWT_PUBLIC_KEY and JWT_PRIVATE_KEY environment variables are required")
	}

	authenticator, err := didwba.NewAuthenticator(didwba.WithDIDCfgPaths(docPath, keyPath), didwba.WithEagerLoading())
	if err != nil {
		log.Fatalf("load agent identity: %v", err)
	}
	doc, err := authenticator.DIDDocument()
	if err != nil {
		log.Fatalf("read agent DID document: %v", err)
	}

	verifier, err := didwba.NewDidWbaVerifier(didwba.DidWbaVerifierConfig{
		JWTPublicKeyPEM:            []byte(jwtPublicKeyPEM),
		JWTPrivateKeyPEM:           []byte(jwtPrivateKeyPEM),
		AccessTokenExpireMinutes:   60,
		TimestampExpirationMinutes: 5,
	})
	if err != nil {
		log.Fatalf("create verifier: %v", err)
	}

	baseRegistry := authhandler.NewRegistry()
	baseRegistry.Register(authhandler.NewDIDWbaHandler(verifier))
	baseRegistry.Register(authhandler.NewBearerHandler(verifier))
	baseRegistry.Register(authhandler.NewReservedHandler("DIDKey "))
	baseRegistry.Register(authhandler.NewReservedHandler("DIDWeb "))

	sessions := session.NewManager(0)
	registry := authhandler.NewSessionAwareRegistry(baseRegistry, sessions, doc.ID)

	router := agent.NewRouter()
	demoAgent := agent.NewBaseAgent(doc.ID, name, authenticator).
		WithAPI(echoHandler{}).
		WithDescription(agent.Description{
			Summary: "Reference DID-WBA agent exposing a single echo endpoint.",
			Version: "0.1.0",
			Routes:  []agent.RouteDescriptor{{Path: "/echo", Description: "Echoes the request body back to the caller."}},
		})
	if err := router.Register(demoAgent); err != nil {
		log.Fatalf("register agent: %v", err)
	}

	tokens := tokenstore.NewAgentTokens()
	contacts := contact.NewBook(doc.ID)
	// outboundClient is available to business logic that needs to call other
	// agents on this agent's behalf; unused by the reference /echo handler.
	_ = client.New(authenticator, doc.ID, client.WithPeerVerifier(verifier), client.WithTokenStore(tokens), client.WithContactBook(contacts))

	mux := http.NewServeMux()
	didendpoints.New(router).Register(mux)

	agentMux := http.NewServeMux()
	agentMux.HandleFunc("POST /agent/api/{did}/{path...}", func(w http.ResponseWriter, r *http.Request) {
		handleDispatch(w, r, router, agent.RequestTypeAPICall)
	})
	agentMux.HandleFunc("POST /agent/message/{did}/post", func(w http.ResponseWriter, r *http.Request) {
		handleDispatch(w, r, router, agent.RequestTypeMessage)
	})

	mux.Handle("/agent/", middleware.New(middleware.Config{Registry: registry, Router: router})(agentMux))

	slog.Info("anpserver listening", "addr", addr, "agent_did", doc.ID)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func handleDispatch(w http.ResponseWriter, r *http.Request, router *agent.Router, reqType string) {
	callerDID, _ := middleware.CallerDID(r.Context())
	targetDID, _ := middleware.TargetDID(r.Context())

	req := agent.RequestData{Type: reqType, Path: "/" + r.PathValue("path")}
	if reqType == agent.RequestTypeMessage {
		req.MessageType = r.URL.Query().Get("message_type")
	}

	result, err := router.Route(r.Context(), callerDID, targetDID, req, r)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, agent.ErrAgentNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeResult(w, result)
}

func writeResult(w http.ResponseWriter, result *agent.Result) {
	body, err := sonic.Marshal(result.Body)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.Status)
	w.Write(body)
}

// echoHandler is the reference agent's sole capability: it reports the path
// and payload it was called with, demonstrating the ApiHandler contract.
type echoHandler struct{}

func (echoHandler) HandleAPI(_ context.Context, path string, data map[string]any, _ *http.Request) (*agent.APIResponse, error) {
	return &agent.APIResponse{Status: http.StatusOK, Data: map[string]any{"path": path, "received": data}}, nil
}
