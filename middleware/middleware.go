// Package middleware implements the per-request authentication pipeline:
// exemption check, Authorization-header dispatch through an
// authhandler.Registry, URL-based target-DID inference, hosted-DID
// rejection, and attaching the server's own reciprocal Authorization header
// to two-way exchanges.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/openanp/anp-wba-go/agent"
	"github.com/openanp/anp-wba-go/authhandler"
	"github.com/openanp/anp-wba-go/didwba"
)

type contextKey string

const (
	contextKeyCallerDID contextKey = "caller_did"
	contextKeyTargetDID contextKey = "target_did"
)

// accessTokenHeader carries the bearer token issued alongside a two-way
// reciprocal DIDWba header (see buildReplyHeader); the client package reads
// it to populate token_to_remote.
const accessTokenHeader = "X-Anp-Access-Token"

// CallerDID extracts the authenticated caller's DID from a request context,
// populated by Middleware on a successful verification.
func CallerDID(ctx context.Context) (string, bool) {
	did, ok := ctx.Value(contextKeyCallerDID).(string)
	return did, ok
}

// TargetDID extracts the request's inferred target DID from a request
// context, populated by Middleware regardless of auth outcome.
func TargetDID(ctx context.Context) (string, bool) {
	did, ok := ctx.Value(contextKeyTargetDID).(string)
	return did, ok
}

// Verifier dispatches an Authorization header to the scheme it carries.
// *authhandler.Registry and *authhandler.SessionAwareRegistry both satisfy
// it.
type Verifier interface {
	Verify(ctx context.Context, header string, reqCtx authhandler.RequestContext) (*authhandler.Result, error)
}

// Config wires the adapters the middleware needs. Registry and Router are
// required; ExemptPaths defaults to the standard discovery/document routes
// served without authentication.
type Config struct {
	Registry    Verifier
	Router      *agent.Router
	ExemptPaths []string
}

// DefaultExemptPaths lists the path prefixes served without authentication:
// DID documents, agent descriptions, interface files, and the publisher
// listing.
var DefaultExemptPaths = []string{
	"/wba/user/",
	"/wba/hostuser/",
	"/publisher/agents",
	"/docs",
	"/openapi.json",
}

func isExempt(path string, exempt []string) bool {
	for _, prefix := range exempt {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// New builds the net/http middleware described by cfg. Wrap it around the
// authenticated route group only (/agent/api/..., /agent/message/...,
// /agent/group/...) -- the exempt paths it also recognizes are a second line
// of defense in case the same middleware is applied at a higher level.
func New(cfg Config) func(http.Handler) http.Handler {
	exempt := cfg.ExemptPaths
	if exempt == nil {
		exempt = DefaultExemptPaths
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			if isExempt(path, exempt) {
				next.ServeHTTP(w, r)
				return
			}

			target, matched := InferTargetDID(r.URL.Query().Get("resp_did"), path, r.Host)
			if !matched || target.DID == "" {
				writeError(w, http.StatusBadRequest, "CannotInferTarget")
				return
			}
			ctx := context.WithValue(r.Context(), contextKeyTargetDID, target.DID)

			// Hosted DIDs are rejected before any crypto verification runs,
			// regardless of whether the request even carries a signature.
			if target.IsHosted || didwba.IsHostedDID(target.DID) {
				writeError(w, http.StatusForbidden, "HostedDIDRejected")
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "MissingAuthorizationHeader")
				return
			}

			targetAgent, ok := cfg.Router.Get(target.DID)
			if !ok {
				writeError(w, http.StatusNotFound, "AgentNotFound")
				return
			}

			result, err := cfg.Registry.Verify(r.Context(), authHeader, authhandler.RequestContext{
				ServiceDomain: serviceHostname(r.Host),
				RequestURL:    r.URL.String(),
			})
			if err != nil || result == nil || !result.Success {
				writeError(w, http.StatusUnauthorized, "SignatureInvalid")
				return
			}

			ctx = context.WithValue(ctx, contextKeyCallerDID, result.DID)

			if replyHeader, ok := buildReplyHeader(targetAgent, result.DID, r.Host, authHeader); ok {
				w.Header().Set("Authorization", replyHeader)
				// The bearer token accompanying a two-way exchange travels
				// alongside, not inside, the signed DIDWba reply header: the
				// header's grammar has no field for an opaque token.
				if token, ok := result.Data["access_token"].(string); ok && token != "" {
					w.Header().Set(accessTokenHeader, token)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// buildReplyHeader produces the server's reciprocal DIDWba header when the
// inbound request was itself a two-way DIDWba request (its resp_did named
// this agent). Bearer/Token/Session requests have nothing to reciprocate.
//
// The reply's signed service field must be this server's own hostname (the
// host the client actually sent its request to), not the caller's DID host:
// the client verifies the reply by recomputing the payload against the
// hostname of the URL it called, exactly mirroring how this middleware
// recomputes an inbound payload against serviceHostname(r.Host) rather than
// trusting a value out of the header.
func buildReplyHeader(targetAgent agent.Agent, callerDID, requestHost, inboundHeader string) (string, bool) {
	if !strings.HasPrefix(inboundHeader, didwba.DIDWbaScheme+" ") {
		return "", false
	}
	if !strings.Contains(inboundHeader, `resp_did="`) {
		return "", false
	}
	auth := targetAgent.Authenticator()
	if auth == nil {
		return "", false
	}
	headers, err := auth.GenerateTwoWayHeader("https://"+serviceHostname(requestHost), callerDID)
	if err != nil {
		return "", false
	}
	return headers["Authorization"], true
}

func serviceHostname(host string) string {
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		return host[:idx]
	}
	return host
}

type errorBody struct {
	Reason string `json:"reason"`
}

func writeError(w http.ResponseWriter, status int, reason string) {
	body, _ := sonic.Marshal(errorBody{Reason: reason})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
