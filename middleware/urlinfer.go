package middleware

import (
	"net/url"
	"regexp"
	"strings"
)

var hex16Segment = regexp.MustCompile(`^[0-9a-fA-F]{16}$`)

// pathDIDPattern matches the family of routes that carry either a bare
// 16-hex local id or a URL-encoded full DID as their second path segment:
// /wba/user/{id}/..., /wba/hostuser/{id}/..., /agent/api/{did}/...,
// /agent/message/{did}/..., /agent/group/{did}/....
var pathDIDPattern = regexp.MustCompile(`^/(?:wba/(user|hostuser)|agent/(?:api|message|group))/([^/]+)(?:/.*)?$`)

// InferredTarget is the result of resolving which DID a request addresses.
type InferredTarget struct {
	DID      string
	IsHosted bool
}

// InferTargetDID determines which DID a request addresses. respDIDParam is
// the "resp_did" query parameter value (preferred source, may be empty);
// path is the request URL path; host is the request's own Host header, used
// to reconstruct a full DID from a bare 16-hex local id.
func InferTargetDID(respDIDParam, path, host string) (InferredTarget, bool) {
	if respDIDParam != "" {
		did, err := url.QueryUnescape(respDIDParam)
		if err != nil {
			did = respDIDParam
		}
		return InferredTarget{DID: did, IsHosted: strings.Contains(did, ":hostuser:")}, true
	}

	m := pathDIDPattern.FindStringSubmatch(path)
	if m == nil {
		return InferredTarget{}, false
	}

	hosted := m[1] == "hostuser"
	segment := m[2]

	if hex16Segment.MatchString(segment) {
		kind := "user"
		if hosted {
			kind = "hostuser"
		}
		did := "did:wba:" + url.QueryEscape(host) + ":wba:" + kind + ":" + segment
		// %3A is the canonical host:port separator; url.QueryEscape encodes
		// ':' as %3A already, but also escapes other characters we don't
		// want touched (there are none in a bare host:port pair here).
		return InferredTarget{DID: did, IsHosted: hosted}, true
	}

	decoded, err := url.QueryUnescape(segment)
	if err != nil {
		decoded = segment
	}
	return InferredTarget{DID: decoded, IsHosted: strings.Contains(decoded, ":hostuser:")}, true
}
