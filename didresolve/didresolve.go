// Package didresolve resolves did:wba: identifiers to DID documents, trying a
// local filesystem fast path before falling back to an HTTP fetch against the
// DID's own host.
package didresolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/openanp/anp-wba-go/didwba"
)

// ErrNotFound is returned when no resolution path produces a matching document.
var ErrNotFound = errors.New("didresolve: DID document not found")

const defaultHTTPTimeout = 10 * time.Second

// Resolver resolves a DID to its document.
type Resolver interface {
	Resolve(ctx context.Context, did string) (*didwba.DIDWBADocument, error)
}

// LocalResolver walks a configured user-data root looking for a directory
// holding a did_document.json whose id matches the requested DID. This is the
// fast path used when the caller and resolver live in the same process.
type LocalResolver struct {
	UserRoot string
}

// NewLocalResolver creates a LocalResolver rooted at userRoot.
func NewLocalResolver(userRoot string) *LocalResolver {
	return &LocalResolver{UserRoot: userRoot}
}

func (r *LocalResolver) Resolve(_ context.Context, did string) (*didwba.DIDWBADocument, error) {
	if r.UserRoot == "" {
		return nil, ErrNotFound
	}

	entries, err := os.ReadDir(r.UserRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("didresolve: read user root: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		docPath := filepath.Join(r.UserRoot, entry.Name(), "did_document.json")
		data, err := os.ReadFile(docPath)
		if err != nil {
			continue
		}

		var doc didwba.DIDWBADocument
		if err := sonic.Unmarshal(data, &doc); err != nil {
			continue
		}
		if doc.ID == did {
			return &doc, nil
		}
	}

	return nil, ErrNotFound
}

// HTTPResolver fetches a DID document over HTTP from the host embedded in the
// DID itself, per the well-known did:wba: resolution path.
type HTTPResolver struct {
	Client *http.Client
}

// NewHTTPResolver creates an HTTPResolver with a bounded default timeout.
func NewHTTPResolver(client *http.Client) *HTTPResolver {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	} else if client.Timeout == 0 {
		client.Timeout = defaultHTTPTimeout
	}
	return &HTTPResolver{Client: client}
}

// Resolve fetches the DID document over plain HTTP from the host:port
// embedded in the DID, at spec.md §4.4's well-known path:
// /wba/user/<hex16>/did.json, or /wba/hostuser/<hex16>/did.json for a
// hosted DID. This is distinct from didwba.ResolveDIDWBADocument, which
// follows the teacher's generic https + arbitrary-path-segments resolution
// (kept for callers that need that shape); an agent-interoperability peer
// resolving another did:wba agent's document always uses this fixed path.
func (r *HTTPResolver) Resolve(ctx context.Context, did string) (*didwba.DIDWBADocument, error) {
	docURL, err := wbaDocumentURL(did)
	if err != nil {
		return nil, fmt.Errorf("didresolve: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("didresolve: build request: %w", err)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("didresolve: http resolve %s: %w", did, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("didresolve: %s: status %d: %w", did, resp.StatusCode, ErrNotFound)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("didresolve: read response body: %w", err)
	}
	var doc didwba.DIDWBADocument
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("didresolve: decode document: %w", err)
	}
	if doc.ID != did {
		return nil, fmt.Errorf("didresolve: document id %q does not match requested DID %q", doc.ID, did)
	}
	return &doc, nil
}

// wbaDocumentURL builds the fixed well-known resolution URL for a did:wba:
// identifier: http://<host>[:<port>]/wba/<user|hostuser>/<hex16>/did.json.
func wbaDocumentURL(did string) (string, error) {
	host, port, hasPort, err := didwba.ParseHostPort(did)
	if err != nil {
		return "", fmt.Errorf("parse host/port: %w", err)
	}

	authority := host
	if hasPort {
		authority = fmt.Sprintf("%s:%d", host, port)
	}

	segment := "user"
	if didwba.IsHostedDID(did) {
		segment = "hostuser"
	}

	return fmt.Sprintf("http://%s/wba/%s/%s/did.json", authority, segment, didwba.LocalIDFromDID(did)), nil
}

// ChainResolver tries each Resolver in order, returning the first successful
// resolution. It is the default composition: local filesystem first, remote
// HTTP fallback second.
type ChainResolver struct {
	resolvers []Resolver
}

// NewChainResolver composes the given resolvers, tried in order.
func NewChainResolver(resolvers ...Resolver) *ChainResolver {
	return &ChainResolver{resolvers: resolvers}
}

// NewDefaultResolver builds the standard local-then-remote chain rooted at userRoot.
func NewDefaultResolver(userRoot string, httpClient *http.Client) *ChainResolver {
	return NewChainResolver(NewLocalResolver(userRoot), NewHTTPResolver(httpClient))
}

func (c *ChainResolver) Resolve(ctx context.Context, did string) (*didwba.DIDWBADocument, error) {
	var lastErr error = ErrNotFound
	for _, resolver := range c.resolvers {
		doc, err := resolver.Resolve(ctx, did)
		if err == nil {
			return doc, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// PublicKeyBytes returns the raw public key bytes for a verification method
// fragment on the resolved document.
func PublicKeyBytes(doc *didwba.DIDWBADocument, fragment string) ([]byte, error) {
	return didwba.GetPublicKeyBytesByFragment(doc, fragment)
}
