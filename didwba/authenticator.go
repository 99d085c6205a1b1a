package didwba

import (
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/openanp/anp-wba-go/crypto"

	"github.com/bytedance/sonic"
)

// Authenticator lazily loads DID material and issues DID-WBA authentication headers.
// Construction goes through NewAuthenticator and the AuthenticatorOption functions in
// options.go; Config only holds the lazy-load paths and is not constructed directly.
type Authenticator struct {
	cfg Config

	didDocument *DIDWBADocument
	privateKey  *ecdsa.PrivateKey
	loadOnce    sync.Once
	loadErr     error

	tokens      map[string]string
	authHeaders map[string]string
	cacheMutex  sync.Mutex
}

// Config holds the lazy-load paths for an Authenticator's DID material.
// Populated via WithDIDCfgPaths; set directly via WithDIDMaterial instead
// when the document and key are already loaded.
type Config struct {
	DIDDocumentPath string
	PrivateKeyPath  string
}

// GenerateHeader returns the DID-WBA Authorization header for the target URL.
func (a *Authenticator) GenerateHeader(target string) (map[string]string, error) {
	return a.header(target, "", false)
}

// GenerateHeaderForce refreshes the header even if a cached value exists.
func (a *Authenticator) GenerateHeaderForce(target string) (map[string]string, error) {
	return a.header(target, "", true)
}

// GenerateTwoWayHeader returns a mutual-authentication Authorization header
// asserting respDID as the DID the caller expects to be talking to, so the
// server can answer with its own DIDWba header.
func (a *Authenticator) GenerateTwoWayHeader(target, respDID string) (map[string]string, error) {
	return a.header(target, respDID, false)
}

// GenerateTwoWayHeaderForce refreshes a two-way header even if a cached
// value exists, used on retry after a 401.
func (a *Authenticator) GenerateTwoWayHeaderForce(target, respDID string) (map[string]string, error) {
	return a.header(target, respDID, true)
}

func (a *Authenticator) header(target, respDID string, force bool) (map[string]string, error) {
	domain, err := getDomain(target)
	if err != nil {
		return nil, err
	}

	if !force {
		a.cacheMutex.Lock()
		if token, ok := a.tokens[domain]; ok {
			a.cacheMutex.Unlock()
			logger.Debug("using cached JWT", "domain", domain)
			return map[string]string{"Authorization": "Bearer " + token}, nil
		}
		if header, ok := a.authHeaders[domain]; ok {
			a.cacheMutex.Unlock()
			logger.Debug("using cached DIDWba header", "domain", domain)
			return map[string]string{"Authorization": header}, nil
		}
		a.cacheMutex.Unlock()
	}

	if err := a.ensureMaterial(); err != nil {
		return nil, fmt.Errorf("load authentication material: %w", err)
	}

	header, err := GenerateTwoWayAuthHeader(a.privateKey, a.didDocument, domain, respDID)
	if err != nil {
		return nil, fmt.Errorf("generate header: %w", err)
	}

	headerString := header.String()
	a.cacheMutex.Lock()
	a.authHeaders[domain] = headerString
	a.cacheMutex.Unlock()

	return map[string]string{"Authorization": headerString}, nil
}

// DIDDocument returns this agent's own DID document, loading it first if
// needed. Callers that only need the document (e.g. the did.json/ad.json
// HTTP endpoints) use this instead of generating a header.
func (a *Authenticator) DIDDocument() (*DIDWBADocument, error) {
	if err := a.ensureMaterial(); err != nil {
		return nil, fmt.Errorf("load authentication material: %w", err)
	}
	return a.didDocument, nil
}

// GenerateJSON creates the DID-WBA JSON payload equivalent to the Authorization header.
func (a *Authenticator) GenerateJSON(target string) (*AuthJSON, error) {
	domain, err := getDomain(target)
	if err != nil {
		return nil, err
	}
	if err := a.ensureMaterial(); err != nil {
		return nil, fmt.Errorf("load authentication material: %w", err)
	}
	return GenerateAuthJSON(a.privateKey, a.didDocument, domain)
}

// UpdateFromResponse caches a bearer token returned by the server.
func (a *Authenticator) UpdateFromResponse(target string, header http.Header) {
	token := header.Get("Authorization")
	if !strings.HasPrefix(token, "Bearer ") {
		return
	}

	domain, err := getDomain(target)
	if err != nil {
		logger.Warn("update token: invalid domain", "url", target, "error", err)
		return
	}

	a.cacheMutex.Lock()
	a.tokens[domain] = strings.TrimPrefix(token, "Bearer ")
	a.cacheMutex.Unlock()
}

// ClearToken removes any cached token/header for the target.
func (a *Authenticator) ClearToken(target string) {
	domain, err := getDomain(target)
	if err != nil {
		logger.Warn("clear token: invalid domain", "url", target, "error", err)
		return
	}
	a.cacheMutex.Lock()
	delete(a.tokens, domain)
	delete(a.authHeaders, domain)
	a.cacheMutex.Unlock()
}

func (a *Authenticator) ensureMaterial() error {
	a.loadOnce.Do(func() {
		if a.didDocument != nil && a.privateKey != nil {
			return
		}

		docBytes, err := os.ReadFile(a.cfg.DIDDocumentPath)
		if err != nil {
			a.loadErr = fmt.Errorf("read DID document: %w", err)
			return
		}

		var doc DIDWBADocument
		if err := sonic.Unmarshal(docBytes, &doc); err != nil {
			a.loadErr = fmt.Errorf("decode DID document: %w", err)
			return
		}

		keyBytes, err := os.ReadFile(a.cfg.PrivateKeyPath)
		if err != nil {
			a.loadErr = fmt.Errorf("read private key: %w", err)
			return
		}
		key, err := crypto.PrivateKeyFromPEM(keyBytes)
		if err != nil {
			a.loadErr = fmt.Errorf("decode private key: %w", err)
			return
		}

		a.didDocument = &doc
		a.privateKey = key
	})
	return a.loadErr
}

// getDomain returns the bare hostname of target, stripping any port. The
// canonical payload's service field is hostname-only (spec invariant: a
// reverse proxy or explicit port must never change what gets signed), so
// every call site that feeds this into GenerateTwoWayAuthHeader or a cache
// key needs the stripped form, not net/url's host:port.
func getDomain(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	return u.Hostname(), nil
}
