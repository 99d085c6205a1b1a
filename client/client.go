// Package client implements the outbound side of two-way DID-WBA
// authentication: issue a request with a DIDWba/Bearer header, retry once on
// 401 with a refreshed header, and when the server answers with its own
// Authorization header, verify it and remember the resulting token against
// the peer's contact record.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/errgroup"

	"github.com/openanp/anp-wba-go/contact"
	"github.com/openanp/anp-wba-go/didwba"
	"github.com/openanp/anp-wba-go/tokenstore"
)

// Response is the result of a Fetch call.
type Response struct {
	StatusCode  int
	URL         string
	ContentType string
	Header      http.Header
	Body        []byte
	// PeerVerified reports whether the server presented its own
	// Authorization header and it verified successfully (two-way auth).
	PeerVerified bool
	PeerDID      string
}

// Client performs DID-authenticated HTTP requests against remote agents and
// tracks per-peer tokens and contact metadata.
type Client struct {
	httpClient    *http.Client
	authenticator *didwba.Authenticator
	verifier      *didwba.DidWbaVerifier // optional: verifies the peer's own auth header, for two-way auth
	tokens        *tokenstore.AgentTokens
	contacts      *contact.Book
	selfDID       string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient injects a custom http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithPeerVerifier enables verification of the server's own Authorization
// header in two-way auth exchanges.
func WithPeerVerifier(v *didwba.DidWbaVerifier) Option {
	return func(c *Client) { c.verifier = v }
}

// WithTokenStore records tokens issued to and received from peers.
func WithTokenStore(t *tokenstore.AgentTokens) Option {
	return func(c *Client) { c.tokens = t }
}

// WithContactBook records first/last contact and interaction counts per peer.
func WithContactBook(b *contact.Book) Option {
	return func(c *Client) { c.contacts = b }
}

// New constructs a Client. selfDID identifies the calling agent; it is the
// caller half of the (caller, target) key under which bearer tokens received
// from peers are stored and looked up. The resp_did of a two-way handshake is
// the target DID passed per call, and peer replies are verified against the
// hostname of the called URL.
func New(authenticator *didwba.Authenticator, selfDID string, opts ...Option) *Client {
	c := &Client{
		authenticator: authenticator,
		selfDID:       selfDID,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch issues a one-way authenticated request against target: no resp_did
// is asserted, so the server has no DID to answer back to.
func (c *Client) Fetch(ctx context.Context, method, target string, headers map[string]string, body any) (*Response, error) {
	return c.fetch(ctx, method, target, "", headers, body)
}

// FetchTwoWay issues method against target asserting targetDID as the peer
// the caller expects to authenticate, enabling mutual authentication. It
// retries once with a refreshed auth header on 401, and verifies any peer
// Authorization header the server returns.
func (c *Client) FetchTwoWay(ctx context.Context, method, target, targetDID string, headers map[string]string, body any) (*Response, error) {
	return c.fetch(ctx, method, target, targetDID, headers, body)
}

func (c *Client) fetch(ctx context.Context, method, target, targetDID string, headers map[string]string, body any) (*Response, error) {
	if method == "" {
		method = http.MethodGet
	}

	reqHeaders := make(map[string]string, len(headers)+1)
	maps.Copy(reqHeaders, headers)

	bodyReader, err := encodeBody(body, reqHeaders)
	if err != nil {
		return nil, err
	}

	if authHeader, ok := c.cachedBearerHeader(targetDID); ok {
		maps.Copy(reqHeaders, authHeader)
	} else {
		authHeader, err := c.buildAuthHeader(target, targetDID, false)
		if err != nil {
			return nil, fmt.Errorf("generate auth header: %w", err)
		}
		maps.Copy(reqHeaders, authHeader)
	}

	perform := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		for k, v := range reqHeaders {
			req.Header.Set(k, v)
		}
		return c.httpClient.Do(req)
	}

	resp, err := perform()
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		c.authenticator.ClearToken(target)
		if c.tokens != nil && c.selfDID != "" && targetDID != "" {
			c.tokens.ToRemote.RevokeToken(c.selfDID, targetDID)
		}

		refreshed, err := c.buildAuthHeader(target, targetDID, true)
		if err != nil {
			return nil, fmt.Errorf("refresh auth header: %w", err)
		}
		maps.Copy(reqHeaders, refreshed)

		bodyReader, err = encodeBody(body, nil)
		if err != nil {
			return nil, err
		}

		resp, err = perform()
		if err != nil {
			return nil, fmt.Errorf("retry request: %w", err)
		}
	}
	defer resp.Body.Close()

	out := &Response{
		StatusCode:  resp.StatusCode,
		URL:         target,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header.Clone(),
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.authenticator.UpdateFromResponse(target, resp.Header)
		c.verifyPeerHeader(ctx, target, resp.Header, out)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	out.Body = bodyBytes
	return out, nil
}

// cachedBearerHeader returns a still-valid token_to_remote for targetDID, if
// the token store already holds one, sparing a fresh DID-WBA signature.
func (c *Client) cachedBearerHeader(targetDID string) (map[string]string, bool) {
	if c.tokens == nil || c.selfDID == "" || targetDID == "" {
		return nil, false
	}
	rec, ok := c.tokens.ToRemote.GetToken(c.selfDID, targetDID)
	if !ok {
		return nil, false
	}
	return map[string]string{"Authorization": "Bearer " + rec.Token}, true
}

// buildAuthHeader builds a one-way or two-way DIDWba header depending on
// whether targetDID is known.
func (c *Client) buildAuthHeader(target, targetDID string, force bool) (map[string]string, error) {
	if targetDID == "" {
		if force {
			return c.authenticator.GenerateHeaderForce(target)
		}
		return c.authenticator.GenerateHeader(target)
	}
	if force {
		return c.authenticator.GenerateTwoWayHeaderForce(target, targetDID)
	}
	return c.authenticator.GenerateTwoWayHeader(target, targetDID)
}

// BroadcastTarget names one recipient of a BroadcastAPI fan-out: a URL to
// call and the DID that URL is expected to belong to (empty for one-way).
type BroadcastTarget struct {
	URL string
	DID string
}

// BroadcastResult pairs a BroadcastTarget with the outcome of calling it.
type BroadcastResult struct {
	Target BroadcastTarget
	Resp   *Response
	Err    error
}

// maxBroadcastConcurrency bounds how many peers BroadcastAPI calls at once,
// independent of how many targets are given.
const maxBroadcastConcurrency = 8

// BroadcastAPI sends the same API call to several contacts concurrently,
// bounded to maxBroadcastConcurrency in flight at a time. One failing or
// slow peer never blocks delivery to the others; ctx cancellation (including
// a deadline set by the caller) stops in-flight and not-yet-started calls.
func (c *Client) BroadcastAPI(ctx context.Context, method string, targets []BroadcastTarget, headers map[string]string, body any) []BroadcastResult {
	results := make([]BroadcastResult, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxBroadcastConcurrency)

	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			resp, err := c.fetch(gctx, method, target.URL, target.DID, headers, body)
			results[i] = BroadcastResult{Target: target, Resp: resp, Err: err}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// verifyPeerHeader checks for a server-presented Authorization header
// (two-way auth) and, if it verifies, records the exchange against the
// peer's contact and token records.
func (c *Client) verifyPeerHeader(ctx context.Context, target string, header http.Header, out *Response) {
	if c.verifier == nil {
		return
	}
	peerAuth := header.Get("Authorization")
	if peerAuth == "" {
		return
	}

	domain, err := hostOf(target)
	if err != nil {
		return
	}

	did, err := c.verifier.VerifyDIDSignatureOnly(ctx, peerAuth, domain)
	if err != nil || did == "" {
		return
	}

	out.PeerVerified = true
	out.PeerDID = did

	if c.contacts != nil {
		c.contacts.AddContact(did, domain, 0, "")
		c.contacts.UpdateInteraction(did)
	}
	if c.tokens != nil && c.selfDID != "" {
		if token, ok := bearerToken(header); ok {
			// This is the token the server issued to us; we present it back
			// as token_to_remote on subsequent calls to this same target.
			c.tokens.ToRemote.StoreToken(c.selfDID, did, &tokenstore.TokenRecord{
				Token:     token,
				ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
				ReqDID:    c.selfDID,
				RespDID:   did,
			})
		}
	}
}

func encodeBody(body any, headers map[string]string) (io.Reader, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		setDefaultContentType(headers)
		return bytes.NewReader(v), nil
	case io.Reader:
		return v, nil
	default:
		jsonBody, err := sonic.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		setDefaultContentType(headers)
		return bytes.NewReader(jsonBody), nil
	}
}

func setDefaultContentType(headers map[string]string) {
	if headers == nil {
		return
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}
}

// hostOf returns the bare hostname of target (no port), matching the
// hostname-only service field the server signs its reciprocal header
// against (see middleware.serviceHostname).
func hostOf(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	return u.Hostname(), nil
}

// accessTokenHeader is where the server places the bearer token that
// accompanies a two-way reciprocal DIDWba header (see middleware package);
// the signed Authorization header itself has no field for it.
const accessTokenHeader = "X-Anp-Access-Token"

func bearerToken(header http.Header) (string, bool) {
	token := header.Get(accessTokenHeader)
	return token, token != ""
}
