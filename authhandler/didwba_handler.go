package authhandler

import (
	"context"
	"strings"

	"github.com/openanp/anp-wba-go/didwba"
)

// DIDWbaHandler verifies "DIDWba ..." headers via a DidWbaVerifier.
type DIDWbaHandler struct {
	prefixHandler
	verifier *didwba.DidWbaVerifier
}

// NewDIDWbaHandler wraps verifier as a DIDWba Authorization handler.
func NewDIDWbaHandler(verifier *didwba.DidWbaVerifier) *DIDWbaHandler {
	return &DIDWbaHandler{prefixHandler{prefix: didwba.DIDWbaScheme + " "}, verifier}
}

func (h *DIDWbaHandler) Verify(ctx context.Context, header string, reqCtx RequestContext) (*Result, error) {
	data, err := h.verifier.VerifyAuthHeaderContext(ctx, header, reqCtx.ServiceDomain)
	if err != nil {
		return &Result{Success: false, Message: err.Error()}, err
	}

	did, _ := data["did"].(string)
	return &Result{Success: true, Message: "ok", DID: did, Data: data}, nil
}

// BearerHandler verifies "Bearer ..." JWT headers via the same verifier.
type BearerHandler struct {
	prefixHandler
	verifier *didwba.DidWbaVerifier
}

// NewBearerHandler wraps verifier as a Bearer Authorization handler.
func NewBearerHandler(verifier *didwba.DidWbaVerifier) *BearerHandler {
	return &BearerHandler{prefixHandler{prefix: didwba.BearerScheme}, verifier}
}

func (h *BearerHandler) Verify(ctx context.Context, header string, reqCtx RequestContext) (*Result, error) {
	data, err := h.verifier.VerifyAuthHeaderContext(ctx, header, reqCtx.ServiceDomain)
	if err != nil {
		return &Result{Success: false, Message: err.Error()}, err
	}
	did, _ := data["did"].(string)
	return &Result{Success: true, Message: "ok", DID: did, Data: data}, nil
}

// CustomTokenValidator is the pluggable extension hook for "Token"/"CustomToken"
// headers: an opaque-token lookup owned by the embedding application.
type CustomTokenValidator func(ctx context.Context, token string) (did string, ok bool)

// CustomTokenHandler verifies "Token ..." and "CustomToken ..." headers via a
// caller-supplied validator function.
type CustomTokenHandler struct {
	prefix    string
	validator CustomTokenValidator
}

// NewCustomTokenHandler creates a handler for the given prefix ("Token " or
// "CustomToken ") backed by validator.
func NewCustomTokenHandler(prefix string, validator CustomTokenValidator) *CustomTokenHandler {
	return &CustomTokenHandler{prefix: prefix, validator: validator}
}

func (h *CustomTokenHandler) Prefix() string { return h.prefix }

func (h *CustomTokenHandler) CanHandle(header string) bool {
	return strings.HasPrefix(header, h.prefix)
}

func (h *CustomTokenHandler) Verify(ctx context.Context, header string, _ RequestContext) (*Result, error) {
	token := strings.TrimSpace(strings.TrimPrefix(header, h.prefix))
	if h.validator == nil {
		return &Result{Success: false, Message: "no custom token validator configured"}, nil
	}
	did, ok := h.validator(ctx, token)
	if !ok {
		return &Result{Success: false, Message: "invalid or unknown token"}, nil
	}
	return &Result{Success: true, Message: "ok", DID: did}, nil
}
