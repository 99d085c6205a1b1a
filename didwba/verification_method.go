package didwba

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	"github.com/openanp/anp-wba-go/crypto"

	"github.com/bytedance/sonic"
	"github.com/mr-tron/base58"
)

// VerificationMethod is an interface for verifying signatures based on a DID document's verification method.
type VerificationMethod interface {
	// VerifySignature checks if the given signature is valid for the content.
	VerifySignature(content []byte, signature string) bool
	// GetPublicKey returns the public key.
	GetPublicKey() any
}

// EcdsaSecp256k1VerificationKey2019 implements VerificationMethod for the EcdsaSecp256k1VerificationKey2019 type.
type EcdsaSecp256k1VerificationKey2019 struct {
	PublicKey *ecdsa.PublicKey
}

// GetPublicKey returns the public key.
func (v *EcdsaSecp256k1VerificationKey2019) GetPublicKey() any {
	return v.PublicKey
}

// VerifySignature verifies content against the provided signature. The ECDSA
// primitive re-hashes whatever digest it is handed, so content is hashed twice
// here to match signPayload, which signs sha256(sha256(content)).
// The signature is expected to be in base64url format, representing the R and S values concatenated.
func (v *EcdsaSecp256k1VerificationKey2019) VerifySignature(content []byte, signature string) bool {
	sigBytes, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		// Signature decode failed, verification fails
		return false
	}

	r, s, err := unmarshalSignature(v.PublicKey.Curve, sigBytes)
	if err != nil {
		// Signature unmarshal failed, verification fails
		return false
	}

	contentHash := sha256.Sum256(content)
	finalDigest := sha256.Sum256(contentHash[:])
	return ecdsa.Verify(v.PublicKey, finalDigest[:], r, s)
}

// NewEcdsaSecp256k1VerificationKey2019 creates an instance from a verification method map.
// It accepts either a publicKeyJwk or a publicKeyMultibase (base58btc, 'z'-prefixed,
// 33-byte compressed point) encoding.
func NewEcdsaSecp256k1VerificationKey2019(methodMap map[string]any) (VerificationMethod, error) {
	if jwkMap, ok := methodMap["publicKeyJwk"].(map[string]any); ok {
		return ecdsaKeyFromJWK(jwkMap)
	}
	if multibase, ok := methodMap["publicKeyMultibase"].(string); ok {
		return ecdsaKeyFromMultibase(multibase)
	}
	return nil, fmt.Errorf("unsupported public key format for EcdsaSecp256k1VerificationKey2019")
}

func ecdsaKeyFromJWK(jwkMap map[string]any) (VerificationMethod, error) {
	var jwk JWK
	jwkBytes, err := sonic.Marshal(jwkMap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal publicKeyJwk: %w", err)
	}
	if err := sonic.Unmarshal(jwkBytes, &jwk); err != nil {
		return nil, fmt.Errorf("failed to unmarshal publicKeyJwk: %w", err)
	}

	if jwk.Kty != JWKTypeEC || jwk.Crv != JWKCurveSecp256k1 {
		return nil, fmt.Errorf("unsupported JWK parameters for secp256k1: kty=%s, crv=%s", jwk.Kty, jwk.Crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("invalid JWK 'x' coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("invalid JWK 'y' coordinate: %w", err)
	}

	x := new(big.Int).SetBytes(xBytes)
	y := new(big.Int).SetBytes(yBytes)

	curve := crypto.Secp256k1()
	if !curve.IsOnCurve(x, y) {
		return nil, fmt.Errorf("public key is not on the secp256k1 curve")
	}

	publicKey := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
	return &EcdsaSecp256k1VerificationKey2019{PublicKey: publicKey}, nil
}

func ecdsaKeyFromMultibase(multibase string) (VerificationMethod, error) {
	if !strings.HasPrefix(multibase, "z") {
		return nil, fmt.Errorf("unsupported multibase encoding, must start with 'z' (base58btc)")
	}

	keyBytes, err := base58.Decode(multibase[1:])
	if err != nil {
		return nil, fmt.Errorf("invalid multibase key: %w", err)
	}
	if len(keyBytes) != 33 {
		return nil, fmt.Errorf("invalid secp256k1 public key length: got %d want 33", len(keyBytes))
	}

	publicKey, err := crypto.DecompressPubkey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid compressed secp256k1 public key: %w", err)
	}

	return &EcdsaSecp256k1VerificationKey2019{PublicKey: publicKey}, nil
}

// Ed25519VerificationKey2020 implements VerificationMethod for Ed25519-based
// verification methods (type Ed25519VerificationKey2020 or the legacy
// Ed25519VerificationKey2018 alias).
type Ed25519VerificationKey2020 struct {
	PublicKey ed25519.PublicKey
}

// GetPublicKey returns the public key.
func (v *Ed25519VerificationKey2020) GetPublicKey() any {
	return v.PublicKey
}

// VerifySignature verifies the signature over SHA-256(content). That digest
// is handed to Ed25519 as is, with no further pre-hash (Ed25519 hashes its
// own input internally), to stay consistent with the secp256k1 path's
// content-hash framing.
func (v *Ed25519VerificationKey2020) VerifySignature(content []byte, signature string) bool {
	sigBytes, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	if len(sigBytes) != ed25519.SignatureSize {
		return false
	}
	contentHash := sha256.Sum256(content)
	return ed25519.Verify(v.PublicKey, contentHash[:], sigBytes)
}

// NewEd25519VerificationKey2020 creates an instance from a verification method map.
// It accepts publicKeyJwk (OKP/Ed25519), publicKeyBase58, or publicKeyMultibase.
func NewEd25519VerificationKey2020(methodMap map[string]any) (VerificationMethod, error) {
	if jwkMap, ok := methodMap["publicKeyJwk"].(map[string]any); ok {
		var jwk JWK
		jwkBytes, err := sonic.Marshal(jwkMap)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal publicKeyJwk: %w", err)
		}
		if err := sonic.Unmarshal(jwkBytes, &jwk); err != nil {
			return nil, fmt.Errorf("failed to unmarshal publicKeyJwk: %w", err)
		}
		if jwk.Kty != JWKTypeOKP || jwk.Crv != JWKCurveEd25519 {
			return nil, fmt.Errorf("unsupported JWK parameters for Ed25519: kty=%s, crv=%s", jwk.Kty, jwk.Crv)
		}
		keyBytes, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(jwk.X, "="))
		if err != nil {
			return nil, fmt.Errorf("invalid Ed25519 JWK 'x': %w", err)
		}
		if len(keyBytes) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid Ed25519 public key length: got %d want %d", len(keyBytes), ed25519.PublicKeySize)
		}
		return &Ed25519VerificationKey2020{PublicKey: ed25519.PublicKey(keyBytes)}, nil
	}

	if b58, ok := methodMap["publicKeyBase58"].(string); ok {
		keyBytes, err := base58.Decode(b58)
		if err != nil {
			return nil, fmt.Errorf("invalid base58 key: %w", err)
		}
		if len(keyBytes) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid Ed25519 public key length: got %d want %d", len(keyBytes), ed25519.PublicKeySize)
		}
		return &Ed25519VerificationKey2020{PublicKey: ed25519.PublicKey(keyBytes)}, nil
	}

	if multibase, ok := methodMap["publicKeyMultibase"].(string); ok {
		if !strings.HasPrefix(multibase, "z") {
			return nil, fmt.Errorf("unsupported multibase encoding, must start with 'z' (base58btc)")
		}
		keyBytes, err := base58.Decode(multibase[1:])
		if err != nil {
			return nil, fmt.Errorf("invalid multibase key: %w", err)
		}
		if len(keyBytes) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("invalid Ed25519 public key length: got %d want %d", len(keyBytes), ed25519.PublicKeySize)
		}
		return &Ed25519VerificationKey2020{PublicKey: ed25519.PublicKey(keyBytes)}, nil
	}

	return nil, fmt.Errorf("unsupported public key format for Ed25519VerificationKey2020")
}

// VerificationMethodFactory is a map of verification method types to their constructor functions.
var VerificationMethodFactory = map[string]func(map[string]any) (VerificationMethod, error){
	VerificationMethodEcdsaSecp256k1:    NewEcdsaSecp256k1VerificationKey2019,
	VerificationMethodEd25519_2020:      NewEd25519VerificationKey2020,
	VerificationMethodEd25519_2018:      NewEd25519VerificationKey2020,
	VerificationMethodJsonWebKey2020:    NewEcdsaSecp256k1VerificationKey2019,
}

// CreateVerificationMethod creates a VerificationMethod instance based on the method type.
func CreateVerificationMethod(methodMap map[string]any) (VerificationMethod, error) {
	methodType, ok := methodMap["type"].(string)
	if !ok {
		return nil, fmt.Errorf("verification method 'type' not found or not a string")
	}

	factory, ok := VerificationMethodFactory[methodType]
	if !ok {
		return nil, fmt.Errorf("unsupported verification method type: %s", methodType)
	}

	return factory(methodMap)
}
