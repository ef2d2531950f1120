package contract

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/multiformats/go-multihash"
)

// SignatureVerifier recovers the signing principal from an off-chain
// signature over a canonical payload. The signed operation variants use the
// recovered principal as the acting party in place of the direct caller, so
// a relayer can submit on someone else's behalf without gaining their
// authority.
type SignatureVerifier interface {
	RecoverPrincipal(payload []byte, signature string) (string, error)
}

// signedPayload is the canonical message a signer commits to. Field order is
// fixed by the struct, so the JSON encoding is deterministic.
//
// The payload carries no nonce or expiry: a captured signature stays valid
// until the state guards of the operation itself reject it (e.g. a replayed
// CreateDid fails only because the record now exists). Known-risky pattern,
// kept deliberately.
type signedPayload struct {
	Registry  string   `json:"registry"`
	Operation string   `json:"operation"`
	Identity  string   `json:"identity"`
	Args      []string `json:"args"`
}

// buildSignedPayload produces the canonical byte encoding for a signed
// operation targeting the given identity.
func buildSignedPayload(registry, operation, identity string, args ...string) []byte {
	if args == nil {
		args = []string{}
	}
	payloadBytes, err := json.Marshal(signedPayload{
		Registry:  registry,
		Operation: operation,
		Identity:  identity,
		Args:      args,
	})
	if err != nil {
		// Marshalling a struct of strings cannot fail.
		panic("buildSignedPayload: " + err.Error())
	}
	return payloadBytes
}

// Ed25519Verifier verifies detached Ed25519 signatures. The signature blob
// is base64(publicKey || signature); the recovered principal is the base58
// SHA2-256 multihash of the public key, so the principal is bound to the key
// that produced the signature.
type Ed25519Verifier struct{}

// NewEd25519Verifier creates the default signature verifier.
func NewEd25519Verifier() *Ed25519Verifier {
	return &Ed25519Verifier{}
}

// RecoverPrincipal decodes the blob, checks the signature over payload and
// returns the principal derived from the embedded public key.
func (v *Ed25519Verifier) RecoverPrincipal(payload []byte, signature string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return "", registryErrorf(ErrUnauthorized, "signature is not valid base64: %v", err)
	}
	if len(blob) != ed25519.PublicKeySize+ed25519.SignatureSize {
		return "", registryErrorf(ErrUnauthorized, "signature blob has length %d, expected %d", len(blob), ed25519.PublicKeySize+ed25519.SignatureSize)
	}
	publicKey := ed25519.PublicKey(blob[:ed25519.PublicKeySize])
	sig := blob[ed25519.PublicKeySize:]
	if !ed25519.Verify(publicKey, payload, sig) {
		return "", registryErrorf(ErrUnauthorized, "signature verification failed")
	}
	return PrincipalForPublicKey(publicKey)
}

// PrincipalForPublicKey derives the principal string for an Ed25519 public
// key: the base58 representation of its SHA2-256 multihash.
func PrincipalForPublicKey(publicKey ed25519.PublicKey) (string, error) {
	sum, err := multihash.Sum(publicKey, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("failed to hash public key: %w", err)
	}
	return sum.B58String(), nil
}
