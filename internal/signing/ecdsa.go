package signing

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/asn1"
	"fmt"
)

// ECDSA signs with ECDSA on P-256 over the SHA-256 digest of the message.
type ECDSA struct{}

var _ Service = ECDSA{}

func (ECDSA) Name() string { return "ecdsa-p256" }

func (ECDSA) Algorithm() asn1.ObjectIdentifier { return OIDECDSAWithSHA256 }

func (ECDSA) SupportsKey(key crypto.PrivateKey) bool {
	k, ok := key.(*ecdsa.PrivateKey)
	return ok && k != nil && k.D != nil && isP256(k.Curve)
}

func (e ECDSA) Sign(ctx context.Context, message []byte, key crypto.PrivateKey) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !e.SupportsKey(key) {
		return nil, fmt.Errorf("%w: ecdsa-p256 needs a P-256 *ecdsa.PrivateKey, got %T", ErrKeyMismatch, key)
	}
	digest := sha256.Sum256(message)
	sig, err := ecdsa.SignASN1(rand.Reader, key.(*ecdsa.PrivateKey), digest[:])
	if err != nil {
		return nil, fmt.Errorf("ecdsa sign: %w", err)
	}
	return sig, nil
}

func (ECDSA) Verify(_ context.Context, message, signature []byte, pub crypto.PublicKey) bool {
	k, ok := pub.(*ecdsa.PublicKey)
	if !ok || k == nil || !isP256(k.Curve) {
		return false
	}
	digest := sha256.Sum256(message)
	return ecdsa.VerifyASN1(k, digest[:], signature)
}

func isP256(c elliptic.Curve) bool {
	return c != nil && c.Params().Name == elliptic.P256().Params().Name
}
