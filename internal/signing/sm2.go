package signing

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/asn1"
	"fmt"

	"github.com/tjfoc/gmsm/sm2"
)

// SM2 signs with SM2 over the SM3 digest of the message, using the default
// signer identity "1234567812345678" in the Z value. Signatures are the DER
// SEQUENCE of r and s.
type SM2 struct{}

var _ Service = SM2{}

func (SM2) Name() string { return "sm2" }

func (SM2) Algorithm() asn1.ObjectIdentifier { return OIDSM2WithSM3 }

func (SM2) SupportsKey(key crypto.PrivateKey) bool {
	k, ok := key.(*sm2.PrivateKey)
	return ok && k != nil && k.D != nil && k.Curve != nil
}

func (s SM2) Sign(ctx context.Context, message []byte, key crypto.PrivateKey) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.SupportsKey(key) {
		return nil, fmt.Errorf("%w: sm2 needs a non-nil *sm2.PrivateKey, got %T", ErrKeyMismatch, key)
	}
	priv := key.(*sm2.PrivateKey)
	sig, err := priv.Sign(rand.Reader, message, nil)
	if err != nil {
		return nil, fmt.Errorf("sm2 sign: %w", err)
	}
	return sig, nil
}

func (SM2) Verify(_ context.Context, message, signature []byte, pub crypto.PublicKey) bool {
	key := sm2PublicKey(pub)
	if key == nil || len(signature) == 0 {
		return false
	}
	return key.Verify(message, signature)
}

// sm2PublicKey accepts the native key type and ECDSA keys on the SM2 curve,
// which is how some certificate parsers surface SM2 keys.
func sm2PublicKey(pub crypto.PublicKey) *sm2.PublicKey {
	curve := sm2.P256Sm2().Params().Name
	switch k := pub.(type) {
	case *sm2.PublicKey:
		if k == nil || k.Curve == nil || k.Curve.Params().Name != curve {
			return nil
		}
		return k
	case *ecdsa.PublicKey:
		if k == nil || k.Curve == nil || k.Curve.Params().Name != curve {
			return nil
		}
		return &sm2.PublicKey{Curve: sm2.P256Sm2(), X: k.X, Y: k.Y}
	default:
		return nil
	}
}
