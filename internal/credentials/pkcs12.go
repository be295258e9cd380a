package credentials

import (
	"crypto"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/tjfoc/gmsm/pkcs12"
	"github.com/tjfoc/gmsm/sm2"

	"github.com/evidenceledger/eseal/internal/certs"
)

// PKCS12Store reads password protected PKCS#12 keystores from Dir. A reference
// names a file in Dir; the ".p12" extension may be omitted.
type PKCS12Store struct {
	Dir      string
	Password string
}

var _ Store = PKCS12Store{}

// LoadPrivateKey returns the private key of the keystore ref. Keys on the SM2
// curve are returned as *sm2.PrivateKey.
func (s PKCS12Store) LoadPrivateKey(ref string) (crypto.PrivateKey, error) {
	key, _, err := s.open(ref)
	return key, err
}

// LoadCertificateChain returns the keystore certificates, the one matching the
// private key first.
func (s PKCS12Store) LoadCertificateChain(ref string) ([]*certs.Certificate, error) {
	_, chain, err := s.open(ref)
	return chain, err
}

func (s PKCS12Store) open(ref string) (crypto.PrivateKey, []*certs.Certificate, error) {
	b, err := readFile(s.Dir, ref, ".p12")
	if err != nil {
		return nil, nil, err
	}
	return ParsePKCS12(b, s.Password)
}

// ParsePKCS12 decodes a keystore holding one private key and its certificate
// chain.
func ParsePKCS12(data []byte, password string) (crypto.PrivateKey, []*certs.Certificate, error) {
	raw, smCerts, err := pkcs12.DecodeAll(data, password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode keystore: %w", err)
	}

	k, ok := raw.(*ecdsa.PrivateKey)
	if !ok || k == nil {
		return nil, nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, raw)
	}
	var key crypto.PrivateKey = k
	if k.Curve == sm2.P256Sm2() {
		key = &sm2.PrivateKey{
			PublicKey: sm2.PublicKey{Curve: k.Curve, X: k.X, Y: k.Y},
			D:         k.D,
		}
	}

	chain := make([]*certs.Certificate, 0, len(smCerts))
	for _, c := range smCerts {
		cert, err := certs.Parse(c.Raw)
		if err != nil {
			return nil, nil, err
		}
		if sameKey(cert.PublicKey, k.X, k.Y) {
			chain = append([]*certs.Certificate{cert}, chain...)
		} else {
			chain = append(chain, cert)
		}
	}
	if len(chain) == 0 || !sameKey(chain[0].PublicKey, k.X, k.Y) {
		return nil, nil, ErrMissingCertificate
	}
	return key, chain, nil
}

func sameKey(pub crypto.PublicKey, x, y *big.Int) bool {
	switch p := pub.(type) {
	case *ecdsa.PublicKey:
		return p.X.Cmp(x) == 0 && p.Y.Cmp(y) == 0
	case *sm2.PublicKey:
		return p.X.Cmp(x) == 0 && p.Y.Cmp(y) == 0
	}
	return false
}
