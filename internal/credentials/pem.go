package credentials

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/tjfoc/gmsm/sm2"
	smx509 "github.com/tjfoc/gmsm/x509"

	"github.com/evidenceledger/eseal/internal/certs"
)

// PEM block types.
const (
	CertificatePEMBlockType = "CERTIFICATE"
	pemPKCS8PrivateKey      = "PRIVATE KEY"
	pemSEC1PrivateKey       = "EC PRIVATE KEY"
)

var (
	ErrMissingPrivateKey  = errors.New("private key not found")
	ErrMissingCertificate = errors.New("certificate not found")
	ErrUnsupportedKey     = errors.New("unsupported private key type")
)

// ParsePrivateKeyPEM scans concatenated PEM data and returns the first private
// key it can parse. PKCS#8 keys on standard curves and on the SM2 curve are
// supported, as are SEC1 EC keys.
func ParsePrivateKeyPEM(data []byte) (crypto.PrivateKey, error) {
	for len(data) > 0 {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		switch block.Type {
		case pemPKCS8PrivateKey:
			if k, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
				return k, nil
			}
			if k, err := smx509.ParsePKCS8UnecryptedPrivateKey(block.Bytes); err == nil {
				return k, nil
			}
		case pemSEC1PrivateKey:
			if k, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
				return k, nil
			}
		}
		data = rest
	}
	return nil, ErrMissingPrivateKey
}

// ParseCertificateChainPEM parses the consecutive CERTIFICATE blocks in data,
// skipping leading key blocks. The order of the input is kept, so the leaf
// comes first.
func ParseCertificateChainPEM(data []byte) ([]*certs.Certificate, error) {
	var chain []*certs.Certificate

	for len(data) > 0 {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		data = rest
		if block.Type != CertificatePEMBlockType {
			if len(chain) == 0 {
				continue
			}
			break
		}
		c, err := certs.Parse(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("certificate %d: %w", len(chain), err)
		}
		chain = append(chain, c)
	}

	if len(chain) == 0 {
		return nil, ErrMissingCertificate
	}
	return chain, nil
}

// EncodePrivateKeyPEM marshals key as a PKCS#8 PEM block.
func EncodePrivateKeyPEM(key crypto.PrivateKey) ([]byte, error) {
	var (
		der []byte
		err error
	)
	switch k := key.(type) {
	case *sm2.PrivateKey:
		der, err = smx509.MarshalSm2UnecryptedPrivateKey(k)
	case *ecdsa.PrivateKey:
		der, err = x509.MarshalPKCS8PrivateKey(k)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPKCS8PrivateKey, Bytes: der}), nil
}

// EncodeCertificatePEM wraps DER certificates in CERTIFICATE blocks.
func EncodeCertificatePEM(chain ...[]byte) []byte {
	var out []byte
	for _, der := range chain {
		out = append(out, pem.EncodeToMemory(&pem.Block{Type: CertificatePEMBlockType, Bytes: der})...)
	}
	return out
}

// EncodeBundle writes key followed by the certificate chain, the layout read
// back by FileStore.
func EncodeBundle(key crypto.PrivateKey, chain ...[]byte) ([]byte, error) {
	keyPEM, err := EncodePrivateKeyPEM(key)
	if err != nil {
		return nil, err
	}
	return append(keyPEM, EncodeCertificatePEM(chain...)...), nil
}
