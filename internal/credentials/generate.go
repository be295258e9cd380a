package credentials

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/tjfoc/gmsm/sm2"
	smx509 "github.com/tjfoc/gmsm/x509"
)

// KeyType names a key algorithm that can be generated.
type KeyType string

const (
	KeyTypeSM2       KeyType = "sm2"
	KeyTypeECDSAP256 KeyType = "ecdsa-p256"
)

// GenerateKey creates a fresh private key of the given type.
func GenerateKey(kt KeyType) (crypto.PrivateKey, error) {
	switch kt {
	case KeyTypeSM2:
		return sm2.GenerateKey(rand.Reader)
	case KeyTypeECDSAP256:
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKey, kt)
	}
}

// GenerateSelfSigned creates a key of type kt and a self-signed certificate
// for subject valid from now for validFor. It returns the key and the DER
// certificate.
func GenerateSelfSigned(kt KeyType, subject pkix.Name, validFor time.Duration) (crypto.PrivateKey, []byte, error) {
	key, err := GenerateKey(kt)
	if err != nil {
		return nil, nil, err
	}
	der, err := SelfSign(key, subject, time.Now().Add(-time.Minute), time.Now().Add(validFor))
	if err != nil {
		return nil, nil, err
	}
	return key, der, nil
}

// SelfSign issues a self-signed signing certificate for key.
func SelfSign(key crypto.PrivateKey, subject pkix.Name, notBefore, notAfter time.Time) ([]byte, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	switch k := key.(type) {
	case *sm2.PrivateKey:
		tmpl := &smx509.Certificate{
			SerialNumber:          serial,
			Subject:               subject,
			NotBefore:             notBefore,
			NotAfter:              notAfter,
			KeyUsage:              smx509.KeyUsageDigitalSignature | smx509.KeyUsageContentCommitment,
			BasicConstraintsValid: true,
			SignatureAlgorithm:    smx509.SM2WithSM3,
		}
		der, err := smx509.CreateCertificate(tmpl, tmpl, &k.PublicKey, k)
		if err != nil {
			return nil, fmt.Errorf("failed to create SM2 certificate: %w", err)
		}
		return der, nil

	case *ecdsa.PrivateKey:
		tmpl := &x509.Certificate{
			SerialNumber:          serial,
			Subject:               subject,
			NotBefore:             notBefore,
			NotAfter:              notAfter,
			KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
			BasicConstraintsValid: true,
		}
		der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &k.PublicKey, k)
		if err != nil {
			return nil, fmt.Errorf("failed to create certificate: %w", err)
		}
		return der, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
}
