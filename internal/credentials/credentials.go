// Package credentials loads signing keys and certificate chains from PEM
// bundles, PKCS#12 keystores or a credentials map.
package credentials

import (
	"crypto"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evidenceledger/eseal/internal/certs"
)

// Credential keys.
//
//nolint:gosec // these are not secrets
const (
	CredentialKeyPrivateKeyPEM           = "private_key_pem" // inline PEM
	CredentialKeyPrivateKeyPEMFile       = CredentialKeyPrivateKeyPEM + "_file"
	CredentialKeyCertificateChainPEM     = "certificate_chain_pem" // inline PEM
	CredentialKeyCertificateChainPEMFile = CredentialKeyCertificateChainPEM + "_file"
)

// Store resolves a reference to a signing key and its certificate chain.
type Store interface {
	LoadPrivateKey(ref string) (crypto.PrivateKey, error)
	// LoadCertificateChain returns the chain leaf first.
	LoadCertificateChain(ref string) ([]*certs.Certificate, error)
}

// FileStore reads PEM bundles from Dir. A reference names a file in Dir; the
// ".pem" extension may be omitted. References ending in ".p12" or ".pfx" are
// PKCS#12 keystores opened with KeystorePassword.
type FileStore struct {
	Dir              string
	KeystorePassword string
}

var _ Store = FileStore{}

func (s FileStore) keystore(ref string) (PKCS12Store, bool) {
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".p12", ".pfx":
		return PKCS12Store{Dir: s.Dir, Password: s.KeystorePassword}, true
	}
	return PKCS12Store{}, false
}

// LoadPrivateKey returns the private key stored in the bundle ref.
func (s FileStore) LoadPrivateKey(ref string) (crypto.PrivateKey, error) {
	if ks, ok := s.keystore(ref); ok {
		return ks.LoadPrivateKey(ref)
	}
	b, err := readFile(s.Dir, ref, ".pem")
	if err != nil {
		return nil, err
	}
	return ParsePrivateKeyPEM(b)
}

// LoadCertificateChain returns the certificates stored in the bundle ref.
func (s FileStore) LoadCertificateChain(ref string) ([]*certs.Certificate, error) {
	if ks, ok := s.keystore(ref); ok {
		return ks.LoadCertificateChain(ref)
	}
	b, err := readFile(s.Dir, ref, ".pem")
	if err != nil {
		return nil, err
	}
	return ParseCertificateChainPEM(b)
}

// readFile reads the credential file ref inside dir, adding ext when ref has
// no extension.
func readFile(dir, ref, ext string) ([]byte, error) {
	if ref == "" || strings.Contains(ref, "..") || filepath.IsAbs(ref) {
		return nil, fmt.Errorf("invalid credential reference %q", ref)
	}
	name := ref
	if filepath.Ext(name) == "" {
		name += ext
	}
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read credential %q: %w", ref, err)
	}
	return b, nil
}

// MapStore holds a single credential as a credentials map, using the
// CredentialKey* entries. References are ignored.
type MapStore map[string]string

var _ Store = MapStore{}

func (m MapStore) LoadPrivateKey(string) (crypto.PrivateKey, error) {
	return PrivateKeyFromCredentials(m)
}

func (m MapStore) LoadCertificateChain(string) ([]*certs.Certificate, error) {
	return CertificateChainFromCredentials(m)
}

// PrivateKeyFromCredentials reads the private key from inline PEM or from the
// file named by the _file key.
func PrivateKeyFromCredentials(credentials map[string]string) (crypto.PrivateKey, error) {
	b, err := loadBytes(credentials[CredentialKeyPrivateKeyPEM], CredentialKeyPrivateKeyPEMFile, credentials)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, ErrMissingPrivateKey
	}
	return ParsePrivateKeyPEM(b)
}

// CertificateChainFromCredentials reads the certificate chain from inline PEM
// or from the file named by the _file key. When neither is set, the private
// key material is searched, since bundles carry both.
func CertificateChainFromCredentials(credentials map[string]string) ([]*certs.Certificate, error) {
	b, err := loadBytes(credentials[CredentialKeyCertificateChainPEM], CredentialKeyCertificateChainPEMFile, credentials)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		b, err = loadBytes(credentials[CredentialKeyPrivateKeyPEM], CredentialKeyPrivateKeyPEMFile, credentials)
		if err != nil {
			return nil, err
		}
	}
	if len(b) == 0 {
		return nil, ErrMissingCertificate
	}
	return ParseCertificateChainPEM(b)
}

// loadBytes loads from inline value or from the file named under fileKey.
func loadBytes(val string, fileKey string, credentials map[string]string) ([]byte, error) {
	if val != "" {
		return []byte(val), nil
	}
	if path := credentials[fileKey]; path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fileKey, err)
		}
		return b, nil
	}
	return nil, nil
}
