// Package signing is the boundary between seal handling and the signature
// primitives. A Service signs the canonical SealInfo encoding with a private
// key and verifies a signature with a public key. The object identifier a
// Service reports is what gets stored in SignInfo, so a verifier can select
// the matching Service from a Registry.
package signing

import (
	"context"
	"crypto"
	"encoding/asn1"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Signature algorithm identifiers.
var (
	// OIDSM2WithSM3 is sm2sign-with-sm3 (GM/T 0006).
	OIDSM2WithSM3 = asn1.ObjectIdentifier{1, 2, 156, 10197, 1, 501}
	// OIDECDSAWithSHA256 is ecdsa-with-SHA256 (RFC 5758).
	OIDECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")
	ErrKeyMismatch          = errors.New("key does not fit signature algorithm")
)

// Service creates and checks signatures for one algorithm.
//
// Implementations MUST:
// - sign exactly the message bytes they are given
// - return false from Verify for every failure, never panic
// - complete or fail exactly once per call
type Service interface {
	// Name is a short human readable identifier, e.g. "sm2".
	Name() string
	// Algorithm is the signature algorithm identifier stored in SignInfo.
	Algorithm() asn1.ObjectIdentifier
	// SupportsKey reports whether Sign can use key.
	SupportsKey(key crypto.PrivateKey) bool
	// Sign signs message with key.
	Sign(ctx context.Context, message []byte, key crypto.PrivateKey) ([]byte, error)
	// Verify checks signature over message against pub.
	Verify(ctx context.Context, message, signature []byte, pub crypto.PublicKey) bool
}

// Registry maps algorithm identifiers to services. It is built once and never
// modified afterwards, so lookups need no locking.
type Registry struct {
	byOID   map[string]Service
	ordered []Service
}

// NewRegistry creates a registry of services. Two services claiming the same
// algorithm identifier is an error.
func NewRegistry(services ...Service) (*Registry, error) {
	r := &Registry{byOID: make(map[string]Service, len(services))}
	for _, s := range services {
		key := s.Algorithm().String()
		if existing, ok := r.byOID[key]; ok {
			return nil, fmt.Errorf("algorithm %s registered twice (%s, %s)", key, existing.Name(), s.Name())
		}
		r.byOID[key] = s
		r.ordered = append(r.ordered, s)
	}
	return r, nil
}

// Default returns a registry with SM2/SM3 and ECDSA P-256/SHA-256.
func Default() *Registry {
	r, err := NewRegistry(SM2{}, ECDSA{})
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the service for oid.
func (r *Registry) Lookup(oid asn1.ObjectIdentifier) (Service, error) {
	s, ok := r.byOID[oid.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, oid)
	}
	return s, nil
}

// ByName returns the service called name.
func (r *Registry) ByName(name string) (Service, error) {
	for _, s := range r.ordered {
		if strings.EqualFold(s.Name(), name) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
}

// ForKey returns the first registered service that can sign with key.
func (r *Registry) ForKey(key crypto.PrivateKey) (Service, error) {
	for _, s := range r.ordered {
		if s.SupportsKey(key) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: no service for key type %T", ErrUnsupportedAlgorithm, key)
}

// Names lists the registered service names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, s := range r.ordered {
		names = append(names, s.Name())
	}
	sort.Strings(names)
	return names
}

// SafeVerify calls s.Verify and turns a panic inside the primitive into a
// failed verification.
func SafeVerify(ctx context.Context, s Service, message, signature []byte, pub crypto.PublicKey) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return s.Verify(ctx, message, signature, pub)
}
