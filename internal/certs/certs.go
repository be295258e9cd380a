// Package certs parses the X.509 certificates carried inside seals. Standard
// curves go through crypto/x509; certificates on the SM2 curve, which the
// standard library rejects, are parsed with the gmsm fork of x509.
package certs

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	smx509 "github.com/tjfoc/gmsm/x509"

	"github.com/evidenceledger/eseal/internal/cache"
)

// Kind tells organizational certificates from personal ones.
type Kind string

const (
	KindOrganizational Kind = "organizational"
	KindPersonal       Kind = "personal"
)

// OIDOrganizationIdentifier is the ETSI EN 319 412-1 subject attribute.
var OIDOrganizationIdentifier = asn1.ObjectIdentifier{2, 5, 4, 97}

// ErrEmptyCertificate is returned for zero length input.
var ErrEmptyCertificate = errors.New("empty certificate")

// Certificate is the subset of a parsed certificate that seal handling needs.
type Certificate struct {
	Raw          []byte
	PublicKey    crypto.PublicKey
	Subject      pkix.Name
	Issuer       pkix.Name
	SerialNumber *big.Int
	NotBefore    time.Time
	NotAfter     time.Time
}

// Parser turns DER bytes into a Certificate.
type Parser interface {
	Parse(der []byte) (*Certificate, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(der []byte) (*Certificate, error)

func (f ParserFunc) Parse(der []byte) (*Certificate, error) { return f(der) }

// Default parses without caching.
var Default Parser = ParserFunc(Parse)

// Parse parses a DER encoded certificate.
func Parse(der []byte) (*Certificate, error) {
	if len(der) == 0 {
		return nil, ErrEmptyCertificate
	}

	if c, err := x509.ParseCertificate(der); err == nil {
		return &Certificate{
			Raw:          c.Raw,
			PublicKey:    c.PublicKey,
			Subject:      c.Subject,
			Issuer:       c.Issuer,
			SerialNumber: c.SerialNumber,
			NotBefore:    c.NotBefore,
			NotAfter:     c.NotAfter,
		}, nil
	}

	c, err := smx509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return &Certificate{
		Raw:          c.Raw,
		PublicKey:    c.PublicKey,
		Subject:      c.Subject,
		Issuer:       c.Issuer,
		SerialNumber: c.SerialNumber,
		NotBefore:    c.NotBefore,
		NotAfter:     c.NotAfter,
	}, nil
}

// OrganizationIdentifier returns the subject organizationIdentifier, if any.
func (c *Certificate) OrganizationIdentifier() string {
	for _, n := range c.Subject.Names {
		if n.Type.Equal(OIDOrganizationIdentifier) {
			if s, ok := n.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// Kind classifies the certificate by its subject: an organizationIdentifier
// or an organization name makes it organizational.
func (c *Certificate) Kind() Kind {
	if c.OrganizationIdentifier() != "" || len(c.Subject.Organization) > 0 {
		return KindOrganizational
	}
	return KindPersonal
}

// ValidAt reports whether t falls inside the certificate validity period.
func (c *Certificate) ValidAt(t time.Time) bool {
	return !t.Before(c.NotBefore) && !t.After(c.NotAfter)
}

// Fingerprint is the hex SHA-256 of the DER encoding.
func (c *Certificate) Fingerprint() string {
	return Fingerprint(c.Raw)
}

// Fingerprint is the hex SHA-256 of der.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// CachingParser memoizes parse results by certificate fingerprint.
type CachingParser struct {
	next  Parser
	cache *cache.Cache[string, *Certificate]
}

// NewCachingParser wraps next (Default if nil) with c.
func NewCachingParser(next Parser, c *cache.Cache[string, *Certificate]) *CachingParser {
	if next == nil {
		next = Default
	}
	return &CachingParser{next: next, cache: c}
}

// Parse returns the cached result or delegates and stores it.
func (p *CachingParser) Parse(der []byte) (*Certificate, error) {
	key := Fingerprint(der)
	if c, ok := p.cache.Get(key); ok {
		return c, nil
	}
	c, err := p.next.Parse(der)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, c, 0)
	return c, nil
}
