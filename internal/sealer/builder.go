// Package sealer builds signed electronic seals and verifies them.
package sealer

import (
	"context"
	"crypto"
	"encoding/asn1"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/evidenceledger/eseal/internal/certs"
	"github.com/evidenceledger/eseal/internal/ses"
	"github.com/evidenceledger/eseal/internal/signing"
)

// Request carries everything needed to build one seal.
type Request struct {
	Header             *ses.Header
	SealID             string
	Property           *ses.PropertyInfo
	Picture            *ses.PictureInfo
	SigningCertificate []byte
	SigningKey         crypto.PrivateKey

	// Algorithm selects the signature service. When empty the first service
	// that accepts SigningKey is used.
	Algorithm asn1.ObjectIdentifier
}

// Builder assembles and signs seals. It holds no per-call state and can be
// shared between goroutines.
type Builder struct {
	registry *signing.Registry
	parser   certs.Parser
}

// NewBuilder returns a Builder. Nil arguments select the default registry
// and certificate parser.
func NewBuilder(registry *signing.Registry, parser certs.Parser) *Builder {
	if registry == nil {
		registry = signing.Default()
	}
	if parser == nil {
		parser = certs.Default
	}
	return &Builder{registry: registry, parser: parser}
}

// NewSealID returns a random seal identifier: a UUID without dashes.
func NewSealID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Build validates the request, signs the encoded SealInfo and returns the
// seal. Invalid input yields a *ses.ValidationError before anything is
// signed; a failure to sign yields a *SigningError.
func (b *Builder) Build(ctx context.Context, req Request) (*ses.Seal, error) {
	info, err := ses.NewSealInfo(req.Header, req.SealID, req.Property, req.Picture)
	if err != nil {
		return nil, err
	}
	if len(req.SigningCertificate) == 0 {
		return nil, &ses.ValidationError{Field: "signingCertificate", Reason: "missing"}
	}
	signer, err := b.parser.Parse(req.SigningCertificate)
	if err != nil {
		return nil, &ses.ValidationError{Field: "signingCertificate", Reason: err.Error()}
	}
	if req.SigningKey == nil {
		return nil, &SigningError{Err: signing.ErrKeyMismatch}
	}

	svc, err := b.service(req)
	if err != nil {
		return nil, &SigningError{Err: err}
	}

	message, err := info.Encode()
	if err != nil {
		return nil, err
	}

	signature, err := svc.Sign(ctx, message, req.SigningKey)
	if err != nil {
		return nil, &SigningError{Algorithm: svc.Name(), Err: err}
	}
	if !signing.SafeVerify(ctx, svc, message, signature, signer.PublicKey) {
		return nil, &SigningError{Algorithm: svc.Name(), Err: ErrCertificateMismatch}
	}

	signInfo, err := ses.NewSignInfo(req.SigningCertificate, svc.Algorithm(), signature)
	if err != nil {
		return nil, err
	}
	seal, err := ses.NewSeal(info, signInfo)
	if err != nil {
		return nil, err
	}

	slog.Debug("Seal built",
		"esID", info.ESID,
		"algorithm", svc.Name(),
		"signer", signer.Subject.CommonName,
		"message_bytes", len(message),
	)
	return seal, nil
}

func (b *Builder) service(req Request) (signing.Service, error) {
	if len(req.Algorithm) == 0 {
		return b.registry.ForKey(req.SigningKey)
	}
	svc, err := b.registry.Lookup(req.Algorithm)
	if err != nil {
		return nil, err
	}
	if !svc.SupportsKey(req.SigningKey) {
		return nil, signing.ErrKeyMismatch
	}
	return svc, nil
}
