package sealer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evidenceledger/eseal/internal/certs"
	"github.com/evidenceledger/eseal/internal/ses"
	"github.com/evidenceledger/eseal/internal/signing"
)

// Status is the outcome of verifying a seal.
type Status int

const (
	Valid Status = iota
	SignatureMismatch
	Expired
	NotYetValid
	MalformedStructure
	UnsupportedAlgorithm
)

var statusNames = map[Status]string{
	Valid:                "Valid",
	SignatureMismatch:    "SignatureMismatch",
	Expired:              "Expired",
	NotYetValid:          "NotYetValid",
	MalformedStructure:   "MalformedStructure",
	UnsupportedAlgorithm: "UnsupportedAlgorithm",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for st, n := range statusNames {
		if n == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown verification status %q", text)
}

// Result describes a verification. Seal is set whenever the input decoded;
// Signer whenever the signer certificate parsed. Err explains every status
// other than Valid.
type Result struct {
	Status Status
	Seal   *ses.Seal
	Signer *certs.Certificate
	// SignerValid reports whether the verification time falls inside the
	// signer certificate validity. It does not affect Status.
	SignerValid bool
	Err         error
}

// Valid reports whether the seal verified and is inside its validity window.
func (r Result) Valid() bool {
	return r.Status == Valid
}

// Verifier checks seals. It holds no per-call state and can be shared between
// goroutines.
type Verifier struct {
	registry *signing.Registry
	parser   certs.Parser
	now      func() time.Time
}

// NewVerifier returns a Verifier. Nil arguments select the default registry
// and certificate parser.
func NewVerifier(registry *signing.Registry, parser certs.Parser) *Verifier {
	if registry == nil {
		registry = signing.Default()
	}
	if parser == nil {
		parser = certs.Default
	}
	return &Verifier{registry: registry, parser: parser, now: time.Now}
}

// Verify checks data against the current time.
func (v *Verifier) Verify(ctx context.Context, data []byte) Result {
	return v.VerifyAt(ctx, data, v.now())
}

// VerifyAt decodes data and checks its signature, then checks that at lies
// inside the seal's validity window. A seal whose signature fails reports
// SignatureMismatch whatever its validity window.
func (v *Verifier) VerifyAt(ctx context.Context, data []byte, at time.Time) Result {
	seal, err := ses.Decode(data)
	if err != nil {
		return v.done(Result{Status: MalformedStructure, Err: err})
	}
	return v.VerifySealAt(ctx, seal, at)
}

// VerifySealAt checks an already decoded seal.
func (v *Verifier) VerifySealAt(ctx context.Context, seal *ses.Seal, at time.Time) Result {
	res := Result{Seal: seal}
	if seal == nil {
		res.Status, res.Err = MalformedStructure, errors.New("no seal")
		return v.done(res)
	}
	if err := seal.Validate(); err != nil {
		res.Status, res.Err = MalformedStructure, err
		return v.done(res)
	}

	message, err := seal.SealInfo.Encode()
	if err != nil {
		res.Status, res.Err = MalformedStructure, err
		return v.done(res)
	}
	signer, err := v.parser.Parse(seal.SignInfo.Cert)
	if err != nil {
		res.Status, res.Err = MalformedStructure, fmt.Errorf("failed to parse signer certificate: %w", err)
		return v.done(res)
	}
	res.Signer = signer
	res.SignerValid = signer.ValidAt(at)

	svc, err := v.registry.Lookup(seal.SignInfo.SignatureAlgorithm)
	if err != nil {
		res.Status, res.Err = UnsupportedAlgorithm, err
		return v.done(res)
	}
	if !signing.SafeVerify(ctx, svc, message, seal.SignInfo.SignData, signer.PublicKey) {
		res.Status, res.Err = SignatureMismatch, fmt.Errorf("%s signature does not verify against signer certificate", svc.Name())
		return v.done(res)
	}

	p := seal.SealInfo.Property
	switch p.ValidityAt(at) {
	case ses.BeforeValidity:
		res.Status, res.Err = NotYetValid, fmt.Errorf("seal valid from %s", p.ValidStart.Format(time.RFC3339))
	case ses.AfterValidity:
		res.Status, res.Err = Expired, fmt.Errorf("seal expired at %s", p.ValidEnd.Format(time.RFC3339))
	default:
		res.Status = Valid
	}
	return v.done(res)
}

func (v *Verifier) done(res Result) Result {
	attrs := []any{"status", res.Status}
	if res.Seal != nil && res.Seal.SealInfo != nil {
		attrs = append(attrs, "esID", res.Seal.SealInfo.ESID)
	}
	if res.Err != nil {
		attrs = append(attrs, "error", res.Err)
	}
	slog.Debug("Seal verified", attrs...)
	return res
}
