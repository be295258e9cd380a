package sealer

import (
	"errors"
	"fmt"
)

// ErrCertificateMismatch means the signing key did not produce a signature
// that the signing certificate's public key accepts.
var ErrCertificateMismatch = errors.New("signing key does not match signing certificate")

// SigningError reports that no signature could be produced for a seal.
type SigningError struct {
	Algorithm string
	Err       error
}

func (e *SigningError) Error() string {
	if e.Algorithm == "" {
		return fmt.Sprintf("failed to sign seal: %v", e.Err)
	}
	return fmt.Sprintf("failed to sign seal with %s: %v", e.Algorithm, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}
