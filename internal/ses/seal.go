// Package ses models the GM/T 0031 electronic seal: a signed SealInfo body
// (header, seal id, property and picture) and the SignInfo that binds a
// signature over it to the signer certificate.
//
// Every constructor validates its input and every decoder re-runs the same
// validation, so a decoded value satisfies the same invariants as one built
// in memory. Decoding failures are *der.Error values; invariant violations
// are *ValidationError values.
package ses

import (
	"golang.org/x/crypto/cryptobyte"

	"github.com/evidenceledger/eseal/internal/der"
)

// Seal is the envelope that is stored and transmitted.
type Seal struct {
	SealInfo *SealInfo
	SignInfo *SignInfo
}

// NewSeal pairs a seal body with its signature information.
func NewSeal(info *SealInfo, sign *SignInfo) (*Seal, error) {
	s := &Seal{SealInfo: info, SignInfo: sign}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks both halves of the envelope.
func (s *Seal) Validate() error {
	if s.SealInfo == nil {
		return invalid("sealInfo", "missing")
	}
	if err := s.SealInfo.Validate(); err != nil {
		return err
	}
	if s.SignInfo == nil {
		return invalid("signInfo", "missing")
	}
	return s.SignInfo.Validate()
}

func (s *Seal) marshal(b *cryptobyte.Builder) {
	der.AddSequence(b, func(b *cryptobyte.Builder) {
		s.SealInfo.marshal(b)
		s.SignInfo.marshal(b)
	})
}

// Encode returns the DER encoding of the whole seal.
func (s *Seal) Encode() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return der.Marshal(s.marshal)
}

func readSeal(d *der.Decoder, name string) (*Seal, error) {
	seq, err := d.Sequence(name)
	if err != nil {
		return nil, err
	}
	var s Seal
	if s.SealInfo, err = readSealInfo(seq, "sealInfo"); err != nil {
		return nil, err
	}
	if s.SignInfo, err = readSignInfo(seq, "signInfo"); err != nil {
		return nil, err
	}
	if err := seq.Finish(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Decode parses a DER encoded seal. Trailing bytes after the envelope are
// rejected.
func Decode(data []byte) (*Seal, error) {
	return decodeAll(data, "seal", readSeal)
}
