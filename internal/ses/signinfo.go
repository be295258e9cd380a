package ses

import (
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/evidenceledger/eseal/internal/certs"
	"github.com/evidenceledger/eseal/internal/der"
)

// SignInfo binds a signature over the encoded SealInfo to the certificate of
// the signer and the algorithm used.
type SignInfo struct {
	Cert               []byte
	SignatureAlgorithm asn1.ObjectIdentifier
	SignData           []byte
}

// NewSignInfo builds a validated SignInfo.
func NewSignInfo(cert []byte, alg asn1.ObjectIdentifier, signature []byte) (*SignInfo, error) {
	s := &SignInfo{Cert: cert, SignatureAlgorithm: alg, SignData: signature}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the SignInfo invariants.
func (s *SignInfo) Validate() error {
	if len(s.Cert) == 0 {
		return invalid("signInfo.cert", "empty certificate")
	}
	if _, err := certs.Parse(s.Cert); err != nil {
		return invalid("signInfo.cert", "%v", err)
	}
	if len(s.SignatureAlgorithm) < 2 {
		return invalid("signInfo.signatureAlgorithm", "missing algorithm identifier")
	}
	if len(s.SignData) == 0 {
		return invalid("signInfo.signData", "empty signature")
	}
	return nil
}

func (s *SignInfo) marshal(b *cryptobyte.Builder) {
	der.AddSequence(b, func(b *cryptobyte.Builder) {
		der.AddOctetString(b, s.Cert)
		der.AddObjectIdentifier(b, s.SignatureAlgorithm)
		der.AddBitString(b, s.SignData)
	})
}

// Encode returns the DER encoding of the sign info.
func (s *SignInfo) Encode() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return der.Marshal(s.marshal)
}

func readSignInfo(d *der.Decoder, name string) (*SignInfo, error) {
	seq, err := d.Sequence(name)
	if err != nil {
		return nil, err
	}
	var s SignInfo
	if s.Cert, err = seq.OctetString("cert"); err != nil {
		return nil, err
	}
	if s.SignatureAlgorithm, err = seq.ObjectIdentifier("signatureAlgorithm"); err != nil {
		return nil, err
	}
	if s.SignData, err = seq.BitString("signData"); err != nil {
		return nil, err
	}
	if err := seq.Finish(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeSignInfo parses a DER encoded sign info.
func DecodeSignInfo(data []byte) (*SignInfo, error) {
	return decodeAll(data, "signInfo", readSignInfo)
}

func (s *SignInfo) String() string {
	return fmt.Sprintf("SignInfo{alg=%s cert=%dB sig=%dB}", s.SignatureAlgorithm, len(s.Cert), len(s.SignData))
}
