package ses

import (
	"golang.org/x/crypto/cryptobyte"

	"github.com/evidenceledger/eseal/internal/der"
)

// SealInfo is the signed body of a seal.
type SealInfo struct {
	Header   *Header
	ESID     string
	Property *PropertyInfo
	Picture  *PictureInfo
	// Extensions is the optional extDatas list. It is covered by the signature.
	Extensions []Extension
}

// NewSealInfo assembles and validates a seal body without an extension.
func NewSealInfo(header *Header, esID string, property *PropertyInfo, picture *PictureInfo) (*SealInfo, error) {
	s := &SealInfo{Header: header, ESID: esID, Property: property, Picture: picture}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the seal body and every part of it.
func (s *SealInfo) Validate() error {
	if s.Header == nil {
		return invalid("header", "missing")
	}
	if err := s.Header.Validate(); err != nil {
		return err
	}
	if s.ESID == "" {
		return invalid("esID", "empty seal id")
	}
	if err := der.CheckASCII(s.ESID); err != nil {
		return invalid("esID", "%v", err)
	}
	if s.Property == nil {
		return invalid("property", "missing")
	}
	if err := s.Property.Validate(); err != nil {
		return err
	}
	if s.Picture == nil {
		return invalid("picture", "missing")
	}
	if err := s.Picture.Validate(); err != nil {
		return err
	}
	return validateExtensions(s.Extensions)
}

func (s *SealInfo) marshal(b *cryptobyte.Builder) {
	der.AddSequence(b, func(b *cryptobyte.Builder) {
		s.Header.marshal(b)
		der.AddIA5String(b, s.ESID)
		s.Property.marshal(b)
		s.Picture.marshal(b)
		marshalExtensions(b, s.Extensions)
	})
}

// Encode returns the DER encoding of the seal body. These bytes are the
// message the seal signature is computed over.
func (s *SealInfo) Encode() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return der.Marshal(s.marshal)
}

func readSealInfo(d *der.Decoder, name string) (*SealInfo, error) {
	seq, err := d.Sequence(name)
	if err != nil {
		return nil, err
	}
	var s SealInfo
	if s.Header, err = readHeader(seq, "header"); err != nil {
		return nil, err
	}
	if s.ESID, err = seq.IA5String("esID"); err != nil {
		return nil, err
	}
	if s.Property, err = readPropertyInfo(seq, "property"); err != nil {
		return nil, err
	}
	if s.Picture, err = readPictureInfo(seq, "picture"); err != nil {
		return nil, err
	}
	if !seq.Empty() {
		if s.Extensions, err = readExtensions(seq, "extDatas"); err != nil {
			return nil, err
		}
	}
	if err := seq.Finish(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeSealInfo parses a DER encoded seal body.
func DecodeSealInfo(data []byte) (*SealInfo, error) {
	return decodeAll(data, "sealInfo", readSealInfo)
}
