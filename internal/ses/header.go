package ses

import (
	"golang.org/x/crypto/cryptobyte"

	"github.com/evidenceledger/eseal/internal/der"
)

const (
	// HeaderID is the fixed data identifier opening every seal header.
	HeaderID = "ES"
	// VersionV1 is the structure version produced by this package.
	VersionV1 int64 = 1
	// MaxKnownVersion is the highest structure version readers recognize.
	MaxKnownVersion int64 = 4
)

// Header identifies the seal format version and the producing vendor.
type Header struct {
	ID       string
	Version  int64
	VendorID string
}

// NewHeader returns a validated header with the standard identifier.
func NewHeader(version int64, vendorID string) (*Header, error) {
	h := &Header{ID: HeaderID, Version: version, VendorID: vendorID}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Validate checks the header invariants.
func (h *Header) Validate() error {
	if h.ID != HeaderID {
		return invalid("header.id", "must be %q, got %q", HeaderID, h.ID)
	}
	if h.Version < 0 || h.Version > MaxKnownVersion {
		return invalid("header.version", "unrecognized version %d", h.Version)
	}
	if h.VendorID == "" {
		return invalid("header.vid", "empty vendor id")
	}
	if err := der.CheckASCII(h.VendorID); err != nil {
		return invalid("header.vid", "%v", err)
	}
	return nil
}

func (h *Header) marshal(b *cryptobyte.Builder) {
	der.AddSequence(b, func(b *cryptobyte.Builder) {
		der.AddIA5String(b, h.ID)
		der.AddInteger(b, h.Version)
		der.AddIA5String(b, h.VendorID)
	})
}

// Encode returns the DER encoding of the header.
func (h *Header) Encode() ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return der.Marshal(h.marshal)
}

func readHeader(d *der.Decoder, name string) (*Header, error) {
	seq, err := d.Sequence(name)
	if err != nil {
		return nil, err
	}
	var h Header
	if h.ID, err = seq.IA5String("id"); err != nil {
		return nil, err
	}
	if h.Version, err = seq.Integer("version"); err != nil {
		return nil, err
	}
	if h.VendorID, err = seq.IA5String("vid"); err != nil {
		return nil, err
	}
	if err := seq.Finish(); err != nil {
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return &h, nil
}

// DecodeHeader parses a DER encoded header.
func DecodeHeader(data []byte) (*Header, error) {
	return decodeAll(data, "header", readHeader)
}

// decodeAll runs read over data and rejects trailing bytes.
func decodeAll[T any](data []byte, name string, read func(*der.Decoder, string) (*T, error)) (*T, error) {
	d := der.NewDecoder(data, "")
	v, err := read(d, name)
	if err != nil {
		return nil, err
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return v, nil
}
