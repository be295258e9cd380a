package ses

import (
	"slices"

	"golang.org/x/crypto/cryptobyte"

	"github.com/evidenceledger/eseal/internal/der"
)

// Image format tokens recognized in PictureInfo.
const (
	FormatPNG = "PNG"
	FormatJPG = "JPG"
	FormatGIF = "GIF"
	FormatBMP = "BMP"
	FormatSVG = "SVG"
	FormatOFD = "OFD"
)

var imageFormats = []string{FormatPNG, FormatJPG, FormatGIF, FormatBMP, FormatSVG, FormatOFD}

// KnownImageFormat reports whether format is a recognized token. Tokens are
// case sensitive.
func KnownImageFormat(format string) bool {
	return slices.Contains(imageFormats, format)
}

// PictureInfo is the stamp image and its display size in pixels.
type PictureInfo struct {
	Type   string
	Data   []byte
	Width  int64
	Height int64
}

// NewPictureInfo builds a validated PictureInfo.
func NewPictureInfo(format string, data []byte, width, height int64) (*PictureInfo, error) {
	p := &PictureInfo{Type: format, Data: data, Width: width, Height: height}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the PictureInfo invariants.
func (p *PictureInfo) Validate() error {
	if !KnownImageFormat(p.Type) {
		return invalid("picture.type", "unrecognized image format %q", p.Type)
	}
	if len(p.Data) == 0 {
		return invalid("picture.data", "empty image")
	}
	if p.Width <= 0 {
		return invalid("picture.width", "must be positive, got %d", p.Width)
	}
	if p.Height <= 0 {
		return invalid("picture.height", "must be positive, got %d", p.Height)
	}
	return nil
}

func (p *PictureInfo) marshal(b *cryptobyte.Builder) {
	der.AddSequence(b, func(b *cryptobyte.Builder) {
		der.AddIA5String(b, p.Type)
		der.AddOctetString(b, p.Data)
		der.AddInteger(b, p.Width)
		der.AddInteger(b, p.Height)
	})
}

// Encode returns the DER encoding of the picture info.
func (p *PictureInfo) Encode() ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return der.Marshal(p.marshal)
}

func readPictureInfo(d *der.Decoder, name string) (*PictureInfo, error) {
	seq, err := d.Sequence(name)
	if err != nil {
		return nil, err
	}
	var p PictureInfo
	if p.Type, err = seq.IA5String("type"); err != nil {
		return nil, err
	}
	if p.Data, err = seq.OctetString("data"); err != nil {
		return nil, err
	}
	if p.Width, err = seq.Integer("width"); err != nil {
		return nil, err
	}
	if p.Height, err = seq.Integer("height"); err != nil {
		return nil, err
	}
	if err := seq.Finish(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodePictureInfo parses a DER encoded picture info.
func DecodePictureInfo(data []byte) (*PictureInfo, error) {
	return decodeAll(data, "picture", readPictureInfo)
}
