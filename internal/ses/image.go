package ses

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
)

var mimeFormats = []struct {
	mime   string
	format string
}{
	{"image/png", FormatPNG},
	{"image/jpeg", FormatJPG},
	{"image/gif", FormatGIF},
	{"image/bmp", FormatBMP},
	{"image/svg+xml", FormatSVG},
	// OFD documents are zip containers
	{"application/zip", FormatOFD},
}

// DetectImageFormat sniffs data and returns the matching format token.
func DetectImageFormat(data []byte) (string, error) {
	if len(data) == 0 {
		return "", invalid("picture.data", "empty image")
	}
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		for _, f := range mimeFormats {
			if m.Is(f.mime) {
				return f.format, nil
			}
		}
	}
	return "", invalid("picture.type", "unsupported image content %s", detected.String())
}

// PictureInfoFromImage detects the format of data and builds a PictureInfo.
// A zero width or height is read from the image itself, which works for the
// raster formats the standard library decodes (PNG, JPG, GIF).
func PictureInfoFromImage(data []byte, width, height int64) (*PictureInfo, error) {
	format, err := DetectImageFormat(data)
	if err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, invalid("picture.width", "%s image needs explicit dimensions: %v", format, err)
		}
		if width == 0 {
			width = int64(cfg.Width)
		}
		if height == 0 {
			height = int64(cfg.Height)
		}
	}
	return NewPictureInfo(format, data, width, height)
}

// String summarizes the picture without its payload.
func (p *PictureInfo) String() string {
	return fmt.Sprintf("%s %dx%d (%d bytes)", p.Type, p.Width, p.Height, len(p.Data))
}
