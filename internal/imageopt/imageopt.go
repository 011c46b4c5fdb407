// Package imageopt shrinks theme images for production builds.
package imageopt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image/jpeg"
	"image/png"
	"path"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
)

// DefaultJPEGQuality is used when no quality is configured.
const DefaultJPEGQuality = 82

// Optimizer re-encodes raster images and minifies SVG documents. It is safe
// for concurrent use.
type Optimizer struct {
	jpegQuality int
	min         *minify.M
}

// New returns an Optimizer encoding JPEGs at quality (1-100).
func New(quality int) *Optimizer {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	m := minify.New()
	m.AddFunc("image/svg+xml", svg.Minify)
	return &Optimizer{jpegQuality: quality, min: m}
}

// Optimize returns the optimized form of data, chosen by the extension of
// name. The input is returned unchanged when the format is not handled or
// when optimizing does not make it smaller.
func (o *Optimizer) Optimize(name string, data []byte) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg":
		out, err = o.jpeg(data)
	case ".png":
		out, err = o.png(data)
	case ".svg":
		out, err = o.min.Bytes("image/svg+xml", data)
	default:
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("optimize %s: %w", name, err)
	}
	if len(out) >= len(data) {
		return data, nil
	}
	return out, nil
}

// jpeg re-encodes data. Files carrying Exif or an ICC profile are returned
// as is: the encoder drops both, which would lose orientation and colour.
func (o *Optimizer) jpeg(data []byte) ([]byte, error) {
	if hasJPEGMetadata(data) {
		return data, nil
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: o.jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	exifID = []byte("Exif\x00\x00")
	iccID  = []byte("ICC_PROFILE\x00")
)

// hasJPEGMetadata scans the marker segments before the image data for an
// APP1 Exif or APP2 ICC profile segment.
func hasJPEGMetadata(data []byte) bool {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return false
	}
	for i := 2; i+4 <= len(data); {
		if data[i] != 0xFF {
			return false
		}
		marker := data[i+1]
		switch {
		case marker == 0xFF:
			i++
			continue
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			i += 2
			continue
		case marker == 0xDA || marker == 0xD9:
			return false
		}
		n := int(binary.BigEndian.Uint16(data[i+2:]))
		if n < 2 || i+2+n > len(data) {
			return false
		}
		payload := data[i+4 : i+2+n]
		if (marker == 0xE1 && bytes.HasPrefix(payload, exifID)) ||
			(marker == 0xE2 && bytes.HasPrefix(payload, iccID)) {
			return true
		}
		i += 2 + n
	}
	return false
}

func (o *Optimizer) png(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
