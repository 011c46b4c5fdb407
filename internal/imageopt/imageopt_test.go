package imageopt

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255})
		}
	}
	return img
}

func TestOptimize_PNGRecompressed(t *testing.T) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	require.NoError(t, enc.Encode(&buf, testImage()))

	out, err := New(0).Optimize("logo.PNG", buf.Bytes())
	require.NoError(t, err)
	require.Less(t, len(out), buf.Len())

	_, err = png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
}

func TestOptimize_JPEGKeepsSmallerResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(), &jpeg.Options{Quality: 100}))

	out, err := New(50).Optimize("photo.jpg", buf.Bytes())
	require.NoError(t, err)
	require.Less(t, len(out), buf.Len())

	// Already at low quality: re-encoding higher must not grow the file.
	var low bytes.Buffer
	require.NoError(t, jpeg.Encode(&low, testImage(), &jpeg.Options{Quality: 10}))
	out, err = New(95).Optimize("photo.jpeg", low.Bytes())
	require.NoError(t, err)
	require.Equal(t, low.Bytes(), out)
}

// withSegment inserts an APPn segment right after the SOI marker.
func withSegment(t *testing.T, jpg []byte, marker byte, payload []byte) []byte {
	t.Helper()
	require.True(t, bytes.HasPrefix(jpg, []byte{0xFF, 0xD8}))
	n := len(payload) + 2
	seg := append([]byte{0xFF, marker, byte(n >> 8), byte(n)}, payload...)
	out := append([]byte{0xFF, 0xD8}, seg...)
	return append(out, jpg[2:]...)
}

func TestOptimize_JPEGWithMetadataKept(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(), &jpeg.Options{Quality: 100}))

	// Big-endian TIFF header with a single Orientation=6 entry.
	exif := append([]byte("Exif\x00\x00"),
		'M', 'M', 0x00, 0x2A, 0x00, 0x00, 0x00, 0x08,
		0x00, 0x01,
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, 0x06, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00)
	icc := append([]byte("ICC_PROFILE\x00"), 0x01, 0x01, 'p', 'r', 'o', 'f')

	tests := []struct {
		name    string
		marker  byte
		payload []byte
	}{
		{name: "exif", marker: 0xE1, payload: exif},
		{name: "icc", marker: 0xE2, payload: icc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := withSegment(t, buf.Bytes(), tt.marker, tt.payload)
			_, err := jpeg.Decode(bytes.NewReader(src))
			require.NoError(t, err)

			out, err := New(50).Optimize("photo.jpg", src)
			require.NoError(t, err)
			require.Equal(t, src, out)
		})
	}

	// An unrelated APP1 segment (XMP) does not block re-encoding.
	xmp := withSegment(t, buf.Bytes(), 0xE1, []byte("http://ns.adobe.com/xap/1.0/\x00<x/>"))
	out, err := New(50).Optimize("photo.jpg", xmp)
	require.NoError(t, err)
	require.Less(t, len(out), len(xmp))
}

func TestOptimize_SVGMinified(t *testing.T) {
	src := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<!-- generator comment -->
<svg xmlns="http://www.w3.org/2000/svg"   width="10"   height="10">
    <rect x="0" y="0" width="10" height="10" fill="#ff0000" />
</svg>
`)
	out, err := New(0).Optimize("icon.svg", src)
	require.NoError(t, err)
	require.Less(t, len(out), len(src))
	require.NotContains(t, string(out), "generator comment")
}

func TestOptimize_Passthrough(t *testing.T) {
	data := []byte("GIF89a not really")
	out, err := New(0).Optimize("anim.gif", data)
	require.NoError(t, err)
	require.Equal(t, data, out)

	out, err = New(0).Optimize("readme.txt", data)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestOptimize_CorruptInput(t *testing.T) {
	_, err := New(0).Optimize("broken.jpg", []byte("definitely not a jpeg"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken.jpg")
}
