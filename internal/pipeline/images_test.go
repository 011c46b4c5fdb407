package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/themebuilder/internal/foundation/errors"
)

func uncompressedPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	require.NoError(t, enc.Encode(&buf, image.NewGray(image.Rect(0, 0, 48, 48))))
	return buf.Bytes()
}

func TestImages_DevelopmentPassesThrough(t *testing.T) {
	opts := testOptions(t, ModeDevelopment)
	raw := uncompressedPNG(t)
	writeFiles(t, opts.Root, map[string]string{
		"src/assets/images/icons/logo.png": string(raw),
		"src/assets/images/notes.txt":      "not an image",
	})

	report, err := Images(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, []string{"dist/assets/images/icons/logo.png"}, report.Written)
	require.Equal(t, string(raw), readFile(t, opts.Root, "dist/assets/images/icons/logo.png"))
}

func TestImages_ProductionOptimizes(t *testing.T) {
	opts := testOptions(t, ModeProduction)
	raw := uncompressedPNG(t)
	writeFiles(t, opts.Root, map[string]string{
		"src/assets/images/logo.png":   string(raw),
		"src/assets/images/broken.jpg": "this is not a jpeg",
		"src/assets/images/anim.gif":   "GIF89a",
	})

	report, err := Images(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, report.Written, 3)

	require.Less(t, len(readFile(t, opts.Root, "dist/assets/images/logo.png")), len(raw))
	require.Equal(t, "this is not a jpeg", readFile(t, opts.Root, "dist/assets/images/broken.jpg"))
	require.Equal(t, "GIF89a", readFile(t, opts.Root, "dist/assets/images/anim.gif"))

	require.Len(t, report.Warnings, 1)
	require.True(t, ferrors.HasCategory(report.Warnings[0], ferrors.CategoryImage))
}

func TestCopy_ByteIdenticalOutsidePipelineDirs(t *testing.T) {
	opts := testOptions(t, ModeProduction)
	font := string([]byte{0x00, 0x01, 0xff, 0xfe, '_', 't', 'h', 'e', 'm', 'e'})
	writeFiles(t, opts.Root, map[string]string{
		"src/assets/fonts/icons.woff":  font,
		"src/assets/vendor/lib.css":    ".x{ }",
		"src/assets/scss/main.scss":    ".a{}",
		"src/assets/js/bundle.js":      "1",
		"src/assets/images/a.png":      "png",
		"src/assets/imagesextra/b.txt": "kept",
	})
	require.NoError(t, os.Chmod(filepath.Join(opts.Root, "src/assets/vendor/lib.css"), 0o600))

	report, err := Copy(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, []string{
		"dist/assets/fonts/icons.woff",
		"dist/assets/imagesextra/b.txt",
		"dist/assets/vendor/lib.css",
	}, report.Written)
	require.Equal(t, font, readFile(t, opts.Root, "dist/assets/fonts/icons.woff"))

	info, err := os.Stat(filepath.Join(opts.Root, "dist/assets/vendor/lib.css"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	require.Empty(t, report.Warnings)
}

func TestCopy_WarnsWhenLandingInAnotherGroupsOutput(t *testing.T) {
	opts := testOptions(t, ModeDevelopment)
	writeFiles(t, opts.Root, map[string]string{"src/assets/css/extra.css": ".x{}"})

	report, err := Copy(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, []string{"dist/assets/css/extra.css"}, report.Written)
	require.Len(t, report.Warnings, 1)
	require.True(t, ferrors.HasCategory(report.Warnings[0], ferrors.CategoryValidation))
}

func TestForGroup(t *testing.T) {
	for _, name := range []string{"styles", "scripts", "images", "other"} {
		_, ok := ForGroup(name)
		require.True(t, ok, name)
	}
	_, ok := ForGroup("templates")
	require.False(t, ok)
}

func TestModeFor(t *testing.T) {
	require.Equal(t, ModeProduction, ModeFor(true))
	require.Equal(t, "development", ModeFor(false).String())
}
