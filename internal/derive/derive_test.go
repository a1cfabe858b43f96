package derive

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestDeriveFitsWithinBounds(t *testing.T) {
	g := New(200)

	res, err := g.Derive(encodeJPEG(t, 800, 600))
	require.NoError(t, err)

	thumb, format, err := image.Decode(bytes.NewReader(res.Thumbnail))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, thumb.Bounds().Dx())
	assert.Equal(t, 150, thumb.Bounds().Dy())
	assert.Equal(t, 800, res.Width)
	assert.Equal(t, 600, res.Height)
	assert.NotNil(t, res.Metadata)
	assert.Empty(t, res.Metadata, "images without EXIF produce empty metadata")
}

func TestDeriveDoesNotUpscale(t *testing.T) {
	res, err := New(200).Derive(encodeJPEG(t, 40, 80))
	require.NoError(t, err)

	thumb, _, err := image.Decode(bytes.NewReader(res.Thumbnail))
	require.NoError(t, err)
	assert.Equal(t, 40, thumb.Bounds().Dx())
	assert.Equal(t, 80, thumb.Bounds().Dy())
}

func TestDeriveReencodesPNG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 300, 300))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	res, err := New(0).Derive(buf.Bytes())
	require.NoError(t, err)

	_, format, err := image.Decode(bytes.NewReader(res.Thumbnail))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestDeriveRejectsGarbage(t *testing.T) {
	_, err := New(200).Derive([]byte("definitely not an image"))
	assert.Error(t, err)
}

// pngWithDimensions encodes a 1x1 PNG and rewrites its IHDR to declare
// width x height without carrying the pixel data.
func pngWithDimensions(t *testing.T, width, height uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))

	data := buf.Bytes()
	// 8 byte signature, 4 byte length, then "IHDR" and its 13 byte payload.
	require.Equal(t, "IHDR", string(data[12:16]))
	binary.BigEndian.PutUint32(data[16:20], width)
	binary.BigEndian.PutUint32(data[20:24], height)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDeriveRejectsOversizedDimensions(t *testing.T) {
	data := pngWithDimensions(t, 30000, 30000)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, 30000, cfg.Width)

	_, err = New(200).Derive(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyPixels)
}

func TestDeriveHonorsPixelLimitOption(t *testing.T) {
	data := encodeJPEG(t, 40, 30)

	_, err := New(200, WithMaxPixels(40*30-1)).Derive(data)
	assert.ErrorIs(t, err, ErrTooManyPixels)

	res, err := New(200, WithMaxPixels(40*30)).Derive(data)
	require.NoError(t, err)
	assert.Equal(t, 40, res.Width)
}

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Canon EOS R5", cleanString(" Canon EOS R5\x00\x00"))
	assert.Equal(t, "", cleanString("\x00"))
}
