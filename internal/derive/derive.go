// Package derive produces the thumbnail and metadata stored alongside every
// original image.
package derive

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	_ "golang.org/x/image/webp" // registers the WebP decoder

	"github.com/StrixzIV/adv-compro-finals/internal/storage"
)

const (
	DefaultSize = 200
	// DefaultMaxPixels bounds width x height of accepted images.
	DefaultMaxPixels = 89478485
	JPEGQuality    = 85
	ThumbnailType  = "image/jpeg"
	maxValueLength = 256
)

// ErrTooManyPixels is returned when the image header declares more pixels
// than the generator accepts.
var ErrTooManyPixels = errors.New("derive: image dimensions exceed the pixel limit")

// Result is the output of a successful derivation.
type Result struct {
	Thumbnail []byte
	Metadata  storage.Metadata
	Width     int
	Height    int
}

// Generator fits images into a square bounding box and re-encodes them as
// JPEG. It is stateless and safe for concurrent use.
type Generator struct {
	size      int
	maxPixels int64
}

type Option func(*Generator)

// WithMaxPixels overrides DefaultMaxPixels.
func WithMaxPixels(n int64) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxPixels = n
		}
	}
}

func New(size int, opts ...Option) *Generator {
	if size <= 0 {
		size = DefaultSize
	}
	g := &Generator{size: size, maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Derive decodes data, applies the EXIF orientation and returns a thumbnail
// that fits within size x size. Images without EXIF yield empty metadata.
func (g *Generator) Derive(data []byte) (Result, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("derive: read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Result{}, fmt.Errorf("derive: image has no pixels")
	}
	if int64(cfg.Width)*int64(cfg.Height) > g.maxPixels {
		return Result{}, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("derive: decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return Result{}, fmt.Errorf("derive: image has no pixels")
	}

	thumb := fit(img, g.size)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return Result{}, fmt.Errorf("derive: encode thumbnail: %w", err)
	}

	return Result{
		Thumbnail: buf.Bytes(),
		Metadata:  extractMetadata(data),
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}, nil
}

func fit(img image.Image, size int) image.Image {
	b := img.Bounds()
	if b.Dx() <= size && b.Dy() <= size {
		return imaging.Clone(img)
	}
	return imaging.Fit(img, size, size, imaging.Lanczos)
}

type fieldWalker struct {
	fields storage.Metadata
}

func (w *fieldWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if name == exif.MakerNote {
		return nil
	}

	value := tagValue(tag)
	if value == "" || len(value) > maxValueLength {
		return nil
	}

	w.fields = append(w.fields, storage.MetadataField{Key: string(name), Value: value})
	return nil
}

func extractMetadata(data []byte) storage.Metadata {
	x, err := exif.Decode(bytes.NewReader(data))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return storage.Metadata{}
	}

	w := &fieldWalker{}
	if err := x.Walk(w); err != nil {
		return storage.Metadata{}
	}

	sort.Slice(w.fields, func(i, j int) bool {
		return w.fields[i].Key < w.fields[j].Key
	})

	if w.fields == nil {
		return storage.Metadata{}
	}
	return w.fields
}

func tagValue(tag *tiff.Tag) string {
	if tag.Format() == tiff.StringVal {
		s, err := tag.StringVal()
		if err != nil {
			return ""
		}
		return cleanString(s)
	}
	return cleanString(tag.String())
}

// cleanString drops NUL padding and surrounding whitespace that cameras
// commonly leave in ASCII fields.
func cleanString(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}
