//go:build !tesseract

package plates

import (
	"context"
	"image"
)

// Tesseract is unavailable in builds without the tesseract tag.
type Tesseract struct{}

// NewTesseract reports ErrUnavailable; rebuild with -tags tesseract.
func NewTesseract(string) (*Tesseract, error) { return nil, ErrUnavailable }

// ReadPlate implements Reader.
func (*Tesseract) ReadPlate(context.Context, image.Image) (string, error) {
	return "", ErrUnavailable
}

// Close is a no-op.
func (*Tesseract) Close() error { return nil }
