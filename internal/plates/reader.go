// Package plates reads licence plate text from vehicle crops. Reads are
// best-effort: callers get an empty string rather than an error.
package plates

import (
	"context"
	"errors"
	"image"
	"strings"
	"time"
	"unicode"

	"github.com/banshee-data/violation.report/internal/monitoring"
)

// ErrUnavailable is returned when an OCR backend is not compiled in.
var ErrUnavailable = errors.New("ocr backend unavailable")

// Reader extracts plate text from an image.
type Reader interface {
	ReadPlate(ctx context.Context, img image.Image) (string, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(ctx context.Context, img image.Image) (string, error)

// ReadPlate calls f.
func (f ReaderFunc) ReadPlate(ctx context.Context, img image.Image) (string, error) {
	return f(ctx, img)
}

// Nop never recognises a plate.
type Nop struct{}

// ReadPlate returns "".
func (Nop) ReadPlate(context.Context, image.Image) (string, error) { return "", nil }

// Read runs r with a deadline and returns the normalised text. Errors,
// panics and timeouts all yield "". The reader's goroutine is abandoned on
// timeout; readers must honour ctx to release it promptly.
func Read(ctx context.Context, r Reader, img image.Image, timeout time.Duration) string {
	if r == nil || img == nil {
		return ""
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: errors.New("ocr reader panicked")}
			}
		}()
		text, err := r.ReadPlate(ctx, img)
		done <- result{text, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			monitoring.Logf("[plates] read failed: %v", res.err)
			return ""
		}
		return Normalize(res.text)
	case <-ctx.Done():
		monitoring.Logf("[plates] read abandoned: %v", ctx.Err())
		return ""
	}
}

// Normalize upper-cases the text and keeps only letters and digits, which
// is how plates are compared and stored.
func Normalize(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}
