// Package testutil provides shared fixtures for tests: boxes and
// detections, synthetic frames, and HTTP response assertions.
package testutil

import (
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/violation.report/internal/detect"
)

// Box returns a w x h box centred on (cx, cy).
func Box(cx, cy, w, h float64) detect.BBox {
	return detect.BBox{X1: cx - w/2, Y1: cy - h/2, X2: cx + w/2, Y2: cy + h/2}
}

// Det returns a confident detection of class at b.
func Det(class detect.Class, b detect.BBox) detect.Detection {
	return detect.Detection{Box: b, Class: class, Confidence: 0.9}
}

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// Checkerboard returns a w x h image of alternating black and white
// pixels. Any blur or pixelation of a region changes its pixels.
func Checkerboard(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Errorf("status code = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

// DecodeJSON decodes the recorded body into v, failing the test on error.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}
