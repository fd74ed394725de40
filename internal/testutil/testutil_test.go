package testutil

import (
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/violation.report/internal/detect"
)

func TestBox(t *testing.T) {
	b := Box(100, 50, 40, 20)
	want := detect.BBox{X1: 80, Y1: 40, X2: 120, Y2: 60}
	if b != want {
		t.Errorf("Box() = %v, want %v", b, want)
	}
	if c := b.Center(); c.X != 100 || c.Y != 50 {
		t.Errorf("centre = %v", c)
	}
	if d := Det(detect.ClassCar, b); d.Validate() != nil {
		t.Errorf("Det() should validate: %v", d.Validate())
	}
}

func TestImages(t *testing.T) {
	cb := Checkerboard(4, 3)
	if cb.Bounds().Dx() != 4 || cb.Bounds().Dy() != 3 {
		t.Fatalf("bounds = %v", cb.Bounds())
	}
	if cb.RGBAAt(0, 0) == cb.RGBAAt(1, 0) {
		t.Error("neighbouring pixels should differ")
	}

	grey := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	s := Solid(2, 2, grey)
	if s.RGBAAt(1, 1) != grey {
		t.Errorf("Solid pixel = %v", s.RGBAAt(1, 1))
	}
}

func TestHTTPHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusCreated)
	rec.Body.WriteString(`{"id":"x"}`)

	AssertStatusCode(t, rec, http.StatusCreated)
	var got struct{ ID string }
	DecodeJSON(t, rec, &got)
	if got.ID != "x" {
		t.Errorf("ID = %q", got.ID)
	}
}
