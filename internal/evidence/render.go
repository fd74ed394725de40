package evidence

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	annotationColor = color.RGBA{R: 230, G: 30, B: 30, A: 255}
	labelTextColor  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

const boxStroke = 3

// crop copies r out of src into a new image whose origin is r.Min.
func crop(src image.Image, r image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(r)
	draw.Draw(dst, r, src, r.Min, draw.Src)
	return dst
}

// pixelate replaces r with blocks of roughly block×block pixels by
// downscaling the region and scaling it back up without interpolation.
func pixelate(img *image.RGBA, r image.Rectangle, block int) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	if block < 1 {
		block = 1
	}
	w := (r.Dx() + block - 1) / block
	h := (r.Dy() + block - 1) / block
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, r, draw.Src, nil)
	draw.NearestNeighbor.Scale(img, r, small, small.Bounds(), draw.Src, nil)
}

// outline draws a rectangle border of the given stroke inside r.
func outline(img *image.RGBA, r image.Rectangle, c color.Color, stroke int) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	u := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+stroke),
		image.Rect(r.Min.X, r.Max.Y-stroke, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+stroke, r.Max.Y),
		image.Rect(r.Max.X-stroke, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(r), u, image.Point{}, draw.Src)
	}
}

// label writes text on a filled band at the top-left of the image.
func label(img *image.RGBA, text string) {
	face := basicfont.Face7x13
	b := img.Bounds()
	width := font.MeasureString(face, text).Ceil() + 8
	band := image.Rect(b.Min.X, b.Min.Y, b.Min.X+width, b.Min.Y+face.Height+6).Intersect(b)
	draw.Draw(img, band, image.NewUniform(annotationColor), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelTextColor),
		Face: face,
		Dot:  fixed.P(b.Min.X+4, b.Min.Y+3+face.Ascent),
	}
	d.DrawString(text)
}
