package detect

import (
	"errors"
	"fmt"
	"image"
	"math"
	"time"
)

// Sentinel errors returned by Detection.Validate.
var (
	ErrInvalidBox = errors.New("invalid bounding box")
	ErrConfidence = errors.New("confidence out of range")
)

// Class is the label attached to a detection by the upstream detector.
type Class string

const (
	ClassCar          Class = "car"
	ClassMotorcycle   Class = "motorcycle"
	ClassBus          Class = "bus"
	ClassTruck        Class = "truck"
	ClassBicycle      Class = "bicycle"
	ClassPerson       Class = "person"
	ClassTrafficLight Class = "traffic_light"
	ClassHelmet       Class = "helmet"
)

// IsVehicle reports whether c is one of the tracked vehicle subtypes.
func (c Class) IsVehicle() bool {
	switch c {
	case ClassCar, ClassMotorcycle, ClassBus, ClassTruck, ClassBicycle:
		return true
	}
	return false
}

// IsTwoWheeler reports whether riders can be associated with c.
func (c Class) IsTwoWheeler() bool {
	return c == ClassMotorcycle || c == ClassBicycle
}

// ParseClass maps the label strings emitted by common detectors onto Class.
// COCO style names ("traffic light", "motorbike") are accepted.
func ParseClass(s string) (Class, bool) {
	switch s {
	case "car":
		return ClassCar, true
	case "motorcycle", "motorbike":
		return ClassMotorcycle, true
	case "bus":
		return ClassBus, true
	case "truck":
		return ClassTruck, true
	case "bicycle":
		return ClassBicycle, true
	case "person", "pedestrian":
		return ClassPerson, true
	case "traffic_light", "traffic light":
		return ClassTrafficLight, true
	case "helmet":
		return ClassHelmet, true
	}
	return "", false
}

// Point is a pixel-space coordinate.
type Point struct {
	X float64
	Y float64
}

// Dist returns the euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// BBox is an axis-aligned box in pixel space with X1<X2 and Y1<Y2.
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// Width returns the box width in pixels.
func (b BBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the box height in pixels.
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Area returns the box area, zero for degenerate boxes.
func (b BBox) Area() float64 {
	if !b.Valid() {
		return 0
	}
	return b.Width() * b.Height()
}

// Center returns the centroid of the box.
func (b BBox) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Diagonal returns the length of the box diagonal.
func (b BBox) Diagonal() float64 {
	return math.Hypot(b.Width(), b.Height())
}

// Valid reports whether every coordinate is finite and the box has
// positive width and height.
func (b BBox) Valid() bool {
	for _, v := range [...]float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

// Intersect returns the overlap of b and o. The result is not Valid when
// the boxes are disjoint.
func (b BBox) Intersect(o BBox) BBox {
	return BBox{
		X1: math.Max(b.X1, o.X1),
		Y1: math.Max(b.Y1, o.Y1),
		X2: math.Min(b.X2, o.X2),
		Y2: math.Min(b.Y2, o.Y2),
	}
}

// Union returns the smallest box containing both b and o.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		X1: math.Min(b.X1, o.X1),
		Y1: math.Min(b.Y1, o.Y1),
		X2: math.Max(b.X2, o.X2),
		Y2: math.Max(b.Y2, o.Y2),
	}
}

// IoU returns the intersection-over-union of b and o in [0,1].
func (b BBox) IoU(o BBox) float64 {
	inter := b.Intersect(o).Area()
	if inter == 0 {
		return 0
	}
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Pad grows the box by px on every side.
func (b BBox) Pad(px float64) BBox {
	return BBox{X1: b.X1 - px, Y1: b.Y1 - px, X2: b.X2 + px, Y2: b.Y2 + px}
}

// HeadRegion returns the upper third of a person box, where a face or a
// helmet is expected.
func (b BBox) HeadRegion() BBox {
	return BBox{X1: b.X1, Y1: b.Y1, X2: b.X2, Y2: b.Y1 + b.Height()/3}
}

// Rect converts the box to an image rectangle clamped to bounds.
func (b BBox) Rect(bounds image.Rectangle) image.Rectangle {
	r := image.Rect(
		int(math.Floor(b.X1)), int(math.Floor(b.Y1)),
		int(math.Ceil(b.X2)), int(math.Ceil(b.Y2)),
	)
	return r.Intersect(bounds)
}

func (b BBox) String() string {
	return fmt.Sprintf("[%.1f,%.1f,%.1f,%.1f]", b.X1, b.Y1, b.X2, b.Y2)
}

// Detection is one object reported by the detector for one frame.
type Detection struct {
	Box        BBox
	Class      Class
	Confidence float64
}

// Validate checks the box geometry and the confidence range.
func (d Detection) Validate() error {
	if !d.Box.Valid() {
		return fmt.Errorf("%w: %s %s", ErrInvalidBox, d.Class, d.Box)
	}
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("%w: %s %.3f", ErrConfidence, d.Class, d.Confidence)
	}
	return nil
}

// Frame is one decoded camera frame plus the detections produced for it.
type Frame struct {
	StreamID  string
	Index     int64
	Timestamp time.Time
	Width     int
	Height    int

	// Image may be nil when only detections are available (replays,
	// tests). Evidence is then recorded without a picture.
	Image image.Image

	Detections []Detection
}

// Size returns the frame dimensions, falling back to the image bounds.
func (f Frame) Size() (int, int) {
	if f.Width > 0 && f.Height > 0 {
		return f.Width, f.Height
	}
	if f.Image != nil {
		b := f.Image.Bounds()
		return b.Dx(), b.Dy()
	}
	return 0, 0
}

// ByClass returns the detections whose class satisfies keep.
func ByClass(dets []Detection, keep func(Class) bool) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if keep(d.Class) {
			out = append(out, d)
		}
	}
	return out
}
