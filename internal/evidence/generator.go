package evidence

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/banshee-data/violation.report/internal/config"
	"github.com/banshee-data/violation.report/internal/detect"
	"github.com/banshee-data/violation.report/internal/monitoring"
	"github.com/banshee-data/violation.report/internal/plates"
	"github.com/banshee-data/violation.report/internal/timeutil"
	"github.com/banshee-data/violation.report/internal/tracking"
	"github.com/banshee-data/violation.report/internal/units"
	"github.com/banshee-data/violation.report/internal/violations"
)

// GeneratorConfig controls evidence rendering and collaborator timeouts.
type GeneratorConfig struct {
	Padding        int
	BlurFaces      bool
	BlurStrength   int // pixelation block size
	JPEGQuality    int
	OCRTimeout     time.Duration
	PersistTimeout time.Duration
	SpeedUnits     string // used in overspeeding labels
}

// GeneratorConfigFromTuning builds a GeneratorConfig from the tuning file.
func GeneratorConfigFromTuning(cfg *config.TuningConfig) GeneratorConfig {
	return GeneratorConfig{
		Padding:        cfg.GetEvidencePadding(),
		BlurFaces:      cfg.GetBlurFaces(),
		BlurStrength:   cfg.GetFaceBlurStrength(),
		JPEGQuality:    cfg.GetJPEGQuality(),
		OCRTimeout:     cfg.GetOCRTimeout(),
		PersistTimeout: cfg.GetPersistTimeout(),
		SpeedUnits:     cfg.GetSpeedUnits(),
	}
}

// Generator builds artifacts from violation events.
type Generator struct {
	Config GeneratorConfig
	RunID  string

	plates plates.Reader
	writer ImageWriter
	clock  timeutil.Clock
}

// NewGenerator creates a Generator. A nil reader disables plate reading; a
// nil writer records artifacts without images.
func NewGenerator(cfg GeneratorConfig, reader plates.Reader, writer ImageWriter, clock timeutil.Clock) *Generator {
	if reader == nil {
		reader = plates.Nop{}
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Generator{Config: cfg, plates: reader, writer: writer, clock: clock}
}

// Generate renders and persists the evidence for ev observed in frame.
// persons are the live person tracks used for face redaction. Collaborator
// failures degrade the artifact (empty plate, empty image path) and are
// never returned; an error means the event itself is unusable.
func (g *Generator) Generate(ctx context.Context, ev violations.Event, frame detect.Frame, persons []tracking.Track) (Artifact, error) {
	if ev.Primary() == 0 {
		return Artifact{}, fmt.Errorf("%s event has no track", ev.Kind)
	}
	k := KeyOf(ev.Kind, ev.Primary(), ev.Timestamp)
	a := Artifact{
		ID:        k.ID(),
		Kind:      ev.Kind,
		Timestamp: k.Time(),
		TrackID:   ev.Primary(),
		VehicleID: ev.VehicleID,
		StreamID:  frame.StreamID,
		RunID:     g.RunID,
		Box:       ev.Box,
		SpeedMPS:  ev.SpeedMPS,
		Riders:    ev.Riders,
		CreatedAt: g.clock.Now().UTC(),
	}
	if len(ev.TrackIDs) > 1 {
		a.Related = append([]tracking.TrackID(nil), ev.TrackIDs[1:]...)
	}
	if frame.Image == nil {
		monitoring.Debugf("[evidence] %s: frame %d has no pixels", a.ID, frame.Index)
		return a, nil
	}

	if ev.VehicleID != 0 && ev.VehicleBox.Valid() {
		if r := ev.VehicleBox.Rect(frame.Image.Bounds()); !r.Empty() {
			a.Plate = plates.Read(ctx, g.plates, crop(frame.Image, r), g.Config.OCRTimeout)
		}
	}

	img := g.render(ev, frame, persons)
	if img == nil || g.writer == nil {
		return a, nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: g.Config.JPEGQuality}); err != nil {
		monitoring.Logf("[evidence] %s: encode failed: %v", a.ID, err)
		return a, nil
	}

	wctx := ctx
	if g.Config.PersistTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, g.Config.PersistTimeout)
		defer cancel()
	}
	path, err := g.writer.WriteImage(wctx, a.ID+".jpg", buf.Bytes())
	if err != nil {
		monitoring.Logf("[evidence] %s: image not persisted: %v", a.ID, err)
		return a, nil
	}
	a.ImagePath = path
	return a, nil
}

// render crops the padded evidence region, redacts faces and annotates the
// violation. It returns nil when the region lies outside the frame.
func (g *Generator) render(ev violations.Event, frame detect.Frame, persons []tracking.Track) image.Image {
	bounds := frame.Image.Bounds()
	region := ev.Box.Pad(float64(g.Config.Padding)).Rect(bounds)
	if region.Empty() {
		return nil
	}
	img := crop(frame.Image, region)

	if g.Config.BlurFaces {
		for _, p := range persons {
			pixelate(img, p.Box.HeadRegion().Rect(region), g.Config.BlurStrength)
		}
	}

	outline(img, ev.Box.Rect(region), annotationColor, boxStroke)
	text := ev.Kind.Label()
	if ev.Kind == violations.KindOverspeeding {
		u := g.Config.SpeedUnits
		text = fmt.Sprintf("%s %.0f %s", text, units.ConvertSpeed(ev.SpeedMPS, u), u)
	}
	label(img, text)
	return img
}
