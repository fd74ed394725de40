package detect

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // frame decoders
	_ "image/png"
	"io"
	"path/filepath"
	"time"

	"github.com/banshee-data/violation.report/internal/fsutil"
	"github.com/banshee-data/violation.report/internal/monitoring"
)

// Detector produces the detections for one frame. Implementations wrap a
// real model; the pipeline never depends on how detections are produced.
type Detector interface {
	Detect(ctx context.Context, frame Frame) ([]Detection, error)
}

// Precomputed is a Detector for feeds that already carry the detector's
// output alongside each frame.
type Precomputed struct{}

// Detect returns the detections attached to the frame.
func (Precomputed) Detect(_ context.Context, frame Frame) ([]Detection, error) {
	return frame.Detections, nil
}

// FrameSource yields frames of one stream in arrival order. Next returns
// io.EOF once the stream is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
}

// feedRecord is one JSON line of a detection feed.
type feedRecord struct {
	Stream     string          `json:"stream"`
	Frame      int64           `json:"frame"`
	Timestamp  time.Time       `json:"ts"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Image      string          `json:"image,omitempty"`
	Detections []feedDetection `json:"detections"`
}

type feedDetection struct {
	Box        [4]float64 `json:"box"`
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
}

// convertDetections maps wire detections to Detections, dropping classes
// the pipeline does not know.
func convertDetections(in []feedDetection) []Detection {
	var out []Detection
	for _, d := range in {
		class, ok := ParseClass(d.Class)
		if !ok {
			continue
		}
		out = append(out, Detection{
			Box:        BBox{X1: d.Box[0], Y1: d.Box[1], X2: d.Box[2], Y2: d.Box[3]},
			Class:      class,
			Confidence: d.Confidence,
		})
	}
	return out
}

// FeedReader decodes a JSON-lines detection feed written by an external
// detector process. Image paths are resolved relative to BaseDir.
type FeedReader struct {
	StreamID string
	BaseDir  string
	FS       fsutil.FileSystem

	scanner *bufio.Scanner
	line    int
	last    int64
}

// NewFeedReader creates a FeedReader over r. Frames without a stream id
// inherit streamID.
func NewFeedReader(r io.Reader, streamID, baseDir string, fsys fsutil.FileSystem) *FeedReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &FeedReader{
		StreamID: streamID,
		BaseDir:  baseDir,
		FS:       fsys,
		scanner:  sc,
		last:     -1,
	}
}

// Next decodes the next frame. Lines that cannot be parsed are skipped and
// logged; unknown classes are dropped from the frame.
func (f *FeedReader) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if !f.scanner.Scan() {
			if err := f.scanner.Err(); err != nil {
				return Frame{}, fmt.Errorf("read feed: %w", err)
			}
			return Frame{}, io.EOF
		}
		f.line++
		raw := f.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec feedRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			monitoring.Logf("[feed %s] line %d: skipping malformed record: %v", f.StreamID, f.line, err)
			continue
		}
		frame, err := f.toFrame(rec)
		if err != nil {
			monitoring.Logf("[feed %s] line %d: %v", f.StreamID, f.line, err)
			continue
		}
		return frame, nil
	}
}

func (f *FeedReader) toFrame(rec feedRecord) (Frame, error) {
	frame := Frame{
		StreamID:  rec.Stream,
		Index:     rec.Frame,
		Timestamp: rec.Timestamp,
		Width:     rec.Width,
		Height:    rec.Height,
	}
	if frame.StreamID == "" {
		frame.StreamID = f.StreamID
	}
	if frame.Timestamp.IsZero() {
		return Frame{}, errors.New("record has no timestamp")
	}
	if frame.Index <= f.last {
		frame.Index = f.last + 1
	}
	f.last = frame.Index

	frame.Detections = convertDetections(rec.Detections)

	if rec.Image != "" {
		img, err := f.loadImage(rec.Image)
		if err != nil {
			// Tracking still works without pixels; evidence is recorded
			// without an image.
			monitoring.Logf("[feed %s] frame %d: image unavailable: %v", frame.StreamID, frame.Index, err)
		} else {
			frame.Image = img
		}
	}
	return frame, nil
}

func (f *FeedReader) loadImage(name string) (image.Image, error) {
	path := name
	if !filepath.IsAbs(path) && f.BaseDir != "" {
		path = filepath.Join(f.BaseDir, name)
	}
	file, err := f.FS.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// SliceSource replays a fixed list of frames; used by tests and replays.
type SliceSource struct {
	Frames []Frame
	pos    int
}

// Next returns the next frame or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.pos >= len(s.Frames) {
		return Frame{}, io.EOF
	}
	f := s.Frames[s.pos]
	s.pos++
	return f, nil
}
