package detect

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/violation.report/internal/fsutil"
	"github.com/banshee-data/violation.report/internal/monitoring"
)

func muteLogs(t *testing.T) {
	t.Helper()
	orig := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = orig })
}

func TestFeedReader(t *testing.T) {
	muteLogs(t)

	fsys := fsutil.NewMemoryFileSystem()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, fsys.WriteFileAtomic("feeds/frames/0001.png", buf.Bytes(), 0o644))

	feed := strings.Join([]string{
		`{"frame":1,"ts":"2026-03-01T10:00:00Z","width":640,"height":480,"image":"frames/0001.png","detections":[{"box":[10,20,50,80],"class":"car","confidence":0.9},{"box":[1,1,2,2],"class":"giraffe","confidence":0.9}]}`,
		``,
		`not json`,
		`{"frame":2,"detections":[]}`,
		`{"stream":"cam-9","frame":1,"ts":"2026-03-01T10:00:00.1Z","detections":[{"box":[0,0,5,5],"class":"traffic light","confidence":0.5}]}`,
	}, "\n")

	r := NewFeedReader(strings.NewReader(feed), "cam-1", "feeds", fsys)
	ctx := context.Background()

	f1, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cam-1", f1.StreamID)
	assert.Equal(t, int64(1), f1.Index)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), f1.Timestamp)
	require.Len(t, f1.Detections, 1, "unknown classes are dropped")
	assert.Equal(t, ClassCar, f1.Detections[0].Class)
	assert.Equal(t, BBox{10, 20, 50, 80}, f1.Detections[0].Box)
	require.NotNil(t, f1.Image)
	assert.Equal(t, 4, f1.Image.Bounds().Dx())

	// Malformed line and the record without timestamp are skipped.
	f2, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cam-9", f2.StreamID)
	assert.Equal(t, int64(2), f2.Index, "indexes never go backwards")
	require.Len(t, f2.Detections, 1)
	assert.Equal(t, ClassTrafficLight, f2.Detections[0].Class)

	_, err = r.Next(ctx)
	assert.True(t, errors.Is(err, io.EOF))
}

func TestFeedReader_MissingImage(t *testing.T) {
	muteLogs(t)

	feed := `{"frame":1,"ts":"2026-03-01T10:00:00Z","image":"nope.jpg","detections":[]}`
	r := NewFeedReader(strings.NewReader(feed), "cam-1", "", fsutil.NewMemoryFileSystem())
	f, err := r.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, f.Image)
}

func TestFeedReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewFeedReader(strings.NewReader(""), "cam-1", "", nil)
	_, err := r.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSliceSourceAndPrecomputed(t *testing.T) {
	t.Parallel()
	dets := []Detection{{Box: BBox{0, 0, 1, 1}, Class: ClassCar, Confidence: 1}}
	src := &SliceSource{Frames: []Frame{{Index: 1, Detections: dets}}}

	f, err := src.Next(context.Background())
	require.NoError(t, err)
	got, err := Precomputed{}.Detect(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, dets, got)

	_, err = src.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}
