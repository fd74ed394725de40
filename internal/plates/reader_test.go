package plates

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/violation.report/internal/monitoring"
)

func muteLogs(t *testing.T) {
	t.Helper()
	orig := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = orig })
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"ka 01 ab 1234\n": "KA01AB1234",
		"MH-12.DE-1433":   "MH12DE1433",
		"  ":              "",
		"ÄB 12":           "B12",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestRead(t *testing.T) {
	muteLogs(t)
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	ctx := context.Background()

	ok := ReaderFunc(func(context.Context, image.Image) (string, error) { return "dl 3c 1234", nil })
	assert.Equal(t, "DL3C1234", Read(ctx, ok, img, time.Second))

	failing := ReaderFunc(func(context.Context, image.Image) (string, error) { return "junk", errors.New("engine crashed") })
	assert.Equal(t, "", Read(ctx, failing, img, time.Second))

	panicking := ReaderFunc(func(context.Context, image.Image) (string, error) { panic("boom") })
	assert.Equal(t, "", Read(ctx, panicking, img, time.Second))

	assert.Equal(t, "", Read(ctx, Nop{}, img, time.Second))
	assert.Equal(t, "", Read(ctx, nil, img, time.Second))
	assert.Equal(t, "", Read(ctx, ok, nil, time.Second))
}

func TestRead_Timeout(t *testing.T) {
	muteLogs(t)
	release := make(chan struct{})
	defer close(release)
	slow := ReaderFunc(func(ctx context.Context, _ image.Image) (string, error) {
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
		return "LATE1", nil
	})

	start := time.Now()
	got := Read(context.Background(), slow, image.NewRGBA(image.Rect(0, 0, 1, 1)), 20*time.Millisecond)
	assert.Equal(t, "", got)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestTesseractUnavailableWithoutTag(t *testing.T) {
	if _, err := NewTesseract("eng"); err != nil {
		assert.True(t, errors.Is(err, ErrUnavailable))
	}
}
