package report

import (
	"bytes"
	"errors"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/violation.report/internal/evidence"
	"github.com/banshee-data/violation.report/internal/fsutil"
	"github.com/banshee-data/violation.report/internal/tracking"
	"github.com/banshee-data/violation.report/internal/violations"
)

var t0 = time.Date(2026, 3, 1, 10, 15, 2, 0, time.UTC)

func artifact(kind violations.Kind, track tracking.TrackID, ts time.Time, mps float64) evidence.Artifact {
	k := evidence.KeyOf(kind, track, ts)
	return evidence.Artifact{ID: k.ID(), Kind: kind, TrackID: track, Timestamp: k.Time(), SpeedMPS: mps}
}

func sample() []evidence.Artifact {
	return []evidence.Artifact{
		artifact(violations.KindOverspeeding, 1, t0, 22),
		artifact(violations.KindOverspeeding, 2, t0.Add(10*time.Minute), 25),
		artifact(violations.KindOverspeeding, 3, t0.Add(2*time.Hour), 31),
		artifact(violations.KindHelmetlessRiding, 4, t0.Add(time.Hour), 0),
		artifact(violations.KindSignalJump, 5, t0.Add(3*time.Hour), 0),
	}
}

func TestRender_PanelsStackVertically(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		artifacts []evidence.Artifact
		panels    int
	}{
		{"with speeds", sample(), 3},
		{"no speeds", sample()[3:], 2},
		{"empty", nil, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			err := Render(&buf, tt.artifacts, Options{Width: 8 * vg.Inch, PanelH: 3 * vg.Inch, Units: "mph"})
			require.NoError(t, err)

			cfg, err := png.DecodeConfig(&buf)
			require.NoError(t, err)
			assert.Equal(t, 768, cfg.Width)
			assert.Equal(t, 288*tt.panels, cfg.Height)
		})
	}
}

func TestRender_SingleSpeed(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := Render(&buf, []evidence.Artifact{artifact(violations.KindOverspeeding, 1, t0, 20)}, Options{})
	require.NoError(t, err)
	_, err = png.Decode(&buf)
	assert.NoError(t, err)
}

func TestOptions_Defaults(t *testing.T) {
	t.Parallel()
	o := Options{Units: "furlongs"}.withDefaults()
	assert.Equal(t, "kph", o.Units)
	assert.Equal(t, time.UTC, o.Location)
	assert.Equal(t, 10*vg.Inch, o.Width)
	assert.NotEmpty(t, o.Title)
}

func TestSave(t *testing.T) {
	t.Parallel()
	mem := fsutil.NewMemoryFileSystem()
	require.NoError(t, Save(mem, "out/report.png", sample(), Options{}))
	data, err := mem.ReadFile("out/report.png")
	require.NoError(t, err)
	_, err = png.DecodeConfig(bytes.NewReader(data))
	assert.NoError(t, err)

	mem.FailWrites = errors.New("disk full")
	err = Save(mem, "out/again.png", sample(), Options{})
	assert.ErrorContains(t, err, "out/again.png")
}
