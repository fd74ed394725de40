package speed

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/violation.report/internal/config"
	"github.com/banshee-data/violation.report/internal/detect"
	"github.com/banshee-data/violation.report/internal/tracking"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// linear returns samples of an object moving along x at pxPerSec, sampled
// every interval for the given span.
func linear(pxPerSec float64, interval, span time.Duration) []tracking.Sample {
	var out []tracking.Sample
	for d := time.Duration(0); d <= span; d += interval {
		out = append(out, tracking.Sample{
			Timestamp: t0.Add(d),
			Center:    detect.Point{X: 100 + pxPerSec*d.Seconds(), Y: 200},
		})
	}
	return out
}

func defaultEstimator() *Estimator {
	return NewEstimator(ConfigFromTuning(config.EmptyTuningConfig()))
}

func TestRaw(t *testing.T) {
	t.Parallel()
	e := defaultEstimator() // 8 px/m

	got, ok := e.Raw(linear(80, 100*time.Millisecond, time.Second))
	require.True(t, ok)
	assert.InDelta(t, 10.0, got, 1e-9)
}

func TestRaw_InvariantToSamplingRate(t *testing.T) {
	t.Parallel()
	e := defaultEstimator()

	for _, interval := range []time.Duration{200 * time.Millisecond, 100 * time.Millisecond, 50 * time.Millisecond, 25 * time.Millisecond} {
		got, ok := e.Raw(linear(120, interval, time.Second))
		require.True(t, ok, interval)
		assert.InDelta(t, 15.0, got, 1e-9, "interval %s", interval)
	}
}

func TestRaw_Unknown(t *testing.T) {
	t.Parallel()
	e := defaultEstimator()

	tests := []struct {
		name    string
		history []tracking.Sample
	}{
		{"empty", nil},
		{"single sample", linear(80, time.Second, 0)},
		{"span below minimum", linear(80, 50*time.Millisecond, 150*time.Millisecond)},
		{"zero elapsed", []tracking.Sample{{Timestamp: t0}, {Timestamp: t0, Center: detect.Point{X: 5}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := e.Raw(tt.history)
			assert.False(t, ok)
		})
	}
}

func TestRaw_Pure(t *testing.T) {
	t.Parallel()
	e := defaultEstimator()
	h := linear(40, 100*time.Millisecond, 500*time.Millisecond)
	a, _ := e.Raw(h)
	b, _ := e.Raw(h)
	assert.Equal(t, a, b)
}

func TestEstimate_Smoothing(t *testing.T) {
	t.Parallel()
	e := NewEstimator(Config{PixelsPerMeter: 10, MinElapsed: 200 * time.Millisecond, Alpha: 0.5})
	tr := &tracking.Track{History: linear(100, 100*time.Millisecond, 100*time.Millisecond)}

	_, ok := e.Estimate(tr)
	assert.False(t, ok, "100ms of history is not enough")
	assert.False(t, tr.HasSpeed)

	tr.History = linear(100, 100*time.Millisecond, time.Second) // 10 m/s
	v, ok := e.Estimate(tr)
	require.True(t, ok)
	assert.InDelta(t, 10.0, v, 1e-9, "first estimate seeds the average")

	tr.History = linear(200, 100*time.Millisecond, time.Second) // 20 m/s
	v, ok = e.Estimate(tr)
	require.True(t, ok)
	assert.InDelta(t, 15.0, v, 1e-9)
	assert.InDelta(t, 15.0, tr.SpeedMPS, 1e-9)
	assert.Len(t, tr.SpeedHistory, 2)
}

func TestEstimate_SpeedHistoryBounded(t *testing.T) {
	t.Parallel()
	e := defaultEstimator()
	tr := &tracking.Track{History: linear(80, 100*time.Millisecond, time.Second)}
	for i := 0; i < tracking.MaxSpeedHistoryLength+20; i++ {
		e.Estimate(tr)
	}
	assert.Len(t, tr.SpeedHistory, tracking.MaxSpeedHistoryLength)
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	var xs []float64
	for i := 20; i >= 1; i-- {
		xs = append(xs, float64(i))
	}
	xs = append(xs, math.NaN())

	s := Summarize(xs)
	assert.Equal(t, 20, s.Count)
	assert.InDelta(t, 10.5, s.Mean, 1e-9)
	assert.InDelta(t, 10.0, s.P50, 1e-9)
	assert.InDelta(t, 17.0, s.P85, 1e-9)
	assert.Equal(t, 20.0, s.Max)
	assert.Equal(t, 20.0, xs[0], "input is not reordered")

	assert.Equal(t, Summary{}, Summarize(nil))
}
