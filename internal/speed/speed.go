// Package speed estimates real-world vehicle speed from a track's
// positional history and summarises speed distributions.
package speed

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/violation.report/internal/config"
	"github.com/banshee-data/violation.report/internal/tracking"
	"github.com/banshee-data/violation.report/internal/units"
)

// Config holds the camera calibration and smoothing parameters.
type Config struct {
	PixelsPerMeter float64
	MinElapsed     time.Duration // history must span at least this long
	Alpha          float64       // EMA weight of the newest raw estimate
}

// ConfigFromTuning builds a Config from the tuning file.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		PixelsPerMeter: cfg.GetPixelsPerMeter(),
		MinElapsed:     cfg.GetMinSpeedElapsed(),
		Alpha:          cfg.GetSpeedSmoothingAlpha(),
	}
}

// Estimator derives smoothed speeds. It holds no per-track state; the EMA
// accumulator lives on the track itself.
type Estimator struct {
	Config Config
}

// NewEstimator creates an Estimator.
func NewEstimator(cfg Config) *Estimator {
	return &Estimator{Config: cfg}
}

// Raw returns the displacement between the oldest and newest samples divided
// by the time between them, in metres per second. It reports false when
// there are fewer than two samples or they span less than MinElapsed.
func (e *Estimator) Raw(history []tracking.Sample) (float64, bool) {
	if len(history) < 2 || e.Config.PixelsPerMeter <= 0 {
		return 0, false
	}
	first, last := history[0], history[len(history)-1]
	elapsed := last.Timestamp.Sub(first.Timestamp)
	if elapsed <= 0 || elapsed < e.Config.MinElapsed {
		return 0, false
	}
	px := first.Center.Dist(last.Center)
	return units.PixelsToMeters(px, e.Config.PixelsPerMeter) / elapsed.Seconds(), true
}

// Estimate folds the track's current raw speed into its smoothed speed and
// returns the smoothed value. When no raw estimate is available the track
// is left untouched and false is returned.
func (e *Estimator) Estimate(t *tracking.Track) (float64, bool) {
	raw, ok := e.Raw(t.History)
	if !ok {
		return 0, false
	}
	if !t.HasSpeed {
		t.SpeedMPS = raw
		t.HasSpeed = true
	} else {
		t.SpeedMPS = e.Config.Alpha*raw + (1-e.Config.Alpha)*t.SpeedMPS
	}
	t.SpeedHistory = append(t.SpeedHistory, t.SpeedMPS)
	if over := len(t.SpeedHistory) - tracking.MaxSpeedHistoryLength; over > 0 {
		t.SpeedHistory = append(t.SpeedHistory[:0], t.SpeedHistory[over:]...)
	}
	return t.SpeedMPS, true
}

// Summary describes a set of speeds in metres per second.
type Summary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P85   float64 `json:"p85"`
	Max   float64 `json:"max"`
}

// Summarize computes mean, median, 85th percentile and maximum. NaN values
// are ignored.
func Summarize(speeds []float64) Summary {
	xs := make([]float64, 0, len(speeds))
	for _, v := range speeds {
		if !math.IsNaN(v) {
			xs = append(xs, v)
		}
	}
	if len(xs) == 0 {
		return Summary{}
	}
	sort.Float64s(xs)
	return Summary{
		Count: len(xs),
		Mean:  stat.Mean(xs, nil),
		P50:   stat.Quantile(0.5, stat.Empirical, xs, nil),
		P85:   stat.Quantile(0.85, stat.Empirical, xs, nil),
		Max:   xs[len(xs)-1],
	}
}
