package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/violation.report/internal/units"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root configuration for the violation pipeline. The
// same document (JSON or YAML) is used at startup and is served read-only
// by /api/config. Every field is optional; the Get* accessors supply the
// defaults, so partial files are safe.
type TuningConfig struct {
	// Tracker params
	MinConfidence        *float64 `json:"min_confidence,omitempty" yaml:"min_confidence,omitempty"`
	IoUThreshold         *float64 `json:"iou_threshold,omitempty" yaml:"iou_threshold,omitempty"`
	IoUWeight            *float64 `json:"iou_weight,omitempty" yaml:"iou_weight,omitempty"`
	CentroidGateFraction *float64 `json:"centroid_gate_fraction,omitempty" yaml:"centroid_gate_fraction,omitempty"`
	MaxTrackAge          *string  `json:"max_track_age,omitempty" yaml:"max_track_age,omitempty"` // duration string like "1s"
	MaxMissedFrames      *int     `json:"max_missed_frames,omitempty" yaml:"max_missed_frames,omitempty"`
	MaxHistorySamples    *int     `json:"max_history_samples,omitempty" yaml:"max_history_samples,omitempty"`
	HistoryWindow        *string  `json:"history_window,omitempty" yaml:"history_window,omitempty"`
	FrameWidth           *int     `json:"frame_width,omitempty" yaml:"frame_width,omitempty"`
	FrameHeight          *int     `json:"frame_height,omitempty" yaml:"frame_height,omitempty"`

	// Speed params
	PixelsPerMeter      *float64 `json:"pixels_per_meter,omitempty" yaml:"pixels_per_meter,omitempty"`
	MinSpeedElapsed     *string  `json:"min_speed_elapsed,omitempty" yaml:"min_speed_elapsed,omitempty"`
	SpeedSmoothingAlpha *float64 `json:"speed_smoothing_alpha,omitempty" yaml:"speed_smoothing_alpha,omitempty"`
	SpeedUnits          *string  `json:"speed_units,omitempty" yaml:"speed_units,omitempty"`
	SpeedLimit          *float64 `json:"speed_limit,omitempty" yaml:"speed_limit,omitempty"` // in SpeedUnits

	// Signal params
	StopLineY         *float64 `json:"stop_line_y,omitempty" yaml:"stop_line_y,omitempty"`
	CrossingDirection *string  `json:"crossing_direction,omitempty" yaml:"crossing_direction,omitempty"` // "down" or "up"
	LightRedMaxY      *float64 `json:"light_red_max_y,omitempty" yaml:"light_red_max_y,omitempty"`

	// Rider params
	RiderProximityFactor *float64 `json:"rider_proximity_factor,omitempty" yaml:"rider_proximity_factor,omitempty"`
	MaxRiders            *int     `json:"max_riders,omitempty" yaml:"max_riders,omitempty"`
	HelmetDetection      *bool    `json:"helmet_detection,omitempty" yaml:"helmet_detection,omitempty"`

	// Evidence params
	EvidenceDir      *string `json:"evidence_dir,omitempty" yaml:"evidence_dir,omitempty"`
	BlurFaces        *bool   `json:"blur_faces,omitempty" yaml:"blur_faces,omitempty"`
	FaceBlurStrength *int    `json:"face_blur_strength,omitempty" yaml:"face_blur_strength,omitempty"`
	EvidencePadding  *int    `json:"evidence_padding,omitempty" yaml:"evidence_padding,omitempty"`
	JPEGQuality      *int    `json:"jpeg_quality,omitempty" yaml:"jpeg_quality,omitempty"`
	OCRTimeout       *string `json:"ocr_timeout,omitempty" yaml:"ocr_timeout,omitempty"`
	PersistTimeout   *string `json:"persist_timeout,omitempty" yaml:"persist_timeout,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a config with every field populated from the
// built-in defaults. It is what an empty file resolves to.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		MinConfidence:        ptrFloat64(e.GetMinConfidence()),
		IoUThreshold:         ptrFloat64(e.GetIoUThreshold()),
		IoUWeight:            ptrFloat64(e.GetIoUWeight()),
		CentroidGateFraction: ptrFloat64(e.GetCentroidGateFraction()),
		MaxTrackAge:          ptrString(e.GetMaxTrackAge().String()),
		MaxMissedFrames:      ptrInt(e.GetMaxMissedFrames()),
		MaxHistorySamples:    ptrInt(e.GetMaxHistorySamples()),
		HistoryWindow:        ptrString(e.GetHistoryWindow().String()),
		FrameWidth:           ptrInt(e.GetFrameWidth()),
		FrameHeight:          ptrInt(e.GetFrameHeight()),
		PixelsPerMeter:       ptrFloat64(e.GetPixelsPerMeter()),
		MinSpeedElapsed:      ptrString(e.GetMinSpeedElapsed().String()),
		SpeedSmoothingAlpha:  ptrFloat64(e.GetSpeedSmoothingAlpha()),
		SpeedUnits:           ptrString(e.GetSpeedUnits()),
		SpeedLimit:           ptrFloat64(e.GetSpeedLimit()),
		StopLineY:            ptrFloat64(e.GetStopLineY()),
		CrossingDirection:    ptrString(e.GetCrossingDirection()),
		RiderProximityFactor: ptrFloat64(e.GetRiderProximityFactor()),
		MaxRiders:            ptrInt(e.GetMaxRiders()),
		HelmetDetection:      ptrBool(e.GetHelmetDetection()),
		EvidenceDir:          ptrString(e.GetEvidenceDir()),
		BlurFaces:            ptrBool(e.GetBlurFaces()),
		FaceBlurStrength:     ptrInt(e.GetFaceBlurStrength()),
		EvidencePadding:      ptrInt(e.GetEvidencePadding()),
		JPEGQuality:          ptrInt(e.GetJPEGQuality()),
		OCRTimeout:           ptrString(e.GetOCRTimeout().String()),
		PersistTimeout:       ptrString(e.GetPersistTimeout().String()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file.
// The file is validated to ensure it has a known extension and is under the max file size.
// Fields omitted from the file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if err := checkUnit("min_confidence", c.MinConfidence); err != nil {
		return err
	}
	if err := checkUnit("iou_threshold", c.IoUThreshold); err != nil {
		return err
	}
	if err := checkUnit("iou_weight", c.IoUWeight); err != nil {
		return err
	}
	if err := checkUnit("centroid_gate_fraction", c.CentroidGateFraction); err != nil {
		return err
	}
	if c.SpeedSmoothingAlpha != nil {
		if a := *c.SpeedSmoothingAlpha; a <= 0 || a > 1 || math.IsNaN(a) {
			return fmt.Errorf("speed_smoothing_alpha must be in (0, 1], got %f", a)
		}
	}
	if c.PixelsPerMeter != nil && !(*c.PixelsPerMeter > 0) {
		return fmt.Errorf("pixels_per_meter must be positive, got %f", *c.PixelsPerMeter)
	}
	if c.SpeedLimit != nil && *c.SpeedLimit <= 0 {
		return fmt.Errorf("speed_limit must be positive, got %f", *c.SpeedLimit)
	}
	if c.SpeedUnits != nil && !units.IsValid(*c.SpeedUnits) {
		return fmt.Errorf("speed_units must be one of %s, got %q", units.GetValidUnitsString(), *c.SpeedUnits)
	}
	if c.CrossingDirection != nil {
		if d := *c.CrossingDirection; d != "down" && d != "up" {
			return fmt.Errorf("crossing_direction must be \"down\" or \"up\", got %q", d)
		}
	}
	if c.MaxRiders != nil && *c.MaxRiders < 1 {
		return fmt.Errorf("max_riders must be at least 1, got %d", *c.MaxRiders)
	}
	if c.MaxHistorySamples != nil && *c.MaxHistorySamples < 2 {
		return fmt.Errorf("max_history_samples must be at least 2, got %d", *c.MaxHistorySamples)
	}
	if c.MaxMissedFrames != nil && *c.MaxMissedFrames < 0 {
		return fmt.Errorf("max_missed_frames must be non-negative, got %d", *c.MaxMissedFrames)
	}
	if c.RiderProximityFactor != nil && *c.RiderProximityFactor <= 0 {
		return fmt.Errorf("rider_proximity_factor must be positive, got %f", *c.RiderProximityFactor)
	}
	if c.JPEGQuality != nil && (*c.JPEGQuality < 1 || *c.JPEGQuality > 100) {
		return fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", *c.JPEGQuality)
	}
	if c.FaceBlurStrength != nil && *c.FaceBlurStrength < 1 {
		return fmt.Errorf("face_blur_strength must be at least 1, got %d", *c.FaceBlurStrength)
	}

	for name, v := range map[string]*string{
		"max_track_age":     c.MaxTrackAge,
		"history_window":    c.HistoryWindow,
		"min_speed_elapsed": c.MinSpeedElapsed,
		"ocr_timeout":       c.OCRTimeout,
		"persist_timeout":   c.PersistTimeout,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}

	return nil
}

func checkUnit(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > 1 || math.IsNaN(*v) {
		return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
	}
	return nil
}

// parseDurationOr parses s, returning def when s is unset or malformed.
func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *TuningConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.25
	}
	return *c.MinConfidence
}

// GetIoUThreshold returns the iou_threshold value or the default.
func (c *TuningConfig) GetIoUThreshold() float64 {
	if c.IoUThreshold == nil {
		return 0.3
	}
	return *c.IoUThreshold
}

// GetIoUWeight returns the iou_weight value or the default.
func (c *TuningConfig) GetIoUWeight() float64 {
	if c.IoUWeight == nil {
		return 0.7
	}
	return *c.IoUWeight
}

// GetCentroidGateFraction returns the centroid_gate_fraction value or the default.
func (c *TuningConfig) GetCentroidGateFraction() float64 {
	if c.CentroidGateFraction == nil {
		return 0.15
	}
	return *c.CentroidGateFraction
}

// GetMaxTrackAge returns how long an unmatched track survives.
func (c *TuningConfig) GetMaxTrackAge() time.Duration {
	return parseDurationOr(c.MaxTrackAge, time.Second)
}

// GetMaxMissedFrames returns the max_missed_frames value or the default (0 = disabled).
func (c *TuningConfig) GetMaxMissedFrames() int {
	if c.MaxMissedFrames == nil {
		return 0
	}
	return *c.MaxMissedFrames
}

// GetMaxHistorySamples returns the max_history_samples value or the default.
func (c *TuningConfig) GetMaxHistorySamples() int {
	if c.MaxHistorySamples == nil {
		return 30
	}
	return *c.MaxHistorySamples
}

// GetHistoryWindow returns the maximum age of retained history samples.
func (c *TuningConfig) GetHistoryWindow() time.Duration {
	return parseDurationOr(c.HistoryWindow, 2*time.Second)
}

// GetFrameWidth returns the frame_width value or the default.
func (c *TuningConfig) GetFrameWidth() int {
	if c.FrameWidth == nil {
		return 1280
	}
	return *c.FrameWidth
}

// GetFrameHeight returns the frame_height value or the default.
func (c *TuningConfig) GetFrameHeight() int {
	if c.FrameHeight == nil {
		return 720
	}
	return *c.FrameHeight
}

// GetPixelsPerMeter returns the camera calibration constant.
func (c *TuningConfig) GetPixelsPerMeter() float64 {
	if c.PixelsPerMeter == nil {
		return 8.0
	}
	return *c.PixelsPerMeter
}

// GetMinSpeedElapsed returns the minimum history span for a speed estimate.
func (c *TuningConfig) GetMinSpeedElapsed() time.Duration {
	return parseDurationOr(c.MinSpeedElapsed, 200*time.Millisecond)
}

// GetSpeedSmoothingAlpha returns the EMA factor applied to speed estimates.
func (c *TuningConfig) GetSpeedSmoothingAlpha() float64 {
	if c.SpeedSmoothingAlpha == nil {
		return 0.5
	}
	return *c.SpeedSmoothingAlpha
}

// GetSpeedUnits returns the units used for speed_limit and for display.
func (c *TuningConfig) GetSpeedUnits() string {
	if c.SpeedUnits == nil || *c.SpeedUnits == "" {
		return units.KMPH
	}
	return *c.SpeedUnits
}

// GetSpeedLimit returns the overspeed threshold in GetSpeedUnits.
func (c *TuningConfig) GetSpeedLimit() float64 {
	if c.SpeedLimit == nil {
		return 60
	}
	return *c.SpeedLimit
}

// GetSpeedLimitMPS returns the overspeed threshold in metres per second.
func (c *TuningConfig) GetSpeedLimitMPS() float64 {
	return units.ToMPS(c.GetSpeedLimit(), c.GetSpeedUnits())
}

// GetStopLineY returns the stop-line row. Zero means half the frame height.
func (c *TuningConfig) GetStopLineY() float64 {
	if c.StopLineY == nil {
		return 0
	}
	return *c.StopLineY
}

// GetCrossingDirection returns the direction of travel that crosses the stop line.
func (c *TuningConfig) GetCrossingDirection() string {
	if c.CrossingDirection == nil || *c.CrossingDirection == "" {
		return "down"
	}
	return *c.CrossingDirection
}

// GetLightRedMaxY returns the light_red_max_y value, or +Inf when unset so
// that any detected light counts as red.
func (c *TuningConfig) GetLightRedMaxY() float64 {
	if c.LightRedMaxY == nil {
		return math.Inf(1)
	}
	return *c.LightRedMaxY
}

// GetRiderProximityFactor returns the rider association radius as a
// multiple of the vehicle box diagonal.
func (c *TuningConfig) GetRiderProximityFactor() float64 {
	if c.RiderProximityFactor == nil {
		return 1.0
	}
	return *c.RiderProximityFactor
}

// GetMaxRiders returns the number of riders a two-wheeler may carry.
func (c *TuningConfig) GetMaxRiders() int {
	if c.MaxRiders == nil {
		return 2
	}
	return *c.MaxRiders
}

// GetHelmetDetection reports whether the detector emits helmet boxes. Only
// then does a rider with no overlapping helmet count as helmetless; off by
// default since most detectors have no helmet class.
func (c *TuningConfig) GetHelmetDetection() bool {
	if c.HelmetDetection == nil {
		return false
	}
	return *c.HelmetDetection
}

// GetEvidenceDir returns the directory evidence images are written to.
func (c *TuningConfig) GetEvidenceDir() string {
	if c.EvidenceDir == nil || *c.EvidenceDir == "" {
		return "evidence/images"
	}
	return *c.EvidenceDir
}

// GetBlurFaces reports whether person head regions are redacted.
func (c *TuningConfig) GetBlurFaces() bool {
	if c.BlurFaces == nil {
		return true
	}
	return *c.BlurFaces
}

// GetFaceBlurStrength returns the pixelation block size in pixels.
func (c *TuningConfig) GetFaceBlurStrength() int {
	if c.FaceBlurStrength == nil {
		return 30
	}
	return *c.FaceBlurStrength
}

// GetEvidencePadding returns the margin added around the evidence box.
func (c *TuningConfig) GetEvidencePadding() int {
	if c.EvidencePadding == nil {
		return 20
	}
	return *c.EvidencePadding
}

// GetJPEGQuality returns the evidence JPEG quality.
func (c *TuningConfig) GetJPEGQuality() int {
	if c.JPEGQuality == nil {
		return 90
	}
	return *c.JPEGQuality
}

// GetOCRTimeout bounds each licence plate read.
func (c *TuningConfig) GetOCRTimeout() time.Duration {
	return parseDurationOr(c.OCRTimeout, 500*time.Millisecond)
}

// GetPersistTimeout bounds each evidence image write.
func (c *TuningConfig) GetPersistTimeout() time.Duration {
	return parseDurationOr(c.PersistTimeout, 2*time.Second)
}
