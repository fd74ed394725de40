package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	// Test that defaults are set via pointers
	if cfg.IoUThreshold == nil || *cfg.IoUThreshold != 0.3 {
		t.Errorf("Expected IoUThreshold 0.3, got %v", cfg.IoUThreshold)
	}
	if cfg.MaxTrackAge == nil || *cfg.MaxTrackAge != "1s" {
		t.Errorf("Expected MaxTrackAge '1s', got %v", cfg.MaxTrackAge)
	}
	if cfg.BlurFaces == nil || *cfg.BlurFaces != true {
		t.Errorf("Expected BlurFaces true, got %v", cfg.BlurFaces)
	}
	if cfg.MaxRiders == nil || *cfg.MaxRiders != 2 {
		t.Errorf("Expected MaxRiders 2, got %v", cfg.MaxRiders)
	}
	if cfg.GetHelmetDetection() {
		t.Error("GetHelmetDetection() = true, want false by default")
	}
	if cfg.LightRedMaxY != nil {
		t.Errorf("Expected LightRedMaxY unset, got %v", *cfg.LightRedMaxY)
	}

	// Test getter methods
	if cfg.GetMaxHistorySamples() != 30 {
		t.Errorf("GetMaxHistorySamples() = %d, want 30", cfg.GetMaxHistorySamples())
	}
	if cfg.GetHistoryWindow() != 2*time.Second {
		t.Errorf("GetHistoryWindow() = %v, want 2s", cfg.GetHistoryWindow())
	}
	if cfg.GetMinSpeedElapsed() != 200*time.Millisecond {
		t.Errorf("GetMinSpeedElapsed() = %v, want 200ms", cfg.GetMinSpeedElapsed())
	}
	if cfg.GetFaceBlurStrength() != 30 {
		t.Errorf("GetFaceBlurStrength() = %d, want 30", cfg.GetFaceBlurStrength())
	}
	if cfg.GetCrossingDirection() != "down" {
		t.Errorf("GetCrossingDirection() = %q, want down", cfg.GetCrossingDirection())
	}
	if !math.IsInf(cfg.GetLightRedMaxY(), 1) {
		t.Errorf("GetLightRedMaxY() = %f, want +Inf", cfg.GetLightRedMaxY())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestGetSpeedLimitMPS(t *testing.T) {
	cfg := EmptyTuningConfig()
	if got := cfg.GetSpeedLimitMPS(); math.Abs(got-60/3.6) > 1e-9 {
		t.Errorf("GetSpeedLimitMPS() = %f, want %f", got, 60/3.6)
	}

	units := "mps"
	limit := 12.5
	cfg.SpeedUnits = &units
	cfg.SpeedLimit = &limit
	if got := cfg.GetSpeedLimitMPS(); got != 12.5 {
		t.Errorf("GetSpeedLimitMPS() = %f, want 12.5", got)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "iou_threshold": 0.4,
  "max_track_age": "750ms",
  "speed_limit": 40,
  "speed_units": "mph",
  "blur_faces": false,
  "light_red_max_y": 120
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}

	if cfg.GetIoUThreshold() != 0.4 {
		t.Errorf("GetIoUThreshold() = %f, want 0.4", cfg.GetIoUThreshold())
	}
	if cfg.GetMaxTrackAge() != 750*time.Millisecond {
		t.Errorf("GetMaxTrackAge() = %v, want 750ms", cfg.GetMaxTrackAge())
	}
	if cfg.GetBlurFaces() {
		t.Error("GetBlurFaces() = true, want false")
	}
	if cfg.GetLightRedMaxY() != 120 {
		t.Errorf("GetLightRedMaxY() = %f, want 120", cfg.GetLightRedMaxY())
	}
	// Omitted fields keep their defaults.
	if cfg.GetIoUWeight() != 0.7 {
		t.Errorf("GetIoUWeight() = %f, want default 0.7", cfg.GetIoUWeight())
	}
	if cfg.GetEvidenceDir() != "evidence/images" {
		t.Errorf("GetEvidenceDir() = %q, want default", cfg.GetEvidenceDir())
	}
}

func TestLoadTuningConfig_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "tuning.yaml")

	testYAML := `
max_riders: 3
crossing_direction: up
stop_line_y: 300
ocr_timeout: 1s
`
	if err := os.WriteFile(configPath, []byte(testYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}
	if cfg.GetMaxRiders() != 3 {
		t.Errorf("GetMaxRiders() = %d, want 3", cfg.GetMaxRiders())
	}
	if cfg.GetCrossingDirection() != "up" {
		t.Errorf("GetCrossingDirection() = %q, want up", cfg.GetCrossingDirection())
	}
	if cfg.GetStopLineY() != 300 {
		t.Errorf("GetStopLineY() = %f, want 300", cfg.GetStopLineY())
	}
	if cfg.GetOCRTimeout() != time.Second {
		t.Errorf("GetOCRTimeout() = %v, want 1s", cfg.GetOCRTimeout())
	}
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", write("tuning.txt", "{}"), "extension"},
		{"missing file", filepath.Join(tmpDir, "missing.json"), "failed to stat"},
		{"bad json", write("bad.json", "{"), "failed to parse config JSON"},
		{"bad yaml", write("bad.yaml", "max_riders: [1"), "failed to parse config YAML"},
		{"iou out of range", write("iou.json", `{"iou_threshold": 1.5}`), "iou_threshold"},
		{"bad duration", write("dur.json", `{"max_track_age": "soon"}`), "max_track_age"},
		{"negative duration", write("neg.json", `{"history_window": "-1s"}`), "history_window"},
		{"bad units", write("units.json", `{"speed_units": "knots"}`), "speed_units"},
		{"bad direction", write("dir.json", `{"crossing_direction": "left"}`), "crossing_direction"},
		{"alpha zero", write("alpha.json", `{"speed_smoothing_alpha": 0}`), "speed_smoothing_alpha"},
		{"zero riders", write("riders.json", `{"max_riders": 0}`), "max_riders"},
		{"jpeg quality", write("jpeg.json", `{"jpeg_quality": 101}`), "jpeg_quality"},
		{"pixels per meter", write("ppm.json", `{"pixels_per_meter": 0}`), "pixels_per_meter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTuningConfig(tt.path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadTuningConfig_TooLarge(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.json")
	big := make([]byte, 1024*1024+1)
	for i := range big {
		big[i] = ' '
	}
	if err := os.WriteFile(p, big, 0644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if _, err := LoadTuningConfig(p); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected too large error, got %v", err)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	want := DefaultTuningConfig()

	if cfg.GetSpeedLimit() != want.GetSpeedLimit() {
		t.Errorf("speed_limit = %f, want %f", cfg.GetSpeedLimit(), want.GetSpeedLimit())
	}
	if cfg.GetPixelsPerMeter() != want.GetPixelsPerMeter() {
		t.Errorf("pixels_per_meter = %f, want %f", cfg.GetPixelsPerMeter(), want.GetPixelsPerMeter())
	}
	if cfg.GetMaxTrackAge() != want.GetMaxTrackAge() {
		t.Errorf("max_track_age = %v, want %v", cfg.GetMaxTrackAge(), want.GetMaxTrackAge())
	}
	if cfg.GetJPEGQuality() != want.GetJPEGQuality() {
		t.Errorf("jpeg_quality = %d, want %d", cfg.GetJPEGQuality(), want.GetJPEGQuality())
	}
}
