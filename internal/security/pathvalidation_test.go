package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "images"), 0o755))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing dir", filepath.Join(root, "images"), false},
		{"new file", filepath.Join(root, "images", "overspeeding_3_20260101_120000.jpg"), false},
		{"nested new dirs", filepath.Join(root, "a", "b", "c.jpg"), false},
		{"dot dot escape", filepath.Join(root, "images", "..", "..", "etc", "passwd"), true},
		{"absolute elsewhere", "/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, root)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrPathEscape), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathWithinDirectory_Symlink(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "evil")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	err := ValidatePathWithinDirectory(filepath.Join(link, "new.jpg"), root)
	assert.True(t, errors.Is(err, ErrPathEscape))
}

func TestValidatePathWithinAllowedDirs(t *testing.T) {
	t.Parallel()
	a, b := t.TempDir(), t.TempDir()

	assert.NoError(t, ValidatePathWithinAllowedDirs(filepath.Join(b, "x.csv"), []string{a, b}))
	assert.Error(t, ValidatePathWithinAllowedDirs("/etc/x.csv", []string{a, b}))
	assert.Error(t, ValidatePathWithinAllowedDirs(filepath.Join(a, "x.csv"), nil))
}

func TestValidateExportPath(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateExportPath(filepath.Join(os.TempDir(), "violations.csv")))
	assert.NoError(t, ValidateExportPath("violations.csv"))
	assert.Error(t, ValidateExportPath("/etc/violations.csv"))
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"cam-1":             "cam-1",
		"rtsp://cam 2/live": "rtsp_cam_2_live",
		"KA 01 AB 1234":     "KA_01_AB_1234",
		"../../etc":         "etc",
		"":                  "unknown",
		"///":               "unknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}
