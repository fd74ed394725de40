// Package security guards the file paths the service reads and writes:
// evidence images served over HTTP and CSV exports written by the CLI.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a path resolves outside its root.
var ErrPathEscape = errors.New("path escapes allowed directory")

// canonical resolves symlinks in p. When p does not exist yet the nearest
// existing ancestor is resolved instead and the remainder is re-joined, so
// a not-yet-written file under a symlinked directory is still caught.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest), nil
		}
		if dir == filepath.Dir(dir) {
			return abs, nil
		}
	}
}

// ValidatePathWithinDirectory returns nil when filePath, after cleaning and
// symlink resolution, lies inside root.
func ValidatePathWithinDirectory(filePath, root string) error {
	path, err := canonical(filePath)
	if err != nil {
		return err
	}
	base, err := canonical(root)
	if err != nil {
		return fmt.Errorf("failed to resolve root %s: %w", root, err)
	}

	rel, err := filepath.Rel(base, path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPathEscape, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is outside %s", ErrPathEscape, filePath, root)
	}
	return nil
}

// ValidatePathWithinAllowedDirs accepts filePath if any of roots contains it.
func ValidatePathWithinAllowedDirs(filePath string, roots []string) error {
	if len(roots) == 0 {
		return errors.New("no allowed directories specified")
	}
	for _, dir := range roots {
		if ValidatePathWithinDirectory(filePath, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: must be within one of %v", ErrPathEscape, roots)
}

// ValidateExportPath restricts CSV exports to the temp directory or the
// working directory.
func ValidateExportPath(filePath string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	return ValidatePathWithinAllowedDirs(filePath, []string{os.TempDir(), cwd})
}

// SanitizeFilename maps an arbitrary identifier (a stream id, a plate) to
// a filename component. Runs of characters outside [A-Za-z0-9._-] become
// a single underscore; the result is capped at 64 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 64
	var b strings.Builder
	pending := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		ok := r == '.' || r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			pending = true
			continue
		}
		if pending && b.Len() > 0 {
			b.WriteByte('_')
		}
		pending = false
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
