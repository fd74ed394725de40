package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/violation.report/internal/fsutil"
)

// ImageWriter persists an encoded evidence image and returns its path.
type ImageWriter interface {
	WriteImage(ctx context.Context, name string, data []byte) (string, error)
}

// FileWriter writes images into Dir on FS. Writes are atomic so readers
// never observe a partial JPEG, and exclusive so a persisted image is never
// replaced.
type FileWriter struct {
	FS  fsutil.FileSystem
	Dir string
}

// NewFileWriter creates a FileWriter. A nil fsys uses the OS filesystem.
func NewFileWriter(fsys fsutil.FileSystem, dir string) *FileWriter {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &FileWriter{FS: fsys, Dir: dir}
}

// WriteImage implements ImageWriter. It returns ctx's error if the write
// has not completed when ctx is done; the write itself may still land.
func (w *FileWriter) WriteImage(ctx context.Context, name string, data []byte) (string, error) {
	path := filepath.Join(w.Dir, name)
	done := make(chan error, 1)
	go func() {
		if err := w.FS.MkdirAll(w.Dir, 0o755); err != nil {
			done <- fmt.Errorf("failed to create evidence dir: %w", err)
			return
		}
		done <- w.FS.WriteFileExclusive(path, data, os.FileMode(0o644))
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		return path, nil
	case <-ctx.Done():
		return "", fmt.Errorf("write %s: %w", path, ctx.Err())
	}
}
