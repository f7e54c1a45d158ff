package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"mediarelay/internal/model"
)

// diskStaging stages uploads on the local filesystem. This is the default
// backend: one file per accepted upload, named uniquely per request so
// concurrent uploads of the same filename never collide.
type diskStaging struct {
	dir string
}

// NewDisk creates a disk-backed staging store rooted at dir.
// The directory is created lazily on first Stage; files left behind by a
// crashed prior run are left alone.
func NewDisk(dir string) (Staging, error) {
	if dir == "" {
		return nil, fmt.Errorf("staging directory is required")
	}
	return &diskStaging{dir: dir}, nil
}

func (d *diskStaging) Stage(ctx context.Context, r io.Reader, originalFilename, contentType string, size int64) (*model.Upload, error) {
	if r == nil {
		return nil, fmt.Errorf("reader is nil")
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	now := time.Now().UTC()
	path := filepath.Join(d.dir, stagedName(now, originalFilename))

	// O_EXCL backs the uniqueness guarantee: a name collision surfaces as an
	// error instead of silently overwriting another request's file.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}

	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write staged file: %w", err)
	}

	return &model.Upload{
		OriginalFilename: originalFilename,
		StagedPath:       path,
		Size:             written,
		ContentType:      contentType,
		ReceivedAt:       now,
	}, nil
}

func (d *diskStaging) Open(ctx context.Context, up *model.Upload) (io.ReadCloser, error) {
	f, err := os.Open(up.StagedPath)
	if err != nil {
		return nil, fmt.Errorf("open staged file: %w", err)
	}
	return f, nil
}

func (d *diskStaging) Remove(ctx context.Context, up *model.Upload) error {
	return os.Remove(up.StagedPath)
}

// stagedName combines a high-resolution timestamp, a random suffix and the
// original base name, keeping staged files traceable to their upload.
func stagedName(now time.Time, originalFilename string) string {
	base := filepath.Base(originalFilename)
	if base == "." || base == string(filepath.Separator) {
		base = "upload"
	}
	return fmt.Sprintf("%d-%s-%s", now.UnixNano(), uuid.NewString()[:8], base)
}
