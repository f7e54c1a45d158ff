// Package staging holds uploads for the duration of a single request.
// A staged file is created by Stage, read back by Open while relaying, and
// released by Remove before the request's response is written. Nothing here
// is long-lived storage; stale entries from crashed runs are tolerated and
// never purged by this package.
package staging

import (
	"context"
	"fmt"
	"io"

	"mediarelay/internal/config"
	"mediarelay/internal/model"
)

// Staging is the per-request scratch store for validated uploads.
// Implementations must be safe for concurrent use; isolation between
// in-flight requests comes from unique staged names, not locking.
type Staging interface {
	// Stage writes the upload's bytes under a name unique to this request
	// and returns the Upload record referencing the staged location.
	Stage(ctx context.Context, r io.Reader, originalFilename, contentType string, size int64) (*model.Upload, error)
	// Open returns a reader over a previously staged upload.
	Open(ctx context.Context, up *model.Upload) (io.ReadCloser, error)
	// Remove deletes the staged copy. Removing an already-gone upload is an error
	// the caller is expected to log and swallow.
	Remove(ctx context.Context, up *model.Upload) error
}

// New builds the staging backend selected by configuration.
func New(cfg config.StagingConfig) (Staging, error) {
	switch cfg.Backend {
	case "", "disk":
		return NewDisk(cfg.Dir)
	case "s3":
		return NewMinIO(cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown staging backend %q", cfg.Backend)
	}
}
