package out

import (
	"context"

	"ingest_server/core/domain"
)

// ObjectStore persists attachment blobs under the deterministic
// layout <user_email>/<email_id>/attachments/<category>/<filename>.
// The layout must stay identical between upload and later download so
// the same relative path resolves on both ends.
type ObjectStore interface {
	// EnsureCategoryDirs pre-creates empty marker objects for every
	// category directory of an email.
	EnsureCategoryDirs(ctx context.Context, userEmail, emailID string) error

	// Put uploads content and returns the storage locator
	// (scheme://bucket/key).
	Put(ctx context.Context, userEmail, emailID string, category domain.Category, filename string, content []byte) (string, error)

	// DownloadPrefix mirrors every object below the email's attachment
	// prefix into destDir, preserving relative paths and skipping
	// files that already exist locally. Returns the number of files
	// written.
	DownloadPrefix(ctx context.Context, userEmail, emailID, destDir string) (int, error)
}
