package persistence

import (
	"context"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/logger"

	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Attachment Registry Adapter (PostgreSQL)
// =============================================================================

// AttachmentAdapter implements out.AttachmentRegistry using PostgreSQL.
type AttachmentAdapter struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewAttachmentAdapter creates a new AttachmentAdapter.
func NewAttachmentAdapter(db *sqlx.DB, log *logger.Logger) *AttachmentAdapter {
	return &AttachmentAdapter{db: db, log: log.WithComponent("attachment-registry")}
}

// Insert writes one attachment record in its own transaction. A
// conflict on the attachment id is a no-op so re-ingestion never
// duplicates rows. On failure only the insert rolls back; the blob
// uploaded just before stays where it is (orphan blobs are accepted,
// orphan records are not possible).
func (a *AttachmentAdapter) Insert(ctx context.Context, record *domain.AttachmentRecord) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return classifyError("insert attachment", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO attachments (id, email_id, name, content_type, size, bucket_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	_, err = tx.ExecContext(ctx, query,
		record.ID,
		record.EmailID,
		record.Name,
		record.ContentType,
		record.Size,
		record.BucketURL,
	)
	if err != nil {
		return classifyError("insert attachment", err)
	}

	if err := tx.Commit(); err != nil {
		return classifyError("insert attachment", err)
	}

	a.log.WithEmailID(record.EmailID).WithStage("record").
		Info("attachment %s recorded (%s, %d bytes, %s)", record.Name, record.ContentType, record.Size, record.BucketURL)
	return nil
}

// Ensure AttachmentAdapter implements out.AttachmentRegistry
var _ out.AttachmentRegistry = (*AttachmentAdapter)(nil)
