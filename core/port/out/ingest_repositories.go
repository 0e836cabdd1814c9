// Package out defines outbound ports (driven ports) for the pipeline.
package out

import (
	"context"

	"ingest_server/core/domain"
)

// JobRepository is the durable queue of ingestion runs.
type JobRepository interface {
	// Enqueue inserts one pending job and returns it with its
	// generated id and creation timestamp. Storage failure returns an
	// error and leaves no partial row.
	Enqueue(ctx context.Context, userEmail string) (*domain.Job, error)

	// Delete removes a job by id.
	Delete(ctx context.Context, jobID int64) error

	// FetchUserForJob resolves the user behind a still-pending job.
	// Returns nil, nil when no such job exists.
	FetchUserForJob(ctx context.Context, jobID int64) (*domain.User, error)

	// UpdateStatus moves a job through its lifecycle.
	UpdateStatus(ctx context.Context, jobID int64, status domain.JobStatus) error
}

// EmailDiscovery finds emails flagged as carrying attachments.
type EmailDiscovery interface {
	// ListEmailsWithAttachments is read-only and idempotent. An empty
	// result means nothing to do; failures are logged by the adapter
	// and surface as an empty slice with the error.
	ListEmailsWithAttachments(ctx context.Context) ([]domain.EmailRef, error)
}

// AttachmentRegistry records attachment metadata transactionally.
type AttachmentRegistry interface {
	// Insert writes one record in its own transaction. A conflict on
	// the attachment id is a no-op, so re-ingestion never duplicates
	// rows. Failure rolls back the insert only; the already-uploaded
	// blob is left in place.
	Insert(ctx context.Context, record *domain.AttachmentRecord) error
}
