package out

import (
	"context"

	"ingest_server/core/domain"
)

// AttachmentSource lists raw attachment payloads for one email from a
// mail provider.
type AttachmentSource interface {
	ProviderName() string

	// ListAttachments returns decoded attachment payloads for the
	// email. A non-2xx provider response is an EXTERNAL error that
	// aborts ingestion for this email only.
	ListAttachments(ctx context.Context, emailID string) ([]domain.Attachment, error)
}

// TokenExchanger trades a stored refresh token for short-lived
// credentials at the external token endpoint.
type TokenExchanger interface {
	// GetAccessToken returns normalized credentials or an AUTH error.
	// No partial credential is ever returned.
	GetAccessToken(ctx context.Context, refreshToken string) (*domain.Credentials, error)
}

// OrchestratorTrigger hands a job's credentials to the external
// workflow orchestrator.
type OrchestratorTrigger interface {
	// Trigger POSTs the job config; any non-2xx response is an error.
	Trigger(ctx context.Context, job *domain.Job, user *domain.User) error
}
