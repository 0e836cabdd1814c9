package persistence

import (
	"context"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/logger"

	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Discovery Adapter (PostgreSQL)
// =============================================================================

// DiscoveryAdapter implements out.EmailDiscovery using PostgreSQL.
type DiscoveryAdapter struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewDiscoveryAdapter creates a new DiscoveryAdapter.
func NewDiscoveryAdapter(db *sqlx.DB, log *logger.Logger) *DiscoveryAdapter {
	return &DiscoveryAdapter{db: db, log: log.WithComponent("discovery-adapter")}
}

type emailRefRow struct {
	UserEmail      string `db:"user_email"`
	EmailID        string `db:"email_id"`
	HasAttachments bool   `db:"has_attachments"`
}

// ListEmailsWithAttachments returns every (user, email) pair flagged
// as carrying attachments. Read-only; a failure logs and returns an
// empty slice, which callers treat as nothing to do.
func (a *DiscoveryAdapter) ListEmailsWithAttachments(ctx context.Context) ([]domain.EmailRef, error) {
	query := `
		SELECT DISTINCT
			u.email AS user_email,
			e.id AS email_id,
			e.has_attachments
		FROM emails e
		JOIN senders s ON s.email_id = e.id
		JOIN recipients r ON r.email_id = e.id
		JOIN users u ON (u.email = s.email_address OR u.email = r.email_address)
		WHERE e.has_attachments = TRUE`

	var rows []emailRefRow
	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		appErr := classifyError("list emails with attachments", err)
		a.log.WithStage("discover").WithError(appErr).Error("discovery query failed")
		return []domain.EmailRef{}, appErr
	}

	result := make([]domain.EmailRef, len(rows))
	for i, row := range rows {
		result[i] = domain.EmailRef{
			UserEmail:      row.UserEmail,
			EmailID:        row.EmailID,
			HasAttachments: row.HasAttachments,
		}
	}

	a.log.WithStage("discover").Info("found %d emails with attachments", len(result))
	return result, nil
}

// Ensure DiscoveryAdapter implements out.EmailDiscovery
var _ out.EmailDiscovery = (*DiscoveryAdapter)(nil)
