package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/logger"

	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Job Adapter (PostgreSQL)
// =============================================================================

// JobAdapter implements out.JobRepository using PostgreSQL.
type JobAdapter struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewJobAdapter creates a new JobAdapter.
func NewJobAdapter(db *sqlx.DB, log *logger.Logger) *JobAdapter {
	return &JobAdapter{db: db, log: log.WithComponent("job-adapter")}
}

type userRow struct {
	Email        string         `db:"email"`
	Name         sql.NullString `db:"name"`
	TenantID     sql.NullString `db:"tenant_id"`
	RefreshToken sql.NullString `db:"refresh_token"`
}

func (r *userRow) toEntity() *domain.User {
	return &domain.User{
		Email:        r.Email,
		Name:         r.Name.String,
		TenantID:     r.TenantID.String,
		RefreshToken: r.RefreshToken.String,
	}
}

// Enqueue inserts one pending job. The insert runs in its own
// transaction so a failure leaves no partial row.
func (a *JobAdapter) Enqueue(ctx context.Context, userEmail string) (*domain.Job, error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, classifyError("enqueue job", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO queued_jobs (email, status)
		VALUES ($1, $2)
		RETURNING id, created_at`

	job := &domain.Job{
		UserEmail: userEmail,
		Status:    domain.JobStatusPending,
	}
	err = tx.QueryRowContext(ctx, query, userEmail, domain.JobStatusPending).
		Scan(&job.ID, &job.CreatedAt)
	if err != nil {
		return nil, classifyError("enqueue job", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyError("enqueue job", err)
	}

	a.log.WithUser(userEmail).Info("queued job %d created at %s", job.ID, job.CreatedAt.Format(time.RFC3339))
	return job, nil
}

// Delete removes a job by id. Callers treat failure as non-fatal; the
// leaked queue row is accepted.
func (a *JobAdapter) Delete(ctx context.Context, jobID int64) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM queued_jobs WHERE id = $1`, jobID)
	if err != nil {
		return classifyError("delete job", err)
	}
	return nil
}

// FetchUserForJob resolves the user behind a still-pending job.
func (a *JobAdapter) FetchUserForJob(ctx context.Context, jobID int64) (*domain.User, error) {
	query := `
		SELECT u.email, u.name, u.tenant_id, u.refresh_token
		FROM users u
		WHERE u.email IN (
			SELECT email FROM queued_jobs
			WHERE id = $1 AND status = $2
			LIMIT 1
		)`

	var row userRow
	err := a.db.GetContext(ctx, &row, query, jobID, domain.JobStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, classifyError("fetch user for job", err)
	}

	return row.toEntity(), nil
}

// UpdateStatus moves a job through its lifecycle.
func (a *JobAdapter) UpdateStatus(ctx context.Context, jobID int64, status domain.JobStatus) error {
	result, err := a.db.ExecContext(ctx,
		`UPDATE queued_jobs SET status = $1 WHERE id = $2`, status, jobID)
	if err != nil {
		return classifyError("update job status", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		a.log.Warn("job %d not found while setting status %s", jobID, status)
	}
	return nil
}

// Ensure JobAdapter implements out.JobRepository
var _ out.JobRepository = (*JobAdapter)(nil)
