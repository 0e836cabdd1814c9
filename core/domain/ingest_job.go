package domain

import "time"

// JobStatus tracks the lifecycle of one queued ingestion run.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// Job is one queued request to run the ingestion pipeline for a user.
type Job struct {
	ID        int64     `json:"id"`
	UserEmail string    `json:"user_email"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// User is the authoritative identity joined against job and email
// tables. The email doubles as the object-store prefix and the seed
// for the per-user vector collection name.
type User struct {
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	TenantID     string `json:"tenant_id,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}
