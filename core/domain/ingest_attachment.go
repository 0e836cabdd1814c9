package domain

import "time"

// EmailRef identifies one email flagged as carrying attachments,
// discovered from the relational store. Read-only input; never
// mutated by the pipeline.
type EmailRef struct {
	UserEmail      string `json:"user_email"`
	EmailID        string `json:"email_id"`
	HasAttachments bool   `json:"has_attachments"`
}

// Attachment is a raw attachment payload as returned by the mail
// provider, content already decoded from its wire encoding.
type Attachment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Content     []byte `json:"-"`
}

// AttachmentRecord is the registry row written after a successful
// object-store upload. Created exactly once per attachment; never
// updated, never deleted by the pipeline.
type AttachmentRecord struct {
	ID          string    `json:"id"`
	EmailID     string    `json:"email_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	BucketURL   string    `json:"bucket_url"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}
