package provider

import (
	"context"
	"encoding/base64"
	"fmt"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
	"ingest_server/pkg/logger"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// =============================================================================
// Gmail Adapter
// =============================================================================

// GmailAdapter implements out.AttachmentSource against the Gmail API.
// Unlike Graph, Gmail never inlines attachment bodies in the message
// listing; each part is fetched separately by attachment id.
type GmailAdapter struct {
	svc *gmail.Service
	log *logger.Logger
}

// NewGmailAdapter creates a new Gmail attachment source.
func NewGmailAdapter(ctx context.Context, accessToken string, log *logger.Logger) (*GmailAdapter, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, apperr.External("gmail API", err)
	}
	return &GmailAdapter{
		svc: svc,
		log: log.WithComponent("gmail-adapter"),
	}, nil
}

// ProviderName returns the provider name.
func (a *GmailAdapter) ProviderName() string {
	return "gmail"
}

// ListAttachments fetches and decodes every attachment of an email.
func (a *GmailAdapter) ListAttachments(ctx context.Context, emailID string) ([]domain.Attachment, error) {
	msg, err := a.svc.Users.Messages.Get("me", emailID).Context(ctx).Do()
	if err != nil {
		return nil, apperr.External("gmail API", fmt.Errorf("get message %s: %w", emailID, err))
	}
	if msg.Payload == nil {
		return nil, nil
	}

	var attachments []domain.Attachment
	for _, part := range collectParts(msg.Payload) {
		if part.Filename == "" || part.Body == nil || part.Body.AttachmentId == "" {
			continue
		}

		att, err := a.svc.Users.Messages.Attachments.
			Get("me", emailID, part.Body.AttachmentId).Context(ctx).Do()
		if err != nil {
			return nil, apperr.External("gmail API",
				fmt.Errorf("get attachment %s of %s: %w", part.Filename, emailID, err))
		}

		content, err := base64.URLEncoding.DecodeString(att.Data)
		if err != nil {
			a.log.WithEmailID(emailID).WithError(err).
				Warn("skipping attachment %s: undecodable body", part.Filename)
			continue
		}

		attachments = append(attachments, domain.Attachment{
			ID:          part.Body.AttachmentId,
			Name:        part.Filename,
			ContentType: part.MimeType,
			Size:        att.Size,
			Content:     content,
		})
	}

	return attachments, nil
}

// collectParts flattens the nested MIME tree into a single slice.
func collectParts(payload *gmail.MessagePart) []*gmail.MessagePart {
	parts := []*gmail.MessagePart{payload}
	for _, child := range payload.Parts {
		parts = append(parts, collectParts(child)...)
	}
	return parts
}

// Ensure GmailAdapter implements out.AttachmentSource
var _ out.AttachmentSource = (*GmailAdapter)(nil)
