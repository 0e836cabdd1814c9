package provider

import (
	"context"
	"fmt"

	"ingest_server/config"
	"ingest_server/core/port/out"
	"ingest_server/pkg/logger"
)

// NewAttachmentSource builds the configured provider's attachment
// source with the credentials already obtained for this job.
func NewAttachmentSource(ctx context.Context, cfg *config.Config, accessToken string, log *logger.Logger) (out.AttachmentSource, error) {
	switch cfg.Provider {
	case "outlook":
		return NewGraphAdapter(ctx, &GraphConfig{
			AccessToken: accessToken,
			Timeout:     cfg.ProviderTimeout,
		}, log), nil
	case "gmail":
		return NewGmailAdapter(ctx, accessToken, log)
	default:
		return nil, fmt.Errorf("unknown mail provider: %q", cfg.Provider)
	}
}
