// Package provider implements mail provider attachment sources.
package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
	"ingest_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// =============================================================================
// Graph Adapter (Outlook)
// =============================================================================

// GraphAdapter implements out.AttachmentSource against the Microsoft
// Graph API.
type GraphAdapter struct {
	client  *http.Client
	baseURL string
	cb      *gobreaker.CircuitBreaker
	log     *logger.Logger
}

// GraphConfig holds Graph adapter configuration.
type GraphConfig struct {
	AccessToken string
	Timeout     time.Duration // defaults to 30s, the listing call's fixed bound
	BaseURL     string        // overridden in tests
}

// NewGraphAdapter creates a new Graph attachment source.
func NewGraphAdapter(ctx context.Context, cfg *GraphConfig, log *logger.Logger) *GraphAdapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = graphBaseURL
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
	client := oauth2.NewClient(ctx, src)
	client.Timeout = timeout

	adapterLog := log.WithComponent("graph-adapter")
	cbSettings := gobreaker.Settings{
		Name:        "graph-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			adapterLog.Warn("circuit breaker %s: %s -> %s", name, from.String(), to.String())
		},
	}

	return &GraphAdapter{
		client:  client,
		baseURL: baseURL,
		cb:      gobreaker.NewCircuitBreaker(cbSettings),
		log:     adapterLog,
	}
}

// ProviderName returns the provider name.
func (a *GraphAdapter) ProviderName() string {
	return "outlook"
}

// Graph API types

type graphAttachment struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size"`
	ContentBytes string `json:"contentBytes"`
}

type graphAttachmentList struct {
	Value []graphAttachment `json:"value"`
}

// ListAttachments fetches and decodes every attachment of an email.
// A non-2xx response is an EXTERNAL error; the caller aborts this
// email only and moves on.
func (a *GraphAdapter) ListAttachments(ctx context.Context, emailID string) ([]domain.Attachment, error) {
	var list graphAttachmentList
	err := a.get(ctx, fmt.Sprintf("/me/messages/%s/attachments", emailID), &list)
	if err != nil {
		return nil, err
	}

	attachments := make([]domain.Attachment, 0, len(list.Value))
	for _, att := range list.Value {
		if att.Name == "" || att.ContentBytes == "" {
			continue
		}
		content, err := base64.StdEncoding.DecodeString(att.ContentBytes)
		if err != nil {
			a.log.WithEmailID(emailID).WithError(err).
				Warn("skipping attachment %s: undecodable contentBytes", att.Name)
			continue
		}
		attachments = append(attachments, domain.Attachment{
			ID:          att.ID,
			Name:        att.Name,
			ContentType: att.ContentType,
			Size:        att.Size,
			Content:     content,
		})
	}

	return attachments, nil
}

// HTTP helpers

func (a *GraphAdapter) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", a.baseURL+path, nil)
	if err != nil {
		return err
	}

	body, err := a.cb.Execute(func() (interface{}, error) {
		return a.doRequest(req)
	})
	if err != nil {
		return err
	}

	if result != nil {
		return json.Unmarshal(body.([]byte), result)
	}
	return nil
}

func (a *GraphAdapter) doRequest(req *http.Request) ([]byte, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperr.Connectivity("graph API", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, apperr.External("graph API",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body))).
			WithDetail("status", resp.StatusCode)
	}

	return body, nil
}

// Ensure GraphAdapter implements out.AttachmentSource
var _ out.AttachmentSource = (*GraphAdapter)(nil)
