// Package auth exchanges stored refresh tokens for live credentials.
package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
	"ingest_server/pkg/httputil"
	"ingest_server/pkg/logger"

	"github.com/goccy/go-json"
)

// =============================================================================
// Token Adapter
// =============================================================================

// TokenAdapter implements out.TokenExchanger against the external
// token endpoint. The endpoint wraps its token payload and identity
// claims in a nested envelope; the adapter flattens it into a single
// domain.Credentials record.
type TokenAdapter struct {
	client   *http.Client
	endpoint string
	log      *logger.Logger
}

// NewTokenAdapter creates a new token exchanger.
func NewTokenAdapter(endpoint string, log *logger.Logger) *TokenAdapter {
	return &TokenAdapter{
		client:   httputil.NewPooledClient(nil),
		endpoint: endpoint,
		log:      log.WithComponent("token-adapter"),
	}
}

// Wire types. Every claim is optional upstream; absent keys flatten
// to zero values rather than errors.

type tokenEnvelope struct {
	Message tokenMessage `json:"message"`
}

type tokenMessage struct {
	TokenType     string      `json:"token_type"`
	AccessToken   string      `json:"access_token"`
	RefreshToken  string      `json:"refresh_token"`
	IDToken       string      `json:"id_token"`
	Scope         string      `json:"scope"`
	TokenSource   string      `json:"token_source"`
	IDTokenClaims tokenClaims `json:"id_token_claims"`
}

type tokenClaims struct {
	OID               string `json:"oid"`
	TID               string `json:"tid"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	IAT               int64  `json:"iat"`
	EXP               int64  `json:"exp"`
	AIO               string `json:"aio"`
}

// GetAccessToken exchanges a refresh token for credentials. Any
// non-2xx response or malformed body is an AUTH error; no partial
// credential is ever returned.
func (a *TokenAdapter) GetAccessToken(ctx context.Context, refreshToken string) (*domain.Credentials, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", a.endpoint+refreshToken, nil)
	if err != nil {
		return nil, apperr.Auth("build token request", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperr.Auth("token endpoint unreachable", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.Auth(
			fmt.Sprintf("token endpoint returned %d", resp.StatusCode),
			fmt.Errorf("%s", string(body)))
	}

	var envelope tokenEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, apperr.Auth("malformed token response", err)
	}

	creds := flatten(&envelope.Message)
	a.log.WithUser(creds.Email).Info("access token issued, expires %s",
		creds.ExpiresAt.Format(time.RFC3339))
	return creds, nil
}

// flatten collapses the nested claim envelope into the pipeline's
// credential record. Epoch claims of zero stay zero time.Time values.
func flatten(msg *tokenMessage) *domain.Credentials {
	creds := &domain.Credentials{
		ID:           msg.IDTokenClaims.OID,
		TenantID:     msg.IDTokenClaims.TID,
		Name:         msg.IDTokenClaims.Name,
		Email:        msg.IDTokenClaims.PreferredUsername,
		TokenType:    msg.TokenType,
		AccessToken:  msg.AccessToken,
		RefreshToken: msg.RefreshToken,
		IDToken:      msg.IDToken,
		Scope:        msg.Scope,
		TokenSource:  msg.TokenSource,
		Nonce:        msg.IDTokenClaims.AIO,
	}
	if msg.IDTokenClaims.IAT != 0 {
		creds.IssuedAt = time.Unix(msg.IDTokenClaims.IAT, 0).UTC()
	}
	if msg.IDTokenClaims.EXP != 0 {
		creds.ExpiresAt = time.Unix(msg.IDTokenClaims.EXP, 0).UTC()
	}
	return creds
}

// Ensure TokenAdapter implements out.TokenExchanger
var _ out.TokenExchanger = (*TokenAdapter)(nil)
