package domain

import "time"

// Credentials is the normalized record produced by flattening the
// token endpoint's nested claim structure. Missing upstream keys are
// zero values, never errors; the pipeline tolerates provider drift.
type Credentials struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	TokenType    string    `json:"token_type"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	IDToken      string    `json:"id_token"`
	Scope        string    `json:"scope"`
	TokenSource  string    `json:"token_source"`
	IssuedAt     time.Time `json:"iat"`
	ExpiresAt    time.Time `json:"exp"`
	Nonce        string    `json:"nonce"`
}

// Expired reports whether the access token is past its expiry.
func (c *Credentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
