// Package trigger hands queued jobs to the external workflow
// orchestrator over HTTP.
package trigger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
	"ingest_server/pkg/httputil"
	"ingest_server/pkg/logger"

	"github.com/goccy/go-json"
)

// =============================================================================
// Trigger Adapter
// =============================================================================

// TriggerAdapter implements out.OrchestratorTrigger. It POSTs one job
// configuration per call, authenticated with basic auth.
type TriggerAdapter struct {
	client   *http.Client
	url      string
	username string
	password string
	log      *logger.Logger
}

// NewTriggerAdapter creates a new orchestrator trigger.
func NewTriggerAdapter(url, username, password string, log *logger.Logger) *TriggerAdapter {
	return &TriggerAdapter{
		client:   httputil.NewPooledClient(nil),
		url:      url,
		username: username,
		password: password,
		log:      log.WithComponent("trigger-adapter"),
	}
}

// triggerPayload is the orchestrator's expected request body: the
// job's identity plus the user config the downstream run needs.
type triggerPayload struct {
	Conf triggerConf `json:"conf"`
}

type triggerConf struct {
	JobID        int64  `json:"job_id"`
	UserEmail    string `json:"user_email"`
	RefreshToken string `json:"refresh_token"`
}

// Trigger POSTs the job config. Any non-2xx response is an error and
// the job stays pending.
func (a *TriggerAdapter) Trigger(ctx context.Context, job *domain.Job, user *domain.User) error {
	body, err := json.Marshal(triggerPayload{Conf: triggerConf{
		JobID:        job.ID,
		UserEmail:    user.Email,
		RefreshToken: user.RefreshToken,
	}})
	if err != nil {
		return fmt.Errorf("encode trigger payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(a.username, a.password)

	resp, err := a.client.Do(req)
	if err != nil {
		return apperr.Connectivity("orchestrator", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return apperr.External("orchestrator",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	a.log.WithUser(user.Email).Info("job %d dispatched to orchestrator", job.ID)
	return nil
}

// Ensure TriggerAdapter implements out.OrchestratorTrigger
var _ out.OrchestratorTrigger = (*TriggerAdapter)(nil)
