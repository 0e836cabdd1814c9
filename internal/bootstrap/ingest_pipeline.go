package bootstrap

import (
	"context"

	"ingest_server/core/domain"
)

// Pipeline runs the ingestion stages in order for one set of
// credentials: fetch and upload, download for extraction, extract,
// index.
type Pipeline struct {
	deps *Dependencies
}

// NewPipeline creates a pipeline runner over wired dependencies.
func NewPipeline(deps *Dependencies) *Pipeline {
	return &Pipeline{deps: deps}
}

// Run executes the full pipeline with the given refresh token. When
// jobID is non-zero the job is moved to its terminal status based on
// the outcome.
func (p *Pipeline) Run(ctx context.Context, refreshToken string, jobID int64) error {
	err := p.run(ctx, refreshToken)
	if jobID != 0 {
		if err != nil {
			if statusErr := p.deps.JobService.MarkFailed(ctx, jobID); statusErr != nil {
				p.deps.Log.WithError(statusErr).Error("job %d could not be marked failed", jobID)
			}
		} else if statusErr := p.deps.JobService.MarkDone(ctx, jobID); statusErr != nil {
			p.deps.Log.WithError(statusErr).Error("job %d could not be marked done", jobID)
		} else if delErr := p.deps.JobService.Delete(ctx, jobID); delErr != nil {
			// The leaked queue row is accepted; the job already reached
			// its terminal status.
			p.deps.Log.WithError(delErr).Error("job %d could not be removed from the queue", jobID)
		}
	}
	return err
}

func (p *Pipeline) run(ctx context.Context, refreshToken string) error {
	log := p.deps.Log.WithComponent("pipeline")

	creds, err := p.deps.Tokens.GetAccessToken(ctx, refreshToken)
	if err != nil {
		return err
	}

	summary, err := p.deps.Orchestrator.Run(ctx, creds)
	if err != nil {
		return err
	}
	if summary.EmailsSeen == 0 {
		return nil
	}

	if _, err := p.deps.Orchestrator.Download(ctx, p.deps.Config.DownloadDir); err != nil {
		return err
	}

	extracted, err := p.deps.Extractor.Run(ctx)
	if err != nil {
		return err
	}
	if extracted.Pages == 0 {
		log.Info("nothing extracted, skipping indexing")
		return nil
	}

	_, err = p.deps.Indexer.IndexDirectory(ctx, creds.Email, p.deps.Config.DownloadDir)
	return err
}

// Enqueue inserts a pending job and immediately dispatches it to the
// orchestrator.
func (p *Pipeline) Enqueue(ctx context.Context, userEmail string) (*domain.Job, error) {
	job, err := p.deps.JobService.Enqueue(ctx, userEmail)
	if err != nil {
		return nil, err
	}
	if _, err := p.deps.JobService.Dispatch(ctx, job.ID); err != nil {
		return job, err
	}
	return job, nil
}
