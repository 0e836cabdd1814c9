// Package jobs manages the durable queue of ingestion runs.
package jobs

import (
	"context"
	"fmt"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
	"ingest_server/pkg/logger"
)

// =============================================================================
// Job Service
// =============================================================================

// JobService owns the job lifecycle: enqueue, dispatch to the
// external orchestrator, and terminal status updates.
type JobService struct {
	jobs    out.JobRepository
	trigger out.OrchestratorTrigger
	log     *logger.Logger
}

// NewJobService creates a new job service.
func NewJobService(jobs out.JobRepository, trigger out.OrchestratorTrigger, log *logger.Logger) *JobService {
	return &JobService{
		jobs:    jobs,
		trigger: trigger,
		log:     log.WithComponent("job-service"),
	}
}

// Enqueue inserts one pending job for the user.
func (s *JobService) Enqueue(ctx context.Context, userEmail string) (*domain.Job, error) {
	if userEmail == "" {
		return nil, apperr.Validation("user email is required")
	}
	job, err := s.jobs.Enqueue(ctx, userEmail)
	if err != nil {
		return nil, err
	}
	s.log.WithUser(userEmail).Info("job %d queued at %s", job.ID, job.CreatedAt)
	return job, nil
}

// Delete removes a job from the queue.
func (s *JobService) Delete(ctx context.Context, jobID int64) error {
	return s.jobs.Delete(ctx, jobID)
}

// Dispatch resolves the user behind a pending job, hands the job to
// the orchestrator, and on success moves the job to running. A failed
// handoff leaves the job pending so a later dispatch can retry it.
func (s *JobService) Dispatch(ctx context.Context, jobID int64) (*domain.User, error) {
	user, err := s.jobs.FetchUserForJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.Validation(fmt.Sprintf("no pending job with id %d", jobID))
	}

	if err := s.trigger.Trigger(ctx, &domain.Job{ID: jobID, UserEmail: user.Email}, user); err != nil {
		s.log.WithUser(user.Email).WithError(err).Error("dispatch of job %d failed, job stays pending", jobID)
		return nil, err
	}

	if err := s.jobs.UpdateStatus(ctx, jobID, domain.JobStatusRunning); err != nil {
		return nil, err
	}
	s.log.WithUser(user.Email).Info("job %d running", jobID)
	return user, nil
}

// MarkDone moves a job to its successful terminal state.
func (s *JobService) MarkDone(ctx context.Context, jobID int64) error {
	return s.jobs.UpdateStatus(ctx, jobID, domain.JobStatusDone)
}

// MarkFailed moves a job to its failed terminal state.
func (s *JobService) MarkFailed(ctx context.Context, jobID int64) error {
	return s.jobs.UpdateStatus(ctx, jobID, domain.JobStatusFailed)
}
