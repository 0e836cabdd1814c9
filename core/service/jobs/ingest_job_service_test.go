package jobs

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"ingest_server/core/domain"
	"ingest_server/pkg/apperr"
	"ingest_server/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.LevelError, Output: io.Discard})
}

type mockJobRepo struct {
	users    map[int64]*domain.User
	statuses map[int64]domain.JobStatus
	nextID   int64
	enqueued []string
	fetchErr error
}

func newMockJobRepo() *mockJobRepo {
	return &mockJobRepo{
		users:    map[int64]*domain.User{},
		statuses: map[int64]domain.JobStatus{},
		nextID:   1,
	}
}

func (m *mockJobRepo) Enqueue(ctx context.Context, userEmail string) (*domain.Job, error) {
	id := m.nextID
	m.nextID++
	m.enqueued = append(m.enqueued, userEmail)
	m.statuses[id] = domain.JobStatusPending
	return &domain.Job{ID: id, UserEmail: userEmail, Status: domain.JobStatusPending, CreatedAt: time.Now()}, nil
}

func (m *mockJobRepo) Delete(ctx context.Context, jobID int64) error {
	delete(m.statuses, jobID)
	return nil
}

func (m *mockJobRepo) FetchUserForJob(ctx context.Context, jobID int64) (*domain.User, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.users[jobID], nil
}

func (m *mockJobRepo) UpdateStatus(ctx context.Context, jobID int64, status domain.JobStatus) error {
	m.statuses[jobID] = status
	return nil
}

type mockTrigger struct {
	calls int
	err   error
}

func (m *mockTrigger) Trigger(ctx context.Context, job *domain.Job, user *domain.User) error {
	m.calls++
	return m.err
}

func TestEnqueueRequiresEmail(t *testing.T) {
	svc := NewJobService(newMockJobRepo(), &mockTrigger{}, testLogger())
	if _, err := svc.Enqueue(context.Background(), ""); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected VALIDATION error for empty email, got %v", err)
	}
}

func TestDeleteRemovesQueuedJob(t *testing.T) {
	repo := newMockJobRepo()
	svc := NewJobService(repo, &mockTrigger{}, testLogger())

	job, err := svc.Enqueue(context.Background(), "jamie@example.com")
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := svc.Delete(context.Background(), job.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := repo.statuses[job.ID]; ok {
		t.Error("deleted job must leave the queue")
	}
}

func TestDispatchMovesJobToRunning(t *testing.T) {
	repo := newMockJobRepo()
	trigger := &mockTrigger{}
	svc := NewJobService(repo, trigger, testLogger())

	job, err := svc.Enqueue(context.Background(), "jamie@example.com")
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	repo.users[job.ID] = &domain.User{Email: "jamie@example.com", RefreshToken: "rt"}

	user, err := svc.Dispatch(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if user.Email != "jamie@example.com" {
		t.Errorf("expected dispatched user, got %+v", user)
	}
	if trigger.calls != 1 {
		t.Errorf("expected 1 trigger call, got %d", trigger.calls)
	}
	if repo.statuses[job.ID] != domain.JobStatusRunning {
		t.Errorf("expected running, got %s", repo.statuses[job.ID])
	}
}

func TestDispatchFailureLeavesJobPending(t *testing.T) {
	repo := newMockJobRepo()
	trigger := &mockTrigger{err: errors.New("orchestrator down")}
	svc := NewJobService(repo, trigger, testLogger())

	job, _ := svc.Enqueue(context.Background(), "jamie@example.com")
	repo.users[job.ID] = &domain.User{Email: "jamie@example.com"}

	if _, err := svc.Dispatch(context.Background(), job.ID); err == nil {
		t.Fatal("expected dispatch error")
	}
	if repo.statuses[job.ID] != domain.JobStatusPending {
		t.Errorf("failed dispatch must leave the job pending, got %s", repo.statuses[job.ID])
	}
}

func TestDispatchUnknownJob(t *testing.T) {
	svc := NewJobService(newMockJobRepo(), &mockTrigger{}, testLogger())
	if _, err := svc.Dispatch(context.Background(), 42); !apperr.IsKind(err, apperr.KindValidation) {
		t.Errorf("expected VALIDATION error for unknown job, got %v", err)
	}
}

func TestTerminalStatuses(t *testing.T) {
	repo := newMockJobRepo()
	svc := NewJobService(repo, &mockTrigger{}, testLogger())
	job, _ := svc.Enqueue(context.Background(), "jamie@example.com")

	if err := svc.MarkDone(context.Background(), job.ID); err != nil {
		t.Fatalf("mark done failed: %v", err)
	}
	if repo.statuses[job.ID] != domain.JobStatusDone {
		t.Errorf("expected done, got %s", repo.statuses[job.ID])
	}

	if err := svc.MarkFailed(context.Background(), job.ID); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}
	if repo.statuses[job.ID] != domain.JobStatusFailed {
		t.Errorf("expected failed, got %s", repo.statuses[job.ID])
	}
}
