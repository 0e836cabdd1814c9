package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.LevelError, Output: io.Discard})
}

// Mocks

type mockDiscovery struct {
	emails []domain.EmailRef
	err    error
}

func (m *mockDiscovery) ListEmailsWithAttachments(ctx context.Context) ([]domain.EmailRef, error) {
	return m.emails, m.err
}

type mockSource struct {
	mu      sync.Mutex
	byEmail map[string][]domain.Attachment
	errFor  map[string]error
}

func (m *mockSource) ProviderName() string { return "mock" }

func (m *mockSource) ListAttachments(ctx context.Context, emailID string) ([]domain.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errFor[emailID]; err != nil {
		return nil, err
	}
	return m.byEmail[emailID], nil
}

type mockStore struct {
	mu          sync.Mutex
	dirsFor     []string
	uploads     []string
	downloads   []string
	putErr      error
	ensureErr   error
	destDirs    []string
	downloadN   int
	downloadErr error
}

func (m *mockStore) EnsureCategoryDirs(ctx context.Context, userEmail, emailID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirsFor = append(m.dirsFor, emailID)
	return m.ensureErr
}

func (m *mockStore) Put(ctx context.Context, userEmail, emailID string, category domain.Category, filename string, content []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return "", m.putErr
	}
	key := fmt.Sprintf("%s/%s/attachments/%s/%s", userEmail, emailID, category, filename)
	m.uploads = append(m.uploads, key)
	return "s3://bucket/" + key, nil
}

func (m *mockStore) DownloadPrefix(ctx context.Context, userEmail, emailID, destDir string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads = append(m.downloads, emailID)
	m.destDirs = append(m.destDirs, destDir)
	return m.downloadN, m.downloadErr
}

type mockRegistry struct {
	mu      sync.Mutex
	records []*domain.AttachmentRecord
	err     error
}

func (m *mockRegistry) Insert(ctx context.Context, record *domain.AttachmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, record)
	return nil
}

func newTestOrchestrator(discovery *mockDiscovery, source *mockSource, store *mockStore, registry *mockRegistry) *Orchestrator {
	sources := func(ctx context.Context, accessToken string) (out.AttachmentSource, error) {
		return source, nil
	}
	return NewOrchestrator(discovery, store, registry, sources, 2, 4, testLogger())
}

func testCreds() *domain.Credentials {
	return &domain.Credentials{Email: "jamie@example.com", AccessToken: "at"}
}

// Tests

func TestRunUploadsAndRecords(t *testing.T) {
	discovery := &mockDiscovery{emails: []domain.EmailRef{
		{UserEmail: "jamie@example.com", EmailID: "em-1", HasAttachments: true},
	}}
	source := &mockSource{byEmail: map[string][]domain.Attachment{
		"em-1": {
			{ID: "a1", Name: "report.pdf", ContentType: "application/pdf", Size: 3, Content: []byte("pdf")},
			{ID: "a2", Name: "archive.zip", ContentType: "application/zip", Size: 3, Content: []byte("zip")},
		},
	}}
	store := &mockStore{}
	registry := &mockRegistry{}

	summary, err := newTestOrchestrator(discovery, source, store, registry).Run(context.Background(), testCreds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Uploaded != 2 {
		t.Errorf("expected 2 uploads, got %d", summary.Uploaded)
	}
	if len(store.dirsFor) != 1 || store.dirsFor[0] != "em-1" {
		t.Errorf("expected category dirs ensured once for em-1, got %v", store.dirsFor)
	}
	if len(registry.records) != 2 {
		t.Fatalf("expected 2 registry records, got %d", len(registry.records))
	}
	for _, record := range registry.records {
		if record.BucketURL == "" {
			t.Errorf("record %s missing bucket url", record.ID)
		}
		if record.EmailID != "em-1" {
			t.Errorf("record %s has email %s, want em-1", record.ID, record.EmailID)
		}
	}
}

func TestRunSkipsUnsupportedAndEmpty(t *testing.T) {
	discovery := &mockDiscovery{emails: []domain.EmailRef{
		{UserEmail: "jamie@example.com", EmailID: "em-1"},
	}}
	source := &mockSource{byEmail: map[string][]domain.Attachment{
		"em-1": {
			{ID: "a1", Name: "tool.exe", Content: []byte("bin")},
			{ID: "a2", Name: "", Content: []byte("anon")},
			{ID: "a3", Name: "empty.pdf", Content: nil},
			{ID: "a4", Name: "ok.csv", Size: 1, Content: []byte("x")},
		},
	}}
	store := &mockStore{}
	registry := &mockRegistry{}

	summary, err := newTestOrchestrator(discovery, source, store, registry).Run(context.Background(), testCreds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Uploaded != 1 {
		t.Errorf("expected 1 upload, got %d", summary.Uploaded)
	}
	if summary.Skipped != 3 {
		t.Errorf("expected 3 skips, got %d", summary.Skipped)
	}
	if len(store.uploads) != 1 || store.uploads[0] != "jamie@example.com/em-1/attachments/CSV/ok.csv" {
		t.Errorf("unexpected uploads %v", store.uploads)
	}
}

func TestRunOneEmailFailingNeverStopsOthers(t *testing.T) {
	discovery := &mockDiscovery{emails: []domain.EmailRef{
		{UserEmail: "jamie@example.com", EmailID: "em-bad"},
		{UserEmail: "jamie@example.com", EmailID: "em-good"},
	}}
	source := &mockSource{
		byEmail: map[string][]domain.Attachment{
			"em-good": {{ID: "a1", Name: "fine.pdf", Size: 1, Content: []byte("x")}},
		},
		errFor: map[string]error{"em-bad": errors.New("provider said 403")},
	}
	store := &mockStore{}
	registry := &mockRegistry{}

	summary, err := newTestOrchestrator(discovery, source, store, registry).Run(context.Background(), testCreds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.EmailsFailed != 1 {
		t.Errorf("expected 1 failed email, got %d", summary.EmailsFailed)
	}
	if summary.Uploaded != 1 {
		t.Errorf("expected the healthy email's upload, got %d", summary.Uploaded)
	}
}

func TestRunEmptyDiscoveryIsNoOp(t *testing.T) {
	discovery := &mockDiscovery{}
	source := &mockSource{}
	store := &mockStore{}
	registry := &mockRegistry{}

	summary, err := newTestOrchestrator(discovery, source, store, registry).Run(context.Background(), testCreds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.EmailsSeen != 0 || summary.Uploaded != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}
	if len(store.dirsFor) != 0 {
		t.Error("no category dirs should be created on an empty run")
	}
}

func TestRunRegistryFailureKeepsBlob(t *testing.T) {
	discovery := &mockDiscovery{emails: []domain.EmailRef{
		{UserEmail: "jamie@example.com", EmailID: "em-1"},
	}}
	source := &mockSource{byEmail: map[string][]domain.Attachment{
		"em-1": {{ID: "a1", Name: "report.pdf", Size: 1, Content: []byte("x")}},
	}}
	store := &mockStore{}
	registry := &mockRegistry{err: errors.New("constraint violated")}

	summary, err := newTestOrchestrator(discovery, source, store, registry).Run(context.Background(), testCreds())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.uploads) != 1 {
		t.Fatalf("expected the upload to happen, got %v", store.uploads)
	}
	if summary.Uploaded != 1 {
		t.Errorf("upload still counts when only the registry insert fails, got %d", summary.Uploaded)
	}
}

func TestDownloadMirrorsEveryEmail(t *testing.T) {
	discovery := &mockDiscovery{emails: []domain.EmailRef{
		{UserEmail: "jamie@example.com", EmailID: "em-1"},
		{UserEmail: "jamie@example.com", EmailID: "em-2"},
	}}
	store := &mockStore{downloadN: 3}

	o := newTestOrchestrator(discovery, &mockSource{}, store, &mockRegistry{})
	n, err := o.Download(context.Background(), "downloads")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 6 {
		t.Errorf("expected 6 downloaded files, got %d", n)
	}
	if len(store.downloads) != 2 {
		t.Errorf("expected both emails downloaded, got %v", store.downloads)
	}
}

func TestDownloadKeepsEmailsInSeparateDirectories(t *testing.T) {
	// Both emails carry a Documents/report.pdf upstream; without a
	// per-email destination the second mirror would find the first
	// email's copy already on disk and silently keep its bytes.
	discovery := &mockDiscovery{emails: []domain.EmailRef{
		{UserEmail: "jamie@example.com", EmailID: "em-1"},
		{UserEmail: "jamie@example.com", EmailID: "em-2"},
	}}
	store := &mockStore{downloadN: 1}

	o := newTestOrchestrator(discovery, &mockSource{}, store, &mockRegistry{})
	if _, err := o.Download(context.Background(), "downloads"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		filepath.Join("downloads", "jamie@example.com", "em-1", "attachments"),
		filepath.Join("downloads", "jamie@example.com", "em-2", "attachments"),
	}
	if len(store.destDirs) != len(want) {
		t.Fatalf("expected %d destinations, got %v", len(want), store.destDirs)
	}
	for i, dest := range store.destDirs {
		if dest != want[i] {
			t.Errorf("destination %d = %s, want %s", i, dest, want[i])
		}
	}
}
