package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ingest_server/core/domain"
	"ingest_server/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.LevelError, Output: io.Discard})
}

// fakeS3 keeps objects in a map, enough to exercise the adapter's key
// layout and download logic.
type fakeS3 struct {
	objects map[string][]byte
	puts    []string
	gets    []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(params.Key)
	var body []byte
	if params.Body != nil {
		body, _ = io.ReadAll(params.Body)
	}
	f.objects[key] = body
	f.puts = append(f.puts, key)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(params.Prefix)
	var contents []types.Object
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			contents = append(contents, types.Object{Key: aws.String(key)})
		}
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(params.Key)
	f.gets = append(f.gets, key)
	body, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(body)))}, nil
}

func newTestAdapter(client s3API) *S3Adapter {
	return &S3Adapter{client: client, bucket: "test-bucket", log: testLogger()}
}

func TestEnsureCategoryDirsCreatesEveryMarker(t *testing.T) {
	fake := newFakeS3()
	adapter := newTestAdapter(fake)

	if err := adapter.EnsureCategoryDirs(context.Background(), "jamie@example.com", "em-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	categories := domain.Categories()
	if len(fake.puts) != len(categories) {
		t.Fatalf("expected %d markers, got %d", len(categories), len(fake.puts))
	}
	for _, category := range categories {
		key := "jamie@example.com/em-1/attachments/" + string(category) + "/"
		if _, ok := fake.objects[key]; !ok {
			t.Errorf("missing marker for %s", category)
		}
	}
}

func TestPutReturnsLocator(t *testing.T) {
	fake := newFakeS3()
	adapter := newTestAdapter(fake)

	locator, err := adapter.Put(context.Background(), "jamie@example.com", "em-1",
		domain.CategoryDocuments, "report.pdf", []byte("pdf bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "s3://test-bucket/jamie@example.com/em-1/attachments/Documents/report.pdf"
	if locator != want {
		t.Errorf("locator = %s, want %s", locator, want)
	}
	key := strings.TrimPrefix(want, "s3://test-bucket/")
	if string(fake.objects[key]) != "pdf bytes" {
		t.Errorf("object body not stored under %s", key)
	}
}

func TestDownloadPrefixMirrorsLayoutAndSkipsExisting(t *testing.T) {
	fake := newFakeS3()
	prefix := "jamie@example.com/em-1/attachments/"
	fake.objects[prefix+"Documents/"] = nil // marker, never downloaded
	fake.objects[prefix+"Documents/report.pdf"] = []byte("pdf")
	fake.objects[prefix+"CSV/data.csv"] = []byte("a,b")
	fake.objects["jamie@example.com/em-other/attachments/Documents/other.pdf"] = []byte("x")

	adapter := newTestAdapter(fake)
	dest := t.TempDir()

	n, err := adapter.DownloadPrefix(context.Background(), "jamie@example.com", "em-1", dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 downloads, got %d", n)
	}

	report := filepath.Join(dest, "Documents", "report.pdf")
	if body, err := os.ReadFile(report); err != nil || string(body) != "pdf" {
		t.Errorf("report.pdf not mirrored correctly: %v %q", err, body)
	}
	if _, err := os.Stat(filepath.Join(dest, "Documents", "other.pdf")); !os.IsNotExist(err) {
		t.Error("objects of other emails must not be downloaded")
	}

	// Second run finds everything already present.
	fake.gets = nil
	n, err = adapter.DownloadPrefix(context.Background(), "jamie@example.com", "em-1", dest)
	if err != nil {
		t.Fatalf("unexpected error on rerun: %v", err)
	}
	if n != 0 {
		t.Errorf("expected rerun to skip existing files, downloaded %d", n)
	}
	if len(fake.gets) != 0 {
		t.Errorf("expected no object fetches on rerun, got %v", fake.gets)
	}
}
