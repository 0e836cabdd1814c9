// Package storage implements the attachment object store on S3.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
	"ingest_server/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// =============================================================================
// S3 Adapter
// =============================================================================

// s3API is the slice of the S3 client the adapter uses, narrowed for
// testing.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Adapter implements out.ObjectStore. Objects live under
// <user_email>/<email_id>/attachments/<category>/<filename>; the same
// relative layout is reproduced locally by DownloadPrefix.
type S3Adapter struct {
	client s3API
	bucket string
	log    *logger.Logger
}

// NewS3Adapter creates an object store backed by the given bucket,
// using the ambient AWS credential chain.
func NewS3Adapter(ctx context.Context, bucket string, log *logger.Logger) (*S3Adapter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, apperr.Connectivity("AWS config", err)
	}
	return &S3Adapter{
		client: s3.NewFromConfig(awsCfg),
		bucket: bucket,
		log:    log.WithComponent("s3-adapter"),
	}, nil
}

// attachmentPrefix returns the email's attachment root key.
func attachmentPrefix(userEmail, emailID string) string {
	return fmt.Sprintf("%s/%s/attachments", userEmail, emailID)
}

// EnsureCategoryDirs writes an empty marker object per category so
// the email's full directory layout exists before any upload.
func (a *S3Adapter) EnsureCategoryDirs(ctx context.Context, userEmail, emailID string) error {
	prefix := attachmentPrefix(userEmail, emailID)
	for _, category := range domain.Categories() {
		key := fmt.Sprintf("%s/%s/", prefix, category)
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(nil),
		})
		if err != nil {
			return apperr.Connectivity("S3", fmt.Errorf("create marker %s: %w", key, err))
		}
	}
	return nil
}

// Put uploads one attachment and returns its s3:// locator.
func (a *S3Adapter) Put(ctx context.Context, userEmail, emailID string, category domain.Category, filename string, content []byte) (string, error) {
	key := fmt.Sprintf("%s/%s/%s", attachmentPrefix(userEmail, emailID), category, filename)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		return "", apperr.Connectivity("S3", fmt.Errorf("put %s: %w", key, err))
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

// DownloadPrefix mirrors the email's attachment tree into destDir.
// Marker objects (keys ending in "/") are skipped, as are files that
// already exist locally, so repeated runs only fetch what is new.
func (a *S3Adapter) DownloadPrefix(ctx context.Context, userEmail, emailID, destDir string) (int, error) {
	prefix := attachmentPrefix(userEmail, emailID) + "/"

	downloaded := 0
	var token *string
	for {
		page, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(a.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return downloaded, apperr.Connectivity("S3", fmt.Errorf("list %s: %w", prefix, err))
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}

			relative := strings.TrimPrefix(key, prefix)
			localPath := filepath.Join(destDir, filepath.FromSlash(relative))
			if _, err := os.Stat(localPath); err == nil {
				continue
			}

			if err := a.downloadObject(ctx, key, localPath); err != nil {
				return downloaded, err
			}
			downloaded++
		}

		if page.NextContinuationToken == nil {
			break
		}
		token = page.NextContinuationToken
	}

	a.log.WithEmailID(emailID).Info("downloaded %d objects under %s", downloaded, prefix)
	return downloaded, nil
}

func (a *S3Adapter) downloadObject(ctx context.Context, key, localPath string) error {
	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apperr.Connectivity("S3", fmt.Errorf("get %s: %w", key, err))
	}
	defer result.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(localPath), err)
	}
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, result.Body); err != nil {
		return fmt.Errorf("write %s: %w", localPath, err)
	}
	return nil
}

// Ensure S3Adapter implements out.ObjectStore
var _ out.ObjectStore = (*S3Adapter)(nil)
