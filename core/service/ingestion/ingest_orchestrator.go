// Package ingestion drives the attachment pipeline: discover flagged
// emails, fetch their attachments from the mail provider, and land
// each one in the object store and the registry.
package ingestion

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/logger"

	"github.com/go-pkgz/pool"
)

// =============================================================================
// Ingestion Orchestrator
// =============================================================================

// SourceFactory builds a credential-scoped attachment source for one
// run.
type SourceFactory func(ctx context.Context, accessToken string) (out.AttachmentSource, error)

// Summary is the outcome of one ingestion run.
type Summary struct {
	EmailsSeen   int
	EmailsFailed int64
	Uploaded     int64
	Skipped      int64
}

// Orchestrator coordinates one ingestion run end to end. Emails are
// processed by a bounded worker group; one email failing never stops
// the others.
type Orchestrator struct {
	discovery out.EmailDiscovery
	store     out.ObjectStore
	registry  out.AttachmentRegistry
	sources   SourceFactory
	workers   int
	chanSize  int
	log       *logger.Logger
}

// NewOrchestrator creates a new ingestion orchestrator.
func NewOrchestrator(discovery out.EmailDiscovery, store out.ObjectStore, registry out.AttachmentRegistry, sources SourceFactory, workers, chanSize int, log *logger.Logger) *Orchestrator {
	if workers <= 0 {
		workers = 4
	}
	if chanSize <= 0 {
		chanSize = 16
	}
	return &Orchestrator{
		discovery: discovery,
		store:     store,
		registry:  registry,
		sources:   sources,
		workers:   workers,
		chanSize:  chanSize,
		log:       log.WithComponent("ingestion"),
	}
}

// Run discovers every flagged email and ingests its attachments with
// the given credentials. An empty discovery result is a successful
// no-op run.
func (o *Orchestrator) Run(ctx context.Context, creds *domain.Credentials) (*Summary, error) {
	runLog := o.log.WithUser(creds.Email)

	emails, err := o.discovery.ListEmailsWithAttachments(ctx)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		runLog.WithStage("discover").Info("no emails flagged with attachments, nothing to do")
		return &Summary{}, nil
	}
	runLog.WithStage("discover").Info("found %d emails with attachments", len(emails))

	source, err := o.sources(ctx, creds.AccessToken)
	if err != nil {
		return nil, err
	}

	summary := &Summary{EmailsSeen: len(emails)}

	worker := pool.WorkerFunc[domain.EmailRef](func(ctx context.Context, ref domain.EmailRef) error {
		if err := o.ingestEmail(ctx, source, ref, summary); err != nil {
			atomic.AddInt64(&summary.EmailsFailed, 1)
			runLog.WithStage("fetch").WithEmailID(ref.EmailID).WithError(err).
				Error("email skipped, continuing with the rest")
			return err
		}
		return nil
	})

	p := pool.New[domain.EmailRef](o.workers, worker).
		WithWorkerChanSize(o.chanSize).
		WithContinueOnError()
	if err := p.Go(ctx); err != nil {
		return nil, err
	}
	for _, ref := range emails {
		p.Submit(ref)
	}
	// Per-email failures were already counted and logged; the pool's
	// aggregated error adds nothing for the caller.
	_ = p.Close(ctx)

	runLog.Info("run complete: %d emails, %d uploaded, %d skipped, %d failed",
		summary.EmailsSeen, atomic.LoadInt64(&summary.Uploaded),
		atomic.LoadInt64(&summary.Skipped), atomic.LoadInt64(&summary.EmailsFailed))
	return summary, nil
}

// Download mirrors every discovered email's attachments into destDir
// for the extraction stage. The local tree repeats the object key
// layout, destDir/<user>/<emailID>/attachments/..., so same-named
// attachments from different emails never collide. Already-present
// files are skipped by the store, so this is cheap to repeat.
func (o *Orchestrator) Download(ctx context.Context, destDir string) (int, error) {
	emails, err := o.discovery.ListEmailsWithAttachments(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, ref := range emails {
		dest := filepath.Join(destDir, ref.UserEmail, ref.EmailID, "attachments")
		n, err := o.store.DownloadPrefix(ctx, ref.UserEmail, ref.EmailID, dest)
		if err != nil {
			o.log.WithStage("download").WithEmailID(ref.EmailID).WithError(err).
				Error("download failed, continuing with the rest")
			continue
		}
		total += n
	}
	o.log.WithStage("download").Info("downloaded %d files into %s", total, destDir)
	return total, nil
}

// ingestEmail lands every attachment of one email. A provider listing
// failure aborts this email only.
func (o *Orchestrator) ingestEmail(ctx context.Context, source out.AttachmentSource, ref domain.EmailRef, summary *Summary) error {
	emailLog := o.log.WithUser(ref.UserEmail).WithEmailID(ref.EmailID)

	attachments, err := source.ListAttachments(ctx, ref.EmailID)
	if err != nil {
		return err
	}
	if len(attachments) == 0 {
		emailLog.WithStage("fetch").Info("no attachment payloads despite flag, skipping")
		return nil
	}

	if err := o.store.EnsureCategoryDirs(ctx, ref.UserEmail, ref.EmailID); err != nil {
		return err
	}

	for _, att := range attachments {
		if att.Name == "" || len(att.Content) == 0 {
			atomic.AddInt64(&summary.Skipped, 1)
			emailLog.WithStage("classify").Warn("skipping attachment with empty name or content")
			continue
		}

		category := domain.Classify(att.Name)
		if category == domain.CategoryUnsupported {
			atomic.AddInt64(&summary.Skipped, 1)
			emailLog.WithStage("classify").Info("unsupported attachment %s, skipping", att.Name)
			continue
		}

		locator, err := o.store.Put(ctx, ref.UserEmail, ref.EmailID, category, att.Name, att.Content)
		if err != nil {
			atomic.AddInt64(&summary.Skipped, 1)
			emailLog.WithStage("upload").WithError(err).Error("upload of %s failed", att.Name)
			continue
		}
		emailLog.WithStage("upload").Info("uploaded %s to %s", att.Name, locator)

		record := &domain.AttachmentRecord{
			ID:          att.ID,
			EmailID:     ref.EmailID,
			Name:        att.Name,
			ContentType: att.ContentType,
			Size:        att.Size,
			BucketURL:   locator,
		}
		if err := o.registry.Insert(ctx, record); err != nil {
			// The blob is already in place; only the registry row is
			// missing. Re-ingestion will restore it.
			emailLog.WithStage("record").WithError(err).Error("registry insert for %s failed", att.Name)
		}
		atomic.AddInt64(&summary.Uploaded, 1)
	}

	return nil
}
