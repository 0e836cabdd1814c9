// Package extraction turns downloaded PDF attachments into per-page
// JSON records with plain text and extracted images.
package extraction

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"unicode"

	"ingest_server/core/domain"
	"ingest_server/pkg/logger"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-pkgz/pool"
	"github.com/goccy/go-json"
	"github.com/ledongthuc/pdf"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// Document Extractor
// =============================================================================

// Summary is the outcome of one extraction run.
type Summary struct {
	Documents int
	Pages     int64
	Images    int64
	Failed    int64
}

// Extractor walks the download directory and extracts every PDF it
// finds on a bounded worker group. Each page is persisted as its own
// JSON file the moment it is ready, so a failure later in the document
// never loses earlier pages.
type Extractor struct {
	downloadDir string
	workers     int
	log         *logger.Logger
}

// NewExtractor creates a new document extractor rooted at dir.
func NewExtractor(dir string, workers int, log *logger.Logger) *Extractor {
	if workers <= 0 {
		workers = 4
	}
	return &Extractor{
		downloadDir: dir,
		workers:     workers,
		log:         log.WithComponent("extractor").WithStage("extract"),
	}
}

// Run extracts every .pdf below the download directory. Per-document
// failures are logged and counted; the run always continues.
func (e *Extractor) Run(ctx context.Context) (*Summary, error) {
	var candidates []string
	err := filepath.WalkDir(e.downloadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || strings.ToLower(filepath.Ext(path)) != ".pdf" {
			return nil
		}
		candidates = append(candidates, path)
		return nil
	})
	if err != nil {
		return &Summary{}, err
	}

	summary := &Summary{Documents: len(candidates)}
	if len(candidates) == 0 {
		e.log.Info("no documents below %s, nothing to extract", e.downloadDir)
		return summary, nil
	}

	worker := pool.WorkerFunc[string](func(ctx context.Context, path string) error {
		pages, images, err := e.ExtractDocument(ctx, path)
		if err != nil {
			atomic.AddInt64(&summary.Failed, 1)
			e.log.WithError(err).Error("extraction of %s failed, continuing", path)
			return err
		}
		atomic.AddInt64(&summary.Pages, int64(pages))
		atomic.AddInt64(&summary.Images, int64(images))
		return nil
	})

	p := pool.New[string](e.workers, worker).WithContinueOnError()
	if err := p.Go(ctx); err != nil {
		return summary, err
	}
	for _, path := range candidates {
		p.Submit(path)
	}
	// Per-document failures were already counted and logged.
	_ = p.Close(ctx)

	e.log.Info("extraction complete: %d documents, %d pages, %d images, %d failed",
		summary.Documents, atomic.LoadInt64(&summary.Pages),
		atomic.LoadInt64(&summary.Images), atomic.LoadInt64(&summary.Failed))
	return summary, nil
}

// ExtractDocument extracts one PDF into <doc dir>/JSON/page_<n>.json
// plus <doc dir>/Image/. Returns pages and images written.
func (e *Extractor) ExtractDocument(ctx context.Context, path string) (int, int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return 0, 0, fmt.Errorf("%s is empty", path)
	}

	// Extension alone is not trusted; the content must actually be a
	// PDF before the parsers see it.
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("sniff %s: %w", path, err)
	}
	if !mime.Is("application/pdf") {
		return 0, 0, fmt.Errorf("%s is %s, not a PDF", path, mime.String())
	}

	outRoot := strings.TrimSuffix(path, filepath.Ext(path))
	jsonDir := filepath.Join(outRoot, "JSON")
	imageDir := filepath.Join(outRoot, "Image")
	for _, dir := range []string{jsonDir, imageDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, 0, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	imagesByPage, imageCount, err := e.extractImages(path, imageDir)
	if err != nil {
		// Text is still worth keeping when only image extraction fails.
		e.log.WithError(err).Warn("image extraction of %s failed, keeping text only", path)
		imagesByPage = map[int][]string{}
		imageCount = 0
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	pagesWritten := 0
	for n := 1; n <= reader.NumPage(); n++ {
		if ctx.Err() != nil {
			return pagesWritten, imageCount, ctx.Err()
		}

		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			e.log.WithError(err).Warn("text of %s page %d unreadable, recording empty page", path, n)
			text = ""
		}

		record := domain.PageRecord{
			PageID: n,
			Content: domain.PageContent{
				Text:   strings.TrimSpace(toASCII(text)),
				Images: imagesByPage[n],
			},
		}
		if err := writePageRecord(jsonDir, &record); err != nil {
			return pagesWritten, imageCount, err
		}
		pagesWritten++
	}

	e.log.Info("extracted %s: %d pages, %d images", path, pagesWritten, imageCount)
	return pagesWritten, imageCount, nil
}

// extractImages pulls every embedded image into imageDir, named
// page_<n>_image_<k>.<ext>, and returns the filenames grouped by page.
func (e *Extractor) extractImages(path, imageDir string) (map[int][]string, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	byPage := map[int][]string{}
	total := 0
	digest := func(img model.Image, singleImgPerPage bool, maxPageDigits int) error {
		name := fmt.Sprintf("page_%d_image_%d.%s", img.PageNr, len(byPage[img.PageNr]), img.FileType)
		out, err := os.Create(filepath.Join(imageDir, name))
		if err != nil {
			return err
		}
		defer out.Close()

		if _, err := io.Copy(out, img); err != nil {
			return err
		}
		byPage[img.PageNr] = append(byPage[img.PageNr], name)
		total++
		return nil
	}

	if err := pdfapi.ExtractImages(file, nil, digest, nil); err != nil {
		return nil, 0, err
	}
	return byPage, total, nil
}

func writePageRecord(jsonDir string, record *domain.PageRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode page %d: %w", record.PageID, err)
	}
	target := filepath.Join(jsonDir, fmt.Sprintf("page_%d.json", record.PageID))
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}

// asciiFold strips diacritics then drops what still is not ASCII, so
// downstream tokenization sees a stable byte alphabet.
var asciiFold = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
	norm.NFC,
)

func toASCII(s string) string {
	folded, _, err := transform.String(asciiFold, s)
	if err != nil {
		return s
	}
	return folded
}
