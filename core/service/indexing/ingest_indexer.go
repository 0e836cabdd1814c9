package indexing

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/logger"

	"github.com/goccy/go-json"
)

// bodyField is the metadata key holding page text, the only field the
// token budget applies to.
const bodyField = "text"

// =============================================================================
// Embedding Indexer
// =============================================================================

// Indexer writes embedded page records into the user's collection.
// Each user gets exactly one collection, named from the email with
// the characters Postgres identifiers cannot carry translated away.
type Indexer struct {
	pre      *Preprocessor
	embedder out.Embedder
	index    out.VectorIndex
	atToken  string
	dotToken string
	log      *logger.Logger
}

// NewIndexer creates a new embedding indexer.
func NewIndexer(pre *Preprocessor, embedder out.Embedder, index out.VectorIndex, atToken, dotToken string, log *logger.Logger) *Indexer {
	return &Indexer{
		pre:      pre,
		embedder: embedder,
		index:    index,
		atToken:  atToken,
		dotToken: dotToken,
		log:      log.WithComponent("indexer").WithStage("index"),
	}
}

// CollectionName derives the user's collection name from the email.
// Deterministic: the same email always maps to the same collection.
func (ix *Indexer) CollectionName(userEmail string) string {
	name := strings.ReplaceAll(userEmail, "@", ix.atToken)
	return strings.ReplaceAll(name, ".", ix.dotToken)
}

// Index embeds one record and inserts it into the user's collection.
// Returns true only when the insert succeeded.
func (ix *Indexer) Index(ctx context.Context, userEmail string, fields map[string]string) (bool, error) {
	body, _ := ix.pre.Bound(fields[bodyField])

	bounded := make(map[string]string, len(fields))
	for k, v := range fields {
		bounded[k] = v
	}
	bounded[bodyField] = body

	collection := ix.CollectionName(userEmail)
	if err := ix.index.EnsureCollection(ctx, collection); err != nil {
		return false, err
	}

	embedding, err := ix.embedder.Embed(ctx, embeddingInput(bounded))
	if err != nil {
		return false, err
	}

	metadata := make(map[string]any, len(bounded))
	for k, v := range bounded {
		metadata[k] = v
	}
	if err := ix.index.Insert(ctx, collection, embedding, metadata); err != nil {
		return false, err
	}
	return true, nil
}

// IndexDirectory walks the extracted page records below root and
// indexes each one. Per-record failures are logged and skipped; the
// walk continues. Returns the number of records indexed.
func (ix *Indexer) IndexDirectory(ctx context.Context, userEmail, root string) (int, error) {
	indexed := 0
	userLog := ix.log.WithUser(userEmail)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !isPageRecord(path) {
			return nil
		}

		record, err := readPageRecord(path)
		if err != nil {
			userLog.WithError(err).Error("unreadable page record %s, skipping", path)
			return nil
		}

		fields := map[string]string{
			"document": documentName(root, path),
			"page":     fmt.Sprintf("%d", record.PageID),
			bodyField:  record.Content.Text,
		}
		ok, err := ix.Index(ctx, userEmail, fields)
		if err != nil {
			userLog.WithError(err).Error("indexing of %s failed, skipping", path)
			return nil
		}
		if ok {
			indexed++
		}
		return nil
	})
	if err != nil {
		return indexed, err
	}

	userLog.Info("indexed %d page records under %s", indexed, root)
	return indexed, nil
}

// isPageRecord matches the extractor's JSON/page_<n>.json layout.
func isPageRecord(path string) bool {
	dir := filepath.Base(filepath.Dir(path))
	base := filepath.Base(path)
	return dir == "JSON" && strings.HasPrefix(base, "page_") && strings.HasSuffix(base, ".json")
}

// documentName is the page record's document path relative to the
// walk root, without the trailing JSON/page_<n>.json.
func documentName(root, path string) string {
	rel, err := filepath.Rel(root, filepath.Dir(filepath.Dir(path)))
	if err != nil {
		return filepath.Dir(filepath.Dir(path))
	}
	return filepath.ToSlash(rel)
}

func readPageRecord(path string) (*domain.PageRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var record domain.PageRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// embeddingInput concatenates the record's fields in stable key
// order, so the same record always embeds the same string.
func embeddingInput(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(fields[k])
		sb.WriteString("\n")
	}
	return sb.String()
}
