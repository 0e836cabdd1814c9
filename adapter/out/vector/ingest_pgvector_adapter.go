// Package vector implements the per-user embedding store on Postgres
// with the pgvector extension.
package vector

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
	"ingest_server/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const lockStripes = 16

// =============================================================================
// PGVector Adapter
// =============================================================================

// PGVectorAdapter implements out.VectorIndex. Each user gets one
// table (id, embedding, metadata) with an ivfflat cosine index.
// Collection creation is serialized per name so two goroutines hitting
// a brand-new user cannot race the DDL.
type PGVectorAdapter struct {
	pool       *pgxpool.Pool
	dim        int
	indexLists int
	locks      [lockStripes]sync.Mutex
	created    sync.Map // collection name -> struct{}
	log        *logger.Logger
}

// NewPGVectorAdapter creates a vector index over an existing pool.
// The pool must have pgvector types registered on its connections.
func NewPGVectorAdapter(pool *pgxpool.Pool, dim, indexLists int, log *logger.Logger) *PGVectorAdapter {
	return &PGVectorAdapter{
		pool:       pool,
		dim:        dim,
		indexLists: indexLists,
		log:        log.WithComponent("pgvector-adapter"),
	}
}

func (a *PGVectorAdapter) lockFor(name string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(name))
	return &a.locks[h.Sum32()%lockStripes]
}

// EnsureCollection creates the collection table and its ANN index
// when absent. Safe to call on every insert path; after the first
// successful call for a name it is a cheap map lookup.
func (a *PGVectorAdapter) EnsureCollection(ctx context.Context, name string) error {
	if _, ok := a.created.Load(name); ok {
		return nil
	}

	mu := a.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	if _, ok := a.created.Load(name); ok {
		return nil
	}

	table := pgx.Identifier{name}.Sanitize()
	index := pgx.Identifier{name + "_embedding_idx"}.Sanitize()

	ddl := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id bigserial PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			metadata jsonb NOT NULL DEFAULT '{}'
		)`, table, a.dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)`,
			index, table, a.indexLists),
	}
	for _, stmt := range ddl {
		if _, err := a.pool.Exec(ctx, stmt); err != nil {
			return apperr.Integrity(fmt.Sprintf("ensure collection %s", name), err)
		}
	}

	a.created.Store(name, struct{}{})
	a.log.Info("collection %s ready (dim=%d, lists=%d)", name, a.dim, a.indexLists)
	return nil
}

// Insert writes one embedding row with its metadata.
func (a *PGVectorAdapter) Insert(ctx context.Context, collection string, embedding []float32, metadata map[string]any) error {
	if len(embedding) != a.dim {
		return apperr.Validation(fmt.Sprintf(
			"embedding dimension %d does not match collection dimension %d",
			len(embedding), a.dim))
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return apperr.Validation(fmt.Sprintf("unencodable metadata: %v", err))
	}

	table := pgx.Identifier{collection}.Sanitize()
	query := fmt.Sprintf("INSERT INTO %s (embedding, metadata) VALUES ($1, $2)", table)
	if _, err := a.pool.Exec(ctx, query, pgvector.NewVector(embedding), metaJSON); err != nil {
		return apperr.Integrity(fmt.Sprintf("insert into %s", collection), err)
	}
	return nil
}

// Ensure PGVectorAdapter implements out.VectorIndex
var _ out.VectorIndex = (*PGVectorAdapter)(nil)
