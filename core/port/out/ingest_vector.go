package out

import "context"

// Embedder produces a fixed-length embedding for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the per-user vector collection store.
type VectorIndex interface {
	// EnsureCollection creates the collection (id, embedding vector,
	// metadata) and its cosine ANN index when absent. Implementations
	// must serialize concurrent calls for the same name so a brand-new
	// user never ends up with duplicate collections.
	EnsureCollection(ctx context.Context, name string) error

	// Insert writes one embedding row with its metadata. The embedding
	// length must equal the dimension declared at collection creation.
	Insert(ctx context.Context, collection string, embedding []float32, metadata map[string]any) error
}
