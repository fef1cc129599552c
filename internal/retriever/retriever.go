// internal/retriever/retriever.go
package retriever

import (
	"context"

	"sms-composer/internal/models"
)

// Retriever ranks catalog items by semantic similarity to a query. It is a
// soft dependency of composition: implementations report failures as empty
// results, never as errors.
type Retriever interface {
	// Available reports whether the retriever can serve queries. Probed at
	// construction, not per call.
	Available() bool
	// Retrieve returns up to topK items from the collection, ranked by
	// descending score. Empty means no match or retrieval failure.
	Retrieve(ctx context.Context, collection models.Category, query string, topK int) models.RetrievalResult
}

type disabled struct{}

// Disabled returns the no-op retriever used when no vector store is
// configured. Composition then always takes the deterministic catalog
// fallback path.
func Disabled() Retriever {
	return disabled{}
}

func (disabled) Available() bool { return false }

func (disabled) Retrieve(context.Context, models.Category, string, int) models.RetrievalResult {
	return nil
}
