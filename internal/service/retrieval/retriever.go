// Package retrieval exposes the semantic product index as a collaborator
// interface: a query string in, ranked items out. Ranking belongs here;
// downstream consumers never re-sort.
package retrieval

import (
	"context"

	"github.com/shopquery/backend/internal/model/product"
)

// DefaultTopK is the number of product matches fetched per question.
const DefaultTopK = 5

// Retriever finds the products most similar to a natural-language query.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]product.RetrievedItem, error)
}

// Embedder turns text into the vector space of the product index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
