package retrieval

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/shopquery/backend/internal/model/product"
)

// QdrantConfig holds connection settings for the product index.
type QdrantConfig struct {
	// URL is the Qdrant server address (e.g. "https://example.qdrant.io:6334").
	URL string

	// Collection is the product collection to search.
	Collection string

	// APIKey is the optional API key.
	APIKey string
}

// QdrantRetriever implements Retriever over a Qdrant collection populated
// by the offline ingestion command.
type QdrantRetriever struct {
	client     *qdrant.Client
	collection string
	embedder   Embedder
}

// NewQdrantRetriever connects to Qdrant and wires the embedder used for
// query vectors.
func NewQdrantRetriever(cfg QdrantConfig, embedder Embedder) (*QdrantRetriever, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}

	host, port, useTLS, err := SplitQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantRetriever{
		client:     client,
		collection: cfg.Collection,
		embedder:   embedder,
	}, nil
}

// Search implements Retriever. Results come back in Qdrant's score order.
func (r *QdrantRetriever) Search(ctx context.Context, query string, topK int) ([]product.RetrievedItem, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	limit := uint64(topK)
	points, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: r.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	items := make([]product.RetrievedItem, 0, len(points))
	for _, point := range points {
		items = append(items, itemFromPayload(point.Payload))
	}
	return items, nil
}

// Close releases the underlying gRPC connection.
func (r *QdrantRetriever) Close() error {
	return r.client.Close()
}

// itemFromPayload maps the stored payload fields onto a RetrievedItem.
func itemFromPayload(payload map[string]*qdrant.Value) product.RetrievedItem {
	item := product.RetrievedItem{}
	for key, value := range payload {
		switch key {
		case "product_name":
			item.Name = value.GetStringValue()
		case "category":
			item.Category = value.GetStringValue()
		case "actual_price":
			item.Price = value.GetStringValue()
		case "img_link":
			item.ImageLink = value.GetStringValue()
		case "chunk_index":
			item.ChunkIndex = int(value.GetIntegerValue())
		case "text":
			item.Chunk = value.GetStringValue()
		}
	}
	return item
}

// SplitQdrantURL extracts host, port, and TLS mode; the scheme defaults to
// https and the port to Qdrant's gRPC default.
func SplitQdrantURL(raw string) (string, int, bool, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = p
	}

	return u.Hostname(), port, u.Scheme == "https", nil
}
