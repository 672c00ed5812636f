// Command ingest populates the product vector collection from a CSV
// export. It embeds each product description and upserts the vectors
// with the payload fields the retrieval service reads at query time.
// Ingestion is skipped when the collection already holds points.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/qdrant/go-client/qdrant"

	"github.com/shopquery/backend/internal/config"
	"github.com/shopquery/backend/internal/service/retrieval"
)

const upsertBatchSize = 64

type productRow struct {
	name     string
	category string
	price    string
	imgLink  string
	about    string
}

func main() {
	csvPath := flag.String("csv", "data/amazon_products.csv", "path to the product CSV export")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if !cfg.Retrieval.Enabled() {
		log.Fatal("QDRANT_URL is required for ingestion")
	}
	if !cfg.Models.Gemini.Enabled() {
		log.Fatal("GEMINI_TOKEN is required to embed product descriptions")
	}

	ctx := context.Background()

	rows, err := loadProducts(*csvPath)
	if err != nil {
		log.Fatalf("failed to load products: %v", err)
	}
	log.Printf("loaded %d products from %s", len(rows), *csvPath)

	embedder, err := retrieval.NewGeminiEmbedder(ctx, cfg.Models.Gemini.APIKey, cfg.Models.Gemini.EmbedModel)
	if err != nil {
		log.Fatalf("failed to initialize embedder: %v", err)
	}

	client, err := newQdrantClient(cfg.Retrieval)
	if err != nil {
		log.Fatalf("failed to connect to qdrant: %v", err)
	}
	defer client.Close()

	if err := ingest(ctx, client, embedder, cfg.Retrieval.Collection, rows); err != nil {
		log.Fatalf("ingestion failed: %v", err)
	}
}

// loadProducts reads the CSV, drops rows without a name or description,
// and deduplicates on the description text.
func loadProducts(path string) ([]productRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"product_name", "about_product"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("csv is missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	seen := make(map[string]struct{})
	var rows []productRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}

		row := productRow{
			name:     field(record, "product_name"),
			category: field(record, "category"),
			price:    field(record, "actual_price"),
			imgLink:  field(record, "img_link"),
			about:    field(record, "about_product"),
		}
		if row.name == "" || row.about == "" {
			continue
		}
		if _, dup := seen[row.about]; dup {
			continue
		}
		seen[row.about] = struct{}{}
		rows = append(rows, row)
	}
	return rows, nil
}

func newQdrantClient(cfg config.RetrievalConfig) (*qdrant.Client, error) {
	host, port, useTLS, err := retrieval.SplitQdrantURL(cfg.QdrantURL)
	if err != nil {
		return nil, err
	}
	return qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.QdrantAPIKey,
		UseTLS: useTLS,
	})
}

// ingest embeds every product and upserts the vectors in batches. The
// collection is created on first run; a populated collection is left
// untouched.
func ingest(ctx context.Context, client *qdrant.Client, embedder retrieval.Embedder, collection string, rows []productRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("no products to ingest")
	}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		count, err := client.Count(ctx, &qdrant.CountPoints{CollectionName: collection})
		if err != nil {
			return fmt.Errorf("failed to count points: %w", err)
		}
		if count > 0 {
			log.Printf("collection %s already contains %d points, nothing to do", collection, count)
			return nil
		}
	}

	// Embed the first product up front to learn the vector dimension.
	first, err := embedder.Embed(ctx, embeddingText(rows[0]))
	if err != nil {
		return fmt.Errorf("failed to embed first product: %w", err)
	}

	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(len(first)),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		log.Printf("created collection %s (dim=%d)", collection, len(first))
	}

	batch := make([]*qdrant.PointStruct, 0, upsertBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		_, err := client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         batch,
		})
		if err != nil {
			return fmt.Errorf("failed to upsert batch: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for i, row := range rows {
		vector := first
		if i > 0 {
			vector, err = embedder.Embed(ctx, embeddingText(row))
			if err != nil {
				return fmt.Errorf("failed to embed product %d (%s): %w", i, row.name, err)
			}
		}

		batch = append(batch, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(i)),
			Vectors: qdrant.NewVectors(vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"product_name": row.name,
				"category":     row.category,
				"actual_price": row.price,
				"img_link":     row.imgLink,
				"chunk_index":  0,
				"text":         embeddingText(row),
			}),
		})

		if len(batch) == upsertBatchSize {
			if err := flush(); err != nil {
				return err
			}
			log.Printf("ingested %d/%d products", i+1, len(rows))
		}
	}

	if err := flush(); err != nil {
		return err
	}
	log.Printf("%d products stored in collection %s", len(rows), collection)
	return nil
}

// embeddingText enriches the raw description with the product name, the
// same text that is stored as the retrieval chunk.
func embeddingText(row productRow) string {
	return row.name + " - " + row.about
}
