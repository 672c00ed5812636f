package product

// RetrievedItem is one ranked hit from the semantic product index.
// Items are produced fresh per request and never persisted.
type RetrievedItem struct {
	Name       string `json:"product_name"`
	Category   string `json:"category"`
	Price      string `json:"actual_price"`
	ImageLink  string `json:"img_link"`
	Chunk      string `json:"description_chunk"`
	ChunkIndex int    `json:"chunk_index"`
}
