package types

// Page is one unit of extracted document content. PageNumber is 1-based.
type Page struct {
	PageNumber int    `json:"page_number"`
	Content    string `json:"content"`
}

// ExtractionResult is the outcome of extracting a single source file.
type ExtractionResult struct {
	Status   string `json:"status"`
	FileName string `json:"file_name"`
	Pages    []Page `json:"pages"`
}

// ChunkRef ties a text chunk back to the file and page it came from.
type ChunkRef struct {
	FileName string
	Page     int
}

// VectorRecord is a single row written to the vector collection.
type VectorRecord struct {
	Vector   []float32
	Text     string
	DocID    string
	FileName string
	Page     int
}

// IngestSummary reports the result of an ingestion run.
type IngestSummary struct {
	Collection    string `json:"collection"`
	Files         int    `json:"files"`
	Chunks        int    `json:"chunks"`
	Batches       int    `json:"batches"`
	FailedBatches int    `json:"failed_batches"`
}

// ChunkServiceConfig contains configuration options for text chunking
type ChunkServiceConfig struct {
	ChunkSize int // Maximum size for text chunks
	Overlap   int // Size of overlap between chunks
}

// IngestServiceConfig contains configuration options for the ingestion pipeline
type IngestServiceConfig struct {
	InsertBatchSize        int // Records per store insert call
	MaxTokensPerBatch      int // Token budget per embedding call
	TokensPerChunkEstimate int // Estimated tokens per chunk
}
