package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/docmesh/ingest-be/database"
	"github.com/docmesh/ingest-be/types"
)

var DefaultIngestServiceConfig = types.IngestServiceConfig{
	InsertBatchSize:        database.BatchSize,
	MaxTokensPerBatch:      600000,
	TokensPerChunkEstimate: 1024,
}

// IngestService drives the full pipeline: extract, chunk, plan, embed, insert.
// Files are processed one at a time in input order; batches are flushed one at
// a time, so stored record order follows document and page order.
type IngestService struct {
	extractService *ExtractService
	chunkService   *ChunkService
	embedder       Embedder
	store          database.VectorStore

	insertBatchSize        int
	maxTokensPerBatch      int
	tokensPerChunkEstimate int
}

func NewIngestService(
	extractService *ExtractService,
	chunkService *ChunkService,
	embedder Embedder,
	store database.VectorStore,
	config types.IngestServiceConfig,
) *IngestService {
	if config.InsertBatchSize <= 0 {
		config.InsertBatchSize = DefaultIngestServiceConfig.InsertBatchSize
	}
	if config.MaxTokensPerBatch <= 0 {
		config.MaxTokensPerBatch = DefaultIngestServiceConfig.MaxTokensPerBatch
	}
	if config.TokensPerChunkEstimate <= 0 {
		config.TokensPerChunkEstimate = DefaultIngestServiceConfig.TokensPerChunkEstimate
	}
	return &IngestService{
		extractService:         extractService,
		chunkService:           chunkService,
		embedder:               embedder,
		store:                  store,
		insertBatchSize:        config.InsertBatchSize,
		maxTokensPerBatch:      config.MaxTokensPerBatch,
		tokensPerChunkEstimate: config.TokensPerChunkEstimate,
	}
}

// IngestFiles provisions the collection, extracts and chunks every file, then
// embeds and inserts the chunks. Extraction failure of any file is fatal for
// the run; a document producing zero chunks is skipped.
func (s *IngestService) IngestFiles(ctx context.Context, collection string, paths []string) (*types.IngestSummary, error) {
	created, err := s.store.EnsureCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare collection %s: %w", collection, err)
	}
	if created {
		log.Printf("Provisioned collection %s", collection)
	}

	var (
		chunks []string
		refs   []types.ChunkRef
	)
	for _, path := range paths {
		result, err := s.extractService.ProcessFile(ctx, path)
		if err != nil {
			return nil, err
		}
		for _, page := range result.Pages {
			pageChunks := s.chunkService.Split(page.Content)
			if len(pageChunks) == 0 {
				log.Printf("Warning: no chunks produced for %s page %d, skipping", result.FileName, page.PageNumber)
				continue
			}
			chunks = append(chunks, pageChunks...)
			for range pageChunks {
				refs = append(refs, types.ChunkRef{FileName: result.FileName, Page: page.PageNumber})
			}
		}
	}

	flushed, failed, err := s.insertChunks(ctx, collection, chunks, refs)
	if err != nil {
		return nil, err
	}
	return &types.IngestSummary{
		Collection:    collection,
		Files:         len(paths),
		Chunks:        len(chunks),
		Batches:       flushed,
		FailedBatches: failed,
	}, nil
}

// insertChunks embeds chunks batch by batch and flushes records to the store
// in fixed-size insert batches. A failed flush is counted and logged but does
// not stop the run; only the final flush escalates, since it is the last
// chance to report the failure.
func (s *IngestService) insertChunks(ctx context.Context, collection string, chunks []string, refs []types.ChunkRef) (flushed, failed int, err error) {
	if len(chunks) != len(refs) {
		return 0, 0, fmt.Errorf("chunk/provenance mismatch: %d chunks, %d refs", len(chunks), len(refs))
	}

	var pending []types.VectorRecord
	chunkCounter := 0
	for _, batch := range PlanBatches(chunks, s.maxTokensPerBatch, s.tokensPerChunkEstimate) {
		vectors, err := s.embedder.EmbedTexts(ctx, batch)
		if err != nil {
			return flushed, failed, fmt.Errorf("embedding batch failed: %w", err)
		}
		for idx, chunk := range batch {
			ref := refs[chunkCounter]
			pending = append(pending, types.VectorRecord{
				Vector:   vectors[idx],
				Text:     chunk,
				DocID:    GenerateDocID(chunk) + "-" + strconv.Itoa(idx),
				FileName: ref.FileName,
				Page:     ref.Page,
			})
			chunkCounter++

			if len(pending) >= s.insertBatchSize {
				if err := s.store.InsertRecords(ctx, collection, pending); err != nil {
					log.Printf("Error inserting batch %d: %v", flushed+failed, err)
					failed++
				} else {
					log.Printf("Batch %d inserted", flushed+failed)
					flushed++
				}
				pending = nil
			}
		}
	}

	if len(pending) > 0 {
		if err := s.store.InsertRecords(ctx, collection, pending); err != nil {
			return flushed, failed + 1, fmt.Errorf("final batch insert failed: %w", err)
		}
		flushed++
	}
	return flushed, failed, nil
}

// normalizeText collapses whitespace so that chunk fingerprints are stable
// across formatting differences.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// GenerateDocID fingerprints a chunk by hashing its normalized text. Chunks
// with identical normalized text collide by design: doc_id is a traceability
// tag, not a uniqueness constraint; the store's primary key is the only
// uniqueness guarantee.
func GenerateDocID(text string) string {
	sum := md5.Sum([]byte(normalizeText(text)))
	return hex.EncodeToString(sum[:])
}
