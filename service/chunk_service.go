package service

import (
	"github.com/docmesh/ingest-be/types"
)

var DefaultChunkServiceConfig = types.ChunkServiceConfig{
	ChunkSize: 1024,
	Overlap:   150,
}

// ChunkService splits page text into overlapping chunks. Boundaries prefer
// semantic breaks: paragraph break, then line break, then space, then a hard
// cut. Splitting is deterministic.
type ChunkService struct {
	chunkSize int
	overlap   int
}

func NewChunkService(config types.ChunkServiceConfig) *ChunkService {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkServiceConfig.ChunkSize
	}
	if config.Overlap < 0 || config.Overlap >= config.ChunkSize {
		config.Overlap = DefaultChunkServiceConfig.Overlap
	}
	return &ChunkService{
		chunkSize: config.ChunkSize,
		overlap:   config.Overlap,
	}
}

// Split breaks text into chunks of at most chunkSize runes. Adjacent chunks
// share the last overlap runes of the previous chunk as leading context.
func (s *ChunkService) Split(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= s.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + s.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		cut := findBreak(runes, start, end)
		chunks = append(chunks, string(runes[start:cut]))

		next := cut - s.overlap
		if next <= start {
			// overlap would stall the scan on a short chunk
			next = cut
		}
		start = next
	}
	return chunks
}

// findBreak picks the cut position in (start, end], preferring the rightmost
// paragraph break, then line break, then space. Without any separator the
// chunk is cut at end.
func findBreak(runes []rune, start, end int) int {
	for i := end; i > start+1; i-- {
		if runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	for i := end; i > start; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := end; i > start; i-- {
		if runes[i-1] == ' ' {
			return i
		}
	}
	return end
}

// PlanBatches groups chunks into embedding-call batches under a token budget.
// Batch capacity is an estimate, not an exact token count; the trade-off
// avoids a full tokenizer pass. Batches are contiguous slices preserving
// input order and are never empty.
func PlanBatches(chunks []string, maxTokensPerBatch, tokensPerChunkEstimate int) [][]string {
	if len(chunks) == 0 {
		return nil
	}
	perBatch := 1
	if tokensPerChunkEstimate > 0 && maxTokensPerBatch/tokensPerChunkEstimate > 1 {
		perBatch = maxTokensPerBatch / tokensPerChunkEstimate
	}
	batches := make([][]string, 0, (len(chunks)+perBatch-1)/perBatch)
	for i := 0; i < len(chunks); i += perBatch {
		end := i + perBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[i:end])
	}
	return batches
}
