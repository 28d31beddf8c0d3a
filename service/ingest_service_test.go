package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docmesh/ingest-be/types"
)

// fakeVectorStore is an in-memory VectorStore used across service tests.
type fakeVectorStore struct {
	existing    map[string]bool
	ensureCalls int
	insertCalls [][]types.VectorRecord
	failInserts map[int]bool // insert call index -> fail
	fileIDs     map[string][]int64
	deleteCalls [][]int64
	listErr     error
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		existing:    make(map[string]bool),
		failInserts: make(map[int]bool),
		fileIDs:     make(map[string][]int64),
	}
}

func (s *fakeVectorStore) EnsureCollection(_ context.Context, name string) (bool, error) {
	s.ensureCalls++
	if s.existing[name] {
		return false, nil
	}
	s.existing[name] = true
	return true, nil
}

func (s *fakeVectorStore) ListCollections(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(s.existing))
	for name := range s.existing {
		names = append(names, name)
	}
	return names, nil
}

func (s *fakeVectorStore) InsertRecords(_ context.Context, _ string, records []types.VectorRecord) error {
	idx := len(s.insertCalls)
	s.insertCalls = append(s.insertCalls, records)
	if s.failInserts[idx] {
		return errors.New("insert failed")
	}
	return nil
}

func (s *fakeVectorStore) ListFileIDs(_ context.Context, _ string) (map[string][]int64, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make(map[string][]int64, len(s.fileIDs))
	for name, ids := range s.fileIDs {
		out[name] = append([]int64(nil), ids...)
	}
	return out, nil
}

func (s *fakeVectorStore) DeleteByIDs(_ context.Context, _ string, ids []int64) error {
	s.deleteCalls = append(s.deleteCalls, append([]int64(nil), ids...))
	return nil
}

// fakeEmbedder returns one small vector per input text.
type fakeEmbedder struct {
	calls int
	err   error
}

func (e *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1, 2}
	}
	return vectors, nil
}

func makeChunks(n int) ([]string, []types.ChunkRef) {
	chunks := make([]string, n)
	refs := make([]types.ChunkRef, n)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk número %d", i)
		refs[i] = types.ChunkRef{FileName: "doc.pdf", Page: i/10 + 1}
	}
	return chunks, refs
}

func newTestIngestService(store *fakeVectorStore, embedder Embedder) *IngestService {
	return NewIngestService(nil, NewChunkService(DefaultChunkServiceConfig), embedder, store, DefaultIngestServiceConfig)
}

func TestInsertChunksFlushesInFixedBatches(t *testing.T) {
	store := newFakeVectorStore()
	svc := newTestIngestService(store, &fakeEmbedder{})
	chunks, refs := makeChunks(1200)

	flushed, failed, err := svc.insertChunks(context.Background(), "docs", chunks, refs)
	require.NoError(t, err)
	assert.Equal(t, 3, flushed)
	assert.Zero(t, failed)

	require.Len(t, store.insertCalls, 3)
	assert.Len(t, store.insertCalls[0], 500)
	assert.Len(t, store.insertCalls[1], 500)
	assert.Len(t, store.insertCalls[2], 200)

	// record order follows chunk order
	assert.Equal(t, "chunk número 0", store.insertCalls[0][0].Text)
	assert.Equal(t, "chunk número 1199", store.insertCalls[2][199].Text)
	assert.Equal(t, 1, store.insertCalls[0][0].Page)
	assert.Equal(t, "doc.pdf", store.insertCalls[0][0].FileName)
}

func TestInsertChunksDocIDFormat(t *testing.T) {
	store := newFakeVectorStore()
	svc := newTestIngestService(store, &fakeEmbedder{})
	chunks, refs := makeChunks(3)

	_, _, err := svc.insertChunks(context.Background(), "docs", chunks, refs)
	require.NoError(t, err)
	require.Len(t, store.insertCalls, 1)

	for i, rec := range store.insertCalls[0] {
		assert.Equal(t, GenerateDocID(chunks[i])+"-"+fmt.Sprint(i), rec.DocID)
	}
}

func TestInsertChunksMidBatchFailureContinues(t *testing.T) {
	store := newFakeVectorStore()
	store.failInserts[0] = true
	svc := newTestIngestService(store, &fakeEmbedder{})
	chunks, refs := makeChunks(1200)

	flushed, failed, err := svc.insertChunks(context.Background(), "docs", chunks, refs)
	require.NoError(t, err, "a non-final batch failure must not abort the run")
	assert.Equal(t, 2, flushed)
	assert.Equal(t, 1, failed)
	assert.Len(t, store.insertCalls, 3)
}

func TestInsertChunksFinalBatchFailureEscalates(t *testing.T) {
	store := newFakeVectorStore()
	store.failInserts[2] = true // the final partial batch
	svc := newTestIngestService(store, &fakeEmbedder{})
	chunks, refs := makeChunks(1200)

	_, failed, err := svc.insertChunks(context.Background(), "docs", chunks, refs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "final batch")
	assert.Equal(t, 1, failed)
}

func TestInsertChunksEmbeddingFailureIsFatal(t *testing.T) {
	store := newFakeVectorStore()
	svc := newTestIngestService(store, &fakeEmbedder{err: errors.New("rate limit")})
	chunks, refs := makeChunks(10)

	_, _, err := svc.insertChunks(context.Background(), "docs", chunks, refs)
	require.Error(t, err)
	assert.Empty(t, store.insertCalls)
}

func TestInsertChunksProvenanceMismatch(t *testing.T) {
	svc := newTestIngestService(newFakeVectorStore(), &fakeEmbedder{})

	_, _, err := svc.insertChunks(context.Background(), "docs", []string{"a", "b"}, []types.ChunkRef{{}})
	require.Error(t, err)
}

func TestIngestFilesEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manual.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("procedimento de manutenção ", 200)), 0644))

	store := newFakeVectorStore()
	embedder := &fakeEmbedder{}
	extract := NewExtractService(NewMistralOCRClient(""), NewVisionOCRService("", "", ""))
	svc := NewIngestService(extract, NewChunkService(DefaultChunkServiceConfig), embedder, store, DefaultIngestServiceConfig)

	summary, err := svc.IngestFiles(context.Background(), "manuals", []string{path})
	require.NoError(t, err)
	assert.Equal(t, "manuals", summary.Collection)
	assert.Equal(t, 1, summary.Files)
	assert.Greater(t, summary.Chunks, 1)
	assert.Zero(t, summary.FailedBatches)
	assert.Equal(t, 1, store.ensureCalls)
	require.NotEmpty(t, store.insertCalls)
	assert.Equal(t, "manual.txt", store.insertCalls[0][0].FileName)
	assert.Equal(t, 1, store.insertCalls[0][0].Page)
}

func TestIngestFilesZeroChunksSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vazio.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n\t  "), 0644))

	store := newFakeVectorStore()
	extract := NewExtractService(NewMistralOCRClient(""), NewVisionOCRService("", "", ""))
	svc := NewIngestService(extract, NewChunkService(DefaultChunkServiceConfig), &fakeEmbedder{}, store, DefaultIngestServiceConfig)

	summary, err := svc.IngestFiles(context.Background(), "manuals", []string{path})
	require.NoError(t, err)
	assert.Zero(t, summary.Chunks)
	assert.Empty(t, store.insertCalls)
}

func TestIngestFilesExtractionFailureIsFatal(t *testing.T) {
	store := newFakeVectorStore()
	extract := NewExtractService(NewMistralOCRClient(""), NewVisionOCRService("", "", ""))
	svc := NewIngestService(extract, NewChunkService(DefaultChunkServiceConfig), &fakeEmbedder{}, store, DefaultIngestServiceConfig)

	_, err := svc.IngestFiles(context.Background(), "manuals", []string{filepath.Join(t.TempDir(), "missing.pdf")})
	require.Error(t, err)
}

func TestGenerateDocIDStableAcrossWhitespace(t *testing.T) {
	a := GenerateDocID("um  dois\n tres")
	b := GenerateDocID("um dois tres")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}
