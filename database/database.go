package database

import (
	"context"

	"github.com/docmesh/ingest-be/types"
)

const (
	// VectorDim is the dimensionality of embedding vectors, fixed at provisioning time.
	VectorDim = 3072
	// BatchSize is used for insert flushes, cursor pagination and delete batches.
	BatchSize = 500
)

// VectorStore defines the interface for vector collection operations
type VectorStore interface {
	// Collection lifecycle. EnsureCollection returns true when the collection
	// was created from scratch, false when it already existed.
	EnsureCollection(ctx context.Context, name string) (bool, error)
	ListCollections(ctx context.Context) ([]string, error)

	// Record operations
	InsertRecords(ctx context.Context, collection string, records []types.VectorRecord) error

	// ListFileIDs scans the whole collection and groups store-assigned
	// primary keys by file_name.
	ListFileIDs(ctx context.Context, collection string) (map[string][]int64, error)
	DeleteByIDs(ctx context.Context, collection string, ids []int64) error
}
