package database

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/docmesh/ingest-be/config"
	"github.com/docmesh/ingest-be/types"
)

const (
	shardNum         = 2
	indexNlist       = 1024
	vectorIndexName  = "vector_idx"
	maxTextLength    = 65535
	maxVarCharLength = 512
)

// MilvusStore implements VectorStore on top of a Milvus server.
type MilvusStore struct {
	client client.Client
}

func NewMilvusStore(ctx context.Context, cfg config.MilvusConfig) (*MilvusStore, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}
	return &MilvusStore{client: c}, nil
}

func (s *MilvusStore) Close() error {
	return s.client.Close()
}

// EnsureCollection provisions the collection if it does not exist yet:
// schema, vector index and load into serving memory. A name collision means
// already provisioned; the schema is never altered. There is no cleanup of a
// partially created collection, it has to be dropped manually before retry.
func (s *MilvusStore) EnsureCollection(ctx context.Context, name string) (bool, error) {
	exists, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if exists {
		return false, nil
	}
	log.Printf("Collection %s does not exist, creating", name)

	schema := entity.NewSchema().
		WithName(name).
		WithDescription("Document chunk embeddings with provenance metadata").
		WithField(entity.NewField().WithName("id").WithDataType(entity.FieldTypeInt64).WithIsPrimaryKey(true).WithIsAutoID(true)).
		WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(VectorDim)).
		WithField(entity.NewField().WithName("text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxTextLength)).
		WithField(entity.NewField().WithName("doc_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxVarCharLength)).
		WithField(entity.NewField().WithName("file_name").WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxVarCharLength)).
		WithField(entity.NewField().WithName("page").WithDataType(entity.FieldTypeInt64))

	if err := s.client.CreateCollection(ctx, schema, shardNum, client.WithConsistencyLevel(entity.ClStrong)); err != nil {
		return false, fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	log.Printf("Collection %s created", name)

	idx, err := entity.NewIndexIvfFlat(entity.IP, indexNlist)
	if err != nil {
		return false, fmt.Errorf("failed to build index params: %w", err)
	}
	if err := s.client.CreateIndex(ctx, name, "vector", idx, false, client.WithIndexName(vectorIndexName)); err != nil {
		return false, fmt.Errorf("failed to create index on %s: %w", name, err)
	}
	log.Printf("Index %s created on %s", vectorIndexName, name)

	if err := s.client.LoadCollection(ctx, name, false); err != nil {
		return false, fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	log.Printf("Collection %s loaded into memory", name)

	return true, nil
}

func (s *MilvusStore) ListCollections(ctx context.Context) ([]string, error) {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	names := make([]string, 0, len(collections))
	for _, c := range collections {
		names = append(names, c.Name)
	}
	return names, nil
}

func (s *MilvusStore) InsertRecords(ctx context.Context, collection string, records []types.VectorRecord) error {
	vectors := make([][]float32, 0, len(records))
	texts := make([]string, 0, len(records))
	docIDs := make([]string, 0, len(records))
	fileNames := make([]string, 0, len(records))
	pages := make([]int64, 0, len(records))
	for _, r := range records {
		vectors = append(vectors, r.Vector)
		texts = append(texts, r.Text)
		docIDs = append(docIDs, r.DocID)
		fileNames = append(fileNames, r.FileName)
		pages = append(pages, int64(r.Page))
	}

	_, err := s.client.Insert(ctx, collection, "",
		entity.NewColumnFloatVector("vector", VectorDim, vectors),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("doc_id", docIDs),
		entity.NewColumnVarChar("file_name", fileNames),
		entity.NewColumnInt64("page", pages),
	)
	if err != nil {
		return fmt.Errorf("failed to insert %d records into %s: %w", len(records), collection, err)
	}
	return nil
}

// ListFileIDs pages through the whole collection with a query iterator and
// groups the store-assigned primary keys by file_name.
func (s *MilvusStore) ListFileIDs(ctx context.Context, collection string) (map[string][]int64, error) {
	itr, err := s.client.QueryIterator(ctx, client.NewQueryIteratorOption(collection).
		WithBatchSize(BatchSize).
		WithOutputFields("id", "file_name"))
	if err != nil {
		return nil, fmt.Errorf("failed to open query iterator on %s: %w", collection, err)
	}

	fileIDs := make(map[string][]int64)
	for {
		rs, err := itr.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read query iterator page: %w", err)
		}
		ids, ok := rs.GetColumn("id").(*entity.ColumnInt64)
		if !ok {
			return nil, fmt.Errorf("unexpected type for id column")
		}
		names, ok := rs.GetColumn("file_name").(*entity.ColumnVarChar)
		if !ok {
			return nil, fmt.Errorf("unexpected type for file_name column")
		}
		idData := ids.Data()
		nameData := names.Data()
		for i := range idData {
			if nameData[i] == "" {
				continue
			}
			fileIDs[nameData[i]] = append(fileIDs[nameData[i]], idData[i])
		}
	}
	return fileIDs, nil
}

func (s *MilvusStore) DeleteByIDs(ctx context.Context, collection string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	expr := fmt.Sprintf("id in [%s]", strings.Join(parts, ", "))
	if err := s.client.Delete(ctx, collection, "", expr); err != nil {
		return fmt.Errorf("failed to delete %d records from %s: %w", len(ids), collection, err)
	}
	return nil
}
