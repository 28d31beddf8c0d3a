package database

import (
	"context"
	"errors"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubMilvusClient overrides the calls the collection lifecycle makes; any
// other method panics through the embedded nil interface.
type stubMilvusClient struct {
	client.Client

	collections map[string]bool
	hasErr      error
	creates     int
	indexes     int
	loads       int
	lastSchema  *entity.Schema
}

func (c *stubMilvusClient) HasCollection(_ context.Context, name string) (bool, error) {
	if c.hasErr != nil {
		return false, c.hasErr
	}
	return c.collections[name], nil
}

func (c *stubMilvusClient) CreateCollection(_ context.Context, schema *entity.Schema, _ int32, _ ...client.CreateCollectionOption) error {
	c.collections[schema.CollectionName] = true
	c.lastSchema = schema
	c.creates++
	return nil
}

func (c *stubMilvusClient) CreateIndex(_ context.Context, _, _ string, _ entity.Index, _ bool, _ ...client.IndexOption) error {
	c.indexes++
	return nil
}

func (c *stubMilvusClient) LoadCollection(_ context.Context, _ string, _ bool, _ ...client.LoadCollectionOption) error {
	c.loads++
	return nil
}

func TestEnsureCollectionIdempotent(t *testing.T) {
	stub := &stubMilvusClient{collections: map[string]bool{}}
	store := &MilvusStore{client: stub}

	created, err := store.EnsureCollection(context.Background(), "docs")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, stub.creates)
	assert.Equal(t, 1, stub.indexes)
	assert.Equal(t, 1, stub.loads)

	created, err = store.EnsureCollection(context.Background(), "docs")
	require.NoError(t, err)
	assert.False(t, created, "existing collection reports not-created")
	assert.Equal(t, 1, stub.creates, "existing collection is never re-provisioned")
	assert.Equal(t, 1, stub.indexes)
	assert.Equal(t, 1, stub.loads)
}

func TestEnsureCollectionSchema(t *testing.T) {
	stub := &stubMilvusClient{collections: map[string]bool{}}
	store := &MilvusStore{client: stub}

	_, err := store.EnsureCollection(context.Background(), "docs")
	require.NoError(t, err)
	require.NotNil(t, stub.lastSchema)
	assert.Equal(t, "docs", stub.lastSchema.CollectionName)

	fields := make(map[string]*entity.Field, len(stub.lastSchema.Fields))
	for _, f := range stub.lastSchema.Fields {
		fields[f.Name] = f
	}
	require.Contains(t, fields, "id")
	assert.True(t, fields["id"].PrimaryKey)
	assert.True(t, fields["id"].AutoID)
	require.Contains(t, fields, "vector")
	assert.Equal(t, entity.FieldTypeFloatVector, fields["vector"].DataType)
	assert.Contains(t, fields, "text")
	assert.Contains(t, fields, "doc_id")
	assert.Contains(t, fields, "file_name")
	assert.Contains(t, fields, "page")
}

func TestEnsureCollectionCheckFailure(t *testing.T) {
	stub := &stubMilvusClient{collections: map[string]bool{}, hasErr: errors.New("connection refused")}
	store := &MilvusStore{client: stub}

	_, err := store.EnsureCollection(context.Background(), "docs")
	require.Error(t, err)
	assert.Zero(t, stub.creates)
}
