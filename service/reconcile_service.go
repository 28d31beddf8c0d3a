package service

import (
	"context"
	"fmt"
	"log"

	"github.com/docmesh/ingest-be/database"
)

// ReconcileService removes stored chunks whose source files are no longer
// wanted. It is a set-difference cleanup, not a merge: desired files missing
// from the store are not created here.
type ReconcileService struct {
	store     database.VectorStore
	batchSize int
}

func NewReconcileService(store database.VectorStore) *ReconcileService {
	return &ReconcileService{store: store, batchSize: database.BatchSize}
}

// Reconcile deletes every stored chunk belonging to a file name that is not in
// desiredFileNames and returns per-file deletion counts. Files with no stored
// chunks are omitted from the result.
func (s *ReconcileService) Reconcile(ctx context.Context, collection string, desiredFileNames []string) (map[string]int, error) {
	stored, err := s.store.ListFileIDs(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored documents in %s: %w", collection, err)
	}

	desired := make(map[string]struct{}, len(desiredFileNames))
	for _, name := range desiredFileNames {
		desired[name] = struct{}{}
	}

	results := make(map[string]int)
	for fileName, ids := range stored {
		if _, keep := desired[fileName]; keep {
			continue
		}
		if len(ids) == 0 {
			continue
		}
		for i := 0; i < len(ids); i += s.batchSize {
			end := i + s.batchSize
			if end > len(ids) {
				end = len(ids)
			}
			if err := s.store.DeleteByIDs(ctx, collection, ids[i:end]); err != nil {
				return nil, fmt.Errorf("failed to delete chunks of %s: %w", fileName, err)
			}
		}
		log.Printf("Removed %d chunks of %s from %s", len(ids), fileName, collection)
		results[fileName] = len(ids)
	}

	if len(results) == 0 {
		log.Println("No files to remove")
	}
	return results, nil
}
