package chromem

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	chromemgo "github.com/philippgille/chromem-go"

	errs "github.com/opsmind/opsmind/pkg/errors"
	"github.com/opsmind/opsmind/pkg/log"
	"github.com/opsmind/opsmind/pkg/mem/store"
	"github.com/opsmind/opsmind/pkg/owner"
)

// ErrMissingQueryVector is returned when a search reaches the adapter
// without a query embedding; chromem is a pure vector store.
var ErrMissingQueryVector = errors.New("missing query vector for semantic search")

// metadata keys stored with each document
const (
	metaKind      = "kind"
	metaCreatedAt = "created_at"
)

// ChromemAdapter implements the store.VectorCapableStore interface
// using the embedded chromem-go vector database. Each owner gets its
// own collection, so isolation is structural.
type ChromemAdapter struct {
	db         *chromemgo.DB
	collection string
}

// NewChromemAdapter creates a new adapter on the given chromem DB.
// collection is the prefix for per-owner collection names.
func NewChromemAdapter(db *chromemgo.DB, collection string) (*ChromemAdapter, error) {
	if db == nil {
		return nil, errors.New("chromem DB cannot be nil")
	}
	if collection == "" {
		collection = "memories"
	}

	log.Debug("Initialized chromem store adapter", "collection_prefix", collection)
	return &ChromemAdapter{db: db, collection: collection}, nil
}

// ownerCollection returns the collection holding the owner's records,
// creating it if needed. Records carry their own embeddings, so the
// collection's embedding function is never expected to run.
func (a *ChromemAdapter) ownerCollection(ownerID owner.ID) (*chromemgo.Collection, error) {
	name := fmt.Sprintf("%s-%s", a.collection, ownerID)
	return a.db.GetOrCreateCollection(name, nil, func(_ context.Context, _ string) ([]float32, error) {
		return nil, errors.New("no embedding function configured; records must carry embeddings")
	})
}

// SupportsVectorSearch implements store.VectorCapableStore.
func (a *ChromemAdapter) SupportsVectorSearch() bool {
	return true
}

// RequiresQueryVector implements store.VectorOnlyStore; chromem has no
// lexical index to fall back on.
func (a *ChromemAdapter) RequiresQueryVector() bool {
	return true
}

// Append persists a memory record as a chromem document.
func (a *ChromemAdapter) Append(ctx context.Context, record store.MemoryRecord) (string, error) {
	ownerCtx, ok := owner.GetOwnerContext(ctx)
	if !ok {
		return "", owner.ErrMissingOwnerContext
	}

	if record.OwnerID == "" {
		record.OwnerID = ownerCtx.OwnerID
	} else if record.OwnerID != ownerCtx.OwnerID {
		return "", fmt.Errorf("record owner ID must match context owner ID")
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if len(record.Embedding) == 0 {
		return "", errors.New("record must have an embedding for vector storage")
	}

	collection, err := a.ownerCollection(ownerCtx.OwnerID)
	if err != nil {
		return "", errs.Wrap(errs.ErrStoreUnavailable, "failed to open collection: %v", err)
	}

	metadata := map[string]string{
		metaKind:      record.Kind,
		metaCreatedAt: record.CreatedAt.Format(time.RFC3339Nano),
	}
	for k, v := range record.Metadata {
		metadata[k] = fmt.Sprintf("%v", v)
	}

	doc := chromemgo.Document{
		ID:        record.ID,
		Metadata:  metadata,
		Embedding: record.Embedding,
		Content:   record.Content,
	}

	if err := collection.AddDocument(ctx, doc); err != nil {
		return "", errs.Wrap(errs.ErrStoreUnavailable, "failed to append record: %v", err)
	}

	log.DebugContext(ctx, "Appended record to chromem",
		"record_id", record.ID,
		"owner_id", record.OwnerID,
	)

	return record.ID, nil
}

// Search performs semantic search over the owner's collection.
func (a *ChromemAdapter) Search(ctx context.Context, query store.Query) ([]store.MemoryRecord, error) {
	ownerCtx, ok := owner.GetOwnerContext(ctx)
	if !ok {
		return nil, owner.ErrMissingOwnerContext
	}

	collection, err := a.ownerCollection(ownerCtx.OwnerID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrStoreUnavailable, "failed to open collection: %v", err)
	}

	count := collection.Count()
	if count == 0 {
		return []store.MemoryRecord{}, nil
	}

	if len(query.Embedding) == 0 {
		return nil, ErrMissingQueryVector
	}

	nResults := query.Limit
	if nResults <= 0 || nResults > count {
		nResults = count
	}

	var where map[string]string
	if query.Kind != "" {
		where = map[string]string{metaKind: query.Kind}
	}

	results, err := collection.QueryEmbedding(ctx, query.Embedding, nResults, where, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrStoreUnavailable, "failed to search records: %v", err)
	}

	records := make([]store.MemoryRecord, 0, len(results))
	for _, result := range results {
		records = append(records, resultToRecord(result, ownerCtx.OwnerID))
	}

	// chromem orders by similarity; Rank re-applies the ordering with
	// the recency tiebreak.
	return store.Rank(query, records), nil
}

// Delete removes a record from the owner's collection.
func (a *ChromemAdapter) Delete(ctx context.Context, id string) error {
	ownerCtx, ok := owner.GetOwnerContext(ctx)
	if !ok {
		return owner.ErrMissingOwnerContext
	}

	collection, err := a.ownerCollection(ownerCtx.OwnerID)
	if err != nil {
		return errs.Wrap(errs.ErrStoreUnavailable, "failed to open collection: %v", err)
	}

	if err := collection.Delete(ctx, nil, nil, id); err != nil {
		return errs.Wrap(errs.ErrStoreUnavailable, "failed to delete record: %v", err)
	}

	return nil
}

// resultToRecord converts a chromem query result into a MemoryRecord.
func resultToRecord(result chromemgo.Result, ownerID owner.ID) store.MemoryRecord {
	record := store.MemoryRecord{
		ID:        result.ID,
		OwnerID:   ownerID,
		Content:   result.Content,
		Embedding: result.Embedding,
	}

	if result.Metadata != nil {
		record.Kind = result.Metadata[metaKind]
		if ts, ok := result.Metadata[metaCreatedAt]; ok {
			if createdAt, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				record.CreatedAt = createdAt
			}
		}

		record.Metadata = make(map[string]interface{}, len(result.Metadata))
		for k, v := range result.Metadata {
			if k == metaKind || k == metaCreatedAt {
				continue
			}
			record.Metadata[k] = v
		}
	}

	return record
}
