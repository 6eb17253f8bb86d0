package inmem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	errs "github.com/opsmind/opsmind/pkg/errors"
	"github.com/opsmind/opsmind/pkg/log"
	"github.com/opsmind/opsmind/pkg/mem/store"
	"github.com/opsmind/opsmind/pkg/owner"
)

// InMemStore is an in-memory implementation of the store.Store
// interface. It is the reference implementation of the memory
// contract and doubles as the test double for the other adapters.
type InMemStore struct {
	// records[OwnerID][RecordID] = MemoryRecord
	records map[owner.ID]map[string]store.MemoryRecord

	// mutex guards records; per-owner partitioning means readers of
	// one owner never contend with writers of another for long
	mutex sync.RWMutex
}

// NewInMemStore creates a new instance of the InMemStore.
func NewInMemStore() *InMemStore {
	s := &InMemStore{
		records: make(map[owner.ID]map[string]store.MemoryRecord),
	}

	log.Debug("Initialized in-memory store adapter")
	return s
}

// SupportsVectorSearch implements store.VectorCapableStore. The inmem
// store scores query embeddings directly, so it benefits from them.
func (s *InMemStore) SupportsVectorSearch() bool {
	return true
}

// Append implements the store.Store interface.
func (s *InMemStore) Append(ctx context.Context, record store.MemoryRecord) (string, error) {
	ownerCtx, ok := owner.GetOwnerContext(ctx)
	if !ok {
		log.ErrorContext(ctx, "Missing owner context when appending memory record")
		return "", owner.ErrMissingOwnerContext
	}

	// Fill in the owner ID if not already provided
	if record.OwnerID == "" {
		record.OwnerID = ownerCtx.OwnerID
	} else if record.OwnerID != ownerCtx.OwnerID {
		return "", fmt.Errorf("record owner ID must match context owner ID")
	}

	// Generate a unique ID if not provided
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	if record.Metadata == nil {
		record.Metadata = make(map[string]interface{})
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.records[record.OwnerID]; !exists {
		s.records[record.OwnerID] = make(map[string]store.MemoryRecord)
	}

	s.records[record.OwnerID][record.ID] = record

	log.DebugContext(ctx, "Appended memory record to in-memory store",
		"record_id", record.ID,
		"owner_id", record.OwnerID,
		"kind", record.Kind,
		"content_length", len(record.Content),
	)

	return record.ID, nil
}

// Search implements the store.Store interface.
func (s *InMemStore) Search(ctx context.Context, query store.Query) ([]store.MemoryRecord, error) {
	ownerCtx, ok := owner.GetOwnerContext(ctx)
	if !ok {
		log.ErrorContext(ctx, "Missing owner context when searching memory records")
		return nil, owner.ErrMissingOwnerContext
	}

	s.mutex.RLock()
	ownerRecords, exists := s.records[ownerCtx.OwnerID]
	candidates := make([]store.MemoryRecord, 0, len(ownerRecords))
	if exists {
		for _, record := range ownerRecords {
			if query.Kind != "" && record.Kind != query.Kind {
				continue
			}
			candidates = append(candidates, record)
		}
	}
	s.mutex.RUnlock()

	if len(candidates) == 0 {
		log.DebugContext(ctx, "No records found for owner", "owner_id", ownerCtx.OwnerID)
		return []store.MemoryRecord{}, nil
	}

	results := store.Rank(query, candidates)

	log.DebugContext(ctx, "Searched memory records",
		"owner_id", ownerCtx.OwnerID,
		"candidates", len(candidates),
		"result_count", len(results),
		"limit", query.Limit,
	)

	return results, nil
}

// Delete implements the store.Store interface.
func (s *InMemStore) Delete(ctx context.Context, id string) error {
	ownerCtx, ok := owner.GetOwnerContext(ctx)
	if !ok {
		return owner.ErrMissingOwnerContext
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	ownerRecords, exists := s.records[ownerCtx.OwnerID]
	if !exists {
		return fmt.Errorf("record with ID %s: %w", id, errs.ErrNotFound)
	}

	if _, exists := ownerRecords[id]; !exists {
		return fmt.Errorf("record with ID %s: %w", id, errs.ErrNotFound)
	}

	delete(ownerRecords, id)
	return nil
}
