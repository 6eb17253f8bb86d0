package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	errs "github.com/opsmind/opsmind/pkg/errors"
	"github.com/opsmind/opsmind/pkg/log"
	"github.com/opsmind/opsmind/pkg/mem/store"
	"github.com/opsmind/opsmind/pkg/owner"
)

// ownersBucket is the top-level bucket holding one nested bucket per owner.
const ownersBucket = "owners"

// BoltStore implements the store.Store interface using a BoltDB database.
// Each owner gets a dedicated nested bucket, so isolation is structural
// rather than a query-time filter.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltStore with the given database connection.
func NewBoltStore(db *bolt.DB) *BoltStore {
	s := &BoltStore{db: db}

	log.Debug("Initialized BoltDB store adapter",
		"db_path", db.Path(),
		"read_only", db.IsReadOnly(),
	)

	return s
}

// Initialize creates the required buckets if they don't exist.
// This is called internally by Append, but can be called explicitly to
// ensure buckets are created at startup.
func (b *BoltStore) Initialize(ctx context.Context) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(ownersBucket))
		return err
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize BoltDB buckets", "error", err)
		return errs.Wrap(errs.ErrStoreUnavailable, "failed to initialize buckets: %v", err)
	}
	return nil
}

// getOwnerBucket gets or creates a bucket for the specified owner.
func (b *BoltStore) getOwnerBucket(tx *bolt.Tx, ownerID owner.ID) (*bolt.Bucket, error) {
	owners, err := tx.CreateBucketIfNotExists([]byte(ownersBucket))
	if err != nil {
		return nil, fmt.Errorf("failed to create owners bucket: %w", err)
	}

	ownerBucket, err := owners.CreateBucketIfNotExists([]byte(ownerID))
	if err != nil {
		return nil, fmt.Errorf("failed to create owner bucket for %s: %w", ownerID, err)
	}

	return ownerBucket, nil
}

// Append persists a memory record to the BoltDB database.
func (b *BoltStore) Append(ctx context.Context, record store.MemoryRecord) (string, error) {
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
		record.CreatedAt = time.Now().UTC()
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		ownerBucket, err := b.getOwnerBucket(tx, ownerCtx.OwnerID)
		if err != nil {
			return err
		}

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		return ownerBucket.Put([]byte(record.ID), data)
	})
	if err != nil {
		return "", errs.Wrap(errs.ErrStoreUnavailable, "failed to append record: %v", err)
	}

	return record.ID, nil
}

// Search fetches the owner's records from its bucket and ranks them.
func (b *BoltStore) Search(ctx context.Context, query store.Query) ([]store.MemoryRecord, error) {
	ownerCtx, ok := owner.GetOwnerContext(ctx)
	if !ok {
		return nil, owner.ErrMissingOwnerContext
	}

	var candidates []store.MemoryRecord

	err := b.db.View(func(tx *bolt.Tx) error {
		owners := tx.Bucket([]byte(ownersBucket))
		if owners == nil {
			return nil
		}
		ownerBucket := owners.Bucket([]byte(ownerCtx.OwnerID))
		if ownerBucket == nil {
			return nil
		}

		return ownerBucket.ForEach(func(k, v []byte) error {
			var record store.MemoryRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to unmarshal record %s: %w", k, err)
			}
			if query.Kind != "" && record.Kind != query.Kind {
				return nil
			}
			candidates = append(candidates, record)
			return nil
		})
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrStoreUnavailable, "failed to search records: %v", err)
	}

	if len(candidates) == 0 {
		return []store.MemoryRecord{}, nil
	}

	return store.Rank(query, candidates), nil
}

// Delete removes a memory record from the owner's bucket.
func (b *BoltStore) Delete(ctx context.Context, id string) error {
	ownerCtx, ok := owner.GetOwnerContext(ctx)
	if !ok {
		return owner.ErrMissingOwnerContext
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		owners := tx.Bucket([]byte(ownersBucket))
		if owners == nil {
			return errs.ErrNotFound
		}
		ownerBucket := owners.Bucket([]byte(ownerCtx.OwnerID))
		if ownerBucket == nil {
			return errs.ErrNotFound
		}
		if ownerBucket.Get([]byte(id)) == nil {
			return errs.ErrNotFound
		}
		return ownerBucket.Delete([]byte(id))
	})
	if err != nil {
		if errs.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("record with ID %s: %w", id, errs.ErrNotFound)
		}
		return errs.Wrap(errs.ErrStoreUnavailable, "failed to delete record: %v", err)
	}

	return nil
}
