package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	errs "github.com/opsmind/opsmind/pkg/errors"
	"github.com/opsmind/opsmind/pkg/mem/store"
	"github.com/opsmind/opsmind/pkg/owner"
)

// Schema for the memory_records table. Applied by NewSQLiteStore so a
// fresh database file is usable immediately.
const schema = `
CREATE TABLE IF NOT EXISTS memory_records (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT,
	embedding TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memory_records_owner_id ON memory_records(owner_id);
`

// SQLiteStore implements the store.Store interface using a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore with the given database
// connection and ensures the schema exists.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create memory_records table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SupportsVectorSearch implements store.VectorCapableStore. Embeddings
// are stored alongside records and scored in process.
func (s *SQLiteStore) SupportsVectorSearch() bool {
	return true
}

// Append persists a memory record to the SQLite database.
func (s *SQLiteStore) Append(ctx context.Context, record store.MemoryRecord) (string, error) {
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

	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var embeddingJSON []byte
	if len(record.Embedding) > 0 {
		embeddingJSON, err = json.Marshal(record.Embedding)
		if err != nil {
			return "", fmt.Errorf("failed to marshal embedding: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memory_records (
			id, owner_id, kind, content, metadata, embedding, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, string(record.OwnerID), record.Kind, record.Content,
		metadataJSON, embeddingJSON, record.CreatedAt,
	)
	if err != nil {
		return "", errs.Wrap(errs.ErrStoreUnavailable, "failed to append record: %v", err)
	}

	return record.ID, nil
}

// Search fetches the owner's records and ranks them in process.
func (s *SQLiteStore) Search(ctx context.Context, query store.Query) ([]store.MemoryRecord, error) {
	ownerCtx, ok := owner.GetOwnerContext(ctx)
	if !ok {
		return nil, owner.ErrMissingOwnerContext
	}

	sqlQuery := `
		SELECT id, owner_id, kind, content, metadata, embedding, created_at
		FROM memory_records
		WHERE owner_id = ?`
	params := []interface{}{string(ownerCtx.OwnerID)}

	if query.Kind != "" {
		sqlQuery += ` AND kind = ?`
		params = append(params, query.Kind)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, params...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrStoreUnavailable, "failed to search records: %v", err)
	}
	defer rows.Close()

	var records []store.MemoryRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	if len(records) == 0 {
		return []store.MemoryRecord{}, nil
	}

	return store.Rank(query, records), nil
}

// Delete removes a memory record from the SQLite database.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	ownerCtx, ok := owner.GetOwnerContext(ctx)
	if !ok {
		return owner.ErrMissingOwnerContext
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM memory_records WHERE id = ? AND owner_id = ?`,
		id, string(ownerCtx.OwnerID),
	)
	if err != nil {
		return errs.Wrap(errs.ErrStoreUnavailable, "failed to delete record: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("record with ID %s belongs to another owner or does not exist: %w", id, errs.ErrNotFound)
	}

	return nil
}

// scanRecord decodes one row into a MemoryRecord.
func scanRecord(rows *sql.Rows) (store.MemoryRecord, error) {
	var record store.MemoryRecord
	var ownerIDStr string
	var metadataJSON, embeddingJSON []byte

	err := rows.Scan(
		&record.ID,
		&ownerIDStr,
		&record.Kind,
		&record.Content,
		&metadataJSON,
		&embeddingJSON,
		&record.CreatedAt,
	)
	if err != nil {
		return store.MemoryRecord{}, fmt.Errorf("failed to scan record: %w", err)
	}

	record.OwnerID = owner.ID(ownerIDStr)

	if len(metadataJSON) > 0 {
		record.Metadata = make(map[string]interface{})
		if err := json.Unmarshal(metadataJSON, &record.Metadata); err != nil {
			return store.MemoryRecord{}, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	if len(embeddingJSON) > 0 {
		if err := json.Unmarshal(embeddingJSON, &record.Embedding); err != nil {
			return store.MemoryRecord{}, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
	}

	return record, nil
}
