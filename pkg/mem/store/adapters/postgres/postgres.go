package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	errs "github.com/opsmind/opsmind/pkg/errors"
	"github.com/opsmind/opsmind/pkg/log"
	"github.com/opsmind/opsmind/pkg/mem/store"
	"github.com/opsmind/opsmind/pkg/owner"
)

// PostgresStore implements the store.Store interface using PostgreSQL
// via sqlx. The schema is owned by the golang-migrate files under
// migrations/; see Migrate.
type PostgresStore struct {
	db *sqlx.DB
}

// recordRow is the sqlx row shape for the memory_records table.
type recordRow struct {
	ID        string    `db:"id"`
	OwnerID   string    `db:"owner_id"`
	Kind      string    `db:"kind"`
	Content   string    `db:"content"`
	Metadata  []byte    `db:"metadata"`
	Embedding []byte    `db:"embedding"`
	CreatedAt time.Time `db:"created_at"`
}

// NewPostgresStore creates a new PostgresStore with the given database
// connection.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	log.Debug("Initialized PostgreSQL store adapter")
	return &PostgresStore{db: db}
}

// SupportsVectorSearch implements store.VectorCapableStore. Embeddings
// are stored alongside records and scored in process; SQL-side distance
// ordering is the pgvector adapter's job.
func (s *PostgresStore) SupportsVectorSearch() bool {
	return true
}

// Migrate applies the golang-migrate migrations at sourcePath
// (e.g. "file://migrations") to the connected database.
func Migrate(db *sqlx.DB, sourcePath string) error {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithDatabaseInstance(sourcePath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Info("Applied database migrations", "source", sourcePath)
	return nil
}

// Append persists a memory record to PostgreSQL.
func (s *PostgresStore) Append(ctx context.Context, record store.MemoryRecord) (string, error) {
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
	if record.Metadata == nil {
		record.Metadata = make(map[string]interface{})
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
		`INSERT INTO memory_records (id, owner_id, kind, content, metadata, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, string(record.OwnerID), record.Kind, record.Content,
		metadataJSON, embeddingJSON, record.CreatedAt,
	)
	if err != nil {
		return "", errs.Wrap(errs.ErrStoreUnavailable, "failed to append record: %v", err)
	}

	return record.ID, nil
}

// Search fetches the owner's records and ranks them in process.
func (s *PostgresStore) Search(ctx context.Context, query store.Query) ([]store.MemoryRecord, error) {
	ownerCtx, ok := owner.GetOwnerContext(ctx)
	if !ok {
		return nil, owner.ErrMissingOwnerContext
	}

	sqlQuery := `
		SELECT id, owner_id, kind, content, metadata, embedding, created_at
		FROM memory_records
		WHERE owner_id = $1`
	params := []interface{}{string(ownerCtx.OwnerID)}

	if query.Kind != "" {
		sqlQuery += ` AND kind = $2`
		params = append(params, query.Kind)
	}

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, sqlQuery, params...); err != nil {
		return nil, errs.Wrap(errs.ErrStoreUnavailable, "failed to search records: %v", err)
	}

	if len(rows) == 0 {
		return []store.MemoryRecord{}, nil
	}

	candidates := make([]store.MemoryRecord, 0, len(rows))
	for _, row := range rows {
		record, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, record)
	}

	return store.Rank(query, candidates), nil
}

// Delete removes a memory record, owner-scoped.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	ownerCtx, ok := owner.GetOwnerContext(ctx)
	if !ok {
		return owner.ErrMissingOwnerContext
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM memory_records WHERE id = $1 AND owner_id = $2`,
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

// toRecord converts a database row to a MemoryRecord.
func (r recordRow) toRecord() (store.MemoryRecord, error) {
	record := store.MemoryRecord{
		ID:        r.ID,
		OwnerID:   owner.ID(r.OwnerID),
		Kind:      r.Kind,
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
	}

	if len(r.Metadata) > 0 {
		record.Metadata = make(map[string]interface{})
		if err := json.Unmarshal(r.Metadata, &record.Metadata); err != nil {
			return store.MemoryRecord{}, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	if len(r.Embedding) > 0 {
		if err := json.Unmarshal(r.Embedding, &record.Embedding); err != nil {
			return store.MemoryRecord{}, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
	}

	return record, nil
}
