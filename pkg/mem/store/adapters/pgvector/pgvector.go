package pgvector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	errs "github.com/opsmind/opsmind/pkg/errors"
	"github.com/opsmind/opsmind/pkg/log"
	"github.com/opsmind/opsmind/pkg/mem/store"
	"github.com/opsmind/opsmind/pkg/owner"
)

var (
	// ErrMissingEmbedding is returned when a record is appended without a vector
	ErrMissingEmbedding = errors.New("record must have an embedding for vector storage")

	// ErrPgvectorUnavailable is returned when the pgvector client is unavailable
	ErrPgvectorUnavailable = errors.New("pgvector client unavailable")
)

// PgvectorAdapter implements the store.VectorCapableStore interface
// using PostgreSQL with the pgvector extension. Ranking is done in SQL:
// distance ordering with a recency tiebreak.
type PgvectorAdapter struct {
	db             *pgxpool.Pool
	tableName      string
	dimensionSize  int
	distanceMetric string
}

// Config contains the configuration for a Pgvector adapter.
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// TableName is the name of the table to use
	TableName string

	// DimensionSize is the size of vector embeddings
	DimensionSize int

	// DistanceMetric is the distance metric to use (cosine, euclidean, dot)
	DistanceMetric string
}

// NewPgvectorAdapter creates a new adapter for PostgreSQL with pgvector.
func NewPgvectorAdapter(ctx context.Context, config Config) (*PgvectorAdapter, error) {
	if config.ConnectionString == "" {
		return nil, errors.New("connection string cannot be empty")
	}

	if config.TableName == "" {
		config.TableName = "memory_vectors"
	}
	if config.DimensionSize <= 0 {
		config.DimensionSize = 1536
	}

	if config.DistanceMetric == "" {
		config.DistanceMetric = "cosine"
	} else {
		config.DistanceMetric = strings.ToLower(config.DistanceMetric)
		if config.DistanceMetric != "cosine" && config.DistanceMetric != "euclidean" && config.DistanceMetric != "dot" {
			return nil, fmt.Errorf("unsupported distance metric: %s (must be cosine, euclidean, or dot)", config.DistanceMetric)
		}
	}

	db, err := pgxpool.New(ctx, config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	adapter := &PgvectorAdapter{
		db:             db,
		tableName:      config.TableName,
		dimensionSize:  config.DimensionSize,
		distanceMetric: config.DistanceMetric,
	}

	if err := adapter.initializeTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize pgvector table: %w", err)
	}

	return adapter, nil
}

// initializeTable creates the table and indices for vector storage if
// they don't exist.
func (a *PgvectorAdapter) initializeTable(ctx context.Context) error {
	var extensionExists bool
	err := a.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&extensionExists)
	if err != nil {
		return fmt.Errorf("failed to check for pgvector extension: %w", err)
	}

	if !extensionExists {
		_, err = a.db.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
		if err != nil {
			return fmt.Errorf("failed to create pgvector extension: %w", err)
		}
		log.Info("Created pgvector extension")
	}

	_, err = a.db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL
		)
	`, a.tableName, a.dimensionSize))
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	var vectorOps string
	switch a.distanceMetric {
	case "cosine":
		vectorOps = "vector_cosine_ops"
	case "euclidean":
		vectorOps = "vector_l2_ops"
	case "dot":
		vectorOps = "vector_ip_ops"
	}

	indices := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_owner_id_idx ON %s (owner_id)", a.tableName, a.tableName),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_created_at_idx ON %s (created_at)", a.tableName, a.tableName),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING ivfflat (embedding %s) WITH (lists = 100)", a.tableName, a.tableName, vectorOps),
	}

	for _, idx := range indices {
		if _, err := a.db.Exec(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Close closes the database connection pool.
func (a *PgvectorAdapter) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// SupportsVectorSearch implements store.VectorCapableStore.
func (a *PgvectorAdapter) SupportsVectorSearch() bool {
	return true
}

// Append persists a memory record with its vector embedding.
func (a *PgvectorAdapter) Append(ctx context.Context, record store.MemoryRecord) (string, error) {
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
	if record.Metadata == nil {
		record.Metadata = make(map[string]interface{})
	}

	if len(record.Embedding) == 0 {
		return "", ErrMissingEmbedding
	}
	if len(record.Embedding) != a.dimensionSize {
		return "", fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(record.Embedding), a.dimensionSize)
	}

	embeddingStr := embedToString(record.Embedding)

	_, err := a.db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, kind, content, metadata, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::vector, $7)
	`, a.tableName),
		record.ID,
		string(record.OwnerID),
		record.Kind,
		record.Content,
		record.Metadata,
		embeddingStr,
		record.CreatedAt,
	)
	if err != nil {
		return "", errs.Wrap(errs.ErrStoreUnavailable, "failed to append record: %v", err)
	}

	log.Debug("Appended record to pgvector",
		"id", record.ID,
		"owner_id", record.OwnerID,
		"table", a.tableName)

	return record.ID, nil
}

// Search fetches the owner's records ranked by vector distance when a
// query embedding is present, falling back to recency-ordered ILIKE
// matching otherwise.
func (a *PgvectorAdapter) Search(ctx context.Context, query store.Query) ([]store.MemoryRecord, error) {
	if a.db == nil {
		return nil, ErrPgvectorUnavailable
	}

	ownerCtx, ok := owner.GetOwnerContext(ctx)
	if !ok {
		return nil, owner.ErrMissingOwnerContext
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}

	var rows pgx.Rows
	var err error

	if len(query.Embedding) > 0 {
		if len(query.Embedding) != a.dimensionSize {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(query.Embedding), a.dimensionSize)
		}

		var distanceExpr string
		switch a.distanceMetric {
		case "cosine":
			distanceExpr = "embedding <=> $2"
		case "euclidean":
			distanceExpr = "embedding <-> $2"
		case "dot":
			distanceExpr = "embedding <#> $2"
		}

		args := []interface{}{string(ownerCtx.OwnerID), embedToString(query.Embedding)}
		kindClause := ""
		if query.Kind != "" {
			kindClause = " AND kind = $3"
			args = append(args, query.Kind)
		}

		sqlQuery := fmt.Sprintf(`
			SELECT id, owner_id, kind, content, metadata, embedding::text, created_at
			FROM %s
			WHERE owner_id = $1%s
			ORDER BY %s ASC, created_at DESC
			LIMIT %d
		`, a.tableName, kindClause, distanceExpr, limit)

		rows, err = a.db.Query(ctx, sqlQuery, args...)
	} else {
		args := []interface{}{string(ownerCtx.OwnerID)}
		textClause := ""
		if query.Text != "" {
			textClause = " AND content ILIKE $2"
			args = append(args, "%"+query.Text+"%")
		}
		kindClause := ""
		if query.Kind != "" {
			kindClause = fmt.Sprintf(" AND kind = $%d", len(args)+1)
			args = append(args, query.Kind)
		}

		sqlQuery := fmt.Sprintf(`
			SELECT id, owner_id, kind, content, metadata, embedding::text, created_at
			FROM %s
			WHERE owner_id = $1%s%s
			ORDER BY created_at DESC
			LIMIT %d
		`, a.tableName, textClause, kindClause, limit)

		rows, err = a.db.Query(ctx, sqlQuery, args...)
	}

	if err != nil {
		return nil, errs.Wrap(errs.ErrStoreUnavailable, "failed to search records: %v", err)
	}
	defer rows.Close()

	records := []store.MemoryRecord{}
	for rows.Next() {
		var record store.MemoryRecord
		var ownerIDStr, embeddingStr string
		var metadata map[string]interface{}

		err := rows.Scan(
			&record.ID,
			&ownerIDStr,
			&record.Kind,
			&record.Content,
			&metadata,
			&embeddingStr,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		record.OwnerID = owner.ID(ownerIDStr)
		record.Metadata = metadata
		record.Embedding = stringToEmbed(embeddingStr)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	log.Debug("PgVector search complete",
		"owner_id", ownerCtx.OwnerID,
		"records_found", len(records))

	return records, nil
}

// Delete removes a memory record, owner-scoped.
func (a *PgvectorAdapter) Delete(ctx context.Context, id string) error {
	ownerCtx, ok := owner.GetOwnerContext(ctx)
	if !ok {
		return owner.ErrMissingOwnerContext
	}

	tag, err := a.db.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND owner_id = $2", a.tableName),
		id, string(ownerCtx.OwnerID),
	)
	if err != nil {
		return errs.Wrap(errs.ErrStoreUnavailable, "failed to delete record: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record with ID %s belongs to another owner or does not exist: %w", id, errs.ErrNotFound)
	}

	return nil
}

// embedToString converts a []float32 to the pgvector literal format.
func embedToString(embedding []float32) string {
	elements := make([]string, len(embedding))
	for i, v := range embedding {
		elements[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(elements, ",") + "]"
}

// stringToEmbed converts a pgvector literal back to []float32.
func stringToEmbed(embeddingStr string) []float32 {
	embeddingStr = strings.TrimPrefix(embeddingStr, "[")
	embeddingStr = strings.TrimSuffix(embeddingStr, "]")
	if embeddingStr == "" {
		return nil
	}

	elements := strings.Split(embeddingStr, ",")
	embedding := make([]float32, 0, len(elements))
	for _, e := range elements {
		v, err := strconv.ParseFloat(strings.TrimSpace(e), 32)
		if err != nil {
			continue
		}
		embedding = append(embedding, float32(v))
	}
	return embedding
}
