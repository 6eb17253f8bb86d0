package store

import (
	"context"
	"time"

	"github.com/opsmind/opsmind/pkg/owner"
)

// Memory kinds used by the assistant pipeline. Kind is a free-form tag;
// these are the two values the orchestrator writes.
const (
	KindUserRequest       = "user_request"
	KindGeneratedResponse = "generated_response"
)

// MemoryRecord represents a single memory entry.
// Records are immutable once appended; they are removed only by an
// explicit owner Delete.
type MemoryRecord struct {
	// ID is a unique identifier for the record, generated on append
	ID string

	// OwnerID is the owner that this memory belongs to; retrieval for
	// one owner never returns records of another
	OwnerID owner.ID

	// Kind tags the record, e.g. "user_request" or "generated_response"
	Kind string

	// Content is the actual memory content (text)
	Content string

	// Metadata is additional structured data about this memory
	Metadata map[string]interface{}

	// Embedding is the vector representation for semantic search
	// (empty for purely lexical stores)
	Embedding []float32

	// CreatedAt is when this memory was stored
	CreatedAt time.Time
}

// Query represents a request to retrieve memories.
type Query struct {
	// Text is the query text, scored against record content
	Text string

	// Embedding is the query vector for semantic search, when available
	Embedding []float32

	// Kind restricts results to records with this kind (empty matches all)
	Kind string

	// Limit is the maximum number of results to return
	Limit int
}

// Store is the interface that all memory store adapters must implement.
type Store interface {
	// Append persists a new immutable memory record and returns its ID.
	// The record is durable before Append returns. Owner isolation is
	// enforced via the owner.Context carried in ctx.
	Append(ctx context.Context, record MemoryRecord) (string, error)

	// Search returns the records of the context owner ranked by
	// similarity to the query: descending score, ties broken by
	// recency. It returns an empty slice, never an error, when the
	// owner has no matching records.
	Search(ctx context.Context, query Query) ([]MemoryRecord, error)

	// Delete removes a record by ID. It enforces owner isolation,
	// refusing to delete records of other owners.
	Delete(ctx context.Context, id string) error
}

// VectorCapableStore extends Store for adapters that can perform
// vector-based semantic search.
type VectorCapableStore interface {
	Store

	// SupportsVectorSearch indicates that this store uses query
	// embeddings when present.
	SupportsVectorSearch() bool
}

// VectorOnlyStore marks adapters that cannot search without a query
// embedding, so callers know an embedding failure cannot degrade to
// lexical matching.
type VectorOnlyStore interface {
	VectorCapableStore

	// RequiresQueryVector indicates that Search fails without an
	// embedding in the query.
	RequiresQueryVector() bool
}
