package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/opsmind/opsmind/pkg/gen"
	"github.com/opsmind/opsmind/pkg/log"
	"github.com/opsmind/opsmind/pkg/mem/store"
	"github.com/opsmind/opsmind/pkg/owner"
	"github.com/opsmind/opsmind/pkg/scripting"
)

// Manager mediates between the assistant and the memory store: it
// generates embeddings for vector-capable stores, applies optional Lua
// hooks, and guarantees the retrieval ordering contract.
type Manager interface {
	// Append stores content as a new immutable memory of the given kind.
	Append(ctx context.Context, content string, kind string) (string, error)

	// Search returns up to limit memories of the context owner ranked
	// by similarity to queryText.
	Search(ctx context.Context, queryText string, limit int) ([]store.MemoryRecord, error)
}

// Config contains configuration options for the Manager.
type Config struct {
	// EnableLuaHooks determines whether to call Lua hooks during operations
	EnableLuaHooks bool

	// EnableVectorOperations determines whether to generate embeddings
	// when the store supports them
	EnableVectorOperations bool
}

// DefaultConfig returns the default configuration for the Manager.
func DefaultConfig() Config {
	return Config{
		EnableLuaHooks:         true,
		EnableVectorOperations: true,
	}
}

// ManagerImpl is the implementation of the Manager interface.
type ManagerImpl struct {
	memStore     store.Store
	engine       gen.Engine
	scriptEngine scripting.Engine
	config       Config
}

// NewManager creates a new Manager with the specified dependencies.
// engine and scriptEngine may be nil; embedding generation and hooks
// are skipped accordingly.
func NewManager(
	memStore store.Store,
	engine gen.Engine,
	scriptEngine scripting.Engine,
	config Config,
) *ManagerImpl {
	m := &ManagerImpl{
		memStore:     memStore,
		engine:       engine,
		scriptEngine: scriptEngine,
		config:       config,
	}

	log.Debug("Memory manager initialized",
		"lua_hooks_enabled", config.EnableLuaHooks,
		"vector_operations", m.supportsVectors(),
	)

	return m
}

// supportsVectors reports whether embeddings are worth generating.
func (m *ManagerImpl) supportsVectors() bool {
	if !m.config.EnableVectorOperations || m.engine == nil {
		return false
	}
	vectorStore, ok := m.memStore.(store.VectorCapableStore)
	return ok && vectorStore.SupportsVectorSearch()
}

// requiresQueryVector reports whether the store cannot search without
// a query embedding.
func requiresQueryVector(s store.Store) bool {
	vectorOnly, ok := s.(store.VectorOnlyStore)
	return ok && vectorOnly.RequiresQueryVector()
}

// Append implements the Manager interface.
func (m *ManagerImpl) Append(ctx context.Context, content string, kind string) (string, error) {
	if _, ok := owner.GetOwnerContext(ctx); !ok {
		return "", owner.ErrMissingOwnerContext
	}

	record := store.MemoryRecord{
		Kind:    kind,
		Content: content,
		Metadata: map[string]interface{}{
			"appended_at": time.Now().Format(time.RFC3339),
		},
	}

	// Apply before_append hook; it may rewrite the content
	if m.config.EnableLuaHooks && m.scriptEngine != nil {
		record.Content = callBeforeAppendHook(ctx, m.scriptEngine, record.Content)
	}

	if m.supportsVectors() && record.Content != "" {
		embeddings, err := m.engine.GenerateEmbeddings(ctx, []string{record.Content})
		if err != nil {
			// Vector-only stores reject records without embeddings, so
			// the failure surfaces with its cause. Everywhere else the
			// record stays reachable through lexical scoring.
			if requiresQueryVector(m.memStore) {
				return "", fmt.Errorf("failed to generate embedding: %w", err)
			}
			log.WarnContext(ctx, "Failed to generate embedding",
				"error", err,
				"content_length", len(record.Content))
		} else if len(embeddings) > 0 {
			record.Embedding = embeddings[0]
		}
	}

	id, err := m.memStore.Append(ctx, record)
	if err != nil {
		return "", err
	}

	log.DebugContext(ctx, "Appended memory", "memory_id", id, "kind", kind)
	return id, nil
}

// Search implements the Manager interface.
func (m *ManagerImpl) Search(ctx context.Context, queryText string, limit int) ([]store.MemoryRecord, error) {
	if _, ok := owner.GetOwnerContext(ctx); !ok {
		return nil, owner.ErrMissingOwnerContext
	}

	query := store.Query{
		Text:  queryText,
		Limit: limit,
	}

	if m.supportsVectors() && query.Text != "" {
		embeddings, err := m.engine.GenerateEmbeddings(ctx, []string{query.Text})
		if err != nil {
			// Stores with a lexical fallback degrade to text matching;
			// vector-only stores cannot, so the failure surfaces.
			if requiresQueryVector(m.memStore) {
				return nil, fmt.Errorf("failed to generate query embedding: %w", err)
			}
			log.WarnContext(ctx, "Failed to generate query embedding", "error", err)
		} else if len(embeddings) > 0 {
			query.Embedding = embeddings[0]
		}
	}

	log.DebugContext(ctx, "Searching memories",
		"has_embedding", len(query.Embedding) > 0,
		"text", query.Text,
		"limit", query.Limit)

	results, err := m.memStore.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	// Apply rank_results then after_search hooks; they may reorder,
	// filter, or drop results
	if m.config.EnableLuaHooks && m.scriptEngine != nil && len(results) > 0 {
		results = callRankResultsHook(ctx, m.scriptEngine, queryText, results)
		results = callAfterSearchHook(ctx, m.scriptEngine, results)
	}

	log.DebugContext(ctx, "Search complete", "count", len(results))
	return results, nil
}
