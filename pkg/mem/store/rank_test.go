package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0, 0}, []float32{1, 0, 0}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0, 0}, []float32{0, 1, 0}), 1e-6)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)

	// Mismatched dimensions and zero vectors score zero
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, []float32{1, 0}))
}

func TestLexicalScore(t *testing.T) {
	// Identical text is a full match
	assert.InDelta(t, 1.0, LexicalScore("restart the database", "restart the database"), 1e-6)

	// Disjoint vocabulary scores zero
	assert.Equal(t, 0.0, LexicalScore("kubernetes ingress", "billing report"))

	// Prefix matching lets inflected forms count
	score := LexicalScore("how do I provision infrastructure", "Use Terraform for provisioning infrastructure")
	assert.Greater(t, score, 0.0)

	// Empty inputs never match
	assert.Equal(t, 0.0, LexicalScore("", "anything"))
	assert.Equal(t, 0.0, LexicalScore("query", ""))
}

func TestScore_PrefersEmbeddingsWhenPresent(t *testing.T) {
	record := MemoryRecord{
		Content:   "completely unrelated words",
		Embedding: []float32{1, 0},
	}
	query := Query{Text: "completely unrelated words", Embedding: []float32{1, 0}}

	// Cosine over the embeddings, not lexical overlap
	assert.InDelta(t, 1.0, Score(query, record), 1e-6)

	// Without a query embedding it falls back to lexical
	lexical := Score(Query{Text: "completely unrelated words"}, record)
	assert.InDelta(t, 1.0, lexical, 1e-6)
}

func TestScore_ZeroNormEmbeddingsScoreLexically(t *testing.T) {
	// Zero vectors have no direction; cosine would tie every record at
	// 0 and leave recency deciding the order.
	zero := []float32{0, 0, 0}
	query := Query{Text: "how do I provision infrastructure", Embedding: zero}

	terraform := MemoryRecord{Content: "Use Terraform for provisioning infrastructure", Embedding: zero}
	docker := MemoryRecord{Content: "Use Docker for packaging services", Embedding: zero}

	assert.Greater(t, Score(query, terraform), Score(query, docker))
}

func TestRank_ZeroNormEmbeddingsStillRankByRelevance(t *testing.T) {
	zero := []float32{0, 0, 0}
	old := time.Now().Add(-time.Hour)
	records := []MemoryRecord{
		{ID: "docker", Content: "Use Docker for packaging services", Embedding: zero, CreatedAt: time.Now()},
		{ID: "terraform", Content: "Use Terraform for provisioning infrastructure", Embedding: zero, CreatedAt: old},
	}

	// The more recent but less relevant record must not win
	ranked := Rank(Query{Text: "how do I provision infrastructure", Embedding: zero}, records)
	assert.Equal(t, "terraform", ranked[0].ID)
}

func TestRank_OrderingAndLimit(t *testing.T) {
	now := time.Now()
	records := []MemoryRecord{
		{ID: "docker", Content: "Use Docker for packaging services", CreatedAt: now},
		{ID: "terraform", Content: "Use Terraform for provisioning infrastructure", CreatedAt: now},
		{ID: "unrelated", Content: "Lunch menu for Friday", CreatedAt: now},
	}

	query := Query{Text: "how do I provision infrastructure", Limit: 2}
	ranked := Rank(query, records)

	assert.Len(t, ranked, 2)
	assert.Equal(t, "terraform", ranked[0].ID)
}

func TestRank_RecencyBreaksTies(t *testing.T) {
	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	records := []MemoryRecord{
		{ID: "old", Content: "deploy the api gateway", CreatedAt: older},
		{ID: "new", Content: "deploy the api gateway", CreatedAt: newer},
	}

	ranked := Rank(Query{Text: "deploy the api gateway"}, records)

	assert.Equal(t, "new", ranked[0].ID)
	assert.Equal(t, "old", ranked[1].ID)
}

func TestRank_NoLimitReturnsAll(t *testing.T) {
	records := []MemoryRecord{
		{ID: "a", Content: "alpha"},
		{ID: "b", Content: "beta"},
		{ID: "c", Content: "gamma"},
	}

	ranked := Rank(Query{Text: "alpha"}, records)
	assert.Len(t, ranked, 3)
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	now := time.Now()
	records := []MemoryRecord{
		{ID: "low", Content: "nothing in common", CreatedAt: now},
		{ID: "high", Content: "rotate the tls certificates", CreatedAt: now},
	}

	_ = Rank(Query{Text: "rotate the tls certificates"}, records)

	assert.Equal(t, "low", records[0].ID, "input slice order should be preserved")
}
