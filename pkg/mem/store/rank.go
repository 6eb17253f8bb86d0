package store

import (
	"math"
	"sort"
	"strings"
)

// Score computes the similarity between a query and a record. Cosine
// similarity over embeddings is used when both sides carry one;
// otherwise a lexical token-overlap proxy over the texts. A zero-norm
// embedding carries no direction, so it scores lexically too —
// otherwise every cosine would be 0 and ranking would collapse to
// recency.
func Score(query Query, record MemoryRecord) float64 {
	if hasDirection(query.Embedding) && hasDirection(record.Embedding) {
		return CosineSimilarity(query.Embedding, record.Embedding)
	}
	return LexicalScore(query.Text, record.Content)
}

// hasDirection reports whether an embedding is non-empty with at least
// one non-zero component.
func hasDirection(embedding []float32) bool {
	for _, v := range embedding {
		if v != 0 {
			return true
		}
	}
	return false
}

// CosineSimilarity returns the cosine of the angle between two vectors.
// Mismatched dimensions or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// LexicalScore scores content against query text by normalized token
// overlap. Tokens match when one is a prefix of the other, so
// "provision" matches "provisioning". It is a monotonic proxy for
// semantic closeness used by stores without embeddings.
func LexicalScore(queryText, content string) float64 {
	queryTokens := tokenize(queryText)
	contentTokens := tokenize(content)
	if len(queryTokens) == 0 || len(contentTokens) == 0 {
		return 0
	}

	matched := 0
	for _, qt := range queryTokens {
		for _, ct := range contentTokens {
			if tokensMatch(qt, ct) {
				matched++
				break
			}
		}
	}

	return float64(matched) / float64(len(queryTokens))
}

// Rank sorts records by descending similarity to the query, breaking
// ties by recency (most recent first), and truncates to the query
// limit. Every adapter funnels its results through Rank so the
// ordering contract holds regardless of backend.
func Rank(query Query, records []MemoryRecord) []MemoryRecord {
	type scored struct {
		record MemoryRecord
		score  float64
	}

	ranked := make([]scored, 0, len(records))
	for _, r := range records {
		ranked = append(ranked, scored{record: r, score: Score(query, r)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].record.CreatedAt.After(ranked[j].record.CreatedAt)
	})

	limit := query.Limit
	if limit <= 0 || limit > len(ranked) {
		limit = len(ranked)
	}

	results := make([]MemoryRecord, 0, limit)
	for _, s := range ranked[:limit] {
		results = append(results, s.record)
	}
	return results
}

// tokenize lowercases and splits text on non-alphanumeric runes,
// dropping single-character tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// tokensMatch reports whether two tokens refer to the same word,
// treating either as a match when it prefixes the other.
func tokensMatch(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(a) < 3 {
		return a == b
	}
	return strings.HasPrefix(b, a)
}
