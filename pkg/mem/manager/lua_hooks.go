package manager

import (
	"context"
	"errors"

	"github.com/opsmind/opsmind/pkg/log"
	"github.com/opsmind/opsmind/pkg/mem/store"
	"github.com/opsmind/opsmind/pkg/scripting"
)

// Lua hooks are optional: a script may define any subset of
// before_append(content), rank_results(query, results), and
// after_search(results). A hook that is absent or fails never blocks
// the memory operation.

func callBeforeAppendHook(ctx context.Context, engine scripting.Engine, content string) string {
	result, err := engine.ExecuteFunction(ctx, "before_append", content)
	if err != nil {
		if !errors.Is(err, scripting.ErrFunctionNotFound) {
			log.WarnContext(ctx, "before_append hook failed", "error", err)
		}
		return content
	}

	if rewritten, ok := result.(string); ok && rewritten != "" {
		return rewritten
	}
	return content
}

// callRankResultsHook lets a script reorder or drop search results. The
// hook receives the query text and a list of {id, content, kind} tables
// and returns a list of record IDs in the desired order. Unknown IDs are
// ignored; records the hook omits are dropped.
func callRankResultsHook(ctx context.Context, engine scripting.Engine, query string, results []store.MemoryRecord) []store.MemoryRecord {
	luaResults := make([]interface{}, 0, len(results))
	for _, r := range results {
		luaResults = append(luaResults, map[string]interface{}{
			"id":      r.ID,
			"content": r.Content,
			"kind":    r.Kind,
		})
	}

	returned, err := engine.ExecuteFunction(ctx, "rank_results", query, luaResults)
	if err != nil {
		if !errors.Is(err, scripting.ErrFunctionNotFound) {
			log.WarnContext(ctx, "rank_results hook failed", "error", err)
		}
		return results
	}

	ids, ok := returned.([]interface{})
	if !ok {
		return results
	}

	byID := make(map[string]store.MemoryRecord, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}

	reordered := make([]store.MemoryRecord, 0, len(ids))
	for _, raw := range ids {
		id, ok := raw.(string)
		if !ok {
			continue
		}
		if record, found := byID[id]; found {
			reordered = append(reordered, record)
		}
	}

	if len(reordered) == 0 {
		return results
	}
	return reordered
}

// callAfterSearchHook lets a script filter the final result set. The
// hook receives the same {id, content, kind} tables as rank_results and
// returns the IDs to keep; order is not affected. Returning an empty
// list drops everything.
func callAfterSearchHook(ctx context.Context, engine scripting.Engine, results []store.MemoryRecord) []store.MemoryRecord {
	luaResults := make([]interface{}, 0, len(results))
	for _, r := range results {
		luaResults = append(luaResults, map[string]interface{}{
			"id":      r.ID,
			"content": r.Content,
			"kind":    r.Kind,
		})
	}

	returned, err := engine.ExecuteFunction(ctx, "after_search", luaResults)
	if err != nil {
		if !errors.Is(err, scripting.ErrFunctionNotFound) {
			log.WarnContext(ctx, "after_search hook failed", "error", err)
		}
		return results
	}

	ids, ok := returned.([]interface{})
	if !ok {
		return results
	}

	keep := make(map[string]bool, len(ids))
	for _, raw := range ids {
		if id, ok := raw.(string); ok {
			keep[id] = true
		}
	}

	filtered := make([]store.MemoryRecord, 0, len(results))
	for _, r := range results {
		if keep[r.ID] {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
