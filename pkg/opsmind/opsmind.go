package opsmind

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opsmind/opsmind/pkg/compose"
	"github.com/opsmind/opsmind/pkg/gen"
	"github.com/opsmind/opsmind/pkg/log"
	"github.com/opsmind/opsmind/pkg/mem/manager"
	"github.com/opsmind/opsmind/pkg/mem/store"
	"github.com/opsmind/opsmind/pkg/owner"
	"github.com/opsmind/opsmind/pkg/session"
)

// Assistant is the main facade for the OpsMind library. Every method
// requires an owner context on ctx; operations never cross owners.
type Assistant interface {
	// Ask answers a DevOps request using the owner's memories and the
	// session's chat history, then persists the exchange.
	Ask(ctx context.Context, input string) (*Answer, error)

	// Remember stores input as a memory without invoking the LLM.
	Remember(ctx context.Context, input string) (string, error)

	// Recall returns the memories most relevant to query.
	Recall(ctx context.Context, query string) ([]store.MemoryRecord, error)
}

// Answer is the result of a single Ask round trip.
type Answer struct {
	// Text is the generated response.
	Text string

	// MemoriesUsed are the recalled memories that informed the prompt,
	// in ranked order.
	MemoriesUsed []store.MemoryRecord

	// Warnings lists non-fatal problems, e.g. a failed persistence
	// write after a successful generation.
	Warnings []string

	// Attempts is the number of generation calls made, including
	// retries of transient failures.
	Attempts int
}

// Config contains configuration options for the assistant.
type Config struct {
	// RetrievalLimit is the number of memories recalled per Ask
	RetrievalLimit int

	// MaxRetries bounds retries of transient generation failures;
	// a request makes at most MaxRetries+1 generation attempts
	MaxRetries int

	// RetryBackoff is the delay before the first retry; it doubles on
	// each subsequent retry
	RetryBackoff time.Duration

	// GenOptions are applied to every generation call (model,
	// temperature, max tokens)
	GenOptions []gen.Option
}

// DefaultConfig returns the default configuration for the assistant.
func DefaultConfig() Config {
	return Config{
		RetrievalLimit: 5,
		MaxRetries:     3,
		RetryBackoff:   200 * time.Millisecond,
	}
}

// AssistantImpl is the implementation of the Assistant interface.
type AssistantImpl struct {
	memory manager.Manager
	engine gen.Engine
	config Config

	// sessions holds chat history per owner session
	mu       sync.Mutex
	sessions map[string]*session.Session
}

// New creates a new Assistant with the specified dependencies.
func New(memory manager.Manager, engine gen.Engine, config Config) *AssistantImpl {
	if config.RetrievalLimit <= 0 {
		config.RetrievalLimit = DefaultConfig().RetrievalLimit
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultConfig().RetryBackoff
	}

	a := &AssistantImpl{
		memory:   memory,
		engine:   engine,
		config:   config,
		sessions: make(map[string]*session.Session),
	}

	log.Debug("Assistant initialized",
		"retrieval_limit", config.RetrievalLimit,
		"max_retries", config.MaxRetries,
		"retry_backoff", config.RetryBackoff,
	)

	return a
}

// Ask implements the Assistant interface.
func (a *AssistantImpl) Ask(ctx context.Context, input string) (*Answer, error) {
	ownerCtx, ok := owner.GetOwnerContext(ctx)
	if !ok {
		return nil, owner.ErrMissingOwnerContext
	}
	if input == "" {
		return nil, fmt.Errorf("input must not be empty")
	}

	log.DebugContext(ctx, "Processing request",
		"owner_id", ownerCtx.OwnerID,
		"input_length", len(input),
	)

	// Retrieval failure aborts the request; answering without the
	// owner's context would silently degrade quality.
	memories, err := a.memory.Search(ctx, input, a.config.RetrievalLimit)
	if err != nil {
		log.ErrorContext(ctx, "Failed to retrieve memories", "error", err)
		return nil, fmt.Errorf("memory retrieval: %w", err)
	}

	sess := a.sessionFor(ownerCtx)

	contents := make([]string, 0, len(memories))
	for _, m := range memories {
		contents = append(contents, m.Content)
	}
	prompt := compose.Compose(contents, sess.History(), input)

	text, attempts, err := a.generateWithRetry(ctx, prompt)
	if err != nil {
		log.ErrorContext(ctx, "Generation failed", "error", err)
		return nil, err
	}

	answer := &Answer{
		Text:         text,
		MemoriesUsed: memories,
		Attempts:     attempts,
	}

	// Persistence is best effort: the exchange already happened, so a
	// failed write surfaces as a warning rather than an error.
	if _, err := a.memory.Append(ctx, input, store.KindUserRequest); err != nil {
		log.WarnContext(ctx, "Failed to persist request", "error", err)
		answer.Warnings = append(answer.Warnings, fmt.Sprintf("failed to persist request: %v", err))
	}
	if _, err := a.memory.Append(ctx, text, store.KindGeneratedResponse); err != nil {
		log.WarnContext(ctx, "Failed to persist response", "error", err)
		answer.Warnings = append(answer.Warnings, fmt.Sprintf("failed to persist response: %v", err))
	}

	sess.AddTurn(session.RoleUser, input)
	sess.AddTurn(session.RoleAssistant, text)

	log.DebugContext(ctx, "Request complete",
		"memories_used", len(memories),
		"warnings", len(answer.Warnings),
		"response_length", len(text),
	)

	return answer, nil
}

// Remember implements the Assistant interface.
func (a *AssistantImpl) Remember(ctx context.Context, input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("input must not be empty")
	}

	id, err := a.memory.Append(ctx, input, store.KindUserRequest)
	if err != nil {
		log.ErrorContext(ctx, "Failed to store memory", "error", err)
		return "", err
	}

	log.DebugContext(ctx, "Memory stored", "memory_id", id)
	return id, nil
}

// Recall implements the Assistant interface.
func (a *AssistantImpl) Recall(ctx context.Context, query string) ([]store.MemoryRecord, error) {
	memories, err := a.memory.Search(ctx, query, a.config.RetrievalLimit)
	if err != nil {
		log.ErrorContext(ctx, "Failed to retrieve memories", "error", err)
		return nil, err
	}
	return memories, nil
}

// generateWithRetry calls the generation engine, retrying transient
// failures with exponential backoff. Fatal failures return immediately.
// The second return value is the number of attempts made.
func (a *AssistantImpl) generateWithRetry(ctx context.Context, prompt string) (string, int, error) {
	backoff := a.config.RetryBackoff
	var lastErr error

	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			log.DebugContext(ctx, "Retrying generation",
				"attempt", attempt,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return "", attempt, fmt.Errorf("generation canceled: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		text, err := a.engine.Generate(ctx, prompt, a.config.GenOptions...)
		if err == nil {
			return text, attempt + 1, nil
		}
		lastErr = err

		if !errors.Is(err, gen.ErrTransient) {
			return "", attempt + 1, fmt.Errorf("generation: %w", err)
		}
	}

	return "", a.config.MaxRetries + 1, fmt.Errorf("generation failed after %d attempts: %w", a.config.MaxRetries+1, lastErr)
}

// sessionFor returns the chat session for the owner context, creating
// it on first use. Sessions are keyed by owner and session ID so two
// browser tabs of the same owner keep separate histories.
func (a *AssistantImpl) sessionFor(ownerCtx owner.Context) *session.Session {
	key := string(ownerCtx.OwnerID) + "/" + ownerCtx.SessionID

	a.mu.Lock()
	defer a.mu.Unlock()

	sess, ok := a.sessions[key]
	if !ok {
		sess = session.New()
		a.sessions[key] = sess
	}
	return sess
}
