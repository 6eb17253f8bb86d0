package mock

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/opsmind/opsmind/pkg/gen"
	"github.com/opsmind/opsmind/pkg/log"
)

// Call represents a recorded method call on the mock engine.
type Call struct {
	// Method is the name of the method that was called.
	Method string

	// Args contains the arguments passed to the method.
	Args []interface{}
}

// MockEngine implements the gen.Engine interface with canned responses.
type MockEngine struct {
	// cannedResponses maps prompts to predetermined responses
	cannedResponses map[string]string

	// defaultResponse is returned when no matching canned response is found
	defaultResponse string

	// cannedEmbeddings maps text to predetermined embeddings
	cannedEmbeddings map[string][]float32

	// defaultEmbedding is returned when no matching canned embedding is found
	defaultEmbedding []float32

	// exactMatch determines if prompt matching is exact or uses Contains
	exactMatch bool

	// transientFailures is the number of upcoming Generate calls that
	// fail with a transient error before succeeding
	transientFailures int

	// fatalError, when set, is returned by every Generate call
	fatalError error

	// embeddingError, when set, is returned by every
	// GenerateEmbeddings call
	embeddingError error

	// mutex protects the maps and counters from concurrent access
	mutex sync.RWMutex

	// callHistory records all calls to Generate and GenerateEmbeddings
	callHistory []Call
}

// MockOption is a function that configures a MockEngine.
type MockOption func(*MockEngine)

// WithDefaultResponse sets the default response for the mock engine.
func WithDefaultResponse(resp string) MockOption {
	return func(m *MockEngine) {
		m.defaultResponse = resp
	}
}

// WithDefaultEmbedding sets the default embedding for the mock engine.
func WithDefaultEmbedding(embedding []float32) MockOption {
	return func(m *MockEngine) {
		m.defaultEmbedding = embedding
	}
}

// WithExactMatch configures whether the mock engine uses exact matching.
func WithExactMatch(exact bool) MockOption {
	return func(m *MockEngine) {
		m.exactMatch = exact
	}
}

// WithTransientFailures configures the next n Generate calls to fail
// with a transient error.
func WithTransientFailures(n int) MockOption {
	return func(m *MockEngine) {
		m.transientFailures = n
	}
}

// WithFatalError configures every Generate call to fail fatally.
func WithFatalError() MockOption {
	return func(m *MockEngine) {
		m.fatalError = gen.Fatal(errors.New("mock fatal generation error"))
	}
}

// WithEmbeddingError configures every GenerateEmbeddings call to fail
// with the given error.
func WithEmbeddingError(err error) MockOption {
	return func(m *MockEngine) {
		m.embeddingError = err
	}
}

// NewMockEngine creates a new MockEngine with the given options.
func NewMockEngine(opts ...MockOption) *MockEngine {
	m := &MockEngine{
		cannedResponses:  make(map[string]string),
		defaultResponse:  "This is a mock response",
		cannedEmbeddings: make(map[string][]float32),
		defaultEmbedding: []float32{0.0, 0.0, 0.0},
		exactMatch:       false, // Default to substring matching
		callHistory:      make([]Call, 0),
	}

	for _, opt := range opts {
		opt(m)
	}

	log.Debug("Created mock generation engine", "exact_match", m.exactMatch)
	return m
}

// AddResponse registers a canned response for prompts matching key.
func (m *MockEngine) AddResponse(key, response string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.cannedResponses[key] = response
}

// SetDefaultResponse sets the response returned when no canned response matches.
func (m *MockEngine) SetDefaultResponse(response string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.defaultResponse = response
}

// AddEmbedding registers a canned embedding for the exact text.
func (m *MockEngine) AddEmbedding(text string, embedding []float32) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.cannedEmbeddings[text] = embedding
}

// SetTransientFailures configures the next n Generate calls to fail
// with a transient error.
func (m *MockEngine) SetTransientFailures(n int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.transientFailures = n
}

// Generate implements the gen.Engine interface.
func (m *MockEngine) Generate(ctx context.Context, prompt string, opts ...gen.Option) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.callHistory = append(m.callHistory, Call{
		Method: "Generate",
		Args:   []interface{}{prompt, opts},
	})

	if m.fatalError != nil {
		return "", m.fatalError
	}

	if m.transientFailures > 0 {
		m.transientFailures--
		return "", gen.Transient(errors.New("mock transient generation error"))
	}

	options := gen.DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	log.Debug("Processing prompt with mock engine",
		"prompt_length", len(prompt),
		"temperature", options.Temperature,
		"max_tokens", options.MaxTokens,
		"model", options.Model)

	if m.exactMatch {
		if response, ok := m.cannedResponses[prompt]; ok {
			return response, nil
		}
	} else {
		for key, response := range m.cannedResponses {
			if strings.Contains(prompt, key) {
				return response, nil
			}
		}
	}

	return m.defaultResponse, nil
}

// GenerateEmbeddings implements the gen.Engine interface.
func (m *MockEngine) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.callHistory = append(m.callHistory, Call{
		Method: "GenerateEmbeddings",
		Args:   []interface{}{texts},
	})

	if m.embeddingError != nil {
		return nil, m.embeddingError
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if embedding, ok := m.cannedEmbeddings[text]; ok {
			embeddings[i] = embedding
		} else {
			embeddings[i] = m.defaultEmbedding
		}
	}

	return embeddings, nil
}

// CallHistory returns a copy of all recorded calls.
func (m *MockEngine) CallHistory() []Call {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	history := make([]Call, len(m.callHistory))
	copy(history, m.callHistory)
	return history
}

// GenerateCallCount returns the number of Generate calls made.
func (m *MockEngine) GenerateCallCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	count := 0
	for _, call := range m.callHistory {
		if call.Method == "Generate" {
			count++
		}
	}
	return count
}
