package openai_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmind/opsmind/pkg/gen"
	"github.com/opsmind/opsmind/pkg/gen/adapters/openai"
)

// mockOpenAIServer creates a mock OpenAI server for testing.
func mockOpenAIServer(t *testing.T, statusCode int, responseBody string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_, err := w.Write([]byte(responseBody))
		require.NoError(t, err)
	}))
	return server
}

func newAdapter(t *testing.T, baseURL string) *openai.OpenAIAdapter {
	t.Helper()
	adapter, err := openai.NewOpenAIAdapter(openai.Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
	})
	require.NoError(t, err)
	return adapter
}

func TestNewOpenAIAdapter_EmptyAPIKey(t *testing.T) {
	_, err := openai.NewOpenAIAdapter(openai.Config{})
	assert.ErrorIs(t, err, openai.ErrEmptyAPIKey)
}

func TestGenerate_Success(t *testing.T) {
	mockResponse := `{
		"id": "chatcmpl-test",
		"object": "chat.completion",
		"choices": [
			{
				"index": 0,
				"message": {"role": "assistant", "content": "  Use terraform plan before apply.  "},
				"finish_reason": "stop"
			}
		],
		"usage": {"prompt_tokens": 20, "completion_tokens": 10, "total_tokens": 30}
	}`

	server := mockOpenAIServer(t, http.StatusOK, mockResponse)
	defer server.Close()

	adapter := newAdapter(t, server.URL)

	response, err := adapter.Generate(context.Background(), "how do I apply terraform safely")
	require.NoError(t, err)
	assert.Equal(t, "Use terraform plan before apply.", response, "response should be whitespace trimmed")
}

func TestGenerate_RateLimitIsTransient(t *testing.T) {
	errorResponse := `{
		"error": {
			"message": "Rate limit reached",
			"type": "rate_limit_error",
			"code": "rate_limit_exceeded"
		}
	}`

	server := mockOpenAIServer(t, http.StatusTooManyRequests, errorResponse)
	defer server.Close()

	adapter := newAdapter(t, server.URL)

	_, err := adapter.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, gen.ErrTransient)
	assert.NotErrorIs(t, err, gen.ErrFatal)
}

func TestGenerate_ServerErrorIsTransient(t *testing.T) {
	errorResponse := `{
		"error": {
			"message": "The server had an error",
			"type": "server_error"
		}
	}`

	server := mockOpenAIServer(t, http.StatusInternalServerError, errorResponse)
	defer server.Close()

	adapter := newAdapter(t, server.URL)

	_, err := adapter.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, gen.ErrTransient)
}

func TestGenerate_InvalidRequestIsFatal(t *testing.T) {
	errorResponse := `{
		"error": {
			"message": "The API key is invalid",
			"type": "invalid_request_error",
			"code": "invalid_api_key"
		}
	}`

	server := mockOpenAIServer(t, http.StatusUnauthorized, errorResponse)
	defer server.Close()

	adapter := newAdapter(t, server.URL)

	_, err := adapter.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, gen.ErrFatal)
	assert.NotErrorIs(t, err, gen.ErrTransient)
}

func TestGenerate_EmptyChoicesIsTransient(t *testing.T) {
	mockResponse := `{
		"id": "chatcmpl-test",
		"object": "chat.completion",
		"choices": [],
		"usage": {"prompt_tokens": 20, "completion_tokens": 0, "total_tokens": 20}
	}`

	server := mockOpenAIServer(t, http.StatusOK, mockResponse)
	defer server.Close()

	adapter := newAdapter(t, server.URL)

	_, err := adapter.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, gen.ErrTransient)
	assert.NotErrorIs(t, err, gen.ErrFatal)
}

func TestGenerate_ConnectionFailureIsTransient(t *testing.T) {
	// Point at a server that is already closed
	server := mockOpenAIServer(t, http.StatusOK, "{}")
	url := server.URL
	server.Close()

	adapter := newAdapter(t, url)

	_, err := adapter.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, gen.ErrTransient)
}

func TestGenerateEmbeddings_Success(t *testing.T) {
	mockResponse := `{
		"object": "list",
		"data": [
			{"object": "embedding", "embedding": [0.1, 0.2, 0.3], "index": 0},
			{"object": "embedding", "embedding": [0.4, 0.5, 0.6], "index": 1}
		],
		"model": "text-embedding-3-small",
		"usage": {"prompt_tokens": 10, "total_tokens": 10}
	}`

	server := mockOpenAIServer(t, http.StatusOK, mockResponse)
	defer server.Close()

	adapter := newAdapter(t, server.URL)

	embeddings, err := adapter.GenerateEmbeddings(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embeddings[0])
	assert.Equal(t, []float32{0.4, 0.5, 0.6}, embeddings[1])
}

func TestGenerateEmbeddings_EmptyInput(t *testing.T) {
	adapter := newAdapter(t, "")

	embeddings, err := adapter.GenerateEmbeddings(context.Background(), []string{})
	require.NoError(t, err)
	assert.Empty(t, embeddings)
}
