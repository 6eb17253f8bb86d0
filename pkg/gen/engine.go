package gen

import (
	"context"
	"errors"
)

// Failure taxonomy for generation calls. Adapters classify backend
// errors into one of these sentinels so callers can decide whether a
// retry is worthwhile.
var (
	// ErrTransient marks failures that may succeed on retry
	// (rate limits, network errors, backend overload).
	ErrTransient = errors.New("transient generation failure")

	// ErrFatal marks failures that will not succeed on retry
	// (malformed or oversized requests, authentication problems).
	ErrFatal = errors.New("fatal generation failure")
)

// Option is a function that configures a generation request.
type Option func(*Options)

// Options holds configuration for a generation request.
type Options struct {
	// Temperature controls randomness in generation (0.0-1.0)
	Temperature float64

	// MaxTokens limits the length of the generated response
	MaxTokens int

	// Model specifies which model variant to use
	Model string
}

// DefaultOptions returns default generation options.
func DefaultOptions() Options {
	return Options{
		Temperature: 0.7,
		MaxTokens:   1024,
		Model:       "", // Empty means use the adapter's default
	}
}

// WithTemperature sets the temperature option.
func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

// WithMaxTokens sets the max tokens option.
func WithMaxTokens(tokens int) Option {
	return func(o *Options) {
		o.MaxTokens = tokens
	}
}

// WithModel sets the model option.
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// Engine is the interface for text generation engines (LLMs).
// Implementations hold no per-call state; every call is independent.
type Engine interface {
	// Generate sends a prompt to the engine and returns the produced
	// text. Errors wrap ErrTransient or ErrFatal.
	Generate(ctx context.Context, prompt string, opts ...Option) (string, error)

	// GenerateEmbeddings creates vector embeddings for the provided texts.
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}
