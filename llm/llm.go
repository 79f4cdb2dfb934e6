// Package llm talks to hosted language models and digs JSON out of their
// free-text replies.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dealscout/config"

	"golang.org/x/time/rate"
)

// Errors returned by generators and the JSON scanner
var (
	ErrGeneration    = errors.New("language model request failed")
	ErrNoJSON        = errors.New("no JSON fragment in response")
	ErrMalformedJSON = errors.New("malformed JSON fragment")
)

// maxErrorBody bounds how much of an error response is kept
const maxErrorBody = 512

// Generator produces a completion for a prompt. Replies are free text that
// may contain a JSON fragment.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// New creates the generator for the configured provider
func New(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg), nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidProvider, cfg.Provider)
	}
}

// AsGenerationError marks err as a delegate failure so callers can fall
// back on it. Errors already wrapping ErrGeneration are returned unchanged.
func AsGenerationError(err error) error {
	if err == nil || errors.Is(err, ErrGeneration) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrGeneration, err)
}

// newLimiter paces requests to requestsPerMinute; zero or less disables pacing
func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), burst)
}

// readErrorBody returns a trimmed prefix of a failed response body
func readErrorBody(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return strings.TrimSpace(string(body))
}
