// Package completion talks to generative-AI text endpoints. A Completer
// turns one prompt into one block of text.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Completer sends prompt to a model and returns its text answer. An empty
// answer is not an error.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

var ErrMissingAPIKey = errors.New("completion: api key is not configured")

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
}

// Temporary reports whether the same request may succeed later.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Options selects and configures a provider.
type Options struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// New returns the Completer for opts.Provider ("gemini" or "openai").
func New(opts Options) (Completer, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	switch strings.ToLower(opts.Provider) {
	case "", "gemini":
		return NewGemini(opts), nil
	case "openai":
		return NewOpenAI(opts), nil
	default:
		return nil, fmt.Errorf("completion: unknown provider %q", opts.Provider)
	}
}

// Unavailable is used when no provider is configured. Every call fails
// with ErrMissingAPIKey.
type Unavailable struct{}

func (Unavailable) Complete(context.Context, string) (string, error) {
	return "", ErrMissingAPIKey
}
