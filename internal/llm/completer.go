// Package llm adapts hosted text-generation services to a single
// Completer interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Completer sends one prompt and returns the model's raw text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Provider string

const (
	ProviderNone      Provider = "none"
	ProviderChat      Provider = "chat"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

const (
	DefaultChatModel      = "accounts/sentientfoundation-serverless/models/dobby-mini-unhinged-plus-llama-3-1-8b"
	DefaultChatEndpoint   = "https://api.fireworks.ai/inference/v1/chat/completions"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultGeminiModel    = "gemini-2.0-flash"
	DefaultMaxTokens      = 500
	DefaultTemperature    = 0.7
	DefaultTimeout        = 30 * time.Second
)

var (
	ErrEmptyResponse = errors.New("empty model response")
	ErrMissingAPIKey = errors.New("missing api key")
)

// StatusError is returned when the endpoint answers with a non-2xx code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion endpoint returned %d: %s", e.Code, e.Body)
}

// Config selects and tunes a provider.
type Config struct {
	Provider    Provider
	Endpoint    string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// ParseProvider maps a configuration string to a Provider.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case "", ProviderNone:
		return ProviderNone, nil
	case ProviderChat, ProviderAnthropic, ProviderGemini:
		return p, nil
	default:
		return "", fmt.Errorf("unknown ai provider %q", s)
	}
}

// New builds the Completer for cfg. ProviderNone yields a nil Completer
// and no error; callers treat that as "AI disabled".
func New(ctx context.Context, cfg Config) (Completer, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	var (
		c   Completer
		err error
	)
	switch cfg.Provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderChat:
		c, err = NewChatClient(cfg)
	case ProviderAnthropic:
		c, err = NewAnthropicClient(cfg)
	case ProviderGemini:
		c, err = NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s completer: %w", cfg.Provider, err)
	}
	return c, nil
}

// Func adapts a plain function to Completer.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
