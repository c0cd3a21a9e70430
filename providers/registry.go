// Package providers selects a backend adapter by name.
package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"switchboard/core/provider"
	"switchboard/providers/anthropic"
	"switchboard/providers/base"
	"switchboard/providers/bedrock"
	"switchboard/providers/ollama"
	"switchboard/providers/openai"

	"github.com/samber/lo"
)

// Backend names a supported LLM backend.
type Backend string

const (
	Bedrock   Backend = "bedrock"
	Anthropic Backend = "anthropic"
	OpenAI    Backend = "openai"
	Ollama    Backend = "ollama"
)

// ErrUnknownBackend is returned for a backend with no registered constructor.
var ErrUnknownBackend = errors.New("unknown backend")

// Config carries the settings of every backend; only the selected one is read.
// Model and MaxTokens apply to the selected backend unless its own options set them.
type Config struct {
	Backend   Backend
	Model     string
	MaxTokens int

	Bedrock   bedrock.Options
	Anthropic anthropic.Options
	OpenAI    openai.Options
	Ollama    ollama.Options
}

// Constructor builds an adapter from cfg.
type Constructor func(ctx context.Context, cfg Config, deps base.Deps) (provider.Provider, error)

var registry = map[Backend]Constructor{
	Bedrock: func(ctx context.Context, cfg Config, deps base.Deps) (provider.Provider, error) {
		opts := cfg.Bedrock
		opts.Model = lo.CoalesceOrEmpty(opts.Model, cfg.Model)
		opts.MaxTokens = lo.CoalesceOrEmpty(opts.MaxTokens, cfg.MaxTokens)
		return bedrock.New(ctx, opts, deps)
	},
	Anthropic: func(ctx context.Context, cfg Config, deps base.Deps) (provider.Provider, error) {
		opts := cfg.Anthropic
		opts.Model = lo.CoalesceOrEmpty(opts.Model, cfg.Model)
		opts.MaxTokens = lo.CoalesceOrEmpty(opts.MaxTokens, cfg.MaxTokens)
		return anthropic.New(ctx, opts, deps)
	},
	OpenAI: func(ctx context.Context, cfg Config, deps base.Deps) (provider.Provider, error) {
		opts := cfg.OpenAI
		opts.Model = lo.CoalesceOrEmpty(opts.Model, cfg.Model)
		opts.MaxTokens = lo.CoalesceOrEmpty(opts.MaxTokens, cfg.MaxTokens)
		return openai.New(ctx, opts, deps)
	},
	Ollama: func(ctx context.Context, cfg Config, deps base.Deps) (provider.Provider, error) {
		opts := cfg.Ollama
		opts.Model = lo.CoalesceOrEmpty(opts.Model, cfg.Model)
		opts.MaxTokens = lo.CoalesceOrEmpty(opts.MaxTokens, cfg.MaxTokens)
		return ollama.New(ctx, opts, deps)
	},
}

// New constructs the adapter for cfg.Backend. It is the only place a backend
// name turns into a concrete adapter.
func New(ctx context.Context, cfg Config, deps base.Deps) (provider.Provider, error) {
	ctor, ok := registry[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownBackend, cfg.Backend, Backends())
	}
	p, err := ctor(ctx, cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", cfg.Backend, err)
	}
	return p, nil
}

// Backends lists the registered backend names in sorted order.
func Backends() []Backend {
	names := lo.Keys(registry)
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// ParseBackend validates a backend name.
func ParseBackend(name string) (Backend, error) {
	b := Backend(name)
	if _, ok := registry[b]; !ok {
		return "", fmt.Errorf("%w %q (known: %v)", ErrUnknownBackend, name, Backends())
	}
	return b, nil
}
