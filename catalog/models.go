package catalog

import (
	"switchboard/core/provider"
)

// Prices are USD per million tokens as published by each backend.

// claude builds a Claude entry with Anthropic's standard cache pricing
// (writes 1.25x input, reads 0.1x input).
func claude(id, name string, in, out float64, maxOut int, minCache int, reasoning bool) provider.ModelInfo {
	m := provider.ModelInfo{
		ID: id, Name: name,
		ContextWindow: 200_000, MaxOutputTokens: maxOut,
		InputCostPer1M: in, OutputCostPer1M: out,
		SupportsReasoning: reasoning,
	}
	if minCache > 0 {
		m.CacheWriteCostPer1M = Price(in * 1.25)
		m.CacheReadCostPer1M = Price(in * 0.1)
		m.SupportsPromptCache = true
		m.MaxCachePoints = 4
		m.MinCacheTokens = minCache
	}
	return m
}

var bedrockModels = []provider.ModelInfo{
	claude("anthropic.claude-3-haiku-20240307-v1:0", "Claude 3 Haiku", 0.25, 1.25, 4096, 0, false),
	claude("anthropic.claude-3-sonnet-20240229-v1:0", "Claude 3 Sonnet", 3.0, 15.0, 4096, 0, false),
	claude("anthropic.claude-3-opus-20240229-v1:0", "Claude 3 Opus", 15.0, 75.0, 4096, 0, false),
	claude("anthropic.claude-3-5-sonnet-20240620-v1:0", "Claude 3.5 Sonnet", 3.0, 15.0, 8192, 0, false),
	claude("anthropic.claude-3-5-sonnet-20241022-v2:0", "Claude 3.5 Sonnet v2", 3.0, 15.0, 8192, 1024, false),
	claude("anthropic.claude-3-5-haiku-20241022-v1:0", "Claude 3.5 Haiku", 0.8, 4.0, 8192, 2048, false),
	claude("anthropic.claude-3-7-sonnet-20250219-v1:0", "Claude 3.7 Sonnet", 3.0, 15.0, 8192, 1024, true),
	claude("anthropic.claude-sonnet-4-20250514-v1:0", "Claude Sonnet 4", 3.0, 15.0, 8192, 1024, true),
	claude("anthropic.claude-sonnet-4-5-20250929-v1:0", "Claude Sonnet 4.5", 3.0, 15.0, 8192, 1024, true),
	claude("anthropic.claude-opus-4-20250514-v1:0", "Claude Opus 4", 15.0, 75.0, 8192, 1024, true),
	claude("anthropic.claude-opus-4-1-20250805-v1:0", "Claude Opus 4.1", 15.0, 75.0, 8192, 1024, true),
	claude("anthropic.claude-haiku-4-5-20251001-v1:0", "Claude Haiku 4.5", 1.0, 5.0, 8192, 2048, true),
	{
		ID: "amazon.nova-pro-v1:0", Name: "Amazon Nova Pro",
		ContextWindow: 300_000, MaxOutputTokens: 5000,
		InputCostPer1M: 0.8, OutputCostPer1M: 3.2, CacheReadCostPer1M: Price(0.2),
		SupportsPromptCache: true, MaxCachePoints: 1, MinCacheTokens: 1,
	},
	{
		ID: "amazon.nova-lite-v1:0", Name: "Amazon Nova Lite",
		ContextWindow: 300_000, MaxOutputTokens: 5000,
		InputCostPer1M: 0.06, OutputCostPer1M: 0.24, CacheReadCostPer1M: Price(0.015),
		SupportsPromptCache: true, MaxCachePoints: 1, MinCacheTokens: 1,
	},
	{
		ID: "amazon.nova-micro-v1:0", Name: "Amazon Nova Micro",
		ContextWindow: 128_000, MaxOutputTokens: 5000,
		InputCostPer1M: 0.035, OutputCostPer1M: 0.14, CacheReadCostPer1M: Price(0.00875),
		SupportsPromptCache: true, MaxCachePoints: 1, MinCacheTokens: 1,
	},
	{
		ID: "meta.llama3-1-70b-instruct-v1:0", Name: "Llama 3.1 70B Instruct",
		ContextWindow: 128_000, MaxOutputTokens: 2048,
		InputCostPer1M: 0.72, OutputCostPer1M: 0.72,
	},
	{
		ID: "meta.llama3-1-8b-instruct-v1:0", Name: "Llama 3.1 8B Instruct",
		ContextWindow: 128_000, MaxOutputTokens: 2048,
		InputCostPer1M: 0.22, OutputCostPer1M: 0.22,
	},
}

var anthropicModels = []provider.ModelInfo{
	claude("claude-3-haiku-20240307", "Claude 3 Haiku", 0.25, 1.25, 4096, 2048, false),
	claude("claude-3-5-haiku-20241022", "Claude 3.5 Haiku", 0.8, 4.0, 8192, 2048, false),
	claude("claude-3-7-sonnet-20250219", "Claude 3.7 Sonnet", 3.0, 15.0, 8192, 1024, true),
	claude("claude-sonnet-4-20250514", "Claude Sonnet 4", 3.0, 15.0, 64_000, 1024, true),
	claude("claude-sonnet-4-5-20250929", "Claude Sonnet 4.5", 3.0, 15.0, 64_000, 1024, true),
	claude("claude-opus-4-20250514", "Claude Opus 4", 15.0, 75.0, 32_000, 1024, true),
	claude("claude-opus-4-1-20250805", "Claude Opus 4.1", 15.0, 75.0, 32_000, 1024, true),
	claude("claude-haiku-4-5-20251001", "Claude Haiku 4.5", 1.0, 5.0, 64_000, 2048, true),
}

// OpenAI caches prompt prefixes automatically: cached reads are billed, but there are
// no client-placed cache points.
var openAIModels = []provider.ModelInfo{
	{
		ID: "gpt-4o", Name: "GPT-4o",
		ContextWindow: 128_000, MaxOutputTokens: 16_384,
		InputCostPer1M: 2.5, OutputCostPer1M: 10.0, CacheReadCostPer1M: Price(1.25),
	},
	{
		ID: "gpt-4o-mini", Name: "GPT-4o mini",
		ContextWindow: 128_000, MaxOutputTokens: 16_384,
		InputCostPer1M: 0.15, OutputCostPer1M: 0.6, CacheReadCostPer1M: Price(0.075),
	},
	{
		ID: "gpt-4.1", Name: "GPT-4.1",
		ContextWindow: 1_047_576, MaxOutputTokens: 32_768,
		InputCostPer1M: 2.0, OutputCostPer1M: 8.0, CacheReadCostPer1M: Price(0.5),
	},
	{
		ID: "gpt-4.1-mini", Name: "GPT-4.1 mini",
		ContextWindow: 1_047_576, MaxOutputTokens: 32_768,
		InputCostPer1M: 0.4, OutputCostPer1M: 1.6, CacheReadCostPer1M: Price(0.1),
	},
	{
		ID: "o3-mini", Name: "o3-mini",
		ContextWindow: 200_000, MaxOutputTokens: 100_000,
		InputCostPer1M: 1.1, OutputCostPer1M: 4.4, CacheReadCostPer1M: Price(0.55),
		SupportsReasoning: true,
	},
	{
		ID: "o4-mini", Name: "o4-mini",
		ContextWindow: 200_000, MaxOutputTokens: 100_000,
		InputCostPer1M: 1.1, OutputCostPer1M: 4.4, CacheReadCostPer1M: Price(0.275),
		SupportsReasoning: true,
	},
}

// Bedrock returns the built-in AWS Bedrock table.
// Unknown models fall back to Claude Sonnet 4; unknown router targets to Claude 3 Sonnet.
func Bedrock() *Table {
	fallback := mustFind(bedrockModels, "anthropic.claude-sonnet-4-20250514-v1:0")
	router := mustFind(bedrockModels, "anthropic.claude-3-sonnet-20240229-v1:0")
	return New(bedrockModels, fallback, router)
}

// Anthropic returns the built-in Anthropic API table.
func Anthropic() *Table {
	fallback := mustFind(anthropicModels, "claude-sonnet-4-20250514")
	return New(anthropicModels, fallback, fallback)
}

// OpenAI returns the built-in OpenAI table.
func OpenAI() *Table {
	fallback := mustFind(openAIModels, "gpt-4o")
	return New(openAIModels, fallback, fallback)
}

// Ollama returns the local-model table: every model is free and uncached.
func Ollama() *Table {
	fallback := provider.ModelInfo{
		ID: "ollama", Name: "Local model",
		ContextWindow: 32_768, MaxOutputTokens: 4096,
	}
	return New(nil, fallback, fallback)
}

// Builtin returns the built-in table for a backend name, or nil if there is none.
func Builtin(backend string) *Table {
	switch backend {
	case "bedrock":
		return Bedrock()
	case "anthropic":
		return Anthropic()
	case "openai":
		return OpenAI()
	case "ollama":
		return Ollama()
	default:
		return nil
	}
}

func mustFind(models []provider.ModelInfo, id string) provider.ModelInfo {
	for _, m := range models {
		if m.ID == id {
			return m
		}
	}
	panic("catalog: missing built-in model " + id)
}
