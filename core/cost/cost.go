// Package cost computes the monetary cost of a response from its token usage.
package cost

import (
	"switchboard/core/provider"
)

// Convention states whether a backend's reported input tokens include cached tokens.
type Convention int

const (
	// Exclusive: input tokens exclude cache reads and writes (Anthropic, Bedrock).
	Exclusive Convention = iota
	// Inclusive: input tokens already include cache reads and writes (OpenAI).
	Inclusive
)

func (c Convention) String() string {
	if c == Inclusive {
		return "inclusive"
	}
	return "exclusive"
}

// Calculate returns the USD cost of u under info's prices.
func Calculate(conv Convention, u provider.Usage, info provider.ModelInfo) float64 {
	return compute(ChargedInput(conv, u), u.OutputTokens, u.CacheWriteTokens, u.CacheReadTokens, info)
}

// ChargedInput returns the input tokens billed at the standard input rate.
func ChargedInput(conv Convention, u provider.Usage) int {
	if conv == Exclusive {
		return u.InputTokens
	}
	return max(0, u.InputTokens-u.CacheWriteTokens-u.CacheReadTokens)
}

func compute(input, output, cacheWrite, cacheRead int, info provider.ModelInfo) float64 {
	return perMillion(input, info.InputCostPer1M) +
		perMillion(output, info.OutputCostPer1M) +
		perMillion(cacheWrite, price(info.CacheWriteCostPer1M)) +
		perMillion(cacheRead, price(info.CacheReadCostPer1M))
}

func perMillion(tokens int, pricePer1M float64) float64 {
	return float64(tokens) * pricePer1M / 1e6
}

// price treats an absent price as not billed.
func price(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
