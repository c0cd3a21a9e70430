package cost

import (
	"math"
	"math/rand/v2"
	"testing"

	"switchboard/core/provider"
)

func ptr(v float64) *float64 { return &v }

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-12*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func TestExclusiveCostWithCacheReads(t *testing.T) {
	info := provider.ModelInfo{InputCostPer1M: 3, OutputCostPer1M: 15, CacheReadCostPer1M: ptr(0.3)}
	u := provider.Usage{InputTokens: 500, OutputTokens: 1500, CacheReadTokens: 1000}

	got := Calculate(Exclusive, u, info)
	if !approxEqual(got, 0.0243) {
		t.Errorf("cost = %v, want 0.0243", got)
	}
}

func TestInclusiveCostSubtractsCachedInput(t *testing.T) {
	u := provider.Usage{InputTokens: 2000, OutputTokens: 0, CacheWriteTokens: 500, CacheReadTokens: 1000}
	if got := ChargedInput(Inclusive, u); got != 500 {
		t.Errorf("ChargedInput = %d, want 500", got)
	}

	info := provider.ModelInfo{InputCostPer1M: 3, OutputCostPer1M: 15, CacheWriteCostPer1M: ptr(3.75), CacheReadCostPer1M: ptr(0.3)}
	want := 500*3/1e6 + 500*3.75/1e6 + 1000*0.3/1e6
	if got := Calculate(Inclusive, u, info); !approxEqual(got, want) {
		t.Errorf("cost = %v, want %v", got, want)
	}
}

func TestInclusiveNeverNegative(t *testing.T) {
	u := provider.Usage{InputTokens: 100, CacheWriteTokens: 80, CacheReadTokens: 80}
	if got := ChargedInput(Inclusive, u); got != 0 {
		t.Errorf("ChargedInput = %d, want 0", got)
	}
}

func TestAbsentPricesNotBilled(t *testing.T) {
	info := provider.ModelInfo{InputCostPer1M: 1, OutputCostPer1M: 2}
	u := provider.Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000, CacheWriteTokens: 5_000_000, CacheReadTokens: 7_000_000}
	if got := Calculate(Exclusive, u, info); !approxEqual(got, 3) {
		t.Errorf("cost = %v, want 3 (cache tokens unbilled)", got)
	}
}

func TestZeroCostModel(t *testing.T) {
	u := provider.Usage{InputTokens: 12345, OutputTokens: 678}
	if got := Calculate(Exclusive, u, provider.ModelInfo{}); got != 0 {
		t.Errorf("cost = %v, want 0", got)
	}
}

// Inclusive accounting over (input, write, read) equals exclusive accounting over
// the pre-subtracted input, whenever the subtraction stays non-negative.
func TestConventionEquivalenceProperty(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	for i := 0; i < 5000; i++ {
		write := r.IntN(200_000)
		read := r.IntN(200_000)
		input := write + read + r.IntN(200_000)
		output := r.IntN(50_000)
		info := provider.ModelInfo{
			InputCostPer1M:      float64(r.IntN(3000)) / 100,
			OutputCostPer1M:     float64(r.IntN(8000)) / 100,
			CacheWriteCostPer1M: ptr(float64(r.IntN(4000)) / 100),
			CacheReadCostPer1M:  ptr(float64(r.IntN(300)) / 100),
		}
		if r.IntN(4) == 0 {
			info.CacheWriteCostPer1M = nil
		}

		inclusive := Calculate(Inclusive, provider.Usage{
			InputTokens: input, OutputTokens: output, CacheWriteTokens: write, CacheReadTokens: read,
		}, info)
		exclusive := Calculate(Exclusive, provider.Usage{
			InputTokens: input - write - read, OutputTokens: output, CacheWriteTokens: write, CacheReadTokens: read,
		}, info)
		if !approxEqual(inclusive, exclusive) {
			t.Fatalf("case %d: inclusive %v != exclusive %v", i, inclusive, exclusive)
		}
	}
}

func TestConventionString(t *testing.T) {
	if Exclusive.String() != "exclusive" || Inclusive.String() != "inclusive" {
		t.Errorf("String() = %q, %q", Exclusive, Inclusive)
	}
}
