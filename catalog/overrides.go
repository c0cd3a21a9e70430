package catalog

import (
	"fmt"
	"os"

	"switchboard/core/provider"

	"gopkg.in/yaml.v3"
)

// Override replaces selected fields of a catalog entry. Nil fields keep the existing value.
type Override struct {
	ID                  string   `yaml:"id"`
	Name                *string  `yaml:"name,omitempty"`
	ContextWindow       *int     `yaml:"context_window,omitempty"`
	MaxOutputTokens     *int     `yaml:"max_output_tokens,omitempty"`
	InputPrice          *float64 `yaml:"input_price,omitempty"`
	OutputPrice         *float64 `yaml:"output_price,omitempty"`
	CacheWritePrice     *float64 `yaml:"cache_write_price,omitempty"`
	CacheReadPrice      *float64 `yaml:"cache_read_price,omitempty"`
	SupportsPromptCache *bool    `yaml:"supports_prompt_cache,omitempty"`
	MaxCachePoints      *int     `yaml:"max_cache_points,omitempty"`
	MinCacheTokens      *int     `yaml:"min_cache_tokens,omitempty"`
	SupportsReasoning   *bool    `yaml:"supports_reasoning,omitempty"`
}

func (o Override) apply(m provider.ModelInfo) provider.ModelInfo {
	if o.Name != nil {
		m.Name = *o.Name
	}
	if o.ContextWindow != nil {
		m.ContextWindow = *o.ContextWindow
	}
	if o.MaxOutputTokens != nil {
		m.MaxOutputTokens = *o.MaxOutputTokens
	}
	if o.InputPrice != nil {
		m.InputCostPer1M = *o.InputPrice
	}
	if o.OutputPrice != nil {
		m.OutputCostPer1M = *o.OutputPrice
	}
	if o.CacheWritePrice != nil {
		m.CacheWriteCostPer1M = Price(*o.CacheWritePrice)
	}
	if o.CacheReadPrice != nil {
		m.CacheReadCostPer1M = Price(*o.CacheReadPrice)
	}
	if o.SupportsPromptCache != nil {
		m.SupportsPromptCache = *o.SupportsPromptCache
	}
	if o.MaxCachePoints != nil {
		m.MaxCachePoints = *o.MaxCachePoints
	}
	if o.MinCacheTokens != nil {
		m.MinCacheTokens = *o.MinCacheTokens
	}
	if o.SupportsReasoning != nil {
		m.SupportsReasoning = *o.SupportsReasoning
	}
	return m
}

// OverrideFile is the on-disk catalog override document, keyed by backend name:
//
//	bedrock:
//	  - id: anthropic.claude-sonnet-4-20250514-v1:0
//	    input_price: 3
//	    cache_read_price: 0.3
type OverrideFile map[string][]Override

// LoadOverrides reads a YAML override file. A missing file yields no overrides.
func LoadOverrides(path string) (OverrideFile, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading catalog overrides: %w", err)
	}

	var file OverrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog overrides %s: %w", path, err)
	}
	for backend, entries := range file {
		for i, o := range entries {
			if o.ID == "" {
				return nil, fmt.Errorf("catalog overrides %s: %s[%d] has no id", path, backend, i)
			}
			if err := o.validate(); err != nil {
				return nil, fmt.Errorf("catalog overrides %s: %s: %w", path, o.ID, err)
			}
		}
	}
	return file, nil
}

func (o Override) validate() error {
	for name, p := range map[string]*float64{
		"input_price":       o.InputPrice,
		"output_price":      o.OutputPrice,
		"cache_write_price": o.CacheWritePrice,
		"cache_read_price":  o.CacheReadPrice,
	} {
		if p != nil && *p < 0 {
			return fmt.Errorf("%s must be non-negative", name)
		}
	}
	for name, n := range map[string]*int{
		"context_window":    o.ContextWindow,
		"max_output_tokens": o.MaxOutputTokens,
		"max_cache_points":  o.MaxCachePoints,
		"min_cache_tokens":  o.MinCacheTokens,
	} {
		if n != nil && *n < 0 {
			return fmt.Errorf("%s must be non-negative", name)
		}
	}
	return nil
}
