package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
)

// Config holds all switchboard configuration values.
type Config struct {
	Backend   string `toml:"backend"`
	Model     string `toml:"model"`
	SessionID string `toml:"session_id"` // empty generates a fresh session per run
	LogLevel  string `toml:"log_level"`
	LogFile   string `toml:"log_file"`

	// Multiplier applied to raw tokenizer counts when sizing cache segments.
	TokenMultiplier float64 `toml:"token_multiplier"`
	MaxTokens       int     `toml:"max_tokens"`

	DataDir        string `toml:"data_dir"`
	PlanStore      string `toml:"plan_store"` // memory, file, sqlite
	PlansDir       string `toml:"plans_dir"`
	PlanDB         string `toml:"plan_db"`
	PlanMaxAgeDays int    `toml:"plan_max_age_days"`
	CatalogFile    string `toml:"catalog_file"`

	Bedrock   BedrockConfig   `toml:"bedrock"`
	Anthropic AnthropicConfig `toml:"anthropic"`
	OpenAI    OpenAIConfig    `toml:"openai"`
	Ollama    OllamaConfig    `toml:"ollama"`
}

// BedrockConfig is the [bedrock] table.
type BedrockConfig struct {
	Region          string `toml:"region"`
	Profile         string `toml:"profile"`
	CrossRegion     bool   `toml:"cross_region"`
	GlobalInference bool   `toml:"global_inference"`
	PromptCache     bool   `toml:"prompt_cache"`
	ResolveProfiles bool   `toml:"resolve_profiles"`

	PricingEnabled  bool   `toml:"pricing_enabled"`
	PricingCacheDir string `toml:"pricing_cache_dir"`
	PricingCacheTTL int    `toml:"pricing_cache_ttl"` // hours
}

// AnthropicConfig is the [anthropic] table. The key itself is read from the
// environment variable named by APIKeyEnv.
type AnthropicConfig struct {
	APIKeyEnv      string `toml:"api_key_env"`
	BaseURL        string `toml:"base_url"`
	PromptCache    bool   `toml:"prompt_cache"`
	ThinkingBudget int    `toml:"thinking_budget"`
}

// OpenAIConfig is the [openai] table.
type OpenAIConfig struct {
	APIKeyEnv    string `toml:"api_key_env"`
	BaseURL      string `toml:"base_url"`
	Organization string `toml:"organization"`
}

// OllamaConfig is the [ollama] table.
type OllamaConfig struct {
	Host  string `toml:"host"`
	Think bool   `toml:"think"`
}

// DefaultConfig returns a Config with all defaults populated.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".switchboard")

	return Config{
		Backend:         "bedrock",
		Model:           "us.anthropic.claude-sonnet-4-20250514-v1:0",
		LogLevel:        "warn",
		TokenMultiplier: 1.5,
		MaxTokens:       4096,
		DataDir:         dataDir,
		PlanStore:       "file",
		PlansDir:        filepath.Join(dataDir, "plans"),
		PlanDB:          filepath.Join(dataDir, "plans.db"),
		PlanMaxAgeDays:  30,
		CatalogFile:     filepath.Join(dataDir, "catalog.yaml"),
		Bedrock: BedrockConfig{
			Region:          "us-east-1",
			PromptCache:     true,
			ResolveProfiles: true,
			PricingEnabled:  false,
			PricingCacheDir: filepath.Join(dataDir, "cache", "pricing"),
			PricingCacheTTL: 168, // 1 week
		},
		Anthropic: AnthropicConfig{
			APIKeyEnv:   "ANTHROPIC_API_KEY",
			PromptCache: true,
		},
		OpenAI: OpenAIConfig{
			APIKeyEnv: "OPENAI_API_KEY",
		},
	}
}

// ConfigFilePath returns the path to the config file inside DataDir.
func (c Config) ConfigFilePath() string {
	return filepath.Join(c.DataDir, "config.toml")
}

// Load loads configuration from the default location (~/.switchboard/config.toml),
// falling back to defaults if the file does not exist.
// Warnings are returned for unrecognized TOML keys (likely typos).
func Load() (Config, []string, error) {
	defaults := DefaultConfig()
	return LoadFrom(defaults.ConfigFilePath(), defaults)
}

// LoadFrom loads configuration from the given path, overlaying TOML values
// onto the provided defaults. If the file does not exist, defaults are returned
// without error (first-run case). If the file exists but is malformed, an error
// is returned. Warnings are returned for unrecognized TOML keys.
func LoadFrom(path string, defaults Config) (Config, []string, error) {
	cfg := defaults

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults, nil, nil
		}
		return Config{}, nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	// If data_dir was overridden but paths under it were not, re-derive them.
	if meta.IsDefined("data_dir") {
		if !meta.IsDefined("plans_dir") {
			cfg.PlansDir = filepath.Join(cfg.DataDir, "plans")
		}
		if !meta.IsDefined("plan_db") {
			cfg.PlanDB = filepath.Join(cfg.DataDir, "plans.db")
		}
		if !meta.IsDefined("catalog_file") {
			cfg.CatalogFile = filepath.Join(cfg.DataDir, "catalog.yaml")
		}
		if !meta.IsDefined("bedrock", "pricing_cache_dir") {
			cfg.Bedrock.PricingCacheDir = filepath.Join(cfg.DataDir, "cache", "pricing")
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, nil, fmt.Errorf("config %s: %w", path, err)
	}

	// Unrecognized keys are likely typos.
	var warnings []string
	for _, key := range meta.Undecoded() {
		warnings = append(warnings, fmt.Sprintf("unknown config key: %s", key))
	}

	return cfg, warnings, nil
}

var planStores = []string{"memory", "file", "sqlite"}

// Validate checks values that would otherwise fail far from the config file.
// Backend names are checked where adapters are constructed.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.TokenMultiplier <= 0 {
		return fmt.Errorf("token_multiplier must be positive, got %v", c.TokenMultiplier)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	if !slices.Contains(planStores, c.PlanStore) {
		return fmt.Errorf("plan_store must be one of %v, got %q", planStores, c.PlanStore)
	}
	if c.PlanMaxAgeDays < 0 {
		return fmt.Errorf("plan_max_age_days must not be negative")
	}
	if c.Bedrock.GlobalInference && c.Bedrock.CrossRegion {
		return fmt.Errorf("bedrock: cross_region and global_inference are mutually exclusive")
	}
	return nil
}

// EnsureDirs creates DataDir and the directories the selected stores write to.
func (c Config) EnsureDirs() error {
	dirs := []string{c.DataDir}
	switch c.PlanStore {
	case "file":
		dirs = append(dirs, c.PlansDir)
	case "sqlite":
		dirs = append(dirs, filepath.Dir(c.PlanDB))
	}
	if c.Bedrock.PricingEnabled {
		dirs = append(dirs, c.Bedrock.PricingCacheDir)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// APIKey reads the key named by envVar. It returns "" when envVar is unset.
func APIKey(envVar string) string {
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}
