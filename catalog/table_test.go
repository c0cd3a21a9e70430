package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuiltinTables(t *testing.T) {
	for _, backend := range []string{"bedrock", "anthropic", "openai", "ollama"} {
		t.Run(backend, func(t *testing.T) {
			table := Builtin(backend)
			if table == nil {
				t.Fatal("Builtin returned nil")
			}
			for _, m := range table.Models() {
				if m.ID == "" || m.Name == "" {
					t.Errorf("entry missing ID or name: %+v", m)
				}
				if m.InputCostPer1M < 0 || m.OutputCostPer1M < 0 {
					t.Errorf("%s: negative price", m.ID)
				}
				if m.SupportsPromptCache && (m.MaxCachePoints == 0 || m.MinCacheTokens == 0) {
					t.Errorf("%s: prompt cache without limits", m.ID)
				}
				if strings.HasPrefix(m.ID, "us.") || strings.HasPrefix(m.ID, "eu.") {
					t.Errorf("%s: table keys must be base model IDs", m.ID)
				}
			}
		})
	}
	if Builtin("nope") != nil {
		t.Error("expected nil table for unknown backend")
	}
}

func TestLookupAndDefaults(t *testing.T) {
	table := Bedrock()

	info, ok := table.Lookup("anthropic.claude-3-5-sonnet-20241022-v2:0")
	if !ok {
		t.Fatal("expected Claude 3.5 Sonnet v2 in table")
	}
	if info.InputCostPer1M != 3.0 || info.OutputCostPer1M != 15.0 {
		t.Errorf("prices = %v/%v, want 3/15", info.InputCostPer1M, info.OutputCostPer1M)
	}
	if info.CacheReadCostPer1M == nil || *info.CacheReadCostPer1M != 0.3 {
		t.Errorf("cache read price = %v, want 0.3", info.CacheReadCostPer1M)
	}

	if _, ok := table.Lookup("us.anthropic.claude-3-5-sonnet-20241022-v2:0"); ok {
		t.Error("prefixed IDs must not be found directly")
	}

	def := table.Default(false)
	router := table.Default(true)
	if def.ID == router.ID {
		t.Errorf("router default %q should differ from default %q", router.ID, def.ID)
	}
}

func TestModelsSorted(t *testing.T) {
	models := Bedrock().Models()
	for i := 1; i < len(models); i++ {
		if models[i-1].ID >= models[i].ID {
			t.Fatalf("Models() not sorted at %d: %q >= %q", i, models[i-1].ID, models[i].ID)
		}
	}
}

func TestWithOverrides(t *testing.T) {
	base := Anthropic()
	price := 2.5
	name := "Custom"
	window := 1_000_000

	updated := base.WithOverrides([]Override{
		{ID: "claude-sonnet-4-20250514", InputPrice: &price, ContextWindow: &window},
		{ID: "claude-experimental", Name: &name},
		{ID: ""},
	})

	got, _ := updated.Lookup("claude-sonnet-4-20250514")
	if got.InputCostPer1M != 2.5 || got.ContextWindow != 1_000_000 {
		t.Errorf("override not applied: %+v", got)
	}
	if got.OutputCostPer1M != 15.0 {
		t.Errorf("untouched field changed: output = %v", got.OutputCostPer1M)
	}

	orig, _ := base.Lookup("claude-sonnet-4-20250514")
	if orig.InputCostPer1M != 3.0 {
		t.Errorf("WithOverrides mutated the receiver: %v", orig.InputCostPer1M)
	}

	added, ok := updated.Lookup("claude-experimental")
	if !ok {
		t.Fatal("override for unknown ID should add an entry")
	}
	if added.Name != "Custom" || added.OutputCostPer1M != base.Default(false).OutputCostPer1M {
		t.Errorf("added entry = %+v, want fallback-seeded with custom name", added)
	}
	if updated.Len() != base.Len()+1 {
		t.Errorf("Len = %d, want %d", updated.Len(), base.Len()+1)
	}

	if same := base.WithOverrides(nil); same != base {
		t.Error("empty overrides should return the receiver")
	}
}

func TestLoadOverrides(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "catalog.yaml")
	content := `bedrock:
  - id: anthropic.claude-sonnet-4-20250514-v1:0
    input_price: 2.75
    cache_read_price: 0.275
openai:
  - id: my-finetune
    name: My Finetune
    context_window: 64000
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	file, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	if len(file["bedrock"]) != 1 || len(file["openai"]) != 1 {
		t.Fatalf("unexpected entries: %+v", file)
	}

	table := Bedrock().WithOverrides(file["bedrock"])
	info, _ := table.Lookup("anthropic.claude-sonnet-4-20250514-v1:0")
	if info.InputCostPer1M != 2.75 || *info.CacheReadCostPer1M != 0.275 {
		t.Errorf("override not applied: %+v", info)
	}
}

func TestLoadOverridesMissingFile(t *testing.T) {
	file, err := LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil || file != nil {
		t.Errorf("missing file: got %v, %v; want nil, nil", file, err)
	}
	file, err = LoadOverrides("")
	if err != nil || file != nil {
		t.Errorf("empty path: got %v, %v; want nil, nil", file, err)
	}
}

func TestLoadOverridesInvalid(t *testing.T) {
	tests := map[string]string{
		"malformed":      "bedrock: [unclosed",
		"missing id":     "bedrock:\n  - input_price: 1\n",
		"negative price": "bedrock:\n  - id: x\n    output_price: -1\n",
		"negative limit": "bedrock:\n  - id: x\n    max_cache_points: -2\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "catalog.yaml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadOverrides(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}
