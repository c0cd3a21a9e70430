// Package catalog holds model capability and pricing tables keyed by base model ID.
// Tables are immutable after construction and safe to share across adapters.
package catalog

import (
	"sort"

	"switchboard/core/provider"

	"github.com/samber/lo"
)

// Table is a read-only lookup of model metadata for one backend.
type Table struct {
	models         map[string]provider.ModelInfo
	fallback       provider.ModelInfo
	routerFallback provider.ModelInfo
}

// New builds a table. fallback is used for unknown models; routerFallback for
// unknown models behind a prompt router.
func New(models []provider.ModelInfo, fallback, routerFallback provider.ModelInfo) *Table {
	return &Table{
		models:         lo.SliceToMap(models, func(m provider.ModelInfo) (string, provider.ModelInfo) { return m.ID, m }),
		fallback:       fallback,
		routerFallback: routerFallback,
	}
}

// Lookup returns the entry for a base model ID.
func (t *Table) Lookup(id string) (provider.ModelInfo, bool) {
	info, ok := t.models[id]
	return info, ok
}

// Default returns the designated fallback snapshot.
func (t *Table) Default(router bool) provider.ModelInfo {
	if router {
		return t.routerFallback
	}
	return t.fallback
}

// Models returns all entries sorted by ID.
func (t *Table) Models() []provider.ModelInfo {
	out := lo.Values(t.models)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.models)
}

// WithOverrides returns a new table with the overrides merged in.
// Overrides for unknown IDs add new entries seeded from the fallback.
// The receiver is not modified.
func (t *Table) WithOverrides(overrides []Override) *Table {
	if len(overrides) == 0 {
		return t
	}
	models := make(map[string]provider.ModelInfo, len(t.models)+len(overrides))
	for id, m := range t.models {
		models[id] = m
	}
	for _, o := range overrides {
		if o.ID == "" {
			continue
		}
		base, ok := models[o.ID]
		if !ok {
			base = t.fallback
			base.ID = o.ID
			base.Name = o.ID
		}
		models[o.ID] = o.apply(base)
	}
	return &Table{models: models, fallback: t.fallback, routerFallback: t.routerFallback}
}

// Price returns a pointer to a price, for building cache price fields.
func Price(v float64) *float64 {
	return &v
}
