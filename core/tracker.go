// Package core aggregates usage across calls made through the provider layer.
package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"switchboard/core/provider"
)

// Source identifies what triggered the LLM call.
// Use SourcePrompt for user-initiated prompts and a caller-chosen name otherwise.
type Source string

const SourcePrompt Source = "prompt"

// SourceUsage holds token counts and cost for one source within a model.
type SourceUsage struct {
	Source Source
	provider.Usage
	Cost float64
}

// ModelUsage holds cumulative token counts and cost for one model.
type ModelUsage struct {
	ModelID       string
	ModelName     string
	ContextWindow int
	provider.Usage
	Cost    float64
	Calls   int
	Sources []SourceUsage
}

// CostSnapshot is a point-in-time, deep-copied view of all accumulated usage.
type CostSnapshot struct {
	Total     provider.Usage
	TotalCost float64
	Models    []ModelUsage
}

type sourceAccum struct {
	usage provider.Usage
	cost  float64
	calls int
}

type modelAccum struct {
	info    provider.ModelInfo
	sources map[Source]*sourceAccum
}

// Tracker accumulates usage chunks across calls. Costs are taken from the
// chunks as priced by the adapter, so each backend's accounting convention is
// already applied.
type Tracker struct {
	mu       sync.Mutex
	models   map[string]*modelAccum // keyed by ModelInfo.ID
	onUpdate func(CostSnapshot)
}

// NewTracker creates a tracker. The onUpdate callback, if non-nil, is called
// synchronously after each Record with a fresh snapshot.
func NewTracker(onUpdate func(CostSnapshot)) *Tracker {
	return &Tracker{
		models:   make(map[string]*modelAccum),
		onUpdate: onUpdate,
	}
}

// Record accumulates one call's final usage and cost for the given model.
func (t *Tracker) Record(model provider.ModelInfo, usage provider.Usage, cost float64, source Source) {
	t.mu.Lock()

	ma, ok := t.models[model.ID]
	if !ok {
		ma = &modelAccum{info: model, sources: make(map[Source]*sourceAccum)}
		t.models[model.ID] = ma
	}
	sa, ok := ma.sources[source]
	if !ok {
		sa = &sourceAccum{}
		ma.sources[source] = sa
	}
	sa.usage = sa.usage.Add(usage)
	sa.cost += cost
	sa.calls++

	var snap CostSnapshot
	if t.onUpdate != nil {
		snap = t.snapshotLocked()
	}
	t.mu.Unlock()

	if t.onUpdate != nil {
		t.onUpdate(snap)
	}
}

// RecordChunk records a Usage chunk against the model that served it.
// Other chunk kinds are ignored and report false.
func (t *Tracker) RecordChunk(model provider.ModelInfo, chunk provider.StreamChunk, source Source) bool {
	if chunk.Event != provider.EventUsage || chunk.Usage == nil {
		return false
	}
	t.Record(model, *chunk.Usage, chunk.Cost, source)
	return true
}

// Snapshot returns a deep-copied view of all accumulated usage.
func (t *Tracker) Snapshot() CostSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// snapshotLocked builds a CostSnapshot from current state. Caller must hold t.mu.
func (t *Tracker) snapshotLocked() CostSnapshot {
	var snap CostSnapshot

	for _, ma := range t.models {
		mu := ModelUsage{
			ModelID:       ma.info.ID,
			ModelName:     ma.info.Name,
			ContextWindow: ma.info.ContextWindow,
		}
		for src, sa := range ma.sources {
			mu.Sources = append(mu.Sources, SourceUsage{Source: src, Usage: sa.usage, Cost: sa.cost})
			mu.Usage = mu.Usage.Add(sa.usage)
			mu.Cost += sa.cost
			mu.Calls += sa.calls
		}
		sort.Slice(mu.Sources, func(i, j int) bool { return mu.Sources[i].Source < mu.Sources[j].Source })

		snap.Total = snap.Total.Add(mu.Usage)
		snap.TotalCost += mu.Cost
		snap.Models = append(snap.Models, mu)
	}
	sort.Slice(snap.Models, func(i, j int) bool { return snap.Models[i].ModelID < snap.Models[j].ModelID })

	return snap
}

// formatCount formats a token count with K/M abbreviations.
// Rules: 0–999 as-is, 1K–999K with one decimal (drop .0), 1M+ same pattern.
// Guard: if rounding would produce "1000.0K", display "1M" instead.
func formatCount(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1_000_000 {
		k := float64(n) / 1000
		// %.1f of 999.95+ rounds to "1000.0"
		if k >= 999.95 {
			return "1M"
		}
		s := fmt.Sprintf("%.1fK", k)
		return strings.Replace(s, ".0K", "K", 1)
	}
	m := float64(n) / 1_000_000
	s := fmt.Sprintf("%.1fM", m)
	return strings.Replace(s, ".0M", "M", 1)
}

// FormatTokens formats the totals as "▲<input> ▼<output>", with a cache
// suffix "⟳<read>/<write>" when any cache tokens were reported.
func (s CostSnapshot) FormatTokens() string {
	out := fmt.Sprintf("▲%s ▼%s", formatCount(s.Total.InputTokens), formatCount(s.Total.OutputTokens))
	if s.Total.CacheReadTokens > 0 || s.Total.CacheWriteTokens > 0 {
		out += fmt.Sprintf(" ⟳%s/%s", formatCount(s.Total.CacheReadTokens), formatCount(s.Total.CacheWriteTokens))
	}
	return out
}

// FormatCost formats the total cost in USD. Uses 4 decimal places when the
// cost is between 0 and 0.01 (both exclusive), 2 otherwise.
func (s CostSnapshot) FormatCost() string {
	if s.TotalCost > 0 && s.TotalCost < 0.01 {
		return fmt.Sprintf("$ %.4f", s.TotalCost)
	}
	return fmt.Sprintf("$ %.2f", s.TotalCost)
}
