// Package model resolves a configured model address into a stable call address
// plus a replaceable capability snapshot.
package model

import (
	"fmt"
	"sync/atomic"

	"switchboard/core/address"
	"switchboard/core/provider"

	"github.com/rs/zerolog"
)

// Catalog is the read side of a capability table.
type Catalog interface {
	Lookup(id string) (provider.ModelInfo, bool)
	Default(router bool) provider.ModelInfo
}

// Options configures a Resolver.
type Options struct {
	Raw    string // configured model ID or resource locator
	Region string // configured region preference

	// CrossRegion re-applies the region's inference profile prefix to plain IDs.
	CrossRegion bool
	// GlobalInference re-applies the "global." prefix to plain IDs; wins over CrossRegion.
	GlobalInference bool
	// PlainIDs treats Raw as an opaque model name (non-Bedrock backends).
	PlainIDs bool
}

// Resolver owns the ResolvedModel of one adapter.
// The call address is fixed at construction. The snapshot is replaced whole by
// Observe, which only the stream-processing path calls.
type Resolver struct {
	desc        address.Descriptor
	parse       func(string) (address.Descriptor, error)
	callAddress string
	region      string
	catalog     Catalog
	info        atomic.Pointer[provider.ModelInfo]
	log         zerolog.Logger
}

// New parses opts.Raw and resolves its capabilities. An unparseable address is fatal.
// A region mismatch and an unknown model are logged and resolved best-effort.
func New(opts Options, catalog Catalog, log zerolog.Logger) (*Resolver, error) {
	parse := address.Parse
	if opts.PlainIDs {
		parse = address.ParsePlain
	}
	desc, err := parse(opts.Raw)
	if err != nil {
		return nil, fmt.Errorf("resolving model: %w", err)
	}

	if err := address.CheckRegion(desc, opts.Region); err != nil {
		log.Warn().Err(err).Str("model", opts.Raw).Msg("region mismatch")
	}

	r := &Resolver{
		desc:        desc,
		parse:       parse,
		callAddress: callAddress(desc, opts),
		region:      address.EffectiveRegion(desc, opts.Region),
		catalog:     catalog,
		log:         log,
	}

	info, ok := catalog.Lookup(desc.BaseModelID)
	if !ok {
		info = catalog.Default(desc.Kind == address.KindRouter)
		log.Warn().
			Str("model", desc.BaseModelID).
			Str("fallback", info.ID).
			Msg("model not in catalog; cost and context figures are approximate")
	}
	r.info.Store(&info)
	return r, nil
}

// callAddress picks the identifier the transport must target.
func callAddress(d address.Descriptor, opts Options) string {
	if d.Kind != address.KindNone && d.Kind != address.KindBaseModel {
		return d.Raw
	}
	if d.IsComposite {
		return d.BaseModelID
	}
	if opts.PlainIDs {
		return d.Raw
	}
	switch {
	case opts.GlobalInference:
		return "global." + d.BaseModelID
	case opts.CrossRegion:
		if p := address.PrefixForRegion(opts.Region); p != "" {
			return p + d.BaseModelID
		}
	}
	// Without an override the configured ID is used as written.
	return d.Raw
}

// Model returns the current snapshot. It never blocks and never performs I/O.
func (r *Resolver) Model() provider.ResolvedModel {
	return provider.ResolvedModel{
		CallAddress: r.callAddress,
		Info:        *r.info.Load(),
	}
}

// Descriptor returns the parsed configured address.
func (r *Resolver) Descriptor() address.Descriptor {
	return r.desc
}

// Region returns the region requests go to; a locator's region wins over configuration.
func (r *Resolver) Region() string {
	return r.region
}

// Observe handles a routing signal naming the model actually invoked.
// It replaces the capability snapshot when the invoked model is known and differs,
// and reports whether it did. The call address is never changed.
func (r *Resolver) Observe(invoked string) bool {
	if invoked == "" {
		return false
	}
	desc, err := r.parse(invoked)
	if err != nil {
		r.log.Warn().Err(err).Str("invoked", invoked).Msg("ignoring unparseable routing signal")
		return false
	}
	info, ok := r.catalog.Lookup(desc.BaseModelID)
	if !ok {
		r.log.Warn().Str("invoked", desc.BaseModelID).Msg("routed model not in catalog; keeping current pricing")
		return false
	}
	current := r.info.Load()
	if sameInfo(*current, info) {
		return false
	}
	r.info.Store(&info)
	r.log.Debug().
		Str("call_address", r.callAddress).
		Str("invoked", info.ID).
		Msg("capabilities updated from routing signal")
	return true
}

func sameInfo(a, b provider.ModelInfo) bool {
	return a.ID == b.ID &&
		a.Name == b.Name &&
		a.ContextWindow == b.ContextWindow &&
		a.MaxOutputTokens == b.MaxOutputTokens &&
		a.InputCostPer1M == b.InputCostPer1M &&
		a.OutputCostPer1M == b.OutputCostPer1M &&
		samePrice(a.CacheWriteCostPer1M, b.CacheWriteCostPer1M) &&
		samePrice(a.CacheReadCostPer1M, b.CacheReadCostPer1M) &&
		a.SupportsPromptCache == b.SupportsPromptCache &&
		a.MaxCachePoints == b.MaxCachePoints &&
		a.MinCacheTokens == b.MinCacheTokens &&
		a.SupportsReasoning == b.SupportsReasoning
}

func samePrice(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
