// Package base holds the parts every backend adapter shares: model resolution,
// cache planning, token estimation, and stream assembly.
package base

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"switchboard/core/cache"
	"switchboard/core/cost"
	"switchboard/core/model"
	"switchboard/core/provider"
	"switchboard/core/stream"
	"switchboard/core/tokens"

	"github.com/rs/zerolog"
)

// Deps are the collaborators handed to every adapter constructor.
type Deps struct {
	Catalog   model.Catalog
	Store     cache.PlanStore // nil disables plan carry-over
	SessionID string
	Estimator *tokens.Estimator // nil uses tokens.DefaultMultiplier
	Log       zerolog.Logger
}

// Adapter is embedded by backend adapters. It provides GetModel and CountTokens
// and the helpers the request path needs.
type Adapter struct {
	Backend     string
	Convention  cost.Convention
	Catalog     model.Catalog
	Resolver    *model.Resolver
	Planner     *cache.Planner
	Estimator   *tokens.Estimator
	PromptCache bool
	Log         zerolog.Logger
}

// New resolves opts against deps.Catalog. Only an invalid address fails.
func New(backend string, conv cost.Convention, opts model.Options, promptCache bool, deps Deps) (*Adapter, error) {
	log := deps.Log.With().Str("backend", backend).Logger()

	resolver, err := model.New(opts, deps.Catalog, log)
	if err != nil {
		return nil, err
	}

	est := deps.Estimator
	if est == nil {
		est = tokens.New(tokens.DefaultMultiplier)
	}

	return &Adapter{
		Backend:     backend,
		Convention:  conv,
		Catalog:     deps.Catalog,
		Resolver:    resolver,
		Planner:     cache.NewPlanner(deps.Store, deps.SessionID, est.Count, log),
		Estimator:   est,
		PromptCache: promptCache,
		Log:         log,
	}, nil
}

// GetModel returns the current resolved model. It never performs I/O.
func (a *Adapter) GetModel() provider.ResolvedModel {
	return a.Resolver.Model()
}

// CountTokens estimates content offline.
func (a *Adapter) CountTokens(content []provider.ContentBlock) (int, error) {
	return a.Estimator.Count(content)
}

// Place computes cache points for the next request, or none when prompt
// caching is turned off for this adapter.
func (a *Adapter) Place(ctx context.Context, system string, history []provider.Message) (cache.Placement, error) {
	if !a.PromptCache {
		return cache.Placement{}, nil
	}
	return a.Planner.Place(ctx, a.Resolver.Model().Info, system, history)
}

// Describe returns the catalog entry for id, or a bare entry carrying the
// backend's own display name when the catalog does not know the model.
func (a *Adapter) Describe(id, name string) provider.ModelInfo {
	if known, ok := a.Catalog.Lookup(id); ok {
		return known
	}
	if name == "" {
		name = id
	}
	return provider.ModelInfo{ID: id, Name: name}
}

// SortModels orders a model listing by ID.
func SortModels(models []provider.ModelInfo) []provider.ModelInfo {
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models
}

// Meter prices usage against the snapshot current when it runs, so routing
// signals observed during the stream are reflected.
func (a *Adapter) Meter() stream.Meter {
	return func(u provider.Usage) float64 {
		return cost.Calculate(a.Convention, u, a.Resolver.Model().Info)
	}
}

// Stream wraps a translated source in a normalizer bound to this adapter.
func Stream[E any](ctx context.Context, a *Adapter, src stream.Source[E], tr stream.Translator[E]) *stream.Normalizer[E] {
	return stream.New(ctx, src, tr, a.Meter(), a.Log)
}

// Validate rejects histories the adapters cannot send.
func Validate(history []provider.Message) error {
	if len(history) == 0 {
		return fmt.Errorf("%w: empty history", provider.ErrInvalidRequest)
	}
	for i, msg := range history {
		if msg.Role != provider.RoleUser && msg.Role != provider.RoleAssistant {
			return fmt.Errorf("%w: message %d: unknown role %q", provider.ErrInvalidRequest, i, msg.Role)
		}
		if len(msg.Content) == 0 {
			return fmt.Errorf("%w: message %d: no content", provider.ErrInvalidRequest, i)
		}
	}
	return nil
}

// KindForStatus maps an HTTP status from an API backend onto a provider sentinel,
// or nil when the status has no canonical meaning.
func KindForStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return provider.ErrThrottled
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return provider.ErrAccessDenied
	case status == http.StatusNotFound:
		return provider.ErrModelNotFound
	case status == http.StatusBadRequest || status == http.StatusRequestEntityTooLarge || status == http.StatusUnprocessableEntity:
		return provider.ErrInvalidRequest
	case status >= 500: // includes 529 overloaded
		return provider.ErrUnavailable
	default:
		return nil
	}
}
