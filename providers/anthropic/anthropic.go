// Package anthropic adapts the Anthropic Messages API to the provider contract.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"switchboard/core/cost"
	"switchboard/core/model"
	"switchboard/core/provider"
	"switchboard/core/stream"
	"switchboard/providers/base"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const backendName = "anthropic"

// Options configures the Anthropic adapter.
type Options struct {
	Model          string
	APIKey         string
	BaseURL        string // empty uses the public endpoint
	PromptCache    bool
	MaxTokens      int
	ThinkingBudget int // extended thinking budget; 0 disables
}

// Anthropic implements Provider over Messages.NewStreaming.
type Anthropic struct {
	*base.Adapter
	open           func(ctx context.Context, params anthropic.MessageNewParams) eventStream
	list           func(ctx context.Context) ([]anthropic.ModelInfo, error)
	maxTokens      int
	thinkingBudget int
}

// New creates an Anthropic adapter.
func New(_ context.Context, opts Options, deps base.Deps) (*Anthropic, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	adapter, err := base.New(backendName, cost.Exclusive, model.Options{Raw: opts.Model, PlainIDs: true}, opts.PromptCache, deps)
	if err != nil {
		return nil, err
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Anthropic{
		Adapter: adapter,
		open: func(ctx context.Context, params anthropic.MessageNewParams) eventStream {
			return client.Messages.NewStreaming(ctx, params)
		},
		list: func(ctx context.Context) ([]anthropic.ModelInfo, error) {
			page, err := client.Models.List(ctx, anthropic.ModelListParams{Limit: anthropic.Int(1000)})
			if err != nil {
				return nil, err
			}
			return page.Data, nil
		},
		maxTokens:      opts.MaxTokens,
		thinkingBudget: opts.ThinkingBudget,
	}, nil
}

// CreateMessage starts a streaming conversation. Transport failures surface
// from the first call to Next.
func (a *Anthropic) CreateMessage(ctx context.Context, system string, history []provider.Message) (provider.StreamIterator, error) {
	if err := base.Validate(history); err != nil {
		return nil, err
	}
	placement, err := a.Place(ctx, system, history)
	if err != nil {
		return nil, fmt.Errorf("placing cache points: %w", err)
	}

	resolved := a.GetModel()
	budget := 0
	if resolved.Info.SupportsReasoning {
		budget = a.thinkingBudget
	}
	params, err := buildParams(resolved.CallAddress, system, history, placement, a.maxTokens, budget)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	es := a.open(ctx, params)
	src := stream.FromFunc(func() (anthropic.MessageStreamEventUnion, error) {
		if es.Next() {
			return es.Current(), nil
		}
		if err := es.Err(); err != nil {
			return anthropic.MessageStreamEventUnion{}, classifyErr(err)
		}
		return anthropic.MessageStreamEventUnion{}, io.EOF
	}, es.Close)
	return base.Stream(ctx, a.Adapter, src, &translator{}), nil
}

// ListModels returns the models the API key can use, enriched from the catalog.
func (a *Anthropic) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	listed, err := a.list(ctx)
	if err != nil {
		return nil, classifyErr(err)
	}
	models := make([]provider.ModelInfo, 0, len(listed))
	for _, m := range listed {
		models = append(models, a.Describe(m.ID, m.DisplayName))
	}
	return base.SortModels(models), nil
}

// classifyErr maps API status codes onto provider sentinels.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return &provider.BackendError{Backend: backendName, Err: err}
	}
	return &provider.BackendError{
		Backend: backendName,
		Kind:    base.KindForStatus(apiErr.StatusCode),
		Code:    strconv.Itoa(apiErr.StatusCode),
		Err:     err,
	}
}

var _ provider.Provider = (*Anthropic)(nil)
var _ provider.ModelLister = (*Anthropic)(nil)
