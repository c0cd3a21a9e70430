// Package openai adapts OpenAI-compatible Chat Completions endpoints to the
// provider contract.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"switchboard/core/cost"
	"switchboard/core/model"
	"switchboard/core/provider"
	"switchboard/core/stream"
	"switchboard/providers/base"

	openai "github.com/sashabaranov/go-openai"
)

const backendName = "openai"

// Options configures the OpenAI adapter.
type Options struct {
	Model        string
	APIKey       string
	BaseURL      string // OpenAI-compatible gateway; empty uses api.openai.com
	Organization string
	MaxTokens    int
}

// chatStream is the subset of openai.ChatCompletionStream the adapter reads.
type chatStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// OpenAI implements Provider over CreateChatCompletionStream.
// OpenAI caches prompt prefixes on its own, so requests never carry cache points.
type OpenAI struct {
	*base.Adapter
	open      func(ctx context.Context, req openai.ChatCompletionRequest) (chatStream, error)
	list      func(ctx context.Context) (openai.ModelsList, error)
	maxTokens int
}

// New creates an OpenAI adapter.
func New(_ context.Context, opts Options, deps base.Deps) (*OpenAI, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	adapter, err := base.New(backendName, cost.Inclusive, model.Options{Raw: opts.Model, PlainIDs: true}, false, deps)
	if err != nil {
		return nil, err
	}

	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}
	if opts.Organization != "" {
		config.OrgID = opts.Organization
	}
	client := openai.NewClientWithConfig(config)

	return &OpenAI{
		Adapter: adapter,
		open: func(ctx context.Context, req openai.ChatCompletionRequest) (chatStream, error) {
			return client.CreateChatCompletionStream(ctx, req)
		},
		list:      client.ListModels,
		maxTokens: opts.MaxTokens,
	}, nil
}

// CreateMessage starts a streaming chat completion.
func (o *OpenAI) CreateMessage(ctx context.Context, system string, history []provider.Message) (provider.StreamIterator, error) {
	if err := base.Validate(history); err != nil {
		return nil, err
	}
	resolved := o.GetModel()
	req, err := buildRequest(resolved.CallAddress, system, history, o.maxTokens, resolved.Info.SupportsReasoning)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	cs, err := o.open(ctx, req)
	if err != nil {
		return nil, classifyErr(err)
	}
	src := stream.FromFunc(func() (openai.ChatCompletionStreamResponse, error) {
		resp, err := cs.Recv()
		if errors.Is(err, io.EOF) {
			return resp, io.EOF
		}
		if err != nil {
			return resp, classifyErr(err)
		}
		return resp, nil
	}, cs.Close)
	return base.Stream(ctx, o.Adapter, src, &translator{}), nil
}

// ListModels returns the endpoint's model list, enriched from the catalog.
func (o *OpenAI) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	listed, err := o.list(ctx)
	if err != nil {
		return nil, classifyErr(err)
	}
	models := make([]provider.ModelInfo, 0, len(listed.Models))
	for _, m := range listed.Models {
		models = append(models, o.Describe(m.ID, m.ID))
	}
	return base.SortModels(models), nil
}

func buildRequest(modelID, system string, history []provider.Message, maxTokens int, reasoning bool) (openai.ChatCompletionRequest, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for i, m := range history {
		msg, err := toChatMessage(m)
		if err != nil {
			return openai.ChatCompletionRequest{}, fmt.Errorf("message %d: %w", i, err)
		}
		msgs = append(msgs, msg)
	}

	req := openai.ChatCompletionRequest{
		Model:         modelID,
		Messages:      msgs,
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	if maxTokens > 0 {
		// Reasoning models reject max_tokens.
		if reasoning {
			req.MaxCompletionTokens = maxTokens
		} else {
			req.MaxTokens = maxTokens
		}
	}
	return req, nil
}

func toChatMessage(m provider.Message) (openai.ChatCompletionMessage, error) {
	var role string
	switch m.Role {
	case provider.RoleUser:
		role = openai.ChatMessageRoleUser
	case provider.RoleAssistant:
		role = openai.ChatMessageRoleAssistant
	default:
		return openai.ChatCompletionMessage{}, fmt.Errorf("%w: unknown role %q", provider.ErrInvalidRequest, m.Role)
	}

	hasImage := false
	for _, b := range m.Content {
		if b.Type == provider.BlockImage {
			hasImage = true
		}
	}
	if !hasImage {
		return openai.ChatCompletionMessage{Role: role, Content: m.Text()}, nil
	}

	parts := make([]openai.ChatMessagePart, 0, len(m.Content))
	for _, b := range m.Content {
		switch b.Type {
		case provider.BlockText:
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: b.Text})
		case provider.BlockImage:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: "data:" + b.MediaType + ";base64," + base64.StdEncoding.EncodeToString(b.Data),
				},
			})
		default:
			return openai.ChatCompletionMessage{}, fmt.Errorf("%w: unknown block type %q", provider.ErrInvalidRequest, b.Type)
		}
	}
	return openai.ChatCompletionMessage{Role: role, MultiContent: parts}, nil
}

// translator maps streamed chat completion chunks onto canonical chunks.
// With include_usage the final chunk has no choices and carries the usage.
type translator struct {
	usage *provider.Usage
}

func (t *translator) Translate(resp openai.ChatCompletionStreamResponse) ([]provider.StreamChunk, error) {
	if u := resp.Usage; u != nil {
		t.usage = &provider.Usage{
			InputTokens:  u.PromptTokens,
			OutputTokens: u.CompletionTokens,
		}
		if u.PromptTokensDetails != nil {
			t.usage.CacheReadTokens = u.PromptTokensDetails.CachedTokens
		}
	}

	var out []provider.StreamChunk
	for _, choice := range resp.Choices {
		if choice.Delta.ReasoningContent != "" {
			out = append(out, provider.StreamChunk{Event: provider.EventReasoning, Text: choice.Delta.ReasoningContent})
		}
		if choice.Delta.Content != "" {
			out = append(out, provider.StreamChunk{Event: provider.EventText, Text: choice.Delta.Content})
		}
	}
	return out, nil
}

func (t *translator) Usage() *provider.Usage {
	return t.usage
}

// classifyErr maps go-openai errors onto provider sentinels.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &provider.BackendError{
			Backend: backendName,
			Kind:    base.KindForStatus(apiErr.HTTPStatusCode),
			Code:    strconv.Itoa(apiErr.HTTPStatusCode),
			Message: apiErr.Message,
			Err:     err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &provider.BackendError{
			Backend: backendName,
			Kind:    base.KindForStatus(reqErr.HTTPStatusCode),
			Code:    strconv.Itoa(reqErr.HTTPStatusCode),
			Err:     err,
		}
	}
	return &provider.BackendError{Backend: backendName, Err: err}
}

var _ provider.Provider = (*OpenAI)(nil)
var _ provider.ModelLister = (*OpenAI)(nil)
