// Package ollama adapts a local Ollama server's chat API to the provider contract.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"switchboard/core/cost"
	"switchboard/core/model"
	"switchboard/core/provider"
	"switchboard/core/stream"
	"switchboard/providers/base"

	"github.com/ollama/ollama/api"
)

const backendName = "ollama"

// Options configures the Ollama adapter.
type Options struct {
	Model     string
	Host      string // empty uses OLLAMA_HOST or the default local address
	Think     bool   // request thinking output from models that support it
	MaxTokens int
}

// chatFunc matches api.Client.Chat.
type chatFunc func(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error

// Ollama implements Provider over the streaming /api/chat endpoint.
type Ollama struct {
	*base.Adapter
	chat      chatFunc
	list      func(ctx context.Context) (*api.ListResponse, error)
	think     bool
	maxTokens int
}

// New creates an Ollama adapter. Local models are free, so every usage chunk
// costs zero unless the catalog is overridden.
func New(_ context.Context, opts Options, deps base.Deps) (*Ollama, error) {
	adapter, err := base.New(backendName, cost.Exclusive, model.Options{Raw: opts.Model, PlainIDs: true}, false, deps)
	if err != nil {
		return nil, err
	}

	var client *api.Client
	if opts.Host != "" {
		baseURL, err := parseHost(opts.Host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host: %w", err)
		}
		client = api.NewClient(baseURL, &http.Client{})
	} else {
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("creating ollama client: %w", err)
		}
	}

	return &Ollama{
		Adapter:   adapter,
		chat:      client.Chat,
		list:      client.List,
		think:     opts.Think,
		maxTokens: opts.MaxTokens,
	}, nil
}

// parseHost accepts a bare host:port as well as a full URL.
func parseHost(host string) (*url.URL, error) {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(host)
}

// CreateMessage starts a streaming chat. The callback-based client runs on its
// own goroutine and is stopped when the stream is closed or ctx is cancelled.
func (o *Ollama) CreateMessage(ctx context.Context, system string, history []provider.Message) (provider.StreamIterator, error) {
	if err := base.Validate(history); err != nil {
		return nil, err
	}
	req, err := buildRequest(o.GetModel().CallAddress, system, history, o.think, o.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	b := startBridge(ctx, o.chat, req)
	src := stream.FromChannel(b.events, b.close, b.err)
	return base.Stream(ctx, o.Adapter, src, &translator{}), nil
}

// ListModels returns the locally pulled models.
func (o *Ollama) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	resp, err := o.list(ctx)
	if err != nil {
		return nil, classifyErr(err)
	}
	models := make([]provider.ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		info := o.Describe(m.Model, m.Name)
		if info.ContextWindow == 0 {
			info.ContextWindow = o.GetModel().Info.ContextWindow
		}
		models = append(models, info)
	}
	return base.SortModels(models), nil
}

func buildRequest(modelID, system string, history []provider.Message, think bool, maxTokens int) (*api.ChatRequest, error) {
	msgs := make([]api.Message, 0, len(history)+1)
	if system != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: system})
	}
	for i, m := range history {
		if m.Role != provider.RoleUser && m.Role != provider.RoleAssistant {
			return nil, fmt.Errorf("%w: message %d: unknown role %q", provider.ErrInvalidRequest, i, m.Role)
		}
		msg := api.Message{Role: string(m.Role), Content: m.Text()}
		for _, b := range m.Content {
			switch b.Type {
			case provider.BlockText:
			case provider.BlockImage:
				msg.Images = append(msg.Images, api.ImageData(b.Data))
			default:
				return nil, fmt.Errorf("%w: message %d: unknown block type %q", provider.ErrInvalidRequest, i, b.Type)
			}
		}
		msgs = append(msgs, msg)
	}

	streaming := true
	req := &api.ChatRequest{
		Model:    modelID,
		Messages: msgs,
		Stream:   &streaming,
		Options:  map[string]any{},
	}
	if think {
		req.Think = &api.ThinkValue{Value: true}
	}
	if maxTokens > 0 {
		req.Options["num_predict"] = maxTokens
	}
	return req, nil
}

// translator maps chat responses onto canonical chunks. The final response
// (Done) carries the prompt and completion counts.
type translator struct {
	usage *provider.Usage
}

func (t *translator) Translate(resp api.ChatResponse) ([]provider.StreamChunk, error) {
	var out []provider.StreamChunk
	if resp.Message.Thinking != "" {
		out = append(out, provider.StreamChunk{Event: provider.EventReasoning, Text: resp.Message.Thinking})
	}
	if resp.Message.Content != "" {
		out = append(out, provider.StreamChunk{Event: provider.EventText, Text: resp.Message.Content})
	}
	if resp.Done {
		t.usage = &provider.Usage{
			InputTokens:  resp.PromptEvalCount,
			OutputTokens: resp.EvalCount,
		}
	}
	return out, nil
}

func (t *translator) Usage() *provider.Usage {
	return t.usage
}

// classifyErr maps Ollama status errors onto provider sentinels.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return &provider.BackendError{
			Backend: backendName,
			Kind:    base.KindForStatus(statusErr.StatusCode),
			Code:    strconv.Itoa(statusErr.StatusCode),
			Message: statusErr.ErrorMessage,
			Err:     err,
		}
	}
	// The server is local; a refused connection means it is not running.
	return &provider.BackendError{Backend: backendName, Kind: provider.ErrUnavailable, Err: err}
}

var _ provider.Provider = (*Ollama)(nil)
var _ provider.ModelLister = (*Ollama)(nil)
