package ollama

import (
	"context"
	"errors"
	"net/http"
	"switchboard/catalog"
	"switchboard/core/cost"
	"switchboard/core/model"
	"switchboard/core/provider"
	"switchboard/core/stream"
	"switchboard/providers/base"
	"syscall"
	"testing"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

func newTestOllama(t *testing.T, chat chatFunc) *Ollama {
	t.Helper()
	adapter, err := base.New(backendName, cost.Exclusive, model.Options{Raw: "llama3.2:latest", PlainIDs: true}, false, base.Deps{
		Catalog: catalog.Ollama(),
		Log:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("base.New: %v", err)
	}
	return &Ollama{Adapter: adapter, chat: chat}
}

// replay returns a chat function that sends the given responses in order.
func replay(responses ...api.ChatResponse) chatFunc {
	return func(_ context.Context, _ *api.ChatRequest, fn api.ChatResponseFunc) error {
		for _, r := range responses {
			if err := fn(r); err != nil {
				return err
			}
		}
		return nil
	}
}

func content(text, thinking string) api.ChatResponse {
	return api.ChatResponse{Message: api.Message{Role: "assistant", Content: text, Thinking: thinking}}
}

func userTurn(text string) []provider.Message {
	return []provider.Message{{Role: provider.RoleUser, Content: []provider.ContentBlock{provider.TextBlock(text)}}}
}

func TestCreateMessageStream(t *testing.T) {
	final := api.ChatResponse{Done: true, DoneReason: "stop"}
	final.PromptEvalCount = 26
	final.EvalCount = 12

	var got *api.ChatRequest
	chat := replay(content("", "pondering"), content("Hello", ""), content(" world", ""), final)
	o := newTestOllama(t, func(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error {
		got = req
		return chat(ctx, req, fn)
	})

	it, err := o.CreateMessage(t.Context(), "be brief", userTurn("Hi"))
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	chunks, err := stream.Drain(it)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if got.Model != "llama3.2:latest" || got.Stream == nil || !*got.Stream {
		t.Errorf("request = %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", got.Messages)
	}

	want := []provider.StreamChunk{
		{Event: provider.EventReasoning, Text: "pondering"},
		{Event: provider.EventText, Text: "Hello"},
		{Event: provider.EventText, Text: " world"},
	}
	if len(chunks) != len(want)+1 {
		t.Fatalf("got %d chunks, want %d: %+v", len(chunks), len(want)+1, chunks)
	}
	for i, w := range want {
		if chunks[i].Event != w.Event || chunks[i].Text != w.Text {
			t.Errorf("chunk %d = %+v, want %+v", i, chunks[i], w)
		}
	}
	last := chunks[len(chunks)-1]
	if last.Event != provider.EventUsage || last.Usage.InputTokens != 26 || last.Usage.OutputTokens != 12 {
		t.Errorf("usage chunk = %+v", last)
	}
	if last.Cost != 0 {
		t.Errorf("local models are free, got cost %v", last.Cost)
	}
}

func TestCreateMessageStatusError(t *testing.T) {
	o := newTestOllama(t, func(_ context.Context, _ *api.ChatRequest, fn api.ChatResponseFunc) error {
		return api.StatusError{StatusCode: http.StatusNotFound, Status: "404 Not Found", ErrorMessage: `model "llama3.2:latest" not found, try pulling it first`}
	})
	it, err := o.CreateMessage(t.Context(), "", userTurn("Hi"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = stream.Drain(it)
	if !errors.Is(err, provider.ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
	var be *provider.BackendError
	if !errors.As(err, &be) || be.Code != "404" {
		t.Errorf("backend error = %+v", be)
	}
}

func TestClassifyConnectionRefused(t *testing.T) {
	err := classifyErr(syscall.ECONNREFUSED)
	if !errors.Is(err, provider.ErrUnavailable) || !errors.Is(err, syscall.ECONNREFUSED) {
		t.Errorf("got %v", err)
	}
	if err := classifyErr(context.Canceled); err != context.Canceled {
		t.Errorf("context errors should pass through, got %v", err)
	}
}

func TestCloseStopsBridge(t *testing.T) {
	exited := make(chan error, 1)
	o := newTestOllama(t, func(_ context.Context, _ *api.ChatRequest, fn api.ChatResponseFunc) error {
		// An endless generation: only cancellation ends it.
		for {
			if err := fn(content("tok ", "")); err != nil {
				exited <- err
				return err
			}
		}
	})

	it, err := o.CreateMessage(t.Context(), "", userTurn("Hi"))
	if err != nil {
		t.Fatal(err)
	}
	for range 3 {
		if _, err := it.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if err := it.Close(); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-exited:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("bridge exited with %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bridge goroutine did not exit after Close")
	}
}

func TestCancelStopsStream(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	o := newTestOllama(t, func(ctx context.Context, _ *api.ChatRequest, fn api.ChatResponseFunc) error {
		if err := fn(content("first", "")); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	})

	it, err := o.CreateMessage(ctx, "", userTurn("Hi"))
	if err != nil {
		t.Fatal(err)
	}
	if chunk, err := it.Next(); err != nil || chunk.Text != "first" {
		t.Fatalf("first chunk = %+v, %v", chunk, err)
	}
	cancel()
	chunks, err := stream.Drain(it)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	for _, c := range chunks {
		if c.Event == provider.EventUsage {
			t.Error("a cancelled stream must not report usage")
		}
	}
}

func TestBuildRequest(t *testing.T) {
	history := []provider.Message{{Role: provider.RoleUser, Content: []provider.ContentBlock{
		provider.TextBlock("what is "),
		{Type: provider.BlockImage, MediaType: "image/png", Data: []byte("png")},
		provider.TextBlock("this?"),
	}}}
	req, err := buildRequest("llava", "", history, true, 256)
	if err != nil {
		t.Fatal(err)
	}
	msg := req.Messages[0]
	if msg.Content != "what is this?" || len(msg.Images) != 1 || string(msg.Images[0]) != "png" {
		t.Errorf("message = %+v", msg)
	}
	if req.Think == nil || req.Think.Value != true {
		t.Errorf("think = %+v", req.Think)
	}
	if req.Options["num_predict"] != 256 {
		t.Errorf("options = %v", req.Options)
	}

	_, err = buildRequest("llava", "", []provider.Message{{Role: "tool", Content: []provider.ContentBlock{provider.TextBlock("x")}}}, false, 0)
	if !errors.Is(err, provider.ErrInvalidRequest) {
		t.Errorf("unknown role: got %v", err)
	}
}

func TestListModels(t *testing.T) {
	o := newTestOllama(t, nil)
	o.list = func(context.Context) (*api.ListResponse, error) {
		return &api.ListResponse{Models: []api.ListModelResponse{
			{Name: "qwen3:8b", Model: "qwen3:8b"},
			{Name: "llama3.2:latest", Model: "llama3.2:latest"},
		}}, nil
	}
	models, err := o.ListModels(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 || models[0].ID != "llama3.2:latest" || models[1].ID != "qwen3:8b" {
		t.Fatalf("models = %+v", models)
	}
	if models[0].ContextWindow == 0 || models[0].InputCostPer1M != 0 {
		t.Errorf("local models should get the default window and zero price: %+v", models[0])
	}
}

func TestParseHost(t *testing.T) {
	tests := map[string]string{
		"localhost:11434":        "http://localhost:11434",
		"http://gpu-box:11434":   "http://gpu-box:11434",
		"https://ollama.example": "https://ollama.example",
	}
	for in, want := range tests {
		u, err := parseHost(in)
		if err != nil {
			t.Fatalf("parseHost(%q): %v", in, err)
		}
		if u.String() != want {
			t.Errorf("parseHost(%q) = %q, want %q", in, u.String(), want)
		}
	}
}
