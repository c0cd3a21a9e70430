package ollama

import (
	"context"

	"github.com/ollama/ollama/api"
)

// bridge runs a callback-style chat on its own goroutine and hands each
// response to the reader through a channel. The channel is closed once the
// chat returns; err is only read after that.
type bridge struct {
	events chan api.ChatResponse
	cancel context.CancelFunc
	result error
}

func startBridge(ctx context.Context, chat chatFunc, req *api.ChatRequest) *bridge {
	ctx, cancel := context.WithCancel(ctx)
	b := &bridge{
		events: make(chan api.ChatResponse),
		cancel: cancel,
	}
	go func() {
		defer close(b.events)
		b.result = chat(ctx, req, func(resp api.ChatResponse) error {
			select {
			case b.events <- resp:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return b
}

// close stops the chat. The goroutine exits at its next send or when the
// transport notices the cancelled context.
func (b *bridge) close() error {
	b.cancel()
	return nil
}

func (b *bridge) err() error {
	return classifyErr(b.result)
}
