// Package provider defines the canonical LLM provider contract for switchboard.
// It contains only interfaces and data types, no backend implementation.
package provider

import (
	"context"
)

// Role identifies who authored a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType identifies the kind of a content block.
type BlockType string

const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image"
)

// ContentBlock is one piece of message content.
// Text blocks use Text; image blocks use MediaType and Data (raw bytes).
type ContentBlock struct {
	Type      BlockType
	Text      string
	MediaType string // "image/png", "image/jpeg", "image/gif", "image/webp"
	Data      []byte
}

// TextBlock is a shorthand for a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// Message represents a single conversation turn.
// Its position in the history slice is its ordinal; histories are append-only once sent.
type Message struct {
	Role    Role
	Content []ContentBlock
}

// Text returns the concatenated text blocks of the message.
func (m Message) Text() string {
	var n int
	for _, b := range m.Content {
		if b.Type == BlockText {
			n += len(b.Text)
		}
	}
	buf := make([]byte, 0, n)
	for _, b := range m.Content {
		if b.Type == BlockText {
			buf = append(buf, b.Text...)
		}
	}
	return string(buf)
}

// StreamEvent identifies the type of a streaming chunk.
type StreamEvent int

const (
	EventText      StreamEvent = iota // Partial answer text
	EventReasoning                    // Partial reasoning/thinking text
	EventUsage                        // Token usage with computed cost
)

func (e StreamEvent) String() string {
	switch e {
	case EventText:
		return "text"
	case EventReasoning:
		return "reasoning"
	case EventUsage:
		return "usage"
	default:
		return "unknown"
	}
}

// StreamChunk is one unit of canonical streamed output.
// Fields are relevant per event type; others are zero-valued.
type StreamChunk struct {
	Event StreamEvent
	Text  string  // EventText, EventReasoning
	Usage *Usage  // EventUsage
	Cost  float64 // EventUsage: USD
}

// Usage holds token counts from a single LLM response.
// Whether InputTokens includes cached tokens depends on the backend's accounting convention.
type Usage struct {
	InputTokens      int
	OutputTokens     int
	CacheWriteTokens int
	CacheReadTokens  int
}

// Add returns the field-wise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		InputTokens:      u.InputTokens + o.InputTokens,
		OutputTokens:     u.OutputTokens + o.OutputTokens,
		CacheWriteTokens: u.CacheWriteTokens + o.CacheWriteTokens,
		CacheReadTokens:  u.CacheReadTokens + o.CacheReadTokens,
	}
}

// ModelInfo is the capability and pricing snapshot of a base model.
// Prices are USD per million tokens. A nil cache price means the backend does not bill it.
type ModelInfo struct {
	ID              string // Base model identifier (no region prefix)
	Name            string // Human-readable display name
	ContextWindow   int
	MaxOutputTokens int

	InputCostPer1M      float64
	OutputCostPer1M     float64
	CacheWriteCostPer1M *float64
	CacheReadCostPer1M  *float64

	SupportsPromptCache bool
	MaxCachePoints      int
	MinCacheTokens      int // minimum estimated tokens per cached segment
	SupportsReasoning   bool
}

// ResolvedModel is what request builders and cost calculation consume.
// CallAddress is fixed for the adapter's lifetime; Info may be replaced when a router
// reports the model it actually invoked.
type ResolvedModel struct {
	CallAddress string
	Info        ModelInfo
}

// StreamIterator provides chunk-by-chunk iteration over a streamed response.
// Callers loop on Next() until it returns io.EOF. It is single-consumer and not restartable.
type StreamIterator interface {
	Next() (StreamChunk, error)
	Close() error
}

// Provider is the uniform contract every backend adapter implements.
type Provider interface {
	// CreateMessage starts a streamed completion. Cancelling ctx closes the transport.
	CreateMessage(ctx context.Context, system string, history []Message) (StreamIterator, error)
	// GetModel returns the current resolved model. It never performs I/O.
	GetModel() ResolvedModel
	// CountTokens estimates tokens for content not yet sent, offline.
	CountTokens(content []ContentBlock) (int, error)
}

// ModelLister is implemented by adapters that can enumerate the backend's model catalog.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}
