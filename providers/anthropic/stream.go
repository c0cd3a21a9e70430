package anthropic

import (
	"fmt"
	"switchboard/core/provider"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

// eventStream is the subset of ssestream.Stream the adapter reads.
type eventStream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
	Close() error
}

// translator maps Messages API stream events onto canonical chunks.
// message_start carries the prompt side of the usage; message_delta carries
// the running output count and, on newer API versions, final input figures.
type translator struct {
	usage *provider.Usage
}

func (t *translator) Translate(event anthropic.MessageStreamEventUnion) ([]provider.StreamChunk, error) {
	switch ev := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		u := ev.Message.Usage
		t.usage = &provider.Usage{
			InputTokens:      int(u.InputTokens),
			OutputTokens:     int(u.OutputTokens),
			CacheWriteTokens: int(u.CacheCreationInputTokens),
			CacheReadTokens:  int(u.CacheReadInputTokens),
		}
		return nil, nil

	case anthropic.ContentBlockDeltaEvent:
		switch d := ev.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			if d.Text == "" {
				return nil, nil
			}
			return []provider.StreamChunk{{Event: provider.EventText, Text: d.Text}}, nil
		case anthropic.ThinkingDelta:
			if d.Thinking == "" {
				return nil, nil
			}
			return []provider.StreamChunk{{Event: provider.EventReasoning, Text: d.Thinking}}, nil
		case anthropic.SignatureDelta, anthropic.InputJSONDelta:
			return nil, nil
		default:
			return nil, fmt.Errorf("%w: anthropic delta %q", provider.ErrMalformedEvent, ev.Delta.Type)
		}

	case anthropic.MessageDeltaEvent:
		t.mergeDelta(ev.Usage)
		return nil, nil

	case anthropic.ContentBlockStartEvent, anthropic.ContentBlockStopEvent, anthropic.MessageStopEvent:
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: anthropic event %q", provider.ErrMalformedEvent, event.Type)
	}
}

func (t *translator) Usage() *provider.Usage {
	return t.usage
}

func (t *translator) mergeDelta(u anthropic.MessageDeltaUsage) {
	if t.usage == nil {
		t.usage = &provider.Usage{}
	}
	t.usage.OutputTokens = int(u.OutputTokens)
	if u.InputTokens > 0 {
		t.usage.InputTokens = int(u.InputTokens)
	}
	if u.CacheCreationInputTokens > 0 {
		t.usage.CacheWriteTokens = int(u.CacheCreationInputTokens)
	}
	if u.CacheReadInputTokens > 0 {
		t.usage.CacheReadTokens = int(u.CacheReadInputTokens)
	}
}
