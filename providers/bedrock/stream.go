package bedrock

import (
	"fmt"
	"switchboard/core/model"
	"switchboard/core/provider"

	"github.com/aws/aws-sdk-go-v2/aws"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// eventStream is the interface satisfied by bedrockruntime's ConverseStreamEventStream.
// Defined as an interface for testability.
type eventStream interface {
	Events() <-chan brtypes.ConverseStreamOutput
	Close() error
	Err() error
}

// translator maps ConverseStream events onto canonical chunks. Router traces
// are forwarded to the resolver as they arrive.
type translator struct {
	resolver *model.Resolver
	usage    *provider.Usage
}

func (t *translator) Translate(event brtypes.ConverseStreamOutput) ([]provider.StreamChunk, error) {
	switch v := event.(type) {
	case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
		return t.handleBlockDelta(v.Value)

	case *brtypes.ConverseStreamOutputMemberMetadata:
		t.handleMetadata(v.Value)
		return nil, nil

	case *brtypes.ConverseStreamOutputMemberMessageStart,
		*brtypes.ConverseStreamOutputMemberContentBlockStart,
		*brtypes.ConverseStreamOutputMemberContentBlockStop,
		*brtypes.ConverseStreamOutputMemberMessageStop:
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: bedrock event %T", provider.ErrMalformedEvent, event)
	}
}

func (t *translator) Usage() *provider.Usage {
	return t.usage
}

func (t *translator) handleBlockDelta(event brtypes.ContentBlockDeltaEvent) ([]provider.StreamChunk, error) {
	switch delta := event.Delta.(type) {
	case *brtypes.ContentBlockDeltaMemberText:
		if delta.Value == "" {
			return nil, nil
		}
		return []provider.StreamChunk{{Event: provider.EventText, Text: delta.Value}}, nil

	case *brtypes.ContentBlockDeltaMemberReasoningContent:
		// Signatures and redacted reasoning carry no readable text.
		if text, ok := delta.Value.(*brtypes.ReasoningContentBlockDeltaMemberText); ok && text.Value != "" {
			return []provider.StreamChunk{{Event: provider.EventReasoning, Text: text.Value}}, nil
		}
		return nil, nil

	case *brtypes.ContentBlockDeltaMemberToolUse:
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: bedrock delta %T", provider.ErrMalformedEvent, event.Delta)
	}
}

func (t *translator) handleMetadata(meta brtypes.ConverseStreamMetadataEvent) {
	if meta.Trace != nil && meta.Trace.PromptRouter != nil {
		t.resolver.Observe(aws.ToString(meta.Trace.PromptRouter.InvokedModelId))
	}
	if u := meta.Usage; u != nil {
		t.usage = &provider.Usage{
			InputTokens:      int(aws.ToInt32(u.InputTokens)),
			OutputTokens:     int(aws.ToInt32(u.OutputTokens)),
			CacheReadTokens:  int(aws.ToInt32(u.CacheReadInputTokens)),
			CacheWriteTokens: int(aws.ToInt32(u.CacheWriteInputTokens)),
		}
	}
}
