package anthropic

import (
	"encoding/base64"
	"fmt"
	"switchboard/core/cache"
	"switchboard/core/provider"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

const defaultMaxTokens = 4096

func buildParams(modelID, system string, history []provider.Message, placement cache.Placement, maxTokens, thinkingBudget int) (anthropic.MessageNewParams, error) {
	msgs, err := toMessageParams(history, placement)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelID),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if system != "" {
		block := anthropic.TextBlockParam{Text: system}
		if placement.System {
			block.CacheControl = anthropic.NewCacheControlEphemeralParam()
		}
		params.System = []anthropic.TextBlockParam{block}
	}
	// The budget must stay below max_tokens.
	if thinkingBudget > 0 && thinkingBudget < maxTokens {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(thinkingBudget))
	}
	return params, nil
}

func toMessageParams(msgs []provider.Message, placement cache.Placement) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for i, m := range msgs {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Content))
		for _, b := range m.Content {
			block, err := toBlockParam(b)
			if err != nil {
				return nil, fmt.Errorf("message %d: %w", i, err)
			}
			blocks = append(blocks, block)
		}
		if len(blocks) == 0 {
			return nil, fmt.Errorf("%w: message %d has no content", provider.ErrInvalidRequest, i)
		}
		if placement.After(i) {
			markCached(blocks[len(blocks)-1])
		}

		switch m.Role {
		case provider.RoleUser:
			out = append(out, anthropic.NewUserMessage(blocks...))
		case provider.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("%w: message %d: unknown role %q", provider.ErrInvalidRequest, i, m.Role)
		}
	}
	return out, nil
}

func toBlockParam(b provider.ContentBlock) (anthropic.ContentBlockParamUnion, error) {
	switch b.Type {
	case provider.BlockText:
		return anthropic.NewTextBlock(b.Text), nil
	case provider.BlockImage:
		switch b.MediaType {
		case "image/png", "image/jpeg", "image/gif", "image/webp":
		default:
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("%w: unsupported image type %q", provider.ErrInvalidRequest, b.MediaType)
		}
		return anthropic.NewImageBlockBase64(b.MediaType, base64.StdEncoding.EncodeToString(b.Data)), nil
	default:
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("%w: unknown block type %q", provider.ErrInvalidRequest, b.Type)
	}
}

// markCached sets an ephemeral cache_control breakpoint on the block.
// The union holds its variant by pointer, so the caller's slice sees the change.
func markCached(block anthropic.ContentBlockParamUnion) {
	switch {
	case block.OfText != nil:
		block.OfText.CacheControl = anthropic.NewCacheControlEphemeralParam()
	case block.OfImage != nil:
		block.OfImage.CacheControl = anthropic.NewCacheControlEphemeralParam()
	}
}
