package bedrock

import (
	"fmt"
	"switchboard/core/cache"
	"switchboard/core/provider"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const defaultMaxTokens = 4096

var cachePoint = brtypes.CachePointBlock{Type: brtypes.CachePointTypeDefault}

func buildConverseStreamInput(modelID, system string, history []provider.Message, placement cache.Placement, maxTokens int) (*bedrockruntime.ConverseStreamInput, error) {
	msgs, err := toBedrockMessages(history, placement)
	if err != nil {
		return nil, err
	}

	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(modelID),
		Messages: msgs,
	}

	if system != "" {
		input.System = []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: system},
		}
		if placement.System {
			input.System = append(input.System, &brtypes.SystemContentBlockMemberCachePoint{Value: cachePoint})
		}
	}

	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	input.InferenceConfig = &brtypes.InferenceConfiguration{
		MaxTokens: aws.Int32(int32(maxTokens)),
	}

	return input, nil
}

func toBedrockMessages(msgs []provider.Message, placement cache.Placement) ([]brtypes.Message, error) {
	out := make([]brtypes.Message, 0, len(msgs))
	for i, m := range msgs {
		bm, err := toBedrockMessage(m)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		if placement.After(i) {
			bm.Content = append(bm.Content, &brtypes.ContentBlockMemberCachePoint{Value: cachePoint})
		}
		out = append(out, bm)
	}
	return out, nil
}

func toBedrockMessage(m provider.Message) (brtypes.Message, error) {
	role, err := toBedrockRole(m.Role)
	if err != nil {
		return brtypes.Message{}, err
	}

	msg := brtypes.Message{Role: role}
	for _, block := range m.Content {
		cb, err := toBedrockBlock(block)
		if err != nil {
			return brtypes.Message{}, err
		}
		msg.Content = append(msg.Content, cb)
	}

	if len(msg.Content) == 0 {
		return brtypes.Message{}, fmt.Errorf("%w: message with role %q has no content", provider.ErrInvalidRequest, m.Role)
	}
	return msg, nil
}

func toBedrockBlock(b provider.ContentBlock) (brtypes.ContentBlock, error) {
	switch b.Type {
	case provider.BlockText:
		return &brtypes.ContentBlockMemberText{Value: b.Text}, nil
	case provider.BlockImage:
		format, err := toImageFormat(b.MediaType)
		if err != nil {
			return nil, err
		}
		return &brtypes.ContentBlockMemberImage{Value: brtypes.ImageBlock{
			Format: format,
			Source: &brtypes.ImageSourceMemberBytes{Value: b.Data},
		}}, nil
	default:
		return nil, fmt.Errorf("%w: unknown block type %q", provider.ErrInvalidRequest, b.Type)
	}
}

func toImageFormat(mediaType string) (brtypes.ImageFormat, error) {
	switch mediaType {
	case "image/png":
		return brtypes.ImageFormatPng, nil
	case "image/jpeg":
		return brtypes.ImageFormatJpeg, nil
	case "image/gif":
		return brtypes.ImageFormatGif, nil
	case "image/webp":
		return brtypes.ImageFormatWebp, nil
	default:
		return "", fmt.Errorf("%w: unsupported image type %q", provider.ErrInvalidRequest, mediaType)
	}
}

func toBedrockRole(r provider.Role) (brtypes.ConversationRole, error) {
	switch r {
	case provider.RoleUser:
		return brtypes.ConversationRoleUser, nil
	case provider.RoleAssistant:
		return brtypes.ConversationRoleAssistant, nil
	default:
		return "", fmt.Errorf("%w: unknown message role %q", provider.ErrInvalidRequest, r)
	}
}
