package bedrock

import (
	"context"
	"errors"
	"io"
	"strings"
	"switchboard/catalog"
	"switchboard/core/cache"
	"switchboard/core/cost"
	"switchboard/core/model"
	"switchboard/core/provider"
	"switchboard/core/stream"
	"switchboard/core/tokens"
	"switchboard/providers/base"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrock/types"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

const sonnet4 = "anthropic.claude-sonnet-4-20250514-v1:0"

// --- Conversion tests ---

func TestToBedrockRole(t *testing.T) {
	got, err := toBedrockRole(provider.RoleUser)
	if err != nil || got != brtypes.ConversationRoleUser {
		t.Errorf("RoleUser: got %q, %v", got, err)
	}
	got, err = toBedrockRole(provider.RoleAssistant)
	if err != nil || got != brtypes.ConversationRoleAssistant {
		t.Errorf("RoleAssistant: got %q, %v", got, err)
	}
	if _, err := toBedrockRole(provider.Role("system")); !errors.Is(err, provider.ErrInvalidRequest) {
		t.Errorf("unknown role: got %v, want ErrInvalidRequest", err)
	}
}

func TestToBedrockMessagesWithCachePoints(t *testing.T) {
	msgs := []provider.Message{
		{Role: provider.RoleUser, Content: []provider.ContentBlock{provider.TextBlock("Hello")}},
		{Role: provider.RoleAssistant, Content: []provider.ContentBlock{provider.TextBlock("Hi.")}},
		{Role: provider.RoleUser, Content: []provider.ContentBlock{
			provider.TextBlock("What is this?"),
			{Type: provider.BlockImage, MediaType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
		}},
	}

	out, err := toBedrockMessages(msgs, cache.Placement{Messages: cache.Plan{0, 2}})
	if err != nil {
		t.Fatalf("toBedrockMessages: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(out))
	}

	// Message 0: text + cache point.
	if len(out[0].Content) != 2 {
		t.Fatalf("msg 0: expected 2 blocks, got %d", len(out[0].Content))
	}
	if _, ok := out[0].Content[1].(*brtypes.ContentBlockMemberCachePoint); !ok {
		t.Errorf("msg 0 block 1: expected cache point, got %T", out[0].Content[1])
	}

	// Message 1: no cache point.
	if len(out[1].Content) != 1 {
		t.Errorf("msg 1: expected 1 block, got %d", len(out[1].Content))
	}

	// Message 2: text, image, cache point.
	if len(out[2].Content) != 3 {
		t.Fatalf("msg 2: expected 3 blocks, got %d", len(out[2].Content))
	}
	img, ok := out[2].Content[1].(*brtypes.ContentBlockMemberImage)
	if !ok {
		t.Fatalf("msg 2 block 1: expected image, got %T", out[2].Content[1])
	}
	if img.Value.Format != brtypes.ImageFormatPng {
		t.Errorf("image format: got %q", img.Value.Format)
	}
	if src, ok := img.Value.Source.(*brtypes.ImageSourceMemberBytes); !ok || len(src.Value) != 4 {
		t.Errorf("image source: got %#v", img.Value.Source)
	}
	if _, ok := out[2].Content[2].(*brtypes.ContentBlockMemberCachePoint); !ok {
		t.Errorf("msg 2 block 2: expected cache point, got %T", out[2].Content[2])
	}
}

func TestToBedrockMessageErrors(t *testing.T) {
	tests := []struct {
		name string
		msg  provider.Message
	}{
		{"unknown role", provider.Message{Role: "moderator", Content: []provider.ContentBlock{provider.TextBlock("hi")}}},
		{"empty", provider.Message{Role: provider.RoleUser}},
		{"bad image", provider.Message{Role: provider.RoleUser, Content: []provider.ContentBlock{{Type: provider.BlockImage, MediaType: "image/tiff", Data: []byte{1}}}}},
		{"unknown block", provider.Message{Role: provider.RoleUser, Content: []provider.ContentBlock{{Type: "audio"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := toBedrockMessage(tt.msg); !errors.Is(err, provider.ErrInvalidRequest) {
				t.Errorf("got %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestBuildConverseStreamInput(t *testing.T) {
	history := []provider.Message{{Role: provider.RoleUser, Content: []provider.ContentBlock{provider.TextBlock("hi")}}}

	input, err := buildConverseStreamInput("us."+sonnet4, "be brief", history, cache.Placement{System: true}, 1024)
	if err != nil {
		t.Fatalf("buildConverseStreamInput: %v", err)
	}
	if aws.ToString(input.ModelId) != "us."+sonnet4 {
		t.Errorf("model id: got %q", aws.ToString(input.ModelId))
	}
	if len(input.System) != 2 {
		t.Fatalf("expected system text + cache point, got %d blocks", len(input.System))
	}
	if _, ok := input.System[1].(*brtypes.SystemContentBlockMemberCachePoint); !ok {
		t.Errorf("system block 1: expected cache point, got %T", input.System[1])
	}
	if aws.ToInt32(input.InferenceConfig.MaxTokens) != 1024 {
		t.Errorf("max tokens: got %d", aws.ToInt32(input.InferenceConfig.MaxTokens))
	}
}

func TestBuildConverseStreamInputDefaults(t *testing.T) {
	history := []provider.Message{{Role: provider.RoleUser, Content: []provider.ContentBlock{provider.TextBlock("hi")}}}
	input, err := buildConverseStreamInput(sonnet4, "", history, cache.Placement{System: true}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if input.System != nil {
		t.Errorf("expected no system blocks without a system prompt, got %d", len(input.System))
	}
	if aws.ToInt32(input.InferenceConfig.MaxTokens) != defaultMaxTokens {
		t.Errorf("max tokens: got %d, want %d", aws.ToInt32(input.InferenceConfig.MaxTokens), defaultMaxTokens)
	}
}

// --- Error classification tests ---

type stubAPIError struct {
	code    string
	message string
}

func (e *stubAPIError) Error() string                 { return e.code + ": " + e.message }
func (e *stubAPIError) ErrorCode() string             { return e.code }
func (e *stubAPIError) ErrorMessage() string          { return e.message }
func (e *stubAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultServer }

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantSent error
	}{
		{"throttling", &stubAPIError{code: "ThrottlingException", message: "slow down"}, provider.ErrThrottled},
		{"quota", &stubAPIError{code: "ServiceQuotaExceededException", message: "quota"}, provider.ErrThrottled},
		{"access denied", &stubAPIError{code: "AccessDeniedException", message: "nope"}, provider.ErrAccessDenied},
		{"resource not found", &stubAPIError{code: "ResourceNotFoundException", message: "gone"}, provider.ErrModelNotFound},
		{"model not ready", &stubAPIError{code: "ModelNotReadyException", message: "warming"}, provider.ErrModelNotReady},
		{"validation", &stubAPIError{code: "ValidationException", message: "bad"}, provider.ErrInvalidRequest},
		{"stream error", &stubAPIError{code: "ModelStreamErrorException", message: "broke"}, provider.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyErr(tt.err)
			if !errors.Is(got, tt.wantSent) {
				t.Errorf("expected errors.Is(%v, %v) = true", got, tt.wantSent)
			}
			var be *provider.BackendError
			if !errors.As(got, &be) {
				t.Fatalf("expected *provider.BackendError, got %T", got)
			}
			if be.Backend != "bedrock" || be.Code != tt.err.(*stubAPIError).code {
				t.Errorf("backend error = %+v", be)
			}
			if !errors.Is(got, tt.err) {
				t.Error("cause is not preserved")
			}
		})
	}

	if classifyErr(nil) != nil {
		t.Error("classifyErr(nil) should be nil")
	}
	if err := classifyErr(context.Canceled); err != context.Canceled {
		t.Errorf("context errors should pass through, got %v", err)
	}
	generic := classifyErr(errors.New("timeout"))
	var be *provider.BackendError
	if !errors.As(generic, &be) || be.Kind != nil {
		t.Errorf("generic error should be an unclassified BackendError, got %#v", generic)
	}
}

// --- Control plane tests ---

type stubControl struct {
	summaries []bedrocktypes.FoundationModelSummary
	listErr   error
	profile   *bedrock.GetInferenceProfileOutput
	profErr   error
	lookups   []string
}

func (s *stubControl) ListFoundationModels(_ context.Context, _ *bedrock.ListFoundationModelsInput, _ ...func(*bedrock.Options)) (*bedrock.ListFoundationModelsOutput, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return &bedrock.ListFoundationModelsOutput{ModelSummaries: s.summaries}, nil
}

func (s *stubControl) GetInferenceProfile(_ context.Context, in *bedrock.GetInferenceProfileInput, _ ...func(*bedrock.Options)) (*bedrock.GetInferenceProfileOutput, error) {
	s.lookups = append(s.lookups, aws.ToString(in.InferenceProfileIdentifier))
	if s.profErr != nil {
		return nil, s.profErr
	}
	return s.profile, nil
}

func streamableModel(id, name string) bedrocktypes.FoundationModelSummary {
	return bedrocktypes.FoundationModelSummary{
		ModelId:                    aws.String(id),
		ModelName:                  aws.String(name),
		ResponseStreamingSupported: aws.Bool(true),
		OutputModalities:           []bedrocktypes.ModelModality{bedrocktypes.ModelModalityText},
	}
}

func TestListModelsFiltersAndEnriches(t *testing.T) {
	noStream := streamableModel("anthropic.claude-instant-v1", "Claude Instant")
	noStream.ResponseStreamingSupported = aws.Bool(false)
	embed := streamableModel("amazon.titan-embed-text-v2:0", "Titan Embeddings")
	embed.OutputModalities = []bedrocktypes.ModelModality{bedrocktypes.ModelModalityEmbedding}
	nilStream := streamableModel("anthropic.claude-nil", "Claude Nil")
	nilStream.ResponseStreamingSupported = nil

	control := &stubControl{summaries: []bedrocktypes.FoundationModelSummary{
		streamableModel("anthropic.claude-3-haiku-20240307-v1:0", "Claude 3 Haiku"),
		streamableModel("anthropic.claude-9-sonnet-20300101-v1:0", "Claude 9 Sonnet"),
		noStream, embed, nilStream,
	}}

	b, _ := newTestBedrock(t, sonnet4, false, nil)
	b.control = control
	models, err := b.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d: %+v", len(models), models)
	}

	// Sorted by ID: the known 3-haiku sorts before the unknown 9-sonnet.
	if models[0].ID != "anthropic.claude-3-haiku-20240307-v1:0" || models[0].InputCostPer1M != 0.25 {
		t.Errorf("model 0 not enriched from catalog: %+v", models[0])
	}
	if models[1].Name != "Claude 9 Sonnet" || models[1].ContextWindow != 0 {
		t.Errorf("model 1 should carry basic info only: %+v", models[1])
	}
}

func TestListModelsAPIError(t *testing.T) {
	b, _ := newTestBedrock(t, sonnet4, false, nil)
	b.control = &stubControl{listErr: &stubAPIError{code: "AccessDeniedException", message: "no"}}
	_, err := b.ListModels(context.Background())
	if !errors.Is(err, provider.ErrAccessDenied) {
		t.Errorf("expected provider.ErrAccessDenied, got %v", err)
	}
}

// --- Streaming tests ---

type fakeStream struct {
	ch     chan brtypes.ConverseStreamOutput
	closed int
	err    error
}

func newFakeStream(events ...brtypes.ConverseStreamOutput) *fakeStream {
	ch := make(chan brtypes.ConverseStreamOutput, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return &fakeStream{ch: ch}
}

func (f *fakeStream) Events() <-chan brtypes.ConverseStreamOutput { return f.ch }
func (f *fakeStream) Close() error                                { f.closed++; return nil }
func (f *fakeStream) Err() error                                  { return f.err }

func newTestBedrock(t *testing.T, modelID string, promptCache bool, fs *fakeStream) (*Bedrock, *[]*bedrockruntime.ConverseStreamInput) {
	t.Helper()
	adapter, err := base.New(backendName, cost.Exclusive, model.Options{Raw: modelID, Region: "us-east-1"}, promptCache, base.Deps{
		Catalog:   catalog.Bedrock(),
		SessionID: "test",
		Estimator: tokens.New(1),
		Log:       zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("base.New: %v", err)
	}
	var inputs []*bedrockruntime.ConverseStreamInput
	b := &Bedrock{
		Adapter: adapter,
		control: &stubControl{},
		open: func(_ context.Context, input *bedrockruntime.ConverseStreamInput) (eventStream, error) {
			inputs = append(inputs, input)
			return fs, nil
		},
	}
	return b, &inputs
}

func userTurn(text string) []provider.Message {
	return []provider.Message{{Role: provider.RoleUser, Content: []provider.ContentBlock{provider.TextBlock(text)}}}
}

func textDelta(s string) brtypes.ConverseStreamOutput {
	return &brtypes.ConverseStreamOutputMemberContentBlockDelta{
		Value: brtypes.ContentBlockDeltaEvent{
			ContentBlockIndex: aws.Int32(0),
			Delta:             &brtypes.ContentBlockDeltaMemberText{Value: s},
		},
	}
}

func reasoningDelta(s string) brtypes.ConverseStreamOutput {
	return &brtypes.ConverseStreamOutputMemberContentBlockDelta{
		Value: brtypes.ContentBlockDeltaEvent{
			ContentBlockIndex: aws.Int32(0),
			Delta: &brtypes.ContentBlockDeltaMemberReasoningContent{
				Value: &brtypes.ReasoningContentBlockDeltaMemberText{Value: s},
			},
		},
	}
}

func metadata(in, out, cacheRead, cacheWrite int32, invoked string) brtypes.ConverseStreamOutput {
	meta := brtypes.ConverseStreamMetadataEvent{
		Usage: &brtypes.TokenUsage{
			InputTokens:           aws.Int32(in),
			OutputTokens:          aws.Int32(out),
			TotalTokens:           aws.Int32(in + out),
			CacheReadInputTokens:  aws.Int32(cacheRead),
			CacheWriteInputTokens: aws.Int32(cacheWrite),
		},
	}
	if invoked != "" {
		meta.Trace = &brtypes.ConverseStreamTrace{
			PromptRouter: &brtypes.PromptRouterTrace{InvokedModelId: aws.String(invoked)},
		}
	}
	return &brtypes.ConverseStreamOutputMemberMetadata{Value: meta}
}

func TestCreateMessageTextStream(t *testing.T) {
	fs := newFakeStream(
		&brtypes.ConverseStreamOutputMemberMessageStart{Value: brtypes.MessageStartEvent{Role: brtypes.ConversationRoleAssistant}},
		&brtypes.ConverseStreamOutputMemberContentBlockStart{},
		reasoningDelta("thinking..."),
		&brtypes.ConverseStreamOutputMemberContentBlockDelta{Value: brtypes.ContentBlockDeltaEvent{
			Delta: &brtypes.ContentBlockDeltaMemberReasoningContent{Value: &brtypes.ReasoningContentBlockDeltaMemberSignature{Value: "sig"}},
		}},
		textDelta("Hello"),
		&brtypes.UnknownUnionMember{Tag: "somethingNew"},
		textDelta(", world"),
		&brtypes.ConverseStreamOutputMemberContentBlockStop{},
		&brtypes.ConverseStreamOutputMemberMessageStop{Value: brtypes.MessageStopEvent{StopReason: brtypes.StopReasonEndTurn}},
		metadata(1000, 500, 3000, 200, ""),
	)
	b, inputs := newTestBedrock(t, sonnet4, false, fs)

	it, err := b.CreateMessage(t.Context(), "", userTurn("Hi"))
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	chunks, err := stream.Drain(it)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}

	if len(*inputs) != 1 || aws.ToString((*inputs)[0].ModelId) != sonnet4 {
		t.Fatalf("unexpected request: %+v", *inputs)
	}

	want := []provider.StreamChunk{
		{Event: provider.EventReasoning, Text: "thinking..."},
		{Event: provider.EventText, Text: "Hello"},
		{Event: provider.EventText, Text: ", world"},
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
	if last.Event != provider.EventUsage || last.Usage == nil {
		t.Fatalf("last chunk = %+v, want usage", last)
	}
	wantUsage := provider.Usage{InputTokens: 1000, OutputTokens: 500, CacheReadTokens: 3000, CacheWriteTokens: 200}
	if *last.Usage != wantUsage {
		t.Errorf("usage = %+v, want %+v", *last.Usage, wantUsage)
	}
	// Exclusive: 1000*3 + 500*15 + 200*3.75 + 3000*0.3, per million.
	if diff := last.Cost - 0.01215; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("cost = %v, want 0.01215", last.Cost)
	}
	if fs.closed != 1 {
		t.Errorf("stream closed %d times, want 1", fs.closed)
	}
}

func TestCreateMessageRouterSignal(t *testing.T) {
	router := "arn:aws:bedrock:us-east-1:123456789012:default-prompt-router/anthropic.claude:1"
	haiku := "arn:aws:bedrock:us-east-1::foundation-model/anthropic.claude-3-5-haiku-20241022-v1:0"
	fs := newFakeStream(textDelta("routed"), metadata(1000, 100, 0, 0, haiku))
	b, inputs := newTestBedrock(t, router, false, fs)

	before := b.GetModel()
	if before.Info.ID != "anthropic.claude-3-sonnet-20240229-v1:0" {
		t.Fatalf("router should start on the router default, got %q", before.Info.ID)
	}

	it, err := b.CreateMessage(t.Context(), "", userTurn("Hi"))
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := stream.Drain(it)
	if err != nil {
		t.Fatal(err)
	}

	if aws.ToString((*inputs)[0].ModelId) != router {
		t.Errorf("request must target the router ARN, got %q", aws.ToString((*inputs)[0].ModelId))
	}
	after := b.GetModel()
	if after.CallAddress != before.CallAddress {
		t.Errorf("call address changed: %q -> %q", before.CallAddress, after.CallAddress)
	}
	if after.Info.ID != "anthropic.claude-3-5-haiku-20241022-v1:0" {
		t.Errorf("snapshot not updated from trace: %q", after.Info.ID)
	}
	// Priced with the invoked model: 1000*0.8 + 100*4, per million.
	last := chunks[len(chunks)-1]
	if diff := last.Cost - 0.0012; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("cost = %v, want 0.0012", last.Cost)
	}
}

func TestCreateMessageStreamError(t *testing.T) {
	fs := newFakeStream(textDelta("partial"))
	fs.err = &stubAPIError{code: "ThrottlingException", message: "slow down"}
	b, _ := newTestBedrock(t, sonnet4, false, fs)

	it, err := b.CreateMessage(t.Context(), "", userTurn("Hi"))
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := stream.Drain(it)
	if !errors.Is(err, provider.ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "partial" {
		t.Errorf("chunks = %+v", chunks)
	}
	if _, err := it.Next(); err != io.EOF {
		t.Errorf("Next after error = %v, want io.EOF", err)
	}
}

func TestCreateMessageOpenError(t *testing.T) {
	b, _ := newTestBedrock(t, sonnet4, false, nil)
	b.open = func(context.Context, *bedrockruntime.ConverseStreamInput) (eventStream, error) {
		return nil, &stubAPIError{code: "AccessDeniedException", message: "no"}
	}
	if _, err := b.CreateMessage(t.Context(), "", userTurn("Hi")); !errors.Is(err, provider.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got %v", err)
	}
}

func TestCreateMessageRejectsEmptyHistory(t *testing.T) {
	b, inputs := newTestBedrock(t, sonnet4, false, newFakeStream())
	if _, err := b.CreateMessage(t.Context(), "sys", nil); !errors.Is(err, provider.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	if len(*inputs) != 0 {
		t.Error("no request should be sent")
	}
}

func TestCreateMessagePlacesCachePoints(t *testing.T) {
	big := strings.Repeat("lorem ipsum dolor sit amet ", 400)
	history := []provider.Message{
		{Role: provider.RoleUser, Content: []provider.ContentBlock{provider.TextBlock(big)}},
		{Role: provider.RoleAssistant, Content: []provider.ContentBlock{provider.TextBlock(big)}},
		{Role: provider.RoleUser, Content: []provider.ContentBlock{provider.TextBlock(big)}},
	}
	b, inputs := newTestBedrock(t, sonnet4, true, newFakeStream())

	it, err := b.CreateMessage(t.Context(), big, history)
	if err != nil {
		t.Fatal(err)
	}
	it.Close()

	input := (*inputs)[0]
	if _, ok := input.System[len(input.System)-1].(*brtypes.SystemContentBlockMemberCachePoint); !ok {
		t.Error("expected a cache point after the system prompt")
	}
	last := input.Messages[len(input.Messages)-1]
	if _, ok := last.Content[len(last.Content)-1].(*brtypes.ContentBlockMemberCachePoint); !ok {
		t.Error("expected a cache point after the latest message")
	}

	points := 0
	for _, msg := range input.Messages {
		for _, block := range msg.Content {
			if _, ok := block.(*brtypes.ContentBlockMemberCachePoint); ok {
				points++
			}
		}
	}
	if points+1 > b.GetModel().Info.MaxCachePoints {
		t.Errorf("%d message cache points plus system exceed the model limit", points)
	}
}

func TestCreateMessageNoCachePointsWhenDisabled(t *testing.T) {
	big := strings.Repeat("lorem ipsum dolor sit amet ", 400)
	b, inputs := newTestBedrock(t, sonnet4, false, newFakeStream())
	it, err := b.CreateMessage(t.Context(), big, userTurn(big))
	if err != nil {
		t.Fatal(err)
	}
	it.Close()
	if len((*inputs)[0].System) != 1 {
		t.Errorf("expected only the system text block, got %d", len((*inputs)[0].System))
	}
}

func TestResolveApplicationProfile(t *testing.T) {
	profile := "arn:aws:bedrock:us-east-1:123456789012:application-inference-profile/a1b2c3d4e5"
	b, _ := newTestBedrock(t, profile, false, nil)
	control := &stubControl{profile: &bedrock.GetInferenceProfileOutput{
		Models: []bedrocktypes.InferenceProfileModel{
			{ModelArn: aws.String("arn:aws:bedrock:us-east-1::foundation-model/anthropic.claude-opus-4-20250514-v1:0")},
		},
	}}
	b.control = control

	b.resolveProfile(context.Background())

	if len(control.lookups) != 1 || control.lookups[0] != profile {
		t.Fatalf("lookups = %v", control.lookups)
	}
	got := b.GetModel()
	if got.Info.ID != "anthropic.claude-opus-4-20250514-v1:0" {
		t.Errorf("snapshot = %q, want Opus 4", got.Info.ID)
	}
	if got.CallAddress != profile {
		t.Errorf("call address = %q, want the profile ARN", got.CallAddress)
	}
}

func TestResolveProfileSkipsOtherKindsAndFailures(t *testing.T) {
	b, _ := newTestBedrock(t, sonnet4, false, nil)
	control := &stubControl{}
	b.control = control
	b.resolveProfile(context.Background())
	if len(control.lookups) != 0 {
		t.Error("plain model IDs need no profile lookup")
	}

	profile := "arn:aws:bedrock:us-east-1:123456789012:application-inference-profile/a1b2c3d4e5"
	b, _ = newTestBedrock(t, profile, false, nil)
	before := b.GetModel()
	b.control = &stubControl{profErr: &stubAPIError{code: "AccessDeniedException", message: "no"}}
	b.resolveProfile(context.Background())
	if b.GetModel() != before {
		t.Error("a failed lookup must keep the current snapshot")
	}
}
