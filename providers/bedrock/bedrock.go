// Package bedrock adapts AWS Bedrock's ConverseStream API to the provider contract.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"switchboard/core/address"
	"switchboard/core/cost"
	"switchboard/core/model"
	"switchboard/core/provider"
	"switchboard/core/stream"
	"switchboard/providers/base"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrock/types"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
)

const backendName = "bedrock"

// Options configures the Bedrock adapter.
type Options struct {
	Model           string // model ID, inference profile ID, or Bedrock ARN
	Region          string
	Profile         string // named AWS credentials profile
	CrossRegion     bool
	GlobalInference bool
	PromptCache     bool
	ResolveProfiles bool // look up the model behind application inference profiles
	MaxTokens       int
}

// controlPlane is the subset of bedrock.Client used for model discovery.
// Defined as an interface for testability.
type controlPlane interface {
	ListFoundationModels(ctx context.Context, params *bedrock.ListFoundationModelsInput, optFns ...func(*bedrock.Options)) (*bedrock.ListFoundationModelsOutput, error)
	GetInferenceProfile(ctx context.Context, params *bedrock.GetInferenceProfileInput, optFns ...func(*bedrock.Options)) (*bedrock.GetInferenceProfileOutput, error)
}

// Bedrock implements Provider using AWS Bedrock's ConverseStream API.
type Bedrock struct {
	*base.Adapter
	control   controlPlane
	open      func(ctx context.Context, input *bedrockruntime.ConverseStreamInput) (eventStream, error)
	maxTokens int
}

// New creates a Bedrock adapter. The region comes from a resource locator when
// the model is one, otherwise from opts.Region.
func New(ctx context.Context, opts Options, deps base.Deps) (*Bedrock, error) {
	adapter, err := base.New(backendName, cost.Exclusive, model.Options{
		Raw:             opts.Model,
		Region:          opts.Region,
		CrossRegion:     opts.CrossRegion,
		GlobalInference: opts.GlobalInference,
	}, opts.PromptCache, deps)
	if err != nil {
		return nil, err
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(adapter.Resolver.Region()),
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	runtime := bedrockruntime.NewFromConfig(awsCfg)
	b := &Bedrock{
		Adapter: adapter,
		control: bedrock.NewFromConfig(awsCfg),
		open: func(ctx context.Context, input *bedrockruntime.ConverseStreamInput) (eventStream, error) {
			out, err := runtime.ConverseStream(ctx, input)
			if err != nil {
				return nil, err
			}
			return out.GetStream(), nil
		},
		maxTokens: opts.MaxTokens,
	}

	if opts.ResolveProfiles {
		b.resolveProfile(ctx)
	}
	return b, nil
}

// CreateMessage starts a streaming conversation with the resolved model.
func (b *Bedrock) CreateMessage(ctx context.Context, system string, history []provider.Message) (provider.StreamIterator, error) {
	if err := base.Validate(history); err != nil {
		return nil, err
	}
	placement, err := b.Place(ctx, system, history)
	if err != nil {
		return nil, fmt.Errorf("placing cache points: %w", err)
	}

	input, err := buildConverseStreamInput(b.GetModel().CallAddress, system, history, placement, b.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	es, err := b.open(ctx, input)
	if err != nil {
		return nil, classifyErr(err)
	}

	src := stream.FromChannel(es.Events(), es.Close, func() error { return classifyErr(es.Err()) })
	return base.Stream(ctx, b.Adapter, src, &translator{resolver: b.Resolver}), nil
}

// ListModels returns the text-streaming foundation models available in the
// region, enriched with catalog metadata where known.
func (b *Bedrock) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	out, err := b.control.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{
		ByOutputModality: bedrocktypes.ModelModalityText,
	})
	if err != nil {
		return nil, classifyErr(err)
	}

	var models []provider.ModelInfo
	for _, summary := range out.ModelSummaries {
		if !isUsableModel(summary) {
			continue
		}
		models = append(models, b.Describe(aws.ToString(summary.ModelId), aws.ToString(summary.ModelName)))
	}
	return base.SortModels(models), nil
}

// resolveProfile looks up the model behind an application inference profile so
// the snapshot reflects what the profile actually invokes. Failures keep the
// catalog default.
func (b *Bedrock) resolveProfile(ctx context.Context) {
	d := b.Resolver.Descriptor()
	if d.Kind != address.KindInferenceProfile || d.ResourceType != "application-inference-profile" {
		return
	}
	out, err := b.control.GetInferenceProfile(ctx, &bedrock.GetInferenceProfileInput{
		InferenceProfileIdentifier: aws.String(d.Raw),
	})
	if err != nil {
		b.Log.Warn().Err(classifyErr(err)).Str("profile", d.Raw).Msg("resolving inference profile")
		return
	}
	if len(out.Models) == 0 {
		return
	}
	b.Resolver.Observe(aws.ToString(out.Models[0].ModelArn))
}

// isUsableModel returns true if the model supports on-demand text streaming.
func isUsableModel(s bedrocktypes.FoundationModelSummary) bool {
	if s.ResponseStreamingSupported == nil || !*s.ResponseStreamingSupported {
		return false
	}
	return slices.Contains(s.OutputModalities, bedrocktypes.ModelModalityText)
}

// classifyErr wraps AWS API errors into provider-level sentinels.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return &provider.BackendError{Backend: backendName, Err: err}
	}

	be := &provider.BackendError{
		Backend: backendName,
		Code:    apiErr.ErrorCode(),
		Message: apiErr.ErrorMessage(),
		Err:     err,
	}
	switch apiErr.ErrorCode() {
	case "ThrottlingException", "ServiceQuotaExceededException", "TooManyRequestsException":
		be.Kind = provider.ErrThrottled
	case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
		be.Kind = provider.ErrAccessDenied
	case "ResourceNotFoundException", "ModelNotFoundException":
		be.Kind = provider.ErrModelNotFound
	case "ModelNotReadyException":
		be.Kind = provider.ErrModelNotReady
	case "ValidationException":
		be.Kind = provider.ErrInvalidRequest
	case "ServiceUnavailableException", "InternalServerException", "ModelTimeoutException",
		"ModelStreamErrorException", "ModelErrorException":
		be.Kind = provider.ErrUnavailable
	}
	return be
}

// Compile-time check that Bedrock implements provider.Provider
var _ provider.Provider = (*Bedrock)(nil)
var _ provider.ModelLister = (*Bedrock)(nil)
