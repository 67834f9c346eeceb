package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/haasonsaas/pathfinder/internal/agent"
)

// BedrockConfig configures the AWS Bedrock provider.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// Endpoint overrides the service endpoint.
	Endpoint     string
	DefaultModel string
	Timeout      time.Duration
}

// converseStreamer is the slice of the Bedrock runtime client this provider uses.
type converseStreamer interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// BedrockProvider implements agent.LLMProvider via the Converse streaming API.
type BedrockProvider struct {
	base
	client converseStreamer
}

var _ agent.LLMProvider = (*BedrockProvider)(nil)

// NewBedrockProvider creates a Bedrock provider. Static credentials are used
// when given; otherwise the default AWS credential chain applies.
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	b := newBase("bedrock", cfg.DefaultModel, cfg.Timeout)

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithRetryMaxAttempts(1),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}

	client := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &BedrockProvider{base: b, client: client}, nil
}

// Complete streams a Converse completion.
func (p *BedrockProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	model := p.model(req.Model)

	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(model),
		Messages: convertBedrockMessages(req.Messages),
		InferenceConfig: &types.InferenceConfiguration{
			// #nosec G115 -- bounded by maxTokens
			MaxTokens: aws.Int32(int32(maxTokens(req.MaxTokens))),
		},
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}
	if req.Temperature != nil {
		input.InferenceConfig.Temperature = aws.Float32(float32(*req.Temperature))
	}

	out, err := p.client.ConverseStream(ctx, input)
	if err != nil {
		return nil, p.wrapError(err, model)
	}

	chunks := make(chan *agent.CompletionChunk)
	go p.processStream(ctx, out.GetStream(), chunks, model)
	return chunks, nil
}

// bedrockEvents is the part of the Converse event stream the reader consumes.
type bedrockEvents interface {
	Events() <-chan types.ConverseStreamOutput
	Close() error
	Err() error
}

func (p *BedrockProvider) processStream(ctx context.Context, stream bedrockEvents, chunks chan<- *agent.CompletionChunk, model string) {
	defer close(chunks)
	defer stream.Close()

	var inputTokens, outputTokens int
	stopped := false
	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			fail(ctx, chunks, ctx.Err())
			return
		case event, ok := <-events:
			if !ok {
				if err := stream.Err(); err != nil {
					fail(ctx, chunks, p.wrapError(err, model))
					return
				}
				if !stopped {
					fail(ctx, chunks, malformed(p.name, model, "stream ended without messageStop"))
					return
				}
				send(ctx, chunks, &agent.CompletionChunk{Done: true, InputTokens: inputTokens, OutputTokens: outputTokens})
				return
			}

			switch ev := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				if text, ok := ev.Value.Delta.(*types.ContentBlockDeltaMemberText); ok && text.Value != "" {
					if !send(ctx, chunks, &agent.CompletionChunk{Text: text.Value}) {
						return
					}
				}
			case *types.ConverseStreamOutputMemberMessageStop:
				stopped = true
				if ev.Value.StopReason == types.StopReasonContentFiltered || ev.Value.StopReason == types.StopReasonGuardrailIntervened {
					fail(ctx, chunks, &ProviderError{Reason: FailoverContentFilter, Provider: p.name, Model: model,
						Message: "response stopped: " + string(ev.Value.StopReason)})
					return
				}
			case *types.ConverseStreamOutputMemberMetadata:
				if usage := ev.Value.Usage; usage != nil {
					inputTokens = int(aws.ToInt32(usage.InputTokens))
					outputTokens = int(aws.ToInt32(usage.OutputTokens))
				}
			}
		}
	}
}

func convertBedrockMessages(messages []agent.CompletionMessage) []types.Message {
	result := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		role := types.ConversationRoleUser
		if msg.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		result = append(result, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: msg.Content}},
		})
	}
	return result
}

func (p *BedrockProvider) wrapError(err error, model string) error {
	if _, ok := GetProviderError(err); ok {
		return err
	}
	pe := NewProviderError(p.name, model, err)
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		pe = pe.WithCode(apiErr.ErrorCode()).WithMessage(apiErr.ErrorMessage())
	}
	return pe
}
