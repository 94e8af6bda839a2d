// Package anthropic adapts Anthropic's Claude Messages API to MadSpark's
// Provider Port. Claude has no native JSON response_format, so structured
// output is obtained by forcing a single tool call whose input_schema is the
// caller's target schema, then reading back tool_use.input (spec.md §4.B).
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/madspark/orchestrator/errs"
	"github.com/madspark/orchestrator/provider"
)

const (
	defaultMaxTokens = 4096
	structuredTool   = "emit_result"
)

// Config configures the Anthropic adapter.
type Config struct {
	APIKey          string
	Model           string
	BaseURL         string
	Timeout         time.Duration
	InputCostPerTok float64
	OutputCostPerTok float64
}

// Provider implements provider.Port against Anthropic's Claude.
type Provider struct {
	cfg    Config
	client sdk.Client
	logger *zap.Logger
}

// New builds an Anthropic Provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		cfg:    cfg,
		client: sdk.NewClient(opts...),
		logger: logger,
	}
}

func (p *Provider) Name() string  { return "anthropic" }
func (p *Provider) Model() string { return p.cfg.Model }

func (p *Provider) SupportsAttachments() bool { return false }

func (p *Provider) CostPerToken() (input, output float64) {
	return p.cfg.InputCostPerTok, p.cfg.OutputCostPerTok
}

func (p *Provider) Health(ctx context.Context) (provider.HealthStatus, error) {
	start := time.Now()
	_, err := p.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(p.cfg.Model),
		MaxTokens: 1,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock("ping")),
		},
	})
	latency := time.Since(start)
	if err != nil {
		return provider.HealthStatus{Healthy: false, Latency: latency}, err
	}
	return provider.HealthStatus{Healthy: true, Latency: latency}, nil
}

// GenerateStructured forces Claude to call a single tool shaped by
// req.SchemaJSON and returns its input as the structured result.
func (p *Provider) GenerateStructured(ctx context.Context, req provider.StructuredRequest) (provider.StructuredResponse, error) {
	var objectSchema struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(req.SchemaJSON, &objectSchema); err != nil {
		return provider.StructuredResponse{}, errs.New(errs.ConfigurationError, "invalid schema JSON").WithCause(err)
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(p.cfg.Model),
		MaxTokens:   maxTokens,
		Temperature: sdk.Float(float64(req.Temperature)),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
		Tools: []sdk.ToolUnionParam{
			{
				OfTool: &sdk.ToolParam{
					Name:        structuredTool,
					Description: sdk.String(fmt.Sprintf("Emit the %s result", req.SchemaName)),
					InputSchema: sdk.ToolInputSchemaParam{
						Type:       "object",
						Properties: objectSchema.Properties,
						Required:   objectSchema.Required,
					},
				},
			},
		},
		ToolChoice: sdk.ToolChoiceUnionParam{
			OfTool: &sdk.ToolChoiceToolParam{Name: structuredTool},
		},
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}

	start := time.Now()
	msg, err := p.client.Messages.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		return provider.StructuredResponse{}, mapError(err)
	}

	for _, block := range msg.Content {
		if block.Type == "tool_use" && block.Name == structuredTool {
			return provider.StructuredResponse{
				RawJSON: []byte(block.Input.RawJSON()),
				Usage: provider.Usage{
					PromptTokens:     int(msg.Usage.InputTokens),
					CompletionTokens: int(msg.Usage.OutputTokens),
					TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
					LatencyMS:        float64(latency.Milliseconds()),
				},
			}, nil
		}
	}

	return provider.StructuredResponse{}, errs.New(errs.ProviderInvalid, "model did not call the forced tool")
}

func (p *Provider) GenerateText(ctx context.Context, req provider.TextRequest) (provider.TextResponse, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(p.cfg.Model),
		MaxTokens:   maxTokens,
		Temperature: sdk.Float(float64(req.Temperature)),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}

	start := time.Now()
	msg, err := p.client.Messages.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		return provider.TextResponse{}, mapError(err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return provider.TextResponse{
		Text: text,
		Usage: provider.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
			LatencyMS:        float64(latency.Milliseconds()),
		},
	}, nil
}

// mapError classifies SDK errors into MadSpark's taxonomy: API statuses
// 429, 500, 502, 503, 504 and 529 are ProviderUnavailable (retryable), other
// API statuses are ProviderInvalid, and non-API errors (e.g. transport
// failures) are ProviderUnavailable (retryable).
func mapError(err error) *errs.Error {
	var apiErr *sdk.Error
	if ok := asAnthropicError(err, &apiErr); ok {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504, 529:
			return errs.New(errs.ProviderUnavailable, apiErr.Message).WithCause(err).WithRetryable(true)
		default:
			return errs.New(errs.ProviderInvalid, apiErr.Message).WithCause(err)
		}
	}
	return errs.New(errs.ProviderUnavailable, "anthropic request failed").WithCause(err).WithRetryable(true)
}

func asAnthropicError(err error, target **sdk.Error) bool {
	apiErr, ok := err.(*sdk.Error)
	if !ok {
		return false
	}
	*target = apiErr
	return true
}
