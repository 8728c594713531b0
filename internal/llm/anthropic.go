package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"go-buildbuddy/internal/config"
	apperrors "go-buildbuddy/internal/errors"
	"go-buildbuddy/internal/logger"
	"go-buildbuddy/pkg/models"
)

// ErrMissingAPIKey is reported when no Anthropic credential is configured
var ErrMissingAPIKey = errors.New("ANTHROPIC_API_KEY environment variable is required")

// AnthropicAnalyzer implements Analyzer on the Anthropic Messages API.
// The client is safe to reuse across calls.
type AnthropicAnalyzer struct {
	client anthropic.Client
	model  string
}

// NewAnthropicAnalyzer builds the client once. A missing key is a
// configuration error so callers can block every further analysis.
func NewAnthropicAnalyzer(cfg *config.Config) (*AnthropicAnalyzer, error) {
	if cfg == nil || !cfg.HasCredentials() {
		return nil, apperrors.NewConfigurationError("Claude API not configured properly", ErrMissingAPIKey).
			WithDetails(config.SetupInstructions)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.AnthropicAPIKey),
		option.WithMaxRetries(0),
	}
	if cfg.AnthropicBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.AnthropicBaseURL))
	}

	model := cfg.AnthropicModel
	if model == "" {
		model = config.DefaultModel
	}

	return &AnthropicAnalyzer{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Analyze sends one user turn and returns the first text block of the reply.
// Every failure is logged and replaced by FallbackText; nothing is retried.
func (a *AnthropicAnalyzer) Analyze(ctx context.Context, req models.AnalysisRequest) models.AnalysisResult {
	start := time.Now()
	log := logger.G(ctx).WithFields(logrus.Fields{
		"model":     a.model,
		"has_image": req.Image != nil,
	})

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   MaxTokens,
		Temperature: anthropic.Float(Temperature),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(userContent(req)...)},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return fallback(log, classify(err), err)
	}

	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			log.WithFields(logrus.Fields{
				"input_tokens":  resp.Usage.InputTokens,
				"output_tokens": resp.Usage.OutputTokens,
				"duration_ms":   time.Since(start).Milliseconds(),
			}).Info("Analysis received from Claude API")
			return models.AnalysisResult{Text: variant.Text}
		}
	}

	return fallback(log, models.ErrorKindEmptyResponse, errors.New("response contained no text block"))
}

// userContent orders the parts as text first, then the image
func userContent(req models.AnalysisRequest) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion

	if req.Description != "" {
		blocks = append(blocks, anthropic.NewTextBlock("Problem description: "+req.Description))
	}

	if req.Image != nil && len(req.Image.Data) > 0 && req.Image.Format != "" {
		encoded := base64.StdEncoding.EncodeToString(req.Image.Data)
		blocks = append(blocks, anthropic.NewImageBlockBase64(req.Image.MediaType(), encoded))
	}

	if len(blocks) == 0 {
		blocks = append(blocks, anthropic.NewTextBlock(DefaultUserText))
	}
	return blocks
}

func classify(err error) models.ErrorKind {
	var apiErr *anthropic.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.ErrorKindTimeout
	case errors.As(err, &apiErr):
		return models.ErrorKindUpstream
	default:
		return models.ErrorKindNetwork
	}
}

func fallback(log *logrus.Entry, kind models.ErrorKind, err error) models.AnalysisResult {
	log.WithError(err).WithField("error_kind", kind).Error("Error communicating with Claude API")
	return models.AnalysisResult{
		Text:      FallbackText,
		Fallback:  true,
		ErrorKind: kind,
		Notice:    fmt.Sprintf("Error communicating with Claude API: %v", err),
	}
}
