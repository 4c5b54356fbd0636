package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/textaudit/layered-audit/internal/logging"
)

// Client generates text with a language model.
type Client interface {
	// GenerateContent generates free text using the model for tier
	GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GenerateJSON generates a JSON document using the model for tier
	GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// Close releases any resources held by the client
	Close() error
}

// ErrTruncated is returned when a JSON answer hit the output token budget.
var ErrTruncated = errors.New("model output truncated")

// BlockedError is returned when the provider refused the prompt or withheld the answer.
type BlockedError struct {
	Tier   ModelTier
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s model blocked the request: %s", e.Tier, e.Reason)
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
	logger *zap.Logger
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string, logger *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, config: config, logger: logging.OrNop(logger)}, nil
}

// GenerateContent generates free text.
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.generate(ctx, prompt, tier, false)
}

// GenerateJSON generates a JSON document with code fences removed.
func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	text, err := c.generate(ctx, prompt, tier, true)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

func (c *GeminiClient) generate(ctx context.Context, prompt string, tier ModelTier, jsonMode bool) (string, error) {
	profile, ok := c.config.Profile(tier)
	if !ok {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}
	if profile.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, profile.Timeout)
		defer cancel()
	}

	model := c.client.GenerativeModel(profile.Model)
	model.SetTemperature(c.config.Temperature)
	if profile.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(profile.MaxOutputTokens)
	}
	if c.config.SystemInstruction != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(c.config.SystemInstruction))
	}
	if jsonMode {
		model.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		if blocked := asBlocked(tier, err); blocked != nil {
			c.logger.Warn("model blocked request", zap.String("tier", string(tier)), zap.String("reason", blocked.Reason))
			return "", blocked
		}
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	fields := []zap.Field{
		zap.String("tier", string(tier)),
		zap.String("model", profile.Model),
		zap.Duration("elapsed", time.Since(start)),
	}
	if u := resp.UsageMetadata; u != nil {
		fields = append(fields, zap.Int32("prompt_tokens", u.PromptTokenCount), zap.Int32("output_tokens", u.CandidatesTokenCount))
	}
	c.logger.Debug("model call finished", fields...)

	text, finish, err := textFromResponse(resp)
	if err != nil {
		return "", err
	}
	if jsonMode && finish == genai.FinishReasonMaxTokens {
		return "", fmt.Errorf("%w: %s answer exceeded %d tokens", ErrTruncated, tier, profile.MaxOutputTokens)
	}
	return text, nil
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// asBlocked converts the SDK's safety refusal into a BlockedError.
func asBlocked(tier ModelTier, err error) *BlockedError {
	var be *genai.BlockedError
	if !errors.As(err, &be) {
		return nil
	}
	switch {
	case be.PromptFeedback != nil:
		return &BlockedError{Tier: tier, Reason: "prompt " + be.PromptFeedback.BlockReason.String()}
	case be.Candidate != nil:
		return &BlockedError{Tier: tier, Reason: "answer " + be.Candidate.FinishReason.String()}
	default:
		return &BlockedError{Tier: tier, Reason: "unspecified"}
	}
}

// textFromResponse joins the text parts of the first candidate and reports
// why generation stopped.
func textFromResponse(resp *genai.GenerateContentResponse) (string, genai.FinishReason, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", genai.FinishReasonUnspecified, fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", candidate.FinishReason, fmt.Errorf("no content in response")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", candidate.FinishReason, fmt.Errorf("no text in response")
	}
	return sb.String(), candidate.FinishReason, nil
}
