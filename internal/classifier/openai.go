package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"warden.app/bot/common/logger"
	"warden.app/bot/internal/gateway"
)

const systemPrompt = `You are a chat moderation classifier. Decide whether the
message violates the server policy: harassment, slurs, explicit sexual content,
doxxing, or spam. Respond with a verdict and a one-sentence reason. When the
message is ambiguous, prefer "clear".`

type verdictPayload struct {
	Verdict string `json:"verdict" jsonschema:"enum=clear,enum=flagged"`
	Reason  string `json:"reason"`
}

type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

type openAIClient struct {
	openai openai.Client
	model  string
	max    int
}

func NewOpenAI(cfg OpenAIConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	max := cfg.MaxTokens
	if max == 0 {
		max = 300
	}

	return &openAIClient{
		openai: openai.NewClient(opts...),
		model:  model,
		max:    max,
	}, nil
}

func (c *openAIClient) Classify(ctx context.Context, in Input) (Result, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "moderation_verdict",
		Description: openai.String("Moderation verdict for one chat message"),
		Schema:      generateSchema[verdictPayload](),
		Strict:      openai.Bool(true),
	}

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(userPrompt(in)),
	}
	for _, url := range in.ImageURLs {
		parts = append(parts, openai.ImageContentPart(
			openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(parts),
		},
		MaxTokens: openai.Int(int64(c.max)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
		Temperature: openai.Float(0),
	}

	start := time.Now()
	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return Result{}, mapProviderError(ctx, err)
	}

	slog.DebugContext(ctx, "classification completed",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("no choices in response")
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		// An unparseable verdict defaults to clear: a wrongly muted account
		// is harder to undo than a missed message.
		slog.WarnContext(ctx, "unparseable classifier response, defaulting to clear",
			"error", err,
			"content", logger.Truncate(resp.Choices[0].Message.Content, 200))
		return Result{Verdict: VerdictClear, Reason: "unparseable response", Source: SourceModel}, nil
	}

	verdict := Verdict(payload.Verdict)
	if verdict != VerdictClear && verdict != VerdictFlagged {
		slog.WarnContext(ctx, "classifier returned unknown verdict, defaulting to clear",
			"verdict", payload.Verdict)
		verdict = VerdictClear
	}

	return Result{Verdict: verdict, Reason: payload.Reason, Source: SourceModel}, nil
}

func userPrompt(in Input) string {
	var b strings.Builder
	if in.AuthorLabel != "" {
		fmt.Fprintf(&b, "Author: %s\n", in.AuthorLabel)
	}
	b.WriteString("Message:\n")
	b.WriteString(in.Text)
	return b.String()
}

// mapProviderError translates OpenAI API failures into the gateway taxonomy.
// 429 with an insufficient_quota code is a billing hard stop, not a burst
// limit, so it maps to quota exhaustion rather than rate limiting.
func mapProviderError(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests && apiErr.Code == "insufficient_quota":
			return fmt.Errorf("classifier quota exhausted: %w", gateway.ErrQuotaExhausted)
		case apiErr.StatusCode == http.StatusPaymentRequired:
			return fmt.Errorf("classifier billing failure: %w", gateway.ErrQuotaExhausted)
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("classifier rate limited: %w", gateway.ErrRateLimited)
		case apiErr.StatusCode >= 500:
			slog.WarnContext(ctx, "classifier server error",
				"status_code", apiErr.StatusCode)
			return err
		default:
			slog.ErrorContext(ctx, "classifier client error",
				"status_code", apiErr.StatusCode,
				"error_type", apiErr.Type,
				"error_code", apiErr.Code)
			return err
		}
	}
	// Network errors with no API response stay transient.
	return err
}

func generateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}
