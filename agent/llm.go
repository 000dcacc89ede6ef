package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"supplychat/config"
)

// GeminiOpenAIBaseURL is Gemini's OpenAI-compatible endpoint.
const GeminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// NewChatModel builds the dispatch model from configuration. Every provider
// is reached through the OpenAI wire protocol.
func NewChatModel(ctx context.Context, cfg config.LLMConfig, log zerolog.Logger) (model.ToolCallingChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is not configured (set %s_LLM_API_KEY, GOOGLE_API_KEY or OPENAI_API_KEY)", config.EnvPrefix)
	}

	baseURL := cfg.BaseURL
	if cfg.Provider == "gemini" && baseURL == "" {
		baseURL = GeminiOpenAIBaseURL
	}

	temperature := cfg.Temperature
	inner, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     baseURL,
		Model:       cfg.Model,
		Timeout:     cfg.Timeout,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model: %w", err)
	}

	log.Info().Str("provider", cfg.Provider).Str("model", cfg.Model).Msg("chat model ready")
	if baseURL == "" {
		return inner, nil
	}
	return NewOpenAICompatibleWrapper(inner, baseURL, log), nil
}

// OpenAICompatibleWrapper wraps an OpenAI-compatible chat model to turn
// non-standard error bodies (e.g. Gemini's array-format errors) into
// readable messages.
type OpenAICompatibleWrapper struct {
	inner   model.ToolCallingChatModel
	baseURL string
	log     zerolog.Logger
}

func NewOpenAICompatibleWrapper(inner model.ToolCallingChatModel, baseURL string, log zerolog.Logger) *OpenAICompatibleWrapper {
	return &OpenAICompatibleWrapper{inner: inner, baseURL: baseURL, log: log}
}

func (w *OpenAICompatibleWrapper) isGeminiEndpoint() bool {
	return strings.Contains(w.baseURL, "generativelanguage.googleapis.com")
}

func (w *OpenAICompatibleWrapper) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	resp, err := w.inner.Generate(ctx, input, opts...)
	if err != nil {
		return nil, w.improveErrorMessage(err)
	}
	return resp, nil
}

func (w *OpenAICompatibleWrapper) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	reader, err := w.inner.Stream(ctx, input, opts...)
	if err != nil {
		return nil, w.improveErrorMessage(err)
	}
	return reader, nil
}

// WithTools returns a wrapped copy bound to tools.
func (w *OpenAICompatibleWrapper) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	bound, err := w.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &OpenAICompatibleWrapper{inner: bound, baseURL: w.baseURL, log: w.log}, nil
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// improveErrorMessage parses provider error bodies into actionable text.
func (w *OpenAICompatibleWrapper) improveErrorMessage(err error) error {
	errStr := err.Error()

	if strings.Contains(errStr, "cannot unmarshal array") {
		if idx := strings.Index(errStr, "body:"); idx != -1 {
			var errs []geminiError
			if jsonErr := json.Unmarshal([]byte(strings.TrimSpace(errStr[idx+5:])), &errs); jsonErr == nil && len(errs) > 0 {
				ge := errs[0].Error
				w.log.Debug().Int("code", ge.Code).Str("status", ge.Status).Msg("gemini error body")
				switch ge.Code {
				case 503:
					return fmt.Errorf("Gemini service temporarily unavailable (503): %s. Please try again in a few moments", ge.Message)
				case 429:
					return fmt.Errorf("Gemini rate limit exceeded (429): %s. Please wait before retrying", ge.Message)
				case 400:
					return fmt.Errorf("Gemini bad request (400): %s", ge.Message)
				case 401, 403:
					return fmt.Errorf("Gemini authentication failed (%d): please check your API key", ge.Code)
				case 404:
					return fmt.Errorf("Gemini model not found (404): %s. Please verify the model name", ge.Message)
				default:
					return fmt.Errorf("Gemini API error (%d - %s): %s", ge.Code, ge.Status, ge.Message)
				}
			}
		}
		if w.isGeminiEndpoint() {
			return fmt.Errorf("Gemini API returned an error in non-standard format. This may be a temporary service issue. Original error: %w", err)
		}
	}

	if strings.Contains(errStr, "overloaded") || strings.Contains(errStr, "UNAVAILABLE") {
		return fmt.Errorf("the model is currently overloaded, please try again in a few moments: %w", err)
	}
	return err
}
