package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplychat/config"
)

func TestNewChatModelRequiresKey(t *testing.T) {
	_, err := NewChatModel(context.Background(), config.LLMConfig{Provider: "gemini", Model: "gemini-2.0-flash"}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY")
}

func TestNewChatModelWrapsCompatibleEndpoints(t *testing.T) {
	m, err := NewChatModel(context.Background(), config.LLMConfig{
		Provider: "gemini",
		APIKey:   "test-key",
		Model:    "gemini-2.0-flash",
		Timeout:  time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	w, ok := m.(*OpenAICompatibleWrapper)
	require.True(t, ok)
	assert.True(t, w.isGeminiEndpoint())

	bound, err := w.WithTools([]*schema.ToolInfo{{Name: ToolAnalyze, Desc: "x"}})
	require.NoError(t, err)
	assert.IsType(t, &OpenAICompatibleWrapper{}, bound)

	plain, err := NewChatModel(context.Background(), config.LLMConfig{Provider: "openai", APIKey: "k", Model: "gpt-4o"}, zerolog.Nop())
	require.NoError(t, err)
	_, wrapped := plain.(*OpenAICompatibleWrapper)
	assert.False(t, wrapped)
}

func TestImproveErrorMessage(t *testing.T) {
	w := NewOpenAICompatibleWrapper(nil, GeminiOpenAIBaseURL, zerolog.Nop())

	err := w.improveErrorMessage(errors.New(`json: cannot unmarshal array into Go value, body: [{"error":{"code":429,"message":"Resource exhausted","status":"RESOURCE_EXHAUSTED"}}]`))
	assert.Contains(t, err.Error(), "rate limit exceeded (429): Resource exhausted")

	err = w.improveErrorMessage(errors.New("cannot unmarshal array, no body"))
	assert.Contains(t, err.Error(), "non-standard format")

	orig := errors.New("connection refused")
	assert.Equal(t, orig, w.improveErrorMessage(orig))
}
