package agent

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplychat/chatstore"
)

func TestCleanHistoryDropsToolActivity(t *testing.T) {
	turns := []chatstore.Turn{
		{Role: chatstore.RoleUser, Content: "q1"},
		{Role: chatstore.RoleAssistant, ToolCalls: []chatstore.ToolInvocation{{ID: "c1", Name: ToolAnalyze}}},
		{Role: chatstore.RoleTool, Content: `{"type":"text"}`, ToolCallID: "c1"},
		{Role: chatstore.RoleAssistant, Content: "a1"},
		{Role: chatstore.RoleSystem, Content: "old prompt"},
		{Role: chatstore.RoleUser, Content: "q2"},
		{Role: chatstore.RoleAssistant, Content: ""},
	}
	got := cleanHistory(turns)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"q1", "a1", "q2"}, []string{got[0].Content, got[1].Content, got[2].Content})
}

func TestTrimToBudgetStartsOnUserMessage(t *testing.T) {
	long := strings.Repeat("x", 400) // ~100 tokens
	msgs := []*schema.Message{
		schema.UserMessage(long),
		schema.AssistantMessage(long, nil),
		schema.UserMessage(long),
		schema.AssistantMessage(long, nil),
	}
	assert.Len(t, trimToBudget(msgs, 1000), 4)

	got := trimToBudget(msgs, 250)
	require.Len(t, got, 2)
	assert.Equal(t, schema.User, got[0].Role)

	// Budget covering only the last assistant message leaves nothing.
	assert.Empty(t, trimToBudget(msgs, 120))
}

func TestTurnsRoundTripMessages(t *testing.T) {
	msgs := []*schema.Message{
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{ID: "c1", Type: "function", Function: schema.FunctionCall{Name: ToolAnalyze, Arguments: `{"query":"x"}`}}}},
		schema.ToolMessage("result", "c1", schema.WithToolName(ToolAnalyze)),
	}
	turns := toTurns(msgs)
	require.Len(t, turns, 2)
	assert.Equal(t, ToolAnalyze, turns[0].ToolCalls[0].Name)
	assert.Equal(t, "c1", turns[1].ToolCallID)

	back := toMessages(turns)
	assert.Equal(t, msgs[0].ToolCalls, back[0].ToolCalls)
	assert.Equal(t, schema.Tool, back[1].Role)
	assert.Equal(t, ToolAnalyze, back[1].ToolName)
}

func TestTurnWindow(t *testing.T) {
	msgs := []*schema.Message{
		schema.UserMessage("same"),
		schema.AssistantMessage("old", nil),
		schema.UserMessage("same"),
		schema.AssistantMessage("new", nil),
	}
	w, ambiguous := turnWindow(msgs, "same")
	assert.False(t, ambiguous)
	require.Len(t, w, 1)
	assert.Equal(t, "new", w[0].Content)

	w, ambiguous = turnWindow(append(msgs, schema.AssistantMessage("x", nil)), "missing")
	assert.True(t, ambiguous)
	assert.Len(t, w, fallbackWindow)
}

func TestSessionMemoryWindow(t *testing.T) {
	mem := NewSessionMemory(2)
	assert.Empty(t, mem.Render("t"))
	mem.Add("t", "q1", "a1")
	mem.Add("t", "q2", "a2")
	mem.Add("t", "q3", strings.Repeat("é", 600))
	mem.Add("other", "x", "y")

	recent := mem.Recent("t")
	require.Len(t, recent, 2)
	assert.Equal(t, "q2", recent[0].Question)

	out := mem.Render("t")
	assert.NotContains(t, out, "q1")
	assert.Contains(t, out, "User: q3")
	assert.Contains(t, out, strings.Repeat("é", 500)+"...")

	mem.Clear("t")
	assert.Empty(t, mem.Recent("t"))
	assert.Len(t, mem.Recent("other"), 1)
}

func TestParseToolResult(t *testing.T) {
	res, err := ParseToolResult(ErrorResult(ErrNoChartAvailable).Encode())
	require.NoError(t, err)
	assert.Equal(t, CodeNoChartAvailable, res.Code)

	_, err = ParseToolResult(`{"type":"mystery"}`)
	assert.Error(t, err)
	_, err = ParseToolResult(`{"content":"x"}`)
	assert.Error(t, err)
	_, err = ParseToolResult(`Error: boom`)
	assert.Error(t, err)
}
