package agent

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"supplychat/chatstore"
)

type threadIDKey struct{}

// WithThreadID tags ctx with the thread a turn belongs to. Tools use it to
// find the chart memory of the conversation.
func WithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, threadIDKey{}, threadID)
}

// ThreadIDFrom returns the thread id set by WithThreadID, or "".
func ThreadIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(threadIDKey{}).(string)
	return id
}

// cleanHistory keeps only user and final assistant turns. Tool results and
// assistant turns carrying tool calls are dropped so a resumed thread never
// presents the model with a tool call whose result is missing.
func cleanHistory(turns []chatstore.Turn) []chatstore.Turn {
	out := make([]chatstore.Turn, 0, len(turns))
	for _, t := range turns {
		switch {
		case t.Role == chatstore.RoleTool:
		case t.Role == chatstore.RoleSystem:
		case t.Role == chatstore.RoleAssistant && len(t.ToolCalls) > 0:
		case t.Role == chatstore.RoleAssistant && t.Content == "":
		default:
			out = append(out, t)
		}
	}
	return out
}

// estimateTokens approximates token usage at four characters per token.
func estimateTokens(msgs []*schema.Message) int {
	chars := 0
	for _, m := range msgs {
		chars += len(m.Content)
		for _, tc := range m.ToolCalls {
			chars += len(tc.Function.Arguments)
		}
	}
	return chars / 4
}

// trimToBudget keeps the newest messages whose estimated size fits budget.
func trimToBudget(msgs []*schema.Message, budget int) []*schema.Message {
	if budget <= 0 || estimateTokens(msgs) <= budget {
		return msgs
	}
	used := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		cost := estimateTokens(msgs[i : i+1])
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}
	// Never open the window on an assistant reply without its question.
	for start < len(msgs) && msgs[start].Role != schema.User {
		start++
	}
	return msgs[start:]
}

func toMessages(turns []chatstore.Turn) []*schema.Message {
	out := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, toMessage(t))
	}
	return out
}

func toMessage(t chatstore.Turn) *schema.Message {
	msg := &schema.Message{
		Role:       schema.RoleType(t.Role),
		Content:    t.Content,
		ToolCallID: t.ToolCallID,
		ToolName:   t.ToolName,
	}
	for _, tc := range t.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
			ID:       tc.ID,
			Type:     "function",
			Function: schema.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
		})
	}
	return msg
}

func toTurns(msgs []*schema.Message) []chatstore.Turn {
	out := make([]chatstore.Turn, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		t := chatstore.Turn{
			Role:       chatstore.Role(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			ToolName:   m.ToolName,
		}
		for _, tc := range m.ToolCalls {
			t.ToolCalls = append(t.ToolCalls, chatstore.ToolInvocation{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		out = append(out, t)
	}
	return out
}
