// Package chatstore persists thread-keyed conversation history so a session
// can be resumed. Turns are append-only; a thread is only ever cleared as a
// whole.
package chatstore

import (
	"context"
	"time"
)

// Role of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolInvocation is a tool call requested by an assistant turn.
type ToolInvocation struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Turn is one message of a thread.
type Turn struct {
	Role       Role             `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []ToolInvocation `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolName   string           `json:"tool_name,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Store is the Conversation State Store contract.
type Store interface {
	// Get returns the turns of a thread in append order. Unknown threads
	// yield an empty slice, not an error.
	Get(ctx context.Context, threadID string) ([]Turn, error)
	// Append adds turns to the end of a thread.
	Append(ctx context.Context, threadID string, turns ...Turn) error
	// Clear removes every turn of a thread.
	Clear(ctx context.Context, threadID string) error
	// Close releases the backend.
	Close() error
}

func stamp(turns []Turn) []Turn {
	now := time.Now().UTC()
	out := make([]Turn, len(turns))
	for i, t := range turns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		out[i] = t
	}
	return out
}
