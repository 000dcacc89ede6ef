package agent

import (
	"strings"
	"sync"
)

// DefaultSessionWindow is the number of exchanges kept per thread.
const DefaultSessionWindow = 5

// Exchange is one remembered question and its final answer text.
type Exchange struct {
	Question string
	Answer   string
}

// SessionMemory keeps a sliding window of recent exchanges per thread.
type SessionMemory struct {
	mu      sync.Mutex
	window  int
	threads map[string][]Exchange
}

func NewSessionMemory(window int) *SessionMemory {
	if window <= 0 {
		window = DefaultSessionWindow
	}
	return &SessionMemory{window: window, threads: make(map[string][]Exchange)}
}

// Add appends an exchange and drops the oldest beyond the window.
func (m *SessionMemory) Add(threadID, question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex := append(m.threads[threadID], Exchange{Question: question, Answer: answer})
	if over := len(ex) - m.window; over > 0 {
		ex = append([]Exchange(nil), ex[over:]...)
	}
	m.threads[threadID] = ex
}

// Recent returns the remembered exchanges, oldest first.
func (m *SessionMemory) Recent(threadID string) []Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Exchange(nil), m.threads[threadID]...)
}

func (m *SessionMemory) Clear(threadID string) {
	m.mu.Lock()
	delete(m.threads, threadID)
	m.mu.Unlock()
}

// Render formats the window for the dispatch system prompt. Empty when the
// thread has no history.
func (m *SessionMemory) Render(threadID string) string {
	recent := m.Recent(threadID)
	if len(recent) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, ex := range recent {
		b.WriteString("User: ")
		b.WriteString(ex.Question)
		b.WriteString("\nAssistant: ")
		b.WriteString(truncate(ex.Answer, 500))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
