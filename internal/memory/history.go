// Package memory holds per-session conversation history: a bounded,
// role-tagged, ordered log of prior turns used to build reasoning context.
//
// Two implementations share the same truncation rule: History is the pure
// in-process bounded log, Store persists sessions to SQLite. Truncation
// always preserves system-role messages, drops the oldest non-system
// messages first, and never reorders what remains.
package memory

import (
	"sync"
	"time"
)

// Message roles. Heterogeneous upstream representations are normalized
// into this tagged form at the memory boundary before any routing logic.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged conversation entry.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a Message stamped with the current time. Unknown
// roles are normalized to user.
func NewMessage(role, content string) Message {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		role = RoleUser
	}
	return Message{Role: role, Content: content, CreatedAt: time.Now().UTC()}
}

// History is a bounded ordered log of messages. Safe for concurrent use;
// callers within one session are serialized by the internal mutex.
type History struct {
	mu       sync.Mutex
	maxLen   int
	messages []Message
}

// NewHistory creates a History bounded to maxLen messages. Non-positive
// maxLen falls back to 1 so the latest message is always retained.
func NewHistory(maxLen int) *History {
	if maxLen < 1 {
		maxLen = 1
	}
	return &History{maxLen: maxLen}
}

// Add appends a message, truncating per the retention rule when the log
// exceeds its bound.
func (h *History) Add(role, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, NewMessage(role, content))
	h.messages = truncate(h.messages, h.maxLen)
}

// Messages returns a copy of the log in order.
func (h *History) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// LastN returns a copy of the most recent n messages in order.
func (h *History) LastN(n int) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n >= len(h.messages) {
		n = len(h.messages)
	}
	out := make([]Message, n)
	copy(out, h.messages[len(h.messages)-n:])
	return out
}

// Len returns the current number of stored messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

// Clear removes all messages.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}

// truncate applies the retention rule: keep every system message and drop
// the oldest non-system messages until the log fits. Remaining messages
// keep their original order.
func truncate(messages []Message, maxLen int) []Message {
	if len(messages) <= maxLen {
		return messages
	}

	systemCount := 0
	for _, m := range messages {
		if m.Role == RoleSystem {
			systemCount++
		}
	}

	budget := maxLen - systemCount
	if budget < 0 {
		budget = 0
	}
	drop := (len(messages) - systemCount) - budget

	out := make([]Message, 0, maxLen)
	for _, m := range messages {
		if m.Role != RoleSystem && drop > 0 {
			drop--
			continue
		}
		out = append(out, m)
	}
	return out
}
