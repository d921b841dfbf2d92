package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryAddAndOrder(t *testing.T) {
	h := NewHistory(10)
	h.Add(RoleUser, "first")
	h.Add(RoleAssistant, "second")
	h.Add(RoleUser, "third")

	msgs := h.Messages()
	assert.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "third", msgs[2].Content)
}

func TestHistoryBoundDropsOldestFirst(t *testing.T) {
	// Five adds against a bound of three: the two oldest are dropped.
	h := NewHistory(3)
	for _, content := range []string{"m1", "m2", "m3", "m4", "m5"} {
		h.Add(RoleUser, content)
	}

	msgs := h.Messages()
	assert.Len(t, msgs, 3)
	assert.Equal(t, "m3", msgs[0].Content)
	assert.Equal(t, "m4", msgs[1].Content)
	assert.Equal(t, "m5", msgs[2].Content)
}

func TestHistoryTruncationKeepsSystemMessages(t *testing.T) {
	h := NewHistory(3)
	h.Add(RoleSystem, "sys")
	for _, content := range []string{"u1", "u2", "u3", "u4"} {
		h.Add(RoleUser, content)
	}

	msgs := h.Messages()
	assert.Len(t, msgs, 3)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "u3", msgs[1].Content)
	assert.Equal(t, "u4", msgs[2].Content)
}

func TestHistoryTruncationDoesNotReorder(t *testing.T) {
	h := NewHistory(3)
	h.Add(RoleUser, "u1")
	h.Add(RoleSystem, "sys")
	h.Add(RoleUser, "u2")
	h.Add(RoleUser, "u3")
	h.Add(RoleUser, "u4")

	// The interleaved system message stays where it was; only the oldest
	// non-system messages are dropped.
	msgs := h.Messages()
	assert.Equal(t, []string{"sys", "u3", "u4"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
}

func TestHistoryLastN(t *testing.T) {
	h := NewHistory(10)
	h.Add(RoleUser, "a")
	h.Add(RoleAssistant, "b")
	h.Add(RoleUser, "c")

	last := h.LastN(2)
	assert.Len(t, last, 2)
	assert.Equal(t, "b", last[0].Content)
	assert.Equal(t, "c", last[1].Content)

	assert.Len(t, h.LastN(99), 3)
	assert.Empty(t, h.LastN(0))
}

func TestHistoryClear(t *testing.T) {
	h := NewHistory(5)
	h.Add(RoleUser, "a")
	h.Clear()
	assert.Zero(t, h.Len())
}

func TestNewMessageNormalizesUnknownRole(t *testing.T) {
	m := NewMessage("tool", "output")
	assert.Equal(t, RoleUser, m.Role)
	assert.False(t, m.CreatedAt.IsZero())
}
