package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhelpdesk/deskd/internal/types"
)

func TestParseResult(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		got, err := ParseResult(`{"intent":"bank_statement","confidence":0.92,"entities":{"months":"6"},"reasoning":"asks for statements"}`)
		require.NoError(t, err)
		assert.Equal(t, types.IntentBankStatement, got.Intent)
		assert.InDelta(t, 0.92, got.Confidence, 1e-9)
		assert.Equal(t, "6", got.Entities["months"])
		assert.Equal(t, "asks for statements", got.Reasoning)
	})

	t.Run("fenced json", func(t *testing.T) {
		got, err := ParseResult("```json\n{\"intent\":\"general_query\",\"confidence\":0.7}\n```")
		require.NoError(t, err)
		assert.Equal(t, types.IntentGeneralQuery, got.Intent)
	})

	t.Run("numeric and bool entities become strings", func(t *testing.T) {
		got, err := ParseResult(`{"intent":"bank_statement","confidence":0.8,"entities":{"months":6,"verified":true}}`)
		require.NoError(t, err)
		assert.Equal(t, "6", got.Entities["months"])
		assert.Equal(t, "true", got.Entities["verified"])
	})

	t.Run("confidence clamped", func(t *testing.T) {
		got, err := ParseResult(`{"intent":"general_query","confidence":1.7}`)
		require.NoError(t, err)
		assert.Equal(t, 1.0, got.Confidence)

		got, err = ParseResult(`{"intent":"general_query","confidence":-0.2}`)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got.Confidence)
	})

	t.Run("empty output", func(t *testing.T) {
		_, err := ParseResult("")
		assert.ErrorIs(t, err, ErrBadOutput)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseResult("the intent is bank_statement")
		assert.ErrorIs(t, err, ErrBadOutput)
	})

	t.Run("intent outside the closed set", func(t *testing.T) {
		_, err := ParseResult(`{"intent":"refund_request","confidence":0.9}`)
		assert.ErrorIs(t, err, ErrBadOutput)
	})
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
	assert.Equal(t, "", stripFences("   "))
}

func TestFormatHistory(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "(none)", formatHistory(nil))
	})

	t.Run("truncates long bodies and caps turns", func(t *testing.T) {
		long := make([]byte, 150)
		for i := range long {
			long[i] = 'x'
		}
		var history []*types.ConversationEntry
		for i := 0; i < 7; i++ {
			history = append(history, &types.ConversationEntry{
				Timestamp: "2026-08-01T00:00:00Z",
				Direction: types.DirectionIncoming,
				Body:      string(long),
			})
		}
		out := formatHistory(history)
		assert.Contains(t, out, "...")
		assert.NotContains(t, out, string(long))
		// Only the last five turns survive.
		assert.Equal(t, 5, len(splitLines(out)))
	})
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
