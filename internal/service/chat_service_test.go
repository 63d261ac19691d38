package service

import (
	"testing"

	"ai-docassist-be/internal/dto"

	"github.com/stretchr/testify/assert"
)

func TestFormatTranscriptOrdersByTimestamp(t *testing.T) {
	lines := formatTranscript([]dto.ChatMessage{
		{Sender: "bot", Text: "second", Timestamp: "2026-01-02T10:00:00Z"},
		{Sender: "user", Text: "first", Timestamp: "2026-01-02T09:00:00Z"},
	})

	assert.Equal(t, []string{
		"[2026-01-02T09:00:00Z] user: first",
		"[2026-01-02T10:00:00Z] bot: second",
	}, lines)
}

func TestFormatTranscriptKeepsUnparseableTimestampsLast(t *testing.T) {
	lines := formatTranscript([]dto.ChatMessage{
		{Sender: "user", Text: "when?", Timestamp: "yesterdayish"},
		{Sender: "bot", Text: "late", Timestamp: "2026-01-02T10:00:00Z"},
		{Sender: "user", Text: "???", Timestamp: "not a time"},
		{Sender: "user", Text: "early", Timestamp: "2026-01-02T09:00:00Z"},
	})

	// Parseable messages come first in time order; the rest trail in
	// their original relative order.
	assert.Equal(t, []string{
		"[2026-01-02T09:00:00Z] user: early",
		"[2026-01-02T10:00:00Z] bot: late",
		"[yesterdayish] user: when?",
		"[not a time] user: ???",
	}, lines)
}
