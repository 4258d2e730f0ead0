package service

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// inlineTranscriptLimit keeps a fallback transcript under the platform's
// message length limit.
const inlineTranscriptLimit = 1900

// TranscriptHeader identifies the closed channel.
type TranscriptHeader struct {
	ChannelName string
	ChannelID   string
	ClosedBy    string
	ClosedByID  string
	Reason      string
}

// BuildTranscript renders the header followed by every message, oldest
// first, one line per message plus an attachment line when present.
func BuildTranscript(h TranscriptHeader, messages []domain.ChannelMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transcript for channel %s (%s)\n", h.ChannelName, h.ChannelID)
	fmt.Fprintf(&b, "Closed by: %s (%s)\n", h.ClosedBy, h.ClosedByID)
	if h.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", h.Reason)
	}
	b.WriteString(strings.Repeat("=", 40))
	b.WriteString("\n\n")

	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s (%s): %s\n", m.CreatedAt.UTC().Format(time.RFC3339), m.AuthorName, m.AuthorID, m.Content)
		if len(m.Attachments) > 0 {
			fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(m.Attachments, ", "))
		}
	}
	return b.String()
}

// TranscriptFileName names the transcript attachment.
func TranscriptFileName(channelID string, closedAt time.Time) string {
	return fmt.Sprintf("transcript_%s_%s.txt", channelID, closedAt.UTC().Format("20060102_150405"))
}

// TruncateTranscript shortens content for inline posting.
func TruncateTranscript(content string) string {
	if utf8.RuneCountInString(content) <= inlineTranscriptLimit {
		return content
	}
	runes := []rune(content)
	return string(runes[:inlineTranscriptLimit-3]) + "..."
}
