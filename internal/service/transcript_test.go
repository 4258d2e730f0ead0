package service

import (
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

func TestBuildTranscript(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	got := BuildTranscript(TranscriptHeader{
		ChannelName: "ticket-bob-1234",
		ChannelID:   "55",
		ClosedBy:    "Staffer",
		ClosedByID:  "7",
		Reason:      "done",
	}, []domain.ChannelMessage{
		{AuthorID: "1", AuthorName: "bob", Content: "hello", CreatedAt: at},
		{AuthorID: "7", AuthorName: "Staffer", Content: "", Attachments: []string{"a.png", "b.png"}, CreatedAt: at.Add(time.Second)},
	})

	want := []string{
		"Transcript for channel ticket-bob-1234 (55)",
		"Closed by: Staffer (7)",
		"Reason: done",
		strings.Repeat("=", 40),
		"[2024-05-01T10:00:00Z] bob (1): hello",
		"[2024-05-01T10:00:01Z] Staffer (7): ",
		"Attachments: a.png, b.png",
	}
	for _, line := range want {
		if !strings.Contains(got, line) {
			t.Fatalf("transcript missing %q:\n%s", line, got)
		}
	}
	if strings.Index(got, "hello") > strings.Index(got, "Attachments") {
		t.Fatalf("messages out of order")
	}
}

func TestTranscriptFileNameAndTruncate(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 2, 3, 0, time.UTC)
	if got := TranscriptFileName("55", at); got != "transcript_55_20240501_100203.txt" {
		t.Fatalf("unexpected name %q", got)
	}
	short := "short"
	if TruncateTranscript(short) != short {
		t.Fatalf("short transcripts are untouched")
	}
	long := TruncateTranscript(strings.Repeat("é", 5000))
	if n := len([]rune(long)); n != 1900 || !strings.HasSuffix(long, "...") {
		t.Fatalf("unexpected truncation length %d", n)
	}
}
