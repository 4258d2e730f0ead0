package domain

import "time"

// ChannelMessage is one historical message used to build transcripts.
type ChannelMessage struct {
	ID          string
	AuthorID    string
	AuthorName  string
	Content     string
	Attachments []string
	CreatedAt   time.Time
}
