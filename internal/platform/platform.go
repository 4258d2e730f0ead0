// Package platform defines the chat-platform operations the bot depends on.
// The discord subpackage implements them over the Discord gateway.
package platform

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// ErrNotFound reports a channel, category, message or member that does not exist.
var ErrNotFound = errors.New("platform: not found")

// ActionKind names an interactive control attached to a message.
type ActionKind string

const (
	ActionCloseTicket ActionKind = "close_ticket"
	ActionKeepOpen    ActionKind = "keep_open"
)

// Field is one name/value row of a rich message.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is a platform-neutral outbound message. A message with a Title
// or Description is rendered as a rich embed.
type Message struct {
	Content     string
	Title       string
	Description string
	Color       int
	Fields      []Field
	Footer      string
	Timestamp   time.Time
	Actions     []ActionKind
}

// Rich reports whether the message carries an embed.
func (m Message) Rich() bool {
	return m.Title != "" || m.Description != "" || len(m.Fields) > 0
}

// File is an attachment.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// ChannelInfo is the current state of a channel.
type ChannelInfo struct {
	ID       string
	Name     string
	ParentID string
}

// ChannelSpec describes a private ticket channel. ParentID may be empty.
type ChannelSpec struct {
	GuildID     string
	Name        string
	Topic       string
	ParentID    string
	OwnerID     string
	StaffRoleID string
}

// Platform is the chat-platform collaborator.
type Platform interface {
	ChannelExists(ctx context.Context, channelID string) (bool, error)
	ChannelInfo(ctx context.Context, channelID string) (ChannelInfo, error)
	CategoryChildCount(ctx context.Context, guildID, categoryID string) (int, error)
	CreateTicketChannel(ctx context.Context, spec ChannelSpec) (string, error)
	MoveChannel(ctx context.Context, channelID, parentID string) error
	DeleteChannel(ctx context.Context, channelID string) error
	LockChannel(ctx context.Context, channelID string) error
	GrantAccess(ctx context.Context, channelID, userID string) error

	Send(ctx context.Context, channelID string, msg Message) (string, error)
	SendFile(ctx context.Context, channelID string, msg Message, file File) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	DirectMessage(ctx context.Context, userID string, msg Message) error
	History(ctx context.Context, channelID string) ([]domain.ChannelMessage, error)

	Member(ctx context.Context, guildID, userID string) (domain.Actor, error)
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID string) error
}
