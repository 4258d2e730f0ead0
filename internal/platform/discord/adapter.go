// Package discord implements platform.Platform over a discordgo session.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

const historyPageSize = 100

const (
	memberAllow = discordgo.PermissionViewChannel |
		discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory |
		discordgo.PermissionAttachFiles |
		discordgo.PermissionEmbedLinks
	staffAllow = memberAllow | discordgo.PermissionManageMessages
)

// Adapter talks to Discord through a bot session.
type Adapter struct {
	session *discordgo.Session
	logger  *zap.Logger
}

// New wraps an open session.
func New(session *discordgo.Session, logger *zap.Logger) *Adapter {
	return &Adapter{session: session, logger: logger}
}

// Session exposes the underlying session for interaction replies.
func (a *Adapter) Session() *discordgo.Session {
	return a.session
}

func (a *Adapter) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	_, err := a.session.Channel(channelID, discordgo.WithContext(ctx))
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("fetch channel %s: %w", channelID, err)
}

func (a *Adapter) ChannelInfo(ctx context.Context, channelID string) (platform.ChannelInfo, error) {
	ch, err := a.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return platform.ChannelInfo{}, wrap("fetch channel "+channelID, err)
	}
	return platform.ChannelInfo{ID: ch.ID, Name: ch.Name, ParentID: ch.ParentID}, nil
}

func (a *Adapter) CategoryChildCount(ctx context.Context, guildID, categoryID string) (int, error) {
	channels, err := a.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return 0, wrap("list guild channels", err)
	}
	return countChildren(channels, categoryID)
}

func (a *Adapter) CreateTicketChannel(ctx context.Context, spec platform.ChannelSpec) (string, error) {
	ch, err := a.session.GuildChannelCreateComplex(spec.GuildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                spec.Topic,
		ParentID:             spec.ParentID,
		PermissionOverwrites: ticketOverwrites(spec),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", wrap("create ticket channel", err)
	}
	return ch.ID, nil
}

func (a *Adapter) MoveChannel(ctx context.Context, channelID, parentID string) error {
	_, err := a.session.ChannelEdit(channelID, &discordgo.ChannelEdit{ParentID: parentID}, discordgo.WithContext(ctx))
	return wrap("move channel "+channelID, err)
}

func (a *Adapter) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := a.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return wrap("delete channel "+channelID, err)
}

// LockChannel stops @everyone from posting. The guild id doubles as the
// @everyone role id.
func (a *Adapter) LockChannel(ctx context.Context, channelID string) error {
	ch, err := a.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return wrap("fetch channel "+channelID, err)
	}
	err = a.session.ChannelPermissionSet(channelID, ch.GuildID, discordgo.PermissionOverwriteTypeRole,
		0, discordgo.PermissionViewChannel|discordgo.PermissionSendMessages, discordgo.WithContext(ctx))
	if err != nil {
		return wrap("lock channel "+channelID, err)
	}
	for _, ow := range ch.PermissionOverwrites {
		if ow.Type != discordgo.PermissionOverwriteTypeMember || ow.Allow&discordgo.PermissionSendMessages == 0 {
			continue
		}
		err = a.session.ChannelPermissionSet(channelID, ow.ID, ow.Type,
			ow.Allow&^discordgo.PermissionSendMessages, ow.Deny|discordgo.PermissionSendMessages, discordgo.WithContext(ctx))
		if err != nil {
			return wrap("lock channel "+channelID, err)
		}
	}
	return nil
}

func (a *Adapter) GrantAccess(ctx context.Context, channelID, userID string) error {
	err := a.session.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember,
		memberAllow, 0, discordgo.WithContext(ctx))
	return wrap("grant access", err)
}

func (a *Adapter) Send(ctx context.Context, channelID string, msg platform.Message) (string, error) {
	sent, err := a.session.ChannelMessageSendComplex(channelID, render(msg), discordgo.WithContext(ctx))
	if err != nil {
		return "", wrap("send to "+channelID, err)
	}
	return sent.ID, nil
}

func (a *Adapter) SendFile(ctx context.Context, channelID string, msg platform.Message, file platform.File) error {
	out := render(msg)
	out.Files = []*discordgo.File{{
		Name:        file.Name,
		ContentType: file.ContentType,
		Reader:      bytes.NewReader(file.Content),
	}}
	_, err := a.session.ChannelMessageSendComplex(channelID, out, discordgo.WithContext(ctx))
	return wrap("upload to "+channelID, err)
}

func (a *Adapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return wrap("delete message", a.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (a *Adapter) DirectMessage(ctx context.Context, userID string, msg platform.Message) error {
	dm, err := a.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return wrap("open dm", err)
	}
	_, err = a.session.ChannelMessageSendComplex(dm.ID, render(msg), discordgo.WithContext(ctx))
	return wrap("send dm", err)
}

// History pages backwards through the whole channel and returns it oldest
// first.
func (a *Adapter) History(ctx context.Context, channelID string) ([]domain.ChannelMessage, error) {
	var pages [][]*discordgo.Message
	before := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := a.session.ChannelMessages(channelID, historyPageSize, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrap("read history of "+channelID, err)
		}
		if len(page) == 0 {
			break
		}
		pages = append(pages, page)
		if len(page) < historyPageSize {
			break
		}
		before = page[len(page)-1].ID
	}
	return chronological(pages), nil
}

func (a *Adapter) Member(ctx context.Context, guildID, userID string) (domain.Actor, error) {
	m, err := a.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return domain.Actor{}, wrap("fetch member", err)
	}
	return MemberActor(m), nil
}

func (a *Adapter) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return wrap("add role", a.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (a *Adapter) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	return wrap("remove role", a.session.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)))
}

// MemberActor converts a guild member into an Actor.
func MemberActor(m *discordgo.Member) domain.Actor {
	if m == nil || m.User == nil {
		return domain.Actor{}
	}
	return domain.Actor{
		ID:      m.User.ID,
		Name:    displayName(m),
		RoleIDs: append([]string(nil), m.Roles...),
	}
}

func displayName(m *discordgo.Member) string {
	if name := m.DisplayName(); name != "" {
		return name
	}
	return m.User.Username
}

func ticketOverwrites(spec platform.ChannelSpec) []*discordgo.PermissionOverwrite {
	ow := []*discordgo.PermissionOverwrite{
		{ID: spec.GuildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: spec.OwnerID, Type: discordgo.PermissionOverwriteTypeMember, Allow: memberAllow},
	}
	if spec.StaffRoleID != "" {
		ow = append(ow, &discordgo.PermissionOverwrite{
			ID: spec.StaffRoleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: staffAllow,
		})
	}
	return ow
}

func countChildren(channels []*discordgo.Channel, categoryID string) (int, error) {
	found := false
	count := 0
	for _, ch := range channels {
		if ch.ID == categoryID && ch.Type == discordgo.ChannelTypeGuildCategory {
			found = true
			continue
		}
		if ch.ParentID == categoryID {
			count++
		}
	}
	if !found {
		return 0, platform.ErrNotFound
	}
	return count, nil
}

// chronological flattens newest-first pages into oldest-first messages.
func chronological(pages [][]*discordgo.Message) []domain.ChannelMessage {
	var out []domain.ChannelMessage
	for p := len(pages) - 1; p >= 0; p-- {
		page := pages[p]
		for i := len(page) - 1; i >= 0; i-- {
			out = append(out, convertMessage(page[i]))
		}
	}
	return out
}

func convertMessage(m *discordgo.Message) domain.ChannelMessage {
	cm := domain.ChannelMessage{
		ID:        m.ID,
		Content:   m.Content,
		CreatedAt: m.Timestamp,
	}
	if m.Author != nil {
		cm.AuthorID = m.Author.ID
		cm.AuthorName = m.Author.Username
	}
	for _, att := range m.Attachments {
		if att != nil {
			cm.Attachments = append(cm.Attachments, att.URL)
		}
	}
	return cm
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return fmt.Errorf("%s: %w", op, platform.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isNotFound recognises Discord's unknown-entity errors and bare 404s.
func isNotFound(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return false
	}
	if rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		return true
	}
	if rest.Message == nil {
		return false
	}
	switch rest.Message.Code {
	case discordgo.ErrCodeUnknownChannel,
		discordgo.ErrCodeUnknownMember,
		discordgo.ErrCodeUnknownMessage,
		discordgo.ErrCodeUnknownUser,
		discordgo.ErrCodeUnknownRole:
		return true
	}
	return false
}

var _ platform.Platform = (*Adapter)(nil)
