// Package platformtest provides an in-memory platform.Platform for tests.
package platformtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

// Channel is a fake text channel.
type Channel struct {
	ID       string
	GuildID  string
	Name     string
	Topic    string
	ParentID string
	OwnerID  string
	Locked   bool
	Access   []string
	Sent     []platform.Message
	Files    []platform.File
	History  []domain.ChannelMessage
}

// Fake records every call. Fail* fields inject errors.
type Fake struct {
	mu sync.Mutex

	nextID     int
	Channels   map[string]*Channel
	Categories map[string]int
	Members    map[string]domain.Actor
	DMs        map[string][]platform.Message
	Deleted    []string
	DeletedMsg []string

	FailCreate   bool
	FailDelete   bool
	FailLock     bool
	FailSendFile bool
	FailDM       bool
	FailMove     bool
	FailSend     map[string]bool
	FailRoles    map[string]bool

	// OnSend runs before each Send, outside the fake's lock.
	OnSend func(channelID string)
}

var errInjected = errors.New("injected failure")

func New() *Fake {
	return &Fake{
		Channels:   make(map[string]*Channel),
		Categories: make(map[string]int),
		Members:    make(map[string]domain.Actor),
		DMs:        make(map[string][]platform.Message),
		FailSend:   make(map[string]bool),
		FailRoles:  make(map[string]bool),
	}
}

func (f *Fake) newID() string {
	f.nextID++
	return fmt.Sprintf("%d", 9000+f.nextID)
}

// AddCategory registers a category holding fill unrelated channels.
func (f *Fake) AddCategory(id string, fill int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Categories[id] = fill
}

// AddChannel registers an existing channel.
func (f *Fake) AddChannel(id, parentID string) *Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := &Channel{ID: id, ParentID: parentID}
	f.Channels[id] = ch
	return ch
}

// AddMember registers a guild member.
func (f *Fake) AddMember(member domain.Actor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Members[member.ID] = member
}

// RemoveChannel simulates a channel deleted outside the bot.
func (f *Fake) RemoveChannel(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Channels, id)
}

// Channel returns a copy of the channel state.
func (f *Fake) Channel(id string) (Channel, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.Channels[id]
	if !ok {
		return Channel{}, false
	}
	return *ch, true
}

// SentTo returns the messages posted into channelID.
func (f *Fake) SentTo(channelID string) []platform.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.Channels[channelID]; ok {
		return append([]platform.Message(nil), ch.Sent...)
	}
	return nil
}

// DirectMessages returns the DMs sent to userID.
func (f *Fake) DirectMessages(userID string) []platform.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]platform.Message(nil), f.DMs[userID]...)
}

// MemberRoles returns the current roles of userID.
func (f *Fake) MemberRoles(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Members[userID].RoleIDs...)
}

func (f *Fake) ChannelExists(_ context.Context, channelID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.Channels[channelID]
	return ok, nil
}

func (f *Fake) ChannelInfo(_ context.Context, channelID string) (platform.ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.Channels[channelID]
	if !ok {
		return platform.ChannelInfo{}, platform.ErrNotFound
	}
	return platform.ChannelInfo{ID: ch.ID, Name: ch.Name, ParentID: ch.ParentID}, nil
}

func (f *Fake) CategoryChildCount(_ context.Context, _, categoryID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fill, ok := f.Categories[categoryID]
	if !ok {
		return 0, platform.ErrNotFound
	}
	for _, ch := range f.Channels {
		if ch.ParentID == categoryID {
			fill++
		}
	}
	return fill, nil
}

func (f *Fake) CreateTicketChannel(_ context.Context, spec platform.ChannelSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreate {
		return "", errInjected
	}
	id := f.newID()
	f.Channels[id] = &Channel{
		ID:       id,
		GuildID:  spec.GuildID,
		Name:     spec.Name,
		Topic:    spec.Topic,
		ParentID: spec.ParentID,
		OwnerID:  spec.OwnerID,
		Access:   []string{spec.OwnerID},
	}
	return id, nil
}

func (f *Fake) MoveChannel(_ context.Context, channelID, parentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailMove {
		return errInjected
	}
	ch, ok := f.Channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	ch.ParentID = parentID
	return nil
}

func (f *Fake) DeleteChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailDelete {
		return errInjected
	}
	if _, ok := f.Channels[channelID]; !ok {
		return platform.ErrNotFound
	}
	delete(f.Channels, channelID)
	f.Deleted = append(f.Deleted, channelID)
	return nil
}

func (f *Fake) LockChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailLock {
		return errInjected
	}
	ch, ok := f.Channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	ch.Locked = true
	return nil
}

func (f *Fake) GrantAccess(_ context.Context, channelID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.Channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	ch.Access = append(ch.Access, userID)
	return nil
}

func (f *Fake) Send(_ context.Context, channelID string, msg platform.Message) (string, error) {
	if f.OnSend != nil {
		f.OnSend(channelID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSend[channelID] {
		return "", errInjected
	}
	ch, ok := f.Channels[channelID]
	if !ok {
		return "", platform.ErrNotFound
	}
	ch.Sent = append(ch.Sent, msg)
	return f.newID(), nil
}

func (f *Fake) SendFile(_ context.Context, channelID string, msg platform.Message, file platform.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSendFile {
		return errInjected
	}
	ch, ok := f.Channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	ch.Sent = append(ch.Sent, msg)
	ch.Files = append(ch.Files, file)
	return nil
}

func (f *Fake) DeleteMessage(_ context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeletedMsg = append(f.DeletedMsg, channelID+"/"+messageID)
	return nil
}

func (f *Fake) DirectMessage(_ context.Context, userID string, msg platform.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailDM {
		return errInjected
	}
	f.DMs[userID] = append(f.DMs[userID], msg)
	return nil
}

func (f *Fake) History(_ context.Context, channelID string) ([]domain.ChannelMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.Channels[channelID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return append([]domain.ChannelMessage(nil), ch.History...), nil
}

func (f *Fake) Member(_ context.Context, _, userID string) (domain.Actor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.Members[userID]
	if !ok {
		return domain.Actor{}, platform.ErrNotFound
	}
	m.RoleIDs = append([]string(nil), m.RoleIDs...)
	return m, nil
}

func (f *Fake) AddRole(_ context.Context, _, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailRoles[userID] {
		return errInjected
	}
	m, ok := f.Members[userID]
	if !ok {
		return platform.ErrNotFound
	}
	if !m.HasRole(roleID) {
		m.RoleIDs = append(m.RoleIDs, roleID)
	}
	f.Members[userID] = m
	return nil
}

func (f *Fake) RemoveRole(_ context.Context, _, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailRoles[userID] {
		return errInjected
	}
	m, ok := f.Members[userID]
	if !ok {
		return platform.ErrNotFound
	}
	kept := m.RoleIDs[:0]
	for _, id := range m.RoleIDs {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	m.RoleIDs = kept
	f.Members[userID] = m
	return nil
}

var _ platform.Platform = (*Fake)(nil)
