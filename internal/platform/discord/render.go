package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

// Component custom ids for the actions a message can carry.
const (
	CustomIDCloseTicket = "ticket:close"
	CustomIDKeepOpen    = "ticket:keep_open"
)

func render(msg platform.Message) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    msg.Content,
		Embeds:     Embeds(msg),
		Components: Components(msg.Actions),
	}
}

// Embeds renders the rich part of msg, or nil for plain text.
func Embeds(msg platform.Message) []*discordgo.MessageEmbed {
	if !msg.Rich() {
		return nil
	}
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		Color:       msg.Color,
	}
	for _, f := range msg.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if msg.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: msg.Footer}
	}
	if !msg.Timestamp.IsZero() {
		embed.Timestamp = msg.Timestamp.UTC().Format(time.RFC3339)
	}
	return []*discordgo.MessageEmbed{embed}
}

// Components renders actions as a single row of buttons.
func Components(actions []platform.ActionKind) []discordgo.MessageComponent {
	var buttons []discordgo.MessageComponent
	for _, action := range actions {
		switch action {
		case platform.ActionCloseTicket:
			buttons = append(buttons, discordgo.Button{
				Label:    "Close Ticket",
				Style:    discordgo.DangerButton,
				CustomID: CustomIDCloseTicket,
			})
		case platform.ActionKeepOpen:
			buttons = append(buttons, discordgo.Button{
				Label:    "Keep Open",
				Style:    discordgo.SuccessButton,
				CustomID: CustomIDKeepOpen,
			})
		}
	}
	if len(buttons) == 0 {
		return nil
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}
