package discord

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/platform"
	platformdiscord "github.com/spec-kit/ticket-bot/internal/platform/discord"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const genericFailure = "An error occurred. Please try again or contact support."

// reply is what a command or component handler wants shown to the invoker.
// Deferred replies acknowledge at once and deliver the result of then as a
// follow-up.
type reply struct {
	content    string
	embeds     []*discordgo.MessageEmbed
	components []discordgo.MessageComponent
	ephemeral  bool
	update     bool
	modal      *modal
	deferred   bool
	then       func(ctx context.Context) (reply, error)
}

type modal struct {
	customID string
	title    string
	inputs   []discordgo.TextInput
}

func textReply(content string, ephemeral bool) reply {
	return reply{content: content, ephemeral: ephemeral}
}

func embedReply(msg platform.Message, ephemeral bool) reply {
	return reply{
		content:    msg.Content,
		embeds:     platformdiscord.Embeds(msg),
		components: platformdiscord.Components(msg.Actions),
		ephemeral:  ephemeral,
	}
}

// deferReply acknowledges now and runs fn afterwards.
func deferReply(ephemeral bool, fn func(ctx context.Context) (reply, error)) reply {
	return reply{deferred: true, ephemeral: ephemeral, then: fn}
}

// errorReply renders err for the invoker. Only domain errors reach users
// verbatim.
func errorReply(err error) reply {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) && domainErr.Code != apperrors.CodeInternal {
		return textReply(domainErr.Message, true)
	}
	return textReply(genericFailure, true)
}

func (r reply) flags() discordgo.MessageFlags {
	if r.ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

func (r reply) interactionResponse() *discordgo.InteractionResponse {
	switch {
	case r.modal != nil:
		rows := make([]discordgo.MessageComponent, 0, len(r.modal.inputs))
		for _, in := range r.modal.inputs {
			rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{in}})
		}
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID:   r.modal.customID,
				Title:      r.modal.title,
				Components: rows,
			},
		}
	case r.deferred:
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Flags: r.flags()},
		}
	}
	kind := discordgo.InteractionResponseChannelMessageWithSource
	if r.update {
		kind = discordgo.InteractionResponseUpdateMessage
	}
	return &discordgo.InteractionResponse{
		Type: kind,
		Data: &discordgo.InteractionResponseData{
			Content:    r.content,
			Embeds:     r.embeds,
			Components: r.components,
			Flags:      r.flags(),
		},
	}
}

func (r reply) webhookParams() *discordgo.WebhookParams {
	return &discordgo.WebhookParams{
		Content:    r.content,
		Embeds:     r.embeds,
		Components: r.components,
		Flags:      r.flags(),
	}
}

func (r reply) messageSend(referenceID, channelID, guildID string) *discordgo.MessageSend {
	out := &discordgo.MessageSend{
		Content:    r.content,
		Embeds:     r.embeds,
		Components: r.components,
	}
	if referenceID != "" {
		out.Reference = &discordgo.MessageReference{MessageID: referenceID, ChannelID: channelID, GuildID: guildID}
	}
	return out
}

func (r reply) empty() bool {
	return r.content == "" && len(r.embeds) == 0 && len(r.components) == 0
}
