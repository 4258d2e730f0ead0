package discord

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	panelTitle       = "Create a Ticket"
	panelScanLimit   = 50
	maxSelectOptions = 25

	panelRobux = "robux"
	panelOther = "other"
)

// panelReply is the public ticket panel: a type select under an embed.
func panelReply() reply {
	rep := embedReply(platform.Message{
		Title:       panelTitle,
		Description: "Select the ticket type below to start.",
		Color:       colorGreen,
		Fields: []platform.Field{
			{Name: "Robux", Value: "Buy Robux (Gamepass / Group Funds / In-Game)."},
			{Name: "Other", Value: "Other support requests."},
		},
	}, false)
	rep.components = selectRow(idPanelType, "Select ticket type...", []discordgo.SelectMenuOption{
		{Label: "Robux", Value: panelRobux, Description: "Buy Robux (Gamepass / Group Funds / In-Game)"},
		{Label: "Other", Value: panelOther, Description: "Other support request"},
	})
	return rep
}

func selectRow(customID, placeholder string, options []discordgo.SelectMenuOption) []discordgo.MessageComponent {
	if len(options) > maxSelectOptions {
		options = options[:maxSelectOptions]
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.SelectMenu{
			MenuType:    discordgo.StringSelectMenu,
			CustomID:    customID,
			Placeholder: placeholder,
			Options:     options,
		},
	}}}
}

// refreshPanel replaces panels left by earlier runs with a fresh one.
func (r *Router) refreshPanel(ctx context.Context, botUserID string) error {
	channelID := r.guild.PanelChannelID
	if channelID == "" {
		return nil
	}
	recent, err := r.session.ChannelMessages(channelID, panelScanLimit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("read panel channel: %w", err)
	}
	for _, m := range recent {
		if !isPanel(m, botUserID) {
			continue
		}
		if err := r.session.ChannelMessageDelete(channelID, m.ID, discordgo.WithContext(ctx)); err != nil {
			r.logger.Debug("stale panel not deleted", zap.String("message_id", m.ID), zap.Error(err))
		}
	}
	panel := panelReply()
	if _, err := r.session.ChannelMessageSendComplex(channelID, panel.messageSend("", "", ""), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("post panel: %w", err)
	}
	r.logger.Info("ticket panel posted", zap.String("channel_id", channelID))
	return nil
}

func isPanel(m *discordgo.Message, botUserID string) bool {
	if m == nil || m.Author == nil || m.Author.ID != botUserID {
		return false
	}
	for _, e := range m.Embeds {
		if e != nil && e.Title == panelTitle {
			return true
		}
	}
	return false
}

func (r *Router) handleComponent(ctx context.Context, i *discordgo.Interaction, actor domain.Actor) {
	data := i.MessageComponentData()
	name, rep, err := r.component(ctx, i, actor, data)
	if err != nil {
		r.recordFailure(name, err)
		rep = errorReply(err)
	} else if rep.then == nil {
		r.metrics.RecordCommand(name, "OK")
	}
	r.respond(ctx, i, name, rep)
}

func (r *Router) component(ctx context.Context, i *discordgo.Interaction, actor domain.Actor, data discordgo.MessageComponentInteractionData) (string, reply, error) {
	id := data.CustomID
	switch {
	case id == idPanelType:
		rep, err := r.onPanelType(data.Values)
		return "panel_type", rep, err
	case id == idPanelSubtype:
		rep, err := r.onPanelSubtype(data.Values)
		return "panel_subtype", rep, err
	case strings.HasPrefix(id, idPanelPay+idSeparator):
		rep, err := r.onPanelPayment(id, data.Values)
		return "panel_payment", rep, err
	case id == idCloseTicket:
		rep, err := r.onCloseButton(i.ChannelID)
		return "close_button", rep, err
	case strings.HasPrefix(id, idConfirmClose+idSeparator):
		rep, err := r.onConfirmClose(actor, i.ChannelID, id)
		return "close_confirm", rep, err
	case id == idCancelClose:
		return "close_cancel", clearedUpdate("Close cancelled."), nil
	case id == idKeepOpen:
		rep, err := r.onKeepOpen(ctx, actor, i.ChannelID)
		return "keep_open", rep, err
	}
	return "unknown_component", textReply("This control is no longer available.", true), nil
}

// clearedUpdate rewrites the source message and removes its controls.
func clearedUpdate(content string) reply {
	return reply{content: content, update: true, components: []discordgo.MessageComponent{}}
}

func firstValue(values []string) (string, error) {
	if len(values) == 0 || values[0] == "" {
		return "", apperrors.NewValidationError("Please choose an option.", nil)
	}
	return values[0], nil
}

func (r *Router) onPanelType(values []string) (reply, error) {
	choice, err := firstValue(values)
	if err != nil {
		return reply{}, err
	}
	if choice == panelOther {
		return reply{modal: &modal{
			customID: idPanelOther,
			title:    "Create Other Ticket",
			inputs: []discordgo.TextInput{{
				CustomID:    inputDetails,
				Label:       "Describe your request",
				Style:       discordgo.TextInputParagraph,
				Placeholder: "Explain the issue or request...",
				Required:    true,
				MaxLength:   maxTextInput,
			}},
		}}, nil
	}

	var options []discordgo.SelectMenuOption
	for _, kind := range domain.PricedKinds() {
		v, _ := domain.VariantOf(kind)
		options = append(options, discordgo.SelectMenuOption{Label: v.Label, Value: string(kind), Description: v.Description})
	}
	rep := embedReply(platform.Message{
		Title:       "Select Robux Delivery Type",
		Description: "Choose the delivery subtype.",
		Color:       colorBlue,
	}, true)
	rep.components = selectRow(idPanelSubtype, "Select delivery subtype...", options)
	return rep, nil
}

func (r *Router) onPanelSubtype(values []string) (reply, error) {
	choice, err := firstValue(values)
	if err != nil {
		return reply{}, err
	}
	variant, ok := domain.VariantOf(domain.Kind(choice))
	if !ok || !variant.Priced {
		return reply{}, apperrors.NewValidationError("Unknown ticket type.", nil)
	}
	methods := r.pricing.PaymentMethods()
	if len(methods) == 0 {
		return clearedUpdate("No payment methods are configured yet. Please contact staff."), nil
	}
	if len(methods) > maxSelectOptions {
		hidden := make([]string, 0, len(methods)-maxSelectOptions)
		for _, m := range methods[maxSelectOptions:] {
			hidden = append(hidden, m.Key)
		}
		r.logger.Warn("payment methods exceed the select menu limit; extra methods are not offered",
			zap.Int("configured", len(methods)), zap.Strings("hidden", hidden))
	}
	options := make([]discordgo.SelectMenuOption, 0, len(methods))
	for _, m := range methods {
		options = append(options, discordgo.SelectMenuOption{
			Label:       titleCase(m.Key),
			Value:       m.Key,
			Description: fmt.Sprintf("%s%% fee", m.Value.String()),
		})
	}
	rep := embedReply(platform.Message{
		Title:       "Select Payment Method",
		Description: fmt.Sprintf("Subtype: **%s**", variant.Label),
		Color:       colorBlue,
	}, true)
	rep.update = true
	rep.components = selectRow(joinID(idPanelPay, string(variant.Kind)), "Select payment method...", options)
	return rep, nil
}

func (r *Router) onPanelPayment(id string, values []string) (reply, error) {
	args, ok := splitID(id, idPanelPay, 1)
	if !ok {
		return reply{}, apperrors.NewValidationError("This panel is out of date. Please start again.", nil)
	}
	method, err := firstValue(values)
	if err != nil {
		return reply{}, err
	}
	modalID := joinID(idPanelAmount, args[0], method)
	if !fitsCustomID(modalID) {
		return reply{}, apperrors.NewValidationError("Unknown payment method.", nil)
	}
	return reply{modal: &modal{
		customID: modalID,
		title:    "Enter Robux Amount",
		inputs: []discordgo.TextInput{{
			CustomID:    inputAmount,
			Label:       "Amount of Robux (only numbers)",
			Style:       discordgo.TextInputShort,
			Placeholder: "e.g. 1000",
			Required:    true,
			MaxLength:   20,
		}},
	}}, nil
}

func (r *Router) onCloseButton(channelID string) (reply, error) {
	if _, ok := r.tickets.Ticket(channelID); !ok {
		return reply{}, service.ErrNotTicketChannel
	}
	return reply{
		content:   "Are you sure you want to close this ticket? This will delete the channel.",
		ephemeral: true,
		components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Yes, close", Style: discordgo.DangerButton, CustomID: confirmCloseID(r.clock.Now())},
			discordgo.Button{Label: "Cancel", Style: discordgo.SecondaryButton, CustomID: idCancelClose},
		}}},
	}, nil
}

func (r *Router) onConfirmClose(actor domain.Actor, channelID, id string) (reply, error) {
	issued, ok := confirmCloseIssued(id)
	if !ok || confirmExpired(issued, r.clock.Now(), r.policy.ConfirmTimeout) {
		return clearedUpdate("This confirmation has expired. Press Close Ticket again."), nil
	}
	ticket, ok := r.tickets.Ticket(channelID)
	if !ok {
		return reply{}, service.ErrNotTicketChannel
	}
	if !r.authz.CanClose(actor, ticket.OwnerID, true) {
		return reply{}, apperrors.NewForbidden("You don't have permission to close this ticket.")
	}
	rep := clearedUpdate("Closing ticket...")
	rep.ephemeral = true
	rep.then = func(ctx context.Context) (reply, error) {
		res, err := r.tickets.Close(ctx, service.CloseRequest{
			Actor:      actor,
			ChannelID:  channelID,
			Mode:       service.CloseModePlain,
			Reason:     "Manual close (button)",
			AllowOwner: true,
		})
		if err != nil {
			return reply{}, err
		}
		return textReply(closeSummary(channelID, res), true), nil
	}
	return rep, nil
}

func (r *Router) onKeepOpen(ctx context.Context, actor domain.Actor, channelID string) (reply, error) {
	if err := r.tickets.KeepOpen(ctx, actor, channelID); err != nil {
		return reply{}, err
	}
	return embedReply(platform.Message{
		Title:       "Ticket Kept Open",
		Description: "This ticket will remain open. Inactivity tracking has been reset.",
		Color:       colorGreen,
	}, true), nil
}

func (r *Router) handleModal(ctx context.Context, i *discordgo.Interaction, actor domain.Actor) {
	data := i.ModalSubmitData()
	values := modalValues(data.Components)
	name, rep, err := r.modalSubmit(ctx, i, actor, data.CustomID, values)
	if err != nil {
		r.recordFailure(name, err)
		rep = errorReply(err)
	} else if rep.then == nil {
		r.metrics.RecordCommand(name, "OK")
	}
	r.respond(ctx, i, name, rep)
}

func (r *Router) modalSubmit(ctx context.Context, i *discordgo.Interaction, actor domain.Actor, id string, values map[string]string) (string, reply, error) {
	switch {
	case strings.HasPrefix(id, idPanelAmount+idSeparator):
		args, ok := splitID(id, idPanelAmount, 2)
		if !ok {
			return "create_ticket", reply{}, apperrors.NewValidationError("This panel is out of date. Please start again.", nil)
		}
		return "create_ticket", r.createTicket(actor, i.GuildID, service.CreateTicketInput{
			Kind:          domain.Kind(args[0]),
			PaymentMethod: args[1],
			Amount:        values[inputAmount],
		}), nil
	case id == idPanelOther:
		return "create_ticket", r.createTicket(actor, i.GuildID, service.CreateTicketInput{
			Kind:  domain.KindOther,
			Notes: values[inputDetails],
		}), nil
	case strings.HasPrefix(id, idEditPayment+idSeparator):
		args, ok := splitID(id, idEditPayment, 1)
		if !ok {
			return "edit-payment", reply{}, apperrors.NewValidationError("Unknown payment method.", nil)
		}
		if err := r.pricing.EditPaymentInstructions(ctx, actor, args[0], values[inputInstructions]); err != nil {
			return "edit-payment", reply{}, err
		}
		return "edit-payment", textReply(fmt.Sprintf("Saved instructions for **%s**.", args[0]), true), nil
	case strings.HasPrefix(id, idStick+idSeparator):
		args, ok := splitID(id, idStick, 1)
		if !ok {
			return "stick", reply{}, apperrors.NewValidationError("Unknown channel.", nil)
		}
		if err := r.sticky.Set(ctx, actor, args[0], values[inputSticky]); err != nil {
			return "stick", reply{}, err
		}
		return "stick", textReply("Sticky message updated.", true), nil
	}
	return "unknown_modal", textReply("This form is no longer available.", true), nil
}

func (r *Router) createTicket(actor domain.Actor, guildID string, in service.CreateTicketInput) reply {
	in.Owner = actor
	in.GuildID = guildID
	return deferReply(true, func(ctx context.Context) (reply, error) {
		ticket, err := r.tickets.CreateTicket(ctx, in)
		if err != nil {
			return reply{}, err
		}
		return textReply("Ticket created: "+domain.ChannelMention(ticket.ChannelID), true), nil
	})
}

// modalValues collects text input values keyed by custom id.
func modalValues(components []discordgo.MessageComponent) map[string]string {
	values := make(map[string]string)
	var visit func(c discordgo.MessageComponent)
	visit = func(c discordgo.MessageComponent) {
		switch v := c.(type) {
		case *discordgo.ActionsRow:
			for _, inner := range v.Components {
				visit(inner)
			}
		case discordgo.ActionsRow:
			for _, inner := range v.Components {
				visit(inner)
			}
		case *discordgo.TextInput:
			values[v.CustomID] = v.Value
		case discordgo.TextInput:
			values[v.CustomID] = v.Value
		}
	}
	for _, c := range components {
		visit(c)
	}
	return values
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
