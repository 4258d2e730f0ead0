package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/pricing"
)

const (
	colorBlue  = 0x3498db
	colorGreen = 0x2ecc71
	colorRed   = 0xe74c3c
)

func ticketCreatedNotice(t domain.Ticket, supportRoleID, instructions string) platform.Message {
	subtype := "N/A"
	if t.Subtype != "" && t.Subtype != domain.KindOther {
		subtype = string(t.Subtype)
	}
	fields := []platform.Field{
		{Name: "User", Value: domain.Mention(t.OwnerID), Inline: true},
		{Name: "Delivery Type", Value: string(t.DeliveryType), Inline: true},
		{Name: "Subtype", Value: subtype, Inline: true},
		{Name: "Payment Method", Value: t.PaymentMethod, Inline: true},
		{Name: "Amount (Robux)", Value: strconv.FormatInt(t.Amount, 10), Inline: true},
		{Name: "Total Cost", Value: pricing.FormatMoney(t.TotalCost), Inline: true},
	}
	if t.Notes != "" {
		fields = append(fields, platform.Field{Name: "Details", Value: t.Notes})
	}
	if instructions != "" {
		fields = append(fields, platform.Field{Name: "Payment Instructions", Value: instructions})
	}

	content := "• Ticket created by " + domain.Mention(t.OwnerID)
	if supportRoleID != "" {
		content = "<@&" + supportRoleID + "> " + content
	}
	return platform.Message{
		Content:   content,
		Title:     "Ticket Created",
		Color:     colorBlue,
		Fields:    fields,
		Footer:    "Support will be with you shortly.",
		Timestamp: t.CreatedAt,
		Actions:   []platform.ActionKind{platform.ActionCloseTicket},
	}
}

func uncategorizedNotice(supportRoleID string) platform.Message {
	mention := "@here"
	if supportRoleID != "" {
		mention = "<@&" + supportRoleID + ">"
	}
	return platform.Message{
		Content: mention + " every ticket category is full, so this ticket was created without a category. Please move it once space frees up.",
	}
}

func confirmationNotice(v domain.Variant) platform.Message {
	if v.Confirmation.Plain != "" {
		return platform.Message{Content: v.Confirmation.Plain}
	}
	return platform.Message{
		Title:       v.Confirmation.Title,
		Description: v.Confirmation.Body,
		Color:       v.Confirmation.Color,
	}
}

func completionNotice(guildID string, guild *config.GuildConfig) platform.Message {
	var b strings.Builder
	b.WriteString("✅ **This transaction has been completed!**\n\n")
	b.WriteString("It has been a pleasure doing business with you! Feel free to vouch 💖\n\n")
	if guild.VouchChannelID != "" {
		b.WriteString("**HOW TO VOUCH:**\n")
		fmt.Fprintf(&b, "➡️ [Go to the vouch channel](https://discord.com/channels/%s/%s)\n\n", guildID, guild.VouchChannelID)
	}
	if guild.VouchUserID != "" {
		vouchee := domain.Mention(guild.VouchUserID)
		b.WriteString("__Example:__\n")
		fmt.Fprintf(&b, "+Vouch %s (items) (price) (your feedback) (photo/proof)\n\n", vouchee)
		fmt.Fprintf(&b, "+Vouch %s 20,000 Robux via Group Payout, 110$! Very Fast. (Attached an image/photo)\n\n", vouchee)
		b.WriteString("📌 **Please follow the exact format including the '+' as it registers to a bot.**")
	}
	return platform.Message{
		Title:       "Transaction Completed 🎉",
		Description: strings.TrimSpace(b.String()),
		Color:       colorGreen,
	}
}

func failureNotice() platform.Message {
	return platform.Message{
		Title: "Transaction Failed ❌",
		Description: "Unfortunately, this transaction could not be completed.\n\n" +
			"If you have any questions, please contact support.\n\n" +
			"Thank you for your patience!",
		Color: colorRed,
	}
}

func inactivityWarning(mention string, idle, grace time.Duration) platform.Message {
	return platform.Message{
		Content: mention,
		Title:   "Ticket Inactivity Warning",
		Description: fmt.Sprintf("This ticket has been inactive for %s and will close in %s unless stopped.",
			humanDuration(idle), humanDuration(grace)),
		Color:   colorRed,
		Actions: []platform.ActionKind{platform.ActionKeepOpen},
	}
}

// humanDuration renders whole days or hours.
func humanDuration(d time.Duration) string {
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("%d days", int(d/(24*time.Hour)))
	case d >= 24*time.Hour:
		return "1 day"
	case d >= 2*time.Hour:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d >= time.Hour:
		return "1 hour"
	default:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
}

// TicketChannelName derives the channel name from the owner's display name
// and the last four digits of their id.
func TicketChannelName(ownerName, ownerID string) string {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(ownerName)), " ", "-")
	if runes := []rune(name); len(runes) > 20 {
		name = string(runes[:20])
	}
	if name == "" {
		name = "user"
	}
	suffix := ownerID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return "ticket-" + name + "-" + suffix
}
