package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/exchange"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/pricing"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	colorGreen = 0x2ecc71
	colorBlue  = 0x3498db
	colorGold  = 0xf1c40f

	maxModalTitle = 45
	maxTextInput  = 2000
)

const (
	sectionTickets   = "🎫 Ticket System"
	sectionPricing   = "💰 Pricing & Payments"
	sectionAccounts  = "📊 Analytics & Tools"
	sectionUtilities = "⚙️ Utilities"
)

type optionKind int

const (
	optString optionKind = iota
	optUser
	optChannel
	optLongText
)

type option struct {
	Name        string
	Description string
	Kind        optionKind
	Required    bool
	Choices     []string
	// PrefixOnly options are typed inline after "!"; slash users get a
	// modal instead.
	PrefixOnly bool
}

// invocation is a parsed command call from either front end.
type invocation struct {
	Actor     domain.Actor
	GuildID   string
	ChannelID string
	Args      map[string]string
	Slash     bool
}

func (inv invocation) marker() string {
	if inv.Slash {
		return "/"
	}
	return commandPrefix
}

type command struct {
	Name        string
	Description string
	Section     string
	Options     []option
	Run         func(ctx context.Context, inv invocation) (reply, error)
}

func (c *command) prefixOptions() []option {
	return c.Options
}

func (c *command) slashOptions() []option {
	out := make([]option, 0, len(c.Options))
	for _, opt := range c.Options {
		if !opt.PrefixOnly {
			out = append(out, opt)
		}
	}
	return out
}

func (c *command) usage() string {
	var b strings.Builder
	b.WriteString(commandPrefix + c.Name)
	for _, opt := range c.Options {
		if opt.Required {
			fmt.Fprintf(&b, " <%s>", opt.Name)
		} else {
			fmt.Fprintf(&b, " [%s]", opt.Name)
		}
	}
	return b.String()
}

func (r *Router) commandTable() []*command {
	userOpt := func(desc string) option {
		return option{Name: "user", Description: desc, Kind: optUser, Required: true}
	}
	channelOpt := option{Name: "channel", Description: "The ticket channel (defaults to this one)", Kind: optChannel}
	amountOpt := option{Name: "amount", Description: "Amount in USD", Required: true}

	var subtypes []string
	for _, k := range domain.PricedKinds() {
		subtypes = append(subtypes, string(k))
	}

	return []*command{
		{Name: "ticket-panel", Section: sectionTickets, Description: "Send the ticket creation panel (admins only)",
			Run: r.cmdTicketPanel},
		{Name: "close", Section: sectionTickets, Description: "Close a ticket and credit the buyer (staff only)",
			Options: []option{channelOpt}, Run: r.cmdClose(service.CloseModeSettle, "Manual close")},
		{Name: "closefail", Section: sectionTickets, Description: "Close a ticket without adding to the balance (staff only)",
			Options: []option{channelOpt}, Run: r.cmdClose(service.CloseModeFail, "Failed transaction")},
		{Name: "conf", Section: sectionTickets, Description: "Confirm the payment and move the ticket (staff only)",
			Run: r.cmdConfirm},
		{Name: "addppl", Section: sectionTickets, Description: "Add a user to this ticket (staff only)",
			Options: []option{userOpt("The user to add")}, Run: r.cmdAddParticipant},

		{Name: "add-payment", Section: sectionPricing, Description: "Add or update a payment method fee (admins only)",
			Options: []option{
				{Name: "name", Description: "Payment method key", Required: true},
				{Name: "fee", Description: "Fee percentage, e.g. 7 for 7%", Required: true},
			}, Run: r.cmdAddPayment},
		{Name: "delete-payment", Section: sectionPricing, Description: "Delete a payment method (admins only)",
			Options: []option{{Name: "name", Description: "Payment method key", Required: true}},
			Run:     r.cmdDeletePayment},
		{Name: "edit-payment", Section: sectionPricing, Description: "Edit payment method instructions (admins only)",
			Options: []option{
				{Name: "payment_method", Description: "Payment method key", Required: true},
				{Name: "text", Description: "Instructions", Kind: optLongText, Required: true, PrefixOnly: true},
			}, Run: r.cmdEditPayment},
		{Name: "view-payments", Section: sectionPricing, Description: "View payment methods and instructions (admins only)",
			Run: r.cmdViewPayments},
		{Name: "set-price", Section: sectionPricing, Description: "Set the price per 1,000 Robux of a subtype (price managers only)",
			Options: []option{
				{Name: "subtype", Description: "Robux subtype", Required: true, Choices: subtypes},
				{Name: "price", Description: "Price in USD per 1,000", Required: true},
			}, Run: r.cmdSetPrice},
		{Name: "view-prices", Section: sectionPricing, Description: "View current prices (price managers only)",
			Run: r.cmdViewPrices},

		{Name: "info", Section: sectionAccounts, Description: "View the total spent by a user (staff only)",
			Options: []option{userOpt("The user to check")}, Run: r.cmdInfo},
		{Name: "leaderboard", Section: sectionAccounts, Description: "Top spenders",
			Run: r.cmdLeaderboard},
		{Name: "addbal", Section: sectionAccounts, Description: "Add to a user's total spent (staff only)",
			Options: []option{userOpt("The user to credit"), amountOpt}, Run: r.cmdAdjust(true)},
		{Name: "subbal", Section: sectionAccounts, Description: "Subtract from a user's total spent (staff only)",
			Options: []option{userOpt("The user to debit"), amountOpt}, Run: r.cmdAdjust(false)},
		{Name: "curr", Section: sectionAccounts, Description: "Convert between currencies, e.g. 100 USD IDR",
			Options: []option{
				{Name: "amount", Description: "Amount to convert", Required: true},
				{Name: "from_currency", Description: "Source currency code", Required: true},
				{Name: "to_currency", Description: "Target currency code", Required: true},
			}, Run: r.cmdConvert},

		{Name: "stick", Section: sectionUtilities, Description: "Set or edit the sticky message of a channel (admins only)",
			Options: []option{
				{Name: "channel", Description: "The channel to set the sticky for", Kind: optChannel, Required: true},
				{Name: "text", Description: "Sticky text, empty to remove", Kind: optLongText, PrefixOnly: true},
			}, Run: r.cmdStick},
		{Name: "help", Section: sectionUtilities, Description: "Display bot commands and features",
			Run: r.cmdHelp},
	}
}

// applicationCommands converts the command table into slash definitions.
func (r *Router) applicationCommands() []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(r.ordered))
	for _, cmd := range r.ordered {
		def := &discordgo.ApplicationCommand{Name: cmd.Name, Description: cmd.Description}
		for _, opt := range cmd.slashOptions() {
			o := &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        opt.Name,
				Description: opt.Description,
				Required:    opt.Required,
			}
			switch opt.Kind {
			case optUser:
				o.Type = discordgo.ApplicationCommandOptionUser
			case optChannel:
				o.Type = discordgo.ApplicationCommandOptionChannel
				o.ChannelTypes = []discordgo.ChannelType{discordgo.ChannelTypeGuildText}
			}
			for _, choice := range opt.Choices {
				o.Choices = append(o.Choices, &discordgo.ApplicationCommandOptionChoice{Name: choice, Value: choice})
			}
			def.Options = append(def.Options, o)
		}
		out = append(out, def)
	}
	return out
}

func (r *Router) cmdTicketPanel(_ context.Context, inv invocation) (reply, error) {
	if err := r.authz.RequireAdmin(inv.Actor); err != nil {
		return reply{}, err
	}
	return panelReply(), nil
}

func (r *Router) cmdClose(mode service.CloseMode, label string) func(context.Context, invocation) (reply, error) {
	return func(_ context.Context, inv invocation) (reply, error) {
		if err := r.authz.RequireStaff(inv.Actor); err != nil {
			return reply{}, err
		}
		target := inv.ChannelID
		if ch := inv.Args["channel"]; ch != "" {
			target = ch
		}
		if _, ok := r.tickets.Ticket(target); !ok {
			return reply{}, service.ErrNotTicketChannel
		}
		reason := fmt.Sprintf("%s (%s%s command)", label, inv.marker(), closeCommandName(mode))
		return deferReply(true, func(ctx context.Context) (reply, error) {
			res, err := r.tickets.Close(ctx, service.CloseRequest{
				Actor:     inv.Actor,
				ChannelID: target,
				Mode:      mode,
				Reason:    reason,
			})
			if err != nil {
				return reply{}, err
			}
			return textReply(closeSummary(target, res), true), nil
		}), nil
	}
}

func closeCommandName(mode service.CloseMode) string {
	if mode == service.CloseModeFail {
		return "closefail"
	}
	return "close"
}

func closeSummary(channelID string, res service.CloseResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %s closed.", domain.ChannelMention(channelID))
	if res.Credited.IsPositive() {
		fmt.Fprintf(&b, " Added %s to %s's total.", pricing.FormatMoney(res.Credited), domain.Mention(res.Ticket.OwnerID))
	}
	if res.Orphaned {
		b.WriteString(" The channel could not be removed; the log channel has the details.")
	}
	return b.String()
}

func (r *Router) cmdConfirm(ctx context.Context, inv invocation) (reply, error) {
	if _, err := r.tickets.Confirm(ctx, inv.Actor, inv.ChannelID); err != nil {
		return reply{}, err
	}
	return textReply("Ticket confirmed and moved.", true), nil
}

func (r *Router) cmdAddParticipant(ctx context.Context, inv invocation) (reply, error) {
	userID := inv.Args["user"]
	if err := r.tickets.AddParticipant(ctx, inv.Actor, inv.ChannelID, userID); err != nil {
		return reply{}, err
	}
	return textReply(domain.Mention(userID)+" has been added to the ticket.", true), nil
}

func (r *Router) cmdAddPayment(ctx context.Context, inv invocation) (reply, error) {
	name, fee := inv.Args["name"], inv.Args["fee"]
	if err := r.pricing.AddPayment(ctx, inv.Actor, name, fee); err != nil {
		return reply{}, err
	}
	return textReply(fmt.Sprintf("Payment method **%s** saved with a %s%% fee.", pricing.NormalizeKey(name), strings.TrimSpace(fee)), true), nil
}

func (r *Router) cmdDeletePayment(ctx context.Context, inv invocation) (reply, error) {
	name := inv.Args["name"]
	if err := r.pricing.DeletePayment(ctx, inv.Actor, name); err != nil {
		return reply{}, err
	}
	return textReply(fmt.Sprintf("Payment method **%s** deleted.", pricing.NormalizeKey(name)), true), nil
}

func (r *Router) cmdEditPayment(ctx context.Context, inv invocation) (reply, error) {
	key := pricing.NormalizeKey(inv.Args["payment_method"])
	if !inv.Slash {
		if err := r.pricing.EditPaymentInstructions(ctx, inv.Actor, key, inv.Args["text"]); err != nil {
			return reply{}, err
		}
		return textReply(fmt.Sprintf("Saved instructions for **%s**.", key), true), nil
	}

	if err := r.authz.RequireAdmin(inv.Actor); err != nil {
		return reply{}, err
	}
	if !r.pricing.HasPaymentMethod(key) {
		return reply{}, apperrors.NewNotFound(fmt.Sprintf("Payment method `%s`", key), nil)
	}
	id := joinID(idEditPayment, key)
	if !fitsCustomID(id) {
		return reply{}, apperrors.NewValidationError("Payment method name is too long.", nil)
	}
	current, _, err := r.pricing.PaymentInstructions(ctx, key)
	if err != nil {
		return reply{}, apperrors.NewUnavailable("Could not read payment instructions.", err)
	}
	return reply{modal: &modal{
		customID: id,
		title:    truncateRunes("Edit payment: "+key, maxModalTitle),
		inputs: []discordgo.TextInput{{
			CustomID:  inputInstructions,
			Label:     "Instructions (multiline)",
			Style:     discordgo.TextInputParagraph,
			Value:     current,
			Required:  true,
			MaxLength: maxTextInput,
		}},
	}}, nil
}

func (r *Router) cmdViewPayments(ctx context.Context, inv invocation) (reply, error) {
	views, err := r.pricing.ViewPayments(ctx, inv.Actor)
	if err != nil {
		return reply{}, err
	}
	if len(views) == 0 {
		return textReply("No payment methods configured.", true), nil
	}
	lines := make([]string, 0, len(views))
	for _, v := range views {
		text := v.Instructions
		if text == "" {
			text = "_no instructions_"
		}
		lines = append(lines, fmt.Sprintf("**%s** (%s%% fee): %s", v.Method, v.FeePercent.String(), text))
	}
	return embedReply(platform.Message{
		Title:       "Payment Instructions",
		Description: strings.Join(lines, "\n"),
		Color:       colorBlue,
	}, true), nil
}

func (r *Router) cmdSetPrice(ctx context.Context, inv invocation) (reply, error) {
	subtype, price := inv.Args["subtype"], inv.Args["price"]
	if err := r.pricing.SetPrice(ctx, inv.Actor, subtype, price); err != nil {
		return reply{}, err
	}
	return textReply(fmt.Sprintf("Price for **%s** set to $%s per 1,000 Robux.",
		strings.ToLower(strings.TrimSpace(subtype)), strings.TrimSpace(price)), true), nil
}

func (r *Router) cmdViewPrices(_ context.Context, inv invocation) (reply, error) {
	entries, err := r.pricing.ViewPrices(inv.Actor)
	if err != nil {
		return reply{}, err
	}
	msg := platform.Message{Title: "Current Prices", Color: colorBlue}
	for _, e := range entries {
		label := e.Key
		if v, ok := domain.VariantOf(domain.Kind(e.Key)); ok {
			label = v.Label
		}
		msg.Fields = append(msg.Fields, platform.Field{
			Name:   label,
			Value:  pricing.FormatMoney(e.Value) + " per 1,000 Robux",
			Inline: true,
		})
	}
	if len(msg.Fields) == 0 {
		msg.Description = "No prices configured."
	}
	return embedReply(msg, true), nil
}

func (r *Router) cmdInfo(_ context.Context, inv invocation) (reply, error) {
	userID := inv.Args["user"]
	total, err := r.ledger.Info(inv.Actor, userID)
	if err != nil {
		return reply{}, err
	}
	return embedReply(platform.Message{
		Title:       "Account Info",
		Description: fmt.Sprintf("%s\n💰 **Total Spent:** %s", domain.Mention(userID), formatUSD(total)),
		Color:       colorBlue,
	}, true), nil
}

func (r *Router) cmdLeaderboard(_ context.Context, _ invocation) (reply, error) {
	size := r.policy.LeaderboardSize
	if size <= 0 {
		size = 10
	}
	top := r.ledger.TopK(size)
	msg := platform.Message{Title: fmt.Sprintf("💸 Top %d Spenders", size), Color: colorGold}
	if len(top) == 0 {
		msg.Description = "No data available."
		return embedReply(msg, false), nil
	}
	lines := make([]string, 0, len(top))
	for i, e := range top {
		lines = append(lines, fmt.Sprintf("**%d. %s** - %s", i+1, domain.Mention(e.UserID), formatUSD(e.Spent)))
	}
	msg.Description = strings.Join(lines, "\n")
	return embedReply(msg, false), nil
}

func (r *Router) cmdAdjust(credit bool) func(context.Context, invocation) (reply, error) {
	return func(ctx context.Context, inv invocation) (reply, error) {
		userID, raw := inv.Args["user"], inv.Args["amount"]
		total, err := r.ledger.Adjust(ctx, inv.Actor, userID, raw, credit)
		if err != nil {
			return reply{}, err
		}
		amount, _ := decimal.NewFromString(strings.TrimSpace(raw))
		line := fmt.Sprintf("Added %s to %s's balance", formatUSD(amount), domain.Mention(userID))
		if !credit {
			line = fmt.Sprintf("Subtracted %s from %s's balance", formatUSD(amount), domain.Mention(userID))
		}
		return embedReply(platform.Message{
			Title:       "Balance Updated ✅",
			Description: fmt.Sprintf("%s\nNew total: %s", line, formatUSD(total)),
			Color:       colorGreen,
		}, false), nil
	}
}

func (r *Router) cmdConvert(_ context.Context, inv invocation) (reply, error) {
	if r.exchange == nil || !r.exchange.Enabled() {
		return reply{}, apperrors.NewUnavailable("Currency conversion is not configured.", nil)
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(inv.Args["amount"]), ",", ""))
	if err != nil || !amount.IsPositive() {
		return reply{}, apperrors.NewValidationError("Amount must be a positive number.", nil)
	}
	from := strings.ToUpper(strings.TrimSpace(inv.Args["from_currency"]))
	to := strings.ToUpper(strings.TrimSpace(inv.Args["to_currency"]))
	return deferReply(false, func(ctx context.Context) (reply, error) {
		converted, err := r.exchange.Convert(ctx, amount, from, to)
		if errors.Is(err, exchange.ErrUnknownCurrency) {
			return textReply("❌ Invalid currency code: "+to, false), nil
		}
		if err != nil {
			if apperrors.IsCode(err, apperrors.CodeUnavailable) {
				return textReply("⚠️ Error: Could not retrieve exchange rate.", false), nil
			}
			return reply{}, err
		}
		return embedReply(platform.Message{
			Title: "💱 Currency Conversion",
			Description: fmt.Sprintf("**%s %s** = **%s %s**",
				groupThousands(amount.StringFixed(2)), from, groupThousands(converted.StringFixed(2)), to),
			Color: colorGreen,
		}, false), nil
	}), nil
}

func (r *Router) cmdStick(ctx context.Context, inv invocation) (reply, error) {
	channelID := inv.Args["channel"]
	if !inv.Slash {
		if err := r.sticky.Set(ctx, inv.Actor, channelID, inv.Args["text"]); err != nil {
			return reply{}, err
		}
		return textReply("Sticky message updated.", true), nil
	}
	if err := r.authz.RequireAdmin(inv.Actor); err != nil {
		return reply{}, err
	}
	return reply{modal: &modal{
		customID: joinID(idStick, channelID),
		title:    "Edit sticky message",
		inputs: []discordgo.TextInput{{
			CustomID:  inputSticky,
			Label:     "Sticky message (leave empty to remove)",
			Style:     discordgo.TextInputParagraph,
			Value:     r.sticky.Current(channelID),
			MaxLength: maxTextInput,
		}},
	}}, nil
}

func (r *Router) cmdHelp(_ context.Context, inv invocation) (reply, error) {
	msg := platform.Message{
		Title:       "🤖 Bot Help - Guide",
		Description: fmt.Sprintf("Users can hold up to %d open tickets. Staff roles are required for most commands.", r.policy.TicketQuota),
		Color:       colorBlue,
		Footer:      "Every command also works with the " + commandPrefix + " prefix.",
	}
	sections := map[string][]string{}
	var order []string
	for _, cmd := range r.ordered {
		if _, ok := sections[cmd.Section]; !ok {
			order = append(order, cmd.Section)
		}
		sections[cmd.Section] = append(sections[cmd.Section], fmt.Sprintf("• `%s%s` - %s", inv.marker(), cmd.Name, cmd.Description))
	}
	for _, name := range order {
		msg.Fields = append(msg.Fields, platform.Field{Name: name, Value: strings.Join(sections[name], "\n")})
	}
	return embedReply(msg, false), nil
}

func formatUSD(d decimal.Decimal) string {
	return "$" + groupThousands(d.StringFixed(2))
}

// groupThousands inserts commas into the integer part of a fixed-point
// number.
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, frac = s[:dot], s[dot:]
	}
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + frac
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
