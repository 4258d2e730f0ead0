// Package discord is the chat front end: slash commands, "!" prefix
// commands, the ticket panel and message components.
package discord

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/clock"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/observability"
	platformdiscord "github.com/spec-kit/ticket-bot/internal/platform/discord"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const handlerTimeout = 2 * time.Minute

// Session is the part of *discordgo.Session the router replies through.
type Session interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// Converter converts between currencies.
type Converter interface {
	Enabled() bool
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// Router dispatches gateway events to the services.
type Router struct {
	session  Session
	tickets  *service.TicketService
	pricing  *service.PricingService
	ledger   *service.LedgerService
	sticky   *service.StickyService
	exchange Converter
	authz    *auth.Authorizer
	guild    *config.GuildConfig
	guildID  string
	policy   config.PolicyConfig
	clock    clock.Clock
	metrics  *observability.Metrics
	logger   *zap.Logger

	commands map[string]*command
	ordered  []*command
}

// Dependencies bundles collaborators for the router.
type Dependencies struct {
	Session    Session
	Tickets    *service.TicketService
	Pricing    *service.PricingService
	Ledger     *service.LedgerService
	Sticky     *service.StickyService
	Exchange   Converter
	Authorizer *auth.Authorizer
	Guild      *config.GuildConfig
	GuildID    string
	Policy     config.PolicyConfig
	Clock      clock.Clock
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewRouter builds the router and its command table.
func NewRouter(deps Dependencies) *Router {
	r := &Router{
		session:  deps.Session,
		tickets:  deps.Tickets,
		pricing:  deps.Pricing,
		ledger:   deps.Ledger,
		sticky:   deps.Sticky,
		exchange: deps.Exchange,
		authz:    deps.Authorizer,
		guild:    deps.Guild,
		guildID:  deps.GuildID,
		policy:   deps.Policy,
		clock:    deps.Clock,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
	r.ordered = r.commandTable()
	r.commands = make(map[string]*command, len(r.ordered))
	for _, cmd := range r.ordered {
		r.commands[cmd.Name] = cmd
	}
	return r
}

// Register attaches the gateway handlers to s.
func (r *Router) Register(s *discordgo.Session) {
	s.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		r.HandleInteraction(ctx, i.Interaction)
	})
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		r.HandleMessage(ctx, m.Message)
	})
}

// Start registers the slash commands, refreshes the ticket panel and
// reposts sticky notices.
func (r *Router) Start(ctx context.Context, appID string) error {
	if _, err := r.session.ApplicationCommandBulkOverwrite(appID, r.guildID, r.applicationCommands(), discordgo.WithContext(ctx)); err != nil {
		return err
	}
	r.logger.Info("slash commands registered", zap.Int("count", len(r.ordered)))
	if err := r.refreshPanel(ctx, appID); err != nil {
		r.logger.Warn("ticket panel refresh failed", zap.Error(err))
	}
	if r.sticky != nil {
		r.sticky.RepostAll(ctx)
	}
	return nil
}

// HandleInteraction answers one interaction.
func (r *Router) HandleInteraction(ctx context.Context, i *discordgo.Interaction) {
	defer r.recoverPanic("interaction")
	actor := interactionActor(i)
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		r.handleSlash(ctx, i, actor)
	case discordgo.InteractionMessageComponent:
		r.handleComponent(ctx, i, actor)
	case discordgo.InteractionModalSubmit:
		r.handleModal(ctx, i, actor)
	}
}

// HandleMessage records ticket activity, feeds the sticky scheduler and
// runs prefix commands. Bot messages are ignored.
func (r *Router) HandleMessage(ctx context.Context, m *discordgo.Message) {
	defer r.recoverPanic("message")
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}
	if _, err := r.tickets.Touch(ctx, m.ChannelID, m.Author.ID); err != nil {
		r.logger.Warn("ticket activity not recorded", zap.String("channel_id", m.ChannelID), zap.Error(err))
	}
	if r.sticky != nil {
		r.sticky.OnMessage(m.ChannelID)
	}

	name, raw, ok := parsePrefix(m.Content)
	if !ok || m.GuildID == "" {
		return
	}
	cmd, ok := r.commands[name]
	if !ok {
		return
	}
	actor := messageActor(m)
	var rep reply
	args, err := bindArgs(raw, cmd.prefixOptions())
	if err != nil {
		r.metrics.RecordCommand(cmd.Name, apperrors.CodeValidation)
		rep = textReply(err.Error()+". Usage: `"+cmd.usage()+"`", false)
	} else {
		rep = r.execute(ctx, cmd, invocation{
			Actor:     actor,
			GuildID:   m.GuildID,
			ChannelID: m.ChannelID,
			Args:      args,
		})
		if rep.then != nil {
			rep = r.follow(ctx, cmd.Name, rep)
		}
	}
	if rep.empty() {
		return
	}
	if _, err := r.session.ChannelMessageSendComplex(m.ChannelID, rep.messageSend(m.ID, m.ChannelID, m.GuildID), discordgo.WithContext(ctx)); err != nil {
		r.logger.Debug("prefix reply failed", zap.String("command", cmd.Name), zap.Error(err))
	}
}

func (r *Router) handleSlash(ctx context.Context, i *discordgo.Interaction, actor domain.Actor) {
	data := i.ApplicationCommandData()
	cmd, ok := r.commands[data.Name]
	if !ok {
		r.respond(ctx, i, "unknown", textReply("Unknown command.", true))
		return
	}
	args := make(map[string]string, len(data.Options))
	for _, opt := range data.Options {
		args[opt.Name] = optionString(opt)
	}
	rep := r.execute(ctx, cmd, invocation{
		Actor:     actor,
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Args:      args,
		Slash:     true,
	})
	r.respond(ctx, i, cmd.Name, rep)
}

// execute runs a command and turns failures into replies.
func (r *Router) execute(ctx context.Context, cmd *command, inv invocation) reply {
	rep, err := cmd.Run(ctx, inv)
	if err != nil {
		r.recordFailure(cmd.Name, err)
		return errorReply(err)
	}
	if rep.then == nil {
		r.metrics.RecordCommand(cmd.Name, "OK")
	}
	return rep
}

// follow runs the continuation of a deferred reply.
func (r *Router) follow(ctx context.Context, name string, rep reply) reply {
	next, err := rep.then(ctx)
	if err != nil {
		r.recordFailure(name, err)
		next = errorReply(err)
	} else {
		r.metrics.RecordCommand(name, "OK")
	}
	next.ephemeral = next.ephemeral || rep.ephemeral
	return next
}

// respond sends rep as the interaction response, then any follow-up.
func (r *Router) respond(ctx context.Context, i *discordgo.Interaction, name string, rep reply) {
	if err := r.session.InteractionRespond(i, rep.interactionResponse(), discordgo.WithContext(ctx)); err != nil {
		r.logger.Warn("interaction response failed", zap.String("handler", name), zap.Error(err))
		return
	}
	if rep.then == nil {
		return
	}
	next := r.follow(ctx, name, rep)
	if next.empty() {
		return
	}
	if _, err := r.session.FollowupMessageCreate(i, true, next.webhookParams(), discordgo.WithContext(ctx)); err != nil {
		r.logger.Debug("interaction follow-up failed", zap.String("handler", name), zap.Error(err))
	}
}

func (r *Router) recordFailure(name string, err error) {
	domainErr := apperrors.ToDomainError(err)
	r.metrics.RecordCommand(name, domainErr.Code)
	if domainErr.HTTPStatus >= 500 {
		r.logger.Error("command failed", zap.String("command", name), zap.Error(err))
		return
	}
	r.logger.Debug("command rejected", zap.String("command", name), zap.String("code", domainErr.Code))
}

func (r *Router) recoverPanic(source string) {
	if v := recover(); v != nil {
		r.logger.Error("handler panic", zap.String("source", source), zap.Any("panic", v), zap.ByteString("stack", debug.Stack()))
	}
}

func interactionActor(i *discordgo.Interaction) domain.Actor {
	if i.Member != nil {
		return platformdiscord.MemberActor(i.Member)
	}
	if i.User != nil {
		return domain.Actor{ID: i.User.ID, Name: i.User.Username}
	}
	return domain.Actor{}
}

func messageActor(m *discordgo.Message) domain.Actor {
	if m.Member != nil {
		member := *m.Member
		member.User = m.Author
		return platformdiscord.MemberActor(&member)
	}
	return domain.Actor{ID: m.Author.ID, Name: m.Author.Username}
}

func optionString(opt *discordgo.ApplicationCommandInteractionDataOption) string {
	switch v := opt.Value.(type) {
	case string:
		return v
	case float64:
		return decimal.NewFromFloat(v).String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
