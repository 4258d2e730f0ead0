package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/clock"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// ErrNotTicketChannel is returned for operations aimed at a channel that
// carries no ticket.
var ErrNotTicketChannel = apperrors.NewDomainError(apperrors.CodeNotFound,
	"This is not a valid ticket channel.", http.StatusNotFound, nil)

// CloseMode selects the side effects of a close.
type CloseMode string

const (
	// CloseModePlain closes without notifying the owner.
	CloseModePlain CloseMode = "plain"
	// CloseModeSettle credits the ledger and sends the completion notice.
	CloseModeSettle CloseMode = "settle"
	// CloseModeFail sends the failure notice.
	CloseModeFail CloseMode = "fail"
)

// TranscriptWriter archives closed-ticket transcripts.
type TranscriptWriter interface {
	Write(channelID string, closedAt time.Time, content string) (string, error)
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	registry     *TicketRegistry
	platform     platform.Platform
	authz        *auth.Authorizer
	pricing      *PricingService
	ledger       *LedgerService
	dispatcher   events.Dispatcher
	clock        clock.Clock
	archive      TranscriptWriter
	guild        *config.GuildConfig
	guildID      string
	policy       config.PolicyConfig
	metrics      *observability.Metrics
	logger       *zap.Logger
	system       domain.Actor
	ownerLocks   *keyedMutex
	channelLocks *keyedMutex
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Registry   *TicketRegistry
	Platform   platform.Platform
	Authorizer *auth.Authorizer
	Pricing    *PricingService
	Ledger     *LedgerService
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Archive    TranscriptWriter
	Guild      *config.GuildConfig
	GuildID    string
	Policy     config.PolicyConfig
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	BotUserID  string
}

// NewTicketService wires the ticket lifecycle.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		registry:     deps.Registry,
		platform:     deps.Platform,
		authz:        deps.Authorizer,
		pricing:      deps.Pricing,
		ledger:       deps.Ledger,
		dispatcher:   deps.Dispatcher,
		clock:        deps.Clock,
		archive:      deps.Archive,
		guild:        deps.Guild,
		guildID:      deps.GuildID,
		policy:       deps.Policy,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		system:       domain.SystemActor(deps.BotUserID, "Ticket Bot"),
		ownerLocks:   newKeyedMutex(),
		channelLocks: newKeyedMutex(),
	}
}

// CreateTicketInput describes a ticket creation request.
type CreateTicketInput struct {
	GuildID       string
	Owner         domain.Actor
	Kind          domain.Kind
	PaymentMethod string
	Amount        string
	Notes         string
}

// ParseAmount reads a non-negative unit quantity, allowing thousands
// separators.
func ParseAmount(raw string) (int64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	amount, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil || amount < 0 {
		return 0, apperrors.NewValidationError("Please enter a valid whole number amount.", map[string]any{"amount": raw})
	}
	return amount, nil
}

// CreateTicket opens a private ticket channel for the requester.
func (s *TicketService) CreateTicket(ctx context.Context, in CreateTicketInput) (domain.Ticket, error) {
	if in.GuildID == "" {
		return domain.Ticket{}, apperrors.NewValidationError("This command can only be used in a server.", nil)
	}
	variant, ok := domain.VariantOf(in.Kind)
	if !ok {
		return domain.Ticket{}, apperrors.NewValidationError("Unknown ticket type.", map[string]any{"kind": in.Kind})
	}

	ticket := domain.Ticket{
		OwnerID:       in.Owner.ID,
		DeliveryType:  variant.Delivery,
		Subtype:       variant.Kind,
		PaymentMethod: "N/A",
		TotalCost:     decimal.Zero,
		Status:        domain.TicketStatusOpen,
		Notes:         strings.TrimSpace(in.Notes),
	}
	if variant.Priced {
		method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
		if method == "" {
			return domain.Ticket{}, apperrors.NewValidationError("Please choose a payment method.", nil)
		}
		if !s.pricing.HasPaymentMethod(method) {
			// Removed while the buyer held the picker; it prices fee-free.
			s.logger.Warn("ticket opened with unlisted payment method", zap.String("payment_method", method))
		}
		amount, err := ParseAmount(in.Amount)
		if err != nil {
			return domain.Ticket{}, err
		}
		ticket.PaymentMethod = method
		ticket.Amount = amount
	} else if ticket.Notes == "" {
		return domain.Ticket{}, apperrors.NewValidationError("Please describe what you need.", nil)
	}

	unlock := s.ownerLocks.Lock(in.Owner.ID)
	defer unlock()

	live, err := s.registry.Prune(ctx, in.Owner.ID, s.platform)
	if err != nil {
		return domain.Ticket{}, err
	}
	if live >= s.policy.TicketQuota {
		return domain.Ticket{}, apperrors.NewQuotaExceeded(s.policy.TicketQuota)
	}

	parentID := s.selectCategory(ctx, in.GuildID, variant.CreateCategory)
	channelID, err := s.platform.CreateTicketChannel(ctx, platform.ChannelSpec{
		GuildID:     in.GuildID,
		Name:        TicketChannelName(in.Owner.Name, in.Owner.ID),
		Topic:       fmt.Sprintf("Ticket for %s (%s)", in.Owner.Name, in.Owner.ID),
		ParentID:    parentID,
		OwnerID:     in.Owner.ID,
		StaffRoleID: s.guild.SupportRoleID,
	})
	if err != nil {
		s.logger.Error("ticket channel creation failed", zap.String("owner_id", in.Owner.ID), zap.Error(err))
		return domain.Ticket{}, apperrors.NewUnavailable("Failed to create ticket channel.", err)
	}

	now := s.clock.Now().UTC()
	ticket.ChannelID = channelID
	ticket.CreatedAt = now
	ticket.LastActivityAt = now

	var instructions string
	if variant.Priced {
		quote := s.pricing.Quote(variant.Kind, ticket.PaymentMethod, ticket.Amount)
		ticket.TotalCost = quote.Total
		text, _, err := s.pricing.PaymentInstructions(ctx, ticket.PaymentMethod)
		if err != nil {
			s.logger.Warn("payment instructions lookup failed", zap.String("payment_method", ticket.PaymentMethod), zap.Error(err))
		}
		instructions = text
	}

	if err := s.registry.Insert(ctx, ticket); err != nil {
		if delErr := s.platform.DeleteChannel(ctx, channelID); delErr != nil {
			s.logger.Error("orphaned ticket channel after failed insert",
				zap.String("channel_id", channelID), zap.Error(delErr))
		}
		return domain.Ticket{}, err
	}

	if _, err := s.platform.Send(ctx, channelID, ticketCreatedNotice(ticket, s.guild.SupportRoleID, instructions)); err != nil {
		s.logger.Warn("ticket notice failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	if parentID == "" {
		if _, err := s.platform.Send(ctx, channelID, uncategorizedNotice(s.guild.SupportRoleID)); err != nil {
			s.logger.Warn("uncategorized notice failed", zap.String("channel_id", channelID), zap.Error(err))
		}
	}

	s.publish(ctx, events.Event{
		Type:      events.EventTicketCreated,
		ChannelID: channelID,
		Actor:     events.ActorFrom(in.Owner),
		Payload: events.TicketCreatedPayload{
			OwnerID:       ticket.OwnerID,
			DeliveryType:  ticket.DeliveryType,
			Subtype:       ticket.Subtype,
			PaymentMethod: ticket.PaymentMethod,
			Amount:        ticket.Amount,
			TotalCost:     ticket.TotalCost,
			Uncategorized: parentID == "",
		},
	})
	s.metrics.TicketCreated(string(ticket.Subtype))
	s.logger.Info("ticket created",
		zap.String("channel_id", channelID),
		zap.String("owner_id", ticket.OwnerID),
		zap.String("subtype", string(ticket.Subtype)),
		zap.String("total_cost", ticket.TotalCost.String()))
	return ticket, nil
}

// selectCategory returns the first configured category for key holding
// fewer channels than the capacity, or "" when all are full or missing.
func (s *TicketService) selectCategory(ctx context.Context, guildID string, key domain.CategoryKey) string {
	for _, id := range s.guild.CategoryIDs(key) {
		if id == "" {
			continue
		}
		count, err := s.platform.CategoryChildCount(ctx, guildID, id)
		if err != nil {
			if !errors.Is(err, platform.ErrNotFound) {
				s.logger.Warn("category lookup failed", zap.String("category_id", id), zap.Error(err))
			}
			continue
		}
		if count < s.policy.CategoryCapacity {
			return id
		}
	}
	return ""
}

// Confirm moves a ticket to its subtype's follow-up category and posts the
// matching instructions.
func (s *TicketService) Confirm(ctx context.Context, actor domain.Actor, channelID string) (domain.Ticket, error) {
	if err := s.authz.RequireStaff(actor); err != nil {
		return domain.Ticket{}, err
	}
	unlock := s.channelLocks.Lock(channelID)
	defer unlock()

	ticket, ok := s.registry.FindByChannel(channelID)
	if !ok {
		return domain.Ticket{}, ErrNotTicketChannel
	}
	variant, ok := domain.VariantOf(ticket.Subtype)
	if !ok || variant.ConfirmCategory == "" {
		return domain.Ticket{}, apperrors.NewValidationError("Robux type not found in this ticket.", nil)
	}
	categoryID, ok := s.guild.CategoryID(variant.ConfirmCategory)
	if !ok {
		return domain.Ticket{}, apperrors.NewNotFound("Target category", map[string]any{"category": variant.ConfirmCategory})
	}

	if err := s.platform.MoveChannel(ctx, channelID, categoryID); err != nil {
		return domain.Ticket{}, apperrors.NewUnavailable("Failed to move the ticket channel.", err)
	}
	if _, err := s.platform.Send(ctx, channelID, confirmationNotice(variant)); err != nil {
		s.logger.Warn("confirmation instructions failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	if _, err := s.registry.SetStatus(ctx, channelID, domain.TicketStatusConfirmed); err != nil {
		return domain.Ticket{}, err
	}
	ticket.Status = domain.TicketStatusConfirmed

	s.publish(ctx, events.Event{
		Type:      events.EventTicketConfirmed,
		ChannelID: channelID,
		Actor:     events.ActorFrom(actor),
		Payload:   events.TicketConfirmedPayload{Subtype: ticket.Subtype, CategoryID: categoryID},
	})
	return ticket, nil
}

// CloseRequest describes a close. AllowOwner lets the ticket owner close
// through the confirm-before-close button.
type CloseRequest struct {
	Actor      domain.Actor
	ChannelID  string
	Mode       CloseMode
	Reason     string
	AllowOwner bool
}

// CloseResult reports what a close did.
type CloseResult struct {
	Ticket     domain.Ticket
	Credited   decimal.Decimal
	Transcript string
	Orphaned   bool
}

// Close archives the transcript, removes the ticket and deletes its channel.
func (s *TicketService) Close(ctx context.Context, req CloseRequest) (CloseResult, error) {
	ticket, ok := s.registry.FindByChannel(req.ChannelID)
	if !ok {
		return CloseResult{}, ErrNotTicketChannel
	}
	if !s.authz.CanClose(req.Actor, ticket.OwnerID, req.AllowOwner) {
		return CloseResult{}, apperrors.NewForbidden("You do not have permission to close this ticket.")
	}
	if req.Mode == "" {
		req.Mode = CloseModePlain
	}

	unlock := s.channelLocks.Lock(req.ChannelID)
	defer unlock()

	// A concurrent close or sweep may have won the race.
	ticket, ok = s.registry.FindByChannel(req.ChannelID)
	if !ok {
		return CloseResult{}, ErrNotTicketChannel
	}
	return s.closeLocked(ctx, req, ticket)
}

// closeLocked runs a close while the caller holds the channel lock.
func (s *TicketService) closeLocked(ctx context.Context, req CloseRequest, ticket domain.Ticket) (CloseResult, error) {
	closedAt := s.clock.Now().UTC()
	result := CloseResult{Ticket: ticket, Credited: decimal.Zero}
	result.Transcript = s.deliverTranscript(ctx, req, closedAt)

	if _, _, err := s.registry.Remove(ctx, req.ChannelID); err != nil {
		return CloseResult{}, err
	}

	switch req.Mode {
	case CloseModeSettle:
		if ticket.TotalCost.IsPositive() {
			if _, err := s.ledger.Credit(ctx, ticket.OwnerID, ticket.TotalCost); err != nil {
				s.logger.Error("ledger credit failed for closed ticket",
					zap.String("channel_id", req.ChannelID),
					zap.String("owner_id", ticket.OwnerID),
					zap.String("amount", ticket.TotalCost.String()),
					zap.Error(err))
			} else {
				result.Credited = ticket.TotalCost
			}
		}
		s.notifyOwner(ctx, ticket.OwnerID, completionNotice(s.guildID, s.guild))
	case CloseModeFail:
		s.notifyOwner(ctx, ticket.OwnerID, failureNotice())
	}

	result.Orphaned = s.disposeChannel(ctx, req.ChannelID)

	s.publish(ctx, events.Event{
		Type:      events.EventTicketClosed,
		ChannelID: req.ChannelID,
		Actor:     events.ActorFrom(req.Actor),
		Payload: events.TicketClosedPayload{
			OwnerID:    ticket.OwnerID,
			Mode:       string(req.Mode),
			Reason:     req.Reason,
			Credited:   result.Credited,
			Transcript: result.Transcript,
			Orphaned:   result.Orphaned,
		},
	})
	s.metrics.TicketClosed(string(req.Mode))
	s.logger.Info("ticket closed",
		zap.String("channel_id", req.ChannelID),
		zap.String("owner_id", ticket.OwnerID),
		zap.String("mode", string(req.Mode)),
		zap.String("actor_id", req.Actor.ID),
		zap.Bool("orphaned", result.Orphaned))
	return result, nil
}

// deliverTranscript posts the transcript to the log channel and returns the
// archive name when one was written.
func (s *TicketService) deliverTranscript(ctx context.Context, req CloseRequest, closedAt time.Time) string {
	channelName := req.ChannelID
	if info, err := s.platform.ChannelInfo(ctx, req.ChannelID); err == nil && info.Name != "" {
		channelName = info.Name
	}
	history, err := s.platform.History(ctx, req.ChannelID)
	if err != nil {
		s.logger.Warn("channel history unavailable", zap.String("channel_id", req.ChannelID), zap.Error(err))
	}
	content := BuildTranscript(TranscriptHeader{
		ChannelName: channelName,
		ChannelID:   req.ChannelID,
		ClosedBy:    req.Actor.Name,
		ClosedByID:  req.Actor.ID,
		Reason:      req.Reason,
	}, history)

	if s.guild.LogChannelID != "" {
		caption := platform.Message{
			Content: fmt.Sprintf("Transcript for #%s closed by %s", channelName, closerLabel(req.Actor)),
		}
		file := platform.File{
			Name:        TranscriptFileName(req.ChannelID, closedAt),
			ContentType: "text/plain",
			Content:     []byte(content),
		}
		if err := s.platform.SendFile(ctx, s.guild.LogChannelID, caption, file); err != nil {
			s.logger.Warn("transcript upload failed; posting inline", zap.String("channel_id", req.ChannelID), zap.Error(err))
			if _, err := s.platform.Send(ctx, s.guild.LogChannelID, platform.Message{Content: TruncateTranscript(content)}); err != nil {
				s.logger.Error("transcript delivery failed", zap.String("channel_id", req.ChannelID), zap.Error(err))
			}
		}
	}

	if s.archive == nil {
		return ""
	}
	name, err := s.archive.Write(req.ChannelID, closedAt, content)
	if err != nil {
		s.logger.Warn("transcript archive failed", zap.String("channel_id", req.ChannelID), zap.Error(err))
		return ""
	}
	return name
}

// disposeChannel deletes the channel, locking it when deletion fails, and
// reports an orphan to the log channel when neither works.
func (s *TicketService) disposeChannel(ctx context.Context, channelID string) bool {
	delErr := s.platform.DeleteChannel(ctx, channelID)
	if delErr == nil || errors.Is(delErr, platform.ErrNotFound) {
		return false
	}
	lockErr := s.platform.LockChannel(ctx, channelID)
	if lockErr == nil {
		s.logger.Warn("ticket channel locked instead of deleted", zap.String("channel_id", channelID), zap.Error(delErr))
		return false
	}
	s.logger.Error("ticket channel orphaned",
		zap.String("channel_id", channelID),
		zap.NamedError("delete_error", delErr),
		zap.NamedError("lock_error", lockErr))
	if s.guild.LogChannelID != "" {
		report := platform.Message{
			Content: fmt.Sprintf("⚠️ Ticket %s was closed but its channel could not be deleted or locked. Please remove it manually.",
				domain.ChannelMention(channelID)),
		}
		if _, err := s.platform.Send(ctx, s.guild.LogChannelID, report); err != nil {
			s.logger.Error("orphan report failed", zap.String("channel_id", channelID), zap.Error(err))
		}
	}
	return true
}

func (s *TicketService) notifyOwner(ctx context.Context, ownerID string, msg platform.Message) {
	if err := s.platform.DirectMessage(ctx, ownerID, msg); err != nil {
		s.logger.Info("could not message ticket owner", zap.String("owner_id", ownerID), zap.Error(err))
	}
}

// AutoClose closes an inactive ticket whose warning has outlived the grace
// period. The record is re-read under the channel lock, so a keep-open or
// owner message that landed after the sweep's snapshot leaves the ticket
// open. Tickets already filed under the completed category close quietly;
// all others close as failed.
func (s *TicketService) AutoClose(ctx context.Context, channelID string) (CloseResult, error) {
	unlock := s.channelLocks.Lock(channelID)
	defer unlock()

	ticket, ok := s.registry.FindByChannel(channelID)
	if !ok {
		return CloseResult{}, nil
	}
	if age, warned := ticket.WarnedFor(s.clock.Now().UTC()); !warned || age < s.policy.InactivityGrace {
		s.logger.Debug("auto close skipped; ticket no longer due", zap.String("channel_id", channelID))
		return CloseResult{}, nil
	}

	info, err := s.platform.ChannelInfo(ctx, channelID)
	if errors.Is(err, platform.ErrNotFound) {
		if _, _, rmErr := s.registry.Remove(ctx, channelID); rmErr != nil {
			return CloseResult{}, rmErr
		}
		return CloseResult{}, nil
	}
	if err != nil {
		return CloseResult{}, apperrors.NewUnavailable("Could not inspect the ticket channel.", err)
	}

	mode := CloseModeFail
	if s.guild.CompletedCategoryID != "" && info.ParentID == s.guild.CompletedCategoryID {
		mode = CloseModePlain
	}
	return s.closeLocked(ctx, CloseRequest{
		Actor:     s.system,
		ChannelID: channelID,
		Mode:      mode,
		Reason:    "Closed automatically after inactivity.",
	}, ticket)
}

// WarnInactive posts the inactivity warning and starts the grace period.
// It does nothing when the ticket is already warned or has seen activity
// since the sweep looked at it.
func (s *TicketService) WarnInactive(ctx context.Context, channelID string) error {
	unlock := s.channelLocks.Lock(channelID)
	defer unlock()

	now := s.clock.Now().UTC()
	ticket, ok := s.registry.FindByChannel(channelID)
	if !ok {
		return nil
	}
	if _, warned := ticket.WarnedFor(now); warned {
		return nil
	}
	if ticket.IdleFor(now) < s.policy.InactivityWarnAfter {
		return nil
	}

	mention := "@here"
	if _, err := s.platform.Member(ctx, s.guildID, ticket.OwnerID); err == nil {
		mention = domain.Mention(ticket.OwnerID)
	}
	idle := ticket.IdleFor(now)
	if _, err := s.platform.Send(ctx, channelID, inactivityWarning(mention, idle, s.policy.InactivityGrace)); err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			_, _, rmErr := s.registry.Remove(ctx, channelID)
			return rmErr
		}
		return apperrors.NewUnavailable("Could not post the inactivity warning.", err)
	}
	if _, err := s.registry.MarkWarned(ctx, channelID, now); err != nil {
		return err
	}

	s.publish(ctx, events.Event{
		Type:      events.EventTicketWarned,
		ChannelID: channelID,
		Actor:     events.ActorFrom(s.system),
		Payload:   events.TicketWarnedPayload{OwnerID: ticket.OwnerID, Idle: idle},
	})
	s.metrics.InactivityWarning()
	return nil
}

// KeepOpen cancels a pending inactivity warning.
func (s *TicketService) KeepOpen(ctx context.Context, actor domain.Actor, channelID string) error {
	ticket, ok := s.registry.FindByChannel(channelID)
	if !ok {
		return ErrNotTicketChannel
	}
	if !s.authz.CanClose(actor, ticket.OwnerID, true) {
		return apperrors.NewForbidden("You do not have permission to use this command.")
	}
	unlock := s.channelLocks.Lock(channelID)
	defer unlock()
	if _, err := s.registry.ClearWarning(ctx, channelID, s.clock.Now().UTC()); err != nil {
		return err
	}
	s.logger.Info("inactivity warning cleared", zap.String("channel_id", channelID), zap.String("actor_id", actor.ID))
	return nil
}

// Touch records a message in channelID. It reports whether the channel is
// a ticket.
func (s *TicketService) Touch(ctx context.Context, channelID, authorID string) (bool, error) {
	return s.registry.Touch(ctx, channelID, authorID, s.clock.Now().UTC())
}

// AddParticipant grants userID access to a ticket channel.
func (s *TicketService) AddParticipant(ctx context.Context, actor domain.Actor, channelID, userID string) error {
	if err := s.authz.RequireStaff(actor); err != nil {
		return err
	}
	if _, ok := s.registry.FindByChannel(channelID); !ok {
		return ErrNotTicketChannel
	}
	if err := s.platform.GrantAccess(ctx, channelID, userID); err != nil {
		return apperrors.NewUnavailable("Could not add the user to this ticket.", err)
	}
	return nil
}

// Tickets returns every open ticket.
func (s *TicketService) Tickets() []domain.Ticket {
	return s.registry.Snapshot()
}

// Ticket returns the ticket bound to channelID.
func (s *TicketService) Ticket(channelID string) (domain.Ticket, bool) {
	return s.registry.FindByChannel(channelID)
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.clock.Now().UTC()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func closerLabel(actor domain.Actor) string {
	if actor.System {
		return "automatic inactivity close"
	}
	return domain.Mention(actor.ID)
}
