package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

// NotificationService turns domain events into staff-facing broadcasts and
// audit log lines.
type NotificationService struct {
	dispatcher events.Dispatcher
	platform   platform.Platform
	channelID  string
	logger     *zap.Logger
}

// NewNotificationService creates the service. An empty channelID disables
// broadcasts; events are still logged.
func NewNotificationService(dispatcher events.Dispatcher, p platform.Platform, channelID string, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		platform:   p,
		channelID:  channelID,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketConfirmed, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketWarned, n.logEvent)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.logEvent)
	n.dispatcher.Subscribe(events.EventLedgerAdjusted, n.logEvent)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logEvent(ctx, event)
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok || n.channelID == "" || n.platform == nil {
		return nil
	}
	_, err := n.platform.Send(ctx, n.channelID, platform.Message{Content: creationBroadcast(event.ChannelID, payload)})
	if err != nil {
		return fmt.Errorf("broadcast ticket creation: %w", err)
	}
	return nil
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("channel_id", event.ChannelID),
		zap.String("actor_id", event.Actor.UserID),
		zap.Bool("system", event.Actor.System),
		zap.Any("payload", event.Payload))
	return nil
}

func creationBroadcast(channelID string, p events.TicketCreatedPayload) string {
	line := fmt.Sprintf("New ticket %s created by %s • Type: %s",
		domain.ChannelMention(channelID), domain.Mention(p.OwnerID), p.DeliveryType)
	if p.Subtype != "" && p.Subtype != domain.KindOther {
		line += fmt.Sprintf(" (%s)", p.Subtype)
	}
	return line
}
