package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/notify"
)

// NotificationService turns ticket events into outbound emails. Delivery
// is best effort: failures are logged and never reach the caller.
type NotificationService struct {
	mailer notify.Mailer
	logger *zap.Logger
}

// NewNotificationService builds the service.
func NewNotificationService(mailer notify.Mailer, logger *zap.Logger) *NotificationService {
	return &NotificationService{mailer: mailer, logger: logger}
}

// RegisterHandlers subscribes the service to the ticket event stream.
func (s *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketCreated, s.handleTicketCreated)
	dispatcher.Subscribe(events.EventTicketAssigned, s.handleTicketAssigned)
	dispatcher.Subscribe(events.EventTicketStatusChanged, s.handleTicketStatusChanged)
	dispatcher.Subscribe(events.EventTicketCommentAdded, s.handleTicketCommentAdded)
}

func (s *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		s.logger.Warn("unexpected payload for ticket created event", zap.String("event_id", event.ID))
		return nil
	}
	subject := fmt.Sprintf("Ticket Created: #%d", event.TicketID)
	body := fmt.Sprintf("Your ticket '%s' has been created successfully.", payload.Subject)
	s.send(ctx, payload.OwnerEmail, subject, body, event)
	return nil
}

func (s *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		s.logger.Warn("unexpected payload for ticket assigned event", zap.String("event_id", event.ID))
		return nil
	}
	subject := fmt.Sprintf("Ticket Assigned: #%d", event.TicketID)
	body := fmt.Sprintf("You have been assigned to ticket #%d.", event.TicketID)
	s.send(ctx, payload.AssigneeEmail, subject, body, event)
	return nil
}

func (s *NotificationService) handleTicketCommentAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCommentAddedPayload)
	if !ok {
		s.logger.Warn("unexpected payload for comment added event", zap.String("event_id", event.ID))
		return nil
	}
	subject := fmt.Sprintf("New Comment on Ticket: #%d", event.TicketID)
	body := fmt.Sprintf("A new comment was added to your ticket #%d.", event.TicketID)
	s.send(ctx, payload.OwnerEmail, subject, body, event)
	return nil
}

func (s *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		s.logger.Warn("unexpected payload for status changed event", zap.String("event_id", event.ID))
		return nil
	}
	subject := fmt.Sprintf("Ticket Status Changed: #%d", event.TicketID)
	body := fmt.Sprintf("Your ticket #%d status has been updated to %s.", event.TicketID, payload.NewStatus)
	s.send(ctx, payload.OwnerEmail, subject, body, event)
	return nil
}

func (s *NotificationService) send(ctx context.Context, to, subject, body string, event events.Event) {
	if to == "" {
		s.logger.Debug("skipping notification without recipient",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID))
		return
	}
	if err := s.mailer.Send(ctx, to, subject, body); err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.String("recipient", to),
			zap.Error(err))
	}
}
