package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
)

// Event represents a domain event emitted by services. Payloads carry the
// recipient address so notification handlers need no repository access.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Subject    string `json:"subject"`
	OwnerEmail string `json:"owner_email"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID    int64  `json:"assignee_id"`
	AssigneeEmail string `json:"assignee_email"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	AuthorID   int64  `json:"author_id"`
	OwnerEmail string `json:"owner_email"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus  domain.Status `json:"old_status"`
	NewStatus  domain.Status `json:"new_status"`
	OwnerEmail string        `json:"owner_email"`
}
