package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload. Priority and category default to MEDIUM
// and OTHER when omitted.
type CreateTicketRequest struct {
	Subject     string `json:"subject" validate:"required"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Category    string `json:"category"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssigneeID int64 `json:"assignee_id" validate:"required,gt=0"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Text string `json:"text" validate:"required"`
}

// TicketResponse summary view.
type TicketResponse struct {
	ID          int64           `json:"id"`
	Subject     string          `json:"subject"`
	Description string          `json:"description"`
	Priority    domain.Priority `json:"priority"`
	Category    domain.Category `json:"category"`
	Status      domain.Status   `json:"status"`
	OwnerID     int64           `json:"owner_id"`
	AssigneeID  *int64          `json:"assignee_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TicketDetailResponse includes the comment thread.
type TicketDetailResponse struct {
	TicketResponse
	Comments []CommentResponse `json:"comments"`
}

// CommentResponse represents one thread entry.
type CommentResponse struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	AuthorID  int64     `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
