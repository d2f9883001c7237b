package handlers

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

var validate = validator.New()

// parseBody decodes and validates a JSON request body.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validate.Struct(out); err != nil {
		details := map[string]any{}
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, ve := range verrs {
				details[ve.Field()] = ve.Tag()
			}
		}
		return apperrors.NewValidationError("invalid payload", details)
	}
	return nil
}

// parseIDParam extracts a numeric path parameter.
func parseIDParam(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid "+name, map[string]any{name: c.Params(name)})
	}
	return id, nil
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Roles: user.RoleNames(),
	}
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:          ticket.ID,
		Subject:     ticket.Subject,
		Description: ticket.Description,
		Priority:    ticket.Priority,
		Category:    ticket.Category,
		Status:      ticket.Status,
		OwnerID:     ticket.OwnerID,
		AssigneeID:  ticket.AssigneeID,
		CreatedAt:   ticket.CreatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket) dto.TicketDetailResponse {
	comments := make([]dto.CommentResponse, 0, len(ticket.Comments))
	for i := range ticket.Comments {
		comments = append(comments, commentResponse(&ticket.Comments[i]))
	}
	return dto.TicketDetailResponse{
		TicketResponse: ticketResponse(ticket),
		Comments:       comments,
	}
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        comment.ID,
		TicketID:  comment.TicketID,
		AuthorID:  comment.AuthorID,
		Text:      comment.Text,
		CreatedAt: comment.CreatedAt,
	}
}
