package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/authz"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// StatusAll is the sentinel filter value meaning "no status filter".
const StatusAll = "ALL"

// TicketService coordinates ticket workflows: creation, search with
// role-based visibility, assignment, status changes and comments.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	comments   repository.CommentRepository
	dispatcher events.Dispatcher
}

// TicketDependencies bundles repositories for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	CommentRepo repository.CommentRepository
	Dispatcher  events.Dispatcher
}

// TicketCreateInput describes the ticket creation payload. Priority and
// category arrive as literals and are parsed strictly; empty values fall
// back to the MEDIUM/OTHER defaults.
type TicketCreateInput struct {
	Subject     string
	Description string
	Priority    string
	Category    string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		comments:   deps.CommentRepo,
		dispatcher: deps.Dispatcher,
	}
}

// CreateTicket creates a ticket owned by the user behind ownerEmail. The
// creation timestamp is always stamped server-side.
func (s *TicketService) CreateTicket(ctx context.Context, ownerEmail string, input TicketCreateInput) (*domain.Ticket, error) {
	owner, err := s.resolveUserByEmail(ctx, ownerEmail)
	if err != nil {
		return nil, err
	}

	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, apperrors.NewValidationError("subject required", nil)
	}
	priority, err := domain.ParsePriority(input.Priority)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": input.Priority})
	}
	category, err := domain.ParseCategory(input.Category)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid category", map[string]any{"category": input.Category})
	}

	ticket := &domain.Ticket{
		Subject:     subject,
		Description: input.Description,
		Priority:    priority,
		Category:    category,
		Status:      domain.StatusOpen,
		OwnerID:     owner.ID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			Subject:    ticket.Subject,
			OwnerEmail: owner.Email,
		},
	})
	return ticket, nil
}

// SearchTickets returns the tickets visible to the requester, optionally
// narrowed by a status filter and a free-text search term.
//
// The status filter is advisory: blank, "ALL" and unparseable values all
// mean "no filter". Mutations, by contrast, reject bad status literals.
// Results are deduplicated by id and ordered by id ascending, so a fixed
// store yields a fixed result.
func (s *TicketService) SearchTickets(ctx context.Context, requesterEmail, query, status string) ([]domain.Ticket, error) {
	requester, err := s.resolveUserByEmail(ctx, requesterEmail)
	if err != nil {
		return nil, err
	}

	scope := authz.ScopeFor(requester)
	tickets, err := s.listByScope(ctx, scope)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if trimmed := strings.TrimSpace(status); trimmed != "" && trimmed != StatusAll {
		if parsed, err := domain.ParseStatus(trimmed); err == nil {
			tickets = filterByStatus(tickets, parsed)
		}
	}

	if needle := strings.ToLower(strings.TrimSpace(query)); needle != "" {
		tickets = filterBySearchTerm(tickets, needle)
	}

	return dedupeByID(tickets), nil
}

// GetTicket fetches a ticket with its comment thread.
func (s *TicketService) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.resolveTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket.Comments = comments
	return ticket, nil
}

// GetTicketForUser fetches a ticket only if it falls inside the actor's
// visibility scope; the same precedence the search path uses.
func (s *TicketService) GetTicketForUser(ctx context.Context, actor *domain.User, id int64) (*domain.Ticket, error) {
	ticket, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.ScopeFor(actor).Matches(ticket) {
		return nil, apperrors.NewAccessDenied("not allowed to view this ticket")
	}
	return ticket, nil
}

// AssignTicket sets the ticket's assignee and notifies them. The
// assignee's roles are not checked here; route-level guards decide who
// may call this.
func (s *TicketService) AssignTicket(ctx context.Context, ticketID, assigneeID int64) (*domain.Ticket, error) {
	ticket, err := s.resolveTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	assignee, err := s.resolveUserByID(ctx, assigneeID)
	if err != nil {
		return nil, err
	}

	ticket.AssigneeID = &assignee.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Payload: events.TicketAssignedPayload{
			AssigneeID:    assignee.ID,
			AssigneeEmail: assignee.Email,
		},
	})
	return ticket, nil
}

// AssignTicketByUser is the caller-checked variant: the actor must be an
// admin, the ticket's owner, or its current assignee.
func (s *TicketService) AssignTicketByUser(ctx context.Context, actor *domain.User, ticketID, assigneeID int64) (*domain.Ticket, error) {
	ticket, err := s.resolveTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canActOnTicket(actor, ticket) {
		return nil, apperrors.NewAccessDenied("not allowed to assign this ticket")
	}
	return s.AssignTicket(ctx, ticketID, assigneeID)
}

// ChangeStatus sets a ticket's status. The literal is parsed strictly:
// unlike the search filter, a bad status here is a validation failure.
// No transition is forbidden; statuses form a flat set.
func (s *TicketService) ChangeStatus(ctx context.Context, ticketID int64, status string) (*domain.Ticket, error) {
	parsed, err := domain.ParseStatus(status)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": status})
	}

	ticket, err := s.resolveTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	ticket.Status = parsed
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	ownerEmail := ""
	if owner, err := s.users.GetByID(ctx, ticket.OwnerID); err == nil {
		ownerEmail = owner.Email
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus:  oldStatus,
			NewStatus:  parsed,
			OwnerEmail: ownerEmail,
		},
	})
	return ticket, nil
}

// ChangeStatusByUser is the caller-checked variant: the actor must be an
// admin, an agent, or the ticket's owner.
func (s *TicketService) ChangeStatusByUser(ctx context.Context, actor *domain.User, ticketID int64, status string) (*domain.Ticket, error) {
	ticket, err := s.resolveTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.HasRole(domain.RoleAdmin) && !actor.HasRole(domain.RoleAgent) && ticket.OwnerID != actor.ID {
		return nil, apperrors.NewAccessDenied("not allowed to change this ticket's status")
	}
	return s.ChangeStatus(ctx, ticketID, status)
}

// AddComment appends a comment to the ticket's thread. Blank text fails
// validation before any lookup happens.
func (s *TicketService) AddComment(ctx context.Context, ticketID int64, authorEmail, text string) (*domain.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("comment text required", nil)
	}

	ticket, err := s.resolveTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	author, err := s.resolveUserByEmail(ctx, authorEmail)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		TicketID:  ticket.ID,
		AuthorID:  author.ID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	// Owner gets a heads-up unless they wrote the comment themselves.
	if author.ID != ticket.OwnerID {
		ownerEmail := ""
		if owner, err := s.users.GetByID(ctx, ticket.OwnerID); err == nil {
			ownerEmail = owner.Email
		}
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketCommentAdded,
			TicketID: ticket.ID,
			Payload: events.TicketCommentAddedPayload{
				AuthorID:   author.ID,
				OwnerEmail: ownerEmail,
			},
		})
	}
	return comment, nil
}

// AddCommentByUser is the caller-checked variant: authorship is limited
// to the ticket's owner, its assignee, or an admin.
func (s *TicketService) AddCommentByUser(ctx context.Context, actor *domain.User, ticketID int64, text string) (*domain.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("comment text required", nil)
	}
	ticket, err := s.resolveTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !canActOnTicket(actor, ticket) {
		return nil, apperrors.NewAccessDenied("not allowed to comment on this ticket")
	}
	return s.AddComment(ctx, ticketID, actor.Email, text)
}

// CountActiveTicketsForAgent returns how many OPEN or IN_PROGRESS tickets
// are assigned to the agent. Admins use it to rank agents least-busy
// first when picking an assignee.
func (s *TicketService) CountActiveTicketsForAgent(ctx context.Context, agentID int64) (int, error) {
	count, err := s.tickets.CountActiveByAssignee(ctx, agentID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

// DeleteTicket removes a ticket entirely. Admin surface only.
func (s *TicketService) DeleteTicket(ctx context.Context, id int64) error {
	if err := s.tickets.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewTicketNotFound(map[string]any{"ticket_id": id})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *TicketService) listByScope(ctx context.Context, scope authz.Scope) ([]domain.Ticket, error) {
	switch {
	case scope.All:
		return s.tickets.ListAll(ctx)
	case scope.AssigneeID != nil:
		return s.tickets.ListByAssignee(ctx, *scope.AssigneeID)
	default:
		return s.tickets.ListByOwner(ctx, *scope.OwnerID)
	}
}

func (s *TicketService) resolveUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUserNotFound(map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func (s *TicketService) resolveUserByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUserNotFound(map[string]any{"user_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func (s *TicketService) resolveTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewTicketNotFound(map[string]any{"ticket_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func canActOnTicket(actor *domain.User, ticket *domain.Ticket) bool {
	if actor.HasRole(domain.RoleAdmin) {
		return true
	}
	if ticket.OwnerID == actor.ID {
		return true
	}
	return ticket.AssigneeID != nil && *ticket.AssigneeID == actor.ID
}

func filterByStatus(tickets []domain.Ticket, status domain.Status) []domain.Ticket {
	filtered := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.Status == status {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func filterBySearchTerm(tickets []domain.Ticket, needle string) []domain.Ticket {
	filtered := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if strings.Contains(strings.ToLower(t.Subject), needle) ||
			strings.Contains(strings.ToLower(t.Description), needle) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func dedupeByID(tickets []domain.Ticket) []domain.Ticket {
	seen := make(map[int64]struct{}, len(tickets))
	result := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		result = append(result, t)
	}
	return result
}
