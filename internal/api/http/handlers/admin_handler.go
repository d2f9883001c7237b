package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/service"
)

// AdminHandler exposes the administrative surface. Routes are guarded by
// the ADMIN role; these calls bypass per-ticket ownership checks.
type AdminHandler struct {
	users   *service.UserService
	tickets *service.TicketService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(users *service.UserService, tickets *service.TicketService) *AdminHandler {
	return &AdminHandler{users: users, tickets: tickets}
}

// ListUsers GET /api/admin/users.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	users, err := h.users.ListUsers(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, userResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListAgentWorkloads GET /api/admin/agents. Least busy agents first.
func (h *AdminHandler) ListAgentWorkloads(c *fiber.Ctx) error {
	workloads, err := h.users.AgentWorkloads(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workloads})
}

// UpdateRoles PUT /api/admin/users/:id/roles.
func (h *AdminHandler) UpdateRoles(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateRolesRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.users.UpdateRoles(c.UserContext(), id, req.Roles)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// DeleteUser DELETE /api/admin/users/:id.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.users.DeleteUser(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AssignTicket PUT /api/admin/tickets/:id/assign.
func (h *AdminHandler) AssignTicket(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.AssignTicket(c.UserContext(), id, req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ChangeStatus PUT /api/admin/tickets/:id/status.
func (h *AdminHandler) ChangeStatus(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.ChangeStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.ChangeStatus(c.UserContext(), id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// DeleteTicket DELETE /api/admin/tickets/:id.
func (h *AdminHandler) DeleteTicket(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.tickets.DeleteTicket(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
