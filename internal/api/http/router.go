package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Ticket routes run the caller-checked
// service variants; admin routes bypass per-ticket checks behind the
// ADMIN role guard.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/forgot-password", cfg.Auth.ForgotPassword)
	authGroup.Post("/reset-password", cfg.Auth.ResetPassword)

	tickets := api.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.SearchTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id/assign", cfg.Tickets.AssignTicket)
	tickets.Put("/:id/status", cfg.Tickets.ChangeStatus)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)

	admin := api.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	admin.Get("/users", cfg.Admin.ListUsers)
	admin.Get("/agents", cfg.Admin.ListAgentWorkloads)
	admin.Put("/users/:id/roles", cfg.Admin.UpdateRoles)
	admin.Delete("/users/:id", cfg.Admin.DeleteUser)
	admin.Put("/tickets/:id/assign", cfg.Admin.AssignTicket)
	admin.Put("/tickets/:id/status", cfg.Admin.ChangeStatus)
	admin.Delete("/tickets/:id", cfg.Admin.DeleteTicket)
}
