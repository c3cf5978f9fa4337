package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-ticket-core/internal/api/http/handlers"
	"github.com/spec-kit/support-ticket-core/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group("/api/v1")
	api.Post("/auth/token", cfg.Auth.IssueToken)

	api.Get("/tickets", cfg.Tickets.SearchTickets)
	api.Get("/tickets/by-thread/:threadId", cfg.Tickets.GetTicketByThread)
	api.Get("/tickets/:id", cfg.Tickets.GetTicket)
	api.Get("/statistics", cfg.Tickets.GetStatistics)

	protected := api.Group("", cfg.AuthMiddleware.Handle)
	protected.Post("/tickets", cfg.Tickets.CreateTicket)
	protected.Patch("/tickets/:id", cfg.Tickets.UpdateTicket)
	protected.Post("/tickets/:id/response", cfg.Tickets.RecordResponse)
}
