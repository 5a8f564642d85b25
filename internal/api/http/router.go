package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fleet-support/internal/api/http/handlers"
	"github.com/spec-kit/fleet-support/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Tickets *handlers.TicketsHandler
	Agents  *handlers.AgentsHandler
	Metrics *handlers.MetricsHandler
	// AuthMiddleware guards /api/v1 when set. Nil leaves the API open, which
	// is only meant for local runs.
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1")
	agentOnly := []fiber.Handler{}
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.Handle)
		agentOnly = append(agentOnly, auth.RequireAgent())
	}

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id/status", append(agentOnly, cfg.Tickets.UpdateStatus)...)
	tickets.Put("/:id/assignee", append(agentOnly, cfg.Tickets.AssignTicket)...)
	tickets.Get("/:id/responses", cfg.Tickets.ListResponses)
	tickets.Post("/:id/responses", cfg.Tickets.AddResponse)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)

	api.Get("/agents", cfg.Agents.ListAgents)
	api.Get("/metrics", cfg.Metrics.GetMetrics)
}
