package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-portal/internal/api/http/handlers"
	"github.com/spec-kit/support-portal/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Payments       *handlers.PaymentHandler
	Stream         *handlers.StreamHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/signup", cfg.Auth.SignUp)
	authGroup.Post("/signin", cfg.Auth.SignIn)
	authGroup.Post("/signout", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Auth.SignOut)

	app.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Auth.Me)
	app.Patch("/me", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Auth.UpdateMe)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	tickets.Post("/", cfg.Tickets.Create)
	tickets.Get("/", cfg.Tickets.List)
	tickets.Get("/stats", cfg.Tickets.Stats)
	tickets.Get("/stream", cfg.Stream.Upgrade(), cfg.Stream.Stream())
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id/status", auth.RequireAdmin(), cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/upgrade/order", cfg.Payments.CreateOrder)
	tickets.Post("/:id/upgrade/confirm", cfg.Payments.Confirm)
}
