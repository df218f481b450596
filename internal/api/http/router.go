package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-engine/internal/api/http/handlers"
	"github.com/spec-kit/workflow-engine/internal/auth"
	"github.com/spec-kit/workflow-engine/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Definitions    *handlers.DefinitionsHandler
	Executions     *handlers.ExecutionsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	admin.Get("/workflow-types", cfg.Definitions.ListWorkflowTypes)
	admin.Post("/workflow-types", cfg.Definitions.CreateWorkflowType)
	admin.Put("/workflow-types/:id", cfg.Definitions.UpdateWorkflowType)
	admin.Delete("/workflow-types/:id", cfg.Definitions.DeleteWorkflowType)
	admin.Get("/workflow-types/:id/statuses", cfg.Definitions.ListStatuses)
	admin.Get("/workflow-types/:id/transitions", cfg.Definitions.ListTransitions)
	admin.Get("/workflow-types/:id/export", cfg.Definitions.ExportDefinition)
	admin.Post("/workflow-types/import", cfg.Definitions.ImportDefinition)

	admin.Post("/statuses", cfg.Definitions.CreateStatus)
	admin.Put("/statuses/:id", cfg.Definitions.UpdateStatus)
	admin.Delete("/statuses/:id", cfg.Definitions.DeleteStatus)

	admin.Post("/transitions", cfg.Definitions.CreateTransition)
	admin.Get("/transitions/:id", cfg.Definitions.GetTransition)
	admin.Put("/transitions/:id", cfg.Definitions.UpdateTransition)
	admin.Delete("/transitions/:id", cfg.Definitions.DeleteTransition)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	tickets.Get("/:id/transitions", cfg.Executions.ListAvailable)
	tickets.Post("/:id/transitions/execute", cfg.Executions.Execute)
	tickets.Get("/:id/history", cfg.Executions.History)
}
