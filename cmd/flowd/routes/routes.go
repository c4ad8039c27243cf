// Package routes binds the HTTP surface to its handlers
package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/flowd/cmd/flowd/container"
	"github.com/lyzr/flowd/cmd/flowd/handlers"
)

// RegisterWebhookRoutes registers the workflow trigger surface
func RegisterWebhookRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewWebhookHandler(c)
	e.POST("/api/v1/webhook/:workflow_id/trigger/:trigger_node_id", h.Trigger)
}

// RegisterWorkflowRoutes registers workflow management routes
func RegisterWorkflowRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewWorkflowHandler(c)

	wf := e.Group("/api/v1/workflows")
	wf.POST("", h.Import)
	wf.GET("", h.List)
	wf.GET("/:id", h.Get)
	wf.PATCH("/:id/definition", h.Patch)
	wf.POST("/:id/activate", h.SetActive(true))
	wf.POST("/:id/deactivate", h.SetActive(false))
	wf.DELETE("/:id", h.Delete)

	e.GET("/api/v1/node-types", h.NodeTypes)
}

// RegisterExecutionRoutes registers execution history and control routes
func RegisterExecutionRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewExecutionHandler(c)

	e.GET("/api/v1/workflows/:id/executions", h.List)
	e.GET("/api/v1/executions/:id", h.Get)
	e.POST("/api/v1/executions/:id/cancel", h.Cancel)
}

// RegisterCredentialRoutes registers credential management routes
func RegisterCredentialRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewCredentialHandler(c)

	cr := e.Group("/api/v1/credentials")
	cr.POST("", h.Create)
	cr.GET("", h.List)
	cr.DELETE("/:id", h.Delete)
}
