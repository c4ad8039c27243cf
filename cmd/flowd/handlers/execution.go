package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lyzr/flowd/cmd/flowd/container"
)

// ExecutionHandler serves execution history and cancellation
type ExecutionHandler struct {
	container *container.Container
}

// NewExecutionHandler creates an execution handler
func NewExecutionHandler(c *container.Container) *ExecutionHandler {
	return &ExecutionHandler{container: c}
}

// List returns the execution history of a workflow, newest first
// GET /api/v1/workflows/:id/executions
func (h *ExecutionHandler) List(c echo.Context) error {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid workflow id"})
	}

	limit := h.container.Components.Config.Engine.MaxHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed < limit {
			limit = parsed
		}
	}

	executions, err := h.container.Store.ListExecutions(c.Request().Context(), workflowID, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"executions": executions})
}

// Get returns one execution with its node-level records
// GET /api/v1/executions/:id
func (h *ExecutionHandler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid execution id"})
	}

	execution, err := h.container.Store.GetExecution(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	nodeExecutions, err := h.container.Store.ListNodeExecutions(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"execution": execution,
		"nodes":     nodeExecutions,
	})
}

// Cancel requests cancellation of a running execution
// POST /api/v1/executions/:id/cancel
func (h *ExecutionHandler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid execution id"})
	}

	execution, err := h.container.Store.GetExecution(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if execution.Status.IsTerminal() {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"cancelled": false,
			"status":    execution.Status,
		})
	}

	cancelled := h.container.Engine.Cancel(id)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"cancelled": cancelled,
		"status":    execution.Status,
	})
}
