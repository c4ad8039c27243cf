package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lyzr/flowd/cmd/flowd/container"
)

// WorkflowHandler handles workflow management requests
type WorkflowHandler struct {
	container *container.Container
}

// NewWorkflowHandler creates a workflow handler
func NewWorkflowHandler(c *container.Container) *WorkflowHandler {
	return &WorkflowHandler{container: c}
}

// Import stores a workflow from a YAML definition body
// POST /api/v1/workflows
func (h *WorkflowHandler) Import(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil || len(data) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "definition body is required"})
	}

	var activate *bool
	if raw := c.QueryParam("activate"); raw != "" {
		value := raw != "false"
		activate = &value
	}
	workflow, err := h.container.Workflows.ImportYAML(c.Request().Context(), data, activate)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, workflow)
}

// List returns stored workflows
// GET /api/v1/workflows
func (h *WorkflowHandler) List(c echo.Context) error {
	activeOnly := c.QueryParam("active") == "true"
	workflows, err := h.container.Workflows.List(c.Request().Context(), activeOnly)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"workflows": workflows})
}

// Get returns one workflow with its full definition
// GET /api/v1/workflows/:id
func (h *WorkflowHandler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid workflow id"})
	}
	workflow, err := h.container.Workflows.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, workflow)
}

// Patch applies an RFC 6902 JSON Patch to the stored definition
// PATCH /api/v1/workflows/:id/definition
func (h *WorkflowHandler) Patch(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid workflow id"})
	}
	patch, err := io.ReadAll(c.Request().Body)
	if err != nil || len(patch) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "patch body is required"})
	}

	workflow, err := h.container.Workflows.PatchDefinition(c.Request().Context(), id, json.RawMessage(patch))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, workflow)
}

// SetActive activates or deactivates a workflow
// POST /api/v1/workflows/:id/activate and /deactivate
func (h *WorkflowHandler) SetActive(active bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid workflow id"})
		}
		workflow, err := h.container.Workflows.SetActive(c.Request().Context(), id, active)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, workflow)
	}
}

// Delete removes a workflow; execution history is kept
// DELETE /api/v1/workflows/:id
func (h *WorkflowHandler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid workflow id"})
	}
	if err := h.container.Workflows.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// NodeTypes lists the registered node type tags
// GET /api/v1/node-types
func (h *WorkflowHandler) NodeTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"types": h.container.Registry.Types(),
	})
}
