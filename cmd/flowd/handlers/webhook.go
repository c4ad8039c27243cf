package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lyzr/flowd/cmd/flowd/container"
	"github.com/lyzr/flowd/executor"
)

// WebhookHandler turns inbound HTTP requests into workflow executions
type WebhookHandler struct {
	container *container.Container
}

// NewWebhookHandler creates a webhook handler
func NewWebhookHandler(c *container.Container) *WebhookHandler {
	return &WebhookHandler{container: c}
}

// Trigger starts an execution from a webhook call. The default mode is
// fire-and-forget: the response carries the execution id and the run
// continues in the background. ?wait=true blocks until the run
// finishes and returns its outcome.
// POST /api/v1/webhook/:workflow_id/trigger/:trigger_node_id
func (h *WebhookHandler) Trigger(c echo.Context) error {
	workflowID, err := uuid.Parse(c.Param("workflow_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid workflow id"})
	}
	triggerNodeID := c.Param("trigger_node_id")

	workflow, err := h.container.Workflows.Get(c.Request().Context(), workflowID)
	if err != nil {
		return respondError(c, err)
	}

	def, err := workflow.ParseDefinition()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errBody(err))
	}
	node := def.NodeByID(triggerNodeID)
	if node == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "trigger node not found"})
	}
	if node.Type != "webhook_trigger" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "node is not a webhook trigger"})
	}

	body, err := decodeBody(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "request body must be a JSON object"})
	}

	req := &executor.RunRequest{
		Input:       triggerInput(body),
		TriggerNode: triggerNodeID,
		UserID:      c.Request().Header.Get("X-User-ID"),
		TriggeredBy: "webhook",
	}

	if c.QueryParam("wait") == "true" {
		execution, err := h.container.Engine.ExecuteByID(c.Request().Context(), workflowID, req)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, execution)
	}

	execution, err := h.container.Engine.StartByID(c.Request().Context(), workflowID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":      true,
		"execution_id": execution.ID,
		"workflow_id":  workflow.ID,
		"message":      "workflow execution started",
	})
}

// triggerInput unwraps the webhook body envelope: the run input is the
// body's data field.
func triggerInput(body map[string]interface{}) map[string]interface{} {
	if body == nil {
		return nil
	}
	switch data := body["data"].(type) {
	case nil:
		return nil
	case map[string]interface{}:
		return data
	default:
		return map[string]interface{}{"data": data}
	}
}

// decodeBody accepts an empty body or a JSON object
func decodeBody(body io.Reader) (map[string]interface{}, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var input map[string]interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, err
	}
	return input, nil
}
