package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lyzr/flowd/cmd/flowd/container"
)

// CredentialHandler manages stored credentials. Responses only ever
// carry metadata; secret material stays encrypted at rest.
type CredentialHandler struct {
	container *container.Container
}

// NewCredentialHandler creates a credential handler
func NewCredentialHandler(c *container.Container) *CredentialHandler {
	return &CredentialHandler{container: c}
}

type createCredentialRequest struct {
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data"`
}

// Create encrypts and stores a credential
// POST /api/v1/credentials
func (h *CredentialHandler) Create(c echo.Context) error {
	var req createCredentialRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Name == "" || req.Type == "" || len(req.Data) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name, type and data are required"})
	}

	credential, err := h.container.Workflows.CreateCredential(
		c.Request().Context(), req.Name, req.Type, req.Description, req.Data)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, credential)
}

// List returns credential metadata
// GET /api/v1/credentials
func (h *CredentialHandler) List(c echo.Context) error {
	credentials, err := h.container.Workflows.ListCredentials(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"credentials": credentials})
}

// Delete removes a credential
// DELETE /api/v1/credentials/:id
func (h *CredentialHandler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid credential id"})
	}
	if err := h.container.Workflows.DeleteCredential(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
