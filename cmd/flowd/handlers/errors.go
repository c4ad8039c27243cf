package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/flowd/models"
)

// respondError maps engine errors onto the HTTP surface
func respondError(c echo.Context, err error) error {
	var paramErr *models.ParameterError
	var credErr *models.CredentialTypeError

	switch {
	case errors.Is(err, models.ErrWorkflowNotFound),
		errors.Is(err, models.ErrExecutionNotFound):
		return c.JSON(http.StatusNotFound, errBody(err))
	case errors.Is(err, models.ErrNotAuthorized):
		return c.JSON(http.StatusForbidden, errBody(err))
	case errors.Is(err, models.ErrWorkflowInactive),
		errors.Is(err, models.ErrGraphCycle),
		errors.Is(err, models.ErrNodeTypeUnknown),
		errors.Is(err, models.ErrCredentialMissing),
		errors.As(err, &paramErr),
		errors.As(err, &credErr):
		return c.JSON(http.StatusBadRequest, errBody(err))
	default:
		return c.JSON(http.StatusInternalServerError, errBody(err))
	}
}

func errBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}
