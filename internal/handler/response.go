package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"humormapper/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalid):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: invalidMessage(err)})
	case errors.Is(err, service.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "resource not found"})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// invalidMessage strips the "invalid: " prefix added when wrapping ErrInvalid.
func invalidMessage(err error) string {
	if msg, ok := strings.CutPrefix(err.Error(), service.ErrInvalid.Error()+": "); ok && msg != "" {
		return msg
	}
	return "invalid request"
}
