package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"humormapper/internal/service"
)

// parseLimitParam reads an optional positive integer query parameter.
// Missing or malformed values yield 0.
func parseLimitParam(c echo.Context, name string) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// sessionFrom returns the session stored on the request by the auth middleware.
func sessionFrom(c echo.Context) *service.Session {
	return service.SessionFromContext(c.Request().Context())
}
