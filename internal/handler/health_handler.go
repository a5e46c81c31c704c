package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db      Pinger
	version string
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func NewHealthHandler(db Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version}
}

func (h *HealthHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/health", h.Health)
}

// Health reports whether the server can reach its database.
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} healthResponse
// @Failure 503 {object} healthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c echo.Context) error {
	if err := h.db.PingContext(c.Request().Context()); err != nil {
		c.Logger().Errorf("health ping: %v", err)
		return c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Version: h.version})
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Version: h.version})
}
