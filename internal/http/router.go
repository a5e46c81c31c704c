package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "humormapper/docs"
	"humormapper/internal/handler"
	"humormapper/internal/service"
)

// maxBodySize bounds request bodies; jokes are short.
const maxBodySize = "64K"

func NewRouter(
	authService service.AuthService,
	authHandler *handler.AuthHandler,
	humorHandler *handler.HumorHandler,
	healthHandler *handler.HealthHandler,
	staticDir string,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(RequestLoggerMiddleware())
	e.Use(middleware.BodyLimit(maxBodySize))

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")
	healthHandler.RegisterRoutes(api)
	authHandler.RegisterPublicRoutes(api)

	protected := api.Group("", SessionAuthMiddleware(authService))
	authHandler.RegisterProtectedRoutes(protected)
	humorHandler.RegisterRoutes(protected)

	registerStatic(e, staticDir)

	return e
}
